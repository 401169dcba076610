// Package discovery locates deployed application resources by tag through
// the Resource Groups Tagging API, so tools and integration tests never
// hard-code physical names.
package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/resourcegroupstaggingapi"
	"github.com/aws/aws-sdk-go-v2/service/resourcegroupstaggingapi/types"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	hexagonal "github.com/lex00/hexagonal-serverless-go"
	"github.com/lex00/hexagonal-serverless-go/internal/config"
	"github.com/lex00/hexagonal-serverless-go/internal/logging"
)

// ResourceIDTag is the tag carrying a resource's stable identifier.
const ResourceIDTag = "ResourceId"

// DefaultTagKey is the application tag key used when APP_TAG_KEY is unset.
const DefaultTagKey = "Project"

// Polling defaults for WaitForResource.
const (
	DefaultWaitAttempts = 30
	DefaultWaitDelay    = 2 * time.Second
)

// minARNParts is the number of colon-separated fields in a resource ARN.
const minARNParts = 6

// Resource type filters.
const (
	TypeTable    = "dynamodb:table"
	TypeBucket   = "s3:bucket"
	TypeRole     = "iam:role"
	TypeFunction = "lambda:function"
)

// TaggingAPI is the subset of the tagging client Discovery uses.
type TaggingAPI interface {
	GetResources(ctx context.Context, in *resourcegroupstaggingapi.GetResourcesInput, optFns ...func(*resourcegroupstaggingapi.Options)) (*resourcegroupstaggingapi.GetResourcesOutput, error)
}

var _ TaggingAPI = (*resourcegroupstaggingapi.Client)(nil)

// TagConfig is the application tag every discovered resource carries.
type TagConfig struct {
	Key   string
	Value string
}

// TagsFromConfig reads APP_TAG_KEY (default Project) and APP_TAG_VALUE.
func TagsFromConfig(c *config.Config) (TagConfig, error) {
	value, err := c.Required(config.KeyTagValue)
	if err != nil {
		return TagConfig{}, err
	}
	return TagConfig{Key: c.Optional(config.KeyTagKey, DefaultTagKey), Value: value}, nil
}

// Discovery finds resources carrying the application tag.
type Discovery struct {
	client TaggingAPI
	tags   TagConfig
	log    *zap.Logger
}

// New returns a Discovery. It fails with a *config.Error when the tag key or
// value is empty.
func New(tags TagConfig, client TaggingAPI, log *zap.Logger) (*Discovery, error) {
	if tags.Key == "" {
		return nil, &config.Error{Key: config.KeyTagKey}
	}
	if tags.Value == "" {
		return nil, &config.Error{Key: config.KeyTagValue}
	}
	if client == nil {
		return nil, fmt.Errorf("discovery: nil tagging client")
	}
	return &Discovery{client: client, tags: tags, log: logging.OrNop(log)}, nil
}

// LoadAWSConfig loads the default SDK configuration, pinned to region when set.
func LoadAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	return cfg, nil
}

// NewFromConfig returns a Discovery backed by a real tagging client.
func NewFromConfig(cfg aws.Config, tags TagConfig, log *zap.Logger) (*Discovery, error) {
	return New(tags, resourcegroupstaggingapi.NewFromConfig(cfg), log)
}

// Tags returns the application tag.
func (d *Discovery) Tags() TagConfig { return d.tags }

// TableName returns the name of the DynamoDB table tagged with resourceID.
func (d *Discovery) TableName(ctx context.Context, resourceID string) (string, bool) {
	arn, ok := d.firstARN(ctx, TypeTable, resourceID)
	if !ok {
		return "", false
	}
	return afterLast(arn, "/"), true
}

// BucketName returns the name of the S3 bucket tagged with resourceID.
func (d *Discovery) BucketName(ctx context.Context, resourceID string) (string, bool) {
	arn, ok := d.firstARN(ctx, TypeBucket, resourceID)
	if !ok {
		return "", false
	}
	return afterLast(arn, ":"), true
}

// RoleARN returns the full ARN of the IAM role tagged with resourceID.
func (d *Discovery) RoleARN(ctx context.Context, resourceID string) (string, bool) {
	return d.firstARN(ctx, TypeRole, resourceID)
}

// FunctionName returns the name of the Lambda function tagged with resourceID.
func (d *Discovery) FunctionName(ctx context.Context, resourceID string) (string, bool) {
	arn, ok := d.firstARN(ctx, TypeFunction, resourceID)
	if !ok {
		return "", false
	}
	return afterLast(arn, ":"), true
}

// ResourceByID returns the first resource of any type tagged with resourceID.
func (d *Discovery) ResourceByID(ctx context.Context, resourceID string) (*hexagonal.DiscoveredResource, bool) {
	mappings, err := d.getResources(ctx, "", d.filters(resourceID), 1)
	if err != nil {
		d.log.Warn("discovering resource failed", zap.String("resource_id", resourceID), zap.Error(err))
		return nil, false
	}
	if len(mappings) == 0 {
		return nil, false
	}

	res := toResource(mappings[0])
	res.ResourceID = resourceID
	return &res, true
}

// AllApplicationResources returns every tagged resource grouped by type.
// Errors are logged and yield an empty map.
func (d *Discovery) AllApplicationResources(ctx context.Context) map[string][]hexagonal.DiscoveredResource {
	out := make(map[string][]hexagonal.DiscoveredResource)

	mappings, err := d.getResources(ctx, "", d.filters(""), 0)
	if err != nil {
		d.log.Warn("discovering application resources failed", zap.Error(err))
		return out
	}
	for _, m := range mappings {
		res := toResource(m)
		out[res.Type] = append(out[res.Type], res)
	}
	return out
}

// WaitForResource polls ResourceByID until the resource appears, at most
// attempts times with delay between tries. Non-positive values take the
// package defaults.
func (d *Discovery) WaitForResource(ctx context.Context, resourceID string, attempts int, delay time.Duration) bool {
	if attempts <= 0 {
		attempts = DefaultWaitAttempts
	}
	if delay <= 0 {
		delay = DefaultWaitDelay
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), uint64(attempts-1)),
		ctx,
	)

	err := backoff.Retry(func() error {
		if _, ok := d.ResourceByID(ctx, resourceID); !ok {
			return fmt.Errorf("resource %s not found yet", resourceID)
		}
		return nil
	}, policy)
	if err != nil {
		d.log.Info("resource not available", zap.String("resource_id", resourceID), zap.Int("attempts", attempts))
		return false
	}
	return true
}

func (d *Discovery) filters(resourceID string) []types.TagFilter {
	f := []types.TagFilter{{Key: aws.String(d.tags.Key), Values: []string{d.tags.Value}}}
	if resourceID != "" {
		f = append(f, types.TagFilter{Key: aws.String(ResourceIDTag), Values: []string{resourceID}})
	}
	return f
}

func (d *Discovery) firstARN(ctx context.Context, resourceType, resourceID string) (string, bool) {
	mappings, err := d.getResources(ctx, resourceType, d.filters(resourceID), 1)
	if err != nil {
		d.log.Warn("discovering resource failed",
			zap.String("type", resourceType),
			zap.String("resource_id", resourceID),
			zap.Error(err))
		return "", false
	}
	if len(mappings) == 0 {
		d.log.Debug("resource not found", zap.String("type", resourceType), zap.String("resource_id", resourceID))
		return "", false
	}
	return aws.ToString(mappings[0].ResourceARN), true
}

// getResources pages through GetResources. limit > 0 stops once that many
// mappings are collected.
func (d *Discovery) getResources(ctx context.Context, resourceType string, filters []types.TagFilter, limit int) ([]types.ResourceTagMapping, error) {
	in := &resourcegroupstaggingapi.GetResourcesInput{TagFilters: filters}
	if resourceType != "" {
		in.ResourceTypeFilters = []string{resourceType}
	}

	var out []types.ResourceTagMapping
	pages := resourcegroupstaggingapi.NewGetResourcesPaginator(d.client, in)
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, page.ResourceTagMappingList...)
		if limit > 0 && len(out) >= limit {
			return out[:limit], nil
		}
	}
	return out, nil
}

func toResource(m types.ResourceTagMapping) hexagonal.DiscoveredResource {
	arn := aws.ToString(m.ResourceARN)
	typ := ResourceType(arn)
	res := hexagonal.DiscoveredResource{
		ARN:  arn,
		Type: typ,
		Name: ResourceName(arn, typ),
	}
	if len(m.Tags) > 0 {
		res.Tags = make(map[string]string, len(m.Tags))
		for _, t := range m.Tags {
			res.Tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
		}
		res.ResourceID = res.Tags[ResourceIDTag]
	}
	return res
}

// ResourceType returns "<service>:<resource-type>" for an ARN, or "unknown".
//
//	ResourceType("arn:aws:dynamodb:eu-west-1:123:table/Greetings") // "dynamodb:table"
func ResourceType(arn string) string {
	parts := strings.Split(arn, ":")
	if len(parts) < minARNParts {
		return "unknown"
	}
	service, resource := parts[2], parts[5]
	if service == "s3" {
		// Bucket ARNs carry no resource type: arn:aws:s3:::name
		return TypeBucket
	}
	if i := strings.Index(resource, "/"); i >= 0 {
		resource = resource[:i]
	}
	return service + ":" + resource
}

// ResourceName extracts the resource name from an ARN of the given type.
func ResourceName(arn, resourceType string) string {
	switch {
	case strings.HasPrefix(resourceType, "dynamodb:"), strings.HasPrefix(resourceType, "iam:"):
		return afterLast(arn, "/")
	case strings.HasPrefix(resourceType, "s3:"), strings.HasPrefix(resourceType, "lambda:"):
		return afterLast(arn, ":")
	case strings.Contains(arn, "/"):
		return afterLast(arn, "/")
	default:
		return afterLast(arn, ":")
	}
}

func afterLast(s, sep string) string {
	return s[strings.LastIndex(s, sep)+len(sep):]
}
