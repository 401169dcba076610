// Package schema provides offline CloudFormation schema validation.
// It validates resources against the schemas of the resource types the
// application stack declares, catching mistakes before cfn-lint or a
// deployment sees the template.
package schema

import (
	"fmt"
	"sort"
	"strings"

	hexagonal "github.com/lex00/hexagonal-serverless-go"
)

// Options configures schema validation.
type Options struct {
	// Strict reports properties missing from the schema as warnings.
	Strict bool
}

// Result contains schema validation results.
type Result struct {
	Valid    bool
	Errors   []hexagonal.SchemaError
	Warnings []hexagonal.SchemaError
}

// Messages formats a list of schema errors.
func Messages(errs []hexagonal.SchemaError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.String()
	}
	return out
}

// ValidateTemplate validates a CloudFormation template against known schemas.
// Resources are visited in logical ID order so results are stable.
func ValidateTemplate(template *hexagonal.Template, opts Options) *Result {
	result := &Result{Valid: true}

	names := make([]string, 0, len(template.Resources))
	for name := range template.Resources {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		errors, warnings := validateResource(name, template.Resources[name], opts)
		result.Errors = append(result.Errors, errors...)
		result.Warnings = append(result.Warnings, warnings...)
	}

	result.Valid = len(result.Errors) == 0
	return result
}

func validateResource(name string, resource hexagonal.ResourceDef, opts Options) ([]hexagonal.SchemaError, []hexagonal.SchemaError) {
	var errors, warnings []hexagonal.SchemaError

	if !isValidResourceType(resource.Type) {
		errors = append(errors, hexagonal.SchemaError{
			Resource: name,
			Property: "Type",
			Message:  fmt.Sprintf("invalid resource type format: %s", resource.Type),
		})
		return errors, warnings
	}

	schema, ok := resourceSchemas[resource.Type]
	if !ok {
		// CloudFormation has far more types than we carry schemas for.
		warnings = append(warnings, hexagonal.SchemaError{
			Resource: name,
			Property: "Type",
			Message:  fmt.Sprintf("unknown resource type: %s (schema not available for validation)", resource.Type),
		})
		return errors, warnings
	}

	for _, required := range schema.Required {
		if _, exists := resource.Properties[required]; !exists {
			errors = append(errors, hexagonal.SchemaError{
				Resource: name,
				Property: required,
				Message:  fmt.Sprintf("missing required property: %s", required),
			})
		}
	}

	props := make([]string, 0, len(resource.Properties))
	for p := range resource.Properties {
		props = append(props, p)
	}
	sort.Strings(props)

	for _, propName := range props {
		propSchema, ok := schema.Properties[propName]
		if !ok {
			if opts.Strict {
				warnings = append(warnings, hexagonal.SchemaError{
					Resource: name,
					Property: propName,
					Message:  fmt.Sprintf("unknown property: %s", propName),
				})
			}
			continue
		}
		errors = append(errors, validateProperty(name, propName, resource.Properties[propName], propSchema)...)
	}

	return errors, warnings
}

// isValidResourceType checks for AWS::Service::Resource or Custom::*.
func isValidResourceType(resourceType string) bool {
	if strings.HasPrefix(resourceType, "Custom::") {
		return true
	}
	parts := strings.Split(resourceType, "::")
	if len(parts) != 3 {
		return false
	}
	return parts[0] == "AWS" && parts[1] != "" && parts[2] != ""
}

func validateProperty(resource, property string, value any, schema PropertySchema) []hexagonal.SchemaError {
	var errors []hexagonal.SchemaError

	if !isValidType(value, schema.Type) {
		errors = append(errors, hexagonal.SchemaError{
			Resource: resource,
			Property: property,
			Message:  fmt.Sprintf("expected type %s", schema.Type),
		})
		return errors
	}

	if n, ok := value.(float64); ok && (schema.Min != 0 || schema.Max != 0) {
		if n < schema.Min || n > schema.Max {
			errors = append(errors, hexagonal.SchemaError{
				Resource: resource,
				Property: property,
				Message:  fmt.Sprintf("value %v out of range [%v, %v]", n, schema.Min, schema.Max),
			})
		}
	}

	if len(schema.AllowedValues) > 0 {
		if strVal, ok := value.(string); ok && !contains(schema.AllowedValues, strVal) {
			errors = append(errors, hexagonal.SchemaError{
				Resource: resource,
				Property: property,
				Message:  fmt.Sprintf("value %q not in allowed values: %v", strVal, schema.AllowedValues),
			})
		}
	}

	return errors
}

// isValidType checks if a value matches the expected type. Intrinsic
// functions always match.
func isValidType(value any, expectedType string) bool {
	if m, ok := value.(map[string]any); ok && len(m) == 1 {
		for key := range m {
			if strings.HasPrefix(key, "Fn::") || key == "Ref" {
				return true
			}
		}
	}

	switch expectedType {
	case "String":
		_, ok := value.(string)
		return ok
	case "Integer":
		switch v := value.(type) {
		case int, int32, int64:
			return true
		case float64:
			return v == float64(int64(v))
		}
		return false
	case "Boolean":
		_, ok := value.(bool)
		return ok
	case "List":
		_, ok := value.([]any)
		return ok
	case "Map":
		_, ok := value.(map[string]any)
		return ok
	default:
		return true
	}
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
