// Package scaffold generates new projects from the embedded skeleton.
//
// Generation runs in three steps: Validate checks the inputs before anything
// is written, the skeleton is rendered with text/template, and a post step
// creates the dist directories, drops the example when it is not wanted and
// records the initial git commit.
package scaffold

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"github.com/lex00/hexagonal-serverless-go/internal/logging"
)

//go:embed all:skeleton
var skeleton embed.FS

const skeletonRoot = "skeleton"

// CommitMessage is the message of the generated project's first commit.
const CommitMessage = "Initial commit from hexagonal template"

// DefaultGoVersion is the go directive written to generated go.mod files.
const DefaultGoVersion = "1.24"

var (
	validName    = regexp.MustCompile(`^[a-zA-Z][-a-zA-Z0-9_]+$`)
	validVersion = regexp.MustCompile(`^\d+\.\d+$`)
)

// exampleFiles are removed when the example is not included.
var exampleFiles = []string{
	"src/functions/hello_world",
	"src/shared/models/greeting.go",
	"src/shared/ports/greeting_store.go",
	"src/shared/domain/services/greeting_service.go",
	"src/shared/adapters/dynamodb_greeting_store.go",
	"tests/integration/hello_world_test.go",
}

// Options configures Generate.
type Options struct {
	// Name is the project name and directory.
	Name      string
	GoVersion string
	Region    string
	// Dir is the parent directory; empty means the working directory.
	Dir            string
	IncludeExample bool
	NoGit          bool
}

// Validate checks the project name and Go version.
func Validate(opts Options) error {
	if !validName.MatchString(opts.Name) {
		return fmt.Errorf("%q is not a valid project name: it must start with a letter and contain only letters, numbers, hyphens, and underscores", opts.Name)
	}
	if !validVersion.MatchString(opts.GoVersion) {
		return fmt.Errorf("%q is not a valid Go version: use the format X.Y (e.g., 1.24)", opts.GoVersion)
	}
	return nil
}

// GitRunner runs git in a directory.
type GitRunner interface {
	Git(ctx context.Context, dir string, args ...string) error
}

// ExecGit runs the git binary.
type ExecGit struct{}

// Git implements GitRunner.
func (ExecGit) Git(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(out.String()))
	}
	return nil
}

// Generator renders projects.
type Generator struct {
	git GitRunner
	log *zap.Logger
}

// New returns a Generator. A nil git runner uses ExecGit.
func New(git GitRunner, log *zap.Logger) *Generator {
	if git == nil {
		git = ExecGit{}
	}
	return &Generator{git: git, log: logging.OrNop(log)}
}

// Generate creates the project and returns its path. Nothing is written when
// validation fails or the directory already exists.
func (g *Generator) Generate(ctx context.Context, opts Options) (string, error) {
	if opts.GoVersion == "" {
		opts.GoVersion = DefaultGoVersion
	}
	if opts.Region == "" {
		opts.Region = "eu-west-1"
	}
	if err := Validate(opts); err != nil {
		return "", err
	}

	dir := filepath.Join(opts.Dir, opts.Name)
	if _, err := os.Stat(dir); err == nil {
		return "", fmt.Errorf("project already exists: %s", dir)
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	g.log.Info("creating project", zap.String("name", opts.Name), zap.String("go", opts.GoVersion))

	if err := render(dir, opts); err != nil {
		return "", err
	}
	if err := g.post(ctx, dir, opts); err != nil {
		return dir, err
	}
	return dir, nil
}

// Files lists the skeleton's output paths, slash-separated and sorted.
func Files() ([]string, error) {
	var files []string
	err := fs.WalkDir(skeleton, skeletonRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		files = append(files, outputPath(p))
		return nil
	})
	return files, err
}

func outputPath(p string) string {
	return strings.TrimSuffix(strings.TrimPrefix(p, skeletonRoot+"/"), ".tmpl")
}

func render(dir string, opts Options) error {
	return fs.WalkDir(skeleton, skeletonRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		src, err := skeleton.ReadFile(p)
		if err != nil {
			return err
		}
		tmpl, err := template.New(path.Base(p)).Parse(string(src))
		if err != nil {
			return fmt.Errorf("parsing %s: %w", p, err)
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, opts); err != nil {
			return fmt.Errorf("rendering %s: %w", p, err)
		}

		target := filepath.Join(dir, filepath.FromSlash(outputPath(p)))
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		return os.WriteFile(target, buf.Bytes(), 0644)
	})
}

func (g *Generator) post(ctx context.Context, dir string, opts Options) error {
	for _, d := range []string{"functions", "layers", "shared"} {
		if err := os.MkdirAll(filepath.Join(dir, "dist", d), 0755); err != nil {
			return err
		}
	}

	if !opts.IncludeExample {
		for _, f := range exampleFiles {
			if err := os.RemoveAll(filepath.Join(dir, filepath.FromSlash(f))); err != nil {
				return err
			}
		}
	}

	if opts.NoGit {
		return nil
	}
	for _, args := range [][]string{
		{"init"},
		{"add", "."},
		{"commit", "-m", CommitMessage},
	} {
		if err := g.git.Git(ctx, dir, args...); err != nil {
			g.log.Error("git step failed", zap.Strings("args", args), zap.Error(err))
			return err
		}
	}
	return nil
}
