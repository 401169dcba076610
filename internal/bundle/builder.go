package bundle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	hexagonal "github.com/lex00/hexagonal-serverless-go"
	"github.com/lex00/hexagonal-serverless-go/internal/logging"
)

// Builder produces the dist tree for a Layout.
type Builder struct {
	layout     Layout
	installers []Installer
	log        *zap.Logger
}

// NewBuilder returns a Builder. With no installers it uses the ones the
// layout declares, or DefaultInstallers.
func NewBuilder(layout Layout, log *zap.Logger, installers ...Installer) *Builder {
	if len(installers) == 0 {
		if len(layout.Installers) > 0 {
			installers = Installers(layout.Installers)
		} else {
			installers = DefaultInstallers()
		}
	}
	if len(layout.Extensions) == 0 {
		layout.Extensions = DefaultExtensions
	}
	return &Builder{
		layout:     layout,
		installers: installers,
		log:        logging.OrNop(log),
	}
}

// Layout returns the builder's layout.
func (b *Builder) Layout() Layout { return b.layout }

// BuildAll cleans the dist tree, builds the shared tree, then every function
// directory in name order. The first failure stops the build; partial output
// is left in place.
func (b *Builder) BuildAll(ctx context.Context) (*hexagonal.BundleResult, error) {
	result := &hexagonal.BundleResult{}
	fail := func(err error) (*hexagonal.BundleResult, error) {
		result.Errors = append(result.Errors, err.Error())
		b.log.Error("bundle failed", zap.Error(err))
		return result, err
	}

	b.log.Info("cleaning dist directories", zap.String("dist", b.layout.DistDir()))
	for _, dir := range []string{b.layout.DistFunctions(), b.layout.DistShared()} {
		if err := os.RemoveAll(dir); err != nil {
			return fail(err)
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fail(err)
		}
	}

	if err := b.BuildShared(ctx); err != nil {
		return fail(err)
	}
	result.Shared = b.layout.DistShared()

	names, err := b.FunctionNames()
	if err != nil {
		return fail(err)
	}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		if err := b.BuildFunction(ctx, name); err != nil {
			return fail(err)
		}
		result.Functions = append(result.Functions, name)
	}

	result.Success = true
	return result, nil
}

// FunctionNames lists the non-hidden function directories, sorted.
func (b *Builder) FunctionNames() ([]string, error) {
	entries, err := os.ReadDir(b.layout.FunctionsSource())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading functions: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && !hidden(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// BuildShared copies the shared source to dist/shared/shared and installs
// any shared manifest into dist/shared.
func (b *Builder) BuildShared(ctx context.Context) error {
	src := b.layout.SharedSource()
	dist := b.layout.DistShared()

	b.log.Info("building shared dependencies")
	if err := os.RemoveAll(dist); err != nil {
		return err
	}
	if err := os.MkdirAll(dist, 0755); err != nil {
		return err
	}
	if !exists(src) {
		return nil
	}

	if err := copyTree(src, filepath.Join(dist, "shared")); err != nil {
		return fmt.Errorf("copying shared code: %w", err)
	}
	if err := b.install(ctx, src, dist, true); err != nil {
		return err
	}

	b.log.Info("built shared dependencies")
	return nil
}

// BuildFunction builds dist/functions/<name> from src/functions/<name>.
// BuildShared must have run first for shared dependencies to be merged.
func (b *Builder) BuildFunction(ctx context.Context, name string) error {
	src := filepath.Join(b.layout.FunctionsSource(), name)
	dist := filepath.Join(b.layout.DistFunctions(), name)
	log := b.log.With(zap.String("function", name))

	info, err := os.Stat(src)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("function source not found: %s", src)
	}

	log.Info("building function")
	if err := os.RemoveAll(dist); err != nil {
		return err
	}
	if err := os.MkdirAll(dist, 0755); err != nil {
		return err
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Type().IsRegular() && hasExtension(e.Name(), b.layout.Extensions) {
			if err := copyFile(filepath.Join(src, e.Name()), filepath.Join(dist, e.Name())); err != nil {
				return fmt.Errorf("copying %s: %w", e.Name(), err)
			}
		}
	}

	if exists(b.layout.Marker()) {
		if err := copyFile(b.layout.Marker(), filepath.Join(dist, MarkerFile)); err != nil {
			return err
		}
	}

	if exists(b.layout.SharedSource()) {
		log.Debug("merging shared code")
		if err := b.mergeShared(dist); err != nil {
			return fmt.Errorf("merging shared code into %s: %w", name, err)
		}
	}

	if err := b.install(ctx, src, dist, false); err != nil {
		return err
	}

	log.Info("built function", zap.String("dist", dist))
	return nil
}

// mergeShared copies shared packages into the function root so they import
// without the shared prefix, then adds the installed shared dependencies.
func (b *Builder) mergeShared(dist string) error {
	src := b.layout.SharedSource()
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, e := range entries {
		name := e.Name()
		switch {
		case hidden(name) || name == "__pycache__":
		case e.IsDir():
			if err := replaceTree(filepath.Join(src, name), filepath.Join(dist, name)); err != nil {
				return err
			}
		case e.Type().IsRegular() && hasExtension(name, b.layout.Extensions):
			if err := copyFile(filepath.Join(src, name), filepath.Join(dist, name)); err != nil {
				return err
			}
		}
	}

	installed := b.layout.DistShared()
	entries, err = os.ReadDir(installed)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		name := e.Name()
		switch {
		case name == "shared" || hidden(name):
		case e.IsDir():
			if err := replaceTree(filepath.Join(installed, name), filepath.Join(dist, name)); err != nil {
				return err
			}
		case e.Type().IsRegular():
			if err := copyFile(filepath.Join(installed, name), filepath.Join(dist, name)); err != nil {
				return err
			}
		}
	}
	return nil
}

// install runs every installer whose manifest is present in src.
func (b *Builder) install(ctx context.Context, src, target string, shared bool) error {
	for _, in := range b.installers {
		manifest := filepath.Join(src, in.Manifest())
		if !exists(manifest) {
			continue
		}
		b.log.Debug("installing dependencies",
			zap.String("manifest", manifest),
			zap.String("target", target))

		err := in.Install(ctx, Job{Manifest: manifest, Source: src, Target: target, Shared: shared})
		if err != nil {
			if _, ok := err.(*InstallError); !ok {
				err = &InstallError{Manifest: manifest, Target: target, Err: err}
			}
			return fmt.Errorf("bundle: %w", err)
		}
	}
	return nil
}
