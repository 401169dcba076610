// Package bundle assembles deployable function bundles from a project's
// source tree: shared code is built once into dist/shared and merged into
// every dist/functions/<name> directory, and manifest installers fill in
// third-party dependencies.
package bundle

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// ConfigFile is the optional layout override at the project root.
	ConfigFile = "bundle.yaml"
	// MarkerFile marks the project root and is copied into every bundle.
	MarkerFile = ".project-root"
)

// DefaultExtensions lists the source file extensions copied into bundles.
var DefaultExtensions = []string{".go", ".mod", ".sum", ".py", ".json", ".opml", ".yaml", ".yml"}

// Layout locates the source and output trees of a project. Relative paths
// are resolved against Root.
type Layout struct {
	Root       string   `yaml:"-"`
	Functions  string   `yaml:"functions"`
	Shared     string   `yaml:"shared"`
	Dist       string   `yaml:"dist"`
	Extensions []string `yaml:"extensions"`
	// Installers replaces the default installers when set.
	Installers []InstallerConfig `yaml:"installers"`
}

// InstallerConfig declares a command installer in bundle.yaml.
type InstallerConfig struct {
	Manifest      string            `yaml:"manifest"`
	Command       []string          `yaml:"command"`
	Dir           string            `yaml:"dir"`
	Env           map[string]string `yaml:"env"`
	FunctionsOnly bool              `yaml:"functions_only"`
}

// DefaultLayout returns the conventional layout rooted at root.
func DefaultLayout(root string) Layout {
	return Layout{
		Root:       root,
		Functions:  filepath.Join("src", "functions"),
		Shared:     filepath.Join("src", "shared"),
		Dist:       "dist",
		Extensions: DefaultExtensions,
	}
}

// LoadLayout returns the layout for root, applying bundle.yaml when present.
func LoadLayout(root string) (Layout, error) {
	layout := DefaultLayout(root)

	data, err := os.ReadFile(filepath.Join(root, ConfigFile))
	if errors.Is(err, os.ErrNotExist) {
		return layout, nil
	}
	if err != nil {
		return layout, err
	}

	var override Layout
	if err := yaml.Unmarshal(data, &override); err != nil {
		return layout, fmt.Errorf("parsing %s: %w", ConfigFile, err)
	}

	if override.Functions != "" {
		layout.Functions = override.Functions
	}
	if override.Shared != "" {
		layout.Shared = override.Shared
	}
	if override.Dist != "" {
		layout.Dist = override.Dist
	}
	if len(override.Extensions) > 0 {
		layout.Extensions = override.Extensions
	}
	for _, ic := range override.Installers {
		if ic.Manifest == "" || len(ic.Command) == 0 {
			return layout, fmt.Errorf("%s: installer needs a manifest and a command", ConfigFile)
		}
	}
	layout.Installers = override.Installers
	return layout, nil
}

// FindRoot walks up from start to the first directory holding MarkerFile.
func FindRoot(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, MarkerFile)); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no %s found above %s", MarkerFile, start)
		}
		dir = parent
	}
}

func (l Layout) abs(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(l.Root, p)
}

// FunctionsSource returns the directory holding one subdirectory per function.
func (l Layout) FunctionsSource() string { return l.abs(l.Functions) }

// SharedSource returns the shared code directory.
func (l Layout) SharedSource() string { return l.abs(l.Shared) }

// DistDir returns the output root.
func (l Layout) DistDir() string { return l.abs(l.Dist) }

// DistFunctions returns the directory holding the function bundles.
func (l Layout) DistFunctions() string { return filepath.Join(l.DistDir(), "functions") }

// DistShared returns the built shared tree.
func (l Layout) DistShared() string { return filepath.Join(l.DistDir(), "shared") }

// DistLayers returns the layer output directory.
func (l Layout) DistLayers() string { return filepath.Join(l.DistDir(), "layers") }

// Marker returns the project root marker path.
func (l Layout) Marker() string { return filepath.Join(l.Root, MarkerFile) }
