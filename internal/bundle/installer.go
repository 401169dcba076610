package bundle

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// Job is one installer run.
type Job struct {
	// Manifest is the dependency manifest path, e.g. requirements.txt.
	Manifest string
	// Source is the directory the manifest was found in.
	Source string
	// Target is the bundle directory dependencies are installed into.
	Target string
	// Shared is set when building dist/shared rather than a function.
	Shared bool
}

// Installer installs the dependencies named by one kind of manifest.
type Installer interface {
	// Manifest returns the manifest file name the installer handles.
	Manifest() string
	Install(ctx context.Context, job Job) error
}

// InstallError reports a failed installer run.
type InstallError struct {
	Manifest string
	Target   string
	Output   string
	Err      error
}

func (e *InstallError) Error() string {
	msg := fmt.Sprintf("installing %s into %s: %v", e.Manifest, e.Target, e.Err)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += "\n" + out
	}
	return msg
}

func (e *InstallError) Unwrap() error { return e.Err }

// LambdaPlatform is the platform dependencies are installed for.
const LambdaPlatform = "x86_64-unknown-linux-gnu"

// CommandInstaller runs an external command. Command, Dir and Env values may
// use the placeholders {manifest}, {source}, {target} and {platform}.
type CommandInstaller struct {
	ManifestName string
	Command      []string
	// Dir is the working directory; empty runs in the current directory.
	Dir string
	Env map[string]string
	// FunctionsOnly skips the installer for the shared tree.
	FunctionsOnly bool
	Platform      string
}

// Manifest implements Installer.
func (c *CommandInstaller) Manifest() string { return c.ManifestName }

// Install implements Installer.
func (c *CommandInstaller) Install(ctx context.Context, job Job) error {
	if job.Shared && c.FunctionsOnly {
		return nil
	}
	if len(c.Command) == 0 {
		return &InstallError{Manifest: job.Manifest, Target: job.Target, Err: fmt.Errorf("no command configured")}
	}

	platform := c.Platform
	if platform == "" {
		platform = LambdaPlatform
	}
	r := strings.NewReplacer(
		"{manifest}", job.Manifest,
		"{source}", job.Source,
		"{target}", job.Target,
		"{platform}", platform,
	)

	args := make([]string, len(c.Command))
	for i, a := range c.Command {
		args[i] = r.Replace(a)
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	if c.Dir != "" {
		cmd.Dir = r.Replace(c.Dir)
	}
	if len(c.Env) > 0 {
		keys := make([]string, 0, len(c.Env))
		for k := range c.Env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		cmd.Env = os.Environ()
		for _, k := range keys {
			cmd.Env = append(cmd.Env, k+"="+r.Replace(c.Env[k]))
		}
	}

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return &InstallError{Manifest: job.Manifest, Target: job.Target, Output: out.String(), Err: err}
	}
	return nil
}

// PythonInstaller installs requirements.txt with uv for the Lambda platform.
func PythonInstaller() *CommandInstaller {
	return &CommandInstaller{
		ManifestName: "requirements.txt",
		Command: []string{
			"uv", "pip", "install",
			"-r", "{manifest}",
			"--target", "{target}",
			"--no-cache-dir", "--quiet",
			"--python-platform", "{platform}",
		},
	}
}

// GoInstaller compiles a Go function into the bootstrap binary the
// provided.al2023 runtime executes. The build runs with -mod=mod so that a
// function without a go.sum resolves and records its module checksums.
func GoInstaller() *CommandInstaller {
	return &CommandInstaller{
		ManifestName:  "go.mod",
		Command:       []string{"go", "build", "-mod=mod", "-tags", "lambda.norpc", "-trimpath", "-o", filepath.Join("{target}", "bootstrap"), "."},
		Dir:           "{target}",
		Env:           map[string]string{"GOOS": "linux", "GOARCH": "amd64", "CGO_ENABLED": "0"},
		FunctionsOnly: true,
	}
}

// DefaultInstallers returns the installers used when bundle.yaml declares none.
func DefaultInstallers() []Installer {
	return []Installer{PythonInstaller(), GoInstaller()}
}

// Installers converts bundle.yaml installer entries.
func Installers(configs []InstallerConfig) []Installer {
	out := make([]Installer, 0, len(configs))
	for _, ic := range configs {
		out = append(out, &CommandInstaller{
			ManifestName:  ic.Manifest,
			Command:       ic.Command,
			Dir:           ic.Dir,
			Env:           ic.Env,
			FunctionsOnly: ic.FunctionsOnly,
		})
	}
	return out
}
