// Package config loads imgship's run configuration from the CI environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/0xa1bed0/imgship/internal/dockerclient"
	"github.com/0xa1bed0/imgship/internal/identity"
	"github.com/0xa1bed0/imgship/internal/pipeline"
	"github.com/adrg/xdg"
	"github.com/caarlos0/env/v11"
)

const appName = "imgship"

var ErrMissingInput = errors.New("missing required input")

// Config is built once per process and passed down explicitly. Hyphenated
// INPUT_ names are how GitHub Actions exposes `with:` inputs.
type Config struct {
	Image        string   `env:"INPUT_IMAGE"`
	Platforms    []string `env:"INPUT_PLATFORMS"`
	Token        string   `env:"INPUT_GITHUB-TOKEN"`
	BuildFor     string   `env:"INPUT_BUILD-FOR" envDefault:"any"`
	MainBranches []string `env:"INPUT_MAIN-BRANCHES"`
	CacheDir     string   `env:"INPUT_CACHE-DIR"`

	Workspace string `env:"GITHUB_WORKSPACE"`
	Ref       string `env:"GITHUB_REF"`

	// GitHubActions switches log output to workflow commands.
	GitHubActions bool `env:"GITHUB_ACTIONS"`

	StateDB      string `env:"IMGSHIP_STATE_DB"`
	WorkflowFile string `env:"IMGSHIP_WORKFLOW_FILE"`
	LogFile      string `env:"IMGSHIP_LOG_FILE"`
}

// Load parses environ (os.Environ format) and fills defaults that do not
// touch the filesystem. Missing required inputs are reported by Validate, not
// here, so commands that need fewer inputs can still load.
func Load(environ []string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: toMap(environ)}); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

func toMap(environ []string) map[string]string {
	m := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		m[k] = v
	}
	return m
}

// normalize trims list inputs and applies defaults. It is safe to call again
// after flags override fields.
func (c *Config) normalize() {
	c.Image = strings.TrimSpace(c.Image)
	c.Platforms = trimList(c.Platforms)
	c.MainBranches = trimList(c.MainBranches)

	if c.BuildFor == "" {
		c.BuildFor = identity.DefaultTarget
	}
	if len(c.MainBranches) == 0 {
		c.MainBranches = slices.Clone(identity.DefaultMainBranches)
	}
	if c.CacheDir == "" {
		c.CacheDir = dockerclient.DefaultCacheDir
	}
	if c.WorkflowFile == "" {
		c.WorkflowFile = pipeline.DefaultWorkflowFile
	}
}

func trimList(in []string) []string {
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Finalize resolves the workspace, falling back to the working directory.
// The state database default is left to StateDBPath so commands that never
// open it create nothing on disk.
func (c *Config) Finalize() error {
	c.normalize()

	if c.Workspace == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("config: workspace: %w", err)
		}
		c.Workspace = wd
	}
	ws, err := filepath.Abs(c.Workspace)
	if err != nil {
		return fmt.Errorf("config: workspace: %w", err)
	}
	c.Workspace = ws
	return nil
}

// StateDBPath returns the configured state database or the XDG default.
func (c Config) StateDBPath() (string, error) {
	if c.StateDB != "" {
		return c.StateDB, nil
	}
	return DefaultStateDBPath()
}

// RequireImage fails when no image name is configured.
func (c Config) RequireImage() error {
	if c.Image == "" {
		return fmt.Errorf("%w: image (INPUT_IMAGE or --image)", ErrMissingInput)
	}
	return nil
}

// Validate checks everything a build needs.
func (c Config) Validate() error {
	var errs []error
	if err := c.RequireImage(); err != nil {
		errs = append(errs, err)
	}
	if c.Token == "" {
		errs = append(errs, fmt.Errorf("%w: github token (INPUT_GITHUB-TOKEN or --github-token)", ErrMissingInput))
	}
	return errors.Join(errs...)
}

func (c Config) Identity() identity.Identity {
	return identity.New(c.Image, c.Ref, c.BuildFor)
}

// DefaultStateDBPath is $XDG_CACHE_HOME/imgship/state.db. Parent directories
// are created.
func DefaultStateDBPath() (string, error) {
	p, err := xdg.CacheFile(filepath.Join(appName, "state.db"))
	if err != nil {
		return "", fmt.Errorf("config: state db path: %w", err)
	}
	return p, nil
}

// String renders the config for debug logs with the token redacted.
func (c Config) String() string {
	token := ""
	if c.Token != "" {
		token = "<redacted>"
	}
	return fmt.Sprintf(
		"image=%q platforms=%v token=%s build-for=%q main-branches=%v cache-dir=%q workspace=%q ref=%q github-actions=%v state-db=%q workflow-file=%q",
		c.Image, c.Platforms, token, c.BuildFor, c.MainBranches, c.CacheDir, c.Workspace, c.Ref, c.GitHubActions, c.StateDB, c.WorkflowFile,
	)
}
