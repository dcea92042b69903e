// Package config loads cascade settings with Viper from `.cascade.yml`,
// CASCADE_ environment variables and command-line flags.
//
// Settings are grouped by concern: where the workspace and plan live, how
// plans are computed, how apply runs publish (concurrency, batching, rate
// limiting and polling), how the registry is reached, where run reports go
// and how logs are written.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/cascade/internal/report"
)

// DefaultTokenEnv is the variable the registry token is read from.
const DefaultTokenEnv = "CASCADE_REGISTRY_TOKEN"

type Config struct {
	Workspace WorkspaceConfig `mapstructure:"workspace"`
	Plan      PlanConfig      `mapstructure:"plan"`
	Apply     ApplyConfig     `mapstructure:"apply"`
	Registry  RegistryConfig  `mapstructure:"registry"`
	Report    ReportConfig    `mapstructure:"report"`
	Log       LogConfig       `mapstructure:"log"`
}

type WorkspaceConfig struct {
	Root     string `mapstructure:"root"`
	PlanFile string `mapstructure:"plan_file"`
}

type PlanConfig struct {
	Seed string `mapstructure:"seed"`
	Pre  string `mapstructure:"pre"`
	// ClassifierCommand runs an API checker; empty treats every change as breaking.
	ClassifierCommand []string `mapstructure:"classifier_command"`
}

type ApplyConfig struct {
	MaxConcurrent       int           `mapstructure:"max_concurrent"`
	BatchSize           int           `mapstructure:"batch_size"`
	BatchDelay          time.Duration `mapstructure:"batch_delay"`
	ParallelBatches     int           `mapstructure:"parallel_batches"`
	PollInterval        time.Duration `mapstructure:"poll_interval"`
	PollTimeout         time.Duration `mapstructure:"poll_timeout"`
	SkipDependents      bool          `mapstructure:"skip_dependents"`
	SnapshotConcurrency int           `mapstructure:"snapshot_concurrency"`
}

type RegistryConfig struct {
	IndexURL        string        `mapstructure:"index_url"`
	PublishCommand  []string      `mapstructure:"publish_command"`
	DryRunArgs      []string      `mapstructure:"dry_run_args"`
	AllowedCommands []string      `mapstructure:"allowed_commands"`
	TokenEnv        string        `mapstructure:"token_env"`
	CommandTokenEnv string        `mapstructure:"command_token_env"`
	Timeout         time.Duration `mapstructure:"timeout"`
	UserAgent       string        `mapstructure:"user_agent"`
}

type ReportConfig struct {
	Path   string              `mapstructure:"path"`
	Object report.ObjectConfig `mapstructure:"object"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("workspace.root", ".")
	v.SetDefault("workspace.plan_file", "Plan.toml")
	v.SetDefault("plan.seed", "0.1.0")
	v.SetDefault("apply.max_concurrent", 4)
	v.SetDefault("apply.batch_size", 10)
	v.SetDefault("apply.batch_delay", 10*time.Second)
	v.SetDefault("apply.parallel_batches", 1)
	v.SetDefault("apply.poll_interval", 5*time.Second)
	v.SetDefault("apply.poll_timeout", 2*time.Minute)
	v.SetDefault("apply.snapshot_concurrency", 8)
	v.SetDefault("registry.index_url", "https://index.crates.io")
	v.SetDefault("registry.publish_command", []string{"cargo", "publish", "--package", "{name}", "--no-verify"})
	v.SetDefault("registry.dry_run_args", []string{"--dry-run"})
	v.SetDefault("registry.allowed_commands", []string{"cargo"})
	v.SetDefault("registry.token_env", DefaultTokenEnv)
	v.SetDefault("registry.command_token_env", "CARGO_REGISTRY_TOKEN")
	v.SetDefault("registry.timeout", 30*time.Second)
	v.SetDefault("registry.user_agent", "cascade (https://github.com/conneroisu/cascade)")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads the global Viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads v, filling unset keys with defaults.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Comma separated env values arrive as one element.
	config.Registry.PublishCommand = splitFields(config.Registry.PublishCommand)
	config.Registry.DryRunArgs = splitFields(config.Registry.DryRunArgs)
	config.Plan.ClassifierCommand = splitFields(config.Plan.ClassifierCommand)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

func splitFields(args []string) []string {
	if len(args) == 1 && strings.ContainsAny(args[0], " \t") {
		return strings.Fields(args[0])
	}
	return args
}

// PlanPath returns the plan file location.
func (c *Config) PlanPath() string {
	if filepath.IsAbs(c.Workspace.PlanFile) {
		return c.Workspace.PlanFile
	}
	return filepath.Join(c.Workspace.Root, c.Workspace.PlanFile)
}

// validateConfig rejects values that would make a run unsafe or impossible.
func validateConfig(config *Config) error {
	if err := validatePath(config.Workspace.Root); err != nil {
		return fmt.Errorf("workspace root: %w", err)
	}
	if err := validatePath(config.Workspace.PlanFile); err != nil {
		return fmt.Errorf("plan file: %w", err)
	}
	if err := validateApplyConfig(&config.Apply); err != nil {
		return fmt.Errorf("apply config: %w", err)
	}
	if err := validateRegistryConfig(&config.Registry); err != nil {
		return fmt.Errorf("registry config: %w", err)
	}
	if config.Report.Object.Enabled() {
		if err := config.Report.Object.Validate(); err != nil {
			return fmt.Errorf("report config: %w", err)
		}
	}
	return nil
}

func validateApplyConfig(config *ApplyConfig) error {
	if config.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", config.MaxConcurrent)
	}
	if config.ParallelBatches < 1 {
		return fmt.Errorf("parallel_batches must be at least 1, got %d", config.ParallelBatches)
	}
	if config.BatchDelay < 0 || config.PollInterval < 0 || config.PollTimeout < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	if config.PollTimeout > 0 && config.PollInterval == 0 {
		return fmt.Errorf("poll_interval is required when poll_timeout is set")
	}
	return nil
}

func validateRegistryConfig(config *RegistryConfig) error {
	if len(config.PublishCommand) == 0 {
		return fmt.Errorf("publish_command cannot be empty")
	}
	if err := validateCommand(config.PublishCommand, config.AllowedCommands); err != nil {
		return fmt.Errorf("publish_command: %w", err)
	}
	if config.TokenEnv == "" {
		return fmt.Errorf("token_env cannot be empty")
	}
	return nil
}

// validateCommand checks the executable against the allowlist and rejects
// shell metacharacters in arguments.
func validateCommand(argv, allowed []string) error {
	ok := false
	for _, a := range allowed {
		if a == argv[0] {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("command '%s' is not allowed (allowed: %s)", argv[0], strings.Join(allowed, ", "))
	}
	dangerousChars := []string{";", "&", "|", "$", "`", "<", ">", "\\"}
	for _, arg := range argv[1:] {
		for _, char := range dangerousChars {
			if strings.Contains(arg, char) {
				return fmt.Errorf("argument %q contains dangerous character: %s", arg, char)
			}
		}
	}
	return nil
}

// validatePath validates a file path for security
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}
	dangerousChars := []string{";", "&", "|", "$", "`", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(path, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}
	return nil
}
