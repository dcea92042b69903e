package registry

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/conneroisu/cascade/internal/errors"
	"github.com/conneroisu/cascade/internal/logging"
	"github.com/conneroisu/cascade/internal/types"
)

// NamePlaceholder is replaced by the package name in publish arguments.
const NamePlaceholder = "{name}"

// DefaultPublishCommand publishes one workspace member with cargo.
var DefaultPublishCommand = []string{"cargo", "publish", "--package", NamePlaceholder, "--no-verify"}

// CommandPublisher publishes by running an external command in the
// workspace root.
type CommandPublisher struct {
	command    []string
	dryRunArgs []string
	tokenEnv   string
	dir        string
	allowed    map[string]bool
	logger     logging.Logger
}

// CommandConfig configures a CommandPublisher.
type CommandConfig struct {
	Command    []string
	DryRunArgs []string
	// TokenEnv names the variable the token is exported as for the command.
	TokenEnv string
	Dir      string
	// Allowed lists the executables that may be run. Defaults to cargo.
	Allowed []string
}

// NewCommandPublisher creates a publisher.
func NewCommandPublisher(cfg CommandConfig, logger logging.Logger) *CommandPublisher {
	if len(cfg.Command) == 0 {
		cfg.Command = DefaultPublishCommand
	}
	if cfg.DryRunArgs == nil {
		cfg.DryRunArgs = []string{"--dry-run"}
	}
	if cfg.TokenEnv == "" {
		cfg.TokenEnv = "CARGO_REGISTRY_TOKEN"
	}
	if len(cfg.Allowed) == 0 {
		cfg.Allowed = []string{"cargo"}
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	allowed := make(map[string]bool, len(cfg.Allowed))
	for _, a := range cfg.Allowed {
		allowed[a] = true
	}
	return &CommandPublisher{
		command:    cfg.Command,
		dryRunArgs: cfg.DryRunArgs,
		tokenEnv:   cfg.TokenEnv,
		dir:        cfg.Dir,
		allowed:    allowed,
		logger:     logger.WithComponent("publisher"),
	}
}

// Args returns the argument list for publishing name, without the executable.
func (c *CommandPublisher) Args(name string, dryRun bool) []string {
	args := make([]string, 0, len(c.command)+len(c.dryRunArgs))
	for _, a := range c.command[1:] {
		args = append(args, strings.ReplaceAll(a, NamePlaceholder, name))
	}
	if dryRun {
		args = append(args, c.dryRunArgs...)
	}
	return args
}

// Publish runs the publish command for name.
func (c *CommandPublisher) Publish(ctx context.Context, name string, opts types.PublishOptions) error {
	args := c.Args(name, opts.DryRun)
	if err := c.validate(args); err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, c.command[0], args...)
	cmd.Dir = c.dir
	cmd.Env = os.Environ()
	if opts.Token != "" {
		cmd.Env = append(cmd.Env, c.tokenEnv+"="+opts.Token)
	}

	c.logger.Debug(ctx, "Running publish command", "package", name, "command", c.command[0], "args", strings.Join(args, " "))
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("publish of %s interrupted: %w", name, ctx.Err())
		}
		return fmt.Errorf("%s failed: %w\nOutput: %s", c.command[0], err,
			logging.Redact(strings.TrimSpace(string(output)), opts.Token))
	}
	return nil
}

// validate rejects executables outside the allowlist and arguments that
// carry shell metacharacters.
func (c *CommandPublisher) validate(args []string) error {
	if !c.allowed[c.command[0]] {
		return errors.NewValidationError(errors.ErrCodeCommandRejected,
			"publish command not allowed: "+c.command[0])
	}
	for _, a := range args {
		if strings.ContainsAny(a, ";&|`$<>\n\\") {
			return errors.NewValidationError(errors.ErrCodeCommandRejected,
				fmt.Sprintf("invalid argument %q", a))
		}
	}
	return nil
}
