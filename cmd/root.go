package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/cascade/internal/config"
	"github.com/conneroisu/cascade/internal/logging"
	"github.com/conneroisu/cascade/internal/services"
)

var cfgFile string

var (
	// fs is the filesystem commands operate on.
	fs afero.Fs = afero.NewOsFs()
	// serviceOptions are appended to the options of every service.
	serviceOptions []services.Option
)

// globalBindings maps persistent flags to configuration keys.
var globalBindings = map[string]string{
	"log-level":  "log.level",
	"log-format": "log.format",
	"root":       "workspace.root",
	"plan-file":  "workspace.plan_file",
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cascade",
	Short: "Plan and publish releases of a Cargo workspace",
	Long: `Cascade plans version bumps for the packages of a Cargo workspace and
publishes them to the registry in dependency order.

Workflow:
  cascade plan core               Plan a release of core and everything it affects
  cascade plan --since v1.4.0     Plan releases for packages changed since a tag
  cascade apply                   Rewrite manifests to the planned versions
  cascade apply --publish         Rewrite manifests and publish in batches

Other commands:
  cascade check                   Lint the workspace and validate the plan
  cascade status                  Compare local versions with the registry
  cascade changed REF             List packages changed since REF

The plan is stored in Plan.toml and may be edited by hand between plan and apply.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx. Cancelling ctx stops an
// apply run between publishes.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is .cascade.yml, can also use CASCADE_CONFIG_FILE env var)")
	flags.StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")
	flags.String("root", ".", "workspace root directory")
	flags.String("plan-file", "Plan.toml", "plan file, relative to the workspace root")
}

// initConfig selects the configuration file.
//
// Configuration Loading Priority (highest to lowest):
//  1. --config flag: Explicitly specified config file path
//  2. CASCADE_CONFIG_FILE environment variable: Custom config file path
//  3. Default: .cascade.yml in current directory
//
// A missing default file is not an error; defaults apply.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("CASCADE_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".cascade")
	}

	// CASCADE_APPLY_BATCH_SIZE overrides apply.batch_size.
	viper.SetEnvPrefix("CASCADE")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setup binds the command's flags, loads the configuration and builds the
// logger.
func setup(cmd *cobra.Command, bindings map[string]string) (*config.Config, logging.Logger, error) {
	if err := bindFlags(cmd, globalBindings); err != nil {
		return nil, nil, err
	}
	if err := bindFlags(cmd, bindings); err != nil {
		return nil, nil, err
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	})
	return cfg, logger, nil
}

func options(logger logging.Logger, extra ...services.Option) []services.Option {
	opts := append([]services.Option{services.WithLogger(logger)}, extra...)
	return append(opts, serviceOptions...)
}
