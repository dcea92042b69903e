package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/cascade/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect cascade configuration",
	Long: `Inspect cascade configuration files and settings.

Examples:
  cascade config validate                    # Validate .cascade.yml in current directory
  cascade config validate --file ci.yml      # Validate a specific file
  cascade config show                        # Show the resolved configuration
  cascade config show --format json          # Show it as JSON`,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate a cascade configuration file for correctness and for settings
that are legal but risky during a release, such as no batch delay or
plain HTTP registry access.

Examples:
  cascade config validate              # Validate .cascade.yml in current directory
  cascade config validate --file ci.yml
  cascade config validate --strict     # Treat warnings as errors`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Display the configuration after loading the file, applying environment
variable overrides and filling defaults. Secrets are masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var (
	configFile   string
	configFormat string
	configStrict bool
)

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)

	configValidateCmd.Flags().
		StringVarP(&configFile, "file", "f", "", "Configuration file to validate (default: .cascade.yml)")
	configValidateCmd.Flags().BoolVar(&configStrict, "strict", false, "Treat warnings as errors")
	AddFlagValidation(configValidateCmd, "file", ValidateFileExists)

	configShowCmd.Flags().StringVar(&configFormat, "format", "yaml", "Output format (yaml, json)")
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	targetFile := configFile
	if targetFile == "" {
		if _, err := os.Stat(".cascade.yml"); err != nil {
			return errors.New("no configuration file found, use --file to specify one")
		}
		targetFile = ".cascade.yml"
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "🔍 Validating configuration file: %s\n", targetFile)

	v := viper.New()
	v.SetConfigFile(targetFile)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read configuration file: %w", err)
	}
	config.SetDefaults(v)

	var cfg config.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to parse configuration: %w", err)
	}

	validation := config.ValidateConfigWithDetails(&cfg)
	if validation.Valid && !validation.HasWarnings() {
		fmt.Fprintln(out, "✅ Configuration is valid!")
		return nil
	}

	fmt.Fprint(out, validation.String())
	if validation.HasErrors() {
		return fmt.Errorf("configuration validation failed with %d errors", len(validation.Errors))
	}
	if configStrict {
		return fmt.Errorf("configuration validation failed in strict mode with %d warnings",
			len(validation.Warnings))
	}
	fmt.Fprintf(out, "✅ Configuration is valid with %d warnings. Use --strict to treat warnings as errors.\n",
		len(validation.Warnings))
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	if configFormat != "yaml" && configFormat != "json" {
		return fmt.Errorf("unsupported format: %s (supported: yaml, json)", configFormat)
	}
	if _, _, err := setup(cmd, nil); err != nil {
		return err
	}

	settings := viper.AllSettings()
	if report, ok := settings["report"].(map[string]any); ok {
		if object, ok := report["object"].(map[string]any); ok {
			if s, _ := object["secret_key"].(string); s != "" {
				object["secret_key"] = "********"
			}
		}
	}
	return writeStructured(cmd.OutOrStdout(), configFormat, settings)
}
