package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/cascade/internal/version"
)

var (
	versionFormat string
	versionShort  bool
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display version information for cascade including:

- Semantic version number
- Git commit hash
- Build timestamp
- Go version used for compilation
- Target platform (OS/architecture)

Examples:
  cascade version               # Show version and commit
  cascade version --short       # Show the version only
  cascade version --format json # Output as JSON`,
	Args: cobra.NoArgs,
	RunE: runVersionCommand,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().StringVarP(&versionFormat, "format", "f", "text", "Output format (text, json, yaml)")
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Show short version only")
}

func runVersionCommand(cmd *cobra.Command, args []string) error {
	info := version.Get()
	out := cmd.OutOrStdout()

	switch versionFormat {
	case "json", "yaml":
		return writeStructured(out, versionFormat, info)
	case "text":
		if versionShort {
			fmt.Fprintln(out, info.Version)
			return nil
		}
		fmt.Fprintf(out, "cascade %s\n", info.Short())
		if !info.IsRelease() {
			fmt.Fprintln(out, faintStyle.Render(info.String()))
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s (supported: text, json, yaml)", versionFormat)
	}
}
