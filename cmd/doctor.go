package cmd

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/cascade/internal/config"
	"github.com/conneroisu/cascade/internal/services"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose the release environment",
	Long: `Diagnose whether this machine can plan and publish the workspace.

The doctor command checks:

- Configuration loading and risky settings
- Workspace manifests
- Tool availability (git and the publish command)
- The registry token
- Registry reachability

Examples:
  cascade doctor                    # Full diagnosis
  cascade doctor --verbose          # Include details
  cascade doctor --format json      # Output as JSON for tooling`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

var (
	doctorVerbose bool
	doctorFormat  string

	lookPath = exec.LookPath
)

// Diagnostic statuses.
const (
	diagOK      = "ok"
	diagWarning = "warning"
	diagError   = "error"
)

// DiagnosticResult represents the result of a diagnostic check
type DiagnosticResult struct {
	Name       string         `json:"name" yaml:"name"`
	Category   string         `json:"category" yaml:"category"`
	Status     string         `json:"status" yaml:"status"`
	Message    string         `json:"message" yaml:"message"`
	Suggestion string         `json:"suggestion,omitempty" yaml:"suggestion,omitempty"`
	Details    map[string]any `json:"details,omitempty" yaml:"details,omitempty"`
}

// DoctorReport represents the complete diagnostic report
type DoctorReport struct {
	Timestamp   time.Time          `json:"timestamp" yaml:"timestamp"`
	Environment map[string]string  `json:"environment" yaml:"environment"`
	Results     []DiagnosticResult `json:"results" yaml:"results"`
	Summary     ReportSummary      `json:"summary" yaml:"summary"`
}

// ReportSummary counts results by status.
type ReportSummary struct {
	Total    int `json:"total" yaml:"total"`
	OK       int `json:"ok" yaml:"ok"`
	Warnings int `json:"warnings" yaml:"warnings"`
	Errors   int `json:"errors" yaml:"errors"`
}

// doctorEnv is what the checks inspect.
type doctorEnv struct {
	cfg *config.Config
	svc *services.WorkspaceService
}

type doctorCheck func(ctx context.Context, env *doctorEnv) DiagnosticResult

func init() {
	rootCmd.AddCommand(doctorCmd)

	doctorCmd.Flags().BoolVarP(&doctorVerbose, "verbose", "v", false, "Show diagnostic details")
	doctorCmd.Flags().StringVarP(&doctorFormat, "format", "f", "table", "Output format (table|json|yaml)")
}

func runDoctor(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if doctorFormat != "table" && doctorFormat != "json" && doctorFormat != "yaml" {
		return fmt.Errorf("unsupported format: %s (supported: table, json, yaml)", doctorFormat)
	}

	cfg, logger, err := setup(cmd, nil)
	if err != nil {
		return err
	}
	svc, err := services.NewWorkspaceService(cfg, fs, options(logger)...)
	if err != nil {
		return err
	}

	report := diagnose(cmd.Context(), &doctorEnv{cfg: cfg, svc: svc})
	if doctorFormat != "table" {
		return writeStructured(out, doctorFormat, report)
	}

	fmt.Fprintln(out, titleStyle.Render("Cascade environment doctor"))
	fmt.Fprintln(out)
	for _, result := range report.Results {
		displayResult(out, result)
	}
	displaySummary(out, report.Summary)
	if report.Summary.Errors > 0 {
		return fmt.Errorf("doctor found %d errors", report.Summary.Errors)
	}
	return nil
}

func diagnose(ctx context.Context, env *doctorEnv) *DoctorReport {
	report := &DoctorReport{
		Timestamp: time.Now(),
		Environment: map[string]string{
			"os":         runtime.GOOS,
			"arch":       runtime.GOARCH,
			"go_version": runtime.Version(),
			"root":       env.cfg.Workspace.Root,
			"plan":       env.cfg.PlanPath(),
		},
	}

	checks := []doctorCheck{
		checkConfiguration,
		checkWorkspace,
		checkGit,
		checkPublishCommand,
		checkToken,
		checkRegistry,
	}
	for _, check := range checks {
		report.Results = append(report.Results, check(ctx, env))
	}
	report.Summary = calculateSummary(report.Results)
	return report
}

func checkConfiguration(ctx context.Context, env *doctorEnv) DiagnosticResult {
	result := DiagnosticResult{Name: "Configuration", Category: "Configuration", Status: diagOK,
		Message: "Configuration is valid"}

	validation := config.ValidateConfigWithDetails(env.cfg)
	if validation.HasWarnings() {
		result.Status = diagWarning
		result.Message = fmt.Sprintf("%d risky settings", len(validation.Warnings))
		result.Suggestion = "Run 'cascade config validate' for details"
	}
	result.Details = map[string]any{
		"max_concurrent": env.cfg.Apply.MaxConcurrent,
		"batch_size":     env.cfg.Apply.BatchSize,
		"batch_delay":    env.cfg.Apply.BatchDelay.String(),
		"index_url":      env.cfg.Registry.IndexURL,
	}
	return result
}

func checkWorkspace(ctx context.Context, env *doctorEnv) DiagnosticResult {
	result := DiagnosticResult{Name: "Workspace", Category: "Workspace", Status: diagOK}

	pkgs, err := env.svc.Packages(ctx)
	if err != nil {
		result.Status = diagError
		result.Message = err.Error()
		result.Suggestion = "Point --root at the directory holding the workspace Cargo.toml"
		return result
	}
	publishable := 0
	for _, p := range pkgs {
		if p.Publishable {
			publishable++
		}
	}
	result.Message = fmt.Sprintf("%d packages, %d publishable", len(pkgs), publishable)
	return result
}

func checkTool(name, category, suggestion string) DiagnosticResult {
	result := DiagnosticResult{Name: name, Category: category, Status: diagOK}
	path, err := lookPath(name)
	if err != nil {
		result.Status = diagError
		result.Message = name + " not found in PATH"
		result.Suggestion = suggestion
		return result
	}
	result.Message = "Found " + path
	result.Details = map[string]any{"path": path}
	return result
}

func checkGit(ctx context.Context, env *doctorEnv) DiagnosticResult {
	result := checkTool("git", "Tools", "Install git; 'plan --since' and 'changed' need it")
	if result.Status == diagError {
		result.Status = diagWarning
	}
	return result
}

func checkPublishCommand(ctx context.Context, env *doctorEnv) DiagnosticResult {
	argv := env.cfg.Registry.PublishCommand
	if len(argv) == 0 {
		return DiagnosticResult{Name: "publish command", Category: "Tools", Status: diagError,
			Message: "registry.publish_command is empty"}
	}
	result := checkTool(argv[0], "Tools", "Install the Rust toolchain or change registry.publish_command")
	result.Details = map[string]any{"command": strings.Join(argv, " ")}
	return result
}

func checkToken(ctx context.Context, env *doctorEnv) DiagnosticResult {
	tokenEnv := env.cfg.Registry.TokenEnv
	result := DiagnosticResult{Name: "Registry token", Category: "Credentials", Status: diagOK,
		Message: tokenEnv + " is set"}
	if !env.svc.TokenSet() {
		result.Status = diagWarning
		result.Message = tokenEnv + " is not set"
		result.Suggestion = "Export " + tokenEnv + " before running 'cascade apply --publish'"
	}
	return result
}

func checkRegistry(ctx context.Context, env *doctorEnv) DiagnosticResult {
	result := DiagnosticResult{Name: "Registry", Category: "Network", Status: diagOK}

	rows, err := env.svc.Status(ctx)
	if err != nil {
		result.Status = diagError
		result.Message = err.Error()
		result.Suggestion = "Check network access to " + env.cfg.Registry.IndexURL
		return result
	}
	counts := map[services.State]int{}
	for _, r := range rows {
		counts[r.State]++
	}
	result.Message = fmt.Sprintf("Reachable, %d released, %d unreleased, %d never published",
		counts[services.StateReleased], counts[services.StateUnreleased], counts[services.StateMissing])
	return result
}

func displayResult(w io.Writer, result DiagnosticResult) {
	var icon string
	switch result.Status {
	case diagOK:
		icon = okStyle.Render("✓")
	case diagWarning:
		icon = warnStyle.Render("!")
	default:
		icon = errStyle.Render("✗")
	}

	fmt.Fprintf(w, "%s [%s] %s: %s\n", icon, strings.ToUpper(result.Category), result.Name, result.Message)
	if result.Suggestion != "" {
		fmt.Fprintf(w, "    %s\n", faintStyle.Render(result.Suggestion))
	}
	if doctorVerbose && len(result.Details) > 0 {
		fmt.Fprintf(w, "    %s\n", faintStyle.Render(fmt.Sprintf("%v", result.Details)))
	}
}

func calculateSummary(results []DiagnosticResult) ReportSummary {
	summary := ReportSummary{Total: len(results)}
	for _, result := range results {
		switch result.Status {
		case diagOK:
			summary.OK++
		case diagWarning:
			summary.Warnings++
		case diagError:
			summary.Errors++
		}
	}
	return summary
}

func displaySummary(w io.Writer, summary ReportSummary) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d checks: %d ok, %d warnings, %d errors\n",
		summary.Total, summary.OK, summary.Warnings, summary.Errors)
}
