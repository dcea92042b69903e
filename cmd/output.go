package cmd

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/conneroisu/cascade/internal/publish"
	"github.com/conneroisu/cascade/internal/schedule"
	"github.com/conneroisu/cascade/internal/services"
	"github.com/conneroisu/cascade/internal/types"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	faintStyle = lipgloss.NewStyle().Faint(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
)

// printPlan lists the entries that will be published.
func printPlan(w io.Writer, p *types.Plan, path string) {
	var rows [][]string
	for _, e := range p.Entries {
		if !e.Publish {
			continue
		}
		rows = append(rows, []string{e.Name, e.From, e.To, e.Bump.Title(), string(e.Reason)})
	}
	if len(rows) == 0 {
		fmt.Fprintln(w, faintStyle.Render("Nothing to publish."))
		return
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Package", "From", "To", "Bump", "Reason").
		Rows(rows...)
	fmt.Fprintln(w, t.Render())
	fmt.Fprintf(w, "%s %d package(s) planned, written to %s\n", okStyle.Render("✓"), len(rows), path)
}

func stateStyle(s services.State) lipgloss.Style {
	switch s {
	case services.StateReleased:
		return okStyle
	case services.StateUnreleased:
		return warnStyle
	case services.StateMissing:
		return errStyle
	default:
		return faintStyle
	}
}

// printStatus renders the status table.
func printStatus(w io.Writer, rows []services.PackageStatus) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Package", "Local", "Registry", "Planned", "State")
	for _, r := range rows {
		registry := r.Registry
		if registry == "" {
			registry = "-"
		}
		t.Row(r.Name, r.Local, registry, r.Planned, stateStyle(r.State).Render(string(r.State)))
	}
	fmt.Fprintln(w, t.Render())
}

// printFindings lists check findings, fatal ones highlighted.
func printFindings(w io.Writer, findings []services.Finding) {
	if len(findings) == 0 {
		fmt.Fprintln(w, okStyle.Render("✓ No problems found"))
		return
	}
	for _, f := range findings {
		if f.Fatal {
			fmt.Fprintln(w, errStyle.Render("✗ ")+f.String())
		} else {
			fmt.Fprintln(w, warnStyle.Render("! ")+f.String())
		}
	}
}

// printSummary prints the per-package result of an apply run.
func printSummary(w io.Writer, s *publish.Summary) {
	verb := "published"
	if s.DryRun {
		verb = "verified"
	}

	for _, o := range s.Outcomes {
		switch o.Status {
		case publish.StatusFailed:
			fmt.Fprintf(w, "%s %s@%s: %s\n", errStyle.Render("✗"), o.Name, o.Version, o.ErrorText())
		case publish.StatusSkipped:
			fmt.Fprintf(w, "%s %s@%s %s\n", faintStyle.Render("-"), o.Name, o.Version, faintStyle.Render("("+o.Detail+")"))
		}
	}

	line := fmt.Sprintf("%d %s, %d skipped, %d failed in %s",
		s.Published, verb, s.Skipped, s.Failed, s.Duration.Round(time.Millisecond))
	switch {
	case s.Cancelled != nil:
		fmt.Fprintln(w, warnStyle.Render("Cancelled: ")+line)
	case s.Failed > 0:
		fmt.Fprintln(w, errStyle.Render("Finished with failures: ")+line)
	default:
		fmt.Fprintln(w, okStyle.Render("Done: ")+line)
	}
}

// progress prints publish progress as the run advances.
type progress struct {
	mu  sync.Mutex
	out io.Writer
}

var _ publish.Reporter = (*progress)(nil)

func (p *progress) BatchStarted(index, total int, batch schedule.Batch) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "%s %s\n",
		titleStyle.Render(fmt.Sprintf("Batch %d/%d", index+1, total)),
		faintStyle.Render(strings.Join(batch.Names(), ", ")))
}

func (p *progress) PackageDone(o publish.Outcome) {
	if o.Status != publish.StatusPublished {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	mark := okStyle.Render("✓")
	if !o.DryRun && !o.Visible {
		mark = warnStyle.Render("?")
	}
	fmt.Fprintf(p.out, "  %s %s@%s %s\n", mark, o.Name, o.Version,
		faintStyle.Render(o.Duration.Round(time.Millisecond).String()))
}
