// Package report records the result of an apply run and stores it on disk
// or in an S3-compatible bucket.
package report

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/cascade/internal/publish"
)

// Report is the persisted form of a publish summary.
type Report struct {
	RunID       string          `json:"run_id" yaml:"run_id"`
	StartedAt   time.Time       `json:"started_at" yaml:"started_at"`
	FinishedAt  time.Time       `json:"finished_at" yaml:"finished_at"`
	DryRun      bool            `json:"dry_run" yaml:"dry_run"`
	Cancelled   string          `json:"cancelled,omitempty" yaml:"cancelled,omitempty"`
	Batches     [][]string      `json:"batches" yaml:"batches"`
	Published   int             `json:"published" yaml:"published"`
	Skipped     int             `json:"skipped" yaml:"skipped"`
	Failed      int             `json:"failed" yaml:"failed"`
	Packages    []PackageResult `json:"packages" yaml:"packages"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
}

// PackageResult is one outcome line of a report.
type PackageResult struct {
	Name     string `json:"name" yaml:"name"`
	Version  string `json:"version" yaml:"version"`
	Status   string `json:"status" yaml:"status"`
	Batch    int    `json:"batch" yaml:"batch"`
	Duration string `json:"duration" yaml:"duration"`
	Visible  bool   `json:"visible" yaml:"visible"`
	Detail   string `json:"detail,omitempty" yaml:"detail,omitempty"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
}

// New builds a report for a run that started at started.
func New(s *publish.Summary, started time.Time) *Report {
	r := &Report{
		RunID:      uuid.NewString(),
		StartedAt:  started.UTC(),
		FinishedAt: started.Add(s.Duration).UTC(),
		DryRun:     s.DryRun,
		Batches:    s.Batches,
		Published:  s.Published,
		Skipped:    s.Skipped,
		Failed:     s.Failed,
	}
	if s.Cancelled != nil {
		r.Cancelled = s.Cancelled.Error()
	}
	for _, o := range s.Outcomes {
		r.Packages = append(r.Packages, PackageResult{
			Name:     o.Name,
			Version:  o.Version,
			Status:   string(o.Status),
			Batch:    o.Batch,
			Duration: o.Duration.Round(time.Millisecond).String(),
			Visible:  o.Visible,
			Detail:   o.Detail,
			Error:    o.ErrorText(),
		})
	}
	return r
}

// Format is a report encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor picks the encoding from a file extension. JSON is the default.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Encode serializes r.
func (r *Report) Encode(f Format) ([]byte, error) {
	switch f {
	case FormatYAML:
		return yaml.Marshal(r)
	case FormatJSON, "":
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	default:
		return nil, fmt.Errorf("unsupported report format %q", f)
	}
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	if f == FormatYAML {
		return "application/yaml"
	}
	return "application/json"
}
