package publish

import (
	"time"

	"go.uber.org/multierr"
)

// Status is the result of one publish attempt.
type Status string

const (
	StatusPublished Status = "published"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Outcome records what happened to one package.
type Outcome struct {
	Name     string
	Version  string
	Status   Status
	Batch    int
	Duration time.Duration
	Err      error
	// Detail explains a skip.
	Detail string
	// Visible is true once the registry served the new version.
	Visible bool
	DryRun  bool
}

// ErrorText returns the error message, or "" on success.
func (o Outcome) ErrorText() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Summary aggregates the outcomes of a run.
type Summary struct {
	Outcomes  []Outcome
	Batches   [][]string
	Published int
	Skipped   int
	Failed    int
	Duration  time.Duration
	DryRun    bool
	// Cancelled holds the context error when the run stopped early.
	Cancelled error
}

func (s *Summary) add(o Outcome) {
	s.Outcomes = append(s.Outcomes, o)
	switch o.Status {
	case StatusPublished:
		s.Published++
	case StatusSkipped:
		s.Skipped++
	case StatusFailed:
		s.Failed++
	}
}

// Err combines every failure of the run, or returns nil.
func (s *Summary) Err() error {
	var err error
	for _, o := range s.Outcomes {
		if o.Status == StatusFailed {
			err = multierr.Append(err, o.Err)
		}
	}
	return multierr.Append(err, s.Cancelled)
}

// OK reports whether nothing failed and the run was not cancelled.
func (s *Summary) OK() bool {
	return s.Failed == 0 && s.Cancelled == nil
}

// FailedNames returns the names of failed packages in outcome order.
func (s *Summary) FailedNames() []string {
	var out []string
	for _, o := range s.Outcomes {
		if o.Status == StatusFailed {
			out = append(out, o.Name)
		}
	}
	return out
}
