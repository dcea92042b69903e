// Package classify decides how severe a package's changes are relative to
// its last release.
package classify

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"sync"

	"github.com/conneroisu/cascade/internal/interfaces"
	"github.com/conneroisu/cascade/internal/logging"
	"github.com/conneroisu/cascade/internal/types"
)

var (
	_ interfaces.CompatibilityClassifier = Conservative{}
	_ interfaces.CompatibilityClassifier = (*Memo)(nil)
	_ interfaces.CompatibilityClassifier = (*Command)(nil)
)

// Conservative treats every change as breaking.
type Conservative struct{}

// Compare always reports a major change.
func (Conservative) Compare(context.Context, types.Package, string) (types.BumpKind, error) {
	return types.BumpMajor, nil
}

// Memo caches the answers of another classifier per package and baseline.
type Memo struct {
	inner interfaces.CompatibilityClassifier

	mu    sync.Mutex
	cache map[string]memoResult
}

type memoResult struct {
	kind types.BumpKind
	err  error
}

// NewMemo wraps inner.
func NewMemo(inner interfaces.CompatibilityClassifier) *Memo {
	return &Memo{inner: inner, cache: map[string]memoResult{}}
}

// Compare answers from the cache, asking the wrapped classifier on a miss.
func (m *Memo) Compare(ctx context.Context, pkg types.Package, baseline string) (types.BumpKind, error) {
	key := pkg.Name + "@" + baseline

	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.cache[key]; ok {
		return r.kind, r.err
	}
	kind, err := m.inner.Compare(ctx, pkg, baseline)
	m.cache[key] = memoResult{kind: kind, err: err}
	return kind, err
}

// Command runs an external API checker such as cargo-semver-checks. A zero
// exit status means no breaking change was found and the package gets a
// minor bump; exit status 1 means a major one.
type Command struct {
	argv   []string
	dir    string
	logger logging.Logger
}

// NewCommand creates a classifier running argv in dir. Arguments may use
// {name} and {baseline} placeholders.
func NewCommand(argv []string, dir string, logger logging.Logger) *Command {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Command{argv: argv, dir: dir, logger: logger.WithComponent("classify")}
}

// Compare runs the checker for pkg against baseline.
func (c *Command) Compare(ctx context.Context, pkg types.Package, baseline string) (types.BumpKind, error) {
	if len(c.argv) == 0 {
		return types.BumpMajor, errors.New("no classifier command configured")
	}
	r := strings.NewReplacer("{name}", pkg.Name, "{baseline}", baseline)
	args := make([]string, len(c.argv)-1)
	for i, a := range c.argv[1:] {
		args[i] = r.Replace(a)
	}

	cmd := exec.CommandContext(ctx, c.argv[0], args...)
	cmd.Dir = c.dir
	out, err := cmd.CombinedOutput()
	if err == nil {
		return types.BumpMinor, nil
	}

	var exit *exec.ExitError
	if errors.As(err, &exit) && exit.ExitCode() == 1 {
		c.logger.Debug(ctx, "Breaking change detected", "package", pkg.Name, "baseline", baseline)
		return types.BumpMajor, nil
	}
	return types.BumpMajor, errors.New(strings.TrimSpace(err.Error() + ": " + string(out)))
}
