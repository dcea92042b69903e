package plan

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/conneroisu/cascade/internal/types"
	"github.com/conneroisu/cascade/internal/workspace"
)

// Issue is one problem found in a plan.
type Issue struct {
	Package string
	Message string
}

func (i Issue) Error() string {
	return i.Package + ": " + i.Message
}

// Validate checks a loaded plan against the current workspace. The returned
// error combines every issue; use multierr.Errors to list them.
func Validate(p *types.Plan, g *workspace.Graph) error {
	var err error
	add := func(name, format string, args ...interface{}) {
		err = multierr.Append(err, Issue{Package: name, Message: fmt.Sprintf(format, args...)})
	}

	pos := make(map[string]int, len(p.Entries))
	for i, e := range p.Entries {
		if _, dup := pos[e.Name]; dup {
			add(e.Name, "listed more than once")
			continue
		}
		pos[e.Name] = i
	}

	for i, e := range p.Entries {
		pkg, ok := g.Package(e.Name)
		if !ok {
			add(e.Name, "not a workspace package")
			continue
		}
		if !e.Reason.Valid() {
			add(e.Name, "unknown reason %q", e.Reason)
		}

		from, ferr := parseVersion(e.From)
		to, terr := parseVersion(e.To)
		switch {
		case ferr != nil:
			add(e.Name, "invalid from version %q", e.From)
		case terr != nil:
			add(e.Name, "invalid to version %q", e.To)
		case to.LessThan(from):
			add(e.Name, "to %s is lower than from %s", e.To, e.From)
		case !e.Publish && !to.Equal(from):
			add(e.Name, "not published but to %s differs from from %s", e.To, e.From)
		}

		if e.Publish && !pkg.Publishable {
			add(e.Name, "manifest forbids publishing")
		}

		for _, dep := range g.Dependencies(e.Name) {
			j, listed := pos[dep]
			if listed && j > i {
				add(e.Name, "listed before its dependency %s", dep)
			}
			if e.Publish && listed && !p.Entries[j].Publish {
				depPkg, _ := g.Package(dep)
				if !depPkg.Publishable {
					add(e.Name, "depends on %s, which can never be published", dep)
				}
			}
		}
	}

	return err
}

// Issues splits the error returned by Validate.
func Issues(err error) []Issue {
	var out []Issue
	for _, e := range multierr.Errors(err) {
		if issue, ok := e.(Issue); ok {
			out = append(out, issue)
		}
	}
	return out
}
