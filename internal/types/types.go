// Package types provides the data model shared by the planner, the scheduler
// and the publish executor. It has no dependencies on other internal packages
// so that collaborator interfaces can refer to it without import cycles.
package types

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Package is one releasable unit of the workspace as read from its manifest.
type Package struct {
	// Name is the unique package name.
	Name string
	// Version is the version declared on disk.
	Version string
	// Dir is the package directory, joined onto the workspace root.
	Dir string
	// ManifestPath is the manifest location, joined onto the workspace root.
	ManifestPath string
	// Publishable is false when the manifest opts out of publishing.
	Publishable bool
	// Dependencies lists intra-workspace dependency names. Development-only
	// edges are not included.
	Dependencies []string
	// External lists dependency names that are not workspace members.
	External []string
}

// VersionRecord is one version known to the registry.
type VersionRecord struct {
	Version string `json:"vers" yaml:"version"`
	Yanked  bool   `json:"yanked" yaml:"yanked"`
}

// BumpKind is the severity of a change.
type BumpKind int

const (
	BumpNone BumpKind = iota
	BumpPatch
	BumpMinor
	BumpMajor
)

var bumpNames = [...]string{"none", "patch", "minor", "major"}

// String returns the lowercase form used in the plan file.
func (b BumpKind) String() string {
	if b < BumpNone || b > BumpMajor {
		return "unknown"
	}
	return bumpNames[b]
}

// Title returns the display form, e.g. "Major".
func (b BumpKind) Title() string {
	return cases.Title(language.English).String(b.String())
}

// MarshalText implements encoding.TextMarshaler.
func (b BumpKind) MarshalText() ([]byte, error) {
	if b < BumpNone || b > BumpMajor {
		return nil, fmt.Errorf("invalid bump kind %d", int(b))
	}
	return []byte(b.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *BumpKind) UnmarshalText(text []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(text)))
	for i, name := range bumpNames {
		if name == s {
			*b = BumpKind(i)
			return nil
		}
	}
	return fmt.Errorf("invalid bump kind %q", s)
}

// Reason records why an entry is published.
type Reason string

const (
	ReasonNone               Reason = ""
	ReasonSpecified          Reason = "specified"
	ReasonChanged            Reason = "changed"
	ReasonBumpedByDependency Reason = "bumped by dependency"
	ReasonAll                Reason = "all"
	ReasonBumped             Reason = "bumped"
)

// Valid reports whether r is a known reason.
func (r Reason) Valid() bool {
	switch r {
	case ReasonNone, ReasonSpecified, ReasonChanged, ReasonBumpedByDependency, ReasonAll, ReasonBumped:
		return true
	}
	return false
}

// RewriteDep pins the version requirement of a dependency in the manifest.
type RewriteDep struct {
	Name    string `toml:"name" json:"name" yaml:"name"`
	Version string `toml:"version" json:"version" yaml:"version"`
}

// RemoveFeature drops a feature, or a single value of a feature when Value is set.
type RemoveFeature struct {
	Feature string `toml:"feature" json:"feature" yaml:"feature"`
	Value   string `toml:"value,omitempty" json:"value,omitempty" yaml:"value,omitempty"`
}

// ReleaseEntry is the planner's decision for one package.
type ReleaseEntry struct {
	Name           string          `toml:"name" json:"name" yaml:"name"`
	From           string          `toml:"from" json:"from" yaml:"from"`
	To             string          `toml:"to" json:"to" yaml:"to"`
	Bump           BumpKind        `toml:"bump" json:"bump" yaml:"bump"`
	Publish        bool            `toml:"publish" json:"publish" yaml:"publish"`
	Reason         Reason          `toml:"reason,omitempty" json:"reason,omitempty" yaml:"reason,omitempty"`
	RewriteDeps    []RewriteDep    `toml:"rewrite_dep,omitempty" json:"rewrite_dep,omitempty" yaml:"rewrite_dep,omitempty"`
	RemoveFeatures []RemoveFeature `toml:"remove_feature,omitempty" json:"remove_feature,omitempty" yaml:"remove_feature,omitempty"`
	RemoveDeps     []string        `toml:"remove_dep,omitempty" json:"remove_dep,omitempty" yaml:"remove_dep,omitempty"`
}

// ID returns name@to.
func (e ReleaseEntry) ID() string {
	return e.Name + "@" + e.To
}

// PlanOptions are free-form settings recorded with a plan.
type PlanOptions struct {
	Description string `toml:"description,omitempty" json:"description,omitempty" yaml:"description,omitempty"`
}

// Plan is the persisted list of release decisions in dependency order.
type Plan struct {
	Options PlanOptions    `toml:"options" json:"options" yaml:"options"`
	Entries []ReleaseEntry `toml:"crate" json:"crates" yaml:"crates"`
}

// Entry returns the entry for name.
func (p *Plan) Entry(name string) (ReleaseEntry, bool) {
	if p == nil {
		return ReleaseEntry{}, false
	}
	for _, e := range p.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return ReleaseEntry{}, false
}

// Publishing returns the entries with Publish set, preserving order.
func (p *Plan) Publishing() []ReleaseEntry {
	if p == nil {
		return nil
	}
	out := make([]ReleaseEntry, 0, len(p.Entries))
	for _, e := range p.Entries {
		if e.Publish {
			out = append(out, e)
		}
	}
	return out
}

// PublishOptions are passed to the registry for one publish call.
type PublishOptions struct {
	DryRun bool
	Token  string
}
