// Package interfaces defines the narrow collaborator interfaces the planning
// and publishing core depends on. Concrete implementations live in the
// cargo, git, registry and classify packages; tests substitute fakes.
package interfaces

import (
	"context"
	"time"

	"github.com/conneroisu/cascade/internal/types"
)

// ManifestEditor rewrites on-disk version, dependency and feature
// declarations for one package.
type ManifestEditor interface {
	Apply(ctx context.Context, pkg types.Package, entry types.ReleaseEntry) error
}

// ChangeDetector reports the packages changed since a revision.
type ChangeDetector interface {
	ChangedSince(ctx context.Context, ref string) ([]string, error)
}

// Registry is the remote index packages are published to.
type Registry interface {
	// Query lists the versions known for name. A package the registry has
	// never seen yields an empty list and a nil error.
	Query(ctx context.Context, name string) ([]types.VersionRecord, error)

	// Publish uploads the package in its current on-disk state.
	Publish(ctx context.Context, name string, opts types.PublishOptions) error
}

// CompatibilityClassifier decides how severe the changes in a package are
// relative to the released baseline version.
type CompatibilityClassifier interface {
	Compare(ctx context.Context, pkg types.Package, baseline string) (types.BumpKind, error)
}

// PublishMetrics represents publish run counters.
type PublishMetrics interface {
	GetPublishCount() int64
	GetSuccessCount() int64
	GetFailureCount() int64
	GetSkipCount() int64
	GetAverageDuration() time.Duration
	GetSuccessRate() float64
	Reset()
}
