package plan

import (
	"github.com/Masterminds/semver/v3"

	"github.com/conneroisu/cascade/internal/errors"
	"github.com/conneroisu/cascade/internal/types"
)

// parseVersion parses a semantic version, rejecting partial forms like "1.2".
func parseVersion(s string) (*semver.Version, error) {
	v, err := semver.StrictNewVersion(s)
	if err != nil {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidVersion,
			"invalid version "+s).WithContext("cause", err.Error())
	}
	return v, nil
}

// release strips prerelease and build metadata.
func release(v *semver.Version) *semver.Version {
	return semver.New(v.Major(), v.Minor(), v.Patch(), "", "")
}

// Bump applies kind to v. Major is the breaking bump, which for 0.x
// versions is a minor increment.
func Bump(v *semver.Version, kind types.BumpKind) *semver.Version {
	major, minor, patch := v.Major(), v.Minor(), v.Patch()
	switch kind {
	case types.BumpMajor:
		if major == 0 {
			return semver.New(0, minor+1, 0, "", "")
		}
		return semver.New(major+1, 0, 0, "", "")
	case types.BumpMinor:
		if major == 0 {
			return semver.New(0, minor, patch+1, "", "")
		}
		return semver.New(major, minor+1, 0, "", "")
	default:
		return semver.New(major, minor, patch+1, "", "")
	}
}

// Compatible reports whether b can replace a under caret requirements.
func Compatible(a, b *semver.Version) bool {
	if a.Major() != b.Major() {
		return false
	}
	if a.Major() == 0 {
		return a.Minor() == b.Minor()
	}
	return true
}

// Target computes the release version for a package moving off from.
//
// The on-disk version is a floor. When it is newer than from but still
// compatible with it, the bump is applied on top of it so a breaking
// change never ships as a compatible release. Otherwise from is bumped by
// kind and an on-disk version beyond that candidate wins. pre, when set,
// is appended as the prerelease suffix.
func Target(from, onDisk *semver.Version, kind types.BumpKind, pre string) (*semver.Version, error) {
	var to *semver.Version
	disk := release(onDisk)

	if disk.GreaterThan(from) && Compatible(from, disk) {
		to = Bump(disk, kind)
	} else {
		to = Bump(from, kind)
		if disk.GreaterThan(to) {
			to = disk
		}
	}

	if pre == "" {
		return to, nil
	}
	withPre, err := to.SetPrerelease(pre)
	if err != nil {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidVersion,
			"invalid prerelease suffix "+pre).WithContext("cause", err.Error())
	}
	return &withPre, nil
}
