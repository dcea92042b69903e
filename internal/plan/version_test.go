package plan

import (
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/cascade/internal/types"
)

func v(s string) *semver.Version {
	return semver.MustParse(s)
}

func TestBump(t *testing.T) {
	tests := []struct {
		from     string
		kind     types.BumpKind
		expected string
	}{
		{"0.3.2", types.BumpMajor, "0.4.0"},
		{"1.2.3", types.BumpMajor, "2.0.0"},
		{"0.3.2", types.BumpMinor, "0.3.3"},
		{"1.2.3", types.BumpMinor, "1.3.0"},
		{"1.2.3", types.BumpPatch, "1.2.4"},
		{"0.0.1", types.BumpMajor, "0.1.0"},
		{"1.2.3", types.BumpNone, "1.2.4"},
	}

	for _, tt := range tests {
		t.Run(tt.from+"/"+tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.expected, Bump(v(tt.from), tt.kind).String())
		})
	}
}

func TestCompatible(t *testing.T) {
	assert.True(t, Compatible(v("1.2.3"), v("1.9.0")))
	assert.False(t, Compatible(v("1.2.3"), v("2.0.0")))
	assert.True(t, Compatible(v("0.3.0"), v("0.3.9")))
	assert.False(t, Compatible(v("0.3.0"), v("0.4.0")))
}

func TestTarget(t *testing.T) {
	tests := []struct {
		name     string
		from     string
		disk     string
		kind     types.BumpKind
		pre      string
		expected string
	}{
		{"breaking 0.x", "0.3.2", "0.3.2", types.BumpMajor, "", "0.4.0"},
		{"breaking 1.x", "1.2.3", "1.2.3", types.BumpMajor, "", "2.0.0"},
		{"compatible disk version is bumped", "1.2.3", "1.4.0", types.BumpMajor, "", "2.0.0"},
		{"compatible disk patch is bumped", "1.2.3", "1.2.4", types.BumpMajor, "", "2.0.0"},
		{"compatible disk 0.x is bumped", "0.3.2", "0.3.5", types.BumpMajor, "", "0.4.0"},
		{"compatible disk minor change", "1.2.3", "1.4.0", types.BumpMinor, "", "1.5.0"},
		{"disk prerelease is stripped", "1.2.3", "1.4.0-rc.1", types.BumpPatch, "", "1.4.1"},
		{"incompatible disk version is adopted", "1.2.3", "2.0.0", types.BumpPatch, "", "2.0.0"},
		{"disk beyond bump wins", "1.2.3", "3.0.0", types.BumpMajor, "", "3.0.0"},
		{"older disk version is ignored", "1.2.3", "1.0.0", types.BumpPatch, "", "1.2.4"},
		{"prerelease suffix", "1.2.3", "1.2.3", types.BumpMajor, "alpha.1", "2.0.0-alpha.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			to, err := Target(v(tt.from), v(tt.disk), tt.kind, tt.pre)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, to.String())
			assert.False(t, to.LessThan(v(tt.from)))
		})
	}
}

func TestTargetRejectsBadSuffix(t *testing.T) {
	_, err := Target(v("1.0.0"), v("1.0.0"), types.BumpPatch, "not valid!")
	assert.Error(t, err)
}
