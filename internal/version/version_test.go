package version

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseTime(t *testing.T) {
	want := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.True(t, want.Equal(parseTime("2026-01-02T03:04:05Z")))
	assert.True(t, want.Equal(parseTime("2026-01-02 03:04:05")))
	assert.True(t, parseTime("unknown").IsZero())
	assert.True(t, parseTime("yesterday").IsZero())
}

func TestBuildInfoShort(t *testing.T) {
	tests := []struct {
		name string
		info BuildInfo
		want string
	}{
		{"release", BuildInfo{Version: "v1.2.0", GitCommit: "0123456789abcdef"}, "v1.2.0 (0123456)"},
		{"no commit", BuildInfo{Version: "v1.2.0", GitCommit: "unknown"}, "v1.2.0"},
		{"dev build", BuildInfo{Version: "dev-0123456", GitCommit: "0123456789abcdef"}, "dev-0123456"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.info.Short())
		})
	}
}

func TestBuildInfoString(t *testing.T) {
	info := BuildInfo{
		Version:   "v1.0.0",
		GitCommit: "abc1234",
		Dirty:     true,
		GoVersion: "go1.24.4",
		Platform:  "linux/amd64",
	}
	out := info.String()
	assert.Contains(t, out, "Version: v1.0.0")
	assert.Contains(t, out, "Commit: abc1234 (dirty)")
	assert.NotContains(t, out, "Built:")
	assert.True(t, info.IsRelease())
	assert.False(t, (&BuildInfo{Version: "dev"}).IsRelease())
}

func TestGet(t *testing.T) {
	info := Get()
	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.GoVersion)
	assert.Contains(t, info.Platform, "/")
}
