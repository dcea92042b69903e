package testutils

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/cascade/internal/types"
)

func TestRandomDAGOnlyPointsBackwards(t *testing.T) {
	pkgs := RandomDAG(10, []int{0, 11, 23, 57, 99, 4, 91})
	require.Len(t, pkgs, 10)

	index := make(map[string]int)
	for i, p := range pkgs {
		index[p.Name] = i
	}
	for i, p := range pkgs {
		for _, d := range p.Dependencies {
			assert.Less(t, index[d], i)
		}
	}
	assert.Nil(t, RandomDAG(0, []int{1}))
}

func TestRegistryFake(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry().Seed("a", "1.0.0").Stage("a", "2.0.0").Stage("b", "0.2.0").HideAfterPublish("b")

	require.NoError(t, reg.Publish(ctx, "a", types.PublishOptions{}))
	require.NoError(t, reg.Publish(ctx, "b", types.PublishOptions{}))
	require.NoError(t, reg.Publish(ctx, "c", types.PublishOptions{DryRun: true}))

	versions, err := reg.Query(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []types.VersionRecord{{Version: "1.0.0"}, {Version: "2.0.0"}}, versions)

	versions, err = reg.Query(ctx, "b")
	require.NoError(t, err)
	assert.Empty(t, versions)

	assert.Equal(t, []string{"a", "b"}, reg.Published())
	assert.Equal(t, []string{"c"}, reg.DryRuns())
	assert.Equal(t, 1, reg.Queries("a"))

	reg.FailPublish("a", errors.New("rate limited"))
	assert.Error(t, reg.Publish(ctx, "a", types.PublishOptions{}))
}
