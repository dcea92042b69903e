package registry

import (
	"context"

	"github.com/conneroisu/cascade/internal/interfaces"
	"github.com/conneroisu/cascade/internal/types"
)

// Querier answers version queries.
type Querier interface {
	Query(ctx context.Context, name string) ([]types.VersionRecord, error)
}

// Publisher uploads packages.
type Publisher interface {
	Publish(ctx context.Context, name string, opts types.PublishOptions) error
}

// Client joins an index reader and a publisher into a Registry.
type Client struct {
	Querier
	Publisher
}

var _ interfaces.Registry = (*Client)(nil)

// NewClient creates a registry client.
func NewClient(q Querier, p Publisher) *Client {
	return &Client{Querier: q, Publisher: p}
}
