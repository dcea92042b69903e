package publish

import (
	"context"
	"time"

	"github.com/conneroisu/cascade/internal/interfaces"
	"github.com/conneroisu/cascade/internal/logging"
	"github.com/conneroisu/cascade/internal/registry"
)

// Poller waits for a just-published version to show up in the registry.
type Poller struct {
	registry interfaces.Registry
	interval time.Duration
	timeout  time.Duration
	logger   logging.Logger
}

// NewPoller creates a poller. A timeout <= 0 disables waiting.
func NewPoller(reg interfaces.Registry, interval, timeout time.Duration, logger logging.Logger) *Poller {
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Poller{
		registry: reg,
		interval: interval,
		timeout:  timeout,
		logger:   logger.WithComponent("poller"),
	}
}

// WaitForVersion queries the registry every interval until version of name
// is visible or the timeout passes. It reports whether the version was seen.
// A timeout is logged and otherwise ignored; the caller carries on either way.
func (p *Poller) WaitForVersion(ctx context.Context, name, version string) bool {
	if p.timeout <= 0 {
		return false
	}

	deadline := time.NewTimer(p.timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	attempts := 0
	for {
		attempts++
		if p.visible(ctx, name, version) {
			p.logger.Debug(ctx, "Version visible in registry",
				"package", name, "version", version, "attempts", attempts)
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			p.logger.Warn(ctx, nil, "Version not visible in registry before timeout, continuing",
				"package", name, "version", version, "timeout", p.timeout.String(), "attempts", attempts)
			return false
		case <-ticker.C:
		}
	}
}

func (p *Poller) visible(ctx context.Context, name, version string) bool {
	records, err := p.registry.Query(ctx, name)
	if err != nil {
		p.logger.Debug(ctx, "Registry query failed while polling", "package", name, "error", err.Error())
		return false
	}
	return registry.Snapshot{name: records}.Has(name, version)
}
