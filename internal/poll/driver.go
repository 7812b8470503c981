// Package poll re-fetches the full ticket set on an interval as a safety net
// alongside the realtime channel. Both writers are idempotent, so their
// interleaving cannot violate store invariants.
package poll

import (
	"context"
	"sync"
	"time"

	"github.com/tableside/kds/internal/backend"
	"github.com/tableside/kds/internal/kot"
	"github.com/tableside/kds/pkg/logging"
)

// TicketFetcher is the slice of the backend client the driver needs.
type TicketFetcher interface {
	ListTickets(ctx context.Context, scope backend.Scope) ([]*kot.Ticket, error)
}

type Driver struct {
	fetcher TicketFetcher
	store   *kot.Store
	logger  logging.Logger

	mu       sync.Mutex
	scope    backend.Scope
	interval time.Duration
	reset    chan time.Duration
}

func NewDriver(fetcher TicketFetcher, store *kot.Store, scope backend.Scope, interval time.Duration, logger logging.Logger) *Driver {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &Driver{
		fetcher:  fetcher,
		store:    store,
		logger:   logger,
		scope:    scope,
		interval: interval,
		reset:    make(chan time.Duration, 1),
	}
}

// Run fetches once immediately, then on every interval tick until ctx is
// cancelled. Interval changes tear down the old timer before arming the new
// one, so reconfiguration never leaves two concurrent cycles.
func (d *Driver) Run(ctx context.Context) error {
	d.RefreshNow(ctx)

	d.mu.Lock()
	interval := d.interval
	d.mu.Unlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case next := <-d.reset:
			ticker.Stop()
			ticker = time.NewTicker(next)
		case <-ticker.C:
			d.RefreshNow(ctx)
		}
	}
}

// SetInterval reconfigures the refresh interval.
func (d *Driver) SetInterval(interval time.Duration) {
	if interval <= 0 {
		return
	}
	d.mu.Lock()
	d.interval = interval
	d.mu.Unlock()

	select {
	case d.reset <- interval:
	default:
		// A pending reset already carries a newer value slot; drop ours and
		// requeue the latest.
		select {
		case <-d.reset:
		default:
		}
		d.reset <- interval
	}
}

// SetScope changes the fetch scope used by subsequent cycles.
func (d *Driver) SetScope(scope backend.Scope) {
	d.mu.Lock()
	d.scope = scope
	d.mu.Unlock()
}

// RefreshNow runs one fetch-and-reconcile cycle. Failures are logged and
// surfaced to the caller; the store keeps its last good state.
func (d *Driver) RefreshNow(ctx context.Context) error {
	d.mu.Lock()
	scope := d.scope
	d.mu.Unlock()

	tickets, err := d.fetcher.ListTickets(ctx, scope)
	if err != nil {
		d.logger.Error("ticket fetch failed", "error", err)
		return err
	}

	d.store.ReplaceAll(tickets)
	d.logger.Debug("ticket set reconciled", "count", len(tickets))
	return nil
}
