package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tableside/kds/internal/backend"
	"github.com/tableside/kds/internal/kot"
	"github.com/tableside/kds/pkg/enums/ticketstatus"
	"github.com/tableside/kds/pkg/logging"
)

// MockFetcher implements TicketFetcher for testing
type MockFetcher struct {
	ListTicketsFunc func(ctx context.Context, scope backend.Scope) ([]*kot.Ticket, error)
	calls           int
	lastScope       backend.Scope
}

func (m *MockFetcher) ListTickets(ctx context.Context, scope backend.Scope) ([]*kot.Ticket, error) {
	m.calls++
	m.lastScope = scope
	if m.ListTicketsFunc != nil {
		return m.ListTicketsFunc(ctx, scope)
	}
	return nil, nil
}

func TestDriverRefreshNowReconciles(t *testing.T) {
	store := kot.NewStore(logging.NewNoopLogger())
	store.Upsert(&kot.Ticket{ID: "STALE", Status: ticketstatus.Statuses.Queued.Code(), CreatedAt: time.Now()})

	fetcher := &MockFetcher{
		ListTicketsFunc: func(ctx context.Context, scope backend.Scope) ([]*kot.Ticket, error) {
			return []*kot.Ticket{
				{ID: "KOT-1", Status: ticketstatus.Statuses.Queued.Code(), CreatedAt: time.Now()},
				{ID: "KOT-2", Status: ticketstatus.Statuses.Ready.Code(), CreatedAt: time.Now()},
			}, nil
		},
	}

	driver := NewDriver(fetcher, store, backend.Scope{Kitchen: "main"}, time.Minute, nil)
	if err := driver.RefreshNow(context.Background()); err != nil {
		t.Fatalf("RefreshNow() error = %v", err)
	}

	if store.Get("STALE") != nil {
		t.Error("stale ticket survived reconcile")
	}
	if store.Len() != 2 {
		t.Errorf("Len() = %d, want 2", store.Len())
	}
	if fetcher.lastScope.Kitchen != "main" {
		t.Errorf("scope.Kitchen = %q, want main", fetcher.lastScope.Kitchen)
	}
}

func TestDriverRefreshNowSurfacesFetchError(t *testing.T) {
	store := kot.NewStore(nil)
	store.Upsert(&kot.Ticket{ID: "KEPT", Status: ticketstatus.Statuses.Queued.Code(), CreatedAt: time.Now()})

	wantErr := errors.New("backend down")
	fetcher := &MockFetcher{
		ListTicketsFunc: func(ctx context.Context, scope backend.Scope) ([]*kot.Ticket, error) {
			return nil, wantErr
		},
	}

	driver := NewDriver(fetcher, store, backend.Scope{}, time.Minute, nil)
	if err := driver.RefreshNow(context.Background()); !errors.Is(err, wantErr) {
		t.Errorf("RefreshNow() error = %v, want %v", err, wantErr)
	}

	// Last good state is kept on fetch failure.
	if store.Get("KEPT") == nil {
		t.Error("store lost state on failed fetch")
	}
}

func TestDriverSetScope(t *testing.T) {
	store := kot.NewStore(nil)
	fetcher := &MockFetcher{}
	driver := NewDriver(fetcher, store, backend.Scope{Kitchen: "a"}, time.Minute, nil)

	driver.SetScope(backend.Scope{Kitchen: "b", Station: "grill"})
	_ = driver.RefreshNow(context.Background())

	if fetcher.lastScope.Kitchen != "b" || fetcher.lastScope.Station != "grill" {
		t.Errorf("lastScope = %+v, want kitchen b station grill", fetcher.lastScope)
	}
}

func TestDriverRunPollsOnInterval(t *testing.T) {
	store := kot.NewStore(nil)
	fetched := make(chan struct{}, 16)
	fetcher := &MockFetcher{
		ListTicketsFunc: func(ctx context.Context, scope backend.Scope) ([]*kot.Ticket, error) {
			fetched <- struct{}{}
			return nil, nil
		},
	}

	driver := NewDriver(fetcher, store, backend.Scope{}, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- driver.Run(ctx) }()

	// Initial fetch plus at least two ticks.
	for i := 0; i < 3; i++ {
		select {
		case <-fetched:
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for fetch %d", i)
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run() did not stop on cancel")
	}
}
