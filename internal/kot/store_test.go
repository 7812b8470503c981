package kot

import (
	"testing"
	"time"

	"github.com/tableside/kds/pkg/enums/itemstatus"
	"github.com/tableside/kds/pkg/enums/ticketstatus"
	"github.com/tableside/kds/pkg/logging"
)

func newTicket(id, status string) *Ticket {
	return &Ticket{
		ID:        id,
		Status:    status,
		CreatedAt: time.Now(),
		Items: []Item{
			{Name: "Margherita", Quantity: 1, Status: itemstatus.Statuses.Queued.Code()},
		},
	}
}

func bucketCount(s *Store, id string) int {
	count := 0
	board := s.Snapshot()
	for _, bucket := range [][]*Ticket{board.Queued, board.Preparing, board.Ready} {
		for _, t := range bucket {
			if t.ID == id {
				count++
			}
		}
	}
	return count
}

func TestStoreUpsertPlacesTicketInStatusBucket(t *testing.T) {
	tests := []struct {
		name   string
		status string
		bucket Bucket
	}{
		{name: "queuedBucket", status: ticketstatus.Statuses.Queued.Code(), bucket: BucketQueued},
		{name: "preparingBucket", status: ticketstatus.Statuses.InProgress.Code(), bucket: BucketPreparing},
		{name: "readyBucket", status: ticketstatus.Statuses.Ready.Code(), bucket: BucketReady},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore(logging.NewNoopLogger())
			s.Upsert(newTicket("KOT-001", tt.status))

			got, ok := s.BucketOf("KOT-001")
			if !ok {
				t.Fatal("ticket not tracked after Upsert()")
			}
			if got != tt.bucket {
				t.Errorf("BucketOf() = %v, want %v", got, tt.bucket)
			}
			if n := bucketCount(s, "KOT-001"); n != 1 {
				t.Errorf("ticket appears in %d buckets, want 1", n)
			}
		})
	}
}

func TestStoreUpsertTerminalStatusRemoves(t *testing.T) {
	tests := []struct {
		name   string
		status string
	}{
		{name: "served", status: ticketstatus.Statuses.Served.Code()},
		{name: "cancelled", status: ticketstatus.Statuses.Cancelled.Code()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore(nil)
			s.Upsert(newTicket("KOT-002", ticketstatus.Statuses.Queued.Code()))

			s.Upsert(newTicket("KOT-002", tt.status))

			if s.Get("KOT-002") != nil {
				t.Error("ticket still tracked after terminal upsert")
			}
			if n := bucketCount(s, "KOT-002"); n != 0 {
				t.Errorf("ticket appears in %d buckets, want 0", n)
			}
		})
	}
}

func TestStoreBucketExclusivityUnderChurn(t *testing.T) {
	s := NewStore(nil)
	id := "KOT-003"

	// Arbitrary mutation sequence; after every step the ticket must be in at
	// most one bucket.
	steps := []func(){
		func() { s.Upsert(newTicket(id, ticketstatus.Statuses.Queued.Code())) },
		func() { s.Upsert(newTicket(id, ticketstatus.Statuses.Queued.Code())) },
		func() { s.TransitionTicket(id, ticketstatus.Statuses.InProgress.Code()) },
		func() { s.Upsert(newTicket(id, ticketstatus.Statuses.Ready.Code())) },
		func() { s.TransitionTicket(id, ticketstatus.Statuses.InProgress.Code()) },
		func() { s.TransitionTicket(id, ticketstatus.Statuses.InProgress.Code()) },
		func() { s.Remove(id) },
		func() { s.Upsert(newTicket(id, ticketstatus.Statuses.Queued.Code())) },
		func() { s.TransitionTicket(id, ticketstatus.Statuses.Served.Code()) },
	}

	for i, step := range steps {
		step()
		if n := bucketCount(s, id); n > 1 {
			t.Fatalf("after step %d ticket appears in %d buckets", i, n)
		}
	}

	if s.Get(id) != nil {
		t.Error("ticket still tracked after transition to served")
	}
}

func TestStoreTransitionTicketServedAlwaysRemoves(t *testing.T) {
	tests := []struct {
		name  string
		start string
	}{
		{name: "fromQueued", start: ticketstatus.Statuses.Queued.Code()},
		{name: "fromInProgress", start: ticketstatus.Statuses.InProgress.Code()},
		{name: "fromReady", start: ticketstatus.Statuses.Ready.Code()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore(nil)
			s.Upsert(newTicket("KOT-004", tt.start))

			s.TransitionTicket("KOT-004", ticketstatus.Statuses.Served.Code())

			if n := bucketCount(s, "KOT-004"); n != 0 {
				t.Errorf("ticket appears in %d buckets after served, want 0", n)
			}
		})
	}
}

func TestStoreTransitionTicketUnknownIsNoop(t *testing.T) {
	s := NewStore(nil)
	s.TransitionTicket("KOT-missing", ticketstatus.Statuses.Ready.Code())

	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}

func TestStoreTransitionItemUpdatesOnlyTarget(t *testing.T) {
	s := NewStore(nil)
	ticket := newTicket("KOT-005", ticketstatus.Statuses.Queued.Code())
	ticket.Items = []Item{
		{Name: "Soup", Quantity: 1, Status: itemstatus.Statuses.Queued.Code()},
		{Name: "Steak", Quantity: 1, Status: itemstatus.Statuses.Queued.Code()},
		{Name: "Pie", Quantity: 1, Status: itemstatus.Statuses.Queued.Code()},
	}
	s.Upsert(ticket)

	s.TransitionItem("KOT-005", 2, "", itemstatus.Statuses.Ready.Code())

	got := s.Get("KOT-005")
	if got.Items[2].Status != itemstatus.Statuses.Ready.Code() {
		t.Errorf("item 2 status = %q, want ready", got.Items[2].Status)
	}
	for _, i := range []int{0, 1} {
		if got.Items[i].Status != itemstatus.Statuses.Queued.Code() {
			t.Errorf("item %d status = %q, want queued (unchanged)", i, got.Items[i].Status)
		}
	}
}

func TestStoreTransitionItemLookupFallbacks(t *testing.T) {
	tests := []struct {
		name    string
		index   int
		itemID  string
		wantPos int
	}{
		{name: "exactIndex", index: 1, itemID: "", wantPos: 1},
		{name: "indexMinusOneFallback", index: 3, itemID: "", wantPos: 2},
		{name: "itemIDFallback", index: 9, itemID: "it-0", wantPos: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore(nil)
			ticket := newTicket("KOT-006", ticketstatus.Statuses.Queued.Code())
			ticket.Items = []Item{
				{ID: "it-0", Name: "A", Quantity: 1, Status: itemstatus.Statuses.Queued.Code()},
				{ID: "it-1", Name: "B", Quantity: 1, Status: itemstatus.Statuses.Queued.Code()},
				{ID: "it-2", Name: "C", Quantity: 1, Status: itemstatus.Statuses.Queued.Code()},
			}
			s.Upsert(ticket)

			s.TransitionItem("KOT-006", tt.index, tt.itemID, itemstatus.Statuses.Ready.Code())

			got := s.Get("KOT-006")
			for pos := range got.Items {
				want := itemstatus.Statuses.Queued.Code()
				if pos == tt.wantPos {
					want = itemstatus.Statuses.Ready.Code()
				}
				if got.Items[pos].Status != want {
					t.Errorf("item %d status = %q, want %q", pos, got.Items[pos].Status, want)
				}
			}
		})
	}
}

func TestStoreTransitionItemNotFoundIsNoop(t *testing.T) {
	s := NewStore(nil)
	ticket := newTicket("KOT-007", ticketstatus.Statuses.Queued.Code())
	s.Upsert(ticket)

	// Index out of range on both paths and no matching id.
	s.TransitionItem("KOT-007", 9, "missing", itemstatus.Statuses.Ready.Code())

	got := s.Get("KOT-007")
	if got.Items[0].Status != itemstatus.Statuses.Queued.Code() {
		t.Errorf("item status changed, want unchanged")
	}
}

func TestStoreReplaceAllRemovesStale(t *testing.T) {
	s := NewStore(nil)
	s.Upsert(newTicket("KOT-A", ticketstatus.Statuses.Queued.Code()))
	s.Upsert(newTicket("KOT-B", ticketstatus.Statuses.InProgress.Code()))

	s.ReplaceAll([]*Ticket{
		newTicket("KOT-B", ticketstatus.Statuses.Ready.Code()),
		newTicket("KOT-C", ticketstatus.Statuses.Queued.Code()),
	})

	if s.Get("KOT-A") != nil {
		t.Error("stale ticket KOT-A still tracked after ReplaceAll")
	}
	if b, _ := s.BucketOf("KOT-B"); b != BucketReady {
		t.Errorf("KOT-B bucket = %v, want ready", b)
	}
	if s.Get("KOT-C") == nil {
		t.Error("KOT-C missing after ReplaceAll")
	}
}

func TestStoreNotifierSuppressedOnNoopTransitions(t *testing.T) {
	s := NewStore(nil)
	s.Upsert(newTicket("KOT-008", ticketstatus.Statuses.Queued.Code()))

	var updates []Update
	s.SetNotifier(notifierFunc(func(u Update) { updates = append(updates, u) }))

	// Same bucket: no notification.
	s.TransitionTicket("KOT-008", ticketstatus.Statuses.Queued.Code())
	// Unknown ticket: no notification.
	s.TransitionTicket("KOT-none", ticketstatus.Statuses.Ready.Code())
	// Absent ticket removal: no notification.
	s.Remove("KOT-none")

	if len(updates) != 0 {
		t.Errorf("got %d notifications for no-op mutations, want 0", len(updates))
	}

	s.TransitionTicket("KOT-008", ticketstatus.Statuses.InProgress.Code())
	if len(updates) != 1 {
		t.Fatalf("got %d notifications after real transition, want 1", len(updates))
	}
	if updates[0].Kind != "upsert" {
		t.Errorf("notification kind = %q, want upsert", updates[0].Kind)
	}
}

type notifierFunc func(Update)

func (f notifierFunc) BroadcastUpdate(u Update) { f(u) }
