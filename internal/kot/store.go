package kot

import (
	"sync"

	"github.com/tableside/kds/pkg/logging"
)

// Store is the authoritative client-side view of visible tickets,
// partitioned into the three board buckets. Writers are the realtime
// reconciler and the polling driver; everything else reads snapshots.
type Store struct {
	mu sync.RWMutex
	// tickets indexed by ticket id
	tickets map[string]*Ticket
	// ordered ticket ids per bucket; order is arrival order and is the
	// stable tie-break base for the projection sorts
	buckets map[Bucket][]string

	notifier UpdateNotifier
	logger   logging.Logger
}

// UpdateNotifier receives a notification after every effective mutation.
// The SSE feed implements it; a nil notifier disables notifications.
type UpdateNotifier interface {
	BroadcastUpdate(Update)
}

// Update describes one effective store mutation.
type Update struct {
	Kind     string  `json:"kind"` // upsert, remove, item
	TicketID string  `json:"ticket_id"`
	Ticket   *Ticket `json:"ticket,omitempty"`
}

// NewStore creates an empty store.
func NewStore(logger logging.Logger) *Store {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	s := &Store{
		tickets: make(map[string]*Ticket),
		buckets: make(map[Bucket][]string),
		logger:  logger,
	}
	for _, b := range Buckets {
		s.buckets[b] = nil
	}
	return s
}

// SetNotifier attaches the update notifier. Must be called before the
// writers start.
func (s *Store) SetNotifier(n UpdateNotifier) {
	s.notifier = n
}

// Upsert removes the ticket from all buckets and re-inserts it into the
// bucket matching its status. Tickets in a terminal status are not
// re-inserted, so upserting one is equivalent to removal. Idempotent.
func (s *Store) Upsert(t *Ticket) {
	if t == nil || t.ID == "" {
		return
	}

	s.mu.Lock()
	s.removeFromBucketsLocked(t.ID)
	bucket, visible := BucketFor(t.Status)
	if !visible {
		_, existed := s.tickets[t.ID]
		delete(s.tickets, t.ID)
		s.mu.Unlock()
		if existed {
			s.broadcast(Update{Kind: "remove", TicketID: t.ID})
		}
		return
	}
	cp := t.Clone()
	s.tickets[t.ID] = cp
	s.buckets[bucket] = append(s.buckets[bucket], t.ID)
	out := cp.Clone()
	s.mu.Unlock()

	s.broadcast(Update{Kind: "upsert", TicketID: t.ID, Ticket: out})
}

// Remove deletes a ticket from all buckets. No-op if absent.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	_, existed := s.tickets[id]
	if existed {
		s.removeFromBucketsLocked(id)
		delete(s.tickets, id)
	}
	s.mu.Unlock()

	if existed {
		s.broadcast(Update{Kind: "remove", TicketID: id})
	}
}

// TransitionTicket moves a tracked ticket to the bucket for newStatus, or
// removes it when newStatus is terminal. Unknown tickets are a silent no-op;
// the next poll cycle reconciles them.
func (s *Store) TransitionTicket(id, newStatus string) {
	s.mu.Lock()
	t, ok := s.tickets[id]
	if !ok {
		s.mu.Unlock()
		return
	}

	target, visible := BucketFor(newStatus)
	if !visible {
		s.removeFromBucketsLocked(id)
		delete(s.tickets, id)
		s.mu.Unlock()
		s.broadcast(Update{Kind: "remove", TicketID: id})
		return
	}

	current, _ := BucketFor(t.Status)
	if current == target {
		// Same bucket means same visible status; avoid notification churn.
		s.mu.Unlock()
		return
	}

	s.removeFromBucketsLocked(id)
	t.Status = newStatus
	s.buckets[target] = append(s.buckets[target], id)
	out := t.Clone()
	s.mu.Unlock()

	s.broadcast(Update{Kind: "upsert", TicketID: id, Ticket: out})
}

// TransitionItem sets the status of a single item on a tracked ticket.
// Lookup order: exact index, index-minus-one (legacy off-by-one payloads),
// then stable item id. No-op if the ticket or item cannot be located.
func (s *Store) TransitionItem(ticketID string, index int, itemID, newStatus string) {
	s.mu.Lock()
	t, ok := s.tickets[ticketID]
	if !ok {
		s.mu.Unlock()
		return
	}

	pos := s.locateItemLocked(t, index, itemID)
	if pos < 0 {
		s.mu.Unlock()
		s.logger.Debug("item not found on ticket", "ticket_id", ticketID, "item_index", index, "item_id", itemID)
		return
	}
	if t.Items[pos].Status == newStatus {
		s.mu.Unlock()
		return
	}
	t.Items[pos].Status = newStatus
	out := t.Clone()
	s.mu.Unlock()

	s.broadcast(Update{Kind: "item", TicketID: ticketID, Ticket: out})
}

func (s *Store) locateItemLocked(t *Ticket, index int, itemID string) int {
	if index >= 0 && index < len(t.Items) {
		return index
	}
	if index-1 >= 0 && index-1 < len(t.Items) {
		return index - 1
	}
	if itemID != "" {
		for i := range t.Items {
			if t.Items[i].ID == itemID {
				return i
			}
		}
	}
	return -1
}

// ReplaceAll reconciles the store against a full fetched snapshot: every
// fetched ticket is upserted and tracked tickets missing from the snapshot
// are removed.
func (s *Store) ReplaceAll(tickets []*Ticket) {
	seen := make(map[string]struct{}, len(tickets))
	for _, t := range tickets {
		if t == nil || t.ID == "" {
			continue
		}
		seen[t.ID] = struct{}{}
		s.Upsert(t)
	}

	s.mu.RLock()
	var stale []string
	for id := range s.tickets {
		if _, ok := seen[id]; !ok {
			stale = append(stale, id)
		}
	}
	s.mu.RUnlock()

	for _, id := range stale {
		s.Remove(id)
	}
}

// Get returns a copy of a tracked ticket, or nil.
func (s *Store) Get(id string) *Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tickets[id]
	if !ok {
		return nil
	}
	return t.Clone()
}

// Board is a point-in-time copy of the three buckets in arrival order.
type Board struct {
	Queued    []*Ticket `json:"queued"`
	Preparing []*Ticket `json:"preparing"`
	Ready     []*Ticket `json:"ready"`
}

// Snapshot copies the current board state.
func (s *Store) Snapshot() Board {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Board{
		Queued:    s.bucketLocked(BucketQueued),
		Preparing: s.bucketLocked(BucketPreparing),
		Ready:     s.bucketLocked(BucketReady),
	}
}

// Len returns the number of tracked tickets.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tickets)
}

// BucketOf reports the bucket currently holding a ticket.
func (s *Store) BucketOf(id string) (Bucket, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range Buckets {
		for _, tid := range s.buckets[b] {
			if tid == id {
				return b, true
			}
		}
	}
	return "", false
}

func (s *Store) bucketLocked(b Bucket) []*Ticket {
	ids := s.buckets[b]
	result := make([]*Ticket, 0, len(ids))
	for _, id := range ids {
		if t := s.tickets[id]; t != nil {
			result = append(result, t.Clone())
		}
	}
	return result
}

func (s *Store) removeFromBucketsLocked(id string) {
	for _, b := range Buckets {
		ids := s.buckets[b]
		for i, tid := range ids {
			if tid == id {
				s.buckets[b] = append(ids[:i], ids[i+1:]...)
				break
			}
		}
	}
}

func (s *Store) broadcast(u Update) {
	if s.notifier != nil {
		s.notifier.BroadcastUpdate(u)
	}
}
