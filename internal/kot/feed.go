package kot

import (
	"sync"
	"time"

	"github.com/tableside/kds/pkg/logging"
)

// BoardEvent is one entry on the outbound board feed: either a store update
// or an SLA alert.
type BoardEvent struct {
	Type     string   `json:"type"` // ticket-update, ticket-removed, sla-alert
	TicketID string   `json:"ticket_id"`
	Ticket   *Ticket  `json:"ticket,omitempty"`
	SLALevel SLALevel `json:"sla_level,omitempty"`
	AgeSecs  int      `json:"age_secs,omitempty"`
}

// Feed broadcasts board events to registered subscribers. Slow subscribers
// drop events rather than block the writers.
type Feed struct {
	mu          sync.RWMutex
	subscribers map[string]chan BoardEvent
	logger      logging.Logger
}

func NewFeed(logger logging.Logger) *Feed {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &Feed{
		subscribers: make(map[string]chan BoardEvent),
		logger:      logger,
	}
}

// Subscribe registers a subscriber and returns its event channel.
func (f *Feed) Subscribe(subscriberID string) <-chan BoardEvent {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan BoardEvent, 64)
	f.subscribers[subscriberID] = ch
	f.logger.Debug("feed subscriber added", "subscriber_id", subscriberID)
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (f *Feed) Unsubscribe(subscriberID string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if ch, ok := f.subscribers[subscriberID]; ok {
		close(ch)
		delete(f.subscribers, subscriberID)
		f.logger.Debug("feed subscriber removed", "subscriber_id", subscriberID)
	}
}

// BroadcastUpdate implements UpdateNotifier for the store.
func (f *Feed) BroadcastUpdate(u Update) {
	evt := BoardEvent{TicketID: u.TicketID, Ticket: u.Ticket}
	switch u.Kind {
	case "remove":
		evt.Type = "ticket-removed"
	default:
		evt.Type = "ticket-update"
	}
	f.broadcast(evt)
}

// NotifySLA implements SLANotifier for the monitor.
func (f *Feed) NotifySLA(ticketID string, level SLALevel, age time.Duration) {
	f.broadcast(BoardEvent{
		Type:     "sla-alert",
		TicketID: ticketID,
		SLALevel: level,
		AgeSecs:  int(age.Seconds()),
	})
}

func (f *Feed) broadcast(evt BoardEvent) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for id, ch := range f.subscribers {
		select {
		case ch <- evt:
		default:
			f.logger.Debug("feed subscriber lagging, event dropped", "subscriber_id", id)
		}
	}
}
