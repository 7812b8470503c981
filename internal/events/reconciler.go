// Package events applies realtime push events to the KOT store. Delivery is
// at-least-once and may be out of order; every store operation it invokes is
// idempotent, so replays and races with the polling driver are harmless.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/tableside/kds/internal/kot"
	"github.com/tableside/kds/pkg/bus"
	"github.com/tableside/kds/pkg/event"
	"github.com/tableside/kds/pkg/logging"
)

type Reconciler struct {
	subscriber bus.Subscriber
	store      *kot.Store
	logger     logging.Logger

	mu   sync.Mutex
	subs []bus.Subscription
}

func NewReconciler(subscriber bus.Subscriber, store *kot.Store, logger logging.Logger) *Reconciler {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &Reconciler{
		subscriber: subscriber,
		store:      store,
		logger:     logger,
	}
}

// Start subscribes to the global subject plus whichever kitchen/station
// scopes are configured.
func (r *Reconciler) Start(ctx context.Context, kitchenID, stationID string) error {
	return r.Resubscribe(ctx, kitchenID, stationID)
}

// Resubscribe replaces the active subscriptions with ones for the given
// scope. The old subscriptions are drained first so a scope change never
// leaves duplicates behind.
func (r *Reconciler) Resubscribe(ctx context.Context, kitchenID, stationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, sub := range r.subs {
		if err := sub.Unsubscribe(); err != nil {
			r.logger.Error("failed to unsubscribe", "error", err)
		}
	}
	r.subs = nil

	subjects := []string{event.TicketsSubject}
	if kitchenID != "" {
		subjects = append(subjects, event.KitchenSubject(kitchenID))
	}
	if stationID != "" {
		subjects = append(subjects, event.StationSubject(stationID))
	}

	for _, subject := range subjects {
		sub, err := r.subscriber.Subscribe(ctx, subject, r.handleEvent)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
		r.subs = append(r.subs, sub)
		r.logger.Info("subscribed to ticket events", "subject", subject)
	}
	return nil
}

// Stop drains all active subscriptions.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sub := range r.subs {
		_ = sub.Unsubscribe()
	}
	r.subs = nil
}

func (r *Reconciler) handleEvent(ctx context.Context, msg []byte) error {
	var envelope struct {
		EventType string `json:"event_type"`
	}
	if err := json.Unmarshal(msg, &envelope); err != nil {
		r.logger.Errorf("failed to unmarshal event envelope: %v", err)
		return nil
	}

	switch envelope.EventType {
	case event.EventTicketCreated:
		r.handleCreated(msg)
	case event.EventTicketStatusChanged:
		r.handleStatusChanged(msg)
	case event.EventItemStatusChanged:
		r.handleItemStatusChanged(msg)
	case event.EventTicketDeleted:
		r.handleDeleted(msg)
	default:
		// Unknown event types are ignored (forward compatibility).
	}
	return nil
}

func (r *Reconciler) handleCreated(msg []byte) {
	var evt event.TicketCreatedEvent
	if err := json.Unmarshal(msg, &evt); err != nil {
		r.logger.Errorf("failed to unmarshal ticket.created event: %v", err)
		return
	}

	var ticket kot.Ticket
	if err := json.Unmarshal(evt.Ticket, &ticket); err != nil {
		r.logger.Errorf("failed to unmarshal ticket body: %v", err)
		return
	}
	if ticket.ID == "" {
		ticket.ID = evt.TicketID
	}
	if ticket.ID == "" {
		r.logger.Error("ticket.created event without ticket id, dropped")
		return
	}

	r.store.Upsert(&ticket)
}

func (r *Reconciler) handleStatusChanged(msg []byte) {
	var evt event.TicketStatusChangedEvent
	if err := json.Unmarshal(msg, &evt); err != nil {
		r.logger.Errorf("failed to unmarshal ticket.status_changed event: %v", err)
		return
	}

	// Prefer the explicit id+state form; a full ticket body is the legacy
	// fallback.
	if evt.TicketID != "" && evt.NewStatus != "" {
		r.store.TransitionTicket(evt.TicketID, evt.NewStatus)
		return
	}

	if len(evt.Ticket) > 0 {
		var ticket kot.Ticket
		if err := json.Unmarshal(evt.Ticket, &ticket); err != nil {
			r.logger.Errorf("failed to unmarshal ticket body: %v", err)
			return
		}
		if ticket.ID != "" {
			r.store.Upsert(&ticket)
		}
		return
	}

	r.logger.Error("ticket.status_changed event without id or ticket body, dropped")
}

func (r *Reconciler) handleItemStatusChanged(msg []byte) {
	var evt event.ItemStatusChangedEvent
	if err := json.Unmarshal(msg, &evt); err != nil {
		r.logger.Errorf("failed to unmarshal item.status_changed event: %v", err)
		return
	}
	if evt.TicketID == "" || evt.NewStatus == "" {
		return
	}

	index := -1
	if evt.ItemIndex != nil {
		index = *evt.ItemIndex
	}
	r.store.TransitionItem(evt.TicketID, index, evt.ItemID, evt.NewStatus)
}

func (r *Reconciler) handleDeleted(msg []byte) {
	var evt event.TicketDeletedEvent
	if err := json.Unmarshal(msg, &evt); err != nil {
		r.logger.Errorf("failed to unmarshal ticket.deleted event: %v", err)
		return
	}
	if evt.TicketID == "" {
		return
	}
	r.store.Remove(evt.TicketID)
}
