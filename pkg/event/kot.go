package event

import (
	"encoding/json"
	"time"
)

const (
	// TicketsSubject is the global subject carrying events for all kitchens.
	TicketsSubject = "kot.tickets"

	EventTicketCreated       = "kot.ticket.created"
	EventTicketStatusChanged = "kot.ticket.status_changed"
	EventItemStatusChanged   = "kot.item.status_changed"
	EventTicketDeleted       = "kot.ticket.deleted"
)

// KitchenSubject returns the subject scoped to a single kitchen.
func KitchenSubject(kitchenID string) string {
	return TicketsSubject + ".kitchen." + kitchenID
}

// StationSubject returns the subject scoped to a single station.
func StationSubject(stationID string) string {
	return TicketsSubject + ".station." + stationID
}

type TicketEventMetadata struct {
	EventType  string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
	TicketID   string    `json:"ticket_id"`
	Kitchen    string    `json:"kitchen,omitempty"`
	Station    string    `json:"station,omitempty"`

	// Denormalized data for display
	TableName string `json:"table_name,omitempty"`
	OrderRef  string `json:"order_ref,omitempty"`
}

// TicketCreatedEvent carries the full ticket as published by the backend.
// The ticket body is kept raw so producers and consumers can evolve the
// ticket shape without touching the envelope.
type TicketCreatedEvent struct {
	TicketEventMetadata
	Ticket json.RawMessage `json:"ticket"`
}

// TicketStatusChangedEvent carries either the explicit id+state pair or,
// from older producers, a full ticket body. Consumers prefer the explicit
// form when both are present.
type TicketStatusChangedEvent struct {
	TicketEventMetadata
	NewStatus      string          `json:"new_status"`
	PreviousStatus string          `json:"previous_status,omitempty"`
	Ticket         json.RawMessage `json:"ticket,omitempty"`
}

type ItemStatusChangedEvent struct {
	TicketEventMetadata
	ItemIndex *int   `json:"item_index,omitempty"`
	ItemID    string `json:"item_id,omitempty"`
	NewStatus string `json:"new_status"`
}

type TicketDeletedEvent struct {
	TicketEventMetadata
}
