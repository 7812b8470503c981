package kot

import (
	"time"

	"github.com/tableside/kds/pkg/enums/ticketstatus"
)

// Bucket is one of the three visible board columns.
type Bucket string

const (
	BucketQueued    Bucket = "queued"
	BucketPreparing Bucket = "preparing"
	BucketReady     Bucket = "ready"
)

var Buckets = []Bucket{BucketQueued, BucketPreparing, BucketReady}

// BucketFor maps a workflow status to its board bucket. Terminal statuses
// (served, cancelled) have no bucket and return false.
func BucketFor(status string) (Bucket, bool) {
	switch status {
	case ticketstatus.Statuses.Queued.Code():
		return BucketQueued, true
	case ticketstatus.Statuses.InProgress.Code():
		return BucketPreparing, true
	case ticketstatus.Statuses.Ready.Code():
		return BucketReady, true
	default:
		return "", false
	}
}

// Option is a structured item modifier (size, spice, toppings and the like).
type Option struct {
	Kind  string  `json:"kind"`
	Name  string  `json:"name"`
	Price float64 `json:"price,omitempty"`
}

// Item is a single line on a ticket. Its position in the ticket's item list
// is its primary identity; ID is an optional stable identifier some backends
// assign.
type Item struct {
	ID       string   `json:"id,omitempty"`
	Name     string   `json:"name"`
	Quantity float64  `json:"quantity"`
	Status   string   `json:"status"`
	Notes    string   `json:"notes,omitempty"`
	Options  []Option `json:"options,omitempty"`
}

// Ticket is a kitchen order ticket as the backend represents it. Tickets are
// created server-side only; the client mutates nothing but statuses.
type Ticket struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	Kitchen   string    `json:"kitchen,omitempty"`
	Station   string    `json:"station,omitempty"`
	TableName string    `json:"table_name,omitempty"`
	OrderRef  string    `json:"order_ref,omitempty"`
	Priority  int       `json:"priority,omitempty"`
	Items     []Item    `json:"items"`
}

// Clone returns a deep copy, so readers can hold a ticket without racing
// later store mutations.
func (t *Ticket) Clone() *Ticket {
	cp := *t
	cp.Items = make([]Item, len(t.Items))
	copy(cp.Items, t.Items)
	for i := range cp.Items {
		if len(t.Items[i].Options) > 0 {
			cp.Items[i].Options = make([]Option, len(t.Items[i].Options))
			copy(cp.Items[i].Options, t.Items[i].Options)
		}
	}
	return &cp
}
