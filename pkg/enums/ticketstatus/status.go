package ticketstatus

import (
	"strings"
)

type Status struct {
	Name string
}

func (s Status) Code() string {
	return s.Name
}

func (s Status) Label() string {
	parts := strings.Split(s.Name, "-")
	for i := range parts {
		if len(parts[i]) > 0 {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, " ")
}

type Enum struct {
	Queued     Status
	InProgress Status
	Ready      Status
	Served     Status
	Cancelled  Status
}

var Statuses = Enum{
	Queued:     Status{Name: "queued"},
	InProgress: Status{Name: "in-progress"},
	Ready:      Status{Name: "ready"},
	Served:     Status{Name: "served"},
	Cancelled:  Status{Name: "cancelled"},
}

var All = []Status{
	Statuses.Queued,
	Statuses.InProgress,
	Statuses.Ready,
	Statuses.Served,
	Statuses.Cancelled,
}

// ByName returns the status for a given name, or nil if not found
func ByName(name string) *Status {
	for _, s := range All {
		if s.Name == name {
			return &s
		}
	}
	return nil
}

// Terminal reports whether tickets in this status leave the visible board.
func (s Status) Terminal() bool {
	return s.Name == Statuses.Served.Name || s.Name == Statuses.Cancelled.Name
}
