package kot

import (
	"sort"
	"strings"
)

// SortMode selects the per-bucket ordering of the projected board.
type SortMode string

const (
	SortByTime     SortMode = "time"
	SortByPriority SortMode = "priority"
	SortByTable    SortMode = "table"
)

// Query is the current filter and sort selection. The zero value projects
// every ticket in arrival order sorted by creation time.
type Query struct {
	Search     string
	ItemFilter string
	SortMode   SortMode
}

// Project computes the filtered, sorted board view. Pure: the input board is
// the caller's snapshot and is not shared with the store.
func Project(board Board, q Query) Board {
	return Board{
		Queued:    projectBucket(board.Queued, q),
		Preparing: projectBucket(board.Preparing, q),
		Ready:     projectBucket(board.Ready, q),
	}
}

func projectBucket(tickets []*Ticket, q Query) []*Ticket {
	result := make([]*Ticket, 0, len(tickets))
	for _, t := range tickets {
		if !matchesSearch(t, q.Search) {
			continue
		}
		if !matchesItemFilter(t, q.ItemFilter) {
			continue
		}
		result = append(result, t)
	}
	sortBucket(result, q.SortMode)
	return result
}

// matchesSearch is a case-insensitive substring match over ticket id, table
// name, order reference, item names and item notes.
func matchesSearch(t *Ticket, term string) bool {
	if term == "" {
		return true
	}
	term = strings.ToLower(term)

	if strings.Contains(strings.ToLower(t.ID), term) ||
		strings.Contains(strings.ToLower(t.TableName), term) ||
		strings.Contains(strings.ToLower(t.OrderRef), term) {
		return true
	}
	for i := range t.Items {
		if strings.Contains(strings.ToLower(t.Items[i].Name), term) ||
			strings.Contains(strings.ToLower(t.Items[i].Notes), term) {
			return true
		}
	}
	return false
}

func matchesItemFilter(t *Ticket, item string) bool {
	if item == "" {
		return true
	}
	for i := range t.Items {
		if t.Items[i].Name == item {
			return true
		}
	}
	return false
}

func sortBucket(tickets []*Ticket, mode SortMode) {
	switch mode {
	case SortByPriority:
		sort.SliceStable(tickets, func(i, j int) bool {
			if tickets[i].Priority != tickets[j].Priority {
				return tickets[i].Priority > tickets[j].Priority
			}
			return tickets[i].CreatedAt.Before(tickets[j].CreatedAt)
		})
	case SortByTable:
		sort.SliceStable(tickets, func(i, j int) bool {
			ti, tj := tickets[i].TableName, tickets[j].TableName
			if ti == "" || tj == "" {
				// Tickets without a table sort last; equal-emptiness pairs
				// keep their relative order.
				return ti != "" && tj == ""
			}
			return ti < tj
		})
	default: // SortByTime
		sort.SliceStable(tickets, func(i, j int) bool {
			return tickets[i].CreatedAt.Before(tickets[j].CreatedAt)
		})
	}
}
