// Package backend is the HTTP client for the POS backend that owns ticket
// persistence. Fetch and mutation failures are returned to the caller
// untouched; nothing here retries, because order-state errors must reach the
// operator.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tableside/kds/internal/kot"
	"github.com/tableside/kds/pkg/logging"
)

const defaultTimeout = 10 * time.Second

// Scope narrows ticket fetches to a kitchen, station and/or branch.
type Scope struct {
	Kitchen string
	Station string
	Branch  string
}

// Facility is a kitchen or station selectable in the board filters.
type Facility struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Facilities holds the two filter selector lists for a branch.
type Facilities struct {
	Kitchens []Facility `json:"kitchens"`
	Stations []Facility `json:"stations"`
}

// AuditEntry describes a completed print job for the backend audit log.
type AuditEntry struct {
	Doctype     string `json:"doctype"`
	Docname     string `json:"docname"`
	PrintType   string `json:"print_type"`
	AdapterType string `json:"adapter_type"`
	Copies      int    `json:"copies"`
}

type Client struct {
	baseURL string
	http    *http.Client
	logger  logging.Logger
}

func NewClient(baseURL string, logger logging.Logger) *Client {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  logger,
	}
}

// ListTickets fetches the full ticket set for a scope.
func (c *Client) ListTickets(ctx context.Context, scope Scope) ([]*kot.Ticket, error) {
	q := url.Values{}
	if scope.Kitchen != "" {
		q.Set("kitchen", scope.Kitchen)
	}
	if scope.Station != "" {
		q.Set("station", scope.Station)
	}
	if scope.Branch != "" {
		q.Set("branch", scope.Branch)
	}

	var resp struct {
		Tickets []*kot.Ticket `json:"tickets"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/kot/tickets", q, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch tickets: %w", err)
	}
	return resp.Tickets, nil
}

// UpdateTicketStatus mutates one ticket's workflow state.
func (c *Client) UpdateTicketStatus(ctx context.Context, ticketID, status string) error {
	body := map[string]string{"status": status}
	var resp successResponse
	path := "/api/kot/tickets/" + url.PathEscape(ticketID) + "/status"
	if err := c.do(ctx, http.MethodPatch, path, nil, body, &resp); err != nil {
		return fmt.Errorf("update ticket %s: %w", ticketID, err)
	}
	return resp.err()
}

// UpdateItemStatus mutates one item's state on a ticket.
func (c *Client) UpdateItemStatus(ctx context.Context, ticketID string, itemIndex int, status string) error {
	body := map[string]any{"item_index": itemIndex, "status": status}
	var resp successResponse
	path := "/api/kot/tickets/" + url.PathEscape(ticketID) + "/item-status"
	if err := c.do(ctx, http.MethodPatch, path, nil, body, &resp); err != nil {
		return fmt.Errorf("update item %d on ticket %s: %w", itemIndex, ticketID, err)
	}
	return resp.err()
}

// ListFacilities fetches the kitchen and station selector lists for a branch.
func (c *Client) ListFacilities(ctx context.Context, branch string) (Facilities, error) {
	q := url.Values{}
	if branch != "" {
		q.Set("branch", branch)
	}
	var resp Facilities
	if err := c.do(ctx, http.MethodGet, "/api/kot/facilities", q, nil, &resp); err != nil {
		return Facilities{}, fmt.Errorf("fetch facilities: %w", err)
	}
	return resp, nil
}

// RenderDocument fetches the rendered print content for a document.
func (c *Client) RenderDocument(ctx context.Context, doctype, docname, printType string) (string, error) {
	q := url.Values{}
	q.Set("doctype", doctype)
	q.Set("docname", docname)
	q.Set("print_type", printType)

	var resp struct {
		Content string `json:"content"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/print/render", q, nil, &resp); err != nil {
		return "", fmt.Errorf("render %s %s: %w", doctype, docname, err)
	}
	return resp.Content, nil
}

// LogPrintJob records a completed print job in the backend audit log.
// Best-effort: callers treat a failure as non-fatal.
func (c *Client) LogPrintJob(ctx context.Context, entry AuditEntry) error {
	var resp successResponse
	if err := c.do(ctx, http.MethodPost, "/api/print/log", nil, entry, &resp); err != nil {
		return fmt.Errorf("log print job: %w", err)
	}
	return resp.err()
}

type successResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func (r successResponse) err() error {
	if r.Success {
		return nil
	}
	if r.Error != "" {
		return fmt.Errorf("backend rejected request: %s", r.Error)
	}
	return fmt.Errorf("backend rejected request")
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(data))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
