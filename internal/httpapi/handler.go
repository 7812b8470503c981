// Package httpapi exposes the board projection, status mutations, print
// submission and the SSE stream over HTTP. Mutations go to the backend
// first; the local store is only touched after the backend accepted the
// change.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tableside/kds/internal/backend"
	"github.com/tableside/kds/internal/kot"
	"github.com/tableside/kds/internal/print"
	"github.com/tableside/kds/internal/session"
	"github.com/tableside/kds/pkg/bus"
	"github.com/tableside/kds/pkg/enums/itemstatus"
	"github.com/tableside/kds/pkg/enums/ticketstatus"
	"github.com/tableside/kds/pkg/event"
	"github.com/tableside/kds/pkg/httpx"
	"github.com/tableside/kds/pkg/logging"
)

const MaxBodyBytes = 1 << 20

// BackendGateway is the slice of the backend client the handler needs.
type BackendGateway interface {
	UpdateTicketStatus(ctx context.Context, ticketID, status string) error
	UpdateItemStatus(ctx context.Context, ticketID string, itemIndex int, status string) error
	ListFacilities(ctx context.Context, branch string) (backend.Facilities, error)
	RenderDocument(ctx context.Context, doctype, docname, printType string) (string, error)
}

// Printer dispatches a job and waits for its terminal result.
type Printer interface {
	Do(ctx context.Context, job *print.Job) (string, error)
}

// Rescoper retargets the realtime and polling channels after the operator
// changes the kitchen/station selection.
type Rescoper interface {
	Rescope(ctx context.Context, kitchen, station string) error
}

// Tuner applies runtime-tunable engine parameters from a settings change to
// the running components.
type Tuner interface {
	SetSLAThresholds(warning, critical time.Duration)
	SetPollInterval(interval time.Duration)
}

type Handler struct {
	store     *kot.Store
	feed      *kot.Feed
	backend   BackendGateway
	printer   Printer
	settings  *session.Store
	publisher bus.Publisher
	rescoper  Rescoper
	tuner     Tuner
	branch    string
	logger    logging.Logger
}

type HandlerOptions struct {
	Store     *kot.Store
	Feed      *kot.Feed
	Backend   BackendGateway
	Printer   Printer
	Settings  *session.Store
	Publisher bus.Publisher
	Rescoper  Rescoper
	Tuner     Tuner
	Branch    string
	Logger    logging.Logger
}

func NewHandler(opts HandlerOptions) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &Handler{
		store:     opts.Store,
		feed:      opts.Feed,
		backend:   opts.Backend,
		printer:   opts.Printer,
		settings:  opts.Settings,
		publisher: opts.Publisher,
		rescoper:  opts.Rescoper,
		tuner:     opts.Tuner,
		branch:    opts.Branch,
		logger:    logger,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/board", h.GetBoard)
	r.Get("/board/stream", h.StreamBoard)
	r.Route("/tickets", func(r chi.Router) {
		r.Get("/{id}", h.GetTicket)
		r.Patch("/{id}/status", h.UpdateTicketStatus)
		r.Patch("/{id}/items/{index}/status", h.UpdateItemStatus)
	})
	r.Get("/facilities", h.ListFacilities)
	r.Post("/print", h.SubmitPrint)
	r.Get("/settings", h.GetSettings)
	r.Put("/settings", h.PutSettings)
	r.Get("/health", h.Health)
}

// GetBoard projects the current board through the query's filter and sort
// selection.
func (h *Handler) GetBoard(w http.ResponseWriter, r *http.Request) {
	q := kot.Query{
		Search:     r.URL.Query().Get("search"),
		ItemFilter: r.URL.Query().Get("item"),
		SortMode:   kot.SortMode(r.URL.Query().Get("sort")),
	}

	board := kot.Project(h.store.Snapshot(), q)
	httpx.Respond(w, http.StatusOK, board)
}

func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ticket := h.store.Get(id)
	if ticket == nil {
		httpx.RespondError(w, http.StatusNotFound, "Ticket not found")
		return
	}
	httpx.Respond(w, http.StatusOK, ticket)
}

type statusRequest struct {
	Status string `json:"status"`
}

// UpdateTicketStatus mutates a ticket's workflow state on the backend, then
// applies the same transition locally and publishes it for sibling screens.
// Backend failures surface to the caller and leave the board untouched.
func (h *Handler) UpdateTicketStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var req statusRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes)).Decode(&req); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if ticketstatus.ByName(req.Status) == nil {
		httpx.RespondError(w, http.StatusBadRequest, "Unknown ticket status")
		return
	}

	if err := h.backend.UpdateTicketStatus(ctx, id, req.Status); err != nil {
		h.logger.Errorf("cannot update ticket %s: %v", id, err)
		httpx.RespondError(w, http.StatusBadGateway, "Backend rejected status update")
		return
	}

	h.store.TransitionTicket(id, req.Status)
	h.publishTicketStatus(ctx, id, req.Status)

	httpx.Respond(w, http.StatusOK, map[string]any{"success": true})
}

// UpdateItemStatus mutates one item's state, addressed by its position on
// the ticket.
func (h *Handler) UpdateItemStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		httpx.RespondError(w, http.StatusBadRequest, "Invalid item index")
		return
	}

	var req statusRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes)).Decode(&req); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if itemstatus.ByName(req.Status) == nil {
		httpx.RespondError(w, http.StatusBadRequest, "Unknown item status")
		return
	}

	if err := h.backend.UpdateItemStatus(ctx, id, index, req.Status); err != nil {
		h.logger.Errorf("cannot update item %d on ticket %s: %v", index, id, err)
		httpx.RespondError(w, http.StatusBadGateway, "Backend rejected item status update")
		return
	}

	h.store.TransitionItem(id, index, "", req.Status)
	h.publishItemStatus(ctx, id, index, req.Status)

	httpx.Respond(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) ListFacilities(w http.ResponseWriter, r *http.Request) {
	branch := r.URL.Query().Get("branch")
	if branch == "" {
		branch = h.branch
	}

	facilities, err := h.backend.ListFacilities(r.Context(), branch)
	if err != nil {
		h.logger.Errorf("cannot list facilities: %v", err)
		httpx.RespondError(w, http.StatusBadGateway, "Could not fetch facilities")
		return
	}
	httpx.Respond(w, http.StatusOK, facilities)
}

type printRequest struct {
	Type      string            `json:"type"`
	Format    string            `json:"format"`
	Payload   string            `json:"payload"`
	Doctype   string            `json:"doctype"`
	Docname   string            `json:"docname"`
	PrintType string            `json:"print_type"`
	Copies    int               `json:"copies"`
	Options   map[string]string `json:"options"`
}

type printResponse struct {
	JobID  string `json:"job_id"`
	Detail string `json:"detail"`
}

// SubmitPrint renders the referenced document (or takes the inline payload),
// queues the job and waits for its terminal result.
func (h *Handler) SubmitPrint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req printRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes)).Decode(&req); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	job := &print.Job{
		Type:    print.JobType(req.Type),
		Format:  print.Format(req.Format),
		Payload: req.Payload,
		Copies:  req.Copies,
		Options: req.Options,
	}

	if req.Doctype != "" && req.Docname != "" {
		content, err := h.backend.RenderDocument(ctx, req.Doctype, req.Docname, req.PrintType)
		if err != nil {
			h.logger.Errorf("cannot render %s %s: %v", req.Doctype, req.Docname, err)
			httpx.RespondError(w, http.StatusBadGateway, "Could not render document")
			return
		}
		job.Payload = content
		job.Source = &print.SourceRef{Doctype: req.Doctype, Docname: req.Docname}
	}

	if job.Payload == "" {
		httpx.RespondError(w, http.StatusBadRequest, "Nothing to print")
		return
	}

	detail, err := h.printer.Do(ctx, job)
	if err != nil {
		h.logger.Errorf("print job %s failed: %v", job.ID, err)
		httpx.RespondError(w, http.StatusBadGateway, "Print failed: "+err.Error())
		return
	}

	httpx.Respond(w, http.StatusOK, printResponse{JobID: job.ID.String(), Detail: detail})
}

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	httpx.Respond(w, http.StatusOK, h.settings.Load())
}

// PutSettings replaces the persisted screen settings. A kitchen or station
// change retargets the realtime subscriptions and the polling scope; SLA
// threshold and poll interval changes reach the running components through
// the tuner, so no restart is needed.
func (h *Handler) PutSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req session.Settings
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes)).Decode(&req); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	previous := h.settings.Load()
	if err := h.settings.Save(req); err != nil {
		h.logger.Errorf("cannot save settings: %v", err)
		httpx.RespondError(w, http.StatusInternalServerError, "Could not save settings")
		return
	}

	if h.tuner != nil {
		if req.SLAWarning > 0 && req.SLACritical > 0 &&
			(req.SLAWarning != previous.SLAWarning || req.SLACritical != previous.SLACritical) {
			h.tuner.SetSLAThresholds(req.SLAWarning, req.SLACritical)
		}
		if req.PollInterval > 0 && req.PollInterval != previous.PollInterval {
			h.tuner.SetPollInterval(req.PollInterval)
		}
	}

	if h.rescoper != nil && (req.Kitchen != previous.Kitchen || req.Station != previous.Station) {
		if err := h.rescoper.Rescope(ctx, req.Kitchen, req.Station); err != nil {
			h.logger.Errorf("cannot retarget scope: %v", err)
			httpx.RespondError(w, http.StatusBadGateway, "Settings saved, but scope change failed")
			return
		}
	}

	httpx.Respond(w, http.StatusOK, h.settings.Load())
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	httpx.Respond(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"tickets": h.store.Len(),
	})
}

func (h *Handler) publishTicketStatus(ctx context.Context, ticketID, status string) {
	if h.publisher == nil {
		return
	}

	evt := event.TicketStatusChangedEvent{
		TicketEventMetadata: event.TicketEventMetadata{
			EventType:  event.EventTicketStatusChanged,
			OccurredAt: time.Now().UTC(),
			TicketID:   ticketID,
		},
		NewStatus: status,
	}
	h.publish(ctx, ticketID, evt)
}

func (h *Handler) publishItemStatus(ctx context.Context, ticketID string, index int, status string) {
	if h.publisher == nil {
		return
	}

	evt := event.ItemStatusChangedEvent{
		TicketEventMetadata: event.TicketEventMetadata{
			EventType:  event.EventItemStatusChanged,
			OccurredAt: time.Now().UTC(),
			TicketID:   ticketID,
		},
		ItemIndex: &index,
		NewStatus: status,
	}
	h.publish(ctx, ticketID, evt)
}

// publish fans the event out on the global subject plus the ticket's
// kitchen-scoped subject when known. Best-effort: sibling screens also have
// their poll cycle.
func (h *Handler) publish(ctx context.Context, ticketID string, evt any) {
	data, err := json.Marshal(evt)
	if err != nil {
		h.logger.Errorf("cannot marshal event for ticket %s: %v", ticketID, err)
		return
	}

	subjects := []string{event.TicketsSubject}
	if t := h.store.Get(ticketID); t != nil && t.Kitchen != "" {
		subjects = append(subjects, event.KitchenSubject(t.Kitchen))
	}
	for _, subject := range subjects {
		if err := h.publisher.Publish(ctx, subject, data); err != nil {
			h.logger.Errorf("cannot publish to %s: %v", subject, err)
		}
	}
}
