package httpapi

import (
	"context"
	"sync"
	"time"

	"github.com/tableside/kds/internal/backend"
	"github.com/tableside/kds/internal/print"
)

// MockBackend implements BackendGateway with swappable function fields.
type MockBackend struct {
	UpdateTicketStatusFunc func(ctx context.Context, ticketID, status string) error
	UpdateItemStatusFunc   func(ctx context.Context, ticketID string, itemIndex int, status string) error
	ListFacilitiesFunc     func(ctx context.Context, branch string) (backend.Facilities, error)
	RenderDocumentFunc     func(ctx context.Context, doctype, docname, printType string) (string, error)
}

func NewMockBackend() *MockBackend {
	return &MockBackend{}
}

func (m *MockBackend) UpdateTicketStatus(ctx context.Context, ticketID, status string) error {
	if m.UpdateTicketStatusFunc != nil {
		return m.UpdateTicketStatusFunc(ctx, ticketID, status)
	}
	return nil
}

func (m *MockBackend) UpdateItemStatus(ctx context.Context, ticketID string, itemIndex int, status string) error {
	if m.UpdateItemStatusFunc != nil {
		return m.UpdateItemStatusFunc(ctx, ticketID, itemIndex, status)
	}
	return nil
}

func (m *MockBackend) ListFacilities(ctx context.Context, branch string) (backend.Facilities, error) {
	if m.ListFacilitiesFunc != nil {
		return m.ListFacilitiesFunc(ctx, branch)
	}
	return backend.Facilities{}, nil
}

func (m *MockBackend) RenderDocument(ctx context.Context, doctype, docname, printType string) (string, error) {
	if m.RenderDocumentFunc != nil {
		return m.RenderDocumentFunc(ctx, doctype, docname, printType)
	}
	return "", nil
}

// MockPrinter implements Printer.
type MockPrinter struct {
	DoFunc func(ctx context.Context, job *print.Job) (string, error)

	mu   sync.Mutex
	jobs []*print.Job
}

func NewMockPrinter() *MockPrinter {
	return &MockPrinter{}
}

func (m *MockPrinter) Do(ctx context.Context, job *print.Job) (string, error) {
	m.mu.Lock()
	m.jobs = append(m.jobs, job)
	m.mu.Unlock()

	if m.DoFunc != nil {
		return m.DoFunc(ctx, job)
	}
	return "printed", nil
}

func (m *MockPrinter) Jobs() []*print.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*print.Job(nil), m.jobs...)
}

// MockPublisher records published messages.
type MockPublisher struct {
	PublishFunc func(ctx context.Context, subject string, msg []byte) error

	mu        sync.Mutex
	published map[string][][]byte
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{published: make(map[string][][]byte)}
}

func (m *MockPublisher) Publish(ctx context.Context, subject string, msg []byte) error {
	m.mu.Lock()
	m.published[subject] = append(m.published[subject], msg)
	m.mu.Unlock()

	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, subject, msg)
	}
	return nil
}

func (m *MockPublisher) Published(subject string) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.published[subject]
}

// MockRescoper records scope changes.
type MockRescoper struct {
	RescopeFunc func(ctx context.Context, kitchen, station string) error

	mu     sync.Mutex
	scopes [][2]string
}

func NewMockRescoper() *MockRescoper {
	return &MockRescoper{}
}

func (m *MockRescoper) Rescope(ctx context.Context, kitchen, station string) error {
	m.mu.Lock()
	m.scopes = append(m.scopes, [2]string{kitchen, station})
	m.mu.Unlock()

	if m.RescopeFunc != nil {
		return m.RescopeFunc(ctx, kitchen, station)
	}
	return nil
}

func (m *MockRescoper) Scopes() [][2]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][2]string(nil), m.scopes...)
}

// MockTuner records runtime parameter changes.
type MockTuner struct {
	mu         sync.Mutex
	thresholds [][2]time.Duration
	intervals  []time.Duration
}

func NewMockTuner() *MockTuner {
	return &MockTuner{}
}

func (m *MockTuner) SetSLAThresholds(warning, critical time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.thresholds = append(m.thresholds, [2]time.Duration{warning, critical})
}

func (m *MockTuner) SetPollInterval(interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.intervals = append(m.intervals, interval)
}

func (m *MockTuner) Thresholds() [][2]time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][2]time.Duration(nil), m.thresholds...)
}

func (m *MockTuner) Intervals() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.intervals...)
}
