package print

import (
	"context"
	"sync"
	"time"

	"github.com/tableside/kds/internal/backend"
)

// MockAdapter is a test double for Adapter
type MockAdapter struct {
	kind           TransportKind
	ConnectFunc    func(ctx context.Context) error
	PrintFunc      func(ctx context.Context, job *Job) (string, error)
	DisconnectFunc func() error

	mu          sync.Mutex
	prints      []string
	disconnects int
}

func NewMockAdapter(kind TransportKind) *MockAdapter {
	return &MockAdapter{kind: kind}
}

func (m *MockAdapter) Kind() TransportKind { return m.kind }

func (m *MockAdapter) Connect(ctx context.Context) error {
	if m.ConnectFunc != nil {
		return m.ConnectFunc(ctx)
	}
	return nil
}

func (m *MockAdapter) Print(ctx context.Context, job *Job) (string, error) {
	m.mu.Lock()
	m.prints = append(m.prints, job.ID.String())
	m.mu.Unlock()
	if m.PrintFunc != nil {
		return m.PrintFunc(ctx, job)
	}
	return "ok", nil
}

func (m *MockAdapter) Disconnect() error {
	m.mu.Lock()
	m.disconnects++
	m.mu.Unlock()
	if m.DisconnectFunc != nil {
		return m.DisconnectFunc()
	}
	return nil
}

func (m *MockAdapter) Disconnects() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disconnects
}

// staticProvider always hands out the same adapter
type staticProvider struct {
	adapter Adapter
	err     error
}

func (p staticProvider) Active() (Adapter, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.adapter, nil
}

// MockAuditor records audit entries
type MockAuditor struct {
	LogPrintJobFunc func(ctx context.Context, entry backend.AuditEntry) error

	mu      sync.Mutex
	entries []backend.AuditEntry
}

func (m *MockAuditor) LogPrintJob(ctx context.Context, entry backend.AuditEntry) error {
	m.mu.Lock()
	m.entries = append(m.entries, entry)
	m.mu.Unlock()
	if m.LogPrintJobFunc != nil {
		return m.LogPrintJobFunc(ctx, entry)
	}
	return nil
}

func (m *MockAuditor) Entries() []backend.AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]backend.AuditEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

func testQueueOptions() QueueOptions {
	return QueueOptions{
		MaxRetries:     DefaultMaxRetries,
		SettleDelay:    time.Millisecond,
		BackoffBase:    time.Millisecond,
		AttemptTimeout: time.Second,
	}
}
