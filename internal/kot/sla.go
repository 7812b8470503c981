package kot

import (
	"context"
	"sync"
	"time"

	"github.com/tableside/kds/pkg/logging"
)

// SLALevel classifies how far a ticket has aged against the service
// thresholds.
type SLALevel string

const (
	SLANone     SLALevel = "none"
	SLAWarning  SLALevel = "warning"
	SLACritical SLALevel = "critical"
)

const (
	DefaultSLAWarning  = 300 * time.Second
	DefaultSLACritical = 600 * time.Second
)

// SLAClassifier compares ticket age against the warning and critical
// thresholds. Critical always wins when both are crossed.
type SLAClassifier struct {
	Warning  time.Duration
	Critical time.Duration
}

func NewSLAClassifier(warning, critical time.Duration) SLAClassifier {
	if warning <= 0 {
		warning = DefaultSLAWarning
	}
	if critical <= 0 {
		critical = DefaultSLACritical
	}
	return SLAClassifier{Warning: warning, Critical: critical}
}

// Classify returns the alert level for a ticket at the given instant.
func (c SLAClassifier) Classify(t *Ticket, now time.Time) SLALevel {
	age := now.Sub(t.CreatedAt)
	switch {
	case age > c.Critical:
		return SLACritical
	case age > c.Warning:
		return SLAWarning
	default:
		return SLANone
	}
}

// SLANotifier receives one alert per breaching ticket per scan. Sound and
// visual policy live behind this interface, not in the monitor.
type SLANotifier interface {
	NotifySLA(ticketID string, level SLALevel, age time.Duration)
}

// SLAMonitor periodically scans the queued and preparing buckets and raises
// alerts for tickets over threshold. The ready bucket is exempt.
type SLAMonitor struct {
	store    *Store
	notifier SLANotifier
	interval time.Duration
	now      func() time.Time
	logger   logging.Logger

	mu         sync.Mutex
	classifier SLAClassifier
}

func NewSLAMonitor(store *Store, classifier SLAClassifier, notifier SLANotifier, interval time.Duration, logger logging.Logger) *SLAMonitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &SLAMonitor{
		store:      store,
		classifier: classifier,
		notifier:   notifier,
		interval:   interval,
		now:        time.Now,
		logger:     logger,
	}
}

// SetClassifier swaps the thresholds used by subsequent scans. Safe to call
// while Run is looping.
func (m *SLAMonitor) SetClassifier(classifier SLAClassifier) {
	m.mu.Lock()
	m.classifier = classifier
	m.mu.Unlock()
	m.logger.Info("sla thresholds updated",
		"warning", classifier.Warning.String(), "critical", classifier.Critical.String())
}

// Run scans on the configured interval until ctx is cancelled.
func (m *SLAMonitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Scan()
		}
	}
}

// Scan classifies every queued and preparing ticket once and notifies for
// each breach.
func (m *SLAMonitor) Scan() {
	now := m.now()
	board := m.store.Snapshot()

	m.mu.Lock()
	classifier := m.classifier
	m.mu.Unlock()

	for _, t := range append(board.Queued, board.Preparing...) {
		level := classifier.Classify(t, now)
		if level == SLANone {
			continue
		}
		age := now.Sub(t.CreatedAt)
		m.logger.Debug("ticket over SLA threshold", "ticket_id", t.ID, "level", string(level), "age", age.String())
		if m.notifier != nil {
			m.notifier.NotifySLA(t.ID, level, age)
		}
	}
}
