package print

import (
	"context"
	"errors"
	"sync"

	"github.com/tableside/kds/pkg/logging"
)

// ErrNoUsableTransport means neither configuration nor capability detection
// produced a working adapter. Print submission must surface this rather than
// silently drop jobs.
var ErrNoUsableTransport = errors.New("no usable print transport")

// autoPreference is the capability auto-detection order: first capable and
// loaded transport wins.
var autoPreference = []TransportKind{
	TransportWireless,
	TransportLAN,
	TransportBridge,
	TransportOSDialog,
}

// Selector owns the active adapter. The dispatch queue reaches the adapter
// only through Active() and the selector never swaps it mid-job.
type Selector struct {
	registry *Registry
	detector *Detector
	logger   logging.Logger

	mu     sync.Mutex
	active Adapter
}

func NewSelector(registry *Registry, detector *Detector, logger logging.Logger) *Selector {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	if detector == nil {
		detector = NewDetector()
	}
	return &Selector{
		registry: registry,
		detector: detector,
		logger:   logger,
	}
}

// Use adopts the explicitly configured transport. The previous adapter is
// disconnected best-effort first; a disconnect failure does not block
// adoption.
func (s *Selector) Use(ctx context.Context, cfg Config) (Adapter, error) {
	adapter, err := s.registry.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := adapter.Connect(ctx); err != nil {
		return nil, err
	}
	s.adopt(adapter)
	return adapter, nil
}

// AutoSelect probes capabilities and adopts the first preference-ordered
// transport that is both capable and loaded. Transports whose adapter module
// is not registered are logged and skipped.
func (s *Selector) AutoSelect(ctx context.Context, base Config) (Adapter, error) {
	caps := s.detector.Detect()

	for _, kind := range autoPreference {
		if !caps.usable(kind) {
			continue
		}
		if !s.registry.Loaded(kind) {
			s.logger.Warn("preferred transport not loaded, falling back", "transport", string(kind))
			continue
		}

		cfg := base
		cfg.Kind = kind
		adapter, err := s.registry.New(cfg)
		if err != nil {
			s.logger.Error("failed to construct adapter, falling back", "transport", string(kind), "error", err)
			continue
		}
		if err := adapter.Connect(ctx); err != nil {
			s.logger.Error("failed to connect adapter, falling back", "transport", string(kind), "error", err)
			continue
		}
		s.adopt(adapter)
		return adapter, nil
	}

	return nil, ErrNoUsableTransport
}

// Active returns the current adapter, or ErrNoUsableTransport when none has
// been selected.
func (s *Selector) Active() (Adapter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil, ErrNoUsableTransport
	}
	return s.active, nil
}

// Close disconnects the active adapter.
func (s *Selector) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil
	}
	err := s.active.Disconnect()
	s.active = nil
	return err
}

func (s *Selector) adopt(adapter Adapter) {
	s.mu.Lock()
	previous := s.active
	s.active = adapter
	s.mu.Unlock()

	if previous != nil {
		if err := previous.Disconnect(); err != nil {
			s.logger.Error("failed to disconnect previous adapter", "transport", string(previous.Kind()), "error", err)
		}
	}
	s.logger.Info("print adapter selected", "transport", string(adapter.Kind()))
}
