package print

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// TransportKind names one printer access method.
type TransportKind string

const (
	TransportLAN      TransportKind = "lan"
	TransportWireless TransportKind = "wireless"
	TransportBridge   TransportKind = "bridge"
	TransportOSDialog TransportKind = "os-dialog"
)

// Config carries the transport-specific connection parameters for one
// adapter instance.
type Config struct {
	Kind TransportKind `json:"kind"`

	// LAN
	Host string `json:"host,omitempty"`
	Port int    `json:"port,omitempty"`

	// Short-range wireless (SPP devices surface as serial ports)
	SerialPort string `json:"serial_port,omitempty"`
	BaudRate   int    `json:"baud_rate,omitempty"`

	// Bridge agent
	AgentURL string `json:"agent_url,omitempty"`

	// OS dialog / spooler
	PrinterName string `json:"printer_name,omitempty"`

	// Rendering hints
	PaperWidthMM int    `json:"paper_width_mm,omitempty"`
	Codepage     string `json:"codepage,omitempty"`
}

// Adapter is the uniform transport contract. Print returns a short
// human-readable detail string on success.
type Adapter interface {
	Kind() TransportKind
	Connect(ctx context.Context) error
	Print(ctx context.Context, job *Job) (string, error)
	Disconnect() error
}

// Constructor builds an adapter for a config.
type Constructor func(cfg Config) (Adapter, error)

var ErrAdapterNotRegistered = errors.New("adapter not registered")

// Registry holds the constructors for every loaded transport.
type Registry struct {
	mu           sync.RWMutex
	constructors map[TransportKind]Constructor
}

func NewRegistry() *Registry {
	return &Registry{constructors: make(map[TransportKind]Constructor)}
}

// DefaultRegistry returns a registry with all four transports loaded.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(TransportLAN, func(cfg Config) (Adapter, error) { return NewLANAdapter(cfg), nil })
	r.Register(TransportWireless, func(cfg Config) (Adapter, error) { return NewSerialAdapter(cfg), nil })
	r.Register(TransportBridge, func(cfg Config) (Adapter, error) { return NewBridgeAdapter(cfg), nil })
	r.Register(TransportOSDialog, func(cfg Config) (Adapter, error) { return NewSystemAdapter(cfg), nil })
	return r
}

func (r *Registry) Register(kind TransportKind, c Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[kind] = c
}

// Loaded reports whether a constructor exists for the kind.
func (r *Registry) Loaded(kind TransportKind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.constructors[kind]
	return ok
}

// New builds an adapter for the config's transport kind.
func (r *Registry) New(cfg Config) (Adapter, error) {
	r.mu.RLock()
	c, ok := r.constructors[cfg.Kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAdapterNotRegistered, cfg.Kind)
	}
	return c(cfg)
}
