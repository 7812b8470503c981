package print

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"
)

const defaultLANPort = 9100

// ErrNoPrinterHost means the LAN transport was selected without a configured
// printer host. Rejected up front rather than deferred to a dial timeout.
var ErrNoPrinterHost = errors.New("no printer host configured for LAN transport")

// LANAdapter prints over a raw TCP socket, the usual port-9100 path for
// network thermal printers.
type LANAdapter struct {
	cfg Config

	mu   sync.Mutex
	conn net.Conn
}

func NewLANAdapter(cfg Config) *LANAdapter {
	if cfg.Port == 0 {
		cfg.Port = defaultLANPort
	}
	return &LANAdapter{cfg: cfg}
}

func (a *LANAdapter) Kind() TransportKind { return TransportLAN }

func (a *LANAdapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connectLocked(ctx)
}

func (a *LANAdapter) connectLocked(ctx context.Context) error {
	if a.cfg.Host == "" {
		return ErrNoPrinterHost
	}
	if a.conn != nil {
		return nil
	}

	addr := net.JoinHostPort(a.cfg.Host, strconv.Itoa(a.cfg.Port))
	dialer := net.Dialer{Timeout: 5 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial printer %s: %w", addr, err)
	}
	a.conn = conn
	return nil
}

func (a *LANAdapter) Print(ctx context.Context, job *Job) (string, error) {
	data, err := encodeForWire(job, a.cfg.Codepage)
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.connectLocked(ctx); err != nil {
		return "", err
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = a.conn.SetWriteDeadline(deadline)
	}

	for copyN := 0; copyN < job.Copies; copyN++ {
		if _, err := a.conn.Write(data); err != nil {
			// A broken socket is not reusable; drop it so the retry redials.
			a.conn.Close()
			a.conn = nil
			return "", fmt.Errorf("write to printer: %w", err)
		}
	}

	return fmt.Sprintf("sent %d bytes x%d to %s", len(data), job.Copies, a.cfg.Host), nil
}

func (a *LANAdapter) Disconnect() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn == nil {
		return nil
	}
	err := a.conn.Close()
	a.conn = nil
	return err
}
