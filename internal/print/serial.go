package print

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.bug.st/serial"
)

const defaultBaudRate = 9600

// ErrNoSerialPort means the wireless transport was selected without a paired
// serial port configured.
var ErrNoSerialPort = errors.New("no serial port configured for wireless transport")

// SerialAdapter prints through a serial port. Paired short-range wireless
// printers (Bluetooth SPP) surface as serial ports on every platform this
// runs on.
type SerialAdapter struct {
	cfg Config

	mu   sync.Mutex
	port serial.Port
}

func NewSerialAdapter(cfg Config) *SerialAdapter {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = defaultBaudRate
	}
	return &SerialAdapter{cfg: cfg}
}

func (a *SerialAdapter) Kind() TransportKind { return TransportWireless }

func (a *SerialAdapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connectLocked()
}

func (a *SerialAdapter) connectLocked() error {
	if a.cfg.SerialPort == "" {
		return ErrNoSerialPort
	}
	if a.port != nil {
		return nil
	}

	mode := &serial.Mode{
		BaudRate: a.cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(a.cfg.SerialPort, mode)
	if err != nil {
		return fmt.Errorf("open serial port %s: %w", a.cfg.SerialPort, err)
	}
	a.port = port
	return nil
}

func (a *SerialAdapter) Print(ctx context.Context, job *Job) (string, error) {
	data, err := encodeForWire(job, a.cfg.Codepage)
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.connectLocked(); err != nil {
		return "", err
	}

	for copyN := 0; copyN < job.Copies; copyN++ {
		if _, err := a.port.Write(data); err != nil {
			a.port.Close()
			a.port = nil
			return "", fmt.Errorf("write to serial port: %w", err)
		}
	}
	if err := a.port.Drain(); err != nil {
		return "", fmt.Errorf("drain serial port: %w", err)
	}

	return fmt.Sprintf("sent %d bytes x%d to %s", len(data), job.Copies, a.cfg.SerialPort), nil
}

func (a *SerialAdapter) Disconnect() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.port == nil {
		return nil
	}
	err := a.port.Close()
	a.port = nil
	return err
}
