package print

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ErrNoSpooler means neither lp nor lpr is available on this host.
var ErrNoSpooler = errors.New("no system print spooler available")

// SystemAdapter hands jobs to the OS print spooler, the closest server-side
// equivalent of the native print dialog.
type SystemAdapter struct {
	cfg Config

	// lookPath and runner are swappable for tests.
	lookPath func(file string) (string, error)
	runner   func(ctx context.Context, name string, args []string, stdin []byte) ([]byte, error)

	binary string
}

func NewSystemAdapter(cfg Config) *SystemAdapter {
	return &SystemAdapter{
		cfg:      cfg,
		lookPath: exec.LookPath,
		runner:   runCommand,
	}
}

func runCommand(ctx context.Context, name string, args []string, stdin []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	return cmd.CombinedOutput()
}

func (a *SystemAdapter) Kind() TransportKind { return TransportOSDialog }

func (a *SystemAdapter) Connect(ctx context.Context) error {
	for _, bin := range []string{"lp", "lpr"} {
		if path, err := a.lookPath(bin); err == nil {
			a.binary = path
			return nil
		}
	}
	return ErrNoSpooler
}

func (a *SystemAdapter) Print(ctx context.Context, job *Job) (string, error) {
	if a.binary == "" {
		if err := a.Connect(ctx); err != nil {
			return "", err
		}
	}

	var args []string
	if strings.HasSuffix(a.binary, "lpr") {
		if a.cfg.PrinterName != "" {
			args = append(args, "-P", a.cfg.PrinterName)
		}
		args = append(args, "-#", strconv.Itoa(job.Copies))
	} else {
		if a.cfg.PrinterName != "" {
			args = append(args, "-d", a.cfg.PrinterName)
		}
		args = append(args, "-n", strconv.Itoa(job.Copies))
	}

	out, err := a.runner(ctx, a.binary, args, []byte(job.Payload))
	if err != nil {
		return "", fmt.Errorf("spooler %s: %w: %s", a.binary, err, bytes.TrimSpace(out))
	}

	detail := strings.TrimSpace(string(out))
	if detail == "" {
		detail = fmt.Sprintf("spooled x%d via %s", job.Copies, a.binary)
	}
	return detail, nil
}

func (a *SystemAdapter) Disconnect() error {
	a.binary = ""
	return nil
}
