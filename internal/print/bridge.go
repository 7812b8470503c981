package print

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrNoAgentURL means the bridge transport was selected without an agent URL
// configured.
var ErrNoAgentURL = errors.New("no agent URL configured for bridge transport")

// BridgeAdapter submits jobs to a local bridge agent over HTTP. The agent
// owns the actual device communication and can render any payload format.
type BridgeAdapter struct {
	cfg  Config
	http *http.Client
}

func NewBridgeAdapter(cfg Config) *BridgeAdapter {
	return &BridgeAdapter{
		cfg:  cfg,
		http: &http.Client{Timeout: 15 * time.Second},
	}
}

func (a *BridgeAdapter) Kind() TransportKind { return TransportBridge }

// Connect pings the agent's health endpoint to verify it is reachable.
func (a *BridgeAdapter) Connect(ctx context.Context) error {
	if a.cfg.AgentURL == "" {
		return ErrNoAgentURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.AgentURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("bridge agent unreachable: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bridge agent health check: status %d", resp.StatusCode)
	}
	return nil
}

type bridgePrintRequest struct {
	Type         string            `json:"type"`
	Format       string            `json:"format"`
	Payload      string            `json:"payload"`
	Copies       int               `json:"copies"`
	PrinterName  string            `json:"printer_name,omitempty"`
	PaperWidthMM int               `json:"paper_width_mm,omitempty"`
	Options      map[string]string `json:"options,omitempty"`
}

type bridgePrintResponse struct {
	Success bool   `json:"success"`
	Detail  string `json:"detail,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (a *BridgeAdapter) Print(ctx context.Context, job *Job) (string, error) {
	if a.cfg.AgentURL == "" {
		return "", ErrNoAgentURL
	}

	body, err := json.Marshal(bridgePrintRequest{
		Type:         string(job.Type),
		Format:       string(job.Format),
		Payload:      job.Payload,
		Copies:       job.Copies,
		PrinterName:  a.cfg.PrinterName,
		PaperWidthMM: a.cfg.PaperWidthMM,
		Options:      job.Options,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.AgentURL+"/print", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("bridge agent print: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("bridge agent print: status %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}

	var out bridgePrintResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("bridge agent print: decode response: %w", err)
	}
	if !out.Success {
		if out.Error != "" {
			return "", fmt.Errorf("bridge agent rejected job: %s", out.Error)
		}
		return "", errors.New("bridge agent rejected job")
	}
	if out.Detail == "" {
		out.Detail = "accepted by bridge agent"
	}
	return out.Detail, nil
}

func (a *BridgeAdapter) Disconnect() error {
	// Stateless HTTP transport; nothing to tear down.
	return nil
}
