package print

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tableside/kds/internal/backend"
)

func TestQueueSubmitNormalizesDefaults(t *testing.T) {
	adapter := NewMockAdapter(TransportLAN)
	var got *Job
	var mu sync.Mutex
	adapter.PrintFunc = func(ctx context.Context, job *Job) (string, error) {
		mu.Lock()
		got = job
		mu.Unlock()
		return "ok", nil
	}

	q := NewQueue(staticProvider{adapter: adapter}, nil, testQueueOptions(), nil)
	res := <-q.Submit(&Job{Payload: "hello"})
	if res.Err != nil {
		t.Fatalf("Submit() result error = %v", res.Err)
	}

	mu.Lock()
	defer mu.Unlock()
	if got.Format != FormatHTML {
		t.Errorf("Format = %q, want html", got.Format)
	}
	if got.Copies != 1 {
		t.Errorf("Copies = %d, want 1", got.Copies)
	}
	if got.Retries != 0 {
		t.Errorf("Retries = %d, want 0", got.Retries)
	}
}

func TestQueueRetriesInterleaveAheadOfLaterJobs(t *testing.T) {
	type attempt struct {
		job string
		ok  bool
	}
	var mu sync.Mutex
	var attempts []attempt

	failures := 2
	adapter := NewMockAdapter(TransportLAN)
	adapter.PrintFunc = func(ctx context.Context, job *Job) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		name := job.Options["name"]
		if name == "J1" && failures > 0 {
			failures--
			attempts = append(attempts, attempt{job: name, ok: false})
			return "", errors.New("paper jam")
		}
		attempts = append(attempts, attempt{job: name, ok: true})
		return "ok", nil
	}

	q := NewQueue(staticProvider{adapter: adapter}, nil, testQueueOptions(), nil)

	done1 := q.Submit(&Job{Payload: "a", Options: map[string]string{"name": "J1"}})
	done2 := q.Submit(&Job{Payload: "b", Options: map[string]string{"name": "J2"}})

	res1 := <-done1
	res2 := <-done2
	if res1.Err != nil {
		t.Errorf("J1 error = %v, want success after retries", res1.Err)
	}
	if res2.Err != nil {
		t.Errorf("J2 error = %v, want success", res2.Err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []attempt{
		{job: "J1", ok: false},
		{job: "J1", ok: false},
		{job: "J1", ok: true},
		{job: "J2", ok: true},
	}
	if len(attempts) != len(want) {
		t.Fatalf("got %d attempts, want %d: %v", len(attempts), len(want), attempts)
	}
	for i := range want {
		if attempts[i] != want[i] {
			t.Errorf("attempt %d = %+v, want %+v", i, attempts[i], want[i])
		}
	}
}

func TestQueueExhaustedRetriesRejects(t *testing.T) {
	var mu sync.Mutex
	total := 0
	adapter := NewMockAdapter(TransportLAN)
	adapter.PrintFunc = func(ctx context.Context, job *Job) (string, error) {
		mu.Lock()
		total++
		mu.Unlock()
		return "", errors.New("printer offline")
	}

	opts := testQueueOptions()
	opts.MaxRetries = 2
	q := NewQueue(staticProvider{adapter: adapter}, nil, opts, nil)

	res := <-q.Submit(&Job{Payload: "x"})
	if res.Err == nil {
		t.Fatal("result error = nil, want failure after exhausted retries")
	}

	mu.Lock()
	defer mu.Unlock()
	if total != 3 {
		t.Errorf("total attempts = %d, want 3 (initial + 2 retries)", total)
	}
}

func TestQueueNoRetriesSingleAttempt(t *testing.T) {
	var mu sync.Mutex
	total := 0
	adapter := NewMockAdapter(TransportLAN)
	adapter.PrintFunc = func(ctx context.Context, job *Job) (string, error) {
		mu.Lock()
		total++
		mu.Unlock()
		return "", errors.New("printer offline")
	}

	opts := testQueueOptions()
	opts.MaxRetries = NoRetries
	q := NewQueue(staticProvider{adapter: adapter}, nil, opts, nil)

	res := <-q.Submit(&Job{Payload: "x"})
	if res.Err == nil {
		t.Fatal("result error = nil, want immediate failure")
	}

	mu.Lock()
	defer mu.Unlock()
	if total != 1 {
		t.Errorf("total attempts = %d, want exactly 1 with NoRetries", total)
	}
}

func TestQueueFIFOAcrossSuccessfulJobs(t *testing.T) {
	var mu sync.Mutex
	var order []string
	adapter := NewMockAdapter(TransportLAN)
	adapter.PrintFunc = func(ctx context.Context, job *Job) (string, error) {
		mu.Lock()
		order = append(order, job.Options["name"])
		mu.Unlock()
		return "ok", nil
	}

	q := NewQueue(staticProvider{adapter: adapter}, nil, testQueueOptions(), nil)

	var chans []<-chan Result
	names := []string{"A", "B", "C", "D"}
	for _, name := range names {
		chans = append(chans, q.Submit(&Job{Payload: name, Options: map[string]string{"name": name}}))
	}
	for _, ch := range chans {
		<-ch
	}

	mu.Lock()
	defer mu.Unlock()
	for i, name := range names {
		if order[i] != name {
			t.Fatalf("execution order = %v, want %v", order, names)
		}
	}
}

func TestQueueNoAdapterRejects(t *testing.T) {
	q := NewQueue(staticProvider{err: ErrNoUsableTransport}, nil, testQueueOptions(), nil)

	res := <-q.Submit(&Job{Payload: "x"})
	if !errors.Is(res.Err, ErrNoUsableTransport) {
		t.Errorf("result error = %v, want ErrNoUsableTransport", res.Err)
	}
}

func TestQueueAudit(t *testing.T) {
	tests := []struct {
		name      string
		job       *Job
		wantAudit bool
	}{
		{
			name:      "sourcedJobAudited",
			job:       &Job{Type: JobReceipt, Payload: "r", Copies: 2, Source: &SourceRef{Doctype: "Invoice", Docname: "INV-1"}},
			wantAudit: true,
		},
		{
			name:      "testJobSkipped",
			job:       &Job{Type: JobTest, Payload: "t", Source: &SourceRef{Doctype: "Invoice", Docname: "INV-2"}},
			wantAudit: false,
		},
		{
			name:      "sourcelessJobSkipped",
			job:       &Job{Type: JobKOT, Payload: "k"},
			wantAudit: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := NewMockAdapter(TransportBridge)
			auditor := &MockAuditor{}
			q := NewQueue(staticProvider{adapter: adapter}, auditor, testQueueOptions(), nil)

			if res := <-q.Submit(tt.job); res.Err != nil {
				t.Fatalf("result error = %v", res.Err)
			}

			entries := auditor.Entries()
			if tt.wantAudit && len(entries) != 1 {
				t.Fatalf("got %d audit entries, want 1", len(entries))
			}
			if !tt.wantAudit && len(entries) != 0 {
				t.Fatalf("got %d audit entries, want 0", len(entries))
			}
			if tt.wantAudit {
				if entries[0].AdapterType != string(TransportBridge) {
					t.Errorf("AdapterType = %q, want bridge", entries[0].AdapterType)
				}
				if entries[0].Copies != 2 {
					t.Errorf("Copies = %d, want 2", entries[0].Copies)
				}
			}
		})
	}
}

func TestQueueAuditFailureNonFatal(t *testing.T) {
	adapter := NewMockAdapter(TransportLAN)
	failing := &MockAuditor{
		LogPrintJobFunc: func(ctx context.Context, entry backend.AuditEntry) error {
			return errors.New("audit endpoint down")
		},
	}

	q := NewQueue(staticProvider{adapter: adapter}, failing, testQueueOptions(), nil)
	res := <-q.Submit(&Job{Type: JobKOT, Payload: "k", Source: &SourceRef{Doctype: "KOT", Docname: "KOT-1"}})
	if res.Err != nil {
		t.Errorf("result error = %v, want success despite audit failure", res.Err)
	}
}

func TestQueueDoRespectsContext(t *testing.T) {
	block := make(chan struct{})
	adapter := NewMockAdapter(TransportLAN)
	adapter.PrintFunc = func(ctx context.Context, job *Job) (string, error) {
		<-block
		return "ok", nil
	}

	q := NewQueue(staticProvider{adapter: adapter}, nil, testQueueOptions(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := q.Do(ctx, &Job{Payload: "x"})
	close(block)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Do() error = %v, want deadline exceeded", err)
	}
}
