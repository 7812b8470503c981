package print

import (
	"context"
	"sync"
	"time"

	"github.com/tableside/kds/internal/backend"
	"github.com/tableside/kds/pkg/logging"
)

const (
	DefaultMaxRetries   = 2
	defaultSettleDelay  = 200 * time.Millisecond
	defaultBackoffBase  = time.Second
	defaultAttemptLimit = 30 * time.Second
)

// NoRetries configures a queue whose jobs get exactly one attempt. The
// QueueOptions zero value means "use the default", so retry-free dispatch
// needs an explicit sentinel.
const NoRetries = -1

// Result is the terminal outcome of a submitted job.
type Result struct {
	Detail string
	Err    error
}

// AdapterProvider hands out the active adapter. The selector implements it.
type AdapterProvider interface {
	Active() (Adapter, error)
}

// Auditor records completed print jobs. The backend client implements it.
type Auditor interface {
	LogPrintJob(ctx context.Context, entry backend.AuditEntry) error
}

// QueueOptions tune the dispatch timing. Zero values take defaults;
// MaxRetries accepts NoRetries for single-attempt dispatch.
type QueueOptions struct {
	MaxRetries     int
	SettleDelay    time.Duration
	BackoffBase    time.Duration
	AttemptTimeout time.Duration
}

// Queue executes print jobs strictly one at a time through the active
// adapter. Jobs run in FIFO order except that a failing job's retries are
// requeued at the head, ahead of later jobs; two non-retried jobs are never
// reordered relative to each other.
type Queue struct {
	adapters AdapterProvider
	auditor  Auditor
	logger   logging.Logger

	maxRetries     int
	settleDelay    time.Duration
	backoffBase    time.Duration
	attemptTimeout time.Duration

	mu         sync.Mutex
	items      []*pendingJob
	processing bool
}

type pendingJob struct {
	job  *Job
	done chan Result
}

func NewQueue(adapters AdapterProvider, auditor Auditor, opts QueueOptions, logger logging.Logger) *Queue {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = DefaultMaxRetries
	} else if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = defaultSettleDelay
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = defaultBackoffBase
	}
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = defaultAttemptLimit
	}
	return &Queue{
		adapters:       adapters,
		auditor:        auditor,
		logger:         logger,
		maxRetries:     opts.MaxRetries,
		settleDelay:    opts.SettleDelay,
		backoffBase:    opts.BackoffBase,
		attemptTimeout: opts.AttemptTimeout,
	}
}

// Submit normalizes the job, appends it to the queue tail and starts the
// drain loop if it was idle. The returned channel receives exactly one
// Result.
func (q *Queue) Submit(job *Job) <-chan Result {
	job.normalize()
	p := &pendingJob{job: job, done: make(chan Result, 1)}

	q.mu.Lock()
	q.items = append(q.items, p)
	start := !q.processing
	if start {
		q.processing = true
	}
	q.mu.Unlock()

	if start {
		go q.drain()
	}
	return p.done
}

// Do submits and waits for the terminal result.
func (q *Queue) Do(ctx context.Context, job *Job) (string, error) {
	done := q.Submit(job)
	select {
	case <-ctx.Done():
		// The job stays queued; there is no cancellation of dispatched work.
		return "", ctx.Err()
	case res := <-done:
		return res.Detail, res.Err
	}
}

// Pending returns the number of queued jobs, excluding the in-flight one.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			q.processing = false
			q.mu.Unlock()
			return
		}
		p := q.items[0]
		q.items = q.items[1:]
		q.mu.Unlock()

		q.attempt(p)
	}
}

func (q *Queue) attempt(p *pendingJob) {
	adapter, err := q.adapters.Active()
	if err != nil {
		q.logger.Error("print job rejected, no adapter", "job_id", p.job.ID.String(), "error", err)
		p.done <- Result{Err: err}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), q.attemptTimeout)
	detail, err := adapter.Print(ctx, p.job)
	cancel()

	if err == nil {
		p.done <- Result{Detail: detail}
		q.audit(p.job, adapter)
		time.Sleep(q.settleDelay)
		return
	}

	if p.job.Retries < q.maxRetries {
		p.job.Retries++
		q.logger.Info("print attempt failed, retrying",
			"job_id", p.job.ID.String(), "retry", p.job.Retries, "error", err)

		q.mu.Lock()
		q.items = append([]*pendingJob{p}, q.items...)
		q.mu.Unlock()

		time.Sleep(q.backoff(p.job.Retries))
		return
	}

	q.logger.Error("print job failed after retries",
		"job_id", p.job.ID.String(), "attempts", p.job.Retries+1, "error", err)
	p.done <- Result{Err: err}
}

func (q *Queue) backoff(retry int) time.Duration {
	d := q.backoffBase
	for i := 1; i < retry; i++ {
		d *= 2
	}
	return d
}

// audit logs the completed job with the backend, skipping test prints and
// jobs without a source document. Failures are non-fatal.
func (q *Queue) audit(job *Job, adapter Adapter) {
	if q.auditor == nil || job.Type == JobTest || job.Source == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	entry := backend.AuditEntry{
		Doctype:     job.Source.Doctype,
		Docname:     job.Source.Docname,
		PrintType:   string(job.Type),
		AdapterType: string(adapter.Kind()),
		Copies:      job.Copies,
	}
	if err := q.auditor.LogPrintJob(ctx, entry); err != nil {
		q.logger.Error("print audit log failed", "job_id", job.ID.String(), "error", err)
	}
}
