package print

import (
	"time"

	"github.com/google/uuid"
)

// JobType classifies what a print job renders.
type JobType string

const (
	JobKOT          JobType = "kot"
	JobReceipt      JobType = "receipt"
	JobCustomerBill JobType = "customer-bill"
	JobQueueTicket  JobType = "queue-ticket"
	JobTest         JobType = "test"
)

// Format tags the payload encoding.
type Format string

const (
	FormatHTML    Format = "html"
	FormatRaw     Format = "raw"
	FormatCommand Format = "command"
)

// SourceRef points at the backend document a job was rendered from, used for
// audit logging. Jobs without one (test prints, ad hoc content) are not
// audited.
type SourceRef struct {
	Doctype string `json:"doctype"`
	Docname string `json:"docname"`
}

// Job is a single print request. It lives only inside the dispatch queue and
// is discarded after terminal success or exhausted retries.
type Job struct {
	ID          uuid.UUID         `json:"id"`
	Type        JobType           `json:"type"`
	Format      Format            `json:"format"`
	Payload     string            `json:"payload"`
	Copies      int               `json:"copies"`
	Retries     int               `json:"retries"`
	Source      *SourceRef        `json:"source,omitempty"`
	Options     map[string]string `json:"options,omitempty"`
	SubmittedAt time.Time         `json:"submitted_at"`
}

// normalize applies submission defaults: format html, one copy, a fresh
// retry counter and an id.
func (j *Job) normalize() {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if j.Type == "" {
		j.Type = JobKOT
	}
	if j.Format == "" {
		j.Format = FormatHTML
	}
	if j.Copies < 1 {
		j.Copies = 1
	}
	j.Retries = 0
	if j.SubmittedAt.IsZero() {
		j.SubmittedAt = time.Now()
	}
}
