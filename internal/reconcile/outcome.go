package reconcile

import (
	"strings"
	"time"
)

// NaturalKey is the business identifier that matches a source record to a
// directory record, e.g. an article code.
type NaturalKey string

// IsEmpty reports a blank key.
func (k NaturalKey) IsEmpty() bool {
	return strings.TrimSpace(string(k)) == ""
}

func (k NaturalKey) String() string {
	return string(k)
}

// KeySep joins the parts of a composite key.
const KeySep = "/"

// Key builds a composite key from trimmed parts.
// Any blank part makes the whole key empty.
func Key(parts ...string) NaturalKey {
	clean := make([]string, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return ""
		}
		clean[i] = p
	}
	return NaturalKey(strings.Join(clean, KeySep))
}

// Status is the result class of one reconciled record.
type Status string

const (
	Created Status = "created"
	Updated Status = "updated"
	Skipped Status = "skipped"
	Failed  Status = "failed"
)

// Outcome is the result of one source record.
type Outcome struct {
	Key      NaturalKey
	Status   Status
	Reason   string // why the record was skipped
	Code     string // apperror code for skipped and failed outcomes
	Err      error
	TargetID int64
	Warnings []string
}

// Message renders the skip reason or the error.
func (o Outcome) Message() string {
	if o.Err != nil {
		return o.Err.Error()
	}
	return o.Reason
}

// Succeeded reports Created and Updated outcomes.
func (o Outcome) Succeeded() bool {
	return o.Status == Created || o.Status == Updated
}

// Counts aggregates outcomes by status.
type Counts struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Total is the number of processed records.
func (c Counts) Total() int {
	return c.Created + c.Updated + c.Skipped + c.Failed
}

func (c *Counts) add(s Status) {
	switch s {
	case Created:
		c.Created++
	case Updated:
		c.Updated++
	case Skipped:
		c.Skipped++
	case Failed:
		c.Failed++
	}
}

// BatchReport is the ordered list of outcomes of one batch plus its counts.
type BatchReport struct {
	Kind       string
	RunID      string
	Outcomes   []Outcome
	Counts     Counts
	StartedAt  time.Time
	FinishedAt time.Time
}

// NewBatchReport starts an empty report.
func NewBatchReport(kind, runID string) *BatchReport {
	return &BatchReport{Kind: kind, RunID: runID, StartedAt: time.Now()}
}

// Add appends an outcome, keeping input order.
func (r *BatchReport) Add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	r.Counts.add(o.Status)
}

// Finish stamps the end time.
func (r *BatchReport) Finish() {
	r.FinishedAt = time.Now()
}

// Duration of the batch.
func (r *BatchReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// NonSuccess returns Skipped and Failed outcomes in input order.
func (r *BatchReport) NonSuccess() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if !o.Succeeded() {
			out = append(out, o)
		}
	}
	return out
}

// Merge appends the outcomes of other. Jobs made of several batches, such as
// one per price list, use it to return a single report.
func (r *BatchReport) Merge(other *BatchReport) {
	if other == nil {
		return
	}
	for _, o := range other.Outcomes {
		r.Add(o)
	}
	if r.StartedAt.IsZero() || (!other.StartedAt.IsZero() && other.StartedAt.Before(r.StartedAt)) {
		r.StartedAt = other.StartedAt
	}
	if other.FinishedAt.After(r.FinishedAt) {
		r.FinishedAt = other.FinishedAt
	}
}

// Summary returns key-value pairs for structured logging.
func (r *BatchReport) Summary() []any {
	return []any{
		"kind", r.Kind,
		"created", r.Counts.Created,
		"updated", r.Counts.Updated,
		"skipped", r.Counts.Skipped,
		"failed", r.Counts.Failed,
		"duration", r.Duration().String(),
	}
}
