package domain

import "time"

// IngestRun summarizes one ingestion batch.
type IngestRun struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Listed is the number of unprocessed messages the provider returned.
	Listed int `json:"listed"`
	// Processed counts messages handled in this run, including those
	// without links.
	Processed int `json:"processed"`
	// AlreadyIngested counts messages the ledger had seen before; they are
	// only re-labelled.
	AlreadyIngested int `json:"already_ingested"`
	// Failed counts messages skipped because of an error.
	Failed int `json:"failed"`
	// Bookmarks is the number of files written.
	Bookmarks int `json:"bookmarks"`
}

// Duration returns how long the run took.
func (r IngestRun) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
