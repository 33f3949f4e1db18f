package domain

import "time"

// IngestFailure records one document that could not be ingested.
type IngestFailure struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

// IngestSummary reports the outcome of a folder ingestion run.
type IngestSummary struct {
	// RunID identifies the run in logs.
	RunID string `json:"run_id"`

	DocumentsAttempted int `json:"documents_attempted"`
	DocumentsSucceeded int `json:"documents_succeeded"`
	DocumentsSkipped   int `json:"documents_skipped"`
	ChunksCreated      int `json:"chunks_created"`

	Failures []IngestFailure `json:"failures,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Duration returns how long the run took.
func (s IngestSummary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// IngestOptions tunes an ingestion run.
type IngestOptions struct {
	// Force re-processes documents whose stored hash matches the file.
	Force bool
}
