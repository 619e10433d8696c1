package domain

import (
	"time"
)

// RunStatus describes how a pipeline run ended.
type RunStatus string

const (
	// RunStatusSuccess means every input record made it into the store.
	RunStatusSuccess RunStatus = "success"
	// RunStatusPartial means the run committed but some records were dropped
	// (unparsable values, currency mismatches).
	RunStatusPartial RunStatus = "partial"
	// RunStatusFailed means the run aborted before committing to the store.
	RunStatusFailed RunStatus = "failed"
)

// ExecutionLogEntry is one line of the append-only execution log. Entries are
// created once per pipeline run, success or not, and are never mutated.
type ExecutionLogEntry struct {
	RunID        string         `json:"run_id" validate:"required,uuid"`
	RunTimestamp time.Time      `json:"run_timestamp" validate:"required"`
	RowCount     int            `json:"row_count" validate:"min=0"`
	CurrencyPair string         `json:"currency_pair" validate:"required"`
	OutputFiles  []string       `json:"output_files,omitempty"`
	Status       RunStatus      `json:"status" validate:"required"`
	DroppedRows  map[string]int `json:"dropped_rows,omitempty"`
	Error        string         `json:"error,omitempty"`
}
