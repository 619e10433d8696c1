package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	apperrors "bankfx/internal/errors"
	"bankfx/pkg/contracts/domain"
)

// ExecutionLog is the append-only record of pipeline runs, one JSON object
// per line. Entries are written with a single O_APPEND write so an external
// monitor tailing the file never observes a partially written entry. The file
// is never rewritten or truncated.
type ExecutionLog struct {
	path        string
	lockTimeout time.Duration
}

// NewExecutionLog creates an execution log backed by the file at path
func NewExecutionLog(path string, lockTimeout time.Duration) *ExecutionLog {
	if lockTimeout <= 0 {
		lockTimeout = 10 * time.Second
	}
	return &ExecutionLog{path: path, lockTimeout: lockTimeout}
}

// Path returns the log file location
func (l *ExecutionLog) Path() string {
	return l.path
}

// Append adds one entry to the log. Failures are returned as LogWriteFailure
// so callers can treat them as warnings rather than aborting the run.
func (l *ExecutionLog) Append(entry domain.ExecutionLogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return apperrors.NewLogWriteError(l.path, err)
	}
	data = append(data, '\n')

	err = withFileLock(l.path, l.lockTimeout, func() error {
		file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return err
		}
		defer file.Close()

		// One write call per entry keeps the append atomic for readers.
		if _, err := file.Write(data); err != nil {
			return err
		}
		return file.Sync()
	})
	if err != nil {
		return apperrors.NewLogWriteError(l.path, err)
	}

	slog.Info("Execution logged",
		slog.String("run_id", entry.RunID),
		slog.String("status", string(entry.Status)),
		slog.Int("row_count", entry.RowCount))
	return nil
}

// ReadAll returns every entry in the log in append order. A missing file is
// an empty log, not an error.
func (l *ExecutionLog) ReadAll() ([]domain.ExecutionLogEntry, error) {
	file, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewStoreReadError(l.path, err)
	}
	defer file.Close()

	var entries []domain.ExecutionLogEntry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry domain.ExecutionLogEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return nil, apperrors.NewStoreReadError(l.path, fmt.Errorf("corrupt log line: %w", err))
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, apperrors.NewStoreReadError(l.path, err)
	}
	return entries, nil
}

// LoadStats summarizes the execution log
type LoadStats struct {
	TotalRuns int                        `json:"total_runs"`
	FirstRun  *domain.ExecutionLogEntry  `json:"first_run,omitempty"`
	LastRun   *domain.ExecutionLogEntry  `json:"last_run,omitempty"`
}

// Stats computes summary statistics over the whole log
func (l *ExecutionLog) Stats() (LoadStats, error) {
	entries, err := l.ReadAll()
	if err != nil {
		return LoadStats{}, err
	}
	stats := LoadStats{TotalRuns: len(entries)}
	if len(entries) > 0 {
		stats.FirstRun = &entries[0]
		stats.LastRun = &entries[len(entries)-1]
	}
	return stats, nil
}
