// Package store owns the persisted views of conversion history: the per-day
// file, the immutable timestamped snapshots and the all-time consolidated
// file, plus the append-only execution log. Mutations are deduplicated by
// identity key and guarded by per-file locks so overlapping pipeline
// invocations cannot corrupt the store.
package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "bankfx/internal/errors"
	"bankfx/internal/transform"
	"bankfx/pkg/contracts/domain"
)

const (
	snapshotTimeFormat = "20060102_150405"
	cellTimeFormat     = time.RFC3339
)

// Store provides durable, deduplicated, retained history across runs
type Store struct {
	outputDir      string
	filePrefix     string
	baseCurrency   string
	targetCurrency string
	lockTimeout    time.Duration
}

// Options configures a Store
type Options struct {
	OutputDir      string
	FilePrefix     string
	BaseCurrency   string
	TargetCurrency string
	LockTimeout    time.Duration
}

// New creates a store rooted at the configured output directory
func New(opts Options) *Store {
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = 10 * time.Second
	}
	return &Store{
		outputDir:      opts.OutputDir,
		filePrefix:     opts.FilePrefix,
		baseCurrency:   opts.BaseCurrency,
		targetCurrency: opts.TargetCurrency,
		lockTimeout:    opts.LockTimeout,
	}
}

// DailyFileName returns the file name for a run date's daily file
func (s *Store) DailyFileName(runDate time.Time) string {
	return fmt.Sprintf("%s_%s_%s_%s.csv", s.filePrefix, s.baseCurrency, s.targetCurrency,
		runDate.Format(domain.DayFormat))
}

// SnapshotFileName returns the file name for a run's immutable snapshot
func (s *Store) SnapshotFileName(runTimestamp time.Time) string {
	return fmt.Sprintf("%s_%s_%s_%s.csv", s.filePrefix, s.baseCurrency, s.targetCurrency,
		runTimestamp.Format(snapshotTimeFormat))
}

// ConsolidatedFileName returns the file name of the all-time consolidated file
func (s *Store) ConsolidatedFileName() string {
	return fmt.Sprintf("%s_%s_%s_consolidated.csv", s.filePrefix, s.baseCurrency, s.targetCurrency)
}

// AppendDaily upserts records into the run date's daily file, keyed by
// identity key. A record whose key already exists in the file replaces the
// earlier row in place; new keys are appended. The daily file never holds two
// rows with the same key, so repeating a run for the same day is idempotent.
func (s *Store) AppendDaily(table *domain.NormalizedTable, runDate time.Time) (string, error) {
	path := filepath.Join(s.outputDir, s.DailyFileName(runDate))
	if err := s.mergeInto(path, table); err != nil {
		return "", err
	}
	return path, nil
}

// AppendConsolidated merges records into the all-time file with the same
// stable-upsert rule across all historical days: a later run's record for an
// existing key supersedes the earlier one at its original position, records
// with unseen keys are appended in input order.
func (s *Store) AppendConsolidated(table *domain.NormalizedTable) (string, error) {
	path := filepath.Join(s.outputDir, s.ConsolidatedFileName())
	if err := s.mergeInto(path, table); err != nil {
		return "", err
	}
	return path, nil
}

// WriteSnapshot writes an immutable point-in-time copy named by the exact run
// timestamp. Snapshots are never merged or deduplicated against one another.
func (s *Store) WriteSnapshot(table *domain.NormalizedTable, runTimestamp time.Time) (string, error) {
	path := filepath.Join(s.outputDir, s.SnapshotFileName(runTimestamp))

	err := withFileLock(path, s.lockTimeout, func() error {
		return writeCSV(path, s.headers(table.Columns), s.renderRecords(table))
	})
	if err != nil {
		return "", err
	}

	slog.Info("Snapshot written",
		slog.String("file", filepath.Base(path)),
		slog.Int("rows", len(table.Records)))
	return path, nil
}

// PruneSnapshots deletes snapshot files older than the retention window.
// Daily and consolidated files are never pruned. Deletion failures are logged
// and returned as non-fatal warnings; pruning continues past them.
func (s *Store) PruneSnapshots(retentionDays int) (pruned []string, warnings []error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	pattern := filepath.Join(s.outputDir,
		fmt.Sprintf("%s_%s_%s_*.csv", s.filePrefix, s.baseCurrency, s.targetCurrency))

	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, []error{apperrors.NewPruneError(pattern, err)}
	}

	for _, path := range matches {
		ts, ok := s.snapshotTimestamp(filepath.Base(path))
		if !ok {
			continue
		}
		if !ts.Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			warnings = append(warnings, apperrors.NewPruneError(path, err))
			slog.Warn("Failed to prune snapshot",
				slog.String("file", filepath.Base(path)),
				slog.String("error", err.Error()))
			continue
		}
		pruned = append(pruned, path)
		slog.Info("Pruned snapshot",
			slog.String("file", filepath.Base(path)),
			slog.String("age_cutoff", cutoff.Format(domain.DayFormat)))
	}
	return pruned, warnings
}

// snapshotTimestamp parses the run timestamp out of a snapshot file name.
// Daily files (date-named) and the consolidated file do not match and are
// never pruning candidates.
func (s *Store) snapshotTimestamp(name string) (time.Time, bool) {
	prefix := fmt.Sprintf("%s_%s_%s_", s.filePrefix, s.baseCurrency, s.targetCurrency)
	if len(name) != len(prefix)+len(snapshotTimeFormat)+len(".csv") {
		return time.Time{}, false
	}
	stamp := name[len(prefix) : len(name)-len(".csv")]
	ts, err := time.ParseInLocation(snapshotTimeFormat, stamp, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// mergeInto performs the stable upsert of table into the file at path, under
// an exclusive lock. Reading an existing file that cannot be parsed is fatal:
// the store refuses to guess the prior state.
func (s *Store) mergeInto(path string, table *domain.NormalizedTable) error {
	return withFileLock(path, s.lockTimeout, func() error {
		headers := s.headers(table.Columns)
		newRows := s.renderRecords(table)
		newKeys := make([]domain.IdentityKey, len(table.Records))
		for i, record := range table.Records {
			newKeys[i] = record.Key()
		}

		if !fileExists(path) {
			rows, _ := dedupeRows(headers, newRows, newKeys)
			return writeCSV(path, headers, rows)
		}

		existingHeaders, existingRows, err := readCSV(path)
		if err != nil {
			return err
		}

		merged, replaced := upsertRows(existingHeaders, existingRows, newRows, newKeys)
		if err := writeCSV(path, existingHeaders, merged); err != nil {
			return err
		}

		slog.Info("Store file merged",
			slog.String("file", filepath.Base(path)),
			slog.Int("existing_rows", len(existingRows)),
			slog.Int("incoming_rows", len(newRows)),
			slog.Int("replaced", replaced),
			slog.Int("total_rows", len(merged)))
		return nil
	})
}

// upsertRows merges incoming rows into existing ones by identity key.
// Replaced rows keep their original position (stable upsert); unseen keys are
// appended in incoming order. Incoming duplicates collapse last-write-wins.
func upsertRows(headers []string, existing [][]string, incoming [][]string, incomingKeys []domain.IdentityKey) ([][]string, int) {
	index := make(map[domain.IdentityKey]int, len(existing))
	merged := make([][]string, len(existing))
	copy(merged, existing)

	keyOf := rowKeyFunc(headers)
	for i, row := range existing {
		if key, ok := keyOf(row); ok {
			index[key] = i
		}
	}

	replaced := 0
	for i, row := range incoming {
		key := incomingKeys[i]
		if pos, ok := index[key]; ok {
			merged[pos] = row
			replaced++
			continue
		}
		index[key] = len(merged)
		merged = append(merged, row)
	}
	return merged, replaced
}

// dedupeRows collapses same-key duplicates within a single batch,
// last-write-wins, preserving first-seen positions.
func dedupeRows(headers []string, rows [][]string, keys []domain.IdentityKey) ([][]string, int) {
	return upsertRows(headers, nil, rows, keys)
}

// rowKeyFunc builds an identity-key extractor for persisted rows: the
// bank-name column (pattern-discovered, source naming is unstable), the
// _exchange_to column and the day part of _extracted_at.
func rowKeyFunc(headers []string) func(row []string) (domain.IdentityKey, bool) {
	nameIdx := transform.FindNameColumn(headers)
	toIdx := columnIndex(headers, domain.ColExchangeTo)
	extractedIdx := columnIndex(headers, domain.ColExtractedAt)

	return func(row []string) (domain.IdentityKey, bool) {
		if nameIdx >= len(row) || toIdx < 0 || toIdx >= len(row) || extractedIdx < 0 || extractedIdx >= len(row) {
			return domain.IdentityKey{}, false
		}
		return domain.IdentityKey{
			Name:     strings.TrimSpace(row[nameIdx]),
			Currency: strings.TrimSpace(row[toIdx]),
			Day:      dayOf(row[extractedIdx]),
		}, true
	}
}

// columnIndex returns the index of an exactly named column, or -1
func columnIndex(headers []string, name string) int {
	for i, header := range headers {
		if header == name {
			return i
		}
	}
	return -1
}

// dayOf truncates a persisted timestamp cell to its calendar day
func dayOf(cell string) string {
	cell = strings.TrimSpace(cell)
	if ts, err := time.Parse(cellTimeFormat, cell); err == nil {
		return ts.Format(domain.DayFormat)
	}
	if len(cell) >= len(domain.DayFormat) {
		return cell[:len(domain.DayFormat)]
	}
	return cell
}

// headers composes the contract column order: raw columns first, computed
// currency and provenance columns after.
func (s *Store) headers(rawColumns []string) []string {
	out := make([]string, 0, len(rawColumns)+7)
	out = append(out, rawColumns...)
	out = append(out, domain.MetadataColumns(s.baseCurrency, s.targetCurrency)...)
	return out
}

// renderRecords converts normalized records into CSV rows matching headers()
func (s *Store) renderRecords(table *domain.NormalizedTable) [][]string {
	rows := make([][]string, 0, len(table.Records))
	for _, record := range table.Records {
		cells := make([]string, 0, len(table.Columns)+7)
		for i := range table.Columns {
			if i < len(record.Cells) {
				cells = append(cells, record.Cells[i])
			} else {
				cells = append(cells, "")
			}
		}
		cells = append(cells,
			record.AssetValueBase.StringFixed(2),
			record.AssetValueTarget.StringFixed(2),
			record.TransformedAt.Format(cellTimeFormat),
			record.ExchangeRate.StringFixed(4),
			record.ExchangeFrom,
			record.ExchangeTo,
			record.ExchangeDate.Format(domain.DayFormat),
		)
		rows = append(rows, cells)
	}
	return rows
}
