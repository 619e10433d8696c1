// Package transform turns a raw extracted bank table into a
// currency-normalized table: it discovers the asset-figure column despite
// source schema drift, delegates numeric conversion to the converter and
// stamps provenance metadata. It never touches storage.
package transform

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"bankfx/internal/convert"
	"bankfx/pkg/contracts/domain"
)

// Transformer orchestrates column detection, cleaning and conversion for one
// raw table.
type Transformer struct {
	converter *convert.Converter
}

// NewTransformer creates a new transform stage
func NewTransformer() *Transformer {
	return &Transformer{converter: convert.NewConverter()}
}

// Transform converts a raw table into a normalized table using the given
// quote. Per-record problems are aggregated in the summary; a missing or
// ambiguous asset column is fatal and returns before any record is produced.
func (t *Transformer) Transform(table domain.RawTable, quote domain.ExchangeQuote) (*domain.NormalizedTable, convert.Summary, error) {
	assetIdx, err := FindAssetColumn(table.Columns)
	if err != nil {
		return nil, convert.Summary{}, err
	}
	nameIdx := FindNameColumn(table.Columns)
	rankIdx := findRankColumn(table.Columns)

	slog.Info("Detected table columns",
		slog.String("asset_column", table.Columns[assetIdx]),
		slog.String("name_column", table.Columns[nameIdx]),
		slog.Int("row_count", len(table.Rows)))

	columns, extractedAtIdx := withExtractedAtColumn(table.Columns)

	records := make([]domain.RawRecord, 0, len(table.Rows))
	skipped := 0
	for _, row := range table.Rows {
		cells := padRow(row, len(columns))

		// The extraction timestamp cell is what store files key on later, so
		// the record uses whatever ends up persisted there.
		extractedAt := table.ExtractedAt
		if ts, ok := parseExtractedAt(cells[extractedAtIdx]); ok {
			extractedAt = ts
		} else {
			cells[extractedAtIdx] = extractedAt.Format(time.RFC3339)
		}

		name := strings.TrimSpace(cellAt(cells, nameIdx))
		if name == "" {
			skipped++
			continue
		}
		// Persist the trimmed name so re-reading a store file yields the same
		// identity key this record carries.
		cells[nameIdx] = name

		record := domain.RawRecord{
			Name:           name,
			AssetValue:     strings.TrimSpace(cellAt(cells, assetIdx)),
			SourceCurrency: table.SourceCurrency,
			ExtractedAt:    extractedAt,
			Cells:          cells,
		}
		if rankIdx >= 0 {
			if rank, err := strconv.Atoi(strings.TrimSpace(cellAt(cells, rankIdx))); err == nil {
				record.Rank = &rank
			}
		}
		records = append(records, record)
	}

	if skipped > 0 {
		slog.Info("Skipped rows without a bank name", slog.Int("count", skipped))
	}

	normalized, summary, err := t.converter.Convert(records, quote)
	if err != nil {
		return nil, summary, err
	}

	slog.Info("Transform complete",
		slog.Int("input_rows", len(table.Rows)),
		slog.Int("output_rows", len(normalized)),
		slog.Int("dropped", summary.DroppedCount()))

	return &domain.NormalizedTable{Columns: columns, Records: normalized}, summary, nil
}

// withExtractedAtColumn appends the extraction-timestamp column when the
// source did not already provide one, so the extraction day stays recoverable
// from persisted store files.
func withExtractedAtColumn(columns []string) ([]string, int) {
	if idx := findColumn(columns, domain.ColExtractedAt); idx >= 0 {
		return columns, idx
	}
	out := make([]string, len(columns), len(columns)+1)
	copy(out, columns)
	return append(out, domain.ColExtractedAt), len(columns)
}

// parseExtractedAt reads a source-supplied extraction timestamp cell, either
// a full timestamp or a bare calendar day.
func parseExtractedAt(cell string) (time.Time, bool) {
	cell = strings.TrimSpace(cell)
	if ts, err := time.Parse(time.RFC3339, cell); err == nil {
		return ts, true
	}
	if ts, err := time.Parse(domain.DayFormat, cell); err == nil {
		return ts, true
	}
	return time.Time{}, false
}

// padRow copies a row, extending it with empty cells up to width.
func padRow(row []string, width int) []string {
	out := make([]string, width)
	copy(out, row)
	return out
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}
