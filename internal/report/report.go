// Package report produces the per-run conversion summary: aggregate
// statistics over the normalized table and a human-readable text report
// written next to the snapshot.
package report

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	apperrors "bankfx/internal/errors"
	"bankfx/pkg/contracts/domain"
)

// Stats holds aggregate statistics for one conversion run
type Stats struct {
	TotalBanks        int
	TotalAssetsBase   decimal.Decimal
	TotalAssetsTarget decimal.Decimal
	AverageBase       decimal.Decimal
	AverageTarget     decimal.Decimal
	TopBank           string
	ExchangeRate      decimal.Decimal
	ExchangeFrom      string
	ExchangeTo        string
	ExchangeDate      time.Time
}

// Generator computes statistics and renders text reports
type Generator struct{}

// NewGenerator creates a report generator
func NewGenerator() *Generator {
	return &Generator{}
}

// Compute aggregates the normalized table into summary statistics
func (g *Generator) Compute(table *domain.NormalizedTable) Stats {
	stats := Stats{TotalBanks: len(table.Records)}
	if len(table.Records) == 0 {
		return stats
	}

	top := table.Records[0]
	for _, record := range table.Records {
		stats.TotalAssetsBase = stats.TotalAssetsBase.Add(record.AssetValueBase)
		stats.TotalAssetsTarget = stats.TotalAssetsTarget.Add(record.AssetValueTarget)
		if record.AssetValueBase.GreaterThan(top.AssetValueBase) {
			top = record
		}
	}

	count := decimal.NewFromInt(int64(len(table.Records)))
	stats.AverageBase = stats.TotalAssetsBase.Div(count).Round(2)
	stats.AverageTarget = stats.TotalAssetsTarget.Div(count).Round(2)
	stats.TopBank = top.Name
	stats.ExchangeRate = top.ExchangeRate
	stats.ExchangeFrom = top.ExchangeFrom
	stats.ExchangeTo = top.ExchangeTo
	stats.ExchangeDate = top.ExchangeDate
	return stats
}

// Render produces the text report for one run
func (g *Generator) Render(table *domain.NormalizedTable) string {
	stats := g.Compute(table)
	divider := strings.Repeat("=", 70)

	var b strings.Builder
	fmt.Fprintln(&b, divider)
	fmt.Fprintf(&b, "CONVERSION REPORT: %s -> %s\n", stats.ExchangeFrom, stats.ExchangeTo)
	fmt.Fprintln(&b, divider)
	fmt.Fprintf(&b, "Conversion date: %s\n", stats.ExchangeDate.Format(domain.DayFormat))
	fmt.Fprintf(&b, "Exchange rate: 1 %s = %s %s\n", stats.ExchangeFrom, stats.ExchangeRate.String(), stats.ExchangeTo)
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "STATISTICS:")
	fmt.Fprintf(&b, "  Banks analyzed: %d\n", stats.TotalBanks)
	fmt.Fprintf(&b, "  Total assets (%s): %s billion\n", stats.ExchangeFrom, stats.TotalAssetsBase.StringFixed(2))
	fmt.Fprintf(&b, "  Total assets (%s): %s billion\n", stats.ExchangeTo, stats.TotalAssetsTarget.StringFixed(2))
	fmt.Fprintf(&b, "  Average per bank (%s): %s billion\n", stats.ExchangeFrom, stats.AverageBase.StringFixed(2))
	fmt.Fprintf(&b, "  Average per bank (%s): %s billion\n", stats.ExchangeTo, stats.AverageTarget.StringFixed(2))
	fmt.Fprintf(&b, "  Largest bank: %s\n", stats.TopBank)
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "TOP 5 BANKS BY ASSETS:")
	for i, record := range topN(table.Records, 5) {
		fmt.Fprintf(&b, "  %d. %s: %s %s billion -> %s %s billion\n",
			i+1, record.Name,
			record.ExchangeFrom, record.AssetValueBase.StringFixed(2),
			record.ExchangeTo, record.AssetValueTarget.StringFixed(2))
	}
	fmt.Fprintln(&b, divider)
	return b.String()
}

// WriteReport renders the report and writes it into outputDir with a
// timestamped name. Returns the file path.
func (g *Generator) WriteReport(table *domain.NormalizedTable, outputDir string, runTimestamp time.Time) (string, error) {
	stats := g.Compute(table)
	filename := fmt.Sprintf("report_%s_%s_%s.txt",
		stats.ExchangeFrom, stats.ExchangeTo, runTimestamp.Format("20060102_150405"))
	path := filepath.Join(outputDir, filename)

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", apperrors.NewStorageError("failed to create report directory", err)
	}
	if err := os.WriteFile(path, []byte(g.Render(table)), 0644); err != nil {
		return "", apperrors.NewStorageError("failed to write report", err)
	}

	slog.Info("Report written", slog.String("file", filename))
	return path, nil
}

// topN returns the n largest records by base asset value, descending
func topN(records []domain.NormalizedRecord, n int) []domain.NormalizedRecord {
	sorted := make([]domain.NormalizedRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].AssetValueBase.GreaterThan(sorted[j].AssetValueBase)
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
