// Package pipeline sequences one batch run: fetch the raw table and the
// quote, transform, commit to the consolidation store, write secondary
// exports, prune old snapshots and record the run in the execution log.
package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"bankfx/internal/convert"
	apperrors "bankfx/internal/errors"
	"bankfx/internal/exporter"
	"bankfx/internal/report"
	"bankfx/internal/store"
	"bankfx/internal/transform"
	"bankfx/pkg/contracts/domain"
)

// TableSource supplies the raw bank table for a run
type TableSource interface {
	LatestTable() (domain.RawTable, error)
}

// QuoteSource supplies the exchange quote for a run
type QuoteSource interface {
	Quote(ctx context.Context, from, to string) (domain.ExchangeQuote, error)
}

// Pipeline runs the transform-and-consolidate engine end to end
type Pipeline struct {
	tables      TableSource
	quotes      QuoteSource
	transformer *transform.Transformer
	store       *store.Store
	execLog     *store.ExecutionLog
	reports     *report.Generator
	excel       *exporter.ExcelExporter

	baseCurrency   string
	targetCurrency string
	retentionDays  int
	outputDir      string
	now            func() time.Time
}

// Options configures a Pipeline
type Options struct {
	Tables         TableSource
	Quotes         QuoteSource
	Store          *store.Store
	ExecLog        *store.ExecutionLog
	BaseCurrency   string
	TargetCurrency string
	RetentionDays  int
	OutputDir      string
}

// New creates a pipeline
func New(opts Options) *Pipeline {
	return &Pipeline{
		tables:         opts.Tables,
		quotes:         opts.Quotes,
		transformer:    transform.NewTransformer(),
		store:          opts.Store,
		execLog:        opts.ExecLog,
		reports:        report.NewGenerator(),
		excel:          exporter.NewExcelExporter(opts.BaseCurrency, opts.TargetCurrency),
		baseCurrency:   opts.BaseCurrency,
		targetCurrency: opts.TargetCurrency,
		retentionDays:  opts.RetentionDays,
		outputDir:      opts.OutputDir,
		now:            time.Now,
	}
}

// Result describes one completed run
type Result struct {
	RunID       string
	Status      domain.RunStatus
	RowCount    int
	Summary     convert.Summary
	OutputFiles []string
	Warnings    []error
}

// Run executes one batch run. Batch-fatal errors abort before any store
// mutation; store-phase errors abort without touching what earlier runs
// committed. Either way the run is recorded in the execution log.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	runID := uuid.NewString()
	runTimestamp := p.now()
	logger := slog.With(slog.String("run_id", runID))

	logger.Info("Starting pipeline run",
		slog.String("base_currency", p.baseCurrency),
		slog.String("target_currency", p.targetCurrency))

	rawTable, err := p.tables.LatestTable()
	if err != nil {
		p.recordFailure(runID, runTimestamp, err)
		return nil, err
	}

	quote, err := p.quotes.Quote(ctx, p.baseCurrency, p.targetCurrency)
	if err != nil {
		p.recordFailure(runID, runTimestamp, err)
		return nil, err
	}

	normalized, summary, err := p.transformer.Transform(rawTable, quote)
	if err != nil {
		p.recordFailure(runID, runTimestamp, err)
		return nil, err
	}

	// Commit phase. The table is complete and validated before the first
	// store mutation happens.
	var outputFiles []string

	// The daily file is the extraction day's file: a run that processes a
	// table extracted just before midnight still files it under that day.
	dailyPath, err := p.store.AppendDaily(normalized, rawTable.ExtractedAt)
	if err != nil {
		p.recordFailure(runID, runTimestamp, err)
		return nil, err
	}
	outputFiles = append(outputFiles, filepath.Base(dailyPath))

	snapshotPath, err := p.store.WriteSnapshot(normalized, runTimestamp)
	if err != nil {
		p.recordFailure(runID, runTimestamp, err)
		return nil, err
	}
	outputFiles = append(outputFiles, filepath.Base(snapshotPath))

	consolidatedPath, err := p.store.AppendConsolidated(normalized)
	if err != nil {
		p.recordFailure(runID, runTimestamp, err)
		return nil, err
	}
	outputFiles = append(outputFiles, filepath.Base(consolidatedPath))

	// Secondary outputs and maintenance are best-effort.
	var warnings []error

	if excelPath, err := p.excel.Export(normalized, p.outputDir, runTimestamp); err != nil {
		warnings = append(warnings, err)
		logger.Warn("Excel export failed", slog.String("error", err.Error()))
	} else {
		outputFiles = append(outputFiles, filepath.Base(excelPath))
	}

	if reportPath, err := p.reports.WriteReport(normalized, p.outputDir, runTimestamp); err != nil {
		warnings = append(warnings, err)
		logger.Warn("Report generation failed", slog.String("error", err.Error()))
	} else {
		outputFiles = append(outputFiles, filepath.Base(reportPath))
	}

	pruned, pruneWarnings := p.store.PruneSnapshots(p.retentionDays)
	warnings = append(warnings, pruneWarnings...)
	if len(pruned) > 0 {
		logger.Info("Snapshots pruned", slog.Int("count", len(pruned)))
	}

	status := domain.RunStatusSuccess
	if summary.DroppedCount() > 0 {
		status = domain.RunStatusPartial
	}

	entry := domain.ExecutionLogEntry{
		RunID:        runID,
		RunTimestamp: runTimestamp,
		RowCount:     len(normalized.Records),
		CurrencyPair: quote.Pair(),
		OutputFiles:  outputFiles,
		Status:       status,
		DroppedRows:  summary.DroppedByType(),
	}
	if err := p.execLog.Append(entry); err != nil {
		warnings = append(warnings, err)
		logger.Warn("Execution log append failed", slog.String("error", err.Error()))
	}

	logger.Info("Pipeline run complete",
		slog.String("status", string(status)),
		slog.Int("rows", len(normalized.Records)),
		slog.Int("dropped", summary.DroppedCount()),
		slog.Int("warnings", len(warnings)))

	return &Result{
		RunID:       runID,
		Status:      status,
		RowCount:    len(normalized.Records),
		Summary:     summary,
		OutputFiles: outputFiles,
		Warnings:    warnings,
	}, nil
}

// recordFailure logs a failed run in the execution log. Best effort: a run
// that cannot even log its failure still surfaces its original error.
func (p *Pipeline) recordFailure(runID string, runTimestamp time.Time, cause error) {
	entry := domain.ExecutionLogEntry{
		RunID:        runID,
		RunTimestamp: runTimestamp,
		CurrencyPair: p.baseCurrency + "_" + p.targetCurrency,
		Status:       domain.RunStatusFailed,
		Error:        cause.Error(),
	}
	if err := p.execLog.Append(entry); err != nil {
		slog.Error("Failed to record failed run",
			slog.String("run_id", runID),
			slog.String("error", err.Error()))
	}
	slog.Error("Pipeline run failed",
		slog.String("run_id", runID),
		slog.String("error_type", string(apperrors.TypeOf(cause))),
		slog.String("error", cause.Error()))
}
