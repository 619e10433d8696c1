package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"bankfx/internal/config"
	"bankfx/internal/fetch"
	"bankfx/internal/infrastructure"
	"bankfx/internal/pipeline"
	"bankfx/internal/store"
	"bankfx/pkg/contracts"
)

const executionLogName = "execution_log.jsonl"

func main() {
	configFile := flag.String("config", "", "path to YAML config file (optional)")
	baseCurrency := flag.String("base", "", "override base currency (e.g. USD)")
	targetCurrency := flag.String("target", "", "override target currency (e.g. GBP)")
	statsMode := flag.Bool("stats", false, "print execution log statistics and exit")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(contracts.GetFullVersionString())
		return
	}

	// A missing .env file is fine, the environment may be set directly.
	_ = godotenv.Load()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *baseCurrency != "" {
		cfg.Pipeline.BaseCurrency = *baseCurrency
	}
	if *targetCurrency != "" {
		cfg.Pipeline.TargetCurrency = *targetCurrency
	}
	if cfg.Pipeline.BaseCurrency == cfg.Pipeline.TargetCurrency {
		slog.Error("Base and target currency must differ",
			slog.String("currency", cfg.Pipeline.BaseCurrency))
		os.Exit(1)
	}

	paths, err := config.NewPaths(cfg.Paths)
	if err != nil {
		slog.Error("Failed to initialize paths", "error", err)
		os.Exit(1)
	}
	if err := paths.EnsureDirectories(); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	if cfg.Logging.FilePath == "" {
		cfg.Logging.FilePath = paths.GetLogPath("pipeline.log")
	}
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", "error", err)
		logger = slog.Default()
	}
	defer infrastructure.CloseLogFile()

	execLog := store.NewExecutionLog(paths.GetOutputPath(executionLogName), cfg.Pipeline.LockTimeout)

	if *statsMode {
		if err := printStats(os.Stdout, execLog); err != nil {
			logger.Error("Failed to read execution log", slog.String("error", err.Error()))
			os.Exit(1)
		}
		return
	}

	logger.Info("Starting bank asset pipeline",
		slog.String("base_currency", cfg.Pipeline.BaseCurrency),
		slog.String("target_currency", cfg.Pipeline.TargetCurrency),
		slog.String("output_dir", paths.OutputsDir))

	p := pipeline.New(pipeline.Options{
		Tables: fetch.NewBankSource(paths.BanksDir),
		Quotes: fetch.NewRateClient(fetch.RateClientOptions{
			APIURL:   cfg.Exchange.APIURL,
			APIKey:   cfg.Exchange.APIKey,
			RatesDir: paths.ExchangeRatesDir,
			Timeout:  cfg.Exchange.Timeout,
		}),
		Store: store.New(store.Options{
			OutputDir:      paths.OutputsDir,
			FilePrefix:     cfg.Pipeline.FilePrefix,
			BaseCurrency:   cfg.Pipeline.BaseCurrency,
			TargetCurrency: cfg.Pipeline.TargetCurrency,
			LockTimeout:    cfg.Pipeline.LockTimeout,
		}),
		ExecLog:        execLog,
		BaseCurrency:   cfg.Pipeline.BaseCurrency,
		TargetCurrency: cfg.Pipeline.TargetCurrency,
		RetentionDays:  cfg.Pipeline.RetentionDays,
		OutputDir:      paths.OutputsDir,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	result, err := p.Run(ctx)
	if err != nil {
		logger.Error("Pipeline run failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	for _, warning := range result.Warnings {
		logger.Warn("Run warning", slog.String("warning", warning.Error()))
	}
	logger.Info("Pipeline run finished",
		slog.String("run_id", result.RunID),
		slog.String("status", string(result.Status)),
		slog.Int("rows", result.RowCount),
		slog.Int("dropped", result.Summary.DroppedCount()))
}

// printStats reads the execution log and prints aggregate run statistics.
func printStats(w io.Writer, execLog *store.ExecutionLog) error {
	stats, err := execLog.Stats()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Execution log: %s\n", execLog.Path())
	fmt.Fprintf(w, "Total runs:    %d\n", stats.TotalRuns)
	if stats.TotalRuns > 0 {
		fmt.Fprintf(w, "First run:     %s\n", stats.FirstRun.RunTimestamp.Format(time.RFC3339))
		fmt.Fprintf(w, "Last run:      %s\n", stats.LastRun.RunTimestamp.Format(time.RFC3339))
	}
	return nil
}
