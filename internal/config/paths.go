package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths contains all the application paths.
// This is the single source of truth for file locations: the raw extracts the
// collaborators drop off, the processed store files, and the logs.
//
// Directory structure:
//
//	data/
//	  ├── raw/
//	  │   ├── exchange_rates/   (rate documents from the API extractor)
//	  │   └── banks/            (bank tables from the web extractor)
//	  └── outputs/              (daily, snapshot, consolidated, execution log)
//	logs/
type Paths struct {
	DataDir          string
	RawDir           string
	ExchangeRatesDir string
	BanksDir         string
	OutputsDir       string
	LogsDir          string
}

// NewPaths builds the path set rooted at the configured directories.
// Relative directories are resolved against the current working directory.
func NewPaths(cfg PathsConfig) (*Paths, error) {
	dataDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data dir: %w", err)
	}

	logsDir := cfg.LogsDir
	if logsDir == "" {
		logsDir = "logs"
	}
	logsDir, err = filepath.Abs(logsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve logs dir: %w", err)
	}

	rawDir := filepath.Join(dataDir, "raw")
	return &Paths{
		DataDir:          dataDir,
		RawDir:           rawDir,
		ExchangeRatesDir: filepath.Join(rawDir, "exchange_rates"),
		BanksDir:         filepath.Join(rawDir, "banks"),
		OutputsDir:       filepath.Join(dataDir, "outputs"),
		LogsDir:          logsDir,
	}, nil
}

// EnsureDirectories creates all required directories
func (p *Paths) EnsureDirectories() error {
	dirs := []string{
		p.DataDir,
		p.RawDir,
		p.ExchangeRatesDir,
		p.BanksDir,
		p.OutputsDir,
		p.LogsDir,
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// GetOutputPath returns the full path for a store output file
func (p *Paths) GetOutputPath(filename string) string {
	return filepath.Join(p.OutputsDir, filename)
}

// GetLogPath returns the full path for a log file
func (p *Paths) GetLogPath(filename string) string {
	return filepath.Join(p.LogsDir, filename)
}
