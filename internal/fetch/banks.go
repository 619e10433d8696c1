package fetch

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	apperrors "bankfx/internal/errors"
	"bankfx/pkg/contracts/domain"
)

// BankSource loads raw bank tables dropped off by the extraction step. The
// extractor writes one JSON document per run; the pipeline always consumes
// the newest one.
type BankSource struct {
	banksDir string
}

// NewBankSource creates a bank-table source reading from dir
func NewBankSource(dir string) *BankSource {
	return &BankSource{banksDir: dir}
}

// LatestTable returns the most recently extracted raw bank table.
func (s *BankSource) LatestTable() (domain.RawTable, error) {
	path, err := latestFile(s.banksDir, "banks_*.json")
	if err != nil {
		return domain.RawTable{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.RawTable{}, apperrors.NewStorageError("failed to read banks file", err)
	}

	var table domain.RawTable
	if err := json.Unmarshal(data, &table); err != nil {
		return domain.RawTable{}, apperrors.NewStorageError(fmt.Sprintf("corrupt banks file %s", path), err)
	}
	if len(table.Columns) == 0 {
		return domain.RawTable{}, apperrors.NewValidationError(fmt.Sprintf("banks file %s has no columns", path), nil)
	}
	if table.ExtractedAt.IsZero() {
		if info, err := os.Stat(path); err == nil {
			table.ExtractedAt = info.ModTime()
		}
	}

	slog.Info("Loaded raw bank table",
		slog.String("file", filepath.Base(path)),
		slog.Int("rows", len(table.Rows)),
		slog.String("source_currency", table.SourceCurrency))
	return table, nil
}

// latestFile returns the newest file in dir matching pattern, by
// modification time with name as tiebreaker.
func latestFile(dir, pattern string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return "", apperrors.NewStorageError("bad file pattern", err)
	}
	if len(matches) == 0 {
		return "", apperrors.NewStorageError(
			fmt.Sprintf("no files matching %s in %s", pattern, dir), os.ErrNotExist)
	}

	latest := ""
	var latestInfo os.FileInfo
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if latestInfo == nil ||
			info.ModTime().After(latestInfo.ModTime()) ||
			(info.ModTime().Equal(latestInfo.ModTime()) && path > latest) {
			latest = path
			latestInfo = info
		}
	}
	if latest == "" {
		return "", apperrors.NewStorageError(fmt.Sprintf("no readable files matching %s in %s", pattern, dir), nil)
	}
	return latest, nil
}
