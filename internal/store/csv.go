package store

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	apperrors "bankfx/internal/errors"
)

// writeCSV writes headers and records to path atomically: the data goes to a
// temp file in the same directory which is then renamed over the target, so a
// failed run never leaves a half-written store file behind.
// No BOM prefix: store files are re-read by later runs and by analysis tools.
func writeCSV(path string, headers []string, records [][]string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	writer := csv.NewWriter(tmp)
	if err := writer.Write(headers); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write headers: %w", err)
	}
	for i, record := range records {
		if err := writer.Write(record); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to flush csv: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// readCSV reads a store file back as header plus rows. A failure to read an
// existing file is a StoreReadFailure: merging against an unknown prior state
// risks data integrity, so the caller must abort the run.
func readCSV(path string) (headers []string, rows [][]string, err error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, apperrors.NewStoreReadError(path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	headers, err = reader.Read()
	if err == io.EOF {
		return nil, nil, apperrors.NewStoreReadError(path, fmt.Errorf("file is empty"))
	}
	if err != nil {
		return nil, nil, apperrors.NewStoreReadError(path, err)
	}

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, apperrors.NewStoreReadError(path, err)
		}
		rows = append(rows, row)
	}
	return headers, rows, nil
}

// fileExists reports whether path exists as a regular file
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
