// Package exporter writes secondary export formats for a run's output.
// The CSV store files are the contract; the Excel copy is a convenience for
// manual inspection and its failure never aborts a run.
package exporter

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	apperrors "bankfx/internal/errors"
	"bankfx/pkg/contracts/domain"
)

const sheetName = "Converted"

// ExcelExporter writes a normalized table as an .xlsx workbook
type ExcelExporter struct {
	baseCurrency   string
	targetCurrency string
}

// NewExcelExporter creates an Excel exporter for the given currency pair
func NewExcelExporter(baseCurrency, targetCurrency string) *ExcelExporter {
	return &ExcelExporter{baseCurrency: baseCurrency, targetCurrency: targetCurrency}
}

// Export writes the table to outputDir with a timestamped workbook name and
// returns the file path. The sheet mirrors the snapshot CSV schema.
func (e *ExcelExporter) Export(table *domain.NormalizedTable, outputDir string, runTimestamp time.Time) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", apperrors.NewStorageError("failed to create export directory", err)
	}

	filename := fmt.Sprintf("bank_assets_%s_%s_%s.xlsx",
		e.baseCurrency, e.targetCurrency, runTimestamp.Format("20060102_150405"))
	path := filepath.Join(outputDir, filename)

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", apperrors.NewStorageError("failed to create sheet", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return "", apperrors.NewStorageError("failed to remove default sheet", err)
	}

	headers := append(append([]string{}, table.Columns...),
		domain.MetadataColumns(e.baseCurrency, e.targetCurrency)...)
	if err := e.writeRow(f, 1, toInterfaces(headers)); err != nil {
		return "", err
	}

	for i, record := range table.Records {
		row := make([]interface{}, 0, len(headers))
		for j := range table.Columns {
			if j < len(record.Cells) {
				row = append(row, record.Cells[j])
			} else {
				row = append(row, "")
			}
		}
		base, _ := record.AssetValueBase.Round(2).Float64()
		target, _ := record.AssetValueTarget.Round(2).Float64()
		rate, _ := record.ExchangeRate.Float64()
		row = append(row,
			base,
			target,
			record.TransformedAt.Format(time.RFC3339),
			rate,
			record.ExchangeFrom,
			record.ExchangeTo,
			record.ExchangeDate.Format(domain.DayFormat),
		)
		if err := e.writeRow(f, i+2, row); err != nil {
			return "", err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return "", apperrors.NewStorageError(fmt.Sprintf("failed to save workbook %s", filename), err)
	}

	slog.Info("Excel export written",
		slog.String("file", filename),
		slog.Int("rows", len(table.Records)))
	return path, nil
}

func (e *ExcelExporter) writeRow(f *excelize.File, rowNum int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return apperrors.NewStorageError("bad cell coordinates", err)
	}
	if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("failed to write row %d", rowNum), err)
	}
	return nil
}

func toInterfaces(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
