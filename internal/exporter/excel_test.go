package exporter

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"bankfx/pkg/contracts/domain"
)

func testTable() *domain.NormalizedTable {
	rate := decimal.RequireFromString("0.79")
	base := decimal.RequireFromString("2920.00")
	extractedAt := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	return &domain.NormalizedTable{
		Columns: []string{"Rank", "Bank name", "Total assets (US$ billion)", domain.ColExtractedAt},
		Records: []domain.NormalizedRecord{
			{
				RawRecord: domain.RawRecord{
					Name:           "HSBC",
					SourceCurrency: "USD",
					ExtractedAt:    extractedAt,
					Cells:          []string{"1", "HSBC", "2,920.00", extractedAt.Format(time.RFC3339)},
				},
				AssetValueBase:   base,
				AssetValueTarget: base.Mul(rate).Round(2),
				TransformedAt:    extractedAt.Add(time.Minute),
				ExchangeRate:     rate,
				ExchangeFrom:     "USD",
				ExchangeTo:       "GBP",
				ExchangeDate:     time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC),
			},
		},
	}
}

func TestExport(t *testing.T) {
	dir := t.TempDir()
	runTs := time.Date(2026, 8, 30, 10, 15, 2, 0, time.UTC)

	path, err := NewExcelExporter("USD", "GBP").Export(testTable(), dir, runTs)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "bank_assets_USD_GBP_20260830_101502.xlsx"), path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "Rank", rows[0][0])
	assert.Equal(t, "assets_usd_billion", rows[0][4])
	assert.Equal(t, "HSBC", rows[1][1])
	assert.Equal(t, "2306.8", rows[1][5])
	assert.Equal(t, "GBP", rows[1][9])
}

func TestExport_EmptyTable(t *testing.T) {
	dir := t.TempDir()

	path, err := NewExcelExporter("USD", "GBP").Export(
		&domain.NormalizedTable{Columns: []string{"Bank name"}}, dir, time.Now())
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 1, "header only")
}
