package store

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "bankfx/internal/errors"
	"bankfx/pkg/contracts/domain"
)

var testColumns = []string{"Rank", "Bank name", "Total assets (US$ billion)", domain.ColExtractedAt}

func testStore(t *testing.T) *Store {
	t.Helper()
	return New(Options{
		OutputDir:      t.TempDir(),
		FilePrefix:     "bank_assets",
		BaseCurrency:   "USD",
		TargetCurrency: "GBP",
		LockTimeout:    2 * time.Second,
	})
}

func record(name, base string, extractedAt time.Time) domain.NormalizedRecord {
	baseVal := decimal.RequireFromString(base)
	rate := decimal.RequireFromString("0.79")
	return domain.NormalizedRecord{
		RawRecord: domain.RawRecord{
			Name:           name,
			AssetValue:     base,
			SourceCurrency: "USD",
			ExtractedAt:    extractedAt,
			Cells:          []string{"1", name, base, extractedAt.Format(time.RFC3339)},
		},
		AssetValueBase:   baseVal,
		AssetValueTarget: baseVal.Mul(rate).Round(2),
		TransformedAt:    extractedAt.Add(time.Minute),
		ExchangeRate:     rate,
		ExchangeFrom:     "USD",
		ExchangeTo:       "GBP",
		ExchangeDate:     extractedAt.Truncate(24 * time.Hour),
	}
}

func table(records ...domain.NormalizedRecord) *domain.NormalizedTable {
	return &domain.NormalizedTable{Columns: testColumns, Records: records}
}

func readFile(t *testing.T, path string) (headers []string, rows [][]string) {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	all, err := reader.ReadAll()
	require.NoError(t, err)
	require.NotEmpty(t, all)
	return all[0], all[1:]
}

func TestAppendDaily_CreatesFileWithContractSchema(t *testing.T) {
	s := testStore(t)
	day := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	path, err := s.AppendDaily(table(record("HSBC", "2920.00", day)), day)
	require.NoError(t, err)

	headers, rows := readFile(t, path)
	assert.Equal(t, []string{
		"Rank", "Bank name", "Total assets (US$ billion)", domain.ColExtractedAt,
		"assets_usd_billion", "assets_gbp_billion",
		domain.ColTransformedAt, domain.ColExchangeRate,
		domain.ColExchangeFrom, domain.ColExchangeTo, domain.ColExchangeDate,
	}, headers)
	require.Len(t, rows, 1)
	assert.Equal(t, "HSBC", rows[0][1])
	assert.Equal(t, "2920.00", rows[0][4])
	assert.Equal(t, "2306.80", rows[0][5])
	assert.Equal(t, "0.7900", rows[0][7])
}

func TestAppendDaily_Idempotent(t *testing.T) {
	s := testStore(t)
	day := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	tbl := table(record("HSBC", "2920.00", day), record("Barclays", "1890.50", day))

	path, err := s.AppendDaily(tbl, day)
	require.NoError(t, err)
	_, rowsOnce := readFile(t, path)

	_, err = s.AppendDaily(tbl, day)
	require.NoError(t, err)
	_, rowsTwice := readFile(t, path)

	assert.Equal(t, rowsOnce, rowsTwice, "running the same table twice must not append")
}

func TestAppendDaily_SameDayLastWriteWins(t *testing.T) {
	s := testStore(t)
	day := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)

	_, err := s.AppendDaily(table(record("HSBC", "2920.00", day)), day)
	require.NoError(t, err)

	later := record("HSBC", "2931.75", day.Add(4*time.Hour))
	path, err := s.AppendDaily(table(later), day)
	require.NoError(t, err)

	_, rows := readFile(t, path)
	require.Len(t, rows, 1)
	assert.Equal(t, "2931.75", rows[0][4])
}

func TestAppendConsolidated_NoDuplicateKeys(t *testing.T) {
	s := testStore(t)
	day1 := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	_, err := s.AppendConsolidated(table(record("HSBC", "2920.00", day1), record("Barclays", "1890.50", day1)))
	require.NoError(t, err)
	path, err := s.AppendConsolidated(table(record("HSBC", "2930.00", day2), record("Barclays", "1900.00", day2)))
	require.NoError(t, err)

	headers, rows := readFile(t, path)
	assert.Len(t, rows, 4, "different extraction days are distinct observations")

	keyOf := rowKeyFunc(headers)
	seen := make(map[domain.IdentityKey]bool)
	for _, row := range rows {
		key, ok := keyOf(row)
		require.True(t, ok)
		require.False(t, seen[key], "duplicate key %+v", key)
		seen[key] = true
	}
}

func TestAppendConsolidated_SupersessionKeepsPosition(t *testing.T) {
	s := testStore(t)
	day := time.Date(2026, 8, 30, 8, 0, 0, 0, time.UTC)

	_, err := s.AppendConsolidated(table(
		record("ICBC", "6995.75", day),
		record("HSBC", "2920.00", day),
		record("Barclays", "1890.50", day),
	))
	require.NoError(t, err)

	// A later run supersedes HSBC for the same day.
	path, err := s.AppendConsolidated(table(record("HSBC", "2999.99", day.Add(6*time.Hour))))
	require.NoError(t, err)

	_, rows := readFile(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, "ICBC", rows[0][1])
	assert.Equal(t, "HSBC", rows[1][1], "superseded record keeps its original position")
	assert.Equal(t, "2999.99", rows[1][4], "superseding value replaces the old one")
	assert.Equal(t, "Barclays", rows[2][1])
}

func TestAppendConsolidated_PaddedNameCellStillSupersedes(t *testing.T) {
	s := testStore(t)
	day := time.Date(2026, 8, 30, 8, 0, 0, 0, time.UTC)

	// A previously written file may carry a name cell with stray whitespace.
	padded := record("HSBC", "2920.00", day)
	padded.Cells[1] = "  HSBC  "
	_, err := s.AppendConsolidated(table(padded))
	require.NoError(t, err)

	path, err := s.AppendConsolidated(table(record("HSBC", "2999.99", day.Add(6*time.Hour))))
	require.NoError(t, err)

	_, rows := readFile(t, path)
	require.Len(t, rows, 1, "whitespace must not split one bank into two keys")
	assert.Equal(t, "2999.99", rows[0][4])
}

func TestAppendConsolidated_BatchDuplicatesCollapse(t *testing.T) {
	s := testStore(t)
	day := time.Date(2026, 8, 30, 8, 0, 0, 0, time.UTC)

	path, err := s.AppendConsolidated(table(
		record("HSBC", "2920.00", day),
		record("HSBC", "2925.00", day.Add(time.Hour)),
	))
	require.NoError(t, err)

	_, rows := readFile(t, path)
	require.Len(t, rows, 1)
	assert.Equal(t, "2925.00", rows[0][4])
}

func TestWriteSnapshot_ImmutableCopies(t *testing.T) {
	s := testStore(t)
	day := time.Date(2026, 8, 30, 8, 0, 0, 0, time.UTC)

	first, err := s.WriteSnapshot(table(record("HSBC", "2920.00", day)), day)
	require.NoError(t, err)
	second, err := s.WriteSnapshot(table(record("HSBC", "2930.00", day)), day.Add(time.Hour))
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "each run gets its own snapshot file")

	_, firstRows := readFile(t, first)
	_, secondRows := readFile(t, second)
	assert.Equal(t, "2920.00", firstRows[0][4], "earlier snapshot is never merged over")
	assert.Equal(t, "2930.00", secondRows[0][4])
}

func TestPruneSnapshots_RetentionWindow(t *testing.T) {
	s := testStore(t)
	day := time.Date(2026, 8, 30, 8, 0, 0, 0, time.UTC)
	tbl := table(record("HSBC", "2920.00", day))

	now := time.Now()
	old, err := s.WriteSnapshot(tbl, now.AddDate(0, 0, -10))
	require.NoError(t, err)
	recent, err := s.WriteSnapshot(tbl, now.AddDate(0, 0, -5))
	require.NoError(t, err)
	current, err := s.WriteSnapshot(tbl, now)
	require.NoError(t, err)

	// Daily and consolidated files must never be pruning candidates.
	dailyPath, err := s.AppendDaily(tbl, now.AddDate(0, 0, -20))
	require.NoError(t, err)
	consolidatedPath, err := s.AppendConsolidated(tbl)
	require.NoError(t, err)

	pruned, warnings := s.PruneSnapshots(7)
	assert.Empty(t, warnings)
	assert.Equal(t, []string{old}, pruned)

	assert.NoFileExists(t, old)
	assert.FileExists(t, recent)
	assert.FileExists(t, current)
	assert.FileExists(t, dailyPath)
	assert.FileExists(t, consolidatedPath)
}

func TestMerge_CorruptExistingFileIsFatal(t *testing.T) {
	s := testStore(t)
	day := time.Date(2026, 8, 30, 8, 0, 0, 0, time.UTC)

	path := filepath.Join(s.outputDir, s.ConsolidatedFileName())
	require.NoError(t, os.MkdirAll(s.outputDir, 0755))
	require.NoError(t, os.WriteFile(path, []byte("\"unterminated\nnot,a,csv"), 0644))

	_, err := s.AppendConsolidated(table(record("HSBC", "2920.00", day)))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeStoreRead))

	// The corrupt prior state is left untouched for inspection.
	data, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Equal(t, "\"unterminated\nnot,a,csv", string(data))
}

func TestMerge_LockTimeoutFailsRun(t *testing.T) {
	s := testStore(t)
	s.lockTimeout = 150 * time.Millisecond
	day := time.Date(2026, 8, 30, 8, 0, 0, 0, time.UTC)
	path := filepath.Join(s.outputDir, s.ConsolidatedFileName())

	release := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_ = withFileLock(path, time.Second, func() error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	_, err := s.AppendConsolidated(table(record("HSBC", "2920.00", day)))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeStoreLocked))
}

func TestSnapshotTimestamp(t *testing.T) {
	s := testStore(t)

	ts, ok := s.snapshotTimestamp("bank_assets_USD_GBP_20260830_101502.csv")
	require.True(t, ok)
	assert.Equal(t, 2026, ts.Year())
	assert.Equal(t, 15, ts.Minute())

	_, ok = s.snapshotTimestamp("bank_assets_USD_GBP_2026-08-30.csv")
	assert.False(t, ok, "daily files are not snapshots")

	_, ok = s.snapshotTimestamp("bank_assets_USD_GBP_consolidated.csv")
	assert.False(t, ok, "the consolidated file is not a snapshot")
}
