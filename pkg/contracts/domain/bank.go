package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Metadata column names appended by the transform stage. These names are the
// file-format contract: downstream tooling selects columns by these exact names.
const (
	ColExtractedAt   = "_extracted_at"
	ColTransformedAt = "_transformed_at"
	ColExchangeRate  = "_exchange_rate"
	ColExchangeFrom  = "_exchange_from"
	ColExchangeTo    = "_exchange_to"
	ColExchangeDate  = "_exchange_date"
)

// DayFormat is the calendar-day layout used for identity keys and file names.
const DayFormat = "2006-01-02"

// RawTable is an extracted bank table exactly as the data source produced it.
// Column names are unstable across extraction runs (year suffixes, renames),
// so consumers must discover columns by pattern, never by fixed name.
type RawTable struct {
	Columns        []string   `json:"columns" validate:"required,min=1"`
	Rows           [][]string `json:"rows"`
	SourceCurrency string     `json:"source_currency" validate:"required,len=3"`
	ExtractedAt    time.Time  `json:"extracted_at" validate:"required"`
}

// RawRecord is a single bank row lifted out of a RawTable. AssetValue is the
// untouched cell content and may be a formatted string (thousands separators,
// currency symbols, footnote markers).
type RawRecord struct {
	Rank           *int      `json:"rank,omitempty"`
	Name           string    `json:"name" validate:"required"`
	AssetValue     string    `json:"asset_value"`
	SourceCurrency string    `json:"source_currency" validate:"required,len=3"`
	ExtractedAt    time.Time `json:"extracted_at"`

	// Cells preserves the full raw row so store files can carry the source
	// columns through unchanged.
	Cells []string `json:"cells,omitempty"`
}

// NormalizedRecord is a RawRecord enriched with the cleaned base-currency
// figure, the converted target-currency figure and the conversion metadata.
// AssetValueTarget is always AssetValueBase * ExchangeRate under the rounding
// policy; the two are never stored inconsistently.
type NormalizedRecord struct {
	RawRecord

	AssetValueBase   decimal.Decimal `json:"asset_value_base"`
	AssetValueTarget decimal.Decimal `json:"asset_value_target"`
	TransformedAt    time.Time       `json:"transformed_at"`
	ExchangeRate     decimal.Decimal `json:"exchange_rate"`
	ExchangeFrom     string          `json:"exchange_from"`
	ExchangeTo       string          `json:"exchange_to"`
	ExchangeDate     time.Time       `json:"exchange_date"`
}

// Key returns the identity key used to deduplicate this record across runs.
func (r NormalizedRecord) Key() IdentityKey {
	return IdentityKey{
		Name:     r.Name,
		Currency: r.ExchangeTo,
		Day:      r.ExtractedAt.Format(DayFormat),
	}
}

// IdentityKey identifies one logical observation: one bank, one target
// currency, one extraction day. Two runs on the same day for the same pair
// produce the same key; the later run supersedes the earlier one.
type IdentityKey struct {
	Name     string
	Currency string
	Day      string
}

// NormalizedTable is the output of the transform stage: the surviving records
// plus the raw column names they were built from (including ColExtractedAt,
// which the transform appends when the source did not provide it).
type NormalizedTable struct {
	Columns []string
	Records []NormalizedRecord
}

// MetadataColumns returns the computed column names appended after the raw
// columns in every store file, in contract order.
func MetadataColumns(baseCurrency, targetCurrency string) []string {
	return []string{
		AssetColumnName(baseCurrency),
		AssetColumnName(targetCurrency),
		ColTransformedAt,
		ColExchangeRate,
		ColExchangeFrom,
		ColExchangeTo,
		ColExchangeDate,
	}
}
