// Package convert implements the currency converter: it cleans raw asset
// figures and multiplies them into the target currency using decimal
// arithmetic, so financial values never pick up floating-point drift.
package convert

import (
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	apperrors "bankfx/internal/errors"
	"bankfx/pkg/contracts/domain"
)

const (
	// RateScale is the number of fractional digits kept on exchange rates.
	RateScale = 4
	// ValueScale is the number of fractional digits kept on converted values.
	ValueScale = 2
)

// numericPattern matches the first numeric substring in a formatted asset
// field, e.g. "3,254.17" in "US$3,254.17[a]".
var numericPattern = regexp.MustCompile(`-?\d[\d,.]*`)

// Converter maps raw bank records to currency-normalized records. It holds no
// persistent state.
type Converter struct {
	now func() time.Time
}

// NewConverter creates a new converter
func NewConverter() *Converter {
	return &Converter{now: time.Now}
}

// Summary aggregates per-record outcomes of a conversion batch. Dropped
// records are counted by error type and their reasons kept, so callers can
// report them instead of silently losing rows.
type Summary struct {
	InputCount  int
	OutputCount int
	Dropped     map[apperrors.ErrorType]int
	Reasons     []string
}

// DroppedCount returns the total number of dropped records
func (s Summary) DroppedCount() int {
	total := 0
	for _, n := range s.Dropped {
		total += n
	}
	return total
}

// DroppedByType returns the drop counts keyed by error-type string, the shape
// the execution log stores.
func (s Summary) DroppedByType() map[string]int {
	if len(s.Dropped) == 0 {
		return nil
	}
	out := make(map[string]int, len(s.Dropped))
	for errType, n := range s.Dropped {
		out[string(errType)] = n
	}
	return out
}

func (s *Summary) drop(err *apperrors.AppError) {
	s.Dropped[err.Type]++
	s.Reasons = append(s.Reasons, err.Error())
}

// Convert produces one normalized record per convertible input record.
//
// A record whose source currency does not match the quote, or whose asset
// field yields no numeric substring, is dropped, counted in the summary and
// logged; it never aborts the batch. Output length is therefore at most input
// length, and every output record carries the full metadata block.
func (c *Converter) Convert(records []domain.RawRecord, quote domain.ExchangeQuote) ([]domain.NormalizedRecord, Summary, error) {
	if !quote.Rate.IsPositive() {
		return nil, Summary{}, apperrors.NewValidationError("exchange rate must be positive", nil)
	}

	rate := quote.Rate.Round(RateScale)
	transformedAt := c.now()
	summary := Summary{
		InputCount: len(records),
		Dropped:    make(map[apperrors.ErrorType]int),
	}

	out := make([]domain.NormalizedRecord, 0, len(records))
	for _, record := range records {
		if !strings.EqualFold(record.SourceCurrency, quote.From) {
			appErr := apperrors.NewCurrencyMismatchError(record.Name, record.SourceCurrency, quote.From)
			summary.drop(appErr)
			slog.Warn("Dropping record with mismatched currency",
				slog.String("bank", record.Name),
				slog.String("record_currency", record.SourceCurrency),
				slog.String("quote_currency", quote.From))
			continue
		}

		base, err := CleanNumeric(record.AssetValue)
		if err != nil {
			appErr := apperrors.NewUnparsableValueError(record.Name, record.AssetValue)
			summary.drop(appErr)
			slog.Warn("Dropping record with unparsable asset value",
				slog.String("bank", record.Name),
				slog.String("raw_value", record.AssetValue))
			continue
		}

		// The target is derived from the base exactly as both are stored, so
		// persisted pairs always satisfy target = round(base * rate).
		base = base.Round(ValueScale)

		out = append(out, domain.NormalizedRecord{
			RawRecord:        record,
			AssetValueBase:   base,
			AssetValueTarget: base.Mul(rate).Round(ValueScale),
			TransformedAt:    transformedAt,
			ExchangeRate:     rate,
			ExchangeFrom:     strings.ToUpper(quote.From),
			ExchangeTo:       strings.ToUpper(quote.To),
			ExchangeDate:     quote.AsOf,
		})
	}

	summary.OutputCount = len(out)
	return out, summary, nil
}

// CleanNumeric extracts the first numeric substring from a formatted asset
// field and parses it as a decimal. Thousands separators, currency symbols
// and footnote markers are tolerated; a field with no numeric substring is an
// error.
func CleanNumeric(raw string) (decimal.Decimal, error) {
	match := numericPattern.FindString(raw)
	if match == "" {
		return decimal.Zero, apperrors.NewUnparsableValueError("", raw)
	}

	match = strings.TrimRight(match, ",.")

	// A single comma with no dot is a decimal comma, unless it is followed by
	// a three-digit group, which marks a thousands separator ("1,234").
	if strings.Count(match, ",") == 1 && !strings.Contains(match, ".") {
		parts := strings.SplitN(match, ",", 2)
		if len(parts[1]) != 3 {
			match = parts[0] + "." + parts[1]
		}
	}
	match = strings.ReplaceAll(match, ",", "")

	value, err := decimal.NewFromString(match)
	if err != nil {
		return decimal.Zero, apperrors.NewUnparsableValueError("", raw)
	}
	return value, nil
}
