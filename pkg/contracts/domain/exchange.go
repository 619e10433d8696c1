package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeQuote is a point-in-time exchange-rate fact. A pipeline run uses
// exactly one quote.
type ExchangeQuote struct {
	From string          `json:"from" validate:"required,len=3,uppercase"`
	To   string          `json:"to" validate:"required,len=3,uppercase"`
	Rate decimal.Decimal `json:"rate"`
	AsOf time.Time       `json:"as_of" validate:"required"`
}

// Pair returns the conversion pair in file-name form, e.g. "USD_GBP".
func (q ExchangeQuote) Pair() string {
	return fmt.Sprintf("%s_%s", strings.ToUpper(q.From), strings.ToUpper(q.To))
}

// AssetColumnName returns the contract column name for a currency's asset
// figures, e.g. "assets_usd_billion".
func AssetColumnName(currency string) string {
	return fmt.Sprintf("assets_%s_billion", strings.ToLower(currency))
}
