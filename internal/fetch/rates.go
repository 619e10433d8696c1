// Package fetch holds the pipeline's external collaborators: the
// exchange-rate API client and the raw bank-table source. Both only produce
// inputs for the core engine; neither touches the consolidation store.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	apperrors "bankfx/internal/errors"
	"bankfx/pkg/contracts/domain"
)

// RateDocument is an exchange-rate API response: every rate quoted against
// one base currency, as of one date.
type RateDocument struct {
	Success bool               `json:"success"`
	Base    string             `json:"base"`
	Date    string             `json:"date"`
	Rates   map[string]float64 `json:"rates"`
}

// RateClient fetches exchange-rate documents and derives single quotes from
// them.
type RateClient struct {
	apiURL     string
	apiKey     string
	ratesDir   string
	httpClient *http.Client
	validate   *validator.Validate
	now        func() time.Time
}

// RateClientOptions configures a RateClient
type RateClientOptions struct {
	APIURL   string
	APIKey   string
	RatesDir string
	Timeout  time.Duration
}

// NewRateClient creates a rate client
func NewRateClient(opts RateClientOptions) *RateClient {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RateClient{
		apiURL:     opts.APIURL,
		apiKey:     opts.APIKey,
		ratesDir:   opts.RatesDir,
		httpClient: &http.Client{Timeout: timeout},
		validate:   validator.New(),
		now:        time.Now,
	}
}

// FetchLatest retrieves the full rate document for a base currency. No
// target filtering happens here: the document is saved whole and the quote is
// derived later, so one fetch serves any target currency.
func (c *RateClient) FetchLatest(ctx context.Context, baseCurrency string) (*RateDocument, error) {
	endpoint, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, apperrors.NewConfigError("invalid exchange API URL", err)
	}
	query := endpoint.Query()
	query.Set("base", strings.ToUpper(baseCurrency))
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, apperrors.NewNetworkError("failed to build rate request", err)
	}
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewNetworkError("exchange rate request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, apperrors.NewNetworkError(
			fmt.Sprintf("exchange rate API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var doc RateDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, apperrors.NewNetworkError("failed to decode rate response", err)
	}
	if !doc.Success {
		slog.Warn("Exchange rate API returned success=false", slog.String("base", baseCurrency))
	}

	slog.Info("Exchange rates fetched",
		slog.String("base", doc.Base),
		slog.String("date", doc.Date),
		slog.Int("currencies", len(doc.Rates)))
	return &doc, nil
}

// SaveDocument persists a fetched rate document under the raw data directory
// with a timestamped name.
func (c *RateClient) SaveDocument(doc *RateDocument) (string, error) {
	if err := os.MkdirAll(c.ratesDir, 0755); err != nil {
		return "", apperrors.NewStorageError("failed to create rates directory", err)
	}

	filename := fmt.Sprintf("exchange_rates_%s_%s.json",
		strings.ToUpper(doc.Base), c.now().Format("20060102_150405"))
	path := filepath.Join(c.ratesDir, filename)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", apperrors.NewStorageError("failed to marshal rate document", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", apperrors.NewStorageError("failed to write rate document", err)
	}
	return path, nil
}

// LatestDocument loads the most recently saved rate document, for offline
// runs against an earlier fetch.
func (c *RateClient) LatestDocument() (*RateDocument, error) {
	path, err := latestFile(c.ratesDir, "exchange_rates_*.json")
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to read rate document", err)
	}
	var doc RateDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("corrupt rate document %s", path), err)
	}

	slog.Info("Loaded saved rate document", slog.String("file", filepath.Base(path)))
	return &doc, nil
}

// Quote fetches the latest rate document for the base currency, persists it,
// and derives the requested quote. When the fetch fails, the most recently
// saved document is used instead so scheduled runs survive API outages.
func (c *RateClient) Quote(ctx context.Context, from, to string) (domain.ExchangeQuote, error) {
	doc, err := c.FetchLatest(ctx, from)
	if err != nil {
		slog.Warn("Rate fetch failed, falling back to saved document",
			slog.String("error", err.Error()))
		doc, err = c.LatestDocument()
		if err != nil {
			return domain.ExchangeQuote{}, err
		}
	} else {
		if _, err := c.SaveDocument(doc); err != nil {
			slog.Warn("Failed to persist rate document", slog.String("error", err.Error()))
		}
	}
	return c.QuoteFor(doc, from, to)
}

// QuoteFor derives the requested quote from a rate document. When the
// document base matches the requested base the rate is taken directly;
// otherwise it is computed as a cross rate, rates[to]/rates[from], both legs
// quoted against the document base.
func (c *RateClient) QuoteFor(doc *RateDocument, from, to string) (domain.ExchangeQuote, error) {
	from = strings.ToUpper(from)
	to = strings.ToUpper(to)

	var rate decimal.Decimal
	switch {
	case strings.EqualFold(doc.Base, from):
		direct, ok := doc.Rates[to]
		if !ok {
			return domain.ExchangeQuote{}, apperrors.NewValidationError(
				fmt.Sprintf("rate document has no %s rate", to), nil)
		}
		rate = decimal.NewFromFloat(direct)
	default:
		fromLeg, okFrom := doc.Rates[from]
		toLeg, okTo := doc.Rates[to]
		if !okFrom || !okTo || fromLeg == 0 {
			return domain.ExchangeQuote{}, apperrors.NewValidationError(
				fmt.Sprintf("rate document (base %s) cannot derive %s->%s", doc.Base, from, to), nil)
		}
		rate = decimal.NewFromFloat(toLeg).Div(decimal.NewFromFloat(fromLeg))
	}

	asOf, err := time.Parse(domain.DayFormat, doc.Date)
	if err != nil {
		asOf = c.now()
	}

	quote := domain.ExchangeQuote{From: from, To: to, Rate: rate, AsOf: asOf}
	if err := c.validate.Struct(quote); err != nil {
		return domain.ExchangeQuote{}, apperrors.NewValidationError("derived quote is invalid", err)
	}
	if !quote.Rate.IsPositive() {
		return domain.ExchangeQuote{}, apperrors.NewValidationError(
			fmt.Sprintf("derived rate %s is not positive", quote.Rate), nil)
	}

	slog.Info("Quote derived",
		slog.String("pair", quote.Pair()),
		slog.String("rate", quote.Rate.String()),
		slog.String("as_of", quote.AsOf.Format(domain.DayFormat)))
	return quote, nil
}
