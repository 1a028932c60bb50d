package quotes

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/quantfold/crossarb/pkg/types"
)

// quoteWire is the venue REST and stream representation of one market quote.
// Prices travel as decimal strings, sizes as base-unit integers.
type quoteWire struct {
	MarketID     string `json:"marketId"`
	YesPrice     string `json:"yesPrice"`
	NoPrice      string `json:"noPrice"`
	YesLiquidity int64  `json:"yesLiquidity"`
	NoLiquidity  int64  `json:"noLiquidity"`
	Question     string `json:"question"`
	ResolvesAt   string `json:"resolvesAt"` // RFC 3339, may be empty
}

func (w *quoteWire) toQuote(venue string) (types.MarketQuote, error) {
	yes, err := decimal.NewFromString(w.YesPrice)
	if err != nil {
		return types.MarketQuote{}, fmt.Errorf("parse yes price %q: %w", w.YesPrice, err)
	}
	no, err := decimal.NewFromString(w.NoPrice)
	if err != nil {
		return types.MarketQuote{}, fmt.Errorf("parse no price %q: %w", w.NoPrice, err)
	}

	q := types.MarketQuote{
		Venue:        venue,
		MarketID:     w.MarketID,
		YesPrice:     types.PriceFromDecimal(yes),
		NoPrice:      types.PriceFromDecimal(no),
		YesLiquidity: w.YesLiquidity,
		NoLiquidity:  w.NoLiquidity,
		Question:     w.Question,
	}

	if w.ResolvesAt != "" {
		t, err := time.Parse(time.RFC3339, w.ResolvesAt)
		if err != nil {
			return types.MarketQuote{}, fmt.Errorf("parse resolvesAt %q: %w", w.ResolvesAt, err)
		}
		q.ResolvesAt = t
	}

	return q, nil
}

// RESTFetcher polls a venue's quote endpoint.
type RESTFetcher struct {
	venue      string
	url        string
	httpClient *http.Client
}

// NewRESTFetcher creates a polling fetcher for one venue.
func NewRESTFetcher(venue, baseURL string) *RESTFetcher {
	return &RESTFetcher{
		venue:      venue,
		url:        baseURL + "/quotes",
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Venue returns the venue identifier.
func (f *RESTFetcher) Venue() string { return f.venue }

// Fetch retrieves the venue's current quotes.
func (f *RESTFetcher) Fetch(ctx context.Context) ([]types.MarketQuote, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch quotes: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote API error: status %d", resp.StatusCode)
	}

	var wire struct {
		Quotes []quoteWire `json:"quotes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode quotes: %w", err)
	}

	quotes := make([]types.MarketQuote, 0, len(wire.Quotes))
	for i := range wire.Quotes {
		q, err := wire.Quotes[i].toQuote(f.venue)
		if err != nil {
			// One malformed market must not poison the venue's whole book.
			continue
		}
		quotes = append(quotes, q)
	}

	return quotes, nil
}
