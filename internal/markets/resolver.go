package markets

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/quantfold/crossarb/pkg/types"
)

// Resolver maps (venue, marketId) to the venue's YES/NO outcome token ids.
// The executor refuses to build a position when either id is missing.
type Resolver interface {
	TokenPair(ctx context.Context, venue, marketID string) (types.TokenPair, error)
}

// MetaClient fetches market metadata from a venue's REST API.
type MetaClient struct {
	baseURLs   map[string]string // venue name -> base URL
	httpClient *http.Client
}

// NewMetaClient creates a metadata client over the given venue base URLs.
func NewMetaClient(baseURLs map[string]string) *MetaClient {
	return &MetaClient{
		baseURLs: baseURLs,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// TokenPair fetches the outcome token ids of one market on one venue.
func (c *MetaClient) TokenPair(ctx context.Context, venue, marketID string) (types.TokenPair, error) {
	base, ok := c.baseURLs[venue]
	if !ok {
		return types.TokenPair{}, fmt.Errorf("unknown venue %q", venue)
	}

	url := fmt.Sprintf("%s/markets/%s/tokens", base, marketID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return types.TokenPair{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return types.TokenPair{}, fmt.Errorf("fetch token pair: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.TokenPair{}, fmt.Errorf("meta API error: status %d", resp.StatusCode)
	}

	var data struct {
		YesTokenID string `json:"yesTokenId"`
		NoTokenID  string `json:"noTokenId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return types.TokenPair{}, fmt.Errorf("decode token pair: %w", err)
	}

	if data.YesTokenID == "" || data.NoTokenID == "" {
		return types.TokenPair{}, types.ErrMissingTokenID
	}

	return types.TokenPair{YesTokenID: data.YesTokenID, NoTokenID: data.NoTokenID}, nil
}
