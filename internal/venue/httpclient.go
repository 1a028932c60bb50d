package venue

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	requestTimeout = 10 * time.Second
	maxRetries     = 2
	retryBaseDelay = 250 * time.Millisecond
)

// apiError is a non-2xx response from a venue. 4xx rejects carry the body so
// the caller can surface the venue's reason string.
type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("venue API error: status %d: %s", e.Status, e.Body)
}

// authFunc attaches venue credentials to an outgoing request. The raw body is
// passed so per-request signing schemes can cover it.
type authFunc func(req *http.Request, body []byte) error

// httpClient is a rate-limited, retrying REST client shared by the venue
// adapters. Transport failures and 5xx responses are retried up to maxRetries
// times with exponential backoff; a 401 triggers at most one re-auth followed
// by a single retry.
type httpClient struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

func newHTTPClient(baseURL string, rps float64, logger *zap.Logger) *httpClient {
	return &httpClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: requestTimeout},
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		logger:  logger,
	}
}

// do issues one API call. reqBody and out may be nil; auth and reauth may be
// nil for unauthenticated endpoints.
func (c *httpClient) do(
	ctx context.Context,
	method, path string,
	reqBody, out interface{},
	auth authFunc,
	reauth func(context.Context) error,
) error {
	var payload []byte
	if reqBody != nil {
		var err error
		payload, err = json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	reauthed := false
	var lastErr error

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}

		status, body, err := c.roundTrip(ctx, method, path, payload, auth)
		if err != nil {
			lastErr = fmt.Errorf("%s %s: %w", method, path, err)
		} else if status >= 200 && status < 300 {
			if out != nil && len(body) > 0 {
				if err := json.Unmarshal(body, out); err != nil {
					return fmt.Errorf("decode response: %w", err)
				}
			}
			return nil
		} else if status == http.StatusUnauthorized {
			if reauthed || reauth == nil {
				return &apiError{Status: status, Body: string(body)}
			}
			if err := reauth(ctx); err != nil {
				return fmt.Errorf("re-authenticate: %w", err)
			}
			reauthed = true
			continue
		} else if status >= 500 || status == http.StatusTooManyRequests {
			lastErr = &apiError{Status: status, Body: string(body)}
		} else {
			// Other 4xx responses are venue rejects. Retrying cannot help.
			return &apiError{Status: status, Body: string(body)}
		}

		if attempt >= maxRetries {
			return lastErr
		}

		delay := retryBaseDelay * (1 << attempt)
		c.logger.Debug("retrying venue request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(lastErr))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (c *httpClient) roundTrip(
	ctx context.Context,
	method, path string,
	payload []byte,
	auth authFunc,
) (int, []byte, error) {
	var bodyReader io.Reader
	if len(payload) > 0 {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if auth != nil {
		if err := auth(req, payload); err != nil {
			return 0, nil, fmt.Errorf("sign request: %w", err)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}

	return resp.StatusCode, body, nil
}
