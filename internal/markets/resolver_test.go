package markets

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/quantfold/crossarb/pkg/cache"
	"github.com/quantfold/crossarb/pkg/types"
	"go.uber.org/zap"
)

func TestMetaClient_TokenPair(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets/0xabc/tokens" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"yesTokenId":"yes-1","noTokenId":"no-1"}`))
	}))
	defer srv.Close()

	c := NewMetaClient(map[string]string{"amm": srv.URL})

	pair, err := c.TokenPair(context.Background(), "amm", "0xabc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if pair.YesTokenID != "yes-1" || pair.NoTokenID != "no-1" {
		t.Errorf("unexpected pair: %+v", pair)
	}
}

func TestMetaClient_MissingTokenID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"yesTokenId":"yes-1","noTokenId":""}`))
	}))
	defer srv.Close()

	c := NewMetaClient(map[string]string{"amm": srv.URL})

	_, err := c.TokenPair(context.Background(), "amm", "0xabc")
	if !errors.Is(err, types.ErrMissingTokenID) {
		t.Errorf("expected ErrMissingTokenID, got %v", err)
	}
}

func TestMetaClient_UnknownVenue(t *testing.T) {
	c := NewMetaClient(map[string]string{})

	_, err := c.TokenPair(context.Background(), "nope", "0xabc")
	if err == nil {
		t.Error("expected error for unknown venue")
	}
}

type countingResolver struct {
	calls atomic.Int64
	pair  types.TokenPair
	err   error
}

func (c *countingResolver) TokenPair(ctx context.Context, venue, marketID string) (types.TokenPair, error) {
	c.calls.Add(1)
	return c.pair, c.err
}

func TestCachedResolver_SecondHitAvoidsFetch(t *testing.T) {
	inner := &countingResolver{pair: types.TokenPair{YesTokenID: "y", NoTokenID: "n"}}

	rc, err := cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 100,
		MaxCost:     10,
		BufferItems: 64,
		Logger:      zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("create cache: %v", err)
	}
	defer rc.Close()

	r := NewCachedResolver(inner, rc)

	if _, err := r.TokenPair(context.Background(), "amm", "m1"); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	rc.(*cache.RistrettoCache).Wait()
	time.Sleep(10 * time.Millisecond)

	if _, err := r.TokenPair(context.Background(), "amm", "m1"); err != nil {
		t.Fatalf("second resolve: %v", err)
	}

	if got := inner.calls.Load(); got != 1 {
		t.Errorf("expected 1 upstream call, got %d", got)
	}
}

func TestCachedResolver_ErrorNotCached(t *testing.T) {
	inner := &countingResolver{err: errors.New("boom")}
	r := NewCachedResolver(inner, nil)

	if _, err := r.TokenPair(context.Background(), "amm", "m1"); err == nil {
		t.Fatal("expected error")
	}
	if _, err := r.TokenPair(context.Background(), "amm", "m1"); err == nil {
		t.Fatal("expected error")
	}

	if got := inner.calls.Load(); got != 2 {
		t.Errorf("expected 2 upstream calls, got %d", got)
	}
}
