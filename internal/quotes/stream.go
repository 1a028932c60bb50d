package quotes

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/quantfold/crossarb/pkg/types"
)

const (
	streamDialTimeout    = 10 * time.Second
	streamInitialBackoff = 500 * time.Millisecond
	streamMaxBackoff     = 30 * time.Second
)

// StreamFetcher consumes a venue's quote stream over a websocket and serves
// the latest quote per market from memory. Fetch never blocks on the network;
// it reflects whatever the stream has delivered so far.
type StreamFetcher struct {
	venue  string
	url    string
	logger *zap.Logger

	mu     sync.RWMutex
	latest map[string]types.MarketQuote

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewStreamFetcher creates a stream-backed fetcher. Start must be called
// before Fetch returns data.
func NewStreamFetcher(venue, url string, logger *zap.Logger) *StreamFetcher {
	return &StreamFetcher{
		venue:  venue,
		url:    url,
		logger: logger,
		latest: make(map[string]types.MarketQuote),
	}
}

// Venue returns the venue identifier.
func (f *StreamFetcher) Venue() string { return f.venue }

// Start launches the stream consumer. It reconnects with capped exponential
// backoff until Close is called.
func (f *StreamFetcher) Start(ctx context.Context) {
	ctx, f.cancel = context.WithCancel(ctx)

	f.wg.Add(1)
	go f.run(ctx)
}

// Close stops the stream consumer and waits for it to exit.
func (f *StreamFetcher) Close() {
	if f.cancel != nil {
		f.cancel()
	}
	f.wg.Wait()
}

// Fetch returns the latest known quote per market. An empty book means the
// stream has not delivered yet; the source then skips this venue.
func (f *StreamFetcher) Fetch(_ context.Context) ([]types.MarketQuote, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(f.latest) == 0 {
		return nil, fmt.Errorf("stream has no quotes for %s yet", f.venue)
	}

	quotes := make([]types.MarketQuote, 0, len(f.latest))
	for _, q := range f.latest {
		quotes = append(quotes, q)
	}
	return quotes, nil
}

func (f *StreamFetcher) run(ctx context.Context) {
	defer f.wg.Done()

	backoff := streamInitialBackoff
	for {
		if ctx.Err() != nil {
			return
		}

		connected, err := f.consume(ctx)
		if ctx.Err() != nil {
			return
		}

		// A session that reached the subscribed state earns a fresh backoff;
		// only consecutive failed dials escalate the wait.
		if connected {
			backoff = streamInitialBackoff
		}

		StreamReconnectsTotal.WithLabelValues(f.venue).Inc()
		f.logger.Warn("quote-stream-disconnected",
			zap.String("venue", f.venue),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > streamMaxBackoff {
			backoff = streamMaxBackoff
		}
	}
}

// consume dials, subscribes and reads until the connection drops. The bool
// reports whether the session got past the subscribe handshake.
func (f *StreamFetcher) consume(ctx context.Context) (bool, error) {
	dialer := websocket.Dialer{HandshakeTimeout: streamDialTimeout}

	conn, _, err := dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return false, fmt.Errorf("dial quote stream: %w", err)
	}
	defer conn.Close()

	sub := map[string]string{"type": "subscribe", "channel": "quotes"}
	if err := conn.WriteJSON(sub); err != nil {
		return false, fmt.Errorf("subscribe: %w", err)
	}

	f.logger.Info("quote-stream-connected", zap.String("venue", f.venue))

	// Unblock ReadMessage when the context is cancelled.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return true, fmt.Errorf("read quote stream: %w", err)
		}

		var frame struct {
			Type   string      `json:"type"`
			Quotes []quoteWire `json:"quotes"`
		}
		if err := json.Unmarshal(msg, &frame); err != nil {
			f.logger.Debug("malformed-stream-frame", zap.Error(err))
			continue
		}
		if frame.Type != "quotes" {
			continue
		}

		f.apply(frame.Quotes)
	}
}

func (f *StreamFetcher) apply(wires []quoteWire) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range wires {
		q, err := wires[i].toQuote(f.venue)
		if err != nil {
			continue
		}
		f.latest[q.MarketID] = q
	}
	StreamUpdatesTotal.WithLabelValues(f.venue).Add(float64(len(wires)))
}
