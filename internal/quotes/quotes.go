package quotes

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quantfold/crossarb/pkg/types"
)

// Fetcher produces the current quotes of one venue. A fetch either succeeds
// with the venue's full market list or fails as a unit.
type Fetcher interface {
	Venue() string
	Fetch(ctx context.Context) ([]types.MarketQuote, error)
}

// Source merges per-venue fetchers into consistent snapshots. A venue that
// fails to fetch is simply absent from the snapshot; detection degrades to
// the venues that answered. When every venue fails the snapshot is empty so
// the trading path never acts on stale prices; the last good snapshot stays
// readable through LastGood for display surfaces only.
type Source struct {
	fetchers []Fetcher
	logger   *zap.Logger

	mu         sync.Mutex
	snapshotID uint64
	lastGood   *types.QuoteSnapshot
}

// NewSource creates a quote source over the given fetchers.
func NewSource(fetchers []Fetcher, logger *zap.Logger) *Source {
	return &Source{
		fetchers: fetchers,
		logger:   logger,
	}
}

// Snapshot fetches all venues concurrently and assembles the next snapshot.
func (s *Source) Snapshot(ctx context.Context) types.QuoteSnapshot {
	results := make([][]types.MarketQuote, len(s.fetchers))

	var wg sync.WaitGroup
	for i, f := range s.fetchers {
		wg.Add(1)
		go func(i int, f Fetcher) {
			defer wg.Done()

			quotes, err := f.Fetch(ctx)
			if err != nil {
				FetchFailuresTotal.WithLabelValues(f.Venue()).Inc()
				s.logger.Warn("quote-fetch-failed",
					zap.String("venue", f.Venue()),
					zap.Error(err))
				return
			}
			results[i] = quotes
		}(i, f)
	}
	wg.Wait()

	merged := make([]types.MarketQuote, 0)
	for _, quotes := range results {
		merged = append(merged, quotes...)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(merged) == 0 && s.lastGood != nil {
		StaleServesTotal.Inc()
		s.logger.Warn("all-venues-failed",
			zap.Uint64("last-good-snapshot-id", s.lastGood.SnapshotID))
	}

	s.snapshotID++
	snap := types.QuoteSnapshot{
		SnapshotID:   s.snapshotID,
		ProducedAtMs: time.Now().UnixMilli(),
		Quotes:       merged,
	}

	if len(merged) > 0 {
		s.lastGood = &snap
	}

	SnapshotsTotal.Inc()
	QuotesPerSnapshot.Set(float64(len(merged)))

	return snap
}

// LastGood returns a copy of the most recent non-empty snapshot, for
// read-only display. It is never fed back into detection.
func (s *Source) LastGood() (types.QuoteSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastGood == nil {
		return types.QuoteSnapshot{}, false
	}
	return *s.lastGood, true
}
