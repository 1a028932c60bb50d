package risk

import (
	"sync"
	"time"
)

// LossTracker accumulates realized losses per UTC calendar day. The daily
// figure resets when the first trade of a new day is recorded or read.
type LossTracker struct {
	mu   sync.Mutex
	day  string
	loss int64
}

// NewLossTracker creates an empty tracker.
func NewLossTracker() *LossTracker {
	return &LossTracker{}
}

// Record adds one trade's realized pnl. Profits do not offset the daily loss
// figure; the stop-loss guards gross downside.
func (t *LossTracker) Record(pnl int64, now time.Time) {
	if pnl >= 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.roll(now)
	t.loss += -pnl
}

// TodayLoss returns the accumulated loss for the current UTC day.
func (t *LossTracker) TodayLoss(now time.Time) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.roll(now)
	return t.loss
}

func (t *LossTracker) roll(now time.Time) {
	day := now.UTC().Format("2006-01-02")
	if day != t.day {
		t.day = day
		t.loss = 0
	}
}
