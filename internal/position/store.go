package position

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/quantfold/crossarb/internal/storage"
	"github.com/quantfold/crossarb/pkg/types"
)

// Store is one agent's view of its positions: an in-memory map for the hot
// path with every transition logged through the repository. Reads hand out
// copies; callers mutate a copy and commit it through Update.
type Store struct {
	userID string
	repo   storage.Repository
	logger *zap.Logger

	mu        sync.RWMutex
	positions map[string]types.Position
}

// NewStore creates an empty store for one user.
func NewStore(userID string, repo storage.Repository, logger *zap.Logger) *Store {
	return &Store{
		userID:    userID,
		repo:      repo,
		logger:    logger,
		positions: make(map[string]types.Position),
	}
}

// ReloadOpen loads the user's non-terminal positions from the repository into
// memory and returns them. Called on agent start so interrupted fills and
// unwinds resume.
func (s *Store) ReloadOpen(ctx context.Context) ([]types.Position, error) {
	persisted, err := s.repo.ListOpenPositions(ctx, s.userID)
	if err != nil {
		return nil, fmt.Errorf("reload open positions: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	reloaded := make([]types.Position, 0, len(persisted))
	for _, pos := range persisted {
		s.positions[pos.ID] = *pos
		reloaded = append(reloaded, *pos)
	}

	if len(reloaded) > 0 {
		s.logger.Info("positions-reloaded",
			zap.String("user", s.userID),
			zap.Int("count", len(reloaded)))
	}

	return reloaded, nil
}

// Open records a newly created position. The durable insert happens first;
// a repository failure leaves memory untouched.
func (s *Store) Open(ctx context.Context, pos types.Position) error {
	if err := s.repo.InsertPosition(ctx, &pos); err != nil {
		return err
	}

	s.mu.Lock()
	s.positions[pos.ID] = pos
	s.mu.Unlock()

	OpenPositions.Inc()
	return nil
}

// Update commits a position transition. Memory is updated even when the
// durable write fails, so the executor keeps a consistent live view; the
// write failure is surfaced for logging.
func (s *Store) Update(ctx context.Context, pos types.Position) error {
	s.mu.Lock()
	prev, known := s.positions[pos.ID]
	s.positions[pos.ID] = pos
	s.mu.Unlock()

	if known && !prev.Status.Terminal() && pos.Status.Terminal() {
		OpenPositions.Dec()
	}

	if err := s.repo.UpdatePosition(ctx, &pos); err != nil {
		return fmt.Errorf("persist transition: %w", err)
	}
	return nil
}

// Get returns a copy of one position.
func (s *Store) Get(id string) (types.Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pos, ok := s.positions[id]
	return pos, ok
}

// List returns copies of all known positions ordered by open time.
func (s *Store) List() []types.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Position, 0, len(s.positions))
	for _, pos := range s.positions {
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OpenedAt.Equal(out[j].OpenedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].OpenedAt.Before(out[j].OpenedAt)
	})
	return out
}

// ListNonTerminal returns copies of positions still in flight.
func (s *Store) ListNonTerminal() []types.Position {
	all := s.List()
	out := all[:0]
	for _, pos := range all {
		if !pos.Status.Terminal() {
			out = append(out, pos)
		}
	}
	return out
}

// RealizedPnL sums the realized pnl of terminal positions.
func (s *Store) RealizedPnL() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, pos := range s.positions {
		if pos.Status.Terminal() {
			total += pos.PnL
		}
	}
	return total
}
