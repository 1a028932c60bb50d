package testutil

import (
	"context"
	"sync"

	"github.com/quantfold/crossarb/pkg/types"
)

// MemRepo is an in-memory Repository double shared by executor, agent and
// supervisor tests.
type MemRepo struct {
	mu        sync.Mutex
	positions map[string]*types.Position
	InsertErr error
	UpdateErr error
}

// NewMemRepo creates an empty repository.
func NewMemRepo() *MemRepo {
	return &MemRepo{positions: make(map[string]*types.Position)}
}

// Seed places a position directly into the repository.
func (m *MemRepo) Seed(pos types.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[pos.ID] = &pos
}

// Get returns the stored image of one position.
func (m *MemRepo) Get(id string) (types.Position, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pos, ok := m.positions[id]
	if !ok {
		return types.Position{}, false
	}
	return *pos, true
}

func (m *MemRepo) InsertPosition(_ context.Context, pos *types.Position) error {
	if m.InsertErr != nil {
		return m.InsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *pos
	m.positions[pos.ID] = &cp
	return nil
}

func (m *MemRepo) UpdatePosition(_ context.Context, pos *types.Position) error {
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *pos
	m.positions[pos.ID] = &cp
	return nil
}

func (m *MemRepo) ListOpenPositions(_ context.Context, userID string) ([]*types.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*types.Position
	for _, pos := range m.positions {
		if pos.UserID == userID && !pos.Status.Terminal() {
			cp := *pos
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemRepo) Close() error { return nil }

// StaticResolver returns fixed token pairs per venue.
type StaticResolver struct {
	Pairs map[string]types.TokenPair // keyed by venue name
	Err   error
}

func (s *StaticResolver) TokenPair(_ context.Context, venueName, _ string) (types.TokenPair, error) {
	if s.Err != nil {
		return types.TokenPair{}, s.Err
	}
	pair, ok := s.Pairs[venueName]
	if !ok {
		return types.TokenPair{}, types.ErrMissingTokenID
	}
	return pair, nil
}
