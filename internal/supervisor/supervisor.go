package supervisor

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/quantfold/crossarb/internal/agent"
	"github.com/quantfold/crossarb/pkg/config"
	"github.com/quantfold/crossarb/pkg/types"
)

// Handle is the per-user agent surface the supervisor manages. The concrete
// type is *agent.Agent; tests substitute lighter fakes.
type Handle interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	UpdateConfig(cfg config.AgentConfig) error
	State() agent.State
}

// Factory builds one user's fully wired agent. Construction failures (bad
// key material, unreachable chain) surface through Create.
type Factory func(userID string, cfg config.AgentConfig) (Handle, error)

// Supervisor owns the userID to agent mapping. Each agent is isolated: its
// own adapters, store view, pause state and loop. One agent failing or
// pausing never affects another.
type Supervisor struct {
	factory   Factory
	maxAgents int
	logger    *zap.Logger

	mu     sync.Mutex
	agents map[string]Handle
}

// New creates a supervisor bounded at maxAgents concurrent agents.
func New(factory Factory, maxAgents int, logger *zap.Logger) *Supervisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Supervisor{
		factory:   factory,
		maxAgents: maxAgents,
		logger:    logger,
		agents:    make(map[string]Handle),
	}
}

// Create builds a stopped agent for the user. Fails fast at the agent limit
// before any construction work happens.
func (s *Supervisor) Create(userID string, cfg config.AgentConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if _, ok := s.agents[userID]; ok {
		s.mu.Unlock()
		return types.ErrAgentExists
	}
	if len(s.agents) >= s.maxAgents {
		s.mu.Unlock()
		return types.ErrAgentLimit
	}
	// Reserve the slot so concurrent Creates cannot exceed the limit while
	// the factory runs outside the lock.
	s.agents[userID] = nil
	s.mu.Unlock()

	handle, err := s.factory(userID, cfg)
	if err != nil {
		s.mu.Lock()
		delete(s.agents, userID)
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.agents[userID] = handle
	s.mu.Unlock()

	AgentsManaged.Inc()
	s.logger.Info("agent-created", zap.String("user", userID))
	return nil
}

// Start launches the user's agent loop.
func (s *Supervisor) Start(ctx context.Context, userID string) error {
	handle, err := s.get(userID)
	if err != nil {
		return err
	}
	return handle.Start(ctx)
}

// Stop halts the user's agent loop, leaving the agent registered.
func (s *Supervisor) Stop(ctx context.Context, userID string) error {
	handle, err := s.get(userID)
	if err != nil {
		return err
	}
	return handle.Stop(ctx)
}

// Remove stops the agent if running and deletes it from the registry.
func (s *Supervisor) Remove(ctx context.Context, userID string) error {
	handle, err := s.get(userID)
	if err != nil {
		return err
	}

	if handle.State().Running {
		if err := handle.Stop(ctx); err != nil {
			return err
		}
	}

	s.mu.Lock()
	delete(s.agents, userID)
	s.mu.Unlock()

	AgentsManaged.Dec()
	s.logger.Info("agent-removed", zap.String("user", userID))
	return nil
}

// UpdateConfig swaps the user's trading options for the next scan.
func (s *Supervisor) UpdateConfig(userID string, cfg config.AgentConfig) error {
	handle, err := s.get(userID)
	if err != nil {
		return err
	}
	return handle.UpdateConfig(cfg)
}

// Status returns one agent's state.
func (s *Supervisor) Status(userID string) (agent.State, error) {
	handle, err := s.get(userID)
	if err != nil {
		return agent.State{}, err
	}
	return handle.State(), nil
}

// StatusAll returns every registered agent's state, ordered by user id.
func (s *Supervisor) StatusAll() []agent.State {
	s.mu.Lock()
	handles := make([]Handle, 0, len(s.agents))
	for _, h := range s.agents {
		if h != nil {
			handles = append(handles, h)
		}
	}
	s.mu.Unlock()

	states := make([]agent.State, 0, len(handles))
	for _, h := range handles {
		states = append(states, h.State())
	}
	sort.Slice(states, func(i, j int) bool { return states[i].UserID < states[j].UserID })
	return states
}

// StopAll stops every running agent. Used during process shutdown.
func (s *Supervisor) StopAll(ctx context.Context) {
	for _, state := range s.StatusAll() {
		if !state.Running {
			continue
		}
		if err := s.Stop(ctx, state.UserID); err != nil {
			s.logger.Error("agent-stop-failed",
				zap.String("user", state.UserID), zap.Error(err))
		}
	}
}

func (s *Supervisor) get(userID string) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	handle, ok := s.agents[userID]
	if !ok || handle == nil {
		return nil, types.ErrAgentNotFound
	}
	return handle, nil
}
