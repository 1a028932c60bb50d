package execution

import "sync"

// PauseReasonUnwind marks an agent awaiting a partial-fill unwind.
const PauseReasonUnwind = "partial_fill:awaiting_unwind"

// PauseState gates new executions. It is set by the executor on partial fill
// and cleared only when the unwind fills or an operator intervenes.
type PauseState struct {
	mu     sync.RWMutex
	paused bool
	reason string
}

// NewPauseState creates an unpaused state.
func NewPauseState() *PauseState {
	return &PauseState{}
}

// Pause sets the flag with a reason.
func (p *PauseState) Pause(reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = true
	p.reason = reason
}

// Clear unpauses.
func (p *PauseState) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = false
	p.reason = ""
}

// Paused returns the flag and its reason.
func (p *PauseState) Paused() (bool, string) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.paused, p.reason
}
