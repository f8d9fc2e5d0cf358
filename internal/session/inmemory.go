package session

import "sync"

// DefaultMaxTurns matches the context window the prompt assembler expects:
// older turns add tokens without adding much grounding.
const DefaultMaxTurns = 10

// Memory is a process-local Store. Histories vanish on restart, which is
// the intended behavior for a single-node deployment.
type Memory struct {
	mu       sync.RWMutex
	maxTurns int
	turns    map[string][]Turn
}

// NewMemory builds an in-memory store keeping at most maxTurns exchanges
// per session. maxTurns <= 0 selects DefaultMaxTurns.
func NewMemory(maxTurns int) *Memory {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &Memory{maxTurns: maxTurns, turns: make(map[string][]Turn)}
}

func (m *Memory) Get(id string) []Turn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	history := m.turns[id]
	out := make([]Turn, len(history))
	copy(out, history)
	return out
}

func (m *Memory) Append(id string, turn Turn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	history := append(m.turns[id], turn)
	if len(history) > m.maxTurns {
		history = history[len(history)-m.maxTurns:]
	}
	m.turns[id] = history
}

func (m *Memory) Reset(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.turns, id)
}
