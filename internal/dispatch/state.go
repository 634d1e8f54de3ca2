// Package dispatch implements the push dispatcher: it watches each
// recipient's state (busy mid-turn vs idle awaiting input) and decides
// whether a newly delivered message rides along on the next PostToolUse
// result or wakes the recipient directly as a synthetic user-turn.
package dispatch

import (
	"sync"
	"time"
)

// Mode is an agent's current turn state.
type Mode int

const (
	Idle Mode = iota
	Busy
)

// AgentState tracks the bookkeeping the dispatcher needs to classify an
// agent as busy or idle: busy starts on the first tool call after a
// user-turn begins, and ends when the runtime signals turn-complete with
// no pending tool calls.
type AgentState struct {
	mu                sync.Mutex
	mode              Mode
	lastTurnBoundary  time.Time
	inFlightToolCalls int
}

// StateTracker holds one AgentState per live agent.
type StateTracker struct {
	mu     sync.Mutex
	agents map[string]*AgentState
}

// NewStateTracker returns an empty tracker.
func NewStateTracker() *StateTracker {
	return &StateTracker{agents: make(map[string]*AgentState)}
}

func (t *StateTracker) state(agentID string) *AgentState {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.agents[agentID]
	if !ok {
		s = &AgentState{mode: Idle, lastTurnBoundary: time.Now()}
		t.agents[agentID] = s
	}
	return s
}

// BeginUserTurn marks the start of a new user-turn for agentID.
func (t *StateTracker) BeginUserTurn(agentID string) {
	s := t.state(agentID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastTurnBoundary = time.Now()
}

// ToolCallStarted transitions agentID to Busy on the first tool call
// after a user-turn began.
func (t *StateTracker) ToolCallStarted(agentID string) {
	s := t.state(agentID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlightToolCalls++
	s.mode = Busy
}

// ToolCallCompleted decrements the in-flight counter. It does not by
// itself return the agent to Idle — only an explicit TurnComplete with no
// pending calls does that, since a tool result may itself trigger another
// tool call before the runtime's turn-complete signal arrives.
func (t *StateTracker) ToolCallCompleted(agentID string) {
	s := t.state(agentID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlightToolCalls > 0 {
		s.inFlightToolCalls--
	}
}

// TurnComplete marks the runtime's "turn complete, awaiting input" signal.
// The agent becomes Idle only if there are no in-flight tool calls left.
func (t *StateTracker) TurnComplete(agentID string) {
	s := t.state(agentID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlightToolCalls == 0 {
		s.mode = Idle
	}
}

// Mode reports agentID's current mode.
func (t *StateTracker) Mode(agentID string) Mode {
	s := t.state(agentID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}
