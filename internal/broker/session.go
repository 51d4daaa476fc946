package broker

import (
	"sync"

	"github.com/ocx/oefbroker/internal/query"
)

// AgentHandle receives frames dispatched by the scheduler once bound to
// a Session. Both the local proxy and each TCP connection's read/write
// pair implement this to plug into the same dispatch path (spec.md's
// "reverse direction mirrors this" for C6 vs C7).
type AgentHandle interface {
	// Deliver hands one already-framed, already-addressed payload to the
	// agent side. It must not block indefinitely (spec.md §5).
	Deliver(payload []byte)
}

// Session is the broker-side record of one connected agent (spec.md §3,
// "Agent session"). Grounded on the teacher's internal/protocol.Session:
// a mutex-guarded struct holding identity plus an outbound reference,
// looked up by key from a SessionManager-like table.
type Session struct {
	Key string

	mu          sync.RWMutex
	description *query.Instance
	handle      AgentHandle
}

func newSession(key string) *Session {
	return &Session{Key: key}
}

// Bind associates the session with a callback receiver. Frames enqueued
// before Bind is called are simply not deliverable yet; the scheduler's
// worker checks for a bound handle before dispatching.
func (s *Session) Bind(handle AgentHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handle = handle
}

func (s *Session) boundHandle() AgentHandle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handle
}

// SetDescription sets the description Instance used to answer
// search_agents (spec.md §4.5).
func (s *Session) SetDescription(instance query.Instance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.description = &instance
}

// ClearDescription removes the session's description.
func (s *Session) ClearDescription() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.description = nil
}

// MatchesDescription reports whether the session currently has a
// description and it satisfies model.
func (s *Session) MatchesDescription(model query.QueryModel) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.description == nil {
		return false
	}
	return model.Check(*s.description)
}
