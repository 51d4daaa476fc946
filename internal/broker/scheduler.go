// Package broker implements the OEF broker scheduler (spec.md C5, §4.5):
// the session table, the bounded dispatch queue, the single dispatch
// worker, and the service directory, all reachable from both the
// in-process local proxy and the TCP listener's per-connection handlers.
// Grounded on the teacher's internal/fabric.Hub — a mutex-guarded
// spokes map plus routing indices, drained by a routing method rather
// than a dedicated worker goroutine; here spec.md §4.5 explicitly wants
// a single dedicated worker draining a bounded queue, so the dispatch
// path is restructured around a channel instead of Hub.Route's
// synchronous fan-out, while the session-table/mutex idiom carries over
// unchanged.
package broker

import (
	"log/slog"
	"sync"
	"time"

	"github.com/ocx/oefbroker/internal/directory"
	"github.com/ocx/oefbroker/internal/metrics"
	"github.com/ocx/oefbroker/internal/query"
	"github.com/ocx/oefbroker/internal/wire"
)

type queuedFrame struct {
	dest    string
	payload []byte
}

// Scheduler is the broker core. The zero value is not usable; construct
// with New.
type Scheduler struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	directory *directory.Directory

	queue    chan queuedFrame
	stopOnce sync.Once
	done     chan struct{}

	logger  *slog.Logger
	metrics *metrics.Broker
}

// New constructs a Scheduler with the given bounded dispatch queue
// capacity and starts its single worker goroutine.
func New(queueLen int, m *metrics.Broker, logger *slog.Logger) *Scheduler {
	if queueLen <= 0 {
		queueLen = 1024
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Scheduler{
		sessions:  make(map[string]*Session),
		directory: directory.New(),
		queue:     make(chan queuedFrame, queueLen),
		done:      make(chan struct{}),
		logger:    logger,
		metrics:   m,
	}
	go s.worker()
	return s
}

// Connect registers a new session for key. It returns false (spec.md
// §4.5) if key is already connected — the caller (C6/C7 side) is
// expected to surface ErrDuplicateSession, which Connect also returns
// for callers that want the error kind.
func (s *Scheduler) Connect(key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[key]; exists {
		if s.metrics != nil {
			s.metrics.DuplicateConnects.Inc()
		}
		return false, ErrDuplicateSession
	}
	s.sessions[key] = newSession(key)
	if s.metrics != nil {
		s.metrics.SessionsConnected.Inc()
		s.metrics.SessionsTotal.Inc()
	}
	return true, nil
}

// Disconnect removes key's session. Per spec.md §4.5 it does NOT cancel
// frames already queued for key; the worker drops those when it finds
// the session gone.
func (s *Scheduler) Disconnect(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[key]; !exists {
		return
	}
	delete(s.sessions, key)
	if s.metrics != nil {
		s.metrics.SessionsConnected.Dec()
	}
}

// Bind associates handle with key's session so dispatched frames reach
// it. Returns ErrUnknownSession if key has no live session.
func (s *Scheduler) Bind(key string, handle AgentHandle) error {
	s.mu.RLock()
	session, exists := s.sessions[key]
	s.mu.RUnlock()
	if !exists {
		return ErrUnknownSession
	}
	session.Bind(handle)
	return nil
}

// RegisterDescription sets key's own description, used by SearchAgents.
// Rejects an instance that does not satisfy its own DataModel, mirroring
// schema.cpp's Instance constructor throwing on a missing required field
// or a type mismatch.
func (s *Scheduler) RegisterDescription(key string, instance query.Instance) error {
	if err := instance.Validate(); err != nil {
		return err
	}
	s.mu.RLock()
	session, exists := s.sessions[key]
	s.mu.RUnlock()
	if !exists {
		return ErrUnknownSession
	}
	session.SetDescription(instance)
	return nil
}

// UnregisterDescription clears key's description.
func (s *Scheduler) UnregisterDescription(key string) error {
	s.mu.RLock()
	session, exists := s.sessions[key]
	s.mu.RUnlock()
	if !exists {
		return ErrUnknownSession
	}
	session.ClearDescription()
	return nil
}

// RegisterService adds instance to the service directory under key,
// rejecting an instance that does not satisfy its own DataModel.
func (s *Scheduler) RegisterService(key string, instance query.Instance) error {
	if err := instance.Validate(); err != nil {
		return err
	}
	s.directory.Register(instance, key)
	return nil
}

// UnregisterService removes instance from the service directory under key.
func (s *Scheduler) UnregisterService(key string, instance query.Instance) {
	s.directory.Unregister(instance, key)
}

// SearchAgents returns the keys of connected sessions whose own
// description matches model.
func (s *Scheduler) SearchAgents(model query.QueryModel) []string {
	if s.metrics != nil {
		defer s.observeSearchLatency(time.Now())
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []string
	for key, session := range s.sessions {
		if session.MatchesDescription(model) {
			matches = append(matches, key)
		}
	}
	return matches
}

// SearchServices delegates to the service directory.
func (s *Scheduler) SearchServices(model query.QueryModel) []string {
	if s.metrics != nil {
		defer s.observeSearchLatency(time.Now())
	}
	return s.directory.Query(model)
}

func (s *Scheduler) observeSearchLatency(start time.Time) {
	s.metrics.SearchLatency.Observe(time.Since(start).Seconds())
}

// Send enqueues payload for delivery to key itself — used for search
// replies and other broker-originated messages.
func (s *Scheduler) Send(key string, payload []byte) {
	s.enqueue(key, payload)
}

// SendTo enqueues payload for delivery to `to`. If `to` has no live
// session, the broker synthesizes a DialogueError back to `from`
// (spec.md's UnknownPeer promotion, §7/§9) carrying dialogueID and
// from's own key as origin — the scheduler cannot inspect an arbitrary
// payload for these fields, so the caller (local proxy / connection
// handler) supplies them from the envelope it already built.
func (s *Scheduler) SendTo(from, to string, dialogueID uint32, payload []byte) {
	s.mu.RLock()
	_, exists := s.sessions[to]
	s.mu.RUnlock()

	if !exists {
		errMsg := wire.ServerMessage{
			DialogueError: &wire.DialogueError{DialogueID: dialogueID, Origin: from},
		}
		encoded, err := wire.Marshal(errMsg)
		if err != nil {
			s.logger.Error("broker: failed to encode DialogueError", "error", err)
			return
		}
		s.enqueue(from, encoded)
		return
	}
	s.enqueue(to, payload)
}

func (s *Scheduler) enqueue(dest string, payload []byte) {
	select {
	case s.queue <- queuedFrame{dest: dest, payload: payload}:
	default:
		s.logger.Warn("broker: dispatch queue full, dropping frame", "dest", dest)
		if s.metrics != nil {
			s.metrics.MessagesDropped.WithLabelValues("queue_full").Inc()
		}
	}
}

// worker is the scheduler's single dedicated dispatch thread (spec.md
// §4.5 / §5): it drains queue and hands each frame to its destination's
// bound handle. A panic inside a handle's Deliver must not stop the
// loop, matching "Exceptions in a callback must not stop the loop."
func (s *Scheduler) worker() {
	defer close(s.done)

	for f := range s.queue {
		if f.dest == "" && f.payload == nil {
			return // shutdown sentinel
		}
		s.dispatch(f)
	}
}

func (s *Scheduler) dispatch(f queuedFrame) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("broker: recovered panic in dispatch callback", "panic", r)
		}
	}()

	s.mu.RLock()
	session, exists := s.sessions[f.dest]
	s.mu.RUnlock()

	if !exists {
		if s.metrics != nil {
			s.metrics.MessagesDropped.WithLabelValues("no_such_session").Inc()
		}
		return
	}

	handle := session.boundHandle()
	if handle == nil {
		if s.metrics != nil {
			s.metrics.MessagesDropped.WithLabelValues("unbound").Inc()
		}
		return
	}

	handle.Deliver(f.payload)
	if s.metrics != nil {
		s.metrics.MessagesRouted.Inc()
	}
}

// Stop is the only cancellation primitive (spec.md §5): it pushes the
// shutdown sentinel and blocks until the worker has drained and exited.
// Idempotent — calling Stop more than once is safe. Per spec.md §9, the
// source's destructor joins the worker without ever setting a stopping
// flag or pushing the sentinel, which would deadlock; here Stop is
// mandatory and is the only way the worker goroutine ever exits.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.queue <- queuedFrame{dest: "", payload: nil}
		<-s.done
	})
}

// SessionCount reports the number of currently connected sessions.
func (s *Scheduler) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
