package broker

import (
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/ocx/oefbroker/internal/ratelimit"
	"github.com/ocx/oefbroker/internal/wire"
)

// Server is the broker's TCP listener: it accepts agent connections,
// drives the server side of the four-step handshake, then translates
// each decoded wire.ClientMessage into Scheduler calls. Grounded on the
// teacher's internal/fabric.WebSocketSpoke — one goroutine owns all
// writes to a connection (writePump-equivalent, here a buffered
// per-connection send channel) and one owns all reads (readPump) — but
// driving raw length-prefixed TCP frames per spec.md §6.1 instead of a
// gorilla/websocket connection.
type Server struct {
	scheduler     *Scheduler
	maxFrameBytes uint32
	logger        *slog.Logger
	limiter       *ratelimit.Limiter
}

// NewServer constructs a Server bound to scheduler. limiter may be nil
// to disable per-session rate limiting.
func NewServer(scheduler *Scheduler, maxFrameBytes uint32, limiter *ratelimit.Limiter, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{scheduler: scheduler, maxFrameBytes: maxFrameBytes, limiter: limiter, logger: logger}
}

// Serve accepts connections on listener until it is closed.
func (s *Server) Serve(listener net.Listener) error {
	for {
		conn, err := listener.Accept()
		if err != nil {
			return err
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	key, ok := s.handshake(conn)
	if !ok {
		conn.Close()
		return
	}

	handle := newConnHandle(conn, s.logger.With("peer", key))
	defer handle.close()

	if err := s.scheduler.Bind(key, handle); err != nil {
		s.logger.Error("broker: bind after handshake failed", "peer", key, "error", err)
		return
	}

	dispatcher := &clientDispatcher{
		key:       key,
		scheduler: s.scheduler,
		logger:    s.logger.With("peer", key),
	}

	for {
		payload, err := wire.ReadFrame(conn, s.maxFrameBytes)
		if err != nil {
			s.logger.Info("broker: read loop ending", "peer", key, "error", err)
			s.scheduler.Disconnect(key)
			return
		}
		if s.limiter != nil && !s.limiter.Allow(key) {
			continue
		}
		dispatcher.handle(payload)
	}
}

// handshake drives the server side of spec.md §4.7/§6.1's four-step
// state machine. It returns the negotiated agent key and whether the
// handshake reached Connected, incrementing HandshakeFailures on every
// path that returns Failed.
func (s *Server) handshake(conn net.Conn) (string, bool) {
	key, ok := s.runHandshake(conn)
	if !ok && s.scheduler.metrics != nil {
		s.scheduler.metrics.HandshakeFailures.Inc()
	}
	return key, ok
}

func (s *Server) runHandshake(conn net.Conn) (string, bool) {
	var id wire.AgentServerID
	if err := readMessage(conn, s.maxFrameBytes, &id); err != nil {
		s.logger.Warn("broker: handshake failed reading Agent_Server_ID", "error", err)
		return "", false
	}
	if id.PublicKey == "" {
		return "", false
	}

	if _, connected := s.scheduler.sessionExists(id.PublicKey); connected {
		writeMessage(conn, wire.ServerPhrase{Failure: true})
		return "", false
	}

	phrase := randomPhrase()
	if err := writeMessage(conn, wire.ServerPhrase{Phrase: phrase, Failure: false}); err != nil {
		return "", false
	}

	var answer wire.AgentServerAnswer
	if err := readMessage(conn, s.maxFrameBytes, &answer); err != nil {
		s.logger.Warn("broker: handshake failed reading Agent_Server_Answer", "error", err)
		return "", false
	}

	if answer.Answer != wire.ReverseString(phrase) {
		writeMessage(conn, wire.ServerConnected{Status: false})
		return "", false
	}

	connected, err := s.scheduler.Connect(id.PublicKey)
	if err != nil || !connected {
		writeMessage(conn, wire.ServerConnected{Status: false})
		return "", false
	}

	if err := writeMessage(conn, wire.ServerConnected{Status: true}); err != nil {
		s.scheduler.Disconnect(id.PublicKey)
		return "", false
	}

	return id.PublicKey, true
}

func (s *Scheduler) sessionExists(key string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[key]
	return session, ok
}

// randomPhrase generates the server's half of the handshake challenge.
// Grounded on the teacher's internal/federation.HandshakeService, which
// mints session identifiers with uuid.New(); here the same generator
// mints the one-time phrase the client must reverse and echo back.
func randomPhrase() string {
	return uuid.New().String()
}

func readMessage(conn net.Conn, maxFrameBytes uint32, v any) error {
	payload, err := wire.ReadFrame(conn, maxFrameBytes)
	if err != nil {
		return err
	}
	return wire.Unmarshal(payload, v)
}

func writeMessage(conn net.Conn, v any) error {
	payload, err := wire.Marshal(v)
	if err != nil {
		return fmt.Errorf("broker: encoding handshake message: %w", err)
	}
	return wire.WriteFrame(conn, payload)
}

// connHandle is the AgentHandle for one TCP connection: Deliver hands a
// pre-encoded ServerMessage payload to a buffered write queue drained by
// a single goroutine, serialising writes per socket per spec.md §4.1.
type connHandle struct {
	conn   net.Conn
	send   chan []byte
	logger *slog.Logger

	closeOnce sync.Once
}

func newConnHandle(conn net.Conn, logger *slog.Logger) *connHandle {
	h := &connHandle{conn: conn, send: make(chan []byte, 256), logger: logger}
	go h.writeLoop()
	return h
}

// Deliver implements AgentHandle.
func (h *connHandle) Deliver(payload []byte) {
	select {
	case h.send <- payload:
	default:
		h.logger.Warn("broker: connection send queue full, dropping frame")
	}
}

func (h *connHandle) writeLoop() {
	for payload := range h.send {
		if err := wire.WriteFrame(h.conn, payload); err != nil {
			h.logger.Info("broker: write loop ending", "error", err)
			return
		}
	}
}

func (h *connHandle) close() {
	h.closeOnce.Do(func() {
		close(h.send)
		h.conn.Close()
	})
}
