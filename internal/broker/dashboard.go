package broker

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Dashboard is an optional operator-facing live metrics feed, pushed
// over WebSocket. It is a companion to the TCP agent transport, never a
// replacement for it: spec.md §6.1 pins the agent wire protocol to raw
// TCP. Grounded on the teacher's internal/fabric.WebSocketSpoke — the
// same writePump/readPump split (one goroutine owns all writes to a
// connection, one owns all reads) — adapted here to a broadcast-only
// feed with no inbound agent traffic to read.
type Dashboard struct {
	scheduler *Scheduler
	upgrader  websocket.Upgrader
	logger    *slog.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte
}

// NewDashboard constructs a Dashboard bound to scheduler. Register its
// Handler on an http.ServeMux to serve it.
func NewDashboard(scheduler *Scheduler, logger *slog.Logger) *Dashboard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dashboard{
		scheduler: scheduler,
		upgrader:  websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		logger:    logger,
		clients:   make(map[*websocket.Conn]chan []byte),
	}
}

// snapshot is what each dashboard client periodically receives.
type snapshot struct {
	SessionsConnected int       `json:"sessions_connected"`
	Timestamp         time.Time `json:"timestamp"`
}

// Handler upgrades the request to a WebSocket and streams periodic
// snapshots until the client disconnects.
func (d *Dashboard) Handler(w http.ResponseWriter, r *http.Request) {
	conn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		d.logger.Warn("dashboard: upgrade failed", "error", err)
		return
	}

	send := make(chan []byte, 16)
	d.mu.Lock()
	d.clients[conn] = send
	d.mu.Unlock()

	go d.writePump(conn, send)
	d.readPump(conn, send)
}

// writePump owns all writes to conn — the teacher's split responsible
// for eliminating concurrent-write races on one *websocket.Conn.
func (d *Dashboard) writePump(conn *websocket.Conn, send chan []byte) {
	defer conn.Close()
	for payload := range send {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

// readPump owns all reads from conn. Dashboard clients never send
// anything meaningful; this loop exists only to detect disconnect via a
// read error, mirroring the teacher's ping/pong liveness pattern in
// spirit without needing bidirectional payload traffic.
func (d *Dashboard) readPump(conn *websocket.Conn, send chan []byte) {
	defer func() {
		d.mu.Lock()
		delete(d.clients, conn)
		d.mu.Unlock()
		close(send)
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Broadcast periodically pushes a snapshot to every connected client
// until stop is closed. Run it in its own goroutine.
func (d *Dashboard) Broadcast(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			payload, err := json.Marshal(snapshot{
				SessionsConnected: d.scheduler.SessionCount(),
				Timestamp:         time.Now(),
			})
			if err != nil {
				continue
			}
			d.mu.Lock()
			for _, send := range d.clients {
				select {
				case send <- payload:
				default:
				}
			}
			d.mu.Unlock()
		}
	}
}
