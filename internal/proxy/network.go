package proxy

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/ocx/oefbroker/internal/decoder"
	"github.com/ocx/oefbroker/internal/query"
	"github.com/ocx/oefbroker/internal/wire"
)

// NetworkProxy is C7: it adapts Agent operations to a framed TCP
// connection with the broker, having already completed the four-step
// handshake (handshake.go). Grounded on
// original_source/lib/include/agent.hpp's OEFCoreNetworkProxy: dial,
// handshake, a per-socket outgoing write queue that serialises
// concurrent send_* calls (spec.md §4.1/§4.7), and a read loop that
// decodes one frame, dispatches it, and re-arms.
type NetworkProxy struct {
	key           string
	conn          net.Conn
	maxFrameBytes uint32
	logger        *slog.Logger

	send      chan []byte
	closeOnce sync.Once
	stopped   chan struct{}
}

// Dial connects to address, completes the handshake as publicKey, and
// returns a ready-to-Bind NetworkProxy. handshakeTimeout of 0 uses
// DefaultHandshakeTimeout.
func Dial(ctx context.Context, address, publicKey string, maxFrameBytes uint32, handshakeTimeout time.Duration, logger *slog.Logger) (*NetworkProxy, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}

	if err := Handshake(ctx, conn, publicKey, maxFrameBytes, handshakeTimeout); err != nil {
		conn.Close()
		return nil, err
	}

	p := &NetworkProxy{
		key:           publicKey,
		conn:          conn,
		maxFrameBytes: maxFrameBytes,
		logger:        logger.With("peer", publicKey),
		send:          make(chan []byte, 256),
		stopped:       make(chan struct{}),
	}
	go p.writeLoop()
	return p, nil
}

// Bind implements Proxy: it starts the read loop that decodes inbound
// frames into callbacks (spec.md §4.7's "read loop"). After Bind, the
// proxy reads one frame, feeds it to the decoder, and re-arms; read
// errors log and stop the loop.
func (p *NetworkProxy) Bind(callbacks decoder.Callbacks) error {
	go p.readLoop(callbacks)
	return nil
}

func (p *NetworkProxy) readLoop(callbacks decoder.Callbacks) {
	for {
		payload, err := wire.ReadFrame(p.conn, p.maxFrameBytes)
		if err != nil {
			p.logger.Info("proxy: read loop ending", "error", err)
			return
		}
		_ = decoder.Decode(payload, callbacks, p.logger)
	}
}

func (p *NetworkProxy) writeLoop() {
	for {
		select {
		case payload := <-p.send:
			if err := wire.WriteFrame(p.conn, payload); err != nil {
				p.logger.Info("proxy: write loop ending", "error", err)
				return
			}
		case <-p.stopped:
			return
		}
	}
}

// Stop implements Proxy: signals shutdown and closes the socket, which
// unblocks both loops. p.send is never closed — enqueue and writeLoop
// both select on p.stopped instead, so a send_* call racing Stop from
// another goroutine (spec.md §4.7 permits this) observes shutdown
// through the closed stopped channel rather than panicking on a send to
// a closed channel.
func (p *NetworkProxy) Stop() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.stopped)
		err = p.conn.Close()
	})
	return err
}

func (p *NetworkProxy) enqueue(payload []byte) error {
	select {
	case p.send <- payload:
		return nil
	case <-p.stopped:
		return net.ErrClosed
	}
}

func (p *NetworkProxy) writeEnvelope(msg wire.ClientMessage) error {
	payload, err := wire.Marshal(msg)
	if err != nil {
		return err
	}
	return p.enqueue(payload)
}

// RegisterDescription implements Proxy.
func (p *NetworkProxy) RegisterDescription(msgID uint32, instance query.Instance) error {
	return p.writeEnvelope(wire.ClientMessage{AnswerID: msgID, RegisterDescription: &wire.RegisterDescription{Instance: instance}})
}

// UnregisterDescription implements Proxy.
func (p *NetworkProxy) UnregisterDescription(msgID uint32) error {
	return p.writeEnvelope(wire.ClientMessage{AnswerID: msgID, UnregisterDescription: &wire.UnregisterDescription{}})
}

// RegisterService implements Proxy.
func (p *NetworkProxy) RegisterService(msgID uint32, instance query.Instance) error {
	return p.writeEnvelope(wire.ClientMessage{AnswerID: msgID, RegisterService: &wire.RegisterService{Instance: instance}})
}

// UnregisterService implements Proxy.
func (p *NetworkProxy) UnregisterService(msgID uint32, instance query.Instance) error {
	return p.writeEnvelope(wire.ClientMessage{AnswerID: msgID, UnregisterService: &wire.UnregisterService{Instance: instance}})
}

// SearchAgents implements Proxy.
func (p *NetworkProxy) SearchAgents(msgID uint32, model query.QueryModel) error {
	return p.writeEnvelope(wire.ClientMessage{AnswerID: msgID, SearchAgents: &wire.SearchAgents{Model: model}})
}

// SearchServices implements Proxy.
func (p *NetworkProxy) SearchServices(msgID uint32, model query.QueryModel) error {
	return p.writeEnvelope(wire.ClientMessage{AnswerID: msgID, SearchServices: &wire.SearchServices{Model: model}})
}

// SendMessage implements Proxy.
func (p *NetworkProxy) SendMessage(msgID, dialogueID uint32, dest string, body string) error {
	return p.writeEnvelope(wire.ClientMessage{
		AnswerID:    msgID,
		SendMessage: &wire.SendMessage{DialogueID: dialogueID, Dest: dest, Content: &body},
	})
}

// SendCFP implements Proxy.
func (p *NetworkProxy) SendCFP(msgID, dialogueID uint32, dest string, target uint32, content wire.CFPType) error {
	return p.writeEnvelope(wire.ClientMessage{
		AnswerID: msgID,
		SendMessage: &wire.SendMessage{
			DialogueID: dialogueID,
			Dest:       dest,
			Fipa:       &wire.Fipa{Cfp: &wire.Cfp{Target: target, Content: content}},
		},
	})
}

// SendPropose implements Proxy.
func (p *NetworkProxy) SendPropose(msgID, dialogueID uint32, dest string, target uint32, content wire.ProposeType) error {
	return p.writeEnvelope(wire.ClientMessage{
		AnswerID: msgID,
		SendMessage: &wire.SendMessage{
			DialogueID: dialogueID,
			Dest:       dest,
			Fipa:       &wire.Fipa{Propose: &wire.Propose{Target: target, Content: content}},
		},
	})
}

// SendAccept implements Proxy.
func (p *NetworkProxy) SendAccept(msgID, dialogueID uint32, dest string, target uint32) error {
	return p.writeEnvelope(wire.ClientMessage{
		AnswerID: msgID,
		SendMessage: &wire.SendMessage{
			DialogueID: dialogueID,
			Dest:       dest,
			Fipa:       &wire.Fipa{Accept: &wire.Accept{Target: target}},
		},
	})
}

// SendDecline implements Proxy.
func (p *NetworkProxy) SendDecline(msgID, dialogueID uint32, dest string, target uint32) error {
	return p.writeEnvelope(wire.ClientMessage{
		AnswerID: msgID,
		SendMessage: &wire.SendMessage{
			DialogueID: dialogueID,
			Dest:       dest,
			Fipa:       &wire.Fipa{Decline: &wire.Decline{Target: target}},
		},
	})
}
