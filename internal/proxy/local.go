package proxy

import (
	"log/slog"

	"github.com/ocx/oefbroker/internal/broker"
	"github.com/ocx/oefbroker/internal/decoder"
	"github.com/ocx/oefbroker/internal/query"
	"github.com/ocx/oefbroker/internal/wire"
)

// LocalProxy is C6: it adapts Agent operations to direct in-process
// Scheduler calls instead of framed I/O. Grounded on
// original_source/lib/include/agent.hpp's OEFCoreLocalPB, which performs
// the identical scheduler calls a network proxy makes over the wire, just
// without the wire in between.
//
// LocalProxy also implements broker.AgentHandle: outbound sends and
// search replies flow through the scheduler's dispatch queue exactly as
// they would for a networked peer (see broker.EncodeContentEnvelope /
// EncodeAgentsReply), so callbacks fire from the scheduler's single
// worker goroutine — spec.md's S5 scenario (local/network equivalence)
// depends on this symmetry.
type LocalProxy struct {
	key       string
	scheduler *broker.Scheduler
	callbacks decoder.Callbacks
	logger    *slog.Logger
}

// NewLocalProxy connects key to scheduler and returns a ready-to-Bind
// LocalProxy. Returns broker.ErrDuplicateSession if key is already
// connected.
func NewLocalProxy(scheduler *broker.Scheduler, key string, logger *slog.Logger) (*LocalProxy, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := scheduler.Connect(key); err != nil {
		return nil, err
	}
	return &LocalProxy{key: key, scheduler: scheduler, logger: logger}, nil
}

// Bind implements Proxy.
func (p *LocalProxy) Bind(callbacks decoder.Callbacks) error {
	p.callbacks = callbacks
	return p.scheduler.Bind(p.key, p)
}

// Deliver implements broker.AgentHandle: decode the frame and dispatch
// to this proxy's bound callbacks.
func (p *LocalProxy) Deliver(payload []byte) {
	if p.callbacks == nil {
		return
	}
	_ = decoder.Decode(payload, p.callbacks, p.logger)
}

// Stop implements Proxy.
func (p *LocalProxy) Stop() error {
	p.scheduler.Disconnect(p.key)
	return nil
}

// RegisterDescription implements Proxy.
func (p *LocalProxy) RegisterDescription(_ uint32, instance query.Instance) error {
	return p.scheduler.RegisterDescription(p.key, instance)
}

// UnregisterDescription implements Proxy.
func (p *LocalProxy) UnregisterDescription(_ uint32) error {
	return p.scheduler.UnregisterDescription(p.key)
}

// RegisterService implements Proxy.
func (p *LocalProxy) RegisterService(_ uint32, instance query.Instance) error {
	return p.scheduler.RegisterService(p.key, instance)
}

// UnregisterService implements Proxy.
func (p *LocalProxy) UnregisterService(_ uint32, instance query.Instance) error {
	p.scheduler.UnregisterService(p.key, instance)
	return nil
}

// SearchAgents implements Proxy.
func (p *LocalProxy) SearchAgents(msgID uint32, model query.QueryModel) error {
	keys := p.scheduler.SearchAgents(model)
	encoded, err := broker.EncodeAgentsReply(msgID, keys)
	if err != nil {
		return err
	}
	p.scheduler.Send(p.key, encoded)
	return nil
}

// SearchServices implements Proxy.
func (p *LocalProxy) SearchServices(msgID uint32, model query.QueryModel) error {
	keys := p.scheduler.SearchServices(model)
	encoded, err := broker.EncodeAgentsReply(msgID, keys)
	if err != nil {
		return err
	}
	p.scheduler.Send(p.key, encoded)
	return nil
}

// SendMessage implements Proxy.
func (p *LocalProxy) SendMessage(msgID, dialogueID uint32, dest string, body string) error {
	return p.send(msgID, dialogueID, dest, &body, nil)
}

// SendCFP implements Proxy.
func (p *LocalProxy) SendCFP(msgID, dialogueID uint32, dest string, target uint32, content wire.CFPType) error {
	return p.send(msgID, dialogueID, dest, nil, &wire.Fipa{Cfp: &wire.Cfp{Target: target, Content: content}})
}

// SendPropose implements Proxy.
func (p *LocalProxy) SendPropose(msgID, dialogueID uint32, dest string, target uint32, content wire.ProposeType) error {
	return p.send(msgID, dialogueID, dest, nil, &wire.Fipa{Propose: &wire.Propose{Target: target, Content: content}})
}

// SendAccept implements Proxy.
func (p *LocalProxy) SendAccept(msgID, dialogueID uint32, dest string, target uint32) error {
	return p.send(msgID, dialogueID, dest, nil, &wire.Fipa{Accept: &wire.Accept{Target: target}})
}

// SendDecline implements Proxy.
func (p *LocalProxy) SendDecline(msgID, dialogueID uint32, dest string, target uint32) error {
	return p.send(msgID, dialogueID, dest, nil, &wire.Fipa{Decline: &wire.Decline{Target: target}})
}

func (p *LocalProxy) send(msgID, dialogueID uint32, dest string, body *string, fipa *wire.Fipa) error {
	encoded, err := broker.EncodeContentEnvelope(msgID, dialogueID, p.key, body, fipa)
	if err != nil {
		return err
	}
	p.scheduler.SendTo(p.key, dest, dialogueID, encoded)
	return nil
}
