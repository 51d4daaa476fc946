// Package agent implements the Agent base (spec.md C8, §4.8): lifecycle
// management around a Proxy, binding it to a user-supplied callback
// receiver. Grounded on original_source/lib/include/agent.hpp's
// AgentInterface/Agent pairing — a pure-virtual callback interface plus a
// concrete Agent that owns a proxy and forwards every outbound operation
// to it — and on apps/clientsherd/src/main.cpp's SimpleAgent for how a
// concrete user agent typically only overrides a handful of the eight
// callbacks.
package agent

import (
	"github.com/ocx/oefbroker/internal/decoder"
	"github.com/ocx/oefbroker/internal/proxy"
	"github.com/ocx/oefbroker/internal/query"
	"github.com/ocx/oefbroker/internal/wire"
)

// Agent binds a Proxy (C6 or C7) to a decoder.Callbacks implementation
// and manages the connect/handshake/bind/stop lifecycle spec.md §4.8
// assigns to it.
type Agent struct {
	key       string
	transport proxy.Proxy
	callbacks decoder.Callbacks
}

// New wraps an already-constructed Proxy (typically proxy.NewLocalProxy
// or the result of proxy.Dial, which has already completed the
// handshake) with the given callback receiver.
func New(key string, transport proxy.Proxy, callbacks decoder.Callbacks) *Agent {
	return &Agent{key: key, transport: transport, callbacks: callbacks}
}

// Key returns the agent's public key.
func (a *Agent) Key() string { return a.key }

// SetCallbacks rebinds the callback receiver before Start. Needed when
// the receiver itself holds a reference back to this Agent (as
// Negotiator does, to send CFP/Propose/Accept/Decline replies), since
// that reference can only be built once the Agent already exists.
func (a *Agent) SetCallbacks(callbacks decoder.Callbacks) {
	a.callbacks = callbacks
}

// Start arms the receive loop by binding the proxy to this agent's
// callbacks. For NetworkProxy, the handshake has already run (spec.md
// separates "start() performs handshake" into the Dial step here, so
// Start only needs to bind — see cmd/oef-client-herd for the combined
// sequence a caller typically runs).
func (a *Agent) Start() error {
	return a.transport.Bind(a.callbacks)
}

// Stop implements spec.md §4.8: "stop() closes the proxy."
func (a *Agent) Stop() error {
	return a.transport.Stop()
}

// SendMessage delegates 1:1 to the proxy with a caller-supplied msg-id.
func (a *Agent) SendMessage(msgID, dialogueID uint32, dest, body string) error {
	return a.transport.SendMessage(msgID, dialogueID, dest, body)
}

// SendCFP delegates 1:1 to the proxy.
func (a *Agent) SendCFP(msgID, dialogueID uint32, dest string, target uint32, content wire.CFPType) error {
	return a.transport.SendCFP(msgID, dialogueID, dest, target, content)
}

// SendPropose delegates 1:1 to the proxy.
func (a *Agent) SendPropose(msgID, dialogueID uint32, dest string, target uint32, content wire.ProposeType) error {
	return a.transport.SendPropose(msgID, dialogueID, dest, target, content)
}

// SendAccept delegates 1:1 to the proxy.
func (a *Agent) SendAccept(msgID, dialogueID uint32, dest string, target uint32) error {
	return a.transport.SendAccept(msgID, dialogueID, dest, target)
}

// SendDecline delegates 1:1 to the proxy.
func (a *Agent) SendDecline(msgID, dialogueID uint32, dest string, target uint32) error {
	return a.transport.SendDecline(msgID, dialogueID, dest, target)
}

// RegisterDescription delegates 1:1 to the proxy.
func (a *Agent) RegisterDescription(msgID uint32, instance query.Instance) error {
	return a.transport.RegisterDescription(msgID, instance)
}

// UnregisterDescription delegates 1:1 to the proxy.
func (a *Agent) UnregisterDescription(msgID uint32) error {
	return a.transport.UnregisterDescription(msgID)
}

// RegisterService delegates 1:1 to the proxy.
func (a *Agent) RegisterService(msgID uint32, instance query.Instance) error {
	return a.transport.RegisterService(msgID, instance)
}

// UnregisterService delegates 1:1 to the proxy.
func (a *Agent) UnregisterService(msgID uint32, instance query.Instance) error {
	return a.transport.UnregisterService(msgID, instance)
}

// SearchAgents delegates 1:1 to the proxy.
func (a *Agent) SearchAgents(msgID uint32, model query.QueryModel) error {
	return a.transport.SearchAgents(msgID, model)
}

// SearchServices delegates 1:1 to the proxy.
func (a *Agent) SearchServices(msgID uint32, model query.QueryModel) error {
	return a.transport.SearchServices(msgID, model)
}
