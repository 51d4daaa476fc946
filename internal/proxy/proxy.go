// Package proxy implements the two adapters spec.md's Agent base (C8)
// can be wired to: the in-process local proxy (C6, local.go) and the
// framed-TCP network proxy (C7, network.go + handshake.go). Both
// implement the same Proxy interface so internal/agent.Agent is
// transport-agnostic, which is what makes spec.md's S5 scenario (local
// and network transports producing identical outcomes) meaningful.
package proxy

import (
	"github.com/ocx/oefbroker/internal/decoder"
	"github.com/ocx/oefbroker/internal/query"
	"github.com/ocx/oefbroker/internal/wire"
)

// Proxy is the operation set spec.md §4.6/§4.7 assign to both C6 and C7.
// Every send_* method takes a caller-supplied msg-id (spec.md §4.8: the
// Agent base delegates outbound operations 1:1 to the proxy with a
// caller-supplied msg-id) used as the envelope's answer_id.
type Proxy interface {
	// Bind arms the receive path so inbound frames reach callbacks.
	Bind(callbacks decoder.Callbacks) error
	// Stop tears down the proxy: closes the socket (network) or unbinds
	// from the scheduler (local). Idempotent.
	Stop() error

	RegisterDescription(msgID uint32, instance query.Instance) error
	UnregisterDescription(msgID uint32) error
	RegisterService(msgID uint32, instance query.Instance) error
	UnregisterService(msgID uint32, instance query.Instance) error
	SearchAgents(msgID uint32, model query.QueryModel) error
	SearchServices(msgID uint32, model query.QueryModel) error

	SendMessage(msgID, dialogueID uint32, dest string, body string) error
	SendCFP(msgID, dialogueID uint32, dest string, target uint32, content wire.CFPType) error
	SendPropose(msgID, dialogueID uint32, dest string, target uint32, content wire.ProposeType) error
	SendAccept(msgID, dialogueID uint32, dest string, target uint32) error
	SendDecline(msgID, dialogueID uint32, dest string, target uint32) error
}
