package broker

import (
	"log/slog"

	"github.com/ocx/oefbroker/internal/wire"
)

// clientDispatcher turns a decoded wire.ClientMessage into Scheduler
// calls for one bound session. It is the server-side counterpart of
// internal/decoder.Decode: where decoder.Decode fans a ServerMessage out
// to an agent's typed callbacks, clientDispatcher fans a ClientMessage
// in to the scheduler's operations (spec.md §4.5's operation list).
type clientDispatcher struct {
	key       string
	scheduler *Scheduler
	logger    *slog.Logger
}

func (d *clientDispatcher) handle(payload []byte) {
	var msg wire.ClientMessage
	if err := wire.Unmarshal(payload, &msg); err != nil {
		d.logger.Warn("broker: dropping undecodable client frame", "error", err)
		return
	}

	switch {
	case msg.RegisterDescription != nil:
		if err := d.scheduler.RegisterDescription(d.key, msg.RegisterDescription.Instance); err != nil {
			d.logger.Warn("broker: register_description failed", "error", err)
		}
	case msg.UnregisterDescription != nil:
		if err := d.scheduler.UnregisterDescription(d.key); err != nil {
			d.logger.Warn("broker: unregister_description failed", "error", err)
		}
	case msg.RegisterService != nil:
		if err := d.scheduler.RegisterService(d.key, msg.RegisterService.Instance); err != nil {
			d.logger.Warn("broker: register_service failed", "error", err)
		}
	case msg.UnregisterService != nil:
		d.scheduler.UnregisterService(d.key, msg.UnregisterService.Instance)
	case msg.SearchAgents != nil:
		d.replyAgents(msg.AnswerID, d.scheduler.SearchAgents(msg.SearchAgents.Model))
	case msg.SearchServices != nil:
		d.replyAgents(msg.AnswerID, d.scheduler.SearchServices(msg.SearchServices.Model))
	case msg.SendMessage != nil:
		d.forward(msg.AnswerID, msg.SendMessage)
	}
}

func (d *clientDispatcher) replyAgents(answerID uint32, keys []string) {
	encoded, err := EncodeAgentsReply(answerID, keys)
	if err != nil {
		d.logger.Error("broker: failed to encode search reply", "error", err)
		return
	}
	d.scheduler.Send(d.key, encoded)
}

func (d *clientDispatcher) forward(answerID uint32, send *wire.SendMessage) {
	encoded, err := EncodeContentEnvelope(answerID, send.DialogueID, d.key, send.Content, send.Fipa)
	if err != nil {
		d.logger.Error("broker: failed to encode forwarded message", "error", err)
		return
	}
	d.scheduler.SendTo(d.key, send.Dest, send.DialogueID, encoded)
}
