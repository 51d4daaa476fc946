// Package decoder implements the message decoder (spec.md C4, §4.4): a
// pure function of (payload bytes, target agent) that parses a wire
// envelope and invokes the correct typed callback. Grounded on
// original_source/lib/include/agent.hpp's MessageDecoder::decode/dispatch,
// which performs the same eight-way switch over the deserialised
// protobuf oneof; here the switch is over wire.ServerMessage's populated
// pointer field instead of a oneof case tag.
package decoder

import (
	"log/slog"

	"github.com/ocx/oefbroker/internal/wire"
)

// Callbacks is the capability set spec.md §9 calls a "trait/interface or
// tagged variant of handlers" — an interface here, per that design note's
// wiring-simplicity remark for the demo agents notwithstanding; production
// agents benefit more from compile-time-checked method sets.
type Callbacks interface {
	OnOEFError(answerID uint32, op uint32)
	OnDialogueError(answerID, dialogueID uint32, origin string)
	OnSearchResult(answerID uint32, agents []string)
	OnMessage(answerID, dialogueID uint32, origin string, body string)
	OnCFP(answerID, dialogueID uint32, origin string, target uint32, constraints wire.CFPType)
	OnPropose(answerID, dialogueID uint32, origin string, target uint32, proposals wire.ProposeType)
	OnAccept(answerID, dialogueID uint32, origin string, target uint32)
	OnDecline(answerID, dialogueID uint32, origin string, target uint32)
}

// Decode parses payload as a wire.ServerMessage and dispatches it to the
// matching method on callbacks. Undecodable payloads are logged and
// dropped — per spec.md §4.4 they never tear down the session — and
// Decode returns the decoding error in that case, without invoking any
// callback; only a caller wanting to observe the drop needs it.
func Decode(payload []byte, callbacks Callbacks, logger *slog.Logger) error {
	var msg wire.ServerMessage
	if err := wire.Unmarshal(payload, &msg); err != nil {
		if logger != nil {
			logger.Warn("decoder: dropping undecodable frame", "error", err)
		}
		return err
	}
	dispatch(msg, callbacks)
	return nil
}

func dispatch(msg wire.ServerMessage, callbacks Callbacks) {
	switch {
	case msg.OEFError != nil:
		callbacks.OnOEFError(msg.AnswerID, msg.OEFError.Op)
	case msg.DialogueError != nil:
		callbacks.OnDialogueError(msg.AnswerID, msg.DialogueError.DialogueID, msg.DialogueError.Origin)
	case msg.Agents != nil:
		callbacks.OnSearchResult(msg.AnswerID, msg.Agents.Keys)
	case msg.Content != nil:
		dispatchContent(msg, callbacks)
	}
}

func dispatchContent(msg wire.ServerMessage, callbacks Callbacks) {
	content := msg.Content
	switch {
	case content.Content != nil:
		callbacks.OnMessage(msg.AnswerID, msg.DialogueID, msg.Origin, *content.Content)
	case content.Fipa != nil:
		dispatchFipa(msg.AnswerID, msg.DialogueID, msg.Origin, *content.Fipa, callbacks)
	}
}

func dispatchFipa(answerID, dialogueID uint32, origin string, fipa wire.Fipa, callbacks Callbacks) {
	switch {
	case fipa.Cfp != nil:
		callbacks.OnCFP(answerID, dialogueID, origin, fipa.Cfp.Target, fipa.Cfp.Content)
	case fipa.Propose != nil:
		callbacks.OnPropose(answerID, dialogueID, origin, fipa.Propose.Target, fipa.Propose.Content)
	case fipa.Accept != nil:
		callbacks.OnAccept(answerID, dialogueID, origin, fipa.Accept.Target)
	case fipa.Decline != nil:
		callbacks.OnDecline(answerID, dialogueID, origin, fipa.Decline.Target)
	}
}

// NoneCFP is the None case of CFPType, useful for building outbound
// envelopes and for tests that assert against it.
func NoneCFP() wire.CFPType { return wire.CFPType{} }
