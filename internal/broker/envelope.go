package broker

import "github.com/ocx/oefbroker/internal/wire"

// EncodeAgentsReply builds and encodes the Server→Agent envelope carrying
// a search_agents/search_services answer. Exported so both the TCP
// dispatcher and the in-process local proxy build identical bytes for
// the same logical reply (spec.md S5 — local/network transport
// equivalence).
func EncodeAgentsReply(answerID uint32, keys []string) ([]byte, error) {
	return wire.Marshal(wire.ServerMessage{AnswerID: answerID, Agents: &wire.Agents{Keys: keys}})
}

// EncodeContentEnvelope builds and encodes the Server→Agent envelope
// carrying a plain message body or FIPA sub-message within a dialogue,
// as constructed on send by both C6 (local proxy) and the TCP
// dispatcher's forward path (spec.md §4.6). answerID carries the
// sender's own msg-id through to the delivered envelope, matching
// agent.hpp's Server_AgentMessage::set_answer_id(msgId) on delivery.
func EncodeContentEnvelope(answerID, dialogueID uint32, origin string, content *string, fipa *wire.Fipa) ([]byte, error) {
	return wire.Marshal(wire.ServerMessage{
		AnswerID:   answerID,
		DialogueID: dialogueID,
		Origin:     origin,
		Content:    &wire.Content{Content: content, Fipa: fipa},
	})
}
