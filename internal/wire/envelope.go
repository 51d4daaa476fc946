package wire

import "github.com/ocx/oefbroker/internal/query"

// Handshake messages (spec.md §6.1). These are framed and sent
// independently of the ClientMessage/ServerMessage envelopes below —
// they only ever appear during the four-step handshake, before a
// session exists.

// AgentServerID is the first handshake message: the agent announces its
// public key.
type AgentServerID struct {
	PublicKey string `cbor:"public_key"`
}

// ServerPhrase is the broker's challenge. Failure is set when the broker
// refuses the connection outright (e.g. duplicate key) before the
// challenge/response even completes.
type ServerPhrase struct {
	Phrase  string `cbor:"phrase"`
	Failure bool   `cbor:"failure"`
}

// AgentServerAnswer carries the agent's response to the challenge: the
// byte-reversal of the phrase (spec.md's deliberate placeholder "crypto").
type AgentServerAnswer struct {
	Answer string `cbor:"answer"`
}

// ServerConnected is the terminal handshake message.
type ServerConnected struct {
	Status bool `cbor:"status"`
}

// ReverseString implements the handshake's placeholder challenge
// response: byte-reversal of the phrase. Deliberately not real crypto —
// spec.md §1 Non-goals and §9 flag this as a stand-in.
func ReverseString(s string) string {
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}

// CFPType is the tagged union of what a Call-For-Proposal may carry
// (spec.md §3): nothing, an opaque byte string, or a structured query.
type CFPType struct {
	Bytes *string           `cbor:"bytes,omitempty"`
	Query *query.QueryModel `cbor:"query,omitempty"`
}

// IsNone reports whether this CFPType carries no payload at all.
func (c CFPType) IsNone() bool {
	return c.Bytes == nil && c.Query == nil
}

// ProposeType is the tagged union a Propose message carries: either an
// opaque byte string or a list of service Instances.
type ProposeType struct {
	Bytes     *string           `cbor:"bytes,omitempty"`
	Instances []query.Instance `cbor:"instances,omitempty"`
}

// Cfp is the Call-For-Proposal FIPA sub-message.
type Cfp struct {
	Target  uint32  `cbor:"target"`
	Content CFPType `cbor:"content"`
}

// Propose is the Propose FIPA sub-message.
type Propose struct {
	Target  uint32      `cbor:"target"`
	Content ProposeType `cbor:"content"`
}

// Accept is the Accept FIPA sub-message.
type Accept struct {
	Target uint32 `cbor:"target"`
}

// Decline is the Decline FIPA sub-message.
type Decline struct {
	Target uint32 `cbor:"target"`
}

// Fipa is the tagged union of the four negotiation sub-messages.
type Fipa struct {
	Cfp     *Cfp     `cbor:"cfp,omitempty"`
	Propose *Propose `cbor:"propose,omitempty"`
	Accept  *Accept  `cbor:"accept,omitempty"`
	Decline *Decline `cbor:"decline,omitempty"`
}

// RegisterDescription is a Client→Server variant: advertise the sending
// agent's own description.
type RegisterDescription struct {
	Instance query.Instance `cbor:"instance"`
}

// UnregisterDescription clears the sending agent's own description.
type UnregisterDescription struct{}

// RegisterService advertises a service Instance under the sending agent.
type RegisterService struct {
	Instance query.Instance `cbor:"instance"`
}

// UnregisterService withdraws a previously-registered service Instance.
type UnregisterService struct {
	Instance query.Instance `cbor:"instance"`
}

// SearchAgents requests the set of agent keys whose own description
// matches Model.
type SearchAgents struct {
	Model query.QueryModel `cbor:"model"`
}

// SearchServices requests the set of agent keys with a matching
// registered service.
type SearchServices struct {
	Model query.QueryModel `cbor:"model"`
}

// SendMessage carries either a plain message body or a FIPA sub-message,
// addressed to Dest within DialogueID.
type SendMessage struct {
	DialogueID uint32  `cbor:"dialogue_id"`
	Dest       string  `cbor:"dest"`
	Content    *string `cbor:"content,omitempty"`
	Fipa       *Fipa   `cbor:"fipa,omitempty"`
}

// ClientMessage is the Client→Server envelope: exactly one of the
// pointer fields is populated. AnswerID is the sender's own msg-id, used
// by the peer to correlate any error response (spec.md §3).
type ClientMessage struct {
	AnswerID uint32 `cbor:"answer_id"`

	RegisterDescription   *RegisterDescription   `cbor:"register_description,omitempty"`
	UnregisterDescription *UnregisterDescription `cbor:"unregister_description,omitempty"`
	RegisterService       *RegisterService       `cbor:"register_service,omitempty"`
	UnregisterService     *UnregisterService     `cbor:"unregister_service,omitempty"`
	SearchAgents          *SearchAgents          `cbor:"search_agents,omitempty"`
	SearchServices        *SearchServices        `cbor:"search_services,omitempty"`
	SendMessage           *SendMessage           `cbor:"send_message,omitempty"`
}

// OEFError is a Server→Agent variant reporting a broker-side error for
// the operation identified by Op (an application-defined operation tag,
// e.g. the client message's AnswerID).
type OEFError struct {
	Op uint32 `cbor:"op"`
}

// DialogueError reports that a message within DialogueID addressed to
// Origin could not be delivered (spec.md's UnknownPeer promotion, §9).
type DialogueError struct {
	DialogueID uint32 `cbor:"dialogue_id"`
	Origin     string `cbor:"origin"`
}

// Agents is the answer to a search request: the matching agent keys.
type Agents struct {
	Keys []string `cbor:"keys"`
}

// Content is the Server→Agent payload delivered within a dialogue: either
// a plain message body or a FIPA sub-message.
type Content struct {
	Content *string `cbor:"content,omitempty"`
	Fipa    *Fipa   `cbor:"fipa,omitempty"`
}

// ServerMessage is the Server→Agent envelope: exactly one of the pointer
// fields is populated.
type ServerMessage struct {
	AnswerID uint32 `cbor:"answer_id"`

	OEFError      *OEFError      `cbor:"oef_error,omitempty"`
	DialogueError *DialogueError `cbor:"dialogue_error,omitempty"`
	Agents        *Agents        `cbor:"agents,omitempty"`

	// DialogueID/Origin apply only when Content is set.
	DialogueID uint32   `cbor:"dialogue_id,omitempty"`
	Origin     string   `cbor:"origin,omitempty"`
	Content    *Content `cbor:"content,omitempty"`
}
