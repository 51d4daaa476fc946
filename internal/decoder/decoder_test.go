package decoder

import (
	"testing"

	"github.com/ocx/oefbroker/internal/wire"
)

type recordingCallbacks struct {
	messages []string
	cfps     []wire.CFPType
}

func (r *recordingCallbacks) OnOEFError(uint32, uint32)                    {}
func (r *recordingCallbacks) OnDialogueError(uint32, uint32, string)       {}
func (r *recordingCallbacks) OnSearchResult(uint32, []string)              {}
func (r *recordingCallbacks) OnMessage(_, _ uint32, _ string, body string) { r.messages = append(r.messages, body) }
func (r *recordingCallbacks) OnCFP(_, _ uint32, _ string, _ uint32, c wire.CFPType) {
	r.cfps = append(r.cfps, c)
}
func (r *recordingCallbacks) OnPropose(uint32, uint32, string, uint32, wire.ProposeType) {}
func (r *recordingCallbacks) OnAccept(uint32, uint32, string, uint32)                    {}
func (r *recordingCallbacks) OnDecline(uint32, uint32, string, uint32)                   {}

func TestDecodeDispatchesOnMessage(t *testing.T) {
	body := "Hello world"
	msg := wire.ServerMessage{
		AnswerID:   1,
		DialogueID: 1,
		Origin:     "Agent1",
		Content:    &wire.Content{Content: &body},
	}
	payload, err := wire.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	callbacks := &recordingCallbacks{}
	if err := Decode(payload, callbacks, nil); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(callbacks.messages) != 1 || callbacks.messages[0] != body {
		t.Fatalf("messages = %v, want [%q]", callbacks.messages, body)
	}
}

func TestDecodeDispatchesOnCFP(t *testing.T) {
	msg := wire.ServerMessage{
		AnswerID:   1,
		DialogueID: 4,
		Origin:     "Agent1",
		Content: &wire.Content{
			Fipa: &wire.Fipa{Cfp: &wire.Cfp{Target: 0, Content: wire.CFPType{}}},
		},
	}
	payload, err := wire.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	callbacks := &recordingCallbacks{}
	if err := Decode(payload, callbacks, nil); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(callbacks.cfps) != 1 || !callbacks.cfps[0].IsNone() {
		t.Fatalf("cfps = %v, want one None CFPType", callbacks.cfps)
	}
}

func TestDecodeUndecodablePayloadDoesNotPanic(t *testing.T) {
	callbacks := &recordingCallbacks{}
	if err := Decode([]byte{0xff, 0xff}, callbacks, nil); err == nil {
		t.Fatal("expected an error for garbage payload")
	}
}
