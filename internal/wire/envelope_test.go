package wire

import (
	"reflect"
	"testing"

	"github.com/ocx/oefbroker/internal/query"
)

func TestClientMessageRoundTrip(t *testing.T) {
	content := "message body"
	original := ClientMessage{
		AnswerID: 42,
		SendMessage: &SendMessage{
			DialogueID: 7,
			Dest:       "Agent2",
			Content:    &content,
		},
	}

	encoded, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded ClientMessage
	if err := Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(original, decoded) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", decoded, original)
	}
}

func TestCFPWithQueryRoundTrip(t *testing.T) {
	model := query.QueryModel{
		Constraints: []query.Constraint{
			{AttributeName: "price", Expr: query.Range{Min: 1.0, Max: 10.0}},
		},
	}
	original := ClientMessage{
		AnswerID: 4,
		SendMessage: &SendMessage{
			DialogueID: 4,
			Dest:       "Agent2",
			Fipa: &Fipa{
				Cfp: &Cfp{
					Target:  0,
					Content: CFPType{Query: &model},
				},
			},
		},
	}

	encoded, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded ClientMessage
	if err := Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.SendMessage == nil || decoded.SendMessage.Fipa == nil || decoded.SendMessage.Fipa.Cfp == nil {
		t.Fatalf("decoded envelope missing Cfp: %+v", decoded)
	}
	got := decoded.SendMessage.Fipa.Cfp.Content
	if got.Query == nil || len(got.Query.Constraints) != 1 {
		t.Fatalf("query did not round-trip: %+v", got)
	}
	instance := query.Instance{Values: map[string]any{"price": 5.0}}
	if !got.Query.Check(instance) {
		t.Fatalf("decoded query rejected an instance that should match")
	}
}

func TestServerMessageDialogueErrorRoundTrip(t *testing.T) {
	original := ServerMessage{
		AnswerID:      9,
		DialogueError: &DialogueError{DialogueID: 9, Origin: "Agent1"},
	}
	encoded, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded ServerMessage
	if err := Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(original, decoded) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", decoded, original)
	}
}

func TestReverseString(t *testing.T) {
	if got := ReverseString("crypto"); got != "otpyrc" {
		t.Fatalf("ReverseString(crypto) = %q", got)
	}
}
