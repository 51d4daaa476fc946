package broker

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ocx/oefbroker/internal/decoder"
	"github.com/ocx/oefbroker/internal/query"
	"github.com/ocx/oefbroker/internal/wire"
)

// recordingHandle collects every payload Delivered to it and decodes it
// into a recordingCallbacks, mirroring how proxy.LocalProxy wires
// AgentHandle.Deliver to decoder.Decode.
type recordingHandle struct {
	mu        sync.Mutex
	callbacks *recordingCallbacks
}

func newRecordingHandle() *recordingHandle {
	return &recordingHandle{callbacks: &recordingCallbacks{}}
}

func (h *recordingHandle) Deliver(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	_ = decoder.Decode(payload, h.callbacks, slog.Default())
}

func (h *recordingHandle) snapshot() recordingCallbacks {
	h.mu.Lock()
	defer h.mu.Unlock()
	return *h.callbacks
}

type recordingCallbacks struct {
	messages       []messageRecord
	dialogueErrors []dialogueErrorRecord
	searchResults  [][]string
	cfps           []cfpRecord
}

type messageRecord struct {
	dialogueID uint32
	origin     string
	body       string
}

type dialogueErrorRecord struct {
	dialogueID uint32
	origin     string
}

type cfpRecord struct {
	dialogueID uint32
	origin     string
	target     uint32
}

func (r *recordingCallbacks) OnOEFError(uint32, uint32) {}
func (r *recordingCallbacks) OnDialogueError(_ uint32, dialogueID uint32, origin string) {
	r.dialogueErrors = append(r.dialogueErrors, dialogueErrorRecord{dialogueID, origin})
}
func (r *recordingCallbacks) OnSearchResult(_ uint32, agents []string) {
	r.searchResults = append(r.searchResults, agents)
}
func (r *recordingCallbacks) OnMessage(_, dialogueID uint32, origin string, body string) {
	r.messages = append(r.messages, messageRecord{dialogueID, origin, body})
}
func (r *recordingCallbacks) OnCFP(_, dialogueID uint32, origin string, target uint32, _ wire.CFPType) {
	r.cfps = append(r.cfps, cfpRecord{dialogueID, origin, target})
}
func (r *recordingCallbacks) OnPropose(uint32, uint32, string, uint32, wire.ProposeType) {}
func (r *recordingCallbacks) OnAccept(uint32, uint32, string, uint32)                    {}
func (r *recordingCallbacks) OnDecline(uint32, uint32, string, uint32)                   {}

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s := New(64, nil, slog.Default())
	t.Cleanup(s.Stop)
	return s
}

func connectAndBind(t *testing.T, s *Scheduler, key string) *recordingHandle {
	t.Helper()
	ok, err := s.Connect(key)
	if err != nil || !ok {
		t.Fatalf("Connect(%q) = %v, %v", key, ok, err)
	}
	handle := newRecordingHandle()
	if err := s.Bind(key, handle); err != nil {
		t.Fatalf("Bind(%q): %v", key, err)
	}
	return handle
}

func sendBody(t *testing.T, s *Scheduler, from, to string, dialogueID uint32, body string) {
	t.Helper()
	encoded, err := EncodeContentEnvelope(0, dialogueID, from, &body, nil)
	if err != nil {
		t.Fatalf("EncodeContentEnvelope: %v", err)
	}
	s.SendTo(from, to, dialogueID, encoded)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	if !cond() {
		t.Fatal("condition not met within timeout")
	}
}

// S1 — three-way chat.
func TestThreeWayChat(t *testing.T) {
	s := newTestScheduler(t)
	agent2 := connectAndBind(t, s, "Agent2")
	agent3 := connectAndBind(t, s, "Agent3")
	connectAndBind(t, s, "Agent1")

	sendBody(t, s, "Agent1", "Agent2", 1, "Hello world")
	sendBody(t, s, "Agent1", "Agent3", 1, "Hello world")

	waitFor(t, time.Second, func() bool { return len(agent2.snapshot().messages) == 1 })
	waitFor(t, time.Second, func() bool { return len(agent3.snapshot().messages) == 1 })

	got2 := agent2.snapshot().messages[0]
	if got2.origin != "Agent1" || got2.body != "Hello world" {
		t.Fatalf("Agent2 got %+v", got2)
	}
	got3 := agent3.snapshot().messages[0]
	if got3.origin != "Agent1" || got3.body != "Hello world" {
		t.Fatalf("Agent3 got %+v", got3)
	}
}

// S3 — unknown peer.
func TestSendToUnknownPeerEmitsDialogueError(t *testing.T) {
	s := newTestScheduler(t)
	agent1 := connectAndBind(t, s, "Agent1")

	sendBody(t, s, "Agent1", "Ghost", 9, "hi")

	waitFor(t, time.Second, func() bool { return len(agent1.snapshot().dialogueErrors) == 1 })
	got := agent1.snapshot().dialogueErrors[0]
	if got.dialogueID != 9 || got.origin != "Agent1" {
		t.Fatalf("got %+v, want dialogueID=9 origin=Agent1", got)
	}
	if _, exists := s.sessionExists("Ghost"); exists {
		t.Fatal("Ghost should not have a session")
	}
}

// S4 — duplicate connect.
func TestDuplicateConnectExactlyOneSucceeds(t *testing.T) {
	s := newTestScheduler(t)
	results := make(chan bool, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _ := s.Connect("A")
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	successes := 0
	for ok := range results {
		if ok {
			successes++
		}
	}
	if successes != 1 {
		t.Fatalf("successes = %d, want 1", successes)
	}
}

// S6 — search.
func TestSearchServicesReturnsMatchingSet(t *testing.T) {
	s := newTestScheduler(t)
	model := query.DataModel{Name: "book", Attributes: []query.Attribute{{Name: "genre", Type: query.TypeString, Required: true}}}
	i1 := query.Instance{Model: model, Values: map[string]any{"genre": "scifi"}}
	i2 := query.Instance{Model: model, Values: map[string]any{"genre": "romance"}}

	s.RegisterService("agent0", i1)
	s.RegisterService("agent1", i2)
	s.RegisterService("agent2", i1)

	q := query.QueryModel{Constraints: []query.Constraint{{AttributeName: "genre", Expr: query.Relation{Op: query.OpEq, Value: "scifi"}}}}
	got := s.SearchServices(q)

	want := map[string]bool{"agent0": true, "agent2": true}
	if len(got) != len(want) {
		t.Fatalf("got %v, want keys %v", got, want)
	}
	for _, k := range got {
		if !want[k] {
			t.Fatalf("unexpected key %q in %v", k, got)
		}
	}
}

func TestUnregisterServiceRemovesKey(t *testing.T) {
	s := newTestScheduler(t)
	model := query.DataModel{Name: "book"}
	instance := query.Instance{Model: model, Values: map[string]any{}}

	s.RegisterService("agent0", instance)
	s.UnregisterService("agent0", instance)

	got := s.SearchServices(query.QueryModel{})
	if len(got) != 0 {
		t.Fatalf("got %v, want empty", got)
	}
}

func TestStopTerminatesWorker(t *testing.T) {
	s := New(8, nil, slog.Default())
	s.Stop()
	s.Stop() // idempotent
}
