package dialogue

import "testing"

func TestCreateStartsAtZeroMsgID(t *testing.T) {
	registry := New[any]()
	dlg := registry.Create("peer")
	if dlg.MsgID() != 0 {
		t.Fatalf("MsgID = %d, want 0", dlg.MsgID())
	}
	if dlg.Dest != "peer" {
		t.Fatalf("Dest = %q, want peer", dlg.Dest)
	}
}

func TestCreateUUIDsAreUnique(t *testing.T) {
	registry := New[any]()
	seen := make(map[uint32]bool)
	for i := 0; i < 100; i++ {
		dlg := registry.Create("peer")
		if seen[dlg.UUID] {
			t.Fatalf("duplicate uuid %d", dlg.UUID)
		}
		seen[dlg.UUID] = true
	}
}

func TestGetUnknownDialogue(t *testing.T) {
	registry := New[any]()
	if _, err := registry.Get(999); err != ErrUnknownDialogue {
		t.Fatalf("Get on unknown uuid = %v, want ErrUnknownDialogue", err)
	}
}

func TestGetOrCreateReusesExisting(t *testing.T) {
	registry := New[any]()
	first := registry.GetOrCreate(42, "peer")
	first.NextMsgID()
	second := registry.GetOrCreate(42, "peer")
	if second.MsgID() != 1 {
		t.Fatalf("GetOrCreate did not return the same dialogue: MsgID = %d", second.MsgID())
	}
}

func TestSetFinishedRemovesFromRegistry(t *testing.T) {
	registry := New[any]()
	dlg := registry.Create("peer")
	dlg.SetFinished()
	if _, err := registry.Get(dlg.UUID); err != ErrUnknownDialogue {
		t.Fatalf("Get after SetFinished = %v, want ErrUnknownDialogue", err)
	}
}

func TestNextMsgIDMonotonic(t *testing.T) {
	registry := New[any]()
	dlg := registry.Create("peer")
	for i := uint32(0); i < 5; i++ {
		if got := dlg.NextMsgID(); got != i {
			t.Fatalf("NextMsgID() = %d, want %d", got, i)
		}
	}
}
