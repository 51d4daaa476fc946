// Package dialogue implements the per-agent Dialogue/Dialogues registry
// (spec.md C3, §4.3), grounded on original_source/lib/include/agent.hpp's
// Dialogue<T>/Dialogues<T> templates and on the teacher's
// internal/protocol.SessionManager (mutex-guarded map, uuid-keyed,
// Create/Get/Remove) for the concurrency idiom.
package dialogue

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"sync"
)

// ErrUnknownDialogue is returned by Get when no Dialogue is registered
// under the given uuid. spec.md §9 tightens the source's behaviour (a
// default-constructed handle that later asserts) to this explicit error.
var ErrUnknownDialogue = errors.New("dialogue: unknown dialogue")

// Dialogue is a numbered conversation with a peer. State is
// application-defined and opaque to the registry; the registry only
// manages identity and the msg-id counter.
type Dialogue[T any] struct {
	UUID  uint32
	Dest  string
	State T

	mu    sync.Mutex
	msgID uint32
	owner *Dialogues[T]
}

// NextMsgID returns the next message id for this dialogue and advances
// the counter. msg_id is monotonically non-decreasing per spec.md §3.
func (d *Dialogue[T]) NextMsgID() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.msgID
	d.msgID++
	return id
}

// MsgID returns the current counter value without advancing it.
func (d *Dialogue[T]) MsgID() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.msgID
}

// SetFinished atomically removes this Dialogue from its owning registry.
// The Dialogue holds only a back-reference to the registry (never an
// owning one, per spec.md §9) so it can self-erase without the registry
// needing to reach back into every live Dialogue.
func (d *Dialogue[T]) SetFinished() {
	d.owner.Erase(d.UUID)
}

// Dialogues is a per-agent table of open Dialogues, keyed by uuid.
// Concurrent access from multiple goroutines is safe.
type Dialogues[T any] struct {
	mu    sync.Mutex
	table map[uint32]*Dialogue[T]
}

// New returns an empty Dialogues registry.
func New[T any]() *Dialogues[T] {
	return &Dialogues[T]{table: make(map[uint32]*Dialogue[T])}
}

// Create generates a fresh Dialogue addressed to dest with a random
// 32-bit uuid, retrying on the astronomically unlikely event of a
// collision with an already-registered uuid.
func (d *Dialogues[T]) Create(dest string) *Dialogue[T] {
	d.mu.Lock()
	defer d.mu.Unlock()

	for {
		uuid := randomUUID()
		if _, exists := d.table[uuid]; exists {
			continue
		}
		dlg := &Dialogue[T]{UUID: uuid, Dest: dest, owner: d}
		d.table[uuid] = dlg
		return dlg
	}
}

// GetOrCreate returns the existing Dialogue registered under uuid, or
// creates one with that uuid and dest if absent. Used on the responder
// side, where the peer chooses the uuid.
func (d *Dialogues[T]) GetOrCreate(uuid uint32, dest string) *Dialogue[T] {
	d.mu.Lock()
	defer d.mu.Unlock()

	if dlg, ok := d.table[uuid]; ok {
		return dlg
	}
	dlg := &Dialogue[T]{UUID: uuid, Dest: dest, owner: d}
	d.table[uuid] = dlg
	return dlg
}

// Get returns the Dialogue registered under uuid, or ErrUnknownDialogue
// if absent.
func (d *Dialogues[T]) Get(uuid uint32) (*Dialogue[T], error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	dlg, ok := d.table[uuid]
	if !ok {
		return nil, ErrUnknownDialogue
	}
	return dlg, nil
}

// Erase removes the Dialogue registered under uuid, if any. Subsequent
// Get calls for that uuid fail with ErrUnknownDialogue.
func (d *Dialogues[T]) Erase(uuid uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.table, uuid)
}

// Len reports the number of currently open dialogues.
func (d *Dialogues[T]) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.table)
}

func randomUUID() uint32 {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic("dialogue: crypto/rand unavailable: " + err.Error())
	}
	return binary.BigEndian.Uint32(buf[:])
}
