// Package directory implements the broker's service directory (spec.md
// C2, §4.2): an in-memory index from service Instances to the set of
// agent keys that advertise them. Grounded on the teacher's
// internal/fabric.Hub capability index (a map keyed by capability name to
// a set of spoke IDs, guarded by one RWMutex) — generalised here from an
// exact-match capability string to an arbitrary Instance predicate.
package directory

import (
	"reflect"
	"sort"
	"sync"

	"github.com/ocx/oefbroker/internal/query"
)

type entry struct {
	instance query.Instance
	keys     map[string]struct{}
}

// Directory is a concurrency-safe registry of (Instance, agent-key set)
// entries queryable by predicate. The zero value is ready to use.
type Directory struct {
	mu      sync.RWMutex
	entries []entry
}

// New returns an empty Directory.
func New() *Directory {
	return &Directory{}
}

// Register idempotently associates agentKey with instance. Calling it
// again with the same (instance, agentKey) pair is a no-op.
func (d *Directory) Register(instance query.Instance, agentKey string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range d.entries {
		if instancesEqual(d.entries[i].instance, instance) {
			d.entries[i].keys[agentKey] = struct{}{}
			return
		}
	}
	d.entries = append(d.entries, entry{
		instance: instance,
		keys:     map[string]struct{}{agentKey: {}},
	})
}

// Unregister removes agentKey from the set advertising instance. The
// bucket is deleted entirely once its key set is empty, per spec.md §4.2.
func (d *Directory) Unregister(instance query.Instance, agentKey string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range d.entries {
		if !instancesEqual(d.entries[i].instance, instance) {
			continue
		}
		delete(d.entries[i].keys, agentKey)
		if len(d.entries[i].keys) == 0 {
			d.entries = append(d.entries[:i], d.entries[i+1:]...)
		}
		return
	}
}

// Query returns, deduplicated, every agent key whose advertised Instance
// satisfies model.Check. Keys are sorted lexically, so the order is
// deterministic, matching spec.md §4.2.
func (d *Directory) Query(model query.QueryModel) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, e := range d.entries {
		if !model.Check(e.instance) {
			continue
		}
		for key := range e.keys {
			seen[key] = struct{}{}
		}
	}

	result := make([]string, 0, len(seen))
	for key := range seen {
		result = append(result, key)
	}
	sort.Strings(result)
	return result
}

// instancesEqual compares two Instances by model name and value map,
// sufficient to treat repeated Register/Unregister calls for the same
// logical description as referring to the same directory bucket.
func instancesEqual(a, b query.Instance) bool {
	if a.Model.Name != b.Model.Name || len(a.Values) != len(b.Values) {
		return false
	}
	for k, v := range a.Values {
		other, ok := b.Values[k]
		if !ok || !reflect.DeepEqual(v, other) {
			return false
		}
	}
	return true
}
