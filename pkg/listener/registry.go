// Package listener implements the keyed multimap of callback subscriptions
// that every other core component is built on: add, remove, single-use, and
// ordered dispatch.
package listener

import "sync"

// Callback receives a dispatched payload. Payloads are opaque to the
// registry; callers agree on their shape per event type.
type Callback func(payload any)

// shim pairs a Callback with the subscription id that Remove matches on,
// so a single-use subscription whose callback Registry wraps internally is
// still removed by the Handle returned to the caller.
type shim struct {
	id int64
	cb Callback
}

// Registry is an ordered multimap from event-type string to a list of
// callbacks. Duplicates are allowed; each Add requires a matching Remove.
//
// Insertion order matters for dispatch, so each event type maps to a
// slice of subscriptions kept in the order they were added; a single
// sync.Mutex guards the map.
type Registry struct {
	mu     sync.Mutex
	subs   map[string][]shim
	nextID int64
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{subs: make(map[string][]shim)}
}

// Handle identifies one subscription for precise removal. Go func values
// aren't comparable, so spec.md's "remove by identity" is implemented as
// removal by registration handle rather than by re-passing the callback.
type Handle struct {
	eventType string
	id        int64
}

// Add appends cb under eventType and returns a Handle for Remove. No
// deduplication: adding the same function value twice creates two
// independent subscriptions, each needing its own Remove.
func (r *Registry) Add(eventType string, cb Callback) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	r.subs[eventType] = append(r.subs[eventType], shim{id: id, cb: cb})
	return Handle{eventType: eventType, id: id}
}

// AddSingleUse wraps cb in a shim that removes itself from the registry
// before invoking cb, guaranteeing cb fires at most once (Testable
// Property 3). The self-removal happens synchronously inside Dispatch, not
// lazily, so a second Dispatch for the same event type never even sees the
// single-use subscription. Removing the returned Handle after the callback
// has already self-removed is a harmless no-op (idempotent removal, spec.md
// §5).
func (r *Registry) AddSingleUse(eventType string, cb Callback) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	var wrapped Callback
	wrapped = func(payload any) {
		r.removeByID(eventType, id)
		cb(payload)
	}
	r.subs[eventType] = append(r.subs[eventType], shim{id: id, cb: wrapped})
	return Handle{eventType: eventType, id: id}
}

// Remove removes exactly the subscription h identifies. Idempotent:
// removing twice, or removing a handle whose single-use callback already
// fired, is a no-op.
func (r *Registry) Remove(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeByID(h.eventType, h.id)
}

func (r *Registry) removeByID(eventType string, id int64) {
	subs := r.subs[eventType]
	for i, s := range subs {
		if s.id == id {
			r.subs[eventType] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// Dispatch snapshots the subscriber list for eventType and invokes each
// callback in order with payload. Snapshotting means a callback that adds
// or removes subscriptions mid-dispatch does not affect the current
// dispatch: removals take effect next time, additions don't fire this time
// (spec.md §4.4).
//
// A panicking callback is recovered so it cannot prevent later callbacks
// from running and cannot propagate out of Dispatch (this registry is used
// from the control thread only; spec.md §5 forbids letting any error reach
// the audio thread, and a bad UI-side callback is exactly the kind of
// listener code that can panic).
func (r *Registry) Dispatch(eventType string, payload any) {
	r.mu.Lock()
	snapshot := make([]shim, len(r.subs[eventType]))
	copy(snapshot, r.subs[eventType])
	r.mu.Unlock()

	for _, s := range snapshot {
		invokeSafely(s.cb, payload)
	}
}

func invokeSafely(cb Callback, payload any) {
	defer func() { recover() }()
	cb(payload)
}

// CountFor returns the current number of subscriptions registered under
// eventType.
func (r *Registry) CountFor(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs[eventType])
}
