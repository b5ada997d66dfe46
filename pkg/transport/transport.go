// Package transport implements the full-duplex message channel the
// Server Session speaks over (spec.md §4.3, §6 "Wire protocol
// (exposed)"): a self-contained stream of tagged JSON-like messages,
// each an object with a `type` field.
package transport

// Message is one self-contained wire message: a tagged object with at
// least a `type` field (spec.md §6).
type Message map[string]any

// Type returns the message's `type` field, or "" if absent or not a
// string.
func (m Message) Type() string {
	t, _ := m["type"].(string)
	return t
}

// Transport is the full-duplex channel to a patch host. Send can block:
// Pipe.Send waits while the peer's buffered channel is full, and
// JSONStream.Send writes the encoded message to the stream synchronously.
// Recv blocks until a message arrives or the transport closes.
type Transport interface {
	Send(msg Message) error
	Recv() (Message, error)
	Close() error
}
