// Package wire implements the reply-type naming scheme and duck-typed
// value conversions at the Patch Connection / Server Session wire
// boundary (spec.md §6 "Wire protocol (exposed)", "Reply-type naming").
package wire

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// randomSuffix draws a decimal-random component with at least 32 bits of
// entropy, per spec.md §6's "≥ 32 bits of entropy recommended". Uses
// crypto/rand rather than math/rand/v2: reply types are collision-space
// identifiers shared with external UI clients, and the teacher pack
// never exercises math/rand for anything security- or uniqueness-
// sensitive, so the stronger source costs nothing here.
func randomSuffix() uint32 {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(fmt.Sprintf("wire: failed to read random bytes: %v", err))
	}
	return binary.BigEndian.Uint32(b[:])
}

// NewReplyType mints a fresh `reply_<stem><random>` reply channel name
// for a request/response pair (spec.md §4.2 "Reply channels").
func NewReplyType(stem string) string {
	return fmt.Sprintf("reply_%s%d", stem, randomSuffix())
}

// NewEndpointEventType mints a fresh `event_<endpoint>_<random>` listener
// key for one addEndpointListener subscription (spec.md §4.2 "Endpoint
// listeners").
func NewEndpointEventType(endpointID string) string {
	return fmt.Sprintf("event_%s_%d", endpointID, randomSuffix())
}

// NewFullStateReplyType mints a fresh `fullstate_response_<random>` reply
// channel for a req_full_state request (spec.md §6 "Reply-type naming").
func NewFullStateReplyType() string {
	return fmt.Sprintf("fullstate_response_%d", randomSuffix())
}

// ToStruct converts a duck-typed Go value (the shape endpoint.Annotation
// and the session's message payloads traffic in: map[string]any, []any,
// string, float64, bool, nil) into a structpb.Value suitable for
// embedding in a JSON-like wire envelope. This is the one place the core
// reaches for google.golang.org/protobuf: structpb.Value is a leaf type
// with no service/codegen surface, so it can represent the protocol's
// open, duck-typed payloads without pulling in full gRPC machinery the
// core has no server for (see DESIGN.md "Dropped from the teacher pack").
func ToStruct(v any) (*structpb.Value, error) {
	return structpb.NewValue(v)
}

// FromStruct converts a structpb.Value back to a plain Go value
// (map[string]any / []any / string / float64 / bool / nil), the inverse
// of ToStruct.
func FromStruct(v *structpb.Value) any {
	if v == nil {
		return nil
	}
	return v.AsInterface()
}
