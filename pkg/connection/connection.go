// Package connection implements the Patch Connection (spec.md §4.2): a
// per-patch facade built on pkg/listener that defines the outbound
// message vocabulary and the inbound dispatch rules, including gesture
// bracketing and reply-channel minting.
package connection

import (
	"fmt"
	"sync"

	"github.com/patchkit/core/pkg/listener"
	"github.com/patchkit/core/pkg/transport"
	"github.com/patchkit/core/pkg/wire"
)

// Connection is one PatchConnection: outbound messages go over tr,
// inbound messages are dispatched through registry per spec.md §4.2's
// two special rules (status caches the manifest; param_value
// double-dispatches).
//
// All exported methods assume control-thread-confined, serialized
// callers (spec.md §5 "Control thread contract"): a coarse mutex
// protects the gesture-tracking map since a misbehaving UI could call
// concurrently, but the design intent is single-threaded cooperative
// dispatch, mirroring the teacher's BaseProcessor single-thread
// parameter-change assumption.
type Connection struct {
	tr       transport.Transport
	registry *listener.Registry

	mu         sync.Mutex
	openGesture map[string]bool // endpointID -> open
	lastStatus  transport.Message
}

// New creates a Connection that sends over tr and dispatches inbound
// messages through a fresh Event Listener Registry (C1).
func New(tr transport.Transport) *Connection {
	return &Connection{
		tr:          tr,
		registry:    listener.New(),
		openGesture: make(map[string]bool),
	}
}

func (c *Connection) send(msg transport.Message) error {
	return c.tr.Send(msg)
}

// On registers a listener for inbound messages of eventType (spec.md
// §4.2 "Inbound ... dispatched by type to registered listeners").
func (c *Connection) On(eventType string, cb listener.Callback) listener.Handle {
	return c.registry.Add(eventType, cb)
}

// Off removes a previously registered listener.
func (c *Connection) Off(h listener.Handle) {
	c.registry.Remove(h)
}

// LastStatus returns the most recently cached `status` message, or nil
// if none has arrived yet.
func (c *Connection) LastStatus() transport.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastStatus
}

// HandleMessage dispatches one inbound message per spec.md §4.2's rules:
// `status` updates the cached manifest before dispatch; `param_value` is
// re-dispatched under both `param_value` and `param_value_<id>` so
// clients can listen per-parameter or globally. All other types dispatch
// under their own type string.
func (c *Connection) HandleMessage(msg transport.Message) {
	switch msg.Type() {
	case "status":
		c.mu.Lock()
		c.lastStatus = msg
		c.mu.Unlock()
		c.registry.Dispatch("status", msg)
	case "param_value":
		c.registry.Dispatch("param_value", msg)
		if id, ok := msg["id"].(string); ok {
			c.registry.Dispatch("param_value_"+id, msg)
		}
	default:
		c.registry.Dispatch(msg.Type(), msg)
	}
}

// ReqStatus asks the server to push a `status` message.
func (c *Connection) ReqStatus() error {
	return c.send(transport.Message{"type": "req_status"})
}

// ReqReset asks the server to reset the patch to its post-load state.
func (c *Connection) ReqReset() error {
	return c.send(transport.Message{"type": "req_reset"})
}

// SendValue writes value to a value/event endpoint. rampFrames and
// timeout are optional per spec.md §4.2; pass nil to omit.
func (c *Connection) SendValue(id string, value float64, rampFrames *int, timeout *float64) error {
	msg := transport.Message{"type": "send_value", "id": id, "value": value}
	if rampFrames != nil {
		msg["rampFrames"] = *rampFrames
	}
	if timeout != nil {
		msg["timeout"] = *timeout
	}
	return c.send(msg)
}

// SendGestureStart opens a gesture scope for id (spec.md §3 "Gesture
// scope"). Returns an error if a gesture is already open for this
// endpointID on this connection — Testable Property 4 requires at most
// one open gesture per endpointID per connection.
func (c *Connection) SendGestureStart(id string) error {
	c.mu.Lock()
	if c.openGesture[id] {
		c.mu.Unlock()
		return fmt.Errorf("connection: gesture already open for endpoint %q", id)
	}
	c.openGesture[id] = true
	c.mu.Unlock()
	return c.send(transport.Message{"type": "send_gesture_start", "id": id})
}

// SendGestureEnd closes the gesture scope for id. Returns an error if no
// gesture is currently open for this endpointID.
func (c *Connection) SendGestureEnd(id string) error {
	c.mu.Lock()
	if !c.openGesture[id] {
		c.mu.Unlock()
		return fmt.Errorf("connection: no open gesture for endpoint %q", id)
	}
	delete(c.openGesture, id)
	c.mu.Unlock()
	return c.send(transport.Message{"type": "send_gesture_end", "id": id})
}

// ReqStateValue requests a single stored-state value, delivering it to
// cb on reply via a freshly minted single-use reply channel.
func (c *Connection) ReqStateValue(key string, cb func(value any)) error {
	replyType := wire.NewReplyType("state_value_" + key)
	c.registry.AddSingleUse(replyType, func(payload any) {
		cb(payload)
	})
	return c.send(transport.Message{"type": "req_state_value", "key": key, "replyType": replyType})
}

// SendStateValue writes one stored-state key/value pair.
func (c *Connection) SendStateValue(key string, value any) error {
	return c.send(transport.Message{"type": "send_state_value", "key": key, "value": value})
}

// ReqFullState requests the full stored state, delivering it to cb via a
// freshly minted `fullstate_response_<random>` single-use reply channel
// (spec.md §6 "Reply-type naming").
func (c *Connection) ReqFullState(cb func(value any)) error {
	replyType := wire.NewFullStateReplyType()
	c.registry.AddSingleUse(replyType, func(payload any) {
		cb(payload)
	})
	return c.send(transport.Message{"type": "req_full_state", "replyType": replyType})
}

// SendFullState replaces the patch's stored state wholesale.
func (c *Connection) SendFullState(value any) error {
	return c.send(transport.Message{"type": "send_full_state", "value": value})
}

// ReqParamValue requests the current value of endpoint id, delivering it
// to cb when a `param_value_<id>` message arrives (the double-dispatch
// rule means this also fires for global param_value listeners).
func (c *Connection) ReqParamValue(id string, cb func(value any)) error {
	c.registry.AddSingleUse("param_value_"+id, func(payload any) {
		cb(payload)
	})
	return c.send(transport.Message{"type": "req_param_value", "id": id})
}

// EndpointSubscription identifies one addEndpointListener subscription,
// returned by AddEndpointListener and required by RemoveEndpointListener.
type EndpointSubscription struct {
	Endpoint  string
	ReplyType string

	handle listener.Handle
}

// AddEndpointListener subscribes cb to updates for endpoint (spec.md
// §4.2 "Endpoint listeners"). It mints a per-subscription
// `event_<endpoint>_<random>` key, registers cb under it, and sends
// add_endpoint_listener. For audio endpoints the update payload is
// `{min,max}` per granularity window unless fullAudioData requests raw
// `{data}` frames.
func (c *Connection) AddEndpointListener(endpoint string, granularity int, fullAudioData bool, cb listener.Callback) (*EndpointSubscription, error) {
	replyType := wire.NewEndpointEventType(endpoint)
	h := c.registry.Add(replyType, cb)
	msg := transport.Message{
		"type":      "add_endpoint_listener",
		"endpoint":  endpoint,
		"replyType": replyType,
	}
	if granularity > 0 {
		msg["granularity"] = granularity
	}
	if fullAudioData {
		msg["fullAudioData"] = fullAudioData
	}
	if err := c.send(msg); err != nil {
		c.registry.Remove(h)
		return nil, err
	}
	return &EndpointSubscription{Endpoint: endpoint, ReplyType: replyType, handle: h}, nil
}

// RemoveEndpointListener unsubscribes a previously added endpoint
// listener, deregistering its local callback and notifying the server.
func (c *Connection) RemoveEndpointListener(sub *EndpointSubscription) error {
	c.registry.Remove(sub.handle)
	return c.send(transport.Message{
		"type":      "remove_endpoint_listener",
		"endpoint":  sub.Endpoint,
		"replyType": sub.ReplyType,
	})
}
