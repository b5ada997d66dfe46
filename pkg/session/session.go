// Package session implements the Server Session (spec.md §4.3): the
// multiplexer that owns one transport to a patch host, a status cache,
// the virtual file registry, the liveness watchdog, and the CPU-info
// rate policy, and broadcasts unrecognised messages to every active
// Patch Connection.
package session

import (
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/patchkit/core/pkg/connection"
	"github.com/patchkit/core/pkg/listener"
	"github.com/patchkit/core/pkg/transport"
	"github.com/patchkit/core/pkg/wire"
)

// Default liveness watchdog parameters (spec.md §5 "Liveness").
const (
	DefaultWatchdogTick    = 2 * time.Second
	DefaultWatchdogTimeout = 10 * time.Second
	DefaultCPUInfoRate     = 15000
)

// ContentProvider is a registered virtual file (spec.md §3 "Virtual
// file"): looked up by exact name, read in arbitrary chunks until
// removed or the session tears down.
type ContentProvider interface {
	Name() string
	Size() int64
	Read(offset, length int64) ([]byte, error)
}

// byteSliceFile is the ContentProvider backing SetAudioInputSource's
// synthetic `_audio_source_<endpoint>` file (spec.md §4.3).
type byteSliceFile struct {
	name string
	data []byte
}

func (f *byteSliceFile) Name() string { return f.name }
func (f *byteSliceFile) Size() int64  { return int64(len(f.data)) }
func (f *byteSliceFile) Read(offset, length int64) ([]byte, error) {
	if offset < 0 || offset > int64(len(f.data)) {
		return nil, fmt.Errorf("session: read offset %d out of range for %q", offset, f.name)
	}
	end := offset + length
	if end > int64(len(f.data)) {
		end = int64(len(f.data))
	}
	return f.data[offset:end], nil
}

// Session is the C3 Server Session. Construct with New; call Listen in
// its own goroutine to drive inbound dispatch, and StartWatchdog to
// enable liveness monitoring.
type Session struct {
	tr       transport.Transport
	registry *listener.Registry

	mu                 sync.Mutex
	statusCache        transport.Message
	activeConns        map[*connection.Connection]struct{}
	files              map[string]ContentProvider
	lastMsgTime        time.Time
	disconnectedFired  bool
	cpuInfoDefaultRate int
	cpuInfoCurrentRate int
}

// New creates a Session multiplexing over tr.
func New(tr transport.Transport) *Session {
	return &Session{
		tr:                 tr,
		registry:           listener.New(),
		activeConns:        make(map[*connection.Connection]struct{}),
		files:              make(map[string]ContentProvider),
		lastMsgTime:        time.Now(),
		cpuInfoDefaultRate: DefaultCPUInfoRate,
	}
}

func (s *Session) send(msg transport.Message) error {
	return s.tr.Send(msg)
}

// AddConnection and RemoveConnection manage the active connection set
// unrecognised messages broadcast to (spec.md §4.3).
func (s *Session) AddConnection(c *connection.Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeConns[c] = struct{}{}
}

func (s *Session) RemoveConnection(c *connection.Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.activeConns, c)
}

// On registers a session-level listener (session_status, cpu_info,
// audio_device_properties, patch_source_changed, infinite_loop_detected,
// audio_input_mode_<endpoint>, or any reply_<stem><random> minted by
// this session's own request wrappers).
func (s *Session) On(eventType string, cb listener.Callback) listener.Handle {
	return s.registry.Add(eventType, cb)
}

func (s *Session) Off(h listener.Handle) {
	s.registry.Remove(h)
}

// StatusCache returns the most recently cached session_status message.
func (s *Session) StatusCache() transport.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusCache
}

// Listen reads messages from the transport and dispatches them until
// Recv returns an error (including a clean close), which it returns to
// the caller.
func (s *Session) Listen() error {
	for {
		msg, err := s.tr.Recv()
		if err != nil {
			return err
		}
		s.HandleMessage(msg)
	}
}

// HandleMessage implements spec.md §4.3's inbound message-handling
// table. Every message stamps lastServerMessageTime and clears the
// watchdog's disconnected-fired latch, since any traffic at all proves
// the connection is alive.
func (s *Session) HandleMessage(msg transport.Message) {
	s.mu.Lock()
	s.lastMsgTime = time.Now()
	s.disconnectedFired = false
	s.mu.Unlock()

	t := msg.Type()
	switch {
	case t == "session_status":
		s.mu.Lock()
		s.statusCache = msg
		s.mu.Unlock()
		s.registry.Dispatch("session_status", msg)

	case t == "cpu_info", t == "audio_device_properties", t == "patch_source_changed", t == "infinite_loop_detected":
		s.registry.Dispatch(t, msg)

	case t == "req_file_read":
		s.handleReqFileRead(msg)

	case t == "ping":
		_ = s.send(transport.Message{"type": "ping"})

	case strings.HasPrefix(t, "audio_input_mode_"):
		s.registry.Dispatch(t, msg)

	case strings.HasPrefix(t, "reply_"):
		s.registry.Dispatch(t, msg)

	default:
		s.broadcast(msg)
	}
}

func (s *Session) broadcast(msg transport.Message) {
	s.mu.Lock()
	conns := make([]*connection.Connection, 0, len(s.activeConns))
	for c := range s.activeConns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		c.HandleMessage(msg)
	}
}

// handleReqFileRead serves spec.md §6 "Virtual file protocol": look up
// the ContentProvider, read the requested chunk, reply file_content.
// Missing file, zero/negative size, or a read error drops the request
// silently (spec.md §7 "FileReadError ... reply omitted").
func (s *Session) handleReqFileRead(msg transport.Message) {
	file, _ := msg["file"].(string)
	offset := asInt64(msg["offset"])
	size := asInt64(msg["size"])
	if file == "" || size <= 0 {
		return
	}

	s.mu.Lock()
	provider, ok := s.files[file]
	s.mu.Unlock()
	if !ok {
		return
	}

	data, err := provider.Read(offset, size)
	if err != nil {
		return
	}
	_ = s.send(transport.Message{
		"type":  "file_content",
		"file":  file,
		"start": offset,
		"data":  base64.StdEncoding.EncodeToString(data),
	})
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

// checkLiveness fires at most one session_status{connected:false} per
// disconnection interval (Testable Property 7). Called by the
// goroutine StartWatchdog spawns.
func (s *Session) checkLiveness(timeout time.Duration) {
	s.mu.Lock()
	elapsed := time.Since(s.lastMsgTime)
	if elapsed <= timeout || s.disconnectedFired {
		s.mu.Unlock()
		return
	}
	s.disconnectedFired = true
	status := transport.Message{"type": "session_status", "connected": false, "loaded": false, "status": "Cannot connect"}
	s.statusCache = status
	s.mu.Unlock()

	s.registry.Dispatch("session_status", status)
}

// StartWatchdog spawns the liveness goroutine (spec.md §5, Testable
// Property 7, Scenario S5) ticking every tick and declaring the
// connection dead after timeout with no inbound message. The returned
// func stops the goroutine.
func (s *Session) StartWatchdog(tick, timeout time.Duration) (stop func()) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(tick)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				s.checkLiveness(timeout)
			}
		}
	}()
	return func() { close(done) }
}

// RegisterFile adds name to the virtual file registry and notifies the
// server.
func (s *Session) RegisterFile(name string, provider ContentProvider) error {
	s.mu.Lock()
	s.files[name] = provider
	s.mu.Unlock()
	return s.send(transport.Message{"type": "register_file", "file": name})
}

// RemoveFile removes name from the virtual file registry and notifies
// the server. Idempotent: removing an unknown name still notifies.
func (s *Session) RemoveFile(name string) error {
	s.mu.Lock()
	delete(s.files, name)
	s.mu.Unlock()
	return s.send(transport.Message{"type": "remove_file", "file": name})
}

// SetAudioInputSource implements spec.md §4.3's "Audio input source":
// with fileBytes present, registers a synthetic virtual file named
// `_audio_source_<endpointID>` and tells the server to read from it;
// otherwise removes that synthetic file and falls back to the mute
// flag.
func (s *Session) SetAudioInputSource(endpointID string, mute bool, fileBytes []byte) error {
	name := "_audio_source_" + endpointID
	if fileBytes != nil {
		if err := s.RegisterFile(name, &byteSliceFile{name: name, data: fileBytes}); err != nil {
			return err
		}
		return s.send(transport.Message{"type": "set_custom_audio_input", "endpoint": endpointID, "file": name})
	}
	_ = s.RemoveFile(name)
	return s.send(transport.Message{"type": "set_custom_audio_input", "endpoint": endpointID, "mute": mute})
}

// LoadPatch asks the host to load a patch from path.
func (s *Session) LoadPatch(path string) error {
	return s.send(transport.Message{"type": "load_patch", "path": path})
}

// ReqPatchList requests the list of available patches, delivering it to
// cb via a freshly minted reply channel.
func (s *Session) ReqPatchList(cb func(value any)) error {
	replyType := wire.NewReplyType("patchlist")
	s.registry.AddSingleUse(replyType, func(payload any) { cb(payload) })
	return s.send(transport.Message{"type": "req_patchlist", "replyType": replyType})
}

// ReqAudioInputMode requests the current audio input mode for endpoint;
// the reply arrives as an `audio_input_mode_<endpoint>` event, already
// wired through HandleMessage's dispatch table.
func (s *Session) ReqAudioInputMode(endpoint string) error {
	return s.send(transport.Message{"type": "req_audio_input_mode", "endpoint": endpoint})
}

// SetAudioPlaybackActive starts or stops host-side audio playback.
func (s *Session) SetAudioPlaybackActive(active bool) error {
	return s.send(transport.Message{"type": "set_audio_playback_active", "active": active})
}

// SetAudioDeviceProps pushes device property changes (sample rate,
// block size, channel counts) to the host.
func (s *Session) SetAudioDeviceProps(props any) error {
	return s.send(transport.Message{"type": "set_audio_device_props", "props": props})
}

// ReqAudioDeviceProps requests the current device properties.
func (s *Session) ReqAudioDeviceProps(cb func(value any)) error {
	replyType := wire.NewReplyType("audio_device_props")
	s.registry.AddSingleUse(replyType, func(payload any) { cb(payload) })
	return s.send(transport.Message{"type": "req_audio_device_props", "replyType": replyType})
}

// ReqCodegen requests code generation for target, delivering the result
// to cb via a freshly minted reply channel.
func (s *Session) ReqCodegen(target string, cb func(value any)) error {
	replyType := wire.NewReplyType("codegen")
	s.registry.AddSingleUse(replyType, func(payload any) { cb(payload) })
	return s.send(transport.Message{"type": "req_codegen", "target": target, "replyType": replyType})
}

// SetCPUInfoDefaultRate changes the rate used whenever at least one
// cpu_info listener is attached (default DefaultCPUInfoRate).
func (s *Session) SetCPUInfoDefaultRate(rate int) {
	s.mu.Lock()
	s.cpuInfoDefaultRate = rate
	s.mu.Unlock()
	s.recomputeCPUInfoRate()
}

// AddCPUInfoListener subscribes cb to cpu_info events and recomputes the
// CPU-info rate policy (spec.md §4.3).
func (s *Session) AddCPUInfoListener(cb listener.Callback) listener.Handle {
	h := s.registry.Add("cpu_info", cb)
	s.recomputeCPUInfoRate()
	return h
}

// RemoveCPUInfoListener unsubscribes and recomputes the rate.
func (s *Session) RemoveCPUInfoListener(h listener.Handle) {
	s.registry.Remove(h)
	s.recomputeCPUInfoRate()
}

// recomputeCPUInfoRate implements "each add/remove of a cpu_info
// listener recomputes framesPerCallback: if listener count > 0, use the
// last-set rate ... else 0", sending set_cpu_info_rate only on change.
func (s *Session) recomputeCPUInfoRate() {
	count := s.registry.CountFor("cpu_info")
	s.mu.Lock()
	rate := 0
	if count > 0 {
		rate = s.cpuInfoDefaultRate
	}
	changed := rate != s.cpuInfoCurrentRate
	s.cpuInfoCurrentRate = rate
	s.mu.Unlock()
	if changed {
		_ = s.send(transport.Message{"type": "set_cpu_info_rate", "rate": rate})
	}
}
