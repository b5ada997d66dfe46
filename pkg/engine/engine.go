// Package engine defines the external Engine contract (spec.md §6) that the
// patch player drives, plus the reference engines the rest of the module
// tests against. The patch compiler and its DSP runtime are out of scope
// (spec.md §1) — everything here is either the interface boundary or a
// deliberately simple stand-in implementation, grounded on the same
// one-stub-per-external-interface shape used by the VAD adapter's engine
// package (nupi-ai-plugin-vad-local-silero/internal/engine/engine.go,
// stub.go).
package engine

import "github.com/patchkit/core/pkg/midi"

// OutputEvent is one `(frame, endpointID, value)` tuple the engine emits
// during ProcessChunk (spec.md §4.1 "Engine output events").
type OutputEvent struct {
	Frame      int32
	EndpointID string
	Value      float64
}

// OutputEventFunc receives engine output events as they are produced.
type OutputEventFunc func(OutputEvent)

// Block is a dispatch sub-block: an input/output frame window plus the
// MIDI events whose offsets fall inside it, already normalized to [0,N)
// by the chunker (pkg/player/chunker.go).
type Block struct {
	Input      [][]float32 // per input channel, len == NumFrames
	Output     [][]float32 // per output channel, len == NumFrames
	NumFrames  int
	MIDIEvents []midi.Event
	SampleRate float64
}

// Manifest is whatever the patch compiler hands back describing a loaded
// patch's endpoints; the core treats it as an opaque pass-through value
// published inside Status (spec.md §3 "Patch status").
type Manifest struct {
	Inputs  []EndpointInfo
	Outputs []EndpointInfo
}

// EndpointInfo is the subset of an endpoint descriptor the manifest
// reports for UI consumption; the authoritative descriptor lives in
// pkg/endpoint.
type EndpointInfo struct {
	EndpointID string
	Purpose    string
}

// Engine is the patch compiler/runtime boundary consumed by the patch
// player (spec.md §6 "Engine (consumed)"). The core never implements DSP;
// it only calls through this interface.
type Engine interface {
	// Load builds and activates a patch from the given manifest path or
	// identifier. Returns the resulting manifest and an error if the
	// patch failed to build (spec.md §4.1 "Failure semantics").
	Load(path string) (Manifest, error)

	// SetSampleRate configures the engine's render sample rate; called
	// whenever the bound audio source changes (spec.md §4.1 setAudioIO).
	SetSampleRate(sampleRate float64)

	// ProcessChunk renders one sub-block in place. replaceOutput asks the
	// engine to overwrite block.Output rather than mix into it.
	ProcessChunk(block Block, replaceOutput bool) error

	// SendEvent writes to an event-in endpoint.
	SendEvent(endpointID string, value float64, timeout float64)

	// SendValue writes to a value/parameter endpoint, optionally ramped
	// over rampFrames.
	SendValue(endpointID string, value float64, rampFrames int, timeout float64)

	// SendBPM, SendTimeSig, SendTransportState, and SendPosition deliver
	// timecode generator output (spec.md §4.5).
	SendBPM(bpm float64)
	SendTimeSig(numerator, denominator uint32)
	SendTransportState(playing, recording, looping bool)
	SendPosition(frame int64, quarterNote, barStartQuarterNote float64)

	// WantsTimecodeEvents reports whether the timecode generator should
	// run for this patch at all.
	WantsTimecodeEvents() bool

	// SetOutputEventCallback installs the sink for engine-originated
	// output events. Called once at construction by the player.
	SetOutputEventCallback(fn OutputEventFunc)

	// Reset restores the patch to its post-load state (spec.md §4.2
	// req_reset). Engine-state semantics only; stored-state clearing is
	// the session's call per the Open Question recorded in DESIGN.md.
	Reset()

	// Close releases any resources the engine holds.
	Close() error
}
