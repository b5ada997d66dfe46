// Package audioio defines the external audio/MIDI device surface
// consumed by the patch player (spec.md §6 "Audio/MIDI player
// (consumed)") plus the two implementations the rest of the module is
// built and tested against: a real PortAudio-backed player and an
// in-memory fake driver.
package audioio

// Options describes the fixed properties of a bound audio/MIDI source.
type Options struct {
	SampleRate         float64
	BlockSize          int
	InputChannelCount  int
	OutputChannelCount int
}

// DefaultOptions are the safe defaults the player installs when no
// audio source is bound (spec.md §4.1 setAudioIO "on unbind").
var DefaultOptions = Options{SampleRate: 44100, BlockSize: 256, InputChannelCount: 2, OutputChannelCount: 2}

// Callback is the render/lifecycle contract a source invokes. All three
// methods run on the audio thread; implementations must honor the
// wait-free contract of spec.md §5.
type Callback interface {
	// PrepareToStart is called once before the first Process call after
	// addCallback, with the bound sample rate and a sink for MIDI the
	// callback wants to emit back out.
	PrepareToStart(sampleRate float64, midiOut MIDIOutSink)

	// AddIncomingMIDIEvent delivers one packed short message
	// (pkg/midi.Packed) at the given sample offset within the block
	// about to be processed.
	AddIncomingMIDIEvent(packed int32, offset int32)

	// Process renders one block. replaceOutput asks the callback to
	// overwrite output rather than mix into it.
	Process(input, output [][]float32, replaceOutput bool)
}

// MIDIOutSink accepts MIDI short messages the callback wants to send
// back out through the device, consumed by the control thread via the
// pre-sized ring buffer spec.md §5 describes.
type MIDIOutSink interface {
	SendMIDIOut(packed int32, offset int32)
}

// Player is the external device surface: `addCallback`/`removeCallback`
// per spec.md §6, with an Options snapshot describing the bound device.
type Player interface {
	Options() Options
	AddCallback(cb Callback) error
	RemoveCallback(cb Callback) error
	Close() error
}
