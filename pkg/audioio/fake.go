package audioio

import "sync"

// FakePlayer is a deterministic in-memory Player used by tests: Render
// drives the registered callback directly, synchronously, with caller-
// supplied input and MIDI, making scenario tests (spec.md §8 S1/S3/S6)
// reproducible without real hardware.
type FakePlayer struct {
	mu      sync.Mutex
	opts    Options
	cb      Callback
	midiOut []PendingMIDI
}

// PendingMIDI is one packed short message queued at a sample offset,
// used both for feeding incoming MIDI into Render and for inspecting
// what a callback sent back out via SendMIDIOut.
type PendingMIDI struct {
	Packed int32
	Offset int32
}

// NewFakePlayer creates a FakePlayer with the given fixed options.
func NewFakePlayer(opts Options) *FakePlayer {
	return &FakePlayer{opts: opts}
}

func (p *FakePlayer) Options() Options { return p.opts }

func (p *FakePlayer) AddCallback(cb Callback) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cb = cb
	p.cb.PrepareToStart(p.opts.SampleRate, p)
	return nil
}

func (p *FakePlayer) RemoveCallback(cb Callback) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cb == cb {
		p.cb = nil
	}
	return nil
}

func (p *FakePlayer) Close() error { return nil }

// SendMIDIOut implements MIDIOutSink; messages are retained for
// inspection via DrainMIDIOut.
func (p *FakePlayer) SendMIDIOut(packed int32, offset int32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.midiOut = append(p.midiOut, PendingMIDI{packed, offset})
}

// DrainMIDIOut returns and clears everything sent via SendMIDIOut since
// the last call.
func (p *FakePlayer) DrainMIDIOut() []PendingMIDI {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.midiOut
	p.midiOut = nil
	return out
}

// HasCallback reports whether a callback is currently registered —
// exercised by Testable Property 1 (net listener count returns to 0).
func (p *FakePlayer) HasCallback() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cb != nil
}

// Render feeds one block of input (may be nil) and MIDI events to the
// registered callback and returns the rendered output. Panics if no
// callback is registered, since driving a fake with nothing attached is
// always a test bug.
func (p *FakePlayer) Render(input [][]float32, midiEvents []PendingMIDI, numFrames int) [][]float32 {
	p.mu.Lock()
	cb := p.cb
	p.mu.Unlock()
	if cb == nil {
		panic("audioio: FakePlayer.Render called with no callback registered")
	}

	for _, m := range midiEvents {
		cb.AddIncomingMIDIEvent(m.Packed, m.Offset)
	}

	output := make([][]float32, p.opts.OutputChannelCount)
	for ch := range output {
		output[ch] = make([]float32, numFrames)
	}
	cb.Process(input, output, true)
	return output
}
