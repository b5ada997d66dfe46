package engine

import (
	"math"
	"sync"

	"github.com/patchkit/core/pkg/midi"
)

// SineEngine is a deterministic single-oscillator engine used by tests and
// the demo CLI: freq is an event-in endpoint, gain a value endpoint, and
// every output channel is filled with the same sine wave. Grounded on the VAD
// adapter's StubEngine (nupi-ai-plugin-vad-local-silero/internal/engine/
// stub.go): a small deterministic stand-in behind the same interface real
// production code will eventually satisfy.
type SineEngine struct {
	mu         sync.Mutex
	sampleRate float64
	freqHz     float64
	gain       float64
	phase      float64
	onOutput   OutputEventFunc
	wantsTime  bool
}

// NewSineEngine creates a SineEngine at 440 Hz, full gain.
func NewSineEngine() *SineEngine {
	return &SineEngine{sampleRate: 44100, freqHz: 440, gain: 1.0}
}

func (e *SineEngine) Load(path string) (Manifest, error) {
	return Manifest{
		Inputs: []EndpointInfo{
			{EndpointID: "freq", Purpose: "event-in"},
			{EndpointID: "gain", Purpose: "parameter"},
		},
		Outputs: []EndpointInfo{
			{EndpointID: "out", Purpose: "audio-out"},
		},
	}, nil
}

func (e *SineEngine) SetSampleRate(sampleRate float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sampleRate = sampleRate
}

func (e *SineEngine) ProcessChunk(block Block, replaceOutput bool) error {
	e.mu.Lock()
	freq, gain, sampleRate := e.freqHz, e.gain, e.sampleRate
	phase := e.phase
	e.mu.Unlock()

	for _, ev := range block.MIDIEvents {
		switch t := ev.(type) {
		case midi.NoteOnEvent:
			freq = midi.NoteToFrequency(t.NoteNumber, 440)
		}
	}

	increment := 2 * math.Pi * freq / sampleRate
	for ch := range block.Output {
		p := phase
		for i := 0; i < block.NumFrames; i++ {
			sample := float32(math.Sin(p) * gain)
			if replaceOutput {
				block.Output[ch][i] = sample
			} else {
				block.Output[ch][i] += sample
			}
			p += increment
		}
	}
	phase += increment * float64(block.NumFrames)
	phase = math.Mod(phase, 2*math.Pi)

	e.mu.Lock()
	e.freqHz = freq
	e.phase = phase
	e.mu.Unlock()
	return nil
}

func (e *SineEngine) SendEvent(endpointID string, value float64, timeout float64) {
	if endpointID != "freq" {
		return
	}
	e.mu.Lock()
	e.freqHz = value
	e.mu.Unlock()
}

func (e *SineEngine) SendValue(endpointID string, value float64, rampFrames int, timeout float64) {
	if endpointID != "gain" {
		return
	}
	e.mu.Lock()
	e.gain = value
	e.mu.Unlock()
	if e.onOutput != nil {
		e.onOutput(OutputEvent{EndpointID: "gain", Value: value})
	}
}

func (e *SineEngine) SendBPM(bpm float64)                                             {}
func (e *SineEngine) SendTimeSig(numerator, denominator uint32)                        {}
func (e *SineEngine) SendTransportState(playing, recording, looping bool)              {}
func (e *SineEngine) SendPosition(frame int64, quarterNote, barStartQuarterNote float64) {}

func (e *SineEngine) WantsTimecodeEvents() bool { return e.wantsTime }

// SetWantsTimecodeEvents lets tests exercise the timecode generator gate.
func (e *SineEngine) SetWantsTimecodeEvents(want bool) { e.wantsTime = want }

func (e *SineEngine) SetOutputEventCallback(fn OutputEventFunc) { e.onOutput = fn }

func (e *SineEngine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.phase = 0
	e.gain = 1.0
	e.freqHz = 440
}

func (e *SineEngine) Close() error { return nil }
