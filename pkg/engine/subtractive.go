package engine

import (
	"math"
	"sync"

	"github.com/patchkit/core/pkg/dsp/envelope"
	"github.com/patchkit/core/pkg/dsp/filter"
	"github.com/patchkit/core/pkg/dsp/gain"
	"github.com/patchkit/core/pkg/dsp/oscillator"
	"github.com/patchkit/core/pkg/midi"
)

const maxSubtractiveVoices = 8

// subtractiveVoice is one oscillator+filter+envelope voice, adapted from
// the teacher's oscillator/SVF/ADSR building blocks into a single
// note-addressable unit (the teacher's pkg/dsp has no voice-allocation
// concept of its own; that comes from pkg/framework/voice, which this
// engine does not use since spec.md's endpoint model, not the teacher's
// bus/voice framework, owns polyphony here).
type subtractiveVoice struct {
	osc    *oscillator.Oscillator
	filt   *filter.SVF
	env    *envelope.ADSR
	note   int
	active bool
}

// SubtractiveEngine is a small polyphonic synth built from the teacher's
// pkg/dsp building blocks (oscillator, filter.SVF, envelope.ADSR, gain
// dB conversion + soft clipping), exercising them behind the
// engine.Engine contract as a second, richer demo engine alongside
// SineEngine. Grounded on pkg/dsp/oscillator/oscillator.go,
// pkg/dsp/filter/svf.go, pkg/dsp/envelope/envelope.go,
// pkg/dsp/gain/gain.go.
type SubtractiveEngine struct {
	mu         sync.Mutex
	sampleRate float64
	cutoffHz   float64
	resonance  float64
	gainDB     float64
	waveform   oscillator.Waveform
	attack, decay, sustain, release float64
	voices     [maxSubtractiveVoices]subtractiveVoice
	onOutput   OutputEventFunc
}

// NewSubtractiveEngine creates a SubtractiveEngine with a 2kHz cutoff,
// Q=0.7, unity gain, a sine wave, and the ADSR defaults from
// envelope.New (10ms/100ms/0.7/300ms).
func NewSubtractiveEngine() *SubtractiveEngine {
	e := &SubtractiveEngine{
		sampleRate: 44100,
		cutoffHz:   2000,
		resonance:  0.7,
		waveform:   oscillator.WaveSine,
		attack:     0.01,
		decay:      0.1,
		sustain:    0.7,
		release:    0.3,
	}
	for i := range e.voices {
		e.voices[i] = subtractiveVoice{
			osc:  oscillator.New(e.sampleRate),
			filt: filter.NewSVF(1),
			env:  envelope.New(e.sampleRate),
		}
		e.voices[i].filt.SetFrequencyAndQ(e.sampleRate, e.cutoffHz, e.resonance)
	}
	return e
}

func (e *SubtractiveEngine) Load(path string) (Manifest, error) {
	return Manifest{
		Inputs: []EndpointInfo{
			{EndpointID: "notes", Purpose: "midi-in"},
			{EndpointID: "cutoff", Purpose: "parameter"},
			{EndpointID: "resonance", Purpose: "parameter"},
			{EndpointID: "gain", Purpose: "parameter"},
			{EndpointID: "waveform", Purpose: "parameter"},
			{EndpointID: "attack", Purpose: "parameter"},
			{EndpointID: "decay", Purpose: "parameter"},
			{EndpointID: "sustain", Purpose: "parameter"},
			{EndpointID: "release", Purpose: "parameter"},
		},
		Outputs: []EndpointInfo{{EndpointID: "out", Purpose: "audio-out"}},
	}, nil
}

func (e *SubtractiveEngine) SetSampleRate(sampleRate float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sampleRate = sampleRate
	for i := range e.voices {
		e.voices[i].osc = oscillator.New(sampleRate)
		e.voices[i].env = envelope.New(sampleRate)
		e.voices[i].env.SetADSR(e.attack, e.decay, e.sustain, e.release)
		e.voices[i].filt.SetFrequencyAndQ(sampleRate, e.cutoffHz, e.resonance)
	}
}

func noteToFreq(note int) float64 {
	return 440.0 * math.Pow(2, float64(note-69)/12.0)
}

func (e *SubtractiveEngine) noteOn(note int) {
	for i := range e.voices {
		if !e.voices[i].active {
			e.voices[i].active = true
			e.voices[i].note = note
			e.voices[i].osc.SetFrequency(noteToFreq(note))
			e.voices[i].osc.Reset()
			e.voices[i].env.Trigger()
			return
		}
	}
}

func (e *SubtractiveEngine) noteOff(note int) {
	for i := range e.voices {
		if e.voices[i].active && e.voices[i].note == note {
			e.voices[i].env.Release()
		}
	}
}

func (e *SubtractiveEngine) ProcessChunk(block Block, replaceOutput bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, ev := range block.MIDIEvents {
		switch m := ev.(type) {
		case midi.NoteOnEvent:
			e.noteOn(int(m.NoteNumber))
		case midi.NoteOffEvent:
			e.noteOff(int(m.NoteNumber))
		}
	}

	if len(block.Output) == 0 {
		return nil
	}
	g := float32(gain.DbToLinear(e.gainDB))
	out := block.Output[0]
	if replaceOutput {
		for i := range out {
			out[i] = 0
		}
	}
	for vi := range e.voices {
		v := &e.voices[vi]
		if !v.active {
			continue
		}
		for i := 0; i < block.NumFrames && i < len(out); i++ {
			sample := v.osc.Next(e.waveform)
			outs := v.filt.ProcessSample(sample, 0)
			envVal := v.env.Next()
			// Each voice's signal is soft-clipped on its own before the
			// gain stage and before it is added to the mix; the summed
			// mix of several voices is not clipped.
			mixed := gain.SoftClip(outs.Lowpass*envVal, 1.0)
			out[i] += gain.Apply(mixed, g)
		}
		if !v.env.IsActive() {
			v.active = false
		}
	}
	for ch := 1; ch < len(block.Output); ch++ {
		copy(block.Output[ch], out)
	}
	return nil
}

func (e *SubtractiveEngine) SendEvent(endpointID string, value float64, timeout float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch endpointID {
	case "cutoff":
		e.cutoffHz = value
		for i := range e.voices {
			e.voices[i].filt.SetFrequencyAndQ(e.sampleRate, e.cutoffHz, e.resonance)
		}
	case "resonance":
		e.resonance = value
		for i := range e.voices {
			e.voices[i].filt.SetFrequencyAndQ(e.sampleRate, e.cutoffHz, e.resonance)
		}
	case "gain":
		e.gainDB = value
	case "waveform":
		e.waveform = oscillator.Waveform(int(value) % 4)
	case "attack":
		e.attack = value
		for i := range e.voices {
			e.voices[i].env.SetAttack(e.attack)
		}
	case "decay":
		e.decay = value
		for i := range e.voices {
			e.voices[i].env.SetDecay(e.decay)
		}
	case "sustain":
		e.sustain = value
		for i := range e.voices {
			e.voices[i].env.SetSustain(e.sustain)
		}
	case "release":
		e.release = value
		for i := range e.voices {
			e.voices[i].env.SetRelease(e.release)
		}
	}
}

func (e *SubtractiveEngine) SendValue(endpointID string, value float64, rampFrames int, timeout float64) {
	e.SendEvent(endpointID, value, timeout)
	if e.onOutput != nil {
		e.onOutput(OutputEvent{EndpointID: endpointID, Value: value})
	}
}

func (e *SubtractiveEngine) SendBPM(bpm float64)                                               {}
func (e *SubtractiveEngine) SendTimeSig(numerator, denominator uint32)                         {}
func (e *SubtractiveEngine) SendTransportState(playing, recording, looping bool)               {}
func (e *SubtractiveEngine) SendPosition(frame int64, quarterNote, barStartQuarterNote float64) {}
func (e *SubtractiveEngine) WantsTimecodeEvents() bool                                          { return false }

func (e *SubtractiveEngine) SetOutputEventCallback(fn OutputEventFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onOutput = fn
}

func (e *SubtractiveEngine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.voices {
		e.voices[i].active = false
		e.voices[i].env.Reset()
		e.voices[i].filt.Reset()
	}
}

func (e *SubtractiveEngine) Close() error { return nil }
