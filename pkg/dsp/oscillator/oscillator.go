// Package oscillator generates the periodic waveforms a patch voice
// reads from each render sample (pkg/engine.SubtractiveEngine).
package oscillator

import "math"

// Waveform selects which of Oscillator's wave shapes a voice reads from.
type Waveform int

const (
	WaveSine Waveform = iota
	WaveSaw
	WaveSquare
	WaveTriangle
)

// Oscillator generates a band-unlimited periodic waveform at a settable
// frequency, advancing phase one sample at a time so a voice can
// interleave it with filter and envelope processing sample-by-sample
// rather than in separate buffer passes.
type Oscillator struct {
	sampleRate float64
	frequency  float64
	phase      float64
	phaseInc   float64
}

// New creates an oscillator defaulting to 440Hz.
func New(sampleRate float64) *Oscillator {
	return &Oscillator{
		sampleRate: sampleRate,
		frequency:  440.0,
		phaseInc:   440.0 / sampleRate,
	}
}

// SetFrequency retunes the oscillator; takes effect on the next sample.
func (o *Oscillator) SetFrequency(freq float64) {
	o.frequency = freq
	o.phaseInc = freq / o.sampleRate
}

// Reset returns the oscillator to phase 0, used when a voice is
// reassigned to a new note so its waveform restarts cleanly.
func (o *Oscillator) Reset() {
	o.phase = 0.0
}

func (o *Oscillator) updatePhase() {
	o.phase += o.phaseInc
	if o.phase >= 1.0 {
		o.phase -= math.Floor(o.phase)
	}
}

// Next generates the next sample of the given waveform.
func (o *Oscillator) Next(w Waveform) float32 {
	switch w {
	case WaveSaw:
		return o.Saw()
	case WaveSquare:
		return o.Square()
	case WaveTriangle:
		return o.Triangle()
	default:
		return o.Sine()
	}
}

// Sine generates a sine wave sample.
func (o *Oscillator) Sine() float32 {
	sample := float32(math.Sin(2.0 * math.Pi * o.phase))
	o.updatePhase()
	return sample
}

// Saw generates a sawtooth wave sample.
func (o *Oscillator) Saw() float32 {
	sample := float32(2.0*o.phase - 1.0)
	o.updatePhase()
	return sample
}

// Square generates a square wave sample.
func (o *Oscillator) Square() float32 {
	var sample float32
	if o.phase < 0.5 {
		sample = 1.0
	} else {
		sample = -1.0
	}
	o.updatePhase()
	return sample
}

// Triangle generates a triangle wave sample.
func (o *Oscillator) Triangle() float32 {
	var sample float32
	if o.phase < 0.5 {
		sample = float32(4.0*o.phase - 1.0)
	} else {
		sample = float32(3.0 - 4.0*o.phase)
	}
	o.updatePhase()
	return sample
}
