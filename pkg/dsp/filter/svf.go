// Package filter shapes a patch voice's oscillator output before its
// envelope stage (pkg/engine.SubtractiveEngine's cutoff/resonance
// endpoints).
package filter

import "math"

// SVF is a zero-delay-feedback state variable filter producing
// lowpass, highpass, bandpass, and notch outputs from one pass over the
// input, with per-channel state so a single filter can serve a
// multi-channel voice. SubtractiveEngine only reads the lowpass output,
// but the other three stay cheap to compute from the same topology and
// are here for when the cutoff/resonance endpoints grow a filter-mode
// selector.
type SVF struct {
	g float32 // frequency coefficient
	k float32 // damping coefficient (1/Q)

	ic1eq []float32 // per-channel integrator 1 state
	ic2eq []float32 // per-channel integrator 2 state
}

// Outputs holds every filter response computed for one input sample.
type Outputs struct {
	Lowpass  float32
	Highpass float32
	Bandpass float32
	Notch    float32
}

// NewSVF creates a filter with independent state for channels channels.
func NewSVF(channels int) *SVF {
	return &SVF{
		ic1eq: make([]float32, channels),
		ic2eq: make([]float32, channels),
	}
}

// Reset clears all per-channel filter state.
func (s *SVF) Reset() {
	for i := range s.ic1eq {
		s.ic1eq[i] = 0
		s.ic2eq[i] = 0
	}
}

// SetFrequency sets the cutoff/center frequency via the bilinear
// transform's pre-warped tangent.
func (s *SVF) SetFrequency(sampleRate, frequency float64) {
	omega := math.Tan(math.Pi * frequency / sampleRate)
	s.g = float32(omega)
}

// SetQ sets the resonance (Q factor); higher Q narrows the bandpass and
// peaks the response at cutoff.
func (s *SVF) SetQ(q float64) {
	s.k = float32(1.0 / q)
}

// SetFrequencyAndQ sets both in one call, as a patch's cutoff and
// resonance endpoints are normally updated together.
func (s *SVF) SetFrequencyAndQ(sampleRate, frequency, q float64) {
	s.SetFrequency(sampleRate, frequency)
	s.SetQ(q)
}

// ProcessSample filters one input sample for channel and returns every
// response simultaneously.
func (s *SVF) ProcessSample(input float32, channel int) Outputs {
	ic1eq := s.ic1eq[channel]
	ic2eq := s.ic2eq[channel]

	g := s.g
	k := s.k
	a1 := 1.0 / (1.0 + g*(g+k))
	a2 := g * a1
	a3 := g * a2

	v3 := input - ic2eq
	v1 := a1*ic1eq + a2*v3
	v2 := ic2eq + a2*ic1eq + a3*v3

	ic1eq = 2.0*v1 - ic1eq
	ic2eq = 2.0*v2 - ic2eq

	s.ic1eq[channel] = ic1eq
	s.ic2eq[channel] = ic2eq

	return Outputs{
		Lowpass:  v2,
		Bandpass: v1,
		Highpass: input - k*v1 - v2,
		Notch:    input - k*v1,
	}
}
