// Package endpoint implements the endpoint descriptor and parameter value
// data model of spec.md §3: immutable descriptors produced by the engine at
// load time, a duck-typed annotation map, and a lock-free value cell for
// the audio thread.
package endpoint

import (
	"math"
	"strings"
	"sync/atomic"
)

// Purpose is the kind of I/O point an endpoint represents.
type Purpose string

const (
	PurposeParameter Purpose = "parameter"
	PurposeAudioIn   Purpose = "audio-in"
	PurposeAudioOut  Purpose = "audio-out"
	PurposeEventIn   Purpose = "event-in"
	PurposeEventOut  Purpose = "event-out"
	PurposeMIDIIn    Purpose = "midi-in"
	PurposeMIDIOut   Purpose = "midi-out"
	PurposeConsole   Purpose = "console"
)

// Annotation is the deliberately open, duck-typed metadata map Design Notes
// describes: consumers probe for well-known keys and degrade gracefully
// when one is absent. Modeled as a heterogeneous map rather than a struct
// for exactly that reason.
type Annotation map[string]any

func (a Annotation) float(key string) (float64, bool) {
	if a == nil {
		return 0, false
	}
	v, ok := a[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// Min returns the declared minimum, if any.
func (a Annotation) Min() (float64, bool) { return a.float("min") }

// Max returns the declared maximum, if any.
func (a Annotation) Max() (float64, bool) { return a.float("max") }

// Step returns the declared discrete step size, if any.
func (a Annotation) Step() (float64, bool) { return a.float("step") }

// Init returns the declared initial value, if any.
func (a Annotation) Init() (float64, bool) { return a.float("init") }

// Unit returns the declared unit string, if any.
func (a Annotation) Unit() string {
	if s, ok := a["unit"].(string); ok {
		return s
	}
	return ""
}

// Name returns the declared display name, if any.
func (a Annotation) Name() string {
	if s, ok := a["name"].(string); ok {
		return s
	}
	return ""
}

// Boolean reports whether the annotation marks this endpoint as boolean.
func (a Annotation) Boolean() bool {
	b, _ := a["boolean"].(bool)
	return b
}

// Hidden reports whether the annotation marks this endpoint as hidden from UI.
func (a Annotation) Hidden() bool {
	b, _ := a["hidden"].(bool)
	return b
}

// Discrete reports whether this endpoint enumerates discrete options, either
// via an explicit "discrete" flag or an implied step.
func (a Annotation) Discrete() bool {
	if b, ok := a["discrete"].(bool); ok {
		return b
	}
	_, hasStep := a.Step()
	return hasStep
}

// TextOptions splits the "|"-separated annotation.text field into its
// component option labels (SPEC_FULL.md §3.1, recovered from
// original_source/). Returns nil if no text annotation is present.
func (a Annotation) TextOptions() []string {
	s, ok := a["text"].(string)
	if !ok || s == "" {
		return nil
	}
	return strings.Split(s, "|")
}

// Descriptor is the immutable record the engine produces for each endpoint
// at load time (spec.md §3).
type Descriptor struct {
	EndpointID   string
	Purpose      Purpose
	Annotation   Annotation
	DefaultValue float64
	ChannelCount int // meaningful for audio-in/audio-out
}

// DiscreteOptionValues enumerates the values a discrete (step-based)
// endpoint can take, from Min to Max inclusive in Step increments. Testable
// Property 9: step=0.25, min=0, max=1 yields {0, 0.25, 0.5, 0.75, 1.0}.
// Returns nil if the endpoint doesn't declare both a step and a range.
func (d Descriptor) DiscreteOptionValues() []float64 {
	step, ok := d.Annotation.Step()
	if !ok || step <= 0 {
		return nil
	}
	min, ok := d.Annotation.Min()
	if !ok {
		return nil
	}
	max, ok := d.Annotation.Max()
	if !ok || max < min {
		return nil
	}

	var values []float64
	for v := min; v <= max+step*1e-9; v += step {
		values = append(values, roundStep(v, min, step))
	}
	return values
}

// roundStep snaps v to the nearest multiple of step above min, correcting
// for float64 accumulation error across repeated addition.
func roundStep(v, min, step float64) float64 {
	n := (v - min) / step
	return min + roundHalfAwayFromZero(n)*step
}

func roundHalfAwayFromZero(x float64) float64 {
	if x < 0 {
		return -roundHalfAwayFromZero(-x)
	}
	i := float64(int64(x))
	if x-i >= 0.5 {
		return i + 1
	}
	return i
}

// RotationDegrees maps a plain value within [min,max] to a rotation angle
// for a radial UI control, per Testable Property 10: a bipolar range
// (min=-1, max=1) maps 0 to 0 degrees and the extremes to +-132 degrees.
// Unipolar ranges (min>=0) map min to -132 and max to +132, the
// conventional full-sweep knob mapping.
const maxKnobDegrees = 132.0

func (d Descriptor) RotationDegrees(value float64) float64 {
	min, hasMin := d.Annotation.Min()
	max, hasMax := d.Annotation.Max()
	if !hasMin || !hasMax || max <= min {
		return 0
	}
	if value < min {
		value = min
	}
	if value > max {
		value = max
	}

	if min < 0 && max > 0 {
		// Bipolar: 0 sits at the mapping's center, each side scales
		// independently so an asymmetric range still centers on 0 degrees.
		if value >= 0 {
			return (value / max) * maxKnobDegrees
		}
		return (value / min) * -maxKnobDegrees
	}

	normalized := (value - min) / (max - min)
	return -maxKnobDegrees + normalized*(2*maxKnobDegrees)
}

// Coerce clamps a plain value to this endpoint's declared range, and for
// boolean endpoints maps values > 0.5 to 1, else 0 (spec.md §3 Parameter
// value invariant).
func (d Descriptor) Coerce(plain float64) float64 {
	if d.Annotation.Boolean() {
		if plain > 0.5 {
			return 1
		}
		return 0
	}
	min, hasMin := d.Annotation.Min()
	max, hasMax := d.Annotation.Max()
	if hasMin && plain < min {
		plain = min
	}
	if hasMax && plain > max {
		plain = max
	}
	return plain
}

// Value is a lock-free scalar cell: the control thread writes it, the audio
// thread reads it, neither blocks. Grounded on the teacher's
// param.Parameter atomic float64<->uint64 bit trick
// (pkg/framework/param/parameter.go), reused verbatim via math.Float64bits
// instead of unsafe.Pointer — functionally identical, without the unsafe
// import.
type Value struct {
	bits atomic.Uint64
}

// NewValue creates a Value initialized to v.
func NewValue(v float64) *Value {
	val := &Value{}
	val.Store(v)
	return val
}

// Load returns the current value.
func (v *Value) Load() float64 {
	return float64frombits(v.bits.Load())
}

// Store writes a new value. Safe to call from any thread; never blocks.
func (v *Value) Store(value float64) {
	v.bits.Store(float64bits(value))
}

func float64bits(f float64) uint64     { return math.Float64bits(f) }
func float64frombits(b uint64) float64 { return math.Float64frombits(b) }
