package endpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestProperty9_DiscreteOptionEnumeration: step=0.25, min=0, max=1 enumerates
// 5 options at {0, 0.25, 0.5, 0.75, 1.0}.
func TestProperty9_DiscreteOptionEnumeration(t *testing.T) {
	d := Descriptor{
		Annotation: Annotation{"step": 0.25, "min": 0.0, "max": 1.0},
	}
	got := d.DiscreteOptionValues()
	assert.Equal(t, []float64{0, 0.25, 0.5, 0.75, 1.0}, got)
}

// TestProperty10_KnobRotationMapping: bipolar min=-1, max=1: value 0 -> 0
// degrees, value 1 -> +132 degrees, value -1 -> -132 degrees.
func TestProperty10_KnobRotationMapping(t *testing.T) {
	d := Descriptor{Annotation: Annotation{"min": -1.0, "max": 1.0}}
	assert.InDelta(t, 0.0, d.RotationDegrees(0), 1e-9)
	assert.InDelta(t, 132.0, d.RotationDegrees(1), 1e-9)
	assert.InDelta(t, -132.0, d.RotationDegrees(-1), 1e-9)
}

func TestUnipolarRotationSweepsFullRange(t *testing.T) {
	d := Descriptor{Annotation: Annotation{"min": 0.0, "max": 10.0}}
	assert.InDelta(t, -132.0, d.RotationDegrees(0), 1e-9)
	assert.InDelta(t, 132.0, d.RotationDegrees(10), 1e-9)
	assert.InDelta(t, 0.0, d.RotationDegrees(5), 1e-9)
}

func TestBooleanCoercion(t *testing.T) {
	d := Descriptor{Annotation: Annotation{"boolean": true}}
	assert.Equal(t, 1.0, d.Coerce(0.51))
	assert.Equal(t, 0.0, d.Coerce(0.5))
	assert.Equal(t, 0.0, d.Coerce(0.0))
}

func TestClampToRange(t *testing.T) {
	d := Descriptor{Annotation: Annotation{"min": 0.0, "max": 1.0}}
	assert.Equal(t, 1.0, d.Coerce(5))
	assert.Equal(t, 0.0, d.Coerce(-5))
	assert.Equal(t, 0.5, d.Coerce(0.5))
}

func TestTextOptionsSplit(t *testing.T) {
	a := Annotation{"text": "Off|Low|Med|High"}
	assert.Equal(t, []string{"Off", "Low", "Med", "High"}, a.TextOptions())
}

func TestValueLockFreeRoundTrip(t *testing.T) {
	v := NewValue(0.25)
	assert.Equal(t, 0.25, v.Load())
	v.Store(0.75)
	assert.Equal(t, 0.75, v.Load())
}
