package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patchkit/core/pkg/dsp/oscillator"
	"github.com/patchkit/core/pkg/midi"
)

func TestSubtractiveEngineLoadManifest(t *testing.T) {
	e := NewSubtractiveEngine()
	manifest, err := e.Load("demo.subtractive")
	require.NoError(t, err)
	assert.Len(t, manifest.Inputs, 9)
	assert.Len(t, manifest.Outputs, 1)
}

func TestSubtractiveEngineSilentWithNoVoicesActive(t *testing.T) {
	e := NewSubtractiveEngine()
	e.SetSampleRate(48000)

	out := make([][]float32, 1)
	out[0] = make([]float32, 256)
	block := Block{Output: out, NumFrames: 256, SampleRate: 48000}

	require.NoError(t, e.ProcessChunk(block, true))
	for _, s := range out[0] {
		assert.Equal(t, float32(0), s)
	}
}

func TestSubtractiveEngineNoteOnProducesBoundedOutput(t *testing.T) {
	e := NewSubtractiveEngine()
	e.SetSampleRate(48000)

	out := make([][]float32, 2)
	out[0] = make([]float32, 512)
	out[1] = make([]float32, 512)
	noteOn := midi.NoteOnEvent{BaseEvent: midi.BaseEvent{Offset: 0}, NoteNumber: 69, Velocity: 100}
	block := Block{Output: out, NumFrames: 512, SampleRate: 48000, MIDIEvents: []midi.Event{noteOn}}

	require.NoError(t, e.ProcessChunk(block, true))

	var peak float32
	for _, s := range out[0] {
		if math.Abs(float64(s)) > float64(peak) {
			peak = float32(math.Abs(float64(s)))
		}
	}
	assert.Greater(t, peak, float32(0))
	assert.LessOrEqual(t, peak, float32(1.5))
	assert.Equal(t, out[0], out[1], "second channel should mirror the mono voice mix")
}

func TestSubtractiveEngineNoteOffReleasesVoice(t *testing.T) {
	e := NewSubtractiveEngine()
	e.SetSampleRate(48000)
	e.voices[0].env.SetADSR(0, 0.001, 1.0, 0.001)

	out := make([][]float32, 1)
	out[0] = make([]float32, 64)
	noteOn := midi.NoteOnEvent{BaseEvent: midi.BaseEvent{Offset: 0}, NoteNumber: 60, Velocity: 100}
	block := Block{Output: out, NumFrames: 64, SampleRate: 48000, MIDIEvents: []midi.Event{noteOn}}
	require.NoError(t, e.ProcessChunk(block, true))
	assert.True(t, e.voices[0].active)

	noteOff := midi.NoteOffEvent{BaseEvent: midi.BaseEvent{Offset: 0}, NoteNumber: 60}
	for i := 0; i < 10; i++ {
		block.MIDIEvents = []midi.Event{noteOff}
		require.NoError(t, e.ProcessChunk(block, true))
		block.MIDIEvents = nil
	}
	assert.False(t, e.voices[0].active, "voice should free itself once its envelope finishes release")
}

func TestSubtractiveEngineVoiceAllocationCapsAtMaxVoices(t *testing.T) {
	e := NewSubtractiveEngine()
	e.SetSampleRate(48000)

	out := make([][]float32, 1)
	out[0] = make([]float32, 16)
	for n := 0; n < maxSubtractiveVoices+2; n++ {
		block := Block{
			Output: out, NumFrames: 16, SampleRate: 48000,
			MIDIEvents: []midi.Event{midi.NoteOnEvent{BaseEvent: midi.BaseEvent{Offset: 0}, NoteNumber: uint8(40 + n), Velocity: 100}},
		}
		require.NoError(t, e.ProcessChunk(block, true))
	}
	active := 0
	for _, v := range e.voices {
		if v.active {
			active++
		}
	}
	assert.LessOrEqual(t, active, maxSubtractiveVoices)
}

func TestSubtractiveEngineSendEventUpdatesFilterParams(t *testing.T) {
	e := NewSubtractiveEngine()
	e.SendEvent("cutoff", 500, 0)
	e.SendEvent("resonance", 2.0, 0)
	assert.Equal(t, 500.0, e.cutoffHz)
	assert.Equal(t, 2.0, e.resonance)
}

func TestSubtractiveEngineSendValueFiresOutputEvent(t *testing.T) {
	e := NewSubtractiveEngine()
	var got OutputEvent
	e.SetOutputEventCallback(func(ev OutputEvent) { got = ev })
	e.SendValue("gain", -6.0, 0, 0)
	assert.Equal(t, "gain", got.EndpointID)
	assert.Equal(t, -6.0, got.Value)
	assert.Equal(t, -6.0, e.gainDB)
}

func TestSubtractiveEngineResetClearsVoices(t *testing.T) {
	e := NewSubtractiveEngine()
	e.SetSampleRate(48000)
	out := make([][]float32, 1)
	out[0] = make([]float32, 16)
	block := Block{
		Output: out, NumFrames: 16, SampleRate: 48000,
		MIDIEvents: []midi.Event{midi.NoteOnEvent{BaseEvent: midi.BaseEvent{Offset: 0}, NoteNumber: 69, Velocity: 100}},
	}
	require.NoError(t, e.ProcessChunk(block, true))
	assert.True(t, e.voices[0].active)

	e.Reset()
	assert.False(t, e.voices[0].active)
}

func TestNoteToFreqMiddleA(t *testing.T) {
	assert.InDelta(t, 440.0, noteToFreq(69), 0.001)
}

func TestSubtractiveEngineWaveformEndpointSelectsOscillatorShape(t *testing.T) {
	e := NewSubtractiveEngine()
	e.SendEvent("waveform", 1, 0) // WaveSaw
	assert.Equal(t, oscillator.WaveSaw, e.waveform)

	e.SendEvent("waveform", 4, 0) // wraps back to WaveSine
	assert.Equal(t, oscillator.WaveSine, e.waveform)
}

func TestSubtractiveEngineEnvelopeEndpointsUpdateEngineSettings(t *testing.T) {
	e := NewSubtractiveEngine()
	e.SendEvent("attack", 0.5, 0)
	e.SendEvent("decay", 0.25, 0)
	e.SendEvent("sustain", 0.4, 0)
	e.SendEvent("release", 0.75, 0)
	assert.Equal(t, 0.5, e.attack)
	assert.Equal(t, 0.25, e.decay)
	assert.Equal(t, 0.4, e.sustain)
	assert.Equal(t, 0.75, e.release)
}
