package audioio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingCallback struct {
	prepared    bool
	sampleRate  float64
	incoming    []PendingMIDI
	processFunc func(input, output [][]float32, replaceOutput bool)
}

func (c *recordingCallback) PrepareToStart(sampleRate float64, midiOut MIDIOutSink) {
	c.prepared = true
	c.sampleRate = sampleRate
}

func (c *recordingCallback) AddIncomingMIDIEvent(packed int32, offset int32) {
	c.incoming = append(c.incoming, PendingMIDI{packed, offset})
}

func (c *recordingCallback) Process(input, output [][]float32, replaceOutput bool) {
	if c.processFunc != nil {
		c.processFunc(input, output, replaceOutput)
		return
	}
	for ch := range output {
		for i := range output[ch] {
			output[ch][i] = 1
		}
	}
}

func TestFakePlayerAddCallbackCallsPrepareToStart(t *testing.T) {
	p := NewFakePlayer(Options{SampleRate: 48000, OutputChannelCount: 2})
	cb := &recordingCallback{}
	require.NoError(t, p.AddCallback(cb))
	assert.True(t, cb.prepared)
	assert.Equal(t, 48000.0, cb.sampleRate)
}

func TestFakePlayerRenderDeliversMIDIBeforeProcess(t *testing.T) {
	p := NewFakePlayer(Options{SampleRate: 48000, OutputChannelCount: 1})
	cb := &recordingCallback{}
	require.NoError(t, p.AddCallback(cb))

	events := []PendingMIDI{{Packed: 0x900001, Offset: 10}}
	out := p.Render(nil, events, 64)

	require.Len(t, cb.incoming, 1)
	assert.Equal(t, int32(10), cb.incoming[0].Offset)
	assert.Equal(t, float32(1), out[0][0])
}

func TestFakePlayerRemoveCallbackClearsHasCallback(t *testing.T) {
	p := NewFakePlayer(Options{OutputChannelCount: 1})
	cb := &recordingCallback{}
	require.NoError(t, p.AddCallback(cb))
	assert.True(t, p.HasCallback())
	require.NoError(t, p.RemoveCallback(cb))
	assert.False(t, p.HasCallback())
}

func TestFakePlayerRenderPanicsWithNoCallback(t *testing.T) {
	p := NewFakePlayer(Options{OutputChannelCount: 1})
	assert.Panics(t, func() { p.Render(nil, nil, 64) })
}

func TestFakePlayerDrainMIDIOut(t *testing.T) {
	p := NewFakePlayer(Options{OutputChannelCount: 1})
	cb := &recordingCallback{
		processFunc: func(input, output [][]float32, replaceOutput bool) {
			p.SendMIDIOut(0x804000, 5)
		},
	}
	require.NoError(t, p.AddCallback(cb))
	p.Render(nil, nil, 32)

	drained := p.DrainMIDIOut()
	require.Len(t, drained, 1)
	assert.Equal(t, int32(5), drained[0].Offset)
	assert.Empty(t, p.DrainMIDIOut())
}
