//go:build demo

package engine

import (
	"bytes"
	"fmt"
	"os"
	"sync"

	"github.com/sinshu/go-meltysynth/meltysynth"

	"github.com/patchkit/core/pkg/midi"
)

// MeltyEngine renders a loaded SoundFont through go-meltysynth, driven by
// incoming MIDI events. Grounded on zurustar-son-et's pkg/vm/audio
// (soundfont.go's NewSoundFont-from-reader loading, midi.go's
// NewSynthesizerSettings/NewSynthesizer/Render wiring), adapted from an
// Ebitengine audio.Player source into a direct engine.Engine
// implementation. Built only under the "demo" tag: it is a real worked
// example of wiring a concrete DSP backend, not something the core
// depends on in production builds.
type MeltyEngine struct {
	mu            sync.Mutex
	soundFontPath string
	soundFont     *meltysynth.SoundFont
	synth         *meltysynth.Synthesizer
	sampleRate    float64
	onOutput      OutputEventFunc
}

// NewMeltyEngine creates an engine that will load soundFontPath on Load.
func NewMeltyEngine(soundFontPath string) *MeltyEngine {
	return &MeltyEngine{soundFontPath: soundFontPath, sampleRate: 44100}
}

func (e *MeltyEngine) Load(path string) (Manifest, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	data, err := os.ReadFile(e.soundFontPath)
	if err != nil {
		return Manifest{}, fmt.Errorf("read soundfont: %w", err)
	}
	sf, err := meltysynth.NewSoundFont(bytes.NewReader(data))
	if err != nil {
		return Manifest{}, fmt.Errorf("parse soundfont: %w", err)
	}
	settings := meltysynth.NewSynthesizerSettings(int32(e.sampleRate))
	synth, err := meltysynth.NewSynthesizer(sf, settings)
	if err != nil {
		return Manifest{}, fmt.Errorf("create synthesizer: %w", err)
	}
	e.soundFont = sf
	e.synth = synth

	return Manifest{
		Inputs: []EndpointInfo{
			{EndpointID: "midiIn", Purpose: "midi-in"},
		},
		Outputs: []EndpointInfo{
			{EndpointID: "out", Purpose: "audio-out"},
		},
	}, nil
}

func (e *MeltyEngine) SetSampleRate(sampleRate float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sampleRate = sampleRate
	if e.soundFont != nil {
		settings := meltysynth.NewSynthesizerSettings(int32(sampleRate))
		if synth, err := meltysynth.NewSynthesizer(e.soundFont, settings); err == nil {
			e.synth = synth
		}
	}
}

func (e *MeltyEngine) ProcessChunk(block Block, replaceOutput bool) error {
	e.mu.Lock()
	synth := e.synth
	e.mu.Unlock()
	if synth == nil {
		return fmt.Errorf("melty engine: no patch loaded")
	}

	for _, ev := range block.MIDIEvents {
		switch t := ev.(type) {
		case midi.NoteOnEvent:
			synth.NoteOn(int32(t.Channel()), int32(t.NoteNumber), int32(t.Velocity))
		case midi.NoteOffEvent:
			synth.NoteOff(int32(t.Channel()), int32(t.NoteNumber))
		case midi.ControlChangeEvent:
			synth.ProcessMidiMessage(int32(t.Channel()), 0xB0, int32(t.Controller), int32(t.Value))
		case midi.PitchBendEvent:
			v := uint16(t.Value + 8192)
			synth.ProcessMidiMessage(int32(t.Channel()), 0xE0, int32(v&0x7F), int32(v>>7))
		}
	}

	if len(block.Output) < 2 || block.NumFrames == 0 {
		return nil
	}
	left := block.Output[0][:block.NumFrames]
	right := block.Output[1][:block.NumFrames]
	if replaceOutput {
		synth.Render(left, right)
		return nil
	}
	tmpLeft := make([]float32, block.NumFrames)
	tmpRight := make([]float32, block.NumFrames)
	synth.Render(tmpLeft, tmpRight)
	for i := 0; i < block.NumFrames; i++ {
		left[i] += tmpLeft[i]
		right[i] += tmpRight[i]
	}
	return nil
}

func (e *MeltyEngine) SendEvent(endpointID string, value float64, timeout float64) {}

func (e *MeltyEngine) SendValue(endpointID string, value float64, rampFrames int, timeout float64) {
}

func (e *MeltyEngine) SendBPM(bpm float64)                                               {}
func (e *MeltyEngine) SendTimeSig(numerator, denominator uint32)                         {}
func (e *MeltyEngine) SendTransportState(playing, recording, looping bool)               {}
func (e *MeltyEngine) SendPosition(frame int64, quarterNote, barStartQuarterNote float64) {}

func (e *MeltyEngine) WantsTimecodeEvents() bool { return false }

func (e *MeltyEngine) SetOutputEventCallback(fn OutputEventFunc) { e.onOutput = fn }

func (e *MeltyEngine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.synth != nil {
		e.synth.Reset()
	}
}

func (e *MeltyEngine) Close() error { return nil }
