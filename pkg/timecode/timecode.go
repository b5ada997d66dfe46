// Package timecode implements the Timecode Generator (spec.md §4.5): it
// converts host transport snapshots into sample-accurate patch events,
// reading lock-free atomic slots written from any thread and comparing
// against a last-sent cache once per render block.
package timecode

import (
	"math"
	"sync/atomic"
)

// Transport flag bits packed into the transport-state atomic, per
// spec.md §4.5.
const (
	FlagPlaying uint32 = 1 << iota
	FlagRecording
	FlagLooping
)

// Sink receives the events the generator emits; pkg/player wires this to
// the bound Engine's Send* methods.
type Sink interface {
	SendTransportState(playing, recording, looping bool)
	SendBPM(bpm float64)
	SendTimeSig(numerator, denominator uint32)
	SendPosition(frame int64, quarterNote, barStartQuarterNote float64)
}

// Generator holds the atomic host-thread slots and the last-sent cache
// compared against them each render block.
type Generator struct {
	bpmBits   atomic.Uint64 // math.Float64bits(bpm)
	timeSig   atomic.Uint32 // (numerator<<16)|denominator
	transport atomic.Uint32 // FlagPlaying|FlagRecording|FlagLooping

	lastBPM       float64
	lastTimeSig   uint32
	lastTransport uint32
	initialized   bool
}

// New creates a Generator with BPM 120, time signature 4/4, transport
// stopped — the same defaults most hosts start a patch with.
func New() *Generator {
	g := &Generator{}
	g.SetBPM(120)
	g.SetTimeSig(4, 4)
	return g
}

// SetBPM writes a new tempo. Safe to call from any thread; never blocks
// (spec.md §5 "Transport setters ... are callable from any thread
// because they only write atomics").
func (g *Generator) SetBPM(bpm float64) {
	g.bpmBits.Store(math.Float64bits(bpm))
}

// SetTimeSig writes a new time signature, packed as Design Notes
// prescribes: "(numerator, denominator) into a single 32-bit atomic
// preserves consistency without a lock".
func (g *Generator) SetTimeSig(numerator, denominator uint32) {
	g.timeSig.Store(numerator<<16 | denominator&0xFFFF)
}

// SetTransportState writes the playing/recording/looping bitfield.
func (g *Generator) SetTransportState(playing, recording, looping bool) {
	var v uint32
	if playing {
		v |= FlagPlaying
	}
	if recording {
		v |= FlagRecording
	}
	if looping {
		v |= FlagLooping
	}
	g.transport.Store(v)
}

// Emit reads the current atomic slots, emits change events for anything
// that differs from the last-sent cache, then always emits a position
// event for frame/sampleRate (spec.md §4.5). Must be called once per
// render block at offset 0, on the audio thread. Sink methods write
// through to Engine.Send*; the Engine interface does not require those
// to be lock-free (SineEngine's take its mutex).
func (g *Generator) Emit(sink Sink, totalFramesRendered int64, sampleRate float64) {
	bpm := math.Float64frombits(g.bpmBits.Load())
	timeSig := g.timeSig.Load()
	transport := g.transport.Load()

	if !g.initialized || transport != g.lastTransport {
		sink.SendTransportState(transport&FlagPlaying != 0, transport&FlagRecording != 0, transport&FlagLooping != 0)
	}
	if !g.initialized || bpm != g.lastBPM {
		sink.SendBPM(bpm)
	}
	if !g.initialized || timeSig != g.lastTimeSig {
		num, den := timeSig>>16, timeSig&0xFFFF
		sink.SendTimeSig(num, den)
	}

	g.lastBPM = bpm
	g.lastTimeSig = timeSig
	g.lastTransport = transport
	g.initialized = true

	quarterNote, barStartQuarterNote := Position(totalFramesRendered, bpm, timeSig>>16, timeSig&0xFFFF, sampleRate)
	sink.SendPosition(totalFramesRendered, quarterNote, barStartQuarterNote)
}

// Position computes (quarterNote, barStartQuarterNote) for a given frame
// count per spec.md §4.5's formula. If num, den, or bpm is zero,
// positional fields are reported as 0 (spec.md explicit edge case).
func Position(frame int64, bpm float64, num, den uint32, sampleRate float64) (quarterNote, barStartQuarterNote float64) {
	if num == 0 || den == 0 || bpm == 0 {
		return 0, 0
	}
	samplesPerQuarterNote := sampleRate / (bpm / 60)
	quarterNote = float64(frame) / samplesPerQuarterNote
	quartersPerBar := 4 * float64(num) / float64(den)
	barStartQuarterNote = math.Floor(quarterNote/quartersPerBar) * quartersPerBar
	return quarterNote, barStartQuarterNote
}
