// Package player implements the Patch Player (spec.md §4.1): the
// component that owns an Engine and an audio/MIDI source, runs the
// chunked render algorithm, and routes control-thread state changes
// (tempo, transport, patch load) into the audio thread without ever
// blocking it.
package player

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/patchkit/core/pkg/audioio"
	"github.com/patchkit/core/pkg/engine"
	"github.com/patchkit/core/pkg/midi"
	"github.com/patchkit/core/pkg/timecode"
)

// Status is an immutable snapshot of patch state, published by atomic
// pointer swap (spec.md §9 "Globally mutable status ... publishing =
// atomic pointer swap to a fresh immutable record").
type Status struct {
	Connected   bool
	Loaded      bool
	Manifest    *engine.Manifest
	Error       string
	HTTPRootURL string
}

// OutputEventFunc receives engine output events routed through the
// player (spec.md §4.1 "Engine output events"); console-purpose events
// are filtered out before reaching this sink, since those go to the
// diagnostic sink instead.
type OutputEventFunc func(frame int32, endpointID string, value float64)

// Player is the C5 Patch Player. Zero value is not usable; construct
// with New.
type Player struct {
	eng engine.Engine

	audioOpts atomic.Pointer[audioio.Options]
	status    atomic.Pointer[Status]

	mu              sync.Mutex
	audioSource     audioio.Player
	desiredPlaying  bool
	patchReady      bool
	registered      bool
	totalFrames     int64
	manifestLoaded  bool
	onPatchLoaded   func()
	onPatchUnloaded func()
	onStatusChange  func(Status)
	onOutputEvent   OutputEventFunc
	onConsoleEvent  func(frame int32, value float64)

	timecodeGen *timecode.Generator

	pendingEvents *midi.EventQueue

	renderMu sync.Mutex // serializes against concurrent Process calls from one audio source
}

// New creates a Player wrapping eng. The player starts unbound, with
// safe default audio options installed (spec.md §4.1 "on unbind it
// installs safe defaults").
func New(eng engine.Engine) *Player {
	p := &Player{eng: eng, timecodeGen: timecode.New(), pendingEvents: midi.NewEventQueue()}
	p.audioOpts.Store(&audioio.DefaultOptions)
	p.status.Store(&Status{})
	eng.SetOutputEventCallback(func(ev engine.OutputEvent) {
		p.handleOutputEvent(ev)
	})
	return p
}

// OnPatchLoaded, OnPatchUnloaded, OnStatusChange register the optional
// lifecycle callbacks spec.md §4.1 names, following the teacher's
// BaseProcessor OnInitialize/OnSetActive/OnReset pattern of plain setter
// methods over a private func field.
func (p *Player) OnPatchLoaded(fn func())            { p.onPatchLoaded = fn }
func (p *Player) OnPatchUnloaded(fn func())           { p.onPatchUnloaded = fn }
func (p *Player) OnStatusChange(fn func(Status))      { p.onStatusChange = fn }
func (p *Player) OnOutputEvent(fn OutputEventFunc)    { p.onOutputEvent = fn }
func (p *Player) OnConsoleEvent(fn func(int32, float64)) { p.onConsoleEvent = fn }

// Status returns the current immutable status snapshot.
func (p *Player) Status() Status {
	return *p.status.Load()
}

func (p *Player) publishStatus(s Status) {
	p.status.Store(&s)
	if p.onStatusChange != nil {
		p.onStatusChange(s)
	}
}

// SetAudioIO binds or unbinds the audio/MIDI source (spec.md §4.1
// setAudioIO). A nil source unbinds and installs safe defaults so the
// patch remains loadable.
func (p *Player) SetAudioIO(source audioio.Player) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.registered && p.audioSource != nil {
		if err := p.audioSource.RemoveCallback(p); err != nil {
			return err
		}
		p.registered = false
	}

	p.audioSource = source
	if source == nil {
		p.audioOpts.Store(&audioio.DefaultOptions)
		p.eng.SetSampleRate(audioio.DefaultOptions.SampleRate)
	} else {
		opts := source.Options()
		p.audioOpts.Store(&opts)
		p.eng.SetSampleRate(opts.SampleRate)
	}

	p.updateRegistrationLocked()
	return nil
}

// LoadPatch delegates to the engine and publishes a new Status
// (spec.md §4.1 loadPatch).
func (p *Player) LoadPatch(path string) bool {
	manifest, err := p.eng.Load(path)
	if err != nil {
		p.publishStatus(Status{Connected: true, Loaded: false, Error: err.Error()})
		return false
	}

	p.mu.Lock()
	p.patchReady = true
	p.manifestLoaded = true
	p.mu.Unlock()

	p.publishStatus(Status{Connected: true, Loaded: true, Manifest: &manifest})
	if p.onPatchLoaded != nil {
		p.onPatchLoaded()
	}

	p.mu.Lock()
	p.updateRegistrationLocked()
	p.mu.Unlock()
	return true
}

// UnloadPatch marks the patch not-ready, de-registering the audio
// callback per the effective-playback predicate.
func (p *Player) UnloadPatch() {
	p.mu.Lock()
	p.patchReady = false
	p.manifestLoaded = false
	p.updateRegistrationLocked()
	p.mu.Unlock()

	p.publishStatus(Status{Connected: true, Loaded: false})
	if p.onPatchUnloaded != nil {
		p.onPatchUnloaded()
	}
}

// Start and Stop set the desired-playing flag (spec.md §4.1).
func (p *Player) Start() {
	p.mu.Lock()
	p.desiredPlaying = true
	p.updateRegistrationLocked()
	p.mu.Unlock()
}

func (p *Player) Stop() {
	p.mu.Lock()
	p.desiredPlaying = false
	p.updateRegistrationLocked()
	p.mu.Unlock()
}

// updateRegistrationLocked applies the effective-playback predicate:
// the callback is registered with the audio source iff
// desiredPlaying && patchReady (spec.md §4.1). Must be called with mu
// held.
func (p *Player) updateRegistrationLocked() {
	if p.audioSource == nil {
		return
	}
	want := p.desiredPlaying && p.patchReady
	if want && !p.registered {
		if err := p.audioSource.AddCallback(p); err == nil {
			p.registered = true
		}
	} else if !want && p.registered {
		_ = p.audioSource.RemoveCallback(p)
		p.registered = false
	}
}

// SetTempo, SetTimeSig, SetTransport write atomically to the timecode
// generator's lock-free slots; they never block (spec.md §4.1).
func (p *Player) SetTempo(bpm float64)                           { p.timecodeGen.SetBPM(bpm) }
func (p *Player) SetTimeSig(num, den uint32)                     { p.timecodeGen.SetTimeSig(num, den) }
func (p *Player) SetTransport(playing, recording, looping bool) {
	p.timecodeGen.SetTransportState(playing, recording, looping)
}

// TotalFramesRendered returns the running frame counter.
func (p *Player) TotalFramesRendered() int64 {
	return atomic.LoadInt64(&p.totalFrames)
}

// PrepareToStart implements audioio.Callback.
func (p *Player) PrepareToStart(sampleRate float64, midiOut audioio.MIDIOutSink) {
	p.eng.SetSampleRate(sampleRate)
}

// AddIncomingMIDIEvent implements audioio.Callback: it is called once
// per incoming short message before Process for the block containing
// that offset. It decodes the packed short message and queues the event
// in pendingEvents; the next Process call drains that queue and chunks
// the block around the queued events. Messages that do not decode are
// dropped.
func (p *Player) AddIncomingMIDIEvent(packed int32, offset int32) {
	ev, ok := midi.EventFromShortMessage(packed, offset)
	if !ok {
		return
	}
	p.pendingEvents.Add(ev)
}

var _ audioio.Callback = (*Player)(nil)

// Process implements audioio.Callback and is the render algorithm's
// entry point (spec.md §4.1 "Render algorithm"). It holds renderMu for
// the whole call, serializing overlapping calls (which never happens for
// a single real audio device, but guards FakePlayer-driven concurrent
// tests), and pendingEvents.Drain takes the event queue's mutex. It is
// not allocation-free: every call allocates the drained event slice, the
// chunker's per-block queue and sub-block list, and per-sub-block channel
// slices.
func (p *Player) Process(input, output [][]float32, replaceOutput bool) {
	p.renderMu.Lock()
	defer p.renderMu.Unlock()

	numFrames := 0
	if len(output) > 0 {
		numFrames = len(output[0])
	}

	events := p.pendingEvents.Drain()

	defer func() {
		if r := recover(); r != nil {
			for ch := range output {
				for i := range output[ch] {
					output[ch][i] = 0
				}
			}
			p.handleRenderFailure(fmt.Sprintf("%v", r))
		}
	}()

	opts := p.audioOpts.Load()
	if p.eng.WantsTimecodeEvents() {
		p.timecodeGen.Emit(p, p.TotalFramesRendered(), opts.SampleRate)
	}

	blocks := Chunk(int32(numFrames), events)
	for _, sub := range blocks {
		sliceOut := sliceChannels(output, sub.Start, sub.End)
		sliceIn := sliceChannels(input, sub.Start, sub.End)
		block := engine.Block{
			Input:      sliceIn,
			Output:     sliceOut,
			NumFrames:  int(sub.End - sub.Start),
			MIDIEvents: sub.Events,
			SampleRate: opts.SampleRate,
		}
		if err := p.eng.ProcessChunk(block, replaceOutput); err != nil {
			panic(err)
		}
	}

	atomic.AddInt64(&p.totalFrames, int64(numFrames))
}

func sliceChannels(chans [][]float32, start, end int32) [][]float32 {
	if chans == nil {
		return nil
	}
	out := make([][]float32, len(chans))
	for i, ch := range chans {
		if int(end) <= len(ch) {
			out[i] = ch[start:end]
		} else {
			out[i] = ch[start:]
		}
	}
	return out
}

// handleRenderFailure implements spec.md §4.1 "Failure semantics": a
// render exception aborts the current block (already zero-filled by the
// caller), disables the callback, and publishes an error status.
func (p *Player) handleRenderFailure(msg string) {
	p.mu.Lock()
	p.patchReady = false
	p.updateRegistrationLocked()
	p.mu.Unlock()
	p.publishStatus(Status{Connected: true, Loaded: true, Error: msg})
}

func (p *Player) handleOutputEvent(ev engine.OutputEvent) {
	if ev.EndpointID == "console" {
		if p.onConsoleEvent != nil {
			p.onConsoleEvent(ev.Frame, ev.Value)
		}
		return
	}
	if p.onOutputEvent != nil {
		p.onOutputEvent(ev.Frame, ev.EndpointID, ev.Value)
	}
}

// timecode.Sink implementation: the player forwards generator events
// straight to the engine.
func (p *Player) SendTransportState(playing, recording, looping bool) {
	p.eng.SendTransportState(playing, recording, looping)
}
func (p *Player) SendBPM(bpm float64)                       { p.eng.SendBPM(bpm) }
func (p *Player) SendTimeSig(numerator, denominator uint32) { p.eng.SendTimeSig(numerator, denominator) }
func (p *Player) SendPosition(frame int64, quarterNote, barStartQuarterNote float64) {
	p.eng.SendPosition(frame, quarterNote, barStartQuarterNote)
}
