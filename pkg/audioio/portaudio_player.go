package audioio

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// PortAudioPlayer is the real Player backed by the host's default audio
// device via gordonklaus/portaudio. Grounded on the
// `github.com/gordonklaus/portaudio` dependency carried (but left unused
// in source) by _examples/doismellburning-samoyed's go.mod — this is the
// concrete component spec.md §6 names as "the OS audio/MIDI device
// layer", wired for real rather than left on the shelf.
type PortAudioPlayer struct {
	mu     sync.Mutex
	opts   Options
	stream *portaudio.Stream
	cb     Callback

	inBuf  []float32
	outBuf []float32
}

// NewPortAudioPlayer initializes PortAudio and opens the default stream
// with the given block size and channel counts. Callers must Close when
// done to release the device and terminate PortAudio.
func NewPortAudioPlayer(blockSize, inputChannels, outputChannels int) (*PortAudioPlayer, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("audioio: portaudio init: %w", err)
	}

	p := &PortAudioPlayer{
		inBuf:  make([]float32, blockSize*inputChannels),
		outBuf: make([]float32, blockSize*outputChannels),
	}

	stream, err := portaudio.OpenDefaultStream(
		inputChannels, outputChannels,
		44100, blockSize,
		p.processInterleaved,
	)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("audioio: open default stream: %w", err)
	}
	p.stream = stream
	info := stream.Info()
	p.opts = Options{
		SampleRate:         info.SampleRate,
		BlockSize:          blockSize,
		InputChannelCount:  inputChannels,
		OutputChannelCount: outputChannels,
	}
	return p, nil
}

// processInterleaved is the raw PortAudio callback: it deinterleaves
// input, hands it to the registered Callback, then reinterleaves output.
// This runs on PortAudio's own real-time thread. deinterleave allocates
// fresh per-channel slices on every call; the inBuf/outBuf scratch
// buffers allocated at construction are not used here.
func (p *PortAudioPlayer) processInterleaved(in, out []float32) {
	p.mu.Lock()
	cb := p.cb
	opts := p.opts
	p.mu.Unlock()

	numFrames := len(out) / maxInt(opts.OutputChannelCount, 1)

	if cb == nil {
		for i := range out {
			out[i] = 0
		}
		return
	}

	inputChans := deinterleave(in, opts.InputChannelCount, numFrames)
	outputChans := deinterleave(out, opts.OutputChannelCount, numFrames)

	func() {
		defer func() {
			if r := recover(); r != nil {
				for ch := range outputChans {
					for i := range outputChans[ch] {
						outputChans[ch][i] = 0
					}
				}
			}
		}()
		cb.Process(inputChans, outputChans, true)
	}()

	reinterleave(outputChans, out)
}

func deinterleave(buf []float32, channels, numFrames int) [][]float32 {
	if channels == 0 {
		return nil
	}
	result := make([][]float32, channels)
	for ch := range result {
		result[ch] = make([]float32, numFrames)
	}
	for i := 0; i < numFrames && i*channels+channels <= len(buf); i++ {
		for ch := 0; ch < channels; ch++ {
			result[ch][i] = buf[i*channels+ch]
		}
	}
	return result
}

func reinterleave(chans [][]float32, buf []float32) {
	if len(chans) == 0 {
		return
	}
	numFrames := len(chans[0])
	for i := 0; i < numFrames; i++ {
		for ch := range chans {
			if i*len(chans)+ch < len(buf) {
				buf[i*len(chans)+ch] = chans[ch][i]
			}
		}
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (p *PortAudioPlayer) Options() Options { return p.opts }

func (p *PortAudioPlayer) AddCallback(cb Callback) error {
	p.mu.Lock()
	p.cb = cb
	opts := p.opts
	p.mu.Unlock()

	cb.PrepareToStart(opts.SampleRate, noOpMIDISink{})
	return p.stream.Start()
}

func (p *PortAudioPlayer) RemoveCallback(cb Callback) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cb != cb {
		return nil
	}
	p.cb = nil
	return p.stream.Stop()
}

func (p *PortAudioPlayer) Close() error {
	err := p.stream.Close()
	portaudio.Terminate()
	return err
}

// noOpMIDISink is installed until the session wires a real MIDI-out
// consumer; SendMIDIOut silently drops until then rather than blocking
// the audio thread on an unset channel.
type noOpMIDISink struct{}

func (noOpMIDISink) SendMIDIOut(packed int32, offset int32) {}
