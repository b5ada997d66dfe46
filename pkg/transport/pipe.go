package transport

import (
	"errors"
	"sync"
)

// ErrClosed is returned by Send/Recv on a closed Pipe end.
var ErrClosed = errors.New("transport: pipe closed")

// Pipe is an in-memory Transport backed by a buffered channel, used in
// tests in place of a real host connection. NewPipe
// returns two ends; sending on one is received on the other, the way
// net.Pipe models a full-duplex socket without a real network.
type Pipe struct {
	out    chan Message
	in     chan Message
	mu     sync.Mutex
	closed bool
}

// NewPipe creates a connected pair of Pipe ends with the given channel
// buffer depth.
func NewPipe(buffer int) (a, b *Pipe) {
	ab := make(chan Message, buffer)
	ba := make(chan Message, buffer)
	a = &Pipe{out: ab, in: ba}
	b = &Pipe{out: ba, in: ab}
	return a, b
}

func (p *Pipe) Send(msg Message) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrClosed
	}
	p.out <- msg
	return nil
}

func (p *Pipe) Recv() (Message, error) {
	msg, ok := <-p.in
	if !ok {
		return nil, ErrClosed
	}
	return msg, nil
}

// Close closes this end's outbound channel, causing the peer's Recv to
// return ErrClosed once drained. Safe to call more than once.
func (p *Pipe) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.out)
	return nil
}
