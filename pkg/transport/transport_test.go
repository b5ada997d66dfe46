package transport

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipeSendRecvRoundTrip(t *testing.T) {
	a, b := NewPipe(4)
	require.NoError(t, a.Send(Message{"type": "ping"}))
	got, err := b.Recv()
	require.NoError(t, err)
	assert.Equal(t, "ping", got.Type())
}

func TestPipeCloseSignalsPeerRecv(t *testing.T) {
	a, b := NewPipe(4)
	require.NoError(t, a.Close())
	_, err := b.Recv()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPipeSendAfterCloseErrors(t *testing.T) {
	a, _ := NewPipe(1)
	require.NoError(t, a.Close())
	err := a.Send(Message{"type": "x"})
	assert.ErrorIs(t, err, ErrClosed)
}

// pipeReadWriteCloser adapts an io.Pipe pair into an io.ReadWriteCloser
// for JSONStream tests.
type pipeReadWriteCloser struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func (p pipeReadWriteCloser) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p pipeReadWriteCloser) Write(b []byte) (int, error) { return p.w.Write(b) }
func (p pipeReadWriteCloser) Close() error {
	p.r.Close()
	return p.w.Close()
}

func TestJSONStreamSendRecvRoundTrip(t *testing.T) {
	clientR, serverW := io.Pipe()
	serverR, clientW := io.Pipe()

	client := NewJSONStream(pipeReadWriteCloser{r: clientR, w: clientW})
	server := NewJSONStream(pipeReadWriteCloser{r: serverR, w: serverW})

	done := make(chan error, 1)
	go func() {
		done <- client.Send(Message{"type": "req_status"})
	}()

	got, err := server.Recv()
	require.NoError(t, err)
	require.NoError(t, <-done)
	assert.Equal(t, "req_status", got.Type())
}

func TestJSONStreamPreservesFieldTypes(t *testing.T) {
	clientR, serverW := io.Pipe()
	serverR, clientW := io.Pipe()
	client := NewJSONStream(pipeReadWriteCloser{r: clientR, w: clientW})
	server := NewJSONStream(pipeReadWriteCloser{r: serverR, w: serverW})

	go func() {
		_ = client.Send(Message{"type": "send_value", "id": "gain", "value": 0.5})
	}()

	got, err := server.Recv()
	require.NoError(t, err)
	assert.Equal(t, "gain", got["id"])
	assert.Equal(t, 0.5, got["value"])
}
