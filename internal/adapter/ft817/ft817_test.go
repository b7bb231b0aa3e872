package ft817

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cat-control/ccc/internal/adapter"
	"github.com/cat-control/ccc/internal/catproto"
	"github.com/cat-control/ccc/internal/serialport"
)

// fakeTransport records writes and replays canned responses.
type fakeTransport struct {
	writes    [][]byte
	responses [][]byte
	writeErr  error
	readErr   error
	closes    int
}

func (f *fakeTransport) Write(p []byte) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	frame := make([]byte, len(p))
	copy(frame, p)
	f.writes = append(f.writes, frame)
	return nil
}

func (f *fakeTransport) Read(max int) ([]byte, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	if len(f.responses) == 0 {
		return []byte{}, nil
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	if len(resp) > max {
		resp = resp[:max]
	}
	return resp, nil
}

func (f *fakeTransport) Close() error {
	f.closes++
	return nil
}

// newTestExecutor returns a connected executor backed by a fake transport
// with the settle delay disabled.
func newTestExecutor(t *testing.T) (*Executor, *fakeTransport) {
	t.Helper()

	fake := &fakeTransport{}
	exec := New(Options{
		SettleDelay: -1,
		Dial: func(cfg serialport.Config) (serialport.Transport, error) {
			return fake, nil
		},
	})
	require.NoError(t, exec.Connect(context.Background(), "/dev/ttyUSB0"))
	return exec, fake
}

func TestConnectFailureStaysDisconnected(t *testing.T) {
	exec := New(Options{
		Dial: func(cfg serialport.Config) (serialport.Transport, error) {
			return nil, adapter.Wrap(adapter.ErrConnection, fmt.Errorf("port busy"))
		},
	})

	err := exec.Connect(context.Background(), "/dev/ttyUSB0")
	require.Error(t, err)
	assert.ErrorIs(t, err, adapter.ErrConnection)
	assert.Equal(t, adapter.StatusDisconnected, exec.Status())
	assert.False(t, exec.State().Connected)
}

func TestConnectTwiceRejected(t *testing.T) {
	exec, _ := newTestExecutor(t)

	err := exec.Connect(context.Background(), "/dev/ttyUSB1")
	require.Error(t, err)
	assert.ErrorIs(t, err, adapter.ErrConnection)
	// The original link stays up.
	assert.Equal(t, adapter.StatusConnected, exec.Status())
	assert.Equal(t, "/dev/ttyUSB0", exec.State().Port)
}

func TestExecuteWhileDisconnected(t *testing.T) {
	exec := New(Options{})

	_, err := exec.Execute(context.Background(), catproto.NewCommand(catproto.OpGetFrequency))
	require.Error(t, err)
	assert.ErrorIs(t, err, adapter.ErrNotConnected)
	assert.Equal(t, adapter.StatusDisconnected, exec.Status())
}

func TestDisconnectIdempotent(t *testing.T) {
	exec, fake := newTestExecutor(t)

	require.NoError(t, exec.Disconnect(context.Background()))
	assert.Equal(t, adapter.StatusDisconnected, exec.Status())

	require.NoError(t, exec.Disconnect(context.Background()))
	assert.Equal(t, adapter.StatusDisconnected, exec.Status())
	assert.Equal(t, 1, fake.closes)
}

func TestExecuteWritesFrameAndReadsResponse(t *testing.T) {
	exec, fake := newTestExecutor(t)
	fake.responses = [][]byte{{0x00, 0x00, 0x50, 0x14, 0x02}}

	resp, err := exec.Execute(context.Background(), catproto.NewCommand(catproto.OpGetFrequency))
	require.NoError(t, err)

	require.Len(t, fake.writes, 1)
	assert.Equal(t, []byte{0x03}, fake.writes[0])
	assert.Equal(t, []byte{0x00, 0x00, 0x50, 0x14, 0x02}, resp)
}

func TestExecuteShortResponsePassedThrough(t *testing.T) {
	exec, fake := newTestExecutor(t)
	fake.responses = [][]byte{{0x00, 0x14}}

	resp, err := exec.Execute(context.Background(), catproto.NewCommand(catproto.OpGetStatus))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x14}, resp)
}

func TestExecuteSettleDelayBetweenWriteAndRead(t *testing.T) {
	exec, fake := newTestExecutor(t)
	exec.opts.SettleDelay = 100 * time.Millisecond

	var slept []time.Duration
	exec.sleep = func(d time.Duration) {
		// The write must already be on the wire when the delay runs.
		assert.Len(t, fake.writes, 1)
		slept = append(slept, d)
	}

	_, err := exec.Execute(context.Background(), catproto.NewCommand(catproto.OpGetFrequency))
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{100 * time.Millisecond}, slept)
}

func TestExecuteWriteErrorSurfacesImmediately(t *testing.T) {
	exec, fake := newTestExecutor(t)
	fake.writeErr = adapter.Wrap(adapter.ErrIO, fmt.Errorf("unplugged"))

	_, err := exec.Execute(context.Background(), catproto.NewCommand(catproto.OpGetFrequency))
	require.Error(t, err)
	assert.ErrorIs(t, err, adapter.ErrIO)
	// No retry happened.
	assert.Empty(t, fake.writes)
}

func TestSetFrequencyEncodesWireFrame(t *testing.T) {
	exec, fake := newTestExecutor(t)
	fake.responses = [][]byte{{0x00}}

	require.NoError(t, exec.SetFrequency(context.Background(), 145_000_000))

	require.Len(t, fake.writes, 1)
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x54, 0x10, 0x01}, fake.writes[0])
	assert.Equal(t, uint64(145_000_000), exec.State().FrequencyHz)
}

func TestSetFrequencyOutOfRangeNeverTouchesTransport(t *testing.T) {
	exec, fake := newTestExecutor(t)

	err := exec.SetFrequency(context.Background(), catproto.MaxFrequencyHz)
	require.Error(t, err)
	assert.ErrorIs(t, err, adapter.ErrValue)
	assert.Empty(t, fake.writes)
}

func TestSetFrequencyDiscardsResponse(t *testing.T) {
	exec, fake := newTestExecutor(t)
	// Whatever the device acks with, including garbage, is ignored.
	fake.responses = [][]byte{{0xF0, 0x0D}}

	require.NoError(t, exec.SetFrequency(context.Background(), 7_100_000))
}

func TestGetFrequencyDecodesResponse(t *testing.T) {
	exec, fake := newTestExecutor(t)
	fake.responses = [][]byte{{0x00, 0x00, 0x50, 0x14, 0x02}}

	hz, err := exec.GetFrequency(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(14_500_000), hz)
	assert.Equal(t, uint64(14_500_000), exec.State().FrequencyHz)
}

func TestGetFrequencyShortResponseIsProtocolError(t *testing.T) {
	exec, fake := newTestExecutor(t)
	fake.responses = [][]byte{{0x00, 0x00}}

	_, err := exec.GetFrequency(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, adapter.ErrProtocol)
}

func TestSendRawPassthrough(t *testing.T) {
	exec, fake := newTestExecutor(t)
	fake.responses = [][]byte{{0xAA}}

	resp, err := exec.SendRaw(context.Background(), []byte{0x00, 0x00, 0x00, 0x02, 0x07})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA}, resp)
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x02, 0x07}, fake.writes[0])
}

func TestSendRawEmptyFrameRejected(t *testing.T) {
	exec, fake := newTestExecutor(t)

	_, err := exec.SendRaw(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, adapter.ErrValue)
	assert.Empty(t, fake.writes)
}

func TestExecuteHonorsCancelledContext(t *testing.T) {
	exec, fake := newTestExecutor(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := exec.Execute(ctx, catproto.NewCommand(catproto.OpGetFrequency))
	require.Error(t, err)
	assert.Empty(t, fake.writes)
}
