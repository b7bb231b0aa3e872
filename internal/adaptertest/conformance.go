// Package adaptertest provides a conformance suite any transceiver
// adapter implementation must pass. Adapter packages run it from their
// own tests against a fresh instance.
package adaptertest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cat-control/ccc/internal/adapter"
	"github.com/cat-control/ccc/internal/catproto"
)

// RunConformance exercises the adapter contract: lifecycle, error
// taxonomy, and state reporting. newAdapter must return a fresh,
// connectable adapter on every call.
func RunConformance(t *testing.T, newAdapter func() adapter.ITransceiverAdapter) {
	t.Run("StartsDisconnected", func(t *testing.T) {
		a := newAdapter()
		assert.Equal(t, adapter.StatusDisconnected, a.Status())
		assert.False(t, a.State().Connected)
	})

	t.Run("ConnectReportsPort", func(t *testing.T) {
		a := newAdapter()
		require.NoError(t, a.Connect(context.Background(), "/dev/ttyUSB0"))
		assert.Equal(t, adapter.StatusConnected, a.Status())

		state := a.State()
		assert.True(t, state.Connected)
		assert.Equal(t, "/dev/ttyUSB0", state.Port)
	})

	t.Run("DisconnectIsIdempotent", func(t *testing.T) {
		a := newAdapter()
		require.NoError(t, a.Connect(context.Background(), "/dev/ttyUSB0"))
		require.NoError(t, a.Disconnect(context.Background()))
		require.NoError(t, a.Disconnect(context.Background()))
		assert.Equal(t, adapter.StatusDisconnected, a.Status())
	})

	t.Run("OperationsRequireConnection", func(t *testing.T) {
		a := newAdapter()
		ctx := context.Background()

		_, err := a.SendRaw(ctx, []byte{0x00, 0x00, 0x00, 0x00, 0x03})
		assert.ErrorIs(t, err, adapter.ErrNotConnected)

		err = a.SetFrequency(ctx, 7_100_000)
		assert.ErrorIs(t, err, adapter.ErrNotConnected)

		_, err = a.GetFrequency(ctx)
		assert.ErrorIs(t, err, adapter.ErrNotConnected)
	})

	t.Run("SetFrequencyRejectsOutOfRange", func(t *testing.T) {
		a := newAdapter()
		require.NoError(t, a.Connect(context.Background(), "/dev/ttyUSB0"))

		err := a.SetFrequency(context.Background(), catproto.MaxFrequencyHz)
		assert.ErrorIs(t, err, adapter.ErrValue)
	})

	t.Run("StateTracksFrequency", func(t *testing.T) {
		a := newAdapter()
		ctx := context.Background()
		require.NoError(t, a.Connect(ctx, "/dev/ttyUSB0"))
		require.NoError(t, a.SetFrequency(ctx, 14_074_000))

		assert.Equal(t, uint64(14_074_000), a.State().FrequencyHz)

		hz, err := a.GetFrequency(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(14_074_000), hz)
	})

	t.Run("CancelledContextFailsConnect", func(t *testing.T) {
		a := newAdapter()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		assert.Error(t, a.Connect(ctx, "/dev/ttyUSB0"))
	})
}
