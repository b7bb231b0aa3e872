// Package fake provides an in-memory transceiver adapter for tests and for
// running the container without hardware attached.
package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/cat-control/ccc/internal/adapter"
	"github.com/cat-control/ccc/internal/catproto"
)

// FakeAdapter implements ITransceiverAdapter against an in-memory radio.
type FakeAdapter struct {
	adapter.AdapterBase

	mu          sync.Mutex
	connected   bool
	port        string
	frequencyHz uint64

	// Error simulation
	failConnect bool
	failIO      bool
}

var _ adapter.ITransceiverAdapter = (*FakeAdapter)(nil)

// NewFakeAdapter creates a disconnected fake tuned to 145 MHz.
func NewFakeAdapter() *FakeAdapter {
	return &FakeAdapter{
		AdapterBase: adapter.AdapterBase{
			Model:      "Fake-Transceiver",
			ConnStatus: adapter.StatusDisconnected,
		},
		frequencyHz: 145_000_000,
	}
}

// SetFailConnect makes subsequent Connect calls fail.
func (f *FakeAdapter) SetFailConnect(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failConnect = fail
}

// SetFailIO makes subsequent transactions fail with an IO error.
func (f *FakeAdapter) SetFailIO(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failIO = fail
}

// Connect opens the fake link.
func (f *FakeAdapter) Connect(ctx context.Context, port string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failConnect {
		return adapter.Wrap(adapter.ErrConnection, fmt.Errorf("fake port %s unavailable", port))
	}
	if f.connected {
		return adapter.Wrap(adapter.ErrConnection, fmt.Errorf("already connected to %s", f.port))
	}
	f.connected = true
	f.port = port
	f.SetStatus(adapter.StatusConnected)
	return nil
}

// Disconnect closes the fake link. Idempotent.
func (f *FakeAdapter) Disconnect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.connected = false
	f.port = ""
	f.SetStatus(adapter.StatusDisconnected)
	return nil
}

// SendRaw answers any frame with a canned 5-byte status response.
func (f *FakeAdapter) SendRaw(ctx context.Context, frame []byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.checkLink(); err != nil {
		return nil, err
	}
	if len(frame) == 0 {
		return nil, adapter.Wrap(adapter.ErrValue, fmt.Errorf("empty command frame"))
	}
	return []byte{0x00, 0x00, 0x00, 0x00, 0x00}, nil
}

// SetFrequency stores the frequency after the same range check the real
// executor applies.
func (f *FakeAdapter) SetFrequency(ctx context.Context, hz uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if hz >= catproto.MaxFrequencyHz {
		return adapter.Wrap(adapter.ErrValue, fmt.Errorf("frequency %d Hz out of range", hz))
	}
	if err := f.checkLink(); err != nil {
		return err
	}
	f.frequencyHz = hz
	return nil
}

// GetFrequency returns the stored frequency.
func (f *FakeAdapter) GetFrequency(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.checkLink(); err != nil {
		return 0, err
	}
	return f.frequencyHz, nil
}

// State reports the fake link state.
func (f *FakeAdapter) State() adapter.TransceiverState {
	f.mu.Lock()
	defer f.mu.Unlock()

	return adapter.TransceiverState{
		Connected:   f.connected,
		Port:        f.port,
		FrequencyHz: f.frequencyHz,
	}
}

func (f *FakeAdapter) checkLink() error {
	if !f.connected {
		return adapter.Wrap(adapter.ErrNotConnected, fmt.Errorf("not connected"))
	}
	if f.failIO {
		return adapter.Wrap(adapter.ErrIO, fmt.Errorf("simulated serial failure"))
	}
	return nil
}
