package adapter

import (
	"context"
)

// Connection state values reported by Status.
const (
	StatusDisconnected = "disconnected"
	StatusConnected    = "connected"
)

// TransceiverState represents the last known state of the transceiver link.
type TransceiverState struct {
	Connected   bool   `json:"connected"`
	Port        string `json:"port,omitempty"`
	FrequencyHz uint64 `json:"frequencyHz,omitempty"`
}

// ITransceiverAdapter defines the stable southbound adapter contract.
//
// All calls are synchronous: they return either a result or one of the
// normalized error kinds from this package. Callers are expected to
// serialize calls against a single adapter; the adapter itself does not
// queue or retry.
type ITransceiverAdapter interface {
	// Connect opens the serial link to the transceiver on the given port.
	Connect(ctx context.Context, port string) error

	// Disconnect releases the serial link. Idempotent: disconnecting an
	// already-disconnected adapter is a no-op, never an error.
	Disconnect(ctx context.Context) error

	// SendRaw writes an ad-hoc command frame and returns the raw response
	// frame, which may be shorter than the protocol's nominal length.
	SendRaw(ctx context.Context, frame []byte) ([]byte, error)

	// SetFrequency tunes the transceiver to the given frequency in Hz.
	// The device acknowledgement is discarded (fire-and-forget).
	SetFrequency(ctx context.Context, hz uint64) error

	// GetFrequency reads the current frequency in Hz from the transceiver.
	GetFrequency(ctx context.Context) (uint64, error)

	// Status reports the adapter's connection state.
	Status() string

	// State reports the last known transceiver state without touching
	// the device.
	State() TransceiverState
}

// AdapterBase provides common functionality for adapter implementations.
type AdapterBase struct {
	// Model identifies the transceiver model
	Model string

	// ConnStatus indicates the current connection status
	ConnStatus string
}

// GetModel returns the transceiver model.
func (a *AdapterBase) GetModel() string {
	return a.Model
}

// Status returns the connection status.
func (a *AdapterBase) Status() string {
	return a.ConnStatus
}

// SetStatus updates the connection status.
func (a *AdapterBase) SetStatus(status string) {
	a.ConnStatus = status
}
