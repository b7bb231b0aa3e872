// Package ft817 implements the transceiver adapter for the Yaesu FT-817
// CAT interface.
//
// The adapter is a transaction executor over a serial link: one command
// frame out, a fixed settle delay, one response frame in. It is the only
// stateful component of the protocol core — it tracks the link lifecycle
// (Disconnected/Connected) and owns the Link exclusively. Calls are not
// reentrant; the command orchestrator serializes access for multi-client
// use.
package ft817

import (
	"context"
	"fmt"
	"time"

	"github.com/cat-control/ccc/internal/adapter"
	"github.com/cat-control/ccc/internal/catproto"
	"github.com/cat-control/ccc/internal/serialport"
)

// DefaultSettleDelay is how long the executor waits between writing a
// command and reading the response. The device never signals readiness;
// the delay is a heuristic carried over from the CAT interface's known
// timing, not a protocol guarantee.
const DefaultSettleDelay = 100 * time.Millisecond

// Dialer opens a transport for a serial configuration. Tests substitute an
// in-memory implementation.
type Dialer func(serialport.Config) (serialport.Transport, error)

// Options configures the executor.
type Options struct {
	// Baud rate for the serial link; 0 means the serialport default.
	Baud int

	// ReadTimeout for the serial link; 0 means the serialport default.
	ReadTimeout time.Duration

	// SettleDelay between write and read; 0 means DefaultSettleDelay.
	// Negative disables the delay (tests only).
	SettleDelay time.Duration

	// ResponseLength caps a response read; 0 means the protocol's
	// nominal 5 bytes.
	ResponseLength int

	// Dial opens the transport; nil means a real serial port.
	Dial Dialer
}

// Executor sequences CAT transactions over a serial link.
type Executor struct {
	adapter.AdapterBase

	opts  Options
	dial  Dialer
	sleep func(time.Duration)

	// Link state; nil while Disconnected. Guarded by the single-owner
	// discipline, not by a lock.
	link   serialport.Transport
	port   string
	lastHz uint64
	hasHz  bool
}

var _ adapter.ITransceiverAdapter = (*Executor)(nil)

// New creates a disconnected executor.
func New(opts Options) *Executor {
	if opts.SettleDelay == 0 {
		opts.SettleDelay = DefaultSettleDelay
	}
	if opts.ResponseLength == 0 {
		opts.ResponseLength = catproto.ResponseLength
	}
	dial := opts.Dial
	if dial == nil {
		dial = func(cfg serialport.Config) (serialport.Transport, error) {
			return serialport.Open(cfg)
		}
	}
	return &Executor{
		AdapterBase: adapter.AdapterBase{
			Model:      "FT-817",
			ConnStatus: adapter.StatusDisconnected,
		},
		opts:  opts,
		dial:  dial,
		sleep: time.Sleep,
	}
}

// Connect opens the serial link. On failure the executor stays
// Disconnected with no partially-open handle.
func (e *Executor) Connect(ctx context.Context, port string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.link != nil {
		return adapter.Wrap(adapter.ErrConnection,
			fmt.Errorf("already connected to %s", e.port))
	}

	link, err := e.dial(serialport.Config{
		Device:      port,
		Baud:        e.opts.Baud,
		ReadTimeout: e.opts.ReadTimeout,
	})
	if err != nil {
		// Wrapped by the transport with the CONNECTION code already;
		// nothing was opened, so there is nothing to release.
		return err
	}

	e.link = link
	e.port = port
	e.SetStatus(adapter.StatusConnected)
	return nil
}

// Disconnect releases the serial link. Always succeeds: disconnecting a
// disconnected executor is a no-op.
func (e *Executor) Disconnect(ctx context.Context) error {
	if e.link == nil {
		return nil
	}
	_ = e.link.Close()
	e.link = nil
	e.port = ""
	e.SetStatus(adapter.StatusDisconnected)
	return nil
}

// Execute writes a command frame, waits the settle delay, and reads up to
// the nominal response length. A response shorter than requested is
// returned as-is, never padded and never treated as a fault. There are no
// retries: a failed write or read surfaces immediately.
func (e *Executor) Execute(ctx context.Context, cmd catproto.Command) ([]byte, error) {
	return e.transact(ctx, cmd.Encode())
}

// SendRaw passes an ad-hoc frame through the same write/delay/read
// discipline as a structured command.
func (e *Executor) SendRaw(ctx context.Context, frame []byte) ([]byte, error) {
	if len(frame) == 0 {
		return nil, adapter.Wrap(adapter.ErrValue, fmt.Errorf("empty command frame"))
	}
	return e.transact(ctx, frame)
}

// SetFrequency tunes the transceiver. The response is read but discarded:
// the CAT set-frequency acknowledgement carries no success/failure
// semantics worth checking.
func (e *Executor) SetFrequency(ctx context.Context, hz uint64) error {
	// Range check precedes any transport access.
	frame, err := catproto.EncodeFrequency(hz)
	if err != nil {
		return err
	}
	if _, err := e.transact(ctx, frame); err != nil {
		return err
	}
	e.lastHz = hz
	e.hasHz = true
	return nil
}

// GetFrequency reads the current frequency from the transceiver.
func (e *Executor) GetFrequency(ctx context.Context) (uint64, error) {
	resp, err := e.transact(ctx, catproto.NewCommand(catproto.OpGetFrequency).Encode())
	if err != nil {
		return 0, err
	}
	hz, err := catproto.DecodeFrequency(resp)
	if err != nil {
		return 0, err
	}
	e.lastHz = hz
	e.hasHz = true
	return hz, nil
}

// State reports the link state and last observed frequency.
func (e *Executor) State() adapter.TransceiverState {
	st := adapter.TransceiverState{
		Connected: e.link != nil,
		Port:      e.port,
	}
	if e.hasHz {
		st.FrequencyHz = e.lastHz
	}
	return st
}

// transact runs the single write/delay/read sequence against the link.
func (e *Executor) transact(ctx context.Context, frame []byte) ([]byte, error) {
	if e.link == nil {
		return nil, adapter.Wrap(adapter.ErrNotConnected,
			fmt.Errorf("not connected to transceiver"))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := e.link.Write(frame); err != nil {
		return nil, err
	}

	if e.opts.SettleDelay > 0 {
		e.sleep(e.opts.SettleDelay)
	}

	return e.link.Read(e.opts.ResponseLength)
}
