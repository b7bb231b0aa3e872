package command

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cat-control/ccc/internal/adapter"
	"github.com/cat-control/ccc/internal/catproto"
	"github.com/cat-control/ccc/internal/config"
	"github.com/cat-control/ccc/internal/telemetry"
)

// Orchestrator serializes transceiver commands and fans their outcomes
// out to audit and telemetry.
type Orchestrator struct {
	mu sync.Mutex

	transceiver adapter.ITransceiverAdapter
	hub         EventPublisher
	audit       AuditLogger
	timeouts    config.CommandConfig
}

var _ OrchestratorPort = (*Orchestrator)(nil)

// NewOrchestrator creates an orchestrator for the given adapter. hub and
// auditLogger may be nil.
func NewOrchestrator(transceiver adapter.ITransceiverAdapter, hub EventPublisher, auditLogger AuditLogger, timeouts config.CommandConfig) *Orchestrator {
	return &Orchestrator{
		transceiver: transceiver,
		hub:         hub,
		audit:       auditLogger,
		timeouts:    timeouts,
	}
}

// Connect opens the link to the transceiver on the given port.
func (o *Orchestrator) Connect(ctx context.Context, port string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, o.timeouts.TimeoutConnect.Std())
	defer cancel()

	err := o.transceiver.Connect(ctx, port)
	o.logAudit(ctx, "connect", map[string]interface{}{"port": port}, err, time.Since(start))

	if err != nil {
		o.publishFault(err, "Failed to connect")
		return err
	}
	o.publish(telemetry.EventConnected, map[string]interface{}{"port": port})
	return nil
}

// Disconnect releases the link. Like the adapter underneath, it is
// idempotent.
func (o *Orchestrator) Disconnect(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, o.timeouts.TimeoutConnect.Std())
	defer cancel()

	err := o.transceiver.Disconnect(ctx)
	o.logAudit(ctx, "disconnect", nil, err, time.Since(start))

	if err != nil {
		o.publishFault(err, "Failed to disconnect")
		return err
	}
	o.publish(telemetry.EventDisconnected, nil)
	return nil
}

// SendRaw passes an ad-hoc command frame to the transceiver and returns
// the raw response.
func (o *Orchestrator) SendRaw(ctx context.Context, frame []byte) ([]byte, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, o.timeouts.TimeoutSendRaw.Std())
	defer cancel()

	resp, err := o.transceiver.SendRaw(ctx, frame)
	o.logAudit(ctx, "sendRaw", map[string]interface{}{"frame": fmt.Sprintf("%X", frame)}, err, time.Since(start))

	if err != nil {
		o.publishFault(err, "Raw command failed")
		return nil, err
	}
	return resp, nil
}

// SetFrequency tunes the transceiver. The int64 parameter lets the API
// layer pass negative values through so they are rejected here, before
// anything touches the transport.
func (o *Orchestrator) SetFrequency(ctx context.Context, hz int64) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	start := time.Now()
	params := map[string]interface{}{"frequencyHz": hz}

	if hz < 0 || hz >= int64(catproto.MaxFrequencyHz) {
		err := adapter.Wrap(adapter.ErrValue,
			fmt.Errorf("frequency %d Hz out of range [0, %d)", hz, int64(catproto.MaxFrequencyHz)))
		o.logAudit(ctx, "setFrequency", params, err, time.Since(start))
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeouts.TimeoutSetFrequency.Std())
	defer cancel()

	err := o.transceiver.SetFrequency(ctx, uint64(hz))
	o.logAudit(ctx, "setFrequency", params, err, time.Since(start))

	if err != nil {
		o.publishFault(err, "Failed to set frequency")
		return err
	}
	o.publish(telemetry.EventFrequencyChanged, map[string]interface{}{"frequencyHz": hz})
	return nil
}

// GetFrequency reads the current frequency from the transceiver.
func (o *Orchestrator) GetFrequency(ctx context.Context) (uint64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, o.timeouts.TimeoutGetFrequency.Std())
	defer cancel()

	hz, err := o.transceiver.GetFrequency(ctx)
	o.logAudit(ctx, "getFrequency", nil, err, time.Since(start))

	if err != nil {
		o.publishFault(err, "Failed to read frequency")
		return 0, err
	}
	return hz, nil
}

// State reports the adapter's last known state without touching the
// device.
func (o *Orchestrator) State() adapter.TransceiverState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.transceiver.State()
}

func (o *Orchestrator) logAudit(ctx context.Context, action string, params map[string]interface{}, err error, latency time.Duration) {
	if o.audit != nil {
		o.audit.LogAction(ctx, action, params, err, latency)
	}
}

func (o *Orchestrator) publish(eventType string, data map[string]interface{}) {
	if o.hub == nil {
		return
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	data["ts"] = time.Now().UTC().Format(time.RFC3339)
	o.hub.PublishType(eventType, data)
}

func (o *Orchestrator) publishFault(err error, message string) {
	o.publish(telemetry.EventFault, map[string]interface{}{
		"code":    adapter.Code(err).Error(),
		"message": message,
	})
}
