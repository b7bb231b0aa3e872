// Package command routes validated API intents to the transceiver
// adapter.
//
// The orchestrator is the container's single point of mutual exclusion:
// the adapter underneath assumes one caller at a time, so every operation
// here takes the orchestrator lock before touching it. Each operation
// runs under its configured timeout, is written to the audit trail, and
// publishes the matching telemetry event.
package command

import (
	"context"
	"time"

	"github.com/cat-control/ccc/internal/adapter"
)

// OrchestratorPort defines the interface the API needs from the
// orchestrator.
type OrchestratorPort interface {
	Connect(ctx context.Context, port string) error
	Disconnect(ctx context.Context) error
	SendRaw(ctx context.Context, frame []byte) ([]byte, error)
	SetFrequency(ctx context.Context, hz int64) error
	GetFrequency(ctx context.Context) (uint64, error)
	State() adapter.TransceiverState
}

// AuditLogger records command outcomes. A nil implementation is allowed.
type AuditLogger interface {
	LogAction(ctx context.Context, action string, params map[string]interface{}, err error, latency time.Duration)
}

// EventPublisher distributes telemetry events.
type EventPublisher interface {
	PublishType(eventType string, data map[string]interface{})
}
