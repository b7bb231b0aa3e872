// Package api implements the northbound HTTP JSON surface of the CAT
// Control Container.
//
// Every response uses the same envelope: {result, data?, code?,
// message?, details?, correlationId}. Errors carry the normalized codes
// from the adapter taxonomy so clients see one vocabulary regardless of
// where a failure originated.
package api

import (
	"context"
	"net/http"

	"github.com/cat-control/ccc/internal/command"
	"github.com/cat-control/ccc/internal/telemetry"
)

// OrchestratorPort is the command surface the API routes to.
type OrchestratorPort = command.OrchestratorPort

// TelemetryPort defines the minimal interface the API needs from the
// telemetry hub.
type TelemetryPort interface {
	Subscribe(ctx context.Context, w http.ResponseWriter, r *http.Request) error
}

var _ TelemetryPort = (*telemetry.Hub)(nil)
