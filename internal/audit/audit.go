// Package audit writes the container's action trail.
//
// Every command that reaches the orchestrator produces one JSONL record:
// who did what, with which parameters, how it ended, and how long it
// took. The trail is append-only and size-rotated; a nil *Logger
// disables auditing without burdening callers.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/cat-control/ccc/internal/adapter"
	"github.com/cat-control/ccc/internal/auth"
	"github.com/cat-control/ccc/internal/config"
)

// Entry represents a single audit record.
type Entry struct {
	Timestamp time.Time              `json:"ts"`
	User      string                 `json:"user"`
	Action    string                 `json:"action"`
	Params    map[string]interface{} `json:"params,omitempty"`
	Outcome   string                 `json:"outcome"`
	Code      string                 `json:"code"`
	LatencyMS int64                  `json:"latencyMs"`
}

// Logger writes audit entries to a rotated JSONL file.
type Logger struct {
	mu  sync.Mutex
	out *lumberjack.Logger
}

// NewLogger creates an audit logger, or nil when no file is configured.
func NewLogger(cfg config.AuditConfig) *Logger {
	if cfg.File == "" {
		return nil
	}
	return &Logger{
		out: &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		},
	}
}

// LogAction records one command outcome. The user is taken from the auth
// claims on the context; err of nil means success.
func (l *Logger) LogAction(ctx context.Context, action string, params map[string]interface{}, err error, latency time.Duration) {
	if l == nil {
		return
	}

	entry := Entry{
		Timestamp: time.Now().UTC(),
		User:      auth.SubjectFromContext(ctx),
		Action:    action,
		Params:    params,
		Outcome:   outcomeOf(err),
		Code:      CodeOf(err),
		LatencyMS: latency.Milliseconds(),
	}
	l.write(entry)
}

// Close releases the underlying file.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.out.Close()
}

func (l *Logger) write(entry Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "audit: marshal entry: %v\n", err)
		return
	}
	if _, err := l.out.Write(append(data, '\n')); err != nil {
		fmt.Fprintf(os.Stderr, "audit: write entry: %v\n", err)
	}
}

func outcomeOf(err error) string {
	if err == nil {
		return "success"
	}
	return "error"
}

// CodeOf maps an error to its audit code using the adapter taxonomy.
func CodeOf(err error) string {
	switch {
	case err == nil:
		return "SUCCESS"
	case errors.Is(err, adapter.ErrConnection):
		return "CONNECTION"
	case errors.Is(err, adapter.ErrNotConnected):
		return "NOT_CONNECTED"
	case errors.Is(err, adapter.ErrIO):
		return "IO"
	case errors.Is(err, adapter.ErrValue):
		return "INVALID_VALUE"
	case errors.Is(err, adapter.ErrProtocol):
		return "PROTOCOL"
	case errors.Is(err, context.DeadlineExceeded):
		return "TIMEOUT"
	default:
		return "ERROR"
	}
}
