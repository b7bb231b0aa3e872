// Package e2e exercises the whole container stack over HTTP: auth,
// command orchestration, the fake transceiver, and SSE telemetry.
package e2e

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cat-control/ccc/internal/adapter/fake"
	"github.com/cat-control/ccc/internal/api"
	"github.com/cat-control/ccc/internal/auth"
	"github.com/cat-control/ccc/internal/command"
	"github.com/cat-control/ccc/internal/config"
	"github.com/cat-control/ccc/internal/telemetry"
)

const testSecret = "e2e-shared-secret"

type stack struct {
	server *httptest.Server
	fa     *fake.FakeAdapter
	hub    *telemetry.Hub
}

func newStack(t *testing.T) *stack {
	t.Helper()

	fa := fake.NewFakeAdapter()
	hub := telemetry.NewHub(telemetry.Options{
		BufferSize:        10,
		HeartbeatInterval: time.Hour,
		Snapshot: func() map[string]interface{} {
			state := fa.State()
			return map[string]interface{}{
				"connected":   state.Connected,
				"port":        state.Port,
				"frequencyHz": state.FrequencyHz,
			}
		},
	})
	t.Cleanup(hub.Stop)

	orch := command.NewOrchestrator(fa, hub, nil, config.Baseline().Command)

	verifier, err := auth.NewVerifier(auth.VerifierConfig{SecretKey: testSecret})
	require.NoError(t, err)

	srv := api.NewServer(orch, hub, auth.NewMiddleware(verifier))
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return &stack{server: ts, fa: fa, hub: hub}
}

func token(t *testing.T, role string, scopes []string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":    "e2e-" + role,
		"roles":  []string{role},
		"scopes": scopes,
		"exp":    time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (s *stack) call(t *testing.T, method, path, body, bearer string) (*http.Response, api.Response) {
	t.Helper()

	req, err := http.NewRequest(method, s.server.URL+path, bytes.NewReader([]byte(body)))
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var envelope api.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return resp, envelope
}

type sseEvent struct {
	Type string
	Data map[string]interface{}
}

// streamEvents opens the telemetry stream and forwards parsed events
// until the returned cancel func runs.
func streamEvents(t *testing.T, s *stack, bearer string) (<-chan sseEvent, func()) {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, s.server.URL+"/api/v1/telemetry", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	events := make(chan sseEvent, 32)
	go func() {
		defer close(events)
		scanner := bufio.NewScanner(resp.Body)
		var current sseEvent
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				current.Type = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				_ = json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &current.Data)
			case line == "":
				if current.Type != "" {
					events <- current
				}
				current = sseEvent{}
			}
		}
	}()
	return events, func() { _ = resp.Body.Close() }
}

func waitFor(t *testing.T, events <-chan sseEvent, eventType string) sseEvent {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			require.True(t, ok, "stream closed before %q arrived", eventType)
			if ev.Type == eventType {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q event", eventType)
		}
	}
}

func TestHappyPathWithTelemetry(t *testing.T) {
	s := newStack(t)
	controller := token(t, auth.RoleController, []string{auth.ScopeRead, auth.ScopeControl})

	events, stop := streamEvents(t, s, controller)
	defer stop()

	ready := waitFor(t, events, telemetry.EventReady)
	snapshot := ready.Data["snapshot"].(map[string]interface{})
	assert.Equal(t, false, snapshot["connected"])

	resp, env := s.call(t, http.MethodPost, "/api/v1/connect", `{"port":"/dev/ttyUSB0"}`, controller)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", env.Result)
	waitFor(t, events, telemetry.EventConnected)

	resp, _ = s.call(t, http.MethodPost, "/api/v1/frequency", `{"frequencyHz":7100000}`, controller)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	changed := waitFor(t, events, telemetry.EventFrequencyChanged)
	assert.EqualValues(t, 7_100_000, changed.Data["frequencyHz"])

	resp, env = s.call(t, http.MethodGet, "/api/v1/frequency", "", controller)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 7_100_000, env.Data.(map[string]interface{})["frequencyHz"])

	resp, _ = s.call(t, http.MethodPost, "/api/v1/disconnect", "", controller)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	waitFor(t, events, telemetry.EventDisconnected)
}

func TestFaultEventOnIOFailure(t *testing.T) {
	s := newStack(t)
	controller := token(t, auth.RoleController, []string{auth.ScopeRead, auth.ScopeControl})

	_, _ = s.call(t, http.MethodPost, "/api/v1/connect", `{"port":"/dev/ttyUSB0"}`, controller)

	events, stop := streamEvents(t, s, controller)
	defer stop()
	waitFor(t, events, telemetry.EventReady)

	s.fa.SetFailIO(true)
	resp, env := s.call(t, http.MethodGet, "/api/v1/frequency", "", controller)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "IO", env.Code)

	fault := waitFor(t, events, telemetry.EventFault)
	assert.Equal(t, "IO", fault.Data["code"])
}

func TestScopeSeparation(t *testing.T) {
	s := newStack(t)
	viewer := token(t, auth.RoleViewer, []string{auth.ScopeRead})

	resp, _ := s.call(t, http.MethodGet, "/api/v1/status", "", viewer)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, env := s.call(t, http.MethodPost, "/api/v1/connect", `{"port":"/dev/ttyUSB0"}`, viewer)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "FORBIDDEN", env.Code)

	resp, env = s.call(t, http.MethodGet, "/api/v1/status", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", env.Code)
}

func TestTelemetryResume(t *testing.T) {
	s := newStack(t)
	controller := token(t, auth.RoleController, []string{auth.ScopeRead, auth.ScopeControl})

	_, _ = s.call(t, http.MethodPost, "/api/v1/connect", `{"port":"/dev/ttyUSB0"}`, controller)
	_, _ = s.call(t, http.MethodPost, "/api/v1/frequency", `{"frequencyHz":14074000}`, controller)

	// Resume from before the frequency change; the buffered event must
	// replay after the ready event.
	req, err := http.NewRequest(http.MethodGet, s.server.URL+"/api/v1/telemetry", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+controller)
	req.Header.Set("Last-Event-ID", "1")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Unblock the scanner if the replay never arrives.
	timer := time.AfterFunc(5*time.Second, func() { _ = resp.Body.Close() })
	defer timer.Stop()

	scanner := bufio.NewScanner(resp.Body)
	var types []string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event: ") {
			types = append(types, strings.TrimPrefix(line, "event: "))
		}
		if len(types) >= 2 {
			break
		}
	}
	require.GreaterOrEqual(t, len(types), 2)
	assert.Equal(t, telemetry.EventReady, types[0])
	assert.Contains(t, types, telemetry.EventFrequencyChanged)
}
