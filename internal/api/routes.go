package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cat-control/ccc/internal/auth"
	"github.com/cat-control/ccc/internal/catproto"
)

// RegisterRoutes registers all v1 endpoints.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	apiV1 := "/api/v1"

	// Health endpoint carries no auth so probes can reach it.
	mux.HandleFunc(apiV1+"/health", s.handleHealth)

	read := func(h http.HandlerFunc) http.HandlerFunc {
		return s.authMiddleware.RequireAuth(s.authMiddleware.RequireScope(auth.ScopeRead)(h))
	}
	control := func(h http.HandlerFunc) http.HandlerFunc {
		return s.authMiddleware.RequireAuth(s.authMiddleware.RequireScope(auth.ScopeControl)(h))
	}

	mux.HandleFunc(apiV1+"/capabilities", read(s.handleCapabilities))
	mux.HandleFunc(apiV1+"/status", read(s.handleStatus))
	mux.HandleFunc(apiV1+"/connect", control(s.handleConnect))
	mux.HandleFunc(apiV1+"/disconnect", control(s.handleDisconnect))
	mux.HandleFunc(apiV1+"/frequency", s.handleFrequency(read, control))
	mux.HandleFunc(apiV1+"/raw", control(s.handleRaw))
	mux.HandleFunc(apiV1+"/telemetry", read(s.handleTelemetry))
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			"Only GET method is allowed", nil)
		return
	}

	WriteSuccess(w, map[string]interface{}{
		"status":    "ok",
		"uptimeSec": time.Since(s.startTime).Seconds(),
		"version":   Version,
	})
}

// handleCapabilities handles GET /capabilities.
func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			"Only GET method is allowed", nil)
		return
	}

	WriteSuccess(w, map[string]interface{}{
		"telemetry": []string{"sse"},
		"commands":  []string{"http-json"},
		"version":   Version,
	})
}

// handleStatus handles GET /status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			"Only GET method is allowed", nil)
		return
	}

	WriteSuccess(w, s.orchestrator.State())
}

// handleConnect handles POST /connect.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			"Only POST method is allowed", nil)
		return
	}

	var req struct {
		Port string `json:"port"`
	}
	if !decodeStrict(w, r, &req) {
		return
	}
	if req.Port == "" {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "port is required", nil)
		return
	}

	if err := s.orchestrator.Connect(r.Context(), req.Port); err != nil {
		WriteAdapterError(w, err)
		return
	}
	WriteSuccess(w, s.orchestrator.State())
}

// handleDisconnect handles POST /disconnect.
func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			"Only POST method is allowed", nil)
		return
	}

	if err := s.orchestrator.Disconnect(r.Context()); err != nil {
		WriteAdapterError(w, err)
		return
	}
	WriteSuccess(w, s.orchestrator.State())
}

// handleFrequency dispatches GET and POST /frequency to their scopes.
func (s *Server) handleFrequency(read, control func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	get := read(s.handleGetFrequency)
	set := control(s.handleSetFrequency)

	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			get(w, r)
		case http.MethodPost:
			set(w, r)
		default:
			WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
				"Only GET and POST methods are allowed", nil)
		}
	}
}

// handleGetFrequency handles GET /frequency.
func (s *Server) handleGetFrequency(w http.ResponseWriter, r *http.Request) {
	hz, err := s.orchestrator.GetFrequency(r.Context())
	if err != nil {
		WriteAdapterError(w, err)
		return
	}
	WriteSuccess(w, map[string]interface{}{"frequencyHz": hz})
}

// handleSetFrequency handles POST /frequency.
func (s *Server) handleSetFrequency(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FrequencyHz *int64 `json:"frequencyHz"`
	}
	if !decodeStrict(w, r, &req) {
		return
	}
	if req.FrequencyHz == nil {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "frequencyHz is required", nil)
		return
	}

	if err := s.orchestrator.SetFrequency(r.Context(), *req.FrequencyHz); err != nil {
		WriteAdapterError(w, err)
		return
	}
	WriteSuccess(w, map[string]interface{}{"frequencyHz": *req.FrequencyHz})
}

// handleRaw handles POST /raw: an ad-hoc command frame as a hex string.
func (s *Server) handleRaw(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			"Only POST method is allowed", nil)
		return
	}

	var req struct {
		Frame string `json:"frame"`
	}
	if !decodeStrict(w, r, &req) {
		return
	}

	frame, err := catproto.ParseHexParams(req.Frame)
	if err != nil {
		WriteAdapterError(w, err)
		return
	}

	resp, err := s.orchestrator.SendRaw(r.Context(), frame)
	if err != nil {
		WriteAdapterError(w, err)
		return
	}
	WriteSuccess(w, map[string]interface{}{"response": fmt.Sprintf("%X", resp)})
}

// handleTelemetry handles GET /telemetry (SSE).
func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			"Only GET method is allowed", nil)
		return
	}
	if s.telemetryHub == nil {
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE",
			"Telemetry service not available", nil)
		return
	}

	// Subscribe blocks for the lifetime of the stream; write errors after
	// the stream started cannot be reported through the envelope.
	_ = s.telemetryHub.Subscribe(r.Context(), w, r)
}

// decodeStrict decodes a JSON request body, rejecting unknown fields and
// trailing data. It writes the error response itself and reports whether
// decoding succeeded.
func decodeStrict(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "Malformed JSON or unknown fields", nil)
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "Trailing data after JSON object", nil)
		return false
	}
	return true
}
