// Package api provides HTTP handlers for the intake session endpoints.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sean-bit813/medical-LLM-system/internal/models"
)

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("ok", nil))
}

// createSessionHandler handles POST /api/v1/sessions
func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.createSessionHandler: processing request", "method", r.Method, "path", r.URL.Path)

	var req models.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.createSessionHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if strings.TrimSpace(req.PatientID) == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("patient_id is required"))
		return
	}

	id, entry := s.newSession(req.PatientID)

	opening := req.Message
	if strings.TrimSpace(opening) == "" {
		opening = "hello"
	}
	entry.mu.Lock()
	reply := entry.mgr.ProcessMessage(r.Context(), opening)
	result := models.SessionResult{
		SessionID: id,
		PatientID: entry.patientID,
		State:     entry.mgr.State(),
		Turns:     entry.mgr.TurnCount(),
		Reply:     reply,
	}
	entry.mu.Unlock()

	writeJSONResponse(w, http.StatusCreated, models.Success(result))
}

// sendMessageHandler handles POST /api/v1/sessions/{id}/messages
func (s *Server) sendMessageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	id := r.PathValue("id")
	entry, ok := s.session(id)
	if !ok {
		slog.Warn("Server.sendMessageHandler: unknown session", "sessionID", id)
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}

	var req models.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.sendMessageHandler: failed to decode JSON", "error", err, "sessionID", id)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	entry.mu.Lock()
	reply := entry.mgr.ProcessMessage(r.Context(), req.Message)
	result := models.SessionResult{
		SessionID: id,
		PatientID: entry.patientID,
		State:     entry.mgr.State(),
		Turns:     entry.mgr.TurnCount(),
		Reply:     reply,
	}
	entry.mu.Unlock()

	slog.Debug("Server.sendMessageHandler: turn processed", "sessionID", id, "state", result.State, "turns", result.Turns)
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

// getSessionHandler handles GET /api/v1/sessions/{id}
func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	entry, ok := s.session(id)
	if !ok {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}

	entry.mu.Lock()
	result := models.SessionResult{
		SessionID: id,
		PatientID: entry.patientID,
		State:     entry.mgr.State(),
		Turns:     entry.mgr.TurnCount(),
		Fields:    entry.mgr.Fields(),
	}
	entry.mu.Unlock()

	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

// deleteSessionHandler handles DELETE /api/v1/sessions/{id}
func (s *Server) deleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.session(id); !ok {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}
	s.dropSession(id)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Session deleted", nil))
}
