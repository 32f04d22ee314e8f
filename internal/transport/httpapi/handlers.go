package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sandevgo/spyglass/internal/core"
	"github.com/sandevgo/spyglass/internal/service/session"
)

// SessionGateway is the part of the gateway the HTTP surface consumes.
type SessionGateway interface {
	HandleChat(ctx context.Context, params session.ChatParams) session.ChatResult
	Terminate(ctx context.Context, sessionID string) bool
}

type Handler struct {
	gateway SessionGateway
}

func NewHandler(gateway SessionGateway) *Handler {
	return &Handler{gateway: gateway}
}

type chatRequest struct {
	Prompt       string   `json:"prompt"`
	SessionID    string   `json:"sessionId"`
	ImagePaths   []string `json:"imagePaths"`
	ApprovalMode string   `json:"approvalMode"`
}

// Chat runs one turn. All handled outcomes are 200; agent failures travel in
// the body as status "error", never as an HTTP error status.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	result := h.gateway.HandleChat(r.Context(), session.ChatParams{
		Prompt:       req.Prompt,
		SessionID:    req.SessionID,
		ImagePaths:   req.ImagePaths,
		ApprovalMode: req.ApprovalMode,
	})

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": core.SpyglassVersion,
	})
}

func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if !h.gateway.Terminate(r.Context(), sessionID) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("session not found: %s", sessionID))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("session %s terminated", sessionID),
	})
}

func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "not found")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
