// Package api exposes the command agent over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/etnz/folio"
	"github.com/etnz/folio/agent"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Snapshotter loads the portfolio. *store.Store implements it.
type Snapshotter interface {
	Snapshot(ctx context.Context) (*folio.Snapshot, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	agent *agent.Agent
	store Snapshotter
	log   *zap.Logger
}

// NewHandler creates a new Handler
func NewHandler(a *agent.Agent, st Snapshotter, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{agent: a, store: st, log: log}
}

// CommandRequest is the body of POST /api/v1/commands: the conversation so far, ending with
// the user's command.
type CommandRequest struct {
	Messages []agent.Turn `json:"messages"`
}

// CommandResponse is the answer to a command. Trace is only set on ?trace=1.
type CommandResponse struct {
	agent.Result
	Trace *agent.Trace `json:"trace,omitempty"`
}

// Command handles POST /api/v1/commands
func (h *Handler) Command(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	for _, m := range req.Messages {
		if m.Role != agent.User && m.Role != agent.Assistant {
			respondError(w, http.StatusBadRequest, "invalid message role "+string(m.Role))
			return
		}
	}

	snap, err := h.store.Snapshot(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	res, trace, err := h.agent.Handle(r.Context(), req.Messages, snap)
	if err != nil {
		h.fail(w, err)
		return
	}
	out := CommandResponse{Result: res}
	if r.URL.Query().Get("trace") == "1" {
		out.Trace = trace
	}
	respondJSON(w, http.StatusOK, out)
}

// Confirm handles POST /api/v1/confirmations/{id}
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	out, err := h.agent.Execute(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

// Discard handles DELETE /api/v1/confirmations/{id}
func (h *Handler) Discard(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !h.agent.Discard(id) {
		h.fail(w, folio.NotFoundError{Kind: "confirmation", Name: id})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if _, err := h.store.Snapshot(r.Context()); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// fail maps err to a status code and writes it.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status >= 500 {
		h.log.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	respondError(w, status, err.Error())
}

func statusOf(err error) int {
	var (
		validation   folio.ValidationError
		notFound     folio.NotFoundError
		ambiguity    folio.AmbiguityError
		insufficient folio.InsufficientSharesError
		service      folio.ServiceError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &ambiguity), errors.As(err, &insufficient):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &service):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
