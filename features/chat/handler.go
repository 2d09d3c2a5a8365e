package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"wikirag/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

type askRequest struct {
	Message string `json:"message"`
	Model   string `json:"model"`
}

type generateRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model"`
}

func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, "VALIDATION_ERROR", "invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.service.Ask(ctx, req.Message, req.Model)
	if err != nil {
		h.handleError(ctx, w, err)
		return
	}
	h.writeData(ctx, w, resp)
}

func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, "VALIDATION_ERROR", "invalid request body", http.StatusBadRequest)
		return
	}

	text, err := h.service.Generate(ctx, req.Prompt, req.Model)
	if err != nil {
		h.handleError(ctx, w, err)
		return
	}
	h.writeData(ctx, w, map[string]string{"response": text})
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	h.writeData(r.Context(), w, h.service.History())
}

func (h *Handler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	h.service.ClearHistory()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidMessage), errors.Is(err, ErrInvalidModel):
		h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
	default:
		slog.ErrorContext(ctx, "generation failed", "error", err)
		h.writeError(ctx, w, "GENERATION_ERROR", "failed to generate response", http.StatusBadGateway)
	}
}

func (h *Handler) writeData(ctx context.Context, w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"data": data}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
