package job

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"wikirag/internal/middleware"
	"wikirag/internal/worker"
)

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

// List returns failed ingestion jobs, optionally narrowed by ?source_url=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sourceURL := r.URL.Query().Get("source_url")

	slog.DebugContext(ctx, "listing failed jobs", "source_url", sourceURL)

	jobs, err := h.service.List(ctx, sourceURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list jobs", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}
	if jobs == nil {
		jobs = []Job{}
	}

	retries := 0
	for _, j := range jobs {
		retries += j.Retries
	}

	h.writeJSON(ctx, w, http.StatusOK, map[string]interface{}{
		"data": jobs,
		"meta": map[string]int{"count": len(jobs), "retries": retries},
	})
}

// Retry re-ingests the job's page. The job is gone on success; on failure it
// stays listed with the new error.
func (h *Handler) Retry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	n, err := h.service.Retry(ctx, id)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		h.writeError(ctx, w, "NOT_FOUND", "Job not found", http.StatusNotFound)
		return
	case errors.Is(err, worker.ErrPersist):
		slog.WarnContext(ctx, "retry could not persist chunks", "id", id, "error", err)
		h.writeError(ctx, w, "STORE_UNAVAILABLE", err.Error(), http.StatusServiceUnavailable)
		return
	case errors.Is(err, worker.ErrEmbedding):
		slog.WarnContext(ctx, "retry could not embed page", "id", id, "error", err)
		h.writeError(ctx, w, "EMBEDDING_ERROR", err.Error(), http.StatusBadGateway)
		return
	default:
		slog.ErrorContext(ctx, "failed to retry job", "id", id, "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	slog.InfoContext(ctx, "job retried", "id", id, "chunks", n)
	h.writeJSON(ctx, w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{"id": id, "chunks": n},
	})
}

func (h *Handler) writeJSON(ctx context.Context, w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	h.writeJSON(ctx, w, status, map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	})
}
