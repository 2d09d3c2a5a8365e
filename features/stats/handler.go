package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"wikirag/internal/middleware"
	"wikirag/internal/vector"
)

type VectorStore interface {
	Count(ctx context.Context) (int, error)
	Mode() vector.Mode
}

type ChunkCache interface {
	Len() int
}

type JobCounter interface {
	Count(ctx context.Context) (int, error)
}

type Handler struct {
	vectorStore VectorStore
	cache       ChunkCache
	jobs        JobCounter
}

func NewHandler(v VectorStore, c ChunkCache, j JobCounter) *Handler {
	return &Handler{vectorStore: v, cache: c, jobs: j}
}

type StatsResponse struct {
	Documents    int         `json:"documents"`
	CachedChunks int         `json:"cached_chunks"`
	FailedJobs   int         `json:"failed_jobs"`
	StoreMode    vector.Mode `json:"store_mode"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	slog.InfoContext(ctx, "getting stats", "correlationId", correlationID)

	dCount, err := h.vectorStore.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count documents", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count documents", http.StatusInternalServerError)
		return
	}

	jCount, err := h.jobs.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count failed jobs", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count failed jobs", http.StatusInternalServerError)
		return
	}

	resp := StatsResponse{
		Documents:    dCount,
		CachedChunks: h.cache.Len(),
		FailedJobs:   jCount,
		StoreMode:    h.vectorStore.Mode(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
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
