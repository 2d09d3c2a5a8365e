package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"wikirag/internal/middleware"
	"wikirag/internal/retrieval"
	"wikirag/internal/worker"
)

type Ingester interface {
	IngestDocument(ctx context.Context, doc worker.Document) (int, error)
	DeleteSource(ctx context.Context, url string) (int, error)
}

type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]retrieval.SearchResult, error)
}

type Handler struct {
	ingester Ingester
	searcher Searcher
}

func NewHandler(i Ingester, s Searcher) *Handler {
	return &Handler{ingester: i, searcher: s}
}

func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		h.writeError(ctx, w, "VALIDATION_ERROR", "URL is required", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		h.writeError(ctx, w, "VALIDATION_ERROR", "Title is required", http.StatusBadRequest)
		return
	}

	n, err := h.ingester.IngestDocument(ctx, worker.Document{Title: req.Title, URL: req.URL, Content: req.Content})
	persisted := true
	switch {
	case err == nil:
	case errors.Is(err, worker.ErrPersist):
		// Chunks are searchable from the cache; report the degraded write.
		slog.WarnContext(ctx, "ingested without persisting", "error", err, "url", req.URL)
		persisted = false
	case errors.Is(err, worker.ErrEmbedding):
		slog.ErrorContext(ctx, "ingestion failed", "error", err, "url", req.URL)
		h.writeError(ctx, w, "EMBEDDING_ERROR", "failed to embed content", http.StatusBadGateway)
		return
	default:
		slog.ErrorContext(ctx, "ingestion failed", "error", err, "url", req.URL)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	resp := map[string]interface{}{"data": map[string]interface{}{"chunks": n, "persisted": persisted}}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}

	results, err := h.searcher.Search(ctx, req.Query, req.Limit)
	if err != nil {
		if errors.Is(err, retrieval.ErrEmptyQuery) {
			h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
			return
		}
		slog.ErrorContext(ctx, "search failed", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	// Ensure we return [] instead of null for empty list
	if results == nil {
		results = []retrieval.SearchResult{}
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"data": results,
		"meta": map[string]int{"count": len(results)},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) DeleteSource(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	url := r.URL.Query().Get("url")
	if url == "" {
		h.writeError(ctx, w, "VALIDATION_ERROR", "url query parameter is required", http.StatusBadRequest)
		return
	}

	removed, err := h.ingester.DeleteSource(ctx, url)
	if err != nil {
		slog.ErrorContext(ctx, "failed to delete source", "error", err, "url", url)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": map[string]int{"cached_removed": removed}}); err != nil {
		slog.Error("failed to encode response", "error", err)
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
