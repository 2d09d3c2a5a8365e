package crawl

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"wikirag/internal/crawler"
	"wikirag/internal/middleware"
	"wikirag/internal/vector"
)

type Crawler interface {
	Status() crawler.Status
	Start(ctx context.Context, seeds []string, done func(crawler.Status, error)) error
}

type StoreInfo interface {
	Mode() vector.Mode
	Count(ctx context.Context) (int, error)
}

type Handler struct {
	crawler Crawler
	store   StoreInfo
	seeds   []string
	runCtx  context.Context
}

// NewHandler binds background crawls to runCtx so they outlive the request
// that started them but stop on shutdown.
func NewHandler(runCtx context.Context, c Crawler, s StoreInfo, defaultSeeds []string) *Handler {
	return &Handler{crawler: c, store: s, seeds: defaultSeeds, runCtx: runCtx}
}

type StatusResponse struct {
	crawler.Status
	StoreMode    vector.Mode `json:"store_mode"`
	StoredChunks int         `json:"stored_chunks"`
}

func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	count, err := h.store.Count(ctx)
	if err != nil {
		slog.WarnContext(ctx, "failed to count stored chunks", "error", err)
	}

	h.writeData(ctx, w, http.StatusOK, StatusResponse{
		Status:       h.crawler.Status(),
		StoreMode:    h.store.Mode(),
		StoredChunks: count,
	})
}

func (h *Handler) StartCrawl(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Seeds []string `json:"seeds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(ctx, w, "VALIDATION_ERROR", "invalid request body", http.StatusBadRequest)
		return
	}
	seeds := req.Seeds
	if len(seeds) == 0 {
		seeds = h.seeds
	}

	runCtx := middleware.WithCorrelationID(h.runCtx, middleware.GetCorrelationID(ctx))
	err := h.crawler.Start(runCtx, seeds, func(st crawler.Status, err error) {
		if err != nil {
			slog.WarnContext(runCtx, "crawl stopped early", "error", err, "pages_scraped", st.PagesScraped)
			return
		}
		slog.InfoContext(runCtx, "crawl completed", "pages_scraped", st.PagesScraped, "errors", st.ErrorsEncountered)
	})
	if errors.Is(err, crawler.ErrCrawlInProgress) {
		h.writeError(ctx, w, "CONFLICT", err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to start crawl", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to start crawl", http.StatusInternalServerError)
		return
	}

	h.writeData(ctx, w, http.StatusAccepted, h.crawler.Status())
}

func (h *Handler) writeData(ctx context.Context, w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
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
