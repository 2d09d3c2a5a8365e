package source

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"wikirag/internal/middleware"
	"wikirag/internal/worker"
)

// Lister reports the pages ingested since the process started.
type Lister interface {
	Sources() []worker.SourceSummary
}

type Handler struct {
	lister Lister
}

func NewHandler(l Lister) *Handler {
	return &Handler{lister: l}
}

// List returns ingested sources. An optional ?q= filters by case-insensitive
// substring of title or URL.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sources := Filter(h.lister.Sources(), r.URL.Query().Get("q"))

	slog.DebugContext(ctx, "listing sources", "count", len(sources))

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"data": sources,
		"meta": map[string]int{"count": len(sources)},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to encode response", http.StatusInternalServerError)
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

	json.NewEncoder(w).Encode(resp)
}
