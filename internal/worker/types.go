package worker

import (
	"context"
	"errors"
	"strconv"

	"wikirag/internal/vector"
)

var ErrEmbedding = errors.New("no chunk could be embedded")

// ErrPersist reports chunks that were embedded and cached but not written to
// the vector store. They stay searchable until the process exits.
var ErrPersist = errors.New("chunks not persisted")

// Chunk is one embedded window of a page, kept in the process-local cache
// and converted to a vector.Record for persistence.
type Chunk struct {
	ID          string
	Content     string
	SourceURL   string
	SourceTitle string
	ChunkIndex  int
	Vector      []float32
	Metadata    map[string]string
}

func (c Chunk) Record() vector.Record {
	return vector.Record{
		ID:          c.ID,
		Content:     c.Content,
		SourceURL:   c.SourceURL,
		SourceTitle: c.SourceTitle,
		Embedding:   c.Vector,
		Metadata:    vector.EncodeMetadata(c.Metadata),
	}
}

// Document is a page handed to the pipeline. Metadata is merged into every
// chunk's metadata.
type Document struct {
	Title    string            `json:"title"`
	URL      string            `json:"url"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type VectorStore interface {
	InsertBatch(ctx context.Context, records []vector.Record) error
	DeleteBySource(ctx context.Context, sourceURL string) error
}

func chunkMetadata(doc Document, index int) map[string]string {
	m := make(map[string]string, len(doc.Metadata)+2)
	for k, v := range doc.Metadata {
		m[k] = v
	}
	m["source_type"] = "wiki"
	m["chunk_index"] = strconv.Itoa(index)
	return m
}
