package vector

import (
	"context"
	"encoding/json"
)

// Record is the persisted form of an embedded chunk. Metadata is kept as a
// serialized string map so every backend stores it the same way.
type Record struct {
	ID          string    `msgpack:"id" json:"id"`
	Content     string    `msgpack:"content" json:"content"`
	SourceURL   string    `msgpack:"source_url" json:"source_url"`
	SourceTitle string    `msgpack:"source_title" json:"source_title"`
	Embedding   []float32 `msgpack:"embedding" json:"-"`
	Metadata    string    `msgpack:"metadata" json:"metadata"`
}

// MetadataMap decodes Metadata. Malformed metadata yields an empty map.
func (r Record) MetadataMap() map[string]string {
	m := map[string]string{}
	if r.Metadata == "" {
		return m
	}
	if err := json.Unmarshal([]byte(r.Metadata), &m); err != nil {
		return map[string]string{}
	}
	return m
}

// EncodeMetadata serializes a metadata map for storage on a Record.
func EncodeMetadata(m map[string]string) string {
	if len(m) == 0 {
		return "{}"
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}

type Result struct {
	Record Record  `json:"record"`
	Score  float32 `json:"score"`
}

// Store is implemented by every vector backend.
type Store interface {
	InsertBatch(ctx context.Context, records []Record) error
	Search(ctx context.Context, query []float32, limit int) ([]Result, error)
	DeleteBySource(ctx context.Context, sourceURL string) error
	Count(ctx context.Context) (int, error)
	Close() error
}

// Mode names the backing a store was opened with.
type Mode string

const (
	ModeDurable   Mode = "durable"
	ModeTemporary Mode = "temporary"
	ModeMemory    Mode = "memory"
)
