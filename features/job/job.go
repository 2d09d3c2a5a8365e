package job

import (
	"encoding/json"
	"time"
)

// HandlerIngestPage marks jobs whose payload is a worker.Document.
const HandlerIngestPage = "ingest.page"

// Job is a unit of ingestion work that failed and can be replayed.
type Job struct {
	ID        string          `json:"id"`
	SourceURL string          `json:"source_url"`
	Handler   string          `json:"handler"`
	Payload   json.RawMessage `json:"payload"`
	Error     string          `json:"error"`
	Retries   int             `json:"retries"`
	CreatedAt time.Time       `json:"created_at"`
}
