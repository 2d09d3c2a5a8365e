package job

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"wikirag/internal/worker"
)

type Ingester interface {
	IngestDocument(ctx context.Context, doc worker.Document) (int, error)
}

type Service struct {
	repo     Repository
	ingester Ingester
}

func NewService(repo Repository, ingester Ingester) *Service {
	return &Service{repo: repo, ingester: ingester}
}

// RecordFailure stores doc so its ingestion can be retried later. A page that
// already has a pending job keeps that job, with the newer payload and error.
func (s *Service) RecordFailure(ctx context.Context, doc worker.Document, cause error) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	pending, err := s.List(ctx, doc.URL)
	if err != nil {
		return err
	}
	j := &Job{SourceURL: doc.URL, Handler: HandlerIngestPage}
	if len(pending) > 0 {
		j = &pending[0]
	}
	j.Payload = payload
	j.Error = cause.Error()

	if err := s.repo.Save(ctx, j); err != nil {
		return err
	}
	slog.WarnContext(ctx, "ingestion job failed", "id", j.ID, "url", doc.URL, "error", cause)
	return nil
}

// List returns pending jobs newest first. A non-empty sourceURL keeps only
// that page's job.
func (s *Service) List(ctx context.Context, sourceURL string) ([]Job, error) {
	jobs, err := s.repo.List(ctx)
	if err != nil || sourceURL == "" {
		return jobs, err
	}
	out := jobs[:0]
	for _, j := range jobs {
		if j.SourceURL == sourceURL {
			out = append(out, j)
		}
	}
	return out, nil
}

// Retry replays the job and returns the number of chunks ingested. Success
// deletes the job. Failure keeps it with the new error and a bumped retry
// count, including a page that was embedded but still could not be stored.
func (s *Service) Retry(ctx context.Context, id string) (int, error) {
	// 1. Get Job
	j, err := s.repo.Get(ctx, id)
	if err != nil {
		return 0, err
	}

	var doc worker.Document
	if err := json.Unmarshal(j.Payload, &doc); err != nil {
		return 0, fmt.Errorf("decode payload: %w", err)
	}

	// 2. Re-ingest
	n, err := s.ingester.IngestDocument(ctx, doc)
	if err != nil {
		j.Retries++
		j.Error = err.Error()
		if saveErr := s.repo.Save(ctx, j); saveErr != nil {
			slog.ErrorContext(ctx, "failed to update job", "id", id, "error", saveErr)
		}
		return n, err
	}

	// 3. Delete Job
	return n, s.repo.Delete(ctx, id)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
