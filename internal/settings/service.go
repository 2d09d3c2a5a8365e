package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

var ErrInvalidSettings = errors.New("invalid settings")

const (
	MaxTopK            = 50
	MaxModelNameLength = 100
	MaxHistoryLimit    = 50
)

// Settings are the tunables that can change while the server runs.
type Settings struct {
	GenerationModel  string `json:"generation_model"`
	SearchTopK       int    `json:"search_top_k"`
	ChatHistoryLimit int    `json:"chat_history_limit"`
}

func (s Settings) Validate() error {
	if s.GenerationModel == "" || len(s.GenerationModel) > MaxModelNameLength {
		return fmt.Errorf("%w: generation_model must be 1-%d characters", ErrInvalidSettings, MaxModelNameLength)
	}
	if s.SearchTopK < 1 || s.SearchTopK > MaxTopK {
		return fmt.Errorf("%w: search_top_k must be between 1 and %d", ErrInvalidSettings, MaxTopK)
	}
	if s.ChatHistoryLimit < 0 || s.ChatHistoryLimit > MaxHistoryLimit {
		return fmt.Errorf("%w: chat_history_limit must be between 0 and %d", ErrInvalidSettings, MaxHistoryLimit)
	}
	return nil
}

type Repository interface {
	Get(ctx context.Context) (*Settings, error)
	Update(ctx context.Context, s *Settings) error
}

// Listener is told about every successfully stored update.
type Listener func(Settings)

type Service struct {
	repo      Repository
	listeners []Listener
}

func NewService(repo Repository, listeners ...Listener) *Service {
	return &Service{repo: repo, listeners: listeners}
}

func (s *Service) Get(ctx context.Context) (*Settings, error) {
	return s.repo.Get(ctx)
}

func (s *Service) Update(ctx context.Context, set *Settings) error {
	if err := set.Validate(); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, set); err != nil {
		return err
	}
	slog.InfoContext(ctx, "settings updated",
		"generation_model", set.GenerationModel,
		"search_top_k", set.SearchTopK,
		"chat_history_limit", set.ChatHistoryLimit,
	)
	for _, l := range s.listeners {
		l(*set)
	}
	return nil
}
