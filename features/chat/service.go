package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"wikirag/internal/retrieval"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const preamble = "You are a helpful assistant specializing in the game Vintage Story. " +
	"You provide accurate, detailed information based on the game's wiki and mechanics.\n\n"

const closing = "Assistant: Please provide a helpful and accurate response. " +
	"If you have relevant context from the wiki, use it to give specific information. " +
	"If you don't have specific information, provide general guidance about Vintage Story."

type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Role      string    `json:"role"`
	Timestamp time.Time `json:"timestamp"`
}

type Response struct {
	Message     Message  `json:"message"`
	ContextUsed []string `json:"context_used"`
}

type Retriever interface {
	Search(ctx context.Context, query string, limit int) ([]retrieval.SearchResult, error)
}

type Generator interface {
	GenerateWithModel(ctx context.Context, model, prompt string) (string, error)
}

type Options struct {
	Model        string
	TopK         int
	HistoryLimit int
}

type Service struct {
	retriever Retriever
	generator Generator
	opts      Options

	mu      sync.Mutex
	history []Message
}

func NewService(r Retriever, g Generator, opts Options) *Service {
	return &Service{retriever: r, generator: g, opts: opts}
}

// Ask answers message from retrieved wiki context and the recent
// conversation. model overrides the configured generation model when set.
func (s *Service) Ask(ctx context.Context, message, model string) (*Response, error) {
	if err := ValidateMessage(message); err != nil {
		return nil, err
	}
	opts := s.Options()
	if model == "" {
		model = opts.Model
	}
	if err := ValidateModelName(model); err != nil {
		return nil, err
	}

	results, err := s.retriever.Search(ctx, message, opts.TopK)
	if err != nil {
		slog.WarnContext(ctx, "context retrieval failed, answering without context", "error", err)
		results = nil
	}

	contexts := make([]string, len(results))
	used := make([]string, len(results))
	for i, r := range results {
		contexts[i] = fmt.Sprintf("Source: %s\n%s", r.Title, r.Content)
		used[i] = fmt.Sprintf("%s (score: %.2f)", r.Title, r.Score)
	}

	s.mu.Lock()
	prompt := BuildPrompt(message, contexts, s.recentLocked())
	s.mu.Unlock()

	answer, err := s.generator.GenerateWithModel(ctx, model, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	user := newMessage(RoleUser, message)
	reply := newMessage(RoleAssistant, answer)

	s.mu.Lock()
	s.history = append(s.history, user, reply)
	s.mu.Unlock()

	return &Response{Message: reply, ContextUsed: used}, nil
}

// Generate sends prompt to the generation model unchanged.
func (s *Service) Generate(ctx context.Context, prompt, model string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("%w: prompt cannot be empty", ErrInvalidMessage)
	}
	if model == "" {
		model = s.Options().Model
	}
	if err := ValidateModelName(model); err != nil {
		return "", err
	}
	return s.generator.GenerateWithModel(ctx, model, prompt)
}

func (s *Service) Options() Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts
}

// Configure replaces the generation defaults used by later calls.
func (s *Service) Configure(opts Options) {
	s.mu.Lock()
	s.opts = opts
	s.mu.Unlock()
}

func (s *Service) History() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Service) ClearHistory() {
	s.mu.Lock()
	s.history = nil
	s.mu.Unlock()
}

func (s *Service) recentLocked() []Message {
	if s.opts.HistoryLimit <= 0 || len(s.history) == 0 {
		return nil
	}
	start := max(len(s.history)-s.opts.HistoryLimit, 0)
	return s.history[start:]
}

// BuildPrompt assembles the generation prompt: preamble, numbered context
// blocks, prior turns, then the question.
func BuildPrompt(query string, contexts []string, history []Message) string {
	var b strings.Builder
	b.WriteString(preamble)

	if len(contexts) > 0 {
		b.WriteString("Here is relevant information from the Vintage Story wiki:\n\n")
		for i, c := range contexts {
			fmt.Fprintf(&b, "Context %d:\n%s\n\n", i+1, c)
		}
		b.WriteString("Based on the above context, ")
	}

	if len(history) > 0 {
		b.WriteString("Previous conversation:\n")
		for _, m := range history {
			fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "User question: %s\n\n", query)
	b.WriteString(closing)
	return b.String()
}

func newMessage(role, content string) Message {
	return Message{
		ID:        uuid.New().String(),
		Content:   content,
		Role:      role,
		Timestamp: time.Now().UTC(),
	}
}
