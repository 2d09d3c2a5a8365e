package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	ErrEmptyEmbedding = errors.New("ollama returned an empty embedding")
	ErrProvider       = errors.New("ollama provider error")
)

type Config struct {
	BaseURL           string
	EmbeddingModel    string
	GenerationModel   string
	EmbeddingTimeout  time.Duration
	GenerationTimeout time.Duration
}

// Client talks to a local Ollama runtime for embeddings and completions.
type Client struct {
	baseURL           string
	embeddingModel    string
	generationModel   string
	embeddingTimeout  time.Duration
	generationTimeout time.Duration
	client            *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.EmbeddingTimeout <= 0 {
		cfg.EmbeddingTimeout = 30 * time.Second
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = 60 * time.Second
	}
	return &Client{
		baseURL:           strings.TrimRight(cfg.BaseURL, "/"),
		embeddingModel:    cfg.EmbeddingModel,
		generationModel:   cfg.GenerationModel,
		embeddingTimeout:  cfg.EmbeddingTimeout,
		generationTimeout: cfg.GenerationTimeout,
		client:            &http.Client{},
	}
}

func (c *Client) SetBaseURL(url string) {
	c.baseURL = strings.TrimRight(url, "/")
}

func (c *Client) Name() string { return "ollama" }

func (c *Client) GenerationModel() string { return c.generationModel }

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.embeddingTimeout)
	defer cancel()

	var out embedResponse
	if err := c.post(ctx, "/api/embeddings", embedRequest{Model: c.embeddingModel, Prompt: text}, &out); err != nil {
		return nil, err
	}
	if len(out.Embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}

	vec := make([]float32, len(out.Embedding))
	for i, v := range out.Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return c.GenerateWithModel(ctx, c.generationModel, prompt)
}

// GenerateWithModel runs a non-streaming completion. An error field in the
// response body is returned as ErrProvider.
func (c *Client) GenerateWithModel(ctx context.Context, model, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.generationTimeout)
	defer cancel()

	var out generateResponse
	if err := c.post(ctx, "/api/generate", generateRequest{Model: model, Prompt: prompt, Stream: false}, &out); err != nil {
		return "", err
	}
	if out.Error != "" {
		return "", fmt.Errorf("%w: %s", ErrProvider, out.Error)
	}
	return out.Response, nil
}

// Ping checks that the runtime is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ollama error (status %d)", resp.StatusCode)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var provider struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &provider) == nil && provider.Error != "" {
			return fmt.Errorf("%w (status %d): %s", ErrProvider, resp.StatusCode, provider.Error)
		}
		return fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
