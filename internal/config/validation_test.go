package config_test

import (
	"errors"
	"testing"

	"wikirag/internal/config"

	"github.com/stretchr/testify/assert"
)

func validConfig() config.Config {
	return config.Config{
		OllamaURL:           "http://127.0.0.1:11434",
		WikiBaseURL:         "https://wiki.example",
		EmbeddingDimensions: 384,
		ChunkSize:           512,
		ChunkOverlap:        50,
		BatchSize:           10,
		CrawlMaxDepth:       3,
		CrawlMaxLinks:       5,
		SearchTopK:          5,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		errIs  error
	}{
		{
			name:   "Valid Config",
			mutate: func(c *config.Config) {},
		},
		{
			name:   "Missing OllamaURL",
			mutate: func(c *config.Config) { c.OllamaURL = "" },
			errIs:  config.ErrMissingRequired,
		},
		{
			name:   "Missing WikiBaseURL",
			mutate: func(c *config.Config) { c.WikiBaseURL = "" },
			errIs:  config.ErrMissingRequired,
		},
		{
			name:   "Overlap Equals Chunk Size",
			mutate: func(c *config.Config) { c.ChunkOverlap = c.ChunkSize },
			errIs:  config.ErrInvalidChunking,
		},
		{
			name:   "Overlap Exceeds Chunk Size",
			mutate: func(c *config.Config) { c.ChunkOverlap = c.ChunkSize + 1 },
			errIs:  config.ErrInvalidChunking,
		},
		{
			name:   "Negative Overlap",
			mutate: func(c *config.Config) { c.ChunkOverlap = -1 },
			errIs:  config.ErrInvalidChunking,
		},
		{
			name:   "Zero Chunk Size",
			mutate: func(c *config.Config) { c.ChunkSize = 0; c.ChunkOverlap = 0 },
			errIs:  config.ErrInvalidChunking,
		},
		{
			name:   "Zero Overlap Allowed",
			mutate: func(c *config.Config) { c.ChunkOverlap = 0 },
		},
		{
			name:   "Too Few Dimensions",
			mutate: func(c *config.Config) { c.EmbeddingDimensions = 2 },
			errIs:  config.ErrInvalidValue,
		},
		{
			name:   "Zero Batch Size",
			mutate: func(c *config.Config) { c.BatchSize = 0 },
			errIs:  config.ErrInvalidValue,
		},
		{
			name:   "Negative Depth",
			mutate: func(c *config.Config) { c.CrawlMaxDepth = -1 },
			errIs:  config.ErrInvalidValue,
		},
		{
			name:   "Zero Links Per Page",
			mutate: func(c *config.Config) { c.CrawlMaxLinks = 0 },
			errIs:  config.ErrInvalidValue,
		},
		{
			name:   "Zero TopK",
			mutate: func(c *config.Config) { c.SearchTopK = 0 },
			errIs:  config.ErrInvalidValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.errIs == nil {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
			assert.True(t, errors.Is(err, tt.errIs), "expected %v, got %v", tt.errIs, err)
		})
	}
}
