package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var (
	ErrMissingRequired = errors.New("missing required configuration")
	ErrInvalidChunking = errors.New("invalid chunking configuration")
	ErrInvalidValue    = errors.New("invalid configuration value")
)

type Config struct {
	// Server
	ServerPort   int    `envconfig:"SERVER_PORT" default:"8081"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"LOG_FORMAT" default:"json"`
	DataDir      string `envconfig:"DATA_DIR"`
	QueryLogPath string `envconfig:"QUERY_LOG_PATH"`

	// Inference runtime
	OllamaURL           string        `envconfig:"OLLAMA_URL" default:"http://127.0.0.1:11434"`
	OllamaModel         string        `envconfig:"OLLAMA_MODEL" default:"phi3:mini"`
	EmbeddingModel      string        `envconfig:"EMBEDDING_MODEL" default:"nomic-embed-text"`
	EmbeddingDimensions int           `envconfig:"EMBEDDING_DIMENSIONS" default:"768"`
	EmbeddingTimeout    time.Duration `envconfig:"EMBEDDING_TIMEOUT" default:"30s"`
	GenerationTimeout   time.Duration `envconfig:"GENERATION_TIMEOUT" default:"60s"`

	GeminiAPIKey         string `envconfig:"GEMINI_API_KEY"`
	GeminiEmbeddingModel string `envconfig:"GEMINI_EMBEDDING_MODEL" default:"text-embedding-004"`

	// Ingestion
	ChunkSize     int           `envconfig:"CHUNK_SIZE" default:"512"`
	ChunkOverlap  int           `envconfig:"CHUNK_OVERLAP" default:"50"`
	BatchSize     int           `envconfig:"BATCH_SIZE" default:"10"`
	BatchDelay    time.Duration `envconfig:"BATCH_DELAY" default:"100ms"`
	MinChunkChars int           `envconfig:"MIN_CHUNK_CHARS" default:"50"`

	// Crawler
	WikiBaseURL     string        `envconfig:"WIKI_BASE_URL" default:"https://wiki.vintagestory.at"`
	CrawlSeeds      []string      `envconfig:"CRAWL_SEEDS"`
	CrawlMaxDepth   int           `envconfig:"CRAWL_MAX_DEPTH" default:"3"`
	CrawlMaxLinks   int           `envconfig:"CRAWL_MAX_LINKS" default:"5"`
	CrawlFetchDelay time.Duration `envconfig:"CRAWL_FETCH_DELAY" default:"200ms"`
	CrawlSeedDelay  time.Duration `envconfig:"CRAWL_SEED_DELAY" default:"500ms"`
	CrawlTimeout    time.Duration `envconfig:"CRAWL_TIMEOUT" default:"30s"`
	CrawlUserAgent  string        `envconfig:"CRAWL_USER_AGENT" default:"VintageStoryAI/1.0 (Educational)"`
	CrawlExclusions []string      `envconfig:"CRAWL_EXCLUSIONS"`

	// Store & retrieval
	StoreLockTimeout time.Duration `envconfig:"STORE_LOCK_TIMEOUT" default:"1s"`
	SearchTopK       int           `envconfig:"SEARCH_TOP_K" default:"5"`
	QueryCacheSize   int           `envconfig:"QUERY_CACHE_SIZE" default:"256"`
	ChatHistoryLimit int           `envconfig:"CHAT_HISTORY_LIMIT" default:"6"`

	// Resilience
	BootstrapRetryAttempts int           `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"3"`
	BootstrapRetryDelay    time.Duration `envconfig:"BOOTSTRAP_RETRY_DELAY" default:"1s"`
}

func Load() (*Config, error) {
	// Env vars set in the shell win over .env
	_ = godotenv.Load(".env")

	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}

	if err := cfg.resolvePaths(); err != nil {
		return nil, err
	}
	if len(cfg.CrawlSeeds) == 0 {
		cfg.CrawlSeeds = append([]string(nil), DefaultSeeds...)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) resolvePaths() error {
	if c.DataDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return fmt.Errorf("resolve data dir: %w", err)
		}
		c.DataDir = filepath.Join(base, AppDirName)
	}
	if c.QueryLogPath == "" {
		c.QueryLogPath = filepath.Join(c.DataDir, "logs", "query.log")
	}
	return nil
}

// StorePath is the location of the durable vector store file.
func (c *Config) StorePath() string {
	return filepath.Join(c.DataDir, StoreDirName, StoreFileName)
}

func (c *Config) Validate() error {
	if c.OllamaURL == "" {
		return fmt.Errorf("%w: OLLAMA_URL", ErrMissingRequired)
	}
	if c.WikiBaseURL == "" {
		return fmt.Errorf("%w: WIKI_BASE_URL", ErrMissingRequired)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: CHUNK_SIZE must be positive", ErrInvalidChunking)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: CHUNK_OVERLAP (%d) must be in [0, CHUNK_SIZE=%d)", ErrInvalidChunking, c.ChunkOverlap, c.ChunkSize)
	}
	if c.EmbeddingDimensions < 3 {
		return fmt.Errorf("%w: EMBEDDING_DIMENSIONS must be at least 3", ErrInvalidValue)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: BATCH_SIZE must be positive", ErrInvalidValue)
	}
	if c.CrawlMaxDepth < 0 {
		return fmt.Errorf("%w: CRAWL_MAX_DEPTH must not be negative", ErrInvalidValue)
	}
	if c.CrawlMaxLinks <= 0 {
		return fmt.Errorf("%w: CRAWL_MAX_LINKS must be positive", ErrInvalidValue)
	}
	if c.SearchTopK <= 0 {
		return fmt.Errorf("%w: SEARCH_TOP_K must be positive", ErrInvalidValue)
	}
	return nil
}
