package testutils

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"wikirag/internal/config"
	"wikirag/internal/embedding"
)

// IntegrationSuite bundles a fake wiki, a fake inference runtime and a
// scratch data directory for end-to-end tests.
type IntegrationSuite struct {
	T       *testing.T
	Wiki    *WikiServer
	Ollama  *OllamaServer
	DataDir string
}

func NewIntegrationSuite(t *testing.T) *IntegrationSuite {
	return &IntegrationSuite{T: t}
}

func (s *IntegrationSuite) Setup() {
	s.Wiki = NewWikiServer()
	s.Ollama = NewOllamaServer(64)
	s.DataDir = s.T.TempDir()
}

func (s *IntegrationSuite) Teardown() {
	if s.Wiki != nil {
		s.Wiki.Close()
	}
	if s.Ollama != nil {
		s.Ollama.Close()
	}
}

// GetAppConfig returns a valid config pointing at the suite's fake servers,
// with pacing delays removed.
func (s *IntegrationSuite) GetAppConfig() *config.Config {
	return &config.Config{
		ServerPort:          0,
		LogLevel:            "debug",
		LogFormat:           "text",
		DataDir:             s.DataDir,
		QueryLogPath:        filepath.Join(s.DataDir, "logs", "query.log"),
		OllamaURL:           s.Ollama.URL,
		OllamaModel:         "phi3:mini",
		EmbeddingModel:      "nomic-embed-text",
		EmbeddingDimensions: s.Ollama.Dimensions,
		EmbeddingTimeout:    2 * time.Second,
		GenerationTimeout:   2 * time.Second,
		ChunkSize:           50,
		ChunkOverlap:        10,
		BatchSize:           10,
		MinChunkChars:       20,
		WikiBaseURL:         s.Wiki.URL,
		CrawlSeeds:          []string{"/index.php?title=Main_Page"},
		CrawlMaxDepth:       3,
		CrawlMaxLinks:       5,
		CrawlTimeout:        2 * time.Second,
		CrawlUserAgent:      "wikirag-test",
		StoreLockTimeout:    50 * time.Millisecond,
		SearchTopK:          5,
		QueryCacheSize:      16,
		ChatHistoryLimit:    6,

		BootstrapRetryAttempts: 1,
		BootstrapRetryDelay:    time.Millisecond,
	}
}

// WikiServer serves MediaWiki-style pages at /index.php?title=<Title>.
type WikiServer struct {
	*httptest.Server

	mu       sync.Mutex
	pages    map[string]string
	statuses map[string]int
	hits     []string
}

func NewWikiServer() *WikiServer {
	w := &WikiServer{pages: map[string]string{}, statuses: map[string]int{}}
	w.Server = httptest.NewServer(http.HandlerFunc(w.serve))
	return w
}

func (w *WikiServer) AddPage(title, body string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pages[title] = body
}

// FailPage makes title respond with status.
func (w *WikiServer) FailPage(title string, status int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.statuses[title] = status
}

// Hits lists requested titles in order.
func (w *WikiServer) Hits() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.hits...)
}

func (w *WikiServer) serve(rw http.ResponseWriter, r *http.Request) {
	title := r.URL.Query().Get("title")

	w.mu.Lock()
	w.hits = append(w.hits, title)
	status, failing := w.statuses[title]
	body, ok := w.pages[title]
	w.mu.Unlock()

	if failing {
		rw.WriteHeader(status)
		return
	}
	if r.URL.Path != "/index.php" || !ok {
		rw.WriteHeader(http.StatusNotFound)
		return
	}
	rw.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(rw, body)
}

// WikiPage renders a minimal MediaWiki article with the given paragraphs and
// /wiki/ links to other titles.
func WikiPage(title string, paragraphs []string, links ...string) string {
	var b strings.Builder
	b.WriteString("<html><head><title>" + html.EscapeString(title) + "</title></head><body>")
	b.WriteString(`<h1 id="firstHeading" class="firstHeading">` + html.EscapeString(title) + `</h1>`)
	b.WriteString(`<div id="bodyContent"><div id="mw-content-text"><div class="mw-parser-output">`)
	b.WriteString(`<div class="navbox">Navbox boilerplate that never reaches the index</div>`)
	for _, p := range paragraphs {
		b.WriteString("<p>" + html.EscapeString(p) + "</p>")
	}
	if len(links) > 0 {
		b.WriteString("<ul>")
		for _, l := range links {
			b.WriteString(`<li><a href="/wiki/` + l + `">` + html.EscapeString(strings.ReplaceAll(l, "_", " ")) + `</a></li>`)
		}
		b.WriteString("</ul>")
	}
	b.WriteString(`</div></div></div>`)
	b.WriteString(`<div id="catlinks"><a href="/index.php?title=Special:Categories">Categories</a>`)
	b.WriteString(`<a href="/index.php?title=Category:Guides">Guides</a></div>`)
	b.WriteString("</body></html>")
	return b.String()
}

// OllamaServer imitates the embedding and generation endpoints.
type OllamaServer struct {
	*httptest.Server
	Dimensions int

	mu         sync.Mutex
	down       bool
	prompts    []string
	embedCalls int
}

func NewOllamaServer(dims int) *OllamaServer {
	o := &OllamaServer{Dimensions: dims}
	o.Server = httptest.NewServer(http.HandlerFunc(o.serve))
	return o
}

// SetDown makes every endpoint answer 503.
func (o *OllamaServer) SetDown(down bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.down = down
}

func (o *OllamaServer) Prompts() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.prompts...)
}

func (o *OllamaServer) EmbedCalls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.embedCalls
}

func (o *OllamaServer) serve(w http.ResponseWriter, r *http.Request) {
	o.mu.Lock()
	down := o.down
	o.mu.Unlock()
	if down {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	switch r.URL.Path {
	case "/api/tags":
		w.Write([]byte(`{"models":[]}`))
	case "/api/embeddings":
		var req struct {
			Prompt string `json:"prompt"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		o.mu.Lock()
		o.embedCalls++
		o.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]interface{}{
			"embedding": embedding.HashVector(req.Prompt, o.Dimensions),
		})
	case "/api/generate":
		var req struct {
			Prompt string `json:"prompt"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		o.mu.Lock()
		o.prompts = append(o.prompts, req.Prompt)
		o.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]interface{}{"response": "generated answer", "done": true})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}
