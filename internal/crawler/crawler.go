package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"sync"
	"time"

	"wikirag/internal/metrics"

	"golang.org/x/time/rate"
)

var ErrCrawlInProgress = errors.New("a crawl is already running")

// maxPageBytes caps how much of a response body is read.
const maxPageBytes = 10 << 20

// Sink receives every successfully parsed page before its links are followed.
type Sink interface {
	Ingest(ctx context.Context, page *Page) error
}

type Config struct {
	BaseURL         string
	UserAgent       string
	MaxDepth        int
	MaxLinksPerPage int
	FetchDelay      time.Duration
	SeedDelay       time.Duration
	Timeout         time.Duration
	Exclusions      []string
}

// Status is the read-only snapshot of the current or last crawl run.
type Status struct {
	PagesVisited      int        `json:"pages_visited"`
	PagesScraped      int        `json:"pages_scraped"`
	ErrorsEncountered int        `json:"errors_encountered"`
	IsUpdating        bool       `json:"is_updating"`
	LastUpdate        *time.Time `json:"last_update,omitempty"`
	TotalPages        int        `json:"total_pages"`
}

type crawlState struct {
	visited      map[string]struct{}
	pagesScraped int
	errors       int
	isUpdating   bool
	lastUpdate   time.Time
	totalPages   int
}

type target struct {
	url   string
	depth int
}

// Crawler walks the wiki depth-first from a list of seeds, one fetch at a
// time, handing each parsed page to the sink.
type Crawler struct {
	cfg        Config
	base       *url.URL
	client     *http.Client
	limiter    *rate.Limiter
	exclusions []*regexp.Regexp
	sink       Sink

	mu    sync.Mutex
	state crawlState
}

func New(cfg Config, sink Sink) (*Crawler, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}

	var exclusions []*regexp.Regexp
	for _, ex := range cfg.Exclusions {
		re, err := regexp.Compile(ex)
		if err != nil {
			return nil, fmt.Errorf("invalid exclusion %q: %w", ex, err)
		}
		exclusions = append(exclusions, re)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.FetchDelay > 0 {
		limit = rate.Every(cfg.FetchDelay)
	}

	return &Crawler{
		cfg:        cfg,
		base:       base,
		client:     &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
		exclusions: exclusions,
		sink:       sink,
		state:      crawlState{visited: make(map[string]struct{})},
	}, nil
}

// Status returns a snapshot safe to hand to callers.
func (c *Crawler) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Status{
		PagesVisited:      len(c.state.visited),
		PagesScraped:      c.state.pagesScraped,
		ErrorsEncountered: c.state.errors,
		IsUpdating:        c.state.isUpdating,
		TotalPages:        c.state.totalPages,
	}
	if !c.state.lastUpdate.IsZero() {
		t := c.state.lastUpdate
		s.LastUpdate = &t
	}
	return s
}

// Crawl runs one full traversal over seeds. Single page failures are counted
// and skipped; only context cancellation stops the run early.
func (c *Crawler) Crawl(ctx context.Context, seeds []string) (Status, error) {
	if err := c.begin(); err != nil {
		return c.Status(), err
	}
	defer c.finish()

	return c.run(ctx, seeds)
}

// Start claims the crawler and runs the traversal in the background. It
// returns ErrCrawlInProgress immediately when another run holds it. done, if
// set, receives the final snapshot.
func (c *Crawler) Start(ctx context.Context, seeds []string, done func(Status, error)) error {
	if err := c.begin(); err != nil {
		return err
	}
	go func() {
		st, err := c.run(ctx, seeds)
		c.finish()
		if done != nil {
			done(c.Status(), err)
			return
		}
		if err != nil {
			slog.WarnContext(ctx, "background crawl stopped", "pages_scraped", st.PagesScraped, "error", err)
		}
	}()
	return nil
}

func (c *Crawler) run(ctx context.Context, seeds []string) (Status, error) {
	slog.InfoContext(ctx, "crawl started", "seeds", len(seeds), "max_depth", c.cfg.MaxDepth)

	for i, seed := range seeds {
		if i > 0 {
			if err := sleep(ctx, c.cfg.SeedDelay); err != nil {
				return c.Status(), err
			}
		}
		if err := c.crawlSeed(ctx, seed); err != nil {
			return c.Status(), err
		}
	}

	st := c.Status()
	slog.InfoContext(ctx, "crawl finished", "pages_scraped", st.PagesScraped, "errors", st.ErrorsEncountered)
	return st, nil
}

func (c *Crawler) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.isUpdating {
		return ErrCrawlInProgress
	}
	c.state.visited = make(map[string]struct{})
	c.state.pagesScraped = 0
	c.state.errors = 0
	c.state.isUpdating = true
	return nil
}

func (c *Crawler) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.isUpdating = false
	c.state.lastUpdate = time.Now().UTC()
	c.state.totalPages = c.state.pagesScraped
	metrics.CrawlRuns.Inc()
}

func (c *Crawler) crawlSeed(ctx context.Context, seed string) error {
	start := resolve(c.base, seed)
	if path, ok := canonicalPath(c.base, seed); ok {
		start = resolve(c.base, path)
	}

	stack := []target{{url: start, depth: 0}}
	for len(stack) > 0 {
		t := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if t.depth > c.cfg.MaxDepth || !c.markVisited(t.url) {
			continue
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		page, hrefs, err := c.fetch(ctx, t.url)
		if err != nil {
			c.recordError()
			slog.WarnContext(ctx, "page fetch failed", "url", t.url, "depth", t.depth, "error", err)
			continue
		}
		c.recordScraped()

		if err := c.sink.Ingest(ctx, page); err != nil {
			slog.ErrorContext(ctx, "page ingestion failed", "url", t.url, "error", err)
		}

		if t.depth >= c.cfg.MaxDepth {
			continue
		}
		next := c.selectLinks(hrefs)
		// Reverse push keeps document order when popping.
		for i := len(next) - 1; i >= 0; i-- {
			stack = append(stack, target{url: next[i], depth: t.depth + 1})
		}
	}
	return nil
}

// selectLinks keeps the first MaxLinksPerPage unvisited content links.
func (c *Crawler) selectLinks(hrefs []string) []string {
	links := DiscoverLinks(c.base, hrefs, c.exclusions)

	c.mu.Lock()
	defer c.mu.Unlock()

	var out []string
	for _, l := range links {
		if _, done := c.state.visited[l]; done {
			continue
		}
		out = append(out, l)
		if len(out) == c.cfg.MaxLinksPerPage {
			break
		}
	}
	return out
}

func (c *Crawler) fetch(ctx context.Context, pageURL string) (*Page, []string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, nil, err
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("read body: %w", err)
	}

	u, _ := url.Parse(pageURL)
	return ParsePage(raw, u)
}

func (c *Crawler) markVisited(u string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, done := c.state.visited[u]; done {
		return false
	}
	c.state.visited[u] = struct{}{}
	return true
}

func (c *Crawler) recordScraped() {
	c.mu.Lock()
	c.state.pagesScraped++
	c.mu.Unlock()
	metrics.CrawlPages.WithLabelValues("scraped").Inc()
}

func (c *Crawler) recordError() {
	c.mu.Lock()
	c.state.errors++
	c.mu.Unlock()
	metrics.CrawlPages.WithLabelValues("failed").Inc()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
