package crawler_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"wikirag/internal/crawler"
	"wikirag/internal/testutils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu    sync.Mutex
	pages []*crawler.Page
	err   error
	hook  func()
}

func (s *recordingSink) Ingest(ctx context.Context, page *crawler.Page) error {
	if s.hook != nil {
		s.hook()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages = append(s.pages, page)
	return s.err
}

func (s *recordingSink) titles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, p := range s.pages {
		out = append(out, p.Title)
	}
	return out
}

func para(title string) []string {
	return []string{fmt.Sprintf("%s is an article long enough to pass the block filter.", title)}
}

func newCrawler(t *testing.T, wiki *testutils.WikiServer, sink crawler.Sink, mutate ...func(*crawler.Config)) *crawler.Crawler {
	t.Helper()
	cfg := crawler.Config{
		BaseURL:         wiki.URL,
		UserAgent:       "wikirag-test",
		MaxDepth:        3,
		MaxLinksPerPage: 5,
		Timeout:         2 * time.Second,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	c, err := crawler.New(cfg, sink)
	require.NoError(t, err)
	return c
}

func seed(title string) string { return "/index.php?title=" + title }

func TestCrawl_SinglePageNoLinks(t *testing.T) {
	wiki := testutils.NewWikiServer()
	defer wiki.Close()
	wiki.AddPage("Lonely", testutils.WikiPage("Lonely", para("Lonely")))

	sink := &recordingSink{}
	st, err := newCrawler(t, wiki, sink).Crawl(context.Background(), []string{seed("Lonely")})
	require.NoError(t, err)

	assert.Equal(t, 1, st.PagesVisited)
	assert.Equal(t, 1, st.PagesScraped)
	assert.Equal(t, 0, st.ErrorsEncountered)
	assert.False(t, st.IsUpdating)
	assert.NotNil(t, st.LastUpdate)
	assert.Equal(t, 1, st.TotalPages)
	assert.Equal(t, []string{"Lonely"}, sink.titles())
	assert.Equal(t, []string{"Guides"}, sink.pages[0].Categories)
}

func TestCrawl_FetchErrorCountedAndSiblingSeedsProceed(t *testing.T) {
	wiki := testutils.NewWikiServer()
	defer wiki.Close()
	wiki.FailPage("Broken", http.StatusInternalServerError)
	wiki.AddPage("Fine", testutils.WikiPage("Fine", para("Fine")))

	sink := &recordingSink{}
	st, err := newCrawler(t, wiki, sink).Crawl(context.Background(), []string{seed("Broken"), seed("Fine")})
	require.NoError(t, err)

	assert.Equal(t, 1, st.ErrorsEncountered)
	assert.Equal(t, 1, st.PagesScraped)
	assert.Equal(t, 2, st.PagesVisited)
	assert.Equal(t, []string{"Fine"}, sink.titles())
}

func TestCrawl_DepthBound(t *testing.T) {
	wiki := testutils.NewWikiServer()
	defer wiki.Close()
	chain := []string{"D0", "D1", "D2", "D3", "D4"}
	for i, title := range chain {
		var links []string
		if i+1 < len(chain) {
			links = []string{chain[i+1]}
		}
		wiki.AddPage(title, testutils.WikiPage(title, para(title), links...))
	}

	sink := &recordingSink{}
	st, err := newCrawler(t, wiki, sink).Crawl(context.Background(), []string{seed("D0")})
	require.NoError(t, err)

	assert.Equal(t, []string{"D0", "D1", "D2", "D3"}, sink.titles())
	assert.Equal(t, 4, st.PagesScraped)
	assert.NotContains(t, wiki.Hits(), "D4")
}

func TestCrawl_BranchingBoundedPerPage(t *testing.T) {
	wiki := testutils.NewWikiServer()
	defer wiki.Close()
	var children []string
	for i := 1; i <= 8; i++ {
		title := fmt.Sprintf("Child%d", i)
		children = append(children, title)
		wiki.AddPage(title, testutils.WikiPage(title, para(title)))
	}
	wiki.AddPage("Hub", testutils.WikiPage("Hub", para("Hub"), children...))

	sink := &recordingSink{}
	st, err := newCrawler(t, wiki, sink).Crawl(context.Background(), []string{seed("Hub")})
	require.NoError(t, err)

	assert.Equal(t, 6, st.PagesScraped)
	assert.Equal(t, []string{"Hub", "Child1", "Child2", "Child3", "Child4", "Child5"}, sink.titles())
}

func TestCrawl_DepthFirstOrderAndDedup(t *testing.T) {
	wiki := testutils.NewWikiServer()
	defer wiki.Close()
	wiki.AddPage("A", testutils.WikiPage("A", para("A"), "B", "C"))
	wiki.AddPage("B", testutils.WikiPage("B", para("B"), "D", "A"))
	wiki.AddPage("C", testutils.WikiPage("C", para("C"), "D"))
	wiki.AddPage("D", testutils.WikiPage("D", para("D"), "A"))

	sink := &recordingSink{}
	st, err := newCrawler(t, wiki, sink).Crawl(context.Background(), []string{seed("A"), seed("D")})
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "D", "C"}, sink.titles())
	assert.Equal(t, 4, st.PagesVisited)
	assert.Len(t, wiki.Hits(), 4)
}

func TestCrawl_SinkErrorIsNotACrawlError(t *testing.T) {
	wiki := testutils.NewWikiServer()
	defer wiki.Close()
	wiki.AddPage("A", testutils.WikiPage("A", para("A"), "B"))
	wiki.AddPage("B", testutils.WikiPage("B", para("B")))

	sink := &recordingSink{err: errors.New("store down")}
	st, err := newCrawler(t, wiki, sink).Crawl(context.Background(), []string{seed("A")})
	require.NoError(t, err)

	assert.Equal(t, 2, st.PagesScraped)
	assert.Equal(t, 0, st.ErrorsEncountered)
}

func TestCrawl_Exclusions(t *testing.T) {
	wiki := testutils.NewWikiServer()
	defer wiki.Close()
	wiki.AddPage("A", testutils.WikiPage("A", para("A"), "Secret_Page", "B"))
	wiki.AddPage("B", testutils.WikiPage("B", para("B")))
	wiki.AddPage("Secret_Page", testutils.WikiPage("Secret", para("Secret")))

	sink := &recordingSink{}
	_, err := newCrawler(t, wiki, sink, func(c *crawler.Config) {
		c.Exclusions = []string{`Secret`}
	}).Crawl(context.Background(), []string{seed("A")})
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, sink.titles())
}

func TestCrawl_RejectsConcurrentRun(t *testing.T) {
	wiki := testutils.NewWikiServer()
	defer wiki.Close()
	wiki.AddPage("Slow", testutils.WikiPage("Slow", para("Slow")))

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	sink := &recordingSink{hook: func() {
		once.Do(func() { close(entered) })
		<-release
	}}
	c := newCrawler(t, wiki, sink)

	done := make(chan error, 1)
	go func() {
		_, err := c.Crawl(context.Background(), []string{seed("Slow")})
		done <- err
	}()

	<-entered
	assert.True(t, c.Status().IsUpdating)
	_, err := c.Crawl(context.Background(), []string{seed("Slow")})
	assert.ErrorIs(t, err, crawler.ErrCrawlInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, c.Status().IsUpdating)
}

func TestStart_RunsInBackground(t *testing.T) {
	wiki := testutils.NewWikiServer()
	defer wiki.Close()
	wiki.AddPage("Slow", testutils.WikiPage("Slow", para("Slow")))

	release := make(chan struct{})
	sink := &recordingSink{hook: func() { <-release }}
	c := newCrawler(t, wiki, sink)

	finished := make(chan crawler.Status, 1)
	err := c.Start(context.Background(), []string{seed("Slow")}, func(st crawler.Status, err error) {
		assert.NoError(t, err)
		finished <- st
	})
	require.NoError(t, err)
	assert.True(t, c.Status().IsUpdating)

	err = c.Start(context.Background(), []string{seed("Slow")}, nil)
	assert.ErrorIs(t, err, crawler.ErrCrawlInProgress)

	close(release)
	st := <-finished
	assert.False(t, st.IsUpdating)
	assert.Equal(t, 1, st.PagesScraped)
	require.NotNil(t, st.LastUpdate)
}

func TestCrawl_ResetsCountersBetweenRuns(t *testing.T) {
	wiki := testutils.NewWikiServer()
	defer wiki.Close()
	wiki.AddPage("A", testutils.WikiPage("A", para("A")))

	c := newCrawler(t, wiki, &recordingSink{})
	_, err := c.Crawl(context.Background(), []string{seed("A")})
	require.NoError(t, err)
	st, err := c.Crawl(context.Background(), []string{seed("A")})
	require.NoError(t, err)

	assert.Equal(t, 1, st.PagesScraped)
	assert.Equal(t, 1, st.PagesVisited)
}

func TestCrawl_CancelledContext(t *testing.T) {
	wiki := testutils.NewWikiServer()
	defer wiki.Close()
	wiki.AddPage("A", testutils.WikiPage("A", para("A")))
	wiki.AddPage("B", testutils.WikiPage("B", para("B")))

	ctx, cancel := context.WithCancel(context.Background())
	c := newCrawler(t, wiki, &recordingSink{hook: cancel}, func(c *crawler.Config) {
		c.SeedDelay = time.Second
	})

	_, err := c.Crawl(ctx, []string{seed("A"), seed("B")})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, c.Status().IsUpdating)
}

func TestCrawl_RateLimitedFetches(t *testing.T) {
	wiki := testutils.NewWikiServer()
	defer wiki.Close()
	wiki.AddPage("A", testutils.WikiPage("A", para("A"), "B", "C"))
	wiki.AddPage("B", testutils.WikiPage("B", para("B")))
	wiki.AddPage("C", testutils.WikiPage("C", para("C")))

	c := newCrawler(t, wiki, &recordingSink{}, func(c *crawler.Config) {
		c.FetchDelay = 40 * time.Millisecond
	})

	start := time.Now()
	_, err := c.Crawl(context.Background(), []string{seed("A")})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := crawler.New(crawler.Config{BaseURL: "not a url"}, &recordingSink{})
	assert.Error(t, err)

	_, err = crawler.New(crawler.Config{BaseURL: "http://wiki", Exclusions: []string{"("}}, &recordingSink{})
	assert.Error(t, err)
}
