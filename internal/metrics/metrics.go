package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wikirag"

var (
	CrawlPages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "crawl_pages_total",
		Help:      "Pages handled by the crawler, by result (scraped, failed).",
	}, []string{"result"})

	CrawlRuns = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "crawl_runs_total",
		Help:      "Completed crawl runs.",
	})

	IngestedChunks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingested_chunks_total",
		Help:      "Chunks embedded and handed to the vector store.",
	})

	EmbeddingFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "embedding_fallbacks_total",
		Help:      "Embedding strategies that failed and passed the text to the next one.",
	}, []string{"strategy"})

	StoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "store_errors_total",
		Help:      "Vector store operation failures, by operation.",
	}, []string{"op"})

	SearchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "search_duration_seconds",
		Help:      "Retrieval latency, by the strategy that produced the results.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"strategy"})
)

func Handler() http.Handler {
	return promhttp.Handler()
}
