package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"wikirag/internal/retrieval"
	"wikirag/internal/worker"
)

type MockIngester struct{ mock.Mock }

func (m *MockIngester) IngestDocument(ctx context.Context, doc worker.Document) (int, error) {
	args := m.Called(ctx, doc)
	return args.Int(0), args.Error(1)
}

func (m *MockIngester) DeleteSource(ctx context.Context, url string) (int, error) {
	args := m.Called(ctx, url)
	return args.Int(0), args.Error(1)
}

type MockSearcher struct{ mock.Mock }

func (m *MockSearcher) Search(ctx context.Context, query string, limit int) ([]retrieval.SearchResult, error) {
	args := m.Called(ctx, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]retrieval.SearchResult), args.Error(1)
}

func TestHandler_Ingest(t *testing.T) {
	doc := worker.Document{Title: "Clay", URL: "http://wiki/index.php?title=Clay", Content: "Clay is found near water."}

	tests := []struct {
		name       string
		body       string
		setup      func(*MockIngester)
		wantStatus int
		wantCode   string
		unsaved    bool
	}{
		{
			name: "Success",
			body: `{"title":"Clay","url":"http://wiki/index.php?title=Clay","content":"Clay is found near water."}`,
			setup: func(m *MockIngester) {
				m.On("IngestDocument", mock.Anything, doc).Return(1, nil)
			},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "Missing URL",
			body:       `{"title":"Clay","content":"x"}`,
			setup:      func(m *MockIngester) {},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
		},
		{
			name:       "Missing Title",
			body:       `{"url":"u","content":"x"}`,
			setup:      func(m *MockIngester) {},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
		},
		{
			name:       "Invalid JSON",
			body:       `not json`,
			setup:      func(m *MockIngester) {},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
		},
		{
			name: "Embedding Failure",
			body: `{"title":"Clay","url":"http://wiki/index.php?title=Clay","content":"Clay is found near water."}`,
			setup: func(m *MockIngester) {
				m.On("IngestDocument", mock.Anything, doc).Return(0, fmt.Errorf("%w: down", worker.ErrEmbedding))
			},
			wantStatus: http.StatusBadGateway,
			wantCode:   "EMBEDDING_ERROR",
		},
		{
			name: "Store Write Failure",
			body: `{"title":"Clay","url":"http://wiki/index.php?title=Clay","content":"Clay is found near water."}`,
			setup: func(m *MockIngester) {
				m.On("IngestDocument", mock.Anything, doc).Return(1, fmt.Errorf("%w: locked", worker.ErrPersist))
			},
			wantStatus: http.StatusCreated,
			unsaved:    true,
		},
		{
			name: "Cancelled",
			body: `{"title":"Clay","url":"http://wiki/index.php?title=Clay","content":"Clay is found near water."}`,
			setup: func(m *MockIngester) {
				m.On("IngestDocument", mock.Anything, doc).Return(0, context.Canceled)
			},
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ing := new(MockIngester)
			tt.setup(ing)
			h := NewHandler(ing, new(MockSearcher))

			w := httptest.NewRecorder()
			h.Ingest(w, httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader(tt.body)))

			assert.Equal(t, tt.wantStatus, w.Code)
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, body["error"].(map[string]interface{})["code"])
			} else {
				data := body["data"].(map[string]interface{})
				assert.EqualValues(t, 1, data["chunks"])
				assert.Equal(t, !tt.unsaved, data["persisted"])
			}
			ing.AssertExpectations(t)
		})
	}
}

func TestHandler_Search(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setup      func(*MockSearcher)
		wantStatus int
		wantCount  int
	}{
		{
			name: "Results",
			body: `{"query":"clay","limit":2}`,
			setup: func(m *MockSearcher) {
				m.On("Search", mock.Anything, "clay", 2).Return([]retrieval.SearchResult{{ID: "clay_0", Content: "Clay", Score: 0.8}}, nil)
			},
			wantStatus: http.StatusOK,
			wantCount:  1,
		},
		{
			name: "Empty Is Array",
			body: `{"query":"clay"}`,
			setup: func(m *MockSearcher) {
				m.On("Search", mock.Anything, "clay", 0).Return(nil, nil)
			},
			wantStatus: http.StatusOK,
			wantCount:  0,
		},
		{
			name: "Blank Query",
			body: `{"query":" "}`,
			setup: func(m *MockSearcher) {
				m.On("Search", mock.Anything, " ", 0).Return(nil, retrieval.ErrEmptyQuery)
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "Embed Failure",
			body: `{"query":"clay"}`,
			setup: func(m *MockSearcher) {
				m.On("Search", mock.Anything, "clay", 0).Return(nil, errors.New("embed query: boom"))
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := new(MockSearcher)
			tt.setup(s)
			h := NewHandler(new(MockIngester), s)

			w := httptest.NewRecorder()
			h.Search(w, httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(tt.body)))

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus != http.StatusOK {
				return
			}
			var body struct {
				Data []retrieval.SearchResult `json:"data"`
				Meta map[string]int           `json:"meta"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.NotNil(t, body.Data)
			assert.Len(t, body.Data, tt.wantCount)
			assert.Equal(t, tt.wantCount, body.Meta["count"])
		})
	}
}

func TestHandler_DeleteSource(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		ing := new(MockIngester)
		ing.On("DeleteSource", mock.Anything, "http://wiki/index.php?title=Clay").Return(3, nil)
		h := NewHandler(ing, new(MockSearcher))

		w := httptest.NewRecorder()
		h.DeleteSource(w, httptest.NewRequest(http.MethodDelete, "/sources?url=http%3A%2F%2Fwiki%2Findex.php%3Ftitle%3DClay", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"data":{"cached_removed":3}}`, w.Body.String())
	})

	t.Run("Missing URL", func(t *testing.T) {
		h := NewHandler(new(MockIngester), new(MockSearcher))
		w := httptest.NewRecorder()
		h.DeleteSource(w, httptest.NewRequest(http.MethodDelete, "/sources", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Store Error", func(t *testing.T) {
		ing := new(MockIngester)
		ing.On("DeleteSource", mock.Anything, "u").Return(0, errors.New("locked"))
		h := NewHandler(ing, new(MockSearcher))
		w := httptest.NewRecorder()
		h.DeleteSource(w, httptest.NewRequest(http.MethodDelete, "/sources?url=u", nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
