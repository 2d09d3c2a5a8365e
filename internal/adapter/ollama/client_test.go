package ollama_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wikirag/internal/adapter/ollama"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(url string) *ollama.Client {
	return ollama.NewClient(ollama.Config{
		BaseURL:           url,
		EmbeddingModel:    "nomic-embed-text",
		GenerationModel:   "phi3:mini",
		EmbeddingTimeout:  time.Second,
		GenerationTimeout: time.Second,
	})
}

func TestClient_Embed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "nomic-embed-text", body["model"])
		assert.Equal(t, "hello", body["prompt"])

		json.NewEncoder(w).Encode(map[string]interface{}{"embedding": []float64{0.1, 0.2, 0.3}})
	}))
	defer ts.Close()

	vec, err := newClient(ts.URL).Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestClient_Embed_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		errIs   error
	}{
		{
			name: "Empty Array",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"embedding":[]}`))
			},
			errIs: ollama.ErrEmptyEmbedding,
		},
		{
			name: "Missing Field",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{}`))
			},
			errIs: ollama.ErrEmptyEmbedding,
		},
		{
			name: "Malformed JSON",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"embedding": [1,`))
			},
		},
		{
			name: "Server Error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte("boom"))
			},
		},
		{
			name: "Provider Error Body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte(`{"error":"model not found"}`))
			},
			errIs: ollama.ErrProvider,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(tt.handler)
			defer ts.Close()

			vec, err := newClient(ts.URL).Embed(context.Background(), "x")
			assert.Error(t, err)
			assert.Nil(t, vec)
			if tt.errIs != nil {
				assert.True(t, errors.Is(err, tt.errIs), "got %v", err)
			}
		})
	}
}

func TestClient_Embed_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()

	c := ollama.NewClient(ollama.Config{BaseURL: ts.URL, EmbeddingTimeout: 50 * time.Millisecond})
	start := time.Now()
	_, err := c.Embed(context.Background(), "x")
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestClient_Generate(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "phi3:mini", body["model"])
		assert.Equal(t, false, body["stream"])

		json.NewEncoder(w).Encode(map[string]interface{}{"response": "Knap flint on a rock.", "done": true})
	}))
	defer ts.Close()

	out, err := newClient(ts.URL).Generate(context.Background(), "how to knap?")
	require.NoError(t, err)
	assert.Equal(t, "Knap flint on a rock.", out)
}

func TestClient_Generate_ErrorField(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"out of memory"}`))
	}))
	defer ts.Close()

	_, err := newClient(ts.URL).Generate(context.Background(), "q")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ollama.ErrProvider))
	assert.Contains(t, err.Error(), "out of memory")
}

func TestClient_Ping(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			w.Write([]byte(`{"models":[]}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	assert.NoError(t, newClient(ts.URL).Ping(context.Background()))

	ts.Close()
	assert.Error(t, newClient(ts.URL).Ping(context.Background()))
}
