package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		w.Write([]byte(`{"models":[{"name":"llama3:8b"},{"name":" "},{"name":"qwen2"}]}`))
	}))
	defer srv.Close()

	models, err := Ollama{BaseURL: srv.URL + "/"}.Models(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3:8b", "qwen2"}, models)
}

func TestLMStudioModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		w.Write([]byte(`{"data":[{"id":"mistral-7b"},{"id":"phi-3"}]}`))
	}))
	defer srv.Close()

	models, err := LMStudio{BaseURL: srv.URL}.Models(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"mistral-7b", "phi-3"}, models)
}

func TestModelsErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) }},
		{"decode", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("not json")) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			_, err := Ollama{BaseURL: srv.URL}.Models(t.Context())
			assert.Error(t, err)
		})
	}
}

type stubProvider struct {
	name   string
	models []string
	err    error
}

func (s stubProvider) Name() string { return s.name }

func (s stubProvider) Models(context.Context) ([]string, error) { return s.models, s.err }

func TestListAllKeepsOrder(t *testing.T) {
	listings := ListAll(t.Context(), []Provider{
		stubProvider{name: "a", models: []string{"m1"}},
		stubProvider{name: "b", err: assert.AnError},
		stubProvider{name: "c"},
	})
	require.Len(t, listings, 3)
	assert.Equal(t, "a", listings[0].Provider)
	assert.True(t, listings[0].Available())
	assert.False(t, listings[1].Available())
	assert.Equal(t, "c", listings[2].Provider)
}

func TestBaseURL(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", DefaultOllamaURL},
		{"localhost:9000", "http://localhost:9000"},
		{"https://x.test/", "https://x.test"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, baseURL(tt.in, DefaultOllamaURL))
	}
}
