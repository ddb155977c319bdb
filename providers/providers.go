// Package providers lists the models offered by local LLM runtimes the
// gateway can route to.
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultOllamaURL is where Ollama listens by default.
	DefaultOllamaURL = "http://127.0.0.1:11434"
	// DefaultLMStudioURL is where LM Studio's server listens by default.
	DefaultLMStudioURL = "http://127.0.0.1:1234"

	listTimeout = 2 * time.Second
)

// Provider is a local model runtime.
type Provider interface {
	Name() string
	Models(ctx context.Context) ([]string, error)
}

// Ollama queries /api/tags.
type Ollama struct {
	BaseURL string
	Client  *http.Client
}

func (Ollama) Name() string { return "Ollama" }

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

func (o Ollama) Models(ctx context.Context) ([]string, error) {
	var payload ollamaTagsResponse
	if err := getJSON(ctx, o.Client, baseURL(o.BaseURL, DefaultOllamaURL)+"/api/tags", &payload); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(payload.Models))
	for _, m := range payload.Models {
		if n := strings.TrimSpace(m.Name); n != "" {
			names = append(names, n)
		}
	}
	return names, nil
}

// LMStudio queries the OpenAI compatible /v1/models.
type LMStudio struct {
	BaseURL string
	Client  *http.Client
}

func (LMStudio) Name() string { return "LM Studio" }

type openAIModelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (l LMStudio) Models(ctx context.Context) ([]string, error) {
	var payload openAIModelsResponse
	if err := getJSON(ctx, l.Client, baseURL(l.BaseURL, DefaultLMStudioURL)+"/v1/models", &payload); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(payload.Data))
	for _, m := range payload.Data {
		if id := strings.TrimSpace(m.ID); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Defaults returns the runtimes at their usual local addresses.
func Defaults() []Provider {
	return []Provider{Ollama{}, LMStudio{}}
}

// Listing is one provider's result. Err is set when it was unreachable.
type Listing struct {
	Provider string
	Models   []string
	Err      error
}

// Available reports whether the provider answered.
func (l Listing) Available() bool { return l.Err == nil }

// ListAll queries every provider concurrently. Results keep the order of ps.
func ListAll(ctx context.Context, ps []Provider) []Listing {
	out := make([]Listing, len(ps))
	var g errgroup.Group
	for i, p := range ps {
		g.Go(func() error {
			models, err := p.Models(ctx)
			out[i] = Listing{Provider: p.Name(), Models: models, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func baseURL(u, def string) string {
	u = strings.TrimSpace(u)
	if u == "" {
		return def
	}
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		u = "http://" + u
	}
	return strings.TrimRight(u, "/")
}

func getJSON(ctx context.Context, client *http.Client, url string, v any) error {
	if client == nil {
		client = &http.Client{Timeout: listTimeout}
	}
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding %s: %w", url, err)
	}
	return nil
}
