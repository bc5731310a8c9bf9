// Package gemini embeds text with the Gemini embedding models.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/spigell/govcon-matcher/internal/embedding"
)

const (
	defaultSummaryModel  = "text-embedding-004"
	defaultFulltextModel = "gemini-embedding-001"
)

// Config selects the model used for each profile.
type Config struct {
	APIKey        string
	SummaryModel  string
	FulltextModel string
}

type model struct {
	client *genai.Client
	name   string
}

// Embedder implements embedding.Embedder. Clients are created on first use per profile.
type Embedder struct {
	apiKey string
	names  map[embedding.Profile]string
	models *embedding.ModelCache[embedding.Profile, model]
}

func New(cfg Config) (*Embedder, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	summary := strings.TrimSpace(cfg.SummaryModel)
	if summary == "" {
		summary = defaultSummaryModel
	}
	fulltext := strings.TrimSpace(cfg.FulltextModel)
	if fulltext == "" {
		fulltext = defaultFulltextModel
	}

	return &Embedder{
		apiKey: apiKey,
		names: map[embedding.Profile]string{
			embedding.Summary:  summary,
			embedding.Fulltext: fulltext,
		},
		models: embedding.NewModelCache[embedding.Profile, model](),
	}, nil
}

// Model names the model serving the profile.
func (e *Embedder) Model(p embedding.Profile) string {
	return e.names[p]
}

func (e *Embedder) Embed(ctx context.Context, text string, p embedding.Profile) ([]float32, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("text to embed must not be empty")
	}

	m, err := e.models.GetOrLoad(ctx, p, e.load(p))
	if err != nil {
		return nil, err
	}

	dim := int32(p.Dimension())
	resp, err := m.client.Models.EmbedContent(ctx, m.name, genai.Text(text), &genai.EmbedContentConfig{
		OutputDimensionality: &dim,
	})
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, errors.New("gemini api returned no embeddings")
	}

	v := resp.Embeddings[0].Values
	if err := embedding.CheckDimension(v, p); err != nil {
		return nil, err
	}
	return v, nil
}

func (e *Embedder) load(p embedding.Profile) func(context.Context) (model, error) {
	return func(ctx context.Context) (model, error) {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  e.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return model{}, fmt.Errorf("create genai client: %w", err)
		}
		return model{client: client, name: e.names[p]}, nil
	}
}

var _ embedding.Embedder = (*Embedder)(nil)
