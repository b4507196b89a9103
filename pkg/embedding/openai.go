package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const DefaultOpenAIModel = "text-embedding-3-small"

// OpenAIProvider implements memory.EmbeddingProvider for OpenAI
type OpenAIProvider struct {
	client    openai.Client
	model     openai.EmbeddingModel
	dimension int
}

// NewOpenAIProvider creates an OpenAI provider that requests vectors of the
// given dimension. baseURL is optional and points the client at a compatible API.
func NewOpenAIProvider(apiKey, model, baseURL string, dimension int) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	if dimension <= 0 {
		dimension = DefaultDimension
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &OpenAIProvider{
		client:    openai.NewClient(opts...),
		model:     openai.EmbeddingModel(model),
		dimension: dimension,
	}, nil
}

func (p *OpenAIProvider) Dimension() int {
	return p.dimension
}

func (p *OpenAIProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input:      openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model:      p.model,
		Dimensions: openai.Int(int64(p.dimension)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call OpenAI API: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("OpenAI returned no embeddings")
	}

	values := resp.Data[0].Embedding
	vec := make([]float32, len(values))
	for i, v := range values {
		vec[i] = float32(v)
	}
	return vec, nil
}
