package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	contractx "github.com/naphat/mathflow/agent/contract"
)

type Config struct {
	BaseURL string        `envconfig:"BASE_URL" split_words:"true" default:"https://api.openai.com/v1"`
	APIKey  string        `envconfig:"API_KEY" split_words:"true"`
	Model   string        `envconfig:"MODEL" split_words:"true" default:"text-embedding-3-small"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

// NewClient creates an OpenAI SDK client for the embeddings endpoint.
// Returns nil when no API key is configured, so callers can fall back
// to lexical scoring.
func NewClient(cfg Config) *openaisdk.Client {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil
	}

	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
	}
	if trimmed := strings.TrimRight(cfg.BaseURL, "/"); trimmed != "" {
		opts = append(opts, option.WithBaseURL(trimmed))
	}

	client := openaisdk.NewClient(opts...)
	return &client
}

// NewEmbedFunc adapts an SDK client into the embed hook the retrieval
// stores accept. A nil client yields a nil func, which the stores treat
// as "no embedder".
func NewEmbedFunc(client *openaisdk.Client, cfg Config) contractx.EmbedFunc {
	if client == nil {
		return nil
	}

	return func(ctx context.Context, text string) ([]float64, error) {
		ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()

		resp, err := client.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
			Model: openaisdk.EmbeddingModel(cfg.Model),
			Input: openaisdk.EmbeddingNewParamsInputUnion{
				OfString: openaisdk.String(text),
			},
		})
		if err != nil {
			return nil, fmt.Errorf("embedding: create: %w", err)
		}
		if len(resp.Data) == 0 {
			return nil, fmt.Errorf("embedding: empty response for input of %d bytes", len(text))
		}
		return resp.Data[0].Embedding, nil
	}
}
