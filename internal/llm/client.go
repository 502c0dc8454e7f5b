// Package llm wraps the Gemini OpenAI-compatible endpoint behind the
// openai-go client for the three components that need it: the relevance
// validator (C5), the query augmenter (C7), and the embedding store (C8).
package llm

import (
	"context"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"litscout/internal/config"
)

// Client is a thin wrapper around the openai-go client pointed at
// Gemini's OpenAI-compatible base URL.
type Client struct {
	raw            openai.Client
	chatModel      string
	embeddingModel string
	embeddingDim   int64
	requestTimeout time.Duration
}

// NewClient builds a Client from the loaded LLM configuration.
func NewClient(cfg *config.Config) (*Client, error) {
	timeout := 30 * time.Second
	if cfg.LLM.RequestTimeout != "" {
		if d, err := time.ParseDuration(cfg.LLM.RequestTimeout); err == nil {
			timeout = d
		}
	}

	raw := openai.NewClient(
		option.WithAPIKey(cfg.LLM.APIKey),
		option.WithBaseURL(cfg.LLM.BaseURL),
	)

	return &Client{
		raw:            raw,
		chatModel:      cfg.LLM.ChatModel,
		embeddingModel: cfg.LLM.EmbeddingModel,
		embeddingDim:   int64(cfg.LLM.EmbeddingDim),
		requestTimeout: timeout,
	}, nil
}

// CompleteText sends a single user-message prompt and returns the raw
// trimmed response text. Callers are responsible for parsing/validating
// the content and for falling back on error — this method never retries.
func (c *Client) CompleteText(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	resp, err := c.raw.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errNoChoices
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Embed returns a single embedding vector for text. The caller is
// responsible for L2-normalizing and for substituting a zero vector on
// error (§4.6).
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	params := openai.EmbeddingNewParams{
		Model: c.embeddingModel,
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: []string{text},
		},
	}
	if c.embeddingDim > 0 {
		params.Dimensions = openai.Int(c.embeddingDim)
	}

	resp, err := c.raw.Embeddings.New(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, errNoEmbeddings
	}

	vec := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

// Dimensions reports the configured embedding dimension.
func (c *Client) Dimensions() int { return int(c.embeddingDim) }
