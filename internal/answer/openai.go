package answer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"

	"github.com/bull/campus-rag/internal/citation"
	"github.com/bull/campus-rag/internal/domain"
	"github.com/bull/campus-rag/internal/embedding"
)

const (
	// DefaultModel is the chat model used for answers.
	DefaultModel = "gpt-4o-mini"

	// DefaultMaxTokens is the context budget before truncation (in tokens).
	DefaultMaxTokens = 16000
)

// ErrEmptyCompletion is returned when the model produced no choices.
var ErrEmptyCompletion = errors.New("chat completion returned no choices")

type completion struct {
	Answer  string `json:"answer"`
	Sources []int  `json:"sources"`
}

// OpenAIAnswerer answers with an OpenAI chat model.
type OpenAIAnswerer struct {
	client    *openai.Client
	model     string
	maxTokens int
	logger    *slog.Logger
}

// NewOpenAIAnswerer creates an answerer. Empty model and non-positive
// maxTokens select the defaults.
func NewOpenAIAnswerer(client *openai.Client, model string, maxTokens int, logger *slog.Logger) *OpenAIAnswerer {
	if model == "" {
		model = DefaultModel
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIAnswerer{client: client, model: model, maxTokens: maxTokens, logger: logger}
}

// Answer asks the model to answer from the retrieved chunks. Citations are
// narrowed to the sources the model reports using; if it reports none, all
// retrieved documents are cited.
func (a *OpenAIAnswerer) Answer(ctx context.Context, query string, result *domain.SearchResult) (*Answer, error) {
	if result.Empty() {
		return &Answer{Text: NoResultsText}, nil
	}

	cites := citation.Resolve(result)
	// Rough estimate: 1 token ≈ 4 characters
	prompt, truncated := buildPrompt(query, result, cites, a.maxTokens*4)
	if truncated {
		a.logger.Warn("Truncated answer context", "max_tokens", a.maxTokens, "sources", len(cites))
	}

	var resp *openai.ChatCompletion
	operation := func() error {
		var err error
		resp, err = a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(systemPrompt),
				openai.UserMessage(prompt),
			},
			Model: openai.ChatModel(a.model),
			ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
				OfJSONObject: &openai.ResponseFormatJSONObjectParam{
					Type: "json_object",
				},
			},
		})
		if err != nil && !embedding.IsRateLimitError(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	if err := backoff.Retry(operation, backoff.WithContext(embedding.NewBackOff(), ctx)); err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyCompletion
	}

	return parseCompletion(resp.Choices[0].Message.Content, cites)
}

// parseCompletion decodes the model's JSON reply. Source numbers are
// 1-based; unknown numbers are ignored.
func parseCompletion(content string, cites []citation.Citation) (*Answer, error) {
	var c completion
	if err := json.Unmarshal([]byte(content), &c); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	used := make([]citation.Citation, 0, len(c.Sources))
	seen := make(map[int]bool)
	for _, n := range c.Sources {
		if n < 1 || n > len(cites) || seen[n] {
			continue
		}
		seen[n] = true
		used = append(used, cites[n-1])
	}
	if len(used) == 0 {
		used = cites
	}
	return &Answer{Text: c.Answer, Citations: used, Grounded: true}, nil
}
