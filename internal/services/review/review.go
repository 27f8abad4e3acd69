// Package review runs machine translations past an LLM for a fluency pass.
// The pipeline treats review as best-effort: callers keep the original
// translation when review fails.
package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// ChatClient is the slice of the OpenAI client the reviewer needs
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Options configures a review pass
type Options struct {
	// Model defaults to gpt-4o-mini
	Model string
	// SourceLang and TargetLang are human-readable language names used in
	// the prompt, e.g. "English" and "Bengali".
	SourceLang  string
	TargetLang  string
	Temperature float32
}

func (o Options) withDefaults() Options {
	if o.Model == "" {
		o.Model = openai.GPT4oMini
	}
	if o.Temperature == 0 {
		o.Temperature = 0.2
	}
	return o
}

// Reviewer polishes translated segment texts through a chat model
type Reviewer struct {
	client ChatClient
	opts   Options
}

// New creates a reviewer using the OPENAI_API_KEY environment variable
func New(opts Options) (*Reviewer, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable is not set")
	}
	return NewWithClient(openai.NewClient(apiKey), opts), nil
}

// NewWithClient creates a reviewer with a caller-supplied chat client
func NewWithClient(client ChatClient, opts Options) *Reviewer {
	return &Reviewer{client: client, opts: opts.withDefaults()}
}

type reviewPair struct {
	Source      string `json:"source"`
	Translation string `json:"translation"`
}

type reviewResult struct {
	Translations []string `json:"translations"`
}

const systemPrompt = "You are a professional subtitle translator. You will receive " +
	"source sentences with their machine translations. Fix mistranslations, " +
	"awkward phrasing, and register mismatches while keeping each translation " +
	"roughly the same length as the original so it can be spoken in the same " +
	"time. Respond with JSON only: {\"translations\": [...]} with one entry " +
	"per input pair, in order."

// Review returns a polished translation for each source/translation pair.
// The returned slice always has the same length as the inputs.
func (r *Reviewer) Review(ctx context.Context, sources, translations []string) ([]string, error) {
	if len(sources) != len(translations) {
		return nil, fmt.Errorf("source and translation counts differ: %d vs %d", len(sources), len(translations))
	}
	if len(sources) == 0 {
		return nil, nil
	}

	pairs := make([]reviewPair, len(sources))
	for i := range sources {
		pairs[i] = reviewPair{Source: sources[i], Translation: translations[i]}
	}
	payload, err := json.Marshal(pairs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode review request: %w", err)
	}

	userPrompt := fmt.Sprintf("Language pair: %s to %s.\nPairs:\n%s",
		r.opts.SourceLang, r.opts.TargetLang, string(payload))

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       r.opts.Model,
		Temperature: r.opts.Temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("review request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("review response contained no choices")
	}

	var result reviewResult
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return nil, fmt.Errorf("failed to parse review response: %w", err)
	}
	if len(result.Translations) != len(sources) {
		return nil, fmt.Errorf("review returned %d translations for %d pairs", len(result.Translations), len(sources))
	}

	// An empty entry means the model dropped a line; keep the original.
	out := make([]string, len(sources))
	for i, tr := range result.Translations {
		if strings.TrimSpace(tr) == "" {
			out[i] = translations[i]
			continue
		}
		out[i] = tr
	}
	return out, nil
}
