package query

import (
	"context"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/docqa/internal/llm"
)

const expansionSystemPrompt = `Your task is to:
1. Expand the query with more details to make it more specific and informative.
2. Generate 3 related questions that could help explore the topic further.

Return the enhanced query followed by the related questions.`

type Completer interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (string, error)
}

// Expander rewrites a question into a richer search string.
type Expander struct {
	completer Completer
	model     string
	maxTokens int
}

func NewExpander(c Completer, model string, maxTokens int) *Expander {
	return &Expander{completer: c, model: model, maxTokens: maxTokens}
}

func (e *Expander) Model() string { return e.model }

func (e *Expander) Expand(ctx context.Context, text string) (string, error) {
	out, err := e.completer.Complete(ctx, llm.CompletionRequest{
		Model: e.model,
		Messages: []llm.Message{
			{Role: "system", Content: expansionSystemPrompt},
			{Role: "user", Content: "This is user Query : " + text},
		},
		MaxTokens: e.maxTokens,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
