package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/docqa/internal/llm"
)

// Completer is the chat completion capability.
type Completer interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (string, error)
}

const groupedSystemPrompt = "You answer questions using only the numbered document excerpts provided. " +
	"Combine information across excerpts, cite excerpt numbers in brackets, " +
	"and say so when the excerpts do not contain the answer."

// GroupedAnswerer answers one task over the whole set of hits in a single
// completion.
type GroupedAnswerer struct {
	completer Completer
	model     string
	maxTokens int
}

func NewGroupedAnswerer(c Completer, model string, maxTokens int) *GroupedAnswerer {
	return &GroupedAnswerer{completer: c, model: model, maxTokens: maxTokens}
}

func (g *GroupedAnswerer) Generate(ctx context.Context, task string, hits []Hit) (string, error) {
	out, err := g.completer.Complete(ctx, llm.CompletionRequest{
		Model: g.model,
		Messages: []llm.Message{
			{Role: "system", Content: groupedSystemPrompt},
			{Role: "user", Content: GroupedPrompt(task, hits)},
		},
		MaxTokens: g.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("generating grouped answer: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// GroupedPrompt renders the task followed by the numbered excerpts.
func GroupedPrompt(task string, hits []Hit) string {
	var sb strings.Builder
	sb.WriteString(task)
	sb.WriteString("\n\nExcerpts:\n")
	for i, h := range hits {
		fmt.Fprintf(&sb, "\n[%d] document %s, page %s, %s chunk %d:\n%s\n",
			i+1, h.Chunk.DocumentID, h.Chunk.PageNo, h.Chunk.DataType, h.Chunk.ChunkID, h.Chunk.Data)
	}
	return sb.String()
}

// Answer runs gen over hits when both are present. No hits or no generator
// yields an empty answer.
func Answer(ctx context.Context, gen Generator, task string, hits []Hit) (string, error) {
	if gen == nil || task == "" || len(hits) == 0 {
		return "", nil
	}
	return gen.Generate(ctx, task, hits)
}
