package service

import (
	"context"
	"strings"

	"github.com/liliang-cn/askpdf/internal/domain"
	"github.com/liliang-cn/askpdf/internal/llm"
)

// RewritePrompt asks the model to make a follow-up question self-contained.
const RewritePrompt = "Given a chat history and the latest user question " +
	"which might reference context in the chat history, " +
	"formulate a standalone question which can be understood " +
	"without the chat history. Do NOT answer the question, " +
	"just reformulate it if needed and otherwise return it as is."

// Rewriter turns a follow-up question into a standalone one
type Rewriter struct {
	generator llm.Generator
}

// NewRewriter creates a rewriter backed by generator
func NewRewriter(generator llm.Generator) *Rewriter {
	return &Rewriter{generator: generator}
}

// Rewrite returns the standalone form of question. With no history there is
// nothing to resolve and the question comes back as is.
func (r *Rewriter) Rewrite(ctx context.Context, history []domain.Turn, question string) (string, error) {
	if len(history) == 0 {
		return question, nil
	}
	out, err := r.generator.Generate(ctx, RewritePrompt, history, question)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
