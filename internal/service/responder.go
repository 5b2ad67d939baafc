package service

import (
	"context"
	"strings"

	"github.com/liliang-cn/askpdf/internal/domain"
	"github.com/liliang-cn/askpdf/internal/llm"
)

// AnswerPrompt is the system instruction for the answering call. The
// retrieved context is appended after it.
const AnswerPrompt = "You are an assistant for question-answering tasks. " +
	"Use the following pieces of retrieved context to answer " +
	"the question. If you don't know the answer, say that you " +
	"don't know. Use three sentences maximum and keep the " +
	"answer concise." +
	"\n\n"

// Retriever finds the chunks most similar to a query
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]domain.SearchResult, error)
}

// Answer is the responder's output
type Answer struct {
	Text    string
	Sources []domain.Source
}

// Responder answers a question from retrieved context and session history
type Responder struct {
	retriever Retriever
	generator llm.Generator
	topK      int
}

// NewResponder creates a responder. topK <= 0 defers to the retriever default.
func NewResponder(retriever Retriever, generator llm.Generator, topK int) *Responder {
	return &Responder{retriever: retriever, generator: generator, topK: topK}
}

// Respond retrieves context for standalone and asks the model to answer
// question given that context and history.
func (r *Responder) Respond(ctx context.Context, history []domain.Turn, question, standalone string) (*Answer, error) {
	results, err := r.retriever.Retrieve(ctx, standalone, r.topK)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(results))
	sources := make([]domain.Source, len(results))
	for i, res := range results {
		texts[i] = res.Chunk.Text
		sources[i] = res.ToSource()
	}

	out, err := r.generator.Generate(ctx, BuildAnswerPrompt(texts), history, question)
	if err != nil {
		return nil, err
	}
	return &Answer{Text: strings.TrimSpace(out), Sources: sources}, nil
}

// BuildAnswerPrompt renders the answering instruction around the context
// chunks, separated by blank lines.
func BuildAnswerPrompt(chunks []string) string {
	return AnswerPrompt + strings.Join(chunks, "\n\n")
}
