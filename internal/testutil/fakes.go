// Package testutil holds deterministic stand-ins for the remote embedding
// and language model services.
package testutil

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"

	"github.com/liliang-cn/askpdf/internal/domain"
)

// Dim is the vector size produced by Embedder.
const Dim = 64

// Embedder hashes lowercase words into a fixed-size bag-of-words vector.
// Texts that share words get similar vectors.
type Embedder struct {
	mu       sync.Mutex
	Err      error
	Calls    int
	Queries  []string
	Embedded int
}

// EmbedDocuments implements the embedder contract.
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Calls++
	if e.Err != nil {
		return nil, e.Err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = Vector(t)
	}
	e.Embedded += len(texts)
	return out, nil
}

// EmbedQuery implements the embedder contract.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Calls++
	e.Queries = append(e.Queries, text)
	if e.Err != nil {
		return nil, e.Err
	}
	return Vector(text), nil
}

// Vector is the deterministic embedding used by Embedder.
func Vector(text string) []float32 {
	v := make([]float32, Dim)
	for _, w := range Words(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%Dim]++
	}
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum > 0 {
		n := float32(math.Sqrt(sum))
		for i := range v {
			v[i] /= n
		}
	}
	return v
}

// Words splits text into lowercase letter/digit runs.
func Words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Call records one Generate invocation.
type Call struct {
	System  string
	History []domain.Turn
	User    string
}

// Generator replies through Reply and records every call. A nil Reply
// answers with an empty string.
type Generator struct {
	mu    sync.Mutex
	Reply func(ctx context.Context, call Call) (string, error)
	Calls []Call
}

// ErrUnavailable is a stand-in for a remote failure.
var ErrUnavailable = errors.New("service unavailable")

// Generate implements the generator contract.
func (g *Generator) Generate(ctx context.Context, system string, history []domain.Turn, user string) (string, error) {
	call := Call{System: system, History: append([]domain.Turn(nil), history...), User: user}
	g.mu.Lock()
	g.Calls = append(g.Calls, call)
	reply := g.Reply
	g.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if reply == nil {
		return "", nil
	}
	return reply(ctx, call)
}

// Snapshot returns a copy of the recorded calls.
func (g *Generator) Snapshot() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Call(nil), g.Calls...)
}

// CallCount returns the number of Generate calls so far.
func (g *Generator) CallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Calls)
}
