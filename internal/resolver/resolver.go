// Package resolver turns a user question into an answer. Exact matches in
// the knowledge base win; otherwise a generator (an LLM) is asked once,
// with the whole knowledge base as reference, and its reply is classified.
package resolver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	// DefaultSentinel is the reply the model is instructed to give when the
	// knowledge base holds nothing relevant.
	DefaultSentinel = "Not sure."

	DefaultTimeout = 30 * time.Second
)

var tracer = otel.Tracer("github.com/nextlevelbuilder/qabot/internal/resolver")

// KnowledgeBase is the read-only lookup the resolver consults first.
type KnowledgeBase interface {
	FindAnswer(question string) (string, bool)
	Reference() string
}

// Generator produces a free-form answer for question using reference as the
// only allowed source of facts.
type Generator interface {
	GenerateAnswer(ctx context.Context, reference, question string) (string, error)
}

// ServiceError wraps any failure of the generator: transport, timeout,
// non-success status or an undecodable body.
type ServiceError struct {
	Err error
}

func (e *ServiceError) Error() string { return "answer service: " + e.Err.Error() }
func (e *ServiceError) Unwrap() error { return e.Err }

// Options tunes a Resolver. Zero values pick the defaults.
type Options struct {
	Timeout  time.Duration // bound on a single generator call
	Sentinel string        // "no answer" marker expected from the generator
}

// Resolver is safe for concurrent use; it holds no mutable state.
type Resolver struct {
	kb       KnowledgeBase
	gen      Generator
	timeout  time.Duration
	sentinel string
}

// New creates a Resolver. gen may be nil, in which case knowledge base
// misses resolve to NotFound.
func New(kb KnowledgeBase, gen Generator, opts Options) *Resolver {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if strings.TrimSpace(opts.Sentinel) == "" {
		opts.Sentinel = DefaultSentinel
	}
	return &Resolver{
		kb:       kb,
		gen:      gen,
		timeout:  opts.Timeout,
		sentinel: opts.Sentinel,
	}
}

// Resolve answers question. It never panics and never returns a zero Result.
func (r *Resolver) Resolve(ctx context.Context, question string) (res Result) {
	ctx, span := tracer.Start(ctx, "resolver.Resolve")
	defer func() {
		span.SetAttributes(
			attribute.String("qabot.outcome", res.Outcome.String()),
			attribute.String("qabot.source", string(res.Source)),
		)
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, "resolve failed")
		}
		span.End()
	}()

	if strings.TrimSpace(question) == "" {
		return NotFound()
	}

	// An empty stored answer counts as a miss.
	if r.kb != nil {
		if answer, ok := r.kb.FindAnswer(question); ok && answer != "" {
			return Answered(answer, SourceKnowledge)
		}
	}

	if r.gen == nil {
		return NotFound()
	}
	return r.generate(ctx, question)
}

func (r *Resolver) generate(ctx context.Context, question string) (res Result) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	defer func() {
		if p := recover(); p != nil {
			res = Failed(&ServiceError{Err: fmt.Errorf("panic: %v", p)})
		}
	}()

	reference := "[]"
	if r.kb != nil {
		reference = r.kb.Reference()
	}

	text, err := r.gen.GenerateAnswer(ctx, reference, question)
	if err != nil {
		return Failed(&ServiceError{Err: err})
	}

	text = strings.TrimSpace(text)
	if text == "" || r.isSentinel(text) {
		return NotFound()
	}
	return Answered(text, SourceGenerated)
}

// isSentinel reports whether text is the "no answer" marker. The comparison
// ignores case, surrounding whitespace and trailing periods, so "Not sure",
// "not sure." and " NOT SURE. " all match "Not sure.".
func (r *Resolver) isSentinel(text string) bool {
	return strings.EqualFold(trimSentinel(text), trimSentinel(r.sentinel))
}

func trimSentinel(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), ".")
}
