package resolver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nextlevelbuilder/qabot/internal/knowledge"
	"github.com/nextlevelbuilder/qabot/internal/providers"
)

// fakeGenerator records calls and returns a canned reply.
type fakeGenerator struct {
	calls     atomic.Int32
	reply     string
	err       error
	block     bool
	lastRef   string
	lastQuery string
}

func (g *fakeGenerator) GenerateAnswer(ctx context.Context, reference, question string) (string, error) {
	g.calls.Add(1)
	g.lastRef, g.lastQuery = reference, question
	if g.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return g.reply, g.err
}

type panicGenerator struct{}

func (panicGenerator) GenerateAnswer(context.Context, string, string) (string, error) {
	panic("kaboom")
}

func testKB() *knowledge.Base {
	return knowledge.New([]knowledge.Entry{
		{Question: "what is X", Answer: "X is Y"},
		{Question: "blank", Answer: ""},
	})
}

func TestResolve_KnowledgeHitSkipsGenerator(t *testing.T) {
	gen := &fakeGenerator{reply: "should not be used"}
	r := New(testKB(), gen, Options{})

	for _, q := range []string{"what is X", "  WHAT IS x  "} {
		res := r.Resolve(context.Background(), q)
		if res.Outcome != OutcomeAnswered || res.Answer != "X is Y" || res.Source != SourceKnowledge {
			t.Fatalf("Resolve(%q) = %+v", q, res)
		}
	}
	if n := gen.calls.Load(); n != 0 {
		t.Fatalf("generator called %d times, want 0", n)
	}
}

func TestResolve_MissCallsGeneratorOnce(t *testing.T) {
	gen := &fakeGenerator{reply: "  X is probably Y \n"}
	r := New(testKB(), gen, Options{})

	res := r.Resolve(context.Background(), "What is X?")
	if res.Outcome != OutcomeAnswered || res.Answer != "X is probably Y" || res.Source != SourceGenerated {
		t.Fatalf("Resolve = %+v", res)
	}
	if n := gen.calls.Load(); n != 1 {
		t.Fatalf("generator called %d times, want 1", n)
	}
	if gen.lastQuery != "What is X?" {
		t.Fatalf("question passed = %q", gen.lastQuery)
	}
	if !strings.Contains(gen.lastRef, `"question":"what is X"`) {
		t.Fatalf("reference missing knowledge base: %q", gen.lastRef)
	}
}

func TestResolve_EmptyStoredAnswerFallsThrough(t *testing.T) {
	gen := &fakeGenerator{reply: "generated"}
	r := New(testKB(), gen, Options{})

	res := r.Resolve(context.Background(), "blank")
	if res.Source != SourceGenerated || gen.calls.Load() != 1 {
		t.Fatalf("Resolve = %+v, calls = %d", res, gen.calls.Load())
	}
}

func TestResolve_EmptyQuestion(t *testing.T) {
	gen := &fakeGenerator{reply: "anything"}
	r := New(testKB(), gen, Options{})

	for _, q := range []string{"", "   ", "\n\t"} {
		if res := r.Resolve(context.Background(), q); res.Outcome != OutcomeNotFound {
			t.Fatalf("Resolve(%q) = %+v, want not found", q, res)
		}
	}
	if gen.calls.Load() != 0 {
		t.Fatal("generator must not be called for empty questions")
	}
}

func TestResolve_SentinelAndEmptyReplies(t *testing.T) {
	for _, reply := range []string{"Not sure.", "not sure", "  NOT SURE.  ", "", "   "} {
		gen := &fakeGenerator{reply: reply}
		r := New(knowledge.Empty(), gen, Options{})
		if res := r.Resolve(context.Background(), "anything"); res.Outcome != OutcomeNotFound {
			t.Fatalf("reply %q: Resolve = %+v, want not found", reply, res)
		}
	}
}

func TestResolve_SentinelIsNotSubstringMatch(t *testing.T) {
	gen := &fakeGenerator{reply: "Not sure, but X is Y."}
	r := New(knowledge.Empty(), gen, Options{})
	if res := r.Resolve(context.Background(), "q"); res.Outcome != OutcomeAnswered {
		t.Fatalf("Resolve = %+v, want answered", res)
	}
}

func TestResolve_GeneratorError(t *testing.T) {
	cause := errors.New("connection refused")
	r := New(knowledge.Empty(), &fakeGenerator{err: cause}, Options{})

	res := r.Resolve(context.Background(), "q")
	if res.Outcome != OutcomeError {
		t.Fatalf("Resolve = %+v, want error", res)
	}
	var svcErr *ServiceError
	if !errors.As(res.Err, &svcErr) || !errors.Is(res.Err, cause) {
		t.Fatalf("Err = %v, want ServiceError wrapping cause", res.Err)
	}
}

func TestResolve_Timeout(t *testing.T) {
	r := New(knowledge.Empty(), &fakeGenerator{block: true}, Options{Timeout: 20 * time.Millisecond})

	start := time.Now()
	res := r.Resolve(context.Background(), "q")
	if res.Outcome != OutcomeError || !errors.Is(res.Err, context.DeadlineExceeded) {
		t.Fatalf("Resolve = %+v, want deadline error", res)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("Resolve took %s, timeout not applied", elapsed)
	}
}

func TestResolve_GeneratorPanicBecomesError(t *testing.T) {
	r := New(knowledge.Empty(), panicGenerator{}, Options{})
	if res := r.Resolve(context.Background(), "q"); res.Outcome != OutcomeError {
		t.Fatalf("Resolve = %+v, want error", res)
	}
}

func TestResolve_NilGenerator(t *testing.T) {
	r := New(testKB(), nil, Options{})
	if res := r.Resolve(context.Background(), "unknown"); res.Outcome != OutcomeNotFound {
		t.Fatalf("Resolve = %+v, want not found", res)
	}
}

func TestResolve_ThroughOpenAIProvider(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   Outcome
	}{
		{"sentinel", http.StatusOK, `{"choices":[{"message":{"content":"Not sure."}}]}`, OutcomeNotFound},
		{"answer", http.StatusOK, `{"choices":[{"message":{"content":"X is Y"}}]}`, OutcomeAnswered},
		{"server error", http.StatusInternalServerError, `oops`, OutcomeError},
		{"malformed", http.StatusOK, `{"choices":`, OutcomeError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			p := providers.NewOpenAIProvider("openai", "k", srv.URL, "gpt-4o-mini")
			r := New(knowledge.Empty(), NewLLMGenerator(p, "", ""), Options{})

			res := r.Resolve(context.Background(), "what is Z")
			if res.Outcome != tt.want {
				t.Fatalf("Outcome = %s, want %s (err=%v)", res.Outcome, tt.want, res.Err)
			}
			if hits.Load() != 1 {
				t.Fatalf("endpoint hit %d times, want 1", hits.Load())
			}
		})
	}
}

func TestSystemPromptMentionsSentinel(t *testing.T) {
	if p := SystemPrompt("Not sure."); !strings.Contains(p, `"Not sure."`) {
		t.Fatalf("prompt does not carry sentinel: %s", p)
	}
}
