package knowledge

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestFindAnswer_NormalizesCaseAndWhitespace(t *testing.T) {
	b := New([]Entry{{Question: "  What is X ", Answer: "X is Y"}})

	for _, q := range []string{"what is x", "WHAT IS X", "\twhat is X\n"} {
		got, ok := b.FindAnswer(q)
		if !ok || got != "X is Y" {
			t.Fatalf("FindAnswer(%q) = %q, %v; want %q, true", q, got, ok, "X is Y")
		}
	}
}

func TestFindAnswer_PunctuationIsSignificant(t *testing.T) {
	b := New([]Entry{{Question: "what is X", Answer: "X is Y"}})
	if got, ok := b.FindAnswer("What is X?"); ok {
		t.Fatalf("expected miss for trailing punctuation, got %q", got)
	}
}

func TestFindAnswer_NoSubstringMatch(t *testing.T) {
	b := New([]Entry{{Question: "what is X", Answer: "X is Y"}})
	if _, ok := b.FindAnswer("what is"); ok {
		t.Fatal("expected miss for substring")
	}
}

func TestFindAnswer_FirstMatchWins(t *testing.T) {
	b := New([]Entry{
		{Question: "hours", Answer: "first"},
		{Question: "HOURS", Answer: "second"},
	})
	got, ok := b.FindAnswer("Hours")
	if !ok || got != "first" {
		t.Fatalf("FindAnswer = %q, %v; want first", got, ok)
	}
	if dups := b.Duplicates(); len(dups) != 1 || dups[0] != "hours" {
		t.Fatalf("Duplicates() = %v, want [hours]", dups)
	}
}

func TestNilBaseIsEmpty(t *testing.T) {
	var b *Base
	if _, ok := b.FindAnswer("x"); ok {
		t.Fatal("nil base should never match")
	}
	if b.Len() != 0 || b.Reference() != "[]" {
		t.Fatalf("nil base: len=%d ref=%q", b.Len(), b.Reference())
	}
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, "qa.json", `[{"question":"what is X","answer":"X is Y"},{"question":"who","answer":"me"}]`)

	b, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if b.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", b.Len())
	}
	if got, _ := b.FindAnswer("WHO"); got != "me" {
		t.Fatalf("FindAnswer(WHO) = %q", got)
	}

	var decoded []Entry
	if err := json.Unmarshal([]byte(b.Reference()), &decoded); err != nil {
		t.Fatalf("Reference is not valid JSON: %v", err)
	}
	if len(decoded) != 2 || decoded[0].Question != "what is X" {
		t.Fatalf("Reference decoded = %+v", decoded)
	}
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "qa.yaml", "- question: what is X\n  answer: X is Y\n")

	b, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got, ok := b.FindAnswer("what is x"); !ok || got != "X is Y" {
		t.Fatalf("FindAnswer = %q, %v", got, ok)
	}
}

func TestLoad_Errors(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.json")
	corrupt := writeFile(t, "bad.json", `{"question":`)

	tests := []struct {
		name string
		path string
		kind LoadErrorKind
	}{
		{"missing file", missing, LoadNotFound},
		{"corrupt json", corrupt, LoadParse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path)
			var le *LoadError
			if !errors.As(err, &le) {
				t.Fatalf("expected *LoadError, got %v", err)
			}
			if le.Kind != tt.kind {
				t.Fatalf("kind = %s, want %s", le.Kind, tt.kind)
			}
		})
	}
}

func TestLoadOrEmpty_DegradesToEmpty(t *testing.T) {
	b := LoadOrEmpty(filepath.Join(t.TempDir(), "missing.json"))
	if b == nil || b.Len() != 0 {
		t.Fatalf("expected empty base, got %+v", b)
	}
	if b.Reference() != "[]" {
		t.Fatalf("Reference() = %q, want []", b.Reference())
	}
}

func TestEntriesReturnsCopy(t *testing.T) {
	b := New([]Entry{{Question: "q", Answer: "a"}})
	entries := b.Entries()
	entries[0].Answer = "mutated"
	if got, _ := b.FindAnswer("q"); got != "a" {
		t.Fatalf("base mutated through Entries(): %q", got)
	}
}

func TestReferenceKeepsMarkup(t *testing.T) {
	b := New([]Entry{{Question: "how to compare", Answer: "use a < b && c > d"}})
	want := `[{"question":"how to compare","answer":"use a < b && c > d"}]`
	if b.Reference() != want {
		t.Fatalf("Reference() = %s, want %s", b.Reference(), want)
	}
}
