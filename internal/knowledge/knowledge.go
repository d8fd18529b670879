// Package knowledge provides the curated question/answer store used for
// exact-match resolution. A Base is loaded once at startup and never
// modified afterwards, so it is safe for concurrent reads without locking.
package knowledge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Entry is a single question/answer pair.
type Entry struct {
	Question string `json:"question" yaml:"question"`
	Answer   string `json:"answer" yaml:"answer"`
}

// LoadErrorKind classifies why a knowledge file could not be loaded.
type LoadErrorKind int

const (
	LoadNotFound LoadErrorKind = iota + 1
	LoadParse
	LoadOther
)

func (k LoadErrorKind) String() string {
	switch k {
	case LoadNotFound:
		return "not_found"
	case LoadParse:
		return "parse"
	default:
		return "other"
	}
}

// LoadError is returned by Load when the source file is missing or corrupt.
type LoadError struct {
	Kind LoadErrorKind
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("knowledge: load %s (%s): %v", e.Path, e.Kind, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Base is an immutable, ordered collection of entries.
type Base struct {
	entries   []Entry
	index     map[string]int // normalized question → first entry index
	reference string         // entries serialized as JSON, for model context
}

// New builds a Base from entries. The slice is copied.
func New(entries []Entry) *Base {
	b := &Base{
		entries: append([]Entry(nil), entries...),
		index:   make(map[string]int, len(entries)),
	}
	for i, e := range b.entries {
		key := Normalize(e.Question)
		if _, exists := b.index[key]; !exists {
			b.index[key] = i
		}
	}
	if b.entries == nil {
		b.entries = []Entry{}
	}
	b.reference = encodeReference(b.entries)
	return b
}

// encodeReference serializes entries for the model prompt. HTML escaping is
// off so answers like "a < b && c > d" reach the model verbatim.
func encodeReference(entries []Entry) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(entries); err != nil {
		return "[]"
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// Empty returns a Base with no entries.
func Empty() *Base { return New(nil) }

// Load reads a knowledge file. JSON is the default format; files ending in
// .yaml or .yml are decoded as YAML with the same shape.
func Load(path string) (*Base, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		kind := LoadOther
		if errors.Is(err, fs.ErrNotExist) {
			kind = LoadNotFound
		}
		return nil, &LoadError{Kind: kind, Path: path, Err: err}
	}

	var entries []Entry
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &entries)
	default:
		err = json.Unmarshal(data, &entries)
	}
	if err != nil {
		return nil, &LoadError{Kind: LoadParse, Path: path, Err: err}
	}

	return New(entries), nil
}

// LoadOrEmpty loads the knowledge file, degrading to an empty Base when it
// cannot be read. The bot then answers from the model fallback only.
func LoadOrEmpty(path string) *Base {
	b, err := Load(path)
	if err != nil {
		slog.Error("knowledge base unavailable, continuing with empty set", "path", path, "error", err)
		return Empty()
	}
	slog.Info("knowledge base loaded", "path", path, "entries", b.Len())
	if b.Len() > 0 {
		slog.Debug("knowledge base sample", "question", b.entries[0].Question, "answer", b.entries[0].Answer)
	}
	return b
}

// Normalize folds case and trims surrounding whitespace. Punctuation is kept.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// FindAnswer returns the answer of the first entry whose normalized question
// equals the normalized input.
func (b *Base) FindAnswer(question string) (string, bool) {
	if b == nil {
		return "", false
	}
	i, ok := b.index[Normalize(question)]
	if !ok {
		return "", false
	}
	return b.entries[i].Answer, true
}

// Len returns the number of entries.
func (b *Base) Len() int {
	if b == nil {
		return 0
	}
	return len(b.entries)
}

// Entries returns a copy of the entries in load order.
func (b *Base) Entries() []Entry {
	if b == nil {
		return nil
	}
	return append([]Entry(nil), b.entries...)
}

// Reference returns the full knowledge base serialized as a JSON array.
func (b *Base) Reference() string {
	if b == nil {
		return "[]"
	}
	return b.reference
}

// Duplicates lists normalized questions that appear more than once. Only the
// first occurrence of each is reachable through FindAnswer.
func (b *Base) Duplicates() []string {
	if b == nil {
		return nil
	}
	counts := make(map[string]int, len(b.entries))
	var dups []string
	for _, e := range b.entries {
		key := Normalize(e.Question)
		counts[key]++
		if counts[key] == 2 {
			dups = append(dups, key)
		}
	}
	return dups
}
