package resolver

import (
	"context"
	"fmt"

	"github.com/nextlevelbuilder/qabot/internal/providers"
)

const systemPromptTemplate = `Answer questions using only the provided knowledge base of question and answer pairs.
Use fuzzy matching to interpret questions that are similar to, or slightly altered from, an entry in the knowledge base.
If a question is unclear or its intent is uncertain, respond with exactly: %q
If no relevant answer exists in the knowledge base, respond with exactly: %q
In those cases do not add any other text or explanation.`

// SystemPrompt returns the instruction sent with every generator request.
func SystemPrompt(sentinel string) string {
	return fmt.Sprintf(systemPromptTemplate, sentinel, sentinel)
}

// LLMGenerator implements Generator on top of a chat completion provider.
type LLMGenerator struct {
	provider    providers.Provider
	model       string
	sentinel    string
	temperature *float64
}

// NewLLMGenerator creates a generator. An empty model uses the provider default.
func NewLLMGenerator(p providers.Provider, model, sentinel string) *LLMGenerator {
	if sentinel == "" {
		sentinel = DefaultSentinel
	}
	return &LLMGenerator{provider: p, model: model, sentinel: sentinel}
}

// WithTemperature pins the sampling temperature sent to the provider.
func (g *LLMGenerator) WithTemperature(t float64) *LLMGenerator {
	g.temperature = &t
	return g
}

// GenerateAnswer asks the model once. Any provider error is returned as is.
func (g *LLMGenerator) GenerateAnswer(ctx context.Context, reference, question string) (string, error) {
	req := providers.ChatRequest{
		Model: g.model,
		Messages: []providers.Message{
			{Role: "system", Content: SystemPrompt(g.sentinel)},
			{Role: "user", Content: fmt.Sprintf("Knowledge base: %s\n\nUser question: %s", reference, question)},
		},
	}
	if g.temperature != nil {
		req.Options = map[string]interface{}{providers.OptTemperature: *g.temperature}
	}

	resp, err := g.provider.Chat(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

var _ Generator = (*LLMGenerator)(nil)
