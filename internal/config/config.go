package config

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FlexibleStringSlice accepts both ["str"] and [123] in JSON.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

// Config is the root configuration for the qabot responder.
type Config struct {
	Slack     SlackConfig     `json:"slack"`
	Provider  ProviderConfig  `json:"provider"`
	Knowledge KnowledgeConfig `json:"knowledge"`
	Reply     ReplyConfig     `json:"reply"`
	Dedup     DedupConfig     `json:"dedup"`
	Telemetry TelemetryConfig `json:"telemetry,omitempty"`
	Logging   LoggingConfig   `json:"logging,omitempty"`
}

// ProviderConfig configures the LLM endpoint used when the knowledge base has
// no exact answer. Name "anthropic" selects the Anthropic Messages API; any
// other name is treated as an OpenAI-compatible chat completions endpoint.
// APIKey is NEVER read from config.json, only from env.
type ProviderConfig struct {
	Name         string  `json:"name,omitempty"`           // default "openai"; "none" disables generation
	APIKey       string  `json:"-"`                        // from env QABOT_PROVIDER_API_KEY, OPENAI_API_KEY or ANTHROPIC_API_KEY
	APIBase      string  `json:"api_base,omitempty"`       // empty = the provider's hosted API
	ChatPath     string  `json:"chat_path,omitempty"`      // OpenAI-compatible only; default "/chat/completions"
	Model        string  `json:"model,omitempty"`          // empty = the provider's default model
	TimeoutSec   int     `json:"timeout_sec,omitempty"`    // whole-call bound (default 30)
	RateLimitRPM int     `json:"rate_limit_rpm,omitempty"` // 0 = unlimited
	Temperature  float64 `json:"temperature,omitempty"`
	Sentinel     string  `json:"sentinel,omitempty"` // reply meaning "no answer" (default "Not sure.")
}

// ProviderAnthropic selects the Anthropic Messages API.
const ProviderAnthropic = "anthropic"

// Disabled reports whether fallback generation is switched off.
func (p ProviderConfig) Disabled() bool {
	return strings.EqualFold(p.Name, "none")
}

// KnowledgeConfig locates the question/answer file.
type KnowledgeConfig struct {
	Path      string `json:"path"`                 // JSON or YAML list of {question, answer} (default "qa.json")
	SourceURL string `json:"source_url,omitempty"` // public link shown in "not found" replies
}

// ReplyConfig carries the contact and links shown alongside answers.
type ReplyConfig struct {
	Contact    string `json:"contact,omitempty"`
	ProjectURL string `json:"project_url,omitempty"`
}

// DedupConfig selects where seen event keys are recorded.
// DSN is NEVER read from config.json, only from env QABOT_DEDUP_DSN.
type DedupConfig struct {
	Backend string `json:"backend,omitempty"` // "memory" (default), "sqlite", "postgres"
	Path    string `json:"path,omitempty"`    // sqlite file (default "qabot.db")
	DSN     string `json:"-"`
}

// TelemetryConfig configures OpenTelemetry export for traces and spans.
type TelemetryConfig struct {
	Enabled     bool              `json:"enabled,omitempty"`      // enable OTLP export (default false)
	Endpoint    string            `json:"endpoint,omitempty"`     // OTLP endpoint (e.g. "localhost:4317")
	Protocol    string            `json:"protocol,omitempty"`     // "grpc" (default) or "http"
	Insecure    bool              `json:"insecure,omitempty"`     // plaintext connection, for local collectors
	ServiceName string            `json:"service_name,omitempty"` // OTEL service name (default "qabot")
	Headers     map[string]string `json:"headers,omitempty"`      // extra headers (e.g. auth tokens for cloud backends)
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Format string `json:"format,omitempty"` // "text" (default) or "json"
}

// ConfigurationError lists every required value that is missing or invalid.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Missing, "; ")
}
