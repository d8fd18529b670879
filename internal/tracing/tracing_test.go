package tracing

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/nextlevelbuilder/qabot/internal/config"
)

func TestInitDisabled(t *testing.T) {
	before := otel.GetTracerProvider()
	shutdown, err := Init(context.Background(), config.TelemetryConfig{}, "test")
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if otel.GetTracerProvider() != before {
		t.Fatal("disabled telemetry replaced the global provider")
	}
}

func TestInitUnknownProtocol(t *testing.T) {
	_, err := Init(context.Background(), config.TelemetryConfig{Enabled: true, Endpoint: "localhost:4317", Protocol: "thrift"}, "test")
	if err == nil {
		t.Fatal("expected error for unknown protocol")
	}
}

func TestInitHTTP(t *testing.T) {
	shutdown, err := Init(context.Background(), config.TelemetryConfig{
		Enabled:  true,
		Endpoint: "http://127.0.0.1:4318",
		Protocol: "http",
		Insecure: true,
		Headers:  map[string]string{"x-api-key": "k"},
	}, "test")
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
		t.Fatalf("global provider = %T, want sdk provider", otel.GetTracerProvider())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
