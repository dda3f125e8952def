package tracing

import (
	"context"
	"testing"
)

func TestNewProviderDisabled(t *testing.T) {
	provider, err := NewProvider(Config{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.Enabled() {
		t.Error("provider should be disabled")
	}
	if provider.Tracer("test") == nil {
		t.Error("disabled provider should still hand out a tracer")
	}
	if err := provider.Shutdown(context.Background()); err != nil {
		t.Errorf("shutdown of disabled provider: %v", err)
	}
}

func TestNewProviderRequiresEndpoint(t *testing.T) {
	_, err := NewProvider(Config{Enabled: true}, nil)
	if err == nil {
		t.Fatal("expected error for enabled tracing without endpoint")
	}
}

func TestNewProviderEnabled(t *testing.T) {
	// The exporter connects lazily, so construction succeeds without a
	// collector listening.
	provider, err := NewProvider(Config{Enabled: true, Endpoint: "localhost:4317"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !provider.Enabled() {
		t.Error("provider should be enabled")
	}
}
