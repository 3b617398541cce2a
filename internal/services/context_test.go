package services_test

import (
	"context"
	"testing"

	"downie/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithRequestID(ctx, "req-123")
	ctx = services.WithSourceURL(ctx, "https://example.com/v")

	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
	if u, ok := services.SourceURLFromContext(ctx); !ok || u != "https://example.com/v" {
		t.Fatalf("unexpected url: %v %v", u, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithSourceURL(ctx, "")
	ctx = services.WithRequestID(ctx, "")
	if _, ok := services.SourceURLFromContext(ctx); ok {
		t.Fatal("expected no source url")
	}
	if _, ok := services.RequestIDFromContext(ctx); ok {
		t.Fatal("expected no request id")
	}
}
