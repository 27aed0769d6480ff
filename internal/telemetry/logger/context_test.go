package logger

import (
	"bytes"
	"context"
	"testing"
)

func TestWithLogger_FromContext(t *testing.T) {
	var buf bytes.Buffer
	l, _ := New(Config{Level: "info", Format: "json", Output: &buf})

	ctx := WithLogger(context.Background(), l)
	FromContext(ctx).Info("test message")

	if buf.Len() == 0 {
		t.Error("Logger from context should produce output")
	}
}

func TestFromContext_Default(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Error("FromContext should return default logger, got nil")
	}
}

func TestCorrelationID(t *testing.T) {
	ctx := context.Background()
	if got := CorrelationIDFromContext(ctx); got != "" {
		t.Errorf("CorrelationIDFromContext() = %q, want empty", got)
	}

	ctx = WithCorrelationID(ctx, "01HZX")
	if got := CorrelationIDFromContext(ctx); got != "01HZX" {
		t.Errorf("CorrelationIDFromContext() = %q, want 01HZX", got)
	}
}

func TestL_AddsCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	l, _ := New(Config{Level: "info", Format: "json", Output: &buf})

	ctx := WithCorrelationID(WithLogger(context.Background(), l), "req-1")
	L(ctx).Info("handled")

	if entry := decode(t, &buf); entry["correlation_id"] != "req-1" {
		t.Errorf("correlation_id = %v, want req-1", entry["correlation_id"])
	}
}

func TestL_NoID(t *testing.T) {
	var buf bytes.Buffer
	l, _ := New(Config{Level: "info", Format: "json", Output: &buf})

	L(WithLogger(context.Background(), l)).Info("handled")

	if _, ok := decode(t, &buf)["correlation_id"]; ok {
		t.Error("correlation_id should be absent")
	}
}
