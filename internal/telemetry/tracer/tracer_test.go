package tracer

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNew_Disabled(t *testing.T) {
	p, err := New("kraken", Config{})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	_, span := p.StartSpan(context.Background(), "noop")
	if span.SpanContext().IsValid() {
		t.Error("disabled provider should hand out invalid span contexts")
	}
	span.End()
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown returned error: %v", err)
	}
}

func TestNew_UnknownExporter(t *testing.T) {
	_, err := New("kraken", Config{Enabled: true, Exporter: "jaeger"})
	if !errors.Is(err, ErrUnknownExporter) {
		t.Errorf("err = %v, want ErrUnknownExporter", err)
	}
}

func TestNew_Stdout(t *testing.T) {
	var buf bytes.Buffer
	p, err := New("kraken", Config{Enabled: true, Output: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	_, span := p.StartSpan(context.Background(), "snapshot.load")
	span.End()

	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("snapshot.load")) {
		t.Errorf("expected exported span, got %q", buf.String())
	}
	// A second shutdown must not fail the process exit path.
	_ = p.Shutdown(context.Background())
}

func TestStartSpan_Recorded(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	p, err := New("kraken", Config{Enabled: true, SpanExporter: exp})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx, parent := p.StartSpan(context.Background(), "worker.handle", attribute.String("api", "journeys"))
	_, child := p.StartSpan(ctx, "search.primitive")
	RecordError(child, errors.New("deadline"))
	RecordError(child, nil)
	child.End()
	parent.End()

	if err := p.ForceFlush(context.Background()); err != nil {
		t.Fatalf("ForceFlush returned error: %v", err)
	}
	defer p.Shutdown(context.Background())

	spans := exp.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}
	byName := map[string]tracetest.SpanStub{}
	for _, s := range spans {
		byName[s.Name] = s
	}
	c, par := byName["search.primitive"], byName["worker.handle"]
	if c.Parent.SpanID() != par.SpanContext.SpanID() {
		t.Error("search.primitive should be a child of worker.handle")
	}
	if c.Status.Code != codes.Error {
		t.Errorf("child status = %v, want Error", c.Status.Code)
	}
	if len(par.Attributes) != 1 || par.Attributes[0].Value.AsString() != "journeys" {
		t.Errorf("unexpected parent attributes %v", par.Attributes)
	}
}
