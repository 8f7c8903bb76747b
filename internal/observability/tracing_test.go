package observability

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"

	"github.com/star/orbtrack/internal/config"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

func TestInitTracingDisabled(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := InitTracing(context.Background(), config.TracingConfig{}, &buf, testLogger)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}

	_, span := otel.Tracer("test").Start(context.Background(), "noop")
	if span.SpanContext().IsValid() {
		t.Error("disabled tracing produced a recording span")
	}
	span.End()

	Shutdown(context.Background(), shutdown, testLogger)
	if buf.Len() != 0 {
		t.Errorf("disabled tracing wrote %d bytes", buf.Len())
	}
}

func TestInitTracingExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.TracingConfig{Enabled: true, ServiceName: "orbtrack-test", SampleRatio: 1}
	shutdown, err := InitTracing(context.Background(), cfg, &buf, testLogger)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}

	_, span := otel.Tracer("test").Start(context.Background(), "groups.Load")
	span.End()

	// Shutdown flushes the batcher.
	Shutdown(context.Background(), shutdown, testLogger)

	out := buf.String()
	if !strings.Contains(out, "groups.Load") {
		t.Errorf("exported spans missing span name: %s", out)
	}
	if !strings.Contains(out, "orbtrack-test") {
		t.Errorf("exported spans missing service name: %s", out)
	}
}
