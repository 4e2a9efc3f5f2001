package telemetry

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestSetup_Disabled(t *testing.T) {
	before := otel.GetTracerProvider()
	shutdown, err := Setup(context.Background(), Options{ServiceName: "test"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Setup() error: %v", err)
	}
	if otel.GetTracerProvider() != before {
		t.Error("disabled tracing replaced the global provider")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() error: %v", err)
	}
}

func TestSetup_TracingExportsToWriter(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Setup(context.Background(), Options{
		ServiceName: "solestyle-test",
		Tracing:     true,
		Metrics:     true,
		Writer:      &buf,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Setup() error: %v", err)
	}

	_, span := otel.Tracer("telemetry-test").Start(context.Background(), "probe")
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown() error: %v", err)
	}
	if !strings.Contains(buf.String(), `"probe"`) {
		t.Errorf("exported output missing span name:\n%s", buf.String())
	}
}
