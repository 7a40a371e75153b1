package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/go-kratos/kratos/v2/log"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestNewLogger_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(Config{Service: "moderation", Version: "test", HostID: "h1", Env: "test", Level: "warn", Output: &buf})
	helper := log.NewHelper(l)

	helper.Info("hidden")
	helper.Warn("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line should be filtered: %s", out)
	}
	if !strings.Contains(out, "visible") || !strings.Contains(out, "service.name=moderation") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]log.Level{
		"debug":   log.LevelDebug,
		"WARNING": log.LevelWarn,
		"error":   log.LevelError,
		"":        log.LevelInfo,
		"bogus":   log.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLogger_TraceCorrelation(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(Config{Service: "moderation", Level: "info", Output: &buf})

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	ctx, span := tp.Tracer("logger.test").Start(context.Background(), "op")
	defer span.End()

	log.NewHelper(l).WithContext(ctx).Info("inside span")
	out := buf.String()
	sc := span.SpanContext()
	if !strings.Contains(out, "trace_id="+sc.TraceID().String()) || !strings.Contains(out, "span_id="+sc.SpanID().String()) {
		t.Fatalf("trace fields missing: %s", out)
	}
}
