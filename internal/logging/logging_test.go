package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	if FromContext(context.Background()) != slog.Default() {
		t.Fatal("expected default logger")
	}
}

func TestStartSpanNestsUnderTrace(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), New(&buf, "debug", true))

	ctx, parent := StartSpan(ctx, "feed")
	traceID := TraceIDFromContext(ctx)
	parentID := SpanIDFromContext(ctx)
	if traceID == "" || parentID == "" {
		t.Fatal("expected trace and span ids")
	}

	child, span := StartSpan(ctx, "post")
	if TraceIDFromContext(child) != traceID {
		t.Fatal("expected child to share the trace id")
	}
	span.EndWithError(errors.New("boom"))
	parent.End()

	logs := buf.String()
	if !strings.Contains(logs, `"parent_span_id":"`+parentID+`"`) {
		t.Fatalf("expected parent span id in logs: %s", logs)
	}
	if !strings.Contains(logs, "span failed") || !strings.Contains(logs, "span completed") {
		t.Fatalf("expected span outcomes in logs: %s", logs)
	}
}
