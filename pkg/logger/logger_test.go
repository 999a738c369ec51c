package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"bogus": slog.LevelInfo,
		"":      slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestWithCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	base := New(&buf, "info", "json")
	ctx := context.WithValue(context.Background(), loggerKey, base)

	ctx = With(ctx, "traceID", "abc")
	From(ctx).Info("hello")

	if !strings.Contains(buf.String(), `"traceID":"abc"`) {
		t.Fatalf("expected trace id in output, got %s", buf.String())
	}
}

func TestFromOrFallsBack(t *testing.T) {
	fallback := Discard()
	if FromOr(context.Background(), fallback) != fallback {
		t.Fatal("expected fallback logger")
	}
}
