package observability

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func captureLogs(t *testing.T, level slog.Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: level})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestGetContextRoundtrip(t *testing.T) {
	ctx := context.Background()
	ctx = WithBuildID(ctx, "b-1")
	ctx = WithStage(ctx, "fonts")
	ctx = WithFile(ctx, "Book-Regular.ttf")

	lc := GetContext(ctx)
	if lc.BuildID != "b-1" || lc.Stage != "fonts" || lc.File != "Book-Regular.ttf" {
		t.Fatalf("context fields lost: %+v", lc)
	}

	// Later fields must not clobber earlier ones.
	lc = GetContext(WithStage(ctx, "convert"))
	if lc.BuildID != "b-1" || lc.Stage != "convert" {
		t.Fatalf("stage update dropped build id: %+v", lc)
	}
}

func TestGetContextEmpty(t *testing.T) {
	lc := GetContext(context.Background())
	if lc != (LogContext{}) {
		t.Fatalf("expected zero context, got %+v", lc)
	}
}

func TestContextLoggersCarryFields(t *testing.T) {
	buf := captureLogs(t, slog.LevelDebug)

	ctx := WithFile(WithStage(WithBuildID(context.Background(), "b-2"), "postprocess"), "index.html")
	InfoContext(ctx, "page rewritten", slog.Int("links", 3))
	WarnContext(ctx, "toc missing")
	ErrorContext(ctx, "write failed")
	DebugContext(ctx, "probe")

	out := buf.String()
	for _, want := range []string{
		"build.id=b-2", "stage=postprocess", "file=index.html",
		"page rewritten", "links=3", "toc missing", "write failed", "probe",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestContextLoggersHonorLevel(t *testing.T) {
	buf := captureLogs(t, slog.LevelInfo)
	DebugContext(WithStage(context.Background(), "fonts"), "hidden")
	if strings.Contains(buf.String(), "hidden") {
		t.Fatalf("debug line logged at info level:\n%s", buf.String())
	}
}
