package logger

import (
	"bytes"
	"strings"
	"testing"

	"log/slog"
)

func TestStructuredHandlerKVOrder(t *testing.T) {
	buf := &bytes.Buffer{}
	handler := newStructuredHandler(handlerConfig{
		level:  slog.LevelInfo,
		out:    buf,
		format: formatKV,
	})

	log := slog.New(handler).With("component", "app")
	LogEvent(Background(), log, slog.LevelInfo, "test.event",
		slog.String("status", "ok"),
		slog.String("rid", "rid-123"),
	)

	line := strings.TrimSpace(buf.String())
	if line == "" {
		t.Fatal("expected log line")
	}
	tokens := strings.Split(line, " ")
	expected := []string{"ts=", "level=INFO", "component=app", "event=test.event", "status=ok", "rid=rid-123"}
	if len(tokens) < len(expected) {
		t.Fatalf("unexpected token count: %d (%s)", len(tokens), line)
	}
	for i, prefix := range expected {
		if !strings.HasPrefix(tokens[i], prefix) {
			t.Fatalf("token %d = %s, expected prefix %s", i, tokens[i], prefix)
		}
	}
}

func TestStructuredHandlerJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	handler := newStructuredHandler(handlerConfig{
		level:  slog.LevelInfo,
		out:    buf,
		format: formatJSON,
	})

	log := slog.New(handler).With("component", "jobs")
	LogEvent(Background(), log, slog.LevelError, "job.failed",
		slog.String("status", "fail"),
		slog.String("err", "boom"),
		slog.Int64("user_id", 7),
	)

	line := strings.TrimSpace(buf.String())
	if !strings.HasPrefix(line, "{") || !strings.HasSuffix(line, "}") {
		t.Fatalf("expected JSON object, got %s", line)
	}
	for _, want := range []string{`"level":"ERROR"`, `"component":"jobs"`, `"event":"job.failed"`, `"user_id":7`, `"err":"boom"`} {
		if !strings.Contains(line, want) {
			t.Fatalf("line %s missing %s", line, want)
		}
	}
	// component must come before event, event before err, per pinned order
	if strings.Index(line, `"component"`) > strings.Index(line, `"event"`) {
		t.Fatalf("component not ordered before event: %s", line)
	}
	if strings.Index(line, `"event"`) > strings.Index(line, `"err"`) {
		t.Fatalf("event not ordered before err: %s", line)
	}
}

func TestStructuredHandlerLevelFilter(t *testing.T) {
	buf := &bytes.Buffer{}
	handler := newStructuredHandler(handlerConfig{
		level:  slog.LevelWarn,
		out:    buf,
		format: formatKV,
	})
	log := slog.New(handler)
	log.Info("dropped")
	log.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Fatalf("info record should be filtered: %s", out)
	}
	if !strings.Contains(out, "kept") {
		t.Fatalf("warn record missing: %s", out)
	}
}

func TestSanitizeLimit(t *testing.T) {
	in := "abc\x00def\x1b[31m"
	got := Sanitize(in)
	if strings.ContainsRune(got, 0) || strings.ContainsRune(got, 0x1b) {
		t.Fatalf("control characters survived: %q", got)
	}
	if SanitizeLimit("abcdef", 3) != "abc" {
		t.Fatal("limit not applied")
	}
	if SanitizeLimit("abc", 0) != "" {
		t.Fatal("zero limit must return empty string")
	}
}
