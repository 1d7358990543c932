package logger

import (
	"bytes"
	"strings"
	"testing"

	"log/slog"
)

func TestContextMetadataReachesLogRecords(t *testing.T) {
	buf := &bytes.Buffer{}
	log := slog.New(newStructuredHandler(handlerConfig{
		level:  slog.LevelInfo,
		out:    buf,
		format: formatKV,
	}))

	ctx := WithRID(Background(), BuildRID(11, 22, 33))
	ctx = WithUpdateMeta(ctx, 11, 33, 22)
	LogEvent(ctx, log, slog.LevelInfo, "flow.started")

	line := strings.TrimSpace(buf.String())
	for _, want := range []string{"rid=11:22:33", "update_id=11", "user_id=33", "chat_id=22"} {
		if !strings.Contains(line, want) {
			t.Fatalf("line %q missing %s", line, want)
		}
	}
}

func TestExplicitAttrsWinOverContext(t *testing.T) {
	buf := &bytes.Buffer{}
	log := slog.New(newStructuredHandler(handlerConfig{
		level:  slog.LevelInfo,
		out:    buf,
		format: formatKV,
	}))

	ctx := WithUpdateMeta(Background(), 11, 33, 22)
	LogEvent(ctx, log, slog.LevelInfo, "server.removed",
		slog.Int64("user_id", 99),
	)

	line := strings.TrimSpace(buf.String())
	if !strings.Contains(line, "user_id=99") {
		t.Fatalf("line %q missing explicit user_id", line)
	}
	if strings.Count(line, "user_id=") != 1 {
		t.Fatalf("user_id duplicated: %q", line)
	}
}

func TestFromContextPrefersStoredLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	stored := slog.New(newStructuredHandler(handlerConfig{
		level:  slog.LevelInfo,
		out:    buf,
		format: formatKV,
	})).With("component", "tg")

	ctx := WithLogger(Background(), stored)
	if got := FromContext(ctx); got != stored {
		t.Fatal("FromContext did not return the stored logger")
	}
	if got := FromContext(Background()); got != L {
		t.Fatal("FromContext without a stored logger must fall back to the default")
	}
}
