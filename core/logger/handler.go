package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

type logFormat int

const (
	formatJSON logFormat = iota
	formatKV
)

// defaultKeyOrder pins well-known keys to stable positions so log lines
// stay grep-able regardless of call-site attribute order.
var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"update_id",
	"user_id",
	"chat_id",
	"handler",
	"operation",
	"cb_key",
	"outcome",
	"duration_ms",
	"server",
	"target",
	"count",
	"mode",
	"backend",
	"host",
	"port",
	"err",
	"attempts",
}

type handlerConfig struct {
	level    slog.Leveler
	out      io.Writer
	format   logFormat
	keyOrder []string
}

type structuredHandler struct {
	cfg   handlerConfig
	attrs []slog.Attr
	mu    *sync.Mutex
}

func newStructuredHandler(cfg handlerConfig) *structuredHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if len(cfg.keyOrder) == 0 {
		cfg.keyOrder = append([]string(nil), defaultKeyOrder...)
	}
	return &structuredHandler{cfg: cfg, mu: &sync.Mutex{}}
}

func (h *structuredHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.level.Level()
}

func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

// WithGroup is accepted but flattened; this logger keys everything at top level.
func (h *structuredHandler) WithGroup(string) slog.Handler {
	return h
}

func (h *structuredHandler) Handle(_ context.Context, r slog.Record) error {
	pairs := make([]slog.Attr, 0, r.NumAttrs()+len(h.attrs)+3)
	pairs = append(pairs,
		slog.String("ts", r.Time.Format(time.RFC3339Nano)),
		slog.String("level", r.Level.String()),
	)
	pairs = append(pairs, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		pairs = append(pairs, a)
		return true
	})
	if r.Message != "" && !hasKey(pairs, "event") {
		pairs = append(pairs, slog.String("event", r.Message))
	}
	pairs = orderAttrs(pairs, h.cfg.keyOrder)

	var line string
	if h.cfg.format == formatKV {
		line = renderKV(pairs)
	} else {
		line = renderJSON(pairs)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.cfg.out, line+"\n")
	return err
}

func hasKey(attrs []slog.Attr, key string) bool {
	for _, a := range attrs {
		if a.Key == key {
			return true
		}
	}
	return false
}

// orderAttrs moves known keys to their pinned positions and keeps the rest
// in insertion order. Duplicate keys keep the first occurrence.
func orderAttrs(attrs []slog.Attr, order []string) []slog.Attr {
	seen := make(map[string]slog.Attr, len(attrs))
	rest := make([]string, 0, len(attrs))
	for _, a := range attrs {
		if _, dup := seen[a.Key]; dup {
			continue
		}
		seen[a.Key] = a
		rest = append(rest, a.Key)
	}

	out := make([]slog.Attr, 0, len(seen))
	taken := make(map[string]bool, len(seen))
	for _, key := range order {
		if a, ok := seen[key]; ok {
			out = append(out, a)
			taken[key] = true
		}
	}
	for _, key := range rest {
		if !taken[key] {
			out = append(out, seen[key])
		}
	}
	return out
}

func renderKV(attrs []slog.Attr) string {
	var b strings.Builder
	for i, a := range attrs {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(a.Key)
		b.WriteByte('=')
		b.WriteString(kvValue(a.Value))
	}
	return b.String()
}

func kvValue(v slog.Value) string {
	s := valueString(v)
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}

func renderJSON(attrs []slog.Attr) string {
	var b strings.Builder
	b.WriteByte('{')
	for i, a := range attrs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(a.Key))
		b.WriteByte(':')
		writeJSONValue(&b, a.Value)
	}
	b.WriteByte('}')
	return b.String()
}

func writeJSONValue(b *strings.Builder, v slog.Value) {
	switch v.Kind() {
	case slog.KindInt64:
		b.WriteString(strconv.FormatInt(v.Int64(), 10))
	case slog.KindUint64:
		b.WriteString(strconv.FormatUint(v.Uint64(), 10))
	case slog.KindFloat64:
		b.WriteString(strconv.FormatFloat(v.Float64(), 'f', -1, 64))
	case slog.KindBool:
		b.WriteString(strconv.FormatBool(v.Bool()))
	default:
		b.WriteString(strconv.Quote(valueString(v)))
	}
}

func valueString(v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(v.Any())
	}
}
