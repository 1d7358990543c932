package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/Hamster-Prime/Network-Test-Bot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// Logging builds the request context (rid + update metadata) and logs a
// single receipt line per update.
func Logging(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		upd := c.Update()
		chatID, userID := int64(0), int64(0)
		if chat := c.Chat(); chat != nil {
			chatID = chat.ID
		}
		if sender := c.Sender(); sender != nil {
			userID = sender.ID
		}

		rid := logger.BuildRID(upd.ID, chatID, userID)
		c.Set("rid", rid)
		c.Set("update_start", time.Now())

		ctx := logger.WithRID(logger.Background(), rid)
		ctx = logger.WithUpdateMeta(ctx, upd.ID, userID, chatID)
		ctx = logger.WithLogger(ctx, logger.Component("tg"))
		StoreContext(c, ctx)

		// rid and the update identifiers ride on ctx from here on.
		var attrs []slog.Attr
		switch {
		case upd.Callback != nil:
			attrs = append(attrs, slog.String("cb_key", logger.SanitizeLimit(upd.Callback.Data, 128)))
		case upd.Message != nil:
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(c.Text(), 256)))
		}
		logger.Debug(ctx, "tg", "update.received", attrs...)

		return next(c)
	}
}

const contextKey = "reqctx"

// StoreContext stashes the request context on the telebot context so
// handlers can recover rid and update metadata.
func StoreContext(c tele.Context, ctx context.Context) {
	c.Set(contextKey, ctx)
}

// RequestContext returns the context stored by Logging, or a fresh
// background context when the middleware did not run.
func RequestContext(c tele.Context) context.Context {
	if v := c.Get(contextKey); v != nil {
		if stored, ok := v.(context.Context); ok {
			return stored
		}
	}
	return logger.Background()
}
