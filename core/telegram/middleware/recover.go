// Package middleware holds the global bot middlewares: panic recovery,
// access control, rate limiting and per-update logging.
package middleware

import (
	"context"
	"log/slog"
	"runtime/debug"

	"github.com/Hamster-Prime/Network-Test-Bot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// Recover catches panics in handlers and prevents the bot from crashing.
func Recover(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		defer func() {
			if r := recover(); r != nil {
				logger.Error(context.Background(), "tg", "panic.recovered",
					slog.Any("err", r),
					slog.String("stack", string(debug.Stack())),
				)
			}
		}()
		return next(c)
	}
}
