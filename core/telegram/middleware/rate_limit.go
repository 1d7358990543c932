package middleware

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Hamster-Prime/Network-Test-Bot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// RateLimit enforces a minimum interval between updates from the same user.
// Zero or negative interval disables the limiter.
func RateLimit(interval time.Duration) tele.MiddlewareFunc {
	var (
		mu       sync.Mutex
		lastSeen = make(map[int64]time.Time)
	)
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			if sender == nil || interval <= 0 {
				return next(c)
			}

			now := time.Now()
			mu.Lock()
			if last, ok := lastSeen[sender.ID]; ok && now.Sub(last) < interval {
				mu.Unlock()
				logger.Warn(context.Background(), "tg", "rate.limited",
					slog.Int64("user_id", sender.ID),
				)
				if c.Callback() != nil {
					return c.Respond(&tele.CallbackResponse{Text: "Too fast, try again in a moment."})
				}
				return nil
			}
			lastSeen[sender.ID] = now
			mu.Unlock()
			return next(c)
		}
	}
}
