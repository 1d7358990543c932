package middleware

import (
	"context"
	"log/slog"

	"github.com/Hamster-Prime/Network-Test-Bot/core/config"
	"github.com/Hamster-Prime/Network-Test-Bot/core/logger"

	tele "gopkg.in/telebot.v4"
)

const msgNotAuthorized = "You are not authorized to use this bot."
const msgAdminOnly = "Only administrators can manage servers."

// Authorized drops updates from users outside the configured allow list.
// The rejection is answered once so the chat does not stay silent.
func Authorized(access config.AccessConfig) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			if sender == nil {
				return nil
			}
			if access.IsAuthorized(sender.ID) {
				return next(c)
			}
			logger.Warn(context.Background(), "tg", "access.denied",
				slog.Int64("user_id", sender.ID),
			)
			if c.Callback() != nil {
				return c.Respond(&tele.CallbackResponse{Text: msgNotAuthorized})
			}
			return c.Send(msgNotAuthorized)
		}
	}
}

// AdminOnly guards a single handler behind the admin list. Used for the
// registry-mutating commands.
func AdminOnly(access config.AccessConfig, handler tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}
		if !access.IsAdmin(sender.ID) {
			logger.Warn(context.Background(), "tg", "access.admin_denied",
				slog.Int64("user_id", sender.ID),
			)
			return c.Send(msgAdminOnly)
		}
		return handler(c)
	}
}
