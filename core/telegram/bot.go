// Package telegram assembles the bot: transport construction, middleware
// chain, command routes and the run loop.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Hamster-Prime/Network-Test-Bot/core/config"
	"github.com/Hamster-Prime/Network-Test-Bot/core/logger"
	"github.com/Hamster-Prime/Network-Test-Bot/core/telegram/flow"
	"github.com/Hamster-Prime/Network-Test-Bot/core/telegram/middleware"
	"github.com/Hamster-Prime/Network-Test-Bot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// RouterBuilder constructs the interaction router once the live transport
// exists. The bot has to be created before the transport, so the router
// cannot be built up front.
type RouterBuilder func(tr sender.Transport) *flow.Router

// Run composes and runs the bot until ctx is done.
func Run(ctx context.Context, cfg *config.Config, build RouterBuilder) error {
	if cfg == nil {
		return fmt.Errorf("telegram: nil config provided")
	}

	buildStart := time.Now()
	bot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: buildPoller(cfg),
		Client: buildHTTPClient(),
	})
	if err != nil {
		return fmt.Errorf("telegram: bot initialization failed: %w", err)
	}

	logger.Info(ctx, "tg", "bot.ready",
		slog.String("mode", cfg.Telegram.RunMode),
		slog.Duration("duration_ms", logger.RoundMS(time.Since(buildStart))),
	)

	if cfg.Telegram.RunMode == config.RunModeLongpoll {
		if err := deleteWebhook(cfg.Telegram.Token); err != nil {
			logger.Warn(ctx, "tg", "webhook.delete.failed", slog.String("err", err.Error()))
		}
	}

	router := build(sender.NewTelebot(bot))

	bot.Use(middleware.Recover)
	if interval := time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond; interval > 0 {
		bot.Use(middleware.RateLimit(interval))
	}
	bot.Use(middleware.Logging)
	bot.Use(middleware.Authorized(cfg.Access))

	registerRoutes(bot, cfg, router)
	announceCommands(ctx, bot)

	runDone := make(chan struct{})
	go func() {
		bot.Start()
		close(runDone)
	}()

	select {
	case <-ctx.Done():
		bot.Stop()
		<-runDone
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil
		}
		return ctx.Err()
	case <-runDone:
		return nil
	}
}

func registerRoutes(bot *tele.Bot, cfg *config.Config, router *flow.Router) {
	bot.Handle("/start", func(c tele.Context) error {
		router.Help(middleware.RequestContext(c), c.Chat().ID)
		return nil
	})
	bot.Handle("/help", func(c tele.Context) error {
		router.Help(middleware.RequestContext(c), c.Chat().ID)
		return nil
	})
	bot.Handle("/ping", func(c tele.Context) error {
		router.StartPing(middleware.RequestContext(c), c.Sender().ID, c.Chat().ID, c.Args())
		return nil
	})
	bot.Handle("/nexttrace", func(c tele.Context) error {
		router.StartNextTrace(middleware.RequestContext(c), c.Sender().ID, c.Chat().ID, c.Args())
		return nil
	})
	bot.Handle("/servers", func(c tele.Context) error {
		router.Servers(middleware.RequestContext(c), c.Chat().ID)
		return nil
	})
	bot.Handle("/cancel", func(c tele.Context) error {
		router.Cancel(middleware.RequestContext(c), c.Sender().ID, c.Chat().ID)
		return nil
	})

	bot.Handle("/addserver", middleware.AdminOnly(cfg.Access, func(c tele.Context) error {
		router.StartAddServer(middleware.RequestContext(c), c.Sender().ID, c.Chat().ID)
		return nil
	}))
	bot.Handle("/rmserver", middleware.AdminOnly(cfg.Access, func(c tele.Context) error {
		router.StartRmServer(middleware.RequestContext(c), c.Sender().ID, c.Chat().ID)
		return nil
	}))
	bot.Handle("/install_nexttrace", middleware.AdminOnly(cfg.Access, func(c tele.Context) error {
		router.StartInstall(middleware.RequestContext(c), c.Sender().ID, c.Chat().ID)
		return nil
	}))

	bot.Handle(tele.OnText, func(c tele.Context) error {
		msg := c.Message()
		router.HandleText(middleware.RequestContext(c), c.Sender().ID, c.Chat().ID, msg.ID, c.Text())
		return nil
	})

	bot.Handle(tele.OnCallback, func(c tele.Context) error {
		cb := c.Callback()
		if cb == nil || cb.Message == nil {
			return nil
		}
		// Ack first so the client stops its loading animation.
		_ = c.Respond()
		data := strings.TrimPrefix(cb.Data, "\f")
		router.HandleButton(middleware.RequestContext(c), c.Sender().ID, data, cb.Message.Chat.ID, cb.Message.ID)
		return nil
	})
}

func announceCommands(ctx context.Context, bot *tele.Bot) {
	commands := []tele.Command{
		{Text: "ping", Description: "Ping a target from a server"},
		{Text: "nexttrace", Description: "Trace the route to a target"},
		{Text: "servers", Description: "List registered servers"},
		{Text: "addserver", Description: "Register a new server"},
		{Text: "rmserver", Description: "Remove a server"},
		{Text: "install_nexttrace", Description: "Install NextTrace on a server"},
		{Text: "cancel", Description: "Abort the current flow"},
		{Text: "help", Description: "Show usage"},
	}
	if err := bot.SetCommands(commands); err != nil {
		logger.Warn(ctx, "tg", "commands.announce.failed", slog.String("err", err.Error()))
	}
}

func deleteWebhook(token string) error {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("empty token")
	}
	url := fmt.Sprintf("https://api.telegram.org/bot%s/deleteWebhook", token)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader("drop_pending_updates=false"))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("deleteWebhook status: %s", resp.Status)
	}
	return nil
}
