package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/emcapital/memberbot/internal/api"
	"github.com/emcapital/memberbot/internal/app"
	"github.com/emcapital/memberbot/internal/bot"
	"github.com/emcapital/memberbot/internal/config"
	"github.com/emcapital/memberbot/internal/logging"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/telebot.v4"
)

func main() {
	setupConfig()
	logging.Init()

	cfg := config.New()
	logrus.Debugf("config: %v", cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// Updates arrive through the webhook route, so the bot never polls.
	tb, err := telebot.NewBot(telebot.Settings{
		Token:       cfg.TelegramToken,
		Synchronous: true,
	})
	if err != nil {
		logrus.Fatalf("Failed to create bot: %v", err)
	}
	if cfg.BotUsername == "" {
		cfg.BotUsername = tb.Me.Username
	}

	a := app.New(ctx, cfg, tb)
	defer a.Close()

	bot.NewAdapter(a.Router(ctx), cfg.BotHandleTimeout).Register(tb)

	service := api.NewService(a.Members, a.Dispatcher, a.Scheduler, tb, api.Config{
		AdminPasswordHash: cfg.AdminPasswordHash,
		WebhookSecret:     cfg.TelegramWebhookSecret,
		GroupChatID:       cfg.GroupChatID,
		Branding:          app.Branding(cfg),
	})
	if cfg.AdminPasswordHash == "" {
		logrus.Warn("admin_password_hash is not set, the admin API rejects every request")
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	service.Register(e, a.Registry)

	go func() {
		if err := e.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	logrus.Info("shutting down server")
	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("failed to shut down server: %v", err)
	}
}

func setupConfig() {
	// Telegram waits about a minute for a webhook response before retrying.
	viper.SetDefault("bot_handle_timeout", "30s")
	config.SetupCommon()
}
