package main

import (
	"context"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/emcapital/memberbot/internal/app"
	"github.com/emcapital/memberbot/internal/bot"
	"github.com/emcapital/memberbot/internal/config"
	"github.com/emcapital/memberbot/internal/logging"
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

	tb, err := telebot.NewBot(telebot.Settings{
		Token: cfg.TelegramToken,
		Poller: &telebot.LongPoller{
			Timeout: 10 * time.Second,
			AllowedUpdates: []string{
				"message",
				"callback_query",
			},
		},
	})
	if err != nil {
		logrus.Fatalf("Failed to create bot: %v", err)
	}
	if cfg.BotUsername == "" {
		cfg.BotUsername = tb.Me.Username
	}

	a := app.New(ctx, cfg, tb)
	defer a.Close()

	adapter := bot.NewAdapter(a.Router(ctx), cfg.BotHandleTimeout)
	adapter.Register(tb)

	wg := sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		tb.Start()
	}()

	if cfg.ReminderInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Scheduler.Loop(ctx, cfg.ReminderInterval)
		}()
	} else {
		logrus.Info("reminder_interval is not set, reminders run from an external trigger")
	}

	<-ctx.Done()

	tb.Stop()

	logrus.Info("waiting for services to finish")
	wg.Wait()
}

func setupConfig() {
	viper.SetDefault("bot_handle_timeout", "10s")
	viper.SetDefault("reminder_interval", "0s")
	config.SetupCommon()
}
