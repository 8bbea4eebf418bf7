// Command remind runs the membership reminder job once, for an external
// scheduler such as cron, and prints the counts as JSON.
package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/emcapital/memberbot/internal/app"
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

	runCtx, runCancel := context.WithTimeout(ctx, viper.GetDuration("remind_timeout"))
	defer runCancel()

	tb, err := telebot.NewBot(telebot.Settings{
		Token:   cfg.TelegramToken,
		Offline: true,
	})
	if err != nil {
		logrus.Fatalf("Failed to create bot: %v", err)
	}

	a := app.New(runCtx, cfg, tb)
	defer a.Close()

	res := a.Scheduler.Run(runCtx, time.Now())

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		logrus.Errorf("failed to print result: %v", err)
	}
}

func setupConfig() {
	viper.SetDefault("remind_timeout", "5m")
	config.SetupCommon()
}
