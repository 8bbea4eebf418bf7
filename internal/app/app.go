// Package app wires the shared components of the binaries from the config.
package app

import (
	"context"
	"time"

	"github.com/emcapital/memberbot/internal/bot"
	"github.com/emcapital/memberbot/internal/config"
	"github.com/emcapital/memberbot/internal/members"
	"github.com/emcapital/memberbot/internal/metrics"
	"github.com/emcapital/memberbot/internal/notify"
	"github.com/emcapital/memberbot/internal/reminder"
	"github.com/emcapital/memberbot/internal/storage"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v4"
)

type App struct {
	Config     *config.Config
	Storage    *storage.Storage
	Registry   *prometheus.Registry
	Metrics    *metrics.Metrics
	Members    *members.Service
	Dispatcher *notify.Dispatcher
	Scheduler  *reminder.Scheduler
	Telegram   *notify.Telegram
}

// New opens and migrates the database and builds the notification stack on
// top of api. Fatal errors terminate the process.
func New(ctx context.Context, cfg *config.Config, api telebot.API) *App {
	store, err := storage.Open(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}

	migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := store.Migrate(migrateCtx); err != nil {
		logrus.Fatalf("Failed to migrate database: %v", err)
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	var email notify.EmailSender
	if cfg.ResendAPIKey != "" {
		email = notify.NewResend(cfg.ResendBaseURL, cfg.ResendAPIKey, cfg.EmailFrom)
	} else {
		logrus.Warn("resend_api_key is not set, email delivery is disabled")
	}

	if len(cfg.Admins()) == 0 {
		logrus.Warn("admin_chat_ids is empty, admin commands and alerts are disabled")
	}

	telegram := notify.NewTelegram(api)
	dispatcher := notify.NewDispatcher(telegram, email, cfg.Admins(), m)

	svc := members.New(store, members.Options{
		Location: cfg.Location(),
		Prices:   Prices(cfg),
	})

	scheduler := reminder.New(store, dispatcher, reminder.Config{
		MemberDays: cfg.MemberReminderDays,
		Location:   cfg.Location(),
	}, m)

	return &App{
		Config:     cfg,
		Storage:    store,
		Registry:   registry,
		Metrics:    m,
		Members:    svc,
		Dispatcher: dispatcher,
		Scheduler:  scheduler,
		Telegram:   telegram,
	}
}

func (a *App) Close() {
	if err := a.Storage.Close(); err != nil {
		logrus.Errorf("failed to close database: %v", err)
	}
}

func Prices(cfg *config.Config) members.Prices {
	return members.Prices{
		Mentorship: cfg.PriceMentorship,
		Signals:    cfg.PriceSignals,
	}
}

func Branding(cfg *config.Config) bot.Branding {
	return bot.Branding{
		Name:           cfg.BrandName,
		SupportHandle:  cfg.SupportHandle,
		ContactEmail:   cfg.ContactEmail,
		SiteURL:        cfg.SiteURL,
		GroupInviteURL: cfg.GroupInviteURL,
		PaymentURL:     cfg.PaymentURL,
		BotUsername:    cfg.BotUsername,
		Prices:         Prices(cfg),
	}
}

// InquiryStore builds the configured inquiry flag store.
func InquiryStore(ctx context.Context, cfg *config.Config) bot.InquiryStore {
	if cfg.InquiryStore != config.InquiryStoreRedis {
		return bot.NewMemoryInquiryStore(cfg.InquiryTTL)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		logrus.Fatalf("Failed to connect to redis: %v", err)
	}
	return bot.NewRedisInquiryStore(client, cfg.InquiryTTL)
}

// Router builds the chat command router on top of the app.
func (a *App) Router(ctx context.Context) *bot.Router {
	return bot.NewRouter(
		a.Members,
		a.Dispatcher,
		a.Telegram,
		InquiryStore(ctx, a.Config),
		bot.Config{
			GroupChatID: a.Config.GroupChatID,
			Branding:    Branding(a.Config),
		},
		a.Metrics,
	)
}
