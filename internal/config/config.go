package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	InquiryStoreMemory = "memory"
	InquiryStoreRedis  = "redis"
)

type Config struct {
	TelegramToken         string        `mapstructure:"telegram_token"`
	TelegramWebhookSecret string        `mapstructure:"telegram_webhook_secret"`
	BotHandleTimeout      time.Duration `mapstructure:"bot_handle_timeout"`

	DatabaseDriver string `mapstructure:"database_driver"`
	DatabaseDSN    string `mapstructure:"database_dsn"`

	// AdminChatIDs is the comma separated administrator allow-list.
	AdminChatIDs string `mapstructure:"admin_chat_ids"`
	GroupChatID  int64  `mapstructure:"group_chat_id"`

	Timezone           string        `mapstructure:"timezone"`
	MemberReminderDays int           `mapstructure:"member_reminder_days"`
	ReminderInterval   time.Duration `mapstructure:"reminder_interval"`

	InquiryStore  string        `mapstructure:"inquiry_store"`
	InquiryTTL    time.Duration `mapstructure:"inquiry_ttl"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`

	ResendAPIKey  string `mapstructure:"resend_api_key"`
	ResendBaseURL string `mapstructure:"resend_base_url"`
	EmailFrom     string `mapstructure:"email_from"`

	AdminPasswordHash string `mapstructure:"admin_password_hash"`
	ListenAddr        string `mapstructure:"listen_addr"`

	PriceMentorship float64 `mapstructure:"price_mentorship"`
	PriceSignals    float64 `mapstructure:"price_signals"`

	BrandName      string `mapstructure:"brand_name"`
	BotUsername    string `mapstructure:"bot_username"`
	SupportHandle  string `mapstructure:"support_handle"`
	ContactEmail   string `mapstructure:"contact_email"`
	SiteURL        string `mapstructure:"site_url"`
	GroupInviteURL string `mapstructure:"group_invite_url"`
	PaymentURL     string `mapstructure:"payment_url"`

	admins   []int64
	location *time.Location
}

func New() *Config {
	cfg, err := Load()
	if err != nil {
		logrus.Fatalf("loading config: %v", err)
	}
	return cfg
}

// Load unmarshals and validates the viper state.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	admins, err := ParseChatIDs(cfg.AdminChatIDs)
	if err != nil {
		return nil, fmt.Errorf("parsing admin_chat_ids: %w", err)
	}
	cfg.admins = admins

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", cfg.Timezone, err)
	}
	cfg.location = loc

	switch cfg.InquiryStore {
	case InquiryStoreMemory:
	case InquiryStoreRedis:
		if cfg.RedisAddr == "" {
			return nil, errors.New("inquiry_store=redis requires redis_addr")
		}
	default:
		return nil, fmt.Errorf("unknown inquiry_store %q", cfg.InquiryStore)
	}

	if cfg.MemberReminderDays < 1 {
		return nil, fmt.Errorf("member_reminder_days must be at least 1, got %d", cfg.MemberReminderDays)
	}

	return cfg, nil
}

// Admins is the parsed administrator allow-list.
func (c *Config) Admins() []int64 {
	return c.admins
}

// Location is the calendar used for day buckets and command dates.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// String hides secrets so the config can be logged.
func (c *Config) String() string {
	redacted := *c
	for _, secret := range []*string{
		&redacted.TelegramToken,
		&redacted.TelegramWebhookSecret,
		&redacted.DatabaseDSN,
		&redacted.RedisPassword,
		&redacted.ResendAPIKey,
		&redacted.AdminPasswordHash,
	} {
		if *secret != "" {
			*secret = "***"
		}
	}
	return fmt.Sprintf("%+v", redacted)
}

func ParseChatIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing chat id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func loadEnvFile() {
	path := os.Getenv("MEMBERBOT_ENV_FILE")
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logrus.Warnf("failed to load env file %s: %v", path, err)
	}
}

func SetupCommon() {
	loadEnvFile()

	viper.SetDefault("telegram_token", "")
	viper.SetDefault("telegram_webhook_secret", "")
	viper.SetDefault("database_driver", "postgres")
	viper.SetDefault("database_dsn", "")
	viper.SetDefault("admin_chat_ids", "")
	viper.SetDefault("group_chat_id", 0)
	viper.SetDefault("timezone", "UTC")
	viper.SetDefault("member_reminder_days", 3)
	viper.SetDefault("inquiry_store", InquiryStoreMemory)
	viper.SetDefault("inquiry_ttl", "30m")
	viper.SetDefault("redis_addr", "")
	viper.SetDefault("redis_password", "")
	viper.SetDefault("redis_db", 0)
	viper.SetDefault("resend_api_key", "")
	viper.SetDefault("resend_base_url", "https://api.resend.com")
	viper.SetDefault("email_from", "")
	viper.SetDefault("admin_password_hash", "")
	viper.SetDefault("listen_addr", ":8080")
	viper.SetDefault("price_mentorship", 200)
	viper.SetDefault("price_signals", 49)
	viper.SetDefault("brand_name", "EM Capital")
	viper.SetDefault("bot_username", "")
	viper.SetDefault("support_handle", "")
	viper.SetDefault("contact_email", "")
	viper.SetDefault("site_url", "")
	viper.SetDefault("group_invite_url", "")
	viper.SetDefault("payment_url", "")
	viper.SetEnvPrefix("MEMBERBOT")

	viper.MustBindEnv("telegram_token")
	viper.MustBindEnv("database_dsn")
	viper.MustBindEnv("admin_chat_ids")
	viper.AutomaticEnv()
}
