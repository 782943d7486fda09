package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"CryptoSentinel/internal/cache"
	"CryptoSentinel/internal/calculator"
	"CryptoSentinel/internal/logger"
	"CryptoSentinel/internal/model"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Log        logger.Config      `yaml:"log"`
	Server     ServerConfig       `yaml:"server"`
	DataSource DataSourceConfig   `yaml:"data_source"`
	Periods    calculator.Periods `yaml:"indicators"`
	Assets     []string           `yaml:"assets" default:"[\"BTC\",\"SOL\",\"XRP\",\"ADA\"]" validate:"min=1,dive,required"`
	AssetDelay time.Duration      `yaml:"asset_delay" default:"1500ms" validate:"gte=0"`
	Schedule   ScheduleConfig     `yaml:"schedule"`
	Cache      CacheConfig        `yaml:"cache"`
	Notify     NotifyConfig       `yaml:"notify"`
	Rules      *model.RuleConfig  `yaml:"rules"`
	Proxy      string             `yaml:"proxy"`
}

type ServerConfig struct {
	Enabled         bool          `yaml:"enabled" default:"true"`
	Port            int           `yaml:"port" default:"3000" validate:"gt=0,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"15s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	CORSOrigins     []string      `yaml:"cors_origins" default:"[\"*\"]"`
}

type DataSourceConfig struct {
	Provider     string         `yaml:"provider" default:"cryptocompare" validate:"oneof=cryptocompare binance coingecko twelvedata mock"`
	BaseURL      string         `yaml:"base_url" validate:"omitempty,url"`
	APIKey       string         `yaml:"api_key"`
	Quote        string         `yaml:"quote" default:"USD" validate:"required"`
	Interval     model.Interval `yaml:"interval" default:"1h" validate:"oneof=1m 1h 1d"`
	Limit        int            `yaml:"limit" default:"200" validate:"gt=0"`
	FetchTimeout time.Duration  `yaml:"fetch_timeout" default:"30s" validate:"gt=0"`
}

type ScheduleConfig struct {
	Cron       string `yaml:"cron" default:"0 0 */12 * * *" validate:"required"`
	RunOnStart bool   `yaml:"run_on_start"`
}

type CacheConfig struct {
	TTL   time.Duration     `yaml:"ttl" default:"5m" validate:"gte=0"`
	Redis cache.RedisConfig `yaml:"redis"`
}

type NotifyConfig struct {
	Enabled  bool           `yaml:"enabled" default:"true"`
	Summary  bool           `yaml:"summary"`
	Cooldown time.Duration  `yaml:"cooldown" default:"4h" validate:"gte=0"`
	PerAsset bool           `yaml:"per_asset"`
	Log      bool           `yaml:"log"`
	Telegram TelegramConfig `yaml:"telegram"`
	Email    EmailConfig    `yaml:"email"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Kafka    KafkaConfig    `yaml:"kafka"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
	Polling  bool   `yaml:"polling" default:"true"`
}

func (t TelegramConfig) Configured() bool {
	return t.BotToken != "" && t.ChatID != ""
}

type EmailConfig struct {
	Host          string   `yaml:"host"`
	Port          int      `yaml:"port" default:"587" validate:"gt=0,lte=65535"`
	Username      string   `yaml:"username"`
	Password      string   `yaml:"password"`
	From          string   `yaml:"from" validate:"omitempty,email"`
	To            []string `yaml:"to" validate:"dive,email"`
	SubjectPrefix string   `yaml:"subject_prefix" default:"[Crypto Alert]"`
}

func (e EmailConfig) Configured() bool {
	return e.Host != "" && len(e.To) > 0
}

type WebhookConfig struct {
	URL     string            `yaml:"url" validate:"omitempty,url"`
	Headers map[string]string `yaml:"headers"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic" default:"crypto-signals"`
}

var validate = validator.New()

// cronParser matches the scheduler's seconds-enabled cron.
var cronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Load reads config from a YAML file, then applies environment variable overrides.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{Rules: model.DefaultRuleConfig()}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if cfg.Rules == nil {
		cfg.Rules = model.DefaultRuleConfig()
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Proxy = v
	}
	if v := os.Getenv("DATA_PROVIDER"); v != "" {
		c.DataSource.Provider = v
	}
	if v := os.Getenv("DATA_BASE_URL"); v != "" {
		c.DataSource.BaseURL = v
	}
	if v := os.Getenv("CRYPTOCOMPARE_API_KEY"); v != "" {
		c.DataSource.APIKey = v
	}
	if v := os.Getenv("ENABLED_COINS"); v != "" {
		c.Assets = splitList(v)
	}
	if v := os.Getenv("SCHEDULE_CRON"); v != "" {
		c.Schedule.Cron = v
	}
	if v := os.Getenv("RUN_ON_START"); v != "" {
		c.Schedule.RunOnStart = v == "true"
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Cache.Redis.Password = v
	}

	if v := os.Getenv("ENABLE_NOTIFICATIONS"); v != "" {
		c.Notify.Enabled = v != "false"
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Notify.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Notify.Telegram.ChatID = v
	}
	if v := os.Getenv("SMTP_HOST"); v != "" {
		c.Notify.Email.Host = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse SMTP_PORT: %w", err)
		}
		c.Notify.Email.Port = port
	}
	if v := os.Getenv("EMAIL_USER"); v != "" {
		c.Notify.Email.Username = v
	}
	if v := os.Getenv("EMAIL_PASS"); v != "" {
		c.Notify.Email.Password = v
	}
	if v := os.Getenv("EMAIL_FROM"); v != "" {
		c.Notify.Email.From = v
	}
	if v := os.Getenv("ALERT_EMAIL"); v != "" {
		c.Notify.Email.To = splitList(v)
	}
	if v := os.Getenv("EMAIL_SUBJECT_PREFIX"); v != "" {
		c.Notify.Email.SubjectPrefix = v
	}
	if v := os.Getenv("WEBHOOK_URL"); v != "" {
		c.Notify.Webhook.URL = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Notify.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Notify.Kafka.Topic = v
	}

	legacy, ok, err := legacyRulesFromEnv(os.Getenv)
	if err != nil {
		return err
	}
	if ok {
		c.Rules = legacy.RuleConfig()
	}
	return nil
}

// Validate checks field constraints, the cron expression and the bar window.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s: failed %q validation", fe.Namespace(), fe.Tag())
		}
		return err
	}
	if _, err := cronParser.Parse(c.Schedule.Cron); err != nil {
		return fmt.Errorf("schedule.cron: %w", err)
	}
	if c.DataSource.Provider != "twelvedata" && c.DataSource.Limit < c.Periods.MinBars() {
		return fmt.Errorf("data_source.limit must be at least %d for the configured indicators", c.Periods.MinBars())
	}
	if c.DataSource.Provider == "twelvedata" && c.DataSource.APIKey == "" {
		return fmt.Errorf("data_source.api_key is required for twelvedata")
	}
	if len(c.Notify.Kafka.Brokers) > 0 && c.Notify.Kafka.Topic == "" {
		return fmt.Errorf("notify.kafka.topic is required when brokers are set")
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
