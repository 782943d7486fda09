package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"CryptoSentinel/internal/api"
	"CryptoSentinel/internal/cache"
	"CryptoSentinel/internal/collector"
	"CryptoSentinel/internal/config"
	"CryptoSentinel/internal/logger"
	"CryptoSentinel/internal/metrics"
	"CryptoSentinel/internal/notifier"
	"CryptoSentinel/internal/scheduler"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	lg, err := logger.New(&cfg.Log)
	if err != nil {
		log.Fatalf("[FATAL] init logger: %v", err)
	}
	lg.Info("CryptoSentinel starting", logger.Strings("assets", cfg.Assets), logger.String("provider", cfg.DataSource.Provider))

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.New(reg)

	// Optional shared Redis for candle cache and cooldowns
	var rdb *redis.Client
	if cfg.Cache.Redis.Addr != "" {
		rdb, err = cache.NewRedisClient(ctx, cfg.Cache.Redis)
		if err != nil {
			lg.Warn("redis unavailable, using in-process cache and cooldowns", logger.Error(err))
		} else {
			defer rdb.Close()
			lg.Info("redis connected", logger.String("addr", cfg.Cache.Redis.Addr))
		}
	}

	provider := newProvider(cfg, rdb, rec, lg)
	lg.Info("data source ready", logger.String("name", provider.Name()))

	rules := config.NewRuleStore(cfg.Rules)

	// Notification channels
	var (
		dispatcher *notifier.Dispatcher
		tn         *notifier.TelegramNotifier
	)
	if cfg.Notify.Telegram.Configured() {
		tn = notifier.NewTelegramNotifier(cfg.Notify.Telegram.BotToken, cfg.Notify.Telegram.ChatID, cfg.Proxy, lg)
	}
	if cfg.Notify.Enabled {
		channels, closeChannels := newChannels(cfg, tn, lg)
		defer closeChannels()

		var store notifier.CooldownStore = notifier.NewMemoryCooldownStore(nil)
		if rdb != nil {
			store = notifier.NewRedisCooldownStore(rdb, cfg.Cache.Redis.Prefix)
		}
		cooldown := notifier.NewCooldown(store, cfg.Notify.Cooldown, cfg.Notify.PerAsset)
		dispatcher = notifier.NewDispatcher(channels, cooldown, rec, lg)
		lg.Info("notifications enabled", logger.Int("channels", len(channels)), logger.Duration("cooldown_ms", cfg.Notify.Cooldown))
	} else {
		lg.Info("notifications disabled")
	}

	// Init scheduler
	sched := scheduler.NewScheduler(ctx, provider, rules, dispatcher, cfg.Assets, lg)
	sched.Metrics = rec
	sched.AssetDelay = cfg.AssetDelay
	sched.FetchTimeout = cfg.DataSource.FetchTimeout
	sched.Summary = cfg.Notify.Summary
	if err := sched.RegisterAll(cfg.Schedule.Cron); err != nil {
		log.Fatalf("[FATAL] register cron tasks: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	// HTTP API
	var srv *api.Server
	if cfg.Server.Enabled {
		handler := api.NewSignalHandler(ctx, rules, sched, cfg.Assets, lg)
		srv = api.NewServer(handler,
			api.WithPort(cfg.Server.Port),
			api.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
			api.WithCORS(cfg.Server.CORSOrigins),
			api.WithMetrics(reg, rec),
			api.WithLogger(lg),
		)
		if err := srv.Start(); err != nil {
			log.Fatalf("[FATAL] start http server: %v", err)
		}
	}

	// Start Telegram polling
	if tn != nil && cfg.Notify.Telegram.Polling {
		go tn.StartPolling(ctx, sched.HandleCommand)
		lg.Info("telegram polling started")
	}

	// Optional: run immediately on start
	if cfg.Schedule.RunOnStart {
		lg.Info("run on start enabled, evaluating now")
		go func() {
			if _, err := sched.RunOnce(ctx); err != nil {
				lg.Warn("startup run did not complete", logger.Error(err))
			}
		}()
	}

	lg.Info("CryptoSentinel is running", logger.String("cron", cfg.Schedule.Cron))

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	lg.Info("shutdown signal received, stopping")
	cancel()
	if srv != nil {
		if err := srv.Stop(context.Background()); err != nil {
			lg.Error("http server shutdown", logger.Error(err))
		}
	}
	lg.Info("CryptoSentinel stopped")
}

func newProvider(cfg *config.Config, rdb *redis.Client, rec *metrics.Recorder, lg *logger.Logger) collector.Provider {
	ds := cfg.DataSource

	var fetcher collector.Fetcher
	switch ds.Provider {
	case "twelvedata":
		return collector.NewTwelveDataSource(ds.BaseURL, ds.APIKey, ds.Quote, ds.Interval, cfg.Proxy)
	case "binance":
		fetcher = collector.NewBinanceFetcher(ds.BaseURL, ds.Quote, cfg.Proxy)
	case "coingecko":
		fetcher = collector.NewCoinGeckoFetcher(ds.BaseURL, ds.Quote, cfg.Proxy)
	case "mock":
		fetcher = &collector.MockFetcher{Price: 100}
	default:
		fetcher = collector.NewCryptoCompareFetcher(ds.BaseURL, ds.APIKey, ds.Quote, cfg.Proxy)
	}

	col := collector.NewCollector(fetcher, ds.Interval, ds.Limit, cfg.Periods, lg)
	col.Metrics = rec
	col.CacheTTL = cfg.Cache.TTL
	if rdb != nil {
		col.Cache = cache.NewRedisCache(rdb, cfg.Cache.Redis.Prefix)
	} else {
		col.Cache = cache.NewTTLCache()
	}
	return col
}

// newChannels builds every configured notification channel and returns a func closing those that hold connections.
func newChannels(cfg *config.Config, tn *notifier.TelegramNotifier, lg *logger.Logger) ([]notifier.Notifier, func()) {
	n := cfg.Notify
	var channels []notifier.Notifier
	closers := []func() error{}

	if tn != nil {
		channels = append(channels, tn)
	}
	if n.Email.Configured() {
		channels = append(channels, notifier.NewEmailNotifier(n.Email.Host, n.Email.Port, n.Email.Username, n.Email.Password, n.Email.From, n.Email.To, n.Email.SubjectPrefix))
	}
	if n.Webhook.URL != "" {
		channels = append(channels, notifier.NewWebhookNotifier(n.Webhook.URL, n.Webhook.Headers))
	}
	if len(n.Kafka.Brokers) > 0 {
		kn := notifier.NewKafkaNotifier(n.Kafka.Brokers, n.Kafka.Topic)
		channels = append(channels, kn)
		closers = append(closers, kn.Close)
	}
	if n.Log || len(channels) == 0 {
		channels = append(channels, notifier.NewLogNotifier(lg))
	}

	return channels, func() {
		for _, c := range closers {
			if err := c(); err != nil {
				lg.Warn("close notification channel", logger.Error(err))
			}
		}
	}
}
