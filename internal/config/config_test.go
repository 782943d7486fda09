package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"CryptoSentinel/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, []string{"BTC", "SOL", "XRP", "ADA"}, cfg.Assets)
	assert.Equal(t, 1500*time.Millisecond, cfg.AssetDelay)
	assert.Equal(t, "0 0 */12 * * *", cfg.Schedule.Cron)
	assert.Equal(t, "cryptocompare", cfg.DataSource.Provider)
	assert.Equal(t, model.IntervalHour, cfg.DataSource.Interval)
	assert.Equal(t, 200, cfg.DataSource.Limit)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.True(t, cfg.Notify.Enabled)
	assert.Equal(t, 4*time.Hour, cfg.Notify.Cooldown)
	assert.Equal(t, "[Crypto Alert]", cfg.Notify.Email.SubjectPrefix)
	assert.Equal(t, 14, cfg.Periods.RSI)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "cryptosentinel", cfg.Cache.Redis.Prefix)
	assert.Equal(t, model.DefaultRuleConfig(), cfg.Rules)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_ExampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "config.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, model.DefaultRuleConfig(), cfg.Rules)
	assert.Equal(t, 1500*time.Millisecond, cfg.AssetDelay)
}

func TestLoad_YAMLOverridesAndMergesRules(t *testing.T) {
	path := writeConfig(t, `
assets: [ETH]
asset_delay: 2s
data_source:
  provider: binance
  quote: USDT
  interval: 1d
notify:
  enabled: false
  email:
    host: smtp.example.com
    to: [me@example.com]
rules:
  buy_rules:
    rsi:
      enabled: true
      threshold: 25
  sell_rules:
    adx:
      enabled: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, []string{"ETH"}, cfg.Assets)
	assert.Equal(t, 2*time.Second, cfg.AssetDelay)
	assert.Equal(t, "binance", cfg.DataSource.Provider)
	assert.Equal(t, model.IntervalDay, cfg.DataSource.Interval)
	assert.False(t, cfg.Notify.Enabled)
	assert.True(t, cfg.Notify.Email.Configured())
	assert.Equal(t, 587, cfg.Notify.Email.Port)

	assert.Equal(t, 25.0, *cfg.Rules.BuyRules.RSI.Threshold)
	assert.True(t, cfg.Rules.BuyRules.CCI.Enabled, "untouched rules keep defaults")
	assert.True(t, cfg.Rules.SellRules.ADX.Enabled)
	assert.Equal(t, 20.0, *cfg.Rules.SellRules.ADX.Threshold)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ENABLED_COINS", "BTC, ETH ,")
	t.Setenv("ENABLE_NOTIFICATIONS", "false")
	t.Setenv("ALERT_EMAIL", "a@example.com,b@example.com")
	t.Setenv("EMAIL_SUBJECT_PREFIX", "[Signals]")
	t.Setenv("TELEGRAM_BOT_TOKEN", "tok")
	t.Setenv("TELEGRAM_CHAT_ID", "42")
	t.Setenv("PORT", "8080")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, []string{"BTC", "ETH"}, cfg.Assets)
	assert.False(t, cfg.Notify.Enabled)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.Notify.Email.To)
	assert.Equal(t, "[Signals]", cfg.Notify.Email.SubjectPrefix)
	assert.True(t, cfg.Notify.Telegram.Configured())
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoad_LegacyRuleEnv(t *testing.T) {
	t.Setenv("RSI_BUY_THRESHOLD", "35")
	t.Setenv("USE_MACD", "false")
	t.Setenv("USE_ADX", "yes")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 35.0, *cfg.Rules.BuyRules.RSI.Threshold)
	assert.Equal(t, 70.0, *cfg.Rules.SellRules.RSI.Threshold)
	assert.False(t, cfg.Rules.BuyRules.MACD.Enabled)
	assert.False(t, cfg.Rules.SellRules.MACD.Enabled)
	assert.True(t, cfg.Rules.BuyRules.ADX.Enabled)
	assert.False(t, cfg.Rules.SellRules.ADX.Enabled)
}

func TestLoad_InvalidEnvNumber(t *testing.T) {
	t.Setenv("CCI_BUY_THRESHOLD", "lots")
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "CCI_BUY_THRESHOLD")
}

func TestLoad_BadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "assets: [unclosed"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad provider", func(c *Config) { c.DataSource.Provider = "yahoo" }, "Provider"},
		{"no assets", func(c *Config) { c.Assets = nil }, "Assets"},
		{"bad cron", func(c *Config) { c.Schedule.Cron = "every day" }, "schedule.cron"},
		{"short window", func(c *Config) { c.DataSource.Limit = 20 }, "data_source.limit"},
		{"bad recipient", func(c *Config) { c.Notify.Email.To = []string{"nobody"} }, "To"},
		{"twelvedata key", func(c *Config) { c.DataSource.Provider = "twelvedata" }, "api_key"},
		{"bad interval", func(c *Config) { c.DataSource.Interval = "4h" }, "Interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestDecodeRuleConfig(t *testing.T) {
	t.Run("null and empty", func(t *testing.T) {
		for _, raw := range []string{"", " null "} {
			cfg, err := DecodeRuleConfig([]byte(raw))
			assert.NoError(t, err)
			assert.Nil(t, cfg)
		}
	})

	t.Run("canonical", func(t *testing.T) {
		cfg, err := DecodeRuleConfig([]byte(`{"buyRules":{"rsi":{"enabled":true,"threshold":40}}}`))
		require.NoError(t, err)
		assert.True(t, cfg.BuyRules.RSI.Enabled)
		assert.Equal(t, 40.0, *cfg.BuyRules.RSI.Threshold)
		assert.Equal(t, model.RuleSet{}, cfg.SellRules)
	})

	t.Run("flat", func(t *testing.T) {
		cfg, err := DecodeRuleConfig([]byte(`{"rsiBuyThreshold":25,"cciSellThreshold":null,"useBbands":false}`))
		require.NoError(t, err)
		assert.Equal(t, 25.0, *cfg.BuyRules.RSI.Threshold)
		assert.Equal(t, 70.0, *cfg.SellRules.RSI.Threshold)
		assert.Nil(t, cfg.SellRules.CCI.Threshold)
		assert.True(t, cfg.SellRules.CCI.Enabled)
		assert.False(t, cfg.BuyRules.Bollinger.Enabled)
		assert.True(t, cfg.BuyRules.Stochastic.Enabled)
	})

	t.Run("grouped", func(t *testing.T) {
		cfg, err := DecodeRuleConfig([]byte(`{
			"buyRules": {"useRsi": true, "rsiOversold": 30, "useBbands": true, "useAdx": true, "adxThreshold": 25, "useStoch": true, "stochThreshold": 15},
			"sellRules": {"useRsi": true, "rsiOverbought": 75, "useCci": true, "useStoch": true, "stochOverbought": 85}
		}`))
		require.NoError(t, err)

		assert.True(t, cfg.BuyRules.RSI.Enabled)
		assert.Equal(t, 30.0, *cfg.BuyRules.RSI.Threshold)
		assert.True(t, cfg.BuyRules.Bollinger.Enabled)
		assert.Equal(t, 25.0, *cfg.BuyRules.ADX.Threshold)
		assert.Equal(t, 15.0, *cfg.BuyRules.Stochastic.Threshold)
		assert.False(t, cfg.BuyRules.MACD.Enabled)

		assert.Equal(t, 75.0, *cfg.SellRules.RSI.Threshold)
		assert.True(t, cfg.SellRules.CCI.Enabled)
		assert.Nil(t, cfg.SellRules.CCI.Threshold, "absent thresholds are not defaulted")
		assert.Equal(t, 85.0, *cfg.SellRules.Stochastic.Threshold)
		assert.False(t, cfg.SellRules.ADX.Enabled)
	})

	t.Run("grouped with empty side", func(t *testing.T) {
		cfg, err := DecodeRuleConfig([]byte(`{"buyRules":{"useRsi":true,"rsiOversold":30,"useBbands":true},"sellRules":{}}`))
		require.NoError(t, err)
		assert.True(t, cfg.BuyRules.RSI.Enabled)
		assert.Equal(t, 30.0, *cfg.BuyRules.RSI.Threshold)
		assert.Equal(t, model.RuleSet{}, cfg.SellRules)
	})

	t.Run("unknown fields rejected", func(t *testing.T) {
		for _, raw := range []string{
			`{"buyRules":{"rsi":{"enabled":true,"limit":30}}}`,
			`{"buyRules":{"useRsi":true,"rsiLow":30}}`,
			`{"buyRules":{"rsi":{"enabled":true}},"extra":1}`,
			`{"rsiBuyThreshold":25,"rsiTypo":1}`,
		} {
			_, err := DecodeRuleConfig([]byte(raw))
			assert.Error(t, err, raw)
		}
	})

	t.Run("empty object", func(t *testing.T) {
		cfg, err := DecodeRuleConfig([]byte(`{}`))
		require.NoError(t, err)
		assert.Equal(t, &model.RuleConfig{}, cfg)
	})

	t.Run("unknown shape", func(t *testing.T) {
		_, err := DecodeRuleConfig([]byte(`{"foo":1}`))
		assert.ErrorIs(t, err, ErrUnknownRuleShape)
	})

	t.Run("not an object", func(t *testing.T) {
		_, err := DecodeRuleConfig([]byte(`[1,2]`))
		assert.Error(t, err)
	})

	t.Run("wrong types", func(t *testing.T) {
		_, err := DecodeRuleConfig([]byte(`{"buyRules":{"rsi":{"threshold":"low"}}}`))
		assert.Error(t, err)
	})
}

func TestLegacyDefaultsMatchCanonical(t *testing.T) {
	assert.Equal(t, model.DefaultRuleConfig(), DefaultLegacyRuleConfig().RuleConfig())
	assert.Nil(t, (*LegacyRuleConfig)(nil).RuleConfig())
}

func TestRuleStore(t *testing.T) {
	s := NewRuleStore(model.DefaultRuleConfig())

	got := s.Get()
	*got.BuyRules.RSI.Threshold = 1
	assert.Equal(t, 30.0, *s.Get().BuyRules.RSI.Threshold)

	next := &model.RuleConfig{}
	s.Set(next)
	next.BuyRules.RSI.Enabled = true
	assert.False(t, s.Get().BuyRules.RSI.Enabled)

	s.Set(nil)
	assert.Nil(t, s.Get())
}
