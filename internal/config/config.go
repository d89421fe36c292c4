package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config is layered: struct defaults, then the TOML file, then environment
// variables, validated once at the end.
type Config struct {
	Kalshi    KalshiConfig    `toml:"kalshi"`
	Weather   WeatherConfig   `toml:"weather"`
	Forecast  ForecastConfig  `toml:"forecast"`
	Bot       BotConfig       `toml:"bot"`
	Trading   TradingConfig   `toml:"trading"`
	Dashboard DashboardConfig `toml:"dashboard"`
	Metrics   MetricsConfig   `toml:"metrics"`
	Log       LogConfig       `toml:"log"`
}

type KalshiConfig struct {
	BaseURL              string `toml:"base_url" default:"https://api.elections.kalshi.com" validate:"url"`
	APIKeyID             string `toml:"api_key_id"`
	PrivateKeyPath       string `toml:"private_key_path" default:"kalshi_private.pem" validate:"required"`
	SeriesTicker         string `toml:"series_ticker" default:"KXHIGHMIA" validate:"required"`
	EventTicker          string `toml:"event_ticker"`
	MarketTickerOverride string `toml:"market_ticker_override"`
	TimeoutSecs          int    `toml:"timeout_secs" default:"15" validate:"gt=0"`
	RateLimitPerSecond   int    `toml:"rate_limit_per_second" default:"10" validate:"gt=0"`
	OrderbookDepth       int    `toml:"orderbook_depth" default:"10" validate:"gt=0"`
	EventMarketLimit     int    `toml:"event_market_limit" default:"200" validate:"gt=0"`
	EventOrderbookLimit  int    `toml:"event_orderbook_limit" default:"50" validate:"gt=0"`
}

func (c KalshiConfig) Timeout() time.Duration { return time.Duration(c.TimeoutSecs) * time.Second }

type WeatherConfig struct {
	StationID           string  `toml:"station_id" default:"KMIA"`
	UserAgent           string  `toml:"user_agent" default:"kalshi-weather (contact: ops@example.com)"`
	MeteosourceAPIKey   string  `toml:"meteosource_api_key"`
	MeteosourceTier     string  `toml:"meteosource_tier" default:"free" validate:"oneof=free flexi"`
	MeteosourceBaseURL  string  `toml:"meteosource_base_url"`
	WethrBaseURL        string  `toml:"wethr_base_url" default:"https://wethr.net"`
	ManualDataPath      string  `toml:"manual_data_path" default:"weather_data.json"`
	Latitude            float64 `toml:"latitude" default:"25.78805"`
	Longitude           float64 `toml:"longitude" default:"-80.31694"`
	TimeoutSecs         int     `toml:"timeout_secs" default:"10" validate:"gt=0"`
	StationCacheTTLSecs int     `toml:"station_cache_ttl_secs" default:"600" validate:"gte=0"`
	StaleAfterSecs      int     `toml:"stale_after_secs" default:"1800" validate:"gt=0"`
}

func (c WeatherConfig) Timeout() time.Duration { return time.Duration(c.TimeoutSecs) * time.Second }

func (c WeatherConfig) StationCacheTTL() time.Duration {
	return time.Duration(c.StationCacheTTLSecs) * time.Second
}

// StaleAfter bounds how long a previously merged reading stays in the
// snapshot without a refresh.
func (c WeatherConfig) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterSecs) * time.Second
}

type ForecastConfig struct {
	Enabled     bool    `toml:"enabled" default:"true"`
	BaseURL     string  `toml:"base_url" default:"https://api.open-meteo.com" validate:"url"`
	Latitude    float64 `toml:"latitude" default:"25.78805"`
	Longitude   float64 `toml:"longitude" default:"-80.31694"`
	TimeoutSecs int     `toml:"timeout_secs" default:"10" validate:"gt=0"`
	RefreshSecs int     `toml:"refresh_secs" default:"900" validate:"gt=0"`
}

func (c ForecastConfig) Timeout() time.Duration { return time.Duration(c.TimeoutSecs) * time.Second }

func (c ForecastConfig) Refresh() time.Duration { return time.Duration(c.RefreshSecs) * time.Second }

type BotConfig struct {
	IntervalSecs               int    `toml:"interval_secs" default:"60" validate:"gt=0"`
	SnapshotFile               string `toml:"snapshot_file" default:"snapshot.json" validate:"required"`
	LogFile                    string `toml:"log_file" default:"bot.log" validate:"required"`
	EventMarketsRefreshSecs    int    `toml:"event_markets_refresh_secs" default:"300" validate:"gt=0"`
	EventOrderbooksRefreshSecs int    `toml:"event_orderbooks_refresh_secs" default:"120" validate:"gt=0"`
}

func (c BotConfig) Interval() time.Duration { return time.Duration(c.IntervalSecs) * time.Second }

func (c BotConfig) EventMarketsRefresh() time.Duration {
	return time.Duration(c.EventMarketsRefreshSecs) * time.Second
}

func (c BotConfig) EventOrderbooksRefresh() time.Duration {
	return time.Duration(c.EventOrderbooksRefreshSecs) * time.Second
}

type TradingConfig struct {
	Enabled      bool `toml:"enabled" default:"false"`
	MaxOrderSize int  `toml:"max_order_size" default:"5" validate:"gt=0"`
	MaxPosition  int  `toml:"max_position" default:"20" validate:"gt=0"`

	// Heuristic tuning constants for the opportunity decision rule.
	GreaterMarginF       float64 `toml:"greater_margin_f" default:"1"`
	LessMarginF          float64 `toml:"less_margin_f" default:"1"`
	BetweenSlackF        float64 `toml:"between_slack_f" default:"0.5"`
	GreaterMaxPriceCents int     `toml:"greater_max_price_cents" default:"60" validate:"gte=1,lte=99"`
	LessMaxPriceCents    int     `toml:"less_max_price_cents" default:"70" validate:"gte=1,lte=99"`
	BetweenMaxPriceCents int     `toml:"between_max_price_cents" default:"60" validate:"gte=1,lte=99"`
}

type DashboardConfig struct {
	BindAddress          string   `toml:"bind_address" default:"0.0.0.0:8080" validate:"required"`
	CORSOrigins          []string `toml:"cors_origins" default:"[\"http://localhost:3000\"]"`
	SnapshotCacheTTLSecs int      `toml:"snapshot_cache_ttl_secs" default:"2" validate:"gte=0"`
}

func (c DashboardConfig) SnapshotCacheTTL() time.Duration {
	return time.Duration(c.SnapshotCacheTTLSecs) * time.Second
}

type MetricsConfig struct {
	Enabled     bool   `toml:"enabled" default:"false"`
	BindAddress string `toml:"bind_address" default:"0.0.0.0:9090"`
}

type LogConfig struct {
	Level string `toml:"level" default:"info" validate:"oneof=trace debug info warn error"`
}

// Load reads configuration from the given TOML file (missing file is fine;
// defaults and env cover everything) and applies env overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	if path == "" {
		path = "config/default.toml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	applyEnv(cfg)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Kalshi.BaseURL = getEnv("KALSHI_BASE_URL", cfg.Kalshi.BaseURL)
	cfg.Kalshi.APIKeyID = getEnv("KALSHI_API_KEY", cfg.Kalshi.APIKeyID)
	cfg.Kalshi.PrivateKeyPath = getEnv("KALSHI_PRIVATE_KEY", cfg.Kalshi.PrivateKeyPath)
	cfg.Kalshi.SeriesTicker = getEnv("KALSHI_SERIES_TICKER", cfg.Kalshi.SeriesTicker)
	cfg.Kalshi.EventTicker = getEnv("KALSHI_EVENT_TICKER", cfg.Kalshi.EventTicker)
	cfg.Kalshi.MarketTickerOverride = getEnv("KALSHI_MARKET_TICKER", cfg.Kalshi.MarketTickerOverride)
	cfg.Kalshi.TimeoutSecs = getEnvInt("KALSHI_TIMEOUT", cfg.Kalshi.TimeoutSecs)
	cfg.Kalshi.RateLimitPerSecond = getEnvInt("KALSHI_RATE_LIMIT", cfg.Kalshi.RateLimitPerSecond)
	cfg.Kalshi.OrderbookDepth = getEnvInt("ORDERBOOK_DEPTH", cfg.Kalshi.OrderbookDepth)
	cfg.Kalshi.EventMarketLimit = getEnvInt("EVENT_MARKET_LIMIT", cfg.Kalshi.EventMarketLimit)
	cfg.Kalshi.EventOrderbookLimit = getEnvInt("EVENT_ORDERBOOK_LIMIT", cfg.Kalshi.EventOrderbookLimit)

	cfg.Weather.StationID = getEnv("NWS_STATION_ID", cfg.Weather.StationID)
	cfg.Weather.UserAgent = getEnv("NWS_USER_AGENT", cfg.Weather.UserAgent)
	cfg.Weather.StationCacheTTLSecs = getEnvInt("NWS_CACHE_TTL", cfg.Weather.StationCacheTTLSecs)
	cfg.Weather.MeteosourceAPIKey = getEnv("METEOSOURCE_API_KEY", cfg.Weather.MeteosourceAPIKey)
	cfg.Weather.MeteosourceTier = getEnv("METEOSOURCE_TIER", cfg.Weather.MeteosourceTier)
	cfg.Weather.MeteosourceBaseURL = getEnv("METEOSOURCE_BASE_URL", cfg.Weather.MeteosourceBaseURL)
	cfg.Weather.TimeoutSecs = getEnvInt("WEATHER_TIMEOUT", cfg.Weather.TimeoutSecs)
	cfg.Weather.StaleAfterSecs = getEnvInt("WEATHER_STALE_AFTER", cfg.Weather.StaleAfterSecs)

	cfg.Forecast.Enabled = getEnvBool("OPEN_METEO_ENABLED", cfg.Forecast.Enabled)
	cfg.Forecast.Latitude = getEnvFloat("OPEN_METEO_LAT", cfg.Forecast.Latitude)
	cfg.Forecast.Longitude = getEnvFloat("OPEN_METEO_LON", cfg.Forecast.Longitude)
	cfg.Forecast.TimeoutSecs = getEnvInt("OPEN_METEO_TIMEOUT", cfg.Forecast.TimeoutSecs)
	cfg.Forecast.RefreshSecs = getEnvInt("OPEN_METEO_INTERVAL", cfg.Forecast.RefreshSecs)

	cfg.Bot.IntervalSecs = getEnvInt("BOT_INTERVAL", cfg.Bot.IntervalSecs)
	cfg.Bot.SnapshotFile = getEnv("BOT_SNAPSHOT_FILE", cfg.Bot.SnapshotFile)
	cfg.Bot.LogFile = getEnv("BOT_LOG_FILE", cfg.Bot.LogFile)
	cfg.Bot.EventMarketsRefreshSecs = getEnvInt("EVENT_MARKETS_INTERVAL", cfg.Bot.EventMarketsRefreshSecs)
	cfg.Bot.EventOrderbooksRefreshSecs = getEnvInt("EVENT_ORDERBOOK_INTERVAL", cfg.Bot.EventOrderbooksRefreshSecs)

	cfg.Trading.Enabled = getEnvBool("TRADE_ENABLED", cfg.Trading.Enabled)
	cfg.Trading.MaxOrderSize = getEnvInt("MAX_ORDER_SIZE", cfg.Trading.MaxOrderSize)
	cfg.Trading.MaxPosition = getEnvInt("MAX_POSITION", cfg.Trading.MaxPosition)

	cfg.Dashboard.BindAddress = getEnv("DASH_BIND_ADDRESS", cfg.Dashboard.BindAddress)
	cfg.Dashboard.CORSOrigins = getEnvSlice("DASH_CORS_ORIGINS", cfg.Dashboard.CORSOrigins)
	cfg.Dashboard.SnapshotCacheTTLSecs = getEnvInt("SNAPSHOT_CACHE_TTL", cfg.Dashboard.SnapshotCacheTTLSecs)

	cfg.Metrics.Enabled = getEnvBool("METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.Metrics.BindAddress = getEnv("METRICS_BIND_ADDRESS", cfg.Metrics.BindAddress)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
