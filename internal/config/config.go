// internal/config/config.go
package config

import (
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Cache     CacheConfig
	Forecast  ForecastConfig
	Optimizer OptimizerConfig
	Learning  LearningConfig
	Signals   SignalsConfig
	Insights  InsightsConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
	// RequestDeadline bounds a whole forecast/recommendation request;
	// external fetches that miss it degrade to missing signals.
	RequestDeadline time.Duration
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	// DemoSeed loads the synthetic catalog into the memory store when the
	// database is disabled.
	DemoSeed bool
}

type CacheConfig struct {
	Enabled            bool
	RedisURL           string
	RedisHost          string
	RedisPort          string
	RedisPassword      string
	RedisDB            int
	ForecastTTLSeconds int
}

type ForecastConfig struct {
	LookbackDays     int
	MinHistoryPoints int
	SmoothingAlpha   float64
	TrendWindowDays  int
	SeasonalFloor    float64
	// Confidence blend weights: input completeness, historical accuracy,
	// weight stability.
	ConfCompleteness float64
	ConfAccuracy     float64
	ConfStability    float64
}

type OptimizerConfig struct {
	// SigmaScale converts (1 - confidence) into an assumed daily forecast
	// standard deviation, as a fraction of mean daily demand.
	SigmaScale  float64
	SigmaFloor  float64
	BufferRatio float64 // cycle-stock buffer, in forecast-horizons of demand
}

type LearningConfig struct {
	Interval     time.Duration
	LearningRate float64
	MinSamples   int
	WindowSize   int
}

type SignalsConfig struct {
	EnabledSources []string
	WeatherAPIKey  string
	WeatherBaseURL string
	FetchTimeout   time.Duration
}

type InsightsConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	RequestTimeout time.Duration
	HistoryWindow  int
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		viper.SetDefault("SERVER_PORT", "8080")
		viper.SetDefault("SERVER_MODE", "debug")
		viper.SetDefault("SERVER_READ_TIMEOUT", 15)
		viper.SetDefault("SERVER_WRITE_TIMEOUT", 15)
		viper.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
		viper.SetDefault("SERVER_REQUEST_DEADLINE_SECONDS", 10)

		viper.SetDefault("DB_ENABLED", false)
		viper.SetDefault("DB_HOST", "localhost")
		viper.SetDefault("DB_PORT", "5432")
		viper.SetDefault("DB_USER", "postgres")
		viper.SetDefault("DB_PASSWORD", "postgres")
		viper.SetDefault("DB_NAME", "inventory_agent")
		viper.SetDefault("DB_SSLMODE", "disable")
		viper.SetDefault("DEMO_SEED", false)

		viper.SetDefault("CACHE_ENABLED", false)
		viper.SetDefault("REDIS_URL", "")
		viper.SetDefault("REDIS_HOST", "127.0.0.1")
		viper.SetDefault("REDIS_PORT", "6379")
		viper.SetDefault("REDIS_PASSWORD", "")
		viper.SetDefault("REDIS_DB", 0)
		viper.SetDefault("CACHE_FORECAST_TTL_SECONDS", 60)

		viper.SetDefault("FORECAST_LOOKBACK_DAYS", 90)
		viper.SetDefault("FORECAST_MIN_HISTORY_POINTS", 14)
		viper.SetDefault("FORECAST_SMOOTHING_ALPHA", 0.3)
		viper.SetDefault("FORECAST_TREND_WINDOW_DAYS", 28)
		viper.SetDefault("FORECAST_SEASONAL_FLOOR", 0.1)
		viper.SetDefault("FORECAST_CONF_COMPLETENESS", 0.4)
		viper.SetDefault("FORECAST_CONF_ACCURACY", 0.4)
		viper.SetDefault("FORECAST_CONF_STABILITY", 0.2)

		viper.SetDefault("OPTIMIZER_SIGMA_SCALE", 0.5)
		viper.SetDefault("OPTIMIZER_SIGMA_FLOOR", 0.5)
		viper.SetDefault("OPTIMIZER_BUFFER_RATIO", 1.0)

		viper.SetDefault("MODEL_RETRAIN_INTERVAL_HOURS", 24)
		viper.SetDefault("LEARNING_RATE", 0.05)
		viper.SetDefault("LEARNING_MIN_SAMPLES", 5)
		viper.SetDefault("LEARNING_WINDOW_SIZE", 50)

		viper.SetDefault("ENABLED_DATA_SOURCES", "weather,social,economic")
		viper.SetDefault("WEATHER_API_KEY", "")
		viper.SetDefault("WEATHER_BASE_URL", "https://api.weatherapi.com/v1")
		viper.SetDefault("SIGNAL_FETCH_TIMEOUT_SECONDS", 3)

		viper.SetDefault("TEXTGEN_API_KEY", "")
		viper.SetDefault("TEXTGEN_BASE_URL", "")
		viper.SetDefault("TEXTGEN_MODEL", "gemini-1.5-flash")
		viper.SetDefault("TEXTGEN_TIMEOUT_SECONDS", 5)
		viper.SetDefault("INSIGHTS_HISTORY_WINDOW", 100)

		// Read from environment variables
		viper.AutomaticEnv()

		instance = &Config{
			Server: ServerConfig{
				Port:            viper.GetString("SERVER_PORT"),
				Mode:            viper.GetString("SERVER_MODE"),
				ReadTimeout:     viper.GetInt("SERVER_READ_TIMEOUT"),
				WriteTimeout:    viper.GetInt("SERVER_WRITE_TIMEOUT"),
				AllowedOrigins:  viper.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
				RequestDeadline: time.Duration(viper.GetInt("SERVER_REQUEST_DEADLINE_SECONDS")) * time.Second,
			},
			Database: DatabaseConfig{
				Enabled:  viper.GetBool("DB_ENABLED"),
				Host:     viper.GetString("DB_HOST"),
				Port:     viper.GetString("DB_PORT"),
				User:     viper.GetString("DB_USER"),
				Password: viper.GetString("DB_PASSWORD"),
				DBName:   viper.GetString("DB_NAME"),
				SSLMode:  viper.GetString("DB_SSLMODE"),
				DemoSeed: viper.GetBool("DEMO_SEED"),
			},
			Cache: CacheConfig{
				Enabled:            viper.GetBool("CACHE_ENABLED"),
				RedisURL:           viper.GetString("REDIS_URL"),
				RedisHost:          viper.GetString("REDIS_HOST"),
				RedisPort:          viper.GetString("REDIS_PORT"),
				RedisPassword:      viper.GetString("REDIS_PASSWORD"),
				RedisDB:            viper.GetInt("REDIS_DB"),
				ForecastTTLSeconds: viper.GetInt("CACHE_FORECAST_TTL_SECONDS"),
			},
			Forecast: ForecastConfig{
				LookbackDays:     viper.GetInt("FORECAST_LOOKBACK_DAYS"),
				MinHistoryPoints: viper.GetInt("FORECAST_MIN_HISTORY_POINTS"),
				SmoothingAlpha:   viper.GetFloat64("FORECAST_SMOOTHING_ALPHA"),
				TrendWindowDays:  viper.GetInt("FORECAST_TREND_WINDOW_DAYS"),
				SeasonalFloor:    viper.GetFloat64("FORECAST_SEASONAL_FLOOR"),
				ConfCompleteness: viper.GetFloat64("FORECAST_CONF_COMPLETENESS"),
				ConfAccuracy:     viper.GetFloat64("FORECAST_CONF_ACCURACY"),
				ConfStability:    viper.GetFloat64("FORECAST_CONF_STABILITY"),
			},
			Optimizer: OptimizerConfig{
				SigmaScale:  viper.GetFloat64("OPTIMIZER_SIGMA_SCALE"),
				SigmaFloor:  viper.GetFloat64("OPTIMIZER_SIGMA_FLOOR"),
				BufferRatio: viper.GetFloat64("OPTIMIZER_BUFFER_RATIO"),
			},
			Learning: LearningConfig{
				Interval:     time.Duration(viper.GetInt("MODEL_RETRAIN_INTERVAL_HOURS")) * time.Hour,
				LearningRate: viper.GetFloat64("LEARNING_RATE"),
				MinSamples:   viper.GetInt("LEARNING_MIN_SAMPLES"),
				WindowSize:   viper.GetInt("LEARNING_WINDOW_SIZE"),
			},
			Signals: SignalsConfig{
				EnabledSources: splitSources(viper.GetString("ENABLED_DATA_SOURCES")),
				WeatherAPIKey:  viper.GetString("WEATHER_API_KEY"),
				WeatherBaseURL: viper.GetString("WEATHER_BASE_URL"),
				FetchTimeout:   time.Duration(viper.GetInt("SIGNAL_FETCH_TIMEOUT_SECONDS")) * time.Second,
			},
			Insights: InsightsConfig{
				APIKey:         viper.GetString("TEXTGEN_API_KEY"),
				BaseURL:        viper.GetString("TEXTGEN_BASE_URL"),
				Model:          viper.GetString("TEXTGEN_MODEL"),
				RequestTimeout: time.Duration(viper.GetInt("TEXTGEN_TIMEOUT_SECONDS")) * time.Second,
				HistoryWindow:  viper.GetInt("INSIGHTS_HISTORY_WINDOW"),
			},
		}
	})

	return instance
}

func splitSources(raw string) []string {
	parts := strings.Split(raw, ",")
	sources := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			sources = append(sources, strings.ToLower(trimmed))
		}
	}
	return sources
}
