package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"dish-compat/internal/core/rules"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 應用配置
type Config struct {
	App         AppConfig        `mapstructure:"app"`
	Server      ServerConfig     `mapstructure:"server"`
	Foodoscope  FoodoscopeConfig `mapstructure:"foodoscope"`
	Cache       CacheConfig      `mapstructure:"cache"`
	Analysis    AnalysisConfig   `mapstructure:"analysis"`
	Suggestion  SuggestionConfig `mapstructure:"suggestion"`
	Scoring     rules.Weights    `mapstructure:"scoring"`
	RateLimit   RateLimitConfig  `mapstructure:"rate_limit"`
	Request     RequestConfig    `mapstructure:"request"`
	DedupWindow time.Duration    `mapstructure:"dedup_window"`
	LogLevel    string           `mapstructure:"log_level"`
}

// AppConfig 應用程式設定
type AppConfig struct {
	Env     string `mapstructure:"env"`
	Debug   bool   `mapstructure:"debug"`
	Version string `mapstructure:"version"`
	Name    string `mapstructure:"name"`
}

// ServerConfig 服務器配置
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// FoodoscopeConfig RecipeDB / FlavorDB 設定
type FoodoscopeConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
}

// CacheConfig 快取設定
type CacheConfig struct {
	Search SearchCacheConfig `mapstructure:"search"`
	Flavor FlavorCacheConfig `mapstructure:"flavor"`
}

// SearchCacheConfig 搜尋快取（只在記憶體）
type SearchCacheConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	MaxSize         int           `mapstructure:"max_size"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// FlavorCacheConfig 風味快取與持久化後端
type FlavorCacheConfig struct {
	TTL           time.Duration `mapstructure:"ttl"`
	MaxSize       int           `mapstructure:"max_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	Store         string        `mapstructure:"store"` // file | sqlite | redis | none
	FilePath      string        `mapstructure:"file_path"`
	SQLitePath    string        `mapstructure:"sqlite_path"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	RedisKey      string        `mapstructure:"redis_key"`
}

// AnalysisConfig 分析流程設定
type AnalysisConfig struct {
	MaxIngredients int           `mapstructure:"max_ingredients"`
	FanOut         int           `mapstructure:"fan_out"`
	Timeout        time.Duration `mapstructure:"timeout"`
	Alternatives   int           `mapstructure:"alternatives"`
}

// SuggestionConfig 建議索引設定
type SuggestionConfig struct {
	MaxEntries   int `mapstructure:"max_entries"`
	DefaultLimit int `mapstructure:"default_limit"`
	MaxLimit     int `mapstructure:"max_limit"`
	BootstrapMax int `mapstructure:"bootstrap_max"`
}

// RateLimitConfig 速率限制配置
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// RequestConfig 請求限制
type RequestConfig struct {
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

var storeKinds = map[string]bool{"": true, "file": true, "sqlite": true, "redis": true, "none": true, "memory": true}

// LoadConfig 載入設定：預設值 < .env < 環境變數
func LoadConfig() (*Config, error) {
	// .env 可有可無
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 綁定常用的無前綴環境變量
	bindings := map[string]string{
		"foodoscope.api_key":          "FOODOSCOPE_API_KEY",
		"foodoscope.base_url":         "FOODOSCOPE_BASE_URL",
		"cache.flavor.store":          "FLAVOR_CACHE_STORE",
		"cache.flavor.redis_addr":     "REDIS_ADDR",
		"cache.flavor.redis_password": "REDIS_PASSWORD",
		"rate_limit.enabled":          "RATE_LIMIT_ENABLED",
		"rate_limit.requests":         "RATE_LIMIT_REQUESTS",
		"rate_limit.window":           "RATE_LIMIT_WINDOW",
		"dedup_window":                "DEDUP_WINDOW",
		"log_level":                   "LOG_LEVEL",
		"server.port":                 "PORT",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, "APP_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.Scoring = config.Scoring.WithDefaults()

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// logger 尚未初始化，改用 fmt.Println
	fmt.Println("Loading configuration",
		"foodoscope_api_key:", maskAPIKey(config.Foodoscope.APIKey),
		"flavor_store:", config.Cache.Flavor.Store,
	)
	return &config, nil
}

// maskAPIKey 遮罩 API Key，只顯示前後各 4 個字符
func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// setDefaults 設定預設值
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.debug", true)
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.name", "dish-compat")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")

	v.SetDefault("foodoscope.base_url", "https://api.foodoscope.com")
	v.SetDefault("foodoscope.api_key", "")
	v.SetDefault("foodoscope.timeout", "8s")
	v.SetDefault("foodoscope.requests_per_second", 10)
	v.SetDefault("foodoscope.burst", 5)

	v.SetDefault("cache.search.ttl", "10m")
	v.SetDefault("cache.search.max_size", 1000)
	v.SetDefault("cache.search.cleanup_interval", "5m")

	v.SetDefault("cache.flavor.ttl", "168h")
	v.SetDefault("cache.flavor.max_size", 20000)
	v.SetDefault("cache.flavor.flush_interval", "5m")
	v.SetDefault("cache.flavor.store", "file")
	v.SetDefault("cache.flavor.file_path", "cache/flavors.json")
	v.SetDefault("cache.flavor.sqlite_path", "cache/flavors.db")
	v.SetDefault("cache.flavor.redis_addr", "localhost:6379")
	v.SetDefault("cache.flavor.redis_password", "")
	v.SetDefault("cache.flavor.redis_db", 0)
	v.SetDefault("cache.flavor.redis_key", "dish-compat:flavors")

	v.SetDefault("analysis.max_ingredients", 25)
	v.SetDefault("analysis.fan_out", 8)
	v.SetDefault("analysis.timeout", "15s")
	v.SetDefault("analysis.alternatives", 3)

	v.SetDefault("suggestion.max_entries", 5000)
	v.SetDefault("suggestion.default_limit", 8)
	v.SetDefault("suggestion.max_limit", 20)
	v.SetDefault("suggestion.bootstrap_max", 1000)

	d := rules.DefaultWeights()
	v.SetDefault("scoring.intolerance_penalty", d.IntolerancePenalty)
	v.SetDefault("scoring.fermented_penalty", d.FermentedPenalty)
	v.SetDefault("scoring.spice_low_penalty", d.SpiceLowPenalty)
	v.SetDefault("scoring.spice_medium_penalty", d.SpiceMediumPenalty)
	v.SetDefault("scoring.neutral_score", d.NeutralScore)
	v.SetDefault("scoring.taste_max_distance", d.TasteMaxDistance)
	v.SetDefault("scoring.taste_scaling", d.TasteScaling)
	v.SetDefault("scoring.taste_default_axis", d.TasteDefaultAxis)
	v.SetDefault("scoring.match_note_max_diff", d.MatchNoteMaxDiff)
	v.SetDefault("scoring.match_note_min_dish", d.MatchNoteMinDish)
	v.SetDefault("scoring.mismatch_note_min_diff", d.MismatchNoteMinDiff)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests", 100)
	v.SetDefault("rate_limit.window", "1m")

	v.SetDefault("request.max_body_bytes", 1<<20)
	v.SetDefault("request.timeout", "30s")

	v.SetDefault("dedup_window", "1s")
	v.SetDefault("log_level", "info")
}

// validateConfig 驗證設定
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", config.Server.Port)
	}

	flavor := config.Cache.Flavor
	if !storeKinds[strings.ToLower(flavor.Store)] {
		return fmt.Errorf("unknown flavor cache store %q", flavor.Store)
	}
	if flavor.TTL <= 0 || config.Cache.Search.TTL <= 0 {
		return fmt.Errorf("invalid cache ttl")
	}
	if flavor.MaxSize <= 0 || config.Cache.Search.MaxSize <= 0 {
		return fmt.Errorf("invalid cache max size")
	}
	if flavor.FlushInterval <= 0 {
		return fmt.Errorf("invalid flavor cache flush interval")
	}

	if config.Analysis.MaxIngredients <= 0 || config.Analysis.FanOut <= 0 {
		return fmt.Errorf("invalid analysis fan-out settings")
	}
	if config.Suggestion.MaxEntries <= 0 {
		return fmt.Errorf("invalid suggestion max entries")
	}
	if config.Suggestion.MaxLimit < config.Suggestion.DefaultLimit {
		return fmt.Errorf("suggestion max_limit must be >= default_limit")
	}

	if config.RateLimit.Enabled && (config.RateLimit.Requests <= 0 || config.RateLimit.Window <= 0) {
		return fmt.Errorf("invalid rate limit settings")
	}
	if config.Request.MaxBodyBytes <= 0 {
		return fmt.Errorf("invalid request body limit")
	}
	return nil
}
