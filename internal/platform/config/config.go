package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// Database設定
	Database DatabaseConfig

	// ブラウザ自動化バックエンド設定
	Browserless BrowserlessConfig

	// OpenAI設定（画面からの情報抽出用）
	OpenAI OpenAIConfig

	// スクレイピング設定
	Scraper ScraperConfig

	// HTTPサーバ設定
	Server ServerConfig

	// ログ設定
	Log LogConfig
}

// DatabaseConfig はデータベース接続設定
type DatabaseConfig struct {
	Host     string `validate:"required"`
	Port     int    `validate:"gt=0,lte=65535"`
	User     string `validate:"required"`
	Password string
	DBName   string `validate:"required"`
	SSLMode  string `validate:"oneof=disable allow prefer require verify-ca verify-full"`
}

// BrowserlessConfig はブラウザ自動化バックエンドの接続設定
type BrowserlessConfig struct {
	Host              string `validate:"required,url"`
	Token             string
	RequestTimeout    time.Duration `validate:"gt=0"`
	// ScriptTimeout はページ遷移を伴うスクリプト実行にバックエンド側で許す時間
	ScriptTimeout     time.Duration `validate:"gt=0"`
	MaxAttempts       int           `validate:"gte=1"`
	BackoffSeconds    float64       `validate:"gte=0"`
	MaxConcurrency    int           `validate:"gte=1"`
	RequestsPerSecond float64       `validate:"gte=0"`
}

// Backoff はバックオフ基底時間を返します
func (c BrowserlessConfig) Backoff() time.Duration {
	return time.Duration(c.BackoffSeconds * float64(time.Second))
}

// OpenAIConfig はOpenAI API設定
type OpenAIConfig struct {
	APIKey     string
	Model      string `validate:"required"`
	Timeout    time.Duration
	MaxRetries int `validate:"gte=0"`
}

// ScraperConfig はスクレイピングの挙動に関する設定
type ScraperConfig struct {
	MaxPosts int `validate:"gte=1"`

	// プロフィール取得前の待機時間（秒）
	ProfileDelayMin float64 `validate:"gte=0"`
	ProfileDelayMax float64 `validate:"gtefield=ProfileDelayMin"`

	// 投稿ごとの待機時間（秒）
	PostDelayMin float64 `validate:"gte=0"`
	PostDelayMax float64 `validate:"gtefield=PostDelayMin"`

	SessionStatePath string
	UserAgents       []string

	RecentLikes RecentLikesConfig

	// 定期実行
	ScheduleCron     string
	ScheduleProfiles []string
}

// RecentLikesConfig は直近いいね取得フローのデフォルト値
type RecentLikesConfig struct {
	MaxPosts        int `validate:"gte=1"`
	WindowHours     int `validate:"gte=1"`
	MaxUsersPerPost int `validate:"gte=1"`
	Enrich          bool
}

// ServerConfig はHTTPサーバ設定
type ServerConfig struct {
	Port        int `validate:"gt=0,lte=65535"`
	APIKeys     []string
	AuthHeader  string `validate:"required"`
	PublicPaths []string
}

// LogConfig はログ出力の設定
type LogConfig struct {
	Level  string `validate:"oneof=debug info warn error"`
	Format string `validate:"oneof=json text"`
}

// Load は環境変数または.envファイルから設定を読み込みます
func Load(envFilePath string) (*Config, error) {
	// .envファイルが存在する場合は読み込む
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "scraper"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "profile_scraper"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Browserless: BrowserlessConfig{
			Host:              getEnv("BROWSERLESS_HOST", "http://localhost:3000"),
			Token:             getEnv("BROWSERLESS_TOKEN", ""),
			RequestTimeout:    time.Duration(getEnvAsInt("REQUEST_TIMEOUT", 60)) * time.Second,
			ScriptTimeout:     time.Duration(getEnvAsInt("SCRIPT_TIMEOUT", 120)) * time.Second,
			MaxAttempts:       getEnvAsInt("BROWSERLESS_REQUEST_RETRIES", 3),
			BackoffSeconds:    getEnvAsFloat("BROWSERLESS_RETRY_BACKOFF_SECONDS", 2),
			MaxConcurrency:    getEnvAsInt("BROWSERLESS_MAX_CONCURRENCY", 2),
			RequestsPerSecond: getEnvAsFloat("BROWSERLESS_REQUESTS_PER_SECOND", 0),
		},
		OpenAI: OpenAIConfig{
			APIKey:     getEnv("OPENAI_API_KEY", ""),
			Model:      getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			Timeout:    time.Duration(getEnvAsInt("OPENAI_TIMEOUT", 60)) * time.Second,
			MaxRetries: getEnvAsInt("OPENAI_MAX_RETRIES", 3),
		},
		Scraper: ScraperConfig{
			MaxPosts:         getEnvAsInt("SCRAPER_MAX_POSTS", 5),
			ProfileDelayMin:  getEnvAsFloat("SCRAPER_PROFILE_DELAY_MIN", 1),
			ProfileDelayMax:  getEnvAsFloat("SCRAPER_PROFILE_DELAY_MAX", 5),
			PostDelayMin:     getEnvAsFloat("SCRAPER_POST_DELAY_MIN", 2),
			PostDelayMax:     getEnvAsFloat("SCRAPER_POST_DELAY_MAX", 5),
			SessionStatePath: getEnv("INSTAGRAM_STORAGE_STATE_PATH", ""),
			UserAgents: getEnvAsList("SCRAPER_USER_AGENTS", []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36",
				"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36",
			}),
			RecentLikes: RecentLikesConfig{
				MaxPosts:        getEnvAsInt("RECENT_LIKES_MAX_POSTS", 3),
				WindowHours:     getEnvAsInt("RECENT_LIKES_WINDOW_HOURS", 24),
				MaxUsersPerPost: getEnvAsInt("RECENT_LIKES_MAX_USERS_PER_POST", 30),
				Enrich:          getEnvAsBool("RECENT_LIKES_ENRICH", true),
			},
			ScheduleCron:     getEnv("SCRAPER_SCHEDULE_CRON", "0 */6 * * *"),
			ScheduleProfiles: getEnvAsList("SCRAPER_SCHEDULE_PROFILES", nil),
		},
		Server: ServerConfig{
			Port:        getEnvAsInt("SERVER_PORT", 8080),
			APIKeys:     getEnvAsList("API_KEYS", getEnvAsList("API_KEY", nil)),
			AuthHeader:  getEnv("API_AUTH_HEADER_NAME", "X-API-Key"),
			PublicPaths: getEnvAsList("API_AUTH_PUBLIC_PATHS", []string{"/api/health"}),
		},
		Log: LogConfig{
			Level:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "json")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate は設定値を検証します
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt は環境変数を整数として取得します
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat は環境変数を浮動小数点数として取得します
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool は環境変数を真偽値として取得します
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList はカンマ区切りの環境変数をリストとして取得します
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var values []string
	for _, part := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
