package config

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/jinford/srt-generator/internal/module/transcription/domain"
)

const (
	StorageDriverS3     = "s3"
	StorageDriverMemory = "memory"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// RunPod サーバーレスエンドポイント設定
	RunPod RunPodConfig

	// オブジェクトストレージ設定
	Storage StorageConfig

	// 起動時に復元するジョブ数の上限
	LibraryScanLimit int

	// 新規セッションで共有するライブラリ復元結果の有効期間
	LibraryCacheTTL time.Duration

	// ポーリング設定
	Poll PollConfig

	// HTTPサーバー設定
	HTTP HTTPConfig

	// ログ設定
	Log LogConfig
}

// RunPodConfig は計算サービス設定
type RunPodConfig struct {
	APIKey        string
	EndpointID    string
	BaseURL       string
	SubmitTimeout time.Duration
	StatusTimeout time.Duration
}

// StorageConfig は S3 互換ストレージ設定
type StorageConfig struct {
	Driver     string // "s3" or "memory"
	Region     string
	Bucket     string
	AccessKey  string
	SecretKey  string
	Endpoint   string
	RootPrefix string
	Timeout    time.Duration
}

// PollConfig はステータス確認の間隔と待機上限
type PollConfig struct {
	Interval time.Duration
	MaxWait  time.Duration
}

// HTTPConfig はHTTPサーバー設定
type HTTPConfig struct {
	Port         int
	MaxUploadMB  int
	SessionTTL   time.Duration
	AllowOrigins []string
}

// LogConfig はログ設定
type LogConfig struct {
	Level  string
	Format string
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

	region := getEnv("RUNPOD_S3_REGION", "")
	cfg := &Config{
		RunPod: RunPodConfig{
			APIKey:        getEnv("RUNPOD_API_KEY", ""),
			EndpointID:    getEnv("RUNPOD_ENDPOINT_ID", ""),
			BaseURL:       getEnv("RUNPOD_BASE_URL", "https://api.runpod.ai/v2"),
			SubmitTimeout: getEnvAsSeconds("RUNPOD_SUBMIT_TIMEOUT_SECONDS", 60),
			StatusTimeout: getEnvAsSeconds("RUNPOD_STATUS_TIMEOUT_SECONDS", 30),
		},
		Storage: StorageConfig{
			Driver:     strings.ToLower(getEnv("STORAGE_DRIVER", StorageDriverS3)),
			Region:     region,
			Bucket:     getEnv("RUNPOD_S3_BUCKET", ""),
			AccessKey:  getEnv("RUNPOD_S3_ACCESS_KEY", ""),
			SecretKey:  getEnv("RUNPOD_S3_SECRET_KEY", ""),
			Endpoint:   getEnv("RUNPOD_S3_ENDPOINT", defaultEndpoint(region)),
			RootPrefix: getEnv("STORAGE_ROOT_PREFIX", domain.DefaultRootPrefix),
			Timeout:    getEnvAsSeconds("STORAGE_TIMEOUT_SECONDS", 60),
		},
		LibraryScanLimit: getEnvAsInt("LIBRARY_SCAN_LIMIT", 1000),
		LibraryCacheTTL:  getEnvAsSeconds("LIBRARY_CACHE_SECONDS", 30),
		Poll: PollConfig{
			Interval: getEnvAsSeconds("POLL_INTERVAL_SECONDS", 2),
			MaxWait:  getEnvAsSeconds("POLL_MAX_WAIT_SECONDS", 1200),
		},
		HTTP: HTTPConfig{
			Port:         getEnvAsInt("HTTP_PORT", 8080),
			MaxUploadMB:  getEnvAsInt("MAX_UPLOAD_MB", 200),
			SessionTTL:   time.Duration(getEnvAsInt("SESSION_TTL_MINUTES", 720)) * time.Minute,
			AllowOrigins: getEnvAsList("HTTP_ALLOW_ORIGINS", nil),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

// Validate は起動に必須の設定が揃っているかを検証します
func (c *Config) Validate() error {
	var missing []string
	if c.RunPod.APIKey == "" {
		missing = append(missing, "RUNPOD_API_KEY")
	}
	if c.RunPod.EndpointID == "" {
		missing = append(missing, "RUNPOD_ENDPOINT_ID")
	}

	switch c.Storage.Driver {
	case StorageDriverMemory:
	case StorageDriverS3:
		if c.Storage.Bucket == "" {
			missing = append(missing, "RUNPOD_S3_BUCKET")
		}
		if c.Storage.AccessKey == "" {
			missing = append(missing, "RUNPOD_S3_ACCESS_KEY")
		}
		if c.Storage.SecretKey == "" {
			missing = append(missing, "RUNPOD_S3_SECRET_KEY")
		}
		if c.Storage.Endpoint == "" {
			missing = append(missing, "RUNPOD_S3_REGION or RUNPOD_S3_ENDPOINT")
		}
	default:
		return fmt.Errorf("%w: unknown STORAGE_DRIVER %q", domain.ErrConfiguration, c.Storage.Driver)
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", domain.ErrConfiguration, strings.Join(missing, ", "))
	}
	return nil
}

// SlogLevel はログレベル文字列を slog.Level に変換します。不明な値は Info です。
func (c LogConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// CheckStorageEndpoint はストレージエンドポイントのホスト名が名前解決できるかを確認します
func (c *Config) CheckStorageEndpoint(ctx context.Context, resolver *net.Resolver) error {
	if c.Storage.Driver != StorageDriverS3 {
		return nil
	}
	u, err := url.Parse(c.Storage.Endpoint)
	if err != nil || u.Hostname() == "" {
		return fmt.Errorf("%w: invalid storage endpoint %q", domain.ErrConfiguration, c.Storage.Endpoint)
	}
	if resolver == nil {
		resolver = net.DefaultResolver
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := resolver.LookupHost(ctx, u.Hostname()); err != nil {
		return fmt.Errorf("%w: cannot resolve storage endpoint %s: %w", domain.ErrConnectivity, u.Hostname(), err)
	}
	return nil
}

func defaultEndpoint(region string) string {
	if region == "" {
		return ""
	}
	return fmt.Sprintf("https://s3api-%s.runpod.io", region)
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

// getEnvAsSeconds は環境変数を秒数（小数可）として取得します
func getEnvAsSeconds(key string, defaultSeconds float64) time.Duration {
	secs := defaultSeconds
	if valueStr := os.Getenv(key); valueStr != "" {
		if value, err := strconv.ParseFloat(valueStr, 64); err == nil && value > 0 {
			secs = value
		}
	}
	return time.Duration(secs * float64(time.Second))
}

// getEnvAsList はカンマ区切りの環境変数を取得します
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var values []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}
