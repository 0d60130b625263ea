package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/studyshare/studyshare-backend/pkg/logger"
	"gopkg.in/yaml.v3"
)

// Config is the application configuration loaded from configs/config.<env>.yaml
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	JWT           JWTConfig           `yaml:"jwt"`
	CORS          CORSConfig          `yaml:"cors"`
	Storage       StorageConfig       `yaml:"storage"`
	WS            WSConfig            `yaml:"ws"`
	Notifications NotificationsConfig `yaml:"notifications"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Log           LogConfig           `yaml:"log"`
}

type ServerConfig struct {
	Port           int           `yaml:"port"`
	Mode           string        `yaml:"mode"` // development | production
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type DatabaseConfig struct {
	Driver          string `yaml:"driver"` // mysql | postgres | sqlite
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	User            string `yaml:"user"`
	Password        string `yaml:"password"`
	DBName          string `yaml:"dbname"`
	DSN             string `yaml:"dsn"` // overrides the parts above when set
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime"` // seconds
	LogSQL          bool   `yaml:"log_sql"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type JWTConfig struct {
	Secret    string `yaml:"secret"`
	ExpiresIn int    `yaml:"expires_in"` // seconds
}

type CORSConfig struct {
	AllowOrigins string `yaml:"allow_origins"` // comma separated
}

type StorageConfig struct {
	Driver          string `yaml:"driver"` // s3 | local
	LocalDir        string `yaml:"local_dir"`
	PublicBaseURL   string `yaml:"public_base_url"`
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Bucket          string `yaml:"bucket"`
	CDNURL          string `yaml:"cdn_url"`
	BasePath        string `yaml:"base_path"`
	ForcePathStyle  bool   `yaml:"force_path_style"`
	MaxFileSizeMB   int    `yaml:"max_file_size_mb"`
}

type WSConfig struct {
	AllowedOrigins string `yaml:"allowed_origins"`
	RelayChannel   string `yaml:"relay_channel"`
}

type NotificationsConfig struct {
	ProducerAPIKeys []string `yaml:"producer_api_keys"`
}

type RateLimitConfig struct {
	VotesPerMinute    int `yaml:"votes_per_minute"`
	CommentsPerMinute int `yaml:"comments_per_minute"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads the YAML file at path (missing file is allowed), applies defaults and
// then environment overrides.
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// env-only configuration
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	applyEnv(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{Port: 8082, Mode: "development", RequestTimeout: 15 * time.Second},
		Database: DatabaseConfig{
			Driver:          "sqlite",
			MaxIdleConns:    10,
			MaxOpenConns:    50,
			ConnMaxLifetime: 300,
		},
		Redis:     RedisConfig{Host: "localhost", Port: 6379, PoolSize: 20},
		JWT:       JWTConfig{ExpiresIn: 900},
		Storage:   StorageConfig{Driver: "local", LocalDir: "uploads", PublicBaseURL: "/uploads", MaxFileSizeMB: 25},
		WS:        WSConfig{RelayChannel: "studyshare:events"},
		RateLimit: RateLimitConfig{VotesPerMinute: 60, CommentsPerMinute: 30},
		Log:       LogConfig{Level: "info"},
	}
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Mode, "SERVER_MODE")
	setInt(&cfg.Server.Port, "SERVER_PORT")
	if v := os.Getenv("SERVER_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.RequestTimeout = d
		}
	}

	setString(&cfg.Database.Driver, "DB_DRIVER")
	setString(&cfg.Database.DSN, "DB_DSN")
	setString(&cfg.Database.Host, "DB_HOST")
	setInt(&cfg.Database.Port, "DB_PORT")
	setString(&cfg.Database.User, "DB_USER")
	setString(&cfg.Database.Password, "DB_PASSWORD")
	setString(&cfg.Database.DBName, "DB_NAME")

	setBool(&cfg.Redis.Enabled, "REDIS_ENABLED")
	setString(&cfg.Redis.Host, "REDIS_HOST")
	setInt(&cfg.Redis.Port, "REDIS_PORT")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")

	setString(&cfg.JWT.Secret, "JWT_SECRET")
	setString(&cfg.CORS.AllowOrigins, "CORS_ALLOW_ORIGINS")
	setString(&cfg.WS.AllowedOrigins, "WS_ALLOWED_ORIGINS")

	setString(&cfg.Storage.Driver, "STORAGE_DRIVER")
	setString(&cfg.Storage.Bucket, "STORAGE_BUCKET")
	setString(&cfg.Storage.AccessKeyID, "STORAGE_ACCESS_KEY_ID")
	setString(&cfg.Storage.SecretAccessKey, "STORAGE_SECRET_ACCESS_KEY")

	if v := os.Getenv("NOTIFICATION_PRODUCER_API_KEYS"); v != "" {
		cfg.Notifications.ProducerAPIKeys = SplitAndTrim(v, ",")
	}
	setString(&cfg.Log.Level, "LOG_LEVEL")
}

func (c *Config) validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required (set JWT_SECRET)")
	}
	switch c.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	return nil
}

// IsDevelopment reports whether the server runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Mode == "development" || c.Server.Mode == "dev" || c.Server.Mode == "local"
}

// GetDSN returns the driver-specific connection string
func (d *DatabaseConfig) GetDSN() string {
	if d.DSN != "" {
		return d.DSN
	}
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
			d.Host, d.Port, d.User, d.Password, d.DBName)
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			d.User, d.Password, d.Host, d.Port, d.DBName)
	default:
		if d.DBName == "" {
			return "studyshare.db"
		}
		return d.DBName
	}
}

// LogResolved logs the effective configuration with secrets masked
func LogResolved(cfg *Config) {
	logger.GetLogger().Info().
		Int("port", cfg.Server.Port).
		Str("mode", cfg.Server.Mode).
		Dur("request_timeout", cfg.Server.RequestTimeout).
		Str("db_driver", cfg.Database.Driver).
		Str("db_host", cfg.Database.Host).
		Bool("redis", cfg.Redis.Enabled).
		Str("storage", cfg.Storage.Driver).
		Str("jwt_secret", mask(cfg.JWT.Secret)).
		Int("producer_keys", len(cfg.Notifications.ProducerAPIKeys)).
		Msg("config resolved")
}

func mask(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}

// SplitAndTrim splits s by sep and drops empty parts
func SplitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
