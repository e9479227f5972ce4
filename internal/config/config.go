// config реализует конфигурацию forum-клиента: загрузка из YAML/ENV с предсказуемым приоритетом.
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Драйверы хостового хранилища таблиц.
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// EnvLocal — окружение разработчика с ослабленными проверками.
const EnvLocal = "local"

// Config — корневая конфигурация клиента.
// Приоритет источников:
//  1. явный путь, переданный в MustLoad/Load;
//  2. переменная окружения CONFIG_PATH;
//  3. файл ./local.yaml из рабочей директории;
//  4. переменные окружения.
type Config struct {
	Env      string        `yaml:"env" env:"ENV" env-default:"local"`
	DB       DBConfig      `yaml:"db"`
	S3       S3Config      `yaml:"s3"`
	Images   ImagesConfig  `yaml:"images"`
	Auth     AuthConfig    `yaml:"auth"`
	Refresh  RefreshConfig `yaml:"refresh"`
	Timeouts TimeoutConfig `yaml:"timeouts"`
	Metrics  MetricsConfig `yaml:"metrics"`
}

// DBConfig — подключение к хостовому хранилищу таблиц (PostgreSQL или MongoDB).
type DBConfig struct {
	Driver string `yaml:"driver" env:"DB_DRIVER" env-default:"postgres"`
	URL    string `yaml:"url" env:"DATABASE_URL" env-required:"true"`
}

// S3Config — бакет с изображениями постов (MinIO/S3-совместимое хранилище).
type S3Config struct {
	Endpoint  string `yaml:"endpoint" env:"S3_ENDPOINT" env-required:"true"`
	AccessKey string `yaml:"access_key" env:"S3_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"S3_SECRET_KEY"`
	Bucket    string `yaml:"bucket" env:"S3_BUCKET" env-default:"post-images"`
	// PublicBaseURL — префикс публичных ссылок; пусто -> <endpoint>/<bucket>.
	PublicBaseURL string `yaml:"public_base_url" env:"S3_PUBLIC_BASE_URL"`
}

// ImagesConfig — ограничения на загружаемые изображения.
type ImagesConfig struct {
	MaxSizeBytes        int64    `yaml:"max_size_bytes" env:"IMAGE_MAX_SIZE_BYTES" env-default:"10485760"`
	AllowedContentTypes []string `yaml:"allowed_content_types" env:"IMAGE_ALLOWED_CONTENT_TYPES" env-separator:"," env-default:"image/jpeg,image/png,image/gif,image/webp"`
}

// AuthConfig — хостовый провайдер аутентификации (OAuth + выдача JWT).
type AuthConfig struct {
	URL     string `yaml:"url" env:"AUTH_URL" env-required:"true"`
	AnonKey string `yaml:"anon_key" env:"AUTH_ANON_KEY"`
	// JWTSecret — секрет проекта для проверки подписи access-токенов.
	// Пусто -> токен разбирается без проверки подписи; допустимо только в env local.
	JWTSecret string `yaml:"jwt_secret" env:"AUTH_JWT_SECRET"`
	Provider  string `yaml:"provider" env:"AUTH_PROVIDER" env-default:"github"`
	// CallbackHost/CallbackPort — loopback-адрес, на который провайдер вернёт OAuth-редирект.
	CallbackHost string `yaml:"callback_host" env:"AUTH_CALLBACK_HOST" env-default:"127.0.0.1"`
	CallbackPort string `yaml:"callback_port" env:"AUTH_CALLBACK_PORT" env-default:"54321"`
	// RefreshToken — из него сессия восстанавливается при старте.
	RefreshToken string `yaml:"refresh_token" env:"FORUM_REFRESH_TOKEN"`
	// SessionFile — файл, где хранится refresh-токен между запусками; пусто -> не сохраняется.
	SessionFile string `yaml:"session_file" env:"FORUM_SESSION_FILE"`
}

// CallbackAddr возвращает адрес в формате host:port.
func (a AuthConfig) CallbackAddr() string {
	return net.JoinHostPort(a.CallbackHost, a.CallbackPort)
}

// RefreshConfig — периодическое перечитывание комментариев и голосов.
type RefreshConfig struct {
	Interval time.Duration `yaml:"interval" env:"REFRESH_INTERVAL" env-default:"5s"`
}

// TimeoutConfig — общий дедлайн одной операции к шлюзу.
type TimeoutConfig struct {
	Request time.Duration `yaml:"request" env:"REQUEST_TIMEOUT" env-default:"10s"`
}

// MetricsConfig — Pushgateway для метрик вызовов шлюза; пусто -> метрики не отправляются.
type MetricsConfig struct {
	PushURL string `yaml:"push_url" env:"METRICS_PUSH_URL"`
	Job     string `yaml:"job" env:"METRICS_JOB" env-default:"forum"`
}

// MustLoad — обёртка над Load с panic при ошибке.
func MustLoad(path string) *Config {
	cfg, err := Load(path)

	if err != nil {
		panic(err)
	}

	return cfg
}

// Load загружает конфигурацию по приоритету:
// 1) явный путь; 2) CONFIG_PATH; 3) ./local.yaml; 4) ENV.
// После чтения файла накладываем ENV-переменные поверх значений из YAML.
func Load(path string) (*Config, error) {
	var cfg Config

	tryRead := func(p string) (*Config, error) {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", p, err)
		}

		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}

		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to overlay env: %w", err)
		}

		if err := cfg.validate(); err != nil {
			return nil, err
		}

		return &cfg, nil
	}

	// 1) Явный путь.
	if path != "" {
		return tryRead(path)
	}

	// 2) CONFIG_PATH.
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return tryRead(envPath)
	}

	// 3) ./local.yaml.
	if _, err := os.Stat("local.yaml"); err == nil {
		return tryRead("local.yaml")
	}

	// 4) Только ENV.
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validate — базовая валидация значений.
func (c *Config) validate() error {
	if c.DB.URL == "" {
		return fmt.Errorf("db.url is required")
	}

	if c.DB.Driver != DriverPostgres && c.DB.Driver != DriverMongo {
		return fmt.Errorf("db.driver must be %q or %q", DriverPostgres, DriverMongo)
	}

	if c.S3.Endpoint == "" {
		return fmt.Errorf("s3.endpoint is required")
	}

	if c.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required")
	}

	if c.Auth.URL == "" {
		return fmt.Errorf("auth.url is required")
	}

	if c.Auth.JWTSecret == "" && c.Env != EnvLocal {
		return fmt.Errorf("auth.jwt_secret is required outside %q env", EnvLocal)
	}

	if c.Images.MaxSizeBytes <= 0 {
		return fmt.Errorf("images.max_size_bytes must be > 0")
	}

	if len(c.Images.AllowedContentTypes) == 0 {
		return fmt.Errorf("images.allowed_content_types must not be empty")
	}

	if c.Refresh.Interval < time.Second {
		return fmt.Errorf("refresh.interval must be at least 1s")
	}

	if c.Timeouts.Request <= 0 {
		return fmt.Errorf("timeouts.request must be > 0")
	}

	return nil
}
