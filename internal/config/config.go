package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Retention RetentionConfig `mapstructure:"retention"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	// AllowUnauthenticatedLogs exposes the /v1/logs admin surface without
	// auth when no database (and therefore no user store) is available.
	AllowUnauthenticatedLogs bool `mapstructure:"allow_unauthenticated_logs"`
}

type AuthConfig struct {
	JWTSecret       string `mapstructure:"jwt_secret"`
	TokenTTLMinutes int    `mapstructure:"token_ttl_minutes"`
	Issuer          string `mapstructure:"issuer"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr          string `mapstructure:"addr"`
	Password      string `mapstructure:"password"`
	DB            int    `mapstructure:"db"`
	RecentListKey string `mapstructure:"recent_list_key"`
	RecentListMax int    `mapstructure:"recent_list_max"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type RetentionConfig struct {
	Days                   int `mapstructure:"days"`
	CleanupIntervalMinutes int `mapstructure:"cleanup_interval_minutes"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")

	// Environment variables support
	// e.g. LEADGATE_DATABASE_DSN, LEADGATE_AUTH_JWT_SECRET
	viper.SetEnvPrefix("leadgate")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.allow_unauthenticated_logs", false)
	viper.SetDefault("auth.token_ttl_minutes", 30)
	viper.SetDefault("auth.issuer", "leadgate")
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("redis.recent_list_key", "recent_system_logs")
	viper.SetDefault("redis.recent_list_max", 10000)
	viper.SetDefault("retention.days", 30)
	viper.SetDefault("retention.cleanup_interval_minutes", 0) // 0 disables the background pass
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")
	viper.SetDefault("rate_limit.rps", 5)
	viper.SetDefault("rate_limit.burst", 10)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found, using defaults and env vars")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
