package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Code store backends selectable through CODE_STORE.
const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// ServerConfig holds all configuration for the server.
// Tags use mapstructure for Viper unmarshalling.
type ServerConfig struct {
	HTTPPort        string `mapstructure:"HTTP_PORT"`
	LogLevel        string `mapstructure:"LOG_LEVEL"`
	LogPretty       bool   `mapstructure:"LOG_PRETTY"`
	OtelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// CodeStore selects where authorization codes live: mongo, memory or redis.
	CodeStore   string `mapstructure:"CODE_STORE"`
	MongoURI    string `mapstructure:"MONGO_URI"`
	MongoDBName string `mapstructure:"MONGO_DB_NAME"`
	RedisAddr   string `mapstructure:"REDIS_ADDR"`
	RedisDB     int    `mapstructure:"REDIS_DB"`

	Issuer            string `mapstructure:"ISSUER"`
	JWTSecretKey      string `mapstructure:"JWT_SECRET_KEY"`
	AuthCodeTTLMin    int    `mapstructure:"AUTH_CODE_TTL_MIN"`
	AccessTokenTTLMin int    `mapstructure:"ACCESS_TOKEN_TTL_MIN"`
}

// AuthCodeTTL returns the configured authorization code lifetime.
func (c *ServerConfig) AuthCodeTTL() time.Duration {
	return time.Duration(c.AuthCodeTTLMin) * time.Minute
}

// AccessTokenTTL returns the configured access token lifetime.
func (c *ServerConfig) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMin) * time.Minute
}

// LoadConfig reads configuration from file, environment variables, and defaults.
func LoadConfig() (*ServerConfig, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("/etc/codegrant/")
	v.AddConfigPath("$HOME/.codegrant")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
	v.SetDefault("OTEL_SERVICE_NAME", "codegrant-server")
	v.SetDefault("CODE_STORE", StoreMemory)
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/codegrant_dev")
	v.SetDefault("MONGO_DB_NAME", "codegrant_dev")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("ISSUER", "https://sso.pilab.hu")
	v.SetDefault("JWT_SECRET_KEY", "a_very_secret_jwt_key_change_me") // CHANGE IN PRODUCTION
	v.SetDefault("AUTH_CODE_TTL_MIN", 10)
	v.SetDefault("ACCESS_TOKEN_TTL_MIN", 60)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults and env vars cover it.
		// Anything else (permissions, malformed yaml) is a real error.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	switch cfg.CodeStore {
	case StoreMongo, StoreMemory, StoreRedis:
	default:
		return nil, fmt.Errorf("unknown CODE_STORE %q: must be one of %s, %s, %s",
			cfg.CodeStore, StoreMongo, StoreMemory, StoreRedis)
	}

	return &cfg, nil
}
