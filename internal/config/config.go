package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port                   string
	AllowedOrigin          string
	UpstreamURL            string
	UpstreamTimeoutSeconds int
	DatabaseURL            string
	RedisAddr              string
	RedisPassword          string
	RedisDB                int
	AuthSecret             string
	AccessTokenTTLMinutes  int
	SessionTTLMinutes      int
	CatalogPageSize        int
	Timezone               string
	LogLevel               string
	AppEnv                 string
}

// fileConfig is the optional YAML file named by CONSOLE_CONFIG. Environment
// variables always win over file values.
type fileConfig struct {
	Port                   string `yaml:"port"`
	AllowedOrigin          string `yaml:"allowed_origin"`
	UpstreamURL            string `yaml:"upstream_url"`
	UpstreamTimeoutSeconds string `yaml:"upstream_timeout_seconds"`
	DatabaseURL            string `yaml:"database_url"`
	RedisAddr              string `yaml:"redis_addr"`
	RedisPassword          string `yaml:"redis_password"`
	RedisDB                string `yaml:"redis_db"`
	AccessTokenTTLMinutes  string `yaml:"access_token_ttl_minutes"`
	SessionTTLMinutes      string `yaml:"session_ttl_minutes"`
	CatalogPageSize        string `yaml:"catalog_page_size"`
	Timezone               string `yaml:"timezone"`
	LogLevel               string `yaml:"log_level"`
	AppEnv                 string `yaml:"app_env"`
}

func Load() (Config, error) {
	var file fileConfig
	if path := strings.TrimSpace(os.Getenv("CONSOLE_CONFIG")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", file.RedisDB, "0"))
	tokenTTL := positiveInt(getEnv("ACCESS_TOKEN_TTL_MINUTES", file.AccessTokenTTLMinutes, "480"), 480)

	cfg := Config{
		Port:                   getEnv("PORT", file.Port, "8080"),
		AllowedOrigin:          getEnv("ALLOWED_ORIGIN", file.AllowedOrigin, "http://127.0.0.1:3000"),
		UpstreamURL:            strings.TrimSpace(getEnv("UPSTREAM_URL", file.UpstreamURL, "")),
		UpstreamTimeoutSeconds: positiveInt(getEnv("UPSTREAM_TIMEOUT_SECONDS", file.UpstreamTimeoutSeconds, "10"), 10),
		DatabaseURL:            getEnv("DATABASE_URL", file.DatabaseURL, ""),
		RedisAddr:              getEnv("REDIS_ADDR", file.RedisAddr, ""),
		RedisPassword:          getEnv("REDIS_PASSWORD", file.RedisPassword, ""),
		RedisDB:                redisDB,
		AuthSecret:             strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes:  tokenTTL,
		SessionTTLMinutes:      positiveInt(getEnv("SESSION_TTL_MINUTES", file.SessionTTLMinutes, ""), tokenTTL),
		CatalogPageSize:        positiveInt(getEnv("CATALOG_PAGE_SIZE", file.CatalogPageSize, "30"), 30),
		Timezone:               getEnv("TIMEZONE", file.Timezone, "Local"),
		LogLevel:               strings.ToLower(getEnv("LOG_LEVEL", file.LogLevel, "info")),
		AppEnv:                 strings.ToLower(getEnv("APP_ENV", file.AppEnv, "production")),
	}

	return cfg, nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) UpstreamTimeout() time.Duration {
	return time.Duration(c.UpstreamTimeoutSeconds) * time.Second
}

func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

// Location resolves Timezone, the zone whose weekday selects discounts.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

func (c Config) Development() bool {
	return c.AppEnv == "development" || c.AppEnv == "dev"
}

func getEnv(key string, fileValue string, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	if fileValue != "" {
		return fileValue
	}
	return fallback
}

func positiveInt(raw string, fallback int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
