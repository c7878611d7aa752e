package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // TIMEZONE must resolve on hosts without a zoneinfo database

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "TASKBOARD_"

// Config captures the settings of the taskboard service.
type Config struct {
	HTTPPort        int           `yaml:"http_port"`
	SQLitePath      string        `yaml:"sqlite_path"`
	TokenSecret     string        `yaml:"token_secret"`
	TokenTTL        time.Duration `yaml:"token_ttl"`
	Timezone        string        `yaml:"timezone"`
	LogLevel        string        `yaml:"log_level"`
	LogFile         string        `yaml:"log_file"`
	RedisAddr       string        `yaml:"redis_addr"`
	SentryDSN       string        `yaml:"sentry_dsn"`
	Environment     string        `yaml:"environment"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	Admin           AdminConfig   `yaml:"admin"`

	// Location is Timezone resolved by Load.
	Location *time.Location `yaml:"-"`
}

// AdminConfig describes the administrator account created at startup when absent.
type AdminConfig struct {
	Email    string `yaml:"email"`
	Name     string `yaml:"name"`
	Password string `yaml:"password"`
}

// Enabled reports whether an administrator should be bootstrapped.
func (a AdminConfig) Enabled() bool {
	return a.Email != "" && a.Password != ""
}

func defaults() Config {
	return Config{
		HTTPPort:        8080,
		SQLitePath:      "taskboard.db",
		TokenTTL:        20 * time.Minute,
		Timezone:        "UTC",
		LogLevel:        "info",
		Environment:     "development",
		ShutdownTimeout: 10 * time.Second,
		Admin:           AdminConfig{Name: "admin"},
	}
}

// Load builds the configuration from defaults, the optional YAML file named by
// TASKBOARD_CONFIG_FILE, a .env file (TASKBOARD_ENV_FILE, default ".env") and finally
// the TASKBOARD_* environment variables. Every missing or invalid value is reported
// in a single error.
func Load() (Config, error) {
	cfg := defaults()

	envFile := strings.TrimSpace(os.Getenv(EnvPrefix + "ENV_FILE"))
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: read %s: %w", envFile, err)
	}

	if path := strings.TrimSpace(os.Getenv(EnvPrefix + "CONFIG_FILE")); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if value := lookup("HTTP_PORT"); value != "" {
		port, err := strconv.Atoi(value)
		if err != nil {
			invalid = append(invalid, EnvPrefix+"HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}
	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		invalid = appendOnce(invalid, EnvPrefix+"HTTP_PORT")
	}

	setString(&cfg.SQLitePath, "SQLITE_PATH")
	setString(&cfg.TokenSecret, "TOKEN_SECRET")
	setString(&cfg.Timezone, "TIMEZONE")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.LogFile, "LOG_FILE")
	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.SentryDSN, "SENTRY_DSN")
	setString(&cfg.Environment, "ENVIRONMENT")
	setString(&cfg.Admin.Email, "ADMIN_EMAIL")
	setString(&cfg.Admin.Name, "ADMIN_NAME")
	setString(&cfg.Admin.Password, "ADMIN_PASSWORD")

	if !setDuration(&cfg.TokenTTL, "TOKEN_TTL") || cfg.TokenTTL <= 0 {
		invalid = appendOnce(invalid, EnvPrefix+"TOKEN_TTL")
	}
	if !setDuration(&cfg.ShutdownTimeout, "SHUTDOWN_TIMEOUT") || cfg.ShutdownTimeout <= 0 {
		invalid = appendOnce(invalid, EnvPrefix+"SHUTDOWN_TIMEOUT")
	}

	if cfg.TokenSecret == "" {
		missing = append(missing, EnvPrefix+"TOKEN_SECRET")
	}
	if cfg.SQLitePath == "" {
		missing = append(missing, EnvPrefix+"SQLITE_PATH")
	}

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		invalid = append(invalid, EnvPrefix+"TIMEZONE")
	}
	cfg.Location = location

	switch strings.ToLower(cfg.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		invalid = append(invalid, EnvPrefix+"LOG_LEVEL")
	}

	if (cfg.Admin.Email == "") != (cfg.Admin.Password == "") {
		missing = append(missing, EnvPrefix+"ADMIN_EMAIL/"+EnvPrefix+"ADMIN_PASSWORD")
	}

	var problems []string
	if len(missing) > 0 {
		problems = append(problems, "missing required settings: "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		problems = append(problems, "invalid settings: "+strings.Join(invalid, ", "))
	}
	if len(problems) > 0 {
		return Config{}, errors.New("config: " + strings.Join(problems, "; "))
	}

	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func lookup(key string) string {
	return strings.TrimSpace(os.Getenv(EnvPrefix + key))
}

func setString(dst *string, key string) {
	if value := lookup(key); value != "" {
		*dst = value
	}
}

// setDuration reports false when the variable is present but not a duration.
func setDuration(dst *time.Duration, key string) bool {
	value := lookup(key)
	if value == "" {
		return true
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return false
	}
	*dst = d
	return true
}

func appendOnce(list []string, item string) []string {
	for _, existing := range list {
		if existing == item {
			return list
		}
	}
	return append(list, item)
}
