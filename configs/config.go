package configs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Scheduler SchedulerConfig
	Worker    WorkerConfig
	Mail      MailConfig
	Breaker   BreakerConfig
	Auth      AuthConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // "postgres", "mysql" or "sqlite"
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type SchedulerConfig struct {
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	CatchUpWindow time.Duration `mapstructure:"catch_up_window"`
	BatchSize     int           `mapstructure:"batch_size"`
}

type WorkerConfig struct {
	PoolSize int `mapstructure:"pool_size"`
}

type MailConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	From        string        `mapstructure:"from"`
	FromName    string        `mapstructure:"from_name"`
	ImplicitTLS bool          `mapstructure:"implicit_tls"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type BreakerConfig struct {
	MaxFailures  int           `mapstructure:"max_failures"`
	ResetTimeout time.Duration `mapstructure:"reset_timeout"`
}

type AuthConfig struct {
	Mode          string        `mapstructure:"mode"` // "header" or "session"
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
}

type LogConfig struct {
	Environment string `mapstructure:"environment"` // also read from APP_ENV
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"` // "json" or "console"
	File        string `mapstructure:"file"`   // rotated log file; "stdout" disables file logging
	MaxSizeMB   int    `mapstructure:"max_size_mb"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAgeDays  int    `mapstructure:"max_age_days"`
	Compress    bool   `mapstructure:"compress"`
}

// durationKeys lists every duration setting; they are parsed explicitly so that plain
// strings from env vars ("90s") behave the same as YAML values
var durationKeys = []string{
	"server.shutdown_timeout",
	"database.conn_max_lifetime",
	"database.conn_max_idle_time",
	"scheduler.poll_interval",
	"scheduler.catch_up_window",
	"mail.timeout",
	"breaker.reset_timeout",
	"auth.session_ttl",
}

// LoadConfig loads configuration from config.yaml and environment variables.
// Environment variables take precedence over config file values.
//
// Config file search order (first found is used):
// 1. Path from TASKBOARD_CONFIG_FILE environment variable
// 2. ./configs/config.yaml (relative to working directory)
// 3. <executable_dir>/configs/config.yaml
// 4. <project_root>/configs/config.yaml (detected by go.mod)
//
// When no file is found, defaults and environment variables are used.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix("TASKBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("log.environment", "TASKBOARD_LOG_ENVIRONMENT", "APP_ENV"); err != nil {
		return nil, fmt.Errorf("failed to bind log environment: %w", err)
	}

	setDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := parseDurations(v, &config); err != nil {
		return nil, fmt.Errorf("failed to parse durations: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// findConfigFile searches for config.yaml in multiple locations
func findConfigFile() string {
	if envPath := os.Getenv("TASKBOARD_CONFIG_FILE"); envPath != "" {
		if fileExists(envPath) {
			return envPath
		}
	}

	candidates := []string{
		"./configs/config.yaml",
		"./config.yaml",
	}

	if exeDir, err := getExecutableDir(); err == nil {
		candidates = append(candidates,
			filepath.Join(exeDir, "configs", "config.yaml"),
			filepath.Join(exeDir, "config.yaml"),
		)
	}

	if projectRoot, err := findProjectRoot(); err == nil {
		candidates = append(candidates,
			filepath.Join(projectRoot, "configs", "config.yaml"),
			filepath.Join(projectRoot, "config.yaml"),
		)
	}

	for _, candidate := range candidates {
		absPath, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		if fileExists(absPath) {
			return absPath
		}
	}

	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func getExecutableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}

// findProjectRoot walks up from the working directory looking for go.mod
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if fileExists(filepath.Join(dir, "go.mod")) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.url", "file:taskboard.db?_pragma=busy_timeout(5000)")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.conn_max_idle_time", "10m")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("scheduler.poll_interval", "10s")
	v.SetDefault("scheduler.catch_up_window", "24h")
	v.SetDefault("scheduler.batch_size", 200)

	v.SetDefault("worker.pool_size", 4)

	v.SetDefault("mail.enabled", false)
	v.SetDefault("mail.host", "smtp.gmail.com")
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.from_name", "Todo App")
	v.SetDefault("mail.implicit_tls", false)
	v.SetDefault("mail.timeout", "15s")

	v.SetDefault("breaker.max_failures", 5)
	v.SetDefault("breaker.reset_timeout", "60s")

	v.SetDefault("auth.mode", "header")
	v.SetDefault("auth.redis_addr", "localhost:6379")
	v.SetDefault("auth.redis_db", 0)
	v.SetDefault("auth.session_ttl", "24h")

	v.SetDefault("log.environment", "development")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.max_size_mb", 500)
	v.SetDefault("log.max_backups", 10)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)
}

// parseDurations parses duration strings into time.Duration values
func parseDurations(v *viper.Viper, config *Config) error {
	targets := map[string]*time.Duration{
		"server.shutdown_timeout":     &config.Server.ShutdownTimeout,
		"database.conn_max_lifetime":  &config.Database.ConnMaxLifetime,
		"database.conn_max_idle_time": &config.Database.ConnMaxIdleTime,
		"scheduler.poll_interval":     &config.Scheduler.PollInterval,
		"scheduler.catch_up_window":   &config.Scheduler.CatchUpWindow,
		"mail.timeout":                &config.Mail.Timeout,
		"breaker.reset_timeout":       &config.Breaker.ResetTimeout,
		"auth.session_ttl":            &config.Auth.SessionTTL,
	}

	for _, key := range durationKeys {
		raw := v.GetString(key)
		if raw == "" {
			continue
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*targets[key] = d
	}

	return nil
}

func validateConfig(config *Config) error {
	switch config.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("database.driver must be one of postgres, mysql, sqlite")
	}
	if config.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}

	if config.Scheduler.PollInterval <= 0 {
		return fmt.Errorf("scheduler.poll_interval must be positive")
	}
	if config.Scheduler.CatchUpWindow < 0 {
		return fmt.Errorf("scheduler.catch_up_window must be non-negative")
	}
	if config.Scheduler.BatchSize <= 0 {
		return fmt.Errorf("scheduler.batch_size must be positive")
	}

	if config.Worker.PoolSize <= 0 {
		return fmt.Errorf("worker.pool_size must be positive")
	}

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	if config.Mail.Enabled {
		if config.Mail.Host == "" || config.Mail.From == "" {
			return fmt.Errorf("mail.host and mail.from are required when mail is enabled")
		}
		if config.Mail.Timeout <= 0 {
			return fmt.Errorf("mail.timeout must be positive")
		}
	}

	if config.Breaker.MaxFailures <= 0 {
		return fmt.Errorf("breaker.max_failures must be positive")
	}

	switch config.Auth.Mode {
	case "header", "session":
	default:
		return fmt.Errorf("auth.mode must be header or session")
	}

	switch config.Log.Format {
	case "json", "console", "text":
	default:
		return fmt.Errorf("log.format must be json or console")
	}

	return nil
}
