package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"gopkg.in/natefinch/lumberjack.v2"

	"taskboard/configs"
)

var (
	globalLogger *zap.Logger
	once         sync.Once
)

// defaultProductionFile is used when production runs without log.file
const defaultProductionFile = "logs/taskboard.log"

// Config defines logger configuration
type Config struct {
	Environment string // "development", "testing", "production"
	Level       string // "debug", "info", "warn", "error"
	Format      string // "json" or "console"; production always logs JSON
	Filename    string // rotated log file; empty writes to stdout or stderr
	MaxSize     int    // megabytes before rotation
	MaxBackups  int
	MaxAge      int // days
	Compress    bool
}

// DefaultConfig returns default logger configuration based on environment
func DefaultConfig(env string) *Config {
	switch env {
	case "production", "prod":
		return &Config{
			Environment: "production",
			Level:       "info",
			Format:      "json",
			Filename:    defaultProductionFile,
			MaxSize:     500,
			MaxBackups:  10,
			MaxAge:      30,
			Compress:    true,
		}
	case "testing", "test":
		return &Config{Environment: "testing", Level: "debug", Format: "console"}
	default:
		return &Config{Environment: "development", Level: "debug", Format: "console"}
	}
}

// FromSettings builds a logger config from the log section of the application config.
// Empty settings keep the environment's defaults, and a file of "stdout" disables
// file logging even in production.
func FromSettings(settings configs.LogConfig) *Config {
	cfg := DefaultConfig(settings.Environment)
	if settings.Level != "" {
		cfg.Level = settings.Level
	}
	if settings.Format != "" {
		cfg.Format = settings.Format
	}

	switch settings.File {
	case "":
	case "stdout":
		cfg.Filename = ""
	default:
		cfg.Filename = settings.File
	}
	if settings.MaxSizeMB > 0 {
		cfg.MaxSize = settings.MaxSizeMB
	}
	if settings.MaxBackups > 0 {
		cfg.MaxBackups = settings.MaxBackups
	}
	if settings.MaxAgeDays > 0 {
		cfg.MaxAge = settings.MaxAgeDays
	}
	if settings.File != "" {
		cfg.Compress = settings.Compress
	}
	return cfg
}

// Init initializes the global logger with the given configuration.
// Only the first call has an effect.
func Init(cfg *Config) error {
	var err error
	once.Do(func() {
		globalLogger, err = New(cfg)
	})
	return err
}

// InitFromEnv initializes the global logger from APP_ENV, LOG_LEVEL and LOG_FILE,
// for programs that do not load the application config
func InitFromEnv() error {
	return Init(FromSettings(configs.LogConfig{
		Environment: os.Getenv("APP_ENV"),
		Level:       os.Getenv("LOG_LEVEL"),
		File:        os.Getenv("LOG_FILE"),
	}))
}

// New builds a logger without touching the global one
func New(cfg *Config) (*zap.Logger, error) {
	level := parseLogLevel(cfg.Level)
	jsonOutput := cfg.Environment == "production" || cfg.Format == "json"

	core := zapcore.NewCore(newEncoder(jsonOutput), newSink(cfg, jsonOutput), level)

	opts := []zap.Option{zap.AddCaller()}
	if jsonOutput {
		opts = append(opts,
			zap.AddStacktrace(zapcore.ErrorLevel),
			zap.Fields(
				zap.String("environment", cfg.Environment),
				zap.String("service", "taskboard"),
			),
		)
	} else {
		opts = append(opts, zap.Development(), zap.AddStacktrace(zapcore.WarnLevel))
	}

	return zap.New(core, opts...), nil
}

func newEncoder(jsonOutput bool) zapcore.Encoder {
	if jsonOutput {
		ec := zap.NewProductionEncoderConfig()
		ec.TimeKey = "timestamp"
		ec.EncodeTime = zapcore.ISO8601TimeEncoder
		ec.EncodeLevel = zapcore.LowercaseLevelEncoder
		ec.EncodeCaller = zapcore.ShortCallerEncoder
		return zapcore.NewJSONEncoder(ec)
	}

	ec := zap.NewDevelopmentEncoderConfig()
	ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeCaller = zapcore.ShortCallerEncoder
	return zapcore.NewConsoleEncoder(ec)
}

// newSink writes to a rotated file when one is configured. JSON goes to stdout
// otherwise, console output to stderr.
func newSink(cfg *Config, jsonOutput bool) zapcore.WriteSyncer {
	if cfg.Filename != "" {
		return zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.Filename,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		})
	}
	if jsonOutput {
		return zapcore.Lock(os.Stdout)
	}
	return zapcore.Lock(os.Stderr)
}

// parseLogLevel converts a level name to zapcore.Level, falling back to info
func parseLogLevel(level string) zapcore.Level {
	if level == "warning" {
		level = "warn"
	}
	l, err := zapcore.ParseLevel(level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return l
}

// Get returns the global logger instance, or a no-op logger before Init
func Get() *zap.Logger {
	if globalLogger != nil {
		return globalLogger
	}
	return zap.NewNop()
}

// Named returns a named logger from the global logger
func Named(name string) *zap.Logger {
	return Get().Named(name)
}

// Sync flushes any buffered log entries
func Sync() error {
	if globalLogger != nil {
		return globalLogger.Sync()
	}
	return nil
}
