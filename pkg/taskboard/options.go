package taskboard

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"taskboard/configs"
	"taskboard/delivery/auth"
	"taskboard/notify"
)

// Option is a function that configures a Board
type Option func(*Config) error

// DBOption is a function that configures database settings
type DBOption func(*configs.DatabaseConfig) error

// Config holds all configuration for a Board
type Config struct {
	// Database
	DB            *sqlx.DB
	DBMode        DBMode
	Database      configs.DatabaseConfig
	AutoMigration bool

	// HTTP
	RoutePrefix   string
	CORSOrigins   []string
	Authenticator auth.Authenticator

	// Reminders
	WorkerPoolSize int
	Scheduler      configs.SchedulerConfig
	Deliverer      notify.Deliverer

	Logger *zap.Logger
}

// DBMode represents the database connection mode
type DBMode int

const (
	// DBModeShared means the Board uses a connection owned by the host application
	DBModeShared DBMode = iota

	// DBModeSeparate means the Board opens and closes its own connection
	DBModeSeparate
)

func (m DBMode) String() string {
	switch m {
	case DBModeShared:
		return "shared"
	case DBModeSeparate:
		return "separate"
	default:
		return "unknown"
	}
}

func defaultConfig() *Config {
	return &Config{
		DBMode: DBModeSeparate,
		Database: configs.DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
			ConnMaxIdleTime: 10 * time.Minute,
		},
		AutoMigration:  true,
		RoutePrefix:    "/api/v1",
		WorkerPoolSize: 4,
		Scheduler: configs.SchedulerConfig{
			PollInterval:  10 * time.Second,
			CatchUpWindow: 24 * time.Hour,
			BatchSize:     200,
		},
	}
}

// WithSharedDB configures the Board to use an existing MySQL or SQLite connection.
// The connection is not closed by Shutdown. A MySQL DSN must enable parseTime.
func WithSharedDB(db *sqlx.DB) Option {
	return func(c *Config) error {
		if db == nil {
			return fmt.Errorf("database connection cannot be nil")
		}
		c.DB = db
		c.DBMode = DBModeShared
		c.Database.Driver = db.DriverName()
		return nil
	}
}

// WithSeparateDB configures the Board to open its own connection.
// driver is "mysql" or "sqlite". The connection is closed by Shutdown.
func WithSeparateDB(driver, dsn string, opts ...DBOption) Option {
	return func(c *Config) error {
		if dsn == "" {
			return fmt.Errorf("DSN cannot be empty")
		}
		if driver != "mysql" && driver != "sqlite" {
			return fmt.Errorf("unsupported driver %q", driver)
		}
		c.DB = nil
		c.DBMode = DBModeSeparate
		c.Database.Driver = driver
		c.Database.URL = dsn

		for _, opt := range opts {
			if err := opt(&c.Database); err != nil {
				return fmt.Errorf("database option error: %w", err)
			}
		}
		return nil
	}
}

// WithMaxConnections sets the maximum number of open database connections
func WithMaxConnections(max int) DBOption {
	return func(c *configs.DatabaseConfig) error {
		if max <= 0 {
			return fmt.Errorf("max connections must be positive")
		}
		c.MaxOpenConns = max
		return nil
	}
}

// WithMaxIdleConnections sets the maximum number of idle database connections
func WithMaxIdleConnections(max int) DBOption {
	return func(c *configs.DatabaseConfig) error {
		if max < 0 {
			return fmt.Errorf("max idle connections cannot be negative")
		}
		c.MaxIdleConns = max
		return nil
	}
}

// WithConnectionMaxLifetime sets the maximum lifetime of a database connection
func WithConnectionMaxLifetime(lifetime time.Duration) DBOption {
	return func(c *configs.DatabaseConfig) error {
		if lifetime < 0 {
			return fmt.Errorf("connection max lifetime cannot be negative")
		}
		c.ConnMaxLifetime = lifetime
		return nil
	}
}

// WithRoutePrefix sets the prefix the task routes are mounted under.
// Defaults to "/api/v1".
func WithRoutePrefix(prefix string) Option {
	return func(c *Config) error {
		if prefix == "" {
			return fmt.Errorf("route prefix cannot be empty")
		}
		c.RoutePrefix = prefix
		return nil
	}
}

// WithCORSOrigins sets the origins allowed to open the live board stream
func WithCORSOrigins(origins ...string) Option {
	return func(c *Config) error {
		c.CORSOrigins = origins
		return nil
	}
}

// WithAuthenticator replaces the default X-User-ID header authenticator
func WithAuthenticator(a auth.Authenticator) Option {
	return func(c *Config) error {
		if a == nil {
			return fmt.Errorf("authenticator cannot be nil")
		}
		c.Authenticator = a
		return nil
	}
}

// WithWorkerPoolSize sets the number of reminder delivery workers.
// Defaults to 4.
func WithWorkerPoolSize(size int) Option {
	return func(c *Config) error {
		if size <= 0 {
			return fmt.Errorf("worker pool size must be positive")
		}
		c.WorkerPoolSize = size
		return nil
	}
}

// WithSchedulerIntervals sets how often reminders are polled and how far back
// a missed reminder is still delivered
func WithSchedulerIntervals(poll, catchUp time.Duration) Option {
	return func(c *Config) error {
		if poll <= 0 {
			return fmt.Errorf("poll interval must be positive")
		}
		if catchUp < 0 {
			return fmt.Errorf("catch-up window cannot be negative")
		}
		c.Scheduler.PollInterval = poll
		c.Scheduler.CatchUpWindow = catchUp
		return nil
	}
}

// WithDeliverer sets how reminders reach their owner.
// Defaults to logging them.
func WithDeliverer(d notify.Deliverer) Option {
	return func(c *Config) error {
		if d == nil {
			return fmt.Errorf("deliverer cannot be nil")
		}
		c.Deliverer = d
		return nil
	}
}

// WithLogger sets a custom logger.
// Defaults to the global logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		c.Logger = logger
		return nil
	}
}

// WithAutoMigration enables or disables migrations during New.
// Defaults to true.
func WithAutoMigration(enabled bool) Option {
	return func(c *Config) error {
		c.AutoMigration = enabled
		return nil
	}
}
