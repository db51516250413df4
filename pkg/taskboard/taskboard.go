// Package taskboard embeds the task board into an existing Go application:
// its store, reminder scheduler and worker pool, and its HTTP routes.
package taskboard

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"taskboard/delivery/auth"
	"taskboard/delivery/rest"
	"taskboard/delivery/websocket"
	"taskboard/infrastructure/logger"
	"taskboard/infrastructure/worker"
	"taskboard/notify"
	"taskboard/reminder"
	"taskboard/repository/sqlstore"
	"taskboard/task"
)

// Board is an embeddable task board instance
type Board struct {
	config *Config
	db     *sqlx.DB
	logger *zap.Logger

	store     *sqlstore.Store
	hub       *websocket.Hub
	pool      worker.Pool
	scheduler *reminder.Scheduler
	tasks     *task.Service
	handler   *rest.Handler

	mu      sync.RWMutex
	started bool
	stopped bool
}

// New creates a Board with the provided options
func New(opts ...Option) (*Board, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}

	if cfg.DB == nil && cfg.Database.URL == "" {
		return nil, fmt.Errorf("database not configured: use WithSharedDB or WithSeparateDB")
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.Get()
	}

	b := &Board{
		config: cfg,
		logger: cfg.Logger.Named("taskboard"),
	}

	if err := b.setupDatabase(); err != nil {
		return nil, err
	}

	if cfg.AutoMigration {
		if err := b.RunMigrations(context.Background()); err != nil {
			b.closeOwnedDB()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	if err := b.initComponents(); err != nil {
		b.closeOwnedDB()
		return nil, err
	}

	b.logger.Info("Task board initialized",
		zap.String("db_mode", cfg.DBMode.String()),
		zap.String("driver", cfg.Database.Driver),
		zap.String("route_prefix", cfg.RoutePrefix),
	)
	return b, nil
}

func (b *Board) setupDatabase() error {
	if b.config.DBMode == DBModeShared {
		b.db = b.config.DB
		return nil
	}

	db, err := sqlstore.NewConnection(&b.config.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	b.db = db
	return nil
}

func (b *Board) initComponents() error {
	store, err := sqlstore.NewTaskRepository(b.db)
	if err != nil {
		return err
	}
	b.store = store

	deliverer := b.config.Deliverer
	if deliverer == nil {
		deliverer = notify.NewLogDeliverer(b.logger.Named("notify"))
	}

	b.hub = websocket.NewHub(b.config.CORSOrigins, b.logger.Named("websocket"))
	b.pool = worker.NewWorkerPool(deliverer, store, b.hub, b.logger.Named("worker"))
	b.scheduler = reminder.NewScheduler(store, b.pool, b.config.Scheduler, b.logger.Named("scheduler"))
	b.tasks = task.NewService(store, b.hub, b.logger.Named("task"))
	b.handler = rest.NewHandler(b.tasks, store, b.scheduler, b.logger.Named("http"))

	if b.config.Authenticator == nil {
		b.config.Authenticator = auth.NewHeaderAuthenticator()
	}
	return nil
}

// RunMigrations applies the embedded migrations to the Board's database.
// It can be called manually when auto migration is disabled.
func (b *Board) RunMigrations(ctx context.Context) error {
	return sqlstore.RunMigrations(ctx, b.db, b.logger.Named("migrations"))
}

// Tasks exposes the task service for in-process use
func (b *Board) Tasks() *task.Service {
	return b.tasks
}

func (b *Board) closeOwnedDB() {
	if b.config.DBMode == DBModeSeparate && b.db != nil {
		b.db.Close()
	}
}

func normalizePrefix(prefix string) string {
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return strings.TrimSuffix(prefix, "/")
}
