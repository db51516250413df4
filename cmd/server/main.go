package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"taskboard/configs"
	"taskboard/delivery/auth"
	"taskboard/delivery/rest"
	"taskboard/delivery/websocket"
	"taskboard/domain/repository"
	"taskboard/infrastructure/circuitbreaker"
	"taskboard/infrastructure/logger"
	"taskboard/infrastructure/worker"
	"taskboard/notify"
	"taskboard/reminder"
	"taskboard/repository/postgres"
	"taskboard/repository/sqlstore"
	"taskboard/server"
	"taskboard/task"
)

func main() {
	// Load configuration
	cfg, err := configs.LoadConfig("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(logger.FromSettings(cfg.Log)); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	log := logger.Named("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	store, err := openStore(ctx, cfg.Database, logger.Named("database"))
	if err != nil {
		log.Fatal("Failed to open task store", zap.String("driver", cfg.Database.Driver), zap.Error(err))
	}
	defer store.Close()

	// Initialize reminder delivery
	breaker := circuitbreaker.NewCircuitBreaker(
		cfg.Breaker.MaxFailures,
		cfg.Breaker.ResetTimeout,
		logger.Named("breaker"),
	)

	var deliverer notify.Deliverer
	if cfg.Mail.Enabled {
		deliverer = notify.NewMailer(cfg.Mail, breaker, logger.Named("mailer"))
	} else {
		log.Warn("Mail delivery disabled, reminders are only logged")
		deliverer = notify.NewLogDeliverer(logger.Named("notify"))
	}

	// Live board events
	hub := websocket.NewHub(cfg.Server.CORSOrigins, logger.Named("websocket"))
	go hub.Run()

	// Initialize worker pool
	workerPool := worker.NewWorkerPool(deliverer, store, hub, logger.Named("worker"))
	workerPool.Start(cfg.Worker.PoolSize)

	scheduler := reminder.NewScheduler(store, workerPool, cfg.Scheduler, logger.Named("scheduler"))

	// Initialize task service
	taskService := task.NewService(store, hub, logger.Named("task"))

	authenticator, closeAuth, err := newAuthenticator(ctx, cfg.Auth)
	if err != nil {
		log.Fatal("Failed to initialize authentication", zap.String("mode", cfg.Auth.Mode), zap.Error(err))
	}
	defer closeAuth()

	// Initialize HTTP handler
	h := rest.NewHandler(taskService, store, scheduler, logger.Named("http"))

	srv := server.NewServer(cfg.Server, server.Deps{
		Handler:       h,
		Authenticator: authenticator,
		Hub:           hub,
		Logger:        logger.Get(),
	})

	// Start scheduler in background
	go scheduler.Start()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.ListenAndServe()
	}()

	log.Info("Server started",
		zap.String("address", cfg.Server.Address()),
		zap.String("driver", cfg.Database.Driver),
		zap.Int("workers", cfg.Worker.PoolSize),
		zap.Duration("poll_interval", cfg.Scheduler.PollInterval),
	)

	select {
	case <-ctx.Done():
		log.Info("Shutting down server...")
	case err := <-serverErr:
		if err != nil {
			log.Error("Server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}

	// Stop scheduler, then the workers it dispatches to
	scheduler.Stop()
	workerPool.Stop()
	hub.Stop()

	log.Info("Server stopped")
}

// openStore connects to the configured backend and applies migrations when enabled
func openStore(ctx context.Context, cfg configs.DatabaseConfig, log *zap.Logger) (repository.TaskRepository, error) {
	start := time.Now()

	switch cfg.Driver {
	case "postgres":
		if cfg.AutoMigrate {
			if err := postgres.RunMigrations(ctx, cfg.URL, log); err != nil {
				return nil, err
			}
		}
		pool, err := postgres.NewConnection(&cfg)
		if err != nil {
			return nil, err
		}
		log.Info("Connected to database", zap.String("driver", cfg.Driver), zap.Duration("duration", time.Since(start)))
		return postgres.NewTaskRepository(pool), nil

	default:
		db, err := sqlstore.NewConnection(&cfg)
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := sqlstore.RunMigrations(ctx, db, log); err != nil {
				db.Close()
				return nil, err
			}
		}
		store, err := sqlstore.NewTaskRepository(db)
		if err != nil {
			db.Close()
			return nil, err
		}
		log.Info("Connected to database", zap.String("driver", cfg.Driver), zap.Duration("duration", time.Since(start)))
		return store, nil
	}
}

// newAuthenticator builds the configured owner resolver and a func releasing its resources
func newAuthenticator(ctx context.Context, cfg configs.AuthConfig) (auth.Authenticator, func(), error) {
	if cfg.Mode != "session" {
		return auth.NewHeaderAuthenticator(), func() {}, nil
	}

	rdb, err := auth.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, nil, err
	}
	return auth.NewSessionAuthenticator(rdb, cfg.SessionTTL), func() { rdb.Close() }, nil
}
