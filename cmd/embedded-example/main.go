package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"taskboard/delivery/auth"
	"taskboard/domain/entity"
	"taskboard/infrastructure/logger"
	"taskboard/pkg/taskboard"
)

// This example embeds the task board in a host application that owns the
// router and HTTP server. The board opens its own SQLite database unless
// EMBEDDED_MYSQL_DSN points at a MySQL server.
func main() {
	if err := logger.InitFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Named("embedded")

	dbOption := taskboard.WithSeparateDB("sqlite", "file:embedded.db?_pragma=busy_timeout(5000)")
	if dsn := os.Getenv("EMBEDDED_MYSQL_DSN"); dsn != "" {
		dbOption = taskboard.WithSeparateDB("mysql", dsn, taskboard.WithMaxConnections(10))
	}

	board, err := taskboard.New(
		dbOption,
		taskboard.WithRoutePrefix("/board"),
		taskboard.WithWorkerPoolSize(2),
		taskboard.WithSchedulerIntervals(15*time.Second, time.Hour),
		taskboard.WithLogger(logger.Get()),
	)
	if err != nil {
		log.Fatal("Failed to initialize task board", zap.Error(err))
	}

	if err := board.Start(); err != nil {
		log.Fatal("Failed to start task board", zap.Error(err))
	}

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"app":       "ok",
			"taskboard": board.HealthCheck(c.Request.Context()),
		})
	})

	// in-process use of the service, bypassing the board's own routes
	router.POST("/quick-add", func(c *gin.Context) {
		var req struct {
			Owner string `json:"owner" binding:"required"`
			Title string `json:"title" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		remindAt := time.Now().UTC().Add(time.Minute)
		created, err := board.Tasks().Create(c.Request.Context(), req.Owner, &entity.Task{
			Title:    req.Title,
			Reminder: entity.Reminder{Enabled: true, Time: &remindAt},
		})
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, created)
	})

	if err := board.RegisterRoutes(router); err != nil {
		log.Fatal("Failed to register task board routes", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              ":8080",
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Server started",
			zap.String("address", srv.Addr),
			zap.String("owner_header", auth.HeaderUserID),
		)
		log.Info("Try: curl -X POST localhost:8080/board/tasks -H 'X-User-ID: alice' -d '{\"title\":\"Write report\"}'")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// stop serving first so no request reaches a closed store
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server shutdown error", zap.Error(err))
	}

	if err := board.Shutdown(ctx); err != nil {
		log.Error("Task board shutdown error", zap.Error(err))
	}

	log.Info("Server stopped")
}
