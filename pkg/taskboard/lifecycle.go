package taskboard

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Start begins background processing: the live board hub, the reminder
// workers and the scheduler
func (b *Board) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		return fmt.Errorf("already shut down")
	}
	if b.started {
		return fmt.Errorf("already started")
	}

	go b.hub.Run()
	b.pool.Start(b.config.WorkerPoolSize)
	go b.scheduler.Start()

	b.started = true
	b.logger.Info("Task board started", zap.Int("workers", b.config.WorkerPoolSize))
	return nil
}

// Shutdown stops polling, waits for in-flight deliveries and closes the
// database when the Board owns it
func (b *Board) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return nil
	}
	wasStarted := b.started
	b.started = false
	b.stopped = true
	b.mu.Unlock()

	b.logger.Info("Shutting down task board")

	if wasStarted {
		done := make(chan struct{})
		go func() {
			b.scheduler.Stop()
			b.pool.Stop()
			b.hub.Stop()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			b.logger.Warn("Shutdown context cancelled", zap.Error(ctx.Err()))
			return ctx.Err()
		}
	}

	if b.config.DBMode == DBModeSeparate {
		if err := b.store.Close(); err != nil {
			b.logger.Error("Database close error", zap.Error(err))
			return err
		}
		b.logger.Info("Database connection closed")
	}

	b.logger.Info("Task board shutdown complete")
	return nil
}

// HealthStatus represents the health of an embedded Board
type HealthStatus struct {
	Status    string `json:"status"`    // healthy, unhealthy, stopped
	Database  string `json:"database"`  // connected, disconnected
	Scheduler string `json:"scheduler"` // running, stopped
	Workers   int    `json:"workers"`
	Started   bool   `json:"started"`
	Error     string `json:"error,omitempty"`
}

// HealthCheck returns health status for monitoring
func (b *Board) HealthCheck(ctx context.Context) HealthStatus {
	b.mu.RLock()
	started := b.started
	b.mu.RUnlock()

	status := HealthStatus{Started: started, Workers: b.config.WorkerPoolSize, Scheduler: "stopped"}
	if !started {
		status.Status = "stopped"
		return status
	}

	if b.scheduler.Running() {
		status.Scheduler = "running"
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := b.store.Ping(ctx); err != nil {
		status.Status = "unhealthy"
		status.Database = "disconnected"
		status.Error = err.Error()
		return status
	}

	status.Database = "connected"
	status.Status = "healthy"
	return status
}
