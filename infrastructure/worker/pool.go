package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"taskboard/domain"
	"taskboard/domain/entity"
	"taskboard/notify"
	"taskboard/task"
)

// ErrPoolStopped is reported for jobs dispatched after Stop
var ErrPoolStopped = errors.New("worker pool stopped")

// ReminderStore is the slice of the task repository the workers need
type ReminderStore interface {
	MarkReminderSent(ctx context.Context, taskID string, scheduledFor time.Time) (bool, error)
}

// Job is one armed reminder to deliver
type Job struct {
	Task  *entity.Task
	Owner *entity.Owner
}

// Result reports the outcome of one job. Marked is false when the reminder was
// edited or already fired while delivery was in flight.
type Result struct {
	TaskID    string
	Delivered bool
	Marked    bool
	Err       error
}

// Pool delivers batches of reminders on a fixed set of workers
type Pool interface {
	Start(workerCount int)
	Dispatch(ctx context.Context, jobs []Job) []Result
	Stop()
}

type envelope struct {
	ctx    context.Context
	job    Job
	index  int
	result chan<- indexedResult
}

type indexedResult struct {
	index int
	Result
}

// Worker represents a reminder delivery worker
type Worker struct {
	id        int
	jobs      <-chan envelope
	deliverer notify.Deliverer
	store     ReminderStore
	events    task.EventPublisher
	wg        *sync.WaitGroup
	quit      chan struct{}
	logger    *zap.Logger
}

// NewWorker creates a new worker
func NewWorker(
	id int,
	jobs <-chan envelope,
	deliverer notify.Deliverer,
	store ReminderStore,
	events task.EventPublisher,
	wg *sync.WaitGroup,
	logger *zap.Logger,
) *Worker {
	return &Worker{
		id:        id,
		jobs:      jobs,
		deliverer: deliverer,
		store:     store,
		events:    events,
		wg:        wg,
		quit:      make(chan struct{}),
		logger:    logger,
	}
}

// Start begins the worker's main loop
func (w *Worker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.logger.Debug("Worker started", zap.Int("worker_id", w.id))

		for {
			select {
			case env := <-w.jobs:
				res := w.process(env.ctx, env.job)
				env.result <- indexedResult{index: env.index, Result: res}

			case <-w.quit:
				w.logger.Debug("Worker stopping", zap.Int("worker_id", w.id))
				return
			}
		}
	}()
}

// Stop signals the worker to stop
func (w *Worker) Stop() {
	close(w.quit)
}

// process delivers one reminder and marks it sent on success. A panicking
// deliverer is reported as a failed delivery.
func (w *Worker) process(ctx context.Context, job Job) (res Result) {
	t := job.Task
	res.TaskID = t.ID

	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Reminder delivery panicked",
				zap.Int("worker_id", w.id),
				zap.String("task_id", t.ID),
				zap.Any("panic", r),
			)
			res = Result{TaskID: t.ID, Err: fmt.Errorf("%w: panic: %v", domain.ErrDeliveryFailed, r)}
		}
	}()

	if t.Reminder.Time == nil {
		res.Err = fmt.Errorf("%w: task %s has no reminder time", domain.ErrInvalidArgument, t.ID)
		return res
	}
	scheduledFor := *t.Reminder.Time

	if err := w.deliverer.Deliver(ctx, t, job.Owner); err != nil {
		w.logger.Warn("Reminder delivery failed",
			zap.Int("worker_id", w.id),
			zap.String("task_id", t.ID),
			zap.String("owner_id", t.OwnerID),
			zap.Error(err),
		)
		res.Err = err
		return res
	}
	res.Delivered = true

	marked, err := w.store.MarkReminderSent(ctx, t.ID, scheduledFor)
	if err != nil {
		// the reminder stays armed and is delivered again next cycle
		w.logger.Error("Failed to mark reminder as sent",
			zap.Int("worker_id", w.id),
			zap.String("task_id", t.ID),
			zap.Error(err),
		)
		res.Err = err
		return res
	}
	if !marked {
		w.logger.Info("Reminder changed during delivery",
			zap.Int("worker_id", w.id),
			zap.String("task_id", t.ID),
		)
		return res
	}

	res.Marked = true
	if w.events != nil {
		w.events.Publish(t.OwnerID, task.Event{Type: task.EventReminderSent, TaskID: t.ID})
	}

	w.logger.Info("Reminder delivered",
		zap.Int("worker_id", w.id),
		zap.String("task_id", t.ID),
		zap.Time("scheduled_for", scheduledFor),
	)
	return res
}

// workerPool manages a pool of workers
type workerPool struct {
	workers   []*Worker
	jobs      chan envelope
	deliverer notify.Deliverer
	store     ReminderStore
	events    task.EventPublisher
	wg        *sync.WaitGroup
	logger    *zap.Logger
	quit      chan struct{}
	stopOnce  sync.Once
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(
	deliverer notify.Deliverer,
	store ReminderStore,
	events task.EventPublisher,
	logger *zap.Logger,
) Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &workerPool{
		jobs:      make(chan envelope),
		deliverer: deliverer,
		store:     store,
		events:    events,
		wg:        &sync.WaitGroup{},
		logger:    logger,
		quit:      make(chan struct{}),
	}
}

// Start initializes and starts all workers
func (p *workerPool) Start(workerCount int) {
	if workerCount < 1 {
		workerCount = 1
	}
	p.workers = make([]*Worker, workerCount)
	for i := 0; i < workerCount; i++ {
		p.workers[i] = NewWorker(i+1, p.jobs, p.deliverer, p.store, p.events, p.wg, p.logger)
		p.workers[i].Start()
	}

	p.logger.Info("Worker pool started", zap.Int("worker_count", workerCount))
}

// Dispatch hands every job to the workers and blocks until each has a result.
// Results are returned in job order.
func (p *workerPool) Dispatch(ctx context.Context, jobs []Job) []Result {
	results := make([]Result, len(jobs))
	out := make(chan indexedResult, len(jobs))

	sent := 0
	for i, job := range jobs {
		env := envelope{ctx: ctx, job: job, index: i, result: out}
		select {
		case p.jobs <- env:
			sent++
			continue
		case <-ctx.Done():
			results[i] = Result{TaskID: job.Task.ID, Err: ctx.Err()}
		case <-p.quit:
			results[i] = Result{TaskID: job.Task.ID, Err: ErrPoolStopped}
		}
	}

	for ; sent > 0; sent-- {
		r := <-out
		results[r.index] = r.Result
	}
	return results
}

// Stop gracefully shuts down all workers. In-flight jobs finish first.
func (p *workerPool) Stop() {
	p.stopOnce.Do(func() {
		p.logger.Info("Stopping worker pool")
		close(p.quit)

		for _, worker := range p.workers {
			worker.Stop()
		}

		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			p.logger.Info("All workers stopped")
		case <-time.After(30 * time.Second):
			p.logger.Warn("Timeout waiting for workers to stop")
		}
	})
}
