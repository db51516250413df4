// Package reminder runs the background loop that fires due task reminders.
package reminder

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"taskboard/configs"
	"taskboard/domain"
	"taskboard/domain/entity"
	"taskboard/infrastructure/worker"
)

// Source is the slice of the task repository the scheduler reads from
type Source interface {
	FindArmedReminders(ctx context.Context, after time.Time, limit int) ([]*entity.Task, error)
	FindOwner(ctx context.Context, id string) (*entity.Owner, error)
}

// Dispatcher delivers a batch of reminders and waits for every outcome
type Dispatcher interface {
	Dispatch(ctx context.Context, jobs []worker.Job) []worker.Result
}

// CycleReport summarizes one polling cycle
type CycleReport struct {
	Scanned   int
	Eligible  int
	Delivered int
	Failed    int
	Skipped   int
}

// Scheduler polls for armed reminders on a fixed interval
type Scheduler struct {
	source     Source
	dispatcher Dispatcher
	cfg        configs.SchedulerConfig
	logger     *zap.Logger
	now        func() time.Time

	mu       sync.Mutex
	started  bool
	running  atomic.Bool
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewScheduler creates a scheduler. It does nothing until Start is called.
func NewScheduler(source Source, dispatcher Dispatcher, cfg configs.SchedulerConfig, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		source:     source,
		dispatcher: dispatcher,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start runs an initial poll and then one poll per tick. It blocks until Stop.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	defer close(s.done)

	select {
	case <-s.quit:
		return
	default:
	}

	s.running.Store(true)
	defer s.running.Store(false)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	s.logger.Info("Scheduler started",
		zap.Duration("poll_interval", s.cfg.PollInterval),
		zap.Duration("catch_up_window", s.cfg.CatchUpWindow),
		zap.Int("batch_size", s.cfg.BatchSize),
	)

	s.poll()

	for {
		select {
		case <-ticker.C:
			s.poll()

		case <-s.quit:
			s.logger.Info("Scheduler stopping")
			return
		}
	}
}

// Stop ends the loop and waits for the cycle in flight. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.quit) })

	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if started {
		<-s.done
	}
}

// Running reports whether the polling loop is active
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// Eligible reports whether the reminder of t should fire in a cycle starting at now.
// The window is (now-catchUp, now+interval].
func (s *Scheduler) Eligible(now time.Time, t *entity.Task) bool {
	if t.Reminder.State() != entity.ReminderArmed {
		return false
	}
	at := *t.Reminder.Time
	return at.After(now.Add(-s.cfg.CatchUpWindow)) && !at.After(now.Add(s.cfg.PollInterval))
}

// RunOnce executes a single polling cycle
func (s *Scheduler) RunOnce(ctx context.Context) (CycleReport, error) {
	var report CycleReport
	now := s.now()

	tasks, err := s.source.FindArmedReminders(ctx, now.Add(-s.cfg.CatchUpWindow), s.cfg.BatchSize)
	if err != nil {
		return report, err
	}
	report.Scanned = len(tasks)

	owners := make(map[string]*entity.Owner)
	jobs := make([]worker.Job, 0, len(tasks))
	for _, t := range tasks {
		if !s.Eligible(now, t) {
			continue
		}
		report.Eligible++

		owner, err := s.owner(ctx, owners, t.OwnerID)
		if err != nil {
			s.logger.Error("Failed to load reminder owner",
				zap.String("task_id", t.ID),
				zap.String("owner_id", t.OwnerID),
				zap.Error(err),
			)
			report.Failed++
			continue
		}
		jobs = append(jobs, worker.Job{Task: t, Owner: owner})
	}

	if len(jobs) == 0 {
		return report, nil
	}

	for _, r := range s.dispatcher.Dispatch(ctx, jobs) {
		switch {
		case r.Err != nil:
			report.Failed++
		case r.Marked:
			report.Delivered++
		default:
			report.Skipped++
		}
	}
	return report, nil
}

// owner loads an owner once per cycle. An owner without a saved profile is blank.
func (s *Scheduler) owner(ctx context.Context, cache map[string]*entity.Owner, id string) (*entity.Owner, error) {
	if o, ok := cache[id]; ok {
		return o, nil
	}
	o, err := s.source.FindOwner(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		o, err = &entity.Owner{ID: id}, nil
	}
	if err != nil {
		return nil, err
	}
	cache[id] = o
	return o, nil
}

// poll runs one cycle and logs the outcome. Errors never stop the loop.
func (s *Scheduler) poll() {
	start := time.Now()
	report, err := s.RunOnce(context.Background())
	if err != nil {
		s.logger.Error("Failed to fetch armed reminders", zap.Error(err))
		return
	}

	fields := []zap.Field{
		zap.Int("scanned", report.Scanned),
		zap.Int("eligible", report.Eligible),
		zap.Int("delivered", report.Delivered),
		zap.Int("failed", report.Failed),
		zap.Int("skipped", report.Skipped),
		zap.Duration("duration", time.Since(start)),
	}
	if report.Eligible == 0 {
		s.logger.Debug("Reminder cycle finished", fields...)
		return
	}
	s.logger.Info("Reminder cycle finished", fields...)
}
