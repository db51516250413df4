package reminder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard/configs"
	"taskboard/domain"
	"taskboard/domain/entity"
	"taskboard/domain/repository"
	"taskboard/infrastructure/worker"
	"taskboard/internal/testutil"
)

var cycleStart = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

var testConfig = configs.SchedulerConfig{
	PollInterval:  10 * time.Second,
	CatchUpWindow: 24 * time.Hour,
	BatchSize:     50,
}

type recordingDeliverer struct {
	mu     sync.Mutex
	calls  map[string]int
	owners map[string]*entity.Owner
	fail   error
}

func newRecordingDeliverer() *recordingDeliverer {
	return &recordingDeliverer{calls: map[string]int{}, owners: map[string]*entity.Owner{}}
}

func (d *recordingDeliverer) Deliver(_ context.Context, t *entity.Task, o *entity.Owner) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail != nil {
		return d.fail
	}
	d.calls[t.Title]++
	d.owners[t.Title] = o
	return nil
}

func (d *recordingDeliverer) count(title string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[title]
}

func (d *recordingDeliverer) setFail(err error) {
	d.mu.Lock()
	d.fail = err
	d.mu.Unlock()
}

func newScheduler(t *testing.T, store repository.TaskRepository, d *recordingDeliverer) *Scheduler {
	t.Helper()
	pool := worker.NewWorkerPool(d, store, nil, nil)
	pool.Start(2)
	t.Cleanup(pool.Stop)

	s := NewScheduler(store, pool, testConfig, nil)
	s.now = func() time.Time { return cycleStart }
	return s
}

func seedReminder(t *testing.T, store repository.TaskRepository, owner, title string, at time.Time) *entity.Task {
	t.Helper()
	task := entity.NewTask(owner, title)
	task.Reminder = entity.Reminder{Enabled: true, Time: &at}
	require.NoError(t, store.WithinOwner(context.Background(), owner, func(tx repository.OwnerTx) error {
		return tx.Append(context.Background(), task)
	}))
	return task
}

func TestEligibleWindow(t *testing.T) {
	s := NewScheduler(nil, nil, testConfig, nil)

	tests := []struct {
		name     string
		reminder entity.Reminder
		want     bool
	}{
		{"inside forward window", armedAt(cycleStart.Add(5 * time.Second)), true},
		{"at forward edge", armedAt(cycleStart.Add(10 * time.Second)), true},
		{"past forward edge", armedAt(cycleStart.Add(11 * time.Second)), false},
		{"exactly now is caught up", armedAt(cycleStart), true},
		{"inside catch-up window", armedAt(cycleStart.Add(-time.Hour)), true},
		{"at catch-up edge", armedAt(cycleStart.Add(-24 * time.Hour)), false},
		{"already fired", entity.Reminder{Enabled: true, Time: ptr(cycleStart), Sent: true}, false},
		{"disabled", entity.Reminder{Enabled: false, Time: ptr(cycleStart)}, false},
		{"no time", entity.Reminder{Enabled: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := entity.NewTask("alice", tt.name)
			task.Reminder = tt.reminder
			assert.Equal(t, tt.want, s.Eligible(cycleStart, task))
		})
	}
}

func TestEligibleWithoutCatchUpIsStrictlyForward(t *testing.T) {
	cfg := testConfig
	cfg.CatchUpWindow = 0
	s := NewScheduler(nil, nil, cfg, nil)

	now := entity.NewTask("alice", "now")
	now.Reminder = armedAt(cycleStart)
	soon := entity.NewTask("alice", "soon")
	soon.Reminder = armedAt(cycleStart.Add(time.Second))

	assert.False(t, s.Eligible(cycleStart, now))
	assert.True(t, s.Eligible(cycleStart, soon))
}

func TestRunOnceFiresEachReminderOnce(t *testing.T) {
	store := testutil.NewStore(t)
	d := newRecordingDeliverer()
	s := newScheduler(t, store, d)
	ctx := context.Background()

	seedReminder(t, store, "alice", "soon", cycleStart.Add(5*time.Second))
	seedReminder(t, store, "alice", "missed", cycleStart.Add(-time.Hour))
	seedReminder(t, store, "alice", "later", cycleStart.Add(time.Hour))
	seedReminder(t, store, "bob", "stale", cycleStart.Add(-48*time.Hour))

	report, err := s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, CycleReport{Scanned: 3, Eligible: 2, Delivered: 2}, report)

	report, err = s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, CycleReport{Scanned: 1}, report)

	assert.Equal(t, 1, d.count("soon"))
	assert.Equal(t, 1, d.count("missed"))
	assert.Zero(t, d.count("later"))
	assert.Zero(t, d.count("stale"))
}

func TestRunOnceRetriesFailedDeliveries(t *testing.T) {
	store := testutil.NewStore(t)
	d := newRecordingDeliverer()
	s := newScheduler(t, store, d)
	ctx := context.Background()

	seedReminder(t, store, "alice", "flaky", cycleStart.Add(time.Second))

	d.setFail(domain.ErrDeliveryFailed)
	report, err := s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, CycleReport{Scanned: 1, Eligible: 1, Failed: 1}, report)

	d.setFail(nil)
	report, err = s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, CycleReport{Scanned: 1, Eligible: 1, Delivered: 1}, report)
	assert.Equal(t, 1, d.count("flaky"))
}

func TestRunOnceLoadsOwnerProfile(t *testing.T) {
	store := testutil.NewStore(t)
	d := newRecordingDeliverer()
	s := newScheduler(t, store, d)
	ctx := context.Background()

	require.NoError(t, store.SaveOwner(ctx, &entity.Owner{ID: "alice", Email: "alice@example.com"}))
	seedReminder(t, store, "alice", "with profile", cycleStart.Add(time.Second))
	seedReminder(t, store, "bob", "without profile", cycleStart.Add(time.Second))

	_, err := s.RunOnce(ctx)
	require.NoError(t, err)

	assert.Equal(t, "alice@example.com", d.owners["with profile"].Email)
	assert.Equal(t, &entity.Owner{ID: "bob"}, d.owners["without profile"])
}

type failingSource struct{}

func (failingSource) FindArmedReminders(context.Context, time.Time, int) ([]*entity.Task, error) {
	return nil, errors.New("connection refused")
}

func (failingSource) FindOwner(context.Context, string) (*entity.Owner, error) {
	return nil, domain.ErrNotFound
}

func TestRunOnceReportsSourceError(t *testing.T) {
	s := NewScheduler(failingSource{}, nil, testConfig, nil)

	_, err := s.RunOnce(context.Background())
	assert.EqualError(t, err, "connection refused")
}

func TestStartAndStop(t *testing.T) {
	cfg := testConfig
	cfg.PollInterval = 10 * time.Millisecond
	s := NewScheduler(failingSource{}, nil, cfg, nil)

	go s.Start()
	require.Eventually(t, s.Running, time.Second, 5*time.Millisecond)

	s.Stop()
	assert.False(t, s.Running())
	s.Stop()
}

func TestStopBeforeStart(t *testing.T) {
	s := NewScheduler(failingSource{}, nil, testConfig, nil)
	s.Stop()

	done := make(chan struct{})
	go func() {
		s.Start()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after Stop")
	}
	assert.False(t, s.Running())
}

func armedAt(at time.Time) entity.Reminder {
	return entity.Reminder{Enabled: true, Time: &at}
}

func ptr(t time.Time) *time.Time { return &t }
