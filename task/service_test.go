package task

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard/domain"
	"taskboard/domain/entity"
	"taskboard/domain/repository"
	"taskboard/internal/testutil"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events map[string][]Event
}

func (p *recordingPublisher) Publish(ownerID string, event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.events == nil {
		p.events = map[string][]Event{}
	}
	p.events[ownerID] = append(p.events[ownerID], event)
}

func (p *recordingPublisher) types(ownerID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events[ownerID] {
		out = append(out, e.Type)
	}
	return out
}

var fixedNow = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *recordingPublisher) {
	t.Helper()
	pub := &recordingPublisher{}
	svc := NewService(testutil.NewStore(t), pub, nil)
	svc.now = func() time.Time { return fixedNow }
	return svc, pub
}

func createTitles(t *testing.T, svc *Service, owner string, titles ...string) []*entity.Task {
	t.Helper()
	var out []*entity.Task
	for _, title := range titles {
		task, err := svc.Create(context.Background(), owner, entity.NewTask(owner, title))
		require.NoError(t, err)
		out = append(out, task)
	}
	return out
}

func titlesOf(tasks []*entity.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Title)
	}
	return out
}

func assertDense(t *testing.T, tasks []*entity.Task) {
	t.Helper()
	for i, task := range tasks {
		assert.Equal(t, i, task.Position, "task %q", task.Title)
	}
}

func TestCreateAppends(t *testing.T) {
	svc, pub := newTestService(t)
	tasks := createTitles(t, svc, "alice", "a", "b", "c")

	assert.Equal(t, 2, tasks[2].Position)
	assert.Equal(t, []string{EventTaskCreated, EventTaskCreated, EventTaskCreated}, pub.types("alice"))
}

func TestCreateValidation(t *testing.T) {
	due := fixedNow.Add(48 * time.Hour)
	past := fixedNow.Add(-time.Minute)
	afterDue := due.Add(time.Hour)

	tests := []struct {
		name   string
		mutate func(*entity.Task)
	}{
		{name: "Blank title", mutate: func(tk *entity.Task) { tk.Title = "   " }},
		{name: "Unknown status", mutate: func(tk *entity.Task) { tk.Status = "done" }},
		{name: "Unknown priority", mutate: func(tk *entity.Task) { tk.Priority = "urgent" }},
		{name: "Recurring without frequency", mutate: func(tk *entity.Task) { tk.Recurrence.IsRecurring = true }},
		{name: "Reminder in the past", mutate: func(tk *entity.Task) {
			tk.Reminder = entity.Reminder{Enabled: true, Time: &past}
		}},
		{name: "Reminder after due date", mutate: func(tk *entity.Task) {
			tk.DueDate = &due
			tk.Reminder = entity.Reminder{Enabled: true, Time: &afterDue}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t)
			task := entity.NewTask("alice", "title")
			tt.mutate(task)

			_, err := svc.Create(context.Background(), "alice", task)
			assert.ErrorIs(t, err, domain.ErrInvalidArgument)
		})
	}
}

func TestCreateDefaultsReminderToHourBeforeDue(t *testing.T) {
	svc, _ := newTestService(t)
	due := fixedNow.Add(24 * time.Hour)

	task := entity.NewTask("alice", "call bank")
	task.DueDate = &due
	task.Reminder = entity.Reminder{Enabled: true, Sent: true}

	created, err := svc.Create(context.Background(), "alice", task)
	require.NoError(t, err)
	require.NotNil(t, created.Reminder.Time)
	assert.True(t, due.Add(-time.Hour).Equal(*created.Reminder.Time))
	assert.False(t, created.Reminder.Sent)
	assert.Equal(t, entity.ReminderArmed, created.Reminder.State())
}

func TestUpdateAllowListedMerge(t *testing.T) {
	svc, pub := newTestService(t)
	ctx := context.Background()
	tasks := createTitles(t, svc, "alice", "a", "b")

	title := "renamed"
	status := entity.TaskStatusCompleted
	tags := []string{" home ", "", "errand"}
	updated, err := svc.Update(ctx, "alice", tasks[0].ID, TaskPatch{
		Title:  &title,
		Status: &status,
		Tags:   &tags,
	})
	require.NoError(t, err)

	assert.Equal(t, "renamed", updated.Title)
	assert.Equal(t, entity.TaskStatusCompleted, updated.Status)
	assert.Equal(t, []string{"home", "errand"}, updated.Tags)
	assert.Equal(t, 0, updated.Position)
	assert.Equal(t, "alice", updated.OwnerID)
	assert.Contains(t, pub.types("alice"), EventTaskUpdated)
}

func TestUpdateClearsDueDateWithExplicitNull(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	due := fixedNow.Add(time.Hour)
	task := entity.NewTask("alice", "a")
	task.DueDate = &due
	created, err := svc.Create(ctx, "alice", task)
	require.NoError(t, err)

	updated, err := svc.Update(ctx, "alice", created.ID, TaskPatch{DueDate: Some[*time.Time](nil)})
	require.NoError(t, err)
	assert.Nil(t, updated.DueDate)
}

func TestUpdateRejectsEmptyPatch(t *testing.T) {
	svc, _ := newTestService(t)
	tasks := createTitles(t, svc, "alice", "a")

	_, err := svc.Update(context.Background(), "alice", tasks[0].ID, TaskPatch{})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestUpdateReminderResetsSent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	store := svc.repo

	at := fixedNow.Add(time.Hour)
	task := entity.NewTask("alice", "a")
	task.Reminder = entity.Reminder{Enabled: true, Time: &at}
	created, err := svc.Create(ctx, "alice", task)
	require.NoError(t, err)

	ok, err := store.MarkReminderSent(ctx, created.ID, *created.Reminder.Time)
	require.NoError(t, err)
	require.True(t, ok)

	later := fixedNow.Add(2 * time.Hour)
	updated, err := svc.Update(ctx, "alice", created.ID, TaskPatch{
		Reminder: &entity.Reminder{Enabled: true, Time: &later, Sent: true},
	})
	require.NoError(t, err)
	assert.False(t, updated.Reminder.Sent)
	assert.Equal(t, entity.ReminderArmed, updated.Reminder.State())

	// an unrelated edit keeps the fired state
	_, err = store.MarkReminderSent(ctx, created.ID, *updated.Reminder.Time)
	require.NoError(t, err)
	title := "b"
	again, err := svc.Update(ctx, "alice", created.ID, TaskPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, entity.ReminderFired, again.Reminder.State())
}

func TestUpdateUnknownTask(t *testing.T) {
	svc, _ := newTestService(t)
	title := "x"
	_, err := svc.Update(context.Background(), "alice", "missing", TaskPatch{Title: &title})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteCompacts(t *testing.T) {
	svc, pub := newTestService(t)
	ctx := context.Background()
	tasks := createTitles(t, svc, "alice", "a", "b", "c", "d")

	require.NoError(t, svc.Delete(ctx, "alice", tasks[1].ID))

	list, err := svc.List(ctx, "alice", repository.TaskFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "d"}, titlesOf(list))
	assertDense(t, list)
	assert.Contains(t, pub.types("alice"), EventTaskDeleted)

	assert.ErrorIs(t, svc.Delete(ctx, "alice", tasks[1].ID), domain.ErrNotFound)
}

func TestReorder(t *testing.T) {
	tests := []struct {
		name  string
		from  int
		to    int
		want  []string
		moved bool
	}{
		{name: "Move later", from: 2, to: 5, want: []string{"a", "b", "d", "e", "f", "c"}, moved: true},
		{name: "Move earlier", from: 4, to: 1, want: []string{"a", "e", "b", "c", "d", "f"}, moved: true},
		{name: "Clamp past end", from: 0, to: 99, want: []string{"b", "c", "d", "e", "f", "a"}, moved: true},
		{name: "No-op", from: 3, to: 3, want: []string{"a", "b", "c", "d", "e", "f"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, pub := newTestService(t)
			tasks := createTitles(t, svc, "alice", "a", "b", "c", "d", "e", "f")

			list, err := svc.Reorder(context.Background(), "alice", tasks[tt.from].ID, tt.to)
			require.NoError(t, err)
			assert.Equal(t, tt.want, titlesOf(list))
			assertDense(t, list)
			assert.Equal(t, tt.moved, len(pub.types("alice")) == 7)
		})
	}
}

func TestReorderErrors(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	tasks := createTitles(t, svc, "alice", "a", "b")

	_, err := svc.Reorder(ctx, "alice", tasks[0].ID, -1)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = svc.Reorder(ctx, "alice", "missing", 0)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// another owner's task is invisible
	_, err = svc.Reorder(ctx, "bob", tasks[0].ID, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReorderRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	tasks := createTitles(t, svc, "alice", "a", "b", "c", "d", "e")

	_, err := svc.Reorder(ctx, "alice", tasks[1].ID, 4)
	require.NoError(t, err)
	list, err := svc.Reorder(ctx, "alice", tasks[1].ID, 1)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, titlesOf(list))
}

func TestReorderIsolatedBetweenOwners(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	alice := createTitles(t, svc, "alice", "a", "b", "c")
	createTitles(t, svc, "bob", "x", "y", "z")

	_, err := svc.Reorder(ctx, "alice", alice[0].ID, 2)
	require.NoError(t, err)

	bob, err := svc.List(ctx, "bob", repository.TaskFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y", "z"}, titlesOf(bob))
}

func TestConcurrentReordersStayDense(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	tasks := createTitles(t, svc, "alice", "a", "b", "c", "d", "e", "f", "g", "h")

	rng := rand.New(rand.NewSource(7))
	type op struct {
		id  string
		pos int
	}
	ops := make([]op, 40)
	for i := range ops {
		ops[i] = op{id: tasks[rng.Intn(len(tasks))].ID, pos: rng.Intn(len(tasks) + 2)}
	}

	var wg sync.WaitGroup
	for _, o := range ops {
		wg.Add(1)
		go func(o op) {
			defer wg.Done()
			_, err := svc.Reorder(ctx, "alice", o.id, o.pos)
			assert.NoError(t, err)
		}(o)
	}
	wg.Wait()

	list, err := svc.List(ctx, "alice", repository.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, list, len(tasks))
	assertDense(t, list)
}

func TestAnalytics(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for i, seed := range []struct {
		status   entity.TaskStatus
		priority entity.Priority
		category string
	}{
		{entity.TaskStatusCompleted, entity.PriorityHigh, "work"},
		{entity.TaskStatusPending, entity.PriorityHigh, "work"},
		{entity.TaskStatusInProgress, entity.PriorityLow, "home"},
		{entity.TaskStatusPending, entity.PriorityMedium, ""},
	} {
		task := entity.NewTask("alice", fmt.Sprintf("t%d", i))
		task.Status = seed.status
		task.Priority = seed.priority
		task.Category = seed.category
		_, err := svc.Create(ctx, "alice", task)
		require.NoError(t, err)
	}

	a, err := svc.Analytics(ctx, "alice")
	require.NoError(t, err)

	assert.Equal(t, 4, a.Total)
	assert.Equal(t, 1, a.Completed)
	assert.Equal(t, 2, a.Pending)
	assert.Equal(t, 1, a.InProgress)
	assert.Equal(t, PriorityBreakdown{High: 2, Medium: 1, Low: 1}, a.ByPriority)
	assert.Equal(t, map[string]int{"work": 2, "home": 1}, a.ByCategory)

	empty, err := svc.Analytics(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Total)
	assert.Empty(t, empty.ByCategory)
}

func TestOwnerProfile(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	owner, err := svc.Owner(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", owner.ID)
	assert.Empty(t, owner.Email)

	require.NoError(t, svc.SaveOwner(ctx, &entity.Owner{ID: "alice", Email: "alice@example.com"}))
	owner, err = svc.Owner(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", owner.Email)
}
