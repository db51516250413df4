package sqlstore_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard/domain"
	"taskboard/domain/entity"
	"taskboard/domain/repository"
	"taskboard/internal/testutil"
	"taskboard/ordering"
)

func seed(t *testing.T, repo repository.TaskRepository, owner string, titles ...string) []*entity.Task {
	t.Helper()
	ctx := context.Background()

	var tasks []*entity.Task
	err := repo.WithinOwner(ctx, owner, func(tx repository.OwnerTx) error {
		for _, title := range titles {
			task := entity.NewTask(owner, title)
			if err := tx.Append(ctx, task); err != nil {
				return err
			}
			tasks = append(tasks, task)
		}
		return nil
	})
	require.NoError(t, err)
	return tasks
}

func listTitles(t *testing.T, repo repository.TaskRepository, owner string) []string {
	t.Helper()
	ctx := context.Background()

	var titles []string
	err := repo.WithinOwner(ctx, owner, func(tx repository.OwnerTx) error {
		tasks, err := tx.ListOrdered(ctx)
		if err != nil {
			return err
		}
		for i, task := range tasks {
			require.Equal(t, i, task.Position)
			titles = append(titles, task.Title)
		}
		return nil
	})
	require.NoError(t, err)
	return titles
}

func TestAppendAssignsDensePositions(t *testing.T) {
	store := testutil.NewStore(t)
	tasks := seed(t, store, "alice", "a", "b", "c")

	for i, task := range tasks {
		assert.Equal(t, i, task.Position)
	}
	assert.Equal(t, []string{"a", "b", "c"}, listTitles(t, store, "alice"))
}

func TestGetRoundTripsTask(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()

	due := time.Date(2026, 3, 1, 12, 30, 0, 123456789, time.UTC)
	remind := due.Add(-time.Hour)

	task := entity.NewTask("alice", "write report")
	task.Description = "quarterly"
	task.Priority = entity.PriorityHigh
	task.Category = "work"
	task.Tags = []string{"finance", "q1"}
	task.DueDate = &due
	task.Recurrence = entity.Recurrence{IsRecurring: true, Frequency: entity.FrequencyWeekly}
	task.Reminder = entity.Reminder{Enabled: true, Time: &remind}

	require.NoError(t, store.WithinOwner(ctx, "alice", func(tx repository.OwnerTx) error {
		return tx.Append(ctx, task)
	}))

	var got *entity.Task
	require.NoError(t, store.WithinOwner(ctx, "alice", func(tx repository.OwnerTx) error {
		var err error
		got, err = tx.Get(ctx, task.ID)
		return err
	}))

	assert.Equal(t, task.Title, got.Title)
	assert.Equal(t, "quarterly", got.Description)
	assert.Equal(t, entity.PriorityHigh, got.Priority)
	assert.Equal(t, []string{"finance", "q1"}, got.Tags)
	assert.True(t, got.Recurrence.IsRecurring)
	assert.Equal(t, entity.FrequencyWeekly, got.Recurrence.Frequency)
	require.NotNil(t, got.DueDate)
	assert.True(t, due.Truncate(time.Microsecond).Equal(*got.DueDate))
	require.NotNil(t, got.Reminder.Time)
	assert.True(t, remind.Truncate(time.Microsecond).Equal(*got.Reminder.Time))
	assert.Equal(t, entity.ReminderArmed, got.Reminder.State())
}

func TestGetIsScopedToOwner(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	tasks := seed(t, store, "alice", "a")

	err := store.WithinOwner(ctx, "bob", func(tx repository.OwnerTx) error {
		_, err := tx.Get(ctx, tasks[0].ID)
		return err
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestShiftRangeAndSetPosition(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	tasks := seed(t, store, "alice", "a", "b", "c", "d", "e", "f")

	move := ordering.Plan(2, 5)
	err := store.WithinOwner(ctx, "alice", func(tx repository.OwnerTx) error {
		n, err := tx.ShiftRange(ctx, *move.Shift)
		if err != nil {
			return err
		}
		assert.EqualValues(t, 3, n)
		return tx.SetPosition(ctx, tasks[2].ID, move.To)
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "d", "e", "f", "c"}, listTitles(t, store, "alice"))
}

func TestShiftRangeIsScopedToOwner(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	seed(t, store, "alice", "a", "b", "c")
	seed(t, store, "bob", "x", "y", "z")

	err := store.WithinOwner(ctx, "alice", func(tx repository.OwnerTx) error {
		_, err := tx.ShiftRange(ctx, ordering.Range{Min: 0, Max: ordering.NoUpperBound, Delta: 1})
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"x", "y", "z"}, listTitles(t, store, "bob"))
}

func TestRemoveReturnsPriorPosition(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	tasks := seed(t, store, "alice", "a", "b", "c", "d")

	err := store.WithinOwner(ctx, "alice", func(tx repository.OwnerTx) error {
		pos, err := tx.Remove(ctx, tasks[1].ID)
		if err != nil {
			return err
		}
		assert.Equal(t, 1, pos)
		_, err = tx.ShiftRange(ctx, ordering.Compaction(pos))
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "c", "d"}, listTitles(t, store, "alice"))
}

func TestRemoveUnknownTask(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()

	err := store.WithinOwner(ctx, "alice", func(tx repository.OwnerTx) error {
		_, err := tx.Remove(ctx, "missing")
		return err
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestWithinOwnerRollsBackOnError(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	tasks := seed(t, store, "alice", "a", "b", "c")

	boom := errors.New("boom")
	err := store.WithinOwner(ctx, "alice", func(tx repository.OwnerTx) error {
		if _, err := tx.ShiftRange(ctx, ordering.Range{Min: 1, Max: 2, Delta: -1}); err != nil {
			return err
		}
		if err := tx.SetPosition(ctx, tasks[0].ID, 2); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, []string{"a", "b", "c"}, listTitles(t, store, "alice"))
}

func TestUpdateNeverMovesTask(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	tasks := seed(t, store, "alice", "a", "b")

	changed := tasks[0].Clone()
	changed.Title = "renamed"
	changed.Position = 1
	changed.Status = entity.TaskStatusCompleted

	require.NoError(t, store.WithinOwner(ctx, "alice", func(tx repository.OwnerTx) error {
		return tx.Update(ctx, changed)
	}))

	assert.Equal(t, []string{"renamed", "b"}, listTitles(t, store, "alice"))
}

func TestListFilters(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()

	require.NoError(t, store.WithinOwner(ctx, "alice", func(tx repository.OwnerTx) error {
		for i, seed := range []struct {
			priority entity.Priority
			category string
			tags     []string
		}{
			{entity.PriorityHigh, "work", []string{"urgent"}},
			{entity.PriorityLow, "home", []string{"weekend"}},
			{entity.PriorityHigh, "home", []string{"urgent", "weekend"}},
		} {
			task := entity.NewTask("alice", fmt.Sprintf("t%d", i))
			task.Priority = seed.priority
			task.Category = seed.category
			task.Tags = seed.tags
			if err := tx.Append(ctx, task); err != nil {
				return err
			}
		}
		return nil
	}))

	high := entity.PriorityHigh
	home := "home"
	weekend := "weekend"

	tests := []struct {
		name   string
		filter repository.TaskFilter
		want   []string
	}{
		{name: "No filter", filter: repository.TaskFilter{}, want: []string{"t0", "t1", "t2"}},
		{name: "By priority", filter: repository.TaskFilter{Priority: &high}, want: []string{"t0", "t2"}},
		{name: "By category", filter: repository.TaskFilter{Category: &home}, want: []string{"t1", "t2"}},
		{name: "By tag", filter: repository.TaskFilter{Tag: &weekend}, want: []string{"t1", "t2"}},
		{name: "Combined", filter: repository.TaskFilter{Priority: &high, Tag: &weekend}, want: []string{"t2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			require.NoError(t, store.WithinOwner(ctx, "alice", func(tx repository.OwnerTx) error {
				tasks, err := tx.List(ctx, tt.filter)
				for _, task := range tasks {
					got = append(got, task.Title)
				}
				return err
			}))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFindArmedRemindersAndMarkSent(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	soon := now.Add(5 * time.Second)
	stale := now.Add(-48 * time.Hour)

	armed := entity.NewTask("alice", "armed")
	armed.Reminder = entity.Reminder{Enabled: true, Time: &soon}
	old := entity.NewTask("alice", "old")
	old.Reminder = entity.Reminder{Enabled: true, Time: &stale}
	disabled := entity.NewTask("alice", "disabled")
	disabled.Reminder = entity.Reminder{Enabled: false, Time: &soon}

	require.NoError(t, store.WithinOwner(ctx, "alice", func(tx repository.OwnerTx) error {
		for _, task := range []*entity.Task{armed, old, disabled} {
			if err := tx.Append(ctx, task); err != nil {
				return err
			}
		}
		return nil
	}))

	found, err := store.FindArmedReminders(ctx, now.Add(-24*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, armed.ID, found[0].ID)

	// a stale schedule does not flip the flag
	ok, err := store.MarkReminderSent(ctx, armed.ID, soon.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.MarkReminderSent(ctx, armed.ID, *found[0].Reminder.Time)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.MarkReminderSent(ctx, armed.ID, *found[0].Reminder.Time)
	require.NoError(t, err)
	assert.False(t, ok, "second mark must report already fired")

	found, err = store.FindArmedReminders(ctx, now.Add(-24*time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, found)

	ok, err = store.MarkReminderSent(ctx, "missing", soon)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOwnerUpsert(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()

	_, err := store.FindOwner(ctx, "alice")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, store.SaveOwner(ctx, &entity.Owner{ID: "alice", Email: "a@example.com"}))
	require.NoError(t, store.SaveOwner(ctx, &entity.Owner{ID: "alice", Email: "alice@example.com", DisplayName: "Alice"}))

	owner, err := store.FindOwner(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", owner.Email)
	assert.Equal(t, "Alice", owner.DisplayName)
	assert.Equal(t, entity.Preferences{}, owner.Preferences)

	owner.Preferences = entity.Preferences{"darkMode": true, "theme": "teal", "fontSize": float64(14)}
	require.NoError(t, store.SaveOwner(ctx, owner))

	owner, err = store.FindOwner(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, entity.Preferences{"darkMode": true, "theme": "teal", "fontSize": float64(14)}, owner.Preferences)
}

func TestConcurrentAppendsStayDense(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := store.WithinOwner(ctx, "alice", func(tx repository.OwnerTx) error {
				return tx.Append(ctx, entity.NewTask("alice", fmt.Sprintf("t%d", i)))
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Len(t, listTitles(t, store, "alice"), 20)
}
