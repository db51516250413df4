package repository

import (
	"context"
	"time"

	"taskboard/domain/entity"
	"taskboard/ordering"
)

// TaskRepository is the persistence contract for ordered, per-owner task lists
type TaskRepository interface {
	// WithinOwner runs fn as one atomic unit serialized against every other unit for the
	// same owner. Returning an error from fn rolls back every change it made.
	WithinOwner(ctx context.Context, ownerID string, fn func(tx OwnerTx) error) error

	// FindArmedReminders returns tasks of all owners whose reminder is enabled, unsent and timed
	// strictly after the given instant, ordered by reminder time
	FindArmedReminders(ctx context.Context, after time.Time, limit int) ([]*entity.Task, error)

	// MarkReminderSent flips reminder.sent only if the reminder is still armed for scheduledFor.
	// It reports false when the reminder was edited or already fired in the meantime.
	MarkReminderSent(ctx context.Context, taskID string, scheduledFor time.Time) (bool, error)

	FindOwner(ctx context.Context, id string) (*entity.Owner, error)
	SaveOwner(ctx context.Context, owner *entity.Owner) error

	Ping(ctx context.Context) error
	Close() error
}

// OwnerTx exposes the ordered task store operations scoped to a single owner
type OwnerTx interface {
	Count(ctx context.Context) (int, error)

	// Append assigns position = Count and inserts the task
	Append(ctx context.Context, task *entity.Task) error

	Get(ctx context.Context, id string) (*entity.Task, error)

	// Update writes the mutable fields of a task. Owner and position are never written.
	Update(ctx context.Context, task *entity.Task) error

	// Remove deletes the task and returns its prior position
	Remove(ctx context.Context, id string) (int, error)

	ShiftRange(ctx context.Context, r ordering.Range) (int64, error)
	SetPosition(ctx context.Context, id string, position int) error

	ListOrdered(ctx context.Context) ([]*entity.Task, error)
	List(ctx context.Context, filter TaskFilter) ([]*entity.Task, error)
}

// TaskFilter narrows an owner's ordered task list
type TaskFilter struct {
	Status   *entity.TaskStatus
	Priority *entity.Priority
	Category *string
	Tag      *string
}

// Empty reports whether the filter matches every task
func (f TaskFilter) Empty() bool {
	return f.Status == nil && f.Priority == nil && f.Category == nil && f.Tag == nil
}

// Matches applies the filter to a task in memory
func (f TaskFilter) Matches(t *entity.Task) bool {
	if f.Status != nil && t.Status != *f.Status {
		return false
	}
	if f.Priority != nil && t.Priority != *f.Priority {
		return false
	}
	if f.Category != nil && t.Category != *f.Category {
		return false
	}
	if f.Tag != nil {
		for _, tag := range t.Tags {
			if tag == *f.Tag {
				return true
			}
		}
		return false
	}
	return true
}
