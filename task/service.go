package task

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"taskboard/domain"
	"taskboard/domain/entity"
	"taskboard/domain/repository"
	"taskboard/ordering"
)

// Service handles business logic for an owner's ordered task list
type Service struct {
	repo   repository.TaskRepository
	events EventPublisher
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a new task service. A nil publisher discards events.
func NewService(repo repository.TaskRepository, events EventPublisher, logger *zap.Logger) *Service {
	if events == nil {
		events = nopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:   repo,
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

// List returns the owner's tasks in position order, narrowed by filter
func (s *Service) List(ctx context.Context, ownerID string, filter repository.TaskFilter) ([]*entity.Task, error) {
	var tasks []*entity.Task
	err := s.repo.WithinOwner(ctx, ownerID, func(tx repository.OwnerTx) error {
		var err error
		if filter.Empty() {
			tasks, err = tx.ListOrdered(ctx)
		} else {
			tasks, err = tx.List(ctx, filter)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// Get retrieves one of the owner's tasks
func (s *Service) Get(ctx context.Context, ownerID, id string) (*entity.Task, error) {
	var task *entity.Task
	err := s.repo.WithinOwner(ctx, ownerID, func(tx repository.OwnerTx) error {
		var err error
		task, err = tx.Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// Create validates a new task and appends it at the end of the owner's list
func (s *Service) Create(ctx context.Context, ownerID string, task *entity.Task) (*entity.Task, error) {
	if task.ID == "" {
		fresh := entity.NewTask(ownerID, task.Title)
		task.ID, task.CreatedAt, task.UpdatedAt = fresh.ID, fresh.CreatedAt, fresh.UpdatedAt
	}
	task.OwnerID = ownerID
	task.Tags = cleanTags(task.Tags)
	task.Normalize()

	// a derived default time is accepted even when it already passed
	defaulted := applyReminderDefault(task)
	if err := validate(task, s.now(), !defaulted); err != nil {
		return nil, err
	}
	task.Reminder.Sent = false

	err := s.repo.WithinOwner(ctx, ownerID, func(tx repository.OwnerTx) error {
		return tx.Append(ctx, task)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Task created",
		zap.String("owner_id", ownerID),
		zap.String("task_id", task.ID),
		zap.Int("position", task.Position),
		zap.String("reminder_state", string(task.Reminder.State())),
	)
	s.events.Publish(ownerID, Event{Type: EventTaskCreated, TaskID: task.ID, Task: task})
	return task, nil
}

// Update merges an allow-listed patch into an existing task
func (s *Service) Update(ctx context.Context, ownerID, id string, patch TaskPatch) (*entity.Task, error) {
	if patch.Empty() {
		return nil, invalid("no updatable fields in request")
	}

	var updated *entity.Task
	err := s.repo.WithinOwner(ctx, ownerID, func(tx repository.OwnerTx) error {
		current, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}

		next := current.Clone()
		patch.Apply(next)
		if patch.Tags != nil {
			next.Tags = cleanTags(next.Tags)
		}
		next.Normalize()

		checkFuture := false
		if patch.Reminder != nil {
			checkFuture = !applyReminderDefault(next)
		}
		if err := validate(next, s.now(), checkFuture); err != nil {
			return err
		}

		next.Touch()
		if err := tx.Update(ctx, next); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Task updated",
		zap.String("owner_id", ownerID),
		zap.String("task_id", id),
		zap.String("reminder_state", string(updated.Reminder.State())),
	)
	s.events.Publish(ownerID, Event{Type: EventTaskUpdated, TaskID: id, Task: updated})
	return updated, nil
}

// Delete removes a task and closes the gap it leaves in the ordering
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	err := s.repo.WithinOwner(ctx, ownerID, func(tx repository.OwnerTx) error {
		removed, err := tx.Remove(ctx, id)
		if err != nil {
			return err
		}
		_, err = tx.ShiftRange(ctx, ordering.Compaction(removed))
		return err
	})
	if err != nil {
		return err
	}

	s.events.Publish(ownerID, Event{Type: EventTaskDeleted, TaskID: id})
	return nil
}

// Reorder moves one task to a new position and returns the owner's full ordered list.
// Positions past the end are clamped to the last slot.
func (s *Service) Reorder(ctx context.Context, ownerID, taskID string, newPosition int) ([]*entity.Task, error) {
	if newPosition < 0 {
		return nil, invalid("position %d is negative", newPosition)
	}

	var (
		tasks []*entity.Task
		move  ordering.Move
	)
	err := s.repo.WithinOwner(ctx, ownerID, func(tx repository.OwnerTx) error {
		task, err := tx.Get(ctx, taskID)
		if err != nil {
			return err
		}

		count, err := tx.Count(ctx)
		if err != nil {
			return err
		}

		to, err := ordering.Clamp(newPosition, count)
		if err != nil {
			return err
		}

		move = ordering.Plan(task.Position, to)
		if !move.NoOp() {
			if _, err := tx.ShiftRange(ctx, *move.Shift); err != nil {
				return err
			}
			if err := tx.SetPosition(ctx, task.ID, move.To); err != nil {
				return err
			}
		}

		tasks, err = tx.ListOrdered(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	if !move.NoOp() {
		s.logger.Debug("Task reordered",
			zap.String("owner_id", ownerID),
			zap.String("task_id", taskID),
			zap.Int("from", move.From),
			zap.Int("to", move.To),
			zap.Stringer("shift", move.Shift),
		)
		s.events.Publish(ownerID, Event{Type: EventTasksReordered, TaskID: taskID, Tasks: tasks})
	}
	return tasks, nil
}

// Owner returns the delivery profile of an owner, or a blank one when none was saved
func (s *Service) Owner(ctx context.Context, ownerID string) (*entity.Owner, error) {
	owner, err := s.repo.FindOwner(ctx, ownerID)
	if errors.Is(err, domain.ErrNotFound) {
		return &entity.Owner{ID: ownerID}, nil
	}
	if err != nil {
		return nil, err
	}
	return owner, nil
}

// SaveOwner stores the delivery profile of an owner
func (s *Service) SaveOwner(ctx context.Context, owner *entity.Owner) error {
	return s.repo.SaveOwner(ctx, owner)
}
