// Package notify delivers task reminders to their owners.
package notify

import (
	"context"

	"go.uber.org/zap"

	"taskboard/domain/entity"
)

// Deliverer sends one reminder. Implementations must tolerate being called again
// for a reminder that was already delivered.
type Deliverer interface {
	Deliver(ctx context.Context, task *entity.Task, owner *entity.Owner) error
}

// LogDeliverer records reminders in the log instead of sending them.
// It is used when mail delivery is disabled.
type LogDeliverer struct {
	logger *zap.Logger
}

// NewLogDeliverer creates a deliverer that only logs
func NewLogDeliverer(logger *zap.Logger) *LogDeliverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogDeliverer{logger: logger}
}

func (d *LogDeliverer) Deliver(_ context.Context, task *entity.Task, owner *entity.Owner) error {
	fields := []zap.Field{
		zap.String("task_id", task.ID),
		zap.String("owner_id", owner.ID),
		zap.String("title", task.Title),
		zap.String("subject", Subject(task)),
	}
	if task.Reminder.Time != nil {
		fields = append(fields, zap.Time("reminder_time", *task.Reminder.Time))
	}
	d.logger.Info("Reminder due", fields...)
	return nil
}
