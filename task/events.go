package task

import "taskboard/domain/entity"

// Board change event types
const (
	EventTaskCreated    = "task_created"
	EventTaskUpdated    = "task_updated"
	EventTaskDeleted    = "task_deleted"
	EventTasksReordered = "tasks_reordered"
	EventReminderSent   = "reminder_sent"
)

// Event describes one change to an owner's board
type Event struct {
	Type   string         `json:"type"`
	TaskID string         `json:"taskId,omitempty"`
	Task   *entity.Task   `json:"task,omitempty"`
	Tasks  []*entity.Task `json:"tasks,omitempty"`
}

// EventPublisher fans board changes out to the owner's live clients.
// Publish must not block the caller.
type EventPublisher interface {
	Publish(ownerID string, event Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, Event) {}
