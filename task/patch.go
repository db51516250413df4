package task

import (
	"time"

	"taskboard/domain/entity"
)

// Optional distinguishes an absent field from an explicit null
type Optional[T any] struct {
	Set   bool
	Value T
}

// Some returns a present Optional holding v
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

// TaskPatch is the allow-list of client-editable task fields.
// Owner, position and timestamps have no slot here and can never be written by a client.
type TaskPatch struct {
	Title       *string
	Description *string
	Status      *entity.TaskStatus
	Priority    *entity.Priority
	Category    *string
	DueDate     Optional[*time.Time]
	Tags        *[]string
	Recurrence  *entity.Recurrence
	Reminder    *entity.Reminder
}

// Empty reports whether the patch carries no field at all
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil && p.Priority == nil &&
		p.Category == nil && !p.DueDate.Set && p.Tags == nil && p.Recurrence == nil && p.Reminder == nil
}

// Apply merges the patch into t. Any reminder in the patch re-arms delivery,
// whatever the client sent for the sent flag.
func (p TaskPatch) Apply(t *entity.Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.DueDate.Set {
		t.DueDate = p.DueDate.Value
	}
	if p.Tags != nil {
		t.Tags = append([]string{}, (*p.Tags)...)
	}
	if p.Recurrence != nil {
		t.Recurrence = *p.Recurrence
	}
	if p.Reminder != nil {
		t.Reminder = *p.Reminder
		t.Reminder.Rearm()
	}
}
