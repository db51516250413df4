package dto

import (
	"fmt"

	"taskboard/domain/entity"
	"taskboard/domain/repository"
	"taskboard/task"
)

// ReminderRequest is the reminder block a client may send. The sent flag is
// owned by the scheduler and never read from requests.
type ReminderRequest struct {
	Enabled bool        `json:"enabled"`
	Time    *CustomTime `json:"time"`
}

func (r *ReminderRequest) toEntity() entity.Reminder {
	rem := entity.Reminder{Enabled: r.Enabled}
	if r.Time != nil {
		rem.Time = r.Time.ToTime()
	}
	return rem
}

// RecurrenceRequest is the repeat block of a task
type RecurrenceRequest struct {
	IsRecurring bool        `json:"isRecurring"`
	Frequency   string      `json:"frequency" binding:"omitempty,oneof=none daily weekly monthly"`
	EndDate     *CustomTime `json:"endDate"`
}

func (r *RecurrenceRequest) toEntity() entity.Recurrence {
	rec := entity.Recurrence{
		IsRecurring: r.IsRecurring,
		Frequency:   entity.Frequency(r.Frequency),
	}
	if r.EndDate != nil {
		rec.EndDate = r.EndDate.ToTime()
	}
	return rec
}

// CreateTaskRequest represents a request to create a new task.
// Owner, position and timestamps are assigned by the server.
type CreateTaskRequest struct {
	Title       string             `json:"title" binding:"required"`
	Description string             `json:"description"`
	Status      string             `json:"status" binding:"omitempty,oneof=pending in-progress completed"`
	Priority    string             `json:"priority" binding:"omitempty,oneof=low medium high"`
	Category    string             `json:"category"`
	DueDate     *CustomTime        `json:"dueDate"`
	Tags        []string           `json:"tags"`
	Recurring   *RecurrenceRequest `json:"recurring"`
	Reminder    *ReminderRequest   `json:"reminder"`
}

// ToModel converts CreateTaskRequest to a Task entity owned by ownerID
func (r *CreateTaskRequest) ToModel(ownerID string) *entity.Task {
	t := entity.NewTask(ownerID, r.Title)
	t.Description = r.Description
	t.Status = entity.TaskStatus(r.Status)
	t.Priority = entity.Priority(r.Priority)
	t.Category = r.Category
	if r.DueDate != nil {
		t.DueDate = r.DueDate.ToTime()
	}
	if r.Tags != nil {
		t.Tags = r.Tags
	}
	if r.Recurring != nil {
		t.Recurrence = r.Recurring.toEntity()
	}
	if r.Reminder != nil {
		t.Reminder = r.Reminder.toEntity()
	}
	return t
}

// UpdateTaskRequest carries a partial update. Absent fields are left untouched;
// dueDate may be sent as null to clear it.
type UpdateTaskRequest struct {
	Title       *string            `json:"title"`
	Description *string            `json:"description"`
	Status      *string            `json:"status" binding:"omitempty,oneof=pending in-progress completed"`
	Priority    *string            `json:"priority" binding:"omitempty,oneof=low medium high"`
	Category    *string            `json:"category"`
	DueDate     NullableTime       `json:"dueDate"`
	Tags        *[]string          `json:"tags"`
	Recurring   *RecurrenceRequest `json:"recurring"`
	Reminder    *ReminderRequest   `json:"reminder"`
}

// ToPatch converts the request into the service's allow-listed patch
func (r *UpdateTaskRequest) ToPatch() task.TaskPatch {
	p := task.TaskPatch{
		Title:       r.Title,
		Description: r.Description,
		Category:    r.Category,
		Tags:        r.Tags,
	}
	if r.Status != nil {
		s := entity.TaskStatus(*r.Status)
		p.Status = &s
	}
	if r.Priority != nil {
		pr := entity.Priority(*r.Priority)
		p.Priority = &pr
	}
	if r.DueDate.Set {
		p.DueDate = task.Some(r.DueDate.Value)
	}
	if r.Recurring != nil {
		rec := r.Recurring.toEntity()
		p.Recurrence = &rec
	}
	if r.Reminder != nil {
		rem := r.Reminder.toEntity()
		p.Reminder = &rem
	}
	return p
}

// ReorderRequest moves one task to a new position. newPosition must be a JSON integer.
type ReorderRequest struct {
	TaskID      string `json:"taskId" binding:"required"`
	NewPosition *int   `json:"newPosition" binding:"required"`
}

// ListTasksQuery represents query parameters for listing tasks
type ListTasksQuery struct {
	Status   string `form:"status" binding:"omitempty,oneof=pending in-progress completed"`
	Priority string `form:"priority" binding:"omitempty,oneof=low medium high"`
	Category string `form:"category"`
	Tag      string `form:"tag"`
}

// ToRepositoryFilter converts ListTasksQuery to repository filter
func (q *ListTasksQuery) ToRepositoryFilter() repository.TaskFilter {
	var filter repository.TaskFilter
	if q.Status != "" {
		s := entity.TaskStatus(q.Status)
		filter.Status = &s
	}
	if q.Priority != "" {
		p := entity.Priority(q.Priority)
		filter.Priority = &p
	}
	if q.Category != "" {
		filter.Category = &q.Category
	}
	if q.Tag != "" {
		filter.Tag = &q.Tag
	}
	return filter
}

// maxPreferenceKeys bounds the free-form settings stored per owner
const maxPreferenceKeys = 64

// SettingsRequest updates the owner's profile and preferences. Absent keys keep their
// value. Keys other than the named fields are stored as they are; null removes one.
type SettingsRequest struct {
	Email                *string `json:"email" binding:"omitempty,email"`
	DisplayName          *string `json:"displayName" binding:"omitempty,max=255"`
	DarkMode             *bool   `json:"darkMode"`
	NotificationsEnabled *bool   `json:"notificationsEnabled"`
	Theme                *string `json:"theme" binding:"omitempty,max=50"`

	extra entity.Preferences
}

var settingsFields = map[string]bool{
	"email":                true,
	"displayName":          true,
	"darkMode":             true,
	"notificationsEnabled": true,
	"theme":                true,
}

// Collect keeps the keys of body that have no named field
func (r *SettingsRequest) Collect(body map[string]any) error {
	r.extra = entity.Preferences{}
	for k, v := range body {
		if settingsFields[k] {
			continue
		}
		r.extra[k] = v
	}
	if len(r.extra) > maxPreferenceKeys {
		return fmt.Errorf("too many settings: at most %d custom keys are allowed", maxPreferenceKeys)
	}
	return nil
}

// Apply merges the request into owner
func (r *SettingsRequest) Apply(owner *entity.Owner) error {
	if r.Email != nil {
		owner.Email = *r.Email
	}
	if r.DisplayName != nil {
		owner.DisplayName = *r.DisplayName
	}

	patch := entity.Preferences{}
	for k, v := range r.extra {
		patch[k] = v
	}
	if r.DarkMode != nil {
		patch["darkMode"] = *r.DarkMode
	}
	if r.NotificationsEnabled != nil {
		patch["notificationsEnabled"] = *r.NotificationsEnabled
	}
	if r.Theme != nil {
		patch["theme"] = *r.Theme
	}

	merged := owner.Preferences.Merge(patch)
	if len(merged) > maxPreferenceKeys {
		return fmt.Errorf("too many settings: at most %d keys are stored", maxPreferenceKeys)
	}
	owner.Preferences = merged
	return nil
}

// SettingsResponse is the flat settings object returned to clients: the preferences
// over their defaults, plus email and displayName
type SettingsResponse map[string]any

// NewSettingsResponse builds the response for owner
func NewSettingsResponse(owner *entity.Owner) SettingsResponse {
	out := SettingsResponse(entity.DefaultPreferences().Merge(owner.Preferences))
	out["email"] = owner.Email
	out["displayName"] = owner.DisplayName
	return out
}
