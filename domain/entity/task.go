package entity

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the progress of a task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in-progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

// Valid reports whether s is a known status
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted:
		return true
	}
	return false
}

// Priority is the user-assigned urgency of a task
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is a known priority
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Frequency is the repeat interval of a recurring task
type Frequency string

const (
	FrequencyNone    Frequency = "none"
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// Valid reports whether f is a known frequency
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyNone, FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// Recurrence describes how a task repeats
type Recurrence struct {
	IsRecurring bool       `json:"isRecurring"`
	Frequency   Frequency  `json:"frequency"`
	EndDate     *time.Time `json:"endDate,omitempty"`
}

// Task is one unit of work owned by exactly one user.
// Position is dense per owner: an owner with n tasks holds positions 0..n-1.
type Task struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"owner"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      TaskStatus `json:"status"`
	Priority    Priority   `json:"priority"`
	Category    string     `json:"category,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Position    int        `json:"position"`
	Tags        []string   `json:"tags"`
	Recurrence  Recurrence `json:"recurring"`
	Reminder    Reminder   `json:"reminder"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// NewTask creates a task with default values. Position is assigned by the store on append.
func NewTask(ownerID, title string) *Task {
	now := storedTime(time.Now())
	return &Task{
		ID:         uuid.New().String(),
		OwnerID:    ownerID,
		Title:      title,
		Status:     TaskStatusPending,
		Priority:   PriorityMedium,
		Tags:       []string{},
		Recurrence: Recurrence{Frequency: FrequencyNone},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Touch bumps the update timestamp
func (t *Task) Touch() {
	t.UpdatedAt = storedTime(time.Now())
}

// Normalize converts every timestamp to UTC and fills empty enum values with defaults
func (t *Task) Normalize() {
	if t.Status == "" {
		t.Status = TaskStatusPending
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if t.Recurrence.Frequency == "" {
		t.Recurrence.Frequency = FrequencyNone
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	t.DueDate = utcPtr(t.DueDate)
	t.Recurrence.EndDate = utcPtr(t.Recurrence.EndDate)
	t.Reminder.Time = utcPtr(t.Reminder.Time)
	t.CreatedAt = storedTime(t.CreatedAt)
	t.UpdatedAt = storedTime(t.UpdatedAt)
}

// Clone returns a deep copy of the task
func (t *Task) Clone() *Task {
	c := *t
	c.Tags = append([]string{}, t.Tags...)
	c.DueDate = copyTime(t.DueDate)
	c.Recurrence.EndDate = copyTime(t.Recurrence.EndDate)
	c.Reminder.Time = copyTime(t.Reminder.Time)
	return &c
}

// storedTime is the representation every backend round-trips exactly: UTC, microseconds
func storedTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := storedTime(*t)
	return &u
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
