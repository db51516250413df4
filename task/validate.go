package task

import (
	"fmt"
	"strings"
	"time"

	"taskboard/domain"
	"taskboard/domain/entity"
)

// defaultReminderLead is how long before the due date a reminder fires when the
// client enables one without choosing a time
const defaultReminderLead = time.Hour

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// applyReminderDefault schedules an enabled, untimed reminder one hour before the due date.
// It reports whether a default was applied.
func applyReminderDefault(t *entity.Task) bool {
	if !t.Reminder.Enabled || t.Reminder.Time != nil || t.DueDate == nil {
		return false
	}
	at := t.DueDate.Add(-defaultReminderLead)
	t.Reminder.Time = &at
	return true
}

// cleanTags trims every tag and drops empty ones
func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

// validate checks a task about to be written. checkFuture requires a client-chosen
// reminder time to lie after now.
func validate(t *entity.Task, now time.Time, checkFuture bool) error {
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		return invalid("title is required")
	}
	if !t.Status.Valid() {
		return invalid("unknown status %q", t.Status)
	}
	if !t.Priority.Valid() {
		return invalid("unknown priority %q", t.Priority)
	}
	if !t.Recurrence.Frequency.Valid() {
		return invalid("unknown recurrence frequency %q", t.Recurrence.Frequency)
	}
	if t.Recurrence.IsRecurring && t.Recurrence.Frequency == entity.FrequencyNone {
		return invalid("recurring task needs a frequency")
	}
	if t.Recurrence.EndDate != nil && t.DueDate != nil && t.Recurrence.EndDate.Before(*t.DueDate) {
		return invalid("recurrence end date is before the due date")
	}

	if rt := t.Reminder.Time; rt != nil {
		if t.DueDate != nil && rt.After(*t.DueDate) {
			return invalid("reminder time is after the due date")
		}
		if checkFuture && !rt.After(now) {
			return invalid("reminder time must be in the future")
		}
	}
	return nil
}
