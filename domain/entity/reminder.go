package entity

import "time"

// ReminderState is the delivery state of a task reminder
type ReminderState string

const (
	ReminderDisabled ReminderState = "disabled"
	ReminderArmed    ReminderState = "armed"
	ReminderFired    ReminderState = "fired"
)

// Reminder is the notification block embedded in a task
type Reminder struct {
	Enabled bool       `json:"enabled"`
	Time    *time.Time `json:"time,omitempty"`
	Sent    bool       `json:"sent"`
}

// State derives the reminder state. An enabled reminder with no time never fires and
// is reported as disabled.
func (r Reminder) State() ReminderState {
	switch {
	case !r.Enabled || r.Time == nil:
		return ReminderDisabled
	case r.Sent:
		return ReminderFired
	default:
		return ReminderArmed
	}
}

// Rearm resets delivery state after any client edit to the reminder block
func (r *Reminder) Rearm() {
	r.Sent = false
}
