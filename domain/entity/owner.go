package entity

// Owner is the user holding exclusive rights over a set of tasks
type Owner struct {
	ID          string      `json:"id" db:"id"`
	Email       string      `json:"email" db:"email"`
	DisplayName string      `json:"displayName" db:"display_name"`
	Preferences Preferences `json:"preferences,omitempty" db:"preferences"`
}

// Preferences are the free-form client settings stored for an owner
type Preferences map[string]any

// DefaultPreferences are reported for keys an owner never set
func DefaultPreferences() Preferences {
	return Preferences{
		"darkMode":             false,
		"notificationsEnabled": true,
		"theme":                "purple",
	}
}

// Merge returns a copy of p with patch applied. A nil value removes the key.
func (p Preferences) Merge(patch Preferences) Preferences {
	out := make(Preferences, len(p)+len(patch))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range patch {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}
