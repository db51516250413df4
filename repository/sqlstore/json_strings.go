package sqlstore

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// jsonStrings stores a string list as a JSON array in a text or JSON column
type jsonStrings []string

// Value implements the driver.Valuer interface
func (s jsonStrings) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface
func (s *jsonStrings) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*s = jsonStrings{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into jsonStrings", value)
	}

	if len(raw) == 0 {
		*s = jsonStrings{}
		return nil
	}

	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("failed to unmarshal tags: %w", err)
	}
	if out == nil {
		out = []string{}
	}
	*s = out
	return nil
}

// jsonObject stores owner preferences as a JSON object in a text or JSON column
type jsonObject map[string]any

// Value implements the driver.Valuer interface
func (o jsonObject) Value() (driver.Value, error) {
	if o == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]any(o))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface
func (o *jsonObject) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*o = jsonObject{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into jsonObject", value)
	}

	out := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return fmt.Errorf("failed to unmarshal preferences: %w", err)
		}
	}
	if out == nil {
		out = map[string]any{}
	}
	*o = out
	return nil
}
