package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONBMap maps a PostgreSQL jsonb column onto map[string]any. Provider
// attributes and sync run detail are stored through it.
type JSONBMap map[string]any

// Scan implements sql.Scanner. A NULL column yields a nil map.
func (j *JSONBMap) Scan(src any) error {
	if src == nil {
		*j = nil
		return nil
	}

	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into JSONBMap", src)
	}

	if len(raw) == 0 {
		*j = JSONBMap{}
		return nil
	}

	return json.Unmarshal(raw, j)
}

// Value implements driver.Valuer. Empty and nil maps are stored as an
// empty jsonb object rather than NULL.
func (j *JSONBMap) Value() (driver.Value, error) {
	if j == nil || len(*j) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(j)
}
