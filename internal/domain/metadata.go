package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// MetadataMap is a free-form string-keyed map stored as JSONB. It implements
// driver.Valuer and sql.Scanner so sqlx can move it through jsonb columns.
type MetadataMap map[string]any

// Value implements driver.Valuer.
func (m MetadataMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *MetadataMap) Scan(src any) error {
	if src == nil {
		*m = MetadataMap{}
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("metadata: cannot scan %T", src)
	}
	if len(data) == 0 {
		*m = MetadataMap{}
		return nil
	}
	return json.Unmarshal(data, m)
}

// Bool reads a truthy flag from the map. Accepts bool true, the strings
// "true"/"1"/"yes", and non-zero numbers — provider metadata is not strictly
// typed on the wire.
func (m MetadataMap) Bool(key string) bool {
	v, ok := m[key]
	if !ok {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "true" || t == "1" || t == "yes"
	case float64:
		return t != 0
	case int:
		return t != 0
	default:
		return false
	}
}

// String reads a string value from the map, "" when absent or not a string.
func (m MetadataMap) String(key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// Value implements driver.Valuer; lists are stored as jsonb arrays.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src any) error {
	if src == nil {
		*l = StringList{}
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("string list: cannot scan %T", src)
	}
	if len(data) == 0 {
		*l = StringList{}
		return nil
	}
	return json.Unmarshal(data, l)
}
