package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Metadata is a bounded JSON value: the dedicated tagged-variant type the
// data layer uses in place of duck-typed maps (spec's Design Notes §9).
// Depth/size sanitisation happens at the HTTP boundary
// (internal/validation); this type only knows how to round-trip itself
// through the database.
type Metadata map[string]interface{}

// Value implements driver.Valuer, marshaling Metadata to a JSON column.
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(map[string]interface{}(m))
	if err != nil {
		return nil, fmt.Errorf("metadata: marshal: %w", err)
	}
	return b, nil
}

// Scan implements sql.Scanner, unmarshaling a JSON/JSONB column.
func (m *Metadata) Scan(src interface{}) error {
	if src == nil {
		*m = Metadata{}
		return nil
	}

	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("metadata: unsupported scan type %T", src)
	}

	if len(raw) == 0 {
		*m = Metadata{}
		return nil
	}

	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("metadata: unmarshal: %w", err)
	}
	*m = Metadata(out)
	return nil
}
