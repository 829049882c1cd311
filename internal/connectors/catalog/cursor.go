package catalog

import (
	"encoding/base64"
	"encoding/json"
)

// CursorVersion is the current cursor schema version.
const CursorVersion = 1

// Cursor tracks the position of an enumeration.
// It is handed to callers as an opaque string.
type Cursor struct {
	// Version is the schema version for future migrations.
	Version int `json:"v"`

	// Page is the 1-based page to request next.
	Page int `json:"page"`
}

// NewCursor creates a cursor pointing at the given page.
func NewCursor(page int) *Cursor {
	return &Cursor{
		Version: CursorVersion,
		Page:    page,
	}
}

// Encode serializes the cursor to a base64-encoded JSON string.
func (c *Cursor) Encode() string {
	if c == nil {
		return ""
	}
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeCursor deserializes a cursor from its encoded form.
// An empty string yields a cursor for the first page.
func DecodeCursor(s string) (*Cursor, error) {
	if s == "" {
		return NewCursor(1), nil
	}

	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	var cursor Cursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return nil, ErrInvalidCursor
	}
	if cursor.Version != CursorVersion || cursor.Page < 1 {
		return nil, ErrInvalidCursor
	}

	return &cursor, nil
}

// Next returns the cursor for the following page.
func (c *Cursor) Next() *Cursor {
	return NewCursor(c.Page + 1)
}
