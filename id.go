package vrm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// BucketID identifies a bucket, a namespace of custom contact fields.
type BucketID int

// UserID identifies a user of the service.
type UserID int

// FieldID identifies a custom field.
type FieldID int

// NoteID identifies a note attached to a contact.
type NoteID int

// ContactID identifies a contact. The service uses opaque strings.
type ContactID string

// BookmarkID identifies a saved contact filter.
type BookmarkID string

func (id BucketID) String() string   { return strconv.Itoa(int(id)) }
func (id UserID) String() string     { return strconv.Itoa(int(id)) }
func (id FieldID) String() string    { return strconv.Itoa(int(id)) }
func (id NoteID) String() string     { return strconv.Itoa(int(id)) }
func (id ContactID) String() string  { return string(id) }
func (id BookmarkID) String() string { return string(id) }

// UnmarshalJSON implements the [json.Unmarshaler] interface.
func (id *BucketID) UnmarshalJSON(data []byte) error { return unmarshalIntID(data, (*int)(id)) }

// UnmarshalJSON implements the [json.Unmarshaler] interface.
func (id *UserID) UnmarshalJSON(data []byte) error { return unmarshalIntID(data, (*int)(id)) }

// UnmarshalJSON implements the [json.Unmarshaler] interface.
func (id *FieldID) UnmarshalJSON(data []byte) error { return unmarshalIntID(data, (*int)(id)) }

// UnmarshalJSON implements the [json.Unmarshaler] interface.
func (id *NoteID) UnmarshalJSON(data []byte) error { return unmarshalIntID(data, (*int)(id)) }

// unmarshalIntID decodes an integer identifier sent either as a JSON number
// or as a quoted integer.
func unmarshalIntID(data []byte, v *int) error {
	if string(data) == "null" {
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("invalid integer id %q: %w", s, err)
		}
		*v = n
		return nil
	}

	return json.Unmarshal(data, v)
}

// OrgID identifies an organisation. Its wire type is not documented, so the
// raw JSON literal is kept and written back unchanged.
type OrgID struct {
	raw string
}

// String returns the identifier without JSON quoting.
func (id OrgID) String() string {
	var s string
	if err := json.Unmarshal([]byte(id.raw), &s); err == nil {
		return s
	}
	return id.raw
}

// IsZero reports whether the identifier was absent or null.
func (id OrgID) IsZero() bool {
	return id.raw == "" || id.raw == "null"
}

// MarshalJSON implements the [json.Marshaler] interface.
func (id OrgID) MarshalJSON() ([]byte, error) {
	if id.raw == "" {
		return []byte("null"), nil
	}
	return []byte(id.raw), nil
}

// UnmarshalJSON implements the [json.Unmarshaler] interface.
func (id *OrgID) UnmarshalJSON(data []byte) error {
	id.raw = string(bytes.TrimSpace(data))
	return nil
}
