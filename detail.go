package vrm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strconv"
)

// ContactDetail is a single contact including the values of all its custom
// fields.
//
// Custom fields arrive as top-level properties of the document named after
// their bucket id, next to the fixed properties below.
type ContactDetail struct {
	// Location is the geo position of the contact.
	Location Geo `json:"$loc"`
	// ContactID is the unique id of the contact.
	ContactID ContactID `json:"con_id"`
	// ParentID is the id of the parent contact, if any.
	ParentID ContactID `json:"con_pid,omitempty"`
	// Name is the full name of the contact.
	Name string `json:"name"`

	// FieldsByBucket holds the field groups keyed by bucket.
	FieldsByBucket map[BucketID]FieldGroup `json:"-"`

	buckets []BucketID
}

// UnmarshalJSON implements the [json.Unmarshaler] interface.
func (d *ContactDetail) UnmarshalJSON(data []byte) error {
	if jsonKind(data) != '{' {
		return &SchemaParseError{Reason: "contact detail is not an object"}
	}

	type alias ContactDetail
	var fixed alias
	if err := json.Unmarshal(data, &fixed); err != nil {
		return err
	}
	*d = ContactDetail(fixed)
	d.FieldsByBucket = map[BucketID]FieldGroup{}
	d.buckets = nil

	return walkObject(data, func(key string, value json.RawMessage) error {
		id, ok := parseBucketKey(key)
		if !ok {
			return nil
		}

		var group FieldGroup
		if err := json.Unmarshal(value, &group); err != nil {
			var schemaErr *SchemaParseError
			if errors.As(err, &schemaErr) && schemaErr.Key == "" {
				schemaErr.Key = key
				return schemaErr
			}
			return fmt.Errorf("bucket %s: %w", key, err)
		}
		if group.Fields == nil {
			group.Fields = map[string]Field{}
		}

		if _, dup := d.FieldsByBucket[id]; !dup {
			d.buckets = append(d.buckets, id)
		}
		d.FieldsByBucket[id] = group
		return nil
	})
}

// MarshalJSON implements the [json.Marshaler] interface. Field groups are
// written as top-level properties named after their bucket.
func (d ContactDetail) MarshalJSON() ([]byte, error) {
	type alias ContactDetail
	fixed, err := json.Marshal(alias(d))
	if err != nil {
		return nil, err
	}
	if len(d.FieldsByBucket) == 0 {
		return fixed, nil
	}

	var buf bytes.Buffer
	buf.Write(fixed[:len(fixed)-1])
	for _, id := range d.Buckets() {
		g := d.FieldsByBucket[id]
		if g.Fields == nil {
			g.Fields = map[string]Field{}
		}
		group, err := json.Marshal(g)
		if err != nil {
			return nil, err
		}
		buf.WriteString(`,"` + id.String() + `":`)
		buf.Write(group)
	}
	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// parseBucketKey reports whether key names a bucket: a non-negative base 10
// integer without sign.
func parseBucketKey(key string) (BucketID, bool) {
	n, err := strconv.ParseUint(key, 10, strconv.IntSize-1)
	if err != nil {
		return 0, false
	}
	return BucketID(n), true
}

// Buckets returns the ids of the contact's field groups in document order.
func (d *ContactDetail) Buckets() []BucketID {
	if len(d.buckets) == len(d.FieldsByBucket) {
		return slices.Clone(d.buckets)
	}

	ids := make([]BucketID, 0, len(d.FieldsByBucket))
	for id := range d.FieldsByBucket {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// AllFields returns every field of every bucket, bucket by bucket.
func (d *ContactDetail) AllFields() iter.Seq[Field] {
	return func(yield func(Field) bool) {
		for _, id := range d.Buckets() {
			for f := range d.FieldsByBucket[id].All() {
				if !yield(f) {
					return
				}
			}
		}
	}
}

// ParseContactDetail decodes and verifies a raw contact detail response.
func ParseContactDetail(raw []byte) (*ContactDetail, error) {
	env, err := DecodeResponse[json.RawMessage](raw)
	if err != nil {
		return nil, err
	}

	data, err := env.Verify()
	if err != nil {
		return nil, err
	}

	if jsonKind(data) != '{' {
		return nil, &SchemaParseError{Key: "data", Reason: "missing data object"}
	}

	var detail ContactDetail
	if err := json.Unmarshal(data, &detail); err != nil {
		var schemaErr *SchemaParseError
		if errors.As(err, &schemaErr) {
			return nil, schemaErr
		}
		return nil, fmt.Errorf("decode contact detail: %w", err)
	}

	return &detail, nil
}

// jsonKind returns the first significant byte of a JSON value, or 0 if the
// value is empty.
func jsonKind(raw []byte) byte {
	raw = bytes.TrimLeft(raw, " \t\r\n")
	if len(raw) == 0 {
		return 0
	}
	return raw[0]
}

// isEmptyArray reports whether raw is the JSON array [].
func isEmptyArray(raw []byte) bool {
	var items []json.RawMessage
	return json.Unmarshal(raw, &items) == nil && items != nil && len(items) == 0
}

// walkObject calls fn for each property of the JSON object in data, in
// document order.
func walkObject(data []byte, fn func(key string, value json.RawMessage) error) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return &SchemaParseError{Reason: "not an object"}
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v", tok)
		}

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return err
		}
		if err := fn(key, value); err != nil {
			return err
		}
	}

	_, err = dec.Token()
	return err
}

// decodeOrdered decodes a JSON object into a map and remembers the key order.
// The server sends empty objects as [], which decodes to an empty map, as
// does an absent value.
func decodeOrdered[V any](raw json.RawMessage) (map[string]V, []string, error) {
	out := map[string]V{}

	switch jsonKind(raw) {
	case 0:
		return out, nil, nil
	case '[':
		if !isEmptyArray(raw) {
			return nil, nil, &SchemaParseError{Key: "fields", Reason: "non-empty array"}
		}
		return out, nil, nil
	case '{':
	default:
		return nil, nil, &SchemaParseError{Key: "fields", Reason: "neither an object nor an array"}
	}

	var order []string
	err := walkObject(raw, func(key string, value json.RawMessage) error {
		var v V
		if err := json.Unmarshal(value, &v); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if _, dup := out[key]; !dup {
			order = append(order, key)
		}
		out[key] = v
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return out, order, nil
}
