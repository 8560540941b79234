package vrm

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"maps"
	"net/http"
	"slices"
)

// FieldType defines the value type of a custom field.
type FieldType string

const (
	FieldTypeInt    FieldType = "int"
	FieldTypeEmail  FieldType = "email"
	FieldTypeDate   FieldType = "date"
	FieldTypeBool   FieldType = "bool"
	FieldTypeString FieldType = "string"
)

// Valid reports whether t is one of the known field types.
func (t FieldType) Valid() bool {
	switch t {
	case FieldTypeInt, FieldTypeEmail, FieldTypeDate, FieldTypeBool, FieldTypeString:
		return true
	}
	return false
}

// UnmarshalText implements the [encoding.TextUnmarshaler] interface.
func (t *FieldType) UnmarshalText(text []byte) error {
	ft := FieldType(text)
	if !ft.Valid() {
		return fmt.Errorf("unknown field type %q", text)
	}
	*t = ft
	return nil
}

// Field is a custom field together with its value for one contact.
type Field struct {
	ID    FieldID   `json:"id"`
	Name  string    `json:"name"`
	Label string    `json:"label"`
	Type  FieldType `json:"type"`
	// Value is always a string; numbers and booleans are kept in their JSON
	// text form.
	Value string `json:"value"`
}

// UnmarshalJSON implements the [json.Unmarshaler] interface.
func (f *Field) UnmarshalJSON(data []byte) error {
	type alias Field
	aux := struct {
		*alias
		Value json.RawMessage `json:"value"`
	}{alias: (*alias)(f)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	f.Value = scalarString(aux.Value)
	return nil
}

// scalarString returns the string form of a JSON scalar.
func scalarString(raw json.RawMessage) string {
	switch jsonKind(raw) {
	case 0, 'n':
		return ""
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}

// FieldGroup is the set of field values of one bucket for one contact.
type FieldGroup struct {
	// Title is the name of the bucket.
	Title string `json:"title"`
	// Type is the bucket kind, for example "default" or "field".
	Type string `json:"type"`
	// Fields is keyed by [Field.Name].
	Fields map[string]Field `json:"fields"`

	order []string
}

// UnmarshalJSON implements the [json.Unmarshaler] interface.
// The server sends an empty field set as [] instead of {}; both decode to an
// empty map. Any other array, null or scalar is a [*SchemaParseError].
func (g *FieldGroup) UnmarshalJSON(data []byte) error {
	switch jsonKind(data) {
	case '[':
		if !isEmptyArray(data) {
			return &SchemaParseError{Reason: "field group is a non-empty array"}
		}
		*g = FieldGroup{Fields: map[string]Field{}}
		return nil
	case '{':
	default:
		return &SchemaParseError{Reason: "field group is neither an object nor an array"}
	}

	var aux struct {
		Title  string          `json:"title"`
		Type   string          `json:"type"`
		Fields json.RawMessage `json:"fields"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	fields, order, err := decodeOrdered[Field](aux.Fields)
	if err != nil {
		return err
	}

	*g = FieldGroup{Title: aux.Title, Type: aux.Type, Fields: fields, order: order}
	return nil
}

// All returns the fields of the group in document order. Groups built by
// hand iterate in name order.
func (g FieldGroup) All() iter.Seq[Field] {
	return func(yield func(Field) bool) {
		for _, name := range orderedKeys(g.Fields, g.order) {
			if !yield(g.Fields[name]) {
				return
			}
		}
	}
}

// orderedKeys returns order if it describes m, otherwise the sorted keys of m.
func orderedKeys[V any](m map[string]V, order []string) []string {
	if len(order) == len(m) {
		return order
	}
	return slices.Sorted(maps.Keys(m))
}

// FieldDescriptor is the definition of a field independent of any contact.
type FieldDescriptor struct {
	ID    FieldID   `json:"id"`
	Type  FieldType `json:"type"`
	Name  string    `json:"name"`
	Label string    `json:"label"`
}

// FieldDescriptorGroup holds the field definitions of one bucket.
type FieldDescriptorGroup struct {
	ID    BucketID `json:"id"`
	Title string   `json:"title"`
	// Fields is keyed by [FieldDescriptor.Name].
	Fields map[string]FieldDescriptor `json:"fields"`

	order []string
}

// UnmarshalJSON implements the [json.Unmarshaler] interface.
func (g *FieldDescriptorGroup) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID     BucketID        `json:"id"`
		Title  string          `json:"title"`
		Fields json.RawMessage `json:"fields"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	fields, order, err := decodeOrdered[FieldDescriptor](aux.Fields)
	if err != nil {
		return err
	}

	*g = FieldDescriptorGroup{ID: aux.ID, Title: aux.Title, Fields: fields, order: order}
	return nil
}

// All returns the field descriptors in document order.
func (g FieldDescriptorGroup) All() iter.Seq[FieldDescriptor] {
	return func(yield func(FieldDescriptor) bool) {
		for _, name := range orderedKeys(g.Fields, g.order) {
			if !yield(g.Fields[name]) {
				return
			}
		}
	}
}

// NewFieldDescriptor is the body of a field creation request.
type NewFieldDescriptor struct {
	// BucketID is the bucket the field will be added to.
	BucketID BucketID  `json:"bucket_id"`
	Type     FieldType `json:"type" validate:"required,oneof=int email date bool string"`
	Name     string    `json:"name" validate:"required"`
	Label    string    `json:"label"`
}

// FieldDescriptors retrieves all field definitions grouped by bucket.
func (c *Client) FieldDescriptors(ctx context.Context) ([]FieldDescriptorGroup, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "fields", nil, nil)
	if err != nil {
		return nil, err
	}

	return send[[]FieldDescriptorGroup](c, req)
}

// AddField creates a new field in the given bucket.
func (c *Client) AddField(ctx context.Context, field NewFieldDescriptor) (FieldID, error) {
	if err := validateBody("field", field); err != nil {
		return 0, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "fields", nil, field)
	if err != nil {
		return 0, err
	}

	res, err := send[idResult[FieldID]](c, req)
	if err != nil {
		return 0, err
	}

	return res.ID, nil
}

// SetField sets a single field value of a contact.
func (c *Client) SetField(ctx context.Context, id ContactID, bucket BucketID, name string, value any) error {
	return c.SetFields(ctx, id, map[BucketID]map[string]string{
		bucket: {name: fmt.Sprint(value)},
	})
}

// SetFields sets several field values of a contact in one request.
// values is keyed by bucket, then by field name.
func (c *Client) SetFields(ctx context.Context, id ContactID, values map[BucketID]map[string]string) error {
	if id == "" {
		return fmt.Errorf("invalid contact: %w", ErrEmptyID)
	}
	if len(values) == 0 {
		return nil
	}

	req, err := c.newRequest(ctx, http.MethodPut, expand("contacts/%s", id), nil, values)
	if err != nil {
		return err
	}

	return sendVoid(c, req)
}
