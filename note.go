package vrm

import (
	"context"
	"encoding/json"
	"iter"
	"net/http"

	"github.com/google/go-querystring/query"
)

// Note is a free text note attached to a contact.
type Note struct {
	ID          NoteID    `json:"id"`
	ContactID   ContactID `json:"contact_id"`
	Body        string    `json:"body"`
	OrgID       OrgID     `json:"org_id"`
	UserID      UserID    `json:"user_id"`
	ContactName string    `json:"contact_name,omitempty"`
	UserName    string    `json:"user_name,omitempty"`
}

// NoteUpdate is the body of note create and update requests.
type NoteUpdate struct {
	ContactID ContactID `json:"contact_id" validate:"required"`
	Body      string    `json:"body"`
	// Done and Date are passed through unchanged; their meaning is not
	// documented by the service.
	Done json.RawMessage `json:"done,omitempty"`
	Date string          `json:"date,omitempty"`
}

// notesQuery filters the note list.
type notesQuery struct {
	Contact ContactID `url:"contact"`
}

func notesPath(id ContactID) (string, error) {
	v, err := query.Values(notesQuery{Contact: id})
	if err != nil {
		return "", err
	}
	return "notes?" + v.Encode(), nil
}

// Notes retrieves a single page of notes of a contact.
func (c *Client) Notes(ctx context.Context, id ContactID, page int) (*Page[Note], error) {
	path, err := notesPath(id)
	if err != nil {
		return nil, err
	}

	return fetchPage[Note](ctx, c, path, page)
}

// NotesIter returns an iterator over all notes of a contact.
func (c *Client) NotesIter(ctx context.Context, id ContactID) iter.Seq2[Note, error] {
	path, err := notesPath(id)
	if err != nil {
		return func(yield func(Note, error) bool) {
			yield(Note{}, err)
		}
	}

	return paginate[Note](ctx, c, path)
}

// CreateNote adds a note to a contact. The returned note only carries the
// fields known to the client: id, contact and body.
func (c *Client) CreateNote(ctx context.Context, id ContactID, body string) (*Note, error) {
	update := NoteUpdate{ContactID: id, Body: body}
	if err := validateBody("note", update); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "notes", nil, update)
	if err != nil {
		return nil, err
	}

	res, err := send[idResult[NoteID]](c, req)
	if err != nil {
		return nil, err
	}

	return &Note{ID: res.ID, ContactID: id, Body: body}, nil
}

// UpdateNote replaces the body of a note.
// It fails with an [*IdentityMismatchError] if the server reports a different note.
func (c *Client) UpdateNote(ctx context.Context, note Note, body string) error {
	update := NoteUpdate{ContactID: note.ContactID, Body: body}
	if err := validateBody("note", update); err != nil {
		return err
	}

	req, err := c.newRequest(ctx, http.MethodPut, expand("notes/%s", note.ID), nil, update)
	if err != nil {
		return err
	}

	res, err := send[idResult[NoteID]](c, req)
	if err != nil {
		return err
	}

	return checkIdentity("note", note.ID, res.ID)
}

// DeleteNote deletes a note.
// It fails with an [*IdentityMismatchError] if the server reports a different note.
func (c *Client) DeleteNote(ctx context.Context, id NoteID) error {
	req, err := c.newRequest(ctx, http.MethodDelete, expand("notes/%s", id), nil, nil)
	if err != nil {
		return err
	}

	res, err := send[idResult[NoteID]](c, req)
	if err != nil {
		return err
	}

	return checkIdentity("note", id, res.ID)
}
