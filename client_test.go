package vrm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	c := New("tok", "key")

	assert.Equal(t, DefaultURL, c.baseURL.String())
	assert.Contains(t, c.userAgent, "go-vrm/")
	assert.NotNil(t, c.logger)
	assert.NotNil(t, c.tracer)
}

func TestModuleVersion(t *testing.T) {
	tests := []struct {
		name string
		info debug.BuildInfo
		want string
	}{
		{
			name: "dependency",
			info: debug.BuildInfo{Deps: []*debug.Module{{Path: "other", Version: "v9"}, {Path: modulePath, Version: "v1.2.0"}}},
			want: "v1.2.0",
		},
		{
			name: "dependency replaced locally",
			info: debug.BuildInfo{Deps: []*debug.Module{{Path: modulePath, Version: "(devel)"}}},
			want: "devel",
		},
		{
			name: "main module release",
			info: debug.BuildInfo{Main: debug.Module{Path: modulePath, Version: "v0.3.1"}},
			want: "v0.3.1",
		},
		{
			name: "main module with vcs revision",
			info: debug.BuildInfo{
				Main:     debug.Module{Path: modulePath, Version: "(devel)"},
				Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "0123456789abcdef"}},
			},
			want: "devel+0123456",
		},
		{
			name: "short vcs revision",
			info: debug.BuildInfo{
				Main:     debug.Module{Path: modulePath},
				Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "abc"}},
			},
			want: "devel",
		},
		{
			name: "unrelated main module",
			info: debug.BuildInfo{Main: debug.Module{Path: "example.com/app", Version: "v1.0.0"}},
			want: "devel",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, moduleVersion(&tt.info))
		})
	}
}

func TestClient_ContactsIter_TwoPages(t *testing.T) {
	rec := &recorder{}
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.add(r, "")
		assert.Equal(t, "test-token", r.Header.Get("x-vrm-token"))
		assert.Equal(t, "test-appkey", r.Header.Get("x-vrm-appkey"))
		assert.Equal(t, "/api/contacts", r.URL.Path)

		switch r.URL.Query().Get("page") {
		case "1":
			writeEnvelope(w, `{"count":3,"page":1,"pages":2,"results":[
				{"con_id":"a","name":"Ann","precinct number":12,"state voter id":"WA1"},
				{"con_id":"b","name":"Bob","$loc":[1.5,2.5]}
			]}`)
		case "2":
			writeEnvelope(w, `{"count":3,"page":2,"pages":2,"results":[{"con_id":"c","name":"Cid"}]}`)
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
			writeFailure(w, http.StatusBadRequest, "bad page")
		}
	}))

	var ids []ContactID
	var contacts []Contact
	for contact, err := range c.ContactsIter(context.Background(), ContactsQuery{}) {
		require.NoError(t, err)
		ids = append(ids, contact.ContactID)
		contacts = append(contacts, contact)
	}

	assert.Equal(t, []ContactID{"a", "b", "c"}, ids)
	assert.Equal(t, 2, rec.count())
	assert.Equal(t, 12, contacts[0].PrecinctNumber)
	assert.Equal(t, "WA1", contacts[0].StateVoterID)
	assert.Equal(t, Geo{Lat: 1.5, Long: 2.5}, contacts[1].Location)
}

func TestClient_ContactsIter_Empty(t *testing.T) {
	rec := &recorder{}
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.add(r, "")
		writeEnvelope(w, `{"count":0,"page":1,"pages":0,"results":[]}`)
	}))

	n := 0
	for _, err := range c.ContactsIter(context.Background(), ContactsQuery{}) {
		require.NoError(t, err)
		n++
	}

	assert.Zero(t, n)
	assert.Equal(t, 1, rec.count())
}

func TestClient_ContactsIter_Bookmark(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bookmark=bm%2F1&page=1", r.URL.RawQuery)
		writeEnvelope(w, `{"count":1,"page":1,"pages":1,"results":[{"con_id":"a","name":"Ann"}]}`)
	}))

	n := 0
	for _, err := range c.ContactsIter(context.Background(), ContactsQuery{Bookmark: "bm/1"}) {
		require.NoError(t, err)
		n++
	}
	assert.Equal(t, 1, n)
}

func TestClient_ContactsIter_ServiceErrorOnSecondPage(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			writeEnvelope(w, `{"count":4,"page":1,"pages":2,"results":[{"con_id":"a"},{"con_id":"b"}]}`)
			return
		}
		writeFailure(w, http.StatusOK, "Session expired")
	}))

	var ids []ContactID
	var gotErr error
	for contact, err := range c.ContactsIter(context.Background(), ContactsQuery{}) {
		if err != nil {
			gotErr = err
			break
		}
		ids = append(ids, contact.ContactID)
	}

	assert.Equal(t, []ContactID{"a", "b"}, ids)
	var serviceErr *ServiceError
	require.True(t, errors.As(gotErr, &serviceErr), "expected ServiceError, got %v", gotErr)
	assert.Equal(t, "Session expired", serviceErr.Message)
}

func TestClient_Contacts_SinglePage(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3", r.URL.Query().Get("page"))
		writeEnvelope(w, `{"count":7,"page":3,"pages":3,"results":[{"con_id":"g"}]}`)
	}))

	page, err := c.Contacts(context.Background(), ContactsQuery{}, 3)
	require.NoError(t, err)
	assert.Equal(t, 7, page.Count)
	assert.True(t, page.Last())
	assert.Len(t, page.Results, 1)
}

func TestClient_ContactDetail(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/contacts/526a904a399cce2532f466c7", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, contactDetailJSON)
	}))

	detail, err := c.ContactDetail(context.Background(), "526a904a399cce2532f466c7")
	require.NoError(t, err)
	assert.Equal(t, []BucketID{12, 3, 7}, detail.Buckets())

	_, err = c.ContactDetail(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyID)
}

func TestClient_NotesIter(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/notes", r.URL.Path)
		assert.Equal(t, "c1", r.URL.Query().Get("contact"))
		writeEnvelope(w, `{"count":1,"page":1,"pages":1,"results":[
			{"id":7,"contact_id":"c1","body":"call back","org_id":"5","user_id":2,"user_name":"Sam"}
		]}`)
	}))

	var notes []Note
	for note, err := range c.NotesIter(context.Background(), "c1") {
		require.NoError(t, err)
		notes = append(notes, note)
	}

	require.Len(t, notes, 1)
	assert.Equal(t, NoteID(7), notes[0].ID)
	assert.Equal(t, "5", notes[0].OrgID.String())
	assert.Equal(t, UserID(2), notes[0].UserID)
}

func TestClient_CreateNote(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/notes", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"contact_id": "c1", "body": "hello"}, body)

		writeEnvelope(w, `{"id":41}`)
	}))

	note, err := c.CreateNote(context.Background(), "c1", "hello")
	require.NoError(t, err)
	assert.Equal(t, &Note{ID: 41, ContactID: "c1", Body: "hello"}, note)
}

func TestClient_CreateNote_Invalid(t *testing.T) {
	rec := &recorder{}
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.add(r, "")
		writeEnvelope(w, `{"id":1}`)
	}))

	_, err := c.CreateNote(context.Background(), "", "hello")

	var valErrs validator.ValidationErrors
	require.True(t, errors.As(err, &valErrs), "expected validation error, got %v", err)
	assert.Equal(t, "ContactID", valErrs[0].Field())
	assert.Zero(t, rec.count(), "invalid requests must not reach the server")
}

func TestClient_UpdateNote_Identity(t *testing.T) {
	tests := []struct {
		name         string
		responseID   string
		wantMismatch bool
	}{
		{name: "same id", responseID: "7"},
		{name: "quoted same id", responseID: `"7"`},
		{name: "different id", responseID: "8", wantMismatch: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPut, r.Method)
				assert.Equal(t, "/api/notes/7", r.URL.Path)
				writeEnvelope(w, fmt.Sprintf(`{"id":%s}`, tt.responseID))
			}))

			err := c.UpdateNote(context.Background(), Note{ID: 7, ContactID: "c1"}, "updated")
			if !tt.wantMismatch {
				assert.NoError(t, err)
				return
			}

			var mismatch *IdentityMismatchError
			require.True(t, errors.As(err, &mismatch), "expected IdentityMismatchError, got %v", err)
			assert.Equal(t, "7", mismatch.Want)
			assert.Equal(t, "8", mismatch.Got)
		})
	}
}

func TestClient_DeleteNote(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			writeFailure(w, http.StatusNotFound, "Note not found")
			return
		}
		assert.Equal(t, http.MethodDelete, r.Method)
		switch r.URL.Path {
		case "/api/notes/7":
			writeEnvelope(w, `{"id":7}`)
		case "/api/notes/9":
			writeEnvelope(w, `{"id":10}`)
		default:
			writeFailure(w, http.StatusNotFound, "Note not found")
		}
	}))

	assert.NoError(t, c.DeleteNote(context.Background(), 7))

	var mismatch *IdentityMismatchError
	assert.ErrorAs(t, c.DeleteNote(context.Background(), 9), &mismatch)

	err := c.DeleteNote(context.Background(), 1)
	var serviceErr *ServiceError
	assert.ErrorAs(t, err, &serviceErr)
	assert.EqualError(t, err, "request failed: Note not found")

	err = c.UpdateNote(context.Background(), Note{ID: 1, ContactID: "c1"}, "x")
	assert.EqualError(t, err, "request failed: Note not found")
}

func TestClient_Buckets(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/buckets":
			writeEnvelope(w, `[{"id":1,"title":"Default"},{"id":272,"title":"Survey"}]`)
		case r.Method == http.MethodPost && r.URL.Path == "/api/buckets":
			var body bucketBody
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, bucketBody{Title: "New", Type: "field"}, body)
			writeEnvelope(w, `{"id":300,"title":"New"}`)
		case r.Method == http.MethodPut && r.URL.Path == "/api/buckets/272":
			writeEnvelope(w, `{"id":272,"title":"Renamed"}`)
		case r.Method == http.MethodDelete && r.URL.Path == "/api/buckets/272":
			writeEnvelope(w, `[]`)
		default:
			writeFailure(w, http.StatusOK, "Bucket not found")
		}
	}))
	ctx := context.Background()

	buckets, err := c.Buckets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Bucket{{ID: 1, Title: "Default"}, {ID: 272, Title: "Survey"}}, buckets)

	id, err := c.BucketIDByName(ctx, "survey")
	require.NoError(t, err)
	assert.Equal(t, BucketID(272), id)

	_, err = c.BucketIDByName(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	id, err = c.CreateBucket(ctx, "New")
	require.NoError(t, err)
	assert.Equal(t, BucketID(300), id)

	_, err = c.CreateBucket(ctx, "")
	var valErrs validator.ValidationErrors
	assert.ErrorAs(t, err, &valErrs)

	assert.NoError(t, c.UpdateBucketTitle(ctx, 272, "Renamed"))
	assert.NoError(t, c.DeleteBucket(ctx, 272))

	var serviceErr *ServiceError
	assert.ErrorAs(t, c.DeleteBucket(ctx, 5), &serviceErr)
}

func TestClient_Fields(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/fields":
			writeEnvelope(w, `[{"id":3,"title":"Default","fields":[]}]`)
		case r.Method == http.MethodPost && r.URL.Path == "/api/fields":
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, map[string]any{
				"bucket_id": float64(272),
				"type":      "email",
				"name":      "email2",
				"label":     "Second e-mail",
			}, body)
			writeEnvelope(w, `{"id":77}`)
		case r.Method == http.MethodPut && r.URL.Path == "/api/contacts/c1":
			var body map[string]map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, map[string]map[string]string{"272": {"visits": "3"}}, body)
			writeEnvelope(w, `null`)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			writeFailure(w, http.StatusNotFound, "unexpected")
		}
	}))
	ctx := context.Background()

	groups, err := c.FieldDescriptors(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Empty(t, groups[0].Fields)

	id, err := c.AddField(ctx, NewFieldDescriptor{
		BucketID: 272,
		Type:     FieldTypeEmail,
		Name:     "email2",
		Label:    "Second e-mail",
	})
	require.NoError(t, err)
	assert.Equal(t, FieldID(77), id)

	_, err = c.AddField(ctx, NewFieldDescriptor{BucketID: 272, Type: "color", Name: "x"})
	var valErrs validator.ValidationErrors
	assert.ErrorAs(t, err, &valErrs)

	assert.NoError(t, c.SetField(ctx, "c1", 272, "visits", 3))
	assert.ErrorIs(t, c.SetField(ctx, "", 272, "visits", 3), ErrEmptyID)
}

func TestClient_UserAndBookmarks(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/users/current":
			writeEnvelope(w, `{"id":2,"first_name":"Sam","last_name":"Lee","email":"sam@example.com","org_id":5,"isAdmin":true}`)
		case "/api/bookmarks":
			writeEnvelope(w, `[{"id":"bm1","name":"Precinct 12","user_id":2}]`)
		default:
			writeFailure(w, http.StatusNotFound, "not found")
		}
	}))
	ctx := context.Background()

	user, err := c.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, UserID(2), user.ID)
	assert.True(t, user.IsAdmin)
	assert.Equal(t, "5", user.OrgID.String())

	b, err := c.Bookmark(ctx, "precinct 12")
	require.NoError(t, err)
	assert.Equal(t, BookmarkID("bm1"), b.ID)

	_, err = c.Bookmark(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}
