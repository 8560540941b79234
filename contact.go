package vrm

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"

	"github.com/google/go-querystring/query"
)

// Contact represents a contact as returned by the contact list.
type Contact struct {
	// ContactID is the unique id of the contact.
	ContactID ContactID `json:"con_id"`
	// Name is the full name of the contact.
	Name string `json:"name"`
	// Location is the geo position of the contact.
	Location Geo `json:"$loc"`
	// Address is the street address.
	Address string `json:"address,omitempty"`
	City    string `json:"city,omitempty"`
	// Zip is the five digit zip code.
	Zip  string `json:"zip,omitempty"`
	Zip4 string `json:"zip4,omitempty"`

	County         string `json:"county,omitempty"`
	PrecinctNumber int    `json:"precinct number,omitempty"`
	// CongressionalDistrict is the congressional district.
	CongressionalDistrict int `json:"cd,omitempty"`
	// LegislativeDistrict is the legislative district.
	LegislativeDistrict int `json:"ld,omitempty"`

	Age         int    `json:"age,omitempty"`
	DateOfBirth Time   `json:"dob"`
	Gender      string `json:"gender,omitempty"`
	// StateVoterID is the voter id assigned by the state.
	StateVoterID string `json:"state voter id,omitempty"`
}

// Geo is a geographic position.
type Geo struct {
	Lat  float64
	Long float64
}

// IsZero reports whether no position is set.
func (g Geo) IsZero() bool {
	return g == Geo{}
}

// UnmarshalJSON implements the [json.Unmarshaler] interface.
// The API encodes positions as a [lat, long] array.
func (g *Geo) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}

	var pair []float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}

	switch len(pair) {
	case 0:
		*g = Geo{}
	case 2:
		*g = Geo{Lat: pair[0], Long: pair[1]}
	default:
		return fmt.Errorf("invalid position: %d coordinates", len(pair))
	}

	return nil
}

// MarshalJSON implements the [json.Marshaler] interface.
func (g Geo) MarshalJSON() ([]byte, error) {
	if g.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal([2]float64{g.Lat, g.Long})
}

// ContactsQuery filters the contact list.
type ContactsQuery struct {
	// Bookmark restricts the list to contacts matching a saved filter.
	Bookmark BookmarkID `url:"bookmark,omitempty"`
}

// contactsPath returns the list path for q, including its query string.
func contactsPath(q ContactsQuery) (string, error) {
	v, err := query.Values(q)
	if err != nil {
		return "", err
	}
	if len(v) == 0 {
		return "contacts", nil
	}
	return "contacts?" + v.Encode(), nil
}

// Contacts retrieves a single page of contacts.
func (c *Client) Contacts(ctx context.Context, q ContactsQuery, page int) (*Page[Contact], error) {
	path, err := contactsPath(q)
	if err != nil {
		return nil, err
	}

	return fetchPage[Contact](ctx, c, path, page)
}

// ContactsIter returns an iterator over all contacts matching q.
func (c *Client) ContactsIter(ctx context.Context, q ContactsQuery) iter.Seq2[Contact, error] {
	path, err := contactsPath(q)
	if err != nil {
		return func(yield func(Contact, error) bool) {
			yield(Contact{}, err)
		}
	}

	return paginate[Contact](ctx, c, path)
}

// ContactDetail retrieves a contact including all its custom fields.
func (c *Client) ContactDetail(ctx context.Context, id ContactID) (*ContactDetail, error) {
	if id == "" {
		return nil, fmt.Errorf("invalid contact: %w", ErrEmptyID)
	}

	req, err := c.newRequest(ctx, http.MethodGet, expand("contacts/%s", id), nil, nil)
	if err != nil {
		return nil, err
	}

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	return ParseContactDetail(body)
}
