package vrm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// User is an account of the service.
type User struct {
	ID        UserID `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	// OrgID is passed through unchanged.
	OrgID     OrgID  `json:"org_id"`
	Mobile    string `json:"mobile,omitempty"`
	PNSubKey  string `json:"pn_sub_key,omitempty"`
	GroupType string `json:"group_type,omitempty"`
	IsAdmin   bool   `json:"isAdmin"`
}

// CurrentUser retrieves the user owning the token.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "users/current", nil, nil)
	if err != nil {
		return nil, err
	}

	user, err := send[User](c, req)
	if err != nil {
		return nil, err
	}

	return &user, nil
}

// Bookmark is a saved contact filter.
type Bookmark struct {
	ID     BookmarkID `json:"id"`
	Name   string     `json:"name"`
	UserID UserID     `json:"user_id"`
}

// Bookmarks retrieves all bookmarks.
func (c *Client) Bookmarks(ctx context.Context) ([]Bookmark, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "bookmarks", nil, nil)
	if err != nil {
		return nil, err
	}

	return send[[]Bookmark](c, req)
}

// Bookmark looks up a bookmark by name, ignoring case.
func (c *Client) Bookmark(ctx context.Context, name string) (*Bookmark, error) {
	bookmarks, err := c.Bookmarks(ctx)
	if err != nil {
		return nil, err
	}

	for _, b := range bookmarks {
		if strings.EqualFold(b.Name, name) {
			return &b, nil
		}
	}

	return nil, fmt.Errorf("bookmark %q: %w", name, ErrNotFound)
}
