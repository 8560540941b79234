package vrm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Bucket is a named namespace of custom contact fields.
type Bucket struct {
	ID    BucketID `json:"id"`
	Title string   `json:"title"`
}

// bucketBody is the body of bucket create and update requests.
type bucketBody struct {
	Title string `json:"title" validate:"required"`
	Type  string `json:"type,omitempty"`
}

// Buckets retrieves all buckets.
func (c *Client) Buckets(ctx context.Context) ([]Bucket, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "buckets", nil, nil)
	if err != nil {
		return nil, err
	}

	return send[[]Bucket](c, req)
}

// BucketIDByName looks up a bucket by title, ignoring case. Titles are not
// unique; the first match wins.
func (c *Client) BucketIDByName(ctx context.Context, title string) (BucketID, error) {
	buckets, err := c.Buckets(ctx)
	if err != nil {
		return 0, err
	}

	for _, b := range buckets {
		if strings.EqualFold(b.Title, title) {
			return b.ID, nil
		}
	}

	return 0, fmt.Errorf("bucket %q: %w", title, ErrNotFound)
}

// CreateBucket creates a field bucket. Several buckets may share a title.
func (c *Client) CreateBucket(ctx context.Context, title string) (BucketID, error) {
	body := bucketBody{Title: title, Type: "field"}
	if err := validateBody("bucket", body); err != nil {
		return 0, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "buckets", nil, body)
	if err != nil {
		return 0, err
	}

	bucket, err := send[Bucket](c, req)
	if err != nil {
		return 0, err
	}

	return bucket.ID, nil
}

// DeleteBucket deletes a bucket. Deleting an unknown or already deleted
// bucket fails with a [*ServiceError].
func (c *Client) DeleteBucket(ctx context.Context, id BucketID) error {
	req, err := c.newRequest(ctx, http.MethodDelete, expand("buckets/%s", id), nil, nil)
	if err != nil {
		return err
	}

	return sendVoid(c, req)
}

// UpdateBucketTitle renames a bucket.
func (c *Client) UpdateBucketTitle(ctx context.Context, id BucketID, title string) error {
	body := bucketBody{Title: title}
	if err := validateBody("bucket", body); err != nil {
		return err
	}

	req, err := c.newRequest(ctx, http.MethodPut, expand("buckets/%s", id), nil, body)
	if err != nil {
		return err
	}

	bucket, err := send[Bucket](c, req)
	if err != nil {
		return err
	}

	return checkIdentity("bucket", id, bucket.ID)
}
