package vrm

import (
	"context"
	"iter"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
)

// paginatorFunc fetches a single page of items T.
type paginatorFunc[T any] func(ctx context.Context, page int) (*Page[T], error)

// iterate returns an iterator that walks through all pages using the provided fetcher.
// Pages are fetched lazily, one request each, once the consumer has drained
// the previous page. Each range over the iterator starts again at page 1.
func iterate[T any](ctx context.Context, fetch paginatorFunc[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for n := 1; ; n++ {
			if n > 1 {
				if err := ctx.Err(); err != nil {
					yield(*new(T), err)
					return
				}
			}

			page, err := fetch(ctx, n)
			if err != nil {
				yield(*new(T), err)
				return
			}

			for _, item := range page.Results {
				if !yield(item, nil) {
					return
				}
			}

			if page.Last() {
				return
			}
			if len(page.Results) == 0 {
				return
			}
		}
	}
}

// pagedPath appends the page parameter to path.
func pagedPath(path string, page int) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "page=" + strconv.Itoa(page)
}

// fetchPage requests a single page of a list endpoint.
func fetchPage[T any](ctx context.Context, c *Client, path string, n int) (*Page[T], error) {
	req, err := c.newRequest(ctx, http.MethodGet, pagedPath(path, n), nil, nil)
	if err != nil {
		return nil, err
	}

	page, err := send[Page[T]](c, req)
	if err != nil {
		return nil, err
	}

	c.logger.DebugContext(ctx, "page fetched",
		slog.String("path", path),
		slog.Int("page", page.Page),
		slog.Int("pages", page.Pages),
		slog.Int("results", len(page.Results)),
	)

	return &page, nil
}

// paginate returns an iterator over every record of a list endpoint.
// path may already carry a query string.
func paginate[T any](ctx context.Context, c *Client, path string) iter.Seq2[T, error] {
	return iterate(ctx, func(ctx context.Context, n int) (*Page[T], error) {
		return fetchPage[T](ctx, c, path, n)
	})
}
