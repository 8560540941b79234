package vrm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// expand substitutes the path escaped string form of args for the %s verbs
// in template.
func expand(template string, args ...any) string {
	escaped := make([]any, len(args))
	for i, arg := range args {
		escaped[i] = url.PathEscape(fmt.Sprint(arg))
	}
	return fmt.Sprintf(template, escaped...)
}

// newRequest creates a new HTTP request. path is relative to the base URL
// and may carry a query string; params are merged into it.
func (c *Client) newRequest(
	ctx context.Context,
	method, path string,
	params url.Values,
	body any,
) (*http.Request, error) {
	rel, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("parse path: %w", err)
	}
	u := c.baseURL.ResolveReference(rel)
	if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(headerToken, c.token)
	req.Header.Set(headerAppKey, c.appKey)

	return req, nil
}

// send executes the request, decodes the envelope and verifies its status.
func send[T any](c *Client, req *http.Request) (T, error) {
	body, err := c.do(req)
	if err != nil {
		return *new(T), err
	}

	result, err := DecodeResponse[T](body)
	if err != nil {
		return *new(T), err
	}

	return result.Verify()
}

// sendVoid is like send for calls without a meaningful payload.
func sendVoid(c *Client, req *http.Request) error {
	_, err := send[json.RawMessage](c, req)
	return err
}

// do executes the request and returns the response body of a 2xx response.
//
// A non-2xx response whose body is an error envelope is reported as a
// [*ServiceError]; anything else that prevents a 2xx response is a
// [*TransportError].
func (c *Client) do(req *http.Request) ([]byte, error) {
	ctx, span := c.tracer.Start(req.Context(), "vrm "+req.Method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.path", req.URL.Path),
		),
	)
	defer span.End()
	req = req.WithContext(ctx)

	start := time.Now()
	status, body, err := c.roundTrip(req)
	duration := time.Since(start)

	if status != 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", status))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.DebugContext(ctx, "request failed",
			slog.String("method", req.Method),
			slog.String("path", req.URL.Path),
			slog.Int("status", status),
			slog.Duration("duration", duration),
			slog.Any("error", err),
		)
		return nil, err
	}

	c.logger.DebugContext(ctx, "request completed",
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
		slog.Int("status", status),
		slog.Duration("duration", duration),
	)

	return body, nil
}

func (c *Client) roundTrip(req *http.Request) (int, []byte, error) {
	transportErr := func(status int, err error) *TransportError {
		return &TransportError{
			Method:     req.Method,
			URL:        req.URL.Redacted(),
			StatusCode: status,
			Err:        err,
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}

		return 0, nil, transportErr(0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, transportErr(resp.StatusCode, fmt.Errorf("read body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if env, err := DecodeVoid(body); err == nil && env.Status != "" && !env.Valid() {
			_, err := env.Verify()
			return resp.StatusCode, nil, err
		}

		return resp.StatusCode, nil, transportErr(resp.StatusCode, fmt.Errorf(
			"%s: %w",
			http.StatusText(resp.StatusCode),
			ErrStatus,
		))
	}

	return resp.StatusCode, body, nil
}

// validateBody checks a request body before anything is sent.
func validateBody(what string, body any) error {
	if err := validate.Struct(body); err != nil {
		return fmt.Errorf("invalid %s: %w", what, err)
	}
	return nil
}
