package vrm

import (
	"encoding/json"
	"fmt"
)

// StatusOK is the envelope status of a successful call.
const StatusOK = "ok"

// Response represents a response from the VRM API.
// Every endpoint wraps its payload in this envelope.
type Response[T any] struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// Valid reports whether the call succeeded.
func (r *Response[T]) Valid() bool {
	return r.Status == StatusOK
}

// Verify returns the payload if the call succeeded, or a [*ServiceError]
// carrying the server message otherwise.
func (r *Response[T]) Verify() (T, error) {
	if !r.Valid() {
		return *new(T), &ServiceError{Status: r.Status, Message: r.Message}
	}

	return r.Data, nil
}

// DecodeResponse decodes a raw envelope whose payload has type T.
// It does not check the status; use [Response.Verify] for that.
func DecodeResponse[T any](raw []byte) (*Response[T], error) {
	var r Response[T]
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &r, nil
}

// DecodeVoid decodes an envelope for calls without a meaningful payload.
// The payload is kept raw so any shape is accepted.
func DecodeVoid(raw []byte) (*Response[json.RawMessage], error) {
	return DecodeResponse[json.RawMessage](raw)
}

// Page is the payload of list endpoints.
type Page[T any] struct {
	Count   int `json:"count"`
	Page    int `json:"page"`
	Pages   int `json:"pages"`
	Results []T `json:"results"`
}

// Last reports whether no further pages follow this one.
// An empty collection reports zero pages.
func (p *Page[T]) Last() bool {
	return p.Pages == 0 || p.Page >= p.Pages
}

// idResult is returned by mutations that only echo the affected id.
type idResult[ID comparable] struct {
	ID ID `json:"id"`
}
