// Package vrm provides a client for the VRM voter and contact management API.
//
// Features:
// - Uniform envelope decoding: every call is checked for an "ok" status and
//   fails with a [*ServiceError] otherwise.
// - Iterator-based traversal of paged lists, one request per page on demand.
// - Typed identifiers and decoding of the per-bucket custom field groups of
//   [ContactDetail].
package vrm
