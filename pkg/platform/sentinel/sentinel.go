package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers
// return these (optionally wrapped) so services can translate them into domain
// errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: record does not exist in store
// - ErrExpired: record or token has passed its TTL
// - ErrAlreadyFlushed: queue was already drained by an earlier resolution
// - ErrSuppressed: a dedup record is live for the requested key
// - ErrInvalidState: entity in wrong state for requested operation
// - ErrUnavailable: backing store or endpoint temporarily unreachable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors.
var (
	ErrNotFound       = errors.New("not found")
	ErrExpired        = errors.New("expired")
	ErrAlreadyFlushed = errors.New("already flushed")
	ErrSuppressed     = errors.New("suppressed")
	ErrInvalidState   = errors.New("invalid state")
	ErrUnavailable    = errors.New("unavailable")
)
