// Package common defines shared sentinel errors used across the storage and
// sync layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Registry / handle lifecycle errors.
	ErrClosed = errors.New("store closed")

	// Dispatch errors.
	ErrUnknownEntity  = errors.New("unknown entity kind")
	ErrUnknownChannel = errors.New("unknown chat channel")

	// Validation errors.
	ErrMissingLocalID   = errors.New("missing local id")
	ErrMissingServerID  = errors.New("missing server id")
	ErrMissingSessionID = errors.New("missing session id")
)
