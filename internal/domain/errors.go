package domain

import "errors"

// Sentinel errors for domain operations
var (
	// ErrNotFound indicates the requested cache entry does not exist
	ErrNotFound = errors.New("cache entry not found")

	// ErrUnknownCollection indicates the collection name has no bucket
	ErrUnknownCollection = errors.New("unknown collection")

	// ErrStoreClosed indicates an operation on a closed store
	ErrStoreClosed = errors.New("store is closed")

	// ErrSnapshotUnavailable indicates the videoshot endpoint kept failing
	// after all retries were spent
	ErrSnapshotUnavailable = errors.New("video snapshot unavailable")
)
