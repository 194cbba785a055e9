package storage

import "errors"

var (
	// ErrCacheEntryNotFound is returned when a cached translation is not found
	ErrCacheEntryNotFound = errors.New("cache entry not found")

	// ErrWorkspaceNotFound is returned when a workspace has no quota state
	ErrWorkspaceNotFound = errors.New("workspace not found")

	// ErrUsageRecordNotFound is returned when a usage record is not found
	ErrUsageRecordNotFound = errors.New("usage record not found")
)
