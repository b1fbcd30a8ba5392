package domain

import "errors"

var (
	ErrNotFound             = errors.New("not-found")
	UnexpectedDatabaseError = errors.New("database-error")
	UnexpectedCacheError    = errors.New("cache-error")
)

var (
	ErrUpstreamUnavailable = errors.New("upstream-unavailable")
	ErrNoContent           = errors.New("no-content")
)
