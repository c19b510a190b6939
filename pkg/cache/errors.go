package cache

import "errors"

var (
	// ErrCacheMiss indicates the requested key was not found.
	ErrCacheMiss = errors.New("cache miss")

	// ErrCorrupt indicates the stored value could not be decoded.
	ErrCorrupt = errors.New("corrupt cache entry")
)
