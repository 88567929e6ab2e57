package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Catalog errors
	ErrCatalogUnavailable = fmt.Errorf("catalog unavailable")
	ErrCatalogRequest     = fmt.Errorf("catalog request failed")
	ErrNotAuthenticated   = fmt.Errorf("not authenticated")
	ErrRateLimited        = fmt.Errorf("rate limited")

	// Cache errors
	ErrNotFound     = fmt.Errorf("not found")
	ErrCacheCorrupt = fmt.Errorf("cache record is corrupt")
	ErrLocked       = fmt.Errorf("cache is locked by another process")

	// Batch errors
	ErrCanceled = fmt.Errorf("batch canceled")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
