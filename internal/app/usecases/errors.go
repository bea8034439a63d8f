package usecases

import "errors"

// ErrCatalogUnavailable is returned before any node is touched when no schema
// catalog has been provided.
var ErrCatalogUnavailable = errors.New("agent definition catalog unavailable")
