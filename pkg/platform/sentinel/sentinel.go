// Package sentinel holds the errors stores return for facts about stored
// state. Callers translate them into domain-errors codes at the edge.
package sentinel

import "errors"

var (
	// ErrNotFound: no session, site or page under the key.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable: the backing store could not be reached.
	ErrUnavailable = errors.New("unavailable")
)
