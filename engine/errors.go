package engine

import "errors"

// ErrMalformedSnapshot is returned when a GameState is missing records or its
// per-entity sequences do not line up with the boost pad catalog.
var ErrMalformedSnapshot = errors.New("malformed snapshot")
