package graph

import "errors"

// ErrNotFound is returned when a user lookup fails or when no unmarked user is
// left in the store.
var ErrNotFound = errors.New("not found")
