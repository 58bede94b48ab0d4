package cdb

import (
	"database/sql"
	"fmt"
	"github.com/ejacobg/ka-infection/graph"
)

// userIterator is a graph.UserIterator implementation for the cdb graph.
type userIterator struct {
	rows        *sql.Rows
	lastErr     error
	latchedUser *graph.User
}

// Next implements graph.UserIterator.
func (i *userIterator) Next() bool {
	if i.lastErr != nil || !i.rows.Next() {
		return false
	}

	i.latchedUser, i.lastErr = scanUser(i.rows.Scan)
	return i.lastErr == nil
}

// Error implements graph.UserIterator.
func (i *userIterator) Error() error {
	if i.lastErr != nil {
		return i.lastErr
	}
	return i.rows.Err()
}

// Close implements graph.UserIterator.
func (i *userIterator) Close() error {
	err := i.rows.Close()
	if err != nil {
		return fmt.Errorf("user iterator: %w", err)
	}
	return nil
}

// User implements graph.UserIterator.
func (i *userIterator) User() *graph.User {
	return i.latchedUser
}
