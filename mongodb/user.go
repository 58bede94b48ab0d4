package mongodb

import (
	"context"
	"fmt"
	"github.com/ejacobg/ka-infection/graph"
	"go.mongodb.org/mongo-driver/mongo"
)

// userIterator is a graph.UserIterator implementation backed by a mongo
// cursor.
type userIterator struct {
	ctx         context.Context
	cur         *mongo.Cursor
	lastErr     error
	latchedUser *graph.User
}

// Next implements graph.UserIterator.
func (i *userIterator) Next() bool {
	if i.lastErr != nil || !i.cur.Next(i.ctx) {
		return false
	}

	var doc document
	if i.lastErr = i.cur.Decode(&doc); i.lastErr != nil {
		return false
	}
	i.latchedUser = doc.user()
	return true
}

// Error implements graph.UserIterator.
func (i *userIterator) Error() error {
	if i.lastErr != nil {
		return i.lastErr
	}
	return i.cur.Err()
}

// Close implements graph.UserIterator.
func (i *userIterator) Close() error {
	if err := i.cur.Close(i.ctx); err != nil {
		return fmt.Errorf("user iterator: %w", err)
	}
	return nil
}

// User implements graph.UserIterator.
func (i *userIterator) User() *graph.User {
	return i.latchedUser
}
