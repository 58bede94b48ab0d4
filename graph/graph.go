package graph

import "context"

// Graph is implemented by objects that can mutate or query a mentorship
// graph. The three traversal operations (NeighborsOf, PickUnmarked and
// ApplyVersion) are all the infection engine needs; the rest exist for
// seeding and inspecting the store.
type Graph interface {
	// UpsertUser creates a new user or replaces an existing user with the
	// same ID.
	UpsertUser(ctx context.Context, user *User) error

	// FindUser looks up a user by its ID.
	FindUser(ctx context.Context, id int64) (*User, error)

	// Users returns an iterator for the set of users whose IDs belong to the
	// [fromID, toID) range.
	Users(ctx context.Context, fromID, toID int64) (UserIterator, error)

	// NeighborsOf returns the IDs of every user that coaches or is coached by
	// any of the provided users. Unknown IDs contribute nothing.
	NeighborsOf(ctx context.Context, ids []int64) (IDSet, error)

	// PickUnmarked returns the lowest user ID not present in excluded. If
	// every user is excluded, ErrNotFound is returned.
	PickUnmarked(ctx context.Context, excluded IDSet) (int64, error)

	// ApplyVersion sets the version of every listed user. Unknown IDs are
	// silently ignored.
	ApplyVersion(ctx context.Context, ids []int64, version int64) error
}

// Iterator is implemented by graph objects that can be iterated.
type Iterator interface {
	// Next advances the iterator. If no more items are available or an
	// error occurs, calls to Next() return false.
	Next() bool

	// Error returns the last error encountered by the iterator.
	Error() error

	// Close releases any resources associated with an iterator.
	Close() error
}
