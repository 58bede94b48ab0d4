package inmem

import "github.com/ejacobg/ka-infection/graph"

// userIterator is a graph.UserIterator implementation for the in-memory graph.
type userIterator struct {
	im *InMemoryGraph

	users []*graph.User
	curr  int
}

// Next implements graph.UserIterator.
func (i *userIterator) Next() bool {
	if i.curr >= len(i.users) {
		return false
	}
	i.curr++
	return true
}

// Error implements graph.UserIterator.
func (i *userIterator) Error() error {
	return nil
}

// Close implements graph.UserIterator.
func (i *userIterator) Close() error {
	return nil
}

// User implements graph.UserIterator.
func (i *userIterator) User() *graph.User {
	// The user pointer contents may be overwritten by a version update; to
	// avoid data-races we acquire the read lock first and clone the user.
	i.im.mu.RLock()
	user := copyUser(i.users[i.curr-1])
	i.im.mu.RUnlock()
	return user
}
