package badgerdb

import "github.com/ejacobg/ka-infection/graph"

// userIterator is a graph.UserIterator implementation over a snapshot of
// users read in a single badger transaction.
type userIterator struct {
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
	return i.users[i.curr-1]
}
