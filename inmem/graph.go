// Package inmem provides an in-memory graph implementation.
package inmem

import (
	"context"
	"fmt"
	"github.com/ejacobg/ka-infection/graph"
	"sort"
	"sync"
)

// Compile-time check for ensuring InMemoryGraph implements Graph.
var _ graph.Graph = (*InMemoryGraph)(nil)

// InMemoryGraph implements an in-memory mentorship graph that can be
// concurrently accessed by multiple clients.
type InMemoryGraph struct {
	mu sync.RWMutex

	users map[int64]*graph.User

	// Sorted list of user IDs. Used to answer PickUnmarked and range
	// queries in ID order.
	ids []int64
}

// NewInMemoryGraph creates a new in-memory mentorship graph.
func NewInMemoryGraph() *InMemoryGraph {
	return &InMemoryGraph{
		users: make(map[int64]*graph.User),
	}
}

// UpsertUser creates a new user or replaces an existing user.
func (im *InMemoryGraph) UpsertUser(_ context.Context, user *graph.User) error {
	im.mu.Lock()
	defer im.mu.Unlock()

	if _, exists := im.users[user.ID]; !exists {
		// Insert the ID into the sorted list.
		at := sort.Search(len(im.ids), func(i int) bool { return im.ids[i] >= user.ID })
		im.ids = append(im.ids, 0)
		copy(im.ids[at+1:], im.ids[at:])
		im.ids[at] = user.ID
	}

	im.users[user.ID] = copyUser(user)
	return nil
}

// FindUser looks up a copy of a user by its ID.
func (im *InMemoryGraph) FindUser(_ context.Context, id int64) (*graph.User, error) {
	im.mu.RLock()
	defer im.mu.RUnlock()

	user := im.users[id]
	if user == nil {
		return nil, fmt.Errorf("find user: %w", graph.ErrNotFound)
	}
	return copyUser(user), nil
}

// Users returns an iterator for the set of users whose IDs belong to the
// [fromID, toID) range.
func (im *InMemoryGraph) Users(_ context.Context, fromID, toID int64) (graph.UserIterator, error) {
	im.mu.RLock()
	var list []*graph.User
	for _, id := range im.ids {
		if id >= fromID && id < toID {
			list = append(list, im.users[id])
		}
	}
	im.mu.RUnlock()

	return &userIterator{im: im, users: list}, nil
}

// NeighborsOf returns the IDs of every user connected to any of ids.
func (im *InMemoryGraph) NeighborsOf(_ context.Context, ids []int64) (graph.IDSet, error) {
	im.mu.RLock()
	defer im.mu.RUnlock()

	neighbors := make(graph.IDSet)
	for _, id := range ids {
		if user := im.users[id]; user != nil {
			neighbors.Add(user.Coaches...)
			neighbors.Add(user.CoachedBy...)
		}
	}
	return neighbors, nil
}

// PickUnmarked returns the lowest user ID not present in excluded.
func (im *InMemoryGraph) PickUnmarked(_ context.Context, excluded graph.IDSet) (int64, error) {
	im.mu.RLock()
	defer im.mu.RUnlock()

	for _, id := range im.ids {
		if !excluded.Has(id) {
			return id, nil
		}
	}
	return 0, fmt.Errorf("pick unmarked: %w", graph.ErrNotFound)
}

// ApplyVersion sets the version of every listed user.
func (im *InMemoryGraph) ApplyVersion(_ context.Context, ids []int64, version int64) error {
	im.mu.Lock()
	defer im.mu.Unlock()

	for _, id := range ids {
		if user := im.users[id]; user != nil {
			user.Version = version
		}
	}
	return nil
}

func copyUser(u *graph.User) *graph.User {
	uCopy := new(graph.User)
	*uCopy = *u
	uCopy.Coaches = append([]int64(nil), u.Coaches...)
	uCopy.CoachedBy = append([]int64(nil), u.CoachedBy...)
	return uCopy
}
