package graphtest

import (
	"context"
	"errors"
	"fmt"
	"github.com/ejacobg/ka-infection/graph"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"math"
	"sync"
	"testing"
	"time"
)

// Suite defines a re-usable set of graph-related tests that can
// be executed against any type that implements graph.Graph.
type Suite struct {
	G graph.Graph

	// Optional helper functions.
	BeforeEach func(*testing.T)
	AfterEach  func(*testing.T)
}

func (s *Suite) TestGraph(t *testing.T) {
	tests := []struct {
		name string
		fn   func(*testing.T, graph.Graph)
	}{
		{"Upsert user", TestUpsertUser},
		{"Find user", TestFindUser},
		{"User iterator range", TestUserIteratorRange},
		{"Concurrent user iterators", TestConcurrentUserIterators},
		{"Neighbors of", TestNeighborsOf},
		{"Pick unmarked", TestPickUnmarked},
		{"Apply version", TestApplyVersion},
	}

	if s.BeforeEach == nil {
		s.BeforeEach = func(t *testing.T) {}
	}

	if s.AfterEach == nil {
		s.AfterEach = func(t *testing.T) {}
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			s.BeforeEach(t)
			test.fn(t, s.G)
			s.AfterEach(t)
		})
	}
}

// Stores are free to return nil or empty edge lists for users without edges.
var userCmpOpts = cmp.Options{cmpopts.EquateEmpty()}

// Seed inserts the users described by a mentor -> mentees map, all carrying
// the provided version.
func Seed(t *testing.T, g graph.Graph, connections map[int64][]int64, version int64) {
	t.Helper()
	for _, user := range graph.BuildUsers(connections, version) {
		if err := g.UpsertUser(context.Background(), user); err != nil {
			t.Fatalf("failed to insert user %d: %v", user.ID, err)
		}
	}
}

// TestUpsertUser verifies the user upsert logic.
func TestUpsertUser(t *testing.T, g graph.Graph) {
	ctx := context.Background()

	original := &graph.User{ID: 1, Coaches: []int64{2, 3}, Version: 1}
	if err := g.UpsertUser(ctx, original); err != nil {
		t.Fatalf("failed to insert user: %v", err)
	}

	// Replace the existing user with new edges and a new version.
	updated := &graph.User{ID: 1, Coaches: []int64{2}, CoachedBy: []int64{4}, Version: 2}
	if err := g.UpsertUser(ctx, updated); err != nil {
		t.Fatalf("failed to update user: %v", err)
	}

	stored, err := g.FindUser(ctx, 1)
	if err != nil {
		t.Fatalf("could not find user: %v", err)
	}
	if diff := cmp.Diff(updated, stored, userCmpOpts); diff != "" {
		t.Errorf("stored user mismatch (-want +got):\n%s", diff)
	}

	// Mutating the caller's copy must not leak into the store.
	updated.Coaches[0] = 42
	stored, err = g.FindUser(ctx, 1)
	if err != nil {
		t.Fatalf("could not find user: %v", err)
	}
	if stored.Coaches[0] != 2 {
		t.Errorf("store retained a reference to the caller's edge list")
	}
}

// TestFindUser verifies the user lookup logic.
func TestFindUser(t *testing.T, g graph.Graph) {
	ctx := context.Background()

	user := &graph.User{ID: 7, CoachedBy: []int64{3}, Version: 5}
	if err := g.UpsertUser(ctx, user); err != nil {
		t.Fatalf("failed to insert user: %v", err)
	}

	other, err := g.FindUser(ctx, 7)
	if err != nil {
		t.Fatalf("could not find user: %v", err)
	}
	if diff := cmp.Diff(user, other, userCmpOpts); diff != "" {
		t.Errorf("lookup by ID returned the wrong user (-want +got):\n%s", diff)
	}

	// Look up user by unknown ID.
	_, err = g.FindUser(ctx, 8)
	if !errors.Is(err, graph.ErrNotFound) {
		t.Errorf("unexpected error %v, want %v", err, graph.ErrNotFound)
	}
}

// TestUserIteratorRange verifies that the user iterator only returns users
// whose IDs fall in the requested [from, to) range, in ascending order.
func TestUserIteratorRange(t *testing.T, g graph.Graph) {
	Seed(t, g, map[int64][]int64{1: {2}, 3: {4}, 5: {6, 7}, -1: {0}}, 1)

	specs := []struct {
		from, to int64
		exp      []int64
	}{
		{math.MinInt64, math.MaxInt64, []int64{-1, 0, 1, 2, 3, 4, 5, 6, 7}},
		{0, 4, []int64{0, 1, 2, 3}},
		{5, 6, []int64{5}},
		{8, 100, nil},
	}

	for _, spec := range specs {
		got := iterateUserIDs(t, g, spec.from, spec.to)
		if diff := cmp.Diff(spec.exp, got, userCmpOpts); diff != "" {
			t.Errorf("users in [%d, %d) mismatch (-want +got):\n%s", spec.from, spec.to, diff)
		}
	}
}

func iterateUserIDs(t *testing.T, g graph.Graph, from, to int64) []int64 {
	t.Helper()
	it, err := g.Users(context.Background(), from, to)
	if err != nil {
		t.Fatalf("failed to create iterator: %v", err)
	}

	var got []int64
	for it.Next() {
		got = append(got, it.User().ID)
	}
	if err = it.Error(); err != nil {
		t.Errorf("iterator error: %v", err)
	}
	if err = it.Close(); err != nil {
		t.Errorf("failed to close iterator: %v", err)
	}
	return got
}

// TestConcurrentUserIterators verifies that multiple clients can concurrently
// access the store.
func TestConcurrentUserIterators(t *testing.T, g graph.Graph) {
	var (
		wg           sync.WaitGroup
		numIterators = 10
		numUsers     = 100
	)

	connections := make(map[int64][]int64)
	for i := int64(0); i < int64(numUsers); i += 2 {
		connections[i] = []int64{i + 1}
	}
	Seed(t, g, connections, 1)

	wg.Add(numIterators)
	for i := 0; i < numIterators; i++ {
		go func(id int) {
			defer wg.Done()

			itTagComment := fmt.Sprintf("iterator %d", id)
			it, err := g.Users(context.Background(), math.MinInt64, math.MaxInt64)
			if err != nil {
				t.Errorf("%s: failed to gather users: %v", itTagComment, err)
				return
			}

			seen := make(map[int64]bool)
			for it.Next() {
				userID := it.User().ID
				if seen[userID] {
					t.Errorf("%s saw the same user twice", itTagComment)
				}
				seen[userID] = true
			}

			if len(seen) != numUsers {
				t.Errorf("%s returns %d users, want %d", itTagComment, len(seen), numUsers)
			}
			if err = it.Error(); err != nil {
				t.Errorf("%s error: %v", itTagComment, err)
			}
			if err = it.Close(); err != nil {
				t.Errorf("%s failed to close %v", itTagComment, err)
			}
		}(i)
	}

	doneCh := make(chan struct{})
	go func() {
		wg.Wait()
		close(doneCh)
	}()

	select {
	case <-doneCh:
	// test completed successfully
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for test to complete")
	}
}

// TestNeighborsOf verifies that neighbor queries follow edges in both
// directions and tolerate unknown IDs.
func TestNeighborsOf(t *testing.T, g graph.Graph) {
	specs := []struct {
		descr       string
		connections map[int64][]int64
		ids         []int64
		exp         graph.IDSet
	}{
		{
			descr:       "mentee from mentor",
			connections: map[int64][]int64{1: {2}, 3: {4}},
			ids:         []int64{1},
			exp:         graph.NewIDSet(2),
		},
		{
			descr:       "mentor from mentee",
			connections: map[int64][]int64{1: {2}, 3: {4}},
			ids:         []int64{2},
			exp:         graph.NewIDSet(1),
		},
		{
			descr:       "multiple users",
			connections: map[int64][]int64{1: {2}, 3: {4}},
			ids:         []int64{2, 3},
			exp:         graph.NewIDSet(1, 4),
		},
		{
			descr:       "user is mentor and mentee",
			connections: map[int64][]int64{1: {3}, 2: {3}, 3: {4}},
			ids:         []int64{3},
			exp:         graph.NewIDSet(1, 2, 4),
		},
		{
			descr:       "self loop",
			connections: map[int64][]int64{1: {1, 2}},
			ids:         []int64{1},
			exp:         graph.NewIDSet(1, 2),
		},
		{
			descr:       "unknown user",
			connections: map[int64][]int64{1: {2}},
			ids:         []int64{99},
			exp:         graph.NewIDSet(),
		},
	}

	for specIndex, spec := range specs {
		// Each spec uses its own ID space so that earlier specs do not
		// interfere with later ones.
		offset := int64(specIndex * 1000)
		shifted := make(map[int64][]int64)
		for mentor, mentees := range spec.connections {
			for _, mentee := range mentees {
				shifted[mentor+offset] = append(shifted[mentor+offset], mentee+offset)
			}
			if len(mentees) == 0 {
				shifted[mentor+offset] = nil
			}
		}
		Seed(t, g, shifted, 1)

		ids := make([]int64, len(spec.ids))
		for i, id := range spec.ids {
			ids[i] = id + offset
		}
		exp := make(graph.IDSet)
		for id := range spec.exp {
			exp.Add(id + offset)
		}

		got, err := g.NeighborsOf(context.Background(), ids)
		if err != nil {
			t.Fatalf("[spec %d] %s: neighbors query failed: %v", specIndex, spec.descr, err)
		}
		if diff := cmp.Diff(exp.IDs(), got.IDs(), userCmpOpts); diff != "" {
			t.Errorf("[spec %d] %s: neighbors mismatch (-want +got):\n%s", specIndex, spec.descr, diff)
		}
	}
}

// TestPickUnmarked verifies that the store returns the lowest unmarked user
// and reports exhaustion with graph.ErrNotFound.
func TestPickUnmarked(t *testing.T, g graph.Graph) {
	ctx := context.Background()

	if _, err := g.PickUnmarked(ctx, graph.NewIDSet()); !errors.Is(err, graph.ErrNotFound) {
		t.Errorf("empty store: unexpected error %v, want %v", err, graph.ErrNotFound)
	}

	Seed(t, g, map[int64][]int64{1: {2}, 3: {4}}, 1)

	specs := []struct {
		excluded graph.IDSet
		exp      int64
	}{
		{graph.NewIDSet(), 1},
		{graph.NewIDSet(1, 2), 3},
		{graph.NewIDSet(1, 3), 2},
		{graph.NewIDSet(1, 2, 3, 42), 4},
	}
	for specIndex, spec := range specs {
		got, err := g.PickUnmarked(ctx, spec.excluded)
		if err != nil {
			t.Errorf("[spec %d] pick unmarked failed: %v", specIndex, err)
			continue
		}
		if got != spec.exp {
			t.Errorf("[spec %d] picked %d, want %d", specIndex, got, spec.exp)
		}
	}

	if _, err := g.PickUnmarked(ctx, graph.NewIDSet(1, 2, 3, 4)); !errors.Is(err, graph.ErrNotFound) {
		t.Errorf("all marked: unexpected error %v, want %v", err, graph.ErrNotFound)
	}
}

// TestApplyVersion verifies that version stamps only reach the listed users
// and that unknown IDs are ignored.
func TestApplyVersion(t *testing.T, g graph.Graph) {
	ctx := context.Background()
	Seed(t, g, map[int64][]int64{1: {2}, 3: {4}}, 1)

	if err := g.ApplyVersion(ctx, []int64{1, 2, 99}, 2); err != nil {
		t.Fatalf("failed to apply version: %v", err)
	}
	if err := g.ApplyVersion(ctx, nil, 3); err != nil {
		t.Fatalf("failed to apply version to empty set: %v", err)
	}

	exp := map[int64]int64{1: 2, 2: 2, 3: 1, 4: 1}
	for id, version := range exp {
		user, err := g.FindUser(ctx, id)
		if err != nil {
			t.Fatalf("could not find user %d: %v", id, err)
		}
		if user.Version != version {
			t.Errorf("user %d has version %d, want %d", id, user.Version, version)
		}
	}

	if _, err := g.FindUser(ctx, 99); !errors.Is(err, graph.ErrNotFound) {
		t.Errorf("applying a version created unknown user 99")
	}
}
