package infection

import (
	"context"
	"errors"
	"github.com/ejacobg/ka-infection/graph"
	"github.com/ejacobg/ka-infection/inmem"
	"github.com/juju/clock/testclock"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	gc "gopkg.in/check.v1"
	"math"
	"testing"
	"time"
)

var _ = gc.Suite(new(InfectorTestSuite))

func Test(t *testing.T) {
	// Run all gocheck test-suites
	gc.TestingT(t)
}

type InfectorTestSuite struct {
	g    *inmem.InMemoryGraph
	inf  *Infector
	hook *logtest.Hook
}

func (s *InfectorTestSuite) SetUpTest(c *gc.C) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	s.hook = hook
	s.g = inmem.NewInMemoryGraph()
	inf, err := New(Config{
		Graph:  s.g,
		Clock:  testclock.NewClock(time.Now()),
		Logger: logrus.NewEntry(logger),
	})
	c.Assert(err, gc.IsNil)
	s.inf = inf
}

func (s *InfectorTestSuite) TestInfectAll(c *gc.C) {
	s.seed(c, map[int64][]int64{1: {2}, 3: {4}})

	c.Assert(s.inf.InfectAll(context.TODO(), 1, 2), gc.IsNil)
	c.Assert(s.usersWithVersion(c, 2), gc.DeepEquals, []int64{1, 2})
	c.Assert(s.usersWithVersion(c, 1), gc.DeepEquals, []int64{3, 4})
}

func (s *InfectorTestSuite) TestInfectAllIsolatedUser(c *gc.C) {
	s.seed(c, map[int64][]int64{1: nil, 3: {4}})

	c.Assert(s.inf.InfectAll(context.TODO(), 1, 2), gc.IsNil)
	c.Assert(s.usersWithVersion(c, 2), gc.DeepEquals, []int64{1})
}

func (s *InfectorTestSuite) TestInfectAllUnknownUser(c *gc.C) {
	s.seed(c, map[int64][]int64{1: {2}})

	component, err := s.inf.ConnectedComponent(context.TODO(), 0)
	c.Assert(err, gc.IsNil)
	c.Assert(component.IDs(), gc.DeepEquals, []int64{0})

	// The unknown user is stamped but the store ignores it.
	c.Assert(s.inf.InfectAll(context.TODO(), 0, 2), gc.IsNil)
	c.Assert(s.usersWithVersion(c, 2), gc.HasLen, 0)
}

func (s *InfectorTestSuite) TestInfectAllWheel(c *gc.C) {
	levels := 4
	s.seed(c, wheel(levels))

	c.Assert(s.inf.InfectAll(context.TODO(), 0, 2), gc.IsNil)

	stamped := s.usersWithVersion(c, 2)
	c.Assert(stamped, gc.HasLen, int(math.Pow10(levels)))
	c.Assert(stamped[0], gc.Equals, int64(0))
	c.Assert(stamped[len(stamped)-1], gc.Equals, int64(math.Pow10(levels)-1))
}

func (s *InfectorTestSuite) TestInfectAllIsIdempotent(c *gc.C) {
	s.seed(c, map[int64][]int64{1: {2, 3}, 4: {5}})

	c.Assert(s.inf.InfectAll(context.TODO(), 3, 2), gc.IsNil)
	first := s.versions(c)
	c.Assert(s.inf.InfectAll(context.TODO(), 3, 2), gc.IsNil)
	c.Assert(s.versions(c), gc.DeepEquals, first)
}

func (s *InfectorTestSuite) TestInfectAllLogsSummary(c *gc.C) {
	s.seed(c, map[int64][]int64{1: {2}})

	c.Assert(s.inf.InfectAll(context.TODO(), 1, 2), gc.IsNil)

	entry := s.hook.LastEntry()
	c.Assert(entry, gc.NotNil)
	c.Assert(entry.Level, gc.Equals, logrus.InfoLevel)
	c.Assert(entry.Data["policy"], gc.Equals, policyAll)
	c.Assert(entry.Data["users"], gc.Equals, 2)
	c.Assert(entry.Data["took"], gc.Equals, "0s")
	c.Assert(entry.Data["run"], gc.Not(gc.Equals), "")
}

func (s *InfectorTestSuite) TestConnectedComponent(c *gc.C) {
	s.seed(c, map[int64][]int64{1: {2, 3}})

	component, err := s.inf.ConnectedComponent(context.TODO(), 1)
	c.Assert(err, gc.IsNil)
	c.Assert(component.IDs(), gc.DeepEquals, []int64{1, 2, 3})
}

func (s *InfectorTestSuite) TestConnectedComponentThousandUsers(c *gc.C) {
	connections := make(map[int64][]int64)
	for i := int64(1); i < 1000; i++ {
		connections[i] = []int64{i + 1, i + 2, i + 3, i + 4, i + 5}
	}
	s.seed(c, connections)

	component, err := s.inf.ConnectedComponent(context.TODO(), 1)
	c.Assert(err, gc.IsNil)
	c.Assert(component.IDs(), gc.DeepEquals, idRange(1, 1005))
}

func (s *InfectorTestSuite) TestConnectedComponentDisconnected(c *gc.C) {
	s.seed(c, map[int64][]int64{1: {2}, 3: {4}})

	component, err := s.inf.ConnectedComponent(context.TODO(), 2)
	c.Assert(err, gc.IsNil)
	c.Assert(component.IDs(), gc.DeepEquals, []int64{1, 2})
}

func (s *InfectorTestSuite) TestInfectRangeSingleComponent(c *gc.C) {
	s.seed(c, map[int64][]int64{1: {2}, 3: {4}})

	infected, err := s.inf.InfectRange(context.TODO(), 1, 10, 2)
	c.Assert(err, gc.IsNil)
	c.Assert(infected.IDs(), gc.DeepEquals, []int64{1, 2})
	c.Assert(s.usersWithVersion(c, 2), gc.DeepEquals, []int64{1, 2})
}

func (s *InfectorTestSuite) TestInfectRangeMergesComponents(c *gc.C) {
	s.seed(c, map[int64][]int64{1: {2}, 3: {4}})

	infected, err := s.inf.InfectRange(context.TODO(), 3, 10, 2)
	c.Assert(err, gc.IsNil)
	c.Assert(infected.IDs(), gc.DeepEquals, []int64{1, 2, 3, 4})
	c.Assert(s.usersWithVersion(c, 2), gc.DeepEquals, []int64{1, 2, 3, 4})
}

func (s *InfectorTestSuite) TestInfectRangeManyUsers(c *gc.C) {
	connections := make(map[int64][]int64)
	for i := int64(1); i < 1000; i++ {
		connections[i] = []int64{i + 1, i + 2, i + 3, i + 4, i + 5}
	}
	for i := int64(2000); i < 3000; i++ {
		connections[i] = []int64{i + 1, i + 2, i + 3, i + 4, i + 5}
	}
	s.seed(c, connections)

	_, err := s.inf.InfectRange(context.TODO(), 100, 2000, 2)
	c.Assert(err, gc.IsNil)
	c.Assert(s.usersWithVersion(c, 2), gc.DeepEquals, idRange(1, 1005))
}

func (s *InfectorTestSuite) TestInfectRangeExceeded(c *gc.C) {
	s.seed(c, map[int64][]int64{1: {2}, 3: {4}, 5: {6, 7}})

	infected, err := s.inf.InfectRange(context.TODO(), 5, 6, 2)
	c.Assert(infected, gc.IsNil)
	c.Assert(errors.Is(err, ErrRangeExceeded), gc.Equals, true)

	var rangeErr *RangeExceededError
	c.Assert(errors.As(err, &rangeErr), gc.Equals, true)
	c.Assert(rangeErr.Accumulated, gc.Equals, 7)
	c.Assert(rangeErr.Max, gc.Equals, 6)

	c.Assert(s.usersWithVersion(c, 2), gc.HasLen, 0)
}

func (s *InfectorTestSuite) TestInfectRangeZeroMinimum(c *gc.C) {
	s.seed(c, map[int64][]int64{1: {2}})

	infected, err := s.inf.InfectRange(context.TODO(), 0, 0, 2)
	c.Assert(err, gc.IsNil)
	c.Assert(infected, gc.HasLen, 0)
	c.Assert(s.usersWithVersion(c, 2), gc.HasLen, 0)
}

func (s *InfectorTestSuite) TestInfectRangeStoreExhausted(c *gc.C) {
	s.seed(c, map[int64][]int64{1: {2}, 3: nil})

	// Fewer users exist than requested; everything that exists is stamped.
	infected, err := s.inf.InfectRange(context.TODO(), 50, 100, 2)
	c.Assert(err, gc.IsNil)
	c.Assert(infected.IDs(), gc.DeepEquals, []int64{1, 2, 3})
	c.Assert(s.usersWithVersion(c, 2), gc.DeepEquals, []int64{1, 2, 3})
}

func (s *InfectorTestSuite) TestInfectRangeInvalidBounds(c *gc.C) {
	s.seed(c, map[int64][]int64{1: {2}})

	_, err := s.inf.InfectRange(context.TODO(), 5, 4, 2)
	c.Assert(errors.Is(err, ErrInvalidRange), gc.Equals, true)
	_, err = s.inf.InfectRange(context.TODO(), -1, 4, 2)
	c.Assert(errors.Is(err, ErrInvalidRange), gc.Equals, true)
	c.Assert(s.usersWithVersion(c, 2), gc.HasLen, 0)
}

func (s *InfectorTestSuite) seed(c *gc.C, connections map[int64][]int64) {
	for _, user := range graph.BuildUsers(connections, 1) {
		c.Assert(s.g.UpsertUser(context.TODO(), user), gc.IsNil)
	}
}

func (s *InfectorTestSuite) versions(c *gc.C) map[int64]int64 {
	it, err := s.g.Users(context.TODO(), math.MinInt64, math.MaxInt64)
	c.Assert(err, gc.IsNil)

	versions := make(map[int64]int64)
	for it.Next() {
		user := it.User()
		versions[user.ID] = user.Version
	}
	c.Assert(it.Error(), gc.IsNil)
	c.Assert(it.Close(), gc.IsNil)
	return versions
}

func (s *InfectorTestSuite) usersWithVersion(c *gc.C, version int64) []int64 {
	matched := make(graph.IDSet)
	for id, v := range s.versions(c) {
		if v == version {
			matched.Add(id)
		}
	}
	return matched.IDs()
}

// wheel builds a map where every x-digit uid coaches ten (x+1)-digit uids,
// producing a single component with the uids [0, 10^levels).
func wheel(levels int) map[int64][]int64 {
	connections := map[int64][]int64{0: {1, 2, 3, 4, 5, 6, 7, 8, 9}}
	for level := 0; level < levels-1; level++ {
		update := make(map[int64][]int64)
		for _, mentees := range connections {
			for _, uid := range mentees {
				if _, exists := connections[uid]; exists {
					continue
				}
				for j := int64(0); j < 10; j++ {
					update[uid] = append(update[uid], uid*10+j)
				}
			}
		}
		for uid, mentees := range update {
			connections[uid] = mentees
		}
	}
	return connections
}

// idRange returns the ids in [from, to).
func idRange(from, to int64) []int64 {
	ids := make([]int64, 0, to-from)
	for id := from; id < to; id++ {
		ids = append(ids, id)
	}
	return ids
}
