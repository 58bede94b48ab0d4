// Package census reports how many users run each site version.
package census

import (
	"context"
	"fmt"
	"github.com/ejacobg/ka-infection/graph"
	"github.com/ejacobg/ka-infection/partition"
	"golang.org/x/sync/errgroup"
	"sort"
)

// DefaultPartitions is the number of ID ranges scanned in parallel when the
// caller does not specify one.
const DefaultPartitions = 4

// UserLister is implemented by graph stores that can iterate their users.
type UserLister interface {
	Users(ctx context.Context, fromID, toID int64) (graph.UserIterator, error)
}

// VersionCount is the number of users stamped with a particular version.
type VersionCount struct {
	Version int64 `json:"version"`
	Users   int   `json:"users"`
}

// Report summarizes the versions present in a graph.
type Report struct {
	Users    int            `json:"users"`
	Versions []VersionCount `json:"versions"`
}

// Take scans the whole ID space of g, split into numPartitions ranges that
// are scanned concurrently, and counts the users assigned to each version.
// Versions are reported in ascending order.
func Take(ctx context.Context, g UserLister, numPartitions int) (*Report, error) {
	if numPartitions <= 0 {
		numPartitions = DefaultPartitions
	}

	r, err := partition.NewFullRange(numPartitions)
	if err != nil {
		return nil, fmt.Errorf("census: %w", err)
	}

	counts := make([]map[int64]int, r.NumPartitions())
	eg, egCtx := errgroup.WithContext(ctx)
	for i := 0; i < r.NumPartitions(); i++ {
		fromID, toID, err := r.PartitionExtents(i)
		if err != nil {
			return nil, fmt.Errorf("census: %w", err)
		}

		i := i
		eg.Go(func() error {
			partCounts, err := countRange(egCtx, g, fromID, toID)
			counts[i] = partCounts
			return err
		})
	}
	if err = eg.Wait(); err != nil {
		return nil, fmt.Errorf("census: %w", err)
	}

	merged := make(map[int64]int)
	for _, partCounts := range counts {
		for version, n := range partCounts {
			merged[version] += n
		}
	}

	report := &Report{Versions: make([]VersionCount, 0, len(merged))}
	for version, n := range merged {
		report.Users += n
		report.Versions = append(report.Versions, VersionCount{Version: version, Users: n})
	}
	sort.Slice(report.Versions, func(l, r int) bool {
		return report.Versions[l].Version < report.Versions[r].Version
	})
	return report, nil
}

func countRange(ctx context.Context, g UserLister, fromID, toID int64) (map[int64]int, error) {
	it, err := g.Users(ctx, fromID, toID)
	if err != nil {
		return nil, fmt.Errorf("users [%d, %d): %w", fromID, toID, err)
	}
	defer func() { _ = it.Close() }()

	counts := make(map[int64]int)
	for it.Next() {
		counts[it.User().Version]++
		if err = ctx.Err(); err != nil {
			return nil, err
		}
	}
	if err = it.Error(); err != nil {
		return nil, fmt.Errorf("users [%d, %d): %w", fromID, toID, err)
	}
	return counts, nil
}
