package partition

import (
	"fmt"
	"math"
	"math/big" // the span of the full int64 range does not fit in an int64.
)

// Range represents a contiguous user ID region which is split into a number
// of partitions.
type Range struct {
	// The lower bound for the range (inclusive).
	start int64

	// rangeSplits[i] holds the upper bound (exclusive) for partition i.
	// Each partition (i) looks like this: [rangeSplits[i-1], rangeSplits[i]).
	// The lower bound for the first partition is always start, and the upper
	// bound for the last partition is always end.
	rangeSplits []int64
}

// NewRange creates a new range [start, end) and splits it into the
// provided number of partitions.
func NewRange(start, end int64, numPartitions int) (Range, error) {
	if start >= end {
		return Range{}, fmt.Errorf("range start ID must be less than the end ID")
	} else if numPartitions <= 0 {
		return Range{}, fmt.Errorf("number of partitions must be at least equal to 1")
	}

	span := new(big.Int).Sub(big.NewInt(end), big.NewInt(start))
	if span.Cmp(big.NewInt(int64(numPartitions))) < 0 {
		return Range{}, fmt.Errorf("range [%d, %d) cannot be split into %d partitions", start, end, numPartitions)
	}

	// Each partition spans (end - start) / numPartitions IDs; the last one
	// absorbs the remainder.
	partSize := new(big.Int).Div(span, big.NewInt(int64(numPartitions)))

	var (
		ranges = make([]int64, numPartitions)
		bound  = new(big.Int)
	)
	for partition := 0; partition < numPartitions-1; partition++ {
		bound.Mul(partSize, big.NewInt(int64(partition+1)))
		bound.Add(bound, big.NewInt(start))
		ranges[partition] = bound.Int64()
	}
	ranges[numPartitions-1] = end

	return Range{start: start, rangeSplits: ranges}, nil
}

// NewFullRange creates a new range that covers every ID accepted by the
// graph stores and splits it into the provided number of partitions.
//
// The upper bound is exclusive, so the ID math.MaxInt64 is not covered.
func NewFullRange(numPartitions int) (Range, error) {
	return NewRange(math.MinInt64, math.MaxInt64, numPartitions)
}

// NumPartitions returns the number of partitions in the range.
func (r Range) NumPartitions() int {
	return len(r.rangeSplits)
}

// Extents returns the full [start, end) range this object represents.
func (r Range) Extents() (int64, int64) {
	return r.start, r.rangeSplits[len(r.rangeSplits)-1]
}

// PartitionExtents returns the [start, end) range for the requested partition.
func (r Range) PartitionExtents(partition int) (int64, int64, error) {
	if partition < 0 || partition >= len(r.rangeSplits) {
		return 0, 0, fmt.Errorf("invalid partition index")
	}

	if partition == 0 {
		return r.start, r.rangeSplits[0], nil
	}
	return r.rangeSplits[partition-1], r.rangeSplits[partition], nil
}
