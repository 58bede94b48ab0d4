// Package infection stamps site versions onto connected components of the
// mentorship graph.
//
// Components are discovered with a batched breadth-first traversal: every
// round pops up to BatchSize users from the frontier and expands all of them
// with a single store query, so a component of N users costs about
// N/BatchSize round trips.
package infection

import (
	"context"
	"errors"
	"fmt"
	"github.com/ejacobg/ka-infection/graph"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	policyAll   = "all"
	policyRange = "range"
)

// Infector applies infection policies against an EdgeSource. It holds no
// per-call state and may be shared between goroutines; concurrent infections
// of overlapping components are not serialized.
type Infector struct {
	cfg Config
}

// New creates a new Infector instance with the specified config.
func New(cfg Config) (*Infector, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("infector: config validation failed: %w", err)
	}
	return &Infector{cfg: cfg}, nil
}

// ConnectedComponent returns every user reachable from start through coaching
// relationships in either direction. The result always contains start, even
// when the store has no record for it.
func (inf *Infector) ConnectedComponent(ctx context.Context, start int64) (graph.IDSet, error) {
	return inf.connectedComponent(ctx, start, inf.cfg.Logger)
}

// InfectAll stamps version onto the whole component that contains start using
// a single bulk update. Store errors are returned as-is (wrapped) and nothing
// is retried.
func (inf *Infector) InfectAll(ctx context.Context, start, version int64) error {
	logger := inf.runLogger(policyAll)
	began := inf.cfg.Clock.Now()

	component, err := inf.connectedComponent(ctx, start, logger)
	if err != nil {
		return fmt.Errorf("infect all: %w", err)
	}

	if err = inf.applyVersion(ctx, component.IDs(), version); err != nil {
		return fmt.Errorf("infect all: %w", err)
	}

	inf.cfg.Metrics.observeStamp(policyAll, len(component))
	logger.WithFields(logrus.Fields{
		"start":   start,
		"version": version,
		"users":   len(component),
		"took":    inf.cfg.Clock.Now().Sub(began).String(),
	}).Info("infection complete")
	return nil
}

// InfectRange accumulates whole connected components until at least minCount
// users have been collected (or the store runs out of users) and stamps
// version onto them with a single bulk update.
//
// Components are never split, so the accumulated total may overshoot. If it
// exceeds maxCount a *RangeExceededError is returned and the store is left
// untouched. Components are picked in the order the store's PickUnmarked
// yields them.
func (inf *Infector) InfectRange(ctx context.Context, minCount, maxCount int, version int64) (graph.IDSet, error) {
	if minCount < 0 || minCount > maxCount {
		return nil, fmt.Errorf("infect range [%d, %d]: %w", minCount, maxCount, ErrInvalidRange)
	}

	logger := inf.runLogger(policyRange)
	began := inf.cfg.Clock.Now()

	acc := make(graph.IDSet)
	for len(acc) < minCount {
		start, err := inf.pickUnmarked(ctx, acc)
		if errors.Is(err, graph.ErrNotFound) {
			logger.WithField("users", len(acc)).Debug("store exhausted before reaching minimum")
			break
		} else if err != nil {
			return nil, fmt.Errorf("infect range: %w", err)
		} else if acc.Has(start) {
			return nil, fmt.Errorf("infect range: store picked already marked user %d", start)
		}

		component, err := inf.connectedComponent(ctx, start, logger)
		if err != nil {
			return nil, fmt.Errorf("infect range: %w", err)
		}
		acc.Union(component)
	}

	if len(acc) > maxCount {
		inf.cfg.Metrics.observeRejection()
		logger.WithFields(logrus.Fields{
			"users": len(acc),
			"min":   minCount,
			"max":   maxCount,
		}).Warn("infection rejected")
		return nil, &RangeExceededError{Accumulated: len(acc), Min: minCount, Max: maxCount}
	}

	if err := inf.applyVersion(ctx, acc.IDs(), version); err != nil {
		return nil, fmt.Errorf("infect range: %w", err)
	}

	inf.cfg.Metrics.observeStamp(policyRange, len(acc))
	logger.WithFields(logrus.Fields{
		"version": version,
		"users":   len(acc),
		"took":    inf.cfg.Clock.Now().Sub(began).String(),
	}).Info("infection complete")
	return acc, nil
}

func (inf *Infector) connectedComponent(ctx context.Context, start int64, logger *logrus.Entry) (graph.IDSet, error) {
	var (
		queue = newFrontier(start)
		seen  = make(graph.IDSet)
		round int
	)

	for !queue.empty() {
		// The same user may be queued several times before it is expanded;
		// drop anything already handled so it is never queried twice.
		var batch []int64
		for _, id := range queue.popN(inf.cfg.BatchSize) {
			if !seen.Has(id) {
				seen.Add(id)
				batch = append(batch, id)
			}
		}
		if len(batch) == 0 {
			continue
		}

		neighbors, err := inf.neighborsOf(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("connected component of %d: round %d: %w", start, round, err)
		}
		inf.cfg.Metrics.observeRound()

		for id := range neighbors {
			if !seen.Has(id) {
				queue.push(id)
			}
		}

		logger.WithFields(logrus.Fields{
			"round":    round,
			"batch":    len(batch),
			"frontier": queue.len(),
			"seen":     len(seen),
		}).Debug("expanded frontier")
		round++
	}

	inf.cfg.Metrics.observeComponent(len(seen))
	return seen, nil
}

func (inf *Infector) runLogger(policy string) *logrus.Entry {
	return inf.cfg.Logger.WithFields(logrus.Fields{
		"run":    uuid.New().String(),
		"policy": policy,
	})
}

func (inf *Infector) neighborsOf(ctx context.Context, ids []int64) (graph.IDSet, error) {
	ctx, cancelFn := inf.withTimeout(ctx)
	defer cancelFn()
	return inf.cfg.Graph.NeighborsOf(ctx, ids)
}

func (inf *Infector) pickUnmarked(ctx context.Context, excluded graph.IDSet) (int64, error) {
	ctx, cancelFn := inf.withTimeout(ctx)
	defer cancelFn()
	return inf.cfg.Graph.PickUnmarked(ctx, excluded)
}

func (inf *Infector) applyVersion(ctx context.Context, ids []int64, version int64) error {
	ctx, cancelFn := inf.withTimeout(ctx)
	defer cancelFn()
	return inf.cfg.Graph.ApplyVersion(ctx, ids, version)
}

func (inf *Infector) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if inf.cfg.QueryTimeout == 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, inf.cfg.QueryTimeout)
}
