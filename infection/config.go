package infection

import (
	"context"
	"fmt"
	"github.com/ejacobg/ka-infection/graph"
	"github.com/hashicorp/go-multierror"
	"github.com/juju/clock"
	"github.com/sirupsen/logrus"
	"io"
	"time"
)

// DefaultBatchSize is the number of frontier users expanded per store query
// when no explicit batch size is configured.
const DefaultBatchSize = 1000

//go:generate mockgen -package mocks -destination mocks/mock.go github.com/ejacobg/ka-infection/infection EdgeSource

// EdgeSource is implemented by stores that can answer neighbor queries and
// apply version stamps to users.
type EdgeSource interface {
	// NeighborsOf returns the IDs of every user connected to any of ids.
	NeighborsOf(ctx context.Context, ids []int64) (graph.IDSet, error)

	// PickUnmarked returns a user ID that does not belong to excluded or
	// graph.ErrNotFound if no such user exists.
	PickUnmarked(ctx context.Context, excluded graph.IDSet) (int64, error)

	// ApplyVersion sets the version of every listed user.
	ApplyVersion(ctx context.Context, ids []int64, version int64) error
}

// Config encapsulates the settings for configuring an Infector.
type Config struct {
	// The store that provides edges and receives version stamps.
	Graph EdgeSource

	// The maximum number of frontier users queried in a single round.
	// Defaults to DefaultBatchSize if not specified.
	BatchSize int

	// An optional deadline applied to every individual store call.
	QueryTimeout time.Duration

	// A clock instance for measuring infection durations. If not specified,
	// a default wall-clock will be used instead.
	Clock clock.Clock

	// Optional metrics sink.
	Metrics *Metrics

	// The logger to use. If not defined an output-discarding logger will
	// be used instead.
	Logger *logrus.Entry
}

func (cfg *Config) validate() error {
	var err error
	if cfg.Graph == nil {
		err = multierror.Append(err, fmt.Errorf("edge source has not been provided"))
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultBatchSize
	} else if cfg.BatchSize < 0 {
		err = multierror.Append(err, fmt.Errorf("invalid value for batch size: %d", cfg.BatchSize))
	}
	if cfg.QueryTimeout < 0 {
		err = multierror.Append(err, fmt.Errorf("invalid value for query timeout: %s", cfg.QueryTimeout))
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}
	return err
}
