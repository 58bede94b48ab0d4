package main

import (
	"context"
	"fmt"
	"github.com/ejacobg/ka-infection/badgerdb"
	"github.com/ejacobg/ka-infection/cdb"
	"github.com/ejacobg/ka-infection/graph"
	"github.com/ejacobg/ka-infection/infection"
	"github.com/ejacobg/ka-infection/inmem"
	"github.com/ejacobg/ka-infection/mongodb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"io"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"
)

var (
	appName = "ka-infection"
	appSha  = "populated-at-link-time"
)

func main() {
	host, _ := os.Hostname()
	rootLogger := logrus.New()
	logger := rootLogger.WithFields(logrus.Fields{
		"app":  appName,
		"sha":  appSha,
		"host": host,
	})

	if err := newApp(rootLogger, logger).Run(os.Args); err != nil {
		logger.WithField("err", err).Error("shutting down due to error")
		os.Exit(1)
	}
}

func newApp(rootLogger *logrus.Logger, logger *logrus.Entry) *cli.App {
	app := cli.NewApp()
	app.Name = appName
	app.Usage = "roll out site versions to connected groups of coaches and students"
	app.Version = appSha
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "graph-uri",
			Value:  "in-memory://",
			EnvVar: "GRAPH_URI",
			Usage:  "The URI for connecting to the user graph (supported URIs: in-memory://, postgresql://user@host:26257/infection?sslmode=disable, mongodb://host:27017/infection, badger:///path/to/dir, badger://). The in-memory:// and badger:// graphs are discarded on exit and only accepted by serve",
		},
		cli.IntFlag{
			Name:   "batch-size",
			Value:  infection.DefaultBatchSize,
			EnvVar: "BATCH_SIZE",
			Usage:  "The maximum number of users expanded by a single neighbor query",
		},
		cli.DurationFlag{
			Name:   "query-timeout",
			Value:  30 * time.Second,
			EnvVar: "QUERY_TIMEOUT",
			Usage:  "The deadline for each individual store query (0 disables it)",
		},
		cli.StringFlag{
			Name:   "log-level",
			Value:  "info",
			EnvVar: "LOG_LEVEL",
			Usage:  "The minimum level of log entries to emit (debug, info, warn, error)",
		},
	}
	app.Before = func(c *cli.Context) error {
		level, err := logrus.ParseLevel(c.GlobalString("log-level"))
		if err != nil {
			return err
		}
		rootLogger.SetLevel(level)
		return nil
	}
	app.Commands = commands(logger)
	return app
}

// runWithGraph opens the graph selected by --graph-uri, invokes fn with a
// context that is cancelled on SIGINT/SIGTERM and closes the graph once fn
// returns.
func runWithGraph(c *cli.Context, logger *logrus.Entry, fn func(ctx context.Context, g graph.Graph) error) error {
	ctx, cancelFn := context.WithCancel(context.Background())
	defer cancelFn()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
		defer signal.Stop(sigCh)
		select {
		case s := <-sigCh:
			logger.WithField("signal", s.String()).Infof("shutting down due to signal")
			cancelFn()
		case <-ctx.Done():
		}
	}()

	g, err := getGraph(ctx, c.GlobalString("graph-uri"), logger)
	if err != nil {
		return err
	}
	defer func() {
		if closer, ok := g.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				logger.WithField("err", err).Warn("failed to close graph")
			}
		}
	}()

	return fn(ctx, g)
}

// runWithPersistentGraph behaves like runWithGraph but refuses graph URIs
// whose contents are discarded when the process exits.
func runWithPersistentGraph(c *cli.Context, logger *logrus.Entry, fn func(ctx context.Context, g graph.Graph) error) error {
	graphURI := c.GlobalString("graph-uri")
	ephemeral, err := isEphemeralGraph(graphURI)
	if err != nil {
		return err
	}
	if ephemeral {
		return fmt.Errorf("%s: graph URI %q does not persist data between runs; use it with serve or point --graph-uri at a persistent store", c.Command.Name, graphURI)
	}
	return runWithGraph(c, logger, fn)
}

// isEphemeralGraph reports whether the graph selected by graphURI only lives
// for the duration of the process.
func isEphemeralGraph(graphURI string) (bool, error) {
	uri, err := url.Parse(graphURI)
	if err != nil {
		return false, fmt.Errorf("could not parse graph URI: %w", err)
	}
	switch uri.Scheme {
	case "in-memory":
		return true, nil
	case "badger":
		return uri.Path == "", nil
	default:
		return false, nil
	}
}

// newInfector creates an infector for g using the global traversal flags.
// The infection metrics are registered with reg if it is not nil.
func newInfector(c *cli.Context, g graph.Graph, reg prometheus.Registerer, logger *logrus.Entry) (*infection.Infector, error) {
	var metrics *infection.Metrics
	if reg != nil {
		metrics = infection.NewMetrics(reg)
	}

	return infection.New(infection.Config{
		Graph:        g,
		BatchSize:    c.GlobalInt("batch-size"),
		QueryTimeout: c.GlobalDuration("query-timeout"),
		Metrics:      metrics,
		Logger:       logger.WithField("component", "infector"),
	})
}

func getGraph(ctx context.Context, graphURI string, logger *logrus.Entry) (graph.Graph, error) {
	if graphURI == "" {
		return nil, fmt.Errorf("graph URI must be specified with --graph-uri")
	}

	uri, err := url.Parse(graphURI)
	if err != nil {
		return nil, fmt.Errorf("could not parse graph URI: %w", err)
	}

	switch uri.Scheme {
	case "in-memory":
		logger.Info("using in-memory graph")
		return inmem.NewInMemoryGraph(), nil
	case "postgresql":
		logger.Info("using CDB graph")
		return cdb.NewCockroachDBGraph(graphURI)
	case "mongodb", "mongodb+srv":
		logger.Info("using MongoDB graph")
		return mongodb.NewMongoGraph(ctx, graphURI)
	case "badger":
		cfg := badgerdb.Config{
			Path:     uri.Path,
			InMemory: uri.Path == "",
			Logger:   logger.WithField("component", "badger"),
		}
		logger.WithField("path", cfg.Path).Info("using BadgerDB graph")
		return badgerdb.NewBadgerGraph(cfg)
	default:
		return nil, fmt.Errorf("unsupported graph URI scheme: %q", uri.Scheme)
	}
}
