package main

import (
	"context"
	"errors"
	"fmt"
	"github.com/ejacobg/ka-infection/api"
	"github.com/ejacobg/ka-infection/census"
	"github.com/ejacobg/ka-infection/fixture"
	"github.com/ejacobg/ka-infection/graph"
	"github.com/ejacobg/ka-infection/infection"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"math"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"
)

// exitRangeExceeded is the process exit code reported when infect-range
// cannot fit whole components into the requested band.
const exitRangeExceeded = 3

func commands(logger *logrus.Entry) []cli.Command {
	return []cli.Command{
		{
			Name:      "seed",
			Usage:     "load users from a YAML fixture into the graph",
			ArgsUsage: "FILE",
			Action: func(c *cli.Context) error {
				if c.NArg() != 1 {
					return fmt.Errorf("seed: expected exactly one fixture file")
				}
				fx, err := fixture.Load(c.Args().First())
				if err != nil {
					return err
				}

				return runWithPersistentGraph(c, logger, func(ctx context.Context, g graph.Graph) error {
					n, err := fx.Seed(ctx, g)
					if err != nil {
						return err
					}
					logger.WithField("users", n).Info("seeded graph")
					return nil
				})
			},
		},
		{
			Name:      "component",
			Usage:     "print the connected component that contains a user",
			ArgsUsage: "UID",
			Action: func(c *cli.Context) error {
				args, err := int64Args(c, "uid")
				if err != nil {
					return err
				}

				return runWithPersistentGraph(c, logger, func(ctx context.Context, g graph.Graph) error {
					inf, err := newInfector(c, g, nil, logger)
					if err != nil {
						return err
					}
					component, err := inf.ConnectedComponent(ctx, args[0])
					if err != nil {
						return err
					}
					for _, id := range component.IDs() {
						_, _ = fmt.Fprintln(c.App.Writer, id)
					}
					return nil
				})
			},
		},
		{
			Name:      "infect-all",
			Usage:     "stamp a version onto the whole component that contains a user",
			ArgsUsage: "UID VERSION",
			Action: func(c *cli.Context) error {
				args, err := int64Args(c, "uid", "version")
				if err != nil {
					return err
				}

				return runWithPersistentGraph(c, logger, func(ctx context.Context, g graph.Graph) error {
					inf, err := newInfector(c, g, nil, logger)
					if err != nil {
						return err
					}
					return inf.InfectAll(ctx, args[0], args[1])
				})
			},
		},
		{
			Name:      "infect-range",
			Usage:     "stamp a version onto whole components until at least MIN and at most MAX users are covered",
			ArgsUsage: "MIN MAX VERSION",
			Action: func(c *cli.Context) error {
				if err := checkNArg(c, "min", "max", "version"); err != nil {
					return err
				}
				minUsers, err := parseArg(c, 0, "min", strconv.IntSize)
				if err != nil {
					return err
				}
				maxUsers, err := parseArg(c, 1, "max", strconv.IntSize)
				if err != nil {
					return err
				}
				version, err := parseArg(c, 2, "version", 64)
				if err != nil {
					return err
				}

				return runWithPersistentGraph(c, logger, func(ctx context.Context, g graph.Graph) error {
					inf, err := newInfector(c, g, nil, logger)
					if err != nil {
						return err
					}

					infected, err := inf.InfectRange(ctx, int(minUsers), int(maxUsers), version)
					if errors.Is(err, infection.ErrRangeExceeded) {
						return cli.NewExitError(err.Error(), exitRangeExceeded)
					} else if err != nil {
						return err
					}
					_, _ = fmt.Fprintf(c.App.Writer, "infected %d users\n", len(infected))
					return nil
				})
			},
		},
		{
			Name:  "list",
			Usage: "print the users whose IDs fall in [--from, --to)",
			Flags: []cli.Flag{
				cli.Int64Flag{Name: "from", Value: math.MinInt64, Usage: "The lowest user ID to list (inclusive)"},
				cli.Int64Flag{Name: "to", Value: math.MaxInt64, Usage: "The highest user ID to list (exclusive)"},
			},
			Action: func(c *cli.Context) error {
				return runWithPersistentGraph(c, logger, func(ctx context.Context, g graph.Graph) error {
					it, err := g.Users(ctx, c.Int64("from"), c.Int64("to"))
					if err != nil {
						return err
					}
					defer func() { _ = it.Close() }()

					w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
					_, _ = fmt.Fprintln(w, "UID\tVERSION\tCOACHES\tCOACHED BY")
					for it.Next() {
						user := it.User()
						_, _ = fmt.Fprintf(w, "%d\t%d\t%s\t%s\n", user.ID, user.Version, joinIDs(user.Coaches), joinIDs(user.CoachedBy))
					}
					if err = it.Error(); err != nil {
						return err
					}
					return w.Flush()
				})
			},
		},
		{
			Name:  "census",
			Usage: "print the number of users assigned to each version",
			Flags: []cli.Flag{
				cli.IntFlag{Name: "partitions", Value: census.DefaultPartitions, Usage: "The number of ID ranges to scan in parallel"},
			},
			Action: func(c *cli.Context) error {
				return runWithPersistentGraph(c, logger, func(ctx context.Context, g graph.Graph) error {
					report, err := census.Take(ctx, g, c.Int("partitions"))
					if err != nil {
						return err
					}

					w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
					_, _ = fmt.Fprintln(w, "VERSION\tUSERS")
					for _, vc := range report.Versions {
						_, _ = fmt.Fprintf(w, "%d\t%d\n", vc.Version, vc.Users)
					}
					_, _ = fmt.Fprintf(w, "total\t%d\n", report.Users)
					return w.Flush()
				})
			},
		},
		{
			Name:  "serve",
			Usage: "expose the infection policies over HTTP",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "listen-addr", Value: ":8080", EnvVar: "LISTEN_ADDR", Usage: "The address to listen for incoming API requests"},
				cli.StringFlag{Name: "fixture", Usage: "An optional YAML fixture loaded into the graph before serving"},
				cli.IntFlag{Name: "census-partitions", Value: census.DefaultPartitions, Usage: "The number of ID ranges scanned in parallel by /census"},
				cli.DurationFlag{Name: "shutdown-timeout", Value: 10 * time.Second, Usage: "The time allowed for in-flight requests to complete on shutdown"},
			},
			Action: func(c *cli.Context) error {
				return runWithGraph(c, logger, func(ctx context.Context, g graph.Graph) error {
					if path := c.String("fixture"); path != "" {
						fx, err := fixture.Load(path)
						if err != nil {
							return err
						}
						n, err := fx.Seed(ctx, g)
						if err != nil {
							return err
						}
						logger.WithField("users", n).Info("seeded graph")
					}

					reg := prometheus.NewRegistry()
					inf, err := newInfector(c, g, reg, logger)
					if err != nil {
						return err
					}

					svc, err := api.NewService(api.Config{
						Infector:         inf,
						Store:            g,
						CensusPartitions: c.Int("census-partitions"),
						ListenAddr:       c.String("listen-addr"),
						Gatherer:         reg,
						ShutdownTimeout:  c.Duration("shutdown-timeout"),
						Logger:           logger.WithField("component", "api"),
					})
					if err != nil {
						return err
					}

					if err = svc.Run(ctx); err != nil {
						return err
					}
					logger.Info("shutdown complete")
					return nil
				})
			},
		},
	}
}

// int64Args parses the positional arguments of c, one per name.
func int64Args(c *cli.Context, names ...string) ([]int64, error) {
	if err := checkNArg(c, names...); err != nil {
		return nil, err
	}

	values := make([]int64, len(names))
	for i, name := range names {
		v, err := parseArg(c, i, name, 64)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

func checkNArg(c *cli.Context, names ...string) error {
	if c.NArg() != len(names) {
		return fmt.Errorf("%s: expected arguments %s", c.Command.Name, strings.ToUpper(strings.Join(names, " ")))
	}
	return nil
}

// parseArg parses the i-th positional argument of c as a signed integer that
// fits in bitSize bits.
func parseArg(c *cli.Context, i int, name string, bitSize int) (int64, error) {
	v, err := strconv.ParseInt(c.Args().Get(i), 10, bitSize)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid %s %q", c.Command.Name, name, c.Args().Get(i))
	}
	return v, nil
}

func joinIDs(ids []int64) string {
	if len(ids) == 0 {
		return "-"
	}

	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
