// Package cdb provides a mentorship graph backed by CockroachDB (or any
// PostgreSQL-compatible database).
package cdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"github.com/ejacobg/ka-infection/graph"
	"github.com/lib/pq"
)

var (
	schemaQueries = []string{
		`CREATE TABLE IF NOT EXISTS users (
			uid INT8 PRIMARY KEY,
			coaches INT8[] NOT NULL DEFAULT '{}',
			coached_by INT8[] NOT NULL DEFAULT '{}',
			version INT8 NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS users_version_idx ON users (version)`,
	}

	upsertUserQuery = `
INSERT INTO users (uid, coaches, coached_by, version) VALUES ($1, $2, $3, $4)
ON CONFLICT (uid) DO UPDATE SET coaches = excluded.coaches, coached_by = excluded.coached_by, version = excluded.version`

	findUserQuery = "SELECT uid, coaches, coached_by, version FROM users WHERE uid = $1"

	usersInRangeQuery = "SELECT uid, coaches, coached_by, version FROM users WHERE uid >= $1 AND uid < $2 ORDER BY uid"

	neighborsQuery = "SELECT coaches, coached_by FROM users WHERE uid = ANY($1)"

	pickUnmarkedQuery = "SELECT uid FROM users WHERE NOT (uid = ANY($1)) ORDER BY uid LIMIT 1"

	applyVersionQuery = "UPDATE users SET version = $1 WHERE uid = ANY($2)"

	// Compile-time check for ensuring CockroachDBGraph implements Graph.
	_ graph.Graph = (*CockroachDBGraph)(nil)
)

// CockroachDBGraph implements a mentorship graph that persists its users to a
// CockroachDB instance.
type CockroachDBGraph struct {
	db *sql.DB
}

// NewCockroachDBGraph returns a CockroachDBGraph instance that connects to the
// cockroachdb instance specified by dsn and ensures the users table exists.
func NewCockroachDBGraph(dsn string) (*CockroachDBGraph, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	for _, q := range schemaQueries {
		if _, err = db.Exec(q); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}

	return &CockroachDBGraph{db: db}, nil
}

// Close terminates the connection to the backing cockroachdb instance.
func (c *CockroachDBGraph) Close() error {
	return c.db.Close()
}

// UpsertUser creates a new user or replaces an existing user.
func (c *CockroachDBGraph) UpsertUser(ctx context.Context, user *graph.User) error {
	_, err := c.db.ExecContext(ctx, upsertUserQuery,
		user.ID,
		pq.Array(nonNil(user.Coaches)),
		pq.Array(nonNil(user.CoachedBy)),
		user.Version,
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// FindUser looks up a user by its ID.
func (c *CockroachDBGraph) FindUser(ctx context.Context, id int64) (*graph.User, error) {
	row := c.db.QueryRowContext(ctx, findUserQuery, id)

	user, err := scanUser(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find user: %w", graph.ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

// Users returns an iterator for the set of users whose IDs belong to the
// [fromID, toID) range.
func (c *CockroachDBGraph) Users(ctx context.Context, fromID, toID int64) (graph.UserIterator, error) {
	rows, err := c.db.QueryContext(ctx, usersInRangeQuery, fromID, toID)
	if err != nil {
		return nil, fmt.Errorf("users: %w", err)
	}
	return &userIterator{rows: rows}, nil
}

// NeighborsOf returns the IDs of every user connected to any of ids.
func (c *CockroachDBGraph) NeighborsOf(ctx context.Context, ids []int64) (graph.IDSet, error) {
	rows, err := c.db.QueryContext(ctx, neighborsQuery, pq.Array(nonNil(ids)))
	if err != nil {
		return nil, fmt.Errorf("neighbors of: %w", err)
	}
	defer func() { _ = rows.Close() }()

	neighbors := make(graph.IDSet)
	for rows.Next() {
		var coaches, coachedBy pq.Int64Array
		if err = rows.Scan(&coaches, &coachedBy); err != nil {
			return nil, fmt.Errorf("neighbors of: %w", err)
		}
		neighbors.Add(coaches...)
		neighbors.Add(coachedBy...)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("neighbors of: %w", err)
	}
	return neighbors, nil
}

// PickUnmarked returns the lowest user ID not present in excluded.
func (c *CockroachDBGraph) PickUnmarked(ctx context.Context, excluded graph.IDSet) (int64, error) {
	var id int64
	err := c.db.QueryRowContext(ctx, pickUnmarkedQuery, pq.Array(excluded.IDs())).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("pick unmarked: %w", graph.ErrNotFound)
	} else if err != nil {
		return 0, fmt.Errorf("pick unmarked: %w", err)
	}
	return id, nil
}

// ApplyVersion sets the version of every listed user.
func (c *CockroachDBGraph) ApplyVersion(ctx context.Context, ids []int64, version int64) error {
	if _, err := c.db.ExecContext(ctx, applyVersionQuery, version, pq.Array(nonNil(ids))); err != nil {
		return fmt.Errorf("apply version: %w", err)
	}
	return nil
}

// scanUser reads a user row using the provided scan function, which allows
// the same logic to serve both *sql.Row and *sql.Rows.
func scanUser(scan func(dest ...any) error) (*graph.User, error) {
	var (
		user               = new(graph.User)
		coaches, coachedBy pq.Int64Array
	)
	if err := scan(&user.ID, &coaches, &coachedBy, &user.Version); err != nil {
		return nil, err
	}
	user.Coaches = coaches
	user.CoachedBy = coachedBy
	return user, nil
}

// nonNil makes sure pq encodes empty lists as '{}' instead of NULL.
func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
