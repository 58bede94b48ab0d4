// Package fixture loads mentorship graphs described in YAML files.
//
// A fixture lists, for every mentor, the users they coach:
//
//	version: 1
//	coaches:
//	  1: [2]
//	  3: [4]
//
// Reverse (coached_by) edges are derived automatically.
package fixture

import (
	"context"
	"fmt"
	"github.com/ejacobg/ka-infection/graph"
	"gopkg.in/yaml.v3"
	"io"
	"os"
)

// Fixture is a mentor -> mentees description of a graph.
type Fixture struct {
	// The version assigned to every seeded user.
	Version int64 `yaml:"version"`

	// Coaches maps a mentor ID to the IDs of the users they coach. Mentors
	// without mentees may be listed with an empty list.
	Coaches map[int64][]int64 `yaml:"coaches"`
}

// Load reads a fixture from the file at path.
func Load(path string) (*Fixture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load fixture: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Parse(f)
}

// Parse decodes a fixture from r.
func Parse(r io.Reader) (*Fixture, error) {
	var fx Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fx); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	return &fx, nil
}

// Users returns the user records described by the fixture.
func (fx *Fixture) Users() []*graph.User {
	return graph.BuildUsers(fx.Coaches, fx.Version)
}

// Seed upserts every user described by the fixture into g and returns the
// number of users written.
func (fx *Fixture) Seed(ctx context.Context, g graph.Graph) (int, error) {
	users := fx.Users()
	for _, user := range users {
		if err := g.UpsertUser(ctx, user); err != nil {
			return 0, fmt.Errorf("seed user %d: %w", user.ID, err)
		}
	}
	return len(users), nil
}
