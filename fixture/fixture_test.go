package fixture

import (
	"context"
	"errors"
	"github.com/ejacobg/ka-infection/graph"
	"github.com/ejacobg/ka-infection/inmem"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

const sample = `
version: 1
coaches:
  1: [2]
  3: [4]
  5: []
`

func TestParse(t *testing.T) {
	fx, err := Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("failed to parse fixture: %v", err)
	}

	exp := &Fixture{
		Version: 1,
		Coaches: map[int64][]int64{1: {2}, 3: {4}, 5: {}},
	}
	if diff := cmp.Diff(exp, fx, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("fixture mismatch (-want +got):\n%s", diff)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse(strings.NewReader("version: 1\nmentors:\n  1: [2]\n"))
	if err == nil {
		t.Fatal("expected an error for unknown field")
	}
}

func TestUsers(t *testing.T) {
	fx, err := Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("failed to parse fixture: %v", err)
	}

	users := fx.Users()
	sort.Slice(users, func(l, r int) bool { return users[l].ID < users[r].ID })

	exp := []*graph.User{
		{ID: 1, Coaches: []int64{2}, Version: 1},
		{ID: 2, CoachedBy: []int64{1}, Version: 1},
		{ID: 3, Coaches: []int64{4}, Version: 1},
		{ID: 4, CoachedBy: []int64{3}, Version: 1},
		{ID: 5, Version: 1},
	}
	if diff := cmp.Diff(exp, users, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("users mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadAndSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.yaml")
	if err := os.WriteFile(path, []byte(sample), 0o600); err != nil {
		t.Fatal(err)
	}

	fx, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load fixture: %v", err)
	}

	g := inmem.NewInMemoryGraph()
	n, err := fx.Seed(context.Background(), g)
	if err != nil {
		t.Fatalf("failed to seed graph: %v", err)
	}
	if n != 5 {
		t.Errorf("seeded %d users, want 5", n)
	}

	neighbors, err := g.NeighborsOf(context.Background(), []int64{4})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int64{3}, neighbors.IDs()); diff != "" {
		t.Errorf("neighbors mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("unexpected error %v", err)
	}
}
