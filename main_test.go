package main

import (
	"bytes"
	"context"
	"errors"
	"github.com/ejacobg/ka-infection/badgerdb"
	"github.com/ejacobg/ka-infection/inmem"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/urfave/cli"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGetGraph(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	entry := logrus.NewEntry(logger)

	g, err := getGraph(context.TODO(), "in-memory://", entry)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := g.(*inmem.InMemoryGraph); !ok {
		t.Errorf("expected an in-memory graph; got %T", g)
	}

	g, err = getGraph(context.TODO(), "badger://", entry)
	if err != nil {
		t.Fatal(err)
	}
	bg, ok := g.(*badgerdb.BadgerGraph)
	if !ok {
		t.Fatalf("expected a badger graph; got %T", g)
	}
	if err = bg.Close(); err != nil {
		t.Fatal(err)
	}

	for _, uri := range []string{"", "redis://localhost", "://bad"} {
		if _, err = getGraph(context.TODO(), uri, entry); err == nil {
			t.Errorf("expected an error for URI %q", uri)
		}
	}
}

func TestSeedAndInfectWithBadger(t *testing.T) {
	dir := t.TempDir()
	fixturePath := filepath.Join(dir, "graph.yaml")
	if err := os.WriteFile(fixturePath, []byte("version: 1\ncoaches:\n  1: [2]\n  3: [4]\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	graphURI := "badger://" + filepath.Join(dir, "db")

	run(t, "--graph-uri", graphURI, "seed", fixturePath)
	run(t, "--graph-uri", graphURI, "infect-all", "2", "7")

	out := run(t, "--graph-uri", graphURI, "list")
	exp := []string{
		"UID  VERSION  COACHES  COACHED BY",
		"1    7        2        -",
		"2    7        -        1",
		"3    1        4        -",
		"4    1        -        3",
	}
	if got := strings.Split(strings.TrimSpace(out), "\n"); strings.Join(got, "\n") != strings.Join(exp, "\n") {
		t.Errorf("unexpected list output:\n%s", out)
	}

	out = run(t, "--graph-uri", graphURI, "component", "4")
	if out != "3\n4\n" {
		t.Errorf("unexpected component output %q", out)
	}

	out = run(t, "--graph-uri", graphURI, "census")
	if !strings.Contains(out, "total    4") {
		t.Errorf("unexpected census output:\n%s", out)
	}
}

func TestInfectRange(t *testing.T) {
	var exitCode int
	origExiter, origErrWriter := cli.OsExiter, cli.ErrWriter
	defer func() { cli.OsExiter, cli.ErrWriter = origExiter, origErrWriter }()
	cli.OsExiter = func(code int) { exitCode = code }
	var errOut bytes.Buffer
	cli.ErrWriter = &errOut

	dir := t.TempDir()
	fixturePath := filepath.Join(dir, "graph.yaml")
	if err := os.WriteFile(fixturePath, []byte("version: 1\ncoaches:\n  1: [2]\n  3: [4]\n  5: [6, 7]\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	graphURI := "badger://" + filepath.Join(dir, "db")
	run(t, "--graph-uri", graphURI, "seed", fixturePath)

	// Components have 2, 2 and 3 users so no selection fits in [5, 6].
	_, err := runErr("--graph-uri", graphURI, "infect-range", "5", "6", "2")
	var exitErr cli.ExitCoder
	if !errors.As(err, &exitErr) || exitErr.ExitCode() != exitRangeExceeded {
		t.Fatalf("expected an exit error with code %d; got %v", exitRangeExceeded, err)
	}
	if exitCode != exitRangeExceeded {
		t.Errorf("process exit code %d; want %d", exitCode, exitRangeExceeded)
	}
	if !strings.Contains(errOut.String(), "range exceeded") {
		t.Errorf("unexpected error output %q", errOut.String())
	}

	out := run(t, "--graph-uri", graphURI, "list")
	for _, line := range strings.Split(strings.TrimSpace(out), "\n")[1:] {
		if fields := strings.Fields(line); fields[1] != "1" {
			t.Errorf("user %s was stamped by a rejected rollout: %q", fields[0], line)
		}
	}

	out = run(t, "--graph-uri", graphURI, "infect-range", "3", "10", "2")
	if out != "infected 4 users\n" {
		t.Errorf("unexpected infect-range output %q", out)
	}
	out = run(t, "--graph-uri", graphURI, "census")
	if !strings.Contains(out, "2        4") || !strings.Contains(out, "total    7") {
		t.Errorf("unexpected census output:\n%s", out)
	}
}

func TestOneShotCommandsNeedPersistentGraph(t *testing.T) {
	for _, args := range [][]string{
		{"component", "1"},
		{"infect-all", "1", "2"},
		{"infect-range", "1", "2", "3"},
		{"list"},
		{"census"},
		{"--graph-uri", "in-memory://", "census"},
		{"--graph-uri", "badger://", "list"},
	} {
		_, err := runErr(args...)
		if err == nil || !strings.Contains(err.Error(), "does not persist data") {
			t.Errorf("expected %v to be refused; got %v", args, err)
		}
	}
}

func TestIsEphemeralGraph(t *testing.T) {
	specs := []struct {
		uri string
		exp bool
	}{
		{uri: "in-memory://", exp: true},
		{uri: "badger://", exp: true},
		{uri: "badger:///var/lib/infection", exp: false},
		{uri: "postgresql://root@localhost:26257/infection", exp: false},
		{uri: "mongodb://localhost:27017/infection", exp: false},
	}
	for _, spec := range specs {
		got, err := isEphemeralGraph(spec.uri)
		if err != nil {
			t.Errorf("%q: %v", spec.uri, err)
			continue
		}
		if got != spec.exp {
			t.Errorf("%q: got ephemeral=%t; want %t", spec.uri, got, spec.exp)
		}
	}

	if _, err := isEphemeralGraph("://bad"); err == nil {
		t.Error("expected an error for a malformed URI")
	}
}

func TestInfectRangeRejectsOversizedBounds(t *testing.T) {
	graphURI := "badger://" + filepath.Join(t.TempDir(), "db")
	for _, args := range [][]string{
		{"infect-range", "99999999999999999999", "10", "2"},
		{"infect-range", "1", "99999999999999999999", "2"},
		{"infect-range", "1", "10", "99999999999999999999"},
	} {
		_, err := runErr(append([]string{"--graph-uri", graphURI}, args...)...)
		if err == nil || !strings.Contains(err.Error(), "infect-range: invalid") {
			t.Errorf("expected %v to be rejected; got %v", args, err)
		}
	}
}

func TestBadArguments(t *testing.T) {
	for _, args := range [][]string{
		{"component"},
		{"component", "abc"},
		{"infect-all", "1"},
		{"infect-range", "1", "2"},
		{"seed"},
		{"--log-level", "chatty", "component", "1"},
	} {
		logger, _ := logtest.NewNullLogger()
		app := newApp(logger, logrus.NewEntry(logger))
		app.Writer = new(bytes.Buffer)
		app.ErrWriter = new(bytes.Buffer)
		if err := app.Run(append([]string{appName}, args...)); err == nil {
			t.Errorf("expected an error for args %v", args)
		}
	}
}

func run(t *testing.T, args ...string) string {
	t.Helper()

	out, err := runErr(args...)
	if err != nil {
		t.Fatalf("%v: %v", args, err)
	}
	return out
}

func runErr(args ...string) (string, error) {
	logger, _ := logtest.NewNullLogger()
	app := newApp(logger, logrus.NewEntry(logger))
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = new(bytes.Buffer)
	err := app.Run(append([]string{appName}, args...))
	return out.String(), err
}
