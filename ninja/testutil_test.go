package ninja_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/nbuild/nin/ninja"
)

// fakeLoader serves build files from memory so parser tests never touch
// disk.
type fakeLoader map[string]string

func (l fakeLoader) ReadFile(path string) (string, error) {
	if c, ok := l[path]; ok {
		return c, nil
	}
	return "", &ninja.IOError{Path: path, Err: os.ErrNotExist}
}

// fakeFS serves mtimes from memory and counts how often each path is
// stat'd.
type fakeFS struct {
	mu    sync.Mutex
	files map[string]ninja.Mtime
	stats map[string]int
}

func newFakeFS(files map[string]ninja.Mtime) *fakeFS {
	return &fakeFS{files: files, stats: make(map[string]int)}
}

func (f *fakeFS) Stat(path string) (ninja.Mtime, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats[path]++
	return f.files[path], nil
}

func (f *fakeFS) statCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats[path]
}

func mt(sec int64) ninja.Mtime {
	return ninja.Mtime{Exists: true, T: time.Unix(sec, 0)}
}

// fakeExec records the title of every edge it runs, in completion order,
// and fails the ones listed in fail.
type fakeExec struct {
	mu   sync.Mutex
	ran  []string
	fail map[string]bool
}

func (e *fakeExec) Run(ctx context.Context, edge *ninja.Edge) error {
	if _, err := edge.Command(); err != nil {
		return err
	}
	e.mu.Lock()
	e.ran = append(e.ran, edge.Title)
	failed := e.fail[edge.Title]
	e.mu.Unlock()
	if failed {
		return errors.New("exit status 1")
	}
	return nil
}

func (e *fakeExec) runs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.ran...)
}

func parseDesc(t *testing.T, files fakeLoader, top string) (*ninja.BuildDescription, *ninja.Interner) {
	t.Helper()
	interner := ninja.NewInterner()
	p := ninja.NewParser(files, interner)
	bd, err := p.ParseFile(top)
	if err != nil {
		t.Fatalf("parse %s: %v", top, err)
	}
	return bd, interner
}

func edgeFor(t *testing.T, bd *ninja.BuildDescription, interner *ninja.Interner, out string) *ninja.Edge {
	t.Helper()
	k, ok := interner.Find(out)
	if !ok {
		t.Fatalf("output %q was never interned", out)
	}
	e := bd.ByOutput[k]
	if e == nil {
		t.Fatalf("no edge declares output %q", out)
	}
	return e
}

func key(t *testing.T, interner *ninja.Interner, path string) ninja.PathKey {
	t.Helper()
	k, ok := interner.Find(path)
	if !ok {
		t.Fatalf("path %q was never interned", path)
	}
	return k
}
