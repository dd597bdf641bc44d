package ninja

import (
	"sync"
	"time"
)

// storeEntry is the Store's record for one PathKey: either the key is
// missing, has a real on-disk mtime, or was just rebuilt this session
// (builtNow), which compares strictly greater than any real mtime.
type storeEntry struct {
	exists   bool
	builtNow bool
	t        time.Time
}

// newerThan reports whether entry a is strictly newer than entry b,
// treating a built-now sentinel as newer than any real timestamp.
func (a storeEntry) newerThan(b storeEntry) bool {
	if a.builtNow != b.builtNow {
		return a.builtNow
	}
	if a.builtNow && b.builtNow {
		return false
	}
	return a.t.After(b.t)
}

func (a storeEntry) olderThan(b storeEntry) bool {
	return b.newerThan(a)
}

// Store is the mutable map from PathKey to last-known mtime. Each
// physical path is stat'd at most once per build; the mutex guards the
// cache map and is held across the stat that fills a missing entry,
// since the rebuilder may be consulted from several workers at once.
type Store struct {
	fs       FileSystem
	interner *Interner

	mu      sync.Mutex
	entries map[PathKey]storeEntry
}

// NewStore creates an empty Store backed by fs.
func NewStore(fs FileSystem, interner *Interner) *Store {
	return &Store{fs: fs, interner: interner, entries: make(map[PathKey]storeEntry)}
}

func (s *Store) stat(k PathKey) (storeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[k]; ok {
		return e, nil
	}

	mt, err := s.fs.Stat(s.interner.Lookup(k))
	if err != nil {
		return storeEntry{}, err
	}
	e := storeEntry{exists: mt.Exists, t: mt.T}
	s.entries[k] = e
	return e, nil
}

// MarkBuilt records that k was just produced successfully, writing the
// built-now sentinel.
func (s *Store) MarkBuilt(k PathKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[k] = storeEntry{exists: true, builtNow: true, t: time.Now()}
}

// Rebuilder decides clean vs dirty for a key using the Store and the
// Graph, with the phony-propagation special case: a phony edge has no
// command and is dirty exactly when any of its inputs is.
type Rebuilder struct {
	graph *Graph
	store *Store

	// Always forces every edge with a command to be treated as dirty.
	Always bool

	buildFiles []PathKey
}

// NewRebuilder creates a Rebuilder over graph, using store for mtimes.
func NewRebuilder(graph *Graph, store *Store) *Rebuilder {
	return &Rebuilder{graph: graph, store: store}
}

// SetBuildFiles registers the build files the description was parsed
// from. They act as an implicit input of every edge: an output older
// than its build file is out of date.
func (r *Rebuilder) SetBuildFiles(keys []PathKey) {
	r.buildFiles = keys
}

// IsDirty classifies k as clean (false) or dirty (true).
func (r *Rebuilder) IsDirty(k PathKey) (bool, error) {
	edge := r.graph.Edge(k)

	if edge == nil {
		e, err := r.store.stat(k)
		if err != nil {
			return false, err
		}
		return !e.exists, nil
	}

	if edge.IsPhony() {
		return r.phonyDirty(edge)
	}

	if r.Always {
		return true, nil
	}

	return r.ruleDirty(k, edge)
}

func (r *Rebuilder) phonyDirty(edge *Edge) (bool, error) {
	inputs := edge.AllInputs()
	if len(inputs) == 0 {
		for _, o := range edge.Outputs {
			e, err := r.store.stat(o)
			if err != nil {
				return false, err
			}
			if !e.exists {
				return true, nil
			}
		}
		return false, nil
	}
	for _, in := range inputs {
		dirty, err := r.IsDirty(in)
		if err != nil {
			return false, err
		}
		if dirty {
			return true, nil
		}
	}
	return false, nil
}

func (r *Rebuilder) ruleDirty(k PathKey, edge *Edge) (bool, error) {
	var outMin storeEntry
	haveMin := false
	outMissing := false
	for _, o := range edge.Outputs {
		e, err := r.store.stat(o)
		if err != nil {
			return false, err
		}
		if !e.exists {
			outMissing = true
			continue
		}
		if !haveMin || e.olderThan(outMin) {
			outMin = e
			haveMin = true
		}
	}

	for _, in := range edge.DirtyingInputs() {
		e, err := r.store.stat(in)
		if err != nil {
			return false, err
		}
		if !e.exists {
			if r.graph.IsSource(in) {
				return false, &SemanticError{Msg: "missing input '" + r.store.interner.Lookup(in) +
					"' required by '" + r.store.interner.Lookup(k) + "', and no rule to build it"}
			}
			return true, nil
		}
		if !outMissing && e.newerThan(outMin) {
			return true, nil
		}
	}
	if outMissing {
		return true, nil
	}

	for _, bf := range r.buildFiles {
		e, err := r.store.stat(bf)
		if err != nil {
			return false, err
		}
		if e.exists && e.newerThan(outMin) {
			return true, nil
		}
	}

	// Order-only inputs never dirty the output, but a missing one with no
	// rule to build it is still an error.
	for _, oo := range edge.OrderOnly {
		e, err := r.store.stat(oo)
		if err != nil {
			return false, err
		}
		if !e.exists && r.graph.IsSource(oo) {
			return false, &SemanticError{Msg: "missing order-only input '" + r.store.interner.Lookup(oo) +
				"' required by '" + r.store.interner.Lookup(k) + "', and no rule to build it"}
		}
	}

	return false, nil
}

// PostBuild records a successful command's outputs as built-now.
// Multi-output edges transition all outputs together.
func (r *Rebuilder) PostBuild(edge *Edge) {
	for _, o := range edge.Outputs {
		r.store.MarkBuilt(o)
	}
}
