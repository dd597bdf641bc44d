package ninja

import (
	"path"
	"strings"
	"sync"

	"github.com/segmentio/fasthash/fnv1a"
)

// PathKey is an opaque, process-wide index into the Interner. Two byte
// sequences that are lexically equal after canonicalization share a key.
type PathKey int32

// Interner canonicalizes and interns path strings into PathKeys. It is
// append-only for the life of a build, so once parsing ends it can be
// read concurrently without locking; the lock below only guards the
// parsing-time population phase.
//
// Lookups are bucketed by an fnv1a hash of the canonical string rather
// than a map[string]PathKey, so the table never retains a second copy of
// every path and a collision is a same-hash chain walk.
type Interner struct {
	mu      sync.Mutex
	keys    []string
	hashIdx map[uint64][]PathKey
}

// NewInterner creates an empty interner.
func NewInterner() *Interner {
	return &Interner{hashIdx: make(map[uint64][]PathKey)}
}

// Canonicalize performs lexical-only canonicalization: collapsing "./",
// resolving internal "..", and dropping a trailing "/". It never touches
// the filesystem.
func Canonicalize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return trimmed
	}
	return path.Clean(trimmed)
}

// Intern canonicalizes raw and returns its PathKey, assigning a fresh one
// on first sight.
func (in *Interner) Intern(raw string) PathKey {
	canon := Canonicalize(raw)
	h := fnv1a.HashString64(canon)

	in.mu.Lock()
	defer in.mu.Unlock()

	for _, k := range in.hashIdx[h] {
		if in.keys[k] == canon {
			return k
		}
	}
	k := PathKey(len(in.keys))
	in.keys = append(in.keys, canon)
	in.hashIdx[h] = append(in.hashIdx[h], k)
	return k
}

// Find looks up raw's canonical form without interning it, reporting
// whether it has been seen before.
func (in *Interner) Find(raw string) (PathKey, bool) {
	canon := Canonicalize(raw)
	h := fnv1a.HashString64(canon)

	in.mu.Lock()
	defer in.mu.Unlock()

	for _, k := range in.hashIdx[h] {
		if in.keys[k] == canon {
			return k, true
		}
	}
	return 0, false
}

// Lookup returns the canonical string a PathKey refers to. It panics on
// an out-of-range key: every PathKey in a frozen BuildDescription must
// have been produced by Intern on this same Interner.
func (in *Interner) Lookup(k PathKey) string {
	return in.keys[k]
}

// Len returns the number of distinct interned paths.
func (in *Interner) Len() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.keys)
}
