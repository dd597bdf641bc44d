package ninja

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Executor runs one edge's command to completion. ProcessExecutor is the
// production implementation (exec.go); tests supply fakes.
type Executor interface {
	Run(ctx context.Context, edge *Edge) error
}

// Printer is the scheduler's narrow view of a build's progress display.
type Printer interface {
	SetSteps(n int)
	Step(edge *Edge, n int)
	Done(edge *Edge)
}

// nopPrinter discards progress notifications.
type nopPrinter struct{}

func (nopPrinter) SetSteps(int)    {}
func (nopPrinter) Step(*Edge, int) {}
func (nopPrinter) Done(*Edge)      {}

// edgeStatus tracks one edge through its lifecycle. An edge moves
// Pending -> Ready -> Running -> Done/Failed, or straight from Pending to
// Done when none of its outputs is dirty, or to Skipped when a
// dependency failed before it could be considered.
type edgeStatus int

const (
	statusPending edgeStatus = iota
	statusReady
	statusRunning
	statusDone
	statusFailed
	statusSkipped
)

type edgeNode struct {
	edge       *Edge
	status     edgeStatus
	remaining  int
	failedDep  bool
	dependents []*edgeNode
}

// Scheduler walks the dependency graph in dependency order, running each
// dirty edge's command with bounded concurrency. Edges are deduped by
// their *Edge identity so a multi-output edge is only ever queued and run
// once, regardless of how many of its outputs are reachable targets. On
// the first command failure the scheduler stops starting new work but
// lets already-running commands finish; everything still blocked
// transitively on the failure is reported as skipped rather than
// silently dropped. With KeepGoing set, only the failed edge's own
// transitive dependents are skipped and unrelated work continues.
type Scheduler struct {
	graph     *Graph
	rebuilder *Rebuilder
	exec      Executor
	printer   Printer
	sem       *semaphore.Weighted

	// KeepGoing keeps submitting work not blocked on a failure instead
	// of draining after the first failed edge.
	KeepGoing bool

	mu       sync.Mutex
	nodes    map[*Edge]*edgeNode
	aborted  bool
	firstErr error
	steps    int
	step     int
}

// NewScheduler creates a Scheduler bounded to concurrency simultaneous
// running edges. concurrency <= 0 is treated as 1.
func NewScheduler(graph *Graph, rebuilder *Rebuilder, exec Executor, concurrency int, printer Printer) *Scheduler {
	if concurrency <= 0 {
		concurrency = 1
	}
	if printer == nil {
		printer = nopPrinter{}
	}
	return &Scheduler{
		graph:     graph,
		rebuilder: rebuilder,
		exec:      exec,
		printer:   printer,
		sem:       semaphore.NewWeighted(int64(concurrency)),
		nodes:     make(map[*Edge]*edgeNode),
	}
}

// Result reports the outcome of a Build call.
type Result struct {
	Built   []string // first-output labels of edges actually run, in completion order
	Skipped int
	Err     error
}

// Build computes the reachable subgraph from targets, then runs every
// edge whose output is out of date, in dependency order, returning the
// first error encountered (if any).
func (s *Scheduler) Build(ctx context.Context, targets []PathKey) (*Result, error) {
	order, err := s.graph.ReachablePostOrder(targets)
	if err != nil {
		return nil, err
	}

	seen := make(map[*Edge]bool)
	var edges []*Edge
	for _, k := range order {
		e := s.graph.Edge(k)
		if e == nil || seen[e] {
			continue
		}
		seen[e] = true
		edges = append(edges, e)
	}

	for _, e := range edges {
		s.nodes[e] = &edgeNode{edge: e}
	}
	for _, e := range edges {
		blocking := make(map[*Edge]bool)
		for _, in := range e.AllInputs() {
			if be := s.graph.Edge(in); be != nil {
				blocking[be] = true
			}
		}
		node := s.nodes[e]
		node.remaining = len(blocking)
		for b := range blocking {
			bn := s.nodes[b]
			bn.dependents = append(bn.dependents, node)
		}
	}

	s.steps = len(edges)
	s.printer.SetSteps(s.steps)

	var wg sync.WaitGroup
	result := &Result{}
	var resMu sync.Mutex

	var schedule func(n *edgeNode)
	schedule = func(n *edgeNode) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.process(ctx, n, result, &resMu, schedule)
		}()
	}

	for _, e := range edges {
		if s.nodes[e].remaining == 0 {
			schedule(s.nodes[e])
		}
	}

	wg.Wait()

	result.Err = s.firstErr
	return result, s.firstErr
}

func (s *Scheduler) process(ctx context.Context, n *edgeNode, result *Result, resMu *sync.Mutex, schedule func(*edgeNode)) {
	s.mu.Lock()
	skip := n.failedDep || (s.aborted && !s.KeepGoing)
	s.mu.Unlock()

	if skip {
		s.finish(n, result, resMu, schedule, statusSkipped, nil)
		return
	}

	if n.edge.IsPhony() {
		s.finish(n, result, resMu, schedule, statusDone, nil)
		return
	}

	dirty, err := s.rebuilder.IsDirty(n.edge.Outputs[0])
	if err != nil {
		s.finish(n, result, resMu, schedule, statusFailed, err)
		return
	}
	if !dirty {
		s.finish(n, result, resMu, schedule, statusDone, nil)
		return
	}

	s.mu.Lock()
	n.status = statusReady
	s.mu.Unlock()

	if err := s.sem.Acquire(ctx, 1); err != nil {
		s.finish(n, result, resMu, schedule, statusFailed, err)
		return
	}
	s.mu.Lock()
	if s.aborted && !s.KeepGoing {
		// A failure arrived while this edge waited for a slot.
		s.mu.Unlock()
		s.sem.Release(1)
		s.finish(n, result, resMu, schedule, statusSkipped, nil)
		return
	}
	n.status = statusRunning
	s.step++
	step := s.step
	s.mu.Unlock()
	s.printer.Step(n.edge, step)

	runErr := s.exec.Run(ctx, n.edge)
	s.sem.Release(1)
	s.printer.Done(n.edge)

	if runErr != nil {
		s.finish(n, result, resMu, schedule, statusFailed, &ExecError{Target: n.edge.Title, Err: runErr})
		return
	}

	s.rebuilder.PostBuild(n.edge)

	resMu.Lock()
	result.Built = append(result.Built, n.edge.Title)
	resMu.Unlock()

	s.finish(n, result, resMu, schedule, statusDone, nil)
}

// finish records n's terminal status and releases its dependents,
// scheduling any that have become ready. err, if non-nil, both fails n
// and (unless KeepGoing) flips the scheduler into drain mode.
func (s *Scheduler) finish(n *edgeNode, result *Result, resMu *sync.Mutex, schedule func(*edgeNode), status edgeStatus, err error) {
	s.mu.Lock()
	n.status = status
	if status == statusSkipped {
		resMu.Lock()
		result.Skipped++
		resMu.Unlock()
	}
	if err != nil {
		if s.firstErr == nil {
			s.firstErr = err
		}
		s.aborted = true
	}
	failed := status == statusFailed || status == statusSkipped
	dependents := n.dependents
	s.mu.Unlock()

	// Dependents are always scheduled once ready, failure or not:
	// process() re-checks failedDep and the drain flag and marks them
	// skipped, which cascades the skip to their own dependents in turn
	// rather than leaving the graph half-walked.
	for _, dep := range dependents {
		s.mu.Lock()
		if failed {
			dep.failedDep = true
		}
		dep.remaining--
		ready := dep.remaining == 0
		s.mu.Unlock()
		if ready {
			schedule(dep)
		}
	}
}
