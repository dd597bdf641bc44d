// Package nin implements a small Ninja-like incremental build tool: a
// declarative build-file grammar compiled into a dependency graph, and a
// bounded-concurrency scheduler that rebuilds only what is out of date.
package nin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/nbuild/nin/ninja"
	"github.com/nbuild/nin/ninja/expand"
)

// Flags controls one invocation of Run.
type Flags struct {
	BuildFile string
	Ncpu      int
	DryRun    bool
	RunDir    string
	Always    bool
	Quiet     bool
	KeepGoing bool
	Style     string // "basic", "steps", "progress"
	Shell     string
	Argv      bool
	Tool      string
	ToolArgs  []string
}

// ErrNothingToDo is returned when every requested target was already
// clean.
var ErrNothingToDo = errors.New("nothing to be done")

const defaultBuildFile = "build.ninja"

// Run locates and parses a build file, then either runs a -t tool or
// builds the requested targets, writing progress and tool output to out.
// Commands run by the build write to the process's own stdout/stderr.
func Run(out io.Writer, args []string, flags Flags) error {
	if flags.RunDir != "" {
		if err := os.Chdir(flags.RunDir); err != nil {
			return err
		}
	}

	wd, err := os.Getwd()
	if err == nil {
		uf, err := LoadUserFlags(wd)
		if err != nil {
			return err
		}
		uf.Apply(&flags)
	}

	buildFile := flags.BuildFile
	if buildFile == "" {
		buildFile = defaultBuildFile
	}

	targets, assigns := splitAssigns(args)

	interner := ninja.NewInterner()
	parser := ninja.NewParser(ninja.OSFileLoader{}, interner)

	// Command-line assignments become top-level bindings visible from the
	// first line of the build file. Their values may reference earlier
	// assignments from the same command line.
	resolved := make(map[string]string)
	for _, a := range assigns {
		val, err := expand.Expand(a.value, func(name string) (string, error) {
			return resolved[name], nil
		})
		if err != nil {
			return err
		}
		resolved[a.name] = val
		parser.Predefine(a.name, val)
	}

	bd, err := parser.ParseFile(buildFile)
	if err != nil {
		return fmt.Errorf("%s: %w", buildFile, err)
	}

	graph := ninja.BuildGraph(bd)

	var w io.Writer = out
	if flags.Quiet {
		w = io.Discard
	}

	if flags.Tool != "" {
		return runTool(graph, flags, w)
	}

	targetKeys, err := resolveTargets(bd, interner, targets)
	if err != nil {
		return err
	}

	if flags.Ncpu <= 0 {
		flags.Ncpu = runtime.NumCPU()
	}

	fs := ninja.OSFileSystem{}
	store := ninja.NewStore(fs, interner)
	rebuilder := ninja.NewRebuilder(graph, store)
	rebuilder.Always = flags.Always

	// The build files themselves act as an implicit input of every edge:
	// editing one invalidates everything built from it.
	bfKeys := make([]ninja.PathKey, 0, len(bd.Files))
	for _, f := range bd.Files {
		bfKeys = append(bfKeys, interner.Intern(f))
	}
	rebuilder.SetBuildFiles(bfKeys)

	exec := ninja.NewProcessExecutor(wd)
	exec.Shell = flags.Shell
	exec.Argv = flags.Argv

	var executor ninja.Executor = exec
	if flags.DryRun {
		executor = dryRunExecutor{}
	}

	printer := newPrinter(flags.Style, w)

	sched := ninja.NewScheduler(graph, rebuilder, executor, flags.Ncpu, printer)
	sched.KeepGoing = flags.KeepGoing
	result, err := sched.Build(context.Background(), targetKeys)
	if err != nil {
		return err
	}
	if len(result.Built) == 0 {
		return fmt.Errorf("'%s': %w", strings.Join(targets, " "), ErrNothingToDo)
	}
	return nil
}

func newPrinter(style string, w io.Writer) ninja.Printer {
	switch style {
	case "steps":
		return NewStepPrinter(w)
	case "progress":
		return NewProgressPrinter(w)
	default:
		return NewBasicPrinter(w)
	}
}

// dryRunExecutor reports every edge as a no-op success. The printer has
// already shown the command by the time the executor is invoked, so a dry
// run only needs to materialize it to surface expansion errors.
type dryRunExecutor struct{}

func (dryRunExecutor) Run(ctx context.Context, edge *ninja.Edge) error {
	_, err := edge.Command()
	return err
}

func runTool(graph *ninja.Graph, flags Flags, w io.Writer) error {
	var t ninja.Tool
	switch flags.Tool {
	case "targets":
		t = &ninja.TargetsTool{W: w}
	case "graph":
		t = &ninja.GraphTool{W: w}
	case "compdb":
		t = &ninja.CompDBTool{W: w, Dir: "."}
	case "clean":
		t = &ninja.CleanTool{W: w, Fs: ninja.OSFileSystem{}, NoExec: flags.DryRun}
	default:
		return fmt.Errorf("unknown tool: %s", flags.Tool)
	}
	return t.Run(graph, flags.ToolArgs)
}

type assign struct {
	name  string
	value string
}

// splitAssigns separates "name=value" command-line arguments from target
// names, preserving the order assignments were given in.
func splitAssigns(args []string) (targets []string, assigns []assign) {
	for _, a := range args {
		if before, after, found := strings.Cut(a, "="); found && !strings.ContainsAny(before, "/\\") {
			assigns = append(assigns, assign{name: before, value: after})
		} else {
			targets = append(targets, a)
		}
	}
	return targets, assigns
}

// resolveTargets maps requested target names to keys. With no names, the
// description's default list is used; with no defaults either, every
// output no other edge consumes.
func resolveTargets(bd *ninja.BuildDescription, interner *ninja.Interner, names []string) ([]ninja.PathKey, error) {
	if len(names) == 0 {
		if len(bd.Defaults) > 0 {
			return bd.Defaults, nil
		}
		consumed := make(map[ninja.PathKey]bool)
		for _, e := range bd.Edges {
			for _, in := range e.AllInputs() {
				consumed[in] = true
			}
		}
		var keys []ninja.PathKey
		for _, e := range bd.Edges {
			for _, o := range e.Outputs {
				if !consumed[o] {
					keys = append(keys, o)
				}
			}
		}
		return keys, nil
	}

	keys := make([]ninja.PathKey, 0, len(names))
	for _, n := range names {
		k, ok := interner.Find(n)
		if !ok {
			return nil, fmt.Errorf("unknown target '%s'", n)
		}
		keys = append(keys, k)
	}
	return keys, nil
}
