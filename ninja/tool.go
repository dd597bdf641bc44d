package ninja

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/gobwas/glob"
)

// Tool is a build-graph introspection command. Unlike a Scheduler.Build,
// a Tool never runs recipes.
type Tool interface {
	Run(g *Graph, args []string) error
	String() string
}

// TargetsTool lists every key with a defining edge, optionally filtered
// by a glob pattern on the interned path text.
type TargetsTool struct {
	W io.Writer
}

func (t *TargetsTool) Run(g *Graph, args []string) error {
	var matcher glob.Glob
	if len(args) > 0 {
		m, err := glob.Compile(args[0])
		if err != nil {
			return fmt.Errorf("invalid glob '%s': %w", args[0], err)
		}
		matcher = m
	}

	names := make([]string, 0, len(g.bd.ByOutput))
	for k := range g.bd.ByOutput {
		name := g.bd.Interner.Lookup(k)
		if matcher != nil && !matcher.Match(name) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintln(t.W, n)
	}
	return nil
}

func (t *TargetsTool) String() string {
	return "targets - list all targets with a defining rule, optionally filtered by a glob"
}

// GraphTool renders the dependency graph in text, tree, or dot form.
type GraphTool struct {
	W io.Writer
}

func (t *GraphTool) Run(g *Graph, args []string) error {
	targets, err := graphTargets(g, args)
	if err != nil {
		return err
	}
	order, err := g.ReachablePostOrder(targets)
	if err != nil {
		return err
	}

	choice := "text"
	switch {
	case len(args) > 1:
		choice = args[1]
	case len(args) == 1 && (args[0] == "text" || args[0] == "tree" || args[0] == "dot"):
		// A lone format keyword that names no path selects the format.
		if _, ok := g.bd.Interner.Find(args[0]); !ok {
			choice = args[0]
		}
	}
	switch choice {
	case "text":
		for _, k := range order {
			for _, in := range g.Inputs(k) {
				fmt.Fprintf(t.W, "%s -> %s\n", g.bd.Interner.Lookup(k), g.bd.Interner.Lookup(in))
			}
		}
	case "tree":
		visited := make(map[PathKey]bool)
		for _, target := range targets {
			t.tree("", g, target, visited)
		}
	case "dot":
		fmt.Fprintln(t.W, "digraph build {")
		fmt.Fprintln(t.W, "rankdir=\"LR\";")
		for _, k := range order {
			for _, in := range g.Inputs(k) {
				fmt.Fprintf(t.W, "    %q -> %q;\n", g.bd.Interner.Lookup(in), g.bd.Interner.Lookup(k))
			}
		}
		fmt.Fprintln(t.W, "}")
	default:
		return fmt.Errorf("invalid argument '%s', must be one of: text, tree, dot", choice)
	}
	return nil
}

func (t *GraphTool) tree(indent string, g *Graph, k PathKey, visited map[PathKey]bool) {
	fmt.Fprintf(t.W, "%s%s\n", indent, g.bd.Interner.Lookup(k))
	if visited[k] {
		return
	}
	visited[k] = true
	for _, in := range g.Inputs(k) {
		t.tree(indent+"| ", g, in, visited)
	}
}

func (t *GraphTool) String() string {
	return "graph - print the build graph in specified format: text, tree, dot"
}

// CompDBTool emits a compile_commands.json-style database of the command
// of every non-phony edge reachable from the tool's target (see
// graphTargets); edges outside that subgraph are not listed.
type CompDBTool struct {
	W   io.Writer
	Dir string
}

type compCommand struct {
	Directory string `json:"directory"`
	File      string `json:"file"`
	Command   string `json:"command"`
}

func (t *CompDBTool) Run(g *Graph, args []string) error {
	targets, err := graphTargets(g, args)
	if err != nil {
		return err
	}
	order, err := g.ReachablePostOrder(targets)
	if err != nil {
		return err
	}

	var cmds []compCommand
	for _, k := range order {
		e := g.Edge(k)
		if e == nil || e.IsPhony() || e.Outputs[0] != k {
			continue
		}
		cmd, err := e.Command()
		if err != nil {
			return err
		}
		file := g.bd.Interner.Lookup(k)
		if len(e.Explicit) > 0 {
			file = g.bd.Interner.Lookup(e.Explicit[0])
		}
		cmds = append(cmds, compCommand{
			Directory: t.Dir,
			File:      file,
			Command:   cmd,
		})
	}
	data, err := json.MarshalIndent(cmds, "", "  ")
	if err != nil {
		return err
	}
	_, err = t.W.Write(data)
	return err
}

func (t *CompDBTool) String() string {
	return "compdb - emit a compile_commands.json-style database of every rule's command"
}

// CleanTool removes every file produced by a non-phony edge reachable
// from the tool's target (see graphTargets); outputs of other edges are
// left in place.
type CleanTool struct {
	W      io.Writer
	Fs     FileSystem
	NoExec bool
}

func (t *CleanTool) Run(g *Graph, args []string) error {
	targets, err := graphTargets(g, args)
	if err != nil {
		return err
	}
	order, err := g.ReachablePostOrder(targets)
	if err != nil {
		return err
	}

	seen := make(map[*Edge]bool)
	for _, k := range order {
		e := g.Edge(k)
		if e == nil || e.IsPhony() || seen[e] {
			continue
		}
		seen[e] = true
		for _, o := range e.Outputs {
			name := g.bd.Interner.Lookup(o)
			if !t.NoExec {
				if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
					return &IOError{Path: name, Err: err}
				}
			}
			fmt.Fprintln(t.W, "remove", name)
		}
	}
	return nil
}

func (t *CleanTool) String() string {
	return "clean - remove all files produced by the build"
}

// graphTargets resolves the tool's positional target argument (args[0])
// against the interner. When it is absent or names no known path (as a
// bare format keyword such as "dot" does), every declared default is
// used; with no default statement that list is empty.
func graphTargets(g *Graph, args []string) ([]PathKey, error) {
	if len(args) == 0 {
		return g.bd.Defaults, nil
	}
	k, ok := g.bd.Interner.Find(args[0])
	if !ok {
		return g.bd.Defaults, nil
	}
	return []PathKey{k}, nil
}
