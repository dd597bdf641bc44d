package ninja

import (
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/kballard/go-shellquote"
	"mvdan.cc/sh/interp"
	"mvdan.cc/sh/syntax"
)

// ProcessExecutor runs an edge's command as a child process. By default
// commands run through an embedded POSIX shell interpreter (mvdan.cc/sh)
// so recipes can use redirection, pipelines and globbing without
// depending on a real /bin/sh being present. Shell names an external
// shell binary to run commands through instead ("sh -c" style). Argv
// mode splits the command into a single argv with go-shellquote and
// execs it directly, for recipes known not to need shell features.
type ProcessExecutor struct {
	Dir   string
	Shell string
	Argv  bool
}

// NewProcessExecutor creates a ProcessExecutor rooted at dir, defaulting
// to the embedded-shell mode.
func NewProcessExecutor(dir string) *ProcessExecutor {
	return &ProcessExecutor{Dir: dir}
}

// Run materializes edge's command and executes it, streaming the child's
// stdout/stderr through.
func (e *ProcessExecutor) Run(ctx context.Context, edge *Edge) error {
	cmd, err := edge.Command()
	if err != nil {
		return err
	}
	if strings.TrimSpace(cmd) == "" {
		return nil
	}
	switch {
	case e.Shell != "":
		return e.runExternalShell(ctx, cmd)
	case e.Argv:
		return e.runArgv(ctx, cmd)
	default:
		return e.runShell(ctx, cmd)
	}
}

func (e *ProcessExecutor) runShell(ctx context.Context, cmd string) error {
	prog, err := syntax.NewParser().Parse(strings.NewReader(cmd), "")
	if err != nil {
		return &ExecError{Target: cmd, Err: err}
	}
	r, err := interp.New(
		interp.StdIO(os.Stdin, os.Stdout, os.Stderr),
		interp.Dir(e.Dir),
	)
	if err != nil {
		return &ExecError{Target: cmd, Err: err}
	}
	if err := r.Run(ctx, prog); err != nil {
		return &ExecError{Target: cmd, Err: err}
	}
	return nil
}

func (e *ProcessExecutor) runExternalShell(ctx context.Context, cmd string) error {
	c := exec.CommandContext(ctx, e.Shell, "-c", cmd)
	c.Dir = e.Dir
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	if err := c.Run(); err != nil {
		return &ExecError{Target: cmd, Err: err}
	}
	return nil
}

func (e *ProcessExecutor) runArgv(ctx context.Context, cmd string) error {
	words, err := shellquote.Split(cmd)
	if err != nil {
		return &ExecError{Target: cmd, Err: err}
	}
	if len(words) == 0 {
		return nil
	}
	c := exec.CommandContext(ctx, words[0], words[1:]...)
	c.Dir = e.Dir
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	if err := c.Run(); err != nil {
		return &ExecError{Target: cmd, Err: err}
	}
	return nil
}
