package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/pflag"

	"github.com/nbuild/nin"
)

func main() {
	buildFile := pflag.StringP("file", "f", "build.ninja", "build file to use")
	ncpu := pflag.IntP("threads", "j", runtime.NumCPU(), "number of concurrent jobs")
	dryrun := pflag.BoolP("dry-run", "n", false, "print commands without actually executing")
	rundir := pflag.StringP("directory", "C", "", "change to directory before doing anything else")
	always := pflag.BoolP("always-build", "B", false, "unconditionally build all targets")
	keepgoing := pflag.BoolP("keep-going", "k", false, "keep building unrelated targets after a failure")
	quiet := pflag.BoolP("quiet", "q", false, "don't print commands")
	tool := pflag.StringP("tool", "t", "", "run a tool instead of building (targets, graph, compdb, clean)")
	style := pflag.StringP("style", "s", "basic", "printer style to use (basic, steps, progress)")
	shell := pflag.String("shell", "", "run commands through this external shell instead of the embedded one")
	argv := pflag.Bool("argv", false, "exec commands directly without any shell")
	version := pflag.BoolP("version", "v", false, "show version information")
	help := pflag.BoolP("help", "h", false, "show this help message")

	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	if *version {
		fmt.Println("nin version", nin.Version)
		os.Exit(0)
	}

	args := pflag.Args()
	var toolArgs []string
	if *tool != "" {
		toolArgs = args
		args = nil
	}

	err := nin.Run(os.Stdout, args, nin.Flags{
		BuildFile: *buildFile,
		Ncpu:      *ncpu,
		DryRun:    *dryrun,
		RunDir:    *rundir,
		Always:    *always,
		KeepGoing: *keepgoing,
		Quiet:     *quiet,
		Style:     *style,
		Shell:     *shell,
		Argv:      *argv,
		Tool:      *tool,
		ToolArgs:  toolArgs,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "nin: %s\n", err)
		if !errors.Is(err, nin.ErrNothingToDo) {
			os.Exit(1)
		}
	}
}
