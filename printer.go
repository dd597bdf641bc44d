package nin

import (
	"fmt"
	"io"
	"sync"

	"github.com/mitchellh/colorstring"
	pb "github.com/schollz/progressbar/v3"

	"github.com/nbuild/nin/ninja"
)

// edgeLine is what a printer shows for a starting edge: its description
// binding when the rule provides one, otherwise the full command.
func edgeLine(edge *ninja.Edge) string {
	if desc, err := edge.Binding("description"); err == nil && desc != "" {
		return desc
	}
	cmd, err := edge.Command()
	if err != nil {
		return ""
	}
	return cmd
}

// BasicPrinter prints one line per command as it starts.
type BasicPrinter struct {
	w    io.Writer
	lock sync.Mutex
}

func NewBasicPrinter(w io.Writer) *BasicPrinter { return &BasicPrinter{w: w} }

func (p *BasicPrinter) SetSteps(int) {}

func (p *BasicPrinter) Step(edge *ninja.Edge, n int) {
	p.lock.Lock()
	defer p.lock.Unlock()
	line := edgeLine(edge)
	if line == "" {
		return
	}
	colorstring.Fprintln(p.w, line)
}

func (p *BasicPrinter) Done(*ninja.Edge) {}

// StepPrinter prefixes each line with "[n/total]".
type StepPrinter struct {
	w     io.Writer
	lock  sync.Mutex
	steps int
}

func NewStepPrinter(w io.Writer) *StepPrinter { return &StepPrinter{w: w} }

func (p *StepPrinter) SetSteps(n int) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.steps = n
}

func (p *StepPrinter) Step(edge *ninja.Edge, n int) {
	p.lock.Lock()
	defer p.lock.Unlock()
	line := edgeLine(edge)
	if line == "" {
		return
	}
	fmt.Fprintf(p.w, "[%d/%d] ", n, p.steps)
	colorstring.Fprintln(p.w, line)
}

func (p *StepPrinter) Done(*ninja.Edge) {}

// ProgressPrinter renders a single progress bar that advances once per
// completed edge.
type ProgressPrinter struct {
	w       io.Writer
	lock    sync.Mutex
	bar     *pb.ProgressBar
	running map[string]string
}

func NewProgressPrinter(w io.Writer) *ProgressPrinter {
	return &ProgressPrinter{w: w, running: make(map[string]string)}
}

func (p *ProgressPrinter) SetSteps(n int) {
	p.bar = pb.NewOptions64(int64(n),
		pb.OptionSetWriter(p.w),
		pb.OptionSetWidth(10),
		pb.OptionShowCount(),
		pb.OptionSpinnerType(14),
		pb.OptionFullWidth(),
		pb.OptionSetPredictTime(false),
		pb.OptionSetDescription("Building"),
		pb.OptionOnCompletion(func() {
			fmt.Fprint(p.w, "\n")
		}),
		pb.OptionSetTheme(pb.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}

func (p *ProgressPrinter) Step(edge *ninja.Edge, n int) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.running[edge.Title] = edgeLine(edge)
	p.bar.Describe(p.desc())
	p.bar.RenderBlank()
}

func (p *ProgressPrinter) Done(edge *ninja.Edge) {
	p.lock.Lock()
	defer p.lock.Unlock()
	delete(p.running, edge.Title)
	if len(p.running) == 0 {
		p.bar.Describe("Built " + edge.Title)
	} else {
		p.bar.Describe(p.desc())
	}
	p.bar.Add(1)
}

func (p *ProgressPrinter) desc() string {
	desc := "Building"
	for name := range p.running {
		desc += " " + name
		break
	}
	return desc
}
