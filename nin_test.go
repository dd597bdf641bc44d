package nin_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nbuild/nin"
)

func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

// run invokes nin.Run in dir and restores the working directory after,
// since Run chdirs and stays.
func run(t *testing.T, dir string, args []string, flags nin.Flags) (string, error) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	flags.RunDir = dir
	if flags.Ncpu == 0 {
		flags.Ncpu = 1
	}
	buf := &bytes.Buffer{}
	runErr := nin.Run(buf, args, flags)
	return buf.String(), runErr
}

func TestDryRunBuild(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"build.ninja": "rule cp\n" +
			"  command = cp $in $out\n" +
			"  description = CP $out\n" +
			"build out.txt: cp in.txt\n",
		"in.txt": "data\n",
	})

	out, err := run(t, dir, nil, nin.Flags{DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "CP out.txt") {
		t.Errorf("output = %q, want the CP description line", out)
	}
}

func TestNothingToDo(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"build.ninja": "rule cp\n" +
			"  command = cp $in $out\n" +
			"build out.txt: cp in.txt\n",
		"in.txt":  "data\n",
		"out.txt": "data\n",
	})
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(filepath.Join(dir, "in.txt"), old, old); err != nil {
		t.Fatal(err)
	}
	bf := time.Now().Add(-time.Hour)
	if err := os.Chtimes(filepath.Join(dir, "build.ninja"), bf, bf); err != nil {
		t.Fatal(err)
	}

	_, err := run(t, dir, nil, nin.Flags{DryRun: true})
	if !errors.Is(err, nin.ErrNothingToDo) {
		t.Fatalf("err = %v, want ErrNothingToDo", err)
	}
}

func TestUnknownTarget(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"build.ninja": "rule cp\n" +
			"  command = cp $in $out\n" +
			"build out.txt: cp in.txt\n",
	})

	_, err := run(t, dir, []string{"nonesuch"}, nin.Flags{DryRun: true})
	if err == nil || !strings.Contains(err.Error(), "unknown target 'nonesuch'") {
		t.Fatalf("err = %v, want unknown target", err)
	}
}

func TestCommandLineAssignments(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"build.ninja": "rule cp\n" +
			"  command = cp -$mode $in $out\n" +
			"build out.txt: cp in.txt\n",
		"in.txt": "data\n",
	})

	out, err := run(t, dir, []string{"mode=fast", "out.txt"}, nin.Flags{DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "cp -fast in.txt out.txt") {
		t.Errorf("output = %q, want the assigned flag in the command", out)
	}
}

func TestParseFailureSurfacesDiagnostics(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"build.ninja": "build x: undefined-rule in.txt\n",
	})

	_, err := run(t, dir, nil, nin.Flags{DryRun: true})
	if err == nil || !strings.Contains(err.Error(), "unknown rule") {
		t.Fatalf("err = %v, want unknown rule diagnostic", err)
	}
}

func TestTargetsToolThroughRun(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"build.ninja": "rule cp\n" +
			"  command = cp $in $out\n" +
			"build out.txt: cp in.txt\n",
	})

	out, err := run(t, dir, nil, nin.Flags{Tool: "targets"})
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "out.txt" {
		t.Errorf("targets output = %q, want out.txt", out)
	}
}

func TestNoTargetsBuildsLeafOutputs(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"build.ninja": "rule cp\n" +
			"  command = cp $in $out\n" +
			"build final: cp mid\n" +
			"build mid: cp leaf.src\n",
		"leaf.src": "data\n",
	})

	// No targets and no default statement: the outputs nothing consumes
	// ("final") are built, pulling in the whole chain.
	out, err := run(t, dir, nil, nin.Flags{DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "cp leaf.src mid") || !strings.Contains(out, "cp mid final") {
		t.Errorf("output = %q, want both chain commands", out)
	}
}

func TestBuildFileFlag(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"other.ninja": "rule cp\n" +
			"  command = cp $in $out\n" +
			"build out.txt: cp in.txt\n",
		"in.txt": "data\n",
	})

	out, err := run(t, dir, nil, nin.Flags{DryRun: true, BuildFile: "other.ninja"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "cp in.txt out.txt") {
		t.Errorf("output = %q", out)
	}

	_, err = run(t, dir, nil, nin.Flags{DryRun: true})
	if err == nil {
		t.Error("default build.ninja is absent, Run should fail")
	}
}
