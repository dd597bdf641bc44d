package nin

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/pelletier/go-toml/v2"

	"github.com/nbuild/nin/ninja"
)

// UserFlags mirrors Flags but with pointer fields, so an absent key in a
// .ninrc.toml file leaves the corresponding Flags field untouched instead
// of zeroing it out.
type UserFlags struct {
	BuildFile *string `toml:"file"`
	Ncpu      *int    `toml:"threads"`
	DryRun    *bool
	RunDir    *string `toml:"directory"`
	Always    *bool
	Quiet     *bool
	KeepGoing *bool `toml:"keepgoing"`
	Style     *string
	Shell     *string
	Argv      *bool
}

// rcFileName is the optional project-local config file, loaded before
// flag parsing overrides anything it sets.
const rcFileName = ".ninrc.toml"

// DefaultConfigDir returns the per-user config directory, where a global
// ninrc.toml applies to every project.
func DefaultConfigDir() string {
	return filepath.Join(xdg.ConfigHome, "nin")
}

// LoadUserFlags reads the user-global config followed by dir/.ninrc.toml
// and returns the merged flags, the project file winning where both set a
// key. A missing file is not an error; a malformed one is.
func LoadUserFlags(dir string) (UserFlags, error) {
	var uf UserFlags
	if err := loadRc(filepath.Join(DefaultConfigDir(), "ninrc.toml"), &uf); err != nil {
		return uf, err
	}
	if err := loadRc(filepath.Join(dir, rcFileName), &uf); err != nil {
		return uf, err
	}
	return uf, nil
}

func loadRc(path string, uf *UserFlags) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &ninja.IOError{Path: path, Err: err}
	}
	var next UserFlags
	if err := toml.Unmarshal(data, &next); err != nil {
		return err
	}
	next.overlay(uf)
	return nil
}

func (uf UserFlags) overlay(onto *UserFlags) {
	if uf.BuildFile != nil {
		onto.BuildFile = uf.BuildFile
	}
	if uf.Ncpu != nil {
		onto.Ncpu = uf.Ncpu
	}
	if uf.DryRun != nil {
		onto.DryRun = uf.DryRun
	}
	if uf.RunDir != nil {
		onto.RunDir = uf.RunDir
	}
	if uf.Always != nil {
		onto.Always = uf.Always
	}
	if uf.Quiet != nil {
		onto.Quiet = uf.Quiet
	}
	if uf.KeepGoing != nil {
		onto.KeepGoing = uf.KeepGoing
	}
	if uf.Style != nil {
		onto.Style = uf.Style
	}
	if uf.Shell != nil {
		onto.Shell = uf.Shell
	}
	if uf.Argv != nil {
		onto.Argv = uf.Argv
	}
}

// Apply overlays uf onto f, field by field, wherever uf sets a value.
func (uf UserFlags) Apply(f *Flags) {
	if uf.BuildFile != nil {
		f.BuildFile = *uf.BuildFile
	}
	if uf.Ncpu != nil {
		f.Ncpu = *uf.Ncpu
	}
	if uf.DryRun != nil {
		f.DryRun = *uf.DryRun
	}
	if uf.RunDir != nil {
		f.RunDir = *uf.RunDir
	}
	if uf.Always != nil {
		f.Always = *uf.Always
	}
	if uf.Quiet != nil {
		f.Quiet = *uf.Quiet
	}
	if uf.KeepGoing != nil {
		f.KeepGoing = *uf.KeepGoing
	}
	if uf.Style != nil {
		f.Style = *uf.Style
	}
	if uf.Shell != nil {
		f.Shell = *uf.Shell
	}
	if uf.Argv != nil {
		f.Argv = *uf.Argv
	}
}
