package ninja

import (
	"errors"
	"os"
	"time"
)

// Mtime is the result of statting a path: either the path is Missing, or
// it exists as of time T.
type Mtime struct {
	Exists bool
	T      time.Time
}

// FileSystem is the accessor the rebuilder uses to ask "what is this
// path's last-modification time, or is it absent". Errors other than
// not-found are fatal.
type FileSystem interface {
	Stat(path string) (Mtime, error)
}

// OSFileSystem stats real files.
type OSFileSystem struct{}

func (OSFileSystem) Stat(path string) (Mtime, error) {
	info, err := os.Stat(path)
	if err == nil {
		return Mtime{Exists: true, T: info.ModTime()}, nil
	}
	var perr *os.PathError
	if errors.As(err, &perr) && os.IsNotExist(err) {
		return Mtime{Exists: false}, nil
	}
	return Mtime{}, &IOError{Path: path, Err: err}
}
