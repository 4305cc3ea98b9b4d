package download

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFileName is created inside the output directory while a run owns it.
const LockFileName = ".multidl.lock"

// ErrDirLocked is returned when another process is downloading into the same directory.
var ErrDirLocked = errors.New("output directory is in use by another process")

// dirLock is an advisory, process-level lock on an output directory.
type dirLock struct {
	fl *flock.Flock
}

func acquireDirLock(dir string) (*dirLock, error) {
	fl := flock.New(filepath.Join(dir, LockFileName))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock output directory: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrDirLocked, dir)
	}
	return &dirLock{fl: fl}, nil
}

func (l *dirLock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
