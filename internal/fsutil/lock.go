package fsutil

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// DirLock is an exclusive, advisory lock on a partition directory, held for
// the lifetime of the process that opened it. It prevents a second process
// from opening the same partition and corrupting its segment files through
// concurrent, uncoordinated writes.
type DirLock struct {
	f *os.File
}

// LockDir acquires an exclusive non-blocking flock on dir. It fails fast with
// a wrapped error if another process already holds the lock, rather than
// blocking until that process releases it.
func LockDir(dir string) (*DirLock, error) {
	f, err := os.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("fsutil: open %s for locking: %w", dir, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("fsutil: directory %s is already locked by another process: %w", dir, err)
	}
	return &DirLock{f: f}, nil
}

// Unlock releases the lock and closes the underlying directory handle.
func (l *DirLock) Unlock() error {
	if err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN); err != nil {
		l.f.Close()
		return fmt.Errorf("fsutil: unlock: %w", err)
	}
	return l.f.Close()
}
