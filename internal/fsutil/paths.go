// Package fsutil provides the filesystem conventions segments and partition
// directories share: deterministic, zero-padded segment filenames and a
// flock-based guard against two processes opening the same partition
// directory at once.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// SegmentPath returns the path of a segment's file with the given extension
// (e.g. "log", "index", "timeindex"), named after its base offset zero-padded
// to 20 digits so a directory listing sorts in offset order.
func SegmentPath(dir string, baseOffset int64, ext string) string {
	return filepath.Join(dir, fmt.Sprintf("%020d.%s", baseOffset, ext))
}

// OpenReadWrite opens path for positioned reads and writes, creating it if it
// does not exist.
func OpenReadWrite(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
}

// RemoveSegmentFiles removes every file belonging to the segment at
// baseOffset under dir. A missing file is not an error; any other failure
// aborts and is returned, leaving the remaining files in place.
func RemoveSegmentFiles(dir string, baseOffset int64) error {
	for _, ext := range [...]string{"log", "index", "timeindex"} {
		path := SegmentPath(dir, baseOffset, ext)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("fsutil: remove %s: %w", path, err)
		}
	}
	return nil
}
