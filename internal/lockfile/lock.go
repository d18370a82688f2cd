// Package lockfile guards form documents against concurrent writers.
//
// A writer holds an exclusive advisory lock on the document file itself for
// the whole read-modify-write cycle; readers take a shared lock just long
// enough to read it. Locks are non-blocking: a busy document fails fast with
// ErrLockBusy.
package lockfile

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrLockBusy is returned when another process holds a conflicting lock.
var ErrLockBusy = errors.New("document is locked by another process")

// Lock is an exclusive lock on an open document.
type Lock struct {
	f    *os.File
	path string
}

// Exclusive opens the document at path for update and locks it.
func Exclusive(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("lockfile: open %s: %w", path, err)
	}
	if err := flockExclusive(f); err != nil {
		_ = f.Close()
		if errors.Is(err, ErrLockBusy) {
			return nil, fmt.Errorf("%w: %s", ErrLockBusy, path)
		}
		return nil, fmt.Errorf("lockfile: lock %s: %w", path, err)
	}
	return &Lock{f: f, path: path}, nil
}

// Path returns the locked document path.
func (l *Lock) Path() string { return l.path }

// Read returns the full document content.
func (l *Lock) Read() ([]byte, error) {
	if _, err := l.f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("lockfile: seek %s: %w", l.path, err)
	}
	data, err := io.ReadAll(l.f)
	if err != nil {
		return nil, fmt.Errorf("lockfile: read %s: %w", l.path, err)
	}
	return data, nil
}

// Write replaces the document content in place and syncs it to disk. The
// new bytes are written before any old tail is cut off.
func (l *Lock) Write(data []byte) error {
	if _, err := l.f.WriteAt(data, 0); err != nil {
		return fmt.Errorf("lockfile: write %s: %w", l.path, err)
	}
	if err := l.f.Truncate(int64(len(data))); err != nil {
		return fmt.Errorf("lockfile: truncate %s: %w", l.path, err)
	}
	if err := l.f.Sync(); err != nil {
		return fmt.Errorf("lockfile: sync %s: %w", l.path, err)
	}
	return nil
}

// Release unlocks and closes the document. It is safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	uerr := flockUnlock(l.f)
	cerr := l.f.Close()
	l.f = nil
	if uerr != nil {
		return fmt.Errorf("lockfile: unlock %s: %w", l.path, uerr)
	}
	return cerr
}

// ReadShared reads the document at path under a shared lock, so it never
// observes a write in progress.
func ReadShared(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("lockfile: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	if err := flockShared(f); err != nil {
		if errors.Is(err, ErrLockBusy) {
			return nil, fmt.Errorf("%w: %s", ErrLockBusy, path)
		}
		return nil, fmt.Errorf("lockfile: lock %s: %w", path, err)
	}
	defer func() { _ = flockUnlock(f) }()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("lockfile: read %s: %w", path, err)
	}
	return data, nil
}
