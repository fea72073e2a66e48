package fileutil

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
)

var (
	lockSleep = time.Sleep

	lockWaitTimeout = 30 * time.Second
	lockPollEvery   = 50 * time.Millisecond
)

// ErrLockTimeout is returned when another process holds the lock for too long.
var ErrLockTimeout = errors.New("timed out waiting for file lock")

// processLocks serializes holders inside this process; the OS lock only
// arbitrates between processes.
var processLocks sync.Map // path -> *sync.Mutex

// Lock is an exclusive lock on a sidecar lock file.
type Lock struct {
	path string
	file *os.File
	mu   *sync.Mutex
}

// Acquire takes the in-process mutex for path and then an exclusive OS lock
// on path. The lock file is created if missing.
func Acquire(path string) (*Lock, error) {
	v, _ := processLocks.LoadOrStore(path, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		mu.Unlock()
		return nil, fmt.Errorf("open lock file %s: %w", path, err)
	}
	if err := flockWait(file); err != nil {
		_ = file.Close()
		mu.Unlock()
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	return &Lock{path: path, file: file, mu: mu}, nil
}

// Release drops the OS lock and the in-process mutex. Safe to call twice.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := unlockFile(l.file)
	if cerr := l.file.Close(); err == nil {
		err = cerr
	}
	l.file = nil
	l.mu.Unlock()
	return err
}

// WithLock runs fn while holding the lock for path.
func WithLock(path string, fn func() error) error {
	lock, err := Acquire(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = lock.Release()
	}()
	return fn()
}

func flockWait(file *os.File) error {
	deadline := time.Now().Add(lockWaitTimeout)
	for {
		busy, err := tryLockFile(file)
		if err != nil {
			return err
		}
		if !busy {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w after %s", ErrLockTimeout, lockWaitTimeout)
		}
		lockSleep(lockPollEvery)
	}
}
