package serve

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"syscall"
)

// ErrAlreadyRunning is returned by Lock when another bridge holds the lock.
var ErrAlreadyRunning = errors.New("a bridge is already running for this directory")

// Lock is a held bridge lock. The kernel drops it when the process exits, so
// a crashed bridge never blocks the next one.
type Lock struct {
	file *os.File
}

// Lock takes the bridge lock without waiting and writes the current pid into
// the lock file. It returns ErrAlreadyRunning when another process holds it.
func (m *Manager) Lock() (*Lock, error) {
	file, err := os.OpenFile(m.LockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = file.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return nil, ErrAlreadyRunning
		}
		return nil, fmt.Errorf("locking %s: %w", m.LockPath, err)
	}

	if err := file.Truncate(0); err == nil {
		_, _ = file.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
	}
	return &Lock{file: file}, nil
}

// Release drops the lock. It is safe on a nil Lock.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	defer func() { l.file = nil }()

	err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	return errors.Join(err, l.file.Close())
}
