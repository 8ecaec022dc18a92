package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
)

// WriteFileAtomic writes data to path atomically (tmp file + fsync + rename).
// On Unix it also fsyncs the parent directory so the rename survives a crash.
// Missing parent directories are created.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return err
	}

	// best-effort fsync parent dir (Unix)
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

// PidLock is an exclusive lock file guarding single-writer state.
type PidLock struct {
	f *os.File
}

// AcquirePidLock creates lockPath exclusively and writes the current pid into
// it. It fails when another process already holds the lock.
func AcquirePidLock(lockPath string) (*PidLock, error) {
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		if os.IsExist(err) {
			held, _ := os.ReadFile(lockPath)
			return nil, fmt.Errorf("lock %s held by pid %s: %w", lockPath, string(held), err)
		}
		return nil, err
	}
	_, _ = f.WriteString(strconv.Itoa(os.Getpid()))

	// mark close-on-exec
	syscall.CloseOnExec(int(f.Fd()))
	return &PidLock{f: f}, nil
}

// Release closes and removes the lock file. Safe on a nil lock.
func (l *PidLock) Release() {
	if l == nil || l.f == nil {
		return
	}
	path := l.f.Name()
	_ = l.f.Close()
	_ = os.Remove(path)
	l.f = nil
}
