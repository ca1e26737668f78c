// Copyright 2026 the directory-server authors. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package wal

import (
	"os"
	"path/filepath"

	"github.com/djaekim/directory-server/errors"
	"github.com/djaekim/directory-server/flock"
)

// lockName is the advisory lock file kept next to the log files.
const lockName = "wal.lock"

// A Log is a Manager bound to a locked directory on the local
// filesystem.
type Log struct {
	*Manager
	lock *flock.T
}

// Open opens the write-ahead log in dir, creating the directory if
// necessary, and runs recovery. The directory is fenced with an
// advisory lock; a second opener fails with kind Exists. The caller
// must Close the log to release the lock.
func Open(dir string) (*Log, error) {
	if err := os.MkdirAll(dir, 0777); err != nil {
		return nil, errors.E(errors.IO, "create log directory", err)
	}
	lock := flock.New(filepath.Join(dir, lockName))
	if err := lock.TryLock(); err != nil {
		return nil, err
	}
	m := NewManager(NewFileManager(dir))
	if err := m.Init(); err != nil {
		lock.Unlock()
		return nil, err
	}
	return &Log{Manager: m, lock: lock}, nil
}

// Close releases the directory lock. Writers handed out by Rotate
// remain the caller's to close.
func (l *Log) Close() error {
	return l.lock.Unlock()
}
