// Copyright 2026 the directory-server authors. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package flock implements a simple POSIX file-based advisory lock,
// used to fence a log directory against concurrent managers. The
// lock is released by the operating system if the holding process
// dies, so a crashed server never leaves a directory permanently
// fenced.
package flock

import (
	"context"
	"sync"
	"syscall"

	"github.com/djaekim/directory-server/errors"
	"github.com/djaekim/directory-server/log"
)

// T locks a file path. The zero value is not usable; construct with
// New. A T serializes lock attempts within the process; across
// processes the kernel arbitrates.
type T struct {
	name string
	fd   int
	mu   sync.Mutex
}

// New creates an object that locks the given path.
func New(path string) *T {
	return &T{name: path}
}

// TryLock acquires the lock without blocking. If the lock is held
// elsewhere it returns an error of kind Exists. Iff TryLock returns
// nil, the caller must call Unlock later.
func (f *T) TryLock() error {
	f.mu.Lock()
	var err error
	f.fd, err = syscall.Open(f.name, syscall.O_CREAT|syscall.O_RDWR, 0666)
	if err != nil {
		f.mu.Unlock()
		return errors.E(errors.IO, "open lock file", f.name, err)
	}
	err = syscall.Flock(f.fd, syscall.LOCK_EX|syscall.LOCK_NB)
	if err == syscall.EWOULDBLOCK || err == syscall.EAGAIN {
		f.closeLocked()
		f.mu.Unlock()
		return errors.E(errors.Exists, "lock held", f.name)
	}
	if err != nil {
		f.closeLocked()
		f.mu.Unlock()
		return errors.E(errors.IO, "flock", f.name, err)
	}
	return nil
}

// Lock blocks until the lock is acquired or the context is done.
// Iff Lock returns nil, the caller must call Unlock later.
func (f *T) Lock(ctx context.Context) (err error) {
	reqCh := make(chan func() error, 2)
	doneCh := make(chan error)
	go func() {
		var err error
		for req := range reqCh {
			if err == nil {
				err = req()
			}
			doneCh <- err
		}
	}()
	reqCh <- f.doLock
	select {
	case <-ctx.Done():
		reqCh <- f.Unlock
		err = ctx.Err()
	case err = <-doneCh:
	}
	close(reqCh)
	return err
}

// Unlock unlocks the file.
func (f *T) Unlock() error {
	err := syscall.Flock(f.fd, syscall.LOCK_UN)
	f.closeLocked()
	f.mu.Unlock()
	return err
}

func (f *T) doLock() error {
	f.mu.Lock() // Serialize the lock within one process.
	var err error
	f.fd, err = syscall.Open(f.name, syscall.O_CREAT|syscall.O_RDWR, 0666)
	if err != nil {
		f.mu.Unlock()
		return err
	}
	err = syscall.Flock(f.fd, syscall.LOCK_EX|syscall.LOCK_NB)
	for err == syscall.EWOULDBLOCK || err == syscall.EAGAIN {
		log.Printf("waiting for lock %s", f.name)
		err = syscall.Flock(f.fd, syscall.LOCK_EX)
	}
	if err != nil {
		f.mu.Unlock()
	}
	return err
}

func (f *T) closeLocked() {
	if err := syscall.Close(f.fd); err != nil {
		log.Error.Printf("close %s: %v", f.name, err)
	}
}
