// Copyright 2026 the directory-server authors. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package wal

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/djaekim/directory-server/errors"
	"github.com/djaekim/directory-server/log"
)

// Reserved file numbers. User log files are numbered from
// MinLogFileNumber up; the control file and its shadow sit below
// zero so they can never collide.
const (
	controlFileNumber int64 = -1
	shadowFileNumber  int64 = -2
)

// A FileManager provides the filesystem primitives the log is built
// on: numbered files that can be created, truncated, renamed,
// deleted, and opened for sequential reading or appending. The
// production implementation is returned by NewFileManager; tests
// substitute their own to inject faults.
type FileManager interface {
	// Create creates log file n if it does not exist. It reports
	// whether the file already existed; an existing file is left
	// untouched and is not an error.
	Create(n int64) (existed bool, err error)

	// Truncate truncates log file n to size bytes.
	Truncate(n, size int64) error

	// Delete removes log file n, reporting whether the removal
	// succeeded. Deletion is best-effort; failures are never fatal.
	Delete(n int64) bool

	// Rename atomically replaces log file to with log file from.
	// The atomicity of the underlying rename is what makes control
	// file publication crash-safe.
	Rename(from, to int64) error

	// Reader opens log file n for reading. It fails with kind
	// NotExist if the file is absent.
	Reader(n int64) (FileReader, error)

	// Writer opens log file n for appending, creating it if absent.
	// The returned writer is positioned at the start of the file.
	Writer(n int64) (FileWriter, error)
}

// A FileReader reads a single log file. ReadAt follows the
// io.ReaderAt contract. Close is idempotent.
type FileReader interface {
	io.ReaderAt

	// Length returns the current length of the file.
	Length() (int64, error)

	Close() error
}

// A FileWriter appends to a single log file. Close is idempotent.
type FileWriter interface {
	// Append writes p at the writer's current position and advances
	// it.
	Append(p []byte) error

	// Seek moves the writer to the absolute offset.
	Seek(offset int64) error

	// Length returns the current length of the file.
	Length() (int64, error)

	// Sync commits previous appends to stable storage.
	Sync() error

	Close() error
}

// NewFileManager returns a FileManager over numbered files in dir.
// File n is named log_<n>.db; the reserved control and shadow
// numbers yield log_-1.db and log_-2.db.
func NewFileManager(dir string) FileManager {
	return &localManager{dir: dir}
}

type localManager struct {
	dir string
}

func (m *localManager) path(n int64) string {
	return filepath.Join(m.dir, fmt.Sprintf("log_%d.db", n))
}

func (m *localManager) Create(n int64) (bool, error) {
	f, err := os.OpenFile(m.path(n), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0666)
	if os.IsExist(err) {
		return true, nil
	}
	if err != nil {
		return false, errors.E(errors.IO, "create log file", err)
	}
	if err := f.Close(); err != nil {
		return false, errors.E(errors.IO, "create log file", err)
	}
	return false, m.syncDir()
}

func (m *localManager) Truncate(n, size int64) error {
	if err := os.Truncate(m.path(n), size); err != nil {
		return errors.E(errors.IO, "truncate log file", err)
	}
	return nil
}

func (m *localManager) Delete(n int64) bool {
	if err := os.Remove(m.path(n)); err != nil {
		log.Debug.Printf("wal: delete %s: %v", m.path(n), err)
		return false
	}
	return true
}

func (m *localManager) Rename(from, to int64) error {
	if err := os.Rename(m.path(from), m.path(to)); err != nil {
		return errors.E(errors.IO, "rename log file", err)
	}
	// The rename itself is atomic but not necessarily durable until
	// the directory is synced.
	return m.syncDir()
}

func (m *localManager) Reader(n int64) (FileReader, error) {
	f, err := os.Open(m.path(n))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.E("open log file", err)
		}
		return nil, errors.E(errors.IO, "open log file", err)
	}
	return &localReader{f: f}, nil
}

func (m *localManager) Writer(n int64) (FileWriter, error) {
	f, err := os.OpenFile(m.path(n), os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return nil, errors.E(errors.IO, "open log file for append", err)
	}
	return &localWriter{f: f}, nil
}

func (m *localManager) syncDir() error {
	d, err := os.Open(m.dir)
	if err != nil {
		return errors.E(errors.IO, "open log directory", err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return errors.E(errors.IO, "sync log directory", err)
	}
	return nil
}

type localReader struct {
	f      *os.File
	closed bool
}

func (r *localReader) ReadAt(p []byte, off int64) (int, error) {
	return r.f.ReadAt(p, off)
}

func (r *localReader) Length() (int64, error) {
	info, err := r.f.Stat()
	if err != nil {
		return 0, errors.E(errors.IO, "stat log file", err)
	}
	return info.Size(), nil
}

func (r *localReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.f.Close()
}

type localWriter struct {
	f      *os.File
	closed bool
}

func (w *localWriter) Append(p []byte) error {
	if _, err := w.f.Write(p); err != nil {
		return errors.E(errors.IO, "append to log file", err)
	}
	return nil
}

func (w *localWriter) Seek(offset int64) error {
	if _, err := w.f.Seek(offset, io.SeekStart); err != nil {
		return errors.E(errors.IO, "seek log file", err)
	}
	return nil
}

func (w *localWriter) Length() (int64, error) {
	info, err := w.f.Stat()
	if err != nil {
		return 0, errors.E(errors.IO, "stat log file", err)
	}
	return info.Size(), nil
}

func (w *localWriter) Sync() error {
	if err := w.f.Sync(); err != nil {
		return errors.E(errors.IO, "sync log file", err)
	}
	return nil
}

func (w *localWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.f.Close()
}
