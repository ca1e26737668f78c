// Copyright 2026 the directory-server authors. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package wal

// An Anchor names a position in the log: a file number, a byte
// offset within that file, and the LSN of the record at that
// position, when known. Anchors are plain values; they are copied
// across API boundaries, never shared.
type Anchor struct {
	// FileNumber identifies the log file.
	FileNumber int64
	// Offset is the byte offset within the file.
	Offset int64
	// LSN is the log sequence number at that position. It is carried
	// as metadata and takes no part in ordering; UnknownLSN when the
	// producer's LSN is not known at this site.
	LSN int64
}

const (
	// MinLogFileNumber is the number of the first user log file.
	MinLogFileNumber = 1
	// MinLogOffset is the smallest valid record offset in a log
	// file: the first byte past the file header.
	MinLogOffset = LogFileHeaderSize
	// UnknownLSN marks an anchor whose LSN is not known.
	UnknownLSN = int64(-1)
)

// Compare orders anchors lexicographically by (FileNumber, Offset).
// It returns -1 if a precedes b, 0 if they name the same position,
// and 1 if a follows b. LSNs are ignored.
func (a Anchor) Compare(b Anchor) int {
	switch {
	case a.FileNumber < b.FileNumber:
		return -1
	case a.FileNumber > b.FileNumber:
		return 1
	case a.Offset < b.Offset:
		return -1
	case a.Offset > b.Offset:
		return 1
	}
	return 0
}
