// Copyright 2026 the directory-server authors. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package wal implements the durable write-ahead log beneath the
// directory server's storage engine. The log is a sequence of
// append-only numbered files plus a small control file naming the
// earliest position any consumer still needs. Once a record has been
// appended and synced it reads back verbatim after an arbitrary
// crash; a torn tail is detected and truncated on recovery; files no
// consumer needs are reclaimed.
//
// The flush layer drives the log through a Manager:
//
//	m, err := wal.Open(dir)
//	w, err := m.Rotate(nil)           // writer on the current file
//	_, err = wal.AppendRecord(w, lsn, payload)
//	err = w.Sync()
//	w, err = m.Rotate(w)              // checkpoint, then a fresh file
//
// Upstream subsystems (recovery, replication, the page cache) bound
// reclamation by advancing the minimum anchor:
//
//	m.AdvanceMinAnchor(wal.Anchor{FileNumber: f, Offset: o, LSN: lsn})
//
// The anchor is persisted, and files below it deleted, at the next
// rotation.
//
// Records are read back with a Scanner, which iterates forward from
// an anchor across file boundaries and stops at the end of the log
// or the first structurally invalid record.
package wal
