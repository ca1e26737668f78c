// Copyright 2026 the directory-server authors. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package wal

import (
	"io"

	"github.com/djaekim/directory-server/errors"
)

// A Scanner iterates forward over log records beginning at an
// anchor, crossing file boundaries, until the end of the log or the
// first structurally invalid record. It is the log's sole structural
// validator: recovery trusts its verdict and its last-good counters
// to decide where to truncate.
//
// The usage pattern follows bufio.Scanner:
//
//	s := wal.NewScanner(fm, anchor)
//	defer s.Close()
//	for s.Scan() {
//		rec := s.Record()
//		...
//	}
//	if err := s.Err(); err != nil {
//		// Structurally invalid record or file header;
//		// s.LastGood() is where the intact log ends.
//	}
type Scanner struct {
	fm FileManager

	r          FileReader
	fileNumber int64
	offset     int64
	fileLen    int64

	lastGoodFile   int64
	lastGoodOffset int64

	rec    Record
	err    error
	first  bool
	done   bool
	closed bool
}

// NewScanner returns a scanner positioned at start. The anchor's
// offset must be at least MinLogOffset: records never live inside a
// file header.
func NewScanner(fm FileManager, start Anchor) *Scanner {
	s := &Scanner{
		fm:             fm,
		fileNumber:     start.FileNumber,
		offset:         start.Offset,
		lastGoodFile:   start.FileNumber,
		lastGoodOffset: start.Offset,
		first:          true,
	}
	if start.FileNumber < MinLogFileNumber || start.Offset < MinLogOffset {
		s.err = errors.E(errors.Invalid, "scan anchor out of range")
	}
	return s
}

// Scan advances to the next record. It returns false at the end of
// the log, on the first invalid record, or after Close; Err
// disambiguates.
func (s *Scanner) Scan() bool {
	if s.err != nil || s.done || s.closed {
		return false
	}
	for {
		if s.r == nil {
			if !s.open() {
				return false
			}
		}
		if s.offset == s.fileLen {
			// Exhausted exactly at a record boundary: the log
			// continues, if anywhere, in the next file.
			s.r.Close()
			s.r = nil
			s.fileNumber++
			continue
		}
		if s.offset > s.fileLen {
			s.fail(errors.E(errors.Invalid, "scan anchor past end of file"))
			return false
		}
		return s.next()
	}
}

// Record returns the record read by the last successful Scan. The
// returned payload is owned by the caller.
func (s *Scanner) Record() Record {
	return s.rec
}

// Err returns the error that terminated the scan, or nil if the
// scan ended cleanly at the end of the log.
func (s *Scanner) Err() error {
	return s.err
}

// LastGood returns the file number and offset immediately after the
// last intact record the scan got past. Entering a later file moves
// the counters to offset 0 of that file, and then past its header
// once the header verifies. Recovery truncates at this boundary; it
// is never advanced past a record that failed validation.
func (s *Scanner) LastGood() (fileNumber, offset int64) {
	return s.lastGoodFile, s.lastGoodOffset
}

// Close releases the reader the scanner currently holds. It is
// idempotent.
func (s *Scanner) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.r != nil {
		err := s.r.Close()
		s.r = nil
		return err
	}
	return nil
}

// open opens the current file. The first file is entered at the
// anchor's offset; subsequent files must begin with a valid header
// naming them, and entering one advances the last-good counters to
// it. A missing file is the clean end of the log.
func (s *Scanner) open() bool {
	r, err := s.fm.Reader(s.fileNumber)
	if err != nil {
		if errors.Is(errors.NotExist, err) {
			s.done = true
		} else {
			s.fail(err)
		}
		return false
	}
	s.r = r
	if s.fileLen, err = r.Length(); err != nil {
		s.fail(err)
		return false
	}
	if s.first {
		s.first = false
		return true
	}
	s.lastGoodFile = s.fileNumber
	s.lastGoodOffset = 0
	if s.fileLen < LogFileHeaderSize {
		s.fail(errors.E(errors.Invalid, "torn log file header"))
		return false
	}
	var hdr [LogFileHeaderSize]byte
	if !s.read(hdr[:], 0) {
		return false
	}
	if err := parseFileHeader(hdr[:], s.fileNumber); err != nil {
		s.fail(err)
		return false
	}
	s.offset = LogFileHeaderSize
	s.lastGoodOffset = LogFileHeaderSize
	return true
}

// next reads one record frame at the current offset.
func (s *Scanner) next() bool {
	remaining := s.fileLen - s.offset
	if remaining < recordHeaderSize {
		s.fail(errors.E(errors.Invalid, "file ends mid-record"))
		return false
	}
	var hdr [recordHeaderSize]byte
	if !s.read(hdr[:], s.offset) {
		return false
	}
	if byteOrder.Uint32(hdr[0:]) != recordHeaderMagic {
		s.fail(errors.E(errors.Invalid, "bad record magic"))
		return false
	}
	length := int64(byteOrder.Uint32(hdr[4:]))
	lsn := int64(byteOrder.Uint64(hdr[8:]))
	total := recordHeaderSize + length + recordFooterSize
	if total > remaining {
		s.fail(errors.E(errors.Invalid, "file ends mid-record"))
		return false
	}
	rest := make([]byte, length+recordFooterSize)
	if !s.read(rest, s.offset+recordHeaderSize) {
		return false
	}
	data, footer := rest[:length], rest[length:]
	if byteOrder.Uint32(footer[4:]) != recordFooterMagic {
		s.fail(errors.E(errors.Invalid, "bad record footer magic"))
		return false
	}
	if byteOrder.Uint32(footer[0:]) != recordChecksum(lsn, data) {
		s.fail(errors.E(errors.Invalid, "record checksum mismatch"))
		return false
	}
	s.rec = Record{
		Data:   data,
		LSN:    lsn,
		Anchor: Anchor{FileNumber: s.fileNumber, Offset: s.offset, LSN: lsn},
	}
	s.offset += total
	s.lastGoodOffset = s.offset
	return true
}

// read fills p from the current reader at off, recording a failure
// on a short or errored read. A short read means the file changed
// under the scan and is treated as corruption.
func (s *Scanner) read(p []byte, off int64) bool {
	n, err := s.r.ReadAt(p, off)
	if n == len(p) {
		return true
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		s.fail(errors.E(errors.Invalid, "short read of log file"))
	} else {
		s.fail(errors.E(errors.IO, "read log file", err))
	}
	return false
}

func (s *Scanner) fail(err error) {
	s.err = err
	if s.r != nil {
		s.r.Close()
		s.r = nil
	}
}
