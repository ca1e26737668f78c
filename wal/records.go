// Copyright 2026 the directory-server authors. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package wal

import (
	"encoding/binary"

	xxhash "github.com/cespare/xxhash/v2"

	"github.com/djaekim/directory-server/errors"
)

// On-disk framing. All integers are big-endian.
//
// Every log file begins with a fixed header naming the file:
//
//	fileHeader :=
//		fileNumber int64    // must match the file's name
//		magic      uint32   // logFileHeaderMagic
//
// Records follow back to back. A record is framed so that a forward
// scan can detect truncation or corruption without interpreting the
// payload:
//
//	record :=
//		magic    uint32          // recordHeaderMagic
//		length   uint32          // payload bytes
//		lsn      int64           // producer's log sequence number
//		payload  [length]uint8
//		checksum uint32          // folded xxhash of length, lsn, payload
//		magic    uint32          // recordFooterMagic
const (
	// LogFileHeaderSize is the size of the header that begins every
	// log file, and thus the minimum valid file length.
	LogFileHeaderSize = 12

	logFileHeaderMagic uint32 = 0xFF00FF00

	recordHeaderMagic uint32 = 0x010F010F
	recordFooterMagic uint32 = 0x0F010F01

	recordHeaderSize = 4 + 4 + 8
	recordFooterSize = 4 + 4

	// RecordOverhead is the number of framing bytes added to each
	// payload appended with AppendRecord.
	RecordOverhead = recordHeaderSize + recordFooterSize
)

var byteOrder = binary.BigEndian

// A Record is a user log record as returned by the Scanner: the
// opaque payload, the LSN its producer stamped, and the position at
// which its frame begins.
type Record struct {
	Data   []byte
	LSN    int64
	Anchor Anchor
}

// AppendRecord frames the payload and appends it to w, returning the
// number of bytes written. It does not sync; the flush layer decides
// when the records it has appended must become durable.
func AppendRecord(w FileWriter, lsn int64, data []byte) (int, error) {
	buf := appendRecord(make([]byte, 0, RecordOverhead+len(data)), lsn, data)
	if err := w.Append(buf); err != nil {
		return 0, err
	}
	return len(buf), nil
}

func appendRecord(p []byte, lsn int64, data []byte) []byte {
	p = appendUint32(p, recordHeaderMagic)
	p = appendUint32(p, uint32(len(data)))
	p = appendUint64(p, uint64(lsn))
	p = append(p, data...)
	p = appendUint32(p, recordChecksum(lsn, data))
	p = appendUint32(p, recordFooterMagic)
	return p
}

// recordChecksum covers the length, the LSN, and the payload, so
// that a frame whose header and payload were torn independently
// still fails verification.
func recordChecksum(lsn int64, data []byte) uint32 {
	h := xxhash.New()
	var fixed [12]byte
	byteOrder.PutUint32(fixed[0:], uint32(len(data)))
	byteOrder.PutUint64(fixed[4:], uint64(lsn))
	h.Write(fixed[:])
	h.Write(data)
	return fold(h.Sum64())
}

func fold(h uint64) uint32 {
	return uint32(h>>32) ^ uint32(h)
}

func appendUint32(p []byte, v uint32) []byte {
	return append(p, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func appendUint64(p []byte, v uint64) []byte {
	return append(p, byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32),
		byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// encodeFileHeader returns the header for log file number n.
func encodeFileHeader(n int64) []byte {
	p := make([]byte, 0, LogFileHeaderSize)
	p = appendUint64(p, uint64(n))
	p = appendUint32(p, logFileHeaderMagic)
	return p
}

// parseFileHeader verifies the header of log file number n.
func parseFileHeader(p []byte, n int64) error {
	if len(p) != LogFileHeaderSize {
		return errors.E(errors.Invalid, "short log file header")
	}
	if got := int64(byteOrder.Uint64(p[0:])); got != n {
		return errors.E(errors.Invalid, "log file header names wrong file")
	}
	if byteOrder.Uint32(p[8:]) != logFileHeaderMagic {
		return errors.E(errors.Invalid, "bad log file header magic")
	}
	return nil
}
