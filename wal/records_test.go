// Copyright 2026 the directory-server authors. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package wal

import (
	"bytes"
	"testing"
)

func TestRecordFrame(t *testing.T) {
	data := []byte("hello, log")
	frame := appendRecord(nil, 42, data)
	if got, want := len(frame), RecordOverhead+len(data); got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
	if got, want := byteOrder.Uint32(frame[0:]), recordHeaderMagic; got != want {
		t.Errorf("got %#x, want %#x", got, want)
	}
	if got, want := int(byteOrder.Uint32(frame[4:])), len(data); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := int64(byteOrder.Uint64(frame[8:])), int64(42); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := frame[recordHeaderSize:recordHeaderSize+len(data)], data; !bytes.Equal(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
	footer := frame[recordHeaderSize+len(data):]
	if got, want := byteOrder.Uint32(footer[0:]), recordChecksum(42, data); got != want {
		t.Errorf("got %#x, want %#x", got, want)
	}
	if got, want := byteOrder.Uint32(footer[4:]), recordFooterMagic; got != want {
		t.Errorf("got %#x, want %#x", got, want)
	}
}

func TestRecordChecksumCoversLSN(t *testing.T) {
	data := []byte("payload")
	if recordChecksum(1, data) == recordChecksum(2, data) {
		t.Error("checksum should depend on the LSN")
	}
	if recordChecksum(1, []byte("payload!")) == recordChecksum(1, data) {
		t.Error("checksum should depend on the payload")
	}
}

func TestFileHeader(t *testing.T) {
	hdr := encodeFileHeader(7)
	if got, want := len(hdr), LogFileHeaderSize; got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
	if err := parseFileHeader(hdr, 7); err != nil {
		t.Fatal(err)
	}
	if err := parseFileHeader(hdr, 8); err == nil {
		t.Error("header naming file 7 should not verify as file 8")
	}
	bad := append([]byte{}, hdr...)
	bad[8]++
	if err := parseFileHeader(bad, 7); err == nil {
		t.Error("corrupt magic should not verify")
	}
	if err := parseFileHeader(hdr[:8], 7); err == nil {
		t.Error("short header should not verify")
	}
}
