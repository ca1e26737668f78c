// Copyright 2026 the directory-server authors. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package wal

import (
	"hash/adler32"
	"sync"

	"github.com/djaekim/directory-server/errors"
	"github.com/djaekim/directory-server/log"
)

// Control file layout (big-endian, 44 bytes):
//
//	minExistingLogFile     int64   // smallest file number on disk
//	minNeededLogFile       int64   // smallest file number any consumer needs
//	minNeededLogFileOffset int64   // offset of the first needed record
//	minNeededLSN           int64   // LSN at that offset, or UnknownLSN
//	checksum               uint64  // Adler-32 of bytes [0..32), high bits zero
//	magic                  uint32  // controlMagic
//
// The checksum occupies an 8-byte slot although Adler-32 produces 32
// bits; the wide slot is the on-disk format and is kept as is.
const (
	controlRecordSize   = 44
	controlChecksumSize = controlRecordSize - 8 - 4

	controlMagic uint32 = 0xFF11FF11
)

type controlRecord struct {
	minExisting     int64
	minNeeded       int64
	minNeededOffset int64
	minNeededLSN    int64
}

func (c *controlRecord) encode() []byte {
	p := make([]byte, 0, controlRecordSize)
	p = appendUint64(p, uint64(c.minExisting))
	p = appendUint64(p, uint64(c.minNeeded))
	p = appendUint64(p, uint64(c.minNeededOffset))
	p = appendUint64(p, uint64(c.minNeededLSN))
	p = appendUint64(p, uint64(adler32.Checksum(p[:controlChecksumSize])))
	p = appendUint32(p, controlMagic)
	return p
}

func (c *controlRecord) decode(p []byte) error {
	if len(p) != controlRecordSize {
		return errors.E(errors.Invalid, "short control record")
	}
	c.minExisting = int64(byteOrder.Uint64(p[0:]))
	c.minNeeded = int64(byteOrder.Uint64(p[8:]))
	c.minNeededOffset = int64(byteOrder.Uint64(p[16:]))
	c.minNeededLSN = int64(byteOrder.Uint64(p[24:]))
	checksum := byteOrder.Uint64(p[32:])
	magic := byteOrder.Uint32(p[40:])
	switch {
	case magic != controlMagic:
		return errors.E(errors.Invalid, "bad control file magic")
	case checksum != uint64(adler32.Checksum(p[:controlChecksumSize])):
		return errors.E(errors.Invalid, "control file checksum mismatch")
	case c.minExisting < MinLogFileNumber,
		c.minNeeded < MinLogFileNumber,
		c.minNeededOffset < MinLogOffset,
		c.minExisting > c.minNeeded:
		return errors.E(errors.Invalid, "control file out of range")
	}
	return nil
}

// A Manager owns a log directory: the control file that names the
// earliest still-needed log position, the numbering of the current
// log file, and the recovery that reconciles the two after a crash.
// It is driven by a single flush thread calling Rotate, while any
// number of goroutines may call AdvanceMinAnchor and MinAnchor.
type Manager struct {
	fm FileManager

	// mu guards minAnchor only. It is held just long enough to copy
	// the triple; never across I/O.
	mu        sync.Mutex
	minAnchor Anchor

	control controlRecord
	current int64
	ready   bool
}

// NewManager returns a manager over the given file manager. Init
// must be called before the manager is used.
func NewManager(fm FileManager) *Manager {
	return &Manager{fm: fm}
}

// Init recovers the log. If a control file exists, its record is
// verified and a scan from the recorded anchor establishes the true
// end of the log, truncating or reformatting a torn tail. Otherwise
// the directory is bootstrapped: the first log file is formatted and
// a fresh control file is published.
//
// Errors are fatal to the instance: an error of kind Invalid means
// the log is structurally unrecoverable.
func (m *Manager) Init() error {
	rec, err := m.readControl()
	switch {
	case err == nil:
		if err := m.recover(rec); err != nil {
			return err
		}
	case errors.Is(errors.NotExist, err):
		if err := m.bootstrap(); err != nil {
			return err
		}
	default:
		return err
	}
	m.ready = true
	return nil
}

// recover runs the control-file-exists path: scan from the recorded
// anchor to the end of the log and repair the tail if the last
// record is torn.
func (m *Manager) recover(rec controlRecord) error {
	m.control = rec
	m.mu.Lock()
	m.minAnchor = Anchor{
		FileNumber: rec.minNeeded,
		Offset:     rec.minNeededOffset,
		LSN:        rec.minNeededLSN,
	}
	start := m.minAnchor
	m.mu.Unlock()

	s := NewScanner(m.fm, start)
	for s.Scan() {
		// Nothing to do with the records; the scan validates them
		// and finds the end of the log.
	}
	err := s.Err()
	s.Close()
	if err != nil && !errors.Is(errors.Invalid, err) {
		return err
	}
	invalid := err != nil

	lastFile, lastOffset := s.LastGood()
	// The offset sits below the header size only when the scan
	// entered a file whose header is torn; the reformat branch below
	// owns that case.
	if lastFile < MinLogFileNumber || lastOffset < 0 {
		return errors.E(errors.Invalid, "log ends before a valid position")
	}
	if (Anchor{FileNumber: lastFile, Offset: lastOffset}).Compare(start) < 0 {
		return errors.E(errors.Invalid, "log ends before the checkpoint")
	}
	m.current = lastFile

	if !invalid {
		return nil
	}

	// Invalid content at the end of the scan. That is tolerable only
	// at the true tail of the log: if a later file exists, the
	// corruption is in the middle and nothing can be salvaged.
	r, err := m.fm.Reader(lastFile + 1)
	if err == nil {
		r.Close()
		return errors.E(errors.Invalid, "log corrupted before its tail")
	}
	if !errors.Is(errors.NotExist, err) {
		return err
	}

	if lastOffset >= LogFileHeaderSize {
		// Past the file header: drop the torn record.
		log.Printf("wal: truncating log file %d to %d bytes", lastFile, lastOffset)
		return m.fm.Truncate(lastFile, lastOffset)
	}
	// The file header itself is torn; reformat the file in place.
	log.Printf("wal: reformatting log file %d", lastFile)
	return m.createNextLogFile(true)
}

// bootstrap runs the no-control-file path. The only state tolerated
// on disk is an absent first file or one no longer than a file
// header, which is reformatted: user data without a control record
// is ambiguous and rejected.
func (m *Manager) bootstrap() error {
	m.current = MinLogFileNumber - 1
	exists := false
	r, err := m.fm.Reader(MinLogFileNumber)
	switch {
	case err == nil:
		length, lerr := r.Length()
		r.Close()
		if lerr != nil {
			return lerr
		}
		if length > LogFileHeaderSize {
			return errors.E(errors.Invalid, "log file exists but control file does not")
		}
		exists = true
		m.current++
	case errors.Is(errors.NotExist, err):
	default:
		return err
	}
	if err := m.createNextLogFile(exists); err != nil {
		return err
	}

	m.mu.Lock()
	m.minAnchor = Anchor{
		FileNumber: MinLogFileNumber,
		Offset:     LogFileHeaderSize,
		LSN:        UnknownLSN,
	}
	m.mu.Unlock()
	m.control.minExisting = MinLogFileNumber
	return m.writeControl()
}

// Rotate is called by the flush layer to switch to the next log
// file. The current writer is closed, the control file is rewritten
// (persisting any advance of the minimum anchor and reclaiming
// superseded files), and the next file is formatted. Rotate returns
// a writer on the new current file positioned at its end.
//
// Passing a nil writer opens the current file without rotating; the
// flush layer does this once at startup. Writing the control file is
// the checkpoint: once Rotate returns, a crash recovers from the
// newly persisted anchor.
func (m *Manager) Rotate(current FileWriter) (FileWriter, error) {
	if !m.ready {
		return nil, errors.E(errors.Precondition, "log manager not initialized")
	}
	if current != nil {
		if err := current.Close(); err != nil {
			return nil, err
		}
		if err := m.writeControl(); err != nil {
			return nil, err
		}
		if err := m.createNextLogFile(false); err != nil {
			return nil, err
		}
	}
	w, err := m.fm.Writer(m.current)
	if err != nil {
		return nil, err
	}
	offset, err := w.Length()
	if err != nil {
		w.Close()
		return nil, err
	}
	if offset > 0 {
		if err := w.Seek(offset); err != nil {
			w.Close()
			return nil, err
		}
	}
	return w, nil
}

// AdvanceMinAnchor raises the minimum needed anchor. An anchor that
// does not compare after the current one is ignored, so the anchor
// never moves backward regardless of caller interleaving. The new
// value is persisted, and superseded files reclaimed, on the next
// rotation.
func (m *Manager) AdvanceMinAnchor(anchor Anchor) {
	m.mu.Lock()
	if m.minAnchor.Compare(anchor) < 0 {
		m.minAnchor = anchor
	}
	m.mu.Unlock()
}

// MinAnchor returns the current minimum needed anchor.
func (m *Manager) MinAnchor() Anchor {
	m.mu.Lock()
	anchor := m.minAnchor
	m.mu.Unlock()
	return anchor
}

// readControl reads and verifies the control file. It fails with
// kind NotExist when no control file has ever been published.
func (m *Manager) readControl() (controlRecord, error) {
	var rec controlRecord
	r, err := m.fm.Reader(controlFileNumber)
	if err != nil {
		return rec, err
	}
	defer r.Close()
	buf := make([]byte, controlRecordSize)
	n, err := r.ReadAt(buf, 0)
	if n < controlRecordSize {
		return rec, errors.E(errors.Invalid, "short control file", err)
	}
	if err := rec.decode(buf); err != nil {
		return rec, err
	}
	return rec, nil
}

// ControlInfo is the decoded content of a control file, as reported
// by ReadControlInfo for inspection tools.
type ControlInfo struct {
	MinExistingFile int64
	MinNeededFile   int64
	MinNeededOffset int64
	MinNeededLSN    int64
}

// ReadControlInfo reads and verifies the control file without
// touching any other state; it is safe on a live directory.
func ReadControlInfo(fm FileManager) (ControlInfo, error) {
	m := &Manager{fm: fm}
	rec, err := m.readControl()
	if err != nil {
		return ControlInfo{}, err
	}
	return ControlInfo{
		MinExistingFile: rec.minExisting,
		MinNeededFile:   rec.minNeeded,
		MinNeededOffset: rec.minNeededOffset,
		MinNeededLSN:    rec.minNeededLSN,
	}, nil
}

// writeControl publishes the in-memory control record: any files
// superseded by the minimum anchor are reclaimed, the record is
// written and synced to the shadow file, and the shadow is renamed
// over the live control file. The rename is atomic, so the on-disk
// control file is always either the last committed record or the one
// before it.
func (m *Manager) writeControl() error {
	m.mu.Lock()
	anchor := m.minAnchor
	m.mu.Unlock()
	m.control.minNeeded = anchor.FileNumber
	m.control.minNeededOffset = anchor.Offset
	m.control.minNeededLSN = anchor.LSN

	if m.control.minNeeded > m.control.minExisting {
		m.deleteUnneeded(m.control.minExisting, m.control.minNeeded)
		m.control.minExisting = m.control.minNeeded
	}

	existed, err := m.fm.Create(shadowFileNumber)
	if err != nil {
		return err
	}
	if existed {
		if err := m.fm.Truncate(shadowFileNumber, 0); err != nil {
			return err
		}
	}
	w, err := m.fm.Writer(shadowFileNumber)
	if err != nil {
		return err
	}
	if err := w.Append(m.control.encode()); err != nil {
		w.Close()
		return err
	}
	if err := w.Sync(); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return m.fm.Rename(shadowFileNumber, controlFileNumber)
}

// createNextLogFile formats the file after the current one, or
// reformats the current one in place. The file's prior existence
// must match the caller's expectation; a mismatch means the
// directory holds state the control file cannot account for.
func (m *Manager) createNextLogFile(reformat bool) error {
	n := m.current
	if !reformat {
		n++
	}
	existed, err := m.fm.Create(n)
	if err != nil {
		return err
	}
	if existed != reformat {
		if existed {
			return errors.E(errors.Invalid, "unexpected log file on disk")
		}
		return errors.E(errors.Invalid, "log file missing")
	}
	if reformat {
		if err := m.fm.Truncate(n, 0); err != nil {
			return err
		}
	}
	w, err := m.fm.Writer(n)
	if err != nil {
		return err
	}
	if err := w.Append(encodeFileHeader(n)); err != nil {
		w.Close()
		return err
	}
	if err := w.Sync(); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	m.current = n
	return nil
}

// deleteUnneeded reclaims files in [from, to). Deletion is
// best-effort: a file that is already gone was deleted before a
// crash, and anything below minExisting is unneeded by definition.
func (m *Manager) deleteUnneeded(from, to int64) {
	for n := from; n < to; n++ {
		if m.fm.Delete(n) {
			log.Debug.Printf("wal: reclaimed log file %d", n)
		}
	}
}
