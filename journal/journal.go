// Package journal implements append-only segment files used to keep
// account notifications across restarts.
//
// File format:
//
//   - file = segmentHeader record*
//   - segmentHeader = magic:64 version:8 pad:8 flags:16 segment:32 timestamp:32 pad:32 invariant:256 checksum:64
//   - record = size:uvarint tsDelta:uvarint data checksum:64
//
// Each record checksum is the xxhash64 of the record's size, timestamp and
// data bytes. Replay stops at the first record that fails verification, so a
// torn write at the tail only loses the records written after the last
// successful Commit.
package journal

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

var (
	ErrIncompatible       = fmt.Errorf("incompatible journal")
	ErrUnsupportedVersion = fmt.Errorf("unsupported journal version")
	ErrNotWritable        = fmt.Errorf("journal is not open for writing")
	errCorruptedFile      = fmt.Errorf("corrupted journal segment file")
)

type Options struct {
	FileName    string // e.g. "notifications-*.wal"
	MaxFileSize int64  // new segment after this size
	DebugName   string
	Now         func() time.Time
	// Invariant identifies the data set; segments with a different invariant
	// are rejected on replay.
	Invariant [32]byte

	Logger  *slog.Logger
	Verbose bool
}

const DefaultMaxFileSize = 4 * 1024 * 1024

// MaxRecordSize bounds a single record; larger sizes are treated as corruption.
const MaxRecordSize = 64 * 1024 * 1024

const (
	magic          = 0x54414c4e52554f4a // "JOURNLAT" as little-endian uint64
	version0 uint8 = 0
)

const segmentHeaderSize = 64

type segmentHeader struct {
	Magic          uint64
	Version        uint8
	_              uint8
	Flags          uint16
	SegmentOrdinal uint32
	Timestamp      uint32
	_              uint32
	Invariant      [32]byte
	Checksum       uint64
}

const timestampFmt = "20060102T150405"

// Journal is a sequence of segment files in one directory.
type Journal struct {
	maxFileSize    int64
	fileNamePrefix string
	fileNameSuffix string
	debugName      string
	dir            string
	now            func() time.Time
	logger         *slog.Logger
	verbose        bool
	invariant      [32]byte

	writeLock sync.Mutex
	writable  bool
	writeErr  error
	writeSeg  uint32
	segWriter *segmentWriter
}

func New(dir string, o Options) *Journal {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.FileName == "" {
		o.FileName = "*"
	}
	prefix, suffix, _ := strings.Cut(o.FileName, "*")
	if o.DebugName == "" {
		o.DebugName = "journal"
	}
	if o.MaxFileSize == 0 {
		o.MaxFileSize = DefaultMaxFileSize
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return &Journal{
		maxFileSize:    o.MaxFileSize,
		fileNamePrefix: prefix,
		fileNameSuffix: suffix,
		debugName:      o.DebugName,
		dir:            dir,
		now:            o.Now,
		verbose:        o.Verbose,
		invariant:      o.Invariant,
		logger:         o.Logger,
	}
}

func (j *Journal) Now() uint32 {
	v := j.now().Unix()
	if v < 0 {
		panic("time travel disallowed")
	}
	u := uint64(v)
	if u&0xFFFF_FFFF_0000_0000 != 0 {
		panic("time travel disallowed both ways")
	}
	return uint32(u)
}

func (j *Journal) String() string {
	return j.debugName
}

// StartWriting prepares the journal for appending. New records always go
// into a fresh segment numbered after the last existing one.
func (j *Journal) StartWriting() error {
	j.writeLock.Lock()
	defer j.writeLock.Unlock()
	if j.writable {
		return nil
	}
	if err := os.MkdirAll(j.dir, 0o777); err != nil {
		return j.fail(err)
	}
	segs, err := j.segments()
	if err != nil {
		return j.fail(err)
	}
	if n := len(segs); n > 0 {
		j.writeSeg = segs[n-1].ordinal
	}
	j.writable = true
	j.writeErr = nil
	return nil
}

// FinishWriting commits and closes the current segment.
func (j *Journal) FinishWriting() error {
	j.writeLock.Lock()
	defer j.writeLock.Unlock()
	err := j.closeSegment_locked()
	j.writable = false
	if err != nil {
		return err
	}
	return j.writeErr
}

// Rotate closes the current segment; the next record starts a new one.
func (j *Journal) Rotate() error {
	j.writeLock.Lock()
	defer j.writeLock.Unlock()
	return j.fail(j.closeSegment_locked())
}

func (j *Journal) closeSegment_locked() error {
	sw := j.segWriter
	if sw == nil {
		return nil
	}
	j.segWriter = nil
	err := sw.commit()
	if cerr := sw.close(); err == nil {
		err = cerr
	}
	return err
}

func (j *Journal) fail(err error) error {
	if err == nil {
		return nil
	}
	j.logger.LogAttrs(context.Background(), slog.LevelError, "journal: failed", slog.String("jrnl", j.debugName), slog.Any("err", err))
	if j.segWriter != nil {
		j.segWriter.close()
		j.segWriter = nil
	}
	if j.writeErr == nil {
		j.writeErr = err
	}
	return err
}

// WriteRecord appends a record. A zero timestamp means now. The record is
// durable only after Commit.
func (j *Journal) WriteRecord(timestamp uint32, data []byte) error {
	j.writeLock.Lock()
	defer j.writeLock.Unlock()

	if !j.writable {
		return ErrNotWritable
	}
	if j.writeErr != nil {
		return j.writeErr
	}
	if len(data) > MaxRecordSize {
		return fmt.Errorf("%v: record of %d bytes exceeds limit", j.debugName, len(data))
	}
	if timestamp == 0 {
		timestamp = j.Now()
	}

	if j.segWriter == nil {
		j.writeSeg++
		sw, err := j.startSegment(j.writeSeg, timestamp)
		if err != nil {
			return j.fail(err)
		}
		j.segWriter = sw
	}

	if err := j.segWriter.writeRecord(timestamp, data); err != nil {
		return j.fail(err)
	}
	if j.verbose {
		j.logger.Debug("journal: record", "jrnl", j.debugName, "seg", j.writeSeg, "size", len(data))
	}
	if j.segWriter.size >= j.maxFileSize {
		return j.fail(j.closeSegment_locked())
	}
	return nil
}

// Commit flushes buffered records and syncs the current segment to disk.
func (j *Journal) Commit() error {
	j.writeLock.Lock()
	defer j.writeLock.Unlock()
	if j.writeErr != nil {
		return j.writeErr
	}
	if j.segWriter == nil {
		return nil
	}
	return j.fail(j.segWriter.commit())
}

// FileNames returns the segment file names in replay order.
func (j *Journal) FileNames() ([]string, error) {
	segs, err := j.segments()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(segs))
	for i, seg := range segs {
		names[i] = seg.name
	}
	return names, nil
}

type segmentFile struct {
	name    string
	ordinal uint32
}

func (j *Journal) segments() ([]segmentFile, error) {
	ents, err := os.ReadDir(j.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	var result []segmentFile
	for _, ent := range ents {
		if !ent.Type().IsRegular() {
			continue
		}
		name := ent.Name()
		mid, ok := strings.CutPrefix(name, j.fileNamePrefix)
		if !ok {
			continue
		}
		mid, ok = strings.CutSuffix(mid, j.fileNameSuffix)
		if !ok {
			continue
		}
		seq, _, err := parseSegmentName(mid)
		if err != nil {
			j.logger.Warn("journal: ignoring file", "jrnl", j.debugName, "file", name, "err", err)
			continue
		}
		result = append(result, segmentFile{name: name, ordinal: seq})
	}
	slices.SortFunc(result, func(a, b segmentFile) int {
		return int(int64(a.ordinal) - int64(b.ordinal))
	})
	return result, nil
}

// Replay calls fn for every intact record in order. Reading stops silently
// (with a warning) at the first corrupted record; errors returned by fn
// abort the replay and are returned.
func (j *Journal) Replay(ctx context.Context, fn func(ts time.Time, data []byte) error) error {
	segs, err := j.segments()
	if err != nil {
		return err
	}
	for _, seg := range segs {
		done, err := j.replaySegment(ctx, seg, fn)
		if err != nil {
			return err
		}
		if done {
			break
		}
	}
	return nil
}

func (j *Journal) replaySegment(ctx context.Context, seg segmentFile, fn func(ts time.Time, data []byte) error) (stop bool, err error) {
	f, err := os.Open(filepath.Join(j.dir, seg.name))
	if err != nil {
		return true, err
	}
	defer f.Close()

	var h segmentHeader
	err = j.readHeader(f, &h, seg.ordinal)
	if err == errCorruptedFile {
		j.logger.Warn("journal: corrupted segment header", "jrnl", j.debugName, "file", seg.name)
		return true, nil
	} else if err != nil {
		return true, err
	}

	r := bufio.NewReader(f)
	ts := h.Timestamp
	off := int64(segmentHeaderSize)
	for {
		if err := ctx.Err(); err != nil {
			return true, err
		}
		data, tsDelta, n, err := readRecord(r)
		if err == io.EOF {
			return false, nil
		} else if err != nil {
			j.logger.Warn("journal: stopping at corrupted record", "jrnl", j.debugName, "file", seg.name, "off", off, "err", err)
			return true, nil
		}
		off += n
		ts += tsDelta
		if err := fn(time.Unix(int64(ts), 0).UTC(), data); err != nil {
			return true, err
		}
	}
}

func readRecord(r *bufio.Reader) (data []byte, tsDelta uint32, n int64, err error) {
	var hbuf [maxRecHeaderLen]byte
	size, err := binary.ReadUvarint(r)
	if err != nil {
		if err == io.EOF {
			return nil, 0, 0, io.EOF
		}
		return nil, 0, 0, errCorruptedFile
	}
	delta, err := binary.ReadUvarint(r)
	if err != nil || size > MaxRecordSize || delta > 0xFFFF_FFFF {
		return nil, 0, 0, errCorruptedFile
	}
	h := appendRecordHeader(hbuf[:0], int(size), uint32(delta))

	data = make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, 0, 0, errCorruptedFile
	}
	var cbuf [8]byte
	if _, err := io.ReadFull(r, cbuf[:]); err != nil {
		return nil, 0, 0, errCorruptedFile
	}
	if binary.LittleEndian.Uint64(cbuf[:]) != recordChecksum(h, data) {
		return nil, 0, 0, errCorruptedFile
	}
	return data, uint32(delta), int64(len(h)) + int64(size) + 8, nil
}

func (j *Journal) readHeader(f *os.File, h *segmentHeader, expectedSeq uint32) error {
	var buf [segmentHeaderSize]byte
	_, err := io.ReadFull(f, buf[:])
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		return errCorruptedFile
	} else if err != nil {
		return err
	}
	n, err := binary.Decode(buf[:], binary.LittleEndian, h)
	if err != nil {
		panic(err)
	}
	if n != len(buf) {
		panic("internal size mismatch")
	}

	if h.Magic != magic {
		return errCorruptedFile
	}
	if xxhash.Sum64(buf[:segmentHeaderSize-8]) != h.Checksum {
		return errCorruptedFile
	}
	if expectedSeq != h.SegmentOrdinal {
		return errCorruptedFile
	}
	if h.Version > version0 {
		return ErrUnsupportedVersion
	}
	if h.Invariant != j.invariant {
		return ErrIncompatible
	}
	return nil
}

type segmentWriter struct {
	f    *os.File
	w    *bufio.Writer
	ts   uint32
	size int64
	// dirty is set when records were written since the last commit.
	dirty bool
}

func (j *Journal) startSegment(seg, ts uint32) (*segmentWriter, error) {
	name := j.fileNamePrefix + formatSegmentName(seg, ts) + j.fileNameSuffix

	f, err := os.OpenFile(filepath.Join(j.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o666)
	if err != nil {
		return nil, err
	}

	var ok bool
	defer closeAndDeleteUnlessOK(f, &ok)

	sw := &segmentWriter{
		f:    f,
		w:    bufio.NewWriter(f),
		ts:   ts,
		size: segmentHeaderSize,
	}

	var hbuf [segmentHeaderSize]byte
	fillSegmentHeader(hbuf[:], j, seg, ts)
	if _, err = sw.w.Write(hbuf[:]); err != nil {
		return nil, err
	}
	sw.dirty = true

	if j.verbose {
		j.logger.Debug("journal: new segment", "jrnl", j.debugName, "file", name)
	}
	ok = true
	return sw, nil
}

const maxRecHeaderLen = binary.MaxVarintLen64 + binary.MaxVarintLen32

func (sw *segmentWriter) writeRecord(ts uint32, data []byte) error {
	var tsDelta uint32
	if ts > sw.ts {
		tsDelta = ts - sw.ts
		sw.ts = ts
	}
	sw.dirty = true

	var hbuf [maxRecHeaderLen]byte
	h := appendRecordHeader(hbuf[:0], len(data), tsDelta)

	var cbuf [8]byte
	binary.LittleEndian.PutUint64(cbuf[:], recordChecksum(h, data))

	for _, b := range [][]byte{h, data, cbuf[:]} {
		if _, err := sw.w.Write(b); err != nil {
			return err
		}
		sw.size += int64(len(b))
	}
	return nil
}

func (sw *segmentWriter) commit() error {
	if !sw.dirty {
		return nil
	}
	if err := sw.w.Flush(); err != nil {
		return err
	}
	if err := syncData(sw.f); err != nil {
		return err
	}
	sw.dirty = false
	return nil
}

func (sw *segmentWriter) close() error {
	if sw.f == nil {
		return nil
	}
	err := sw.f.Close()
	sw.f = nil
	return err
}

func closeAndDeleteUnlessOK(f *os.File, ok *bool) {
	if *ok {
		return
	}
	f.Close()
	os.Remove(f.Name())
}

func fillSegmentHeader(buf []byte, j *Journal, seg, ts uint32) {
	h := segmentHeader{
		Magic:          magic,
		Version:        version0,
		SegmentOrdinal: seg,
		Timestamp:      ts,
		Invariant:      j.invariant,
	}
	n, err := binary.Encode(buf, binary.LittleEndian, h)
	if err != nil {
		panic(err)
	}
	if n != segmentHeaderSize {
		panic("internal size mismatch")
	}
	binary.LittleEndian.PutUint64(buf[segmentHeaderSize-8:], xxhash.Sum64(buf[:segmentHeaderSize-8]))
}

func appendRecordHeader(b []byte, size int, tsDelta uint32) []byte {
	b = binary.AppendUvarint(b, uint64(size))
	b = binary.AppendUvarint(b, uint64(tsDelta))
	return b
}

func recordChecksum(h, data []byte) uint64 {
	var d xxhash.Digest
	d.Reset()
	d.Write(h)
	d.Write(data)
	return d.Sum64()
}

func formatSegmentName(seq, ts uint32) string {
	t := time.Unix(int64(uint64(ts)), 0).UTC()
	return fmt.Sprintf("%010d-%s", seq, t.Format(timestampFmt))
}

// parseSegmentName parses the part of a file name between prefix and suffix.
func parseSegmentName(name string) (seq, ts uint32, err error) {
	seqStr, tsStr, ok := strings.Cut(name, "-")
	if !ok {
		return 0, 0, fmt.Errorf("invalid segment file name %q", name)
	}
	v, err := strconv.ParseUint(seqStr, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid segment file name %q (invalid segment number)", name)
	}
	seq = uint32(v)

	t, err := time.ParseInLocation(timestampFmt, tsStr, time.UTC)
	if err != nil {
		return seq, 0, fmt.Errorf("invalid segment file name %q (invalid timestamp)", name)
	}
	ts = uint32(t.Unix())
	return seq, ts, nil
}
