// Copyright ©2012 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bam

import (
	"encoding/binary"
	"io"
	"os"
	"sync/atomic"

	"github.com/pkg/errors"
	"golang.org/x/exp/mmap"

	"github.com/biogo/bamx/bgzf"
	"github.com/biogo/bamx/errs"
	"github.com/biogo/bamx/sam"
)

// File reads BAM records from a BGZF stream. Decompressed blocks are
// held in a window so that records spanning block boundaries can be
// decoded in place.
//
// A File is reference counted. It is returned holding one reference,
// dropped by Close. Each record returned by Read also holds a reference
// until it is released. A File is not safe for concurrent use.
type File struct {
	r      *bgzf.Reader
	h      *sam.Header
	idx    *Index
	closer io.Closer

	// win holds decompressed data. spans describes the
	// blocks held in win in file order and cur is the
	// read cursor.
	win   []byte
	spans []span
	cur   int

	// pending is the position reported when no
	// block is held.
	pending bgzf.Offset

	// first is the position of the first record.
	first bgzf.Offset

	// mark holds the offset given to SetPosition
	// until the cursor moves.
	mark    bgzf.Offset
	markCur int
	marked  bool

	borrowed *Record

	refs   int32
	closed bool
}

// span is a decompressed block held in the window.
type span struct {
	base  int64
	start int
	n     int
}

// NewFile returns a File reading size bytes of BAM data from r. The
// header is read and validated.
func NewFile(r io.ReaderAt, size int64) (*File, error) {
	f := &File{
		r:    bgzf.NewReader(r, size),
		win:  make([]byte, 0, 2*bgzf.MaxBlockSize),
		refs: 1,
	}
	var h sam.Header
	err := h.DecodeBinary(windowReader{f})
	if err != nil {
		return nil, err
	}
	f.h = &h
	f.first = f.Position()
	return f, nil
}

// OpenFile opens the BAM file at path using a memory map. If a BAI index
// exists at path+".bai" it is loaded.
func OpenFile(path string) (*File, error) {
	m, err := mmap.Open(path)
	if err != nil {
		return nil, errs.E(errs.Resource, "bam", "open", path, err)
	}
	f, err := NewFile(m, int64(m.Len()))
	if err != nil {
		m.Close()
		return nil, err
	}
	f.closer = m
	bai, err := os.Open(path + ".bai")
	if os.IsNotExist(err) {
		return f, nil
	}
	if err != nil {
		f.Close()
		return nil, errs.E(errs.Resource, "bam", "open", path+".bai", err)
	}
	defer bai.Close()
	err = f.LoadIndex(bai)
	if err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// Header returns the header of the File.
func (f *File) Header() *sam.Header { return f.h }

// SetCache sets the block cache used by the underlying BGZF reader.
func (f *File) SetCache(c bgzf.Cache) { f.r.SetCache(c) }

// SetIndex attaches idx for region queries. A nil idx detaches any
// index.
func (f *File) SetIndex(idx *Index) error {
	if idx != nil && idx.NumRefs() != f.h.NumRefs() {
		return errs.E(errs.Data, "bam", "set index", "",
			errors.Wrapf(ErrBadIndex, "index has %d references, header has %d", idx.NumRefs(), f.h.NumRefs()))
	}
	f.idx = idx
	return nil
}

// LoadIndex reads a BAI index from r and attaches it.
func (f *File) LoadIndex(r io.Reader) error {
	idx, err := ReadIndex(r, f.h)
	if err != nil {
		return err
	}
	return f.SetIndex(idx)
}

// Index returns the attached index, or nil.
func (f *File) Index() *Index { return f.idx }

// HasIndex returns whether an index is attached.
func (f *File) HasIndex() bool { return f.idx != nil }

// IsIndexed returns whether the attached index has data for the
// reference with the given ID.
func (f *File) IsIndexed(id int) bool { return f.idx != nil && f.idx.IsIndexed(id) }

// Retain adds a reference to the File.
func (f *File) Retain() { atomic.AddInt32(&f.refs, 1) }

// Close drops the reference returned by NewFile or OpenFile. The
// underlying file is closed when the last reference is dropped.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.unlock()
	f.closed = true
	return f.release()
}

func (f *File) release() error {
	if atomic.AddInt32(&f.refs, -1) != 0 {
		return nil
	}
	f.win = nil
	f.spans = nil
	if f.closer != nil {
		return f.closer.Close()
	}
	return nil
}

// unlock detaches the last record returned by Read from the window,
// copying its data if it is still held.
func (f *File) unlock() {
	rec := f.borrowed
	if rec == nil {
		return
	}
	f.borrowed = nil
	if atomic.LoadInt32(&rec.refs) > 0 {
		rec.own()
	}
}

// Position returns the virtual offset of the read cursor. The end of a
// block is reported as the start of the next block once that block is
// held, except directly after a call to SetPosition.
func (f *File) Position() bgzf.Offset {
	if f.marked && f.markCur == f.cur {
		return f.mark
	}
	for i := len(f.spans) - 1; i >= 0; i-- {
		s := f.spans[i]
		if s.start <= f.cur {
			return bgzf.Offset{File: s.base, Block: uint16(f.cur - s.start)}
		}
	}
	return f.pending
}

// SetPosition moves the read cursor to the virtual offset o, which must
// be the start of a record. Repeated calls with the same offset leave
// the File in the same state.
func (f *File) SetPosition(o bgzf.Offset) error {
	if f.closed {
		return ErrClosed
	}
	f.unlock()
	f.marked = false
	for _, s := range f.spans {
		if s.base == o.File && int(o.Block) <= s.n {
			f.cur = s.start + int(o.Block)
			f.mark, f.markCur, f.marked = o, f.cur, true
			return nil
		}
	}

	f.win = f.win[:0]
	f.spans = f.spans[:0]
	f.cur = 0
	err := f.r.SetPosition(bgzf.Offset{File: o.File})
	if err != nil {
		return err
	}
	f.pending = bgzf.Offset{File: o.File}
	if o.Block == 0 {
		return nil
	}
	ok, err := f.readBlock()
	if err != nil {
		return err
	}
	if !ok || int(o.Block) > f.spans[0].n {
		f.win = f.win[:0]
		f.spans = f.spans[:0]
		return errs.E(errs.Position, "bam", "set position", o.String(), bgzf.ErrBadOffset)
	}
	f.cur = int(o.Block)
	f.mark, f.markCur, f.marked = o, f.cur, true
	return nil
}

// Rewind moves the read cursor to the first record.
func (f *File) Rewind() error { return f.SetPosition(f.first) }

// Read returns the next record. It returns io.EOF at the end of the
// stream. The returned record must be released after use.
func (f *File) Read() (*Record, error) {
	if f.closed {
		return nil, ErrClosed
	}
	f.unlock()
	at := f.Position()
	marked := f.marked && f.markCur == f.cur
	f.marked = false
	ok, err := f.need(4)
	if err != nil {
		return nil, err
	}
	if ok && !marked {
		at = f.Position()
	}
	if !ok {
		if f.cur == len(f.win) {
			return nil, io.EOF
		}
		return nil, errs.E(errs.Format, "bam", "read", at.String(), io.ErrUnexpectedEOF)
	}
	size := int(int32(binary.LittleEndian.Uint32(f.win[f.cur:])))
	if size < fixedSize {
		return nil, errs.E(errs.Data, "bam", "read", at.String(), errors.Wrapf(ErrRecordSize, "block size %d", size))
	}
	ok, err = f.need(4 + size)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.E(errs.Format, "bam", "read", at.String(), io.ErrUnexpectedEOF)
	}
	start := f.cur + 4
	f.cur = start + size

	rec := &Record{
		file: f,
		refs: 1,
		data: f.win[start:f.cur:f.cur],
		off:  at,
	}
	err = decodeRecord(rec)
	if err == nil {
		err = f.checkRefs(rec)
	}
	if err != nil {
		return nil, errs.E(errs.Data, "bam", "read", at.String(), err)
	}
	atomic.AddInt32(&f.refs, 1)
	f.borrowed = rec
	return rec, nil
}

func (f *File) checkRefs(rec *Record) error {
	n := f.h.NumRefs()
	if id := rec.RefID(); id < -1 || id >= n {
		return errors.Wrapf(ErrBadRefID, "reference id %d", id)
	}
	if id := rec.MateRefID(); id < -1 || id >= n {
		return errors.Wrapf(ErrBadRefID, "mate reference id %d", id)
	}
	return nil
}

// need ensures that n bytes are available in the window from the read
// cursor. It returns false if the stream ends first.
func (f *File) need(n int) (bool, error) {
	for len(f.win)-f.cur < n {
		f.compact()
		ok, err := f.readBlock()
		if !ok || err != nil {
			return false, err
		}
	}
	return true, nil
}

// readBlock appends the next block to the window. It returns false
// at the end of the stream.
func (f *File) readBlock() (bool, error) {
	b, err := f.r.ReadBlock()
	if err == io.EOF {
		f.pending = f.r.Position()
		return false, nil
	}
	if err != nil {
		return false, err
	}
	f.spans = append(f.spans, span{base: f.r.Position().File, start: len(f.win), n: len(b)})
	f.win = append(f.win, b...)
	return true, nil
}

// compact drops blocks that end before the read cursor.
func (f *File) compact() {
	var i int
	for i < len(f.spans) && f.spans[i].start+f.spans[i].n < f.cur {
		i++
	}
	if i == 0 {
		return
	}
	off := f.spans[i].start
	copy(f.win, f.win[off:])
	f.win = f.win[:len(f.win)-off]
	f.cur -= off
	f.spans = append(f.spans[:0], f.spans[i:]...)
	for j := range f.spans {
		f.spans[j].start -= off
	}
}

// windowReader reads decompressed bytes through the File's window.
type windowReader struct {
	f *File
}

func (w windowReader) Read(p []byte) (int, error) {
	f := w.f
	if len(p) == 0 {
		return 0, nil
	}
	if f.cur == len(f.win) {
		ok, err := f.need(1)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, io.EOF
		}
	}
	n := copy(p, f.win[f.cur:])
	f.cur += n
	return n, nil
}
