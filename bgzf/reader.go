// Copyright ©2012 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bgzf

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/pkg/errors"

	"github.com/biogo/bamx/errs"
)

// Reader implements BGZF blocked gzip decompression over a random
// access file. It presents the decompressed stream as a sequence of
// blocks addressed by virtual offsets.
//
// A Reader is not safe for concurrent use.
type Reader struct {
	r    io.ReaderAt
	size int64

	// phys holds compressed bytes read from the file starting
	// at physBase. phys[cur:end] has not yet been consumed.
	phys     []byte
	physBase int64
	cur, end int

	src bytes.Reader
	fr  io.ReadCloser

	// base is the file offset of the current block or -1
	// if no block is held. data is the decompressed block
	// and off is the read cursor within it.
	base int64
	data []byte
	off  int
	out  [MaxBlockSize]byte

	// failBase and failSize describe the last block that
	// failed to decode. failSize is zero if the nominal size
	// is not known.
	failBase int64
	failSize int

	cache Cache
}

// NewReader returns a new Reader reading size bytes of BGZF data from r.
// No validation is performed until the first block is read.
func NewReader(r io.ReaderAt, size int64) *Reader {
	return &Reader{
		r:    r,
		size: size,
		phys: make([]byte, physBufferSize()),
		base: -1,
	}
}

// Size returns the size of the underlying compressed file.
func (r *Reader) Size() int64 { return r.size }

// SetCache sets the cache used to retain decompressed blocks. A nil
// Cache disables caching.
func (r *Reader) SetCache(c Cache) { r.cache = c }

// blockStart returns the file offset of the next unread block.
func (r *Reader) blockStart() int64 { return r.physBase + int64(r.cur) }

// Position returns the virtual offset of the read cursor. Before a
// block has been read it is the start of the next block.
func (r *Reader) Position() Offset {
	if r.base < 0 {
		return Offset{File: r.blockStart()}
	}
	return Offset{File: r.base, Block: uint16(r.off)}
}

// SetPosition moves the read cursor to the given virtual offset. The
// File component of o must be the start of a block. When it lies within
// the buffered compressed data only the input cursor is moved, otherwise
// the buffer is refilled from o.File on the next read.
func (r *Reader) SetPosition(o Offset) error {
	if o.File < 0 || o.File > r.size {
		return errs.E(errs.Position, "bgzf", "set position", o.String(), ErrBadOffset)
	}
	if o.File >= r.physBase && o.File < r.physBase+int64(r.end) {
		r.cur = int(o.File - r.physBase)
	} else {
		r.physBase = o.File
		r.cur, r.end = 0, 0
	}
	r.base = -1
	r.data = nil
	r.off = 0
	if o.Block == 0 {
		return nil
	}
	_, err := r.ReadBlock()
	if err != nil {
		if err == io.EOF {
			err = errs.E(errs.Position, "bgzf", "set position", o.String(), ErrBadOffset)
		}
		return err
	}
	if int(o.Block) > len(r.data) {
		return errs.E(errs.Position, "bgzf", "set position", o.String(), ErrBadOffset)
	}
	r.off = int(o.Block)
	return nil
}

// Read reads decompressed data into p, reading further blocks as needed.
func (r *Reader) Read(p []byte) (int, error) {
	var n int
	for n < len(p) {
		if r.off == len(r.data) {
			_, err := r.ReadBlock()
			if err != nil {
				return n, err
			}
			continue
		}
		c := copy(p[n:], r.data[r.off:])
		r.off += c
		n += c
	}
	return n, nil
}

// ReadBlock decompresses the next block, making it the current block
// with the read cursor at its start. The returned slice is only valid
// until the next call to ReadBlock, Read or SetPosition. ReadBlock
// returns io.EOF when the end of the file is reached at a block
// boundary.
func (r *Reader) ReadBlock() ([]byte, error) {
	at := r.blockStart()
	if r.cache != nil {
		if b := r.cache.Get(at); b != nil {
			r.consume(b.Size)
			r.base = at
			r.data = b.Data
			r.off = 0
			r.cache.Put(b)
			return r.data, nil
		}
	}

	xlen, bsize, err := r.header()
	if err != nil {
		return nil, err
	}
	err = r.fill(bsize)
	if err != nil {
		return nil, r.fail("read block", at, bsize, err)
	}
	block := r.phys[r.cur : r.cur+bsize]
	n, err := r.inflate(block[headerLen+xlen : bsize-footerLen])
	if err != nil {
		return nil, r.fail("read block", at, bsize, err)
	}
	if binary.LittleEndian.Uint32(block[bsize-4:]) != uint32(n) {
		return nil, r.fail("read block", at, bsize, ErrSizeMismatch)
	}
	if binary.LittleEndian.Uint32(block[bsize-8:]) != crc32.ChecksumIEEE(r.out[:n]) {
		return nil, r.fail("read block", at, bsize, ErrChecksum)
	}

	r.cur += bsize
	r.base = at
	r.data = r.out[:n]
	r.off = 0
	if r.cache != nil {
		r.cache.Put(&Block{Base: at, Size: bsize, Data: append([]byte(nil), r.data...)})
	}
	return r.data, nil
}

// skipBlock parses the header of the next block and moves past it
// without decompressing. It returns the compressed size of the block.
func (r *Reader) skipBlock() (int, error) {
	at := r.blockStart()
	_, bsize, err := r.header()
	if err != nil {
		return 0, err
	}
	if at+int64(bsize) > r.size {
		return 0, r.fail("skip block", at, bsize, ErrTruncated)
	}
	r.consume(bsize)
	r.base = -1
	r.data = nil
	r.off = 0
	return bsize, nil
}

// header parses the gzip member header at the input cursor and returns
// the extra field length and the declared block size.
func (r *Reader) header() (xlen, bsize int, err error) {
	at := r.blockStart()
	r.failBase, r.failSize = at, 0
	if at >= r.size {
		return 0, 0, io.EOF
	}
	err = r.fill(headerLen)
	if err != nil {
		return 0, 0, r.fail("read header", at, 0, err)
	}
	h := r.phys[r.cur:r.end]
	if h[0] != 0x1f || h[1] != 0x8b || h[2] != 8 || h[3]&0x04 == 0 {
		return 0, 0, r.fail("read header", at, 0, ErrNotBGZF)
	}
	xlen = int(binary.LittleEndian.Uint16(h[10:12]))
	err = r.fill(headerLen + xlen)
	if err != nil {
		return 0, 0, r.fail("read header", at, 0, err)
	}
	extra := r.phys[r.cur+headerLen : r.cur+headerLen+xlen]
	bsize = -1
	for i := 0; i+4 <= len(extra); {
		slen := int(binary.LittleEndian.Uint16(extra[i+2 : i+4]))
		if extra[i] == 'B' && extra[i+1] == 'C' && slen == 2 && i+6 <= len(extra) {
			bsize = int(binary.LittleEndian.Uint16(extra[i+4:i+6])) + 1
			break
		}
		i += 4 + slen
	}
	if bsize < 0 {
		return 0, 0, r.fail("read header", at, 0, ErrNotBGZF)
	}
	if bsize < headerLen+xlen+footerLen {
		return 0, 0, r.fail("read header", at, 0, ErrBlockSize)
	}
	r.failSize = bsize
	return xlen, bsize, nil
}

// inflate decompresses the deflate stream in payload into r.out.
// The stream must occupy exactly the payload.
func (r *Reader) inflate(payload []byte) (int, error) {
	r.src.Reset(payload)
	if r.fr == nil {
		r.fr = flate.NewReader(&r.src)
	} else {
		err := r.fr.(flate.Resetter).Reset(&r.src, nil)
		if err != nil {
			return 0, ErrCorrupt
		}
	}
	var n int
	for {
		if n == len(r.out) {
			var b [1]byte
			m, err := r.fr.Read(b[:])
			if m != 0 {
				return n, ErrSizeMismatch
			}
			if err == io.EOF {
				break
			}
			if err != nil {
				return n, inflateError(err)
			}
			continue
		}
		m, err := r.fr.Read(r.out[n:])
		n += m
		if err == io.EOF {
			break
		}
		if err != nil {
			return n, inflateError(err)
		}
	}
	if r.src.Len() != 0 {
		return n, ErrBlockSize
	}
	return n, nil
}

func inflateError(err error) error {
	if err == io.ErrUnexpectedEOF {
		// The payload ended before the deflate stream,
		// so the declared block size is too small.
		return ErrBlockSize
	}
	return ErrCorrupt
}

// fill ensures that at least n bytes are available in phys from the
// input cursor, compacting and refilling the buffer as required.
func (r *Reader) fill(n int) error {
	var stalled int
	for r.end-r.cur < n {
		if r.cur != 0 {
			copy(r.phys, r.phys[r.cur:r.end])
			r.physBase += int64(r.cur)
			r.end -= r.cur
			r.cur = 0
		}
		want := len(r.phys) - r.end
		if rem := r.size - (r.physBase + int64(r.end)); rem < int64(want) {
			want = int(rem)
		}
		var m int
		if want > 0 {
			var err error
			m, err = r.r.ReadAt(r.phys[r.end:r.end+want], r.physBase+int64(r.end))
			if err != nil && err != io.EOF {
				return errs.E(errs.Resource, "bgzf", "fill", "", errors.Wrapf(err, "read at %d", r.physBase+int64(r.end)))
			}
		}
		r.end += m
		if m == 0 {
			stalled++
			if stalled == 2 {
				return ErrTruncated
			}
		}
	}
	return nil
}

// consume advances the input cursor by n bytes, dropping the buffer
// if the new position lies outside it.
func (r *Reader) consume(n int) {
	if r.cur+n <= r.end {
		r.cur += n
		return
	}
	r.physBase += int64(r.cur + n)
	r.cur, r.end = 0, 0
}

func (r *Reader) fail(op string, at int64, bsize int, err error) error {
	if bsize != 0 {
		r.failSize = bsize
	}
	var e *errs.Error
	if errors.As(err, &e) {
		return err
	}
	return formatError(op, at, err)
}

// skipFailed moves the input cursor to the nominal end of the last
// block that failed to decode. It returns false if the block size
// is not known or the end lies beyond the end of the file.
func (r *Reader) skipFailed() bool {
	if r.failSize == 0 {
		return false
	}
	next := r.failBase + int64(r.failSize)
	if next > r.size {
		return false
	}
	r.failSize = 0
	return r.SetPosition(Offset{File: next}) == nil
}
