// Copyright ©2012 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bgzf implements reading of BGZF block compressed files
// with random access through virtual offsets.
package bgzf

import (
	"errors"
	"fmt"
	"io"

	"github.com/biogo/bamx/errs"
)

const (
	// MaxBlockSize is the maximum size of a compressed
	// or decompressed BGZF block.
	MaxBlockSize = 0x10000

	// gzip member header length up to and including XLEN.
	headerLen = 12

	// gzip member footer length: CRC32 and ISIZE.
	footerLen = 8

	// Magic EOF block.
	magicBlock = "\x1f\x8b\x08\x04\x00\x00\x00\x00\x00\xff\x06\x00\x42\x43\x02\x00\x1b\x00\x03\x00\x00\x00\x00\x00\x00\x00\x00\x00"
)

var (
	// ErrNotBGZF is returned for data that is not a gzip member
	// carrying a BC extra subfield.
	ErrNotBGZF = errors.New("bgzf: not a BGZF block")

	// ErrTruncated is returned when the file ends within a block.
	ErrTruncated = errors.New("bgzf: truncated block")

	// ErrBlockSize is returned when the block size declared in the
	// BC subfield does not match the extent of the compressed data.
	ErrBlockSize = errors.New("bgzf: declared block size does not match data")

	// ErrSizeMismatch is returned when the decompressed size does not
	// match the size recorded in the block footer.
	ErrSizeMismatch = errors.New("bgzf: decompressed size mismatch")

	// ErrChecksum is returned when the CRC32 of the decompressed data
	// does not match the block footer.
	ErrChecksum = errors.New("bgzf: checksum mismatch")

	// ErrCorrupt is returned when the deflate stream is invalid.
	ErrCorrupt = errors.New("bgzf: corrupt deflate stream")

	// ErrBadOffset is returned when a virtual offset points past
	// the end of its block.
	ErrBadOffset = errors.New("bgzf: offset beyond block end")
)

// Offset is a BGZF virtual file offset.
type Offset struct {
	// File is the file offset of the start
	// of the block holding the position.
	File int64

	// Block is the offset into the
	// decompressed block.
	Block uint16
}

// MakeOffset returns the Offset for the packed virtual offset v.
func MakeOffset(v uint64) Offset {
	return Offset{
		File:  int64(v >> 16),
		Block: uint16(v),
	}
}

// Virtual returns the packed virtual offset of o. The ordering of
// virtual offsets is the order of data in the decompressed stream.
func (o Offset) Virtual() uint64 {
	return uint64(o.File)<<16 | uint64(o.Block)
}

// IsZero returns whether o is the zero Offset.
func (o Offset) IsZero() bool { return o == Offset{} }

// Less returns whether o is before p in the decompressed stream.
func (o Offset) Less(p Offset) bool { return o.Virtual() < p.Virtual() }

// String returns a string representation of o.
func (o Offset) String() string { return fmt.Sprintf("%d:%d", o.File, o.Block) }

// Chunk is a region of a BGZF file.
type Chunk struct {
	Begin Offset
	End   Offset
}

// HasEOF checks for the presence of a BGZF magic EOF block at the end
// of the size bytes available from r.
func HasEOF(r io.ReaderAt, size int64) (bool, error) {
	if size < int64(len(magicBlock)) {
		return false, nil
	}
	b := make([]byte, len(magicBlock))
	_, err := r.ReadAt(b, size-int64(len(magicBlock)))
	if err != nil && err != io.EOF {
		return false, errs.E(errs.Resource, "bgzf", "check eof", "", err)
	}
	return string(b) == magicBlock, nil
}

func formatError(op string, at int64, err error) error {
	return errs.E(errs.Format, "bgzf", op, fmt.Sprintf("block at %d", at), err)
}

// physBufferTarget is the nominal size of the compressed read buffer.
// It must be larger than MaxBlockSize.
const physBufferTarget = 16 * MaxBlockSize
