// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bgzf

import (
	"context"
	"io"

	"github.com/biogo/bamx/errs"
)

// WalkedBlock is a block visited by a Walker.
type WalkedBlock struct {
	// Pos is the virtual offset of the start of the block.
	Pos Offset

	// Data is the decompressed block data. It is nil when
	// walking headers only, and is only valid until the next
	// call to Next.
	Data []byte

	// Size is the decompressed size of the block, or its
	// compressed size when walking headers only.
	Size int

	// Err is the error encountered decoding the block.
	Err error
}

// Walker enumerates the blocks of a BGZF file from its start.
//
//	w := bgzf.Blocks(f, size)
//	for w.Next(ctx) {
//		b := w.Block()
//		if b.Err != nil {
//			if !w.Skip() {
//				break
//			}
//			continue
//		}
//		fn(b)
//	}
//	return w.Err()
type Walker struct {
	r          *Reader
	decompress bool

	blk     WalkedBlock
	skipped bool
	err     error
	done    bool
}

// Blocks returns a Walker that decompresses each block of the
// size bytes of r.
func Blocks(r io.ReaderAt, size int64) *Walker {
	return &Walker{r: NewReader(r, size), decompress: true}
}

// BlockHeaders returns a Walker that parses only the header of each
// block of the size bytes of r to recover the block size. The deflate
// data are not examined.
func BlockHeaders(r io.ReaderAt, size int64) *Walker {
	return &Walker{r: NewReader(r, size)}
}

// Next advances to the next block, which is then available through the
// Block method. It returns false at the end of the file, when ctx is
// done or when the previous block had an error and Skip was not called.
func (w *Walker) Next(ctx context.Context) bool {
	if w.done {
		return false
	}
	if w.blk.Err != nil && !w.skipped {
		w.err = w.blk.Err
		w.done = true
		return false
	}
	if err := ctx.Err(); err != nil {
		w.err = errs.E(errs.Canceled, "bgzf", "walk", w.r.Position().String(), err)
		w.done = true
		return false
	}
	w.skipped = false

	pos := Offset{File: w.r.blockStart()}
	var (
		data []byte
		size int
		err  error
	)
	if w.decompress {
		data, err = w.r.ReadBlock()
		size = len(data)
	} else {
		size, err = w.r.skipBlock()
	}
	if err == io.EOF {
		w.done = true
		return false
	}
	w.blk = WalkedBlock{Pos: pos, Data: data, Size: size, Err: err}
	return true
}

// Block returns the most recent block visited by a call to Next.
func (w *Walker) Block() WalkedBlock { return w.blk }

// Skip moves the Walker past a block that failed to decode, to the
// block boundary declared by its header. It returns false if the
// boundary is not known.
func (w *Walker) Skip() bool {
	if w.blk.Err == nil {
		return true
	}
	if !w.r.skipFailed() {
		return false
	}
	w.skipped = true
	return true
}

// Err returns the first error that stopped the walk. An error reported
// for a block through Block is only returned if the walk was stopped
// because of it.
func (w *Walker) Err() error { return w.err }
