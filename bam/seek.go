// Copyright ©2014 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bam

import (
	"fmt"
	"io"

	"github.com/grailbio/base/log"
	"github.com/pkg/errors"

	"github.com/biogo/bamx/errs"
)

// Seek positions the File at the first record on the reference with the
// given ID that overlaps the zero-based half-open interval [beg,end).
// The following call to Read returns that record. An end beyond the
// length of the reference is clipped.
//
// Seek returns an errs.NotFound error if no record overlaps the interval
// and an errs.Position error if the region cannot be queried.
func (f *File) Seek(id, beg, end int) error {
	if f.closed {
		return ErrClosed
	}
	region := fmt.Sprintf("%d:%d-%d", id, beg, end)
	if f.idx == nil {
		return errs.E(errs.Position, "bam", "seek", region, ErrNoIndex)
	}
	ref := f.h.Ref(id)
	if ref == nil {
		return errs.E(errs.Position, "bam", "seek", region, errors.Wrapf(ErrOutOfRange, "no reference %d", id))
	}
	if end > ref.Len() {
		end = ref.Len()
	}
	if beg < 0 || beg >= end {
		return errs.E(errs.Position, "bam", "seek", region, errors.Wrapf(ErrOutOfRange, "reference %s has length %d", ref.Name(), ref.Len()))
	}
	if !f.idx.IsIndexed(id) {
		return errs.E(errs.Position, "bam", "seek", region, ErrNotIndexed)
	}

	k, ok := f.idx.nextPopulated(id, beg>>intervalShift)
	if !ok {
		return errs.E(errs.NotFound, "bam", "seek", region, ErrNotFound)
	}
	for {
		pos, err := f.firstPos(id, k, region)
		if err != nil {
			return err
		}
		if pos < end {
			break
		}
		if log.At(log.Debug) {
			log.Debug.Printf("bam: interval %d of reference %d starts at %d beyond %s, backing off", k, id, pos, region)
		}
		k, ok = f.idx.prevPopulated(id, k)
		if !ok {
			return errs.E(errs.NotFound, "bam", "seek", region, ErrNotFound)
		}
	}

	err := f.SetPosition(f.idx.Interval(id, k))
	if err != nil {
		return err
	}
	last := -1
	for {
		rec, err := f.Read()
		if err == io.EOF {
			return errs.E(errs.NotFound, "bam", "seek", region, ErrNotFound)
		}
		if err != nil {
			return err
		}
		rid, pos, recEnd, off := rec.RefID(), rec.Pos(), rec.End(), rec.Offset()
		rec.Release()
		switch {
		case rid != id:
			return errs.E(errs.NotFound, "bam", "seek", region, ErrNotFound)
		case pos < last:
			return errs.E(errs.Position, "bam", "seek", off.String(),
				errors.Wrapf(ErrUnsorted, "position %d follows %d", pos, last))
		case pos >= end:
			return errs.E(errs.NotFound, "bam", "seek", region, ErrNotFound)
		case recEnd > beg:
			return f.SetPosition(off)
		}
		last = pos
	}
}

// firstPos returns the start position of the record at the offset
// held for interval k of reference id.
func (f *File) firstPos(id, k int, region string) (int, error) {
	err := f.SetPosition(f.idx.Interval(id, k))
	if err != nil {
		return 0, err
	}
	rec, err := f.Read()
	if err == io.EOF {
		return 0, errs.E(errs.Position, "bam", "seek", region,
			errors.Wrapf(ErrIndexMismatch, "interval %d points at end of file", k))
	}
	if err != nil {
		return 0, err
	}
	rid, pos := rec.RefID(), rec.Pos()
	rec.Release()
	if rid != id {
		return 0, errs.E(errs.Position, "bam", "seek", region,
			errors.Wrapf(ErrIndexMismatch, "interval %d points at a record on reference %d", k, rid))
	}
	return pos, nil
}
