// Copyright ©2012 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bam

import (
	"io"

	"github.com/biogo/bamx/errs"
)

// Iterator wraps a File to provide a convenient loop interface for reading
// the records overlapping a region. Iteration stops unrecoverably at the end
// of the region or the first error.
type Iterator struct {
	f *File

	id, beg, end int

	rec *Record
	err error
}

// NewIterator returns an Iterator over the records of f on the reference with
// the given ID that overlap [beg,end). A region with no overlapping records
// gives an Iterator that returns no records.
//
//	it, err := bam.NewIterator(f, id, beg, end)
//	if err != nil {
//		return err
//	}
//	for it.Next() {
//		fn(it.Record())
//	}
//	return it.Close()
func NewIterator(f *File, id, beg, end int) (*Iterator, error) {
	err := f.Seek(id, beg, end)
	if errs.Is(errs.NotFound, err) {
		return &Iterator{f: f, err: io.EOF}, nil
	}
	if err != nil {
		return nil, err
	}
	return &Iterator{f: f, id: id, beg: beg, end: end}, nil
}

// Next advances the Iterator past the next overlapping record, which will
// then be available through the Record method. It returns false when the
// iteration stops, either by reaching the end of the region or an error.
// After Next returns false, the Error method will return any error that
// occurred during iteration.
func (i *Iterator) Next() bool {
	i.releaseRecord()
	for i.err == nil {
		var rec *Record
		rec, i.err = i.f.Read()
		if i.err != nil {
			break
		}
		if rec.RefID() != i.id || rec.Pos() >= i.end {
			rec.Release()
			i.err = io.EOF
			break
		}
		if rec.End() > i.beg {
			i.rec = rec
			return true
		}
		rec.Release()
	}
	return false
}

// Error returns the first non-EOF error that was encountered by the Iterator.
func (i *Iterator) Error() error {
	if i.err == io.EOF {
		return nil
	}
	return i.err
}

// Record returns the most recent record read by a call to Next. The record
// is released by the following call to Next or Close; callers wishing to
// keep it must Retain it.
func (i *Iterator) Record() *Record { return i.rec }

// Close releases the current record and returns any error encountered
// during iteration.
func (i *Iterator) Close() error {
	i.releaseRecord()
	if i.err == nil {
		i.err = io.EOF
	}
	return i.Error()
}

func (i *Iterator) releaseRecord() {
	if i.rec != nil {
		i.rec.Release()
		i.rec = nil
	}
}
