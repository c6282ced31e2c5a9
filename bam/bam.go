// Copyright ©2012 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bam implements indexed reading of BAM alignment files.
//
// A File decodes alignment records sequentially from a BGZF compressed
// BAM stream. When a BAI index is attached, File.Seek positions the
// stream at the first record overlapping a genomic region.
//
// Records returned by File.Read initially alias the File's decompressed
// window. The File copies the last record out of the window before it
// reads the next one, so a record stays valid until it is released,
// but slices obtained from a record's accessors are only valid until
// the next call to Read.
package bam

import (
	"errors"
)

var (
	// ErrRecordSize is returned for a record whose declared length
	// cannot hold its fixed fields or variable sections.
	ErrRecordSize = errors.New("bam: record length out of range")

	// ErrBadName is returned for a read name that is not NUL terminated.
	ErrBadName = errors.New("bam: malformed read name")

	// ErrBadCigarOp is returned for a CIGAR operation code outside
	// the nine defined operations.
	ErrBadCigarOp = errors.New("bam: invalid cigar operation")

	// ErrCigarLength is returned when the query length implied by
	// the CIGAR does not agree with the declared read length.
	ErrCigarLength = errors.New("bam: cigar query length mismatch")

	// ErrBadAuxType is returned for an unknown aux field type or
	// array element type.
	ErrBadAuxType = errors.New("bam: invalid aux field type")

	// ErrTruncatedAux is returned when an aux field extends past
	// the end of its record.
	ErrTruncatedAux = errors.New("bam: truncated aux field")

	// ErrBadRefID is returned for a reference ID that is not in
	// the header.
	ErrBadRefID = errors.New("bam: reference id out of range")

	// ErrBadCG is returned when CG merged read tags are present
	// but inconsistent with each other or with the record.
	ErrBadCG = errors.New("bam: inconsistent CG tags")

	// ErrBadIndex is returned for malformed index data.
	ErrBadIndex = errors.New("bam: malformed index")

	// ErrNoIndex is returned when a region is requested
	// from a File with no index.
	ErrNoIndex = errors.New("bam: no index")

	// ErrNotIndexed is returned when a region is requested on
	// a reference without index data.
	ErrNotIndexed = errors.New("bam: reference not indexed")

	// ErrOutOfRange is returned for a region outside its reference.
	ErrOutOfRange = errors.New("bam: region out of range")

	// ErrIndexMismatch is returned when the index points at a
	// record on another reference.
	ErrIndexMismatch = errors.New("bam: index does not match data")

	// ErrUnsorted is returned when a scan finds a record before
	// its predecessor.
	ErrUnsorted = errors.New("bam: records not sorted by coordinate")

	// ErrNotFound is returned when no record overlaps a region.
	ErrNotFound = errors.New("bam: no overlapping record")

	// ErrBinMismatch is reported by validation for a record whose
	// stored bin does not match its alignment span.
	ErrBinMismatch = errors.New("bam: stored bin does not match alignment")

	// ErrNoEOFMarker is reported by validation for a file without
	// the BGZF end of file marker block.
	ErrNoEOFMarker = errors.New("bam: missing BGZF EOF marker")

	// ErrClosed is returned by operations on a closed File.
	ErrClosed = errors.New("bam: file closed")
)

var bamMagic = [4]byte{'B', 'A', 'M', 0x1}
