// Copyright ©2012 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sam implements the SAM header catalog and the SAM value types
// shared with the bam package: CIGAR operations, alignment flags and
// auxiliary fields. The SAM format is described in the SAM specification.
//
// http://samtools.github.io/hts-specs/SAMv1.pdf
package sam

import (
	"errors"
)

var (
	// ErrBadMagic is returned when a binary header does not
	// start with the BAM magic number.
	ErrBadMagic = errors.New("sam: magic number mismatch")

	// ErrBadHeader is returned for malformed header text.
	ErrBadHeader = errors.New("sam: malformed header line")

	// ErrMissingID is returned for a read group line
	// without an ID field.
	ErrMissingID = errors.New("sam: missing read group ID")

	// ErrDupReadGroup is returned when two read groups
	// share an ID.
	ErrDupReadGroup = errors.New("sam: duplicate read group name")

	// ErrDupReference is returned when two reference
	// sequences share a name.
	ErrDupReference = errors.New("sam: duplicate reference name")

	// ErrBadLength is returned for a reference length
	// outside [0, 1<<31).
	ErrBadLength = errors.New("sam: reference length out of range")
)

// A Tag represents an auxiliary or header tag label.
type Tag [2]byte

var (
	headerTag       = Tag{'H', 'D'}
	versionTag      = Tag{'V', 'N'}
	sortOrderTag    = Tag{'S', 'O'}
	groupOrderTag   = Tag{'G', 'O'}
	refDictTag      = Tag{'S', 'Q'}
	refNameTag      = Tag{'S', 'N'}
	refLengthTag    = Tag{'L', 'N'}
	altNameTag      = Tag{'A', 'N'}
	assemblyIDTag   = Tag{'A', 'S'}
	md5Tag          = Tag{'M', '5'}
	speciesTag      = Tag{'S', 'P'}
	uriTag          = Tag{'U', 'R'}
	readGroupTag    = Tag{'R', 'G'}
	centerTag       = Tag{'C', 'N'}
	descriptionTag  = Tag{'D', 'S'}
	dateTag         = Tag{'D', 'T'}
	flowOrderTag    = Tag{'F', 'O'}
	keySequenceTag  = Tag{'K', 'S'}
	libraryTag      = Tag{'L', 'B'}
	insertSizeTag   = Tag{'P', 'I'}
	platformTag     = Tag{'P', 'L'}
	platformUnitTag = Tag{'P', 'U'}
	sampleTag       = Tag{'S', 'M'}
	programTag      = Tag{'P', 'G'}
	idTag           = Tag{'I', 'D'}
	programNameTag  = Tag{'P', 'N'}
	commandLineTag  = Tag{'C', 'L'}
	previousProgTag = Tag{'P', 'P'}
	commentTag      = Tag{'C', 'O'}
)

// NewTag returns a Tag from the tag string. It panics if len(tag) != 2.
func NewTag(tag string) Tag {
	var t Tag
	if len(tag) != 2 {
		panic("sam: illegal tag length")
	}
	copy(t[:], tag)
	return t
}

// String returns a string representation of a Tag.
func (t Tag) String() string { return string(t[:]) }

// Less returns whether t sorts before u in byte order.
func (t Tag) Less(u Tag) bool {
	return t[0] < u[0] || (t[0] == u[0] && t[1] < u[1])
}

type tagPair struct {
	tag   Tag
	value string
}

func getTag(tags []tagPair, t Tag) string {
	for _, tp := range tags {
		if tp.tag == t {
			return tp.value
		}
	}
	return ""
}

const (
	wordBits = 31
	maxInt32 = int(^uint32(0) >> 1)
	minInt32 = -int(maxInt32) - 1
)

func validInt32(i int) bool { return minInt32 <= i && i <= maxInt32 }
func validLen(i int) bool   { return 0 <= i && i <= 1<<wordBits-1 }
