// Copyright ©2012 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bam

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/biogo/bamx/bgzf"
	"github.com/biogo/bamx/internal/pool"
	"github.com/biogo/bamx/sam"
)

// BAM record layout offsets, relative to the end of the
// block_size field.
const (
	refIDOffset     = 0
	posOffset       = 4
	lNameOffset     = 8
	mapQOffset      = 9
	binOffset       = 10
	nCigarOffset    = 12
	flagOffset      = 14
	lSeqOffset      = 16
	nextRefIDOffset = 20
	nextPosOffset   = 24
	tLenOffset      = 28

	// fixedSize is the size of the fixed fields.
	fixedSize = 32
)

// Record is a decoded BAM alignment record.
//
// A Record is reference counted. It is returned by File.Read holding
// one reference which must be released by a call to Release. Until the
// File reads again the record's bytes alias the File's window; the File
// copies them to an owned buffer at that point if the record is still
// held.
type Record struct {
	file  *File
	refs  int32
	owned bool

	data []byte
	off  bgzf.Offset

	cigar, seq, qual, aux int
	nCigar, lSeq          int

	// tags holds the aux fields sorted by tag.
	tags []tagSpan
}

// tagSpan locates an aux field in a record's data. n excludes the
// terminating NUL of Z and H fields.
type tagSpan struct {
	off, n int32
}

// decodeRecord validates data and builds the record's section
// offsets and sorted tag table.
func decodeRecord(r *Record) error {
	d := r.data
	if len(d) < fixedSize {
		return errors.Wrapf(ErrRecordSize, "record length %d", len(d))
	}
	lName := int(d[lNameOffset])
	if lName == 0 || fixedSize+lName > len(d) {
		return errors.Wrapf(ErrBadName, "name length %d", lName)
	}
	if d[fixedSize+lName-1] != 0 {
		return ErrBadName
	}
	r.cigar = fixedSize + lName
	r.nCigar = int(binary.LittleEndian.Uint16(d[nCigarOffset:]))
	r.seq = r.cigar + 4*r.nCigar
	lSeq := int32(binary.LittleEndian.Uint32(d[lSeqOffset:]))
	if lSeq < 0 {
		return errors.Wrapf(ErrRecordSize, "negative sequence length %d", lSeq)
	}
	r.lSeq = int(lSeq)
	r.qual = r.seq + (r.lSeq+1)>>1
	r.aux = r.qual + r.lSeq
	if r.aux > len(d) {
		return errors.Wrapf(ErrRecordSize, "record length %d too short for %d cigar ops and %d bases", len(d), r.nCigar, r.lSeq)
	}

	var query int
	for i := 0; i < r.nCigar; i++ {
		co := sam.CigarOp(binary.LittleEndian.Uint32(d[r.cigar+4*i:]))
		t := co.Type()
		if !t.IsValid() {
			return errors.Wrapf(ErrBadCigarOp, "operation %d has code %d", i, t)
		}
		query += co.Len() * t.Consumes().Query
	}
	if query > r.lSeq || (r.lSeq != 0 && r.nCigar != 0 && query != r.lSeq) {
		return errors.Wrapf(ErrCigarLength, "cigar consumes %d bases of %d", query, r.lSeq)
	}

	return r.buildTags()
}

// buildTags scans the aux section twice, first to count and validate
// the fields and then to fill the tag table, which is then sorted.
func (r *Record) buildTags() error {
	var n int
	err := scanAux(r.data, r.aux, func(off, _ int) { n++ })
	if err != nil {
		return err
	}
	if cap(r.tags) < n {
		r.tags = make([]tagSpan, 0, n)
	}
	r.tags = r.tags[:0]
	scanAux(r.data, r.aux, func(off, l int) {
		r.tags = append(r.tags, tagSpan{off: int32(off), n: int32(l)})
	})
	d := r.data
	sort.Slice(r.tags, func(i, j int) bool {
		return bytes.Compare(d[r.tags[i].off:r.tags[i].off+2], d[r.tags[j].off:r.tags[j].off+2]) < 0
	})
	return nil
}

// scanAux calls fn with the offset and length of each aux field in
// d[i:], returning an error if a field is invalid.
func scanAux(d []byte, i int, fn func(off, n int)) error {
	for i < len(d) {
		if len(d)-i < 3 {
			return errors.Wrapf(ErrTruncatedAux, "%d trailing bytes", len(d)-i)
		}
		typ := d[i+2]
		var n int
		switch typ {
		case 'Z', 'H':
			j := bytes.IndexByte(d[i+3:], 0)
			if j < 0 {
				return errors.Wrapf(ErrTruncatedAux, "unterminated %c field %s", typ, d[i:i+2])
			}
			fn(i, 3+j)
			i += 3 + j + 1
			continue
		case 'B':
			if len(d)-i < 8 {
				return errors.Wrapf(ErrTruncatedAux, "short array field %s", d[i:i+2])
			}
			et := d[i+3]
			if !sam.IsAuxArrayType(et) {
				return errors.Wrapf(ErrBadAuxType, "array field %s has element type %q", d[i:i+2], et)
			}
			count := int64(binary.LittleEndian.Uint32(d[i+4:]))
			size := 8 + count*int64(sam.AuxScalarSize(et))
			if size > int64(len(d)-i) {
				return errors.Wrapf(ErrTruncatedAux, "array field %s of %d elements", d[i:i+2], count)
			}
			n = int(size)
		default:
			s := sam.AuxScalarSize(typ)
			if s == 0 {
				return errors.Wrapf(ErrBadAuxType, "field %s has type %q", d[i:i+2], typ)
			}
			n = 3 + s
			if n > len(d)-i {
				return errors.Wrapf(ErrTruncatedAux, "field %s", d[i:i+2])
			}
		}
		fn(i, n)
		i += n
	}
	return nil
}

// RefID returns the reference ID of the record, -1 for unplaced records.
func (r *Record) RefID() int { return int(int32(binary.LittleEndian.Uint32(r.data[refIDOffset:]))) }

// Pos returns the zero-based leftmost position of the alignment.
func (r *Record) Pos() int { return int(int32(binary.LittleEndian.Uint32(r.data[posOffset:]))) }

// Name returns the read name.
func (r *Record) Name() string { return string(r.data[fixedSize : r.cigar-1]) }

// MapQ returns the mapping quality.
func (r *Record) MapQ() byte { return r.data[mapQOffset] }

// Bin returns the BAI bin stored in the record.
func (r *Record) Bin() uint32 { return uint32(binary.LittleEndian.Uint16(r.data[binOffset:])) }

// Flags returns the SAM flags of the record.
func (r *Record) Flags() sam.Flags { return sam.Flags(binary.LittleEndian.Uint16(r.data[flagOffset:])) }

// ReadLen returns the declared length of the read sequence.
func (r *Record) ReadLen() int { return r.lSeq }

// MateRefID returns the reference ID of the mate, -1 if not set.
func (r *Record) MateRefID() int {
	return int(int32(binary.LittleEndian.Uint32(r.data[nextRefIDOffset:])))
}

// MatePos returns the zero-based position of the mate.
func (r *Record) MatePos() int { return int(int32(binary.LittleEndian.Uint32(r.data[nextPosOffset:]))) }

// TempLen returns the observed template length.
func (r *Record) TempLen() int { return int(int32(binary.LittleEndian.Uint32(r.data[tLenOffset:]))) }

// Offset returns the virtual offset of the start of the record.
func (r *Record) Offset() bgzf.Offset { return r.off }

// NumCigarOps returns the number of CIGAR operations.
func (r *Record) NumCigarOps() int { return r.nCigar }

// CigarOp returns the ith CIGAR operation.
func (r *Record) CigarOp(i int) sam.CigarOp {
	return sam.CigarOp(binary.LittleEndian.Uint32(r.data[r.cigar+4*i:]))
}

// Cigar returns a copy of the record's CIGAR.
func (r *Record) Cigar() sam.Cigar {
	if r.nCigar == 0 {
		return nil
	}
	c := make(sam.Cigar, r.nCigar)
	for i := range c {
		c[i] = r.CigarOp(i)
	}
	return c
}

// RefSpan returns the number of reference bases consumed
// by the alignment.
func (r *Record) RefSpan() int {
	var n int
	for i := 0; i < r.nCigar; i++ {
		co := r.CigarOp(i)
		n += co.Len() * co.Type().Consumes().Reference
	}
	return n
}

// QuerySpan returns the number of query bases consumed by
// the alignment.
func (r *Record) QuerySpan() int {
	var n int
	for i := 0; i < r.nCigar; i++ {
		co := r.CigarOp(i)
		n += co.Len() * co.Type().Consumes().Query
	}
	return n
}

// End returns the zero-based exclusive end of the alignment. Records
// that consume no reference bases occupy one position.
func (r *Record) End() int {
	span := r.RefSpan()
	if span == 0 {
		span = 1
	}
	return r.Pos() + span
}

const seqLetters = "=ACMGRSVTWYHKDBN"

// Seq returns the read sequence as IUPAC letters.
func (r *Record) Seq() []byte {
	s := make([]byte, r.lSeq)
	packed := r.data[r.seq:r.qual]
	for i := range s {
		b := packed[i>>1]
		if i&1 == 0 {
			b >>= 4
		}
		s[i] = seqLetters[b&0xf]
	}
	return s
}

// Qual returns the Phred quality scores of the read. The values are not
// offset by 33 and are 0xff if the record has no qualities. The returned
// slice aliases the record and is only valid until the next call to
// File.Read.
func (r *Record) Qual() []byte { return r.data[r.qual:r.aux:r.aux] }

// NumTags returns the number of aux fields in the record.
func (r *Record) NumTags() int { return len(r.tags) }

// Tag returns the aux field with the given tag and whether it was found.
// The returned Aux aliases the record and is only valid until the next
// call to File.Read.
func (r *Record) Tag(t sam.Tag) (sam.Aux, bool) {
	i := sort.Search(len(r.tags), func(i int) bool {
		off := r.tags[i].off
		return !(sam.Tag{r.data[off], r.data[off+1]}).Less(t)
	})
	if i == len(r.tags) {
		return nil, false
	}
	a := r.auxAt(r.tags[i])
	if a.Tag() != t {
		return nil, false
	}
	return a, true
}

// Tags calls fn for each aux field in the order they are stored in
// the record until fn returns false.
func (r *Record) Tags(fn func(sam.Aux) bool) {
	scanAux(r.data, r.aux, func(off, n int) {
		if fn != nil && !fn(r.auxAt(tagSpan{off: int32(off), n: int32(n)})) {
			fn = nil
		}
	})
}

func (r *Record) auxAt(s tagSpan) sam.Aux {
	return sam.Aux(r.data[s.off : s.off+s.n : s.off+s.n])
}

// Retain adds a reference to the record.
func (r *Record) Retain() { atomic.AddInt32(&r.refs, 1) }

// Release drops a reference to the record. When the last reference is
// dropped the record's storage is returned and the record must not be
// used again.
func (r *Record) Release() {
	n := atomic.AddInt32(&r.refs, -1)
	switch {
	case n > 0:
		return
	case n < 0:
		panic("bam: record released too many times")
	}
	if r.owned {
		pool.PutBuffer(r.data)
	}
	r.data = nil
	r.tags = nil
	if r.file != nil {
		r.file.release()
		r.file = nil
	}
}

// own copies the record's data out of its File's window.
func (r *Record) own() {
	if r.owned {
		return
	}
	b := pool.GetBuffer(len(r.data))
	copy(b, r.data)
	r.data = b
	r.owned = true
}

// String returns a tab separated summary of the record.
func (r *Record) String() string {
	return fmt.Sprintf("%s\t%v\t%d\t%d\t%d\t%d\t%v\t%d\t%d\t%d",
		r.Name(), r.Flags(), r.RefID(), r.Pos(), r.End(), r.MapQ(), r.Cigar(), r.MateRefID(), r.MatePos(), r.TempLen())
}
