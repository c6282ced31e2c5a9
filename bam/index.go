// Copyright ©2014 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bam

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/grailbio/base/log"
	"github.com/pkg/errors"
	"github.com/willf/bitset"

	"github.com/biogo/bamx/bgzf"
	"github.com/biogo/bamx/errs"
	"github.com/biogo/bamx/sam"
)

var baiMagic = [4]byte{'B', 'A', 'I', 0x1}

// Index is a BAI index reduced to a dense table of 16kb intervals per
// reference. Each populated interval holds the smallest virtual offset
// of any record whose extent may reach that interval.
type Index struct {
	refs []refIndex

	unplaced    uint64
	hasUnplaced bool
}

type refIndex struct {
	intervals []bgzf.Offset
	populated *bitset.BitSet
	stats     *ReferenceStats
	bins      int
}

// ReferenceStats holds the mapping summary stored in the index
// pseudo-bin of a reference.
type ReferenceStats struct {
	// Chunk is the span of the file holding
	// the reference's records.
	Chunk bgzf.Chunk

	// Mapped and Unmapped are the counts of
	// placed records with and without the
	// unmapped flag.
	Mapped, Unmapped uint64
}

// ReadIndex reads a BAI index from r. When h is not nil the number of
// references must match the header and each reference's interval table
// is sized to cover its length.
func ReadIndex(r io.Reader, h *sam.Header) (*Index, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, errs.E(errs.Resource, "bam", "read index", "", err)
	}
	return parseIndex(b, h)
}

// parseIndex builds an Index from a BAI image. The first pass sizes
// the interval tables so that a single allocation holds them all, the
// second fills them from the linear index and the bin chunks.
func parseIndex(b []byte, h *sam.Header) (*Index, error) {
	var sizes []int
	var total int
	unplaced, hasUnplaced, err := scanIndex(b, func(id int, rr *rawRef) error {
		n := rr.numIntervals()
		if h != nil && id < h.NumRefs() {
			if m := (h.Ref(id).Len() + intervalWidth - 1) >> intervalShift; m > n {
				n = m
			}
		}
		sizes = append(sizes, n)
		total += n
		return nil
	})
	if err != nil {
		return nil, err
	}
	if h != nil && len(sizes) != h.NumRefs() {
		return nil, errs.E(errs.Data, "bam", "read index", "",
			errors.Wrapf(ErrBadIndex, "index has %d references, header has %d", len(sizes), h.NumRefs()))
	}

	idx := &Index{
		refs:        make([]refIndex, len(sizes)),
		unplaced:    unplaced,
		hasUnplaced: hasUnplaced,
	}
	flat := make([]bgzf.Offset, total)
	var linear []bgzf.Offset
	_, _, err = scanIndex(b, func(id int, rr *rawRef) error {
		n := sizes[id]
		ri := &idx.refs[id]
		ri.intervals = flat[:n:n]
		flat = flat[n:]
		ri.stats = rr.stats
		ri.bins = len(rr.bins)

		linear = linear[:0]
		for k := 0; k < rr.numIntervals(); k++ {
			linear = append(linear, rr.interval(k))
		}
		for len(linear) < n {
			linear = append(linear, bgzf.Offset{})
		}
		copy(ri.intervals, linear)

		for _, bn := range rr.bins {
			first := binFirstInterval(bn.bin)
			if first >= n {
				if log.At(log.Debug) {
					log.Debug.Printf("bam: bin %d of reference %d lies beyond its %d intervals", bn.bin, id, n)
				}
				continue
			}
			lim := first + binIntervalCount(bn.bin)
			if lim > n {
				lim = n
			}
			for i := 0; i < bn.numChunks(); i++ {
				c := bn.chunk(i)
				last := endInterval(linear, first, lim, c.End)
				for k := first; k <= last; k++ {
					lower(&ri.intervals[k], c.Begin)
				}
			}
		}

		ri.populated = bitset.New(uint(n))
		for k, o := range ri.intervals {
			if !o.IsZero() {
				ri.populated.Set(uint(k))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return idx, nil
}

// endInterval returns the last interval in [first,lim) that a chunk
// ending at end may reach. This is the last interval whose linear
// offset lies before end, or first if there is none.
func endInterval(linear []bgzf.Offset, first, lim int, end bgzf.Offset) int {
	last := first
	for k := first + 1; k < lim; k++ {
		if linear[k].IsZero() {
			continue
		}
		if !linear[k].Less(end) {
			break
		}
		last = k
	}
	return last
}

// lower sets *dst to o if *dst is unset or after o.
func lower(dst *bgzf.Offset, o bgzf.Offset) {
	if dst.IsZero() || o.Less(*dst) {
		*dst = o
	}
}

// NumRefs returns the number of references in the index.
func (i *Index) NumRefs() int { return len(i.refs) }

// IsIndexed returns whether the reference with the given ID has any
// populated intervals.
func (i *Index) IsIndexed(id int) bool {
	return id >= 0 && id < len(i.refs) && i.refs[id].populated.Any()
}

// NumIntervals returns the number of 16kb intervals held for the
// reference with the given ID.
func (i *Index) NumIntervals(id int) int {
	if id < 0 || id >= len(i.refs) {
		return 0
	}
	return len(i.refs[id].intervals)
}

// Interval returns the smallest offset of a record that may reach the
// kth interval of reference id. The zero Offset is returned for an
// unpopulated interval.
func (i *Index) Interval(id, k int) bgzf.Offset {
	if id < 0 || id >= len(i.refs) || k < 0 || k >= len(i.refs[id].intervals) {
		return bgzf.Offset{}
	}
	return i.refs[id].intervals[k]
}

// nextPopulated returns the first populated interval of reference id
// at or after k.
func (i *Index) nextPopulated(id, k int) (int, bool) {
	n, ok := i.refs[id].populated.NextSet(uint(k))
	return int(n), ok
}

// prevPopulated returns the last populated interval of reference id
// before k.
func (i *Index) prevPopulated(id, k int) (int, bool) {
	p := i.refs[id].populated
	for k--; k >= 0; k-- {
		if p.Test(uint(k)) {
			return k, true
		}
	}
	return 0, false
}

// NumBins returns the number of bins recorded for the reference with
// the given ID, excluding the statistics pseudo-bin.
func (i *Index) NumBins(id int) int {
	if id < 0 || id >= len(i.refs) {
		return 0
	}
	return i.refs[id].bins
}

// ReferenceStats returns the index statistics for the reference with
// the given ID and whether they were present.
func (i *Index) ReferenceStats(id int) (ReferenceStats, bool) {
	if id < 0 || id >= len(i.refs) || i.refs[id].stats == nil {
		return ReferenceStats{}, false
	}
	return *i.refs[id].stats, true
}

// Unplaced returns the number of unplaced unmapped records and whether
// the count was present in the index.
func (i *Index) Unplaced() (uint64, bool) { return i.unplaced, i.hasUnplaced }

// rawRef is a view of the serialized index data for one reference.
type rawRef struct {
	bins   []rawBin
	stats  *ReferenceStats
	linear []byte
}

func (r *rawRef) numIntervals() int { return len(r.linear) / 8 }

func (r *rawRef) interval(k int) bgzf.Offset {
	return bgzf.MakeOffset(binary.LittleEndian.Uint64(r.linear[8*k:]))
}

// rawBin is a view of a serialized bin.
type rawBin struct {
	bin    uint32
	chunks []byte
}

func (b rawBin) numChunks() int { return len(b.chunks) / 16 }

func (b rawBin) chunk(i int) bgzf.Chunk {
	return bgzf.Chunk{
		Begin: bgzf.MakeOffset(binary.LittleEndian.Uint64(b.chunks[16*i:])),
		End:   bgzf.MakeOffset(binary.LittleEndian.Uint64(b.chunks[16*i+8:])),
	}
}

// scanIndex walks the references of a BAI image, calling fn for each.
// The rawRef passed to fn is reused between calls. It returns the
// optional trailing count of unplaced records.
func scanIndex(b []byte, fn func(id int, rr *rawRef) error) (unplaced uint64, ok bool, err error) {
	c := indexCursor{b: b}
	magic, err := c.bytes(4, "magic")
	if err != nil {
		return 0, false, err
	}
	if string(magic) != string(baiMagic[:]) {
		return 0, false, errs.E(errs.Format, "bam", "read index", "magic", errors.Wrapf(ErrBadIndex, "bad magic %q", magic))
	}
	nRef, err := c.count("reference count")
	if err != nil {
		return 0, false, err
	}
	var rr rawRef
	for id := 0; id < nRef; id++ {
		err = c.reference(id, &rr)
		if err != nil {
			return 0, false, err
		}
		err = fn(id, &rr)
		if err != nil {
			return 0, false, err
		}
	}
	if len(c.b)-c.off >= 8 {
		unplaced = binary.LittleEndian.Uint64(c.b[c.off:])
		ok = true
		c.off += 8
	}
	if c.off != len(c.b) && log.At(log.Debug) {
		log.Debug.Printf("bam: ignoring %d trailing index bytes", len(c.b)-c.off)
	}
	return unplaced, ok, nil
}

// indexCursor reads little-endian fields from a BAI image.
type indexCursor struct {
	b   []byte
	off int
}

func (c *indexCursor) reference(id int, rr *rawRef) error {
	what := fmt.Sprintf("reference %d", id)
	nBin, err := c.count(what)
	if err != nil {
		return err
	}
	rr.bins = rr.bins[:0]
	rr.stats = nil
	for i := 0; i < nBin; i++ {
		hdr, err := c.bytes(8, what)
		if err != nil {
			return err
		}
		bin := binary.LittleEndian.Uint32(hdr)
		nChunk := int32(binary.LittleEndian.Uint32(hdr[4:]))
		if nChunk < 0 {
			return c.dataError(what, "bin %d has negative chunk count %d", bin, nChunk)
		}
		chunks, err := c.bytes(16*int(nChunk), what)
		if err != nil {
			return err
		}
		switch {
		case bin == statsBin:
			if nChunk != 2 {
				return c.dataError(what, "statistics bin has %d chunks", nChunk)
			}
			sb := rawBin{bin: bin, chunks: chunks}
			rr.stats = &ReferenceStats{
				Chunk:    sb.chunk(0),
				Mapped:   binary.LittleEndian.Uint64(chunks[16:]),
				Unmapped: binary.LittleEndian.Uint64(chunks[24:]),
			}
		case bin >= maxBin:
			return c.dataError(what, "invalid bin number %d", bin)
		default:
			rr.bins = append(rr.bins, rawBin{bin: bin, chunks: chunks})
		}
	}
	nIntv, err := c.count(what)
	if err != nil {
		return err
	}
	rr.linear, err = c.bytes(8*nIntv, what)
	return err
}

func (c *indexCursor) count(what string) (int, error) {
	b, err := c.bytes(4, what)
	if err != nil {
		return 0, err
	}
	n := int32(binary.LittleEndian.Uint32(b))
	if n < 0 {
		return 0, c.dataError(what, "negative count %d", n)
	}
	return int(n), nil
}

func (c *indexCursor) bytes(n int, what string) ([]byte, error) {
	if n < 0 || n > len(c.b)-c.off {
		return nil, errs.E(errs.Format, "bam", "read index", what, io.ErrUnexpectedEOF)
	}
	b := c.b[c.off : c.off+n : c.off+n]
	c.off += n
	return b, nil
}

func (c *indexCursor) dataError(what, format string, args ...interface{}) error {
	return errs.E(errs.Data, "bam", "read index", what, errors.Wrapf(ErrBadIndex, format, args...))
}
