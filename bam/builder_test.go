// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bam

import (
	"bytes"
	"encoding/binary"
	"math"
	"sort"
	"strings"

	"github.com/biogo/bamx/bgzf"
	"github.com/biogo/bamx/internal/bgzftest"
	"github.com/biogo/bamx/sam"
)

type testRef struct {
	name string
	len  int32
}

// testRec describes a record to encode. A nil qual is encoded as
// missing qualities.
type testRec struct {
	ref, pos int
	name     string
	flags    sam.Flags
	mapQ     byte
	cigar    string
	seq      string
	qual     []byte
	mateRef  int
	matePos  int
	tLen     int
	aux      [][]byte

	// rawCigar, if not nil, replaces cigar.
	rawCigar []uint32

	// binDelta is added to the computed bin.
	binDelta uint16
}

func (r testRec) parsedCigar() sam.Cigar {
	if r.cigar == "" {
		return nil
	}
	c, err := sam.ParseCigar([]byte(r.cigar))
	if err != nil {
		panic(err)
	}
	return c
}

// end returns the end of the record on the reference.
func (r testRec) end() int {
	ref, _ := r.parsedCigar().Lengths()
	if ref == 0 {
		ref = 1
	}
	return r.pos + ref
}

func (r testRec) encode() []byte {
	var b bytes.Buffer
	put := func(v interface{}) { binary.Write(&b, binary.LittleEndian, v) }

	cigar := r.rawCigar
	if cigar == nil {
		for _, co := range r.parsedCigar() {
			cigar = append(cigar, uint32(co))
		}
	}
	bin := uint16(4680)
	if r.ref >= 0 {
		bin = uint16(reg2bin(r.pos, r.end()))
	}
	bin += r.binDelta
	put(int32(r.ref))
	put(int32(r.pos))
	put(uint8(len(r.name) + 1))
	put(r.mapQ)
	put(bin)
	put(uint16(len(cigar)))
	put(uint16(r.flags))
	put(int32(len(r.seq)))
	put(int32(r.mateRef))
	put(int32(r.matePos))
	put(int32(r.tLen))
	b.WriteString(r.name)
	b.WriteByte(0)
	for _, co := range cigar {
		put(co)
	}
	packed := make([]byte, (len(r.seq)+1)/2)
	for i := 0; i < len(r.seq); i++ {
		code := byte(strings.IndexByte(seqLetters, r.seq[i]))
		if i&1 == 0 {
			code <<= 4
		}
		packed[i/2] |= code
	}
	b.Write(packed)
	if r.qual == nil {
		b.Write(bytes.Repeat([]byte{0xff}, len(r.seq)))
	} else {
		b.Write(r.qual)
	}
	for _, a := range r.aux {
		b.Write(a)
	}

	out := make([]byte, 4, 4+b.Len())
	binary.LittleEndian.PutUint32(out, uint32(b.Len()))
	return append(out, b.Bytes()...)
}

func auxZ(tag, v string) []byte {
	return append(append([]byte(tag+"Z"), v...), 0)
}

func auxA(tag string, v byte) []byte { return []byte{tag[0], tag[1], 'A', v} }

func auxC(tag string, v uint8) []byte { return []byte{tag[0], tag[1], 'C', v} }

func auxI(tag string, v int32) []byte {
	b := []byte{tag[0], tag[1], 'i', 0, 0, 0, 0}
	binary.LittleEndian.PutUint32(b[3:], uint32(v))
	return b
}

func auxF(tag string, v float32) []byte {
	b := []byte{tag[0], tag[1], 'f', 0, 0, 0, 0}
	binary.LittleEndian.PutUint32(b[3:], math.Float32bits(v))
	return b
}

func auxBs(tag string, v ...int16) []byte {
	b := []byte{tag[0], tag[1], 'B', 's', 0, 0, 0, 0}
	binary.LittleEndian.PutUint32(b[4:], uint32(len(v)))
	for _, e := range v {
		b = binary.LittleEndian.AppendUint16(b, uint16(e))
	}
	return b
}

func binaryHeader(text string, refs []testRef) []byte {
	var buf bytes.Buffer
	buf.Write(bamMagic[:])
	binary.Write(&buf, binary.LittleEndian, int32(len(text)))
	buf.WriteString(text)
	binary.Write(&buf, binary.LittleEndian, int32(len(refs)))
	for _, r := range refs {
		binary.Write(&buf, binary.LittleEndian, int32(len(r.name)+1))
		buf.WriteString(r.name)
		buf.WriteByte(0)
		binary.Write(&buf, binary.LittleEndian, r.len)
	}
	return buf.Bytes()
}

// testBAM is an encoded BAM file with the virtual offsets of its records.
type testBAM struct {
	data []byte
	recs []testRec
	offs []bgzf.Offset

	// end is the virtual offset of the end of the record stream.
	end bgzf.Offset
}

// buildBAM encodes the header and records into blocks of at most
// blockSize decompressed bytes.
func buildBAM(text string, refs []testRef, recs []testRec, blockSize int) testBAM {
	stream := binaryHeader(text, refs)
	starts := make([]int, len(recs))
	for i, r := range recs {
		starts[i] = len(stream)
		stream = append(stream, r.encode()...)
	}
	data, bases := bgzftest.Compress(stream, blockSize)
	at := func(u int) bgzf.Offset {
		i := u / blockSize
		if i == len(bases) {
			return bgzf.Offset{File: int64(len(data) - len(bgzftest.EOF))}
		}
		return bgzf.Offset{File: bases[i], Block: uint16(u % blockSize)}
	}
	b := testBAM{data: data, recs: recs, end: at(len(stream))}
	for _, u := range starts {
		b.offs = append(b.offs, at(u))
	}
	return b
}

func (b testBAM) file() (*File, error) {
	return NewFile(bytes.NewReader(b.data), int64(len(b.data)))
}

// testIndex is a BAI index under construction.
type testIndex struct {
	refs     []testIndexRef
	unplaced uint64
	noTail   bool
}

type testIndexRef struct {
	bins   map[uint32][]bgzf.Chunk
	linear []bgzf.Offset
	stats  *ReferenceStats
}

func newTestIndex(nRefs int) *testIndex {
	idx := &testIndex{refs: make([]testIndexRef, nRefs)}
	for i := range idx.refs {
		idx.refs[i].bins = make(map[uint32][]bgzf.Chunk)
	}
	return idx
}

func (idx *testIndex) addChunk(ref int, bin uint32, c bgzf.Chunk) {
	r := &idx.refs[ref]
	cs := r.bins[bin]
	if n := len(cs); n != 0 && cs[n-1].End == c.Begin {
		cs[n-1].End = c.End
	} else {
		cs = append(cs, c)
	}
	r.bins[bin] = cs
}

func (idx *testIndex) setLinear(ref, k int, o bgzf.Offset) {
	r := &idx.refs[ref]
	for len(r.linear) <= k {
		r.linear = append(r.linear, bgzf.Offset{})
	}
	if r.linear[k].IsZero() || o.Less(r.linear[k]) {
		r.linear[k] = o
	}
}

// indexOf builds the index of b in the manner of samtools.
func indexOf(b testBAM, nRefs int) *testIndex {
	idx := newTestIndex(nRefs)
	for i, r := range b.recs {
		next := b.end
		if i+1 < len(b.offs) {
			next = b.offs[i+1]
		}
		if r.ref < 0 {
			idx.unplaced++
			continue
		}
		c := bgzf.Chunk{Begin: b.offs[i], End: next}
		idx.addChunk(r.ref, reg2bin(r.pos, r.end()), c)
		for k := r.pos >> intervalShift; k <= (r.end()-1)>>intervalShift; k++ {
			idx.setLinear(r.ref, k, b.offs[i])
		}
		ref := &idx.refs[r.ref]
		if ref.stats == nil {
			ref.stats = &ReferenceStats{Chunk: c}
		}
		ref.stats.Chunk.End = next
		if r.flags&sam.Unmapped != 0 {
			ref.stats.Unmapped++
		} else {
			ref.stats.Mapped++
		}
	}
	for i := range idx.refs {
		lin := idx.refs[i].linear
		for k := 1; k < len(lin); k++ {
			if lin[k].IsZero() {
				lin[k] = lin[k-1]
			}
		}
	}
	return idx
}

func (idx *testIndex) encode() []byte {
	var buf bytes.Buffer
	put := func(v interface{}) { binary.Write(&buf, binary.LittleEndian, v) }
	buf.Write(baiMagic[:])
	put(int32(len(idx.refs)))
	for _, r := range idx.refs {
		bins := make([]uint32, 0, len(r.bins))
		for bin := range r.bins {
			bins = append(bins, bin)
		}
		sort.Slice(bins, func(i, j int) bool { return bins[i] < bins[j] })
		n := len(bins)
		if r.stats != nil {
			n++
		}
		put(int32(n))
		for _, bin := range bins {
			put(bin)
			put(int32(len(r.bins[bin])))
			for _, c := range r.bins[bin] {
				put(c.Begin.Virtual())
				put(c.End.Virtual())
			}
		}
		if r.stats != nil {
			put(uint32(statsBin))
			put(int32(2))
			put(r.stats.Chunk.Begin.Virtual())
			put(r.stats.Chunk.End.Virtual())
			put(r.stats.Mapped)
			put(r.stats.Unmapped)
		}
		put(int32(len(r.linear)))
		for _, o := range r.linear {
			put(o.Virtual())
		}
	}
	if !idx.noTail {
		put(idx.unplaced)
	}
	return buf.Bytes()
}
