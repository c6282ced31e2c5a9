// Copyright ©2012 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bam

import (
	"github.com/pkg/errors"

	"github.com/biogo/bamx/sam"
)

var (
	cgDescriptorTag = sam.NewTag("GC")
	cgSequenceTag   = sam.NewTag("GS")
	cgQualityTag    = sam.NewTag("GQ")
)

// CGRead is a Complete Genomics merged read expanded to its full length.
// The overlap between the two arms of the read is duplicated and the
// CIGAR carries a zero length skip at the splice point.
type CGRead struct {
	Seq   []byte
	Qual  []byte
	Cigar sam.Cigar
}

// CGReconstruct expands a merged read described by GC, GS and GQ aux
// fields. GC holds a descriptor of the form <l>S<g>G<r>S, GS the g bases
// of the second copy of the overlap and GQ their qualities. It returns
// nil and no error if the record has none of the three fields.
//
// The second copy of the overlap is inserted after the overlap when the
// read is anchored on the left arm, l >= r, and before it otherwise.
func (r *Record) CGReconstruct() (*CGRead, error) {
	gc, okc := r.Tag(cgDescriptorTag)
	gs, oks := r.Tag(cgSequenceTag)
	gq, okq := r.Tag(cgQualityTag)
	if !okc && !oks && !okq {
		return nil, nil
	}
	if !okc || !oks || !okq {
		return nil, errors.Wrap(ErrBadCG, "incomplete GC/GS/GQ fields")
	}
	for _, a := range []sam.Aux{gc, gs, gq} {
		if a.Type() != 'Z' {
			return nil, errors.Wrapf(ErrBadCG, "%s field has type %q", a.Tag(), a.Type())
		}
	}
	left, gap, right, err := parseCGDescriptor(gc[3:])
	if err != nil {
		return nil, err
	}
	if left+gap+right != r.lSeq {
		return nil, errors.Wrapf(ErrBadCG, "descriptor %s does not cover %d bases", gc[3:], r.lSeq)
	}
	if len(gs)-3 != gap || len(gq)-3 != gap {
		return nil, errors.Wrapf(ErrBadCG, "overlap of %d bases has %d bases and %d qualities", gap, len(gs)-3, len(gq)-3)
	}

	anchorLeft := left >= right
	splice := left
	if anchorLeft {
		splice += gap
	}

	seq := r.Seq()
	cg := &CGRead{Seq: make([]byte, 0, r.lSeq+gap)}
	cg.Seq = append(cg.Seq, seq[:splice]...)
	cg.Seq = append(cg.Seq, gs[3:]...)
	cg.Seq = append(cg.Seq, seq[splice:]...)

	qual := r.Qual()
	cg.Qual = make([]byte, 0, r.lSeq+gap)
	cg.Qual = append(cg.Qual, qual[:splice]...)
	for _, q := range gq[3:] {
		cg.Qual = append(cg.Qual, q-33)
	}
	cg.Qual = append(cg.Qual, qual[splice:]...)

	if r.nCigar != 0 {
		cg.Cigar, err = spliceCigar(r.Cigar(), splice, gap, anchorLeft)
		if err != nil {
			return nil, err
		}
	}
	return cg, nil
}

// parseCGDescriptor parses a <l>S<g>G<r>S descriptor.
func parseCGDescriptor(d []byte) (left, gap, right int, err error) {
	var v [3]int
	ops := [3]byte{'S', 'G', 'S'}
	i := 0
	for k := range v {
		start := i
		for ; i < len(d) && '0' <= d[i] && d[i] <= '9'; i++ {
			v[k] = v[k]*10 + int(d[i]-'0')
			if v[k] > 1<<28 {
				return 0, 0, 0, errors.Wrapf(ErrBadCG, "descriptor %q out of range", d)
			}
		}
		if i == start || i == len(d) || d[i] != ops[k] {
			return 0, 0, 0, errors.Wrapf(ErrBadCG, "malformed descriptor %q", d)
		}
		i++
	}
	if i != len(d) {
		return 0, 0, 0, errors.Wrapf(ErrBadCG, "malformed descriptor %q", d)
	}
	return v[0], v[1], v[2], nil
}

// spliceCigar returns a copy of c with a zero length skip inserted at
// query position q and the nearest query consuming operation on the
// anchored side of the skip lengthened by n.
func spliceCigar(c sam.Cigar, q, n int, anchorLeft bool) (sam.Cigar, error) {
	var qs, i int
	for ; i < len(c); i++ {
		l := c[i].Len() * c[i].Type().Consumes().Query
		if l > 0 && qs+l > q {
			break
		}
		qs += l
	}
	if i == len(c) && qs != q {
		return nil, errors.Wrapf(ErrBadCG, "splice point %d beyond cigar %v", q, c)
	}

	skip := sam.NewCigarOp(sam.CigarSkipped, 0)
	out := make(sam.Cigar, 0, len(c)+2)
	out = append(out, c[:i]...)
	at := len(out)
	if off := q - qs; off > 0 {
		t := c[i].Type()
		out = append(out, sam.NewCigarOp(t, off), skip, sam.NewCigarOp(t, c[i].Len()-off))
		out = append(out, c[i+1:]...)
		at++
	} else {
		out = append(out, skip)
		out = append(out, c[i:]...)
	}

	j := -1
	if anchorLeft {
		for k := at + 1; k < len(out); k++ {
			if out[k].Type().Consumes().Query != 0 {
				j = k
				break
			}
		}
	} else {
		for k := at - 1; k >= 0; k-- {
			if out[k].Type().Consumes().Query != 0 {
				j = k
				break
			}
		}
	}
	if j < 0 {
		return nil, errors.Wrapf(ErrBadCG, "no query operation to widen in %v", c)
	}
	out[j] = sam.NewCigarOp(out[j].Type(), out[j].Len()+n)
	return out, nil
}
