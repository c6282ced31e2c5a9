// Copyright ©2012 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sam

import (
	"fmt"
	"strconv"
	"strings"
)

// Cigar is an alignment described as a sequence of operations.
type Cigar []CigarOp

// String returns c in SAM text form, or "*" if c is empty.
func (c Cigar) String() string {
	if len(c) == 0 {
		return "*"
	}
	var sb strings.Builder
	var num [10]byte
	for _, op := range c {
		sb.Write(strconv.AppendInt(num[:0], int64(op.Len()), 10))
		sb.WriteString(op.Type().String())
	}
	return sb.String()
}

// Lengths returns the reference and read spans of c.
func (c Cigar) Lengths() (ref, read int) {
	for _, op := range c {
		n, con := op.Len(), op.Type().Consumes()
		ref += n * con.Reference
		read += n * con.Query
	}
	return ref, read
}

// CigarOp packs an operation length into the high 28 bits and the
// operation type into the low 4 bits.
type CigarOp uint32

const cigarTypeBits = 4

// NewCigarOp returns an operation of type t covering n positions.
func NewCigarOp(t CigarOpType, n int) CigarOp {
	return CigarOp(n)<<cigarTypeBits | CigarOp(t)
}

// Type returns the operation type.
func (co CigarOp) Type() CigarOpType { return CigarOpType(co & (1<<cigarTypeBits - 1)) }

// Len returns the number of positions covered by the operation.
func (co CigarOp) Len() int { return int(co >> cigarTypeBits) }

func (co CigarOp) String() string { return strconv.Itoa(co.Len()) + co.Type().String() }

// CigarOpType is the kind of a CigarOp. The values are the BAM
// operation codes.
type CigarOpType byte

const (
	CigarMatch       CigarOpType = iota // M
	CigarInsertion                      // I
	CigarDeletion                       // D
	CigarSkipped                        // N
	CigarSoftClipped                    // S
	CigarHardClipped                    // H
	CigarPadded                         // P
	CigarEqual                          // =
	CigarMismatch                       // X
	lastCigar
)

// opCodes holds the SAM letter of each operation, with '?' for
// unknown codes.
const opCodes = "MIDNSHP=X?"

// IsValid returns whether ct is a defined operation code.
func (ct CigarOpType) IsValid() bool { return ct < lastCigar }

// Consume describes how far an operation advances along the query
// and the reference per position.
type Consume struct {
	Query, Reference int
}

// consumes is indexed by operation code. Bit 0 marks query
// consumption and bit 1 marks reference consumption.
const consumes = "\x03\x01\x02\x02\x01\x00\x00\x03\x03"

// Consumes returns how ct advances along the query and reference.
// M, = and X consume both, I and S only the query, D and N only the
// reference. H, P and unknown codes consume neither.
func (ct CigarOpType) Consumes() Consume {
	if !ct.IsValid() {
		return Consume{}
	}
	m := int(consumes[ct])
	return Consume{Query: m & 1, Reference: m >> 1}
}

func (ct CigarOpType) String() string {
	if !ct.IsValid() {
		return opCodes[lastCigar:]
	}
	return opCodes[ct : ct+1]
}

// ParseCigar parses the SAM text form of a CIGAR. A lone "*" gives a
// nil Cigar.
func ParseCigar(b []byte) (Cigar, error) {
	if string(b) == "*" {
		return nil, nil
	}
	var (
		c      Cigar
		n      int
		digits bool
	)
	for i, v := range b {
		if '0' <= v && v <= '9' {
			n = n*10 + int(v-'0')
			if n >= 1<<(32-cigarTypeBits) {
				return nil, fmt.Errorf("sam: cigar %q: operation length overflows at %d", b, i)
			}
			digits = true
			continue
		}
		t := strings.IndexByte(opCodes[:lastCigar], v)
		if t < 0 || !digits {
			return nil, fmt.Errorf("sam: cigar %q: bad operation %q at %d", b, v, i)
		}
		c = append(c, NewCigarOp(CigarOpType(t), n))
		n, digits = 0, false
	}
	if digits {
		return nil, fmt.Errorf("sam: cigar %q: trailing length without operation", b)
	}
	return c, nil
}
