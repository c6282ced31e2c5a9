// Copyright ©2012 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sam

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// An Aux represents an auxiliary data field from an alignment record.
// It holds the two byte tag, the type byte and the payload as stored in
// the BAM encoding. The terminating NUL of Z and H fields is not included.
//
// An Aux returned by a bam.Record aliases the record's data and is
// only valid while the record is.
type Aux []byte

var auxKind = [256]byte{
	'A': 'A',
	'c': 'i', 'C': 'i',
	's': 'i', 'S': 'i',
	'i': 'i', 'I': 'i',
	'f': 'f', 'd': 'f',
	'Z': 'Z',
	'H': 'H',
	'B': 'B',
}

// auxSize is the payload size of the scalar aux types.
var auxSize = [256]int{
	'A': 1,
	'c': 1, 'C': 1,
	's': 2, 'S': 2,
	'i': 4, 'I': 4,
	'f': 4, 'd': 8,
}

// AuxScalarSize returns the payload size in bytes of a scalar aux field
// or array element of the given type. It returns zero for the Z, H and B
// types and for unknown types.
func AuxScalarSize(typ byte) int { return auxSize[typ] }

// IsAuxArrayType returns whether typ is a valid element type of a B field.
func IsAuxArrayType(typ byte) bool {
	switch typ {
	case 'c', 'C', 's', 'S', 'i', 'I', 'f':
		return true
	}
	return false
}

// Tag returns the Tag representation of the Aux tag ID.
func (a Aux) Tag() Tag { var t Tag; copy(t[:], a[:2]); return t }

// Type returns a byte corresponding to the type of the auxiliary tag.
// Returned values are in {'A', 'c', 'C', 's', 'S', 'i', 'I', 'f', 'd', 'Z', 'H', 'B'}.
func (a Aux) Type() byte { return a[2] }

// Kind returns a byte corresponding to the kind of the auxiliary tag.
// Returned values are in {'A', 'i', 'f', 'Z', 'H', 'B'}.
func (a Aux) Kind() byte { return auxKind[a[2]] }

// Len returns the number of elements of a B field, or 1 for
// other types.
func (a Aux) Len() int {
	if a.Type() != 'B' {
		return 1
	}
	return int(binary.LittleEndian.Uint32(a[4:8]))
}

// Value returns v containing the value of the auxiliary tag. Integer
// types are returned with their stored width, B arrays as a slice of
// the element type.
func (a Aux) Value() interface{} {
	switch t := a.Type(); t {
	case 'A':
		return a[3]
	case 'c':
		return int8(a[3])
	case 'C':
		return uint8(a[3])
	case 's':
		return int16(binary.LittleEndian.Uint16(a[3:5]))
	case 'S':
		return binary.LittleEndian.Uint16(a[3:5])
	case 'i':
		return int32(binary.LittleEndian.Uint32(a[3:7]))
	case 'I':
		return binary.LittleEndian.Uint32(a[3:7])
	case 'f':
		return math.Float32frombits(binary.LittleEndian.Uint32(a[3:7]))
	case 'd':
		return math.Float64frombits(binary.LittleEndian.Uint64(a[3:11]))
	case 'Z':
		return string(a[3:])
	case 'H':
		return []byte(a[3:])
	case 'B':
		return a.array()
	default:
		return fmt.Errorf("%%!(UNKNOWN type=%c)", t)
	}
}

func (a Aux) array() interface{} {
	n := a.Len()
	e := a[8:]
	switch t := a[3]; t {
	case 'c':
		v := make([]int8, n)
		for i := range v {
			v[i] = int8(e[i])
		}
		return v
	case 'C':
		return []uint8(e[:n])
	case 's':
		v := make([]int16, n)
		for i := range v {
			v[i] = int16(binary.LittleEndian.Uint16(e[2*i:]))
		}
		return v
	case 'S':
		v := make([]uint16, n)
		for i := range v {
			v[i] = binary.LittleEndian.Uint16(e[2*i:])
		}
		return v
	case 'i':
		v := make([]int32, n)
		for i := range v {
			v[i] = int32(binary.LittleEndian.Uint32(e[4*i:]))
		}
		return v
	case 'I':
		v := make([]uint32, n)
		for i := range v {
			v[i] = binary.LittleEndian.Uint32(e[4*i:])
		}
		return v
	case 'f':
		v := make([]float32, n)
		for i := range v {
			v[i] = math.Float32frombits(binary.LittleEndian.Uint32(e[4*i:]))
		}
		return v
	default:
		return fmt.Errorf("%%!(UNKNOWN ARRAY type=%c)", t)
	}
}

// String returns the SAM text representation of an Aux field.
func (a Aux) String() string {
	switch a.Type() {
	case 'A':
		return fmt.Sprintf("%s:A:%c", []byte(a[:2]), a[3])
	case 'H':
		return fmt.Sprintf("%s:H:%s", []byte(a[:2]), []byte(a[3:]))
	case 'd':
		return fmt.Sprintf("%s:f:%v", []byte(a[:2]), a.Value())
	case 'B':
		var b strings.Builder
		fmt.Fprintf(&b, "%s:B:%c", []byte(a[:2]), a[3])
		switch v := a.array().(type) {
		case []int8:
			appendNumbers(&b, v)
		case []uint8:
			appendNumbers(&b, v)
		case []int16:
			appendNumbers(&b, v)
		case []uint16:
			appendNumbers(&b, v)
		case []int32:
			appendNumbers(&b, v)
		case []uint32:
			appendNumbers(&b, v)
		case []float32:
			appendNumbers(&b, v)
		}
		return b.String()
	}
	return fmt.Sprintf("%s:%c:%v", []byte(a[:2]), a.Kind(), a.Value())
}

type number interface {
	int8 | uint8 | int16 | uint16 | int32 | uint32 | float32
}

func appendNumbers[T number](b *strings.Builder, v []T) {
	for _, e := range v {
		fmt.Fprintf(b, ",%v", e)
	}
}
