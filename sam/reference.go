// Copyright ©2012 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sam

import (
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
)

// Reference is a reference sequence. The name and length come from the
// binary reference table. Fields of a matching @SQ line are held in
// sq when such a line is present.
type Reference struct {
	id   int32
	name string
	lRef int32
	sq   *sqFields
}

// sqFields holds the optional @SQ fields of a reference.
type sqFields struct {
	md5      *[16]byte
	assembly string
	species  string
	uri      string
	altNames []string
}

// NewReference returns a Reference of the given name and length. The
// length must be in [0, 1<<31).
func NewReference(name string, length int) (*Reference, error) {
	if !validLen(length) {
		return nil, ErrBadLength
	}
	if name == "" {
		return nil, errors.New("sam: no name provided")
	}
	return &Reference{id: -1, name: name, lRef: int32(length)}, nil
}

// fields returns the @SQ fields of r, which may be empty.
func (r *Reference) fields() sqFields {
	if r == nil || r.sq == nil {
		return sqFields{}
	}
	return *r.sq
}

// ID returns the header ID of the Reference, or -1 for nil.
func (r *Reference) ID() int {
	if r == nil {
		return -1
	}
	return int(r.id)
}

// Name returns the reference name, or "*" for nil.
func (r *Reference) Name() string {
	if r == nil {
		return "*"
	}
	return r.name
}

// Len returns the reference length, or -1 for nil.
func (r *Reference) Len() int {
	if r == nil {
		return -1
	}
	return int(r.lRef)
}

func (r *Reference) AssemblyID() string { return r.fields().assembly }
func (r *Reference) Species() string    { return r.fields().species }
func (r *Reference) URI() string        { return r.fields().uri }
func (r *Reference) AltNames() []string { return r.fields().altNames }

// MD5 returns the 16 byte checksum of the sequence, or nil. The
// returned slice must not be altered.
func (r *Reference) MD5() []byte {
	sum := r.fields().md5
	if sum == nil {
		return nil
	}
	return sum[:]
}

// String returns the @SQ line for the Reference.
func (r *Reference) String() string {
	var b strings.Builder
	b.WriteString("@SQ\tSN:")
	b.WriteString(r.name)
	b.WriteString("\tLN:")
	b.WriteString(strconv.Itoa(int(r.lRef)))
	sq := r.fields()
	field := func(tag, v string) {
		if v != "" {
			b.WriteString("\t" + tag + ":" + v)
		}
	}
	field("AN", strings.Join(sq.altNames, ","))
	field("AS", sq.assembly)
	if sq.md5 != nil {
		field("M5", hex.EncodeToString(sq.md5[:]))
	}
	field("SP", sq.species)
	field("UR", sq.uri)
	return b.String()
}
