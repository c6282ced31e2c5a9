// Copyright ©2012 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sam

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/grailbio/base/log"
	"github.com/pkg/errors"

	"github.com/biogo/bamx/errs"
)

var bamMagic = [4]byte{'B', 'A', 'M', 0x1}

// DecodeBinary unmarshals a Header from the given io.Reader. The byte
// stream must be in the format described in the SAM specification,
// section 4.2: magic, header text and the binary reference table.
// The reference table is the source of truth for reference names and
// lengths; @SQ lines only attach additional metadata.
func (bh *Header) DecodeBinary(r io.Reader) error {
	var magic [4]byte
	err := readFull(r, magic[:], "magic")
	if err != nil {
		return err
	}
	if magic != bamMagic {
		return errs.E(errs.Format, "sam", "decode header", "magic", ErrBadMagic)
	}
	lText, err := readInt32(r, "text length")
	if err != nil {
		return err
	}
	if lText < 0 {
		return errs.E(errs.Data, "sam", "decode header", "text length", errors.Wrapf(ErrBadHeader, "negative length %d", lText))
	}
	text, err := readN(r, nil, int(lText), "text")
	if err != nil {
		return err
	}
	nRef, err := readInt32(r, "reference count")
	if err != nil {
		return err
	}
	if nRef < 0 {
		return errs.E(errs.Data, "sam", "decode header", "reference count", errors.Wrapf(ErrBadHeader, "negative count %d", nRef))
	}
	refs, err := readRefRecords(r, nRef)
	if err != nil {
		return err
	}
	return bh.build(text, refs)
}

func readRefRecords(r io.Reader, n int32) ([]*Reference, error) {
	var rr []*Reference
	var name []byte
	for i := 0; i < int(n); i++ {
		lName, err := readInt32(r, "reference name length")
		if err != nil {
			return nil, err
		}
		if lName < 1 {
			return nil, errs.E(errs.Data, "sam", "decode header", fmt.Sprintf("reference %d", i),
				errors.Wrapf(ErrBadHeader, "invalid name length %d", lName))
		}
		name, err = readN(r, name[:0], int(lName), "reference name")
		if err != nil {
			return nil, err
		}
		if name[lName-1] != 0 {
			return nil, errs.E(errs.Data, "sam", "decode header", fmt.Sprintf("reference %d", i),
				errors.Wrap(ErrBadHeader, "reference name not NUL terminated"))
		}
		lRef, err := readInt32(r, "reference length")
		if err != nil {
			return nil, err
		}
		if lRef < 0 {
			return nil, errs.E(errs.Data, "sam", "decode header", string(name[:lName-1]), ErrBadLength)
		}
		rr = append(rr, &Reference{id: int32(i), name: string(name[:lName-1]), lRef: lRef})
	}
	return rr, nil
}

func readInt32(r io.Reader, what string) (int32, error) {
	var b [4]byte
	err := readFull(r, b[:], what)
	return int32(binary.LittleEndian.Uint32(b[:])), err
}

// readN appends n bytes read from r to dst. Storage grows with the
// data read so a corrupt length cannot force a large allocation.
func readN(r io.Reader, dst []byte, n int, what string) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(min(n, 1<<16))
	m, err := io.CopyN(&buf, r, int64(n))
	switch {
	case err == io.EOF || (err == nil && int(m) != n):
		return nil, errs.E(errs.Format, "sam", "decode header", what, io.ErrUnexpectedEOF)
	case err != nil:
		return nil, errs.E(errs.Resource, "sam", "decode header", what, err)
	}
	return append(dst, buf.Bytes()...), nil
}

func readFull(r io.Reader, b []byte, what string) error {
	_, err := io.ReadFull(r, b)
	switch err {
	case nil:
		return nil
	case io.EOF, io.ErrUnexpectedEOF:
		return errs.E(errs.Format, "sam", "decode header", what, io.ErrUnexpectedEOF)
	default:
		return errs.E(errs.Resource, "sam", "decode header", what, err)
	}
}

// headerLine is a tokenized header line. Comment lines hold
// their text in comment and have no fields.
type headerLine struct {
	typ     Tag
	fields  []tagPair
	comment string
	line    int
}

// Tokenizer states.
const (
	expectAt = iota
	inType
	inTag
	inValue
)

// tokenizer splits header text into lines of TAG:value fields.
type tokenizer struct {
	text []byte
	pos  int
	line int
}

func (z *tokenizer) at(i int) byte {
	if i < len(z.text) {
		return z.text[i]
	}
	return 0
}

func isEOL(c byte) bool { return c == '\n' || c == '\r' || c == 0 }

// next tokenizes the next non-empty line into l. It returns io.EOF at
// the end of the text or at the first NUL byte.
func (z *tokenizer) next(l *headerLine) error {
	for z.pos < len(z.text) && (z.text[z.pos] == '\n' || z.text[z.pos] == '\r') {
		if z.text[z.pos] == '\n' {
			z.line++
		}
		z.pos++
	}
	if z.at(z.pos) == 0 {
		return io.EOF
	}
	l.fields = l.fields[:0]
	l.comment = ""
	l.line = z.line + 1

	state := expectAt
	var start int
	for ; ; z.pos++ {
		c := z.at(z.pos)
		switch state {
		case expectAt:
			if c != '@' {
				return z.syntaxError(c)
			}
			state = inType
			start = z.pos + 1

		case inType:
			if z.pos-start < 2 {
				if isEOL(c) || c == '\t' || c == ' ' {
					return z.syntaxError(c)
				}
				continue
			}
			copy(l.typ[:], z.text[start:z.pos])
			if l.typ == commentTag {
				return z.comment(l)
			}
			switch {
			case c == '\t':
				state = inTag
				start = z.pos + 1
			case isEOL(c):
				z.endLine()
				return nil
			default:
				return z.syntaxError(c)
			}

		case inTag:
			if z.pos-start < 2 {
				if isEOL(c) || c == '\t' || c == ' ' || c == ':' {
					return z.syntaxError(c)
				}
				continue
			}
			if c != ':' {
				return z.syntaxError(c)
			}
			state = inValue

		case inValue:
			if c != '\t' && !isEOL(c) {
				continue
			}
			var t Tag
			copy(t[:], z.text[start:start+2])
			l.fields = append(l.fields, tagPair{tag: t, value: string(z.text[start+3 : z.pos])})
			if c == '\t' {
				state = inTag
				start = z.pos + 1
				continue
			}
			z.endLine()
			return nil
		}
	}
}

// comment consumes the remainder of an @CO line.
func (z *tokenizer) comment(l *headerLine) error {
	c := z.at(z.pos)
	switch {
	case c == '\t':
		z.pos++
	case !isEOL(c):
		return z.syntaxError(c)
	}
	start := z.pos
	for !isEOL(z.at(z.pos)) {
		z.pos++
	}
	l.comment = string(z.text[start:z.pos])
	z.endLine()
	return nil
}

// endLine consumes the line terminator at the cursor.
func (z *tokenizer) endLine() {
	switch z.at(z.pos) {
	case '\r':
		z.pos++
		if z.at(z.pos) == '\n' {
			z.pos++
		}
	case '\n':
		z.pos++
	default:
		return
	}
	z.line++
}

func (z *tokenizer) syntaxError(c byte) error {
	line := z.line + 1
	col := z.pos - z.lineStart() + 1
	if c == 0 {
		return errs.E(errs.Data, "sam", "parse header", fmt.Sprintf("line %d", line),
			errors.Wrapf(ErrBadHeader, "unexpected end of text at column %d", col))
	}
	return errs.E(errs.Data, "sam", "parse header", fmt.Sprintf("line %d", line),
		errors.Wrapf(ErrBadHeader, "unexpected %q at column %d", c, col))
}

func (z *tokenizer) lineStart() int {
	i := z.pos
	for i > 0 && z.text[i-1] != '\n' {
		i--
	}
	return i
}

// parseText tokenizes the header text and attaches the parsed metadata
// to bh. References must already be present.
func (bh *Header) parseText(text []byte) error {
	z := tokenizer{text: text}
	var l headerLine
	for {
		err := z.next(&l)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		switch l.typ {
		case headerTag:
			err = bh.headerLine(&l)
		case refDictTag:
			err = bh.referenceLine(&l)
		case readGroupTag:
			err = bh.readGroupLine(&l)
		case programTag:
			bh.programLine(&l)
		case commentTag:
			bh.comments = append(bh.comments, l.comment)
		default:
			if log.At(log.Debug) {
				log.Debug.Printf("sam: ignoring header line %d of type @%s", l.line, l.typ)
			}
		}
		if err != nil {
			return errs.E(errs.Data, "sam", "parse header", fmt.Sprintf("line %d", l.line), err)
		}
	}
}

func (bh *Header) headerLine(l *headerLine) error {
	if bh.version != "" {
		return errors.Wrap(ErrBadHeader, "repeated @HD line")
	}
	for _, f := range l.fields {
		switch f.tag {
		case versionTag:
			bh.version = f.value
		case sortOrderTag:
			bh.sortOrder = parseSortOrder(f.value)
		case groupOrderTag:
			bh.groupOrder = parseGroupOrder(f.value)
		default:
			bh.otherTags = append(bh.otherTags, f)
		}
	}
	if bh.version == "" {
		return errors.Wrap(ErrBadHeader, "missing VN field in @HD line")
	}
	return nil
}

// referenceLine attaches @SQ metadata to the binary reference of the
// same name. Lines naming an unknown reference are ignored.
func (bh *Header) referenceLine(l *headerLine) error {
	var name string
	for _, f := range l.fields {
		if f.tag == refNameTag {
			name = f.value
			break
		}
	}
	rf := bh.RefByName(name)
	if rf == nil {
		if log.At(log.Debug) {
			log.Debug.Printf("sam: ignoring @SQ line %d for unknown reference %q", l.line, name)
		}
		return nil
	}
	sq := rf.fields()
	for _, f := range l.fields {
		switch f.tag {
		case altNameTag:
			sq.altNames = strings.Split(f.value, ",")
		case assemblyIDTag:
			sq.assembly = f.value
		case md5Tag:
			sum, err := parseMD5(f.value)
			if err != nil {
				return err
			}
			sq.md5 = sum
		case speciesTag:
			sq.species = f.value
		case uriTag:
			sq.uri = f.value
		}
	}
	rf.sq = &sq
	return nil
}

// parseMD5 parses a 32 hex digit checksum, optionally quoted.
func parseMD5(s string) (*[16]byte, error) {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if len(s) != 32 {
		return nil, errors.Wrapf(ErrBadHeader, "invalid M5 checksum %q", s)
	}
	var sum [16]byte
	_, err := hex.Decode(sum[:], []byte(s))
	if err != nil {
		return nil, errors.Wrapf(ErrBadHeader, "invalid M5 checksum %q", s)
	}
	return &sum, nil
}

func (bh *Header) readGroupLine(l *headerLine) error {
	rg := &ReadGroup{id: -1}
	var idok bool
	for _, f := range l.fields {
		if f.tag == idTag {
			idok = true
		}
		err := rg.set(f.tag, f.value)
		if err != nil {
			return errors.Wrap(ErrBadHeader, err.Error())
		}
	}
	if !idok {
		return ErrMissingID
	}
	bh.rgs = append(bh.rgs, rg)
	return nil
}

func (bh *Header) programLine(l *headerLine) {
	p := &Program{}
	for _, f := range l.fields {
		p.set(f.tag, f.value)
	}
	bh.progs = append(bh.progs, p)
}
