// Copyright ©2013 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sam

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/kortschak/utter"
	"gopkg.in/check.v1"

	"github.com/biogo/bamx/errs"
)

func Test(t *testing.T) { check.TestingT(t) }

type S struct{}

var _ = check.Suite(&S{})

type ref struct {
	name string
	len  int32
}

// binaryHeader returns a BAM header encoding of the given text and references.
func binaryHeader(text string, refs []ref) []byte {
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

var testRefs = []ref{{"chr2", 243199373}, {"chr1", 249250621}, {"chrM", 16571}}

const testText = "@HD\tVN:1.6\tSO:coordinate\tXX:other\n" +
	"@SQ\tSN:chr1\tLN:249250621\tAS:GRCh37\tM5:1b22b98cdeb4a9304cb5d48026a85128\tSP:Homo sapiens\n" +
	"@SQ\tSN:chrM\tLN:16571\tM5:\"c68f52674c9fb33aef52dcf399755519\"\tUR:file:/ref/chrM.fa\tAN:MT,M\n" +
	"@SQ\tSN:chrUn\tLN:1000\n" +
	"@RG\tID:lane2\tSM:NA12878\tLB:lib1\tPL:ILLUMINA\tPI:350\tDT:2014-08-13T16:02:01Z\n" +
	"@RG\tID:lane1\tSM:NA12878\tLB:lib1\tPL:ILLUMINA\tZZ:extra\n" +
	"@PG\tID:bwa\tPN:bwa\tVN:0.7.17\tCL:bwa mem ref.fa r1.fq r2.fq\n" +
	"@CO\tfree text: with\ttabs\n"

func decode(b []byte) (*Header, error) {
	h := &Header{}
	err := h.DecodeBinary(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (s *S) TestDecodeBinary(c *check.C) {
	h, err := decode(binaryHeader(testText, testRefs))
	c.Assert(err, check.Equals, nil)

	c.Check(h.Version(), check.Equals, "1.6")
	c.Check(h.SortOrder(), check.Equals, Coordinate)
	c.Check(h.Get(NewTag("XX")), check.Equals, "other")
	c.Check(string(h.Text()), check.Equals, testText)

	c.Assert(h.NumRefs(), check.Equals, 3)
	for i, r := range testRefs {
		got := h.Ref(i)
		c.Check(got.ID(), check.Equals, i)
		c.Check(got.Name(), check.Equals, r.name)
		c.Check(got.Len(), check.Equals, int(r.len))
		c.Check(h.RefByName(r.name), check.Equals, got)
	}
	c.Check(h.Ref(3), check.Equals, (*Reference)(nil))
	c.Check(h.Ref(-1), check.Equals, (*Reference)(nil))
	c.Check(h.RefByName("chrUn"), check.Equals, (*Reference)(nil))

	chr1 := h.RefByName("chr1")
	c.Check(chr1.AssemblyID(), check.Equals, "GRCh37")
	c.Check(chr1.Species(), check.Equals, "Homo sapiens")
	c.Check(chr1.MD5(), check.DeepEquals, []byte{
		0x1b, 0x22, 0xb9, 0x8c, 0xde, 0xb4, 0xa9, 0x30,
		0x4c, 0xb5, 0xd4, 0x80, 0x26, 0xa8, 0x51, 0x28,
	})
	chrM := h.RefByName("chrM")
	c.Check(chrM.MD5(), check.Not(check.IsNil))
	c.Check(chrM.URI(), check.Equals, "file:/ref/chrM.fa")
	c.Check(chrM.AltNames(), check.DeepEquals, []string{"MT", "M"})
	c.Check(h.RefByName("chr2").MD5(), check.IsNil)

	c.Assert(h.NumReadGroups(), check.Equals, 2)
	c.Check(h.RGs()[0].Name(), check.Equals, "lane1")
	c.Check(h.RGs()[1].Name(), check.Equals, "lane2")
	rg := h.ReadGroup("lane2")
	c.Assert(rg, check.Not(check.IsNil), check.Commentf("read groups: %s", utter.Sdump(h.RGs())))
	c.Check(rg.ID(), check.Equals, 1)
	c.Check(rg.Sample(), check.Equals, "NA12878")
	c.Check(rg.Library(), check.Equals, "lib1")
	c.Check(rg.Platform(), check.Equals, "ILLUMINA")
	c.Check(rg.InsertSize(), check.Equals, 350)
	c.Check(rg.Time().Year(), check.Equals, 2014)
	c.Check(h.ReadGroup("lane1").Get(NewTag("ZZ")), check.Equals, "extra")
	c.Check(h.ReadGroup("lane3"), check.Equals, (*ReadGroup)(nil))

	c.Assert(h.Progs(), check.HasLen, 1)
	c.Check(h.Progs()[0].UID(), check.Equals, "bwa")
	c.Check(h.Progs()[0].Command(), check.Equals, "bwa mem ref.fa r1.fq r2.fq")

	c.Check(h.Comments(), check.DeepEquals, []string{"free text: with\ttabs"})
}

func (s *S) TestDuplicateReadGroup(c *check.C) {
	text := "@HD\tVN:1.6\n@RG\tID:RG1\tSM:a\n@RG\tID:RG2\tSM:b\n@RG\tID:RG1\tSM:c\n"
	_, err := decode(binaryHeader(text, testRefs))
	c.Check(errors.Is(err, ErrDupReadGroup), check.Equals, true, check.Commentf("unexpected error: %v", err))
	c.Check(errs.Is(errs.Data, err), check.Equals, true)
}

func (s *S) TestDuplicateReference(c *check.C) {
	_, err := decode(binaryHeader("", []ref{{"chr1", 10}, {"chr2", 10}, {"chr1", 20}}))
	c.Check(errors.Is(err, ErrDupReference), check.Equals, true, check.Commentf("unexpected error: %v", err))
}

func (s *S) TestMissingReadGroupID(c *check.C) {
	_, err := decode(binaryHeader("@RG\tSM:a\tLB:b\n", nil))
	c.Check(errors.Is(err, ErrMissingID), check.Equals, true, check.Commentf("unexpected error: %v", err))
}

func (s *S) TestMalformedText(c *check.C) {
	for _, text := range []string{
		"HD\tVN:1.6\n",
		"@H\n",
		"@HD\tVN1.6\n",
		"@HD\tVNX:1.6\n",
		"@HD\tV:1.6\n",
		"@HD\t\tVN:1.6\n",
		"@HD VN:1.6\n",
		"@SQ\tSN:chr1\tM5:0123\n",
		"@SQ\tSN:chr1\tM5:zz22b98cdeb4a9304cb5d48026a85128\n",
		"@HD\tSO:coordinate\n",
		"@RG\tID:a\tPI:many\n",
	} {
		_, err := decode(binaryHeader(text, testRefs))
		c.Check(errors.Is(err, ErrBadHeader), check.Equals, true, check.Commentf("text %q: unexpected error: %v", text, err))
		c.Check(errs.Is(errs.Data, err), check.Equals, true, check.Commentf("text %q", text))
	}
}

func (s *S) TestTextTermination(c *check.C) {
	for _, text := range []string{
		"@HD\tVN:1.6\r\n@RG\tID:a\r\n\r\n",
		"@HD\tVN:1.6\n@RG\tID:a",
		"@HD\tVN:1.6\n@RG\tID:a\n\x00\x00\x00",
		"\n\n@HD\tVN:1.6\n@RG\tID:a\n",
	} {
		h, err := decode(binaryHeader(text, testRefs))
		c.Assert(err, check.Equals, nil, check.Commentf("text %q", text))
		c.Check(h.Version(), check.Equals, "1.6", check.Commentf("text %q", text))
		c.Check(h.ReadGroup("a"), check.Not(check.IsNil), check.Commentf("text %q", text))
	}
}

func (s *S) TestBadMagic(c *check.C) {
	b := binaryHeader("", nil)
	b[3] = 2
	_, err := decode(b)
	c.Check(errors.Is(err, ErrBadMagic), check.Equals, true)
	c.Check(errs.Is(errs.Format, err), check.Equals, true)

	b = binaryHeader(testText, testRefs)
	_, err = decode(b[:len(b)-3])
	c.Check(errs.Is(errs.Format, err), check.Equals, true, check.Commentf("unexpected error: %v", err))
}

func (s *S) TestNewHeader(c *check.C) {
	var refs []*Reference
	for _, r := range testRefs {
		rf, err := NewReference(r.name, int(r.len))
		c.Assert(err, check.Equals, nil)
		refs = append(refs, rf)
	}
	h, err := NewHeader([]byte("@SQ\tSN:chr2\tLN:243199373\tSP:human\n"), refs)
	c.Assert(err, check.Equals, nil)
	c.Check(h.Ref(0).Species(), check.Equals, "human")
	c.Check(h.Ref(2).ID(), check.Equals, 2)
	c.Check(h.String(), check.Equals,
		"@SQ\tSN:chr2\tLN:243199373\tSP:human\n@SQ\tSN:chr1\tLN:249250621\n@SQ\tSN:chrM\tLN:16571\n")

	_, err = NewReference("bad", -1)
	c.Check(err, check.Equals, ErrBadLength)
}

func (s *S) TestHeaderOrders(c *check.C) {
	for _, t := range []struct {
		text   string
		sort   SortOrder
		group  GroupOrder
		render string
	}{
		{
			text:   "@HD\tVN:1.6\tSO:queryname\tGO:query\n@CO\tnote\n",
			sort:   QueryName,
			group:  GroupQuery,
			render: "@HD\tVN:1.6\tSO:queryname\tGO:query\n@CO\tnote\n",
		},
		{
			text:   "@HD\tVN:1.6\tSO:sideways\tGO:none\n",
			sort:   UnknownOrder,
			group:  GroupNone,
			render: "@HD\tVN:1.6\tGO:none\n",
		},
		{
			text:   "@HD\tVN:1.4\n",
			sort:   UnknownOrder,
			group:  GroupUnspecified,
			render: "@HD\tVN:1.4\n",
		},
	} {
		h, err := NewHeader([]byte(t.text), nil)
		c.Assert(err, check.Equals, nil, check.Commentf("text %q", t.text))
		c.Check(h.SortOrder(), check.Equals, t.sort, check.Commentf("text %q", t.text))
		c.Check(h.GroupOrder(), check.Equals, t.group, check.Commentf("text %q", t.text))
		c.Check(h.String(), check.Equals, t.render)
	}

	h, err := NewHeader([]byte("@HD\tVN:1.6\n@CO\tfirst\n@CO\tsecond\n"), nil)
	c.Assert(err, check.Equals, nil)
	c.Check(h.Version(), check.Equals, "1.6")
	c.Check(h.Comments(), check.DeepEquals, []string{"first", "second"})
}

func (s *S) TestLengths(c *check.C) {
	for _, t := range []struct {
		cigar     string
		ref, read int
	}{
		{"*", 0, 0},
		{"100M", 100, 100},
		{"5S10M2I3D4N6=7X2H1P", 30, 30},
		{"3H10M", 10, 10},
	} {
		cig, err := ParseCigar([]byte(t.cigar))
		c.Assert(err, check.Equals, nil)
		ref, read := cig.Lengths()
		c.Check(ref, check.Equals, t.ref, check.Commentf("cigar %s", t.cigar))
		c.Check(read, check.Equals, t.read, check.Commentf("cigar %s", t.cigar))
		c.Check(cig.String(), check.Equals, t.cigar)
	}
}

func (s *S) TestParseCigarErrors(c *check.C) {
	for _, cig := range []string{"10B", "M", "10", "5M3"} {
		_, err := ParseCigar([]byte(cig))
		c.Check(err, check.Not(check.IsNil), check.Commentf("cigar %s", cig))
	}
	c.Check(CigarOpType(9).IsValid(), check.Equals, false)
	c.Check(CigarOpType(9).Consumes(), check.Equals, Consume{})
	c.Check(CigarOpType(12).String(), check.Equals, "?")
}

func aux(tag string, typ byte, payload ...byte) Aux {
	return append(Aux{tag[0], tag[1], typ}, payload...)
}

func le32(v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return b[:]
}

func le64(v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return b[:]
}

func (s *S) TestAuxValue(c *check.C) {
	for _, t := range []struct {
		aux    Aux
		value  interface{}
		kind   byte
		String string
	}{
		{aux("XA", 'A', 'q'), byte('q'), 'A', "XA:A:q"},
		{aux("NM", 'c', 0xfe), int8(-2), 'i', "NM:i:-2"},
		{aux("NM", 'C', 200), uint8(200), 'i', "NM:i:200"},
		{aux("XS", 's', 0x00, 0x80), int16(math.MinInt16), 'i', "XS:i:-32768"},
		{aux("XS", 'S', 0xff, 0xff), uint16(math.MaxUint16), 'i', "XS:i:65535"},
		{aux("AS", 'i', le32(0xffffffff)...), int32(-1), 'i', "AS:i:-1"},
		{aux("AS", 'I', le32(70000)...), uint32(70000), 'i', "AS:i:70000"},
		{aux("XF", 'f', le32(math.Float32bits(1.5))...), float32(1.5), 'f', "XF:f:1.5"},
		{aux("XD", 'd', le64(math.Float64bits(0.25))...), float64(0.25), 'f', "XD:f:0.25"},
		{aux("RG", 'Z', []byte("lane1")...), "lane1", 'Z', "RG:Z:lane1"},
		{aux("XH", 'H', []byte("1AE3")...), []byte("1AE3"), 'H', "XH:H:1AE3"},
		{aux("XB", 'B', append([]byte{'s'}, append(le32(2), 0x01, 0x00, 0xff, 0xff)...)...), []int16{1, -1}, 'B', "XB:B:s,1,-1"},
		{aux("XC", 'B', append([]byte{'C'}, append(le32(3), 1, 2, 3)...)...), []uint8{1, 2, 3}, 'B', "XC:B:C,1,2,3"},
	} {
		c.Check(t.aux.Value(), check.DeepEquals, t.value, check.Commentf("aux %s", utter.Sdump(t.aux)))
		c.Check(t.aux.Kind(), check.Equals, t.kind)
		c.Check(t.aux.String(), check.Equals, t.String)
		c.Check(t.aux.Tag(), check.Equals, NewTag(string(t.aux[:2])))
	}
}

func (s *S) TestFlags(c *check.C) {
	c.Check(Flags(0).String(), check.Equals, "------------")
	c.Check((Paired | Read1 | Reverse).String(), check.Equals, "p---r-1-----")
	c.Check((Read1 | Duplicate).String(), check.Equals, "----------d-")
	c.Check((Paired | ProperPair).Has(Paired), check.Equals, true)
	c.Check(Unmapped.Has(Paired|Unmapped), check.Equals, false)
}
