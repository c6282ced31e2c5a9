// Copyright ©2012 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sam

import (
	"fmt"
	"sort"
	"strings"

	"github.com/biogo/bamx/errs"
)

// SortOrder is the SO field of the @HD line.
type SortOrder int

const (
	UnknownOrder SortOrder = iota
	Unsorted
	QueryName
	Coordinate
)

var sortOrderNames = []string{"unknown", "unsorted", "queryname", "coordinate"}

func (so SortOrder) String() string {
	if so < 0 || int(so) >= len(sortOrderNames) {
		so = UnknownOrder
	}
	return sortOrderNames[so]
}

// parseSortOrder returns the SortOrder named by s, or UnknownOrder.
func parseSortOrder(s string) SortOrder {
	return SortOrder(lookupName(sortOrderNames, s))
}

// GroupOrder is the GO field of the @HD line.
type GroupOrder int

const (
	GroupUnspecified GroupOrder = iota
	GroupNone
	GroupQuery
	GroupReference
)

var groupOrderNames = []string{"none", "none", "query", "reference"}

func (g GroupOrder) String() string {
	if g < 0 || int(g) >= len(groupOrderNames) {
		g = GroupUnspecified
	}
	return groupOrderNames[g]
}

// parseGroupOrder returns the GroupOrder named by s, or
// GroupUnspecified.
func parseGroupOrder(s string) GroupOrder {
	if s == "none" {
		return GroupNone
	}
	return GroupOrder(lookupName(groupOrderNames, s))
}

// lookupName returns the index of s in names, or zero.
func lookupName(names []string, s string) int {
	for i := 1; i < len(names); i++ {
		if names[i] == s {
			return i
		}
	}
	return 0
}

// Header is the header catalog of a BAM file. It holds the reference
// sequences in binary table order, name sorted lookup tables for
// references and read groups, and the file level metadata from the
// header text.
//
// A Header is immutable once built and may be shared between files.
type Header struct {
	version    string
	sortOrder  SortOrder
	groupOrder GroupOrder
	otherTags  []tagPair

	text []byte

	refs   []*Reference
	byName []*Reference
	rgs    []*ReadGroup
	progs  []*Program

	comments []string
}

// NewHeader returns a new Header based on the given text and list
// of References. The References are assigned IDs in the order given.
// A nil text is valid and results in a Header with no metadata beyond
// the references.
func NewHeader(text []byte, refs []*Reference) (*Header, error) {
	bh := &Header{}
	for i, r := range refs {
		r.id = int32(i)
	}
	err := bh.build(text, refs)
	if err != nil {
		return nil, err
	}
	return bh, nil
}

// build installs the references and parses the text, then freezes the
// read group table.
func (bh *Header) build(text []byte, refs []*Reference) error {
	bh.text = text
	bh.refs = refs
	bh.byName = make([]*Reference, len(refs))
	copy(bh.byName, refs)
	sort.Slice(bh.byName, func(i, j int) bool { return bh.byName[i].name < bh.byName[j].name })
	for i := 1; i < len(bh.byName); i++ {
		if bh.byName[i].name == bh.byName[i-1].name {
			return errs.E(errs.Data, "sam", "build header", bh.byName[i].name, ErrDupReference)
		}
	}

	err := bh.parseText(text)
	if err != nil {
		return err
	}

	sort.SliceStable(bh.rgs, func(i, j int) bool { return bh.rgs[i].name < bh.rgs[j].name })
	for i, rg := range bh.rgs {
		if i > 0 && rg.name == bh.rgs[i-1].name {
			return errs.E(errs.Data, "sam", "build header", rg.name, ErrDupReadGroup)
		}
		rg.id = int32(i)
	}
	return nil
}

// Version returns the VN field of the @HD line.
func (bh *Header) Version() string { return bh.version }

// SortOrder returns the SO field of the @HD line.
func (bh *Header) SortOrder() SortOrder { return bh.sortOrder }

// GroupOrder returns the GO field of the @HD line.
func (bh *Header) GroupOrder() GroupOrder { return bh.groupOrder }

// Comments returns the text of the @CO lines in header order. The
// returned slice should not be altered.
func (bh *Header) Comments() []string { return bh.comments }

// Text returns the raw header text. The returned slice should not be altered.
func (bh *Header) Text() []byte { return bh.text }

// Get returns the string representation of the value associated with the
// given @HD line tag. If the tag is not present the empty string is returned.
func (bh *Header) Get(t Tag) string {
	switch t {
	case versionTag:
		return bh.version
	case sortOrderTag:
		return bh.sortOrder.String()
	case groupOrderTag:
		return bh.groupOrder.String()
	}
	return getTag(bh.otherTags, t)
}

// Refs returns the Header's list of References in ID order. The returned
// slice should not be altered.
func (bh *Header) Refs() []*Reference { return bh.refs }

// NumRefs returns the number of reference sequences.
func (bh *Header) NumRefs() int { return len(bh.refs) }

// Ref returns the Reference with the given ID, or nil if id is out of range.
func (bh *Header) Ref(id int) *Reference {
	if id < 0 || id >= len(bh.refs) {
		return nil
	}
	return bh.refs[id]
}

// RefByName returns the Reference with the given name, or nil if there
// is no such reference.
func (bh *Header) RefByName(name string) *Reference {
	i := sort.Search(len(bh.byName), func(i int) bool { return bh.byName[i].name >= name })
	if i < len(bh.byName) && bh.byName[i].name == name {
		return bh.byName[i]
	}
	return nil
}

// RGs returns the Header's list of ReadGroups sorted by name. The returned
// slice should not be altered.
func (bh *Header) RGs() []*ReadGroup { return bh.rgs }

// NumReadGroups returns the number of read groups.
func (bh *Header) NumReadGroups() int { return len(bh.rgs) }

// ReadGroup returns the ReadGroup with the given name, or nil if there is
// no such read group.
func (bh *Header) ReadGroup(name string) *ReadGroup {
	i := sort.Search(len(bh.rgs), func(i int) bool { return bh.rgs[i].name >= name })
	if i < len(bh.rgs) && bh.rgs[i].name == name {
		return bh.rgs[i]
	}
	return nil
}

// Progs returns the Header's list of Programs in header order. The returned
// slice should not be altered.
func (bh *Header) Progs() []*Program { return bh.progs }

// String returns a SAM text rendering of the catalog. References are
// rendered from the binary table with any attached metadata, so the
// result may differ from the raw text returned by Text.
func (bh *Header) String() string {
	var b strings.Builder
	if bh.version != "" {
		fmt.Fprintf(&b, "@HD\tVN:%s", bh.version)
		if bh.sortOrder != UnknownOrder {
			fmt.Fprintf(&b, "\tSO:%s", bh.sortOrder)
		}
		if bh.groupOrder != GroupUnspecified {
			fmt.Fprintf(&b, "\tGO:%s", bh.groupOrder)
		}
		for _, tp := range bh.otherTags {
			fmt.Fprintf(&b, "\t%s:%s", tp.tag, tp.value)
		}
		b.WriteByte('\n')
	}
	for _, r := range bh.refs {
		fmt.Fprintf(&b, "%s\n", r)
	}
	for _, rg := range bh.rgs {
		fmt.Fprintf(&b, "%s\n", rg)
	}
	for _, p := range bh.progs {
		fmt.Fprintf(&b, "%s\n", p)
	}
	for _, co := range bh.comments {
		fmt.Fprintf(&b, "@CO\t%s\n", co)
	}
	return b.String()
}
