// Copyright ©2012 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sam

import (
	"fmt"
	"strings"
)

// Program represents an @PG header line. Program lines are kept in the
// order they appear in the header.
type Program struct {
	uid       string
	previous  string
	name      string
	command   string
	version   string
	otherTags []tagPair
}

// UID returns the unique ID of the program.
func (p *Program) UID() string {
	if p == nil {
		return ""
	}
	return p.uid
}

// Name returns the program name.
func (p *Program) Name() string { return p.name }

// Command returns the command line used to run the program.
func (p *Program) Command() string { return p.command }

// Previous returns the UID of the previous program in the chain.
func (p *Program) Previous() string { return p.previous }

// Version returns the program version.
func (p *Program) Version() string { return p.version }

func (p *Program) set(t Tag, value string) {
	switch t {
	case idTag:
		p.uid = value
	case programNameTag:
		p.name = value
	case commandLineTag:
		p.command = value
	case previousProgTag:
		p.previous = value
	case versionTag:
		p.version = value
	default:
		p.otherTags = append(p.otherTags, tagPair{tag: t, value: value})
	}
}

// String returns a string representation of the program according to the
// SAM specification section 1.3,
func (p *Program) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "@PG\tID:%s", p.uid)
	if p.name != "" {
		fmt.Fprintf(&b, "\tPN:%s", p.name)
	}
	if p.command != "" {
		fmt.Fprintf(&b, "\tCL:%s", p.command)
	}
	if p.previous != "" {
		fmt.Fprintf(&b, "\tPP:%s", p.previous)
	}
	if p.version != "" {
		fmt.Fprintf(&b, "\tVN:%s", p.version)
	}
	for _, tp := range p.otherTags {
		fmt.Fprintf(&b, "\t%s:%s", tp.tag, tp.value)
	}
	return b.String()
}
