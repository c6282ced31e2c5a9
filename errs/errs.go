// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package errs provides the error classification shared by the bgzf, sam
// and bam packages.
//
// Every error returned by those packages that is not a plain io.EOF is an
// *Error, recording the package, the operation, the object being worked on
// and one of a closed set of kinds. The specific cause is held in Err and
// is usually one of the exported sentinel errors of the originating package,
// so callers may test for either the kind or the cause:
//
//	if errs.Is(errs.Format, err) { ... }
//	if errors.Is(err, bgzf.ErrTruncated) { ... }
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the class of an Error.
type Kind int

const (
	// Other is an unclassified error.
	Other Kind = iota

	// Resource is an I/O failure of the underlying file
	// or an allocation failure.
	Resource

	// Format is a container level failure: wrong magic,
	// unsupported block header, truncated block or a
	// block size mismatch.
	Format

	// Data is a field value out of its declared bounds,
	// a malformed CIGAR or aux payload, non-unique header
	// names or an inconsistent CG descriptor.
	Data

	// Position is a request for an unreachable position,
	// a region on a non-indexed or out of range reference,
	// or a sortedness violation found during a scan.
	Position

	// NotFound is a region with no overlapping alignment.
	NotFound

	// Canceled is the outcome of a cooperative cancellation.
	Canceled
)

var kinds = [...]string{
	Other:    "error",
	Resource: "resource error",
	Format:   "format error",
	Data:     "data error",
	Position: "positioning error",
	NotFound: "not found",
	Canceled: "canceled",
}

// String returns the string representation of a Kind.
func (k Kind) String() string {
	if k < Other || int(k) >= len(kinds) {
		return kinds[Other]
	}
	return kinds[k]
}

// Error is a classified error.
type Error struct {
	Kind Kind

	// Pkg is the package the error arose in,
	// Op is the failing operation and Object
	// names what was being operated on, such as
	// a file offset, a reference or a tag.
	Pkg    string
	Op     string
	Object string

	// Err is the underlying cause.
	Err error
}

// E returns an *Error with the given classification. If err is already
// an *Error with the same kind it is returned unaltered so that errors
// may be passed up through several layers without being nested.
func E(kind Kind, pkg, op, object string, err error) error {
	var e *Error
	if errors.As(err, &e) && e.Kind == kind {
		return err
	}
	return &Error{Kind: kind, Pkg: pkg, Op: op, Object: object, Err: err}
}

// Error satisfies the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Pkg != "" {
		b.WriteString(e.Pkg)
		b.WriteString(": ")
	}
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Object != "" {
		b.WriteString(e.Object)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Cause returns the underlying cause. It allows an Error to take part
// in github.com/pkg/errors.Cause chains.
func (e *Error) Cause() error { return e.Err }

// Is returns whether err, or any error it wraps, is an *Error of the
// given kind.
func Is(kind Kind, err error) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}

// KindOf returns the kind of the outermost *Error in err's chain, or
// Other if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Other
}
