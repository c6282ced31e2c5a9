// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bam

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/grailbio/base/log"
	"github.com/pkg/errors"

	"github.com/biogo/bamx/bgzf"
	"github.com/biogo/bamx/errs"
	"github.com/biogo/bamx/sam"
)

// Check is a set of validation checks.
type Check uint

const (
	// CheckHeader checks the EOF marker and decodes the header.
	CheckHeader Check = 1 << iota

	// CheckBlockCompression decompresses every block.
	CheckBlockCompression

	// CheckBlockStructure parses every block header.
	CheckBlockStructure

	// CheckRecordStructure decodes every record.
	CheckRecordStructure

	// CheckRecordSemantics checks record fields against the
	// header, the stored bin and the sort order.
	CheckRecordSemantics

	// CheckIndexStructure parses the index.
	CheckIndexStructure

	// CheckIndexData checks that each populated index interval
	// points at a record on its reference.
	CheckIndexData

	numChecks = iota

	// CheckAll is the set of all checks.
	CheckAll Check = 1<<numChecks - 1
)

var checkNames = [numChecks]string{
	"header",
	"block compression",
	"block structure",
	"record structure",
	"record semantics",
	"index structure",
	"index data",
}

// String returns the string representation of a Check set.
func (c Check) String() string {
	var names []string
	for i, n := range checkNames {
		if c&(1<<uint(i)) != 0 {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// ParseChecks returns the Check set named by a comma separated list.
// Names are as given by Check.String with spaces replaced by hyphens,
// and "all".
func ParseChecks(s string) (Check, error) {
	var c Check
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "all" {
			c |= CheckAll
			continue
		}
		i := 0
		for ; i < numChecks; i++ {
			if strings.ReplaceAll(checkNames[i], " ", "-") == f {
				c |= 1 << uint(i)
				break
			}
		}
		if i == numChecks {
			return 0, fmt.Errorf("bam: unknown check %q", f)
		}
	}
	return c, nil
}

// Outcome is the result of a validation unit.
type Outcome int

const (
	Pass Outcome = iota
	Warn
	Fail
)

func (o Outcome) String() string {
	switch o {
	case Pass:
		return "pass"
	case Warn:
		return "warn"
	case Fail:
		return "fail"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// ValidateInput holds the data to validate.
type ValidateInput struct {
	// Data holds Size bytes of BAM data.
	Data io.ReaderAt
	Size int64

	// Index holds BAI data. It is required
	// by the index checks.
	Index io.Reader
}

// Progress describes a completed validation unit: a block, a record,
// an index reference or an index interval.
type Progress struct {
	Check   Check
	Object  string
	Outcome Outcome
	Err     error
}

// Tally holds outcome counts.
type Tally struct {
	Pass, Warn, Fail int
}

func (t *Tally) add(o Outcome) {
	switch o {
	case Pass:
		t.Pass++
	case Warn:
		t.Warn++
	case Fail:
		t.Fail++
	}
}

// Report holds the outcome tallies of a validation.
type Report struct {
	tallies [numChecks]Tally
}

// Tally returns the tally for the checks in c.
func (r *Report) Tally(c Check) Tally {
	var t Tally
	for i := range r.tallies {
		if c&(1<<uint(i)) != 0 {
			t.Pass += r.tallies[i].Pass
			t.Warn += r.tallies[i].Warn
			t.Fail += r.tallies[i].Fail
		}
	}
	return t
}

// OK returns whether no unit failed.
func (r *Report) OK() bool { return r.Tally(CheckAll).Fail == 0 }

// Validate runs the given checks over in, continuing past failed units.
// fn, if not nil, is called after each unit; returning false stops the
// validation. Validate returns an errs.Canceled error if it is stopped
// by fn or ctx, and errors that prevent validation from proceeding.
// Failed units are reported through fn and the returned Report.
func Validate(ctx context.Context, in ValidateInput, checks Check, fn func(Progress) bool) (*Report, error) {
	v := validator{ctx: ctx, fn: fn, rep: &Report{}}
	err := v.run(in, checks)
	return v.rep, err
}

type validator struct {
	ctx context.Context
	fn  func(Progress) bool
	rep *Report
}

func (v *validator) run(in ValidateInput, checks Check) error {
	if checks&CheckHeader != 0 {
		ok, err := bgzf.HasEOF(in.Data, in.Size)
		switch {
		case err != nil:
			return err
		case !ok:
			err = v.report(CheckHeader, "eof", Warn, ErrNoEOFMarker)
		default:
			err = v.report(CheckHeader, "eof", Pass, nil)
		}
		if err != nil {
			return err
		}
	}

	var f *File
	if checks&^(CheckBlockCompression|CheckBlockStructure) != 0 {
		var err error
		f, err = NewFile(in.Data, in.Size)
		outcome := Pass
		if err != nil {
			if errs.Is(errs.Resource, err) {
				return err
			}
			outcome = Fail
		}
		if checks&CheckHeader != 0 {
			if rerr := v.report(CheckHeader, "header", outcome, err); rerr != nil {
				return rerr
			}
		}
		if f != nil {
			defer f.Close()
		}
	}

	if checks&CheckBlockCompression != 0 {
		err := v.blocks(bgzf.Blocks(in.Data, in.Size), CheckBlockCompression)
		if err != nil {
			return err
		}
	}
	if checks&CheckBlockStructure != 0 {
		err := v.blocks(bgzf.BlockHeaders(in.Data, in.Size), CheckBlockStructure)
		if err != nil {
			return err
		}
	}
	if f != nil && checks&(CheckRecordStructure|CheckRecordSemantics) != 0 {
		err := v.records(f, checks)
		if err != nil {
			return err
		}
	}
	if checks&(CheckIndexStructure|CheckIndexData) != 0 {
		return v.index(f, in.Index, checks)
	}
	return nil
}

// report tallies a unit and passes it to the callback.
func (v *validator) report(c Check, object string, outcome Outcome, err error) error {
	for i := range v.rep.tallies {
		if c == 1<<uint(i) {
			v.rep.tallies[i].add(outcome)
			break
		}
	}
	if outcome != Pass && log.At(log.Debug) {
		log.Debug.Printf("bam: validate %s: %s: %s: %v", c, object, outcome, err)
	}
	if v.fn != nil && !v.fn(Progress{Check: c, Object: object, Outcome: outcome, Err: err}) {
		return errs.E(errs.Canceled, "bam", "validate", object, errors.Wrap(context.Canceled, "stopped by callback"))
	}
	if cerr := v.ctx.Err(); cerr != nil {
		return errs.E(errs.Canceled, "bam", "validate", object, cerr)
	}
	return nil
}

func (v *validator) blocks(w *bgzf.Walker, c Check) error {
	for w.Next(v.ctx) {
		b := w.Block()
		outcome := Pass
		if b.Err != nil {
			outcome = Fail
		}
		err := v.report(c, fmt.Sprintf("block at %d", b.Pos.File), outcome, b.Err)
		if err != nil {
			return err
		}
		if b.Err != nil && !w.Skip() {
			break
		}
	}
	if err := w.Err(); errs.Is(errs.Canceled, err) {
		return err
	}
	return nil
}

func (v *validator) records(f *File, checks Check) error {
	sorted := f.h.SortOrder() == sam.Coordinate
	lastRef, lastPos := 0, -1
	for {
		at := f.Position()
		rec, err := f.Read()
		if err == io.EOF {
			return nil
		}
		obj := "record at " + at.String()
		if err != nil {
			if errs.Is(errs.Resource, err) {
				return err
			}
			if checks&CheckRecordStructure != 0 {
				rerr := v.report(CheckRecordStructure, obj, Fail, err)
				if rerr != nil {
					return rerr
				}
			}
			if !errs.Is(errs.Data, err) || f.Position() == at {
				// The stream cannot be resynchronized.
				return nil
			}
			continue
		}
		if checks&CheckRecordStructure != 0 {
			err = v.report(CheckRecordStructure, obj, Pass, nil)
		}
		if err == nil && checks&CheckRecordSemantics != 0 {
			outcome, serr := v.semantics(f.h, rec, sorted, &lastRef, &lastPos)
			err = v.report(CheckRecordSemantics, obj, outcome, serr)
		}
		rec.Release()
		if err != nil {
			return err
		}
	}
}

// semantics checks rec against the header and its predecessor. Unplaced
// records are tracked with a lastRef of -1.
func (v *validator) semantics(h *sam.Header, rec *Record, sorted bool, lastRef, lastPos *int) (Outcome, error) {
	id, pos := rec.RefID(), rec.Pos()
	if id < 0 {
		*lastRef = -1
		if pos != -1 {
			return Warn, errors.Errorf("bam: unplaced record %q has position %d", rec.Name(), pos)
		}
		return Pass, nil
	}

	ref := h.Ref(id)
	if pos < 0 || pos >= ref.Len() {
		return Fail, errors.Wrapf(ErrOutOfRange, "position %d on %s of length %d", pos, ref.Name(), ref.Len())
	}
	if sorted {
		switch {
		case *lastRef < 0:
			return Fail, errors.Wrap(ErrUnsorted, "placed record follows unplaced records")
		case id < *lastRef, id == *lastRef && pos < *lastPos:
			return Fail, errors.Wrapf(ErrUnsorted, "%d:%d follows %d:%d", id, pos, *lastRef, *lastPos)
		}
	}
	*lastRef, *lastPos = id, pos

	if rec.Flags()&sam.Unmapped == 0 && rec.NumCigarOps() == 0 {
		return Warn, errors.Errorf("bam: mapped record %q has no cigar", rec.Name())
	}
	if want := reg2bin(pos, rec.End()); rec.Bin() != want {
		return Warn, errors.Wrapf(ErrBinMismatch, "stored bin %d, computed %d", rec.Bin(), want)
	}
	return Pass, nil
}

func (v *validator) index(f *File, r io.Reader, checks Check) error {
	if r == nil {
		c := checks & (CheckIndexStructure | CheckIndexData)
		if c&CheckIndexStructure != 0 {
			c = CheckIndexStructure
		}
		return v.report(c, "index", Fail, ErrNoIndex)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return errs.E(errs.Resource, "bam", "validate", "index", err)
	}
	var h *sam.Header
	if f != nil {
		h = f.h
	}
	idx, ierr := parseIndex(b, h)

	if checks&CheckIndexStructure != 0 {
		if ierr != nil {
			return v.report(CheckIndexStructure, "index", Fail, ierr)
		}
		_, _, err = scanIndex(b, func(id int, rr *rawRef) error {
			outcome, err := indexStructure(rr)
			return v.report(CheckIndexStructure, fmt.Sprintf("reference %d", id), outcome, err)
		})
		if err != nil {
			return err
		}
	}

	if ierr != nil || f == nil || checks&CheckIndexData == 0 {
		return nil
	}
	for id := 0; id < idx.NumRefs(); id++ {
		if !idx.IsIndexed(id) {
			continue
		}
		for k, ok := idx.nextPopulated(id, 0); ok; k, ok = idx.nextPopulated(id, k+1) {
			outcome, err := indexData(f, idx, id, k)
			if errs.Is(errs.Resource, err) {
				return err
			}
			err = v.report(CheckIndexData, fmt.Sprintf("reference %d interval %d", id, k), outcome, err)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// indexStructure checks the chunks and linear index of a reference.
func indexStructure(rr *rawRef) (Outcome, error) {
	for _, bn := range rr.bins {
		for i := 0; i < bn.numChunks(); i++ {
			c := bn.chunk(i)
			if c.End.Less(c.Begin) {
				return Fail, errors.Wrapf(ErrBadIndex, "bin %d chunk %v-%v ends before it begins", bn.bin, c.Begin, c.End)
			}
		}
	}
	var last bgzf.Offset
	for k := 0; k < rr.numIntervals(); k++ {
		o := rr.interval(k)
		if o.IsZero() {
			continue
		}
		if o.Less(last) {
			return Warn, errors.Wrapf(ErrBadIndex, "linear index decreases at interval %d", k)
		}
		last = o
	}
	return Pass, nil
}

// indexData checks that interval k of reference id points at a record on
// that reference starting no later than the end of the interval.
func indexData(f *File, idx *Index, id, k int) (Outcome, error) {
	err := f.SetPosition(idx.Interval(id, k))
	if err != nil {
		return Fail, err
	}
	rec, err := f.Read()
	if err == io.EOF {
		return Fail, errors.Wrap(ErrIndexMismatch, "interval points at end of file")
	}
	if err != nil {
		return Fail, err
	}
	defer rec.Release()
	if rec.RefID() != id {
		return Fail, errors.Wrapf(ErrIndexMismatch, "interval points at record on reference %d", rec.RefID())
	}
	if rec.Pos() >= (k+1)*intervalWidth {
		return Warn, errors.Wrapf(ErrIndexMismatch, "interval points at record starting at %d", rec.Pos())
	}
	return Pass, nil
}
