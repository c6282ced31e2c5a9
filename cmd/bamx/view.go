// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/biogo/bamx/bam"
	"github.com/biogo/bamx/sam"
)

var (
	region string
	cgMode bool
)

var viewCmd = &cobra.Command{
	Use:   "view <file.bam>",
	Short: "Print the records of a file or region",
	Long: `Print a tab separated summary of each record: name, flags, reference
id, position, end, mapping quality, CIGAR, mate reference id, mate
position and template length.

A region is given as ref, ref:beg or ref:beg-end with one-based
inclusive coordinates and requires an index. With --cg merged
Complete Genomics reads are printed with their expanded CIGAR.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := openFile(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		out := bufio.NewWriter(os.Stdout)
		defer out.Flush()
		emit := func(r *bam.Record) error {
			if !cgMode {
				_, err := fmt.Fprintln(out, r)
				return err
			}
			cg, err := r.CGReconstruct()
			if err != nil {
				return fmt.Errorf("%s: %v", r.Name(), err)
			}
			if cg == nil {
				_, err = fmt.Fprintln(out, r)
				return err
			}
			_, err = fmt.Fprintf(out, "%s\t%v\t%s\n", r, cg.Cigar, cg.Seq)
			return err
		}

		if region == "" {
			for {
				r, err := f.Read()
				if err == io.EOF {
					return nil
				}
				if err != nil {
					return err
				}
				err = emit(r)
				r.Release()
				if err != nil {
					return err
				}
			}
		}

		id, beg, end, err := parseRegion(f.Header(), region)
		if err != nil {
			return err
		}
		it, err := bam.NewIterator(f, id, beg, end)
		if err != nil {
			return err
		}
		for it.Next() {
			err = emit(it.Record())
			if err != nil {
				it.Close()
				return err
			}
		}
		return it.Close()
	},
}

func init() {
	viewCmd.Flags().StringVar(&region, "region", "", "region to print, as ref:beg-end")
	viewCmd.Flags().BoolVar(&cgMode, "cg", false, "expand Complete Genomics merged reads")
}

// parseRegion returns the reference id and the zero-based half-open
// interval described by the one-based inclusive region s.
func parseRegion(h *sam.Header, s string) (id, beg, end int, err error) {
	name, span := s, ""
	if i := strings.LastIndexByte(s, ':'); i >= 0 && h.RefByName(s) == nil {
		name, span = s[:i], s[i+1:]
	}
	ref := h.RefByName(name)
	if ref == nil {
		return 0, 0, 0, fmt.Errorf("unknown reference %q", name)
	}
	beg, end = 0, ref.Len()
	if span == "" {
		return ref.ID(), beg, end, nil
	}
	span = strings.ReplaceAll(span, ",", "")
	from, to, hasEnd := strings.Cut(span, "-")
	b, err := strconv.Atoi(from)
	if err != nil || b < 1 {
		return 0, 0, 0, fmt.Errorf("invalid region start in %q", s)
	}
	beg = b - 1
	if hasEnd {
		end, err = strconv.Atoi(to)
		if err != nil || end < b {
			return 0, 0, 0, fmt.Errorf("invalid region end in %q", s)
		}
	}
	return ref.ID(), beg, end, nil
}
