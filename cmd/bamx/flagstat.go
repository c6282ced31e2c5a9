// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"fmt"
	"io"
	"math/bits"
	"os"

	"github.com/spf13/cobra"

	"github.com/biogo/bamx/bam"
	"github.com/biogo/bamx/sam"
)

var flagstatCmd = &cobra.Command{
	Use:   "flagstat <file.bam>",
	Short: "Count records by flag",
	Long: `Count the records of a file, or of the region given by --region, by
flag in the manner of samtools flagstat.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := openFile(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		var st flagStats
		if region == "" {
			for {
				r, err := f.Read()
				if err == io.EOF {
					break
				}
				if err != nil {
					return err
				}
				st.add(r.Flags(), r.RefID(), r.MateRefID(), r.MapQ())
				r.Release()
			}
		} else {
			id, beg, end, err := parseRegion(f.Header(), region)
			if err != nil {
				return err
			}
			it, err := bam.NewIterator(f, id, beg, end)
			if err != nil {
				return err
			}
			for it.Next() {
				r := it.Record()
				st.add(r.Flags(), r.RefID(), r.MateRefID(), r.MapQ())
			}
			err = it.Close()
			if err != nil {
				return err
			}
		}
		out := bufio.NewWriter(os.Stdout)
		st.write(out)
		return out.Flush()
	},
}

func init() {
	flagstatCmd.Flags().StringVar(&region, "region", "", "region to count, as ref:beg-end")
	rootCmd.AddCommand(flagstatCmd)
}

// flagStats holds record counts indexed by QC failure and flag bit.
// Bit zero of counts is used for the total.
type flagStats struct {
	counts [2][12]uint64

	// mates counts pairs with mates on other references,
	// in total and with mapping quality of at least 5.
	mates [2][2]uint64
}

func bit(f sam.Flags) int { return bits.TrailingZeros16(uint16(f)) }

func (s *flagStats) add(flags sam.Flags, ref, mateRef int, mapQ byte) {
	var fail int
	if flags&sam.QCFail != 0 {
		fail = 1
	}
	c := &s.counts[fail]
	c[0]++
	switch {
	case flags&sam.Supplementary != 0:
		c[bit(sam.Supplementary)]++
	case flags&sam.Secondary != 0:
		c[bit(sam.Secondary)]++
	default:
		for i := 1; i < len(c); i++ {
			if flags&(1<<uint(i)) != 0 {
				c[i]++
			}
		}
	}
	if flags&(sam.Secondary|sam.ProperPair|sam.Supplementary|sam.Unmapped) == 0 &&
		ref >= 0 && mateRef >= 0 && ref != mateRef {
		s.mates[fail][0]++
		if mapQ > 4 {
			s.mates[fail][1]++
		}
	}
}

func (s *flagStats) write(w io.Writer) {
	pair := func(f sam.Flags) (uint64, uint64) { return s.counts[0][bit(f)], s.counts[1][bit(f)] }
	fmt.Fprintf(w, "%d + %d in total (QC-passed reads + QC-failed reads)\n", s.counts[0][0], s.counts[1][0])
	p, f := pair(sam.Secondary)
	fmt.Fprintf(w, "%d + %d secondary\n", p, f)
	p, f = pair(sam.Supplementary)
	fmt.Fprintf(w, "%d + %d supplementary\n", p, f)
	p, f = pair(sam.Duplicate)
	fmt.Fprintf(w, "%d + %d duplicates\n", p, f)
	p, f = pair(sam.Unmapped)
	fmt.Fprintf(w, "%d + %d mapped\n", s.counts[0][0]-p, s.counts[1][0]-f)
	p, f = pair(sam.Read1)
	fmt.Fprintf(w, "%d + %d read1\n", p, f)
	p, f = pair(sam.Read2)
	fmt.Fprintf(w, "%d + %d read2\n", p, f)
	p, f = pair(sam.ProperPair)
	fmt.Fprintf(w, "%d + %d properly paired\n", p, f)
	p, f = pair(sam.MateUnmapped)
	fmt.Fprintf(w, "%d + %d singletons\n", p, f)
	fmt.Fprintf(w, "%d + %d with mate mapped to a different chr\n", s.mates[0][0], s.mates[1][0])
	fmt.Fprintf(w, "%d + %d with mate mapped to a different chr (mapQ>=5)\n", s.mates[0][1], s.mates[1][1])
}
