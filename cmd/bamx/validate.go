// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/exascience/pargo/parallel"
	"github.com/grailbio/base/log"
	"github.com/spf13/cobra"
	"golang.org/x/exp/mmap"

	"github.com/biogo/bamx/bam"
)

var (
	checks  string
	verbose bool
)

var validateCmd = &cobra.Command{
	Use:   "validate <file.bam>...",
	Short: "Check the structure of files and their indexes",
	Long: `Check the structure of files and their indexes, continuing past
failures. Failed and warned units are printed followed by a summary for
each check. The exit status is non-zero if any unit failed.

Files are validated concurrently and reported in the order given. The
--index flag may only be used with a single file.

Checks are given as a comma separated list of header, block-compression,
block-structure, record-structure, record-semantics, index-structure,
index-data or all.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := bam.ParseChecks(checks)
		if err != nil {
			return err
		}
		if indexPath != "" && len(args) > 1 {
			return fmt.Errorf("--index given for %d files", len(args))
		}

		type result struct {
			out bytes.Buffer
			ok  bool
			err error
		}
		results := make([]result, len(args))
		parallel.Range(0, len(args), 0, func(low, high int) {
			for i := low; i < high; i++ {
				r := &results[i]
				r.ok, r.err = validateFile(cmd.Context(), &r.out, args[i], c)
			}
		})

		var failed int
		for i, r := range results {
			if len(args) > 1 {
				fmt.Fprintf(os.Stdout, "== %s\n", args[i])
			}
			os.Stdout.Write(r.out.Bytes())
			switch {
			case r.err != nil:
				log.Error.Printf("%s: %v", args[i], r.err)
				failed++
			case !r.ok:
				log.Error.Printf("%s: validation failed", args[i])
				failed++
			}
		}
		if failed != 0 {
			return fmt.Errorf("%d of %d files failed validation", failed, len(args))
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVar(&checks, "checks", "all", "checks to run")
	validateCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print passed units")
}

// validateFile runs the checks c over the file at path, writing the
// units that did not pass and a summary to w.
func validateFile(ctx context.Context, w io.Writer, path string, c bam.Check) (ok bool, err error) {
	m, err := mmap.Open(path)
	if err != nil {
		return false, err
	}
	defer m.Close()
	in := bam.ValidateInput{Data: m, Size: int64(m.Len())}
	if c&(bam.CheckIndexStructure|bam.CheckIndexData) != 0 {
		idx, err := openIndex(path)
		if err != nil {
			return false, err
		}
		if idx != nil {
			defer idx.Close()
			in.Index = idx
		}
	}

	rep, err := bam.Validate(ctx, in, c, func(p bam.Progress) bool {
		if p.Outcome != bam.Pass || verbose {
			printProgress(w, p)
		}
		return true
	})
	if err != nil {
		return false, err
	}
	for k := bam.Check(1); k <= bam.CheckAll; k <<= 1 {
		if c&k == 0 {
			continue
		}
		t := rep.Tally(k)
		fmt.Fprintf(w, "%s\tpass=%d\twarn=%d\tfail=%d\n", k, t.Pass, t.Warn, t.Fail)
	}
	return rep.OK(), nil
}

func printProgress(w io.Writer, p bam.Progress) {
	if p.Err != nil {
		fmt.Fprintf(w, "%s\t%s\t%s\t%v\n", p.Check, p.Object, p.Outcome, p.Err)
		return
	}
	fmt.Fprintf(w, "%s\t%s\t%s\n", p.Check, p.Object, p.Outcome)
}
