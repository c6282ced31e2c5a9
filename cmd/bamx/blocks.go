// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/exp/mmap"

	"github.com/biogo/bamx/bgzf"
)

var headersOnly bool

var blocksCmd = &cobra.Command{
	Use:   "blocks <file.bam>",
	Short: "List the BGZF blocks of a file",
	Long: `List the BGZF blocks of a file, one per line, giving the file offset
of the block, its size and any error found decoding it.

With --headers only the block headers are parsed and the size is the
compressed size. Otherwise each block is decompressed and the size is
the decompressed size.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := mmap.Open(args[0])
		if err != nil {
			return err
		}
		defer m.Close()

		w := bgzf.Blocks(m, int64(m.Len()))
		if headersOnly {
			w = bgzf.BlockHeaders(m, int64(m.Len()))
		}
		out := bufio.NewWriter(os.Stdout)
		defer out.Flush()
		var n, bad int
		for w.Next(cmd.Context()) {
			b := w.Block()
			n++
			if b.Err != nil {
				bad++
				fmt.Fprintf(out, "%d\t%d\t%v\n", b.Pos.File, b.Size, b.Err)
				if !w.Skip() {
					break
				}
				continue
			}
			fmt.Fprintf(out, "%d\t%d\n", b.Pos.File, b.Size)
		}
		if err := w.Err(); err != nil {
			return err
		}
		if bad != 0 {
			return fmt.Errorf("%d of %d blocks failed", bad, n)
		}
		return nil
	},
}

func init() {
	blocksCmd.Flags().BoolVar(&headersOnly, "headers", false, "parse block headers without decompressing")
}
