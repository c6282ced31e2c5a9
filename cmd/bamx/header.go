// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rawHeader bool

var headerCmd = &cobra.Command{
	Use:   "header <file.bam>",
	Short: "Print the header of a file",
	Long: `Print the header of a file as SAM text. With --raw the text
stored in the file is printed unaltered.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := openFile(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		h := f.Header()
		if rawHeader {
			_, err = os.Stdout.Write(h.Text())
			return err
		}
		_, err = fmt.Fprint(os.Stdout, h)
		return err
	},
}

func init() {
	headerCmd.Flags().BoolVar(&rawHeader, "raw", false, "print the stored header text")
}
