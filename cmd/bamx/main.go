// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// bamx inspects BAM files: it lists BGZF blocks, validates files and
// their BAI indexes, prints headers and prints the records of a region.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/grailbio/base/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/biogo/bamx/bam"
	"github.com/biogo/bamx/bgzf/cache"
)

var (
	indexPath string
	cacheSize int

	blockCache *cache.LRU
)

var rootCmd = &cobra.Command{
	Use:   "bamx",
	Short: "Inspect BAM files and their BAI indexes",
	Long: `bamx reads BAM files without htslib.

The index of a file is read from the path given by --index or, if that
is not set, from the file's path with a .bai suffix when it exists.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&indexPath, "index", "", "path to the BAI index")
	rootCmd.PersistentFlags().IntVar(&cacheSize, "cache", 0, "number of decompressed blocks to cache")
	rootCmd.AddCommand(blocksCmd, validateCmd, viewCmd, headerCmd)
}

// cancelSignals cancel the command context.
var cancelSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), cancelSignals...)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if blockCache != nil && log.At(log.Debug) {
		hits, misses := blockCache.Stats()
		log.Debug.Printf("bamx: block cache hits=%d misses=%d", hits, misses)
	}
	if err != nil {
		log.Error.Printf("bamx: %v", err)
		os.Exit(1)
	}
}

// openFile opens the BAM file at path with the index and cache given
// by the command line flags.
func openFile(path string) (*bam.File, error) {
	f, err := bam.OpenFile(path)
	if err != nil {
		return nil, err
	}
	if cacheSize > 0 {
		if blockCache == nil {
			blockCache = cache.NewLRU(cacheSize)
		}
		f.SetCache(blockCache)
	}
	if indexPath == "" {
		return f, nil
	}
	r, err := os.Open(indexPath)
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "open index")
	}
	defer r.Close()
	err = f.LoadIndex(r)
	if err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// openIndex returns the index reader for the BAM file at path, or nil
// if there is none.
func openIndex(path string) (*os.File, error) {
	p := indexPath
	if p == "" {
		p = path + ".bai"
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return nil, nil
		}
	}
	r, err := os.Open(p)
	if err != nil {
		return nil, errors.Wrap(err, "open index")
	}
	return r, nil
}
