// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bgzftest provides BGZF encoding helpers for tests.
package bgzftest

import (
	"bytes"
	"encoding/binary"

	"github.com/klauspost/compress/gzip"
)

// BlockSize is the largest amount of data placed in a single block
// by Compress.
const BlockSize = 0xff00

// EOF is the BGZF magic EOF block.
var EOF = []byte{
	0x1f, 0x8b, 0x08, 0x04, 0x00, 0x00, 0x00, 0x00,
	0x00, 0xff, 0x06, 0x00, 0x42, 0x43, 0x02, 0x00,
	0x1b, 0x00, 0x03, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
}

// Block returns data compressed as a single BGZF block. It panics if
// data is longer than BlockSize.
func Block(data []byte) []byte {
	if len(data) > BlockSize {
		panic("bgzftest: block too large")
	}
	var buf bytes.Buffer
	gz, err := gzip.NewWriterLevel(&buf, gzip.DefaultCompression)
	if err != nil {
		panic(err)
	}
	gz.Header.Extra = []byte{'B', 'C', 2, 0, 0, 0}
	gz.Header.OS = 0xff
	_, err = gz.Write(data)
	if err != nil {
		panic(err)
	}
	err = gz.Close()
	if err != nil {
		panic(err)
	}
	b := buf.Bytes()
	binary.LittleEndian.PutUint16(b[16:18], uint16(len(b)-1))
	return b
}

// Compress returns data compressed into blocks holding at most size
// bytes each, followed by the EOF block. The file offsets of the start
// of each data block are returned in bases.
func Compress(data []byte, size int) (file []byte, bases []int64) {
	if size <= 0 || size > BlockSize {
		size = BlockSize
	}
	for len(data) > 0 {
		n := size
		if n > len(data) {
			n = len(data)
		}
		bases = append(bases, int64(len(file)))
		file = append(file, Block(data[:n])...)
		data = data[n:]
	}
	return append(file, EOF...), bases
}

// Concat returns the concatenation of the given blocks and the offset
// of the start of each.
func Concat(blocks ...[]byte) (file []byte, bases []int64) {
	for _, b := range blocks {
		bases = append(bases, int64(len(file)))
		file = append(file, b...)
	}
	return file, bases
}
