// Copyright ©2021 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pool holds the byte buffers that records are copied into when
// they outlive the decompression window they were read from.
package pool

import (
	"math/bits"
	"sync"
)

// classes holds one sync.Pool per power of two buffer capacity.
var classes [63]sync.Pool

func init() {
	for i := range classes {
		n := 1 << uint(i)
		classes[i].New = func() interface{} { return make([]byte, n) }
	}
}

// GetBuffer returns a buffer of length n. Its capacity is the smallest
// power of two not less than n.
func GetBuffer(n int) []byte {
	if n <= 0 {
		return nil
	}
	b := classes[class(uint(n))].Get().([]byte)
	return b[:n]
}

// PutBuffer returns b to its class for reuse. Buffers not obtained
// from GetBuffer are dropped.
func PutBuffer(b []byte) {
	c := cap(b)
	if c == 0 || c&(c-1) != 0 {
		return
	}
	classes[class(uint(c))].Put(b[:0])
}

// class returns the index of the class holding buffers of at least
// n bytes.
func class(n uint) int { return bits.Len(n - 1) }
