// Copyright ©2012 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bgzf

// Cache is a decompressed Block caching type. A basic LRU implementation
// is provided in the cache package.
type Cache interface {
	// Get returns the Block in the Cache with the specified
	// base or a nil Block if it does not exist. The returned
	// Block is removed from the Cache.
	Get(base int64) *Block

	// Put inserts a Block into the Cache, returning the Block
	// that was evicted or nil if no eviction was necessary and
	// a boolean indicating whether the put Block was retained
	// by the Cache.
	Put(*Block) (evicted *Block, retained bool)
}

// Block is a decompressed BGZF block.
type Block struct {
	// Base is the file offset of the start of
	// the gzip member the Block was decompressed
	// from and Size is the compressed size of
	// that member.
	Base int64
	Size int

	// Data is the decompressed data. It must
	// not be altered.
	Data []byte
}
