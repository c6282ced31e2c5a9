// Copyright ©2015 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cache provides block caches for the bgzf package.
package cache

import (
	"github.com/biogo/bamx/bgzf"
)

var _ Cache = (*LRU)(nil)

// Cache is a bgzf.Cache that can be inspected and resized.
type Cache interface {
	bgzf.Cache

	// Len and Cap return the number of blocks held
	// and the number of blocks that can be held.
	Len() int
	Cap() int

	// Resize sets the capacity to n, evicting blocks
	// if more than n are held.
	Resize(n int)

	// Drop evicts n blocks.
	Drop(n int)
}

// LRU is a Cache that evicts the least recently used block. Blocks are
// handed out by Get and become most recently used when they are Put
// back.
type LRU struct {
	blocks map[int64]*entry

	// newest and oldest are the ends of the
	// recency list.
	newest, oldest *entry

	cap int

	hits, misses int
}

type entry struct {
	b            *bgzf.Block
	older, newer *entry
}

// NewLRU returns an LRU holding up to n blocks. It returns nil if n is
// less than 1.
func NewLRU(n int) *LRU {
	if n < 1 {
		return nil
	}
	return &LRU{blocks: make(map[int64]*entry, n), cap: n}
}

func (c *LRU) Len() int { return len(c.blocks) }

func (c *LRU) Cap() int { return c.cap }

// Stats returns the number of calls to Get that found and did not find
// a block.
func (c *LRU) Stats() (hits, misses int) { return c.hits, c.misses }

func (c *LRU) Resize(n int) {
	c.Drop(len(c.blocks) - n)
	c.cap = n
}

func (c *LRU) Drop(n int) {
	for ; n > 0 && c.oldest != nil; n-- {
		c.unlink(c.oldest)
	}
}

// Get removes and returns the block with the given base, or nil.
func (c *LRU) Get(base int64) *bgzf.Block {
	e, ok := c.blocks[base]
	if !ok {
		c.misses++
		return nil
	}
	c.hits++
	c.unlink(e)
	return e.b
}

// Put adds b as the most recently used block. A block already held
// for the same base is kept and b is not retained. When the cache is
// full the oldest block is evicted and returned.
func (c *LRU) Put(b *bgzf.Block) (evicted *bgzf.Block, retained bool) {
	if b == nil || c.cap < 1 {
		return b, false
	}
	if _, ok := c.blocks[b.Base]; ok {
		return nil, false
	}
	if len(c.blocks) >= c.cap {
		evicted = c.oldest.b
		c.unlink(c.oldest)
	}
	e := &entry{b: b, older: c.newest}
	if c.newest != nil {
		c.newest.newer = e
	} else {
		c.oldest = e
	}
	c.newest = e
	c.blocks[b.Base] = e
	return evicted, true
}

func (c *LRU) unlink(e *entry) {
	delete(c.blocks, e.b.Base)
	if e.older != nil {
		e.older.newer = e.newer
	} else {
		c.oldest = e.newer
	}
	if e.newer != nil {
		e.newer.older = e.older
	} else {
		c.newest = e.older
	}
	e.older, e.newer = nil, nil
}
