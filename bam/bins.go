// Copyright ©2012 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bam

const (
	indexWordBits = 29
	nextBinShift  = 3

	// intervalShift is the log2 of the width of the
	// linear index intervals.
	intervalShift = 14

	// intervalWidth is the width of the linear
	// index intervals.
	intervalWidth = 1 << intervalShift
)

const (
	level0 = uint32(((1 << (iota * nextBinShift)) - 1) / 7)
	level1
	level2
	level3
	level4
	level5
	levelEnd
)

const (
	level0Shift = indexWordBits - (iota * nextBinShift)
	level1Shift
	level2Shift
	level3Shift
	level4Shift
	level5Shift
)

const (
	// maxBin is one past the last valid bin number.
	maxBin = levelEnd

	// statsBin is the pseudo-bin holding reference statistics.
	statsBin = 0x924a
)

var (
	levelStart = [...]uint32{level0, level1, level2, level3, level4, level5}
	levelShift = [...]uint{level0Shift, level1Shift, level2Shift, level3Shift, level4Shift, level5Shift}
)

// reg2bin returns the bin for an alignment covering [beg,end)
// (zero-based, half-close-half-open).
func reg2bin(beg, end int) uint32 {
	end--
	switch {
	case beg>>level5Shift == end>>level5Shift:
		return level5 + uint32(beg>>level5Shift)
	case beg>>level4Shift == end>>level4Shift:
		return level4 + uint32(beg>>level4Shift)
	case beg>>level3Shift == end>>level3Shift:
		return level3 + uint32(beg>>level3Shift)
	case beg>>level2Shift == end>>level2Shift:
		return level2 + uint32(beg>>level2Shift)
	case beg>>level1Shift == end>>level1Shift:
		return level1 + uint32(beg>>level1Shift)
	}
	return level0
}

// binLevel returns the level of bin, from 0 for the whole reference bin
// to 5 for the 16kb bins. bin must be less than maxBin.
func binLevel(bin uint32) int {
	l := len(levelStart) - 1
	for bin < levelStart[l] {
		l--
	}
	return l
}

// binFirstInterval returns the index of the first 16kb interval covered
// by bin. bin must be in [0, maxBin).
func binFirstInterval(bin uint32) int {
	l := binLevel(bin)
	return int(bin-levelStart[l]) << (levelShift[l] - intervalShift)
}

// binIntervalCount returns the number of 16kb intervals covered by bin,
// from 1<<15 for bin 0 to 1 for the finest bins. bin must be in
// [0, maxBin).
func binIntervalCount(bin uint32) int {
	return 1 << (levelShift[binLevel(bin)] - intervalShift)
}
