// Copyright ©2012 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sam

// Flags is the bitwise FLAG field of an alignment record.
type Flags uint16

const (
	Paired        Flags = 1 << iota // 0x001 template has multiple segments
	ProperPair                      // 0x002 segments properly aligned
	Unmapped                        // 0x004 segment unmapped
	MateUnmapped                    // 0x008 next segment unmapped
	Reverse                         // 0x010 sequence reverse complemented
	MateReverse                     // 0x020 next segment reverse complemented
	Read1                           // 0x040 first segment
	Read2                           // 0x080 last segment
	Secondary                       // 0x100 secondary alignment
	QCFail                          // 0x200 fails quality checks
	Duplicate                       // 0x400 PCR or optical duplicate
	Supplementary                   // 0x800 supplementary alignment
)

// pairedMask holds the bits that are only meaningful for paired reads.
const pairedMask = ProperPair | MateUnmapped | MateReverse | Read1 | Read2

// flagSymbols holds the letter for each bit, lowest bit first.
const flagSymbols = "pPuUrR12sfdS"

// Has returns whether all the bits in m are set in f.
func (f Flags) Has(m Flags) bool { return f&m == m }

// String returns one character per bit, lowest bit first, with '-'
// for unset bits. The letters are pPuUrR12sfdS. Pairing bits of an
// unpaired read are shown as unset.
func (f Flags) String() string {
	if !f.Has(Paired) {
		f &^= pairedMask
	}
	b := []byte("------------")
	for i := range b {
		if f>>uint(i)&1 != 0 {
			b[i] = flagSymbols[i]
		}
	}
	return string(b)
}
