// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build unix

package bgzf

import "golang.org/x/sys/unix"

// physBufferSize returns the size of the compressed read buffer,
// rounded up to a whole number of pages.
func physBufferSize() int {
	page := unix.Getpagesize()
	return (physBufferTarget + page - 1) / page * page
}
