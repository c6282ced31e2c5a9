// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !unix

package bgzf

func physBufferSize() int { return physBufferTarget }
