// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build unix

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/check.v1"
)

func (s *S) TestTerminateCancels(c *check.C) {
	ctx, stop := signal.NotifyContext(context.Background(), cancelSignals...)
	defer stop()

	c.Assert(syscall.Kill(os.Getpid(), syscall.SIGTERM), check.Equals, nil)
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		c.Fatal("context not canceled by SIGTERM")
	}
}
