// Copyright ©2012 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bgzf_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/klauspost/compress/gzip"

	. "github.com/biogo/bamx/bgzf"
	"github.com/biogo/bamx/bgzf/cache"
	"github.com/biogo/bamx/errs"
	"github.com/biogo/bamx/internal/bgzftest"
)

func payload(n int, seed byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = seed + byte(i%17)
	}
	return b
}

func TestReadBlocks(t *testing.T) {
	want := [][]byte{payload(1000, 'a'), payload(300, 'A'), payload(bgzftest.BlockSize, '0')}
	var blocks [][]byte
	for _, w := range want {
		blocks = append(blocks, bgzftest.Block(w))
	}
	file, bases := bgzftest.Concat(append(blocks, bgzftest.EOF)...)

	r := NewReader(bytes.NewReader(file), int64(len(file)))
	if got := r.Position(); got != (Offset{File: bases[0]}) {
		t.Errorf("unexpected position before first block: got:%v want:%v", got, Offset{File: bases[0]})
	}
	for i, w := range want {
		b, err := r.ReadBlock()
		if err != nil {
			t.Fatalf("ReadBlock %d: %v", i, err)
		}
		if !bytes.Equal(b, w) {
			t.Errorf("block %d data mismatch", i)
		}
		if got := r.Position(); got != (Offset{File: bases[i]}) {
			t.Errorf("unexpected position after block %d: got:%v want:%v", i, got, Offset{File: bases[i]})
		}
	}
	b, err := r.ReadBlock()
	if err != nil {
		t.Fatalf("ReadBlock EOF marker: %v", err)
	}
	if len(b) != 0 {
		t.Errorf("expected empty EOF block, got %d bytes", len(b))
	}
	_, err = r.ReadBlock()
	if err != io.EOF {
		t.Errorf("expected io.EOF at end of file, got:%v", err)
	}
}

func TestReadAcrossBlocks(t *testing.T) {
	data := payload(3*4096+11, 'x')
	file, _ := bgzftest.Compress(data, 4096)
	r := NewReader(bytes.NewReader(file), int64(len(file)))
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("data mismatch: got %d bytes want %d", len(got), len(data))
	}
}

// TestBadBlockSize checks that a wrong BC subfield is reported at the
// block carrying it and not before. A declared size that is too large
// leaves unread payload; one that is too small cuts the deflate body
// and may surface as any format error.
func TestBadBlockSize(t *testing.T) {
	for _, test := range []struct {
		delta int
		want  error
	}{
		{delta: 4, want: ErrBlockSize},
		{delta: -4},
	} {
		first := bgzftest.Block(payload(500, 'a'))
		second := bgzftest.Block(payload(500, 'b'))
		bad := append([]byte(nil), second...)
		bsize := int(binary.LittleEndian.Uint16(bad[16:]))
		binary.LittleEndian.PutUint16(bad[16:], uint16(bsize+test.delta))
		file, _ := bgzftest.Concat(first, bad, bgzftest.Block(payload(10, 'c')), bgzftest.EOF)

		r := NewReader(bytes.NewReader(file), int64(len(file)))
		_, err := r.ReadBlock()
		if err != nil {
			t.Fatalf("delta %d: unexpected error for first block: %v", test.delta, err)
		}
		_, err = r.ReadBlock()
		if err == nil {
			t.Errorf("delta %d: expected error for second block", test.delta)
			continue
		}
		if test.want != nil && !errors.Is(err, test.want) {
			t.Errorf("delta %d: unexpected error: got:%v want:%v", test.delta, err, test.want)
		}
		if !errs.Is(errs.Format, err) {
			t.Errorf("delta %d: expected format error kind, got:%v", test.delta, errs.KindOf(err))
		}
		var e *errs.Error
		if !errors.As(err, &e) || e.Object != fmt.Sprintf("block at %d", len(first)) {
			t.Errorf("delta %d: error not reported at failing block: %v", test.delta, err)
		}
	}
}

func TestChecksum(t *testing.T) {
	b := bgzftest.Block(payload(100, 'q'))
	b[len(b)-8] ^= 0xff
	r := NewReader(bytes.NewReader(b), int64(len(b)))
	_, err := r.ReadBlock()
	if !errors.Is(err, ErrChecksum) {
		t.Errorf("expected checksum error, got:%v", err)
	}
}

func TestSizeMismatch(t *testing.T) {
	b := bgzftest.Block(payload(100, 'q'))
	b[len(b)-4]++
	r := NewReader(bytes.NewReader(b), int64(len(b)))
	_, err := r.ReadBlock()
	if !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("expected size mismatch error, got:%v", err)
	}
}

func TestNotBGZF(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	gz.Write([]byte("plain gzip member"))
	gz.Close()
	r := NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	_, err := r.ReadBlock()
	if !errors.Is(err, ErrNotBGZF) {
		t.Errorf("expected not BGZF error, got:%v", err)
	}

	text := []byte("not even gzip at all")
	r = NewReader(bytes.NewReader(text), int64(len(text)))
	_, err = r.ReadBlock()
	if !errors.Is(err, ErrNotBGZF) {
		t.Errorf("expected not BGZF error, got:%v", err)
	}
}

func TestSetPositionIdempotent(t *testing.T) {
	data := payload(5*1000, 'k')
	file, bases := bgzftest.Compress(data, 1000)
	r := NewReader(bytes.NewReader(file), int64(len(file)))
	for _, p := range []Offset{
		{File: bases[3], Block: 10},
		{File: bases[0]},
		{File: bases[4], Block: 999},
		{File: bases[1], Block: 1000},
		{File: bases[2]},
		{File: bases[2], Block: 1},
	} {
		err := r.SetPosition(p)
		if err != nil {
			t.Fatalf("SetPosition(%v): %v", p, err)
		}
		if got := r.Position(); got != p {
			t.Errorf("unexpected position after SetPosition: got:%v want:%v", got, p)
		}
		var c [1]byte
		_, err = r.Read(c[:])
		if err != nil {
			t.Fatalf("Read after SetPosition(%v): %v", p, err)
		}
		i := 0
		for i < len(bases) && bases[i] != p.File {
			i++
		}
		if want := data[i*1000+int(p.Block)]; c[0] != want {
			t.Errorf("unexpected byte after SetPosition(%v): got:%q want:%q", p, c[0], want)
		}
	}

	err := r.SetPosition(Offset{File: bases[0], Block: 1001})
	if !errors.Is(err, ErrBadOffset) {
		t.Errorf("expected bad offset error, got:%v", err)
	}
}

func TestWalk(t *testing.T) {
	data := payload(4*2000, 'w')
	file, bases := bgzftest.Compress(data, 2000)
	for _, walk := range []func(io.ReaderAt, int64) *Walker{Blocks, BlockHeaders} {
		w := walk(bytes.NewReader(file), int64(len(file)))
		var got []int64
		for w.Next(context.Background()) {
			b := w.Block()
			if b.Err != nil {
				t.Fatalf("unexpected block error: %v", b.Err)
			}
			got = append(got, b.Pos.File)
		}
		if w.Err() != nil {
			t.Errorf("unexpected walk error: %v", w.Err())
		}
		// The EOF block is reported as a block.
		if len(got) != len(bases)+1 {
			t.Errorf("unexpected block count: got:%d want:%d", len(got), len(bases)+1)
		}
	}
}

// TestWalkTruncated checks that a truncated final block is the only
// block reported as failing.
func TestWalkTruncated(t *testing.T) {
	data := payload(3*2000, 't')
	file, bases := bgzftest.Compress(data, 2000)
	file = file[:len(file)-len(bgzftest.EOF)]
	file = file[:len(file)-10]

	for _, walk := range []func(io.ReaderAt, int64) *Walker{Blocks, BlockHeaders} {
		w := walk(bytes.NewReader(file), int64(len(file)))
		var (
			good   int
			failed []error
		)
		for w.Next(context.Background()) {
			b := w.Block()
			if b.Err != nil {
				failed = append(failed, b.Err)
				if b.Pos.File != bases[len(bases)-1] {
					t.Errorf("error reported at unexpected block: %v", b.Pos)
				}
				continue
			}
			good++
		}
		if good != len(bases)-1 {
			t.Errorf("unexpected number of good blocks: got:%d want:%d", good, len(bases)-1)
		}
		if len(failed) != 1 || !errors.Is(failed[0], ErrTruncated) {
			t.Errorf("expected a single truncation error, got:%v", failed)
		}
		if !errors.Is(w.Err(), ErrTruncated) {
			t.Errorf("expected walk to stop with truncation, got:%v", w.Err())
		}
	}
}

func TestWalkSkip(t *testing.T) {
	first := bgzftest.Block(payload(500, 'a'))
	bad := bgzftest.Block(payload(500, 'b'))
	bad[len(bad)-8] ^= 0xff
	last := bgzftest.Block(payload(500, 'c'))
	file, bases := bgzftest.Concat(first, bad, last, bgzftest.EOF)

	w := Blocks(bytes.NewReader(file), int64(len(file)))
	var seen []int64
	for w.Next(context.Background()) {
		b := w.Block()
		if b.Err != nil {
			if !errors.Is(b.Err, ErrChecksum) {
				t.Errorf("unexpected error: %v", b.Err)
			}
			if !w.Skip() {
				t.Fatal("failed to skip bad block")
			}
			continue
		}
		seen = append(seen, b.Pos.File)
	}
	if w.Err() != nil {
		t.Errorf("unexpected walk error: %v", w.Err())
	}
	want := []int64{bases[0], bases[2], bases[3]}
	if len(seen) != len(want) {
		t.Fatalf("unexpected blocks: got:%v want:%v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("unexpected block %d: got:%d want:%d", i, seen[i], want[i])
		}
	}
}

func TestWalkCanceled(t *testing.T) {
	file, _ := bgzftest.Compress(payload(10000, 'z'), 1000)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := Blocks(bytes.NewReader(file), int64(len(file)))
	var n int
	for w.Next(ctx) {
		n++
		if n == 3 {
			cancel()
		}
	}
	if n != 3 {
		t.Errorf("walk did not stop promptly: %d blocks", n)
	}
	if !errs.Is(errs.Canceled, w.Err()) {
		t.Errorf("expected cancellation, got:%v", w.Err())
	}
}

func TestHasEOF(t *testing.T) {
	file, _ := bgzftest.Compress(payload(100, 'e'), 0)
	ok, err := HasEOF(bytes.NewReader(file), int64(len(file)))
	if err != nil || !ok {
		t.Errorf("expected EOF marker: ok=%t err=%v", ok, err)
	}
	trimmed := file[:len(file)-len(bgzftest.EOF)]
	ok, err = HasEOF(bytes.NewReader(trimmed), int64(len(trimmed)))
	if err != nil || ok {
		t.Errorf("unexpected EOF marker: ok=%t err=%v", ok, err)
	}
}

func TestCache(t *testing.T) {
	data := payload(3*1000, 'c')
	file, bases := bgzftest.Compress(data, 1000)
	r := NewReader(bytes.NewReader(file), int64(len(file)))
	c := cache.NewLRU(2)
	r.SetCache(c)
	for i := 0; i < 2; i++ {
		for j, base := range bases {
			err := r.SetPosition(Offset{File: base})
			if err != nil {
				t.Fatalf("SetPosition: %v", err)
			}
			b, err := r.ReadBlock()
			if err != nil {
				t.Fatalf("ReadBlock: %v", err)
			}
			if !bytes.Equal(b, data[j*1000:(j+1)*1000]) {
				t.Errorf("block %d mismatch on pass %d", j, i)
			}
			if got := r.Position(); got != (Offset{File: base}) {
				t.Errorf("unexpected position: got:%v want:%v", got, Offset{File: base})
			}
		}
	}
	if c.Len() != 2 {
		t.Errorf("unexpected cache length: got:%d want:2", c.Len())
	}
}
