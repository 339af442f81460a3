package memory

/*
 * S390 - Absolute storage and storage-key array tests.
 *
 * Copyright 2024, Richard Cornwell
 * Copyright 2026, S390x-emu contributors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

import (
	"testing"
)

func TestNewSystem(t *testing.T) {
	for _, kb := range []uint32{0, 4, 16, 1024} {
		sys := NewSystem(kb * 1024)
		if r := sys.Size(); r != kb*1024 {
			t.Errorf("Size not correct got: %d expected: %d", r, kb*1024)
		}
	}
}

func TestFetchStoreFullwordAbsolute(t *testing.T) {
	sys := NewSystem(4096)
	for i := range uint32(256) {
		sys.mem[i] = i
	}
	sys.key[0] = 0xf0
	sys.key[1] = 0xe0

	for i := range uint32(256) {
		j := i * 4
		r, ok := sys.FetchFullwordAbsolute(j)
		if !ok {
			t.Errorf("FetchFullwordAbsolute got error %d", j)
		}
		if r != i {
			t.Errorf("FetchFullwordAbsolute not correct got: %d expected: %d", r, i)
		}
	}

	// Above configured size must fail cleanly, never read neighbor storage.
	if _, ok := sys.FetchFullwordAbsolute(4096); ok {
		t.Errorf("FetchFullwordAbsolute did not report error above memory size")
	}

	k := sys.Key(0)
	if k != 0xf4 {
		t.Errorf("Key 0 not updated got: %02x expected: %02x", k, 0xf4)
	}
	k = sys.Key(4)
	if k != 0xf4 {
		t.Errorf("Key 0 not updated got: %02x expected: %02x", k, 0xf4)
	}

	for i := range uint32(256) {
		j := i * 4
		if ok := sys.StoreFullwordAbsolute(j, 2048-i); !ok {
			t.Errorf("StoreFullwordAbsolute got error %d", j)
		}
	}
	for i := range uint32(256) {
		j := i * 4
		r, _ := sys.FetchFullwordAbsolute(j)
		if r != 2048-i {
			t.Errorf("StoreFullwordAbsolute not correct got: %d expected: %d", r, 2048-i)
		}
	}
	if ok := sys.StoreFullwordAbsolute(4096, 0); ok {
		t.Errorf("StoreFullwordAbsolute did not report error above memory size")
	}
	if r, _ := sys.FetchFullwordAbsolute(4096 - 4); r == 0xffffffff {
		t.Errorf("StoreFullwordAbsolute wrote past configured size")
	}
}

func TestFetchStoreHalfwordAbsolute(t *testing.T) {
	sys := NewSystem(2048)
	sys.StoreFullwordAbsolute(0, 0x11223344)

	lo, ok := sys.FetchHalfwordAbsolute(2)
	if !ok || lo != 0x3344 {
		t.Errorf("FetchHalfwordAbsolute low half got: %04x expected: %04x", lo, 0x3344)
	}
	hi, ok := sys.FetchHalfwordAbsolute(0)
	if !ok || hi != 0x1122 {
		t.Errorf("FetchHalfwordAbsolute high half got: %04x expected: %04x", hi, 0x1122)
	}

	sys.StoreHalfwordAbsolute(0, 0xaabb)
	r, _ := sys.FetchFullwordAbsolute(0)
	if r != 0xaabb3344 {
		t.Errorf("StoreHalfwordAbsolute got: %08x expected: %08x", r, 0xaabb3344)
	}
	sys.StoreHalfwordAbsolute(2, 0xccdd)
	r, _ = sys.FetchFullwordAbsolute(0)
	if r != 0xaabbccdd {
		t.Errorf("StoreHalfwordAbsolute got: %08x expected: %08x", r, 0xaabbccdd)
	}

	if _, ok := sys.FetchHalfwordAbsolute(2048); ok {
		t.Errorf("FetchHalfwordAbsolute did not report error above memory size")
	}
	if ok := sys.StoreHalfwordAbsolute(2048, 0); ok {
		t.Errorf("StoreHalfwordAbsolute did not report error above memory size")
	}
}

func TestFetchStoreByteAbsolute(t *testing.T) {
	sys := NewSystem(2048)
	sys.StoreFullwordAbsolute(0, 0x11223344)

	for i, want := range []uint8{0x11, 0x22, 0x33, 0x44} {
		r, ok := sys.FetchByteAbsolute(uint32(i))
		if !ok || r != want {
			t.Errorf("FetchByteAbsolute(%d) got: %02x expected: %02x", i, r, want)
		}
	}

	sys.StoreByteAbsolute(1, 0xff)
	r, _ := sys.FetchFullwordAbsolute(0)
	if r != 0x11ff3344 {
		t.Errorf("StoreByteAbsolute got: %08x expected: %08x", r, 0x11ff3344)
	}

	if _, ok := sys.FetchByteAbsolute(2048); ok {
		t.Errorf("FetchByteAbsolute did not report error above memory size")
	}
	if ok := sys.StoreByteAbsolute(2048, 0); ok {
		t.Errorf("StoreByteAbsolute did not report error above memory size")
	}
}

func TestCheckAddr(t *testing.T) {
	sys := NewSystem(2048)

	if !sys.CheckAddr(1024) {
		t.Errorf("CheckAddr returned error below memory size")
	}
	if sys.CheckAddr(2048) {
		t.Errorf("CheckAddr did not return error at memory size")
	}
	if sys.CheckAddr(4096) {
		t.Errorf("CheckAddr did not return error above memory size")
	}
}

func TestKeySetKey(t *testing.T) {
	sys := NewSystem(8192)

	sys.SetKey(0, 0xf0)
	sys.SetKey(4096, 0xe0)

	if k := sys.Key(0); k != 0xf0 {
		t.Errorf("Key frame 0 got: %02x expected: %02x", k, 0xf0)
	}
	if k := sys.Key(4096); k != 0xe0 {
		t.Errorf("Key frame 1 got: %02x expected: %02x", k, 0xe0)
	}
	// Out-of-range SetKey is a silent no-op; Key reads back zero.
	sys.SetKey(8192, 0xff)
	if k := sys.Key(8192); k != 0 {
		t.Errorf("Key out of range got: %02x expected: %02x", k, 0)
	}
}

func TestSetKeyGranularity(t *testing.T) {
	sys := NewSystem(8192)
	sys.SetKey(4096, 0xa0)
	if k := sys.Key(4096); k != 0xa0 {
		t.Errorf("Key before granularity change got: %02x expected: %02x", k, 0xa0)
	}

	sys.SetKeyGranularity(FrameShift2K)
	// Switching granularity reallocates the key table; prior keys are gone.
	if k := sys.Key(4096); k != 0 {
		t.Errorf("Key after granularity change got: %02x expected: %02x", k, 0)
	}
	sys.SetKey(2048, 0xb0)
	if k := sys.Key(2048); k != 0xb0 {
		t.Errorf("Key at 2K granularity got: %02x expected: %02x", k, 0xb0)
	}
}

func TestApplyReversePrefixing(t *testing.T) {
	const prefix = 0x2000

	if r := ApplyPrefixing(0x100, prefix); r != (0x100 | prefix) {
		t.Errorf("ApplyPrefixing low page got: %08x expected: %08x", r, 0x100|prefix)
	}
	if r := ApplyPrefixing(prefix, prefix); r != 0 {
		t.Errorf("ApplyPrefixing prefix frame got: %08x expected: %08x", r, 0)
	}
	if r := ApplyPrefixing(0x9000, prefix); r != 0x9000 {
		t.Errorf("ApplyPrefixing unrelated address got: %08x expected: %08x", r, 0x9000)
	}

	for _, real := range []uint32{0, 0x100, 0xfff, prefix, prefix + 4, 0x9000} {
		absolute := ApplyPrefixing(real, prefix)
		back := ReversePrefixing(absolute, prefix)
		if back != real {
			t.Errorf("ReversePrefixing(ApplyPrefixing(%08x)) got: %08x expected: %08x", real, back, real)
		}
	}
}
