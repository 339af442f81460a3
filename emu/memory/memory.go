/*
 * S390 - Absolute storage and storage-key array.
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

// Package memory implements the flat absolute-storage array shared by all
// CPUs in a configuration, plus the parallel storage-key table.
package memory

import "sync"

const (
	AMASK uint32 = 0x7fffffff // Mask address bits (31 bit real/absolute)

	// Storage key bits.
	KeyACC    uint8 = 0xf0 // Access control key
	KeyFetch  uint8 = 0x08 // Fetch protect bit
	KeyRef    uint8 = 0x04 // Reference bit
	KeyChange uint8 = 0x02 // Change bit

	// Key granularity, selected by translation format.
	FrameShift2K uint32 = 11
	FrameShift4K uint32 = 12
)

// FragInvalidate is called on every successful store, with the absolute
// address and span written. The default is a no-op; a JIT front end would
// hook this to flush cached instruction fragments that overlap the write.
var FragInvalidate func(addr, length uint32) = func(_, _ uint32) {}

// System owns the flat byte store and its key array for one configuration.
// It is created once at startup and shared by reference across every CPU
// context (see design notes in SPEC_FULL.md §9): no package-level globals.
type System struct {
	mu       sync.Mutex // guards the interlocked paths; ref/change updates are lock-free
	mem      []uint32   // storage, addressed in 4-byte words
	key      []uint8    // one entry per 2KiB/4KiB frame, see keyShift
	size     uint32     // size in bytes
	keyShift uint32     // FrameShift2K or FrameShift4K, active granularity
}

// NewSystem allocates sizeBytes (rounded down to a whole word) of absolute
// storage and a storage-key table at 4 KiB granularity.
func NewSystem(sizeBytes uint32) *System {
	sys := &System{
		size:     sizeBytes,
		keyShift: FrameShift4K,
	}
	sys.mem = make([]uint32, sizeBytes/4)
	sys.key = make([]uint8, (sizeBytes>>sys.keyShift)+1)
	return sys
}

// SetKeyGranularity selects 2 KiB or 4 KiB storage-key frames, driven by the
// active DAT format (one S/370 variant uses 2 KiB pages).
func (s *System) SetKeyGranularity(shift uint32) {
	if shift == s.keyShift {
		return
	}
	s.keyShift = shift
	s.key = make([]uint8, (s.size>>shift)+1)
}

// Size returns the configured size of absolute storage in bytes.
func (s *System) Size() uint32 {
	return s.size
}

// CheckAddr reports whether addr addresses configured storage.
func (s *System) CheckAddr(addr uint32) bool {
	return addr < s.size
}

func (s *System) frame(addr uint32) uint32 {
	return addr >> s.keyShift
}

// setRef sets the reference bit; this is architecturally a loose update and
// never needs the main-storage lock (spec.md §5).
func (s *System) setRef(addr uint32) {
	s.key[s.frame(addr)] |= KeyRef
}

func (s *System) setRefChange(addr uint32) {
	s.key[s.frame(addr)] |= KeyRef | KeyChange
}

// FetchFullwordAbsolute loads a big-endian fullword and sets the frame's
// reference bit. ok is false if addr is outside configured storage.
func (s *System) FetchFullwordAbsolute(addr uint32) (value uint32, ok bool) {
	if addr >= s.size {
		return 0, false
	}
	s.setRef(addr)
	return s.mem[addr>>2], true
}

// FetchHalfwordAbsolute loads the big-endian halfword at addr.
func (s *System) FetchHalfwordAbsolute(addr uint32) (value uint16, ok bool) {
	if addr >= s.size {
		return 0, false
	}
	s.setRef(addr)
	word := s.mem[addr>>2]
	if addr&2 != 0 {
		return uint16(word & 0xffff), true
	}
	return uint16(word >> 16), true
}

// FetchByteAbsolute loads a single byte at addr.
func (s *System) FetchByteAbsolute(addr uint32) (value uint8, ok bool) {
	if addr >= s.size {
		return 0, false
	}
	s.setRef(addr)
	word := s.mem[addr>>2]
	shift := 24 - 8*(addr&3)
	return uint8(word >> shift), true
}

// StoreFullwordAbsolute stores a big-endian fullword, sets ref+change bits,
// and runs the self-modifying-code invalidation hook.
func (s *System) StoreFullwordAbsolute(addr, value uint32) bool {
	if addr >= s.size {
		return false
	}
	s.setRefChange(addr)
	s.mem[addr>>2] = value
	FragInvalidate(addr, 4)
	return true
}

// StoreHalfwordAbsolute stores a big-endian halfword at addr.
func (s *System) StoreHalfwordAbsolute(addr uint32, value uint16) bool {
	if addr >= s.size {
		return false
	}
	s.setRefChange(addr)
	idx := addr >> 2
	if addr&2 != 0 {
		s.mem[idx] = (s.mem[idx] &^ 0xffff) | uint32(value)
	} else {
		s.mem[idx] = (s.mem[idx] &^ 0xffff0000) | (uint32(value) << 16)
	}
	FragInvalidate(addr, 2)
	return true
}

// StoreByteAbsolute stores a single byte at addr.
func (s *System) StoreByteAbsolute(addr uint32, value uint8) bool {
	if addr >= s.size {
		return false
	}
	s.setRefChange(addr)
	idx := addr >> 2
	shift := 24 - 8*(addr&3)
	mask := uint32(0xff) << shift
	s.mem[idx] = (s.mem[idx] &^ mask) | (uint32(value) << shift)
	FragInvalidate(addr, 1)
	return true
}

// Key returns the storage key of the frame containing addr.
func (s *System) Key(addr uint32) uint8 {
	if addr >= s.size {
		return 0
	}
	return s.key[s.frame(addr)]
}

// SetKey replaces the storage key of the frame containing addr. Callers are
// responsible for the privilege check (SSK is a privileged instruction).
func (s *System) SetKey(addr uint32, key uint8) {
	if addr < s.size {
		s.key[s.frame(addr)] = key
	}
}

// Lock/Unlock expose the main-storage lock for interlocked-update sequences
// (CS/CDS/CSP) that must serialize against every CPU, not just the key
// update. ref/change-only updates above never take this lock.
func (s *System) Lock()   { s.mu.Lock() }
func (s *System) Unlock() { s.mu.Unlock() }

// ApplyPrefixing swaps references to real addresses [0,4096) with the
// owning CPU's prefix frame, and vice versa (spec.md §4.1).
func ApplyPrefixing(real, prefix uint32) uint32 {
	switch {
	case real < 4096:
		return real | prefix
	case (real &^ 0xfff) == prefix:
		return real & 0xfff
	default:
		return real
	}
}

// ReversePrefixing is the exact inverse of ApplyPrefixing.
func ReversePrefixing(absolute, prefix uint32) uint32 {
	return ApplyPrefixing(absolute, prefix)
}
