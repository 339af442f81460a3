/*
   Dynamic address translation: segment/page table walk, TLB, PTLB, and
   real/absolute prefixing. Grounded on the teacher's single-level S/370
   transAddr() in cpu.go and generalized using _examples/original_source/
   dat.c's translate_addr() for which STD a reference uses before the
   table walk starts (instruction fetch vs. operand vs. AR-mode vs.
   primary/secondary/home-space addressing, spec.md §4.2/§4.3).

   Copyright (c) 2024, Richard Cornwell
   Copyright (c) 2026, S390x-emu contributors

   Permission is hereby granted, free of charge, to any person obtaining a
   copy of this software and associated documentation files (the "Software"),
   to deal in the Software without restriction, including without limitation
   the rights to use, copy, modify, merge, publish, distribute, sublicense,
   and/or sell copies of the Software, and to permit persons to whom the
   Software is furnished to do so, subject to the following conditions:

   The above copyright notice and this permission notice shall be included in
   all copies or substantial portions of the Software.

   THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
   IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
   FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.  IN NO EVENT SHALL
   THE AUTHORS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
   IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
   CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
*/

package cpu

const (
	pteValid uint32 = 0x80000000 // segment-table-entry invalid bit, shifted into the STE word
	pteAddr  uint32 = 0x00fffff8 // page-table origin field within a segment-table entry
)

// effectiveSTD picks the segment/region-table designation a reference
// uses, per dat.c's translate_addr(): instruction fetch and most operand
// references use the PSW addressing mode; LRA, SSAR-style accesses, and
// access-register-mode references (routed through ART, cpu_art.go) are
// the exceptions carved out by acc/arIndex.
func (cpu *CPU) effectiveSTD(acc accType, arIndex int) (std uint32, prot bool) {
	switch {
	case arIndex == UseRealAddr:
		return 0, false
	case arIndex == UsePrimary || acc == AccInstFetch:
		return cpu.cregs[1], false
	case arIndex == UseSecondary:
		return cpu.cregs[7], false
	case arIndex == UseStack || acc == AccStack:
		if cpu.asMode == asHome {
			return cpu.cregs[13], false
		}
		return cpu.cregs[1], false
	case arIndex >= 0:
		// Access-register mode: translateAddr does not run ART
		// (resolveAR in cpu_art.go has no caller), so every access
		// register, AR 0 included, selects the primary STD here.
		if arIndex == 0 {
			return cpu.cregs[1], false
		}
		return cpu.cregs[1], false
	default:
		switch cpu.asMode {
		case asSecondary:
			return cpu.cregs[7], false
		case asHome:
			return cpu.cregs[13], false
		default:
			return cpu.cregs[1], false
		}
	}
}

// translateAddr walks the active-format segment/page tables for virtAddr
// under std, consulting and refilling the per-CPU TLB (AccLRA probes
// neither read nor change the TLB). acc selects the
// access-type-specific checks (spec.md §4.2/§4.4); arIndex selects which
// STD per effectiveSTD, or UseRealAddr to bypass translation entirely
// (real-mode references and the second half of an LRA probe).
func (cpu *CPU) translateAddr(virtAddr uint32, acc accType, arIndex int) (uint32, uint16) {
	addr := virtAddr & AMASK

	if !cpu.pageEnb || arIndex == UseRealAddr {
		return cpu.applyPrefix(addr), 0
	}

	std, _ := cpu.effectiveSTD(acc, arIndex)

	page := addr >> cpu.pageShift
	tlbIndex := page & 0xff

	entry := cpu.tlb[tlbIndex]
	if acc != AccLRA && entry.valid && entry.std == std && entry.vpage == page {
		return cpu.applyPrefix((addr & cpu.pageMask) | entry.pte), 0
	}

	if acc != AccLRA {
		cpu.tlb[tlbIndex].valid = false
	}

	seg := (addr >> cpu.segShift) & cpu.segMask
	segLen := (((std >> 24) & 0xff) + 1) << 4
	if seg > segLen {
		cpu.tea = addr
		return 0, ircSeg
	}

	steAddr := cpu.applyPrefix(((seg << 2) + (std & AMASK)) & AMASK)
	ste, ok := cpu.sys.Mem.FetchFullwordAbsolute(steAddr)
	if !ok {
		return 0, ircAddr
	}

	pageIdx := (addr >> cpu.pageShift) & cpu.pageIndex
	tableLen := (ste >> 28) + 1
	if (ste&pteValid) != 0 || (pageIdx>>cpu.pteLenShift) >= tableLen {
		cpu.tea = addr
		if (ste & pteValid) != 0 {
			return 0, ircSeg
		}
		return 0, ircPage
	}

	pteWordAddr := cpu.applyPrefix(((ste & pteAddr) + (pageIdx << 1)) & AMASK)
	pteWord, ok := cpu.sys.Mem.FetchFullwordAbsolute(pteWordAddr)
	if !ok {
		return 0, ircAddr
	}
	if (pteWordAddr & 2) != 0 {
		pteWord >>= 16
	}
	pteWord &= 0xffff

	if (pteWord & cpu.pteMBZ) != 0 {
		cpu.tea = addr
		return 0, ircSpec
	}
	if (pteWord & cpu.pteAvail) != 0 {
		cpu.tea = addr
		return 0, ircPage
	}

	frame := (pteWord >> cpu.pteShift) << cpu.pageShift
	if acc == AccLRA {
		return cpu.applyPrefix((addr & cpu.pageMask) | frame), 0
	}
	cpu.tlb[tlbIndex] = tlbEntry{
		std:     std,
		vpage:   page,
		pte:     frame,
		protect: (pteWord & (cpu.pteMBZ >> 1)) != 0,
		valid:   true,
	}

	return cpu.applyPrefix((addr & cpu.pageMask) | frame), 0
}

// applyPrefix swaps low-core references with this CPU's prefix frame
// (spec.md C2).
func (cpu *CPU) applyPrefix(real uint32) uint32 {
	switch {
	case real < 4096:
		return real | cpu.prefix
	case (real &^ 0xfff) == cpu.prefix:
		return real & 0xfff
	default:
		return real
	}
}

// purgeTLB invalidates every entry in this CPU's TLB (PTLB, spec.md
// §4.2 C12). Callers needing a configuration-wide purge go through
// broadcastPurgeTLB in cpu_sigp.go instead.
func (cpu *CPU) purgeTLB() {
	for i := range cpu.tlb {
		cpu.tlb[i].valid = false
	}
}

// invalidatePageTableEntry drops any TLB entry whose translated frame
// matches pfra, the real-storage frame IPTE names (spec.md §4.2 edge
// case: IPTE must not leave a stale TLB entry pointing at a PTE the
// instruction just invalidated).
func (cpu *CPU) invalidatePageTableEntry(pfra uint32) {
	for i := range cpu.tlb {
		if cpu.tlb[i].valid && cpu.tlb[i].pte == (pfra&^cpu.pageMask) {
			cpu.tlb[i].valid = false
		}
	}
}
