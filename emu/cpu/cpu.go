/*
   CPU: instruction fetch, decode, and the interrupt-dispatch loop shared
   by every architecture mode this engine supports.

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

import (
	"fmt"

	debug "github.com/s390x-emu/core/util/debug"

	mem "github.com/s390x-emu/core/emu/memory"
)

/*
   Instructions range from 2 bytes to 6 bytes, in the following formats.
   Addresses are a 12 bit offset and one or two index registers; index
   register 0 always contributes zero.

    RR format:  (Register to Register).

      +----+----+----+----+
      |   op    | R1 | R2 |
      +----+----+----+----+

    RX format:  (Memory to Register).
      +----+----+----+----+----+----+----+----+
      |   op    | R1 | B2 | D2 |   Offset2    |
      +----+----+----+----+----+----+----+----+

    RS format:  (Memory to Register).
      +----+----+----+----+----+----+----+----+
      |   op    | R1 | R3 | D2 |   Offset2    |
      +----+----+----+----+----+----+----+----+

    SI format:  (Immediate to Memory).
      +----+----+----+----+----+----+----+----+
      |   op    |  Immed  | D1 |   Offset1    |
      +----+----+----+----+----+----+----+----+

    SS format:  (Memory to Memory).
      +----+----+----+----+----+----+----+----+----+----+----+----+
      |   op    |  Length | D1 |   Offset1    | D2 |   Offset2    |
      +----+----+----+----+----+----+----+----+----+----+----+----+
*/

// NewCPU creates a CPU bound to sys at the given ordinal address, ready
// for InitializeCPU. Construction does not modify sys; callers append the
// CPU to sys.CPUs and own the sequencing of SIGP start/stop.
func NewCPU(sys *System, cpuID int, arch Arch) *CPU {
	cpu := &CPU{sys: sys, CPUID: cpuID, arch: arch, online: true, run: StateStopped}
	cpu.createTable()
	return cpu
}

// InitializeCPU resets cpu to its architected power-on state (spec.md
// §9): general, access and control registers, TLB and ALB cleared, then
// the reset values of CR0, CR2, CR14 and CR15 loaded. Of the DAT format
// fields only pageMask is cleared; setTranslationFormat is not called, so
// the page and segment shifts keep their previous values.
func (cpu *CPU) InitializeCPU() {
	cpu.PC = 0
	cpu.sysMask = 0
	cpu.stKey = 0
	cpu.cc = 0
	cpu.ilc = 0
	cpu.progMask = 0
	cpu.flags = 0
	cpu.perRegMod = 0
	cpu.perAddr = 0
	cpu.perCode = 0
	cpu.clkCmp = ^uint64(0)
	cpu.timerTics = 0
	cpu.cpuTimer = 0
	cpu.perEnb = false
	cpu.ecMode = false
	cpu.pageEnb = false
	cpu.irqEnb = false
	cpu.extEnb = false
	cpu.extIrq = false
	cpu.intIrq = false
	cpu.intEnb = false
	cpu.todEnb = false
	cpu.todIrq = false
	cpu.asMode = asPrimary

	for i := range 16 {
		cpu.regs[i] = 0
		cpu.regsHigh[i] = 0
		cpu.cregs[i] = 0
		cpu.ars[i] = 0
	}

	cpu.cregs[0] = 0x000000e0
	cpu.cregs[2] = 0xffffffff
	cpu.cregs[14] = 0xc2000000
	cpu.cregs[15] = 512

	cpu.purgeTLB()
	for i := range cpu.alb {
		cpu.alb[i].valid = false
	}

	cpu.pageMask = 0
	cpu.run = StateStopped
}

// Online reports whether this CPU is configured into the system (spec.md
// §4.8's distinction between an offline CPU and one that is merely
// stopped by SIGP).
func (cpu *CPU) Online() bool {
	cpu.mu.Lock()
	defer cpu.mu.Unlock()
	return cpu.online
}

// PostExtIrq posts a pending external interrupt (malfunction alert,
// emergency signal, or the external-call class). spec.md §4.8 leaves the
// sampling point here and the source abstract.
func (cpu *CPU) PostExtIrq() {
	cpu.sys.IntLock.Lock()
	cpu.extIrq = true
	cpu.sys.IntLock.Unlock()
}

// CycleCPU executes one instruction, or dispatches one pending
// interrupt, returning the number of storage cycles charged and whether
// the CPU made forward progress (false only on an uninterruptible wait,
// spec.md §4.8's stopped-CPU edge case).
func (cpu *CPU) CycleCPU() (int, bool) {
	cpu.memCycle = 1

	if cpu.extEnb {
		if cpu.extIrq {
			if !cpu.ecMode || (cpu.cregs[0]&0x20) != 0 || (cpu.cregs[6]&0x40) != 0 {
				cpu.extIrq = false
				cpu.suppress(oEPSW, 0x40)
				return cpu.memCycle, true
			}
		}
		if cpu.servSig && (cpu.cregs[0]&0x200) != 0 {
			cpu.servSig = false
			cpu.suppress(oEPSW, 0x2401)
			return cpu.memCycle, true
		}
		if cpu.extcall && (cpu.cregs[0]&0x2000) != 0 {
			cpu.extcall = false
			cpu.suppress(oEPSW, 0x1201)
			return cpu.memCycle, true
		}
		if cpu.emersig && (cpu.cregs[0]&0x4000) != 0 {
			cpu.emersig = false
			cpu.suppress(oEPSW, 0x1202)
			return cpu.memCycle, true
		}
		if cpu.intIrq && (cpu.cregs[0]&0x80) != 0 {
			cpu.intIrq = false
			cpu.suppress(oEPSW, 0x80)
			return cpu.memCycle, true
		}
		if cpu.clkIrq && cpu.intEnb {
			cpu.clkIrq = false
			cpu.suppress(oEPSW, 0x1005)
			return cpu.memCycle, true
		}
		if cpu.todIrq && cpu.todEnb {
			cpu.todIrq = false
			cpu.suppress(oEPSW, 0x1004)
			return cpu.memCycle, true
		}
	}

	if !cpu.irqEnb && (cpu.flags&wait) != 0 {
		return 1, false
	}

	if (cpu.flags & wait) != 0 {
		return cpu.memCycle, true
	}

	return cpu.fetch()
}

func (cpu *CPU) fetch() (int, bool) {
	if (cpu.PC & 1) != 0 {
		cpu.suppress(oPPSW, ircSpec)
		return cpu.memCycle, true
	}

	if cpu.perEnb && cpu.perFetch {
		cpu.perAddrCheck(cpu.PC, 0x4000)
	}

	var opr uint32
	var step stepInfo

	word, err := cpu.readFullAligned(cpu.PC)
	if err != 0 {
		cpu.suppress(oPPSW, err)
		return cpu.memCycle, true
	}

	if (cpu.PC & 2) == 0 {
		opr = (word >> 16) & 0xffff
	} else {
		opr = word & 0xffff
	}

	cpu.ilc = 1
	step.opcode = uint8((opr >> 8) & 0xff)
	step.reg = uint8(opr & 0xff)
	step.R1 = (step.reg >> 4) & 0xf
	step.R2 = step.reg & 0xf

	cpu.perRegMod = 0
	cpu.perCode = 0
	cpu.perAddr = cpu.PC
	cpu.iPC = cpu.PC

	cpu.PC += 2

	if (step.opcode & 0xc0) != 0 {
		cpu.ilc++
		if (cpu.PC & 2) == 0 {
			word, err = cpu.readFullAligned(cpu.PC)
			if err != 0 {
				cpu.suppress(oPPSW, err)
				return cpu.memCycle, true
			}
			step.address1 = word >> 16
		} else {
			step.address1 = word
		}
		step.address1 &= 0xffff
		cpu.PC += 2
	}

	if (step.opcode & 0xc0) == 0xc0 {
		cpu.ilc++
		if (cpu.PC & 2) == 0 {
			word, err = cpu.readFullAligned(cpu.PC)
			if err != 0 {
				cpu.suppress(oPPSW, err)
				return cpu.memCycle, true
			}
			step.address2 = word >> 16
		} else {
			step.address2 = word
		}
		step.address2 &= 0xffff
		cpu.PC += 2
	}

	err = cpu.execute(&step)
	if err != 0 {
		cpu.suppress(oPPSW, err)
	}

	if cpu.perEnb && cpu.perCode != 0 {
		cpu.suppress(oPPSW, 0)
	}
	return cpu.memCycle, true
}

// execute computes operand addresses, reads register/memory operands,
// and dispatches to the opcode handler table.
func (cpu *CPU) execute(step *stepInfo) uint16 {
	if instrDebugMask != 0 {
		debug.Debugf(fmt.Sprintf("cpu%d", cpu.CPUID), instrDebugMask, debugInstr,
			"PC=%08x op=%02x r=%02x", cpu.iPC, step.opcode, step.reg)
	}
	if (step.opcode & 0xc0) != 0 { // RS, RX, SS
		indexReg := (step.address1 >> 12) & 0xf
		step.address1 &= 0xfff
		if indexReg != 0 {
			step.address1 += cpu.regs[indexReg]
		}
		step.address1 &= AMASK
		step.src1 = step.address1
		switch step.opcode & 0xc0 {
		case 0x40:
			if step.R2 != 0 {
				step.address1 += cpu.regs[step.R2]
			}
		case 0xc0:
			indexReg = (step.address2 >> 12) & 0xf
			step.address2 &= 0xfff
			if indexReg != 0 {
				step.address2 += cpu.regs[indexReg]
			}
			step.address2 &= AMASK
		}
	}

	var err uint16

	switch step.opcode & 0xe0 {
	case 0x00:
		step.src1 = cpu.regs[step.R1]
		step.src2 = cpu.regs[step.R2]
		step.address1 = step.src2 & AMASK
	case 0x40:
		step.src1 = cpu.regs[step.R1]
		step.src2 = step.address1
		if (step.opcode&0xfc) == 0x48 || step.opcode == OpMH {
			step.src2, err = cpu.readHalf(step.address1)
			if err != 0 {
				return err
			}
		}
		if (step.opcode&0x10) != 0 && (step.opcode&0x0c) != 0 {
			step.src2, err = cpu.readFull(step.address1)
			if err != 0 {
				return err
			}
		}
	}

	err = cpu.table[step.opcode](cpu, step)
	if cpu.perEnb && cpu.perReg && (cpu.cregs[9]&0xffff&cpu.perRegMod) != 0 {
		cpu.perCode |= 0x1000
	}
	return err
}

// Create function table. Opcodes that belong to subsystems this core
// does not model (binary/decimal floating point, channel I/O) decode to
// opUnk, matching how the teacher's own table treats opcodes a given
// build configuration doesn't implement.
func (cpu *CPU) createTable() {
	cpu.table = [256]func(*CPU, *stepInfo) uint16{
		//  0       1       2       3        4         5         6         7
		cpu.opUnk, cpu.opPR, cpu.opUnk, cpu.opUnk, cpu.opSPM, cpu.opBAL, cpu.opBCT, cpu.opBC, // 0x
		cpu.opSSK, cpu.opISK, cpu.opSVC, cpu.opUnk, cpu.opUnk, cpu.opBAS, cpu.opMVCL, cpu.opCLCL,

		cpu.opLPR, cpu.opLNR, cpu.opLTR, cpu.opLCR, cpu.opAnd, cpu.opCmpL, cpu.opOr, cpu.opXor, // 1x
		cpu.opL, cpu.opCmp, cpu.opAdd, cpu.opSub, cpu.opMul, cpu.opDiv, cpu.opAddL, cpu.opSubL,

		cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, // 2x (FP, not modeled)
		cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk,

		cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, // 3x (FP, not modeled)
		cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk,

		cpu.opSTH, cpu.opL, cpu.opSTC, cpu.opIC, cpu.opEX, cpu.opBAL, cpu.opBCT, cpu.opBC, // 4x
		cpu.opL, cpu.opCmp, cpu.opAdd, cpu.opSub, cpu.opMulH, cpu.opBAS, cpu.opCVD, cpu.opCVB,

		cpu.opST, cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opAnd, cpu.opCmpL, cpu.opOr, cpu.opXor, // 5x
		cpu.opL, cpu.opCmp, cpu.opAdd, cpu.opSub, cpu.opMul, cpu.opDiv, cpu.opAddL, cpu.opSubL,

		cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, // 6x (FP, not modeled)
		cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk,

		cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, // 7x (FP, not modeled)
		cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk,

		cpu.opSSM, cpu.opUnk, cpu.opLPSW, cpu.opDIAG, cpu.opUnk, cpu.opUnk, cpu.opBXH, cpu.opBXLE, // 8x
		cpu.opSRL, cpu.opSLL, cpu.opSRA, cpu.opSLA, cpu.opSRDL, cpu.opSLDL, cpu.opSRDA, cpu.opSLDA,

		cpu.opSTM, cpu.opTM, cpu.opMVI, cpu.opTS, cpu.opNI, cpu.opCLI, cpu.opOI, cpu.opXI, // 9x
		cpu.opLM, cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk,

		cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, // Ax
		cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opSTxSM, cpu.opSTxSM, cpu.opSIGP, cpu.opMC,

		cpu.opUnk, cpu.opLRA, cpu.opB2, cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opSTCTL, cpu.opLCTL, // Bx
		cpu.opB9, cpu.opUnk, cpu.opCS, cpu.opCDS, cpu.opUnk, cpu.opCLM, cpu.opSTCM, cpu.opICM,

		cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, // Cx
		cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk,

		cpu.opUnk, cpu.opMem, cpu.opMem, cpu.opMem, cpu.opMem, cpu.opCLC, cpu.opMem, cpu.opMem, // Dx
		cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opTR, cpu.opTR, cpu.opED, cpu.opED,

		cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opE3, cpu.opUnk, cpu.opLASP, cpu.opUnk, cpu.opUnk, // Ex
		cpu.opMVCIN, cpu.opUnk, cpu.opUnk, cpu.opEB, cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk,

		cpu.opSRP, cpu.opMVO, cpu.opPACK, cpu.opUNPK, cpu.opUnk, cpu.opUnk, cpu.opUnk, cpu.opUnk, // Fx
		cpu.opDecAdd, cpu.opDecAdd, cpu.opDecAdd, cpu.opDecAdd, cpu.opMP, cpu.opDP, cpu.opUnk, cpu.opUnk,
	}
}

/*
 *     PS = 2K     page_shift = 11   pte_avail = 0x4  pte_mbz = 0x2 pte_shift = 3
 *     PS = 4K     page_shift = 12   pte_avail = 0x8  pte_mbz = 0x6 pte_shift = 4
 *
 *       SS = 64K  seg_shift = 16   SS = 1M  seg_shift = 20
 */

// storePSW stores the old PSW at vector (spec.md §4.7 interrupt-entry
// layout, generalized from the teacher's BC/EC-mode encoder) and returns
// the new-PSW address to load from.
func (cpu *CPU) storePSW(vector uint32, irqcode uint16) (irqaddr uint32) {
	var word1, word2 uint32
	irqaddr = vector + 0x40

	if vector == oPPSW && cpu.perEnb && cpu.perCode != 0 {
		irqcode |= ircPer
	}

	if cpu.ecMode {
		word1 = uint32(0x80000) |
			(uint32(cpu.stKey) << 16) |
			(uint32(cpu.flags) << 16) |
			(uint32(cpu.cc) << 12) |
			(uint32(cpu.progMask) << 8)
		if cpu.pageEnb {
			word1 |= uint32(datEnable) << 24
		}
		if cpu.perEnb {
			word1 |= uint32(perEnable) << 24
		}
		if cpu.irqEnb {
			word1 |= uint32(irqEnable) << 24
		}

		switch vector {
		case oEPSW:
			cpu.sys.Mem.StoreFullwordAbsolute(cpu.applyPrefix(0x84), uint32(irqcode))
		case oSPSW:
			cpu.sys.Mem.StoreFullwordAbsolute(cpu.applyPrefix(0x88), (uint32(cpu.ilc)<<17)|uint32(irqcode))
		case oPPSW:
			cpu.sys.Mem.StoreFullwordAbsolute(cpu.applyPrefix(0x8c), (uint32(cpu.ilc)<<17)|uint32(irqcode))
		case oIOPSW:
			cpu.sys.Mem.StoreFullwordAbsolute(cpu.applyPrefix(0xb8), uint32(irqcode))
		}
		if (irqcode & ircPer) != 0 {
			cpu.sys.Mem.StoreFullwordAbsolute(cpu.applyPrefix(150), (uint32(cpu.perCode)<<16)|(cpu.perAddr>>16))
		}
		if vector == oPPSW {
			switch irqcode &^ ircPer {
			case ircSeg, ircPage:
				cpu.sys.Mem.StoreFullwordAbsolute(cpu.applyPrefix(0x90), cpu.tea)
			}
		}
		word2 = cpu.PC
	} else {
		word1 = (uint32(cpu.sysMask&0xfe00) << 16) |
			(uint32(cpu.stKey) << 16) |
			(uint32(cpu.flags) << 16) |
			uint32(irqcode)
		word2 = (uint32(cpu.ilc) << 30) |
			(uint32(cpu.cc) << 28) |
			(uint32(cpu.progMask) << 24) |
			(cpu.PC & AMASK)
	}

	if cpu.extEnb {
		word1 |= uint32(extEnable) << 24
	}
	cpu.sys.Mem.StoreFullwordAbsolute(cpu.applyPrefix(vector), word1)
	cpu.sys.Mem.StoreFullwordAbsolute(cpu.applyPrefix(vector+4), word2)
	return irqaddr
}

// checkProtect reports a key-controlled protection violation for a
// reference to addr under the current PSW storage key (spec.md §4.4).
func (cpu *CPU) checkProtect(addr uint32, write bool) bool {
	if cpu.stKey == 0 {
		return false
	}
	key := cpu.sys.Mem.Key(addr)
	if write {
		return (key & mem.KeyACC) != (uint8(cpu.stKey) & mem.KeyACC)
	}
	return (key&mem.KeyFetch) != 0 && (key&mem.KeyACC) != (uint8(cpu.stKey)&mem.KeyACC)
}

func (cpu *CPU) testAccess(virtAddr uint32, size uint32, write bool) uint16 {
	physAddr, err := cpu.translateAddr(virtAddr, accessTypeFor(write), UseInstFetch)
	if err != 0 {
		return err
	}
	if cpu.checkProtect(physAddr, write) {
		return ircProt
	}
	if size != 0 && (virtAddr&SPMASK) != ((virtAddr+size)&SPMASK) {
		physAddr, err = cpu.translateAddr(virtAddr+size, accessTypeFor(write), UseInstFetch)
		if err != 0 {
			return err
		}
		if cpu.checkProtect(physAddr, write) {
			return ircProt
		}
	}
	return 0
}

func accessTypeFor(write bool) accType {
	if write {
		return AccWrite
	}
	return AccRead
}

func (cpu *CPU) readFull(virtAddr uint32) (uint32, uint16) {
	offset := virtAddr & 3

	physAddr, pageErr := cpu.translateAddr(virtAddr, AccRead, UseInstFetch)
	if pageErr != 0 {
		return 0, pageErr
	}
	if cpu.checkProtect(physAddr, false) {
		return 0, ircProt
	}

	word, ok := cpu.sys.Mem.FetchFullwordAbsolute(physAddr &^ 3)
	if !ok {
		return 0, ircAddr
	}
	if offset == 0 {
		return word, 0
	}

	addr2 := virtAddr + 4
	physAddr2 := physAddr + 4
	if (virtAddr & SPMASK) != (addr2 & SPMASK) {
		physAddr2, pageErr = cpu.translateAddr(addr2, AccRead, UseInstFetch)
		if pageErr != 0 {
			return 0, pageErr
		}
		if cpu.checkProtect(physAddr2, false) {
			return 0, ircProt
		}
	}
	word2, ok := cpu.sys.Mem.FetchFullwordAbsolute(physAddr2 &^ 3)
	if !ok {
		return 0, ircAddr
	}
	word <<= 8 * offset
	word |= word2 >> (8 * (4 - offset))
	return word, 0
}

func (cpu *CPU) readFullAligned(virtAddr uint32) (uint32, uint16) {
	physAddr, pageErr := cpu.translateAddr(virtAddr, AccInstFetch, UseInstFetch)
	if pageErr != 0 {
		return 0, pageErr
	}
	if cpu.checkProtect(physAddr, false) {
		return 0, ircProt
	}
	word, ok := cpu.sys.Mem.FetchFullwordAbsolute(physAddr)
	if !ok {
		return 0, ircAddr
	}
	return word, 0
}

func (cpu *CPU) readHalf(virtAddr uint32) (uint32, uint16) {
	full, err := cpu.readFull(virtAddr &^ 3)
	if err != 0 {
		return 0, err
	}
	var word uint32
	switch virtAddr & 3 {
	case 0:
		word = full >> 16
	case 1:
		word = (full >> 8) & 0xffff
	case 2:
		word = full & 0xffff
	case 3:
		full2, err := cpu.readFull((virtAddr &^ 3) + 4)
		if err != 0 {
			return 0, err
		}
		word = ((full & 0xff) << 8) | (full2 >> 24)
	}
	word &= LMASK
	if (word & 0x8000) != 0 {
		word |= 0xffff0000
	}
	return word, 0
}

func (cpu *CPU) readByte(virtAddr uint32) (uint32, uint16) {
	full, err := cpu.readFull(virtAddr &^ 3)
	if err != 0 {
		return 0, err
	}
	shift := 8 * (3 - (virtAddr & 3))
	return (full >> shift) & 0xff, 0
}

func (cpu *CPU) perAddrCheck(virtAddr uint32, code uint16) {
	if cpu.cregs[10] <= cpu.cregs[11] {
		if virtAddr >= cpu.cregs[10] && virtAddr <= cpu.cregs[11] {
			cpu.perCode |= code
		}
	} else if virtAddr >= cpu.cregs[11] || virtAddr <= cpu.cregs[10] {
		cpu.perCode |= code
	}
}

func (cpu *CPU) perCheck(virtAddr uint32) {
	if cpu.perEnb && cpu.perStore {
		cpu.perAddrCheck(virtAddr, 0x2000)
	}
}

func (cpu *CPU) writeFull(virtAddr, data uint32) uint16 {
	offset := virtAddr & 3

	physAddr, pageErr := cpu.translateAddr(virtAddr, AccWrite, UseInstFetch)
	if pageErr != 0 {
		return pageErr
	}
	if cpu.checkProtect(physAddr, true) {
		return ircProt
	}
	cpu.perCheck(virtAddr)

	if offset == 0 {
		cpu.sys.Mem.StoreFullwordAbsolute(physAddr, data)
		return 0
	}

	virtAddr2 := (virtAddr & ^uint32(3)) + 4
	physAddr2 := physAddr - offset + 4
	if (virtAddr & SPMASK) != (virtAddr2 & SPMASK) {
		var pageErr2 uint16
		physAddr2, pageErr2 = cpu.translateAddr(virtAddr2, AccWrite, UseInstFetch)
		if pageErr2 != 0 {
			return pageErr2
		}
		if cpu.checkProtect(physAddr2, true) {
			return ircProt
		}
	}
	cpu.perCheck(virtAddr2)

	lo, _ := cpu.sys.Mem.FetchFullwordAbsolute(physAddr - offset)
	hi, _ := cpu.sys.Mem.FetchFullwordAbsolute(physAddr2)
	shift := 8 * offset
	lo = (lo &^ (^uint32(0) >> shift)) | (data >> shift)
	hi = (hi &^ (^uint32(0) << (32 - shift))) | (data << (32 - shift))
	cpu.sys.Mem.StoreFullwordAbsolute(physAddr-offset, lo)
	cpu.sys.Mem.StoreFullwordAbsolute(physAddr2, hi)
	return 0
}

func (cpu *CPU) writeHalf(virtAddr, data uint32) uint16 {
	full, err := cpu.readFull(virtAddr &^ 3)
	if err != 0 {
		return err
	}
	offset := virtAddr & 3
	data &= 0xffff
	switch offset {
	case 0:
		full = (full &^ 0xffff0000) | (data << 16)
	case 1:
		full = (full &^ 0x00ffff00) | (data << 8)
	case 2:
		full = (full &^ 0x0000ffff) | data
	case 3:
		full = (full &^ 0xff) | (data >> 8)
		return cpu.writeHalf3(virtAddr, full, data)
	}
	return cpu.writeFull(virtAddr&^3, full)
}

func (cpu *CPU) writeHalf3(virtAddr uint32, full, data uint32) uint16 {
	if err := cpu.writeFull(virtAddr&^3, full); err != 0 {
		return err
	}
	full2, err := cpu.readFull((virtAddr &^ 3) + 4)
	if err != 0 {
		return err
	}
	full2 = (full2 &^ 0xff000000) | ((data & 0xff) << 24)
	return cpu.writeFull((virtAddr&^3)+4, full2)
}

func (cpu *CPU) writeByte(virtAddr, data uint32) uint16 {
	full, err := cpu.readFull(virtAddr &^ 3)
	if err != 0 {
		return err
	}
	shift := 8 * (3 - (virtAddr & 3))
	mask := uint32(0xff) << shift
	full = (full &^ mask) | ((data << shift) & mask)
	return cpu.writeFull(virtAddr&^3, full)
}

// suppress drives a program-check/external/I/O interruption: store the
// old PSW, then load the new one (spec.md §4.7).
func (cpu *CPU) suppress(code uint32, irc uint16) {
	irqaddr := cpu.storePSW(code, irc)
	src1, _ := cpu.sys.Mem.FetchFullwordAbsolute(cpu.applyPrefix(irqaddr))
	src2, _ := cpu.sys.Mem.FetchFullwordAbsolute(cpu.applyPrefix(irqaddr + 4))
	cpu.lpsw(src1, src2)
}

// lpsw loads a new processor status word, unpacking BC- or EC-mode
// encoding into CPU fields.
func (cpu *CPU) lpsw(src1, src2 uint32) {
	cpu.ecMode = (src1 & 0x00080000) != 0
	cpu.extEnb = (src1 & 0x01000000) != 0

	if cpu.ecMode {
		cpu.irqEnb = (src1 & 0x02000000) != 0
		cpu.pageEnb = (src1 & 0x04000000) != 0
		cpu.cc = uint8((src1 >> 12) & 0x3)
		cpu.progMask = uint8((src1 >> 8) & 0xf)
		cpu.perEnb = (src1 & 0x40000000) != 0
		cpu.sysMask = 0
		if cpu.irqEnb {
			cpu.sysMask = uint16(cpu.cregs[2] >> 16)
		}
	} else {
		cpu.sysMask = uint16((src1 >> 16) & 0xfc00)
		if (src1 & 0x2000000) != 0 {
			cpu.sysMask |= uint16((cpu.cregs[2] >> 16) & 0x3ff)
		}
		cpu.irqEnb = cpu.sysMask != 0
		cpu.perEnb = false
		cpu.cc = uint8((src2 >> 28) & 0x3)
		cpu.progMask = uint8((src2 >> 24) & 0xf)
		cpu.pageEnb = false
	}
	cpu.stKey = uint8((src1 >> 16) & 0xf0)
	cpu.flags = uint8((src1 >> 16) & 0x7)
	cpu.PC = src2 & AMASK
	if cpu.ecMode && ((src1&0xb800c0ff) != 0 || (src2&0xff000000) != 0) {
		cpu.suppress(oPPSW, ircSpec)
	}
}

func (cpu *CPU) loadDouble(reg uint8) uint64 {
	return (uint64(cpu.regs[reg]) << 32) | uint64(cpu.regs[reg|1])
}

func (cpu *CPU) storeDouble(reg uint8, value uint64) {
	cpu.regs[reg|1] = uint32(value & uint64(FMASK))
	cpu.regs[reg] = uint32((value >> 32) & uint64(FMASK))
	cpu.perRegMod |= 3 << reg
}
