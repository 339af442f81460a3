/*
   Privileged system instructions: storage keys, SVC, SSM/LPSW, CS/CDS,
   LRA, EX, control registers, and the 0xB2 privileged-instruction space
   (STIDP, clock/timer instructions, SPKA/IPK, PTLB, RRB).

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

// Set storage key.
func (cpu *CPU) opSSK(step *stepInfo) uint16 {
	if (cpu.flags & problem) != 0 {
		return ircPriv
	}
	if (step.address1 & 0x0f) != 0 {
		return ircSpec
	}
	if !cpu.sys.Mem.CheckAddr(step.address1) {
		return ircAddr
	}
	cpu.sys.Mem.SetKey(step.address1, uint8(step.src1&0xf8))
	return 0
}

// Insert storage key into register.
func (cpu *CPU) opISK(step *stepInfo) uint16 {
	if (cpu.flags & problem) != 0 {
		return ircPriv
	}
	if (step.address1 & 0x0f) != 0 {
		return ircSpec
	}
	if !cpu.sys.Mem.CheckAddr(step.address1) {
		return ircAddr
	}
	key := cpu.sys.Mem.Key(step.address1)
	cpu.regs[step.R1] &= 0xffffff00
	if cpu.ecMode {
		cpu.regs[step.R1] |= uint32(key) & 0xfe
	} else {
		cpu.regs[step.R1] |= uint32(key) & 0xf8
	}
	cpu.perRegMod |= 1 << step.R1
	return 0
}

// Supervisor call.
func (cpu *CPU) opSVC(step *stepInfo) uint16 {
	irqaddr := cpu.storePSW(oSPSW, uint16(step.reg))
	src1, _ := cpu.sys.Mem.FetchFullwordAbsolute(cpu.applyPrefix(irqaddr))
	src2, _ := cpu.sys.Mem.FetchFullwordAbsolute(cpu.applyPrefix(irqaddr + 4))
	cpu.lpsw(src1, src2)
	return 0
}

// Set system mask.
func (cpu *CPU) opSSM(step *stepInfo) uint16 {
	if (cpu.flags & problem) != 0 {
		return ircPriv
	} else if (cpu.cregs[0] & 0x40000000) != 0 {
		return ircSpecOp
	}

	newSSM, err := cpu.readByte(step.address1)
	if err != 0 {
		return err
	}

	cpu.extEnb = (newSSM & uint32(extEnable)) != 0
	if cpu.ecMode {
		if (newSSM & uint32(irqEnable)) != 0 {
			cpu.irqEnb = true
			cpu.sysMask = uint16(cpu.cregs[2] >> 16)
		} else {
			cpu.irqEnb = false
			cpu.sysMask = 0
		}
		cpu.pageEnb = (newSSM & uint32(datEnable)) != 0
		cpu.perEnb = (newSSM & uint32(perEnable)) != 0
		if (newSSM & 0xb8) != 0 {
			return ircSpec
		}
	} else {
		cpu.sysMask = uint16(newSSM&0xfc) << 8
		if (newSSM & 0x2) != 0 {
			cpu.sysMask |= uint16((cpu.cregs[2] >> 16) & 0x3ff)
		}
		cpu.irqEnb = cpu.sysMask != 0
		cpu.pageEnb = false
	}
	return 0
}

// Load processor status word.
func (cpu *CPU) opLPSW(step *stepInfo) uint16 {
	if (cpu.flags & problem) != 0 {
		return ircPriv
	} else if (step.address1 & 0x7) != 0 {
		return ircSpec
	}
	src1, err := cpu.readFull(step.address1)
	if err != 0 {
		return err
	}
	src2, err := cpu.readFull(step.address1 + 4)
	if err != 0 {
		return err
	}
	cpu.lpsw(src1, src2)
	return 0
}

// Compare and swap.
func (cpu *CPU) opCS(step *stepInfo) uint16 {
	if (step.address1 & 0x3) != 0 {
		return ircSpec
	}
	cpu.sys.Mem.Lock()
	defer cpu.sys.Mem.Unlock()

	orig, err := cpu.readFull(step.address1)
	if err != 0 {
		return err
	}
	src := cpu.regs[step.R2]
	if cpu.regs[step.R1] == orig {
		if err = cpu.writeFull(step.address1, src); err != 0 {
			return err
		}
		cpu.cc = 0
	} else {
		cpu.regs[step.R1] = orig
		cpu.perRegMod |= 1 << uint32(step.R1)
		cpu.cc = 1
	}
	return 0
}

// Compare double and swap.
func (cpu *CPU) opCDS(step *stepInfo) uint16 {
	if (step.address1&0x7) != 0 || (step.R1&1) != 0 || (step.R2&1) != 0 {
		return ircSpec
	}
	cpu.sys.Mem.Lock()
	defer cpu.sys.Mem.Unlock()

	origl, err := cpu.readFull(step.address1)
	if err != 0 {
		return err
	}
	origh, err := cpu.readFull(step.address1 + 4)
	if err != 0 {
		return err
	}
	srcl, srch := cpu.regs[step.R2], cpu.regs[step.R2|1]
	if origl == srcl && origh == srch {
		if err = cpu.writeFull(step.address1, srcl); err != 0 {
			return err
		}
		if err = cpu.writeFull(step.address1+4, srch); err != 0 {
			return err
		}
		cpu.cc = 0
	} else {
		cpu.regs[step.R1] = origl
		cpu.regs[step.R1|1] = origh
		cpu.perRegMod |= 3 << uint32(step.R1)
		cpu.cc = 1
	}
	return 0
}

// Load real address: translate a virtual address to a real one without
// disturbing the TLB's steady state. LRA bypasses the TLB entirely
// (spec.md §4.2 edge case): it must reflect the table contents right now.
func (cpu *CPU) opLRA(step *stepInfo) uint16 {
	if step.R2 != 0 {
		step.address1 += cpu.regs[step.R2]
		step.address1 &= AMASK
	}
	if (cpu.flags & problem) != 0 {
		return ircPriv
	}

	if !cpu.pageEnb {
		cpu.cc = 0
		cpu.regs[step.R1] = step.address1
		cpu.perRegMod |= 1 << step.R1
		return 0
	}

	real, err := cpu.translateAddr(step.address1, AccLRA, UsePrimary)
	switch err {
	case 0:
		cpu.cc = 0
		cpu.regs[step.R1] = real
	case ircSeg:
		cpu.cc = 3
		cpu.regs[step.R1] = step.address1
	case ircPage:
		cpu.cc = 1
		cpu.regs[step.R1] = step.address1
	default:
		return err
	}
	cpu.perRegMod |= 1 << step.R1
	return 0
}

// Execute instruction.
func (cpu *CPU) opEX(step *stepInfo) uint16 {
	var s stepInfo

	opr, err := cpu.readHalf(step.address1)
	if err != 0 {
		return err
	}
	s.opcode = uint8((opr >> 8) & 0xff)

	if cpu.perEnb && cpu.perFetch {
		cpu.perAddrCheck(step.address1, 0x4000)
	}

	if s.opcode == OpEX {
		return ircExec
	}
	s.reg = uint8(step.src1 & 0xff)
	s.R1 = (s.reg >> 4) & 0xf
	s.R2 = s.reg & 0xf
	step.address1 += 2

	if (s.opcode & 0xc0) != 0 {
		a1, err := cpu.readHalf(step.address1)
		if err != 0 {
			return err
		}
		s.address1 = a1 & 0xffff
		step.address1 += 2
		if (s.opcode & 0xc0) == 0xc0 {
			a2, err := cpu.readHalf(step.address1)
			if err != 0 {
				return err
			}
			s.address2 = a2 & 0xfff
		}
	}

	return cpu.execute(&s)
}

// Machine check.
func (cpu *CPU) opMC(step *stepInfo) uint16 {
	if (step.reg & 0xf0) != 0 {
		return ircSpec
	}
	if (cpu.cregs[8] & (1 << step.reg)) != 0 {
		cpu.sys.Mem.StoreFullwordAbsolute(cpu.applyPrefix(0x94), uint32(step.reg)<<16)
		return ircMCE
	}
	return 0
}

// And/or a byte with the system mask (STNSM/STOSM).
func (cpu *CPU) opSTxSM(step *stepInfo) uint16 {
	if (cpu.flags & problem) != 0 {
		return ircPriv
	}

	var oldSSM, newSSM uint8
	if cpu.ecMode {
		if cpu.pageEnb {
			oldSSM |= datEnable
		}
		if cpu.irqEnb {
			oldSSM |= irqEnable
		}
		if cpu.perEnb {
			oldSSM |= perEnable
		}
		if cpu.extEnb {
			oldSSM |= extEnable
		}
	} else {
		oldSSM = uint8(cpu.sysMask >> 8 & 0xfe)
		if cpu.extEnb {
			oldSSM |= extEnable
		}
	}

	if step.opcode == OpSTNSM {
		newSSM = step.reg & oldSSM
	} else {
		newSSM = step.reg | oldSSM
	}

	if err := cpu.writeByte(step.address1, uint32(newSSM)); err != 0 {
		return err
	}

	if cpu.ecMode {
		if (newSSM & 0xb8) != 0 {
			return ircSpec
		}
		cpu.pageEnb = (newSSM & datEnable) != 0
		cpu.irqEnb = (newSSM & irqEnable) != 0
		cpu.perEnb = (newSSM & perEnable) != 0
		if cpu.irqEnb {
			cpu.sysMask = uint16(cpu.cregs[2] >> 16)
		} else {
			cpu.sysMask = 0
		}
	} else {
		cpu.sysMask = (uint16(newSSM) << 8) & 0xfc00
		if (newSSM & irqEnable) != 0 {
			cpu.sysMask |= uint16(cpu.cregs[2]>>16) & 0x3ff
		}
		cpu.irqEnb = cpu.sysMask != 0
	}
	cpu.extEnb = (newSSM & extEnable) != 0
	return 0
}

// Load control registers.
func (cpu *CPU) opLCTL(step *stepInfo) uint16 {
	if (cpu.flags & problem) != 0 {
		return ircPriv
	}

	for {
		temp, err := cpu.readFull(step.address1)
		if err != 0 {
			return err
		}
		cpu.cregs[step.R1] = temp
		switch step.R1 {
		case 0:
			cpu.setTranslationFormat(temp)
			cpu.intEnb = (temp & 0x400) != 0
			cpu.todEnb = (temp & 0x800) != 0
		case 1:
			cpu.purgeTLB()
		case 2:
			if cpu.ecMode {
				if cpu.irqEnb {
					cpu.sysMask = uint16(temp >> 16)
				} else {
					cpu.sysMask = 0
				}
			}
		case 9:
			cpu.perBranch = (temp & 0x80000000) != 0
			cpu.perFetch = (temp & 0x40000000) != 0
			cpu.perStore = (temp & 0x20000000) != 0
			cpu.perReg = (temp & 0x10000000) != 0
		}

		if step.R1 == step.R2 {
			break
		}
		step.R1++
		step.R1 &= 0xf
		step.address1 += 4
	}

	return 0
}

// setTranslationFormat decodes CR0's page/segment-size fields into the
// DAT shift/mask constants translateAddr uses (spec.md §4.2's format
// table). Grounded on the comment block the teacher carried from the
// PS=2K/PS=4K/SS=64K/SS=1M SIMH-derived cases.
func (cpu *CPU) setTranslationFormat(cr0 uint32) {
	cpu.pageShift, cpu.segShift = 0, 0
	switch (cr0 >> 22) & 3 {
	case 1:
		cpu.pageShift = 11
		cpu.pageMask = 0x7ff
		cpu.pteAvail = 4
		cpu.pteMBZ = 2
		cpu.pteShift = 3
		cpu.pteLenShift = 1
		cpu.sys.Mem.SetKeyGranularity(11)
	case 2:
		cpu.pageShift = 12
		cpu.pageMask = 0xfff
		cpu.pteAvail = 8
		cpu.pteMBZ = 6
		cpu.pteShift = 4
		cpu.pteLenShift = 0
		cpu.sys.Mem.SetKeyGranularity(12)
	}
	switch (cr0 >> 19) & 0x7 {
	case 0:
		cpu.segShift = 16
		cpu.segMask = AMASK >> 16
	case 2:
		cpu.segShift = 20
		cpu.segMask = AMASK >> 20
		cpu.pteLenShift += 4
	}
	cpu.pageIndex = ((^(cpu.segMask << cpu.segShift) & ^cpu.pageMask) & AMASK) >> cpu.pageShift
}

// Store control.
func (cpu *CPU) opSTCTL(step *stepInfo) uint16 {
	if (cpu.flags & problem) != 0 {
		return ircPriv
	}
	for {
		if err := cpu.writeFull(step.address1, cpu.cregs[step.R1]); err != 0 {
			return err
		}
		if step.R1 == step.R2 {
			break
		}
		step.R1++
		step.R1 &= 0xf
		step.address1 += 4
	}
	return 0
}

// CPU Diagnostic instruction: the DIAGNOSE hook spec.md §6 leaves as the
// device-subsystem boundary. This core posts the architected service
// signal and hands the real address/command word up through servParm;
// nothing further is modeled.
func (cpu *CPU) opDIAG(step *stepInfo) uint16 {
	if (cpu.flags & problem) != 0 {
		return ircPriv
	}
	cpu.servParm = step.address1
	cpu.servSig = true
	return 0
}

// Handle the 0xB2 privileged-instruction space: CPU id, clock/timer
// instructions, key and DAT-purge controls. Channel-connect and device-
// identification orders (CONCS/DISCONCS/STIDC) belong to the channel
// subsystem spec.md places out of scope and are not modeled here.
func (cpu *CPU) opB2(step *stepInfo) uint16 {
	if step.reg > 0x21 && step.reg != 0x28 && step.reg != 0x40 && step.reg != 0x50 {
		return ircOper
	}
	if step.reg != 0x0b && step.reg != 0x18 && step.reg != 0x19 &&
		step.reg != 0x28 && step.reg != 0x40 && (cpu.flags&problem) != 0 {
		return ircPriv
	}
	if step.reg == 0x50 {
		return cpu.opCSP(step)
	}
	switch step.reg {
	case 0x18: // PC - program call
		return cpu.opPC(step)
	case 0x19: // SSAR - set secondary ASN, addressed as R2 in the B2xx RRE space
		return cpu.opSSAR(step)
	case 0x28: // PT - program transfer
		return cpu.opPT(step)
	case 0x40: // BAKR - branch and stack
		return cpu.opBAKR(step)
	case 0x02: // STIDP - store CPU id
		id := (uint32(cpu.CPUID) << 24) | 0x145
		if err := cpu.writeFull(step.address1, id); err != 0 {
			return err
		}
		return cpu.writeFull(step.address1+4, 0)
	case 0x04: // SCK - set clock
		low, err := cpu.readFull(step.address1)
		if err != 0 {
			return err
		}
		high, err := cpu.readFull(step.address1 + 4)
		if err != 0 {
			return err
		}
		cpu.sys.SetClock((uint64(low) << 32) | uint64(high))
		cpu.cc = 0
	case 0x05: // STCK - store clock
		value := cpu.ReadClock()
		if err := cpu.writeFull(step.address1, uint32(value>>32)); err != 0 {
			return err
		}
		if err := cpu.writeFull(step.address1+4, uint32(value)&0xfffff000); err != 0 {
			return err
		}
		cpu.cc = 0
	case 0x06: // SCKC - set clock comparator
		low, err := cpu.readFull(step.address1)
		if err != 0 {
			return err
		}
		high, err := cpu.readFull(step.address1 + 4)
		if err != 0 {
			return err
		}
		cpu.clkCmp = (uint64(low) << 32) | uint64(high)
	case 0x07: // STCKC - store clock comparator
		if err := cpu.writeFull(step.address1, uint32(cpu.clkCmp>>32)); err != 0 {
			return err
		}
		return cpu.writeFull(step.address1+4, uint32(cpu.clkCmp))
	case 0x08: // SPT - set CPU timer
		low, err := cpu.readFull(step.address1)
		if err != 0 {
			return err
		}
		high, err := cpu.readFull(step.address1 + 4)
		if err != 0 {
			return err
		}
		cpu.cpuTimer = int64((uint64(low) << 32) | uint64(high))
	case 0x09: // STPT - store CPU timer
		value := uint64(cpu.cpuTimer)
		if err := cpu.writeFull(step.address1, uint32(value>>32)); err != 0 {
			return err
		}
		return cpu.writeFull(step.address1+4, uint32(value))
	case 0x0a: // SPKA - set PSW key
		cpu.stKey = uint8(0xf0 & step.address1)
	case 0x0b: // IPK - insert PSW key
		cpu.regs[2] = (cpu.regs[2] & 0xffffff00) | (uint32(cpu.stKey) & 0xf0)
		cpu.perRegMod |= 1 << 2
	case 0x0d: // PTLB - purge TLB
		cpu.broadcastPurgeTLB()
	case 0x0e: // PALB - purge ALB (ART lookaside)
		cpu.broadcastPurgeALB()
	case 0x13: // RRB - reset reference bit
		key := cpu.sys.Mem.Key(step.address1)
		cpu.sys.Mem.SetKey(step.address1, key&^0x04)
		cpu.cc = (key >> 1) & 0x3
	case 0x21: // IPTE - invalidate page table entry
		pfra := cpu.regs[step.R2] &^ cpu.pageMask
		cpu.broadcastInvalidatePTE(pfra)
	default:
		return ircOper
	}
	return 0
}
