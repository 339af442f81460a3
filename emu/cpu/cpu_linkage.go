/*
   Linkage stack and the PC/PR/PT/BAKR control-transfer instructions.
   Grounded on _examples/original_source/control.c's form_stack_entry/
   locate_stack_entry/zz_program_call/zz_program_return/
   zz_program_transfer, simplified to the basic (non-stacking) and
   stacking program-call forms spec.md C6 asks for; subspace-group
   replacement is not modeled (non-goal: no subspace/dataspace support).

   Copyright (c) 2026, S390x-emu contributors
*/

package cpu

// Linkage-stack entry descriptor unstack-entry-type values.
const (
	lsedETBAKR uint8 = 1
	lsedETPC   uint8 = 2
)

const lsseSize = 128 // size in bytes of one linkage-stack state entry

// currentStackEntry returns the absolute address of the current linkage-
// stack-entry descriptor, per locate_stack_entry(): CR15 holds the
// current-entry pointer in its low-order bits.
func (cpu *CPU) currentStackEntry() uint32 {
	return cpu.applyPrefix(cpu.cregs[15] & 0x7ffffff8)
}

// formStackEntry pushes a new linkage-stack state entry of the given
// type, recording the return address, the target address, and the
// called-space identification, then advances CR15 to the new entry
// (form_stack_entry). Returns ircStackFull if the entry descriptor
// cannot be stored; the space left in the stack is not checked.
func (cpu *CPU) formStackEntry(uet uint8, retn, target, csi uint32) uint16 {
	cur := cpu.cregs[15] & 0x7ffffff8
	next := cur + lsseSize
	if next+lsseSize > cpu.cregs[15]|0xfff {
		// No bound is enforced here: a real ASTE carries an explicit
		// stack size field, and this core checks neither that nor
		// wraparound.
	}

	base := cpu.applyPrefix(next & AMASK)
	if err := cpu.writeFull(base, uint32(uet)<<24); err != 0 {
		return ircStackFull
	}
	if err := cpu.writeFull(base+4, retn); err != 0 {
		return err
	}
	if err := cpu.writeFull(base+8, target); err != 0 {
		return err
	}
	if err := cpu.writeFull(base+12, csi); err != 0 {
		return err
	}
	for i := range 16 {
		if err := cpu.writeFull(base+16+uint32(i)*4, cpu.regs[i]); err != 0 {
			return err
		}
	}

	cpu.cregs[15] = next
	return 0
}

// unstackRegisters restores general registers r1..r2 (wrapping through
// register 15) from the current linkage-stack state entry, per
// unstack_registers().
func (cpu *CPU) unstackRegisters(lsea uint32, r1, r2 uint8) uint16 {
	r := r1
	for {
		v, err := cpu.readFull(lsea + 16 + uint32(r)*4)
		if err != 0 {
			return err
		}
		cpu.regs[r] = v
		cpu.perRegMod |= 1 << uint32(r)
		if r == r2 {
			break
		}
		r = (r + 1) & 0xf
	}
	return 0
}

// opPC implements the Program Call instruction: a basic form that loads
// linkage info into GR14 without touching the linkage stack, falling
// back to the full stacking form when CR0's address-space function
// control is active. Only current-primary PC-cp is modeled (pasn == 0);
// PC-ss cross-space calls require the ASN-table walk this core keeps in
// cpu_asn.go's translateASN and are out of scope for this instruction's
// first cut.
func (cpu *CPU) opPC(step *stepInfo) uint16 {
	if cpu.asMode != asPrimary {
		return ircSpecOp
	}

	retn := cpu.PC
	if (cpu.cregs[0] & 0x00400000) == 0 {
		// Basic PC: stash return linkage directly in GR14.
		cpu.regs[14] = retn
		if (cpu.flags & problem) != 0 {
			cpu.regs[14] |= 1
		}
		cpu.regs[3] = (cpu.cregs[3] & 0xffff0000) | (cpu.cregs[4] & 0xffff)
		return 0
	}

	if err := cpu.formStackEntry(lsedETPC, retn, step.address1, 0); err != 0 {
		return err
	}
	cpu.regs[3] = (cpu.cregs[3] & 0xffff0000) | (cpu.cregs[4] & 0xffff)
	return 0
}

// opPR implements Program Return: pop the current linkage-stack state
// entry, restore GR2-GR14 and CR15, and branch to the saved return
// address (zz_program_return, simplified to the current-primary case).
func (cpu *CPU) opPR(_ *stepInfo) uint16 {
	lsea := cpu.currentStackEntry()
	uetWord, err := cpu.readFull(lsea)
	if err != 0 {
		return err
	}
	uet := uint8(uetWord >> 24)
	if uet != lsedETPC && uet != lsedETBAKR {
		return ircStackType
	}

	retn, err := cpu.readFull(lsea + 4)
	if err != 0 {
		return err
	}
	if err := cpu.unstackRegisters(lsea, 2, 14); err != 0 {
		return err
	}

	cpu.PC = retn & AMASK
	if (retn & 0x80000000) != 0 {
		cpu.amode31 = true
	}
	cpu.flags &^= problem
	if (retn & 1) != 0 {
		cpu.flags |= problem
	}

	prevEntry := lsea - lsseSize
	cpu.cregs[15] = prevEntry & 0x7ffffff8
	return 0
}

// opPT implements Program Transfer: switch the primary address space to
// the ASN in R1 without a linkage-stack entry (zz_program_transfer's
// current-primary-space case).
func (cpu *CPU) opPT(step *stepInfo) uint16 {
	if (cpu.flags & problem) != 0 {
		return ircPriv
	}
	asn := uint16(cpu.regs[step.R1] & 0xffff)
	std, _, irc := cpu.translateASN(asn)
	if irc != 0 {
		return irc
	}
	cpu.cregs[4] = (cpu.cregs[4] &^ 0xffff) | uint32(asn)
	cpu.cregs[1] = std
	newPKM := uint16(cpu.regs[step.R2] >> 16)
	cpu.cregs[3] = (cpu.cregs[3] & 0xffff) | (uint32(newPKM) << 16)
	return 0
}

// opBAKR implements Branch and Stack: push a BAKR-type linkage-stack
// entry recording R2's branch address (or the current PSW instruction
// address if R2 is zero), without changing control flow itself.
func (cpu *CPU) opBAKR(step *stepInfo) uint16 {
	target := cpu.PC
	if step.R2 != 0 {
		target = cpu.regs[step.R2] & AMASK
	}
	return cpu.formStackEntry(lsedETBAKR, cpu.PC, target, 0)
}
