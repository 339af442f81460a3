/*
   ASN/ASX translation: SSAR (set secondary ASN) and a simplified LASP
   (load address space parameters), walking the linear-section ASN
   table -> ASN second table -> ASTE chain. Grounded on
   _examples/original_source/control.c's zz_set_secondary_asn and
   zz_load_address_space_parameters (spec.md C5).

   Copyright (c) 2026, S390x-emu contributors
*/

package cpu

// asnFirstTableEntry/asnSecondTableEntry word-0 layouts.
const (
	astInvalid uint32 = 0x80000000
)

// translateASN walks the ASN-first-table / ASN-second-table chain
// rooted at CR14's ASN-first-table origin and returns the STD held in
// word 2 of asn's ASTE, plus the ASTE address. No authority-table check
// is made. This core models a single-level ASN table, the
// common configuration control.c falls back to when the extended
// addressing bit is off.
func (cpu *CPU) translateASN(asn uint16) (std uint32, asteAddr uint32, irc uint16) {
	astOrigin := cpu.cregs[14] & 0x00fffff8
	if astOrigin == 0 {
		return 0, 0, ircAFX
	}

	afx := uint32(asn>>8) & 0xff
	afteAddr := cpu.applyPrefix((astOrigin + afx*4) & AMASK)
	afte, ok := cpu.sys.Mem.FetchFullwordAbsolute(afteAddr)
	if !ok {
		return 0, 0, ircAddr
	}
	if (afte & astInvalid) != 0 {
		return 0, 0, ircAFX
	}

	asx := uint32(asn) & 0xff
	asteOrigin := afte & 0x00fffff8
	aste0Addr := cpu.applyPrefix((asteOrigin + asx*16) & AMASK)
	aste0, ok := cpu.sys.Mem.FetchFullwordAbsolute(aste0Addr)
	if !ok {
		return 0, 0, ircAddr
	}
	if (aste0 & astInvalid) != 0 {
		return 0, 0, ircASX
	}

	aste2, ok := cpu.sys.Mem.FetchFullwordAbsolute(aste0Addr + 8)
	if !ok {
		return 0, 0, ircAddr
	}
	return aste2, aste0Addr, 0
}

// opSSAR implements SSAR (set secondary ASN): translate the ASN in R2 and
// replace CR3's secondary-ASN field and CR7's secondary STD.
func (cpu *CPU) opSSAR(step *stepInfo) uint16 {
	asn := uint16(cpu.regs[step.R2] & 0xffff)

	if asn == 0 {
		cpu.cregs[3] = (cpu.cregs[3] &^ 0xffff) | uint32(asn)
		cpu.cregs[7] = cpu.cregs[1]
		return 0
	}

	std, _, irc := cpu.translateASN(asn)
	if irc != 0 {
		return irc
	}

	cpu.cregs[3] = (cpu.cregs[3] &^ 0xffff) | uint32(asn)
	cpu.cregs[7] = std
	cpu.tracePC(traceTypeSSAR, 0, asn)
	return 0
}

// opLASP implements a simplified LASP (load address-space parameters):
// load the PKM/ASN/STD fields for the primary or secondary address
// space out of the 8-byte parameter list at operand 2, per
// zz_load_address_space_parameters's word layout.
func (cpu *CPU) opLASP(step *stepInfo) uint16 {
	if (cpu.flags & problem) != 0 {
		if (cpu.cregs[0] & 0x00400000) == 0 {
			return ircPriv
		}
	}

	w0, err := cpu.readFull(step.address2)
	if err != 0 {
		return err
	}
	w1, err := cpu.readFull(step.address2 + 4)
	if err != 0 {
		return err
	}

	asn := uint16(w1 & 0xffff)
	std, asteAddr, irc := cpu.translateASN(asn)
	if irc != 0 {
		return irc
	}
	_ = asteAddr

	target := uint32(w0>>16) & 0x1
	pkm := uint16(w0 & 0xffff)
	if target == 0 {
		cpu.cregs[4] = (cpu.cregs[4] &^ 0xffff) | uint32(asn)
		cpu.cregs[1] = std
		cpu.cregs[3] = (cpu.cregs[3] & 0xffff) | (uint32(pkm) << 16)
	} else {
		cpu.cregs[3] = (cpu.cregs[3] &^ 0xffff) | uint32(asn)
		cpu.cregs[7] = std
	}
	cpu.cc = 0
	return 0
}
