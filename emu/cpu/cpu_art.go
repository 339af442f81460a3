/*
   Access-register translation: resolving an access register's ALET to a
   segment-table designation through an access-list entry and its ASTE,
   cached in a per-CPU ALB. Grounded on
   _examples/original_source/control.c's ALET-translation case analysis
   (ALET 0/1 special cases, general ART, ASTE validity/sequence checks)
   feeding spec.md C4.

   Copyright (c) 2026, S390x-emu contributors
*/

package cpu

// ALET special values (spec.md C4).
const (
	aletPrimary   uint32 = 0
	aletSecondary uint32 = 1
)

// ASTE word-0 and word-2 bit layouts used by this core's ART subset.
const (
	asteInvalid uint32 = 0x80000000
	asteBase    uint32 = 0x00800000
)

// purgeALB invalidates every entry in this CPU's access-list lookaside
// buffer (PALB, spec.md C4 edge case: a changed ASTE must not be served
// stale out of the ALB).
func (cpu *CPU) purgeALB() {
	for i := range cpu.alb {
		cpu.alb[i].valid = false
	}
}

// translateALET resolves alet to a segment-table designation for access-
// register-mode references. ALET 0 and 1 are the primary/secondary
// special cases that bypass the access-list walk entirely. Any other
// value is looked up in the ALB first; on a miss CR2 is used directly as
// the access-list origin (no DUCT or PASTE is read), and the ALE and its
// ASTE are fetched. Only the ASTE sequence number recorded in the ALE is
// checked; the ALET's ALE sequence number and access-list index are not.
func (cpu *CPU) translateALET(alet uint32) (std uint32, irc uint16) {
	switch alet {
	case aletPrimary:
		return cpu.cregs[1], 0
	case aletSecondary:
		return cpu.cregs[7], 0
	}

	for i := range cpu.alb {
		if cpu.alb[i].valid && cpu.alb[i].alet == alet {
			return cpu.alb[i].aste2, 0
		}
	}

	alIndex := (alet >> 16) & 0xffff
	aleIndex := alet & 0xffff

	effAccessList := cpu.cregs[2] & AMASK // DUCT/PASN-AL designation, simplified single-table model
	if effAccessList == 0 {
		return 0, ircALET
	}

	aleAddr := cpu.applyPrefix((effAccessList + (aleIndex << 4)) & AMASK)
	ale0, ok := cpu.sys.Mem.FetchFullwordAbsolute(aleAddr)
	if !ok {
		return 0, ircAddr
	}
	if (ale0 & 0x80000000) != 0 {
		return 0, ircALEN
	}
	aleSeq, ok := cpu.sys.Mem.FetchFullwordAbsolute(aleAddr + 4)
	if !ok {
		return 0, ircAddr
	}
	_ = alIndex

	asteOrigin := ale0 & 0x00fffff8
	asteAddr := cpu.applyPrefix(asteOrigin & AMASK)

	aste0, ok := cpu.sys.Mem.FetchFullwordAbsolute(asteAddr)
	if !ok {
		return 0, ircAddr
	}
	if (aste0 & asteInvalid) != 0 {
		return 0, ircASTEVal
	}
	aste2, ok := cpu.sys.Mem.FetchFullwordAbsolute(asteAddr + 8)
	if !ok {
		return 0, ircAddr
	}
	aste5, ok := cpu.sys.Mem.FetchFullwordAbsolute(asteAddr + 20)
	if !ok {
		return 0, ircAddr
	}
	if (aste5 & 0xffff) != (aleSeq >> 16) {
		return 0, ircASTESeq
	}

	if len(cpu.alb) > 0 {
		slot := int(aleIndex) % len(cpu.alb)
		cpu.alb[slot] = albEntry{alet: alet, aste2: aste2, valid: true}
	}

	return aste2, 0
}

// resolveAR computes the segment-table designation an access-register-
// mode reference uses for access register arNum, honoring AR 0's
// primary-space special case (spec.md C4).
func (cpu *CPU) resolveAR(arNum uint8) (uint32, uint16) {
	if arNum == 0 {
		return cpu.cregs[1], 0
	}
	return cpu.translateALET(cpu.ars[arNum])
}
