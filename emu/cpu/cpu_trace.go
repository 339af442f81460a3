/*
   Trace table entries for branch, ASN, and PC/PR/PT/SSAR/BSG tracing.
   Grounded on _examples/original_source/trace.c's trace_br/trace_pc/
   trace_pr/trace_ssar entry layouts (spec.md C7): each entry is a
   fixed-size doubleword record appended at the address CR12 names,
   which is then advanced and folded back into CR12.
*/

package cpu

// Trace-entry type codes, carried in the high byte of the first word
// (trace.c's per-instruction discriminator).
const (
	traceTypeBranch uint8 = 0x01
	traceTypeASN    uint8 = 0x02
	traceTypePC     uint8 = 0x03
	traceTypePR     uint8 = 0x04
	traceTypePT     uint8 = 0x05
	traceTypeSSAR   uint8 = 0x06
	traceTypeExplicit uint8 = 0x07
)

const traceEntrySize = 16 // two fullwords header + two fullwords of detail (doubleword granularity)

// traceEnabled reports whether any trace class this core models is
// currently active in CR12.
func (cpu *CPU) traceEnabled() bool {
	return (cpu.cregs[12] & (0x80000000 | 0x40000000)) != 0 // CR12 bits 0 (branch) / 1 (ASN)
}

// addTraceEntry appends one fixed-size trace record at CR12's current
// table address, wrapping back to the table origin when the entry would
// cross the table's end (trace.c's table-full wraparound, simplified to
// a ring buffer bounded by CR10/CR11 pair this core keeps in CR10 as the
// table limit).
func (cpu *CPU) addTraceEntry(kind uint8, word1, word2, word3 uint32) uint16 {
	addr := cpu.cregs[12] & 0x7ffffff8
	limit := cpu.cregs[10] & 0x7ffffff8
	if limit != 0 && addr+traceEntrySize > limit {
		addr = cpu.cregs[9] & 0x7ffffff8 // wrap to origin held in CR9
	}

	abs := cpu.applyPrefix(addr)
	header := (uint32(kind) << 24) | (word1 & 0x00ffffff)
	if err := cpu.writeFull(abs, header); err != 0 {
		return err
	}
	if err := cpu.writeFull(abs+4, word2); err != 0 {
		return err
	}
	if err := cpu.writeFull(abs+8, word3); err != 0 {
		return err
	}
	if err := cpu.writeFull(abs+12, cpu.PC); err != 0 {
		return err
	}

	cpu.cregs[12] = (cpu.cregs[12] &^ 0x7ffffff8) | (addr + traceEntrySize)
	return 0
}

// traceBranch records an explicit/conditional branch, per trace_br().
func (cpu *CPU) traceBranch(dest uint32) {
	if (cpu.cregs[12] & 0x80000000) == 0 {
		return
	}
	_ = cpu.addTraceEntry(traceTypeBranch, 0, dest, 0)
}

// tracePC records a PC/PT/SSAR ASN-tracing event, per trace_pc()/
// trace_ssar(): these fire on CR12's ASN-trace bit independent of
// branch tracing.
func (cpu *CPU) tracePC(kind uint8, target uint32, asn uint16) {
	if (cpu.cregs[12] & 0x40000000) == 0 {
		return
	}
	_ = cpu.addTraceEntry(kind, uint32(asn), target, 0)
}
