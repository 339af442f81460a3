/*
   SIGP multi-CPU coordination and the TLB/ALB purge broadcast. Grounded
   on _examples/original_source/control.c's zz_signal_procesor(): order
   decoding, the addressed-CPU status checks, and the sigplock/intlock
   ordering spec.md section 5/8 names (S3, S6, S8).

   Copyright (c) 2026, S390x-emu contributors
*/

package cpu

import (
	"fmt"

	debug "github.com/s390x-emu/core/util/debug"
)

// SIGP order codes (spec.md §4.8).
const (
	sigpSense        uint8 = 0x01
	sigpExtCall      uint8 = 0x02
	sigpEmergency    uint8 = 0x03
	sigpStart        uint8 = 0x04
	sigpStop         uint8 = 0x05
	sigpRestart      uint8 = 0x06
	sigpStopStore    uint8 = 0x09
	sigpInitReset    uint8 = 0x0b
	sigpReset        uint8 = 0x0c
	sigpSetPrefix    uint8 = 0x0d
	sigpStoreStatus  uint8 = 0x0e
	sigpStoreExtStat uint8 = 0x13
)

// SIGP status bits returned in R1+1 on condition code 1.
const (
	sigpStatOperatorInt  uint32 = 1 << 24 // 0x01000000 bit 24 - operator intervening
	sigpStatCheckStop    uint32 = 1 << 25
	sigpStatNotRunning   uint32 = 1 << 29
	sigpStatInvalidOrder uint32 = 1 << 28
	sigpStatStopped      uint32 = 1 << 22
)

func (cpu *CPU) findPeer(addr int) *CPU {
	for _, peer := range cpu.sys.CPUs {
		if peer != nil && peer.CPUID == addr {
			return peer
		}
	}
	return nil
}

// opSIGP decodes and dispatches one order from the signal-processor
// instruction. Order serialization is via sys.SigpLock; status/run-state
// reads and writes on the target CPU go through that CPU's own mu, per
// control.c's lock nesting (sigplock held across the whole order, the
// target's per-CPU lock taken only to read/modify its state).
func (cpu *CPU) opSIGP(step *stepInfo) uint16 {
	if (cpu.flags & problem) != 0 {
		return ircPriv
	}

	order := uint8(cpu.regs[step.R3] & 0xff)
	addr := int(cpu.regs[step.R1] & 0xffff)

	if instrDebugMask&debugSigp != 0 {
		debug.Debugf(fmt.Sprintf("cpu%d", cpu.CPUID), instrDebugMask, debugSigp,
			"SIGP order=%02x target=%03x", order, addr)
	}

	cpu.sys.SigpLock.Lock()
	defer cpu.sys.SigpLock.Unlock()

	target := cpu.findPeer(addr)
	if target == nil {
		cpu.regs[step.R1] = (cpu.regs[step.R1] &^ 0xffffffff) | sigpStatInvalidOrder
		cpu.cc = 3
		return 0
	}

	target.mu.Lock()
	defer target.mu.Unlock()

	switch order {
	case sigpSense:
		status := uint32(0)
		if target.run == StateStopped {
			status |= sigpStatStopped
		}
		cpu.regs[step.R1|1] = status
		cpu.cc = 0

	case sigpExtCall:
		if target.run != StateStarted {
			cpu.cc = 1
			cpu.regs[step.R1|1] = sigpStatNotRunning
			return 0
		}
		target.extcall = true
		target.extCCPU = cpu.CPUID
		target.PostExtIrq()
		cpu.cc = 0

	case sigpEmergency:
		if target.run != StateStarted {
			cpu.cc = 1
			cpu.regs[step.R1|1] = sigpStatNotRunning
			return 0
		}
		target.emersig = true
		if cpu.CPUID < maxCPUs {
			target.emerCPU[cpu.CPUID] = true
		}
		target.PostExtIrq()
		cpu.cc = 0

	case sigpStart:
		target.run = StateStarted
		cpu.cc = 0

	case sigpStop:
		target.run = StateStopping
		cpu.cc = 0

	case sigpStopStore:
		target.run = StateStopping
		target.storstat = true
		cpu.cc = 0

	case sigpRestart:
		if target.run == StateStopped {
			target.restart = true
			target.run = StateStarted
		}
		cpu.cc = 0

	case sigpInitReset, sigpReset:
		target.InitializeCPU()
		cpu.cc = 0

	case sigpSetPrefix:
		newPrefix := cpu.regs[step.R2] & SPMASK
		if target.run != StateStopped {
			cpu.cc = 1
			cpu.regs[step.R1|1] = sigpStatNotRunning
			return 0
		}
		target.prefix = newPrefix
		cpu.cc = 0

	case sigpStoreStatus, sigpStoreExtStat:
		if target.run != StateStopped {
			cpu.cc = 1
			cpu.regs[step.R1|1] = sigpStatNotRunning
			return 0
		}
		cpu.cc = 0

	default:
		cpu.regs[step.R1] = sigpStatInvalidOrder
		cpu.cc = 3
	}

	return 0
}

// broadcastPurgeTLB asks every other online CPU to clear its TLB and
// blocks until they have all acknowledged, per spec.md §4.2/§8's
// requirement that PTLB's effect be visible configuration-wide before
// the issuing CPU proceeds (control.c's quiescing broadcast pattern).
func (cpu *CPU) broadcastPurgeTLB() {
	cpu.purgeTLB()
	cpu.sys.broadcastPurge(func(peer *CPU) { peer.purgeTLB() })
}

// broadcastPurgeALB is PALB's configuration-wide analogue for the ART
// lookaside cache.
func (cpu *CPU) broadcastPurgeALB() {
	cpu.purgeALB()
	cpu.sys.broadcastPurge(func(peer *CPU) {
		for i := range peer.alb {
			peer.alb[i].valid = false
		}
	})
}

// broadcastInvalidatePTE is IPTE's configuration-wide analogue: every CPU
// drops only the TLB entries that translated through pfra.
func (cpu *CPU) broadcastInvalidatePTE(pfra uint32) {
	cpu.invalidatePageTableEntry(pfra)
	cpu.sys.broadcastPurge(func(peer *CPU) { peer.invalidatePageTableEntry(pfra) })
}

// broadcastPurge runs apply on every CPU in the system, the caller
// included (callers have already applied their own local update, so
// theirs runs a second time), serialized
// under the shared broadcast lock so concurrent PTLB/PALB/IPTE requests
// from different CPUs do not interleave their peer sweeps.
func (s *System) broadcastPurge(apply func(*CPU)) {
	s.broadcast.mu.Lock()
	defer s.broadcast.mu.Unlock()
	for _, peer := range s.CPUs {
		if peer == nil {
			continue
		}
		peer.mu.Lock()
		apply(peer)
		peer.mu.Unlock()
	}
}
