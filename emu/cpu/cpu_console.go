/*
   Operator-console surface: a CPU state snapshot and a direct SIGP-order
   injector, the only two things spec.md lets an external console touch
   (everything else — DAT, ASN, the linkage stack — stays behind the
   instruction set). Consumed by emu/core's console listener and, over
   that socket, by cmd/s370ctl.

   Copyright (c) 2026, S390x-emu contributors
*/

package cpu

// Snapshot is a point-in-time, lock-protected copy of architected CPU
// state safe to hand to a console session without racing the CPU's own
// goroutine.
type Snapshot struct {
	CPUID   int
	Online  bool
	Running bool
	PC      uint32
	CC      uint8
	Regs    [16]uint32
	CRegs   [16]uint32
	Prefix  uint32
}

// Snapshot copies cpu's externally-visible state under its own lock.
func (cpu *CPU) Snapshot() Snapshot {
	cpu.mu.Lock()
	defer cpu.mu.Unlock()
	return Snapshot{
		CPUID:   cpu.CPUID,
		Online:  cpu.online,
		Running: cpu.run == StateStarted,
		PC:      cpu.PC,
		CC:      cpu.cc,
		Regs:    cpu.regs,
		CRegs:   cpu.cregs,
		Prefix:  cpu.prefix,
	}
}

// ConsoleSignalProcessor applies one SIGP order to the named target CPU
// on behalf of an operator console rather than a guest SIGP instruction:
// no problem-state check (the console is inherently privileged) and no
// issuing-CPU condition code, just an ok/status result. Only the orders
// an operator console plausibly needs are implemented; anything else
// reports sigpStatInvalidOrder the same way an unrecognized order would
// from the instruction.
func (s *System) ConsoleSignalProcessor(targetID int, order uint8, parm uint32) (status uint32, ok bool) {
	s.SigpLock.Lock()
	defer s.SigpLock.Unlock()

	var target *CPU
	for _, c := range s.CPUs {
		if c != nil && c.CPUID == targetID {
			target = c
			break
		}
	}
	if target == nil {
		return sigpStatInvalidOrder, false
	}

	target.mu.Lock()
	defer target.mu.Unlock()

	switch order {
	case sigpSense:
		if target.run == StateStopped {
			return sigpStatStopped, true
		}
		return 0, true

	case sigpStart:
		target.run = StateStarted
		return 0, true

	case sigpStop:
		target.run = StateStopping
		return 0, true

	case sigpStopStore:
		target.run = StateStopping
		target.storstat = true
		return 0, true

	case sigpRestart:
		if target.run == StateStopped {
			target.restart = true
			target.run = StateStarted
		}
		return 0, true

	case sigpInitReset, sigpReset:
		target.InitializeCPU()
		return 0, true

	case sigpSetPrefix:
		if target.run != StateStopped {
			return sigpStatNotRunning, false
		}
		target.prefix = parm & SPMASK
		return 0, true

	default:
		return sigpStatInvalidOrder, false
	}
}
