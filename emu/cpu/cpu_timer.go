/*
   TOD clock, clock comparator, and CPU timer update routines.

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

import "time"

// todEpochOffset converts a Unix second count to the IBM TOD epoch
// (1900-01-01), expressed in TOD clock units (bit 51 = 1 microsecond,
// so the stored value is shifted left 12 from microseconds).
func todEpochOffset(unixSec int64) uint64 {
	sec := uint64(unixSec)
	sec += ((70 * 365) + 17) * 86400 // years 1900->1970 plus leap days
	usec := sec * 1000000
	return usec << 12
}

// InitTOD sets the shared TOD clock to the current wall time, unless it
// has already been set by a prior IPL or SCK (spec.md C14: the TOD clock
// is shared by every CPU in the configuration, guarded by TODLock).
func (s *System) InitTOD() {
	s.TODLock.Lock()
	defer s.TODLock.Unlock()
	if s.sharedTOD != 0 {
		return
	}
	s.sharedTOD = todEpochOffset(time.Now().Unix())
}

// SetClock implements SCK: store a new absolute value into the shared TOD
// clock. Per spec.md C14 this takes TODLock and is visible to every CPU.
func (s *System) SetClock(value uint64) {
	s.TODLock.Lock()
	s.sharedTOD = value
	s.TODLock.Unlock()
}

// ReadClock returns the current TOD clock value plus this CPU's STCKE/
// SCKPF-adjustable per-CPU offset (ESAME logical-partition offset,
// spec.md C16). S/370 and ESA/390 CPUs leave todOffset at zero.
func (cpu *CPU) ReadClock() uint64 {
	cpu.sys.TODLock.Lock()
	t := cpu.sys.sharedTOD
	cpu.sys.TODLock.Unlock()
	return t + cpu.todOffset
}

// tickTOD advances the shared TOD clock by one step of the periodic
// update (bit 51 ticks once per microsecond) and returns the new value.
func (s *System) tickTOD(micros uint64) uint64 {
	s.TODLock.Lock()
	s.sharedTOD += micros << 12
	defer s.TODLock.Unlock()
	return s.sharedTOD
}

// TickAllTimers calls UpdateTimer on every online CPU in the system, the
// multi-CPU analogue of the teacher's single-CPU TimeClock packet.
func (s *System) TickAllTimers() {
	for _, c := range s.CPUs {
		if c.Online() {
			c.UpdateTimer()
		}
	}
}

// UpdateTimer advances the TOD clock by 6510 microseconds (26666666/4096),
// runs the clock comparator check, and decrements the CPU timer for cpu
// by timerTics (6666 from the second call on). It posts clkIrq/todIrq as
// PSW-visible pending bits; the dispatch loop in CycleCPU samples them.
func (cpu *CPU) UpdateTimer() {
	t := cpu.sys.tickTOD(26666666 / 4096) // 6510 microseconds per call

	// Clock comparator: posted as an external interrupt once the clock
	// reaches or passes the programmed value (spec.md C14).
	cpu.todIrq = false
	if cpu.clkCmp <= t+cpu.todOffset {
		cpu.todIrq = true
	}

	// CPU timer decrements; going negative posts an external interrupt
	// exactly once, on the transition (spec.md C14 edge case).
	wasNeg := cpu.cpuTimer < 0
	cpu.cpuTimer -= cpu.timerTics
	cpu.timerTics = 6666 // 2/300 of a second, in CPU-timer units
	if cpu.cpuTimer < 0 && !wasNeg {
		cpu.clkIrq = true
	}
}
