/*
   CPU-side debug switches, set from the "DEBUG CPU" config directive
   and consulted by execute()'s per-instruction trace hook. Grounded on
   the teacher's util/debug package; this core has no channel/device
   classes left to debug, so only the CPU's own instruction, interrupt
   and SIGP trace classes remain.

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

import "errors"

const (
	debugInstr = 1 << iota // trace every fetched instruction
	debugIrq               // trace interrupt dispatch
	debugSigp               // trace SIGP orders between CPUs
)

// instrDebugMask is consulted on every instruction fetch; kept as a
// package-level mask (rather than per-CPU) since "DEBUG CPU" in the
// config file applies to the whole configuration, matching the
// teacher's single global debug mask.
var instrDebugMask int

// Debug enables one class of CPU debug tracing by name, called from
// the "DEBUG CPU" config directive.
func Debug(name string) error {
	switch name {
	case "INSTR", "INSTRUCTION":
		instrDebugMask |= debugInstr
	case "IRQ", "INTERRUPT":
		instrDebugMask |= debugIrq
	case "SIGP":
		instrDebugMask |= debugSigp
	default:
		return errors.New("unknown CPU debug option: " + name)
	}
	return nil
}
