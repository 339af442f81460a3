/*
   Engine: owns the System (storage + CPUs), runs one goroutine per CPU,
   and a TOD-tick goroutine, coordinating shutdown the way the teacher's
   single-CPU loop did with a done channel and WaitGroup.

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

package core

import (
	"log/slog"
	"sync"
	"time"

	cpu "github.com/s390x-emu/core/emu/cpu"
	mem "github.com/s390x-emu/core/emu/memory"
)

// Engine owns one System and drives its CPUs, each on its own
// goroutine, plus a shared TOD-tick goroutine (spec.md section 9).
type Engine struct {
	Sys *cpu.System

	wg   sync.WaitGroup
	done chan struct{}
}

// NewEngine allocates a System with sizeBytes of storage and numCPUs
// CPUs of the given architecture, ready for Start.
func NewEngine(sizeBytes uint32, numCPUs int, arch cpu.Arch) *Engine {
	sys := &cpu.System{Mem: mem.NewSystem(sizeBytes)}
	sys.IntCond = sync.NewCond(&sys.IntLock)
	for i := range numCPUs {
		c := cpu.NewCPU(sys, i, arch)
		c.InitializeCPU()
		sys.CPUs = append(sys.CPUs, c)
	}
	sys.InitTOD()
	return &Engine{Sys: sys, done: make(chan struct{})}
}

// Start launches one goroutine per CPU plus the TOD-tick goroutine.
func (e *Engine) Start() {
	for _, c := range e.Sys.CPUs {
		e.wg.Add(1)
		go e.runCPU(c)
	}
	e.wg.Add(1)
	go e.runClock()
}

func (e *Engine) runCPU(c *cpu.CPU) {
	defer e.wg.Done()
	for {
		select {
		case <-e.done:
			return
		default:
		}
		if !c.Online() {
			time.Sleep(time.Millisecond)
			continue
		}
		if _, progressed := c.CycleCPU(); !progressed {
			time.Sleep(time.Millisecond)
		}
	}
}

// runClock advances every CPU's TOD clock and CPU timer once per tick,
// standing in for the teacher's single-CPU event-driven TimeClock packet
// (spec.md section 4.6).
func (e *Engine) runClock() {
	defer e.wg.Done()
	ticker := time.NewTicker(time.Microsecond * 100)
	defer ticker.Stop()
	for {
		select {
		case <-e.done:
			return
		case <-ticker.C:
			e.Sys.TickAllTimers()
		}
	}
}

// Stop signals every CPU and the clock goroutine to exit and waits for
// them, with a timeout matching the teacher's one-second shutdown grace
// period.
func (e *Engine) Stop() {
	close(e.done)
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return
	case <-time.After(time.Second):
		slog.Warn("timed out waiting for CPUs to stop")
		return
	}
}

// PostExtIrq posts an external interrupt to the given CPU ordinal.
func (e *Engine) PostExtIrq(cpuID int) {
	for _, c := range e.Sys.CPUs {
		if c.CPUID == cpuID {
			c.PostExtIrq()
			return
		}
	}
}
