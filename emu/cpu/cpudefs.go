/*
   CPU definitions: PSW, register file, control registers, TLB entry, and
   the program-check / condition-code constants shared by every
   instruction handler.

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

import (
	"sync"

	mem "github.com/s390x-emu/core/emu/memory"
)

// Architecture mode the engine runs a CPU in. A System has one mode for
// all its CPUs; instructions check it where ESA/390 or ESAME widen or
// change S/370 behavior.
type Arch int

const (
	ArchS370 Arch = iota
	ArchESA390
	ArchESAME
)

// stepInfo carries the decoded form of one instruction across fetch,
// operand computation, and the opcode handler.
type stepInfo struct {
	opcode   uint8  // Current opcode
	reg      uint8  // R1,R2 nibble pair as fetched
	R1       uint8  // R1 field
	R2       uint8  // R2 field
	R3       uint8  // R3 field (RRE/RRF three-register forms)
	arn1     uint8  // Access register selected by B1 in AR mode
	arn2     uint8  // Access register selected by B2 in AR mode
	address1 uint32 // First operand address
	address2 uint32 // Second operand address
	length1  uint8  // SS-format first length
	length2  uint8  // SS-format second length
	src1     uint32 // First operand source value (register ops)
	src2     uint32 // Second operand source value
}

// tlbEntry is one line of the per-CPU 256-entry translation lookaside
// buffer, keyed by virtual page number modulo 256 (spec.md Data Model).
type tlbEntry struct {
	std     uint32 // segment-table designation this translation was made under
	vpage   uint32 // virtual page number (full, not just the low byte)
	pte     uint32 // translated page-frame real address bits, pre-shifted
	common  bool   // common-segment bit from the STE
	private bool   // private-space bit from the STD
	protect bool   // page/segment protection indicator
	valid   bool
}

// albEntry is one cached access-list entry used by ART; a separate small
// lookaside table keyed by ALET avoids re-walking DUCT/PASTE -> ALE ->
// ASTE on every AR-mode reference (spec.md C4).
type albEntry struct {
	alet  uint32
	aste2 uint32 // STD word copied out of the ASTE
	asn   uint16
	valid bool
}

// cpuRunState is the SIGP/dispatch-loop state machine for one CPU
// (spec.md section 4.8).
type cpuRunState int

const (
	StateStarting cpuRunState = iota
	StateStarted
	StateStopping
	StateStopped
)

const maxCPUs = 16

// CPU is the per-engine execution context: PSW, registers, control
// registers, DAT/ART caches, and the SIGP-visible run state. It holds a
// non-owning back-reference to its owning System (spec.md section 9 design
// notes: the back pointer is a lookup key, not a cycle).
type CPU struct {
	sys   *System // owning system (storage + locks + peer CPUs)
	CPUID int     // ordinal address used by SIGP

	arch Arch

	PC  uint32 // Instruction address
	iPC uint32 // Instruction address at start of current instruction

	regs     [16]uint32 // General registers, low-order 32 bits (GR_L)
	regsHigh [16]uint32 // GR_H: high-order half of each register, used only in ESAME amode64 (spec.md C16)
	cregs    [16]uint32 // Control registers
	ars      [16]uint32 // Access registers (ALETs)

	prefix   uint32 // Prefix register (real address of this CPU's PSA frame)
	sysMask  uint16 // Channel interrupt enable mask (BC mode)
	stKey    uint8  // Current PSW storage protection key
	ecMode   bool   // PSW is in EC mode
	cc       uint8  // Condition code
	ilc      uint8  // Instruction length code
	progMask uint8  // Program mask
	flags    uint8  // Wait/problem/machine-check bits, see flag consts
	amode64  bool   // ESAME 64-bit addressing mode bit
	amode31  bool   // 31-bit addressing mode bit (ESA/390 and ESAME)

	pageEnb bool  // DAT enabled
	asMode  uint8 // PSW address-space-control field, see asXxx consts

	// DAT state.
	tlb         [256]tlbEntry
	pageShift   uint32
	pageMask    uint32
	pageIndex   uint32
	segShift    uint32
	segMask     uint32
	segLen      uint32
	pteLenShift uint32
	pteAvail    uint32
	pteMBZ      uint32
	pteShift    uint32

	// ART state.
	alb [16]albEntry

	irqEnb bool // Interrupts enabled (BC-mode system mask bit)
	extEnb bool
	extIrq bool
	intIrq bool
	intEnb bool
	todIrq bool
	todEnb bool
	clkIrq bool

	servSig  bool   // DIAGNOSE-posted service-signal pending
	servParm uint32 // Parameter recorded for the service-signal interrupt

	todOffset uint64 // per-CPU TOD epoch offset (applied on top of the shared TOD)
	clkCmp    uint64 // clock comparator
	cpuTimer  int64  // CPU timer, signed decrementing
	timerTics int

	perEnb    bool
	perRegMod uint32
	perCode   uint16
	perAddr   uint32
	perBranch bool
	perFetch  bool
	perStore  bool
	perReg    bool

	tea uint32 // translation exception address, set on ircSeg/ircPage/ircSpec from translateAddr

	run      cpuRunState
	extcall  bool
	extCCPU  int
	emersig  bool
	emerCPU  [maxCPUs]bool
	restart  bool
	storstat bool
	online   bool

	memCycle int // storage cycles charged to the instruction in progress

	table   [256]func(*CPU, *stepInfo) uint16
	tableB2 [256]func(*CPU, *stepInfo) uint16 // 0xB2xx two-byte opcode space
	tableB9 [256]func(*CPU, *stepInfo) uint16 // 0xB9xx RRE/RRF space
	tableE3 [256]func(*CPU, *stepInfo) uint16 // 0xE3xx RXE/RXY space

	mu sync.Mutex // guards run/extcall/emersig/restart/storstat from SIGP senders
}

// PSW enable bits carried in the system-mask / EC-mode control fields.
const (
	extEnable uint8 = 0x01
	irqEnable uint8 = 0x02
	datEnable uint8 = 0x04
	perEnable uint8 = 0x40

	ecModeBit uint8 = 0x08
	mCheck    uint8 = 0x04
	wait      uint8 = 0x02
	problem   uint8 = 0x01
)

// PSW address-space-control field values (ESA/390 bits 16-17).
const (
	asPrimary uint8 = iota
	asAR
	asSecondary
	asHome
)

// Access-register-mode / space-mode selectors used by translateAddr, as
// passed in place of a literal access-register number.
const (
	UseInstFetch = -1 // compute STD per PSW addressing mode
	UseStack     = -2
	UsePrimary   = -3
	UseSecondary = -4
	UseRealAddr  = -5
)

// Access type for protection/translation decisions.
type accType int

const (
	AccRead accType = iota
	AccWrite
	AccInstFetch
	AccStack
	AccLRA
)

// Program-check (interruption) codes, spec.md section 7 taxonomy.
const (
	ircOper      uint16 = 0x0001
	ircPriv      uint16 = 0x0002
	ircExec      uint16 = 0x0003
	ircProt      uint16 = 0x0004
	ircAddr      uint16 = 0x0005
	ircSpec      uint16 = 0x0006
	ircData      uint16 = 0x0007
	ircFixOver   uint16 = 0x0008
	ircFixDiv    uint16 = 0x0009
	ircDecOver   uint16 = 0x000a
	ircDecDiv    uint16 = 0x000b
	ircExpOver   uint16 = 0x000c
	ircExpUnder  uint16 = 0x000d
	ircSignif    uint16 = 0x000e
	ircFPDiv     uint16 = 0x000f
	ircSeg       uint16 = 0x0010
	ircPage      uint16 = 0x0011
	ircTrans     uint16 = 0x0012
	ircSpecOp    uint16 = 0x0013
	ircTransSpec uint16 = 0x0014
	ircPCTrans   uint16 = 0x0017
	ircAFX       uint16 = 0x0018
	ircASX       uint16 = 0x0019
	ircLX        uint16 = 0x001a
	ircEX        uint16 = 0x001b
	ircPrimAuth  uint16 = 0x001c
	ircSecAuth   uint16 = 0x001d
	ircALET      uint16 = 0x0028
	ircALEN      uint16 = 0x0029
	ircALESeq    uint16 = 0x002a
	ircASTEVal   uint16 = 0x002b
	ircASTESeq   uint16 = 0x002c
	ircExtAuth   uint16 = 0x002d
	ircStackFull uint16 = 0x0030
	ircStackEmpty uint16 = 0x0031
	ircStackSpec uint16 = 0x0032
	ircStackType uint16 = 0x0033
	ircStackOp   uint16 = 0x0034
	ircTrace     uint16 = 0x0039
	ircSSEvent   uint16 = 0x003b
	ircMCE       uint16 = 0x0040
	ircPer       uint16 = 0x0080
)

// Old/new PSW locations (EC mode, prefixed low-core layout).
const (
	iPSW   uint32 = 0x00
	oEPSW  uint32 = 0x18
	oSPSW  uint32 = 0x20
	oPPSW  uint32 = 0x28
	oMPSW  uint32 = 0x30
	oIOPSW uint32 = 0x38
	timer  uint32 = 0x50
	nEPSW  uint32 = 0x58
	nSPSW  uint32 = 0x60
	nPPSW  uint32 = 0x68
	nMPSW  uint32 = 0x70
	nIOPSW uint32 = 0x78
)

// Mask constants.
const (
	AMASK  uint32 = 0x7fffffff
	LMASK  uint32 = 0x0000ffff
	WMASK  uint32 = 0xfffffffc
	FMASK  uint32 = 0xffffffff
	HMASK  uint32 = 0xffff0000
	SPMASK uint32 = 0xfffff800 // storage boundary mask (2K)
)

// System is the process-wide owner: absolute storage, the CPU array, and
// the locks spec.md section 5 names (intlock, mainlock, todlock, sigplock).
// It is created once at startup and every CPU holds a reference to it
// (spec.md section 9).
type System struct {
	Mem *mem.System

	CPUs []*CPU

	IntLock  sync.Mutex
	IntCond  *sync.Cond
	TODLock  sync.Mutex
	SigpLock sync.Mutex
	SigpBusy bool

	sharedTOD uint64 // raw monotonic TOD, protected by TODLock
	todEpoch  uint64 // not read or written; SetClock (SCK) stores straight into sharedTOD

	loadParm uint32

	broadcast broadcastState
}

// broadcastState tracks the in-flight TLB/ALB purge broadcast, spec.md
// sections 4.8/5/8 (S3, S6, S8).
type broadcastState struct {
	mu       sync.Mutex
	cond     *sync.Cond
	ptlbReq  bool
	palbReq  bool
	ipteReq  bool
	iptePFRA uint32
	pending  int // number of peer CPUs still to acknowledge
}
