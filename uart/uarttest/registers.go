// Package uarttest provides a scripted register block for testing code
// built on package uart without hardware.
package uarttest

import "ns16550/uart"

// Access is one recorded register access.
type Access struct {
	Write bool
	Off   uint8
	Val   uint8
	// DLAB reports whether LCR.DLAB was set at the time of the access.
	DLAB bool
}

// Snapshot is the full contents of a Registers block.
type Snapshot struct {
	Regs [uart.RegisterCount]uint8
	DLL  uint8
	DLM  uint8
}

// Registers is a byte array standing in for the eight registers of a
// 16550. Reads return the stored byte, writes store it. While LCR.DLAB is
// set, offsets 0 and 1 address a separate divisor latch, as on the chip.
//
// The line status register can be scripted so successive reads return a
// sequence of values before falling back to the stored byte. Every access
// is counted and logged.
//
// Registers is not safe for concurrent use.
type Registers struct {
	regs     [uart.RegisterCount]uint8
	dll, dlm uint8

	script []uint8

	reads  [uart.RegisterCount]int
	writes [uart.RegisterCount]int
	log    []Access
}

var _ uart.Backend = (*Registers)(nil)

// New returns a zeroed register block.
func New() *Registers {
	return &Registers{}
}

func (r *Registers) dlab() bool {
	return r.regs[uart.LCR]&uart.LCRDLAB != 0
}

// Read8 implements uart.Backend.
func (r *Registers) Read8(off uint8) uint8 {
	off %= uart.RegisterCount
	dlab := r.dlab()
	r.reads[off]++

	var v uint8
	switch {
	case dlab && off == uart.DLL:
		v = r.dll
	case dlab && off == uart.DLM:
		v = r.dlm
	case off == uart.LSR && len(r.script) > 0:
		v = r.script[0]
		r.script = r.script[1:]
	default:
		v = r.regs[off]
	}
	r.log = append(r.log, Access{Off: off, Val: v, DLAB: dlab})
	return v
}

// Write8 implements uart.Backend.
func (r *Registers) Write8(off uint8, v uint8) {
	off %= uart.RegisterCount
	dlab := r.dlab()
	r.writes[off]++
	r.log = append(r.log, Access{Write: true, Off: off, Val: v, DLAB: dlab})

	switch {
	case dlab && off == uart.DLL:
		r.dll = v
	case dlab && off == uart.DLM:
		r.dlm = v
	default:
		r.regs[off] = v
	}
}

// Set stores v at off without recording an access. DLAB is ignored.
func (r *Registers) Set(off uint8, v uint8) {
	r.regs[off%uart.RegisterCount] = v
}

// Get returns the byte stored at off without recording an access.
func (r *Registers) Get(off uint8) uint8 {
	return r.regs[off%uart.RegisterCount]
}

// SetLineStatus stores v in the line status register.
func (r *Registers) SetLineStatus(v uint8) {
	r.Set(uart.LSR, v)
}

// SetReceive stores v in the receive buffer.
func (r *Registers) SetReceive(v uint8) {
	r.Set(uart.RBR, v)
}

// ScriptLineStatus queues values returned by the next len(vs) reads of
// the line status register.
func (r *Registers) ScriptLineStatus(vs ...uint8) {
	r.script = append(r.script, vs...)
}

// NotReadyFor makes the next n line status reads return 0 before the
// stored value shows through.
func (r *Registers) NotReadyFor(n int) {
	for i := 0; i < n; i++ {
		r.script = append(r.script, 0)
	}
}

// Divisor returns the latched divisor.
func (r *Registers) Divisor() uint16 {
	return uint16(r.dlm)<<8 | uint16(r.dll)
}

// Reads returns how many times off has been read.
func (r *Registers) Reads(off uint8) int {
	return r.reads[off%uart.RegisterCount]
}

// Writes returns how many times off has been written.
func (r *Registers) Writes(off uint8) int {
	return r.writes[off%uart.RegisterCount]
}

// Log returns the recorded accesses in order.
func (r *Registers) Log() []Access {
	return r.log
}

// ResetLog clears the access log and counters, keeping register contents.
func (r *Registers) ResetLog() {
	r.log = nil
	r.reads = [uart.RegisterCount]int{}
	r.writes = [uart.RegisterCount]int{}
}

// Snapshot returns the current register contents.
func (r *Registers) Snapshot() Snapshot {
	return Snapshot{Regs: r.regs, DLL: r.dll, DLM: r.dlm}
}
