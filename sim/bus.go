package sim

import (
	"fmt"
	"sort"

	"ns16550/uart"
)

// Simple physical address map and byte read/write helpers.
// Devices occupy windows of uart.RegisterCount registers spaced 1<<shift
// bytes apart; the lanes between registers read as zero and ignore writes.
// Addresses outside every window report !ok, like a bus error.

// DefaultBase is where QEMU's RISC-V virt machine puts its first 16550.
const DefaultBase = 0x10000000

type mapping struct {
	base  uint32
	shift uint
	dev   uart.Backend
}

func (m mapping) size() uint32 { return uart.RegisterCount << m.shift }

func (m mapping) contains(addr uint32) bool {
	return addr >= m.base && addr-m.base < m.size()
}

type Bus struct {
	maps []mapping
}

func NewBus() *Bus {
	return &Bus{}
}

// Map places dev at base with a register stride of 1<<shift bytes.
func (b *Bus) Map(base uint32, shift uint, dev uart.Backend) error {
	m := mapping{base: base, shift: shift, dev: dev}
	if base&(1<<shift-1) != 0 {
		return fmt.Errorf("map 0x%08x: base not aligned to %d-byte stride", base, 1<<shift)
	}
	if uint64(base)+uint64(m.size()) > 1<<32 {
		return fmt.Errorf("map 0x%08x: window runs past the end of the address space", base)
	}
	for _, o := range b.maps {
		if uint64(m.base) < uint64(o.base)+uint64(o.size()) && uint64(o.base) < uint64(m.base)+uint64(m.size()) {
			return fmt.Errorf("map 0x%08x: overlaps device at 0x%08x", base, o.base)
		}
	}
	b.maps = append(b.maps, m)
	sort.Slice(b.maps, func(i, j int) bool { return b.maps[i].base < b.maps[j].base })
	return nil
}

func (b *Bus) lookup(addr uint32) (mapping, bool) {
	for _, m := range b.maps {
		if m.contains(addr) {
			return m, true
		}
	}
	return mapping{}, false
}

func (b *Bus) Read8(addr uint32) (uint8, bool) {
	m, ok := b.lookup(addr)
	if !ok {
		return 0, false
	}
	rel := addr - m.base
	if rel&(1<<m.shift-1) != 0 {
		return 0, true
	}
	return m.dev.Read8(uint8(rel >> m.shift)), true
}

func (b *Bus) Write8(addr uint32, v uint8) bool {
	m, ok := b.lookup(addr)
	if !ok {
		return false
	}
	rel := addr - m.base
	if rel&(1<<m.shift-1) != 0 {
		return true
	}
	m.dev.Write8(uint8(rel>>m.shift), v)
	return true
}

// Read32 composes 4 bytes via Read8, the way a word-wide load hits a
// device with a 4-byte register stride: only the low lane carries data.
func (b *Bus) Read32(addr uint32) (uint32, bool) {
	var w uint32
	for i := uint32(0); i < 4; i++ {
		v, ok := b.Read8(addr + i)
		if !ok {
			return 0, false
		}
		w |= uint32(v) << (8 * i)
	}
	return w, true
}

// Write32 stores the low byte at addr and the remaining bytes in the
// following lanes.
func (b *Bus) Write32(addr uint32, v uint32) bool {
	for i := uint32(0); i < 4; i++ {
		if !b.Write8(addr+i, uint8(v>>(8*i))) {
			return false
		}
	}
	return true
}

// Window is the register block at one base address, seen through the bus
// the way a driver sees mapped device memory. It implements uart.Backend.
type Window struct {
	bus   *Bus
	base  uint32
	shift uint
}

// Window returns the uart.Backend for registers at base with the given
// stride. Accesses that miss every mapped device read as 0xFF, the value
// an undriven bus floats to.
func (b *Bus) Window(base uint32, shift uint) *Window {
	return &Window{bus: b, base: base, shift: shift}
}

func (w *Window) addr(off uint8) uint32 {
	return w.base + uint32(off)<<w.shift
}

func (w *Window) Read8(off uint8) uint8 {
	v, ok := w.bus.Read8(w.addr(off))
	if !ok {
		return 0xFF
	}
	return v
}

func (w *Window) Write8(off uint8, v uint8) {
	w.bus.Write8(w.addr(off), v)
}
