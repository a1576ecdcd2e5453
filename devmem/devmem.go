// Package devmem maps a UART register block from physical memory into a
// Linux process through /dev/mem.
package devmem

import "ns16550/uart"

// DevMem is the physical memory device.
const DevMem = "/dev/mem"

// span returns the page-aligned mapping that covers a register block of
// uart.RegisterCount registers spaced 1<<shift bytes apart at phys:
// the mapping start, the block's offset inside it, and its length.
func span(phys uintptr, shift uint, page uintptr) (start, delta, length uintptr) {
	start = phys &^ (page - 1)
	delta = phys - start
	end := delta + uart.RegisterCount<<shift
	length = (end + page - 1) &^ (page - 1)
	return start, delta, length
}
