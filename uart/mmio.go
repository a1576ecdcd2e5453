package uart

import "unsafe"

// MMIO is a Backend over registers mapped at Base. Register n lives at
// Base + n<<Shift; most PC-style parts use Shift 0 while many SoCs space
// the registers four bytes apart (Shift 2).
//
// Each access is a single byte load or store through an unsafe pointer.
// The methods are not inlined so the compiler cannot merge or hoist
// accesses out of a polling loop.
type MMIO struct {
	Base  uintptr
	Shift uint
}

func (m *MMIO) addr(off uint8) unsafe.Pointer {
	return unsafe.Pointer(m.Base + uintptr(off)<<m.Shift)
}

//go:nosplit
//go:noinline
func (m *MMIO) Read8(off uint8) uint8 {
	return *(*uint8)(m.addr(off))
}

//go:nosplit
//go:noinline
func (m *MMIO) Write8(off uint8, v uint8) {
	*(*uint8)(m.addr(off)) = v
}

// Size returns the number of bytes the register block spans.
func (m *MMIO) Size() uintptr {
	return RegisterCount << m.Shift
}
