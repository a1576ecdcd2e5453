package uart

import (
	"errors"
	"fmt"
)

// ErrLoopbackMismatch is returned by LoopbackTest when a byte came back
// different from the one sent.
var ErrLoopbackMismatch = errors.New("uart: loopback mismatch")

var loopbackPatterns = [...]byte{0x55, 0xAA, 0x00, 0xFF}

// LoopbackTest puts the chip in internal loopback, sends a few test
// patterns and checks each one comes back, polling at most polls times
// per byte. The modem control register is restored afterwards. The
// receive FIFO should be empty beforehand; a waiting byte reads back as a
// mismatch.
func (d *Device) LoopbackTest(polls int) error {
	mcr := d.regs.Read8(MCR)
	d.regs.Write8(MCR, mcr|MCRLoopback)
	defer d.regs.Write8(MCR, mcr)

	for _, want := range loopbackPatterns {
		if err := d.WriteByteWithin(want, polls); err != nil {
			return err
		}
		got, err := d.ReadByteWithin(polls)
		if err != nil {
			return err
		}
		if got != want {
			return fmt.Errorf("%w: sent %#04x, read %#04x", ErrLoopbackMismatch, want, got)
		}
	}
	if st := d.LineStatus(); st.Errors() {
		return fmt.Errorf("uart: line errors during loopback: %v", st)
	}
	return nil
}
