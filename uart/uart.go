// Package uart drives a memory-mapped 16550-compatible UART by polling.
//
// A Device never caches register contents and never allocates: every call
// is one or more immediate register accesses through its Backend. There is
// no internal locking. A Device must have a single owner at a time; callers
// that share one across goroutines or cores must serialize access
// themselves.
//
// The blocking calls (WriteByte, ReadByte) spin on the line status
// register with no timeout. A stalled or absent UART hangs them forever.
// Callers needing bounded time use TryWriteByte and TryReadByte, or the
// WriteByteWithin and ReadByteWithin helpers built on them.
package uart

import "errors"

// Backend is byte-wide access to the eight registers of one UART.
// Offsets are register indices, 0 through RegisterCount-1.
type Backend interface {
	Read8(off uint8) uint8
	Write8(off uint8, v uint8)
}

// DefaultPollLimit is a status poll budget for the bounded helpers.
const DefaultPollLimit = 1000

var (
	// ErrTransmitTimeout is returned when the transmitter holding register
	// stayed full for the whole poll budget.
	ErrTransmitTimeout = errors.New("uart: transmitter holding register not empty")
	// ErrReceiveTimeout is returned when no byte arrived within the poll
	// budget.
	ErrReceiveTimeout = errors.New("uart: no received data ready")
)

// Config is the one-time setup applied by Init.
type Config struct {
	// Divisor is the baud rate divisor, input clock / (16 * baud).
	Divisor uint16
	// Line is the word length, parity and stop bit format.
	Line LineConfig
	// FIFOTrigger is the receive FIFO trigger level.
	FIFOTrigger Trigger
	// AssertModemLines raises DTR and RTS. Some boards wire these so the
	// remote end drops data until they are asserted.
	AssertModemLines bool
	// Out2 raises the OUT2 line, which PC-style boards use to gate the
	// interrupt line to the interrupt controller.
	Out2 bool
}

// Config8N1 returns 8 data bits, no parity, one stop bit with a 14 byte
// receive trigger and DTR/RTS asserted.
func Config8N1(divisor uint16) Config {
	return Config{
		Divisor:          divisor,
		Line:             Line8N1,
		FIFOTrigger:      Trigger14,
		AssertModemLines: true,
	}
}

// Device is one 16550 UART.
type Device struct {
	regs Backend
}

// New returns a Device over regs. It performs no register access, so it
// cannot fail; the caller guarantees regs addresses a real UART.
func New(regs Backend) *Device {
	return &Device{regs: regs}
}

// NewMMIO returns a Device over the register block at base, which must be
// mapped as strongly-ordered device memory.
func NewMMIO(base uintptr) *Device {
	return New(&MMIO{Base: base})
}

// Init disables interrupts, programs the baud divisor and line format,
// resets and enables the FIFOs and drives the modem control lines.
func (d *Device) Init(cfg Config) {
	d.regs.Write8(IER, 0)

	d.regs.Write8(LCR, LCRDLAB)
	d.regs.Write8(DLL, uint8(cfg.Divisor))
	d.regs.Write8(DLM, uint8(cfg.Divisor>>8))
	d.regs.Write8(LCR, uint8(cfg.Line)&^LCRDLAB)

	d.regs.Write8(FCR, FCREnable|FCRClearRX|FCRClearTX|uint8(cfg.FIFOTrigger&triggerMask))

	var mcr uint8
	if cfg.AssertModemLines {
		mcr |= MCRDTR | MCRRTS
	}
	if cfg.Out2 {
		mcr |= MCROut2
	}
	d.regs.Write8(MCR, mcr)
}

// transmitWrite and receiveRead are the two views of offset 0.
func (d *Device) transmitWrite(b byte) { d.regs.Write8(THR, b) }
func (d *Device) receiveRead() byte { return d.regs.Read8(RBR) }

func (d *Device) status() uint8 { return d.regs.Read8(LSR) }

// WriteByte waits for the transmitter holding register to empty, then
// writes b. The error is always nil.
func (d *Device) WriteByte(b byte) error {
	for d.status()&LSRTHREmpty == 0 {
		// wait for room in the transmitter
	}
	d.transmitWrite(b)
	return nil
}

// TryWriteByte checks the line status once and writes b only if the
// transmitter holding register is empty.
func (d *Device) TryWriteByte(b byte) bool {
	if d.status()&LSRTHREmpty == 0 {
		return false
	}
	d.transmitWrite(b)
	return true
}

// ReadByte waits for a received byte and returns it. The error is always
// nil.
func (d *Device) ReadByte() (byte, error) {
	for d.status()&LSRDataReady == 0 {
		// wait for data
	}
	return d.receiveRead(), nil
}

// TryReadByte checks the line status once and, when data is ready, reads
// and returns it. The receive buffer is not touched when no data is ready.
func (d *Device) TryReadByte() (byte, bool) {
	if d.status()&LSRDataReady == 0 {
		return 0, false
	}
	return d.receiveRead(), true
}

// WriteByteWithin tries to write b at most polls times.
func (d *Device) WriteByteWithin(b byte, polls int) error {
	for i := 0; i < polls; i++ {
		if d.TryWriteByte(b) {
			return nil
		}
	}
	return ErrTransmitTimeout
}

// ReadByteWithin tries to read a byte at most polls times.
func (d *Device) ReadByteWithin(polls int) (byte, error) {
	for i := 0; i < polls; i++ {
		if b, ok := d.TryReadByte(); ok {
			return b, nil
		}
	}
	return 0, ErrReceiveTimeout
}

// Write sends p one byte at a time with WriteByte. Nothing is buffered.
func (d *Device) Write(p []byte) (int, error) {
	for _, b := range p {
		d.WriteByte(b)
	}
	return len(p), nil
}

// WriteString is Write for strings.
func (d *Device) WriteString(s string) (int, error) {
	for i := 0; i < len(s); i++ {
		d.WriteByte(s[i])
	}
	return len(s), nil
}

// LineStatus reads and decodes the line status register. Reading it
// clears the latched error bits in hardware.
func (d *Device) LineStatus() LineStatus {
	return DecodeLineStatus(d.status())
}

// ModemStatus returns the raw modem status register. Reading it clears
// the delta bits in hardware.
func (d *Device) ModemStatus() uint8 {
	return d.regs.Read8(MSR)
}

// Probe checks that the scratch register holds two test patterns and
// restores its previous contents. A missing UART usually reads back as
// all ones or all zeros and fails the check.
func (d *Device) Probe() bool {
	saved := d.regs.Read8(SCR)
	defer d.regs.Write8(SCR, saved)

	for _, pattern := range [...]uint8{0x55, 0xAA} {
		d.regs.Write8(SCR, pattern)
		if d.regs.Read8(SCR) != pattern {
			return false
		}
	}
	return true
}
