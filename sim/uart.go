package sim

import (
	"io"
	"os"
	"sync"

	"ns16550/uart"
)

// FIFODepth is the size of the receive FIFO while FIFOs are enabled.
const FIFODepth = 16

type rxByte struct {
	v     uint8
	flags uint8 // PE/FE/BI that arrived with this byte
}

// UART is a behavioural 16550. It implements uart.Backend so the driver
// can run against it unchanged.
//
// Transmitted bytes go straight to Out, so THRE and TEMT are always set
// unless Stall is used. Received bytes come from Feed and InjectError; a
// byte's parity, framing and break flags show in LSR only once that byte
// reaches the head of the receive FIFO. The model locks
// internally because host-side goroutines feed it while the driver polls.
type UART struct {
	mu  sync.Mutex
	out io.Writer

	ier, lcr, mcr, msr, scr, fcr uint8
	dll, dlm                     uint8

	rx     []rxByte
	last   uint8 // RBR contents once the FIFO drains
	latch  uint8 // OE/PE/FE/BI, cleared by reading LSR
	stall  int   // LSR reads left reporting a busy transmitter
	txSent int
}

var _ uart.Backend = (*UART)(nil)

// NewUART returns a chip in its reset state that transmits to out, or to
// stdout when out is nil.
func NewUART(out io.Writer) *UART {
	if out == nil {
		out = os.Stdout
	}
	return &UART{out: out}
}

func (u *UART) dlab() bool { return u.lcr&uart.LCRDLAB != 0 }

func (u *UART) fifoEnabled() bool { return u.fcr&uart.FCREnable != 0 }

func (u *UART) depth() int {
	if u.fifoEnabled() {
		return FIFODepth
	}
	return 1
}

// Read8 implements uart.Backend.
func (u *UART) Read8(off uint8) uint8 {
	u.mu.Lock()
	defer u.mu.Unlock()

	switch off {
	case uart.RBR:
		if u.dlab() {
			return u.dll
		}
		return u.pop()
	case uart.IER:
		if u.dlab() {
			return u.dlm
		}
		return u.ier
	case uart.IIR:
		v := uint8(uart.IIRNoPending)
		if u.fifoEnabled() {
			v |= 0xC0
		}
		return v
	case uart.LCR:
		return u.lcr
	case uart.MCR:
		return u.mcr
	case uart.LSR:
		return u.lineStatus()
	case uart.MSR:
		return u.modemStatus()
	case uart.SCR:
		return u.scr
	}
	return 0xFF
}

// Write8 implements uart.Backend.
func (u *UART) Write8(off uint8, v uint8) {
	u.mu.Lock()
	defer u.mu.Unlock()

	switch off {
	case uart.THR:
		if u.dlab() {
			u.dll = v
			return
		}
		u.transmit(v)
	case uart.IER:
		if u.dlab() {
			u.dlm = v
			return
		}
		u.ier = v & 0x0F
	case uart.FCR:
		u.writeFCR(v)
	case uart.LCR:
		u.lcr = v
	case uart.MCR:
		u.mcr = v & 0x1F
	case uart.SCR:
		u.scr = v
	}
	// LSR and MSR are read-only; writes are dropped.
}

func (u *UART) writeFCR(v uint8) {
	if (v^u.fcr)&uart.FCREnable != 0 {
		// toggling the enable bit resets both FIFOs
		u.rx = nil
	}
	if v&uart.FCRClearRX != 0 {
		u.rx = nil
	}
	// the transmit side has no FIFO to clear: bytes leave immediately
	u.fcr = v &^ (uart.FCRClearRX | uart.FCRClearTX)
}

func (u *UART) transmit(v uint8) {
	u.txSent++
	if u.mcr&uart.MCRLoopback != 0 {
		u.receive(rxByte{v: v})
		return
	}
	u.out.Write([]byte{v})
}

// receive queues b and reports whether it arrived without an overrun.
// With FIFOs on, a byte arriving at a full FIFO is lost. With FIFOs off,
// it overwrites the holding register and the older byte is lost.
func (u *UART) receive(b rxByte) bool {
	if len(u.rx) >= u.depth() {
		u.latch |= uart.LSROverrunError
		if !u.fifoEnabled() {
			u.rx[0] = b
			u.latch |= b.flags
		}
		return false
	}
	u.rx = append(u.rx, b)
	if len(u.rx) == 1 {
		u.latch |= b.flags
	}
	return true
}

// pop removes the head byte. Error flags belong to the byte at the head,
// so the next byte's flags latch as it moves up.
func (u *UART) pop() uint8 {
	if len(u.rx) == 0 {
		return u.last
	}
	b := u.rx[0]
	u.rx = u.rx[1:]
	u.last = b.v
	if len(u.rx) > 0 {
		u.latch |= u.rx[0].flags
	}
	return b.v
}

func (u *UART) lineStatus() uint8 {
	var v uint8
	if len(u.rx) > 0 {
		v |= uart.LSRDataReady
	}
	if u.stall > 0 {
		u.stall--
	} else {
		v |= uart.LSRTHREmpty | uart.LSRTxEmpty
	}
	if u.fifoEnabled() {
		for _, b := range u.rx {
			if b.flags != 0 {
				v |= uart.LSRFIFOError
				break
			}
		}
	}
	v |= u.latch
	u.latch = 0
	return v
}

func (u *UART) modemStatus() uint8 {
	v := u.msr
	if u.mcr&uart.MCRLoopback != 0 {
		// loopback ties the outputs back onto the inputs
		v &^= uart.MSRCTS | uart.MSRDSR | uart.MSRRI | uart.MSRDCD
		if u.mcr&uart.MCRRTS != 0 {
			v |= uart.MSRCTS
		}
		if u.mcr&uart.MCRDTR != 0 {
			v |= uart.MSRDSR
		}
		if u.mcr&uart.MCROut1 != 0 {
			v |= uart.MSRRI
		}
		if u.mcr&uart.MCROut2 != 0 {
			v |= uart.MSRDCD
		}
	}
	u.msr &^= 0x0F
	return v
}

// Feed delivers bytes from the remote end. It returns how many arrived
// without an overrun; each of the others raises one.
func (u *UART) Feed(p []byte) int {
	u.mu.Lock()
	defer u.mu.Unlock()

	n := 0
	for _, v := range p {
		if u.receive(rxByte{v: v}) {
			n++
		}
	}
	return n
}

// Write is Feed as an io.Writer, so a host stream can be copied into the
// chip. Bytes that do not fit are dropped but still counted as written,
// as they would be on a real line.
func (u *UART) Write(p []byte) (int, error) {
	u.Feed(p)
	return len(p), nil
}

// InjectError delivers v with receive error flags (uart.LSRParityError,
// uart.LSRFramingError, uart.LSRBreakInterrupt).
func (u *UART) InjectError(v byte, flags uint8) bool {
	u.mu.Lock()
	defer u.mu.Unlock()

	flags &= uart.LSRParityError | uart.LSRFramingError | uart.LSRBreakInterrupt
	return u.receive(rxByte{v: v, flags: flags})
}

// SetModemInputs drives CTS/DSR/RI/DCD from the remote side, setting the
// matching delta bits for lines that changed.
func (u *UART) SetModemInputs(lines uint8) {
	u.mu.Lock()
	defer u.mu.Unlock()

	lines &= 0xF0
	changed := (u.msr ^ lines) & 0xF0
	u.msr = lines | u.msr&0x0F | changed>>4
}

// Stall makes the next n line status reads report a busy transmitter.
func (u *UART) Stall(n int) {
	u.mu.Lock()
	u.stall = n
	u.mu.Unlock()
}

// Divisor returns the programmed baud divisor.
func (u *UART) Divisor() uint16 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return uint16(u.dlm)<<8 | uint16(u.dll)
}

// LineControl returns LCR.
func (u *UART) LineControl() uint8 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.lcr
}

// ModemControl returns MCR.
func (u *UART) ModemControl() uint8 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.mcr
}

// InterruptEnable returns IER.
func (u *UART) InterruptEnable() uint8 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.ier
}

// Pending returns the number of bytes waiting in the receive FIFO.
func (u *UART) Pending() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.rx)
}

// Transmitted returns how many bytes the chip has sent.
func (u *UART) Transmitted() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.txSent
}
