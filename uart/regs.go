package uart

// Register offsets relative to the base of a 16550 register block.
// Offsets 0 and 1 change meaning while LCR.DLAB is set, and offset 0
// means RBR on reads and THR on writes.
const (
	RBR = 0 // receiver buffer (read)
	THR = 0 // transmitter holding (write)
	DLL = 0 // divisor latch low byte (DLAB=1)
	IER = 1 // interrupt enable
	DLM = 1 // divisor latch high byte (DLAB=1)
	IIR = 2 // interrupt identification (read)
	FCR = 2 // FIFO control (write)
	LCR = 3 // line control
	MCR = 4 // modem control
	LSR = 5 // line status
	MSR = 6 // modem status
	SCR = 7 // scratch

	// RegisterCount is the number of byte registers in the block.
	RegisterCount = 8
)

// FIFO control bits (write-only).
const (
	FCREnable  = 1 << 0
	FCRClearRX = 1 << 1
	FCRClearTX = 1 << 2
	FCRDMAMode = 1 << 3
)

// Trigger is the receive FIFO trigger level, already positioned in
// FCR bits 6-7.
type Trigger uint8

const (
	Trigger1  Trigger = 0 << 6
	Trigger4  Trigger = 1 << 6
	Trigger8  Trigger = 2 << 6
	Trigger14 Trigger = 3 << 6

	triggerMask = 3 << 6
)

// Bytes returns the trigger level in bytes.
func (t Trigger) Bytes() int {
	switch t & triggerMask {
	case Trigger4:
		return 4
	case Trigger8:
		return 8
	case Trigger14:
		return 14
	}
	return 1
}

// Line control bits.
const (
	LCRWordLengthMask = 0x03
	LCRStop2          = 1 << 2
	LCRParityEnable   = 1 << 3
	LCREvenParity     = 1 << 4
	LCRStickParity    = 1 << 5
	LCRBreak          = 1 << 6
	LCRDLAB           = 1 << 7
)

// Modem control bits.
const (
	MCRDTR      = 1 << 0
	MCRRTS      = 1 << 1
	MCROut1     = 1 << 2
	MCROut2     = 1 << 3
	MCRLoopback = 1 << 4
)

// Line status bits.
const (
	LSRDataReady      = 1 << 0
	LSROverrunError   = 1 << 1
	LSRParityError    = 1 << 2
	LSRFramingError   = 1 << 3
	LSRBreakInterrupt = 1 << 4
	LSRTHREmpty       = 1 << 5
	LSRTxEmpty        = 1 << 6
	LSRFIFOError      = 1 << 7

	// LSRErrorMask covers every bit that reports a receive-side error.
	LSRErrorMask = LSROverrunError | LSRParityError | LSRFramingError |
		LSRBreakInterrupt | LSRFIFOError
)

// Modem status bits. The low nibble holds delta flags that clear on read.
const (
	MSRDeltaCTS = 1 << 0
	MSRDeltaDSR = 1 << 1
	MSRTrailRI  = 1 << 2
	MSRDeltaDCD = 1 << 3
	MSRCTS      = 1 << 4
	MSRDSR      = 1 << 5
	MSRRI       = 1 << 6
	MSRDCD      = 1 << 7
)

// IIRNoPending is set in IIR while no interrupt is pending.
const IIRNoPending = 1 << 0

var readNames = [RegisterCount]string{"RBR", "IER", "IIR", "LCR", "MCR", "LSR", "MSR", "SCR"}
var writeNames = [RegisterCount]string{"THR", "IER", "FCR", "LCR", "MCR", "LSR", "MSR", "SCR"}

// RegisterName names the register addressed by off for the given access
// direction and DLAB state.
func RegisterName(off uint8, write, dlab bool) string {
	if int(off) >= RegisterCount {
		return "?"
	}
	if dlab {
		switch off {
		case DLL:
			return "DLL"
		case DLM:
			return "DLM"
		}
	}
	if write {
		return writeNames[off]
	}
	return readNames[off]
}
