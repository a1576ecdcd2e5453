package uart

import "strings"

// LineStatus is a decoded line status register.
//
// The error bits latch when a byte moves into the receive buffer and clear
// when the register is read, so a caller that wants to pair an error with a
// byte must query the status right after reading it.
type LineStatus struct {
	Raw uint8

	DataReady      bool
	OverrunError   bool
	ParityError    bool
	FramingError   bool
	BreakInterrupt bool
	THREmpty       bool
	TxEmpty        bool
	FIFOError      bool
}

// DecodeLineStatus maps each bit of v onto its flag.
func DecodeLineStatus(v uint8) LineStatus {
	return LineStatus{
		Raw:            v,
		DataReady:      v&LSRDataReady != 0,
		OverrunError:   v&LSROverrunError != 0,
		ParityError:    v&LSRParityError != 0,
		FramingError:   v&LSRFramingError != 0,
		BreakInterrupt: v&LSRBreakInterrupt != 0,
		THREmpty:       v&LSRTHREmpty != 0,
		TxEmpty:        v&LSRTxEmpty != 0,
		FIFOError:      v&LSRFIFOError != 0,
	}
}

// Errors reports whether any receive error flag is set.
func (s LineStatus) Errors() bool {
	return s.Raw&LSRErrorMask != 0
}

var lsrNames = [8]string{"DR", "OE", "PE", "FE", "BI", "THRE", "TEMT", "FIFOE"}

// String lists the set flags separated by '|', or "-" when none are set.
func (s LineStatus) String() string {
	if s.Raw == 0 {
		return "-"
	}
	var b strings.Builder
	for i, name := range lsrNames {
		if s.Raw&(1<<i) == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('|')
		}
		b.WriteString(name)
	}
	return b.String()
}
