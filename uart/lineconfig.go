package uart

import "strconv"

// Parity selects the parity bits of the line control register.
type Parity uint8

const (
	ParityNone  Parity = 0
	ParityOdd   Parity = LCRParityEnable
	ParityEven  Parity = LCRParityEnable | LCREvenParity
	ParityMark  Parity = LCRParityEnable | LCRStickParity
	ParitySpace Parity = LCRParityEnable | LCREvenParity | LCRStickParity

	parityMask = LCRParityEnable | LCREvenParity | LCRStickParity
)

func (p Parity) String() string {
	switch p & parityMask {
	case ParityNone:
		return "N"
	case ParityOdd:
		return "O"
	case ParityEven:
		return "E"
	case ParityMark:
		return "M"
	case ParitySpace:
		return "S"
	}
	// even-select without enable: the chip sends no parity
	return "N"
}

// LineConfig is the byte written to the line control register by Init.
// Any value is accepted; bit 7 (DLAB) is always cleared when written.
type LineConfig uint8

// Common formats.
const (
	Line8N1 = LineConfig(3)
	Line7E1 = LineConfig(2 | LCRParityEnable | LCREvenParity)
)

// NewLineConfig encodes a word length of 5-8 bits, a parity mode and one
// or two stop bits. Out of range word lengths wrap into the two-bit field
// and any stop value other than 2 selects one stop bit.
func NewLineConfig(wordLength int, parity Parity, stopBits int) LineConfig {
	v := uint8(wordLength-5) & LCRWordLengthMask
	v |= uint8(parity) & parityMask
	if stopBits == 2 {
		v |= LCRStop2
	}
	return LineConfig(v)
}

// WordLength returns the number of data bits, 5 through 8.
func (c LineConfig) WordLength() int {
	return int(c&LCRWordLengthMask) + 5
}

// StopBits returns 1 or 2. With five data bits the hardware sends 1.5
// stop bits when this reports 2.
func (c LineConfig) StopBits() int {
	if c&LCRStop2 != 0 {
		return 2
	}
	return 1
}

func (c LineConfig) Parity() Parity {
	p := Parity(c) & parityMask
	if p&LCRParityEnable == 0 {
		return ParityNone
	}
	return p
}

// Break reports whether the configuration forces a break condition.
func (c LineConfig) Break() bool {
	return c&LCRBreak != 0
}

// String renders the format as e.g. "8N1".
func (c LineConfig) String() string {
	return strconv.Itoa(c.WordLength()) + c.Parity().String() + strconv.Itoa(c.StopBits())
}
