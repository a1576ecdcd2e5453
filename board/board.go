// Package board describes where a UART lives on a platform and how it is
// clocked and wired, and turns that into a uart.Config.
package board

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"ns16550/uart"
)

var (
	ErrUnknownBoard = errors.New("unknown board")
	ErrBadDivisor   = errors.New("baud rate not reachable from input clock")
	ErrBadFormat    = errors.New("bad line format")
	ErrBadTrigger   = errors.New("bad FIFO trigger level")
)

// Board is one platform's UART profile.
type Board struct {
	Name string `yaml:"name"`
	// Base is the physical address of register 0.
	Base uint64 `yaml:"base"`
	// RegShift is log2 of the register stride in bytes.
	RegShift uint `yaml:"reg_shift"`
	// Clock is the UART input clock in Hz.
	Clock uint32 `yaml:"clock"`
	Baud  uint32 `yaml:"baud"`
	// Format is the line format, e.g. "8N1".
	Format      string `yaml:"format"`
	ModemLines  bool   `yaml:"modem_lines"`
	Out2        bool   `yaml:"out2"`
	FIFOTrigger int    `yaml:"fifo_trigger"`
}

//go:embed boards.yaml
var builtin []byte

var boards = mustParseList(builtin)

func mustParseList(data []byte) map[string]Board {
	var list []Board
	if err := yaml.Unmarshal(data, &list); err != nil {
		panic(fmt.Sprintf("board: built-in profiles: %v", err))
	}
	m := make(map[string]Board, len(list))
	for _, b := range list {
		m[b.Name] = b
	}
	return m
}

// Names lists the built-in profiles.
func Names() []string {
	names := make([]string, 0, len(boards))
	for name := range boards {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns a copy of a built-in profile.
func Lookup(name string) (*Board, error) {
	b, ok := boards[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownBoard, name)
	}
	return &b, nil
}

// Parse decodes a single profile. Unknown keys are rejected. Fields left
// out keep the values of base, if it is non-nil.
func Parse(data []byte, base *Board) (*Board, error) {
	var b Board
	if base != nil {
		b = *base
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&b); err != nil {
		return nil, fmt.Errorf("parse board: %w", err)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

// Load reads a profile from path. If the file names a built-in profile
// in its name field, that profile supplies the defaults.
func Load(path string) (*Board, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load board: %w", err)
	}
	var head struct {
		Name string `yaml:"name"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("load board %s: %w", path, err)
	}
	var base *Board
	if b, ok := boards[head.Name]; ok {
		base = &b
	}
	b, err := Parse(data, base)
	if err != nil {
		return nil, fmt.Errorf("load board %s: %w", path, err)
	}
	return b, nil
}

// Validate checks that the profile yields a usable configuration.
func (b *Board) Validate() error {
	if _, err := b.Config(); err != nil {
		return fmt.Errorf("board %q: %w", b.Name, err)
	}
	return nil
}

// Divisor returns clock / (16 * baud), rounded to the nearest integer.
func (b *Board) Divisor() (uint16, error) {
	return Divisor(b.Clock, b.Baud)
}

// Divisor computes the 16550 baud divisor for an input clock.
func Divisor(clock, baud uint32) (uint16, error) {
	if baud == 0 {
		return 0, fmt.Errorf("%w: zero baud", ErrBadDivisor)
	}
	d := (uint64(clock) + 8*uint64(baud)) / (16 * uint64(baud))
	if d == 0 || d > 0xFFFF {
		return 0, fmt.Errorf("%w: %d baud at %d Hz", ErrBadDivisor, baud, clock)
	}
	return uint16(d), nil
}

// Config returns the driver configuration for the profile.
func (b *Board) Config() (uart.Config, error) {
	div, err := b.Divisor()
	if err != nil {
		return uart.Config{}, err
	}
	line, err := ParseLineFormat(b.Format)
	if err != nil {
		return uart.Config{}, err
	}
	trig, err := ParseTrigger(b.FIFOTrigger)
	if err != nil {
		return uart.Config{}, err
	}
	return uart.Config{
		Divisor:          div,
		Line:             line,
		FIFOTrigger:      trig,
		AssertModemLines: b.ModemLines,
		Out2:             b.Out2,
	}, nil
}

// ParseLineFormat parses "<bits><parity><stop>", e.g. "8N1" or "7E2".
// Parity is one of N, O, E, M, S.
func ParseLineFormat(s string) (uart.LineConfig, error) {
	if len(s) != 3 {
		return 0, fmt.Errorf("%w %q", ErrBadFormat, s)
	}
	bits := int(s[0] - '0')
	if bits < 5 || bits > 8 {
		return 0, fmt.Errorf("%w %q: word length must be 5-8", ErrBadFormat, s)
	}
	var parity uart.Parity
	switch s[1] {
	case 'N', 'n':
		parity = uart.ParityNone
	case 'O', 'o':
		parity = uart.ParityOdd
	case 'E', 'e':
		parity = uart.ParityEven
	case 'M', 'm':
		parity = uart.ParityMark
	case 'S', 's':
		parity = uart.ParitySpace
	default:
		return 0, fmt.Errorf("%w %q: parity must be one of NOEMS", ErrBadFormat, s)
	}
	stop := int(s[2] - '0')
	if stop != 1 && stop != 2 {
		return 0, fmt.Errorf("%w %q: stop bits must be 1 or 2", ErrBadFormat, s)
	}
	return uart.NewLineConfig(bits, parity, stop), nil
}

// ParseTrigger maps a receive trigger level in bytes to its FCR encoding.
// Zero selects the 1 byte level.
func ParseTrigger(n int) (uart.Trigger, error) {
	switch n {
	case 0, 1:
		return uart.Trigger1, nil
	case 4:
		return uart.Trigger4, nil
	case 8:
		return uart.Trigger8, nil
	case 14:
		return uart.Trigger14, nil
	}
	return 0, fmt.Errorf("%w: %d", ErrBadTrigger, n)
}
