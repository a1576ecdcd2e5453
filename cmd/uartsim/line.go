package main

import (
	"io"
	"os"
	"time"
	"unicode/utf8"

	tty "github.com/mattn/go-tty"
	"github.com/sirupsen/logrus"
	"github.com/tarm/serial"

	"ns16550/sim"
	"ns16550/uart"
)

// eot ends an echo session, the same as Ctrl-D on a terminal.
const eot = 0x04

// A line is the far end of the simulated serial cable.
type line interface {
	// Out receives what the chip transmits.
	Out() io.Writer
	// Pump copies incoming bytes into dst until the line closes.
	Pump(dst io.Writer) error
	Close() error
}

func openLine(serialPath string, baud uint32, interactive bool) (line, error) {
	switch {
	case serialPath != "":
		return openSerialLine(serialPath, baud)
	case interactive:
		return openTTYLine()
	default:
		return stdioLine{}, nil
	}
}

type stdioLine struct{}

func (stdioLine) Out() io.Writer { return os.Stdout }

func (stdioLine) Pump(dst io.Writer) error {
	_, err := io.Copy(dst, os.Stdin)
	return err
}

func (stdioLine) Close() error { return nil }

type ttyLine struct {
	t *tty.TTY
}

func openTTYLine() (*ttyLine, error) {
	t, err := tty.Open()
	if err != nil {
		return nil, err
	}
	return &ttyLine{t: t}, nil
}

func (l *ttyLine) Out() io.Writer { return l.t.Output() }

func (l *ttyLine) Pump(dst io.Writer) error {
	var buf [utf8.UTFMax]byte
	for {
		r, err := l.t.ReadRune()
		if err != nil {
			return err
		}
		n := utf8.EncodeRune(buf[:], r)
		if _, err := dst.Write(buf[:n]); err != nil {
			return err
		}
		if r == eot {
			return nil
		}
	}
}

func (l *ttyLine) Close() error { return l.t.Close() }

type serialLine struct {
	port *serial.Port
}

func openSerialLine(name string, baud uint32) (*serialLine, error) {
	port, err := serial.OpenPort(&serial.Config{Name: name, Baud: int(baud)})
	if err != nil {
		return nil, err
	}
	return &serialLine{port: port}, nil
}

func (l *serialLine) Out() io.Writer { return l.port }

func (l *serialLine) Pump(dst io.Writer) error {
	_, err := io.Copy(dst, l.port)
	return err
}

func (l *serialLine) Close() error { return l.port.Close() }

// pacedFeed hands input to the chip no faster than the driver drains it,
// so a pasted block or a redirected file does not overrun the FIFO.
type pacedFeed struct {
	chip *sim.UART
}

func (f pacedFeed) Write(p []byte) (int, error) {
	for i := range p {
		for f.chip.Pending() >= sim.FIFODepth {
			time.Sleep(100 * time.Microsecond)
		}
		f.chip.Feed(p[i : i+1])
	}
	return len(p), nil
}

// echo sends every received byte back out until an EOT arrives or done
// closes, and returns how many bytes it echoed.
func echo(dev *uart.Device, done <-chan struct{}, log logrus.FieldLogger) int {
	n := 0
	for {
		if st := dev.LineStatus(); st.Errors() {
			log.WithField("lsr", st.String()).Warn("receive error")
		}
		b, ok := dev.TryReadByte()
		if !ok {
			select {
			case <-done:
				// Input is finished; take whatever is still queued.
				for {
					b, ok := dev.TryReadByte()
					if !ok || b == eot {
						return n
					}
					dev.WriteByte(b)
					n++
				}
			case <-time.After(time.Millisecond):
			}
			continue
		}
		if b == eot {
			return n
		}
		dev.WriteByte(b)
		n++
	}
}
