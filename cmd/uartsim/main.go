// Command uartsim runs the 16550 driver against a simulated chip and
// echoes whatever arrives on the simulated line back to the sender.
package main

import (
	"flag"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/sirupsen/logrus"

	"ns16550/board"
	"ns16550/sim"
	"ns16550/trace"
	"ns16550/uart"
)

type options struct {
	board       string
	config      string
	serial      string
	interactive bool
	selftest    bool
	send        string
	trace       bool
}

func main() {
	var opts options
	flag.StringVar(&opts.board, "board", "qemu-riscv-virt", "Built-in board profile")
	flag.StringVar(&opts.config, "config", "", "YAML board profile (overrides -board)")
	flag.StringVar(&opts.serial, "serial", "", "Bridge the simulated line to this host serial port")
	flag.BoolVar(&opts.interactive, "tty", false, "Feed keystrokes from the controlling terminal (Ctrl-D quits)")
	flag.BoolVar(&opts.selftest, "selftest", false, "Run a loopback self test after init")
	flag.StringVar(&opts.send, "send", "", "String to transmit after init")
	flag.BoolVar(&opts.trace, "trace", false, "Log every register access (needs -log-level trace)")
	level := flag.String("log-level", "info", "Log level")
	flag.Parse()

	log := logrus.New()
	log.Out = os.Stderr
	log.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	lvl, err := logrus.ParseLevel(*level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "log level:", err)
		os.Exit(2)
	}
	log.SetLevel(lvl)

	if err := run(opts, log); err != nil {
		fmt.Fprintln(os.Stderr, "uartsim:", err)
		os.Exit(1)
	}
}

func run(opts options, log *logrus.Logger) error {
	b, err := loadBoard(opts.board, opts.config)
	if err != nil {
		return err
	}
	cfg, err := b.Config()
	if err != nil {
		return err
	}

	base, err := busBase(b)
	if err != nil {
		return err
	}

	// Attach the far end of the line first so transmitted bytes have
	// somewhere to go.
	line, err := openLine(opts.serial, b.Baud, opts.interactive)
	if err != nil {
		return err
	}
	defer line.Close()

	// Build the machine
	chip := sim.NewUART(line.Out())
	bus := sim.NewBus()
	if err := bus.Map(base, b.RegShift, chip); err != nil {
		return fmt.Errorf("map: %w", err)
	}
	var regs uart.Backend = bus.Window(base, b.RegShift)
	if opts.trace {
		tr := trace.New(regs, log.WithField("board", b.Name))
		tr.QuietStatus = true
		regs = tr
		defer func() {
			reads, writes := tr.Counts()
			log.WithFields(logrus.Fields{"reads": reads, "writes": writes}).Debug("register access counts")
		}()
	}

	dev := uart.New(regs)
	dev.Init(cfg)
	log.WithFields(logrus.Fields{
		"board":   b.Name,
		"base":    fmt.Sprintf("%#x", b.Base),
		"divisor": cfg.Divisor,
		"format":  cfg.Line.String(),
	}).Info("uart initialized")

	if !dev.Probe() {
		return fmt.Errorf("no UART answering at %#x", b.Base)
	}
	if opts.selftest {
		if err := dev.LoopbackTest(uart.DefaultPollLimit); err != nil {
			return fmt.Errorf("self test: %w", err)
		}
		log.Info("loopback self test passed")
	}
	if opts.send != "" {
		dev.WriteString(opts.send)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := line.Pump(pacedFeed{chip}); err != nil && err != io.EOF {
			log.WithError(err).Warn("line input stopped")
		}
	}()

	n := echo(dev, done, log)
	log.WithField("bytes", n).Info("line closed")
	return nil
}

// busBase returns the profile's base address on the simulated bus, which
// only spans 32 bits.
func busBase(b *board.Board) (uint32, error) {
	if b.Base > math.MaxUint32 {
		return 0, fmt.Errorf("board %s: base %#x is outside the simulated 32-bit bus", b.Name, b.Base)
	}
	return uint32(b.Base), nil
}

func loadBoard(name, path string) (*board.Board, error) {
	if path != "" {
		return board.Load(path)
	}
	return board.Lookup(name)
}
