//go:build linux

// Command uartmem drives a real 16550 through /dev/mem. It needs root and
// a kernel that does not restrict /dev/mem for the UART's address range.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"

	"ns16550/board"
	"ns16550/devmem"
	"ns16550/trace"
	"ns16550/uart"
)

type options struct {
	board  string
	config string
	base   string
	init   bool
	send   string
	recv   int
	polls  int
	trace  bool
}

// mapFunc maps the register block at a physical address.
type mapFunc func(phys uintptr, shift uint) (*devmem.Region, error)

func main() {
	var opts options
	flag.StringVar(&opts.board, "board", "qemu-riscv-virt", "Built-in board profile")
	flag.StringVar(&opts.config, "config", "", "YAML board profile (overrides -board)")
	flag.StringVar(&opts.base, "base", "", "Physical base address (overrides the profile)")
	flag.BoolVar(&opts.init, "init", false, "Program the UART from the profile before use")
	flag.StringVar(&opts.send, "send", "", "String to transmit")
	flag.IntVar(&opts.recv, "recv", 0, "Number of bytes to receive")
	flag.IntVar(&opts.polls, "polls", uart.DefaultPollLimit, "Status polls per byte before giving up")
	flag.BoolVar(&opts.trace, "trace", false, "Log every register access (needs -log-level trace)")
	level := flag.String("log-level", "info", "Log level")
	flag.Parse()

	log := logrus.New()
	log.Out = os.Stderr
	lvl, err := logrus.ParseLevel(*level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "log level:", err)
		os.Exit(2)
	}
	log.SetLevel(lvl)

	if err := run(opts, log, devmem.Map, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "uartmem:", err)
		os.Exit(1)
	}
}

func run(opts options, log *logrus.Logger, mapRegs mapFunc, out io.Writer) error {
	b, err := loadBoard(opts.board, opts.config)
	if err != nil {
		return err
	}
	if opts.base != "" {
		b.Base, err = strconv.ParseUint(opts.base, 0, 64)
		if err != nil {
			return fmt.Errorf("bad -base: %w", err)
		}
	}

	region, err := mapRegs(uintptr(b.Base), b.RegShift)
	if err != nil {
		return fmt.Errorf("map %#x: %w", b.Base, err)
	}
	defer region.Close()

	var regs uart.Backend = region
	if opts.trace {
		tr := trace.New(regs, log.WithField("base", fmt.Sprintf("%#x", b.Base)))
		tr.QuietStatus = true
		regs = tr
	}
	dev := uart.New(regs)

	if !dev.Probe() {
		return fmt.Errorf("no UART answering at %#x", b.Base)
	}
	if opts.init {
		cfg, err := b.Config()
		if err != nil {
			return err
		}
		dev.Init(cfg)
		log.WithFields(logrus.Fields{
			"divisor": cfg.Divisor,
			"format":  cfg.Line.String(),
		}).Info("uart initialized")
	}

	for i := 0; i < len(opts.send); i++ {
		if err := dev.WriteByteWithin(opts.send[i], opts.polls); err != nil {
			return fmt.Errorf("send byte %d: %w", i, err)
		}
	}

	for i := 0; i < opts.recv; i++ {
		c, err := dev.ReadByteWithin(opts.polls)
		if err != nil {
			log.WithField("received", i).Warn(err)
			break
		}
		if _, err := out.Write([]byte{c}); err != nil {
			return err
		}
	}

	st := dev.LineStatus()
	log.WithFields(logrus.Fields{
		"lsr":   fmt.Sprintf("%#04x", st.Raw),
		"flags": st.String(),
		"msr":   fmt.Sprintf("%#04x", dev.ModemStatus()),
	}).Info("line status")
	return nil
}

func loadBoard(name, path string) (*board.Board, error) {
	if path != "" {
		return board.Load(path)
	}
	return board.Lookup(name)
}
