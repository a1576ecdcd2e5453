// Package trace wraps a uart.Backend and logs every register access.
package trace

import (
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"ns16550/uart"
)

// Backend forwards to another uart.Backend, logging each access at trace
// level and counting accesses per register. Its own state is safe for
// concurrent use; whether next is depends on next.
type Backend struct {
	next uart.Backend
	log  logrus.FieldLogger

	// QuietStatus suppresses log entries for line status reads, which a
	// polling driver issues in a tight loop. They are still counted.
	QuietStatus bool

	// dlab mirrors the last LCR value written so offsets 0 and 1 can be
	// named correctly. It can be stale if something else writes LCR.
	dlab atomic.Bool

	reads, writes [uart.RegisterCount]atomic.Uint64
}

var _ uart.Backend = (*Backend)(nil)

// New returns a tracing wrapper around next.
func New(next uart.Backend, log logrus.FieldLogger) *Backend {
	return &Backend{next: next, log: log}
}

func (b *Backend) Read8(off uint8) uint8 {
	v := b.next.Read8(off)
	b.reads[off%uart.RegisterCount].Add(1)
	if !(b.QuietStatus && off == uart.LSR) {
		b.entry("read", off, v).Trace("uart register")
	}
	return v
}

func (b *Backend) Write8(off uint8, v uint8) {
	b.entry("write", off, v).Trace("uart register")
	b.writes[off%uart.RegisterCount].Add(1)
	b.next.Write8(off, v)
	if off == uart.LCR {
		b.dlab.Store(v&uart.LCRDLAB != 0)
	}
}

func (b *Backend) entry(dir string, off, v uint8) *logrus.Entry {
	return b.log.WithFields(logrus.Fields{
		"dir": dir,
		"reg": uart.RegisterName(off, dir == "write", b.dlab.Load()),
		"off": off,
		"val": fmt.Sprintf("%#04x", v),
	})
}

// Counts returns the number of reads and writes seen per register offset.
func (b *Backend) Counts() (reads, writes [uart.RegisterCount]uint64) {
	for i := range reads {
		reads[i] = b.reads[i].Load()
		writes[i] = b.writes[i].Load()
	}
	return reads, writes
}
