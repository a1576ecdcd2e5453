package devmem

import (
	"fmt"

	"golang.org/x/sys/unix"

	"ns16550/uart"
)

// Region is a mapped register block. It implements uart.Backend.
type Region struct {
	fd    int
	mem   []byte
	delta uintptr
	shift uint
}

var _ uart.Backend = (*Region)(nil)

// Map maps the register block at physical address phys through /dev/mem.
// The mapping is opened O_SYNC so the kernel maps it uncached.
func Map(phys uintptr, shift uint) (*Region, error) {
	return MapFile(DevMem, phys, shift)
}

// MapFile is Map over any mappable file, with phys as the file offset.
func MapFile(path string, phys uintptr, shift uint) (*Region, error) {
	start, delta, length := span(phys, shift, uintptr(unix.Getpagesize()))

	fd, err := unix.Open(path, unix.O_RDWR|unix.O_SYNC|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	mem, err := unix.Mmap(fd, int64(start), int(length), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("mmap %s @0x%x: %w", path, start, err)
	}
	return &Region{fd: fd, mem: mem, delta: delta, shift: shift}, nil
}

func (r *Region) index(off uint8) uintptr {
	return r.delta + uintptr(off)<<r.shift
}

//go:noinline
func (r *Region) Read8(off uint8) uint8 {
	return r.mem[r.index(off)]
}

//go:noinline
func (r *Region) Write8(off uint8, v uint8) {
	r.mem[r.index(off)] = v
}

// Close unmaps the registers. The Region must not be used afterwards.
func (r *Region) Close() error {
	if r.mem == nil {
		return nil
	}
	err := unix.Munmap(r.mem)
	r.mem = nil
	if cerr := unix.Close(r.fd); err == nil {
		err = cerr
	}
	return err
}
