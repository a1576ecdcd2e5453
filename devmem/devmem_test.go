package devmem

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpan(t *testing.T) {
	tests := []struct {
		name                 string
		phys                 uintptr
		shift                uint
		start, delta, length uintptr
	}{
		{"page aligned", 0x10000000, 0, 0x10000000, 0, 0x1000},
		{"pc style", 0xFE215040, 0, 0xFE215000, 0x40, 0x1000},
		{"strided", 0x3F8, 2, 0, 0x3F8, 0x1000},
		{"crosses page", 0x1FFC, 2, 0x1000, 0xFFC, 0x2000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, delta, length := span(tt.phys, tt.shift, 0x1000)
			assert.Equal(t, tt.start, start)
			assert.Equal(t, tt.delta, delta)
			assert.Equal(t, tt.length, length)
		})
	}
}
