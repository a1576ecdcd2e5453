package uart_test

import (
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ns16550/uart"
	"ns16550/uart/uarttest"
)

var (
	_ io.ByteWriter = (*uart.Device)(nil)
	_ io.ByteReader = (*uart.Device)(nil)
	_ io.Writer     = (*uart.Device)(nil)
)

func TestNewTouchesNoRegisters(t *testing.T) {
	regs := uarttest.New()
	uart.New(regs)
	assert.Empty(t, regs.Log())
}

func TestInitProgramsDivisorUnderDLAB(t *testing.T) {
	regs := uarttest.New()
	dev := uart.New(regs)

	dev.Init(uart.Config{Divisor: 0x0030, Line: uart.Line8N1})

	assert.Equal(t, uint16(0x0030), regs.Divisor())
	assert.Zero(t, regs.Get(uart.LCR)&uart.LCRDLAB, "DLAB left set")
	assert.Equal(t, uint8(uart.Line8N1), regs.Get(uart.LCR))

	// The divisor bytes must go out while DLAB is set, low byte first.
	var divisorWrites []uarttest.Access
	for _, a := range regs.Log() {
		if a.Write && a.DLAB && (a.Off == uart.DLL || a.Off == uart.DLM) {
			divisorWrites = append(divisorWrites, a)
		}
	}
	require.Len(t, divisorWrites, 2)
	assert.Equal(t, uarttest.Access{Write: true, Off: uart.DLL, Val: 0x30, DLAB: true}, divisorWrites[0])
	assert.Equal(t, uarttest.Access{Write: true, Off: uart.DLM, Val: 0x00, DLAB: true}, divisorWrites[1])
}

func TestInitSequence(t *testing.T) {
	regs := uarttest.New()
	dev := uart.New(regs)

	dev.Init(uart.Config{
		Divisor:          0x1234,
		Line:             uart.NewLineConfig(7, uart.ParityEven, 2),
		FIFOTrigger:      uart.Trigger8,
		AssertModemLines: true,
	})

	want := []uarttest.Access{
		{Write: true, Off: uart.IER, Val: 0},
		{Write: true, Off: uart.LCR, Val: uart.LCRDLAB},
		{Write: true, Off: uart.DLL, Val: 0x34, DLAB: true},
		{Write: true, Off: uart.DLM, Val: 0x12, DLAB: true},
		{Write: true, Off: uart.LCR, Val: 0x02 | uart.LCRStop2 | uart.LCRParityEnable | uart.LCREvenParity, DLAB: true},
		{Write: true, Off: uart.FCR, Val: uart.FCREnable | uart.FCRClearRX | uart.FCRClearTX | uint8(uart.Trigger8)},
		{Write: true, Off: uart.MCR, Val: uart.MCRDTR | uart.MCRRTS},
	}
	assert.Equal(t, want, regs.Log())
}

func TestInitClearsDLABInLineConfig(t *testing.T) {
	regs := uarttest.New()
	uart.New(regs).Init(uart.Config{Divisor: 1, Line: uart.LineConfig(0xFF)})

	assert.Equal(t, uint8(0x7F), regs.Get(uart.LCR))
}

func TestInitModemLines(t *testing.T) {
	tests := []struct {
		name string
		cfg  uart.Config
		want uint8
	}{
		{"none", uart.Config{}, 0},
		{"dtr rts", uart.Config{AssertModemLines: true}, uart.MCRDTR | uart.MCRRTS},
		{"out2 only", uart.Config{Out2: true}, uart.MCROut2},
		{"all", uart.Config{AssertModemLines: true, Out2: true}, uart.MCRDTR | uart.MCRRTS | uart.MCROut2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			regs := uarttest.New()
			regs.Set(uart.MCR, 0xFF)
			uart.New(regs).Init(tt.cfg)
			assert.Equal(t, tt.want, regs.Get(uart.MCR))
		})
	}
}

func TestInitIsRepeatable(t *testing.T) {
	cfg := uart.Config8N1(3)

	regs := uarttest.New()
	dev := uart.New(regs)
	dev.Init(cfg)
	first := regs.Snapshot()
	dev.Init(cfg)
	second := regs.Snapshot()

	assert.Equal(t, first, second)

	fresh := uarttest.New()
	uart.New(fresh).Init(cfg)
	assert.Equal(t, first, fresh.Snapshot())
}

func TestTryWriteByte(t *testing.T) {
	t.Run("not ready", func(t *testing.T) {
		regs := uarttest.New()
		regs.Set(uart.THR, 0x99)
		dev := uart.New(regs)

		assert.False(t, dev.TryWriteByte('A'))
		assert.Equal(t, uint8(0x99), regs.Get(uart.THR))
		assert.Zero(t, regs.Writes(uart.THR))
		assert.Equal(t, 1, regs.Reads(uart.LSR))
	})
	t.Run("ready", func(t *testing.T) {
		regs := uarttest.New()
		regs.SetLineStatus(uart.LSRTHREmpty)
		dev := uart.New(regs)

		assert.True(t, dev.TryWriteByte('A'))
		assert.Equal(t, uint8('A'), regs.Get(uart.THR))
		assert.Equal(t, 1, regs.Writes(uart.THR))
	})
}

func TestTryReadByte(t *testing.T) {
	t.Run("no data", func(t *testing.T) {
		regs := uarttest.New()
		regs.SetReceive(0x41)
		dev := uart.New(regs)

		_, ok := dev.TryReadByte()
		assert.False(t, ok)
		assert.Zero(t, regs.Reads(uart.RBR), "receive buffer read without data ready")
	})
	t.Run("data ready", func(t *testing.T) {
		regs := uarttest.New()
		regs.SetReceive(0x41)
		regs.SetLineStatus(uart.LSRDataReady)
		dev := uart.New(regs)

		b, ok := dev.TryReadByte()
		require.True(t, ok)
		assert.Equal(t, byte(0x41), b)
		assert.Equal(t, 1, regs.Reads(uart.RBR))
	})
}

func TestBlockingCallsPollUntilReady(t *testing.T) {
	for _, n := range []int{0, 1, 7, 100} {
		t.Run(fmt.Sprintf("write after %d busy polls", n), func(t *testing.T) {
			regs := uarttest.New()
			regs.SetLineStatus(uart.LSRTHREmpty)
			regs.NotReadyFor(n)
			dev := uart.New(regs)

			require.NoError(t, dev.WriteByte('x'))
			assert.Equal(t, n+1, regs.Reads(uart.LSR))
			assert.Equal(t, uint8('x'), regs.Get(uart.THR))
		})
		t.Run(fmt.Sprintf("read after %d busy polls", n), func(t *testing.T) {
			regs := uarttest.New()
			regs.SetLineStatus(uart.LSRDataReady)
			regs.SetReceive('y')
			regs.NotReadyFor(n)
			dev := uart.New(regs)

			b, err := dev.ReadByte()
			require.NoError(t, err)
			assert.Equal(t, byte('y'), b)
			assert.Equal(t, n+1, regs.Reads(uart.LSR))
			assert.Equal(t, 1, regs.Reads(uart.RBR))
		})
	}
}

func TestBlockingWriteDoesNotWriteEarly(t *testing.T) {
	regs := uarttest.New()
	regs.SetLineStatus(uart.LSRTHREmpty)
	regs.ScriptLineStatus(uart.LSRDataReady, uart.LSRTxEmpty, 0)
	dev := uart.New(regs)

	require.NoError(t, dev.WriteByte('z'))

	log := regs.Log()
	require.Len(t, log, 5)
	for _, a := range log[:4] {
		assert.False(t, a.Write)
		assert.Equal(t, uint8(uart.LSR), a.Off)
	}
	assert.Equal(t, uarttest.Access{Write: true, Off: uart.THR, Val: 'z'}, log[4])
}

func TestWithinHelpers(t *testing.T) {
	t.Run("write gives up", func(t *testing.T) {
		regs := uarttest.New()
		dev := uart.New(regs)

		err := dev.WriteByteWithin('a', 5)
		assert.ErrorIs(t, err, uart.ErrTransmitTimeout)
		assert.Equal(t, 5, regs.Reads(uart.LSR))
		assert.Zero(t, regs.Writes(uart.THR))
	})
	t.Run("write succeeds late", func(t *testing.T) {
		regs := uarttest.New()
		regs.SetLineStatus(uart.LSRTHREmpty)
		regs.NotReadyFor(3)
		dev := uart.New(regs)

		require.NoError(t, dev.WriteByteWithin('a', 4))
		assert.Equal(t, uint8('a'), regs.Get(uart.THR))
	})
	t.Run("read gives up", func(t *testing.T) {
		regs := uarttest.New()
		dev := uart.New(regs)

		_, err := dev.ReadByteWithin(uart.DefaultPollLimit)
		assert.ErrorIs(t, err, uart.ErrReceiveTimeout)
		assert.Equal(t, uart.DefaultPollLimit, regs.Reads(uart.LSR))
		assert.Zero(t, regs.Reads(uart.RBR))
	})
	t.Run("zero budget", func(t *testing.T) {
		regs := uarttest.New()
		regs.SetLineStatus(uart.LSRTHREmpty | uart.LSRDataReady)
		dev := uart.New(regs)

		assert.ErrorIs(t, dev.WriteByteWithin('a', 0), uart.ErrTransmitTimeout)
		_, err := dev.ReadByteWithin(0)
		assert.ErrorIs(t, err, uart.ErrReceiveTimeout)
		assert.Empty(t, regs.Log())
	})
}

func TestWriteString(t *testing.T) {
	regs := uarttest.New()
	regs.SetLineStatus(uart.LSRTHREmpty)
	dev := uart.New(regs)

	n, err := dev.WriteString("hi\n")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	var sent []byte
	for _, a := range regs.Log() {
		if a.Write && a.Off == uart.THR {
			sent = append(sent, a.Val)
		}
	}
	assert.Equal(t, []byte("hi\n"), sent)
	assert.Equal(t, 3, regs.Reads(uart.LSR))
}

func TestLineStatusRereads(t *testing.T) {
	regs := uarttest.New()
	regs.ScriptLineStatus(uart.LSRDataReady, uart.LSRTHREmpty)
	dev := uart.New(regs)

	assert.True(t, dev.LineStatus().DataReady)
	st := dev.LineStatus()
	assert.False(t, st.DataReady)
	assert.True(t, st.THREmpty)
	assert.Equal(t, 2, regs.Reads(uart.LSR))
}

func TestProbe(t *testing.T) {
	regs := uarttest.New()
	regs.Set(uart.SCR, 0x42)

	assert.True(t, uart.New(regs).Probe())
	assert.Equal(t, uint8(0x42), regs.Get(uart.SCR))
}

type stuckBus struct{ v uint8 }

func (b stuckBus) Read8(uint8) uint8 { return b.v }
func (b stuckBus) Write8(uint8, uint8) {}

func TestProbeMissingChip(t *testing.T) {
	assert.False(t, uart.New(stuckBus{0xFF}).Probe())
	assert.False(t, uart.New(stuckBus{0x00}).Probe())
}

func TestModemStatus(t *testing.T) {
	regs := uarttest.New()
	regs.Set(uart.MSR, uart.MSRCTS|uart.MSRDSR)

	assert.Equal(t, uint8(uart.MSRCTS|uart.MSRDSR), uart.New(regs).ModemStatus())
}

func TestLoopbackTestWithoutLoopback(t *testing.T) {
	regs := uarttest.New()
	regs.Set(uart.MCR, uart.MCRDTR|uart.MCRRTS)
	regs.SetLineStatus(uart.LSRTHREmpty)
	dev := uart.New(regs)

	err := dev.LoopbackTest(10)
	assert.ErrorIs(t, err, uart.ErrReceiveTimeout)
	assert.Equal(t, uint8(uart.MCRDTR|uart.MCRRTS), regs.Get(uart.MCR), "modem control not restored")
}
