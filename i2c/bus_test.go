package i2c

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gobot "gobot.io/x/gobot/v2/drivers/i2c"
	"periph.io/x/conn/v3/i2c/i2ctest"

	"github.com/mklimuk/airsense"
	"github.com/mklimuk/airsense/air"
	"github.com/mklimuk/airsense/bustest"
)

func TestGenericBus_RegisterRead(t *testing.T) {
	playback := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x52, W: []byte{0x00}},
			{Addr: 0x52, R: []byte{0x60, 0x01}},
		},
		DontPanic: true,
	}
	regs := airsense.NewRegisters(NewBus(playback))
	partID, err := regs.ReadRegisterU16LE(context.Background(), 0x52, 0x00)
	require.NoError(t, err)
	assert.Equal(t, air.PartIDENS160, partID)
	assert.NoError(t, playback.Close())
}

func TestGenericBus_WriteError(t *testing.T) {
	playback := &i2ctest.Playback{
		Ops:       []i2ctest.IO{{Addr: 0x52, W: []byte{0x10, 0x02}}},
		DontPanic: true,
	}
	bus := NewBus(playback)
	// mismatched payload is reported by the playback as a bus error
	err := bus.WriteToAddr(context.Background(), 0x52, []byte{0x10, 0x01})
	assert.Error(t, err)
}

func TestPeriphBus_Tx(t *testing.T) {
	bus := &bustest.Playback{Ops: []bustest.IO{
		{Addr: 0x76, W: []byte{0xD0}},
		{Addr: 0x76, R: []byte{0x60}},
		{Addr: 0x76, W: []byte{0xF4, 0x27}},
		{Addr: 0x76, R: []byte{0x01, 0x02}},
	}}
	p := NewPeriphBus(bus, "mcp2221")
	assert.Equal(t, "mcp2221", p.String())

	id := make([]byte, 1)
	require.NoError(t, p.Tx(0x76, []byte{0xD0}, id))
	assert.Equal(t, []byte{0x60}, id)

	require.NoError(t, p.Tx(0x76, []byte{0xF4, 0x27}, nil))

	data := make([]byte, 2)
	require.NoError(t, p.Tx(0x76, nil, data))
	assert.Equal(t, []byte{0x01, 0x02}, data)

	assert.Error(t, p.Tx(0x1FF, []byte{0x00}, nil))
	assert.NoError(t, bus.Close())
}

type fakeConn struct {
	gobot.Connection
	written [][]byte
	read    []byte
	closed  bool
	err     error
}

func (c *fakeConn) Write(b []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	c.written = append(c.written, append([]byte{}, b...))
	return len(b), nil
}

func (c *fakeConn) Read(b []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	return copy(b, c.read), nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

type fakeConnector struct {
	conns  map[int]*fakeConn
	opened []int
}

func (f *fakeConnector) GetI2cConnection(address int, busNr int) (gobot.Connection, error) {
	f.opened = append(f.opened, address)
	c, ok := f.conns[address]
	if !ok {
		return nil, errors.New("no device")
	}
	return c, nil
}

func (f *fakeConnector) DefaultI2cBus() int {
	return 0
}

func TestGobotBus(t *testing.T) {
	conn := &fakeConn{read: []byte{0x02}}
	connector := &fakeConnector{conns: map[int]*fakeConn{0x52: conn}}
	bus := NewGobotBus(connector, 0)
	ctx := context.Background()

	st, err := airsense.NewRegisters(bus).ReadRegisterU8(ctx, 0x52, 0x20)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x02), st)
	assert.Equal(t, [][]byte{{0x20}}, conn.written)
	assert.Equal(t, []int{0x52}, connector.opened, "connection is opened once and reused")

	_, err = airsense.NewRegisters(bus).ReadRegisterU8(ctx, 0x53, 0x20)
	assert.Error(t, err)

	require.NoError(t, bus.Close())
	assert.True(t, conn.closed)
}

func TestGobotBus_ShortRead(t *testing.T) {
	conn := &fakeConn{read: []byte{0x01}}
	bus := NewGobotBus(&fakeConnector{conns: map[int]*fakeConn{0x52: conn}}, 1)
	err := bus.ReadFromAddr(context.Background(), 0x52, make([]byte, 2))
	assert.ErrorContains(t, err, "short read")
}
