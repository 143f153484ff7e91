package air

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/airsense"
	"github.com/mklimuk/airsense/bustest"
)

// MockI2CBus is a mock implementation of airsense.I2CBus using testify/mock
type MockI2CBus struct {
	mock.Mock
}

func (m *MockI2CBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	args := m.Called(ctx, address, buffer)
	return args.Error(0)
}

func (m *MockI2CBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	args := m.Called(ctx, address, buffer)
	if data, ok := args.Get(0).([]byte); ok && len(data) <= len(buffer) {
		copy(buffer, data)
	}
	return args.Error(1)
}

func (m *MockI2CBus) Release(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// eventBus logs every transaction next to the settle delays so ordering can be asserted.
type eventBus struct {
	bus    airsense.I2CBus
	events []string
}

func (b *eventBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	b.events = append(b.events, fmt.Sprintf("w %#02x % x", address, buffer))
	return b.bus.WriteToAddr(ctx, address, buffer)
}

func (b *eventBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	err := b.bus.ReadFromAddr(ctx, address, buffer)
	b.events = append(b.events, fmt.Sprintf("r %#02x %d", address, len(buffer)))
	return err
}

func (b *eventBus) Release(ctx context.Context) error {
	return b.bus.Release(ctx)
}

func (b *eventBus) delay(ctx context.Context, d time.Duration) error {
	b.events = append(b.events, "delay")
	return nil
}

func noDelay(ctx context.Context, d time.Duration) error {
	return nil
}

func initOps(addr byte, partID []byte, fw []byte, cfg byte) []bustest.IO {
	return []bustest.IO{
		{Addr: addr, W: []byte{regOpMode, byte(OpModeReset)}},
		{Addr: addr, W: []byte{regPartID}},
		{Addr: addr, R: partID},
		{Addr: addr, W: []byte{regOpMode, byte(OpModeIdle)}},
		{Addr: addr, W: []byte{regCommand, cmdNOP}},
		{Addr: addr, W: []byte{regCommand, cmdClearGPR}},
		{Addr: addr, W: []byte{regCommand, cmdGetAppVer}},
		{Addr: addr, W: []byte{regGPRRead4}},
		{Addr: addr, R: fw},
		{Addr: addr, W: []byte{regOpMode, byte(OpModeStandard)}},
		{Addr: addr, W: []byte{regConfig}},
		{Addr: addr, R: []byte{cfg}},
	}
}

func statusOps(addr byte, status byte) []bustest.IO {
	return []bustest.IO{
		{Addr: addr, W: []byte{regDataStatus}},
		{Addr: addr, R: []byte{status}},
	}
}

func newTestENS160(bus airsense.I2CBus, opts ...ENS160Opt) *ENS160 {
	s := NewENS160(bus, opts...)
	s.sleep = noDelay
	return s
}

func concat(ops ...[]bustest.IO) []bustest.IO {
	var res []bustest.IO
	for _, o := range ops {
		res = append(res, o...)
	}
	return res
}

func TestENS160_InitializeSequence(t *testing.T) {
	playback := &bustest.Playback{Ops: initOps(0x52, []byte{0x60, 0x01}, []byte{5, 4, 6}, 0x00)}
	bus := &eventBus{bus: playback}
	s := NewENS160(bus)
	s.sleep = bus.delay

	require.NoError(t, s.Initialize(context.Background()))
	require.NoError(t, playback.Close())

	expected := []string{
		"w 0x52 10 f0", "delay",
		"w 0x52 00", "r 0x52 2",
		"w 0x52 10 01", "delay",
		"w 0x52 12 00", "delay",
		"w 0x52 12 cc", "delay",
		"w 0x52 12 0e", "delay",
		"w 0x52 4c", "r 0x52 3", "delay",
		"w 0x52 10 02", "delay",
		"w 0x52 11", "r 0x52 1", "delay",
	}
	assert.Equal(t, expected, bus.events)
	assert.Equal(t, FirmwareVersion{Major: 5, Minor: 4, Build: 6}, s.FirmwareVersion())
	assert.NoError(t, s.CheckPartID())
}

func TestENS160_EndToEnd(t *testing.T) {
	ops := concat(
		initOps(0x52, []byte{0x60, 0x01}, []byte{1, 2, 30}, 0x00),
		statusOps(0x52, 0b00000010),
		[]bustest.IO{
			{Addr: 0x52, W: []byte{regDataAQI}},
			{Addr: 0x52, R: []byte{42, 0x10, 0x00, 0x20, 0x00, 0, 0}},
			{Addr: 0x52, W: []byte{regDataBL}},
			{Addr: 0x52, R: make([]byte, 8)},
		},
		statusOps(0x52, 0x00),
		statusOps(0x52, 0x00),
		statusOps(0x52, 0x00),
		statusOps(0x52, 0x00),
	)
	bus := &bustest.Playback{Ops: ops}
	s := newTestENS160(bus)
	ctx := context.Background()

	require.NoError(t, s.Initialize(ctx))
	require.NoError(t, s.Refresh(ctx))

	assert.Equal(t, uint16(0x0160), s.PartID())
	assert.Equal(t, FirmwareVersion{Major: 1, Minor: 2, Build: 30}, s.FirmwareVersion())

	aqi, err := s.AQI(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint8(42), aqi)

	tvoc, err := s.TVOC(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0010), tvoc)

	eco2, err := s.ECO2(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0020), eco2)

	st, err := s.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusNormal, st)

	assert.NoError(t, bus.Close())
}

func TestENS160_InvalidStatusKeepsReading(t *testing.T) {
	for _, st := range []byte{0x40, 0x42, 0x43, 0x7F, 0xC2, 0xFF} {
		t.Run(fmt.Sprintf("%#02x", st), func(t *testing.T) {
			ops := concat(
				initOps(0x52, []byte{0x60, 0x01}, []byte{1, 0, 0}, 0x00),
				statusOps(0x52, 0x02),
				[]bustest.IO{
					{Addr: 0x52, W: []byte{regDataAQI}},
					{Addr: 0x52, R: []byte{3, 0x2C, 0x01, 0x90, 0x01, 0, 0}},
					{Addr: 0x52, W: []byte{regDataBL}},
					{Addr: 0x52, R: make([]byte, 8)},
				},
				// with the error bit set nothing but the status register is read
				statusOps(0x52, st),
			)
			bus := &bustest.Playback{Ops: ops}
			s := newTestENS160(bus)
			ctx := context.Background()
			require.NoError(t, s.Initialize(ctx))

			before, _, err := s.Read(ctx)
			require.NoError(t, err)

			after, status, err := s.Read(ctx)
			require.NoError(t, err)
			assert.Equal(t, StatusInvalid, status)
			assert.Equal(t, before, after)
			assert.Equal(t, Reading{AQI: 3, TVOC: 300, ECO2: 400}, after)
			assert.NoError(t, bus.Close())
		})
	}
}

func TestENS160_StatusDerivation(t *testing.T) {
	for st := 0; st < 256; st++ {
		if st&statusError != 0 {
			continue
		}
		bus := &bustest.Record{Registers: map[byte][]byte{
			regPartID:     {0x60, 0x01},
			regGPRRead4:   {1, 2, 3},
			regDataStatus: {byte(st)},
			regDataAQI:    {7, 0x34, 0x12, 0x78, 0x56, 0, 0},
		}}
		s := newTestENS160(bus)
		ctx := context.Background()
		require.NoError(t, s.Initialize(ctx))

		r, status, err := s.Read(ctx)
		require.NoError(t, err)
		assert.Equal(t, Status((st>>2)&3), status, "status byte %#02x", st)
		if st&statusNewData != 0 {
			assert.Equal(t, Reading{AQI: 7, TVOC: 0x1234, ECO2: 0x5678}, r, "status byte %#02x", st)
		} else {
			assert.Equal(t, Reading{}, r, "status byte %#02x", st)
		}
	}
}

func TestENS160_RefreshReadsFlagBlocks(t *testing.T) {
	tests := []struct {
		status byte
		reads  []byte
	}{
		{0x00, nil},
		{0x01, []byte{regGPRRead0, regDataBL}},
		{0x02, []byte{regDataAQI, regDataBL}},
		{0x03, []byte{regDataAQI, regGPRRead0, regDataBL}},
		{0x0C, nil},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%#02x", tt.status), func(t *testing.T) {
			bus := &bustest.Record{Registers: map[byte][]byte{regDataStatus: {tt.status}}}
			s := newTestENS160(bus)
			ctx := context.Background()
			require.NoError(t, s.Initialize(ctx))
			bus.Ops = nil

			require.NoError(t, s.Refresh(ctx))
			var selected []byte
			for _, op := range bus.Ops[2:] {
				if op.W != nil {
					selected = append(selected, op.W[0])
				}
			}
			assert.Equal(t, tt.reads, selected)
		})
	}
}

func TestDecodeReading(t *testing.T) {
	tests := []struct {
		given    []byte
		expected Reading
	}{
		{[]byte{0, 0, 0, 0, 0, 0, 0}, Reading{}},
		{[]byte{1, 0xFF, 0xFF, 0xFF, 0xFF, 9, 9}, Reading{AQI: 1, TVOC: 0xFFFF, ECO2: 0xFFFF}},
		{[]byte{5, 0x01, 0x02, 0x03, 0x04, 0, 0}, Reading{AQI: 5, TVOC: 0x0201, ECO2: 0x0403}},
		{[]byte{255, 0x90, 0x01, 0xE8, 0x03, 0, 0}, Reading{AQI: 255, TVOC: 400, ECO2: 1000}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("% x", tt.given), func(t *testing.T) {
			assert.Equal(t, tt.expected, decodeReading(tt.given))
		})
	}
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "normal", StatusNormal.String())
	assert.Equal(t, "warm-up", StatusWarmUp.String())
	assert.Equal(t, "start-up", StatusStartUp.String())
	assert.Equal(t, "invalid", StatusInvalid.String())
}

func TestENS160_RequiresInitialization(t *testing.T) {
	bus := &bustest.Playback{}
	s := newTestENS160(bus)
	ctx := context.Background()

	_, err := s.Status(ctx)
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = s.AQI(ctx)
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = s.TVOC(ctx)
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = s.ECO2(ctx)
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = s.Temperature(ctx)
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = s.Humidity(ctx)
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.ErrorIs(t, s.SetTemperature(ctx, 20), ErrNotInitialized)
	assert.ErrorIs(t, s.SetHumidity(ctx, 40), ErrNotInitialized)
	assert.ErrorIs(t, s.SetMode(ctx, OpModeIdle), ErrNotInitialized)
	assert.ErrorIs(t, s.CheckPartID(), ErrNotInitialized)

	assert.Equal(t, 0, bus.Count, "no bus traffic before initialization")
}

func TestENS160_InitializeFailFast(t *testing.T) {
	nack := errors.New("nack")
	ops := initOps(0x52, []byte{0x60, 0x01}, []byte{1, 2, 3}, 0x00)
	// fail the idle mode write
	ops[3].Err = nack
	bus := &bustest.Playback{Ops: ops}
	s := newTestENS160(bus)

	err := s.Initialize(context.Background())
	assert.ErrorIs(t, err, nack)
	assert.Equal(t, 4, bus.Count, "sequence must stop at the failing step")

	_, err = s.Status(context.Background())
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestENS160_SetAddress(t *testing.T) {
	ops := concat(
		initOps(0x52, []byte{0x60, 0x01}, []byte{1, 2, 30}, 0x00),
		initOps(0x53, []byte{0x60, 0x01}, []byte{3, 4, 5}, 0x11),
		statusOps(0x53, 0x00),
	)
	bus := &bustest.Playback{Ops: ops}
	s := newTestENS160(bus)
	ctx := context.Background()

	require.NoError(t, s.Initialize(ctx))
	require.NoError(t, s.SetAddress(ctx, AddressAlternate))

	assert.Equal(t, AddressAlternate, s.Address())
	assert.Equal(t, FirmwareVersion{Major: 3, Minor: 4, Build: 5}, s.FirmwareVersion())
	assert.Equal(t, byte(0x11), s.InterruptConfig())

	st, err := s.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusNormal, st)
	assert.NoError(t, bus.Close())
}

func TestENS160_SetAddressFailureClearsCache(t *testing.T) {
	nack := errors.New("nack")
	second := initOps(0x53, []byte{0x60, 0x01}, []byte{3, 4, 5}, 0x00)
	second[2].Err = nack
	ops := concat(
		initOps(0x52, []byte{0x60, 0x01}, []byte{1, 2, 30}, 0x07),
		second[:3],
	)
	bus := &bustest.Playback{Ops: ops}
	s := newTestENS160(bus)
	ctx := context.Background()

	require.NoError(t, s.Initialize(ctx))
	err := s.SetAddress(ctx, AddressAlternate)
	assert.ErrorIs(t, err, nack)

	assert.Equal(t, uint16(0), s.PartID())
	assert.Equal(t, FirmwareVersion{}, s.FirmwareVersion())
	assert.Equal(t, byte(0), s.InterruptConfig())
	_, err = s.Status(ctx)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestENS160_SetAddressRejectsUnknownAddress(t *testing.T) {
	bus := &bustest.Playback{}
	s := newTestENS160(bus)
	err := s.SetAddress(context.Background(), Address(0x10))
	assert.ErrorIs(t, err, ErrInvalidAddress)
	assert.Equal(t, AddressPrimary, s.Address())
	assert.Equal(t, 0, bus.Count)
}

func TestENS160_Compensation(t *testing.T) {
	ops := concat(
		initOps(0x52, []byte{0x60, 0x01}, []byte{1, 2, 30}, 0x00),
		[]bustest.IO{
			{Addr: 0x52, W: []byte{regTempIn, 0x89, 0x4A}},
			{Addr: 0x52, W: []byte{regRHIn, 0x00, 0x64}},
			{Addr: 0x52, W: []byte{regDataT}},
			{Addr: 0x52, R: []byte{0x89, 0x4A}},
			{Addr: 0x52, W: []byte{regDataRH}},
			{Addr: 0x52, R: []byte{0x00, 0x64}},
		},
	)
	bus := &bustest.Playback{Ops: ops}
	s := newTestENS160(bus)
	ctx := context.Background()
	require.NoError(t, s.Initialize(ctx))

	require.NoError(t, s.SetTemperature(ctx, 25))
	require.NoError(t, s.SetHumidity(ctx, 50))

	temp, err := s.Temperature(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 25.0, temp, 1.0/temperatureScale)

	hum, err := s.Humidity(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, hum, 1.0/humidityScale)

	assert.NoError(t, bus.Close())
}

func TestENS160_SetMode(t *testing.T) {
	ops := concat(
		initOps(0x52, []byte{0x60, 0x01}, []byte{1, 2, 30}, 0x00),
		[]bustest.IO{{Addr: 0x52, W: []byte{regOpMode, byte(OpModeDeepSleep)}}},
	)
	bus := &bustest.Playback{Ops: ops}
	s := newTestENS160(bus)
	ctx := context.Background()
	require.NoError(t, s.Initialize(ctx))
	require.NoError(t, s.SetMode(ctx, OpModeDeepSleep))
	assert.NoError(t, bus.Close())
}

func TestENS160_CheckPartID(t *testing.T) {
	bus := &bustest.Playback{Ops: initOps(0x52, []byte{0x61, 0x01}, []byte{1, 2, 30}, 0x00)}
	s := newTestENS160(bus)
	require.NoError(t, s.Initialize(context.Background()))
	assert.ErrorIs(t, s.CheckPartID(), ErrUnexpectedPartID)
}

func TestENS160_InitializeHonoursContext(t *testing.T) {
	bus := new(MockI2CBus)
	s := NewENS160(bus, WithBootDelay(time.Second))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	bus.On("WriteToAddr", ctx, byte(AddressPrimary), []byte{regOpMode, byte(OpModeReset)}).Return(nil).Once()

	err := s.Initialize(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	bus.AssertExpectations(t)
}

func TestENS160_MockBusPropagatesErrors(t *testing.T) {
	bus := new(MockI2CBus)
	s := NewENS160(bus, WithAddress(AddressAlternate), WithBootDelay(0))
	ctx := context.Background()

	bus.On("WriteToAddr", ctx, byte(AddressAlternate), []byte{regOpMode, byte(OpModeReset)}).Return(nil).Once()
	bus.On("WriteToAddr", ctx, byte(AddressAlternate), []byte{regPartID}).Return(nil).Once()
	bus.On("ReadFromAddr", ctx, byte(AddressAlternate), mock.Anything).Return(nil, airsense.ErrBusBusy).Once()

	err := s.Initialize(ctx)
	assert.ErrorIs(t, err, airsense.ErrBusBusy)
	bus.AssertExpectations(t)
}
