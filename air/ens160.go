package air

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mklimuk/airsense"
)

// Address is one of the two hardware-selectable ENS160 bus addresses (ADDR pin low/high).
type Address byte

const (
	AddressPrimary   Address = 0x52
	AddressAlternate Address = 0x53
)

func (a Address) Valid() bool {
	return a == AddressPrimary || a == AddressAlternate
}

// OpMode is written to the OPMODE register.
type OpMode byte

const (
	OpModeDeepSleep OpMode = 0x00
	OpModeIdle      OpMode = 0x01
	OpModeStandard  OpMode = 0x02
	OpModeReset     OpMode = 0xF0
)

func (m OpMode) String() string {
	switch m {
	case OpModeDeepSleep:
		return "deep-sleep"
	case OpModeIdle:
		return "idle"
	case OpModeStandard:
		return "standard"
	case OpModeReset:
		return "reset"
	default:
		return fmt.Sprintf("opmode(%#02x)", byte(m))
	}
}

// Status is the validity flag reported in DATA_STATUS bits 2-3.
type Status byte

const (
	StatusNormal Status = iota
	StatusWarmUp
	StatusStartUp
	StatusInvalid
)

func (s Status) String() string {
	switch s {
	case StatusNormal:
		return "normal"
	case StatusWarmUp:
		return "warm-up"
	case StatusStartUp:
		return "start-up"
	default:
		return "invalid"
	}
}

// PartIDENS160 is the value of the PART_ID register on a genuine ENS160.
const PartIDENS160 uint16 = 0x0160

// DefaultBootDelay is the command latency documented for the chip.
const DefaultBootDelay = 10 * time.Millisecond

// Register map
const (
	regPartID     byte = 0x00
	regOpMode     byte = 0x10
	regConfig     byte = 0x11
	regCommand    byte = 0x12
	regTempIn     byte = 0x13
	regRHIn       byte = 0x15
	regDataStatus byte = 0x20
	regDataAQI    byte = 0x21
	regDataTVOC   byte = 0x22
	regDataECO2   byte = 0x24
	regDataBL     byte = 0x28
	regDataT      byte = 0x30
	regDataRH     byte = 0x32
	regGPRRead0   byte = 0x48
	regGPRRead4        = regGPRRead0 + 4
)

// Commands accepted in idle mode only
const (
	cmdNOP       byte = 0x00
	cmdGetAppVer byte = 0x0E
	cmdClearGPR  byte = 0xCC
)

// DATA_STATUS bits
const (
	statusNewGPR   = 0x01
	statusNewData  = 0x02
	statusError    = 0x40
	statusValidity = 0x0C
)

const (
	dataBlockLen     = 7
	gprBlockLen      = 8
	baselineBlockLen = 8
)

var (
	ErrNotInitialized   = errors.New("ens160: driver not initialized")
	ErrInvalidAddress   = errors.New("ens160: invalid bus address")
	ErrUnexpectedPartID = errors.New("ens160: unexpected part id")
)

// FirmwareVersion is the application version reported by GET_APPVER.
type FirmwareVersion struct {
	Major uint8 `json:"major" yaml:"major"`
	Minor uint8 `json:"minor" yaml:"minor"`
	Build uint8 `json:"build" yaml:"build"`
}

func (v FirmwareVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Build)
}

// Reading holds the chip-computed air quality values.
type Reading struct {
	// AQI is the UBA air quality index.
	AQI uint8 `json:"aqi" yaml:"aqi"`
	// TVOC in ppb.
	TVOC uint16 `json:"tvoc" yaml:"tvoc"`
	// ECO2 in ppm.
	ECO2 uint16 `json:"eco2" yaml:"eco2"`
}

type ENS160Opts struct {
	Address   Address
	BootDelay time.Duration
}

type ENS160Opt func(*ENS160Opts)

func WithAddress(addr Address) ENS160Opt {
	return func(o *ENS160Opts) {
		o.Address = addr
	}
}

func WithBootDelay(delay time.Duration) ENS160Opt {
	return func(o *ENS160Opts) {
		o.BootDelay = delay
	}
}

// ENS160 represents ScioSense ENS160 digital metal-oxide multi-gas sensor.
// Typical usage:
//
//	s := NewENS160(bus)
//	err := s.Initialize(ctx)
//	r, status, err := s.Read(ctx)
//
// Readings are cached: a refresh only replaces them when the chip flags new data,
// so a reading may be stale but is never partially updated.
// ENS160 is not safe for concurrent use.
type ENS160 struct {
	regs   *airsense.Registers
	config ENS160Opts
	sleep  func(ctx context.Context, d time.Duration) error

	initialized     bool
	partID          uint16
	firmware        FirmwareVersion
	interruptConfig byte
	status          Status
	last            Reading
}

func NewENS160(transport airsense.I2CBus, opts ...ENS160Opt) *ENS160 {
	config := ENS160Opts{
		Address:   AddressPrimary,
		BootDelay: DefaultBootDelay,
	}
	for _, opt := range opts {
		opt(&config)
	}
	return &ENS160{
		regs:   airsense.NewRegisters(transport),
		config: config,
		sleep:  sleepCtx,
	}
}

// Address returns the bus address the driver currently talks to.
func (s *ENS160) Address() Address {
	return s.config.Address
}

// Initialize resets the chip, caches its identification and firmware version and
// switches it to standard operation. Any transport error aborts the sequence and
// leaves the driver uninitialized.
func (s *ENS160) Initialize(ctx context.Context) error {
	s.reset()
	addr := byte(s.config.Address)

	if err := s.writeSettled(ctx, regOpMode, byte(OpModeReset)); err != nil {
		return fmt.Errorf("ens160: reset failed: %w", err)
	}
	partID, err := s.regs.ReadRegisterU16LE(ctx, addr, regPartID)
	if err != nil {
		return fmt.Errorf("ens160: part id read failed: %w", err)
	}
	s.partID = partID

	if err := s.writeSettled(ctx, regOpMode, byte(OpModeIdle)); err != nil {
		return fmt.Errorf("ens160: idle mode failed: %w", err)
	}
	if err := s.writeSettled(ctx, regCommand, cmdNOP); err != nil {
		return fmt.Errorf("ens160: nop command failed: %w", err)
	}
	if err := s.writeSettled(ctx, regCommand, cmdClearGPR); err != nil {
		return fmt.Errorf("ens160: clear gpr command failed: %w", err)
	}

	if err := s.writeSettled(ctx, regCommand, cmdGetAppVer); err != nil {
		return fmt.Errorf("ens160: get app version command failed: %w", err)
	}
	ver, err := s.regs.ReadBlock(ctx, addr, regGPRRead4, 3)
	if err != nil {
		return fmt.Errorf("ens160: firmware version read failed: %w", err)
	}
	s.firmware = FirmwareVersion{Major: ver[0], Minor: ver[1], Build: ver[2]}
	if err := s.sleep(ctx, s.config.BootDelay); err != nil {
		return err
	}

	if err := s.writeSettled(ctx, regOpMode, byte(OpModeStandard)); err != nil {
		return fmt.Errorf("ens160: standard mode failed: %w", err)
	}
	cfg, err := s.regs.ReadRegisterU8(ctx, addr, regConfig)
	if err != nil {
		return fmt.Errorf("ens160: config read failed: %w", err)
	}
	s.interruptConfig = cfg
	if err := s.sleep(ctx, s.config.BootDelay); err != nil {
		return err
	}

	s.initialized = true
	slog.Debug("ens160 initialized", "address", fmt.Sprintf("%#02x", addr), "partID", fmt.Sprintf("%#04x", partID), "firmware", s.firmware)
	return nil
}

// SetAddress switches the driver to addr and runs the whole initialization
// sequence against it. Nothing cached for the previous address survives.
func (s *ENS160) SetAddress(ctx context.Context, addr Address) error {
	if !addr.Valid() {
		return fmt.Errorf("%w: %#02x", ErrInvalidAddress, byte(addr))
	}
	s.config.Address = addr
	return s.Initialize(ctx)
}

// SetMode writes the operating mode register and waits for the chip to settle.
func (s *ENS160) SetMode(ctx context.Context, mode OpMode) error {
	if !s.initialized {
		return ErrNotInitialized
	}
	if err := s.writeSettled(ctx, regOpMode, byte(mode)); err != nil {
		return fmt.Errorf("ens160: set mode %s failed: %w", mode, err)
	}
	return nil
}

// PartID returns the identification cached by Initialize.
func (s *ENS160) PartID() uint16 {
	return s.partID
}

// CheckPartID reports ErrUnexpectedPartID when the cached part id is not an ENS160.
func (s *ENS160) CheckPartID() error {
	if !s.initialized {
		return ErrNotInitialized
	}
	if s.partID != PartIDENS160 {
		return fmt.Errorf("%w: %#04x", ErrUnexpectedPartID, s.partID)
	}
	return nil
}

func (s *ENS160) FirmwareVersion() FirmwareVersion {
	return s.firmware
}

// InterruptConfig returns the CONFIG register snapshot taken during Initialize.
func (s *ENS160) InterruptConfig() byte {
	return s.interruptConfig
}

// Refresh reads DATA_STATUS and pulls whatever new data the chip flags.
// GPR and baseline blocks are read only to clear the chip-side flags.
func (s *ENS160) Refresh(ctx context.Context) error {
	if !s.initialized {
		return ErrNotInitialized
	}
	addr := byte(s.config.Address)
	st, err := s.regs.ReadRegisterU8(ctx, addr, regDataStatus)
	if err != nil {
		return fmt.Errorf("ens160: status read failed: %w", err)
	}
	if st&statusError != 0 {
		s.status = StatusInvalid
		return nil
	}
	if st&statusNewData != 0 {
		buf, err := s.regs.ReadBlock(ctx, addr, regDataAQI, dataBlockLen)
		if err != nil {
			return fmt.Errorf("ens160: data read failed: %w", err)
		}
		s.last = decodeReading(buf)
	}
	if st&statusNewGPR != 0 {
		if _, err := s.regs.ReadBlock(ctx, addr, regGPRRead0, gprBlockLen); err != nil {
			return fmt.Errorf("ens160: gpr read failed: %w", err)
		}
	}
	if st&(statusNewData|statusNewGPR) != 0 {
		if _, err := s.regs.ReadBlock(ctx, addr, regDataBL, baselineBlockLen); err != nil {
			return fmt.Errorf("ens160: baseline read failed: %w", err)
		}
	}
	s.status = decodeStatus(st)
	return nil
}

// Read refreshes once and returns the cached reading with the current status.
func (s *ENS160) Read(ctx context.Context) (Reading, Status, error) {
	if err := s.Refresh(ctx); err != nil {
		return Reading{}, 0, err
	}
	return s.last, s.status, nil
}

func (s *ENS160) Status(ctx context.Context) (Status, error) {
	_, st, err := s.Read(ctx)
	return st, err
}

// AQI returns the air quality index (1-5 on current firmware, 0-255 register).
func (s *ENS160) AQI(ctx context.Context) (uint8, error) {
	r, _, err := s.Read(ctx)
	return r.AQI, err
}

// TVOC returns total volatile organic compounds in ppb.
func (s *ENS160) TVOC(ctx context.Context) (uint16, error) {
	r, _, err := s.Read(ctx)
	return r.TVOC, err
}

// ECO2 returns equivalent CO2 in ppm.
func (s *ENS160) ECO2(ctx context.Context) (uint16, error) {
	r, _, err := s.Read(ctx)
	return r.ECO2, err
}

// Temperature reads back the compensation temperature in Celsius.
func (s *ENS160) Temperature(ctx context.Context) (float64, error) {
	if !s.initialized {
		return 0, ErrNotInitialized
	}
	raw, err := s.regs.ReadRegisterU16LE(ctx, byte(s.config.Address), regDataT)
	if err != nil {
		return 0, fmt.Errorf("ens160: temperature read failed: %w", err)
	}
	return DecodeTemperature(raw), nil
}

// SetTemperature feeds ambient temperature in Celsius into the compensation model.
func (s *ENS160) SetTemperature(ctx context.Context, celsius float64) error {
	if !s.initialized {
		return ErrNotInitialized
	}
	err := s.regs.WriteRegisterWord(ctx, byte(s.config.Address), regTempIn, EncodeTemperature(celsius))
	if err != nil {
		return fmt.Errorf("ens160: temperature write failed: %w", err)
	}
	return nil
}

// Humidity reads back the compensation relative humidity in %RH.
func (s *ENS160) Humidity(ctx context.Context) (float64, error) {
	if !s.initialized {
		return 0, ErrNotInitialized
	}
	raw, err := s.regs.ReadRegisterU16LE(ctx, byte(s.config.Address), regDataRH)
	if err != nil {
		return 0, fmt.Errorf("ens160: humidity read failed: %w", err)
	}
	return DecodeHumidity(raw), nil
}

// SetHumidity feeds ambient relative humidity in %RH into the compensation model.
func (s *ENS160) SetHumidity(ctx context.Context, percent float64) error {
	if !s.initialized {
		return ErrNotInitialized
	}
	err := s.regs.WriteRegisterWord(ctx, byte(s.config.Address), regRHIn, EncodeHumidity(percent))
	if err != nil {
		return fmt.Errorf("ens160: humidity write failed: %w", err)
	}
	return nil
}

func (s *ENS160) reset() {
	s.initialized = false
	s.partID = 0
	s.firmware = FirmwareVersion{}
	s.interruptConfig = 0
	s.status = StatusNormal
	s.last = Reading{}
}

func (s *ENS160) writeSettled(ctx context.Context, reg, value byte) error {
	if err := s.regs.WriteRegister(ctx, byte(s.config.Address), reg, value); err != nil {
		return err
	}
	return s.sleep(ctx, s.config.BootDelay)
}

func decodeReading(buf []byte) Reading {
	return Reading{
		AQI:  buf[0],
		TVOC: uint16(buf[2])<<8 | uint16(buf[1]),
		ECO2: uint16(buf[4])<<8 | uint16(buf[3]),
	}
}

func decodeStatus(st byte) Status {
	return Status((st & statusValidity) >> 2)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
