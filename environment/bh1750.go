package environment

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/mklimuk/airsense"
)

const BH1750AddrHigh = 0b1011100
const BH1750AddrLow = 0b0100011

// One-time measurement opcodes; the sensor powers down after each.
const (
	opCodeSingleHighResolution = 0b00100000
	opCodeSingleLowResolution  = 0b00100011
)

type BH1750 struct {
	transport airsense.I2CBus
	addr      byte
	opCode    byte
	measDelay time.Duration
	buf       []byte
}

type BH1750Opt func(*BH1750)

// WithHighResolution switches to 1 lx resolution (120ms typical measurement).
func WithHighResolution() BH1750Opt {
	return func(s *BH1750) {
		s.opCode = opCodeSingleHighResolution
		s.measDelay = 180 * time.Millisecond
	}
}

func NewBH1750(transport airsense.I2CBus, addr byte, opts ...BH1750Opt) *BH1750 {
	s := &BH1750{
		addr:      addr,
		transport: transport,
		opCode:    opCodeSingleLowResolution,
		// measurement cycle takes typically 16ms, max time is 24ms
		measDelay: 25 * time.Millisecond,
		buf:       make([]byte, 2),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetLux triggers a one-time measurement and returns illuminance in lux.
func (s *BH1750) GetLux(ctx context.Context) (float64, error) {
	err := s.transport.WriteToAddr(ctx, s.addr, []byte{s.opCode})
	if err != nil {
		return 0, fmt.Errorf("bh1750: could not write command: %w", err)
	}
	if err := wait(ctx, s.measDelay); err != nil {
		return 0, err
	}
	err = s.transport.ReadFromAddr(ctx, s.addr, s.buf)
	if err != nil {
		return 0, fmt.Errorf("bh1750: could not read data: %w", err)
	}
	return countToLux(s.buf), nil
}

func countToLux(buf []byte) float64 {
	return float64(binary.BigEndian.Uint16(buf)) / 1.2
}
