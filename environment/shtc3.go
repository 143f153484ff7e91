package environment

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/mklimuk/airsense"
)

// SHTC3 I2C address (7-bit)
const SHTC3Address = 0x70

// Commands (Big Endian on the wire)
const (
	shtc3CmdWake  uint16 = 0x3517
	shtc3CmdSleep uint16 = 0xB098

	// Normal power, clock stretching disabled
	// Measure T first, then RH
	shtc3CmdMeasureTFirstNoCS uint16 = 0x7866
)

var ErrCRCMismatch = errors.New("shtc3: crc mismatch")

// SHTC3 represents Sensirion SHTC3 Temperature/Humidity sensor.
// Typical usage:
//
//	s := NewSHTC3(bus)
//	sample, err := s.Sense(ctx)
type SHTC3 struct {
	transport airsense.I2CBus
	wakeDelay time.Duration
	measDelay time.Duration
}

func NewSHTC3(trans airsense.I2CBus) *SHTC3 {
	return &SHTC3{
		transport: trans,
		wakeDelay: time.Millisecond,
		// typical measurement time ~12.1 ms in normal mode
		measDelay: 15 * time.Millisecond,
	}
}

// Sense wakes the sensor, performs a single measurement and puts it back to sleep.
func (s *SHTC3) Sense(ctx context.Context) (Sample, error) {
	if err := s.writeCmd(ctx, shtc3CmdWake); err != nil {
		return Sample{}, fmt.Errorf("shtc3: wake failed: %w", err)
	}
	if err := wait(ctx, s.wakeDelay); err != nil {
		return Sample{}, err
	}
	if err := s.writeCmd(ctx, shtc3CmdMeasureTFirstNoCS); err != nil {
		return Sample{}, fmt.Errorf("shtc3: measure command failed: %w", err)
	}
	if err := wait(ctx, s.measDelay); err != nil {
		return Sample{}, err
	}

	// T[0:2], CRC, RH[3:5], CRC
	buf := make([]byte, 6)
	if err := s.transport.ReadFromAddr(ctx, SHTC3Address, buf); err != nil {
		return Sample{}, fmt.Errorf("shtc3: read failed: %w", err)
	}
	sample, err := decodeSHTC3(buf)
	if err != nil {
		return Sample{}, err
	}

	if err := s.writeCmd(ctx, shtc3CmdSleep); err != nil {
		return sample, fmt.Errorf("shtc3: sleep failed: %w", err)
	}
	return sample, nil
}

func (s *SHTC3) writeCmd(ctx context.Context, cmd uint16) error {
	var out [2]byte
	binary.BigEndian.PutUint16(out[:], cmd)
	return s.transport.WriteToAddr(ctx, SHTC3Address, out[:])
}

func decodeSHTC3(buf []byte) (Sample, error) {
	if shtCRC8(buf[0:2]) != buf[2] {
		return Sample{}, fmt.Errorf("%w: temperature", ErrCRCMismatch)
	}
	if shtCRC8(buf[3:5]) != buf[5] {
		return Sample{}, fmt.Errorf("%w: humidity", ErrCRCMismatch)
	}
	rawT := binary.BigEndian.Uint16(buf[0:2])
	rawRH := binary.BigEndian.Uint16(buf[3:5])
	return Sample{
		Temperature: -45.0 + 175.0*float64(rawT)/65535.0,
		Humidity:    100.0 * float64(rawRH) / 65535.0,
	}, nil
}

// Sensirion CRC-8, polynomial 0x31, init 0xFF
func shtCRC8(data []byte) byte {
	var crc byte = 0xFF
	for _, b := range data {
		crc ^= b
		for range 8 {
			if crc&0x80 != 0 {
				crc = (crc << 1) ^ 0x31
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
