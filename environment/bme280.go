package environment

import (
	"context"
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
)

const (
	BME280AddrLow  uint16 = 0x76
	BME280AddrHigh uint16 = 0x77
)

// BME280 is a thin wrapper around the periph bmxx80 driver.
// Any airsense.I2CBus can be used through i2c.NewPeriphBus.
type BME280 struct {
	dev *bmxx80.Dev
}

func NewBME280(bus i2c.Bus, addr uint16) (*BME280, error) {
	dev, err := bmxx80.NewI2C(bus, addr, &bmxx80.DefaultOpts)
	if err != nil {
		return nil, fmt.Errorf("bme280: could not open device at %#02x: %w", addr, err)
	}
	return &BME280{dev: dev}, nil
}

// Sense performs a single forced measurement.
func (s *BME280) Sense(ctx context.Context) (Sample, error) {
	if err := ctx.Err(); err != nil {
		return Sample{}, err
	}
	var e physic.Env
	if err := s.dev.Sense(&e); err != nil {
		return Sample{}, fmt.Errorf("bme280: sense failed: %w", err)
	}
	return SampleFromEnv(e, true), nil
}

func (s *BME280) Halt() error {
	return s.dev.Halt()
}
