package airsense

import (
	"context"
	"encoding/binary"
	"fmt"
)

// Registers implements register-addressed access on top of a raw I2CBus.
// Each read is a write of the register offset followed by a separate read
// transaction; each write is a single transaction starting with the offset.
type Registers struct {
	bus I2CBus
}

func NewRegisters(bus I2CBus) *Registers {
	return &Registers{bus: bus}
}

// Bus returns the underlying transport.
func (r *Registers) Bus() I2CBus {
	return r.bus
}

// WriteRegister writes a single byte to reg.
func (r *Registers) WriteRegister(ctx context.Context, addr, reg, value byte) error {
	err := r.bus.WriteToAddr(ctx, addr, []byte{reg, value})
	if err != nil {
		return fmt.Errorf("write register %#02x at %#02x: %w", reg, addr, err)
	}
	return nil
}

// WriteRegisterWord writes value to reg, low byte first.
func (r *Registers) WriteRegisterWord(ctx context.Context, addr, reg byte, value uint16) error {
	buf := []byte{reg, 0, 0}
	binary.LittleEndian.PutUint16(buf[1:], value)
	err := r.bus.WriteToAddr(ctx, addr, buf)
	if err != nil {
		return fmt.Errorf("write register word %#02x at %#02x: %w", reg, addr, err)
	}
	return nil
}

func (r *Registers) ReadRegisterU8(ctx context.Context, addr, reg byte) (uint8, error) {
	buf, err := r.ReadBlock(ctx, addr, reg, 1)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (r *Registers) ReadRegisterI8(ctx context.Context, addr, reg byte) (int8, error) {
	v, err := r.ReadRegisterU8(ctx, addr, reg)
	return int8(v), err
}

func (r *Registers) ReadRegisterU16LE(ctx context.Context, addr, reg byte) (uint16, error) {
	buf, err := r.ReadBlock(ctx, addr, reg, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf), nil
}

func (r *Registers) ReadRegisterI16LE(ctx context.Context, addr, reg byte) (int16, error) {
	v, err := r.ReadRegisterU16LE(ctx, addr, reg)
	return int16(v), err
}

// ReadBlock selects reg and reads count sequential bytes in transfer order.
func (r *Registers) ReadBlock(ctx context.Context, addr, reg byte, count int) ([]byte, error) {
	err := r.bus.WriteToAddr(ctx, addr, []byte{reg})
	if err != nil {
		return nil, fmt.Errorf("select register %#02x at %#02x: %w", reg, addr, err)
	}
	buf := make([]byte, count)
	err = r.bus.ReadFromAddr(ctx, addr, buf)
	if err != nil {
		return nil, fmt.Errorf("read %d bytes from register %#02x at %#02x: %w", count, reg, addr, err)
	}
	return buf, nil
}
