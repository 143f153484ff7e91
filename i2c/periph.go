package i2c

import (
	"context"
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/airsense"
)

var _ i2c.Bus = &PeriphBus{}

// PeriphBus lets periph device drivers run on top of any airsense.I2CBus,
// e.g. the MCP2221 USB bridge. A combined write/read Tx is issued as two
// separate transactions, without a repeated start.
type PeriphBus struct {
	bus  airsense.I2CBus
	name string
}

func NewPeriphBus(bus airsense.I2CBus, name string) *PeriphBus {
	return &PeriphBus{bus: bus, name: name}
}

func (p *PeriphBus) String() string {
	return p.name
}

func (p *PeriphBus) Tx(addr uint16, w, r []byte) error {
	if addr > 0x7F {
		return fmt.Errorf("10-bit address %#x not supported", addr)
	}
	ctx := context.Background()
	if len(w) > 0 {
		if err := p.bus.WriteToAddr(ctx, byte(addr), w); err != nil {
			return err
		}
	}
	if len(r) > 0 {
		if err := p.bus.ReadFromAddr(ctx, byte(addr), r); err != nil {
			return err
		}
	}
	return nil
}

// SetSpeed is a no-op; the clock is configured on the underlying adapter.
func (p *PeriphBus) SetSpeed(f physic.Frequency) error {
	return nil
}
