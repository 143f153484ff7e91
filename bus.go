package airsense

import (
	"context"
	"fmt"
)

var ErrBusBusy = fmt.Errorf("I2C engine is busy (command not completed)")

type AddressableReader interface {
	ReadFromAddr(ctx context.Context, address byte, buffer []byte) error
}

type AddressableWriter interface {
	WriteToAddr(ctx context.Context, address byte, buffer []byte) error
	Release(ctx context.Context) error
}

// I2CBus is the raw transport every driver in this module talks to.
// Implementations: i2c.GenericBus (periph host bus), i2c.GobotBus and adapter.MCP2221.
type I2CBus interface {
	AddressableReader
	AddressableWriter
}
