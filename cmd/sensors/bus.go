package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v2"
	"gobot.io/x/gobot/v2/platforms/friendlyelec/nanopi"
	periphi2c "periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/airsense"
	"github.com/mklimuk/airsense/adapter"
	"github.com/mklimuk/airsense/config"
	"github.com/mklimuk/airsense/i2c"
	"github.com/mklimuk/airsense/snsctx"
)

var busFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "adapter",
		Aliases: []string{"a"},
		Usage:   "bus adapter: mcp2221, generic or nanopi",
		Value:   config.AdapterMCP2221,
	},
	&cli.StringFlag{
		Name:    "device",
		Aliases: []string{"d"},
		Usage:   "periph bus name for the generic adapter",
	},
	&cli.IntFlag{
		Name:  "bus",
		Usage: "i2c bus number for the nanopi adapter",
	},
	&cli.IntFlag{
		Name:  "usb-index",
		Usage: "mcp2221 bridge index as listed by usb detect",
	},
	&cli.IntFlag{
		Name:  "speed",
		Usage: "i2c clock in Hz",
		Value: adapter.DefaultSpeedHz,
	},
}

// openedBus bundles a transport with its periph view and a cleanup func.
type openedBus struct {
	airsense.I2CBus
	periph periphi2c.Bus
	close  func()
}

func commandContext(c *cli.Context) context.Context {
	return snsctx.SetVerbose(c.Context, c.Bool("verbose"))
}

func busConfigFromFlags(c *cli.Context) config.Bus {
	return config.Bus{
		Adapter: c.String("adapter"),
		Device:  c.String("device"),
		Number:  c.Int("bus"),
		Index:   c.Int("usb-index"),
		SpeedHz: c.Int("speed"),
	}
}

func openBus(ctx context.Context, cfg config.Bus) (*openedBus, error) {
	switch cfg.Adapter {
	case config.AdapterMCP2221:
		a := adapter.NewMCP2221(adapter.WithSpeed(cfg.SpeedHz), adapter.WithDeviceIndex(cfg.Index))
		if err := a.Init(ctx); err != nil {
			return nil, fmt.Errorf("adapter initialization error: %w", err)
		}
		return &openedBus{
			I2CBus: a,
			periph: i2c.NewPeriphBus(a, "mcp2221"),
			close: func() {
				if err := a.Release(context.Background()); err != nil {
					slog.Warn("could not release mcp2221", "error", err)
				}
			},
		}, nil
	case config.AdapterGeneric:
		bus, err := i2c.NewGenericBus(cfg.Device)
		if err != nil {
			return nil, fmt.Errorf("adapter initialization error: %w", err)
		}
		if err := bus.SetSpeed(physic.Frequency(cfg.SpeedHz) * physic.Hertz); err != nil {
			slog.Warn("could not set bus speed", "speed", cfg.SpeedHz, "error", err)
		}
		return &openedBus{
			I2CBus: bus,
			periph: bus.Periph(),
			close: func() {
				if err := bus.Close(); err != nil {
					slog.Warn("error closing bus", "error", err)
				}
			},
		}, nil
	case config.AdapterNanoPi:
		npi := nanopi.NewNeoAdaptor()
		if err := npi.Connect(); err != nil {
			return nil, fmt.Errorf("nanopi connect error: %w", err)
		}
		bus := i2c.NewGobotBus(npi, cfg.Number)
		return &openedBus{
			I2CBus: bus,
			periph: i2c.NewPeriphBus(bus, fmt.Sprintf("nanopi-i2c-%d", cfg.Number)),
			close: func() {
				if err := bus.Close(); err != nil {
					slog.Warn("error closing bus", "error", err)
				}
				if err := npi.Finalize(); err != nil {
					slog.Warn("error finalizing nanopi", "error", err)
				}
			},
		}, nil
	}
	return nil, fmt.Errorf("unknown adapter %q", cfg.Adapter)
}
