package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/airsense/air"
	"github.com/mklimuk/airsense/cmd/sensors/console"
	"github.com/mklimuk/airsense/config"
	"github.com/mklimuk/airsense/environment"
	"github.com/mklimuk/airsense/station"
)

var monitorCmd = cli.Command{
	Name:  "monitor",
	Usage: "poll the sensors and publish readings until interrupted",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "yaml configuration file; bus flags are used when omitted",
		},
		&cli.IntFlag{
			Name:  "debug",
			Value: -1,
			Usage: "override debug mode (0 off, 1 labelled, 2 stream)",
		},
	},
	Action: func(c *cli.Context) error {
		cfg, err := monitorConfig(c)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		ctx, stop := signal.NotifyContext(commandContext(c), os.Interrupt, syscall.SIGTERM)
		defer stop()

		bus, err := openBus(ctx, cfg.Bus)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		defer bus.close()

		gas := air.NewENS160(bus, air.WithAddress(air.Address(cfg.ENS160.Address)), air.WithBootDelay(cfg.ENS160.BootDelay))
		if err := gas.Initialize(ctx); err != nil {
			return console.Exit(1, "ens160 initialization error: %s", console.Red(err))
		}
		console.PInfof(console.PictoLeaf, "ens160 %#06x firmware %s", gas.PartID(), gas.FirmwareVersion())

		ambient, err := openAmbient(bus, cfg.Ambient)
		if err != nil {
			return console.Exit(1, "ambient sensor error: %s", console.Red(err))
		}

		opts := []station.Opt{
			station.WithSource(cfg.Station.ID),
			station.WithInterval(cfg.Station.Interval),
			station.WithCompensation(cfg.Station.Compensate),
		}
		if cfg.Light.Enabled {
			opts = append(opts, station.WithLight(environment.NewBH1750(bus, cfg.Light.Address), cfg.Light.MaxLux))
		}
		if cfg.Broadcast.Enabled {
			b, err := station.NewUDPBroadcaster(cfg.Broadcast.Address, station.WithMessageDelay(cfg.Broadcast.MessageDelay))
			if err != nil {
				return console.Exit(1, "broadcast error: %s", console.Red(err))
			}
			defer func() {
				_ = b.Close()
			}()
			opts = append(opts, station.WithPublishers(b))
		}
		if cfg.Metrics.Enabled {
			m := station.NewMetrics()
			go func() {
				if err := m.Serve(ctx, cfg.Metrics.Listen); err != nil {
					slog.Error("metrics server stopped", "error", err)
				}
			}()
			opts = append(opts, station.WithPublishers(m))
		}
		if mode := station.DebugMode(cfg.Debug.Mode); mode != station.DebugOff {
			opts = append(opts, station.WithPublishers(station.NewSerialWriter(console.Writer(), mode)))
		}

		slog.Info("station started", "id", cfg.Station.ID, "interval", cfg.Station.Interval)
		if err := station.New(gas, ambient, opts...).Run(ctx); err != nil {
			return console.Exit(1, "station error: %s", console.Red(err))
		}
		slog.Info("station stopped")
		return nil
	},
}

func monitorConfig(c *cli.Context) (config.Config, error) {
	var cfg config.Config
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	} else {
		cfg = config.Default()
		cfg.Bus = busConfigFromFlags(c)
		cfg.Station.ID = station.NewSourceID()
	}
	if mode := c.Int("debug"); mode >= 0 {
		cfg.Debug.Mode = mode
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("configuration: %w", err)
	}
	return cfg, nil
}
