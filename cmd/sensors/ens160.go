package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/airsense/air"
	"github.com/mklimuk/airsense/cmd/sensors/console"
)

var ens160Cmd = cli.Command{
	Name:  "ens160",
	Usage: "ENS160 gas sensor",
	Flags: []cli.Flag{
		&cli.UintFlag{
			Name:  "address",
			Usage: "sensor address (0x52 or 0x53)",
			Value: uint(air.AddressPrimary),
		},
	},
	Subcommands: cli.Commands{
		&ens160InitCmd,
		&ens160ReadCmd,
		&ens160StatusCmd,
		&ens160ModeCmd,
		&ens160AddressCmd,
		&ens160CompensationCmd,
	},
}

// withENS160 opens the bus, initializes the sensor and runs fn.
func withENS160(c *cli.Context, fn func(ctx context.Context, s *air.ENS160) error) error {
	ctx, stop := signal.NotifyContext(commandContext(c), os.Interrupt)
	defer stop()
	addr := air.Address(c.Uint("address"))
	if !addr.Valid() {
		return console.Exit(1, "invalid address: %s", console.Red(fmt.Sprintf("%#02x", c.Uint("address"))))
	}
	bus, err := openBus(ctx, busConfigFromFlags(c))
	if err != nil {
		return console.Exit(1, "%s", console.Red(err))
	}
	defer bus.close()
	s := air.NewENS160(bus, air.WithAddress(addr))
	if err := s.Initialize(ctx); err != nil {
		return console.Exit(1, "initialization error: %s", console.Red(err))
	}
	return fn(ctx, s)
}

func printIdentity(s *air.ENS160) {
	console.Printf("address:   %s\n", console.White(fmt.Sprintf("%#02x", byte(s.Address()))))
	console.Printf("part id:   %s\n", console.White(fmt.Sprintf("%#06x", s.PartID())))
	console.Printf("firmware:  %s\n", console.White(s.FirmwareVersion()))
	console.Printf("interrupt: %s\n", console.White(fmt.Sprintf("%#010b", s.InterruptConfig())))
	if err := s.CheckPartID(); err != nil {
		console.Warnf("%s", err)
	}
}

func statusColor(st air.Status) string {
	switch st {
	case air.StatusNormal:
		return console.Green(st)
	case air.StatusInvalid:
		return console.Red(st)
	default:
		return console.Yellow(st)
	}
}

var ens160InitCmd = cli.Command{
	Name:  "init",
	Usage: "initialize the sensor and print its identity",
	Action: func(c *cli.Context) error {
		return withENS160(c, func(ctx context.Context, s *air.ENS160) error {
			printIdentity(s)
			return nil
		})
	},
}

var ens160ReadCmd = cli.Command{
	Name:    "read",
	Aliases: []string{"rd"},
	Usage:   "read AQI, TVOC and eCO2",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "count", Aliases: []string{"n"}, Value: 1, Usage: "number of reads, 0 reads until interrupted"},
		&cli.DurationFlag{Name: "interval", Value: time.Second},
	},
	Action: func(c *cli.Context) error {
		return withENS160(c, func(ctx context.Context, s *air.ENS160) error {
			count := c.Int("count")
			for i := 0; count == 0 || i < count; i++ {
				if i > 0 {
					select {
					case <-ctx.Done():
						return nil
					case <-time.After(c.Duration("interval")):
					}
				}
				r, st, err := s.Read(ctx)
				if err != nil {
					return console.Exit(1, "read error: %s", console.Red(err))
				}
				console.Printf("aqi %s  tvoc %s ppb  eco2 %s ppm  [%s]\n",
					console.White(r.AQI), console.White(r.TVOC), console.White(r.ECO2), statusColor(st))
			}
			return nil
		})
	},
}

var ens160StatusCmd = cli.Command{
	Name:  "status",
	Usage: "print the data validity flag",
	Action: func(c *cli.Context) error {
		return withENS160(c, func(ctx context.Context, s *air.ENS160) error {
			st, err := s.Status(ctx)
			if err != nil {
				return console.Exit(1, "status error: %s", console.Red(err))
			}
			console.Printf("%s\n", statusColor(st))
			return nil
		})
	},
}

func parseMode(name string) (air.OpMode, error) {
	switch strings.ToLower(name) {
	case "sleep", "deep-sleep":
		return air.OpModeDeepSleep, nil
	case "idle":
		return air.OpModeIdle, nil
	case "standard", "std":
		return air.OpModeStandard, nil
	case "reset":
		return air.OpModeReset, nil
	}
	return 0, fmt.Errorf("unknown mode %q", name)
}

var ens160ModeCmd = cli.Command{
	Name:      "mode",
	Usage:     "switch the operating mode",
	ArgsUsage: "sleep|idle|standard|reset",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "do not ask for confirmation"},
	},
	Action: func(c *cli.Context) error {
		mode, err := parseMode(c.Args().First())
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		if (mode == air.OpModeReset || mode == air.OpModeDeepSleep) && !c.Bool("yes") {
			answer, err := console.YesOrNo(fmt.Sprintf("switch sensor to %s?", mode))
			if err != nil {
				return console.Exit(1, "prompt error: %s", console.Red(err))
			}
			if answer != console.Yes {
				console.Info("aborted")
				return nil
			}
		}
		return withENS160(c, func(ctx context.Context, s *air.ENS160) error {
			if err := s.SetMode(ctx, mode); err != nil {
				return console.Exit(1, "mode error: %s", console.Red(err))
			}
			console.Printf("mode set to %s\n", console.White(mode))
			return nil
		})
	},
}

var ens160AddressCmd = cli.Command{
	Name:  "address",
	Usage: "switch the driver to another sensor address and re-initialize",
	Flags: []cli.Flag{
		&cli.UintFlag{Name: "to", Required: true, Usage: "new address (0x52 or 0x53)"},
	},
	Action: func(c *cli.Context) error {
		return withENS160(c, func(ctx context.Context, s *air.ENS160) error {
			err := s.SetAddress(ctx, air.Address(c.Uint("to")))
			if errors.Is(err, air.ErrInvalidAddress) {
				return console.Exit(1, "%s", console.Red(err))
			}
			if err != nil {
				return console.Exit(1, "re-initialization error: %s", console.Red(err))
			}
			printIdentity(s)
			return nil
		})
	},
}

var ens160CompensationCmd = cli.Command{
	Name:  "compensation",
	Usage: "temperature and humidity compensation registers",
	Subcommands: cli.Commands{
		{
			Name: "get",
			Action: func(c *cli.Context) error {
				return withENS160(c, func(ctx context.Context, s *air.ENS160) error {
					temp, err := s.Temperature(ctx)
					if err != nil {
						return console.Exit(1, "temperature read error: %s", console.Red(err))
					}
					hum, err := s.Humidity(ctx)
					if err != nil {
						return console.Exit(1, "humidity read error: %s", console.Red(err))
					}
					console.Printf("%s  %s\n%s %s\n", console.PictoThermometer, console.White(fmt.Sprintf("%.2f", temp)),
						console.PictoHumidity, console.White(fmt.Sprintf("%.2f", hum)))
					return nil
				})
			},
		},
		{
			Name: "set",
			Flags: []cli.Flag{
				&cli.Float64Flag{Name: "temperature", Aliases: []string{"t"}, Usage: "ambient temperature in °C"},
				&cli.Float64Flag{Name: "humidity", Aliases: []string{"r"}, Usage: "relative humidity in %"},
			},
			Action: func(c *cli.Context) error {
				if !c.IsSet("temperature") && !c.IsSet("humidity") {
					return console.Exit(1, "nothing to set")
				}
				return withENS160(c, func(ctx context.Context, s *air.ENS160) error {
					if c.IsSet("temperature") {
						if err := s.SetTemperature(ctx, c.Float64("temperature")); err != nil {
							return console.Exit(1, "temperature write error: %s", console.Red(err))
						}
					}
					if c.IsSet("humidity") {
						if err := s.SetHumidity(ctx, c.Float64("humidity")); err != nil {
							return console.Exit(1, "humidity write error: %s", console.Red(err))
						}
					}
					console.Print("compensation updated")
					return nil
				})
			},
		},
	},
}
