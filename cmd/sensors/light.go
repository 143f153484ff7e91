package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/airsense/cmd/sensors/console"
	"github.com/mklimuk/airsense/environment"
	"github.com/mklimuk/airsense/station"
)

var lightCmd = cli.Command{
	Name: "light",
	Subcommands: []*cli.Command{
		&lightReadCmd,
	},
}

var lightReadCmd = cli.Command{
	Name:    "read",
	Aliases: []string{"rd"},
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "addr",
			Value: "l",
			Usage: "l for the low (0x23) or h for the high (0x5C) address",
		},
		&cli.BoolFlag{Name: "high-res", Usage: "use high resolution mode"},
		&cli.Float64Flag{Name: "max-lux", Value: station.DefaultMaxLux, Usage: "lux mapped to full brightness"},
	},
	Action: func(c *cli.Context) error {
		ctx := commandContext(c)
		bus, err := openBus(ctx, busConfigFromFlags(c))
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		defer bus.close()
		var addr byte
		switch c.String("addr") {
		case "h":
			addr = environment.BH1750AddrHigh
		default:
			addr = environment.BH1750AddrLow
		}
		var opts []environment.BH1750Opt
		if c.Bool("high-res") {
			opts = append(opts, environment.WithHighResolution())
		}
		s := environment.NewBH1750(bus, addr, opts...)
		lux, err := s.GetLux(ctx)
		if err != nil {
			return console.Exit(1, "error getting light sensor read: %s", console.Red(err))
		}
		console.Printf("%s lux (brightness %d)\n", console.White(fmt.Sprintf("%.1f", lux)),
			station.Brightness(lux, c.Float64("max-lux")))
		return nil
	},
}
