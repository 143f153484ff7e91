package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/airsense/cmd/sensors/console"
	"github.com/mklimuk/airsense/config"
	"github.com/mklimuk/airsense/environment"
	"github.com/mklimuk/airsense/station"
)

var tempReadCmd = cli.Command{
	Name:    "temperature",
	Aliases: []string{"temp"},
	Usage:   "read the ambient sensor",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "sensor",
			Aliases: []string{"s"},
			Value:   config.AmbientBME280,
			Usage:   "bme280 or shtc3",
		},
		&cli.UintFlag{
			Name:  "address",
			Value: uint(environment.BME280AddrLow),
			Usage: "bme280 address (0x76 or 0x77)",
		},
	},
	Action: func(c *cli.Context) error {
		ctx := commandContext(c)
		bus, err := openBus(ctx, busConfigFromFlags(c))
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		defer bus.close()
		s, err := openAmbient(bus, config.Ambient{Sensor: c.String("sensor"), Address: uint16(c.Uint("address"))})
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		sample, err := s.Sense(ctx)
		if err != nil {
			return console.Exit(1, "error getting temperature read: %s", console.Red(err))
		}
		console.Printf("%s  %s\n%s %s\n", console.PictoThermometer, console.White(fmt.Sprintf("%.2f °C", sample.Temperature)),
			console.PictoHumidity, console.White(fmt.Sprintf("%.2f %%", sample.Humidity)))
		if sample.HasPressure {
			console.Printf("%s %s\n", console.PictoGauge, console.White(fmt.Sprintf("%.2f kPa", sample.Pressure)))
		}
		return nil
	},
}

func openAmbient(bus *openedBus, cfg config.Ambient) (station.AmbientSensor, error) {
	switch cfg.Sensor {
	case config.AmbientBME280:
		s, err := environment.NewBME280(bus.periph, cfg.Address)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.AmbientSHTC3:
		return environment.NewSHTC3(bus), nil
	}
	return nil, fmt.Errorf("unknown sensor %q", cfg.Sensor)
}
