// Package config loads the station configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mklimuk/airsense/air"
	"github.com/mklimuk/airsense/environment"
	"github.com/mklimuk/airsense/station"
)

const (
	AdapterMCP2221 = "mcp2221"
	AdapterGeneric = "generic"
	AdapterNanoPi  = "nanopi"

	AmbientBME280 = "bme280"
	AmbientSHTC3  = "shtc3"
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Bus       Bus       `yaml:"bus"`
	ENS160    ENS160    `yaml:"ens160"`
	Ambient   Ambient   `yaml:"ambient"`
	Light     Light     `yaml:"light"`
	Station   Station   `yaml:"station"`
	Broadcast Broadcast `yaml:"broadcast"`
	Metrics   Metrics   `yaml:"metrics"`
	Debug     Debug     `yaml:"debug"`
}

type Bus struct {
	// Adapter is one of mcp2221, generic or nanopi.
	Adapter string `yaml:"adapter"`
	// Device names the periph bus for the generic adapter, empty picks the first one.
	Device string `yaml:"device"`
	Number int    `yaml:"number"`
	// Index selects among several attached mcp2221 bridges.
	Index   int `yaml:"index"`
	SpeedHz int `yaml:"speed_hz"`
}

type ENS160 struct {
	Address   uint8         `yaml:"address"`
	BootDelay time.Duration `yaml:"boot_delay"`
}

type Ambient struct {
	Sensor  string `yaml:"sensor"`
	Address uint16 `yaml:"address"`
}

type Light struct {
	Enabled bool    `yaml:"enabled"`
	Address uint8   `yaml:"address"`
	MaxLux  float64 `yaml:"max_lux"`
}

type Station struct {
	ID         string        `yaml:"id"`
	Interval   time.Duration `yaml:"interval"`
	Compensate bool          `yaml:"compensate"`
}

type Broadcast struct {
	Enabled      bool          `yaml:"enabled"`
	Address      string        `yaml:"address"`
	MessageDelay time.Duration `yaml:"message_delay"`
}

type Metrics struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

type Debug struct {
	Mode int `yaml:"mode"`
}

func Default() Config {
	return Config{
		Bus: Bus{
			Adapter: AdapterMCP2221,
			SpeedHz: 100_000,
		},
		ENS160: ENS160{
			Address:   uint8(air.AddressPrimary),
			BootDelay: air.DefaultBootDelay,
		},
		Ambient: Ambient{
			Sensor:  AmbientBME280,
			Address: environment.BME280AddrLow,
		},
		Light: Light{
			Address: environment.BH1750AddrLow,
			MaxLux:  station.DefaultMaxLux,
		},
		Station: Station{
			Interval:   station.DefaultInterval,
			Compensate: true,
		},
		Broadcast: Broadcast{
			Enabled:      true,
			Address:      station.DefaultBroadcastAddress,
			MessageDelay: station.DefaultMessageDelay,
		},
		Metrics: Metrics{
			Listen: ":9160",
		},
	}
}

// Load reads path over the defaults and validates the result.
// A missing station id is replaced with a random one.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("could not read config: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (Config, error) {
	c := Default()
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("could not parse config: %w", err)
	}
	if c.Station.ID == "" {
		c.Station.ID = station.NewSourceID()
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	switch c.Bus.Adapter {
	case AdapterMCP2221, AdapterGeneric, AdapterNanoPi:
	default:
		return fmt.Errorf("%w: unknown bus adapter %q", ErrInvalid, c.Bus.Adapter)
	}
	if c.Bus.Index < 0 || c.Bus.Number < 0 {
		return fmt.Errorf("%w: negative bus index", ErrInvalid)
	}
	if c.Bus.SpeedHz <= 0 {
		return fmt.Errorf("%w: bus speed must be positive", ErrInvalid)
	}
	if !air.Address(c.ENS160.Address).Valid() {
		return fmt.Errorf("%w: ens160 address 0x%02x", ErrInvalid, c.ENS160.Address)
	}
	if c.ENS160.BootDelay < 0 {
		return fmt.Errorf("%w: negative boot delay", ErrInvalid)
	}
	switch c.Ambient.Sensor {
	case AmbientBME280:
		if c.Ambient.Address != environment.BME280AddrLow && c.Ambient.Address != environment.BME280AddrHigh {
			return fmt.Errorf("%w: bme280 address 0x%02x", ErrInvalid, c.Ambient.Address)
		}
	case AmbientSHTC3:
	default:
		return fmt.Errorf("%w: unknown ambient sensor %q", ErrInvalid, c.Ambient.Sensor)
	}
	if c.Light.Enabled && c.Light.MaxLux <= 0 {
		return fmt.Errorf("%w: light max_lux must be positive", ErrInvalid)
	}
	if c.Station.Interval <= 0 {
		return fmt.Errorf("%w: station interval must be positive", ErrInvalid)
	}
	if c.Broadcast.Enabled && c.Broadcast.Address == "" {
		return fmt.Errorf("%w: broadcast address missing", ErrInvalid)
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return fmt.Errorf("%w: metrics listen address missing", ErrInvalid)
	}
	if !station.DebugMode(c.Debug.Mode).Valid() {
		return fmt.Errorf("%w: debug mode %d", ErrInvalid, c.Debug.Mode)
	}
	return nil
}
