// Package station polls the gas sensor together with an ambient sensor and
// publishes the fused readings to a set of sinks.
package station

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mklimuk/airsense/air"
	"github.com/mklimuk/airsense/environment"
)

type GasSensor interface {
	Read(ctx context.Context) (air.Reading, air.Status, error)
}

// Compensator is implemented by gas sensors accepting ambient compensation.
type Compensator interface {
	SetTemperature(ctx context.Context, celsius float64) error
	SetHumidity(ctx context.Context, percent float64) error
}

type AmbientSensor interface {
	Sense(ctx context.Context) (environment.Sample, error)
}

type LightSensor interface {
	GetLux(ctx context.Context) (float64, error)
}

type Publisher interface {
	Publish(ctx context.Context, f Fused) error
}

// Fused is one station tick worth of data.
type Fused struct {
	Time   time.Time `json:"time"`
	Source string    `json:"source"`

	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Pressure    float64 `json:"pressure,omitempty"`
	HasPressure bool    `json:"-"`

	ECO2   uint16     `json:"eco2"`
	TVOC   uint16     `json:"tvoc"`
	AQI    uint8      `json:"aqi"`
	Status air.Status `json:"status"`

	Brightness    uint8 `json:"brightness,omitempty"`
	HasBrightness bool  `json:"-"`
}

const (
	DefaultInterval = time.Second
	DefaultMaxLux   = 1000.0
)

type Opts struct {
	Interval   time.Duration
	Compensate bool
	Source     string
	MaxLux     float64
	Light      LightSensor
	Publishers []Publisher
}

type Opt func(*Opts)

func WithInterval(d time.Duration) Opt {
	return func(o *Opts) {
		o.Interval = d
	}
}

// WithCompensation feeds each ambient sample into the gas sensor before reading it.
func WithCompensation(enabled bool) Opt {
	return func(o *Opts) {
		o.Compensate = enabled
	}
}

func WithSource(id string) Opt {
	return func(o *Opts) {
		o.Source = id
	}
}

// WithLight adds a light sensor; maxLux maps to full brightness (255).
func WithLight(l LightSensor, maxLux float64) Opt {
	return func(o *Opts) {
		o.Light = l
		if maxLux > 0 {
			o.MaxLux = maxLux
		}
	}
}

func WithPublishers(p ...Publisher) Opt {
	return func(o *Opts) {
		o.Publishers = append(o.Publishers, p...)
	}
}

type Station struct {
	gas     GasSensor
	ambient AmbientSensor
	opts    Opts
	now     func() time.Time
}

func New(gas GasSensor, ambient AmbientSensor, opts ...Opt) *Station {
	o := Opts{
		Interval: DefaultInterval,
		MaxLux:   DefaultMaxLux,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Station{
		gas:     gas,
		ambient: ambient,
		opts:    o,
		now:     time.Now,
	}
}

// Collect reads all sensors once. A light sensor failure only drops brightness.
func (s *Station) Collect(ctx context.Context) (Fused, error) {
	f := Fused{Time: s.now(), Source: s.opts.Source}

	sample, err := s.ambient.Sense(ctx)
	if err != nil {
		return f, fmt.Errorf("ambient sensor: %w", err)
	}
	f.Temperature = sample.Temperature
	f.Humidity = sample.Humidity
	f.Pressure = sample.Pressure
	f.HasPressure = sample.HasPressure

	if s.opts.Compensate {
		if err := s.compensate(ctx, sample); err != nil {
			return f, err
		}
	}

	reading, status, err := s.gas.Read(ctx)
	if err != nil {
		return f, fmt.Errorf("gas sensor: %w", err)
	}
	f.ECO2 = reading.ECO2
	f.TVOC = reading.TVOC
	f.AQI = reading.AQI
	f.Status = status
	if status == air.StatusInvalid {
		slog.Warn("gas sensor reports invalid data, publishing last known values")
	}

	if s.opts.Light != nil {
		lux, err := s.opts.Light.GetLux(ctx)
		if err != nil {
			slog.Warn("light sensor read failed", "error", err)
		} else {
			f.Brightness = Brightness(lux, s.opts.MaxLux)
			f.HasBrightness = true
		}
	}
	return f, nil
}

// Tick collects once and publishes to every sink. Sink errors are logged, not returned.
func (s *Station) Tick(ctx context.Context) (Fused, error) {
	f, err := s.Collect(ctx)
	if err != nil {
		return f, err
	}
	for _, p := range s.opts.Publishers {
		if err := p.Publish(ctx, f); err != nil {
			slog.Error("publish failed", "publisher", fmt.Sprintf("%T", p), "error", err)
		}
	}
	return f, nil
}

// Run ticks every interval until ctx is done.
func (s *Station) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()
	for {
		if _, err := s.Tick(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Error("station tick failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if ctx.Err() != nil {
				return nil
			}
		}
	}
}

func (s *Station) compensate(ctx context.Context, sample environment.Sample) error {
	c, ok := s.gas.(Compensator)
	if !ok {
		return errors.New("gas sensor does not support compensation")
	}
	if err := c.SetTemperature(ctx, sample.Temperature); err != nil {
		return fmt.Errorf("temperature compensation: %w", err)
	}
	if err := c.SetHumidity(ctx, sample.Humidity); err != nil {
		return fmt.Errorf("humidity compensation: %w", err)
	}
	return nil
}

// Brightness maps lux linearly onto 0-255, saturating at maxLux.
func Brightness(lux, maxLux float64) uint8 {
	if lux <= 0 || maxLux <= 0 {
		return 0
	}
	if lux >= maxLux {
		return 255
	}
	return uint8(lux / maxLux * 255)
}
