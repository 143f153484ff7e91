package environment

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
)

// Sample is a single ambient measurement from a temperature/humidity(/pressure) sensor.
type Sample struct {
	// Temperature in Celsius.
	Temperature float64
	// Humidity in %RH.
	Humidity float64
	// Pressure in kPa, valid only when HasPressure is set.
	Pressure    float64
	HasPressure bool
}

func (s Sample) String() string {
	if s.HasPressure {
		return fmt.Sprintf("%.2f°C %.2f%%RH %.3fkPa", s.Temperature, s.Humidity, s.Pressure)
	}
	return fmt.Sprintf("%.2f°C %.2f%%RH", s.Temperature, s.Humidity)
}

// SampleFromEnv converts periph physic units.
func SampleFromEnv(e physic.Env, hasPressure bool) Sample {
	s := Sample{
		Temperature: e.Temperature.Celsius(),
		Humidity:    float64(e.Humidity) / float64(physic.PercentRH),
		HasPressure: hasPressure,
	}
	if hasPressure {
		s.Pressure = float64(e.Pressure) / float64(physic.KiloPascal)
	}
	return s
}
