package environment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"periph.io/x/conn/v3/physic"
)

func TestSampleFromEnv(t *testing.T) {
	e := physic.Env{
		Temperature: physic.ZeroCelsius + 20*physic.Celsius,
		Humidity:    45 * physic.PercentRH,
		Pressure:    101325 * physic.Pascal,
	}
	s := SampleFromEnv(e, true)
	assert.InDelta(t, 20.0, s.Temperature, 1e-6)
	assert.InDelta(t, 45.0, s.Humidity, 1e-6)
	assert.InDelta(t, 101.325, s.Pressure, 1e-6)

	s = SampleFromEnv(e, false)
	assert.False(t, s.HasPressure)
	assert.Zero(t, s.Pressure)
}
