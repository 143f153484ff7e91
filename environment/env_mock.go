package environment

import (
	"context"
)

// SampleBehaviorFunc defines the function signature for ambient sensor behavior.
type SampleBehaviorFunc func(ctx context.Context) (Sample, error)

// MockEnvironmentSensor is a mock implementation of an ambient sensor
// that uses a behavior function to produce results without requiring any hardware.
// This can be used to mock any sensor exposing Sense, like SHTC3 or BME280.
type MockEnvironmentSensor struct {
	behavior SampleBehaviorFunc
}

// NewMockEnvironmentSensor creates a new mock sensor with the given behavior function.
//
// Example usage:
//
//	temp := 20.0
//	sensor := NewMockEnvironmentSensor(func(ctx context.Context) (Sample, error) {
//		return Sample{Temperature: temp, Humidity: 50}, nil
//	})
func NewMockEnvironmentSensor(behavior SampleBehaviorFunc) *MockEnvironmentSensor {
	return &MockEnvironmentSensor{behavior: behavior}
}

// Sense returns the sample by calling the behavior function.
func (m *MockEnvironmentSensor) Sense(ctx context.Context) (Sample, error) {
	return m.behavior(ctx)
}

// NewMockBME280 creates a mock returning a fixed sample with pressure.
func NewMockBME280(temp, hum, pressure float64) *MockEnvironmentSensor {
	return NewMockEnvironmentSensor(func(ctx context.Context) (Sample, error) {
		return Sample{Temperature: temp, Humidity: hum, Pressure: pressure, HasPressure: true}, nil
	})
}

// LightBehaviorFunc defines the function signature for light sensor behavior.
// It returns the lux value or an error.
type LightBehaviorFunc func(ctx context.Context) (float64, error)

// MockLightSensor is a mock implementation of a light sensor like BH1750.
type MockLightSensor struct {
	behavior LightBehaviorFunc
}

func NewMockLightSensor(behavior LightBehaviorFunc) *MockLightSensor {
	return &MockLightSensor{behavior: behavior}
}

// GetLux returns the lux value by calling the behavior function.
func (m *MockLightSensor) GetLux(ctx context.Context) (float64, error) {
	return m.behavior(ctx)
}
