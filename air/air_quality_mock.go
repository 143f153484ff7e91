package air

import (
	"context"
)

// ReadingBehaviorFunc defines the function signature for air quality behavior.
// It returns the reading, the chip status or an error.
type ReadingBehaviorFunc func(ctx context.Context) (Reading, Status, error)

// MockAirQualitySensor is a mock implementation of an ENS160-like air quality sensor
// that uses a behavior function to produce results without requiring hardware.
// Compensation values written to it are recorded and can be inspected.
type MockAirQualitySensor struct {
	behavior ReadingBehaviorFunc

	Temperature float64
	Humidity    float64
	Compensated int
}

// NewMockAirQualitySensor creates a new mock air quality sensor with the given behavior function.
// The behavior function is called whenever Read is invoked.
//
// Example usage:
//
//	sensor := NewMockAirQualitySensor(func(ctx context.Context) (Reading, Status, error) {
//		return Reading{AQI: 2, TVOC: 120, ECO2: 650}, StatusNormal, nil
//	})
func NewMockAirQualitySensor(behavior ReadingBehaviorFunc) *MockAirQualitySensor {
	return &MockAirQualitySensor{behavior: behavior}
}

// Read returns the reading by calling the behavior function.
func (m *MockAirQualitySensor) Read(ctx context.Context) (Reading, Status, error) {
	return m.behavior(ctx)
}

func (m *MockAirQualitySensor) SetTemperature(ctx context.Context, celsius float64) error {
	m.Temperature = celsius
	m.Compensated++
	return nil
}

func (m *MockAirQualitySensor) SetHumidity(ctx context.Context, percent float64) error {
	m.Humidity = percent
	m.Compensated++
	return nil
}

// NewMockENS160 creates a new mock sensor returning a fixed reading with normal status.
func NewMockENS160(r Reading) *MockAirQualitySensor {
	return NewMockAirQualitySensor(func(ctx context.Context) (Reading, Status, error) {
		return r, StatusNormal, nil
	})
}
