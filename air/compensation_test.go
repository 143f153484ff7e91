package air

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeTemperature(t *testing.T) {
	tests := []struct {
		celsius  float64
		expected uint16
	}{
		{25.0, 19081},
		{0.0, 17481},
		{-40.0, 14921},
		{-273.15, 0},
		// above 1024K the raw value no longer fits in 16 bits and wraps
		{800, 3145},
		{-280, 0xFE4A},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%.2f", tt.celsius), func(t *testing.T) {
			assert.Equal(t, tt.expected, EncodeTemperature(tt.celsius))
		})
	}
}

func TestEncodeHumidity(t *testing.T) {
	tests := []struct {
		percent  float64
		expected uint16
	}{
		{0, 0},
		{50, 25600},
		{100, 51200},
		{45.3, 23193},
		{128, 0},
		{130, 1024},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%.1f", tt.percent), func(t *testing.T) {
			assert.Equal(t, tt.expected, EncodeHumidity(tt.percent))
		})
	}
}

func TestTemperatureRoundTrip(t *testing.T) {
	for c := -40.0; c <= 85.0; c += 0.37 {
		got := DecodeTemperature(EncodeTemperature(c))
		assert.InDelta(t, c, got, 1.0/temperatureScale+1e-9, "temperature %.2f", c)
	}
}

func TestHumidityRoundTrip(t *testing.T) {
	for h := 0.0; h <= 100.0; h += 0.29 {
		got := DecodeHumidity(EncodeHumidity(h))
		assert.InDelta(t, h, got, 1.0/humidityScale+1e-9, "humidity %.2f", h)
	}
}

func TestDecodeCompensation(t *testing.T) {
	assert.InDelta(t, 25.0, DecodeTemperature(19081), 1.0/temperatureScale)
	assert.InDelta(t, -273.15, DecodeTemperature(0), 1e-9)
	assert.InDelta(t, 50.0, DecodeHumidity(25600), 1e-9)
}
