package air

// Compensation registers hold temperature in 1/64 Kelvin and relative humidity
// in 1/512 %RH. Encoding truncates and keeps only the low 16 bits: inputs outside
// the register range wrap around instead of being clamped.

const (
	kelvinOffset     = 273.15
	temperatureScale = 64
	humidityScale    = 512
)

func EncodeTemperature(celsius float64) uint16 {
	return uint16(int64((celsius+kelvinOffset)*temperatureScale) & 0xFFFF)
}

func DecodeTemperature(raw uint16) float64 {
	return float64(raw)/temperatureScale - kelvinOffset
}

func EncodeHumidity(percent float64) uint16 {
	return uint16(int64(percent*humidityScale) & 0xFFFF)
}

func DecodeHumidity(raw uint16) float64 {
	return float64(raw) / humidityScale
}
