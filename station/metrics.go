package station

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes the last fused reading as prometheus gauges labelled by source.
type Metrics struct {
	registry *prometheus.Registry

	temperature *prometheus.GaugeVec
	humidity    *prometheus.GaugeVec
	pressure    *prometheus.GaugeVec
	eco2        *prometheus.GaugeVec
	tvoc        *prometheus.GaugeVec
	aqi         *prometheus.GaugeVec
	brightness  *prometheus.GaugeVec
	status      *prometheus.GaugeVec
	updated     *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	gauge := func(name, help string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "airsense",
			Name:      name,
			Help:      help,
		}, []string{"source"})
	}
	m := &Metrics{
		registry:    prometheus.NewRegistry(),
		temperature: gauge("temperature_celsius", "Ambient temperature."),
		humidity:    gauge("humidity_percent", "Relative humidity."),
		pressure:    gauge("pressure_kpa", "Barometric pressure."),
		eco2:        gauge("eco2_ppm", "Equivalent CO2 concentration."),
		tvoc:        gauge("tvoc_ppb", "Total volatile organic compounds."),
		aqi:         gauge("aqi", "UBA air quality index (1-5)."),
		brightness:  gauge("brightness", "Ambient brightness mapped to 0-255."),
		status:      gauge("sensor_status", "ENS160 validity flag (0 normal, 1 warm-up, 2 start-up, 3 invalid)."),
		updated:     gauge("last_update_timestamp_seconds", "Time of the last reading."),
	}
	m.registry.MustRegister(m.temperature, m.humidity, m.pressure, m.eco2, m.tvoc,
		m.aqi, m.brightness, m.status, m.updated)
	return m
}

func (m *Metrics) Publish(_ context.Context, f Fused) error {
	m.temperature.WithLabelValues(f.Source).Set(f.Temperature)
	m.humidity.WithLabelValues(f.Source).Set(f.Humidity)
	if f.HasPressure {
		m.pressure.WithLabelValues(f.Source).Set(f.Pressure)
	}
	m.eco2.WithLabelValues(f.Source).Set(float64(f.ECO2))
	m.tvoc.WithLabelValues(f.Source).Set(float64(f.TVOC))
	m.aqi.WithLabelValues(f.Source).Set(float64(f.AQI))
	if f.HasBrightness {
		m.brightness.WithLabelValues(f.Source).Set(float64(f.Brightness))
	}
	m.status.WithLabelValues(f.Source).Set(float64(f.Status))
	m.updated.WithLabelValues(f.Source).Set(float64(f.Time.Unix()))
	return nil
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("metrics server shutdown", "error", err)
		}
	}()
	slog.Info("serving metrics", "address", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
