package station

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
)

type DebugMode int

const (
	DebugOff DebugMode = iota
	// DebugLabelled writes one "name: value" line per value followed by a separator.
	DebugLabelled
	// DebugStream writes one comma separated line per tick for plotting tools.
	DebugStream
)

func (m DebugMode) Valid() bool {
	return m >= DebugOff && m <= DebugStream
}

const separator = "*****************"

// SerialWriter mirrors readings to a serial console or any writer.
type SerialWriter struct {
	w    io.Writer
	mode DebugMode
}

func NewSerialWriter(w io.Writer, mode DebugMode) *SerialWriter {
	return &SerialWriter{w: w, mode: mode}
}

func (s *SerialWriter) Publish(_ context.Context, f Fused) error {
	var out string
	switch s.mode {
	case DebugLabelled:
		out = labelled(f)
	case DebugStream:
		out = stream(f)
	default:
		return nil
	}
	if _, err := io.WriteString(s.w, out); err != nil {
		return fmt.Errorf("serial write: %w", err)
	}
	return nil
}

func labelled(f Fused) string {
	var b strings.Builder
	line := func(name, value string) {
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteByte('\n')
	}
	line("temp", formatFloat(f.Temperature))
	line("hum", formatFloat(f.Humidity))
	if f.HasPressure {
		line("pres", formatFloat(f.Pressure))
	}
	line("eco2", strconv.Itoa(int(f.ECO2)))
	line("tvoc", strconv.Itoa(int(f.TVOC)))
	line("aqi", strconv.Itoa(int(f.AQI)))
	line("status", f.Status.String())
	if f.HasBrightness {
		line("bright", strconv.Itoa(int(f.Brightness)))
	}
	b.WriteString(separator)
	b.WriteByte('\n')
	return b.String()
}

// stream keeps a fixed column order; missing optional values are written as 0.
func stream(f Fused) string {
	cols := []string{
		formatFloat(f.Temperature),
		formatFloat(f.Humidity),
		strconv.Itoa(int(f.ECO2)),
		strconv.Itoa(int(f.Brightness)),
		strconv.Itoa(int(f.TVOC)),
		formatFloat(f.Pressure),
	}
	return strings.Join(cols, ",") + "\n"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
