package station

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

const (
	DefaultBroadcastAddress = "239.0.0.100:4210"
	DefaultMessageDelay     = 50 * time.Millisecond
)

// Value names carried in broadcast frames.
const (
	NameTemperature = "temp"
	NameECO2        = "eco2"
	NameBrightness  = "light"
	NameTVOC        = "voc"
	NameHumidity    = "hum"
	NamePressure    = "pres"
	NameAQI         = "aqi"
)

// Frame is a single named value as sent on the wire.
type Frame struct {
	Source string  `cbor:"1,keyasint"`
	Seq    uint32  `cbor:"2,keyasint"`
	Name   string  `cbor:"3,keyasint"`
	Value  float64 `cbor:"4,keyasint"`
	Time   int64   `cbor:"5,keyasint"`
}

// UDPBroadcaster sends every value of a fused reading as its own datagram,
// spacing datagrams by a fixed delay so slow receivers keep up.
type UDPBroadcaster struct {
	mx    sync.Mutex
	conn  net.Conn
	delay time.Duration
	seq   uint32
	enc   cbor.EncMode
}

type BroadcastOpt func(*UDPBroadcaster)

func WithMessageDelay(d time.Duration) BroadcastOpt {
	return func(b *UDPBroadcaster) {
		b.delay = d
	}
}

// NewUDPBroadcaster dials a UDP destination (multicast group or unicast host).
func NewUDPBroadcaster(address string, opts ...BroadcastOpt) (*UDPBroadcaster, error) {
	conn, err := net.Dial("udp", address)
	if err != nil {
		return nil, fmt.Errorf("could not dial %s: %w", address, err)
	}
	b, err := NewBroadcaster(conn, opts...)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return b, nil
}

// NewBroadcaster sends frames over an already connected conn.
func NewBroadcaster(conn net.Conn, opts ...BroadcastOpt) (*UDPBroadcaster, error) {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("cbor encoder: %w", err)
	}
	b := &UDPBroadcaster{
		conn:  conn,
		delay: DefaultMessageDelay,
		enc:   enc,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func (b *UDPBroadcaster) Publish(ctx context.Context, f Fused) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	frames := Frames(f)
	for i := range frames {
		if i > 0 {
			if err := wait(ctx, b.delay); err != nil {
				return err
			}
		}
		b.seq++
		frames[i].Seq = b.seq
		data, err := b.enc.Marshal(frames[i])
		if err != nil {
			return fmt.Errorf("encode %s: %w", frames[i].Name, err)
		}
		if _, err := b.conn.Write(data); err != nil {
			return fmt.Errorf("send %s: %w", frames[i].Name, err)
		}
	}
	return nil
}

func (b *UDPBroadcaster) Close() error {
	return b.conn.Close()
}

// Frames flattens a fused reading in transmission order. Optional values are skipped when absent.
func Frames(f Fused) []Frame {
	ts := f.Time.UnixMilli()
	frame := func(name string, v float64) Frame {
		return Frame{Source: f.Source, Name: name, Value: v, Time: ts}
	}
	frames := []Frame{
		frame(NameTemperature, f.Temperature),
		frame(NameECO2, float64(f.ECO2)),
	}
	if f.HasBrightness {
		frames = append(frames, frame(NameBrightness, float64(f.Brightness)))
	}
	frames = append(frames,
		frame(NameTVOC, float64(f.TVOC)),
		frame(NameHumidity, f.Humidity),
	)
	if f.HasPressure {
		frames = append(frames, frame(NamePressure, f.Pressure))
	}
	return append(frames, frame(NameAQI, float64(f.AQI)))
}

// DecodeFrame parses one datagram.
func DecodeFrame(data []byte) (Frame, error) {
	var fr Frame
	if err := cbor.Unmarshal(data, &fr); err != nil {
		return fr, fmt.Errorf("decode frame: %w", err)
	}
	return fr, nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
