// Package bustest provides a scripted airsense.I2CBus for driver tests.
//
// It mirrors periph's i2ctest.Playback but follows the write-then-read
// transaction split used by airsense.I2CBus: every IO is either a write
// (W set) or a read (R set).
package bustest

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/mklimuk/airsense"
)

var _ airsense.I2CBus = &Playback{}

// IO is one expected transaction. Err, when set, is returned instead of
// performing the transaction.
type IO struct {
	Addr byte
	W    []byte
	R    []byte
	Err  error
}

// Playback replays Ops in order and fails on the first mismatch.
type Playback struct {
	mu       sync.Mutex
	Ops      []IO
	Count    int
	Releases int
}

func (p *Playback) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	op, err := p.next(address)
	if err != nil {
		return err
	}
	if op.R != nil {
		return fmt.Errorf("bustest: op %d: expected read of %d bytes, got write % x", p.Count-1, len(op.R), buffer)
	}
	if op.Err != nil {
		return op.Err
	}
	if !bytes.Equal(op.W, buffer) {
		return fmt.Errorf("bustest: op %d: expected write % x, got % x", p.Count-1, op.W, buffer)
	}
	return nil
}

func (p *Playback) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	op, err := p.next(address)
	if err != nil {
		return err
	}
	if op.W != nil {
		return fmt.Errorf("bustest: op %d: expected write % x, got read of %d bytes", p.Count-1, op.W, len(buffer))
	}
	if op.Err != nil {
		return op.Err
	}
	if len(op.R) != len(buffer) {
		return fmt.Errorf("bustest: op %d: expected read of %d bytes, got %d", p.Count-1, len(op.R), len(buffer))
	}
	copy(buffer, op.R)
	return nil
}

func (p *Playback) Release(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Releases++
	return nil
}

// Close reports ops that were never consumed.
func (p *Playback) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Count != len(p.Ops) {
		return fmt.Errorf("bustest: expected %d ops, got %d", len(p.Ops), p.Count)
	}
	return nil
}

func (p *Playback) next(address byte) (IO, error) {
	if p.Count >= len(p.Ops) {
		return IO{}, fmt.Errorf("bustest: unexpected op %d past end of playback", p.Count)
	}
	op := p.Ops[p.Count]
	p.Count++
	if op.Addr != address {
		return IO{}, fmt.Errorf("bustest: op %d: expected address %#02x, got %#02x", p.Count-1, op.Addr, address)
	}
	return op, nil
}

// Record captures every transaction and answers reads from a register map
// keyed by the last selected register.
type Record struct {
	mu        sync.Mutex
	Ops       []IO
	Registers map[byte][]byte
	selected  byte
}

func (r *Record) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Ops = append(r.Ops, IO{Addr: address, W: append([]byte{}, buffer...)})
	if len(buffer) > 0 {
		r.selected = buffer[0]
	}
	return nil
}

func (r *Record) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copy(buffer, r.Registers[r.selected])
	r.Ops = append(r.Ops, IO{Addr: address, R: append([]byte{}, buffer...)})
	return nil
}

func (r *Record) Release(ctx context.Context) error {
	return nil
}
