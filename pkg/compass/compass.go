// Package compass supplies an optional absolute-heading correction for
// the location service, decoupled from any specific hardware.
//
// The serial device protocol is tiny: the poller writes a single '$'
// request byte and the device answers with exactly 8 bytes, a big-endian
// IEEE-754 double carrying the raw heading. A configurable calibration
// offset is subtracted before the reading is published.
package compass

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/jacobsa/go-serial/serial"
)

// Compass yields the last known heading correction. Value never blocks;
// ok is false until the first successful read and after any failed cycle.
// Stop shuts the device down and is safe to call more than once.
type Compass interface {
	Value() (heading float64, ok bool)
	Stop() error
}

// PollRequest is the sentinel byte written to the device each cycle.
const PollRequest = '$'

// readingSize is the fixed response length: one big-endian float64.
const readingSize = 8

// DefaultBaudRate matches the microbit-style compass firmware.
const DefaultBaudRate = 115200

// Poller polls any request/response byte device on a fixed interval and
// publishes the most recent corrected heading.
type Poller struct {
	port     io.ReadWriteCloser
	interval time.Duration

	mu     sync.RWMutex
	last   float64
	valid  bool
	offset float64

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	stopErr  error
}

// OpenSerial opens the named serial device and starts polling it.
// The calibration offset is in radians.
func OpenSerial(device string, baudRate uint, interval time.Duration, offset float64) (*Poller, error) {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	port, err := serial.Open(serial.OpenOptions{
		PortName:              device,
		BaudRate:              baudRate,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       readingSize,
		InterCharacterTimeout: 100,
	})
	if err != nil {
		return nil, fmt.Errorf("open compass serial port %s: %w", device, err)
	}
	return NewPoller(port, interval, offset), nil
}

// NewPoller starts a poller over an already-open port. Exposed separately
// so tests and non-serial transports can supply their own ReadWriteCloser.
func NewPoller(port io.ReadWriteCloser, interval time.Duration, offset float64) *Poller {
	p := &Poller{
		port:     port,
		interval: interval,
		offset:   offset,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go p.run()
	return p
}

// Value returns the last corrected heading. ok is false when the most
// recent cycle failed or no cycle has completed yet.
func (p *Poller) Value() (float64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last, p.valid
}

// SetOffset replaces the calibration offset. The new offset applies from
// the next poll cycle onward; a reading already in flight keeps the
// offset it started with.
func (p *Poller) SetOffset(offset float64) {
	p.mu.Lock()
	p.offset = offset
	p.mu.Unlock()
}

// Stop signals the poller, closes the port so any pending device I/O
// aborts, and waits for the poll goroutine to exit. Subsequent calls
// return the first call's result.
func (p *Poller) Stop() error {
	p.stopOnce.Do(func() {
		close(p.stop)
		p.stopErr = p.port.Close()
		<-p.done
	})
	return p.stopErr
}

func (p *Poller) run() {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	buf := make([]byte, readingSize)
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
		}

		// The stop signal must win over a pending tick so shutdown never
		// races one more device round-trip.
		select {
		case <-p.stop:
			return
		default:
		}

		if _, err := p.port.Write([]byte{PollRequest}); err != nil {
			p.invalidate()
			continue
		}

		// Snapshot the offset before reading: a SetOffset racing this
		// cycle only affects the next one.
		p.mu.RLock()
		offset := p.offset
		p.mu.RUnlock()

		if _, err := io.ReadFull(p.port, buf); err != nil {
			p.invalidate()
			continue
		}

		raw := math.Float64frombits(binary.BigEndian.Uint64(buf))
		if math.IsNaN(raw) || math.IsInf(raw, 0) {
			p.invalidate()
			continue
		}

		p.mu.Lock()
		p.last = raw - offset
		p.valid = true
		p.mu.Unlock()
	}
}

func (p *Poller) invalidate() {
	p.mu.Lock()
	p.valid = false
	p.mu.Unlock()
}
