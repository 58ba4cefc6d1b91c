package compass

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
	"sync"
	"testing"
	"time"
)

const pollInterval = 2 * time.Millisecond

// fakePort scripts a request/response compass device. Each queued reply
// answers one '$' poll; an exhausted queue fails the read.
type fakePort struct {
	mu        sync.Mutex
	replies   [][]byte
	pending   []byte
	writes    int
	failWrite bool
	closed    bool
}

func heading(v float64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, math.Float64bits(v))
	return b
}

func (f *fakePort) queue(replies ...[]byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, replies...)
}

func (f *fakePort) Write(b []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrite {
		return 0, errors.New("write failed")
	}
	if len(b) != 1 || b[0] != PollRequest {
		return 0, errors.New("unexpected request")
	}
	f.writes++
	if len(f.replies) > 0 {
		f.pending = f.replies[0]
		f.replies = f.replies[1:]
	} else {
		f.pending = nil
	}
	return len(b), nil
}

func (f *fakePort) Read(b []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pending) == 0 {
		return 0, io.EOF
	}
	n := copy(b, f.pending)
	f.pending = f.pending[n:]
	return n, nil
}

func (f *fakePort) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal(msg)
}

func TestPollerAppliesOffset(t *testing.T) {
	port := &fakePort{}
	port.queue(heading(1.25), heading(1.25), heading(1.25))

	p := NewPoller(port, pollInterval, 0.25)
	defer p.Stop()

	eventually(t, func() bool {
		v, ok := p.Value()
		return ok && math.Abs(v-1.0) < 1e-12
	}, "expected corrected heading 1.0")
}

func TestPollerInvalidatesOnReadFailure(t *testing.T) {
	port := &fakePort{}
	port.queue(heading(2.0)) // one good cycle, then EOF

	p := NewPoller(port, pollInterval, 0)
	defer p.Stop()

	eventually(t, func() bool {
		_, ok := p.Value()
		return ok
	}, "expected an initial reading")

	eventually(t, func() bool {
		_, ok := p.Value()
		return !ok
	}, "expected reading to invalidate after read failure")
}

func TestPollerInvalidatesOnWriteFailure(t *testing.T) {
	port := &fakePort{}
	port.queue(heading(2.0))

	p := NewPoller(port, pollInterval, 0)
	defer p.Stop()

	eventually(t, func() bool {
		_, ok := p.Value()
		return ok
	}, "expected an initial reading")

	port.mu.Lock()
	port.failWrite = true
	port.mu.Unlock()

	eventually(t, func() bool {
		_, ok := p.Value()
		return !ok
	}, "expected reading to invalidate after write failure")
}

func TestPollerRejectsNonFiniteReading(t *testing.T) {
	port := &fakePort{}
	port.queue(heading(math.NaN()), heading(math.NaN()))

	p := NewPoller(port, pollInterval, 0)
	defer p.Stop()

	time.Sleep(20 * pollInterval)
	if _, ok := p.Value(); ok {
		t.Error("NaN reading must not be published")
	}
}

func TestSetOffsetAppliesToLaterReadings(t *testing.T) {
	port := &fakePort{}
	for i := 0; i < 200; i++ {
		port.queue(heading(3.0))
	}

	p := NewPoller(port, pollInterval, 1.0)
	defer p.Stop()

	eventually(t, func() bool {
		v, ok := p.Value()
		return ok && math.Abs(v-2.0) < 1e-12
	}, "expected heading with original offset")

	p.SetOffset(2.5)

	eventually(t, func() bool {
		v, ok := p.Value()
		return ok && math.Abs(v-0.5) < 1e-12
	}, "expected heading with updated offset")
}

// stuckPort acks the poll request but never produces a reply; only
// closing the port releases a pending read.
type stuckPort struct {
	once   sync.Once
	closed chan struct{}
}

func newStuckPort() *stuckPort { return &stuckPort{closed: make(chan struct{})} }

func (s *stuckPort) Write(b []byte) (int, error) { return len(b), nil }

func (s *stuckPort) Read(b []byte) (int, error) {
	<-s.closed
	return 0, io.ErrClosedPipe
}

func (s *stuckPort) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func TestStopAbortsPendingRead(t *testing.T) {
	p := NewPoller(newStuckPort(), pollInterval, 0)

	// Give the poll goroutine time to park inside the device read.
	time.Sleep(10 * pollInterval)

	stopped := make(chan error, 1)
	go func() { stopped <- p.Stop() }()

	select {
	case err := <-stopped:
		if err != nil {
			t.Fatalf("Stop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Stop never returned while a device read was pending")
	}
}

func TestStopIsIdempotentAndClosesPort(t *testing.T) {
	port := &fakePort{}
	p := NewPoller(port, pollInterval, 0)

	if err := p.Stop(); err != nil {
		t.Fatalf("first Stop: %v", err)
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}

	port.mu.Lock()
	closed := port.closed
	port.mu.Unlock()
	if !closed {
		t.Error("Stop must close the port")
	}

	select {
	case <-p.done:
	default:
		t.Error("poller goroutine still running after Stop")
	}
}
