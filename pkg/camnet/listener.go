package camnet

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/sightline-robotics/camtrack/internal/log"
	"github.com/sightline-robotics/camtrack/pkg/geo"
)

// Handler receives registry lifecycle notifications. Callbacks run on
// the connection's own goroutine and must not block on the caller's
// locks. Nil callbacks are skipped.
type Handler struct {
	OnConnect    func(addr string, cam geo.PlacedCamera)
	OnDisconnect func(addr string, cam geo.PlacedCamera)
	OnReject     func(addr string, bearing float64)
}

// Listener accepts camera-node connections and feeds the registry.
// Every accepted connection is served on its own goroutine.
type Listener struct {
	ln       net.Listener
	registry *Registry
	handler  Handler

	mu    sync.Mutex
	conns map[net.Conn]struct{}

	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// Listen binds the camera port and starts accepting. A bind failure is
// fatal to service construction.
func Listen(port int, registry *Registry, handler Handler) (*Listener, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("bind camera listener: %w", err)
	}

	l := &Listener{
		ln:       ln,
		registry: registry,
		handler:  handler,
		conns:    make(map[net.Conn]struct{}),
	}
	l.wg.Add(1)
	go l.acceptLoop()
	return l, nil
}

// Addr returns the bound address, useful when listening on port 0.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Close stops accepting, drops all in-flight camera connections, and
// waits for their goroutines to finish. Safe to call more than once.
func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		l.closeErr = l.ln.Close()

		l.mu.Lock()
		for conn := range l.conns {
			conn.Close()
		}
		l.mu.Unlock()

		l.wg.Wait()
	})
	return l.closeErr
}

func (l *Listener) acceptLoop() {
	defer l.wg.Done()
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Warn("camera accept failed", "error", err)
			continue
		}

		l.track(conn)
		l.wg.Add(1)
		go l.serve(conn)
	}
}

func (l *Listener) track(conn net.Conn) {
	l.mu.Lock()
	l.conns[conn] = struct{}{}
	l.mu.Unlock()
}

func (l *Listener) untrack(conn net.Conn) {
	l.mu.Lock()
	delete(l.conns, conn)
	l.mu.Unlock()
}

// serve owns one camera connection: registration, observation stream,
// and disconnect handling. A failure here is local to this camera and
// never propagates to other connections.
func (l *Listener) serve(conn net.Conn) {
	defer l.wg.Done()
	defer l.untrack(conn)
	defer conn.Close()

	addr := conn.RemoteAddr().String()

	cam, err := ReadRegistration(conn)
	if err != nil {
		// Malformed or incomplete registration: close without events.
		log.Debug("camera registration rejected", "addr", addr, "error", err)
		return
	}

	if err := l.registry.Add(addr, cam); err != nil {
		log.Warn("camera registration refused", "addr", addr, "error", err)
		return
	}
	log.Info("camera connected", "addr", addr, "fov", cam.FOV)
	if l.handler.OnConnect != nil {
		l.handler.OnConnect(addr, cam)
	}

	for {
		bearing, err := ReadObservation(conn)
		if err != nil {
			if errors.Is(err, ErrBadObservation) {
				log.Warn("camera protocol violation", "addr", addr)
			}
			break
		}

		switch err := l.registry.Observe(addr, bearing); {
		case err == nil:
		case errors.Is(err, ErrObservationOutOfRange):
			// Discard but keep the camera: a bad detection frame is not
			// a reason to tear the connection down.
			log.Debug("observation out of range", "addr", addr, "bearing", bearing)
			if l.handler.OnReject != nil {
				l.handler.OnReject(addr, bearing)
			}
		default:
			log.Warn("observation dropped", "addr", addr, "error", err)
		}
	}

	if last, ok := l.registry.Remove(addr); ok {
		log.Info("camera disconnected", "addr", addr)
		if l.handler.OnDisconnect != nil {
			l.handler.OnDisconnect(addr, last)
		}
	}
}
