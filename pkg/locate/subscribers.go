package locate

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/sightline-robotics/camtrack/pkg/geo"
)

// subscribers fans events out to registered callbacks. Position events
// are delivered synchronously in registration order on the tick
// goroutine; connection events on the owning camera's goroutine. A
// failing or panicking callback never stops delivery to the rest.
type subscribers struct {
	mu         sync.RWMutex
	position   []positionSub
	connect    []connectionSub
	disconnect []connectionSub
}

type positionSub struct {
	id uuid.UUID
	fn PositionFunc
}

type connectionSub struct {
	id uuid.UUID
	fn ConnectionFunc
}

// SubscribePosition registers fn for every published estimate and
// returns a token usable with Unsubscribe.
func (s *Service) SubscribePosition(fn PositionFunc) uuid.UUID {
	id := uuid.New()
	s.subs.mu.Lock()
	s.subs.position = append(s.subs.position, positionSub{id: id, fn: fn})
	s.subs.mu.Unlock()
	return id
}

// SubscribeConnection registers fn for camera connect events.
func (s *Service) SubscribeConnection(fn ConnectionFunc) uuid.UUID {
	id := uuid.New()
	s.subs.mu.Lock()
	s.subs.connect = append(s.subs.connect, connectionSub{id: id, fn: fn})
	s.subs.mu.Unlock()
	return id
}

// SubscribeDisconnection registers fn for camera disconnect events.
func (s *Service) SubscribeDisconnection(fn ConnectionFunc) uuid.UUID {
	id := uuid.New()
	s.subs.mu.Lock()
	s.subs.disconnect = append(s.subs.disconnect, connectionSub{id: id, fn: fn})
	s.subs.mu.Unlock()
	return id
}

// Unsubscribe removes a previously registered callback. Unknown tokens
// are ignored.
func (s *Service) Unsubscribe(id uuid.UUID) {
	s.subs.mu.Lock()
	defer s.subs.mu.Unlock()
	s.subs.position = removePositionSub(s.subs.position, id)
	s.subs.connect = removeConnectionSub(s.subs.connect, id)
	s.subs.disconnect = removeConnectionSub(s.subs.disconnect, id)
}

func removePositionSub(subs []positionSub, id uuid.UUID) []positionSub {
	for i, sub := range subs {
		if sub.id == id {
			return append(subs[:i:i], subs[i+1:]...)
		}
	}
	return subs
}

func removeConnectionSub(subs []connectionSub, id uuid.UUID) []connectionSub {
	for i, sub := range subs {
		if sub.id == id {
			return append(subs[:i:i], subs[i+1:]...)
		}
	}
	return subs
}

func (b *subscribers) dispatchPosition(tp TimedPosition, report func(error)) {
	b.mu.RLock()
	subs := append([]positionSub(nil), b.position...)
	b.mu.RUnlock()

	for _, sub := range subs {
		call(func() error { return sub.fn(tp) }, report)
	}
}

func (b *subscribers) dispatchConnection(addr string, cam geo.PlacedCamera, report func(error)) {
	b.mu.RLock()
	subs := append([]connectionSub(nil), b.connect...)
	b.mu.RUnlock()

	for _, sub := range subs {
		call(func() error { return sub.fn(addr, cam) }, report)
	}
}

func (b *subscribers) dispatchDisconnection(addr string, cam geo.PlacedCamera, report func(error)) {
	b.mu.RLock()
	subs := append([]connectionSub(nil), b.disconnect...)
	b.mu.RUnlock()

	for _, sub := range subs {
		call(func() error { return sub.fn(addr, cam) }, report)
	}
}

// call invokes one callback, converting errors and panics into reports
// so the tick loop's own state is never corrupted.
func call(fn func() error, report func(error)) {
	defer func() {
		if r := recover(); r != nil {
			report(fmt.Errorf("subscriber panicked: %v", r))
		}
	}()
	if err := fn(); err != nil {
		report(err)
	}
}
