// Package camnet accepts camera-node connections, records their fixed
// poses, and streams their bearing observations into the registry the
// tick loop snapshots.
//
// Wire format (big-endian IEEE-754 doubles throughout):
//
//	registration (once, on connect):  x, y, rotation, fov   (32 bytes)
//	observation  (streamed):          bearing               (8 bytes)
//
// Bearings are camera-relative radians and must lie within ±fov/2.
package camnet

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/sightline-robotics/camtrack/pkg/geo"
)

// RegistrationSize is the fixed length of a registration frame.
const RegistrationSize = 4 * 8

// ObservationSize is the fixed length of one bearing frame.
const ObservationSize = 8

var (
	// ErrBadRegistration marks a malformed or non-finite registration
	// frame. The offending connection is closed without firing events.
	ErrBadRegistration = errors.New("camnet: bad registration")

	// ErrObservationOutOfRange marks a finite bearing outside the
	// camera's field of view. The observation is discarded; the
	// connection survives.
	ErrObservationOutOfRange = errors.New("camnet: observation out of range")

	// ErrBadObservation marks a non-finite bearing, treated as a
	// protocol violation that closes the connection.
	ErrBadObservation = errors.New("camnet: bad observation")
)

// WriteRegistration sends a camera's pose to the server. Used by camera
// nodes and the camsim test client.
func WriteRegistration(w io.Writer, cam geo.PlacedCamera) error {
	buf := make([]byte, RegistrationSize)
	binary.BigEndian.PutUint64(buf[0:], math.Float64bits(cam.Position.X))
	binary.BigEndian.PutUint64(buf[8:], math.Float64bits(cam.Position.Y))
	binary.BigEndian.PutUint64(buf[16:], math.Float64bits(cam.Position.Rotation))
	binary.BigEndian.PutUint64(buf[24:], math.Float64bits(cam.FOV))
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write registration: %w", err)
	}
	return nil
}

// ReadRegistration reads and validates a registration frame.
func ReadRegistration(r io.Reader) (geo.PlacedCamera, error) {
	buf := make([]byte, RegistrationSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return geo.PlacedCamera{}, fmt.Errorf("read registration: %w", err)
	}

	cam := geo.PlacedCamera{
		Position: geo.Position{
			X:        math.Float64frombits(binary.BigEndian.Uint64(buf[0:])),
			Y:        math.Float64frombits(binary.BigEndian.Uint64(buf[8:])),
			Rotation: math.Float64frombits(binary.BigEndian.Uint64(buf[16:])),
		},
		FOV: math.Float64frombits(binary.BigEndian.Uint64(buf[24:])),
	}
	if !cam.Valid() {
		return geo.PlacedCamera{}, ErrBadRegistration
	}
	return cam, nil
}

// WriteObservation sends one bearing frame.
func WriteObservation(w io.Writer, bearing float64) error {
	buf := make([]byte, ObservationSize)
	binary.BigEndian.PutUint64(buf, math.Float64bits(bearing))
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write observation: %w", err)
	}
	return nil
}

// ReadObservation reads one bearing frame. Non-finite values are a
// protocol violation.
func ReadObservation(r io.Reader) (float64, error) {
	buf := make([]byte, ObservationSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, fmt.Errorf("read observation: %w", err)
	}
	bearing := math.Float64frombits(binary.BigEndian.Uint64(buf))
	if math.IsNaN(bearing) || math.IsInf(bearing, 0) {
		return 0, ErrBadObservation
	}
	return bearing, nil
}
