package camnet

import (
	"errors"
	"sort"
	"sync"

	"github.com/sightline-robotics/camtrack/pkg/geo"
)

// ErrDuplicateAddress rejects a second registration for an address that
// is already connected.
var ErrDuplicateAddress = errors.New("camnet: address already registered")

// ErrUnknownCamera marks an observation for an address that is not (or
// no longer) registered.
var ErrUnknownCamera = errors.New("camnet: unknown camera")

// Sighting is one registry entry with a recorded bearing, ready for
// triangulation.
type Sighting struct {
	Addr    string
	Camera  geo.PlacedCamera
	Bearing float64
}

type cameraState struct {
	camera     geo.PlacedCamera
	bearing    float64
	hasBearing bool
}

// Registry is the live set of connected cameras, keyed by remote
// address. Mutation is serialized; Snapshot gives readers a consistent
// copy. Locks are held only for the single map operation, never across
// any I/O.
type Registry struct {
	mu   sync.RWMutex
	cams map[string]*cameraState
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{cams: make(map[string]*cameraState)}
}

// Add registers a camera pose under addr.
func (r *Registry) Add(addr string, cam geo.PlacedCamera) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.cams[addr]; exists {
		return ErrDuplicateAddress
	}
	r.cams[addr] = &cameraState{camera: cam}
	return nil
}

// Remove deletes addr and returns its last known pose.
func (r *Registry) Remove(addr string) (geo.PlacedCamera, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.cams[addr]
	if !ok {
		return geo.PlacedCamera{}, false
	}
	delete(r.cams, addr)
	return state.camera, true
}

// Observe records the latest bearing for addr, overwriting any previous
// one. Only the most recent bearing per camera matters for
// triangulation; no history is kept here.
func (r *Registry) Observe(addr string, bearing float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.cams[addr]
	if !ok {
		return ErrUnknownCamera
	}
	if !state.camera.InFOV(bearing) {
		return ErrObservationOutOfRange
	}
	state.bearing = bearing
	state.hasBearing = true
	return nil
}

// Snapshot returns every camera that has reported at least one bearing,
// sorted by address so downstream computation is deterministic.
func (r *Registry) Snapshot() []Sighting {
	r.mu.RLock()
	sightings := make([]Sighting, 0, len(r.cams))
	for addr, state := range r.cams {
		if !state.hasBearing {
			continue
		}
		sightings = append(sightings, Sighting{
			Addr:    addr,
			Camera:  state.camera,
			Bearing: state.bearing,
		})
	}
	r.mu.RUnlock()

	sort.Slice(sightings, func(i, j int) bool { return sightings[i].Addr < sightings[j].Addr })
	return sightings
}

// Len returns the number of connected cameras.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cams)
}
