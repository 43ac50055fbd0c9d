package geo

import (
	"sync"

	"github.com/lcalzada-xor/airwarden/internal/core/domain"
)

// StaticProvider reports a fixed, operator-supplied position.
type StaticProvider struct {
	Lat float64
	Lng float64
}

// NewStaticProvider creates a provider that always returns the same location.
func NewStaticProvider(lat, lng float64) *StaticProvider {
	return &StaticProvider{Lat: lat, Lng: lng}
}

// GetLocation returns the fixed location.
func (s *StaticProvider) GetLocation() (domain.Location, bool) {
	return domain.Location{Latitude: s.Lat, Longitude: s.Lng, Source: "static"}, true
}

// NoProvider never has a fix.
type NoProvider struct{}

func (NoProvider) GetLocation() (domain.Location, bool) {
	return domain.Location{}, false
}

// LastKnownProvider holds whatever fix was pushed to it most recently, for
// feeds that deliver positions asynchronously.
type LastKnownProvider struct {
	mu  sync.RWMutex
	loc domain.Location
	ok  bool
}

// Update records a new fix.
func (p *LastKnownProvider) Update(loc domain.Location) {
	p.mu.Lock()
	p.loc, p.ok = loc, true
	p.mu.Unlock()
}

func (p *LastKnownProvider) GetLocation() (domain.Location, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.loc, p.ok
}
