package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lcalzada-xor/airwarden/internal/core/domain"
)

func TestProviders(t *testing.T) {
	loc, ok := NewStaticProvider(40.4, -3.7).GetLocation()
	assert.True(t, ok)
	assert.Equal(t, "static", loc.Source)
	assert.Equal(t, -3.7, loc.Longitude)

	_, ok = NoProvider{}.GetLocation()
	assert.False(t, ok)

	var last LastKnownProvider
	_, ok = last.GetLocation()
	assert.False(t, ok)
	last.Update(domain.Location{Latitude: 1, Longitude: 2, Source: "gps"})
	loc, ok = last.GetLocation()
	assert.True(t, ok)
	assert.Equal(t, "gps", loc.Source)
}
