package serial

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewID_Format(t *testing.T) {
	g := &Generator{now: func() time.Time { return time.Unix(1700000000, 0) }}

	id := g.NewID("hs", 20)
	assert.Len(t, id, 20)
	assert.True(t, strings.HasPrefix(id, "HS"))
	// 1700000000 in base36
	assert.Equal(t, "00S44WE8", id[2:10])
	for _, c := range id[10:] {
		assert.Contains(t, Charset, string(c))
	}
}

func TestNewID_MinimumLength(t *testing.T) {
	g := NewGenerator()
	assert.Len(t, g.NewID("", 4), MinLength)
	assert.Len(t, g.ForAccessPoint(), 18)
	assert.Len(t, g.ForClient(), 18)

	// the random part never drops below 8 characters
	long := g.NewID("VERYLONGPREFIX", 16)
	assert.Len(t, long, len("VERYLONGPREFIX")+8+8)
}

func TestNewID_Unique(t *testing.T) {
	g := NewGenerator()
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := g.NewID(PrefixQueue, 20)
		assert.False(t, seen[id], "duplicate serial %s", id)
		seen[id] = true
	}
}
