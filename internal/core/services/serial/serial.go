package serial

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Charset excludes characters that are easy to misread (0, O, 1, I).
const Charset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// MinLength is the shortest serial ever produced.
const MinLength = 16

// Common prefixes and lengths.
const (
	PrefixAccessPoint = "AP"
	PrefixClient      = "CL"
	PrefixHandshake   = "HS"
	PrefixQueue       = "AQ"
	PrefixSession     = "SESS"
	PrefixObservation = "OBS"
)

// Generator builds serials of the form PREFIX + base36 timestamp + random.
type Generator struct {
	now func() time.Time
}

// NewGenerator creates a generator using the wall clock.
func NewGenerator() *Generator {
	return &Generator{now: time.Now}
}

// NewID implements ports.IDGenerator.
func (g *Generator) NewID(prefix string, length int) string {
	if length < MinLength {
		length = MinLength
	}
	prefix = strings.ToUpper(prefix)

	ts := strings.ToUpper(strconv.FormatInt(g.now().Unix(), 36))
	if len(ts) > 8 {
		ts = ts[len(ts)-8:]
	}
	ts = strings.Repeat("0", 8-len(ts)) + ts

	randomLen := length - len(prefix) - len(ts)
	if randomLen < 8 {
		randomLen = 8
	}
	return prefix + ts + randomChars(randomLen)
}

// randomChars draws from uuid v4 entropy; 256 is a multiple of 32 so the
// modulo keeps the distribution uniform.
func randomChars(n int) string {
	var b strings.Builder
	b.Grow(n)
	for b.Len() < n {
		id := uuid.New()
		for _, x := range id[:] {
			if b.Len() == n {
				break
			}
			b.WriteByte(Charset[int(x)%len(Charset)])
		}
	}
	return b.String()
}

// ForAccessPoint returns an 18 character AP serial.
func (g *Generator) ForAccessPoint() string { return g.NewID(PrefixAccessPoint, 18) }

// ForClient returns an 18 character client serial.
func (g *Generator) ForClient() string { return g.NewID(PrefixClient, 18) }
