package fingerprint

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Prefix is the three-octet organisationally unique part of a MAC address,
// always rendered as "XX:XX:XX".
type Prefix struct {
	octets [3]byte
}

// ParsePrefix accepts a full MAC or just its first three octets, with ':' '-' or
// '.' separators or none at all.
func ParsePrefix(s string) (Prefix, error) {
	clean := strings.NewReplacer(":", "", "-", "", ".", "").Replace(strings.TrimSpace(s))
	if len(clean) < 6 {
		return Prefix{}, fmt.Errorf("%w: %q", ErrInvalidPrefix, s)
	}
	raw, err := hex.DecodeString(clean[:6])
	if err != nil {
		return Prefix{}, fmt.Errorf("%w: %q", ErrInvalidPrefix, s)
	}
	var p Prefix
	copy(p.octets[:], raw)
	return p, nil
}

// String returns "XX:XX:XX".
func (p Prefix) String() string {
	return fmt.Sprintf("%02X:%02X:%02X", p.octets[0], p.octets[1], p.octets[2])
}

// Randomized reports whether the locally administered bit is set, which is what
// phones use for privacy MACs. Such prefixes never resolve to a vendor.
func (p Prefix) Randomized() bool {
	return p.octets[0]&0x02 != 0
}

// Multicast reports whether the group bit is set.
func (p Prefix) Multicast() bool {
	return p.octets[0]&0x01 != 0
}
