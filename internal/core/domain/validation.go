package domain

import (
	"regexp"
	"strings"
)

// Validation Helpers

var (
	macRegex       = regexp.MustCompile(`^([0-9A-Fa-f]{2}:){5}[0-9A-Fa-f]{2}$`)
	interfaceRegex = regexp.MustCompile(`^[a-zA-Z0-9\-_]+$`)
)

// IsValidMAC checks if the string is a colon separated six-octet MAC address
func IsValidMAC(mac string) bool {
	return macRegex.MatchString(mac)
}

// NormalizeMAC validates and upper-cases a MAC address.
func NormalizeMAC(mac string) (string, error) {
	mac = strings.TrimSpace(mac)
	if !IsValidMAC(mac) {
		return "", ErrInvalidMAC
	}
	return strings.ToUpper(mac), nil
}

// IsValidInterface checks if the string is a safe interface name (alphanumeric + - _)
func IsValidInterface(iface string) bool {
	// IFNAMSIZ is 16 including the terminator
	if len(iface) == 0 || len(iface) > 15 {
		return false
	}
	return interfaceRegex.MatchString(iface)
}
