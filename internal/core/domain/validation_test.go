package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidMAC(t *testing.T) {
	tests := []struct {
		mac   string
		valid bool
	}{
		{"AA:BB:CC:DD:EE:FF", true},
		{"aa:bb:cc:dd:ee:ff", true},
		{"00:11:22:33:44:55", true},
		{"AA-BB-CC-DD-EE-FF", false},
		{"invalid", false},
		{"AA:BB:CC:DD:EE", false},
		{"AA:BB:CC:DD:EE:FF:GG", false},
		{"(not associated)", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.valid, IsValidMAC(tt.mac), "IsValidMAC(%q)", tt.mac)
	}
}

func TestNormalizeMAC(t *testing.T) {
	mac, err := NormalizeMAC(" aa:bb:cc:dd:ee:01 ")
	assert.NoError(t, err)
	assert.Equal(t, "AA:BB:CC:DD:EE:01", mac)

	_, err = NormalizeMAC("aa:bb")
	assert.ErrorIs(t, err, ErrInvalidMAC)
}

func TestIsValidInterface(t *testing.T) {
	tests := []struct {
		iface string
		valid bool
	}{
		{"wlan0", true},
		{"wlan0mon", true},
		{"wlp3s0", true},
		{"eth0.100", false},
		{"very_long_interface_name_that_should_fail", false},
		{"; rm -rf /", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.valid, IsValidInterface(tt.iface), "IsValidInterface(%q)", tt.iface)
	}
}
