package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseWashLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		ok   bool
		want string
		lock bool
	}{
		{"header", "BSSID               Ch  dBm  WPS  Lck  Vendor    ESSID", false, "", false},
		{"separator", "--------------------------------------------------------------------------------", false, "", false},
		{"blank", "   ", false, "", false},
		{"short", "AA:BB:CC:DD:EE:01  6  -45  2.0", false, "", false},
		{"bad mac", "AA:BB:CC:DD:EE  6  -45  2.0  No", false, "", false},
		{"unlocked", "aa:bb:cc:dd:ee:01    6  -45  2.0  No   RalinkTe  Home Net", true, "2.0", false},
		{"locked", "AA:BB:CC:DD:EE:02   11  -70  1.0  Yes  Broadcom  Office", true, "1.0", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, ok := ParseWashLine(tt.line)
			assert.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.want, info.Version)
			assert.Equal(t, tt.lock, info.Locked)
		})
	}

	info, _ := ParseWashLine("aa:bb:cc:dd:ee:01    6  -45  2.0  No   RalinkTe  Home Net")
	assert.Equal(t, "AA:BB:CC:DD:EE:01", info.BSSID)
	assert.Equal(t, 6, info.Channel)
	assert.Equal(t, -45, info.Power)
	assert.Equal(t, "RalinkTe", info.Vendor)
	assert.Equal(t, "Home Net", info.ESSID)
}
