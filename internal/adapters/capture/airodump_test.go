package capture

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/airwarden/internal/core/domain"
)

const sampleCSV = "\r\n" +
	"BSSID, First time seen, Last time seen, channel, Speed, Privacy, Cipher, Authentication, Power, # beacons, # IV, LAN IP, ID-length, ESSID, Key\r\n" +
	"AA:BB:CC:DD:EE:01, 2024-05-01 10:00:00, 2024-05-01 10:05:00,  6,  54, WPA2, CCMP, PSK, -45,      120,        0,   0.  0.  0.  0,   8, HomeWiFi, \r\n" +
	"aa:bb:cc:dd:ee:02, 2024-05-01 10:00:01, 2024-05-01 10:05:01, 11, 130, WPA2 WPA, CCMP TKIP, PSK, -70,       40,        3,   0.  0.  0.  0,  10, Cafe, Guest, \r\n" +
	"AA:BB:CC:DD:EE:03, 2024-05-01 10:00:02, 2024-05-01 10:05:02,  1,  54, OPN, , , -80,       10,        0,   0.  0.  0.  0,   0, , \r\n" +
	"not-a-mac, 2024-05-01 10:00:02, 2024-05-01 10:05:02,  1,  54, OPN, , , -80,       10,        0,   0.  0.  0.  0,   0, x, \r\n" +
	"AA:BB:CC:DD:EE:04, 2024-05-01 10:00:02, short\r\n" +
	"\r\n" +
	"Station MAC, First time seen, Last time seen, Power, # packets, BSSID, Probed ESSIDs\r\n" +
	"11:22:33:44:55:66, 2024-05-01 10:01:00, 2024-05-01 10:04:00, -50,       25, AA:BB:CC:DD:EE:01, HomeWiFi,Office\r\n" +
	"11:22:33:44:55:77, 2024-05-01 10:01:00, 2024-05-01 10:04:00, -60,        3, (not associated) ,\r\n" +
	"11:22:33:44:55:88, 2024-05-01 10:01:00\r\n" +
	"\r\n"

func TestParse_Sections(t *testing.T) {
	snap, err := Parse(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	require.Len(t, snap.APs, 3)
	require.Len(t, snap.Clients, 2)
	require.Len(t, snap.Malformed, 3)

	ap := snap.APs[0]
	assert.Equal(t, "AA:BB:CC:DD:EE:01", ap.BSSID)
	assert.Equal(t, 6, ap.Channel)
	assert.Equal(t, 54, ap.Speed)
	assert.Equal(t, "WPA2", ap.Privacy)
	assert.Equal(t, "CCMP", ap.Cipher)
	assert.Equal(t, "PSK", ap.Authentication)
	assert.Equal(t, -45, ap.Power)
	assert.Equal(t, 120, ap.Beacons)
	assert.Equal(t, "0.0.0.0", ap.LANIP)
	assert.Equal(t, "HomeWiFi", ap.ESSID)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local), ap.FirstSeen)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 5, 0, 0, time.Local), ap.LastSeen)

	// lower-case keys are normalized; commas inside the ESSID survive
	assert.Equal(t, "AA:BB:CC:DD:EE:02", snap.APs[1].BSSID)
	assert.Equal(t, "Cafe,Guest", snap.APs[1].ESSID)
	assert.Equal(t, "WPA2 WPA", snap.APs[1].Privacy)

	assert.Equal(t, "", snap.APs[2].ESSID, "hidden network")

	c := snap.Clients[0]
	assert.Equal(t, "11:22:33:44:55:66", c.MAC)
	assert.Equal(t, "AA:BB:CC:DD:EE:01", c.BSSID)
	assert.Equal(t, 25, c.Packets)
	assert.Equal(t, []string{"HomeWiFi", "Office"}, c.Probes)

	assert.Equal(t, "", snap.Clients[1].BSSID)
	assert.Empty(t, snap.Clients[1].Probes)
}

func TestParse_MalformedRows(t *testing.T) {
	snap, err := Parse(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	sections := []string{}
	for _, m := range snap.Malformed {
		assert.True(t, errors.Is(m, domain.ErrMalformedRecord))
		sections = append(sections, m.Section)
	}
	assert.Equal(t, []string{SectionAP, SectionAP, SectionClient}, sections)
	assert.Equal(t, 6, snap.Malformed[0].Line)
}

func TestParse_EmptyAndHeaderOnly(t *testing.T) {
	snap, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, snap.APs)

	headersOnly := "\nBSSID, First time seen, Last time seen, channel\n\nStation MAC, First time seen\n\n"
	snap, err = Parse(strings.NewReader(headersOnly))
	require.NoError(t, err)
	assert.Empty(t, snap.APs)
	assert.Empty(t, snap.Clients)
	assert.Empty(t, snap.Malformed)
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan-01.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))

	snap, err := ParseFile(path)
	require.NoError(t, err)
	assert.Len(t, snap.APs, 3)

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestIsHiddenSSID(t *testing.T) {
	assert.True(t, isHiddenSSID(""))
	assert.True(t, isHiddenSSID("\x00\x00\x00"))
	assert.True(t, isHiddenSSID("<length:  0>"))
	assert.False(t, isHiddenSSID("HomeWiFi"))
}
