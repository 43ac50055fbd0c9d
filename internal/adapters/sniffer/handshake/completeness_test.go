package handshake

import (
	"bytes"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testBSSID = "AA:BB:CC:DD:EE:FF"
	stationA  = "11:22:33:44:55:66"
	stationB  = "11:22:33:44:55:77"
)

var llcSNAPEAPOL = []byte{0xAA, 0xAA, 0x03, 0x00, 0x00, 0x00, 0x88, 0x8E}

func mustMAC(t *testing.T, s string) net.HardwareAddr {
	t.Helper()
	mac, err := net.ParseMAC(s)
	require.NoError(t, err)
	return mac
}

// dataFrame builds an 802.11 data frame without FCS, as airodump-ng writes it.
func dataFrame(t *testing.T, fromAP bool, bssid, station string, eapol []byte) []byte {
	t.Helper()
	ap, sta := mustMAC(t, bssid), mustMAC(t, station)

	frame := []byte{0x08, 0x01, 0x00, 0x00}
	addrs := [][]byte{ap, sta, ap}
	if fromAP {
		frame[1] = 0x02
		addrs = [][]byte{sta, ap, ap}
	}
	for _, a := range addrs {
		frame = append(frame, a...)
	}
	frame = append(frame, 0x00, 0x00)
	frame = append(frame, llcSNAPEAPOL...)
	return append(frame, eapol...)
}

func m1(t *testing.T, station string) []byte {
	return dataFrame(t, true, testBSSID, station, eapolKeyBody(infoM1, 1, bytes.Repeat([]byte{0xAA}, 32), nil, nil))
}

func m2(t *testing.T, station string, mic []byte) []byte {
	return dataFrame(t, false, testBSSID, station, eapolKeyBody(infoM2, 1, bytes.Repeat([]byte{0xBB}, 32), mic, rsnIE))
}

func m3(t *testing.T, station string) []byte {
	return dataFrame(t, true, testBSSID, station, eapolKeyBody(infoM3, 2, bytes.Repeat([]byte{0xAA}, 32), testMIC, rsnIE))
}

func m4(t *testing.T, station string) []byte {
	return dataFrame(t, false, testBSSID, station, eapolKeyBody(infoM4, 2, nil, testMIC, nil))
}

func writePcap(t *testing.T, frames ...[]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture-01.cap")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeIEEE802_11))
	ts := time.Unix(1700000000, 0)
	for i, data := range frames {
		ci := gopacket.CaptureInfo{Timestamp: ts.Add(time.Duration(i) * time.Millisecond), CaptureLength: len(data), Length: len(data)}
		require.NoError(t, w.WritePacket(ci, data))
	}
	return path
}

func TestAnalyze_Completeness(t *testing.T) {
	tests := []struct {
		name     string
		frames   func(t *testing.T) [][]byte
		score    int
		messages []int
		complete bool
	}{
		{
			name:     "M1 and M2",
			frames:   func(t *testing.T) [][]byte { return [][]byte{m1(t, stationA), m2(t, stationA, testMIC)} },
			score:    60,
			messages: []int{1, 2},
			complete: true,
		},
		{
			name:     "M1 only",
			frames:   func(t *testing.T) [][]byte { return [][]byte{m1(t, stationA)} },
			score:    30,
			messages: []int{1},
		},
		{
			name: "full handshake",
			frames: func(t *testing.T) [][]byte {
				return [][]byte{m1(t, stationA), m2(t, stationA, testMIC), m3(t, stationA), m4(t, stationA)}
			},
			score:    100,
			messages: []int{1, 2, 3, 4},
			complete: true,
		},
		{
			name:     "zeroed MIC is ignored",
			frames:   func(t *testing.T) [][]byte { return [][]byte{m1(t, stationA), m2(t, stationA, nil)} },
			score:    30,
			messages: []int{1},
		},
		{
			name: "best station wins",
			frames: func(t *testing.T) [][]byte {
				return [][]byte{m1(t, stationA), m3(t, stationB), m2(t, stationB, testMIC)}
			},
			score:    50,
			messages: []int{2, 3},
		},
	}

	a := NewAnalyzer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writePcap(t, tt.frames(t)...)
			score, messages, err := a.Analyze(path, testBSSID)
			require.NoError(t, err)
			assert.Equal(t, tt.score, score)
			assert.Equal(t, tt.messages, messages)
			assert.Equal(t, tt.complete, Complete(score))
		})
	}
}

func TestAnalyze_FiltersBSSID(t *testing.T) {
	path := writePcap(t, m1(t, stationA), m2(t, stationA, testMIC))

	score, messages, err := NewAnalyzer().Analyze(path, "00:00:00:00:00:01")
	require.NoError(t, err)
	assert.Zero(t, score)
	assert.Empty(t, messages)

	score, _, err = NewAnalyzer().Analyze(path, "aa:bb:cc:dd:ee:ff")
	require.NoError(t, err)
	assert.Equal(t, 60, score)

	score, _, err = NewAnalyzer().Analyze(path, "")
	require.NoError(t, err)
	assert.Equal(t, 60, score)
}

func TestAnalyze_TruncatedCapture(t *testing.T) {
	path := writePcap(t, m1(t, stationA), m2(t, stationA, testMIC), m3(t, stationA))
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, info.Size()-10))

	score, messages, err := NewAnalyzer().Analyze(path, testBSSID)
	require.NoError(t, err)
	assert.Equal(t, 60, score)
	assert.Equal(t, []int{1, 2}, messages)
}

func TestAnalyze_Pcapng(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.pcapng")
	f, err := os.Create(path)
	require.NoError(t, err)

	w, err := pcapgo.NewNgWriter(f, layers.LinkTypeIEEE802_11)
	require.NoError(t, err)
	for _, data := range [][]byte{m1(t, stationA), m2(t, stationA, testMIC)} {
		ci := gopacket.CaptureInfo{Timestamp: time.Unix(1700000000, 0), CaptureLength: len(data), Length: len(data)}
		require.NoError(t, w.WritePacket(ci, data))
	}
	require.NoError(t, w.Flush())
	require.NoError(t, f.Close())

	score, _, err := NewAnalyzer().Analyze(path, testBSSID)
	require.NoError(t, err)
	assert.Equal(t, 60, score)
}

func TestAnalyze_MissingFile(t *testing.T) {
	_, _, err := NewAnalyzer().Analyze(filepath.Join(t.TempDir(), "nope.cap"), testBSSID)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
