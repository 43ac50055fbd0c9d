package handshake

import (
	"encoding/binary"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// eapolKeyBody builds an EAPOL-Key frame: header, fixed fields and key data.
func eapolKeyBody(keyInfo uint16, replayCounter uint64, nonce, mic, data []byte) []byte {
	payload := make([]byte, eapolKeyHeaderLen+len(data))
	payload[0] = 2 // RSN key descriptor
	binary.BigEndian.PutUint16(payload[1:3], keyInfo)
	binary.BigEndian.PutUint16(payload[3:5], 16)
	binary.BigEndian.PutUint64(payload[5:13], replayCounter)
	copy(payload[13:45], nonce)
	copy(payload[77:93], mic)
	binary.BigEndian.PutUint16(payload[93:95], uint16(len(data)))
	copy(payload[95:], data)

	header := []byte{1, 3, 0, 0}
	binary.BigEndian.PutUint16(header[2:4], uint16(len(payload)))
	return append(header, payload...)
}

func eapolPacket(keyInfo uint16, replayCounter uint64, nonce, mic, data []byte) gopacket.Packet {
	return gopacket.NewPacket(eapolKeyBody(keyInfo, replayCounter, nonce, mic, data), layers.LayerTypeEAPOL, gopacket.Default)
}

const (
	infoM1 = KeyInfoKeyType | KeyInfoKeyAck | 2
	infoM2 = KeyInfoKeyType | KeyInfoKeyMIC | 2
	infoM3 = KeyInfoKeyType | KeyInfoKeyMIC | KeyInfoKeyAck | KeyInfoInstall | KeyInfoSecure | 2
	infoM4 = KeyInfoKeyType | KeyInfoKeyMIC | KeyInfoSecure | 2
)

var (
	testMIC = []byte{0xCC, 0x01}
	rsnIE   = []byte{0x30, 0x14, 0x01, 0x00}
)

func TestParseEAPOLKey_M1(t *testing.T) {
	nonce := make([]byte, 32)
	nonce[0] = 0xAA

	frame, err := ParseEAPOLKey(eapolPacket(infoM1, 1, nonce, nil, nil))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), frame.ReplayCounter)
	assert.Equal(t, nonce, frame.Nonce)
	assert.True(t, frame.IsPairwise)
	assert.False(t, frame.HasMIC)
	assert.Equal(t, uint8(2), frame.Version)
	assert.Equal(t, 1, frame.MessageNumber())
}

func TestMessageNumber(t *testing.T) {
	tests := []struct {
		name string
		info uint16
		mic  []byte
		data []byte
		want int
	}{
		{"M2", infoM2, testMIC, rsnIE, 2},
		{"M2 with secure bit", infoM2 | KeyInfoSecure, testMIC, rsnIE, 2},
		{"M3", infoM3, testMIC, rsnIE, 3},
		{"M4", infoM4, testMIC, nil, 4},
		{"M4 without secure bit", infoM2, testMIC, nil, 4},
		{"group key", KeyInfoKeyMIC | KeyInfoKeyAck | 2, testMIC, nil, 0},
		{"no ack no mic", KeyInfoKeyType | 2, nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := ParseEAPOLKey(eapolPacket(tt.info, 2, nil, tt.mic, tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.want, frame.MessageNumber())
		})
	}
}

func TestIsMICZero(t *testing.T) {
	frame, err := ParseEAPOLKey(eapolPacket(infoM2, 1, nil, nil, rsnIE))
	require.NoError(t, err)
	assert.True(t, frame.IsMICZero())

	frame, err = ParseEAPOLKey(eapolPacket(infoM2, 1, nil, testMIC, rsnIE))
	require.NoError(t, err)
	assert.False(t, frame.IsMICZero())
}

func TestParseEAPOLKey_Truncated(t *testing.T) {
	raw := make([]byte, 54)
	raw[0], raw[1] = 1, 3
	pkt := gopacket.NewPacket(raw, layers.LayerTypeEAPOL, gopacket.Default)

	frame, err := ParseEAPOLKey(pkt)
	assert.Error(t, err)
	assert.Nil(t, frame)
	assert.Contains(t, err.Error(), "payload too short")
}

func TestParseEAPOLKey_NotEAPOL(t *testing.T) {
	pkt := gopacket.NewPacket([]byte{0x45, 0x00}, layers.LayerTypeIPv4, gopacket.Default)
	_, err := ParseEAPOLKey(pkt)
	assert.ErrorIs(t, err, errNotEAPOL)
}
