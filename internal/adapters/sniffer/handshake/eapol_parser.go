package handshake

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Key Information bits (IEEE 802.11i)
const (
	KeyInfoKeyDescriptorVersionMask = 0x0007
	KeyInfoKeyType                  = 1 << 3 // 1=Pairwise, 0=Group
	KeyInfoInstall                  = 1 << 6
	KeyInfoKeyAck                   = 1 << 7
	KeyInfoKeyMIC                   = 1 << 8
	KeyInfoSecure                   = 1 << 9
)

// eapolKeyHeaderLen is the fixed part of an EAPOL-Key body up to and
// including the key data length.
const eapolKeyHeaderLen = 95

var errNotEAPOL = errors.New("not an EAPOL packet")

// EAPOLKeyFrame holds the fields of an EAPOL-Key frame the analyzer needs.
type EAPOLKeyFrame struct {
	DescriptorType uint8
	KeyInformation uint16
	ReplayCounter  uint64
	Nonce          []byte
	MIC            []byte
	KeyDataLength  uint16

	HasMIC     bool
	HasAck     bool
	IsPairwise bool
	IsSecure   bool
	Version    uint8
}

// ParseEAPOLKey extracts the EAPOL-Key body from a decoded packet.
func ParseEAPOLKey(packet gopacket.Packet) (*EAPOLKeyFrame, error) {
	layer := packet.Layer(layers.LayerTypeEAPOL)
	if layer == nil {
		return nil, errNotEAPOL
	}
	eapol, ok := layer.(*layers.EAPOL)
	if !ok {
		return nil, errNotEAPOL
	}
	if eapol.Type != layers.EAPOLTypeKey {
		return nil, fmt.Errorf("not an EAPOL Key frame (type %d)", eapol.Type)
	}

	body := eapol.LayerPayload()
	if len(body) < eapolKeyHeaderLen {
		return nil, fmt.Errorf("payload too short for EAPOL Key: %d bytes", len(body))
	}

	info := binary.BigEndian.Uint16(body[1:3])
	return &EAPOLKeyFrame{
		DescriptorType: body[0],
		KeyInformation: info,
		ReplayCounter:  binary.BigEndian.Uint64(body[5:13]),
		Nonce:          body[13:45],
		MIC:            body[77:93],
		KeyDataLength:  binary.BigEndian.Uint16(body[93:95]),
		HasMIC:         info&KeyInfoKeyMIC != 0,
		HasAck:         info&KeyInfoKeyAck != 0,
		IsPairwise:     info&KeyInfoKeyType != 0,
		IsSecure:       info&KeyInfoSecure != 0,
		Version:        uint8(info & KeyInfoKeyDescriptorVersionMask),
	}, nil
}

// MessageNumber returns 1-4 for 4-way handshake messages and 0 for anything
// else (group key handshake, malformed flag combinations).
func (f *EAPOLKeyFrame) MessageNumber() int {
	switch {
	case !f.IsPairwise:
		return 0
	case !f.HasMIC && f.HasAck:
		return 1
	case !f.HasMIC:
		return 0
	case f.HasAck:
		return 3
	case f.KeyDataLength > 0:
		// M2 carries the station RSN IE; some stations also set Secure on it
		return 2
	default:
		// M4 normally has Secure set; some APs leave it clear
		return 4
	}
}

// IsMICZero reports a missing or all-zero MIC.
func (f *EAPOLKeyFrame) IsMICZero() bool {
	if !f.HasMIC || len(f.MIC) == 0 {
		return true
	}
	for _, b := range f.MIC {
		if b != 0 {
			return false
		}
	}
	return true
}
