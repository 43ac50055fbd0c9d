package handshake

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// CompleteScore is the minimum score of a crackable capture (M1+M2).
const CompleteScore = 60

var messageWeights = [5]int{0, 30, 30, 20, 20}

var pcapngMagic = []byte{0x0a, 0x0d, 0x0d, 0x0a}

// packetSource is satisfied by both pcapgo readers.
type packetSource interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// Analyzer scores EAPOL 4-way handshake coverage in capture files.
type Analyzer struct{}

// NewAnalyzer creates a new analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Complete reports whether a score is enough to attempt cracking.
func Complete(score int) bool {
	return score >= CompleteScore
}

// Analyze reads a pcap or pcapng file and returns the best per-station
// score for bssid along with the message numbers seen for that station.
// An empty bssid accepts every network in the file.
func (a *Analyzer) Analyze(path, bssid string) (int, []int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, nil, err
	}
	defer f.Close()

	src, err := openSource(bufio.NewReader(f))
	if err != nil {
		return 0, nil, fmt.Errorf("open capture %s: %w", path, err)
	}

	stations := make(map[string]*[5]bool)
	for {
		data, ci, err := src.ReadPacketData()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// airodump killed mid-write leaves a truncated last record
			slog.Debug("Stopped reading capture", "file", path, "error", err)
			break
		}
		if src.LinkType() == layers.LinkTypeIEEE802_11 {
			// gopacket's Dot11 decoder always strips a trailing FCS
			data = append(data[:len(data):len(data)], 0, 0, 0, 0)
		}

		packet := gopacket.NewPacket(data, src.LinkType(), gopacket.DecodeOptions{Lazy: true, NoCopy: true})
		packet.Metadata().CaptureInfo = ci
		ap, sta, n := classify(packet)
		if n == 0 || (bssid != "" && !strings.EqualFold(ap, bssid)) {
			continue
		}
		seen, ok := stations[sta]
		if !ok {
			seen = new([5]bool)
			stations[sta] = seen
		}
		seen[n] = true
	}

	best, bestMsgs := 0, []int(nil)
	keys := make([]string, 0, len(stations))
	for k := range stations {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, sta := range keys {
		score, msgs := 0, []int{}
		for n := 1; n <= 4; n++ {
			if stations[sta][n] {
				score += messageWeights[n]
				msgs = append(msgs, n)
			}
		}
		if score > best {
			best, bestMsgs = score, msgs
		}
	}
	return best, bestMsgs, nil
}

func openSource(r *bufio.Reader) (packetSource, error) {
	magic, err := r.Peek(4)
	if err != nil {
		return nil, err
	}
	if bytes.Equal(magic, pcapngMagic) {
		ng, err := pcapgo.NewNgReader(r, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, err
		}
		return ng, nil
	}
	rd, err := pcapgo.NewReader(r)
	if err != nil {
		return nil, err
	}
	return rd, nil
}

// classify returns the AP, the station and the handshake message number of
// an EAPOL-Key packet, or 0 when the packet is not a usable handshake frame.
func classify(packet gopacket.Packet) (string, string, int) {
	layer := packet.Layer(layers.LayerTypeDot11)
	if layer == nil {
		return "", "", 0
	}
	dot11, ok := layer.(*layers.Dot11)
	if !ok {
		return "", "", 0
	}
	ap, sta, ok := frameAddresses(dot11)
	if !ok {
		return "", "", 0
	}

	frame, err := ParseEAPOLKey(packet)
	if err != nil {
		return "", "", 0
	}
	n := frame.MessageNumber()
	if n > 1 && frame.IsMICZero() {
		return "", "", 0
	}
	return strings.ToUpper(ap), strings.ToUpper(sta), n
}

// frameAddresses resolves AP and station from the DS bits. WDS frames are
// skipped.
func frameAddresses(dot11 *layers.Dot11) (string, string, bool) {
	toDS, fromDS := dot11.Flags.ToDS(), dot11.Flags.FromDS()
	switch {
	case !toDS && !fromDS:
		ap := dot11.Address3.String()
		if dot11.Address2.String() == ap {
			return ap, dot11.Address1.String(), true
		}
		return ap, dot11.Address2.String(), true
	case fromDS && !toDS:
		return dot11.Address2.String(), dot11.Address1.String(), true
	case toDS && !fromDS:
		return dot11.Address1.String(), dot11.Address2.String(), true
	default:
		return "", "", false
	}
}
