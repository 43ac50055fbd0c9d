package driver

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// iwInterface is one block of `iw dev` output.
type iwInterface struct {
	Phy   string
	Name  string
	Addr  string
	Type  string
	Index int
}

// parseIWDev reads `iw dev` output:
//
//	phy#0
//		Interface wlan0
//			ifindex 3
//			addr 00:11:22:33:44:55
//			type managed
func parseIWDev(out []byte) []iwInterface {
	var (
		result     []iwInterface
		currentPhy string
		current    *iwInterface
	)

	flush := func() {
		if current != nil {
			result = append(result, *current)
			current = nil
		}
	}

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch {
		case strings.HasPrefix(line, "phy#"):
			flush()
			// "phy#0" -> "phy0"
			currentPhy = strings.Replace(fields[0], "#", "", 1)
		case fields[0] == "Interface" && len(fields) > 1:
			flush()
			current = &iwInterface{Phy: currentPhy, Name: fields[1]}
		case current == nil:
			continue
		case fields[0] == "addr" && len(fields) > 1:
			current.Addr = fields[1]
		case fields[0] == "type" && len(fields) > 1:
			current.Type = fields[1]
		case fields[0] == "ifindex" && len(fields) > 1:
			current.Index, _ = strconv.Atoi(fields[1])
		}
	}
	flush()

	slices.SortFunc(result, func(a, b iwInterface) int {
		return strings.Compare(a.Name, b.Name)
	})
	return result
}

// interfaceType extracts the mode from `iw dev <if> info`.
func interfaceType(out []byte) string {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) > 1 && fields[0] == "type" {
			return fields[1]
		}
	}
	return ""
}

// airmon-ng reports the new interface in several formats depending on version:
//
//	(mac80211 monitor mode vif enabled for [phy0]wlan0 on [phy0]wlan0mon)
//	(monitor mode enabled on mon0)
var airmonEnabledRegex = regexp.MustCompile(`monitor mode (?:vif )?enabled(?: for \[\w+\]\S+)? on (?:\[\w+\])?([A-Za-z0-9_\-]+)`)

// parseAirmonStart returns the monitor interface announced by airmon-ng,
// falling back to the conventional "<if>mon" name.
func parseAirmonStart(out []byte, iface string) string {
	if m := airmonEnabledRegex.FindSubmatch(out); len(m) > 1 {
		return string(m[1])
	}
	return iface + "mon"
}

// Capabilities lists the usable channels of a radio and the bands they cover.
type Capabilities struct {
	Bands    map[string]bool
	Channels []int
}

// PhyCapabilities runs `iw phy <phy> info` and reports the enabled channels.
func (d *Driver) PhyCapabilities(ctx context.Context, phy string) (Capabilities, error) {
	out, err := d.Run(ctx, "iw", "phy", phy, "info")
	if err != nil {
		return Capabilities{}, fmt.Errorf("iw phy %s info: %w", phy, err)
	}
	return parsePhyInfo(out), nil
}

// Example: * 2412 MHz [1] (20.0 dBm)
// Example: * 5180 MHz [36] (22.0 dBm) (disabled)
var channelRegex = regexp.MustCompile(`\[([0-9]+)\]`)

func parsePhyInfo(out []byte) Capabilities {
	caps := Capabilities{Bands: make(map[string]bool)}

	scanner := bufio.NewScanner(bytes.NewReader(out))
	inFrequencies := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "Frequencies:" {
			inFrequencies = true
			continue
		}
		if !inFrequencies {
			continue
		}
		// "Bitrates:" also has "*" entries, so the block ends on the first other line
		if !strings.HasPrefix(line, "*") {
			inFrequencies = false
			continue
		}
		if strings.Contains(line, "(disabled)") {
			continue
		}

		matches := channelRegex.FindStringSubmatch(line)
		if len(matches) < 2 {
			continue
		}
		ch, _ := strconv.Atoi(matches[1])
		caps.Channels = append(caps.Channels, ch)
		switch {
		case ch >= 1 && ch <= 14:
			caps.Bands["2.4ghz"] = true
		case ch >= 36:
			caps.Bands["5ghz"] = true
		}
	}
	return caps
}
