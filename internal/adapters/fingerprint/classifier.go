package fingerprint

import (
	"fmt"
	"strings"
)

// Classification is a best-guess device type with a 0-100 confidence.
type Classification struct {
	DeviceType string
	Confidence int
}

type vendorRule struct {
	match      string
	deviceType string
	confidence int
}

// apRules are checked in order against the vendor name.
var apRules = []vendorRule{
	{"Apple", "Apple Airport/Router", 75},
	{"Google", "Google Nest WiFi/Router", 80},
	{"Nest", "Google Nest WiFi/Router", 80},
	{"Ubiquiti", "Ubiquiti UniFi AP", 90},
	{"TP-Link", "TP-Link Router/AP", 85},
	{"Netgear", "Netgear Router/AP", 85},
	{"Linksys", "Linksys Router", 85},
	{"Asus", "Asus Router", 85},
	{"D-Link", "D-Link Router", 85},
}

type probeRule struct {
	needles    []string
	deviceType string
	confidence int
}

// genericProbeRules apply to clients whose vendor had no dedicated rule.
var genericProbeRules = []probeRule{
	{[]string{"printer", "hp", "epson", "canon"}, "Network Printer", 70},
	{[]string{"camera", "cam"}, "Security Camera", 65},
	{[]string{"tv", "roku", "chromecast"}, "Smart TV/Streaming Device", 70},
	{[]string{"thermostat", "nest", "ecobee"}, "Smart Thermostat", 70},
	{[]string{"xbox", "playstation", "ps4", "ps5"}, "Gaming Console", 75},
	{[]string{"nintendo", "switch"}, "Nintendo Switch", 80},
}

var (
	appleProbeRules = []probeRule{
		{[]string{"iphone"}, "Apple iPhone", 85},
		{[]string{"ipad"}, "Apple iPad", 85},
		{[]string{"macbook", "mac"}, "Apple MacBook/iMac", 80},
		{[]string{"watch"}, "Apple Watch", 75},
	}
	googleProbeRules = []probeRule{
		{[]string{"android", "pixel"}, "Google Pixel Phone", 80},
	}
	samsungProbeRules = []probeRule{
		{[]string{"galaxy", "samsung"}, "Samsung Galaxy Phone/Tablet", 80},
		{[]string{"tv", "smart"}, "Samsung Smart TV", 75},
	}
)

// ClassifyAP guesses the kind of access point from its vendor.
func ClassifyAP(vendor string) Classification {
	for _, r := range apRules {
		if strings.Contains(vendor, r.match) {
			return Classification{r.deviceType, r.confidence}
		}
	}
	if known(vendor) {
		return Classification{fmt.Sprintf("%s Router/AP", vendor), 70}
	}
	return Classification{"Wireless Router/AP", 50}
}

// ClassifyClient guesses the kind of station from its vendor and the SSIDs it
// probed for. Probes are examined in the order they were first seen.
func ClassifyClient(vendor string, probes []string) Classification {
	lowered := make([]string, 0, len(probes))
	for _, p := range probes {
		if p != "" {
			lowered = append(lowered, strings.ToLower(p))
		}
	}

	switch {
	case strings.Contains(vendor, "Apple"):
		return matchProbes(lowered, appleProbeRules, Classification{"Apple iOS/macOS Device", 70})
	case strings.Contains(vendor, "Amazon"):
		switch {
		case strings.Contains(vendor, "Echo"):
			return Classification{"Amazon Echo/Alexa", 90}
		case strings.Contains(vendor, "Fire"):
			return Classification{"Amazon Fire Tablet/TV", 85}
		}
		return Classification{"Amazon Smart Device", 75}
	case strings.Contains(vendor, "Google"):
		if strings.Contains(vendor, "Nest") {
			return Classification{"Google Nest Device", 85}
		}
		return matchProbes(lowered, googleProbeRules, Classification{"Google/Android Device", 70})
	case strings.Contains(vendor, "Samsung"):
		return matchProbes(lowered, samsungProbeRules, Classification{"Samsung Device", 70})
	case strings.Contains(vendor, "Sonos"):
		return Classification{"Sonos Speaker", 95}
	case strings.Contains(vendor, "Ring"):
		return Classification{"Ring Doorbell/Camera", 90}
	case strings.Contains(vendor, "Raspberry Pi"):
		return Classification{"Raspberry Pi", 90}
	case strings.Contains(vendor, "Intel"):
		return Classification{"Laptop/PC (Intel WiFi)", 75}
	}

	if c, ok := firstProbeMatch(lowered, genericProbeRules); ok {
		return c
	}
	if known(vendor) {
		return Classification{fmt.Sprintf("%s Device", vendor), 60}
	}
	return Classification{"Unknown WiFi Device", 30}
}

func matchProbes(probes []string, rules []probeRule, fallback Classification) Classification {
	if c, ok := firstProbeMatch(probes, rules); ok {
		return c
	}
	return fallback
}

// firstProbeMatch walks probes outermost, so an earlier SSID wins over a
// later one even if the later one would hit a higher rule.
func firstProbeMatch(probes []string, rules []probeRule) (Classification, bool) {
	for _, ssid := range probes {
		for _, r := range rules {
			for _, needle := range r.needles {
				if strings.Contains(ssid, needle) {
					return Classification{r.deviceType, r.confidence}, true
				}
			}
		}
	}
	return Classification{}, false
}

func known(vendor string) bool {
	return vendor != "" && vendor != UnknownVendor
}
