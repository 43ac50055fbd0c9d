package capture

import (
	"strconv"
	"strings"

	"github.com/lcalzada-xor/airwarden/internal/core/domain"
)

const minWashFields = 5

// ParseWashLine parses one row of wash output:
//
//	BSSID              Ch  dBm  WPS  Lck  Vendor    ESSID
//	AA:BB:CC:DD:EE:01   6  -45  2.0  No   RalinkTe  HomeNet
//
// Header, separator and short rows report ok=false.
func ParseWashLine(line string) (domain.WPSInfo, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "BSSID") || strings.HasPrefix(line, "---") {
		return domain.WPSInfo{}, false
	}

	parts := strings.Fields(line)
	if len(parts) < minWashFields {
		return domain.WPSInfo{}, false
	}

	bssid, err := domain.NormalizeMAC(parts[0])
	if err != nil {
		return domain.WPSInfo{}, false
	}

	info := domain.WPSInfo{
		BSSID:   bssid,
		Channel: atoi(parts[1]),
		Power:   atoi(parts[2]),
		Version: parts[3],
		Locked:  strings.EqualFold(parts[4], "yes"),
	}
	if len(parts) > 5 {
		info.Vendor = parts[5]
	}
	if len(parts) > 6 {
		info.ESSID = strings.Join(parts[6:], " ")
	}
	return info, true
}

// FormatBool renders the Yes/No cells used by the extended export.
func FormatBool(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
