package capture

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lcalzada-xor/airwarden/internal/core/domain"
)

var (
	extendedAPHeader = []string{
		"BSSID", "First Seen", "Last Seen", "Channel", "Speed", "Privacy", "Cipher",
		"Authentication", "Power", "Beacons", "IV", "LAN IP", "ID-length", "ESSID",
		"WPS", "WPS Locked", "WPS Version", "Vendor", "Device Type",
	}
	extendedClientHeader = []string{
		"Station MAC", "First Seen", "Last Seen", "Power", "Packets", "BSSID",
		"Probed ESSIDs", "Vendor", "Device Type",
	}
)

// ExtendedPath derives the export path from a capture prefix.
func ExtendedPath(prefix string) string {
	return prefix + "-extended.csv"
}

// WriteExtended writes the airodump layout enriched with WPS and
// fingerprint columns.
func WriteExtended(w io.Writer, aps []domain.AccessPoint, clients []domain.Client) error {
	cw := csv.NewWriter(w)

	rows := [][]string{extendedAPHeader, {}}
	for _, ap := range aps {
		rows = append(rows, []string{
			ap.BSSID,
			formatTime(ap.FirstSeen),
			formatTime(ap.LastSeen),
			itoa(ap.Channel),
			itoa(ap.Speed),
			ap.Encryption,
			ap.Cipher,
			ap.Authentication,
			itoa(ap.Power),
			itoa(ap.Beacons),
			itoa(ap.IVs),
			ap.LANIP,
			itoa(ap.IDLength),
			ap.SSID,
			FormatBool(ap.WPSEnabled),
			FormatBool(ap.WPSLocked),
			ap.WPSVersion,
			ap.Vendor,
			ap.DeviceType,
		})
	}

	rows = append(rows, []string{}, []string{}, extendedClientHeader, []string{})
	for _, c := range clients {
		rows = append(rows, []string{
			c.MAC,
			formatTime(c.FirstSeen),
			formatTime(c.LastSeen),
			itoa(c.Power),
			itoa(c.Packets),
			c.BSSID,
			strings.Join(c.ProbedSSIDs, ", "),
			c.Vendor,
			c.DeviceType,
		})
	}

	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

// SaveExtended writes the export atomically next to the capture files.
func SaveExtended(path string, aps []domain.AccessPoint, clients []domain.Client) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".extended-*.csv")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := WriteExtended(tmp, aps, clients); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(TimeLayout)
}
