package capture

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lcalzada-xor/airwarden/internal/core/domain"
)

// TimeLayout is the timestamp format airodump-ng writes, in local time.
const TimeLayout = "2006-01-02 15:04:05"

// Section names used in malformed-row reports and metrics labels.
const (
	SectionAP     = "ap"
	SectionClient = "client"
)

const (
	minAPFields     = 14
	minClientFields = 6
	apEssidField    = 13
)

// APRecord is one validated access point row.
type APRecord struct {
	BSSID          string
	FirstSeen      time.Time
	LastSeen       time.Time
	Channel        int
	Speed          int
	Privacy        string
	Cipher         string
	Authentication string
	Power          int
	Beacons        int
	IVs            int
	LANIP          string
	IDLength       int
	ESSID          string
}

// ClientRecord is one validated station row. BSSID is empty for stations
// reported as "(not associated)".
type ClientRecord struct {
	MAC       string
	FirstSeen time.Time
	LastSeen  time.Time
	Power     int
	Packets   int
	BSSID     string
	Probes    []string
}

// Snapshot is the parsed content of one capture file.
type Snapshot struct {
	APs       []APRecord
	Clients   []ClientRecord
	Malformed []*domain.MalformedRecordError
}

// ParseFile reads and parses a capture CSV.
func ParseFile(path string) (Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return Snapshot{}, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse splits the file into the access point section and the station
// section and validates every row. Bad rows are reported, never fatal.
func Parse(r io.Reader) (Snapshot, error) {
	var snap Snapshot

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	section := SectionAP
	sawAPData := false
	headerLines := 0
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")

		if strings.TrimSpace(line) == "" {
			// the first blank line after AP content starts the station section
			if section == SectionAP && sawAPData {
				section = SectionClient
				headerLines = 0
			}
			continue
		}

		first := firstField(line)
		if first == "Station MAC" {
			section = SectionClient
			headerLines = 1
			continue
		}
		if first == "BSSID" && headerLines < 2 {
			headerLines++
			continue
		}

		switch section {
		case SectionAP:
			sawAPData = true
			rec, bad := parseAPLine(line, lineNo)
			if bad != nil {
				snap.Malformed = append(snap.Malformed, bad)
				continue
			}
			snap.APs = append(snap.APs, rec)
		case SectionClient:
			rec, bad := parseClientLine(line, lineNo)
			if bad != nil {
				snap.Malformed = append(snap.Malformed, bad)
				continue
			}
			snap.Clients = append(snap.Clients, rec)
		}
	}
	return snap, scanner.Err()
}

func firstField(line string) string {
	if i := strings.IndexByte(line, ','); i >= 0 {
		return strings.TrimSpace(line[:i])
	}
	return strings.TrimSpace(line)
}

func splitRow(line string) ([]string, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.LazyQuotes = true
	fields, err := r.Read()
	if err != nil {
		return nil, err
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields, nil
}

func parseAPLine(line string, lineNo int) (APRecord, *domain.MalformedRecordError) {
	fields, err := splitRow(line)
	if err != nil {
		return APRecord{}, malformed(SectionAP, lineNo, err.Error())
	}
	if len(fields) < minAPFields {
		return APRecord{}, malformed(SectionAP, lineNo, "expected at least 14 fields, got "+strconv.Itoa(len(fields)))
	}
	bssid, err := domain.NormalizeMAC(fields[0])
	if err != nil {
		return APRecord{}, malformed(SectionAP, lineNo, "invalid BSSID "+strconv.Quote(fields[0]))
	}

	return APRecord{
		BSSID:          bssid,
		FirstSeen:      parseTime(fields[1]),
		LastSeen:       parseTime(fields[2]),
		Channel:        atoi(fields[3]),
		Speed:          atoi(fields[4]),
		Privacy:        fields[5],
		Cipher:         fields[6],
		Authentication: fields[7],
		Power:          atoi(fields[8]),
		Beacons:        atoi(fields[9]),
		IVs:            atoi(fields[10]),
		LANIP:          compactIP(fields[11]),
		IDLength:       atoi(fields[12]),
		ESSID:          essid(fields),
	}, nil
}

// essid rebuilds an ESSID that contained commas. The final column is the
// Key field whenever there are more than 14 columns.
func essid(fields []string) string {
	end := len(fields)
	if end > minAPFields {
		end--
	}
	name := strings.Join(fields[apEssidField:end], ",")
	if isHiddenSSID(name) {
		return ""
	}
	return name
}

func isHiddenSSID(s string) bool {
	if s == "" || strings.HasPrefix(s, "<length:") {
		return true
	}
	return strings.Trim(s, "\x00") == ""
}

func parseClientLine(line string, lineNo int) (ClientRecord, *domain.MalformedRecordError) {
	fields, err := splitRow(line)
	if err != nil {
		return ClientRecord{}, malformed(SectionClient, lineNo, err.Error())
	}
	if len(fields) < minClientFields {
		return ClientRecord{}, malformed(SectionClient, lineNo, "expected at least 6 fields, got "+strconv.Itoa(len(fields)))
	}
	mac, err := domain.NormalizeMAC(fields[0])
	if err != nil {
		return ClientRecord{}, malformed(SectionClient, lineNo, "invalid station MAC "+strconv.Quote(fields[0]))
	}

	bssid, err := domain.NormalizeMAC(fields[5])
	if err != nil {
		bssid = ""
	}

	var probes []string
	for _, p := range fields[minClientFields:] {
		if p != "" && !isHiddenSSID(p) {
			probes = append(probes, p)
		}
	}

	return ClientRecord{
		MAC:       mac,
		FirstSeen: parseTime(fields[1]),
		LastSeen:  parseTime(fields[2]),
		Power:     atoi(fields[3]),
		Packets:   atoi(fields[4]),
		BSSID:     bssid,
		Probes:    probes,
	}, nil
}

func malformed(section string, line int, reason string) *domain.MalformedRecordError {
	return &domain.MalformedRecordError{Section: section, Line: line, Reason: reason}
}

func parseTime(s string) time.Time {
	t, err := time.ParseInLocation(TimeLayout, s, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

// compactIP strips the padding airodump puts in the LAN IP column.
func compactIP(s string) string {
	return strings.ReplaceAll(s, " ", "")
}
