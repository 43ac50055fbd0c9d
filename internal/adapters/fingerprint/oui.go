package fingerprint

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// UnknownVendor is returned when no repository recognises a prefix.
const UnknownVendor = "Unknown"

// CommonOUIs is the built-in table consulted when the registry has no row.
var CommonOUIs = map[string]string{
	"00:03:93": "Apple", "00:0A:95": "Apple", "00:17:F2": "Apple", "00:1B:63": "Apple",
	"00:1F:F3": "Apple", "00:23:DF": "Apple", "00:25:00": "Apple", "00:26:BB": "Apple",
	"04:0C:CE": "Apple", "04:15:52": "Apple", "04:54:53": "Apple", "00:F4:B9": "Apple",

	"00:1A:11": "Google", "F4:F5:D8": "Google",
	"18:B4:30": "Google (Nest)", "64:16:66": "Google (Nest)", "64:9E:F3": "Google (Nest)",

	"00:71:47": "Amazon (Echo)", "34:D2:70": "Amazon (Echo)", "74:75:48": "Amazon (Echo)",
	"B4:7C:9C": "Amazon (Echo)", "A0:02:DC": "Amazon (Fire)",
	"00:FC:8B": "Amazon", "18:74:2E": "Amazon", "44:65:0D": "Amazon", "50:DC:E7": "Amazon",
	"84:D6:D0": "Amazon", "FC:65:DE": "Amazon",

	"00:07:AB": "Samsung", "00:12:47": "Samsung", "00:15:99": "Samsung", "00:16:32": "Samsung",
	"00:1E:7D": "Samsung", "00:21:19": "Samsung", "00:24:54": "Samsung", "00:26:37": "Samsung",

	"00:02:B3": "Intel", "00:0E:35": "Intel", "00:13:E8": "Intel", "00:16:EA": "Intel",
	"00:1B:21": "Intel", "00:1E:65": "Intel", "00:21:6A": "Intel", "00:24:D7": "Intel",

	"B8:27:EB": "Raspberry Pi Foundation", "DC:A6:32": "Raspberry Pi Foundation",
	"E4:5F:01": "Raspberry Pi Foundation",

	"00:27:19": "TP-Link", "14:CF:92": "TP-Link", "50:C7:BF": "TP-Link", "64:66:B3": "TP-Link",
	"90:F6:52": "TP-Link", "C0:4A:00": "TP-Link", "EC:08:6B": "TP-Link",

	"00:15:6D": "Ubiquiti", "04:18:D6": "Ubiquiti", "24:A4:3C": "Ubiquiti", "68:72:51": "Ubiquiti",
	"74:83:C2": "Ubiquiti",

	"00:09:5B": "Netgear", "00:14:6C": "Netgear", "20:4E:7F": "Netgear", "A0:40:A0": "Netgear",
	"00:14:BF": "Linksys", "00:18:39": "Linksys", "C0:C1:C0": "Linksys",
	"00:1A:92": "Asus", "04:D4:C4": "Asus", "2C:56:DC": "Asus",
	"00:05:5D": "D-Link", "1C:7E:E5": "D-Link", "C8:D3:A3": "D-Link",
	"00:0E:58": "Sonos", "5C:AA:FD": "Sonos", "94:9F:3E": "Sonos",
	"74:4C:A1": "Ring", "88:71:E5": "Ring",
}

// FileVendorRepository loads "XX:XX:XX Vendor" lines from a text file.
type FileVendorRepository struct {
	mu      sync.RWMutex
	vendors map[string]string
}

func NewFileVendorRepository() *FileVendorRepository {
	return &FileVendorRepository{vendors: make(map[string]string)}
}

// LoadFromFile merges the file into the repository. Lines starting with '#'
// and lines that don't begin with a prefix are ignored.
func (f *FileVendorRepository) LoadFromFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	loaded := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if len(line) < 9 || strings.HasPrefix(line, "#") {
			continue
		}
		prefix, err := ParsePrefix(line[:8])
		if err != nil {
			continue
		}
		if vendor := strings.TrimSpace(line[8:]); vendor != "" {
			loaded[prefix.String()] = vendor
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	for k, v := range loaded {
		f.vendors[k] = v
	}
	f.mu.Unlock()
	return nil
}

func (f *FileVendorRepository) LookupVendor(_ context.Context, prefix Prefix) (string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if vendor, ok := f.vendors[prefix.String()]; ok {
		return vendor, nil
	}
	return "", ErrVendorNotFound
}

func (f *FileVendorRepository) Close() error { return nil }

// Service adapts a VendorRepository to the string-in, string-out lookup the
// ingest engine consumes. Misses and errors both yield UnknownVendor.
type Service struct {
	repo VendorRepository
}

// NewService wraps repo. A nil repo falls back to CommonOUIs.
func NewService(repo VendorRepository) *Service {
	if repo == nil {
		repo = NewStaticVendorRepository(CommonOUIs)
	}
	return &Service{repo: repo}
}

// NewDefaultService chains the SQLite registry at dbPath (when it opens) with
// an optional text file and the built-in table.
func NewDefaultService(dbPath, ouiFile string, cacheSize int) *Service {
	chain := NewCompositeVendorRepository()

	static := NewStaticVendorRepository(CommonOUIs)
	if dbPath != "" {
		db, err := NewOUIDatabase(dbPath, cacheSize, nil)
		if err != nil {
			slog.Warn("OUI registry unavailable, using built-in table", "path", dbPath, "error", err)
		} else {
			if stats, err := db.GetStats(context.Background()); err == nil {
				slog.Info("OUI registry opened", "entries", stats.TotalEntries, "updated", stats.LastUpdated)
			}
			chain.Append(db)
		}
	}
	if ouiFile != "" {
		file := NewFileVendorRepository()
		if err := file.LoadFromFile(ouiFile); err != nil {
			slog.Warn("Failed to load OUI file", "path", ouiFile, "error", err)
		} else {
			chain.Append(file)
		}
	}
	chain.Append(static)
	return &Service{repo: chain}
}

// LookupVendor resolves a MAC or MAC prefix.
func (s *Service) LookupVendor(ctx context.Context, macPrefix string) string {
	prefix, err := ParsePrefix(macPrefix)
	if err != nil || prefix.Randomized() {
		return UnknownVendor
	}
	vendor, err := s.repo.LookupVendor(ctx, prefix)
	if err != nil {
		if !errors.Is(err, ErrVendorNotFound) {
			slog.Debug("Vendor lookup failed", "prefix", prefix.String(), "error", err)
		}
		return UnknownVendor
	}
	return vendor
}

// Close releases the underlying repositories.
func (s *Service) Close() error {
	return s.repo.Close()
}
