package scoring

import (
	"math"
	"sort"
	"strings"

	"github.com/lcalzada-xor/airwarden/internal/core/domain"
)

type weight struct {
	key   string
	value float64
}

// byLongestKey orders a table so "WPA2 WPA" is tried before "WPA2" and "WPA".
func byLongestKey(m map[string]float64) []weight {
	out := make([]weight, 0, len(m))
	for k, v := range m {
		out = append(out, weight{k, v})
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].key) != len(out[j].key) {
			return len(out[i].key) > len(out[j].key)
		}
		return out[i].key < out[j].key
	})
	return out
}

var (
	encryptionScores = byLongestKey(map[string]float64{
		"OPN":       100,
		"WEP":       95,
		"WPA":       70,
		"WPA2":      40,
		"WPA3":      15,
		"WPA3 WPA2": 25,
		"WPA2 WPA":  50,
	})

	authScores = byLongestKey(map[string]float64{
		"PSK":     0,
		"SAE":     -15,
		"MGT":     -20,
		"SAE PSK": -5,
	})
)

const (
	unknownEncryptionScore = 50
	wpsBonus               = 40
	clientsBonus           = 15
	hiddenPenalty          = 3
)

// Calculator computes how easy a network is to attack (0-100, higher is easier).
type Calculator struct{}

// NewCalculator creates a new calculator instance
func NewCalculator() *Calculator {
	return &Calculator{}
}

// Score returns the attack score and risk tier for an access point.
func (c *Calculator) Score(ap domain.AccessPoint) (float64, domain.RiskLevel) {
	score := float64(unknownEncryptionScore)
	enc := strings.ToUpper(strings.TrimSpace(ap.Encryption))
	for _, w := range encryptionScores {
		if strings.Contains(enc, w.key) {
			score = w.value
			break
		}
	}

	auth := strings.ToUpper(strings.TrimSpace(ap.Authentication))
	for _, w := range authScores {
		if strings.Contains(auth, w.key) {
			score += w.value
			break
		}
	}

	if strings.Contains(strings.ToUpper(ap.Cipher), "TKIP") {
		score += 0.5
	}

	if ap.WPSEnabled {
		score = math.Min(100, score+wpsBonus)
	}

	score += SignalBonus(ap.Power)

	if len(ap.Clients) > 0 {
		score += clientsBonus
	}
	if ap.Hidden() {
		score -= hiddenPenalty
	}

	if ap.Beacons > 0 {
		score += math.Min(2, float64(ap.Beacons)/10) + float64(ap.Beacons%100)/1000
	}

	switch ch := ap.Channel; {
	case ch == 1 || ch == 6 || ch == 11:
		score += 0.3
	case ch > 0:
		score += float64(ch%10) / 100
	}

	score = math.Max(0, math.Min(100, score))
	score = math.Round(score*100) / 100
	return score, RiskLevel(score)
}

// SameInputs reports whether Score would return the same result for a and b.
func SameInputs(a, b domain.AccessPoint) bool {
	return a.Encryption == b.Encryption &&
		a.Authentication == b.Authentication &&
		a.Cipher == b.Cipher &&
		a.WPSEnabled == b.WPSEnabled &&
		a.Power == b.Power &&
		(len(a.Clients) > 0) == (len(b.Clients) > 0) &&
		a.Hidden() == b.Hidden() &&
		a.Beacons == b.Beacons &&
		a.Channel == b.Channel
}

// SignalBonus rewards strong signals: 20 at -30 dBm or better, decaying to 0 at -90.
func SignalBonus(power int) float64 {
	if power == 0 {
		// airodump reports 0 or -1 when it has no reading
		return 0
	}
	var base float64
	if power >= -30 {
		base = 20
	} else {
		normalized := math.Max(0, float64(power+90)/60)
		base = 20 * math.Pow(normalized, 1.5)
	}
	abs := power
	if abs < 0 {
		abs = -abs
	}
	bonus := base + float64(abs%10)/100
	return math.Round(bonus*1000) / 1000
}

// RiskLevel converts a numeric score to a tier.
func RiskLevel(score float64) domain.RiskLevel {
	switch {
	case score >= 80:
		return domain.RiskCritical
	case score >= 60:
		return domain.RiskHigh
	case score >= 35:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}
