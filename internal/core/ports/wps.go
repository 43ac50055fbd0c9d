package ports

import (
	"context"
	"time"

	"github.com/lcalzada-xor/airwarden/internal/core/domain"
)

// WPSRequest describes one WPS cracking attempt.
type WPSRequest struct {
	Interface string
	BSSID     string
	Channel   int
	Mode      domain.AttackType
	Timeout   time.Duration
}

// WPSResult carries credentials recovered from the cracking tool.
type WPSResult struct {
	PIN string
	PSK string
}

// WPSCracker drives the external WPS cracking tool.
type WPSCracker interface {
	// Crack blocks until the tool exits, the timeout fires or ctx is done.
	Crack(ctx context.Context, req WPSRequest) (WPSResult, error)

	// HealthCheck verifies the presence of the required external tools.
	HealthCheck(ctx context.Context) error
}

// CaptureRequest describes one handshake capture attempt.
type CaptureRequest struct {
	Interface string
	BSSID     string
	SSID      string
	Channel   int
	Timeout   time.Duration
}

// CaptureResult is a verified capture file.
type CaptureResult struct {
	File string
}

// HandshakeCapturer drives capture, deauthentication and verification tools.
type HandshakeCapturer interface {
	Capture(ctx context.Context, req CaptureRequest) (CaptureResult, error)
	HealthCheck(ctx context.Context) error
}

// CompletenessAnalyzer scores EAPOL message coverage in a capture file.
type CompletenessAnalyzer interface {
	Analyze(path, bssid string) (score int, messages []int, err error)
}
