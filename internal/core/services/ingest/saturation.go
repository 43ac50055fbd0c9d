package ingest

import (
	"fmt"
	"time"
)

// IsSaturated reports whether the scan has stopped finding new entities.
func (e *Engine) IsSaturated() bool {
	saturated, _ := e.SaturationStatus()
	return saturated
}

// SaturationStatus explains the saturation decision. A scan is saturated
// once the minimum scan time has passed and neither a new AP nor a new
// client has appeared within the saturation window.
func (e *Engine) SaturationStatus() (bool, string) {
	now := e.now()

	e.mu.RLock()
	start, lastAP, lastClient := e.startTime, e.lastNewAP, e.lastNewClient
	e.mu.RUnlock()

	if start.IsZero() {
		return false, "Scan not started"
	}

	elapsed := now.Sub(start)
	if elapsed < e.cfg.MinScanTime {
		return false, fmt.Sprintf("Min scan time not reached (%.0fs / %ds)", elapsed.Seconds(), int(e.cfg.MinScanTime.Seconds()))
	}

	if lastAP.IsZero() && lastClient.IsZero() {
		return false, "No discoveries yet"
	}

	if !lastAP.IsZero() {
		if since := now.Sub(lastAP); since < e.cfg.SaturationWindow {
			return false, fmt.Sprintf("Still discovering APs (last: %.0fs ago)", since.Seconds())
		}
	}
	if !lastClient.IsZero() {
		if since := now.Sub(lastClient); since < e.cfg.SaturationWindow {
			return false, fmt.Sprintf("Still discovering clients (last: %.0fs ago)", since.Seconds())
		}
	}

	var quiet time.Duration
	for _, last := range []time.Time{lastAP, lastClient} {
		if !last.IsZero() {
			quiet = max(quiet, now.Sub(last))
		}
	}
	return true, fmt.Sprintf("No new discoveries in %.0fs (threshold: %ds)", quiet.Seconds(), int(e.cfg.SaturationWindow.Seconds()))
}
