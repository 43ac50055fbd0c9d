package ingest

import (
	"slices"
	"strings"
	"time"

	"github.com/lcalzada-xor/airwarden/internal/adapters/capture"
	"github.com/lcalzada-xor/airwarden/internal/core/domain"
	"github.com/lcalzada-xor/airwarden/internal/core/services/persistence"
)

// pass collects the side effects of one apply so they run outside the lock.
type pass struct {
	jobs   []fingerprintJob
	events []domain.ScanEvent
	tasks  []persistence.Task
}

// apply merges one parsed capture into the model. Only the owner goroutine
// calls it.
func (e *Engine) apply(snap capture.Snapshot) {
	now := e.now()
	loc := e.location()
	session := e.sessionID()

	var p pass
	var unclassified []string
	touched := make(map[string]bool)

	e.mu.Lock()
	for _, r := range snap.APs {
		ap, isNew := e.upsertAP(r, now)
		if !isNew {
			touched[ap.BSSID] = true
		}
		p.tasks = append(p.tasks,
			persistence.NetworkTask(ap.Clone()),
			persistence.ObservationTask(observation(session, ap.BSSID, domain.ObservedNetwork, ap.Power, loc, now)),
		)
		if e.needsFingerprint(ap.BSSID, ap.Fingerprinted) {
			unclassified = append(unclassified, ap.BSSID)
		}
	}

	for _, r := range snap.Clients {
		c, moved := e.upsertClient(r, now, touched)
		p.tasks = append(p.tasks,
			persistence.ClientTask(c.Clone()),
			persistence.ObservationTask(observation(session, c.MAC, domain.ObservedClient, c.Power, loc, now)),
		)
		if moved && c.Fingerprinted {
			snapshot := c.Clone()
			p.events = append(p.events, domain.ScanEvent{Type: domain.ScanUpdated, Client: &snapshot})
		}
		if e.needsFingerprint(c.MAC, c.Fingerprinted) {
			p.jobs = append(p.jobs, fingerprintJob{key: c.MAC, isClient: true, client: c.Clone()})
		}
	}

	// AP snapshots are taken after the station pass so the score sees the final client set
	for _, bssid := range unclassified {
		p.jobs = append(p.jobs, fingerprintJob{key: bssid, ap: e.aps[bssid].Clone()})
	}

	// rescore fingerprinted APs whose data or membership changed
	for bssid := range touched {
		ap, ok := e.aps[bssid]
		if !ok || !ap.Fingerprinted {
			continue
		}
		score, risk := e.scorer.Score(*ap)
		if score == ap.AttackScore && risk == ap.RiskLevel {
			continue
		}
		ap.AttackScore, ap.RiskLevel = score, risk
		snapshot := ap.Clone()
		p.events = append(p.events, domain.ScanEvent{Type: domain.ScanUpdated, AccessPoint: &snapshot})
	}
	e.mu.Unlock()

	for _, job := range p.jobs {
		e.submit(job)
	}
	for _, ev := range p.events {
		e.emit(ev)
	}
	for _, t := range p.tasks {
		e.enqueue(t)
	}
}

// upsertAP inserts or updates an access point. Callers hold e.mu.
func (e *Engine) upsertAP(r capture.APRecord, now time.Time) (*domain.AccessPoint, bool) {
	ap, ok := e.aps[r.BSSID]
	isNew := !ok
	if isNew {
		ap, _ = domain.NewAccessPoint(r.BSSID)
		ap.FirstSeen = now
		e.aps[ap.BSSID] = ap
		e.lastNewAP = now
		// stations seen before their AP
		for mac, c := range e.clients {
			if c.BSSID == ap.BSSID {
				ap.Clients[mac] = struct{}{}
			}
		}
	}

	if r.ESSID != "" {
		ap.SSID = r.ESSID
	}
	if r.Channel > 0 {
		ap.Channel = r.Channel
	}
	if r.Speed > 0 {
		ap.Speed = r.Speed
	}
	if r.Privacy != "" {
		ap.Encryption = r.Privacy
	}
	if r.Cipher != "" {
		ap.Cipher = r.Cipher
	}
	if r.Authentication != "" {
		ap.Authentication = r.Authentication
	}
	if hasSignal(r.Power) {
		ap.Power = r.Power
	}
	if r.Beacons > ap.Beacons {
		ap.Beacons = r.Beacons
	}
	if r.IVs > ap.IVs {
		ap.IVs = r.IVs
	}
	if r.LANIP != "" && r.LANIP != "0.0.0.0" {
		ap.LANIP = r.LANIP
	}
	if r.IDLength > 0 {
		ap.IDLength = r.IDLength
	}
	mergeTimes(&ap.FirstSeen, &ap.LastSeen, r.FirstSeen, r.LastSeen, now)
	return ap, isNew
}

// upsertClient inserts or updates a station and keeps AP membership in
// step with its BSSID. It reports whether the station changed association.
// Callers hold e.mu.
func (e *Engine) upsertClient(r capture.ClientRecord, now time.Time, touched map[string]bool) (*domain.Client, bool) {
	c, ok := e.clients[r.MAC]
	isNew := !ok
	if isNew {
		c, _ = domain.NewClient(r.MAC)
		c.FirstSeen = now
		e.clients[c.MAC] = c
		e.lastNewClient = now
	}

	if hasSignal(r.Power) {
		c.Power = r.Power
	}
	if r.Packets > c.Packets {
		c.Packets = r.Packets
	}
	for _, probe := range r.Probes {
		c.AddProbe(probe)
	}
	mergeTimes(&c.FirstSeen, &c.LastSeen, r.FirstSeen, r.LastSeen, now)

	if r.BSSID == c.BSSID && !isNew {
		return c, false
	}

	if c.BSSID != "" {
		if old, ok := e.aps[c.BSSID]; ok {
			delete(old.Clients, c.MAC)
			touched[old.BSSID] = true
		}
	}
	c.BSSID = r.BSSID
	if c.BSSID != "" {
		if ap, ok := e.aps[c.BSSID]; ok {
			ap.Clients[c.MAC] = struct{}{}
			touched[ap.BSSID] = true
		}
	}
	return c, !isNew
}

// needsFingerprint reports whether an entity is unclassified and not queued.
func (e *Engine) needsFingerprint(key string, done bool) bool {
	return !done && !e.inFlight[key]
}

// MergeWPS applies a WPS probe finding to a known access point. Unknown
// BSSIDs are counted and ignored.
func (e *Engine) MergeWPS(info domain.WPSInfo) bool {
	bssid, err := domain.NormalizeMAC(info.BSSID)
	if err != nil {
		return false
	}

	e.mu.Lock()
	ap, ok := e.aps[bssid]
	if !ok {
		e.mu.Unlock()
		e.unknownWPS.Add(1)
		return false
	}

	changed := !ap.WPSEnabled || ap.WPSLocked != info.Locked || ap.WPSVersion != info.Version
	ap.WPSEnabled = true
	ap.WPSLocked = info.Locked
	ap.WPSVersion = info.Version
	if changed {
		ap.AttackScore, ap.RiskLevel = e.scorer.Score(*ap)
	}
	snapshot := ap.Clone()
	e.mu.Unlock()

	if changed {
		if snapshot.Fingerprinted {
			e.emit(domain.ScanEvent{Type: domain.ScanUpdated, AccessPoint: &snapshot})
		}
		e.enqueue(persistence.NetworkTask(snapshot))
	}
	return true
}

// AccessPoints returns deep copies of every AP sorted by BSSID.
func (e *Engine) AccessPoints() []domain.AccessPoint {
	e.mu.RLock()
	out := make([]domain.AccessPoint, 0, len(e.aps))
	for _, ap := range e.aps {
		out = append(out, ap.Clone())
	}
	e.mu.RUnlock()

	slices.SortFunc(out, func(a, b domain.AccessPoint) int { return strings.Compare(a.BSSID, b.BSSID) })
	return out
}

// AccessPoint returns a copy of one AP.
func (e *Engine) AccessPoint(bssid string) (domain.AccessPoint, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ap, ok := e.aps[strings.ToUpper(bssid)]
	if !ok {
		return domain.AccessPoint{}, false
	}
	return ap.Clone(), true
}

// Clients returns deep copies of every station sorted by MAC.
func (e *Engine) Clients() []domain.Client {
	e.mu.RLock()
	out := make([]domain.Client, 0, len(e.clients))
	for _, c := range e.clients {
		out = append(out, c.Clone())
	}
	e.mu.RUnlock()

	slices.SortFunc(out, func(a, b domain.Client) int { return strings.Compare(a.MAC, b.MAC) })
	return out
}

// Statistics summarises the model and the saturation state.
func (e *Engine) Statistics() domain.ScanStatistics {
	saturated, reason := e.SaturationStatus()
	now := e.now()

	e.mu.RLock()
	defer e.mu.RUnlock()

	stats := domain.ScanStatistics{
		Interface:           e.cfg.Interface,
		TotalAPs:            len(e.aps),
		TotalClients:        len(e.clients),
		MalformedRows:       e.malformed.Load(),
		UnknownWPSBSSIDs:    e.unknownWPS.Load(),
		FingerprintsPending: int(e.pending.Load()),
		Saturated:           saturated,
		SaturationReason:    reason,
	}
	for _, ap := range e.aps {
		if ap.WPSEnabled {
			stats.WPSNetworks++
			if !ap.WPSLocked {
				stats.WPSUnlocked++
			}
		}
	}
	if !e.startTime.IsZero() {
		stats.ScanDuration = now.Sub(e.startTime)
	}
	if !e.lastNewAP.IsZero() {
		d := now.Sub(e.lastNewAP)
		stats.SinceLastAP = &d
	}
	if !e.lastNewClient.IsZero() {
		d := now.Sub(e.lastNewClient)
		stats.SinceLastClient = &d
	}
	return stats
}

func (e *Engine) location() *domain.Location {
	if e.deps.Location == nil {
		return nil
	}
	loc, ok := e.deps.Location.GetLocation()
	if !ok {
		return nil
	}
	return &loc
}

func (e *Engine) sessionID() uint {
	if e.deps.SessionID == nil {
		return 0
	}
	return e.deps.SessionID()
}

func observation(session uint, mac string, kind domain.ObservationKind, power int, loc *domain.Location, now time.Time) domain.Observation {
	return domain.Observation{
		SessionID: session,
		MAC:       mac,
		Kind:      kind,
		Power:     power,
		Location:  loc,
		Sightings: 1,
		FirstSeen: now,
		LastSeen:  now,
	}
}

// airodump writes -1 (and sometimes 0) when it has no reading.
func hasSignal(power int) bool {
	return power != 0 && power != -1
}

func mergeTimes(first, last *time.Time, seenFirst, seenLast, now time.Time) {
	if !seenFirst.IsZero() && (first.IsZero() || seenFirst.Before(*first)) {
		*first = seenFirst
	}
	if seenLast.IsZero() {
		seenLast = now
	}
	if seenLast.After(*last) {
		*last = seenLast
	}
}
