package ingest

import (
	"context"

	"github.com/lcalzada-xor/airwarden/internal/adapters/fingerprint"
	"github.com/lcalzada-xor/airwarden/internal/core/domain"
	"github.com/lcalzada-xor/airwarden/internal/core/services/persistence"
	"github.com/lcalzada-xor/airwarden/internal/core/services/scoring"
	"github.com/lcalzada-xor/airwarden/internal/telemetry"
)

type fingerprintJob struct {
	key      string
	isClient bool
	ap       domain.AccessPoint
	client   domain.Client
}

type fingerprintResult struct {
	key        string
	isClient   bool
	vendor     string
	deviceType string
	confidence int
	score      float64
	risk       domain.RiskLevel
	// scored is the AP state the score was computed from.
	scored domain.AccessPoint
}

// submit hands a job to the pool without blocking. A full pool leaves the
// entity unclassified until its next sighting.
func (e *Engine) submit(job fingerprintJob) {
	select {
	case e.jobs <- job:
		e.inFlight[job.key] = true
		e.pending.Store(int64(len(e.inFlight)))
	default:
	}
}

func (e *Engine) fingerprintWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-e.jobs:
			res := e.fingerprint(ctx, job)
			select {
			case e.results <- res:
			case <-ctx.Done():
				return
			}
		}
	}
}

// fingerprint classifies an immutable snapshot.
func (e *Engine) fingerprint(ctx context.Context, job fingerprintJob) fingerprintResult {
	res := fingerprintResult{key: job.key, isClient: job.isClient, vendor: fingerprint.UnknownVendor}
	if e.deps.Vendors != nil {
		res.vendor = e.deps.Vendors.LookupVendor(ctx, job.key[:8])
	}

	if job.isClient {
		cls := fingerprint.ClassifyClient(res.vendor, job.client.ProbedSSIDs)
		res.deviceType, res.confidence = cls.DeviceType, cls.Confidence
		telemetry.Fingerprints.WithLabelValues("client").Inc()
		return res
	}

	cls := fingerprint.ClassifyAP(res.vendor)
	res.deviceType, res.confidence = cls.DeviceType, cls.Confidence
	res.score, res.risk = e.scorer.Score(job.ap)
	res.scored = job.ap
	telemetry.Fingerprints.WithLabelValues("ap").Inc()
	return res
}

// mergeFingerprint applies a pool result and announces the entity.
func (e *Engine) mergeFingerprint(res fingerprintResult) {
	delete(e.inFlight, res.key)
	e.pending.Store(int64(len(e.inFlight)))

	e.mu.Lock()
	var ev domain.ScanEvent
	if res.isClient {
		c, ok := e.clients[res.key]
		if !ok {
			e.mu.Unlock()
			return
		}
		c.Vendor, c.DeviceType, c.DeviceConfidence = res.vendor, res.deviceType, res.confidence
		c.Fingerprinted = true
		snapshot := c.Clone()
		ev = domain.ScanEvent{Type: domain.ScanUpdated, Client: &snapshot}
	} else {
		ap, ok := e.aps[res.key]
		if !ok {
			e.mu.Unlock()
			return
		}
		ap.Vendor, ap.DeviceType, ap.DeviceConfidence = res.vendor, res.deviceType, res.confidence
		ap.AttackScore, ap.RiskLevel = res.score, res.risk
		if !scoring.SameInputs(res.scored, *ap) {
			// the AP changed while the job was in flight
			ap.AttackScore, ap.RiskLevel = e.scorer.Score(*ap)
		}
		ap.Fingerprinted = true
		snapshot := ap.Clone()
		ev = domain.ScanEvent{Type: domain.ScanUpdated, AccessPoint: &snapshot}
	}
	e.mu.Unlock()

	e.emit(ev)
	if ev.AccessPoint != nil {
		e.enqueue(persistence.NetworkTask(*ev.AccessPoint))
	} else {
		e.enqueue(persistence.ClientTask(*ev.Client))
	}
}
