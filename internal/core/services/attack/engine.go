package attack

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/lcalzada-xor/airwarden/internal/core/domain"
	"github.com/lcalzada-xor/airwarden/internal/core/ports"
	"github.com/lcalzada-xor/airwarden/internal/telemetry"
)

const (
	eventBuffer = 64
	// completeScore is the completeness of an M1+M2 capture.
	completeScore = 60
)

// Queue is the scheduler surface the engine drives.
type Queue interface {
	Next(ctx context.Context, n int) ([]domain.AttackQueueItem, error)
	Add(ctx context.Context, item domain.AttackQueueItem) (domain.AttackQueueItem, error)
	MarkInProgress(ctx context.Context, item *domain.AttackQueueItem) error
	Complete(ctx context.Context, item *domain.AttackQueueItem, result string) error
	Fail(ctx context.Context, item *domain.AttackQueueItem, reason string) error
	RecordAttempt(bssid string, at time.Time)
	AutoSelect(ctx context.Context, n int) ([]domain.AccessPoint, error)
	ScheduleRetry(ctx context.Context, failed domain.AttackQueueItem) (*domain.AttackQueueItem, error)
}

// Store is the persistence the engine reads targets from and writes
// results to.
type Store interface {
	ports.HandshakeStore
	GetNetwork(ctx context.Context, bssid string) (*domain.AccessPoint, error)
	SetLiveHandshakeCount(ctx context.Context, count int) error
}

// Config tunes the attack loop.
type Config struct {
	Interface            string
	BatchSize            int
	JobPause             time.Duration
	RoundPause           time.Duration
	AutoAttack           bool
	HandshakeTimeout     time.Duration
	AutoHandshakeTimeout time.Duration
	WPSTimeout           time.Duration
	WPSBruteforceTimeout time.Duration
}

// DefaultConfig returns five jobs per round, 5s between jobs and 30s between rounds.
func DefaultConfig(iface string) Config {
	return Config{
		Interface:            iface,
		BatchSize:            5,
		JobPause:             5 * time.Second,
		RoundPause:           30 * time.Second,
		AutoAttack:           true,
		HandshakeTimeout:     120 * time.Second,
		AutoHandshakeTimeout: 300 * time.Second,
		WPSTimeout:           300 * time.Second,
		WPSBruteforceTimeout: 600 * time.Second,
	}
}

// Deps are the collaborators of the engine. Gate may be nil.
type Deps struct {
	Queue    Queue
	Store    Store
	WPS      ports.WPSCracker
	Capturer ports.HandshakeCapturer
	Analyzer ports.CompletenessAnalyzer
	Gate     ports.AttackGate
}

// Engine is the single attack loop.
type Engine struct {
	cfg    Config
	deps   Deps
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) bool
	events chan domain.AttackEvent

	running   atomic.Bool
	processed atomic.Int64
}

// New creates an attack engine.
func New(cfg Config, deps Deps) *Engine {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	return &Engine{
		cfg:    cfg,
		deps:   deps,
		now:    time.Now,
		sleep:  sleepCtx,
		events: make(chan domain.AttackEvent, eventBuffer),
	}
}

// Events delivers one event per finished job.
func (e *Engine) Events() <-chan domain.AttackEvent {
	return e.events
}

// Interface returns the adapter attacks run on.
func (e *Engine) Interface() string {
	return e.cfg.Interface
}

// Running reports whether Run is active.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Processed returns how many jobs have finished.
func (e *Engine) Processed() int64 {
	return e.processed.Load()
}

// Run processes the queue in rounds until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return errors.New("attack engine already running")
	}
	defer e.running.Store(false)

	slog.Info("Attack engine started", "interface", e.cfg.Interface, "batch", e.cfg.BatchSize, "auto", e.cfg.AutoAttack)
	for round := 1; ; round++ {
		if ctx.Err() != nil {
			return nil
		}

		items, err := e.nextBatch(ctx)
		if err != nil {
			slog.Error("Failed to load attack batch", "error", err)
		}
		if len(items) == 0 {
			slog.Debug("No attack targets, waiting", "pause", e.cfg.RoundPause)
			if !e.sleep(ctx, e.cfg.RoundPause) {
				return nil
			}
			continue
		}

		slog.Info("Attack round", "round", round, "jobs", len(items))
		for i := range items {
			if ctx.Err() != nil {
				return nil
			}
			e.process(ctx, items[i])
			if i < len(items)-1 && !e.sleep(ctx, e.cfg.JobPause) {
				return nil
			}
		}
		if !e.sleep(ctx, e.cfg.RoundPause) {
			return nil
		}
	}
}

// nextBatch returns queued work, falling back to automatic target selection.
func (e *Engine) nextBatch(ctx context.Context) ([]domain.AttackQueueItem, error) {
	items, err := e.deps.Queue.Next(ctx, e.cfg.BatchSize)
	if err != nil || len(items) > 0 || !e.cfg.AutoAttack {
		return items, err
	}

	targets, err := e.deps.Queue.AutoSelect(ctx, e.cfg.BatchSize)
	if err != nil {
		return nil, err
	}
	for _, ap := range targets {
		attackType := domain.AttackHandshake
		if ap.WPSEnabled && !ap.WPSLocked {
			attackType = domain.AttackWPSPixie
		}
		item, err := e.deps.Queue.Add(ctx, domain.AttackQueueItem{
			BSSID:      ap.BSSID,
			SSID:       ap.SSID,
			Channel:    ap.Channel,
			Type:       attackType,
			Source:     domain.SourceAuto,
			MaxRetries: 0,
		})
		if err != nil {
			slog.Warn("Failed to queue auto target", "bssid", ap.BSSID, "error", err)
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func (e *Engine) process(ctx context.Context, item domain.AttackQueueItem) {
	jobID := uuid.New().String()
	logger := slog.With("job", jobID[:8], "id", item.ID, "bssid", item.BSSID, "type", item.Type)

	ctx, span := telemetry.Tracer("attack").Start(ctx, "attack."+string(item.Type))
	span.SetAttributes(
		attribute.String("job_id", jobID),
		attribute.String("bssid", item.BSSID),
		attribute.String("source", string(item.Source)),
		attribute.Int("retry", item.RetryCount),
	)
	defer span.End()

	if e.deps.Gate != nil {
		if err := e.deps.Gate.BeginAttack(ctx, e.cfg.Interface); err != nil {
			// item stays pending for the next round
			logger.Warn("Attack interface unavailable", "interface", e.cfg.Interface, "error", err)
			span.RecordError(err)
			return
		}
		defer e.deps.Gate.EndAttack(context.WithoutCancel(ctx), e.cfg.Interface)
	}

	if err := e.deps.Queue.MarkInProgress(ctx, &item); err != nil {
		logger.Error("Failed to start job", "error", err)
		span.RecordError(err)
		return
	}
	start := e.now()
	e.deps.Queue.RecordAttempt(item.BSSID, start)

	target := e.target(ctx, item)
	logger.Info("Attack started", "ssid", target.SSID, "channel", target.Channel, "source", item.Source)

	record, result, err := e.execute(ctx, item, target, logger)
	finishCtx := context.WithoutCancel(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if ferr := e.deps.Queue.Fail(finishCtx, &item, err.Error()); ferr != nil {
			logger.Error("Failed to record failure", "error", ferr)
		}
		logger.Warn("Attack failed", "reason", err.Error())
		if retry, rerr := e.deps.Queue.ScheduleRetry(finishCtx, item); rerr != nil {
			logger.Error("Failed to schedule retry", "error", rerr)
		} else if retry != nil {
			logger.Info("Retry scheduled", "retry_id", retry.ID, "attempt", retry.RetryCount)
		}
	} else {
		if cerr := e.deps.Queue.Complete(finishCtx, &item, result); cerr != nil {
			logger.Error("Failed to record success", "error", cerr)
		}
		logger.Info("Attack succeeded", "result", result)
	}

	telemetry.Attacks.WithLabelValues(string(item.Type), telemetry.Result(err)).Inc()
	e.processed.Add(1)
	e.emit(domain.AttackEvent{Item: item, Record: record, Elapsed: e.now().Sub(start)})
}

// target merges the stored network over the queue row; the row wins when
// the network is unknown.
func (e *Engine) target(ctx context.Context, item domain.AttackQueueItem) domain.AccessPoint {
	ap := domain.AccessPoint{BSSID: item.BSSID, SSID: item.SSID, Channel: item.Channel}
	stored, err := e.deps.Store.GetNetwork(ctx, item.BSSID)
	if err != nil || stored == nil {
		return ap
	}
	if stored.Channel == 0 {
		stored.Channel = item.Channel
	}
	if stored.SSID == "" {
		stored.SSID = item.SSID
	}
	return *stored
}

// execute runs the WPS path when it applies and falls back to handshake
// capture. It returns the saved record and the completion message.
func (e *Engine) execute(ctx context.Context, item domain.AttackQueueItem, ap domain.AccessPoint, logger *slog.Logger) (*domain.HandshakeRecord, string, error) {
	var reasons []string

	if item.Type.IsWPS() {
		if ap.WPSEnabled && !ap.WPSLocked {
			res, err := e.deps.WPS.Crack(ctx, ports.WPSRequest{
				Interface: e.cfg.Interface,
				BSSID:     item.BSSID,
				Channel:   ap.Channel,
				Mode:      item.Type,
				Timeout:   e.wpsTimeout(item.Type),
			})
			if err == nil {
				rec := domain.HandshakeRecord{
					BSSID:      item.BSSID,
					SSID:       ap.SSID,
					CapturedAt: e.now(),
					Cracked:    true,
					Secret:     res.PSK,
					WPSPin:     res.PIN,
				}
				e.save(ctx, rec, logger)
				msg := "WPS cracked: " + res.PIN
				if res.PSK != "" {
					msg += " (PSK: " + res.PSK + ")"
				}
				return &rec, msg, nil
			}
			reasons = append(reasons, "WPS attack failed: "+err.Error())
			logger.Info("WPS path failed, falling back to handshake capture", "error", err)
		} else {
			logger.Info("WPS not usable on target, capturing handshake instead", "wps", ap.WPSEnabled, "locked", ap.WPSLocked)
		}
		if err := ctx.Err(); err != nil {
			reasons = append(reasons, err.Error())
			return nil, "", errors.New(strings.Join(reasons, "; "))
		}
	}

	timeout := e.cfg.HandshakeTimeout
	if item.Source == domain.SourceAuto {
		timeout = e.cfg.AutoHandshakeTimeout
	}
	res, err := e.deps.Capturer.Capture(ctx, ports.CaptureRequest{
		Interface: e.cfg.Interface,
		BSSID:     item.BSSID,
		SSID:      ap.SSID,
		Channel:   ap.Channel,
		Timeout:   timeout,
	})
	if err != nil {
		reasons = append(reasons, "Handshake capture failed: "+err.Error())
		return nil, "", errors.New(strings.Join(reasons, "; "))
	}

	rec := domain.HandshakeRecord{
		BSSID:      item.BSSID,
		SSID:       ap.SSID,
		FilePath:   res.File,
		CapturedAt: e.now(),
	}
	if e.deps.Analyzer != nil {
		score, msgs, aerr := e.deps.Analyzer.Analyze(res.File, item.BSSID)
		if aerr != nil {
			logger.Warn("Completeness analysis failed", "file", res.File, "error", aerr)
		}
		rec.CompletenessScore, rec.MessagesSeen = score, msgs
		rec.Complete = score >= completeScore
		if !rec.Complete {
			logger.Warn("Handshake incomplete, M1+M2 required", "score", score, "messages", msgs)
		}
	}
	e.save(ctx, rec, logger)
	return &rec, "Handshake captured: " + filepath.Base(res.File), nil
}

// save persists the record and refreshes the live session's handshake count.
func (e *Engine) save(ctx context.Context, rec domain.HandshakeRecord, logger *slog.Logger) {
	ctx = context.WithoutCancel(ctx)
	if err := e.deps.Store.SaveHandshake(ctx, rec); err != nil {
		logger.Error("Failed to save handshake", "error", err)
		return
	}
	count, err := e.deps.Store.CountCompleteHandshakes(ctx)
	if err != nil {
		logger.Error("Failed to count handshakes", "error", err)
		return
	}
	if err := e.deps.Store.SetLiveHandshakeCount(ctx, count); err != nil {
		logger.Warn("Failed to update session handshake count", "error", err)
	}
}

func (e *Engine) wpsTimeout(t domain.AttackType) time.Duration {
	if t == domain.AttackWPSBruteforce {
		return e.cfg.WPSBruteforceTimeout
	}
	return e.cfg.WPSTimeout
}

func (e *Engine) emit(ev domain.AttackEvent) {
	select {
	case e.events <- ev:
	default:
		slog.Warn("Attack event dropped, consumer too slow", "id", ev.Item.ID)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
