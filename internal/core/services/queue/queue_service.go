package queue

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lcalzada-xor/airwarden/internal/core/domain"
	"github.com/lcalzada-xor/airwarden/internal/core/ports"
	"github.com/lcalzada-xor/airwarden/internal/core/services/serial"
)

const serialLength = 20

// Store is the persistence the scheduler needs.
type Store interface {
	ports.QueueStore
	ports.NetworkStore
	ports.HandshakeStore
}

// Config tunes the scheduler.
type Config struct {
	Cooldown        time.Duration
	CandidateWindow time.Duration
	MaxRetries      int
}

// DefaultConfig returns a one hour cooldown over targets seen in the last day.
func DefaultConfig() Config {
	return Config{
		Cooldown:        time.Hour,
		CandidateWindow: 24 * time.Hour,
		MaxRetries:      domain.DefaultMaxRetries,
	}
}

// WPS auto-queue priorities, cheapest attack first.
var wpsPlan = []struct {
	attack   domain.AttackType
	priority int
}{
	{domain.AttackWPSPixie, 90},
	{domain.AttackWPSNullPin, 70},
	{domain.AttackWPSBruteforce, 40},
}

// Service is the durable attack queue plus the per-target cooldown map.
type Service struct {
	store Store
	ids   ports.IDGenerator
	cfg   Config
	now   func() time.Time

	mu       sync.Mutex
	attempts map[string]time.Time
}

// NewService creates a scheduler over the given store.
func NewService(store Store, ids ports.IDGenerator, cfg Config) *Service {
	if ids == nil {
		ids = serial.NewGenerator()
	}
	return &Service{
		store:    store,
		ids:      ids,
		cfg:      cfg,
		now:      time.Now,
		attempts: make(map[string]time.Time),
	}
}

// Next returns up to n pending items, highest priority first and oldest
// first within a priority.
func (s *Service) Next(ctx context.Context, n int) ([]domain.AttackQueueItem, error) {
	return s.store.PendingItems(ctx, n)
}

// Add validates and stores a new pending item.
func (s *Service) Add(ctx context.Context, item domain.AttackQueueItem) (domain.AttackQueueItem, error) {
	bssid, err := domain.NormalizeMAC(item.BSSID)
	if err != nil {
		return domain.AttackQueueItem{}, fmt.Errorf("queue item bssid %q: %w", item.BSSID, err)
	}
	if !item.Type.IsValid() {
		return domain.AttackQueueItem{}, fmt.Errorf("unknown attack type %q", item.Type)
	}

	item.ID = 0
	item.BSSID = bssid
	item.Status = domain.StatusPending
	item.Serial = s.ids.NewID(serial.PrefixQueue, serialLength)
	item.AddedAt = s.now()
	item.StartedAt, item.CompletedAt = nil, nil
	item.Success, item.Result = false, ""
	if item.Priority == 0 {
		item.Priority = domain.DefaultPriority
	}
	if item.Source == "" {
		item.Source = domain.SourceQueued
	}
	// auto picks are one-shot; queued items get the retry budget
	if item.Source == domain.SourceQueued && item.MaxRetries == 0 {
		item.MaxRetries = s.maxRetries()
	}

	if err := s.store.CreateItem(ctx, &item); err != nil {
		return domain.AttackQueueItem{}, err
	}
	slog.Info("Attack queued", "id", item.ID, "bssid", item.BSSID, "type", item.Type, "priority", item.Priority, "source", item.Source)
	return item, nil
}

func (s *Service) maxRetries() int {
	if s.cfg.MaxRetries > 0 {
		return s.cfg.MaxRetries
	}
	return domain.DefaultMaxRetries
}

// MarkInProgress moves a pending item to in_progress.
func (s *Service) MarkInProgress(ctx context.Context, item *domain.AttackQueueItem) error {
	return s.transition(ctx, item, domain.StatusInProgress, nil)
}

// Complete records a successful run.
func (s *Service) Complete(ctx context.Context, item *domain.AttackQueueItem, result string) error {
	return s.transition(ctx, item, domain.StatusCompleted, func(i *domain.AttackQueueItem) {
		i.Success = true
		i.Result = result
	})
}

// Fail records a failed run.
func (s *Service) Fail(ctx context.Context, item *domain.AttackQueueItem, reason string) error {
	return s.transition(ctx, item, domain.StatusFailed, func(i *domain.AttackQueueItem) {
		i.Success = false
		i.Result = reason
	})
}

// transition persists the new status first; item is only updated on success.
func (s *Service) transition(ctx context.Context, item *domain.AttackQueueItem, to domain.AttackStatus, mutate func(*domain.AttackQueueItem)) error {
	next := *item
	if err := next.Transition(to, s.now()); err != nil {
		return err
	}
	if mutate != nil {
		mutate(&next)
	}
	if err := s.store.UpdateItem(ctx, next); err != nil {
		return err
	}
	*item = next
	return nil
}

// RecordAttempt starts the cooldown for a target.
func (s *Service) RecordAttempt(bssid string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[strings.ToUpper(bssid)] = at
}

// InCooldown reports whether the target was attacked less than one
// cooldown window ago.
func (s *Service) InCooldown(bssid string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.attempts[strings.ToUpper(bssid)]
	if !ok {
		return false
	}
	return now.Sub(last) < s.cfg.Cooldown
}

// AutoSelect picks up to n targets for automatic attack: password protected
// networks seen recently, outside their cooldown and without a usable
// handshake already on file.
func (s *Service) AutoSelect(ctx context.Context, n int) ([]domain.AccessPoint, error) {
	if n <= 0 {
		return nil, nil
	}
	now := s.now()

	candidates, err := s.store.ListAttackCandidates(ctx, now.Add(-s.cfg.CandidateWindow), n*3)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	captured, err := s.store.CompleteUncrackedBSSIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list handshakes: %w", err)
	}

	var picked []domain.AccessPoint
	for _, ap := range candidates {
		switch {
		case !ap.UsesPassword():
			continue
		case s.InCooldown(ap.BSSID, now):
			slog.Debug("Skipping target in cooldown", "bssid", ap.BSSID)
			continue
		case captured[ap.BSSID]:
			continue
		}
		picked = append(picked, ap)
		if len(picked) == n {
			break
		}
	}
	return picked, nil
}

// ScheduleRetry queues a fresh attempt for a failed item while it has
// retries left. It returns nil when the budget is spent.
func (s *Service) ScheduleRetry(ctx context.Context, failed domain.AttackQueueItem) (*domain.AttackQueueItem, error) {
	if !failed.CanRetry() {
		return nil, nil
	}

	retry, err := s.Add(ctx, domain.AttackQueueItem{
		BSSID:      failed.BSSID,
		SSID:       failed.SSID,
		Channel:    failed.Channel,
		Type:       failed.Type,
		Priority:   failed.Priority,
		Source:     failed.Source,
		RetryCount: failed.RetryCount + 1,
		MaxRetries: failed.MaxRetries,
	})
	if err != nil {
		return nil, err
	}
	return &retry, nil
}

// QueueWPSTargets queues the WPS attack ladder for every unlocked WPS
// network, skipping attacks already pending. It returns how many items
// were added.
func (s *Service) QueueWPSTargets(ctx context.Context) (int, error) {
	networks, err := s.store.ListNetworks(ctx, 0)
	if err != nil {
		return 0, fmt.Errorf("list networks: %w", err)
	}

	added := 0
	for _, ap := range networks {
		if !ap.WPSEnabled || ap.WPSLocked {
			continue
		}
		for _, step := range wpsPlan {
			pending, err := s.store.HasPending(ctx, ap.BSSID, step.attack)
			if err != nil {
				return added, err
			}
			if pending {
				continue
			}
			if _, err := s.Add(ctx, domain.AttackQueueItem{
				BSSID:    ap.BSSID,
				SSID:     ap.SSID,
				Channel:  ap.Channel,
				Type:     step.attack,
				Priority: step.priority,
			}); err != nil {
				return added, err
			}
			added++
		}
	}
	return added, nil
}

// List returns items in a status, or all items when status is empty.
func (s *Service) List(ctx context.Context, status domain.AttackStatus, limit int) ([]domain.AttackQueueItem, error) {
	return s.store.ListItems(ctx, status, limit)
}

// Get returns one item.
func (s *Service) Get(ctx context.Context, id uint) (*domain.AttackQueueItem, error) {
	return s.store.GetItem(ctx, id)
}
