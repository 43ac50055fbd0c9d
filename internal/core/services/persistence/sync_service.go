package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/lcalzada-xor/airwarden/internal/core/domain"
	"github.com/lcalzada-xor/airwarden/internal/core/ports"
	"github.com/lcalzada-xor/airwarden/internal/telemetry"
)

// ErrQueueFull is reported to callbacks when a task could not be buffered.
var ErrQueueFull = errors.New("sync queue full")

// TaskKind names the upsert a task performs.
type TaskKind string

const (
	TaskNetwork     TaskKind = "network"
	TaskClient      TaskKind = "client"
	TaskObservation TaskKind = "observation"
)

// Task is a single upsert. Exactly one payload matches Kind.
type Task struct {
	Kind        TaskKind
	Network     domain.AccessPoint
	Client      domain.Client
	Observation domain.Observation
}

func NetworkTask(ap domain.AccessPoint) Task { return Task{Kind: TaskNetwork, Network: ap} }
func ClientTask(c domain.Client) Task        { return Task{Kind: TaskClient, Client: c} }
func ObservationTask(o domain.Observation) Task {
	return Task{Kind: TaskObservation, Observation: o}
}

// Callback receives the outcome of a task. It runs on the worker goroutine
// (or the caller's, for ErrQueueFull) and must not block.
type Callback func(inserted bool, err error)

// Stats are cumulative counters since construction.
type Stats struct {
	Inserted   int64 `json:"inserted"`
	Updated    int64 `json:"updated"`
	Errored    int64 `json:"errored"`
	Dropped    int64 `json:"dropped"`
	Requeued   int64 `json:"requeued"`
	QueueDepth int   `json:"queue_depth"`
}

type job struct {
	task     Task
	cb       Callback
	attempts int
}

// SyncService writes scan results to storage on a single background worker.
// Producers never block: a full buffer rejects the task.
type SyncService struct {
	store ports.NetworkStore
	queue chan job

	// outstanding counts accepted tasks that have not reached a final outcome.
	outstanding atomic.Int64

	inserted atomic.Int64
	updated  atomic.Int64
	errored  atomic.Int64
	dropped  atomic.Int64
	requeued atomic.Int64

	startOnce sync.Once
	done      chan struct{}
}

// NewSyncService creates a service with the given buffer size.
func NewSyncService(store ports.NetworkStore, bufferSize int) *SyncService {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &SyncService{
		store: store,
		queue: make(chan job, bufferSize),
		done:  make(chan struct{}),
	}
}

// Enqueue buffers a task without blocking. It returns false, and calls cb with
// ErrQueueFull, when the buffer is full.
func (s *SyncService) Enqueue(task Task, cb Callback) bool {
	s.outstanding.Add(1)
	select {
	case s.queue <- job{task: task, cb: cb}:
		telemetry.SyncQueueDepth.Set(float64(len(s.queue)))
		return true
	default:
		s.outstanding.Add(-1)
		s.dropped.Add(1)
		telemetry.SyncTasks.WithLabelValues(string(task.Kind), "rejected").Inc()
		if cb != nil {
			cb(false, ErrQueueFull)
		}
		return false
	}
}

// Start launches the worker. It exits when ctx is cancelled; call Flush first
// to drain outstanding work.
func (s *SyncService) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		go s.run(ctx)
	})
}

// Done is closed when the worker has exited.
func (s *SyncService) Done() <-chan struct{} {
	return s.done
}

func (s *SyncService) run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			if n := len(s.queue); n > 0 {
				slog.Warn("Sync worker stopping with tasks queued", "pending", n)
			}
			return
		case j := <-s.queue:
			telemetry.SyncQueueDepth.Set(float64(len(s.queue)))
			s.process(ctx, j)
		}
	}
}

func (s *SyncService) process(ctx context.Context, j job) {
	kind := string(j.task.Kind)
	ctx, span := telemetry.Tracer("persistence").Start(ctx, "sync."+kind)
	span.SetAttributes(attribute.Int("attempt", j.attempts+1))
	defer span.End()

	inserted, err := s.apply(ctx, j.task)
	if err == nil {
		if inserted {
			s.inserted.Add(1)
		} else {
			s.updated.Add(1)
		}
		telemetry.SyncTasks.WithLabelValues(kind, "ok").Inc()
		s.finish(j, inserted, nil)
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	// one retry, at the back of the queue so a bad row doesn't stall the rest
	if j.attempts == 0 {
		j.attempts++
		select {
		case s.queue <- j:
			s.requeued.Add(1)
			telemetry.SyncTasks.WithLabelValues(kind, "requeued").Inc()
			slog.Debug("Sync task requeued", "kind", kind, "error", err)
			return
		default:
		}
	}

	s.errored.Add(1)
	s.dropped.Add(1)
	telemetry.SyncTasks.WithLabelValues(kind, "dropped").Inc()
	slog.Error("Sync task dropped", "kind", kind, "attempts", j.attempts+1, "error", err)

	var perr *domain.PersistenceError
	if !errors.As(err, &perr) {
		err = &domain.PersistenceError{Op: "sync " + kind, Err: err}
	}
	s.finish(j, false, err)
}

func (s *SyncService) finish(j job, inserted bool, err error) {
	s.outstanding.Add(-1)
	if j.cb != nil {
		j.cb(inserted, err)
	}
}

func (s *SyncService) apply(ctx context.Context, t Task) (bool, error) {
	switch t.Kind {
	case TaskNetwork:
		return s.store.UpsertNetwork(ctx, t.Network)
	case TaskClient:
		return s.store.UpsertClient(ctx, t.Client)
	case TaskObservation:
		if t.Observation.SessionID == 0 {
			// no live session yet; nothing to attach the sighting to
			return false, nil
		}
		return s.store.UpsertObservation(ctx, t.Observation)
	}
	return false, fmt.Errorf("unknown sync task kind %q", t.Kind)
}

// Flush waits until every accepted task has been committed or dropped.
func (s *SyncService) Flush(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for s.outstanding.Load() > 0 {
		select {
		case <-ctx.Done():
			return fmt.Errorf("flush: %d tasks outstanding: %w", s.outstanding.Load(), ctx.Err())
		case <-s.done:
			return fmt.Errorf("flush: worker stopped with %d tasks outstanding", s.outstanding.Load())
		case <-ticker.C:
		}
	}
	return nil
}

// Stats returns a snapshot of the counters.
func (s *SyncService) Stats() Stats {
	return Stats{
		Inserted:   s.inserted.Load(),
		Updated:    s.updated.Load(),
		Errored:    s.errored.Load(),
		Dropped:    s.dropped.Load(),
		Requeued:   s.requeued.Load(),
		QueueDepth: len(s.queue),
	}
}
