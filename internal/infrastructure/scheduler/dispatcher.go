package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	syncdomain "github.com/storepulse/backend/internal/domain/sync"
	"github.com/storepulse/backend/internal/infrastructure/queue"
)

var (
	ErrDispatcherAlreadyRunning = errors.New("dispatcher: already running")
	ErrDispatcherNotRunning     = errors.New("dispatcher: not running")
)

// DispatcherConfig holds configuration for the scheduled sync dispatcher
type DispatcherConfig struct {
	// TickInterval is how often due profiles are polled
	TickInterval time.Duration
	// BatchSize bounds how many due tenants one tick dispatches
	BatchSize int
}

// DefaultDispatcherConfig returns default dispatcher configuration
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		TickInterval: time.Minute,
		BatchSize:    100,
	}
}

// Dispatcher turns stored next-sync timestamps into queued sync jobs. Each
// tick it lists due activity profiles, enqueues one scheduled sync per
// tenant, and pushes the profile's next sync one interval out so the tenant
// is not re-dispatched on the following tick.
type Dispatcher struct {
	config   DispatcherConfig
	profiles syncdomain.ActivityProfileRepository
	jobs     *queue.JobQueue
	logger   *zap.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewDispatcher creates a new Dispatcher
func NewDispatcher(config DispatcherConfig, profiles syncdomain.ActivityProfileRepository, jobs *queue.JobQueue, logger *zap.Logger) *Dispatcher {
	if config.TickInterval <= 0 {
		config.TickInterval = time.Minute
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	return &Dispatcher{
		config:   config,
		profiles: profiles,
		jobs:     jobs,
		logger:   logger,
	}
}

// Start begins the polling loop.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return ErrDispatcherAlreadyRunning
	}

	loopCtx, cancel := context.WithCancel(ctx)
	d.running = true
	d.cancel = cancel
	d.done = make(chan struct{})

	go d.loop(loopCtx)

	d.logger.Info("Sync dispatcher started",
		zap.Duration("tick_interval", d.config.TickInterval),
		zap.Int("batch_size", d.config.BatchSize),
	)
	return nil
}

// Stop halts the polling loop and waits for the current tick to finish.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return ErrDispatcherNotRunning
	}
	d.running = false
	cancel := d.cancel
	done := d.done
	d.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	d.logger.Info("Sync dispatcher stopped")
	return nil
}

func (d *Dispatcher) loop(ctx context.Context) {
	defer close(d.done)

	ticker := time.NewTicker(d.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.DispatchDue(ctx, time.Now())
		}
	}
}

// DispatchDue enqueues one scheduled sync job for every due tenant and
// returns how many were dispatched. Exposed for tests and manual kicks.
func (d *Dispatcher) DispatchDue(ctx context.Context, now time.Time) int {
	due, err := d.profiles.ListDue(ctx, now, d.config.BatchSize)
	if err != nil {
		d.logger.Error("Failed to list due profiles", zap.Error(err))
		return 0
	}

	dispatched := 0
	for i := range due {
		profile := &due[i]
		if err := d.dispatchOne(ctx, profile, now); err != nil {
			d.logger.Warn("Failed to dispatch scheduled sync",
				zap.String("tenant_id", profile.TenantID.String()),
				zap.Error(err),
			)
			continue
		}
		dispatched++
	}

	if dispatched > 0 {
		d.logger.Info("Dispatched scheduled syncs", zap.Int("count", dispatched))
	}
	return dispatched
}

func (d *Dispatcher) dispatchOne(ctx context.Context, profile *syncdomain.ActivityProfile, now time.Time) error {
	_, err := d.jobs.Enqueue(queue.JobSyncScheduled, queue.Priority(priorityForScore(profile.ActivityScore)), map[string]any{
		"organizationId": profile.TenantID.String(),
		"syncType":       string(syncdomain.SyncTypeIncremental),
	})
	if err != nil {
		return err
	}

	// Push the next run out so subsequent ticks skip this tenant; the worker
	// reschedules again when the sync actually completes.
	profile.ScheduleNext(now)
	return d.profiles.Save(ctx, profile)
}

// priorityForScore mirrors the activity scheduler's base priority bands.
func priorityForScore(score float64) int {
	switch {
	case score > 70:
		return 8
	case score > 40:
		return 6
	case score < 10:
		return 3
	default:
		return 5
	}
}
