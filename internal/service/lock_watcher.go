package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"

	"pickem/internal/ledger"
	"pickem/internal/logger"
)

// DefaultLockWatchInterval is how often the watcher looks for newly locked series.
const DefaultLockWatchInterval = time.Minute

// LockAnnouncer is told once about every series whose picks have closed.
type LockAnnouncer interface {
	AnnounceLocked(ctx context.Context, s *ledger.Series)
}

// LogAnnouncer records lock announcements in the log only.
type LogAnnouncer struct{}

func (LogAnnouncer) AnnounceLocked(_ context.Context, s *ledger.Series) {
	logger.Info("", "series_locked", fmt.Sprintf("series=%s entries=%d pool=%s", s.Key, s.EntryCount, s.PrizePool))
}

// MultiAnnouncer forwards to every announcer in order.
type MultiAnnouncer []LockAnnouncer

func (m MultiAnnouncer) AnnounceLocked(ctx context.Context, s *ledger.Series) {
	for _, a := range m {
		a.AnnounceLocked(ctx, s)
	}
}

// LockWatcher periodically finds series that passed their lock deadline and
// announces them. Locking itself is derived from the clock, so the watcher
// never writes to the ledger and never settles anything.
type LockWatcher struct {
	ledger    *ledger.Ledger
	announcer LockAnnouncer
	interval  time.Duration
	clock     clockwork.Clock

	ctx       context.Context
	cancel    context.CancelFunc
	scheduler gocron.Scheduler

	mu        sync.Mutex
	announced map[string]bool
	since     time.Time
}

// NewLockWatcher creates a watcher. clock drives the schedule; pass nil for the wall clock.
func NewLockWatcher(l *ledger.Ledger, announcer LockAnnouncer, interval time.Duration, clock clockwork.Clock) *LockWatcher {
	if interval <= 0 {
		interval = DefaultLockWatchInterval
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &LockWatcher{
		ledger:    l,
		announcer: announcer,
		interval:  interval,
		clock:     clock,
		ctx:       ctx,
		cancel:    cancel,
		announced: make(map[string]bool),
	}
}

// Start schedules the sweep, running it once immediately.
// Series that were already locked before Start are not announced.
func (w *LockWatcher) Start() error {
	w.mu.Lock()
	w.since = w.ledger.Now()
	w.mu.Unlock()

	s, err := gocron.NewScheduler(gocron.WithClock(w.clock))
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.DurationJob(w.interval),
		gocron.NewTask(func() { w.sweep(w.ctx) }),
		gocron.WithName("lock_watch"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		s.Shutdown()
		return fmt.Errorf("failed to schedule lock watch: %w", err)
	}
	w.scheduler = s
	s.Start()
	logger.Debug("", "lock_watcher_started", fmt.Sprintf("interval=%s", w.interval))
	return nil
}

// Stop stops the schedule and waits for a running sweep to finish.
func (w *LockWatcher) Stop() {
	w.cancel()
	if w.scheduler != nil {
		if err := w.scheduler.Shutdown(); err != nil {
			logger.Error("", "lock_watcher_shutdown_failed", err.Error())
		}
	}
	logger.Debug("", "lock_watcher_stopped", "")
}

// sweep announces series that became locked since the last sweep.
func (w *LockWatcher) sweep(ctx context.Context) {
	locked, err := w.ledger.ListLocked(ctx)
	if err != nil {
		logger.Error("", "lock_watcher_query_failed", err.Error())
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	current := make(map[string]bool, len(locked))
	fresh := 0
	for _, s := range locked {
		current[s.Key] = true
		if w.announced[s.Key] {
			continue
		}
		w.announced[s.Key] = true
		if s.LockDeadline.Before(w.since) {
			continue
		}
		fresh++
		if w.announcer != nil {
			w.announcer.AnnounceLocked(ctx, s)
		}
	}
	// settled and cancelled series never lock again
	for key := range w.announced {
		if !current[key] {
			delete(w.announced, key)
		}
	}

	if fresh > 0 {
		logger.Debug("", "lock_watcher_announced", fmt.Sprintf("count=%d", fresh))
	}
}
