package schedule

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/dawn/logger"
)

// Ticker is the polling scheduler loop.
//
// It has a single Waiting state. Every interval it compares the wall clock
// with the trigger; inside the trigger minute it fires the payload
// synchronously, at most once per calendar date, then returns to Waiting.
type Ticker struct {
	runner    *Runner
	trigger   Trigger
	interval  time.Duration
	heartbeat time.Duration

	ctx    context.Context // cancelled by Stop: ends the loop
	cancel context.CancelFunc
	runCtx context.Context // cancelled by Abort: kills an in-flight payload
	abort  context.CancelFunc
	wg     sync.WaitGroup

	pulseLog *zap.SugaredLogger
	now      func() time.Time

	mu              sync.Mutex
	lastTickAt      time.Time
	ticksSinceStart int64
	lastFiredDate   string
	fires           int64
	lastHeartbeatAt time.Time
}

// TickerConfig contains configuration for the polling scheduler
type TickerConfig struct {
	Trigger  Trigger
	Interval time.Duration // How often to compare the clock to the trigger (default: 30 seconds)
	// Heartbeat is how often the loop logs its Stats (default: 1 hour, negative disables)
	Heartbeat time.Duration
}

// DefaultTickerConfig returns sensible defaults
func DefaultTickerConfig() TickerConfig {
	return TickerConfig{
		Trigger:   Trigger{Hour: 7},
		Interval:  30 * time.Second,
		Heartbeat: time.Hour,
	}
}

// NewTicker creates a new polling scheduler
func NewTicker(runner *Runner, cfg TickerConfig, logger *zap.SugaredLogger) *Ticker {
	return NewTickerWithContext(context.Background(), runner, cfg, logger)
}

// NewTickerWithContext creates a ticker with a parent context
func NewTickerWithContext(ctx context.Context, runner *Runner, cfg TickerConfig, log *zap.SugaredLogger) *Ticker {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultTickerConfig().Interval
	}
	if cfg.Heartbeat == 0 {
		cfg.Heartbeat = DefaultTickerConfig().Heartbeat
	}

	tickerCtx, cancel := context.WithCancel(ctx)
	runCtx, abort := context.WithCancel(ctx)

	return &Ticker{
		runner:    runner,
		trigger:   cfg.Trigger,
		interval:  cfg.Interval,
		heartbeat: cfg.Heartbeat,
		ctx:       tickerCtx,
		cancel:    cancel,
		runCtx:    runCtx,
		abort:     abort,
		pulseLog:  logger.AddPulseSymbol(log),
		now:       time.Now,
	}
}

// Start seeds the double-fire guard from history and begins the loop.
func (t *Ticker) Start() {
	t.seedLastFired()

	t.wg.Add(1)
	go t.run()

	next := t.trigger.Next(t.now())
	t.pulseLog.Infow("Scheduler started",
		logger.FieldJobLabel, t.runner.JobLabel(),
		logger.FieldTriggerTime, t.trigger.String(),
		"interval", t.interval,
		logger.FieldNextRun, next.Format(time.RFC3339))
}

// Stop ends the loop, waiting for an in-flight payload to finish.
func (t *Ticker) Stop() {
	t.cancel()
	t.wg.Wait()
	t.abort()
	t.pulseLog.Infow("Scheduler stopped", t.Stats().fields()...)
}

// Abort cancels an in-flight payload. Used on a second termination signal.
func (t *Ticker) Abort() {
	t.abort()
}

// Done is closed once Stop has been requested.
func (t *Ticker) Done() <-chan struct{} {
	return t.ctx.Done()
}

func (t *Ticker) seedLastFired() {
	store := t.runner.Store()
	if store == nil {
		return
	}

	date, err := store.LastTriggerDate(t.runner.JobLabel())
	if err != nil {
		t.pulseLog.Warnw("Failed to read last trigger date", logger.FieldError, err)
		return
	}

	t.mu.Lock()
	t.lastFiredDate = date
	t.mu.Unlock()
}

// run is the main ticker loop
func (t *Ticker) run() {
	defer t.wg.Done()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	// Check once immediately so a start inside the trigger minute is not missed
	t.tick(t.now())

	for {
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
			t.tick(t.now())
		}
	}
}

func (t *Ticker) tick(now time.Time) {
	t.mu.Lock()
	t.lastTickAt = now
	t.ticksSinceStart++
	if t.lastHeartbeatAt.IsZero() {
		t.lastHeartbeatAt = now
	}
	beat := t.heartbeat > 0 && now.Sub(t.lastHeartbeatAt) >= t.heartbeat
	if beat {
		t.lastHeartbeatAt = now
	}
	t.mu.Unlock()

	// The scheduler log is otherwise silent between triggers
	if beat {
		fields := append(t.Stats().fields(), logger.FieldNextRun, t.trigger.Next(now).Format(time.RFC3339))
		t.pulseLog.Infow("Scheduler heartbeat", fields...)
	}

	t.check(now)
}

// check fires the payload when now is inside the trigger minute and the
// trigger has not already fired today. Returns whether it fired.
func (t *Ticker) check(now time.Time) bool {
	if !t.trigger.Matches(now) {
		return false
	}

	today := now.Format(TriggerDateLayout)

	t.mu.Lock()
	if t.lastFiredDate == today {
		t.mu.Unlock()
		return false
	}
	t.lastFiredDate = today
	t.fires++
	t.mu.Unlock()

	t.pulseLog.Infow("Trigger time reached",
		logger.FieldTriggerTime, t.trigger.String(),
		"date", today)

	// Failures are logged by the runner; the scheduler keeps waiting
	_, _ = t.runner.Fire(t.runCtx, TriggerSchedule, now)

	t.pulseLog.Infow("Waiting for next trigger",
		logger.FieldNextRun, t.trigger.Next(t.now()).Format(time.RFC3339))
	return true
}

// Fires returns how many times the trigger fired since start
func (t *Ticker) Fires() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fires
}

// Stats is a snapshot of the polling loop
type Stats struct {
	LastTickAt    time.Time
	Ticks         int64
	Interval      time.Duration
	LastFiredDate string
	Fires         int64
}

// Stats returns a snapshot of the loop counters
func (t *Ticker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	return Stats{
		LastTickAt:    t.lastTickAt,
		Ticks:         t.ticksSinceStart,
		Interval:      t.interval,
		LastFiredDate: t.lastFiredDate,
		Fires:         t.fires,
	}
}

func (s Stats) fields() []interface{} {
	return []interface{}{
		"ticks", s.Ticks,
		"fires", s.Fires,
		"last_fired_date", s.LastFiredDate,
		"interval", s.Interval,
	}
}
