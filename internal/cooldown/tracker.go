package cooldown

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSweepInterval is how often expired entries are purged when no
// interval is configured.
const DefaultSweepInterval = 5 * time.Minute

type entry struct {
	at     time.Time
	window time.Duration
}

// WindowFunc returns the current cooldown of a command and whether the
// command still exists. *command.Registry's Cooldown method satisfies it.
type WindowFunc func(command string) (time.Duration, bool)

// Tracker remembers when each user last ran each command.
// Absence of an entry means the user is off cooldown.
type Tracker struct {
	mu      sync.Mutex
	buckets map[string]map[string]entry // command -> user -> last use

	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
	windows  WindowFunc

	cronMu sync.Mutex
	cron   *cron.Cron
}

// NewTracker creates a Tracker that sweeps every interval once started.
// A non-positive interval uses DefaultSweepInterval.
func NewTracker(interval time.Duration, logger *slog.Logger) *Tracker {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Tracker{
		buckets:  make(map[string]map[string]entry),
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock replaces the time source. It must be called before first use.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// WithWindows makes the sweep expire entries against each command's current
// cooldown instead of the one recorded with the use. Entries of commands the
// lookup no longer knows are dropped. It must be called before Start.
func (t *Tracker) WithWindows(fn WindowFunc) *Tracker {
	t.windows = fn
	return t
}

// Check reports whether user is still cooling down from command and how long
// remains. A zero window is always available.
func (t *Tracker) Check(command, user string, window time.Duration) (bool, time.Duration) {
	if window <= 0 {
		return false, 0
	}
	t.mu.Lock()
	e, ok := t.buckets[command][user]
	t.mu.Unlock()
	if !ok {
		return false, 0
	}
	elapsed := t.now().Sub(e.at)
	if elapsed >= window {
		return false, 0
	}
	return true, window - elapsed
}

// RecordUse stores now as the user's last use of command, replacing any
// earlier entry. window is kept for sweeps without a lookup. Commands
// without a cooldown are not tracked.
func (t *Tracker) RecordUse(command, user string, window time.Duration) {
	if window <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.buckets[command]
	if !ok {
		b = make(map[string]entry)
		t.buckets[command] = b
	}
	b[user] = entry{at: t.now(), window: window}
}

// Forget drops every entry for command and returns how many there were.
func (t *Tracker) Forget(command string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(t.buckets[command])
	delete(t.buckets, command)
	return n
}

// Len returns the number of tracked (command, user) pairs.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, b := range t.buckets {
		n += len(b)
	}
	return n
}

// Sweep removes entries whose window has elapsed and returns how many were
// removed. The window is the command's current cooldown when a lookup is set,
// otherwise the one recorded with the use. The lock is taken once per command
// so a large table never holds it for the whole pass.
func (t *Tracker) Sweep() int {
	t.mu.Lock()
	commands := make([]string, 0, len(t.buckets))
	for name := range t.buckets {
		commands = append(commands, name)
	}
	t.mu.Unlock()

	removed := 0
	for _, name := range commands {
		current, known := time.Duration(0), true
		if t.windows != nil {
			current, known = t.windows(name)
		}
		if !known {
			removed += t.Forget(name)
			continue
		}

		now := t.now()
		t.mu.Lock()
		b := t.buckets[name]
		for user, e := range b {
			window := e.window
			if t.windows != nil {
				window = current
			}
			if now.Sub(e.at) >= window {
				delete(b, user)
				removed++
			}
		}
		if len(b) == 0 {
			delete(t.buckets, name)
		}
		t.mu.Unlock()
	}
	return removed
}

// Start schedules the periodic sweep. It stops when ctx is cancelled or Stop is called.
func (t *Tracker) Start(ctx context.Context) error {
	t.cronMu.Lock()
	defer t.cronMu.Unlock()
	if t.cron != nil {
		return fmt.Errorf("cooldown sweep already started")
	}

	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", t.interval), t.runSweep); err != nil {
		return fmt.Errorf("scheduling cooldown sweep: %w", err)
	}
	c.Start()
	t.cron = c

	go func() {
		<-ctx.Done()
		_ = t.Stop()
	}()

	t.logger.Info("cooldown sweep started", "interval", t.interval)
	return nil
}

// Stop halts the sweep schedule and waits for a running sweep to finish.
func (t *Tracker) Stop() error {
	t.cronMu.Lock()
	c := t.cron
	t.cron = nil
	t.cronMu.Unlock()
	if c == nil {
		return nil
	}
	<-c.Stop().Done()
	return nil
}

func (t *Tracker) runSweep() {
	start := t.now()
	removed := t.Sweep()
	if removed > 0 {
		t.logger.Debug("cooldown sweep", "removed", removed, "remaining", t.Len(), "took", t.now().Sub(start))
	}
}
