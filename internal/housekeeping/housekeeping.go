// Package housekeeping runs periodic maintenance of in-memory transfer state.
package housekeeping

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	// DefaultSchedule prunes inactive statuses every five minutes.
	DefaultSchedule = "*/5 * * * *"

	// DefaultRetention keeps ended transfers visible for an hour.
	DefaultRetention = time.Hour
)

// Pruner drops ended transfer statuses older than a cutoff.
type Pruner interface {
	PruneHistory(cutoff time.Time) int
}

// Config holds configuration for the housekeeper.
type Config struct {
	// Schedule is a five-field cron expression or a descriptor such as "@hourly".
	Schedule string
	// Retention is how long ended transfers are kept.
	Retention time.Duration
}

// Housekeeper prunes the inactive transfer history on a cron schedule.
type Housekeeper struct {
	mu sync.Mutex

	pruner   Pruner
	config   Config
	parser   cron.Parser
	cron     *cron.Cron
	onPruned func(int)
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a housekeeper. Zero config values take their defaults.
func New(pruner Pruner, config Config) *Housekeeper {
	if config.Schedule == "" {
		config.Schedule = DefaultSchedule
	}
	if config.Retention <= 0 {
		config.Retention = DefaultRetention
	}
	return &Housekeeper{
		pruner: pruner,
		config: config,
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		logger: slog.Default().With(slog.String("component", "housekeeping")),
		now:    time.Now,
	}
}

// WithLogger sets a custom logger.
func (h *Housekeeper) WithLogger(logger *slog.Logger) *Housekeeper {
	h.logger = logger.With(slog.String("component", "housekeeping"))
	return h
}

// OnPruned registers a callback receiving the number of pruned statuses.
func (h *Housekeeper) OnPruned(fn func(int)) *Housekeeper {
	h.onPruned = fn
	return h
}

// ValidateSchedule checks a cron expression.
func (h *Housekeeper) ValidateSchedule(expr string) error {
	if _, err := h.parser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// Start schedules the prune job. The job stops when ctx is done or Stop is called.
func (h *Housekeeper) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cron != nil {
		return fmt.Errorf("housekeeper already started")
	}
	if err := h.ValidateSchedule(h.config.Schedule); err != nil {
		return err
	}

	c := cron.New(cron.WithParser(h.parser), cron.WithChain(cron.Recover(cronLogger{h.logger})))
	if _, err := c.AddFunc(h.config.Schedule, func() { h.RunOnce() }); err != nil {
		return fmt.Errorf("scheduling prune job: %w", err)
	}
	c.Start()
	h.cron = c

	go func() {
		<-ctx.Done()
		h.Stop()
	}()

	h.logger.Info("housekeeping started",
		slog.String("schedule", h.config.Schedule),
		slog.Duration("retention", h.config.Retention),
	)
	return nil
}

// Stop cancels the schedule and waits for a running job to finish.
func (h *Housekeeper) Stop() {
	h.mu.Lock()
	c := h.cron
	h.cron = nil
	h.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	h.logger.Info("housekeeping stopped")
}

// RunOnce prunes statuses that ended before the retention window.
func (h *Housekeeper) RunOnce() int {
	cutoff := h.now().Add(-h.config.Retention)
	n := h.pruner.PruneHistory(cutoff)
	if n > 0 {
		h.logger.Debug("pruned inactive transfers", slog.Int("count", n))
	}
	if h.onPruned != nil {
		h.onPruned(n)
	}
	return n
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append([]any{slog.String("error", err.Error())}, keysAndValues...)...)
}
