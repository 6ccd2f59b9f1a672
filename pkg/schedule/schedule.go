// Package schedule fires a job on a cron schedule for the life of the
// process. A firing that arrives while the previous one is still running is
// skipped.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/JaimeStill/muse/pkg/lifecycle"
)

// Job is the scheduled work. ctx is cancelled when the process shuts down.
type Job func(ctx context.Context)

// System owns the cron runner.
type System interface {
	// Start begins firing once startup completes and stops on shutdown,
	// waiting for an in-flight job to return.
	Start(lc *lifecycle.Coordinator) error
	// Next returns the next scheduled firing, or the zero time when not running.
	Next() time.Time
}

type scheduler struct {
	cron   *cron.Cron
	spec   string
	job    Job
	logger *slog.Logger

	mu    sync.Mutex
	entry cron.EntryID
}

// New validates cfg and prepares a cron runner for job.
func New(cfg *Config, job Job, logger *slog.Logger) (System, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("schedule location: %w", err)
	}

	logger = logger.With("system", "schedule")
	cl := cronLogger{logger: logger}

	return &scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		spec:   cfg.Cron,
		job:    job,
		logger: logger,
	}, nil
}

func (s *scheduler) Start(lc *lifecycle.Coordinator) error {
	ctx := lc.Context()

	id, err := s.cron.AddFunc(s.spec, func() {
		s.logger.Info("scheduled job firing")
		s.job(ctx)
	})
	if err != nil {
		return fmt.Errorf("register schedule %q: %w", s.spec, err)
	}

	s.mu.Lock()
	s.entry = id
	s.mu.Unlock()

	lc.OnStartup(func() {
		s.cron.Start()
		s.logger.Info("schedule started", "cron", s.spec, "next", s.Next())
	})

	lc.OnDrain(func() {
		<-s.cron.Stop().Done()
		s.logger.Info("schedule stopped")
	})

	return nil
}

func (s *scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entry == 0 {
		return time.Time{}
	}
	return s.cron.Entry(s.entry).Next
}

// cronLogger routes cron's internal logging into slog. Routine scheduling
// chatter goes to debug.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
