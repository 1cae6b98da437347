// Package retention runs scheduled database maintenance: pruning
// sessions that were created but never received a message.
package retention

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"parley/internal/config"
	"parley/internal/storage"
	"parley/pkg/logger"
)

// DefaultEmptySessionMaxAge is how long an empty session may linger
// before pruning when not configured.
const DefaultEmptySessionMaxAge = 24 * time.Hour

// Scheduler runs retention jobs on a cron schedule.
type Scheduler struct {
	cron   *cron.Cron
	db     *storage.DB
	maxAge time.Duration
}

// NewScheduler creates a scheduler from config. The schedule is a
// standard five-field cron expression.
func NewScheduler(db *storage.DB, cfg config.RetentionConfig) (*Scheduler, error) {
	maxAge := cfg.EmptySessionMaxAge
	if maxAge <= 0 {
		maxAge = DefaultEmptySessionMaxAge
	}

	s := &Scheduler{
		cron:   cron.New(),
		db:     db,
		maxAge: maxAge,
	}

	if _, err := s.cron.AddFunc(cfg.Schedule, s.pruneEmptySessions); err != nil {
		return nil, fmt.Errorf("invalid retention schedule %q: %w", cfg.Schedule, err)
	}
	return s, nil
}

// Start begins running scheduled jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	logger.Info().Dur("empty_session_max_age", s.maxAge).Msg("Retention scheduler started")
}

// Stop stops the scheduler, waiting for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunNow executes the prune immediately, outside the schedule.
func (s *Scheduler) RunNow() {
	s.pruneEmptySessions()
}

func (s *Scheduler) pruneEmptySessions() {
	cutoff := time.Now().Add(-s.maxAge)

	pruned, err := s.db.PruneEmptySessions(cutoff)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to prune empty sessions")
		return
	}
	if pruned > 0 {
		logger.Info().Int64("pruned", pruned).Msg("Pruned empty sessions")
	}
}
