package maintenance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// DefaultSchedule runs the optimizer once a day at midnight.
const DefaultSchedule = "@daily"

// Optimizer is the database operation run on each tick
type Optimizer interface {
	Optimize(ctx context.Context) error
}

// Scheduler runs periodic database maintenance on a cron schedule
type Scheduler struct {
	db       Optimizer
	schedule string
	cron     *cron.Cron
	entryID  cron.EntryID
	mu       sync.Mutex
	running  bool
}

// New creates a scheduler. An empty schedule disables it.
func New(db Optimizer, schedule string) *Scheduler {
	return &Scheduler{
		db:       db,
		schedule: schedule,
		cron:     cron.New(),
	}
}

// Start registers the job and starts the cron loop. It returns false when
// the scheduler is disabled.
func (s *Scheduler) Start() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return true, nil
	}
	if s.schedule == "" {
		return false, nil
	}

	id, err := s.cron.AddFunc(s.schedule, s.run)
	if err != nil {
		return false, fmt.Errorf("invalid optimize schedule %q: %w", s.schedule, err)
	}
	s.entryID = id
	s.cron.Start()
	s.running = true

	log.Info().Str("schedule", s.schedule).Msg("Database maintenance scheduled")
	return true, nil
}

// Stop stops the cron loop and waits for a running job to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()

	s.cron.Remove(s.entryID)
	s.entryID = 0
	s.running = false
	log.Debug().Msg("Database maintenance stopped")
}

// NextRun returns the next scheduled run, or the zero time if not running
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	start := time.Now()
	if err := s.db.Optimize(ctx); err != nil {
		log.Error().Err(err).Msg("Scheduled database optimize failed")
		return
	}
	log.Debug().Dur("duration", time.Since(start)).Msg("Scheduled database optimize complete")
}
