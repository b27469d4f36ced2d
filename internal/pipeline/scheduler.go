package pipeline

import (
	"context"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the periodic jobs on cron schedules. Each job is limited
// to one running instance: a tick that fires while the previous run is
// still going is skipped.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{cron: cron.New()}
}

// AddJob registers fn under the given cron schedule (standard 5-field
// spec or descriptors like "@every 4h").
func (s *Scheduler) AddJob(schedule, name string, fn func(ctx context.Context) error) error {
	inFlight := make(chan struct{}, 1)
	_, err := s.cron.AddFunc(schedule, func() {
		select {
		case inFlight <- struct{}{}:
			defer func() { <-inFlight }()
		default:
			log.Printf("Skipping %s: previous run still in progress", name)
			return
		}

		log.Printf("Running scheduled job: %s", name)
		if err := fn(context.Background()); err != nil {
			log.Printf("Job %s failed: %v", name, err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %s (%q): %w", name, schedule, err)
	}
	return nil
}

// Start begins firing schedules.
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Println("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("Scheduler stopped")
}
