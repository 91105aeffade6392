package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"unit_scanner/config"
	"unit_scanner/scanner"
)

// Scheduler advances the scan on a cron or interval schedule. Each tick runs
// at most one scan: the orchestrator re-reads state fresh every time, so the
// loop is just an automated caller of the pull-based execute operation.
type Scheduler struct {
	cfg          *config.Config
	orchestrator *scanner.Orchestrator
	cron         *cron.Cron
	ticker       *time.Ticker
	stopCh       chan struct{}
}

func New(cfg *config.Config, orchestrator *scanner.Orchestrator) *Scheduler {
	return &Scheduler{
		cfg:          cfg,
		orchestrator: orchestrator,
		cron:         cron.New(),
		stopCh:       make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.Scheduler.Cron != "" {
		log.Printf("Starting scheduler with cron: %s", s.cfg.Scheduler.Cron)
		_, err := s.cron.AddFunc(s.cfg.Scheduler.Cron, func() {
			s.runOnce(ctx)
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
	} else if s.cfg.Scheduler.Interval > 0 {
		log.Printf("Starting scheduler with interval: %s", s.cfg.Scheduler.Interval)
		s.ticker = time.NewTicker(s.cfg.Scheduler.Interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					s.runOnce(ctx)
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		log.Println("No schedule configured, scans run on demand only")
	}

	return nil
}

func (s *Scheduler) runOnce(ctx context.Context) {
	result, err := s.orchestrator.ExecuteNext(ctx)
	if err != nil {
		log.Printf("Scheduled scan error: %v", err)
		return
	}
	if result == nil {
		log.Println("Scheduled scan: nothing to do")
		return
	}
	log.Printf("Scheduled scan: %s via %s, success=%v, units=%d",
		result.PropertyName, result.Method, result.Success, result.UnitsFound)
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
}
