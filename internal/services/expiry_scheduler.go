package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/safecli/safecli/internal/logger"
)

const sweepTimeout = 10 * time.Second

// ExpiryScheduler runs the expiry sweep on a cron schedule so pending requests
// time out even when nobody reads them.
type ExpiryScheduler struct {
	Cron      *cron.Cron
	approvals *ApprovalService
}

// NewExpiryScheduler registers the sweep under schedule. An empty schedule yields
// a nil scheduler.
func NewExpiryScheduler(approvals *ApprovalService, schedule string) (*ExpiryScheduler, error) {
	if schedule == "" {
		return nil, nil
	}
	s := &ExpiryScheduler{
		Cron:      cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		approvals: approvals,
	}
	if _, err := s.Cron.AddFunc(schedule, s.RunOnce); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

// RunOnce performs a single sweep.
func (s *ExpiryScheduler) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()
	n, err := s.approvals.SweepExpired(ctx)
	if err != nil {
		logger.Log().WithError(err).Error("scheduled expiry sweep failed")
		return
	}
	if n > 0 {
		logger.Log().WithField("count", n).Info("scheduled sweep expired pending requests")
	}
}

func (s *ExpiryScheduler) Start() {
	if s == nil {
		return
	}
	s.Cron.Start()
}

// Stop halts the schedule and waits for a running sweep.
func (s *ExpiryScheduler) Stop() {
	if s == nil {
		return
	}
	<-s.Cron.Stop().Done()
}
