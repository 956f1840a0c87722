// Package jobs runs the server's periodic background work.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// RefillSender sends one low-stock digest per household
type RefillSender interface {
	SendRefillDigest(ctx context.Context) (int, error)
}

// StartRefillDigest schedules sender on the crontab expression in loc and
// starts the scheduler. The caller owns Shutdown.
func StartRefillDigest(ctx context.Context, sender RefillSender, crontab string, clock clockwork.Clock, loc *time.Location, logger *zap.Logger) (gocron.Scheduler, error) {
	s, err := gocron.NewScheduler(
		gocron.WithClock(clock),
		gocron.WithLocation(loc),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = s.NewJob(
		gocron.CronJob(crontab, false),
		gocron.NewTask(func() {
			sent, err := sender.SendRefillDigest(ctx)
			if err != nil {
				logger.Error("refill digest failed", zap.Error(err))
				return
			}
			logger.Debug("refill digest sent", zap.Int("households", sent))
		}),
		gocron.WithName("refill-digest"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("invalid refill digest schedule %q: %w", crontab, err)
	}

	s.Start()
	return s, nil
}
