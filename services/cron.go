package services

import (
	"context"
	"time"

	"docai-platform/internal/logger"

	"github.com/go-co-op/gocron"
)

const (
	reaperInterval     = 5 * time.Minute
	staleProcessingAge = 30 * time.Minute
)

// CronService runs background maintenance. Its one job is reaping
// documents stuck in processing, usually left behind by a crashed
// worker, so they surface as failed instead of spinning forever.
type CronService struct {
	store     *DocumentStore
	scheduler *gocron.Scheduler
}

func NewCronService(store *DocumentStore) *CronService {
	return &CronService{
		store:     store,
		scheduler: gocron.NewScheduler(time.UTC),
	}
}

// Start schedules the reaper and runs it asynchronously.
func (c *CronService) Start() error {
	_, err := c.scheduler.Every(reaperInterval).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		reaped, err := c.store.FailStaleProcessing(ctx, staleProcessingAge)
		if err != nil {
			logger.Error("Stale processing reap failed", "error", err.Error())
			return
		}
		if reaped > 0 {
			logger.Warn("Reaped stale processing documents", "count", reaped)
		}
	})
	if err != nil {
		return err
	}

	c.scheduler.StartAsync()
	logger.Info("Maintenance scheduler started", "reaper_interval", reaperInterval.String())
	return nil
}

func (c *CronService) Stop() {
	c.scheduler.Stop()
}
