package usecase

import (
	"context"

	"rostersync-service/internal/domain/repository"
	"rostersync-service/pkg/logger"
	"rostersync-service/pkg/metrics"
)

// StatsCollector refreshes the storage gauges. Wired to a cron schedule in
// main; failures only log, the next tick tries again.
type StatsCollector struct {
	repo    repository.RosterRepository
	logger  logger.Logger
	metrics *metrics.Metrics
}

// NewStatsCollector creates a new stats collector
func NewStatsCollector(repo repository.RosterRepository, logger logger.Logger, m *metrics.Metrics) *StatsCollector {
	return &StatsCollector{
		repo:    repo,
		logger:  logger,
		metrics: m,
	}
}

// Refresh recounts periods and active days and updates the gauges.
func (c *StatsCollector) Refresh(ctx context.Context) {
	periods, activeDays, err := c.repo.CountStats(ctx)
	if err != nil {
		c.logger.Error("Failed to refresh roster stats", "error", err)
		c.metrics.ErrorsCount.WithLabelValues("stats").Inc()
		return
	}
	c.metrics.ActivePeriods.Set(float64(periods))
	c.metrics.ActiveDays.Set(float64(activeDays))
	c.logger.Debug("Roster stats refreshed", "periods", periods, "activeDays", activeDays)
}
