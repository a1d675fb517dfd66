package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/insighthub/server/internal/models"
	"github.com/insighthub/server/internal/services"
	"github.com/insighthub/server/pkg/logger"
)

const (
	defaultTrendSpec        = "@hourly"
	defaultDailyDigestSpec  = "0 8 * * *"
	defaultWeeklyDigestSpec = "0 8 * * 1"
	defaultCleanupSpec      = "@daily"

	defaultNotificationMaxAge = 30 * 24 * time.Hour
	defaultMarkerMaxAge       = 7 * 24 * time.Hour
)

// Scheduler coordinates the periodic engine jobs: trend scans, digest
// dispatch, and retention cleanup. Any nil dependency results in the
// corresponding job being skipped.
type Scheduler struct {
	trends    *services.TrendService
	digests   *services.DigestService
	notifier  *services.NotificationService
	deliverer services.Deliverer

	cron *cron.Cron
	now  func() time.Time
	log  *zap.Logger

	trendSchedule        string
	dailyDigestSchedule  string
	weeklyDigestSchedule string
	cleanupSchedule      string

	notificationMaxAge time.Duration
	markerMaxAge       time.Duration
}

// Option customises the Scheduler.
type Option func(*Scheduler)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithNow overrides the clock used for digest periods and retention cutoffs.
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTrendSchedule overrides the cron specification for trend scans.
func WithTrendSchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.trendSchedule = spec
		}
	}
}

// WithDigestSchedules overrides the cron specifications for digest dispatch.
func WithDigestSchedules(daily, weekly string) Option {
	return func(s *Scheduler) {
		if daily != "" {
			s.dailyDigestSchedule = daily
		}
		if weekly != "" {
			s.weeklyDigestSchedule = weekly
		}
	}
}

// WithCleanupSchedule overrides the cron specification for retention cleanup.
func WithCleanupSchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.cleanupSchedule = spec
		}
	}
}

// WithNotificationMaxAge adjusts how long read notifications are retained.
func WithNotificationMaxAge(maxAge time.Duration) Option {
	return func(s *Scheduler) {
		if maxAge > 0 {
			s.notificationMaxAge = maxAge
		}
	}
}

// WithMarkerMaxAge adjusts how long trend dedup markers are retained.
func WithMarkerMaxAge(maxAge time.Duration) Option {
	return func(s *Scheduler) {
		if maxAge > 0 {
			s.markerMaxAge = maxAge
		}
	}
}

// New constructs a Scheduler with sensible defaults.
func New(trends *services.TrendService, digests *services.DigestService, notifier *services.NotificationService, deliverer services.Deliverer, opts ...Option) *Scheduler {
	s := &Scheduler{
		trends:               trends,
		digests:              digests,
		notifier:             notifier,
		deliverer:            deliverer,
		now:                  time.Now,
		trendSchedule:        defaultTrendSpec,
		dailyDigestSchedule:  defaultDailyDigestSpec,
		weeklyDigestSchedule: defaultWeeklyDigestSpec,
		cleanupSchedule:      defaultCleanupSpec,
		notificationMaxAge:   defaultNotificationMaxAge,
		markerMaxAge:         defaultMarkerMaxAge,
		log:                  logger.WithModule("scheduler"),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.cron == nil {
		s.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return s
}

// Start registers the enabled jobs with the cron scheduler and launches it.
func (s *Scheduler) Start() error {
	if s.trends != nil {
		if _, err := s.cron.AddFunc(s.trendSchedule, func() {
			if _, err := s.trends.Scan(context.Background()); err != nil {
				s.log.Warn("trend scan failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if s.digests != nil && s.deliverer != nil {
		if _, err := s.cron.AddFunc(s.dailyDigestSchedule, func() {
			if _, err := s.digests.Dispatch(context.Background(), models.DigestDaily, s.now(), s.deliverer); err != nil {
				s.log.Warn("daily digest dispatch failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
		if _, err := s.cron.AddFunc(s.weeklyDigestSchedule, func() {
			if _, err := s.digests.Dispatch(context.Background(), models.DigestWeekly, s.now(), s.deliverer); err != nil {
				s.log.Warn("weekly digest dispatch failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if s.notifier != nil || s.trends != nil {
		if _, err := s.cron.AddFunc(s.cleanupSchedule, func() {
			if err := s.runCleanup(context.Background()); err != nil {
				s.log.Warn("retention cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	s.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (s *Scheduler) Stop() context.Context {
	if s.cron == nil {
		return context.Background()
	}
	return s.cron.Stop()
}

// RunOnce executes every configured job sequentially. Primarily used in
// tests and during graceful shutdown.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if s.trends != nil {
		if _, err := s.trends.Scan(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if s.digests != nil && s.deliverer != nil {
		if _, err := s.digests.Dispatch(ctx, models.DigestDaily, s.now(), s.deliverer); err != nil {
			errs = multierr.Append(errs, err)
		}
		if _, err := s.digests.Dispatch(ctx, models.DigestWeekly, s.now(), s.deliverer); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	errs = multierr.Append(errs, s.runCleanup(ctx))

	return errs
}

func (s *Scheduler) runCleanup(ctx context.Context) error {
	var errs error

	if s.notifier != nil {
		if _, err := s.notifier.CleanupOlderThan(ctx, s.notificationMaxAge); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if s.trends != nil {
		if _, err := s.trends.CleanupMarkers(ctx, s.markerMaxAge); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}
