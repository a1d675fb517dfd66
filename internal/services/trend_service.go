package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/insighthub/server/internal/analytics"
	"github.com/insighthub/server/internal/models"
	"github.com/insighthub/server/pkg/logger"
	"github.com/insighthub/server/pkg/metrics"
)

// TrendOptions tunes the trend scans.
type TrendOptions struct {
	// Window is the trailing period each scan covers.
	Window time.Duration
	// CompanyMinItems is the burst threshold per company.
	CompanyMinItems int
	// CategoryMinItems is the trend threshold per category.
	CategoryMinItems int
}

func (o *TrendOptions) applyDefaults() {
	if o.Window <= 0 {
		o.Window = 24 * time.Hour
	}
	if o.CompanyMinItems <= 0 {
		o.CompanyMinItems = 3
	}
	if o.CategoryMinItems <= 0 {
		o.CategoryMinItems = 5
	}
}

// TrendService runs periodic read-only scans over the recent item window and
// emits burst and trend alerts, deduplicated across overlapping runs.
type TrendService struct {
	db          *gorm.DB
	news        *NewsService
	preferences *PreferenceService
	notifier    *NotificationService
	opts        TrendOptions
	now         func() time.Time
	log         *zap.Logger
}

// NewTrendService constructs a TrendService. A nil clock falls back to
// time.Now.
func NewTrendService(db *gorm.DB, news *NewsService, preferences *PreferenceService, notifier *NotificationService, opts TrendOptions, now func() time.Time) (*TrendService, error) {
	if db == nil {
		return nil, errors.New("trend service: db is required")
	}
	if news == nil {
		return nil, errors.New("trend service: news service is required")
	}
	if preferences == nil {
		return nil, errors.New("trend service: preference service is required")
	}
	if notifier == nil {
		return nil, errors.New("trend service: notification service is required")
	}
	if now == nil {
		now = time.Now
	}
	opts.applyDefaults()
	return &TrendService{
		db:          db,
		news:        news,
		preferences: preferences,
		notifier:    notifier,
		opts:        opts,
		now:         now,
		log:         logger.WithModule("trends"),
	}, nil
}

// Scan runs both trend checks over the trailing window and returns the number
// of notifications created. Per-user failures are isolated; the first error
// is returned after the sweep completes.
func (s *TrendService) Scan(ctx context.Context) (int, error) {
	ctx = ensureContext(ctx)

	to := s.now().UTC()
	from := to.Add(-s.opts.Window)
	bucket := to.Truncate(s.opts.Window).Format(time.RFC3339)

	items, err := s.news.ListWindow(ctx, from, to)
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, nil
	}

	companies := make(map[string][]models.NewsItem)
	categories := make(map[models.NewsCategory]int)
	for _, item := range items {
		if item.CompanyID != nil && *item.CompanyID != "" {
			companies[*item.CompanyID] = append(companies[*item.CompanyID], item)
		}
		if item.Category != "" {
			categories[item.Category]++
		}
	}

	scores := make(map[string]float64, len(companies))
	for companyID, companyItems := range companies {
		if len(companyItems) >= s.opts.CompanyMinItems {
			scores[companyID] = analytics.Score(companyItems, from, to)
		}
	}

	userIDs, err := s.preferences.ListEnabledUserIDs(ctx)
	if err != nil {
		return 0, err
	}

	created := 0
	var firstErr error
	for _, userID := range userIDs {
		n, err := s.scanForUser(ctx, userID, companies, categories, scores, bucket)
		if err != nil {
			s.log.Error("trend scan failed for user",
				zap.String("user_id", userID),
				zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		created += n
	}

	s.log.Info("trend scan complete",
		zap.Int("window_items", len(items)),
		zap.Int("users", len(userIDs)),
		zap.Int("alerts", created))
	return created, firstErr
}

func (s *TrendService) scanForUser(ctx context.Context, userID string, companies map[string][]models.NewsItem, categories map[models.NewsCategory]int, scores map[string]float64, bucket string) (int, error) {
	prefs, err := s.preferences.GetPreferences(ctx, userID)
	if err != nil {
		return 0, err
	}
	settings, err := s.preferences.GetSettings(ctx, userID)
	if err != nil {
		return 0, err
	}

	hours := int(s.opts.Window / time.Hour)
	created := 0

	if settings.CompanyAlerts {
		for companyID, companyItems := range companies {
			if len(companyItems) < s.opts.CompanyMinItems || !prefs.SubscribedTo(companyID) {
				continue
			}

			companyName := companyID
			if company, err := s.news.GetCompany(ctx, companyID); err == nil {
				companyName = company.Name
			}

			candidate := &AlertCandidate{
				UserID:   userID,
				Type:     models.TypeCompanyActive,
				Priority: models.PriorityMedium,
				Title:    fmt.Sprintf("%s is active", companyName),
				Message:  fmt.Sprintf("%s has published %d items in the last %dh", companyName, len(companyItems), hours),
				Payload: NotificationPayload{
					CompanyID:     companyID,
					CompanyName:   companyName,
					ItemCount:     len(companyItems),
					WindowHours:   hours,
					ActivityScore: scores[companyID],
				},
			}
			n, err := s.emitOnce(ctx, candidate, settings, companyID, bucket)
			if err != nil {
				return created, err
			}
			created += n
		}
	}

	if settings.CategoryTrends {
		for category, count := range categories {
			if count < s.opts.CategoryMinItems || !prefs.InterestedIn(category) {
				continue
			}

			candidate := &AlertCandidate{
				UserID:   userID,
				Type:     models.TypeCategoryTrend,
				Priority: models.PriorityLow,
				Title:    fmt.Sprintf("Trending: %s", category.Display()),
				Message:  fmt.Sprintf("%d items in %s in the last %dh", count, category, hours),
				Payload: NotificationPayload{
					Category:    category,
					ItemCount:   count,
					WindowHours: hours,
				},
			}
			n, err := s.emitOnce(ctx, candidate, settings, string(category), bucket)
			if err != nil {
				return created, err
			}
			created += n
		}
	}

	return created, nil
}

// emitOnce claims the dedup marker for (user, type, subject, bucket) before
// gating. Losing the claim means an earlier run already produced this alert.
// A failed notification insert releases the marker so a later scan over the
// same bucket can retry; only a gated or persisted candidate keeps the claim.
func (s *TrendService) emitOnce(ctx context.Context, candidate *AlertCandidate, settings *models.NotificationSettings, subject, bucket string) (int, error) {
	marker := models.TrendMarker{
		UserID:  candidate.UserID,
		Type:    candidate.Type,
		Subject: subject,
		Bucket:  bucket,
	}
	if err := s.db.WithContext(ctx).Create(&marker).Error; err != nil {
		if isUniqueConstraintError(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("trend service: claim marker: %w", err)
	}

	metrics.TrendCandidates.WithLabelValues(string(candidate.Type)).Inc()

	stored, err := s.notifier.GateAndPersist(ctx, candidate, settings)
	if err != nil {
		if delErr := s.db.WithContext(ctx).Delete(&models.TrendMarker{}, "id = ?", marker.ID).Error; delErr != nil {
			s.log.Error("trend marker release failed",
				zap.String("user_id", candidate.UserID),
				zap.String("subject", subject),
				zap.Error(delErr))
		}
		return 0, err
	}
	if stored == nil {
		return 0, nil
	}
	return 1, nil
}

// CleanupMarkers removes dedup markers older than the retention period.
func (s *TrendService) CleanupMarkers(ctx context.Context, retention time.Duration) (int64, error) {
	ctx = ensureContext(ctx)

	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	cutoff := s.now().UTC().Add(-retention)
	result := s.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.TrendMarker{})
	if result.Error != nil {
		return 0, fmt.Errorf("trend service: cleanup markers: %w", result.Error)
	}
	return result.RowsAffected, nil
}
