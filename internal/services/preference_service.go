package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/insighthub/server/internal/cache"
	"github.com/insighthub/server/internal/models"
	apperrors "github.com/insighthub/server/pkg/errors"
	"github.com/insighthub/server/pkg/logger"
	"github.com/insighthub/server/pkg/validator"
)

const (
	prefsCachePrefix    = "prefs:"
	settingsCachePrefix = "settings:"
)

// UpdatePreferenceInput carries the updatable matching configuration for a
// user. Nil slices leave the stored value untouched.
type UpdatePreferenceInput struct {
	SubscribedCompanies  []string              `json:"subscribed_companies,omitempty"`
	InterestedCategories []models.NewsCategory `json:"interested_categories,omitempty"`
	Keywords             []string              `json:"keywords,omitempty"`

	DigestEnabled          *bool                   `json:"digest_enabled,omitempty"`
	DigestFrequency        *models.DigestFrequency `json:"digest_frequency,omitempty" validate:"omitempty,oneof=daily weekly custom"`
	DigestFormat           *models.DigestFormat    `json:"digest_format,omitempty" validate:"omitempty,oneof=short detailed"`
	DigestCustomSchedule   json.RawMessage         `json:"digest_custom_schedule,omitempty"`
	DigestIncludeSummaries *bool                   `json:"digest_include_summaries,omitempty"`

	TelegramChatID  *string `json:"telegram_chat_id,omitempty"`
	TelegramEnabled *bool   `json:"telegram_enabled,omitempty"`

	Email        *string `json:"email,omitempty" validate:"omitempty,email"`
	EmailEnabled *bool   `json:"email_enabled,omitempty"`
}

// UpdateSettingsInput carries the updatable gating configuration for a user.
type UpdateSettingsInput struct {
	Enabled           *bool           `json:"enabled,omitempty"`
	NotificationTypes json.RawMessage `json:"notification_types,omitempty"`
	MinPriorityScore  *float64        `json:"min_priority_score,omitempty" validate:"omitempty,gte=0,lte=1"`
	CompanyAlerts     *bool           `json:"company_alerts,omitempty"`
	CategoryTrends    *bool           `json:"category_trends,omitempty"`
	KeywordAlerts     *bool           `json:"keyword_alerts,omitempty"`
}

// PreferenceService reads and writes per-user matching preferences and
// gating settings, caching reads through an injected store.
type PreferenceService struct {
	db    *gorm.DB
	cache cache.Store
	ttl   time.Duration
	log   *zap.Logger
}

// NewPreferenceService constructs a PreferenceService. The cache store is
// optional; with a nil store every read goes to the database.
func NewPreferenceService(db *gorm.DB, store cache.Store, ttl time.Duration) (*PreferenceService, error) {
	if db == nil {
		return nil, errors.New("preference service: db is required")
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PreferenceService{
		db:    db,
		cache: store,
		ttl:   ttl,
		log:   logger.WithModule("preferences"),
	}, nil
}

// GetPreferences returns the user's preferences, creating a default row on
// first access.
func (s *PreferenceService) GetPreferences(ctx context.Context, userID string) (*models.UserPreference, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.NewBadRequest("user id is required")
	}

	var cached models.UserPreference
	if s.cacheGet(ctx, prefsCachePrefix+userID, &cached) {
		return &cached, nil
	}

	var prefs models.UserPreference
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&prefs).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		prefs = models.UserPreference{
			UserID:                 userID,
			DigestFrequency:        models.DigestDaily,
			DigestFormat:           models.FormatShort,
			DigestIncludeSummaries: true,
		}
		result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&prefs)
		if result.Error != nil {
			return nil, fmt.Errorf("preference service: create defaults: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			// Another writer raced us to the default row.
			if ferr := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&prefs).Error; ferr != nil {
				return nil, fmt.Errorf("preference service: load defaults: %w", ferr)
			}
		}
	} else if err != nil {
		return nil, fmt.Errorf("preference service: get preferences: %w", err)
	}

	s.cacheSet(ctx, prefsCachePrefix+userID, &prefs)
	return &prefs, nil
}

// UpdatePreferences applies a partial update to the user's preferences and
// invalidates the cache entry.
func (s *PreferenceService) UpdatePreferences(ctx context.Context, userID string, input UpdatePreferenceInput) (*models.UserPreference, error) {
	ctx = ensureContext(ctx)

	if err := validator.ValidateStruct(input); err != nil {
		return nil, fmt.Errorf("preference service: %w", err)
	}
	for _, c := range input.InterestedCategories {
		if !c.Valid() {
			return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown category %q", c))
		}
	}

	prefs, err := s.GetPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}

	if input.SubscribedCompanies != nil {
		prefs.SubscribedCompanies = normaliseStrings(input.SubscribedCompanies)
	}
	if input.InterestedCategories != nil {
		prefs.InterestedCategories = input.InterestedCategories
	}
	if input.Keywords != nil {
		prefs.Keywords = normaliseStrings(input.Keywords)
	}
	if input.DigestEnabled != nil {
		prefs.DigestEnabled = *input.DigestEnabled
	}
	if input.DigestFrequency != nil {
		prefs.DigestFrequency = *input.DigestFrequency
	}
	if input.DigestFormat != nil {
		prefs.DigestFormat = *input.DigestFormat
	}
	if input.DigestCustomSchedule != nil {
		prefs.DigestCustomSchedule = []byte(input.DigestCustomSchedule)
	}
	if input.DigestIncludeSummaries != nil {
		prefs.DigestIncludeSummaries = *input.DigestIncludeSummaries
	}
	if input.TelegramChatID != nil {
		prefs.TelegramChatID = strings.TrimSpace(*input.TelegramChatID)
	}
	if input.TelegramEnabled != nil {
		prefs.TelegramEnabled = *input.TelegramEnabled
	}
	if input.Email != nil {
		prefs.Email = strings.TrimSpace(*input.Email)
	}
	if input.EmailEnabled != nil {
		prefs.EmailEnabled = *input.EmailEnabled
	}

	if err := s.db.WithContext(ctx).Save(prefs).Error; err != nil {
		return nil, fmt.Errorf("preference service: update preferences: %w", err)
	}

	s.cacheInvalidate(ctx, prefsCachePrefix+userID)
	s.log.Debug("preferences updated", zap.String("user_id", userID))
	return prefs, nil
}

// GetSettings returns the user's gating settings, creating a permissive
// default row on first access.
func (s *PreferenceService) GetSettings(ctx context.Context, userID string) (*models.NotificationSettings, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.NewBadRequest("user id is required")
	}

	var cached models.NotificationSettings
	if s.cacheGet(ctx, settingsCachePrefix+userID, &cached) {
		return &cached, nil
	}

	var settings models.NotificationSettings
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		settings = models.NotificationSettings{
			UserID:         userID,
			Enabled:        true,
			CompanyAlerts:  true,
			CategoryTrends: true,
			KeywordAlerts:  true,
		}
		result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&settings)
		if result.Error != nil {
			return nil, fmt.Errorf("preference service: create settings: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			if ferr := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&settings).Error; ferr != nil {
				return nil, fmt.Errorf("preference service: load settings: %w", ferr)
			}
		}
	} else if err != nil {
		return nil, fmt.Errorf("preference service: get settings: %w", err)
	}

	s.cacheSet(ctx, settingsCachePrefix+userID, &settings)
	return &settings, nil
}

// UpdateSettings applies a partial update to the user's gating settings and
// invalidates the cache entry.
func (s *PreferenceService) UpdateSettings(ctx context.Context, userID string, input UpdateSettingsInput) (*models.NotificationSettings, error) {
	ctx = ensureContext(ctx)

	if err := validator.ValidateStruct(input); err != nil {
		return nil, fmt.Errorf("preference service: %w", err)
	}
	if input.NotificationTypes != nil {
		var flags map[string]bool
		if err := json.Unmarshal(input.NotificationTypes, &flags); err != nil {
			return nil, apperrors.NewBadRequest("notification_types must be an object of type -> bool")
		}
		for name := range flags {
			if !models.NotificationType(name).Valid() {
				return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown notification type %q", name))
			}
		}
	}

	settings, err := s.GetSettings(ctx, userID)
	if err != nil {
		return nil, err
	}

	if input.Enabled != nil {
		settings.Enabled = *input.Enabled
	}
	if input.NotificationTypes != nil {
		settings.NotificationTypes = []byte(input.NotificationTypes)
	}
	if input.MinPriorityScore != nil {
		settings.MinPriorityScore = *input.MinPriorityScore
	}
	if input.CompanyAlerts != nil {
		settings.CompanyAlerts = *input.CompanyAlerts
	}
	if input.CategoryTrends != nil {
		settings.CategoryTrends = *input.CategoryTrends
	}
	if input.KeywordAlerts != nil {
		settings.KeywordAlerts = *input.KeywordAlerts
	}

	if err := s.db.WithContext(ctx).Save(settings).Error; err != nil {
		return nil, fmt.Errorf("preference service: update settings: %w", err)
	}

	s.cacheInvalidate(ctx, settingsCachePrefix+userID)
	s.log.Debug("notification settings updated", zap.String("user_id", userID))
	return settings, nil
}

// ListUserIDs returns the ids of every user with a preference row. The
// trigger fan-out and digest dispatch iterate this set.
func (s *PreferenceService) ListUserIDs(ctx context.Context) ([]string, error) {
	ctx = ensureContext(ctx)

	var ids []string
	if err := s.db.WithContext(ctx).
		Model(&models.UserPreference{}).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("preference service: list user ids: %w", err)
	}
	return ids, nil
}

// ListEnabledUserIDs returns the ids of users whose notifications are not
// globally disabled. Users without a settings row are enabled by default, so
// the join is a LEFT one.
func (s *PreferenceService) ListEnabledUserIDs(ctx context.Context) ([]string, error) {
	ctx = ensureContext(ctx)

	var ids []string
	if err := s.db.WithContext(ctx).
		Model(&models.UserPreference{}).
		Joins("LEFT JOIN notification_settings ON notification_settings.user_id = user_preferences.user_id").
		Where("notification_settings.enabled IS NULL OR notification_settings.enabled = ?", true).
		Order("user_preferences.user_id ASC").
		Pluck("user_preferences.user_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("preference service: list enabled user ids: %w", err)
	}
	return ids, nil
}

// ListDigestUsers returns preferences for users with digests enabled at the
// given frequency.
func (s *PreferenceService) ListDigestUsers(ctx context.Context, frequency models.DigestFrequency) ([]models.UserPreference, error) {
	ctx = ensureContext(ctx)

	var prefs []models.UserPreference
	if err := s.db.WithContext(ctx).
		Where("digest_enabled = ? AND digest_frequency = ?", true, frequency).
		Order("user_id ASC").
		Find(&prefs).Error; err != nil {
		return nil, fmt.Errorf("preference service: list digest users: %w", err)
	}
	return prefs, nil
}

func (s *PreferenceService) cacheGet(ctx context.Context, key string, out any) bool {
	if s.cache == nil {
		return false
	}
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil || !ok {
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		// Stale or corrupt entry; drop it and fall through to the database.
		_ = s.cache.Delete(ctx, key)
		return false
	}
	return true
}

func (s *PreferenceService) cacheSet(ctx context.Context, key string, value any) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
		s.log.Debug("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *PreferenceService) cacheInvalidate(ctx context.Context, keys ...string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.log.Debug("cache invalidate failed", zap.Error(err))
	}
}
