package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/insighthub/server/internal/models"
	apperrors "github.com/insighthub/server/pkg/errors"
	"github.com/insighthub/server/pkg/logger"
	"github.com/insighthub/server/pkg/metrics"
)

// ListNotificationsInput filters a user's notification listing.
type ListNotificationsInput struct {
	UnreadOnly bool
	Type       models.NotificationType
	Limit      int
	Offset     int
}

// NotificationService is the gatekeeper between evaluated candidates and the
// notifications table, and the owner of read-state transitions and retention.
type NotificationService struct {
	db  *gorm.DB
	now func() time.Time
	log *zap.Logger
}

// NewNotificationService constructs a NotificationService. A nil clock falls
// back to time.Now.
func NewNotificationService(db *gorm.DB, now func() time.Time) (*NotificationService, error) {
	if db == nil {
		return nil, errors.New("notification service: db is required")
	}
	if now == nil {
		now = time.Now
	}
	return &NotificationService{db: db, now: now, log: logger.WithModule("notifications")}, nil
}

// GateAndPersist applies the final settings gates to a candidate and inserts
// it when allowed. A gated candidate returns (nil, nil): gating is not an
// error, it is the settings doing their job.
func (s *NotificationService) GateAndPersist(ctx context.Context, candidate *AlertCandidate, settings *models.NotificationSettings) (*models.Notification, error) {
	ctx = ensureContext(ctx)

	if candidate == nil {
		return nil, errors.New("notification service: candidate is required")
	}
	if settings == nil {
		return nil, errors.New("notification service: settings are required")
	}
	if !candidate.Type.Valid() {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown notification type %q", candidate.Type))
	}

	if !settings.Enabled {
		metrics.NotificationsGated.WithLabelValues("global").Inc()
		return nil, nil
	}
	if !settings.TypeEnabled(candidate.Type) {
		metrics.NotificationsGated.WithLabelValues("type").Inc()
		return nil, nil
	}

	notification := models.Notification{
		UserID:   candidate.UserID,
		Type:     candidate.Type,
		Title:    candidate.Title,
		Message:  candidate.Message,
		Payload:  marshalPayload(candidate.Payload),
		Priority: candidate.Priority,
	}

	if err := s.db.WithContext(ctx).Create(&notification).Error; err != nil {
		return nil, fmt.Errorf("notification service: persist: %w", err)
	}

	metrics.NotificationsCreated.WithLabelValues(string(candidate.Type)).Inc()
	s.log.Debug("notification persisted",
		zap.String("user_id", candidate.UserID),
		zap.String("type", string(candidate.Type)),
		zap.String("priority", string(candidate.Priority)))
	return &notification, nil
}

// List returns a user's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID string, input ListNotificationsInput) ([]models.Notification, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.NewBadRequest("user id is required")
	}

	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if input.UnreadOnly {
		query = query.Where("is_read = ?", false)
	}
	if input.Type != "" {
		query = query.Where("type = ?", input.Type)
	}

	limit := input.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var notifications []models.Notification
	if err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(maxInt(0, input.Offset)).
		Find(&notifications).Error; err != nil {
		return nil, fmt.Errorf("notification service: list: %w", err)
	}
	return notifications, nil
}

// UnreadCount returns the number of unread notifications for the user.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	ctx = ensureContext(ctx)

	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("notification service: unread count: %w", err)
	}
	return count, nil
}

// MarkRead flips one notification to read. Re-marking an already read row is
// a no-op that preserves the original read timestamp.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) error {
	ctx = ensureContext(ctx)

	now := s.now().UTC()
	result := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND user_id = ? AND is_read = ?", notificationID, userID, false).
		Updates(map[string]any{"is_read": true, "read_at": now})
	if result.Error != nil {
		return fmt.Errorf("notification service: mark read: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.Notification{}).
			Where("id = ? AND user_id = ?", notificationID, userID).
			Count(&count).Error; err != nil {
			return fmt.Errorf("notification service: mark read: %w", err)
		}
		if count == 0 {
			return apperrors.ErrNotFound
		}
	}
	return nil
}

// MarkAllRead flips every unread notification for the user and returns how
// many rows changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	ctx = ensureContext(ctx)

	now := s.now().UTC()
	result := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]any{"is_read": true, "read_at": now})
	if result.Error != nil {
		return 0, fmt.Errorf("notification service: mark all read: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Delete removes one notification owned by the user.
func (s *NotificationService) Delete(ctx context.Context, userID, notificationID string) error {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Delete(&models.Notification{})
	if result.Error != nil {
		return fmt.Errorf("notification service: delete: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// CleanupOlderThan removes read notifications older than the retention
// period. Unread rows are never reaped regardless of age.
func (s *NotificationService) CleanupOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	ctx = ensureContext(ctx)

	if retention <= 0 {
		return 0, apperrors.NewBadRequest("retention must be positive")
	}

	cutoff := s.now().UTC().Add(-retention)
	result := s.db.WithContext(ctx).
		Where("is_read = ? AND created_at < ?", true, cutoff).
		Delete(&models.Notification{})
	if result.Error != nil {
		return 0, fmt.Errorf("notification service: cleanup: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		s.log.Info("notification retention cleanup",
			zap.Int64("removed", result.RowsAffected),
			zap.Time("cutoff", cutoff))
	}
	return result.RowsAffected, nil
}
