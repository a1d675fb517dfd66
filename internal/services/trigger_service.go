package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/insighthub/server/internal/models"
	"github.com/insighthub/server/pkg/logger"
)

// NotificationPayload is the structured context attached to each alert so
// downstream consumers never need to re-read the originating item.
type NotificationPayload struct {
	NewsItemID    string              `json:"news_item_id,omitempty"`
	CompanyID     string              `json:"company_id,omitempty"`
	CompanyName   string              `json:"company_name,omitempty"`
	Category      models.NewsCategory `json:"category,omitempty"`
	Keyword       string              `json:"keyword,omitempty"`
	PriorityScore float64             `json:"priority_score,omitempty"`
	SourceURL     string              `json:"source_url,omitempty"`
	ItemCount     int                 `json:"item_count,omitempty"`
	WindowHours   int                 `json:"window_hours,omitempty"`
	ActivityScore float64             `json:"activity_score,omitempty"`
}

// AlertCandidate is a fully evaluated alert that has passed the trigger
// rules but not yet the persistence gates.
type AlertCandidate struct {
	UserID   string
	Type     models.NotificationType
	Priority models.NotificationPriority
	Title    string
	Message  string
	Payload  NotificationPayload
}

// TriggerService evaluates freshly ingested items against every user's
// preferences and hands surviving candidates to the notifier.
type TriggerService struct {
	preferences *PreferenceService
	news        *NewsService
	notifier    *NotificationService
	log         *zap.Logger
}

// NewTriggerService constructs a TriggerService.
func NewTriggerService(preferences *PreferenceService, news *NewsService, notifier *NotificationService) (*TriggerService, error) {
	if preferences == nil {
		return nil, errors.New("trigger service: preference service is required")
	}
	if news == nil {
		return nil, errors.New("trigger service: news service is required")
	}
	if notifier == nil {
		return nil, errors.New("trigger service: notification service is required")
	}
	return &TriggerService{
		preferences: preferences,
		news:        news,
		notifier:    notifier,
		log:         logger.WithModule("trigger"),
	}, nil
}

// Evaluate runs the trigger rules for one user against one item. It is pure:
// no storage access, no clock. A nil result means no alert fires.
//
// Rule order: the company subscription establishes a baseline new-news alert,
// category refinement may upgrade its type and priority, a keyword hit
// overrides everything, and the priority threshold is applied last to
// whatever survived.
func Evaluate(item *models.NewsItem, company *models.Company, prefs *models.UserPreference, settings *models.NotificationSettings) *AlertCandidate {
	if item == nil || prefs == nil || settings == nil {
		return nil
	}

	var candidate *AlertCandidate

	companyName := ""
	if company != nil {
		companyName = company.Name
	}

	// Every trigger alert shares the same title form, whichever rule fires.
	title := item.Category.Display()
	if companyName != "" {
		title = fmt.Sprintf("%s: %s", companyName, title)
	}

	if settings.CompanyAlerts && item.CompanyID != nil && prefs.SubscribedTo(*item.CompanyID) {
		alertType := models.TypeNewNews
		priority := models.PriorityMedium
		switch item.Category {
		case models.CategoryPricingChange:
			alertType, priority = models.TypePricingChange, models.PriorityHigh
		case models.CategoryFundingNews:
			alertType, priority = models.TypeFundingAnnouncement, models.PriorityHigh
		case models.CategoryProductUpdate:
			alertType, priority = models.TypeProductLaunch, models.PriorityMedium
		}

		candidate = &AlertCandidate{
			UserID:   prefs.UserID,
			Type:     alertType,
			Priority: priority,
			Title:    title,
			Message:  item.Title,
		}
	}

	if settings.KeywordAlerts {
		if keyword := matchKeyword(item, prefs.Keywords); keyword != "" {
			candidate = &AlertCandidate{
				UserID:   prefs.UserID,
				Type:     models.TypeKeywordMatch,
				Priority: models.PriorityHigh,
				Title:    title,
				Message:  item.Title,
				Payload:  NotificationPayload{Keyword: keyword},
			}
		}
	}

	if candidate == nil {
		return nil
	}
	if item.PriorityScore < settings.MinPriorityScore {
		return nil
	}

	candidate.Payload.NewsItemID = item.ID
	candidate.Payload.Category = item.Category
	candidate.Payload.PriorityScore = item.PriorityScore
	candidate.Payload.SourceURL = item.SourceURL
	if item.CompanyID != nil {
		candidate.Payload.CompanyID = *item.CompanyID
	}
	candidate.Payload.CompanyName = companyName
	return candidate
}

// ProcessNewItem fans a freshly ingested item out to every user. Evaluation
// failures for one user never block the rest; the first error is returned
// after the full sweep so the scheduler can surface it.
func (s *TriggerService) ProcessNewItem(ctx context.Context, item *models.NewsItem) (int, error) {
	ctx = ensureContext(ctx)

	if item == nil {
		return 0, errors.New("trigger service: item is required")
	}

	var company *models.Company
	if item.CompanyID != nil {
		found, err := s.news.GetCompany(ctx, *item.CompanyID)
		if err == nil {
			company = found
		} else {
			s.log.Warn("company lookup failed, evaluating without company name",
				zap.String("company_id", *item.CompanyID),
				zap.Error(err))
		}
	}

	userIDs, err := s.preferences.ListEnabledUserIDs(ctx)
	if err != nil {
		return 0, err
	}

	created := 0
	var firstErr error
	for _, userID := range userIDs {
		n, err := s.evaluateForUser(ctx, item, company, userID)
		if err != nil {
			s.log.Error("trigger evaluation failed",
				zap.String("user_id", userID),
				zap.String("news_item_id", item.ID),
				zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		created += n
	}

	s.log.Info("item processed",
		zap.String("news_item_id", item.ID),
		zap.Int("users", len(userIDs)),
		zap.Int("alerts", created))
	return created, firstErr
}

func (s *TriggerService) evaluateForUser(ctx context.Context, item *models.NewsItem, company *models.Company, userID string) (int, error) {
	prefs, err := s.preferences.GetPreferences(ctx, userID)
	if err != nil {
		return 0, err
	}
	settings, err := s.preferences.GetSettings(ctx, userID)
	if err != nil {
		return 0, err
	}

	candidate := Evaluate(item, company, prefs, settings)
	if candidate == nil {
		return 0, nil
	}

	stored, err := s.notifier.GateAndPersist(ctx, candidate, settings)
	if err != nil {
		return 0, err
	}
	if stored == nil {
		return 0, nil
	}
	return 1, nil
}

func marshalPayload(payload NotificationPayload) []byte {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return raw
}
