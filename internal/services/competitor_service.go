package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/insighthub/server/internal/analytics"
	"github.com/insighthub/server/internal/models"
	apperrors "github.com/insighthub/server/pkg/errors"
	"github.com/insighthub/server/pkg/logger"
	"github.com/insighthub/server/pkg/validator"
)

// CompareInput bounds one comparison run.
type CompareInput struct {
	CompanyIDs []string  `json:"company_ids" validate:"required,min=2,max=10"`
	From       time.Time `json:"from" validate:"required"`
	To         time.Time `json:"to" validate:"required"`
	TopNews    int       `json:"top_news,omitempty"`
	Name       string    `json:"name,omitempty"`
	Save       bool      `json:"save,omitempty"`
}

// CompanyMetrics is one company's side of a comparison.
type CompanyMetrics struct {
	CompanyID     string                      `json:"company_id"`
	CompanyName   string                      `json:"company_name"`
	NewsVolume    int                         `json:"news_volume"`
	ActivityScore float64                     `json:"activity_score"`
	Categories    map[models.NewsCategory]int `json:"categories"`
	DailyActivity map[string]int              `json:"daily_activity"`
	TopNews       []models.NewsItem           `json:"top_news"`
}

// Comparison is the computed result, ordered by activity score descending.
type Comparison struct {
	From      time.Time        `json:"from"`
	To        time.Time        `json:"to"`
	Companies []CompanyMetrics `json:"companies"`
	SavedID   string           `json:"saved_id,omitempty"`
}

// CompetitorService computes side-by-side activity comparisons between
// tracked companies, optionally persisting the result.
type CompetitorService struct {
	db   *gorm.DB
	news *NewsService
	log  *zap.Logger
}

// NewCompetitorService constructs a CompetitorService.
func NewCompetitorService(db *gorm.DB, news *NewsService) (*CompetitorService, error) {
	if db == nil {
		return nil, errors.New("competitor service: db is required")
	}
	if news == nil {
		return nil, errors.New("competitor service: news service is required")
	}
	return &CompetitorService{db: db, news: news, log: logger.WithModule("competitors")}, nil
}

// Compare computes per-company metrics over [From, To) and, when requested,
// saves the result for the user.
func (s *CompetitorService) Compare(ctx context.Context, userID string, input CompareInput) (*Comparison, error) {
	ctx = ensureContext(ctx)

	if err := validator.ValidateStruct(input); err != nil {
		return nil, fmt.Errorf("competitor service: %w", err)
	}

	ids := normaliseStrings(input.CompanyIDs)
	if len(ids) < 2 {
		return nil, apperrors.NewBadRequest("at least two distinct companies are required")
	}
	if !input.From.Before(input.To) {
		return nil, apperrors.NewBadRequest("comparison period is empty")
	}

	topNews := input.TopNews
	if topNews <= 0 || topNews > 20 {
		topNews = 5
	}

	comparison := &Comparison{From: input.From.UTC(), To: input.To.UTC()}
	for _, companyID := range ids {
		company, err := s.news.GetCompany(ctx, companyID)
		if err != nil {
			return nil, fmt.Errorf("competitor service: company %s: %w", companyID, err)
		}

		items, err := s.news.ListItems(ctx, ListNewsInput{
			CompanyID: companyID,
			From:      comparison.From,
			To:        comparison.To,
			Limit:     500,
		})
		if err != nil {
			return nil, err
		}

		top := make([]models.NewsItem, len(items))
		copy(top, items)
		sort.SliceStable(top, func(i, j int) bool { return top[i].PriorityScore > top[j].PriorityScore })
		if len(top) > topNews {
			top = top[:topNews]
		}

		comparison.Companies = append(comparison.Companies, CompanyMetrics{
			CompanyID:     companyID,
			CompanyName:   company.Name,
			NewsVolume:    len(items),
			ActivityScore: analytics.Score(items, comparison.From, comparison.To),
			Categories:    analytics.CategoryDistribution(items),
			DailyActivity: analytics.DailyActivity(items),
			TopNews:       top,
		})
	}

	sort.SliceStable(comparison.Companies, func(i, j int) bool {
		return comparison.Companies[i].ActivityScore > comparison.Companies[j].ActivityScore
	})

	if input.Save {
		saved, err := s.save(ctx, userID, input, comparison)
		if err != nil {
			return nil, err
		}
		comparison.SavedID = saved.ID
	}

	s.log.Debug("comparison computed",
		zap.Strings("company_ids", ids),
		zap.Int("companies", len(comparison.Companies)))
	return comparison, nil
}

func (s *CompetitorService) save(ctx context.Context, userID string, input CompareInput, comparison *Comparison) (*models.CompetitorComparison, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.NewBadRequest("user id is required to save a comparison")
	}

	metrics, err := json.Marshal(comparison.Companies)
	if err != nil {
		return nil, fmt.Errorf("competitor service: marshal metrics: %w", err)
	}

	record := models.CompetitorComparison{
		UserID:     userID,
		Name:       strings.TrimSpace(input.Name),
		CompanyIDs: normaliseStrings(input.CompanyIDs),
		DateFrom:   comparison.From,
		DateTo:     comparison.To,
		Metrics:    metrics,
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, fmt.Errorf("competitor service: save comparison: %w", err)
	}
	return &record, nil
}

// ListSaved returns the user's saved comparisons, newest first.
func (s *CompetitorService) ListSaved(ctx context.Context, userID string) ([]models.CompetitorComparison, error) {
	ctx = ensureContext(ctx)

	var records []models.CompetitorComparison
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("competitor service: list saved: %w", err)
	}
	return records, nil
}

// DeleteSaved removes one saved comparison owned by the user.
func (s *CompetitorService) DeleteSaved(ctx context.Context, userID, comparisonID string) error {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", comparisonID, userID).
		Delete(&models.CompetitorComparison{})
	if result.Error != nil {
		return fmt.Errorf("competitor service: delete saved: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
