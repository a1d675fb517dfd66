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
	"github.com/insighthub/server/pkg/validator"
)

// CreateNewsItemInput defines attributes required to ingest a news item.
type CreateNewsItemInput struct {
	Title         string              `json:"title" validate:"required,max=500"`
	Content       string              `json:"content"`
	Summary       string              `json:"summary"`
	SourceURL     string              `json:"source_url" validate:"required,url,max=1000"`
	SourceType    models.SourceType   `json:"source_type" validate:"required"`
	CompanyID     *string             `json:"company_id,omitempty"`
	Category      models.NewsCategory `json:"category,omitempty"`
	PriorityScore float64             `json:"priority_score" validate:"gte=0,lte=1"`
	PublishedAt   time.Time           `json:"published_at" validate:"required"`
}

// ListNewsInput defines filters for querying news items.
type ListNewsInput struct {
	CompanyID   string
	CompanyIDs  []string
	Category    models.NewsCategory
	From        time.Time
	To          time.Time
	MinPriority *float64
	Limit       int
	Offset      int
}

// NewsService is the content accessor: ingestion with source-url dedup plus
// windowed reads for the trigger, trend, and digest paths.
type NewsService struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewNewsService constructs a NewsService.
func NewNewsService(db *gorm.DB) (*NewsService, error) {
	if db == nil {
		return nil, errors.New("news service: db is required")
	}
	return &NewsService{db: db, log: logger.WithModule("news")}, nil
}

// CreateItem ingests a news item. The source URL is the sole dedup key: an
// existing row is returned untouched with created == false.
func (s *NewsService) CreateItem(ctx context.Context, input CreateNewsItemInput) (*models.NewsItem, bool, error) {
	ctx = ensureContext(ctx)

	if err := validator.ValidateStruct(input); err != nil {
		return nil, false, fmt.Errorf("news service: %w", err)
	}
	if input.Category != "" && !input.Category.Valid() {
		return nil, false, apperrors.NewBadRequest(fmt.Sprintf("unknown category %q", input.Category))
	}

	if existing, err := s.GetByURL(ctx, input.SourceURL); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, false, err
	}

	item := models.NewsItem{
		Title:         strings.TrimSpace(input.Title),
		Content:       input.Content,
		Summary:       input.Summary,
		SourceURL:     strings.TrimSpace(input.SourceURL),
		SourceType:    input.SourceType,
		CompanyID:     input.CompanyID,
		Category:      input.Category,
		PriorityScore: input.PriorityScore,
		PublishedAt:   input.PublishedAt.UTC(),
	}

	if err := s.db.WithContext(ctx).Create(&item).Error; err != nil {
		if isUniqueConstraintError(err) {
			// Lost a concurrent ingestion race; the winner's row is canonical.
			existing, gerr := s.GetByURL(ctx, input.SourceURL)
			if gerr != nil {
				return nil, false, gerr
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("news service: create item: %w", err)
	}

	s.log.Debug("news item ingested",
		zap.String("id", item.ID),
		zap.String("category", string(item.Category)))
	return &item, true, nil
}

// GetByURL loads an item by its source URL.
func (s *NewsService) GetByURL(ctx context.Context, url string) (*models.NewsItem, error) {
	ctx = ensureContext(ctx)

	var item models.NewsItem
	err := s.db.WithContext(ctx).Where("source_url = ?", strings.TrimSpace(url)).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("news service: get by url: %w", err)
	}
	return &item, nil
}

// ListItems returns items matching the supplied filters ordered by recency.
func (s *NewsService) ListItems(ctx context.Context, input ListNewsInput) ([]models.NewsItem, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Model(&models.NewsItem{})

	if len(input.CompanyIDs) > 0 {
		query = query.Where("company_id IN ?", input.CompanyIDs)
	} else if input.CompanyID != "" {
		query = query.Where("company_id = ?", input.CompanyID)
	}
	if input.Category != "" {
		query = query.Where("category = ?", input.Category)
	}
	if !input.From.IsZero() {
		query = query.Where("published_at >= ?", input.From)
	}
	if !input.To.IsZero() {
		query = query.Where("published_at < ?", input.To)
	}
	if input.MinPriority != nil {
		query = query.Where("priority_score >= ?", *input.MinPriority)
	}

	limit := input.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var items []models.NewsItem
	if err := query.
		Order("published_at DESC").
		Limit(limit).
		Offset(maxInt(0, input.Offset)).
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("news service: list items: %w", err)
	}
	return items, nil
}

// ListWindow returns every item published within [from, to), oldest first.
// Trend scans and digests read through this.
func (s *NewsService) ListWindow(ctx context.Context, from, to time.Time) ([]models.NewsItem, error) {
	ctx = ensureContext(ctx)

	var items []models.NewsItem
	if err := s.db.WithContext(ctx).
		Where("published_at >= ? AND published_at < ?", from, to).
		Order("published_at ASC").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("news service: list window: %w", err)
	}
	return items, nil
}

// GetCompany loads a tracked company by id.
func (s *NewsService) GetCompany(ctx context.Context, id string) (*models.Company, error) {
	ctx = ensureContext(ctx)

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperrors.NewBadRequest("company id is required")
	}

	var company models.Company
	err := s.db.WithContext(ctx).First(&company, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("news service: get company: %w", err)
	}
	return &company, nil
}

// ListCompanies returns all tracked companies ordered by name.
func (s *NewsService) ListCompanies(ctx context.Context) ([]models.Company, error) {
	ctx = ensureContext(ctx)

	var companies []models.Company
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&companies).Error; err != nil {
		return nil, fmt.Errorf("news service: list companies: %w", err)
	}
	return companies, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
