package models

import (
	"time"
)

// NewsCategory is the closed vocabulary items are classified into upstream.
type NewsCategory string

const (
	CategoryProductUpdate          NewsCategory = "product_update"
	CategoryPricingChange          NewsCategory = "pricing_change"
	CategoryStrategicAnnouncement  NewsCategory = "strategic_announcement"
	CategoryTechnicalUpdate        NewsCategory = "technical_update"
	CategoryFundingNews            NewsCategory = "funding_news"
	CategoryResearchPaper          NewsCategory = "research_paper"
	CategoryCommunityEvent         NewsCategory = "community_event"
	CategoryPartnership            NewsCategory = "partnership"
	CategoryAcquisition            NewsCategory = "acquisition"
	CategoryIntegration            NewsCategory = "integration"
	CategorySecurityUpdate         NewsCategory = "security_update"
	CategoryAPIUpdate              NewsCategory = "api_update"
	CategoryModelRelease           NewsCategory = "model_release"
	CategoryPerformanceImprovement NewsCategory = "performance_improvement"
	CategoryFeatureDeprecation     NewsCategory = "feature_deprecation"
)

// Valid reports whether the category belongs to the known vocabulary.
func (c NewsCategory) Valid() bool {
	switch c {
	case CategoryProductUpdate, CategoryPricingChange, CategoryStrategicAnnouncement,
		CategoryTechnicalUpdate, CategoryFundingNews, CategoryResearchPaper,
		CategoryCommunityEvent, CategoryPartnership, CategoryAcquisition,
		CategoryIntegration, CategorySecurityUpdate, CategoryAPIUpdate,
		CategoryModelRelease, CategoryPerformanceImprovement, CategoryFeatureDeprecation:
		return true
	}
	return false
}

// Display returns a human readable category name ("funding_news" -> "Funding News").
func (c NewsCategory) Display() string {
	if c == "" {
		return "News"
	}
	out := make([]byte, 0, len(c))
	upper := true
	for i := 0; i < len(c); i++ {
		ch := c[i]
		if ch == '_' {
			out = append(out, ' ')
			upper = true
			continue
		}
		if upper && ch >= 'a' && ch <= 'z' {
			ch -= 'a' - 'A'
		}
		upper = false
		out = append(out, ch)
	}
	return string(out)
}

// SourceType identifies the kind of channel an item was acquired from.
type SourceType string

const (
	SourceBlog         SourceType = "blog"
	SourceTwitter      SourceType = "twitter"
	SourceGitHub       SourceType = "github"
	SourceReddit       SourceType = "reddit"
	SourceNewsSite     SourceType = "news_site"
	SourcePressRelease SourceType = "press_release"
)

// NewsItem is a single piece of tracked content. The source URL is the sole
// de-duplication key for ingestion; rows are immutable after creation apart
// from re-classification by an external process.
type NewsItem struct {
	BaseModel

	Title         string       `gorm:"type:varchar(500);not null" json:"title"`
	Content       string       `gorm:"type:text" json:"content,omitempty"`
	Summary       string       `gorm:"type:text" json:"summary,omitempty"`
	SourceURL     string       `gorm:"type:varchar(1000);not null;uniqueIndex" json:"source_url"`
	SourceType    SourceType   `gorm:"type:varchar(32);not null" json:"source_type"`
	CompanyID     *string      `gorm:"type:uuid;index" json:"company_id,omitempty"`
	Category      NewsCategory `gorm:"type:varchar(64);index" json:"category,omitempty"`
	PriorityScore float64      `gorm:"default:0" json:"priority_score"`
	PublishedAt   time.Time    `gorm:"index;not null" json:"published_at"`

	Company *Company `gorm:"foreignKey:CompanyID" json:"company,omitempty"`
}
