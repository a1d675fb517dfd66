package models

import (
	"time"

	"gorm.io/datatypes"
)

// NotificationType is the closed set of alert variants the engine can emit.
type NotificationType string

const (
	TypeNewNews             NotificationType = "new_news"
	TypeCompanyActive       NotificationType = "company_active"
	TypePricingChange       NotificationType = "pricing_change"
	TypeFundingAnnouncement NotificationType = "funding_announcement"
	TypeProductLaunch       NotificationType = "product_launch"
	TypeCategoryTrend       NotificationType = "category_trend"
	TypeKeywordMatch        NotificationType = "keyword_match"
	TypeCompetitorMilestone NotificationType = "competitor_milestone"
)

// Valid reports whether the type is part of the known set.
func (t NotificationType) Valid() bool {
	switch t {
	case TypeNewNews, TypeCompanyActive, TypePricingChange, TypeFundingAnnouncement,
		TypeProductLaunch, TypeCategoryTrend, TypeKeywordMatch, TypeCompetitorMilestone:
		return true
	}
	return false
}

// NotificationPriority orders alerts for presentation.
type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "low"
	PriorityMedium NotificationPriority = "medium"
	PriorityHigh   NotificationPriority = "high"
)

// Notification is an append-only alert record for one user. The read flag
// only ever transitions false -> true; rows are removed by explicit user
// action or retention cleanup.
type Notification struct {
	BaseModel

	UserID   string               `gorm:"type:uuid;not null;index" json:"user_id"`
	Type     NotificationType     `gorm:"type:varchar(64);not null" json:"type"`
	Title    string               `gorm:"type:varchar(255);not null" json:"title"`
	Message  string               `gorm:"type:text;not null" json:"message"`
	Payload  datatypes.JSON       `json:"payload,omitempty"`
	IsRead   bool                 `gorm:"default:false;index" json:"is_read"`
	ReadAt   *time.Time           `json:"read_at,omitempty"`
	Priority NotificationPriority `gorm:"type:varchar(16);default:'medium'" json:"priority"`
}
