package models

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// NotificationSettings is the per-user gating configuration, 1:1 with
// UserPreference. The per-type map and the three category gates are
// intentionally redundant operator controls; category gates are consulted
// first by the rule evaluators, the type map last by the persister.
type NotificationSettings struct {
	BaseModel

	UserID  string `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	Enabled bool   `gorm:"default:true" json:"enabled"`

	// NotificationTypes maps NotificationType -> enabled. An absent entry
	// means the type is allowed.
	NotificationTypes datatypes.JSON `json:"notification_types,omitempty"`

	// MinPriorityScore shares the [0,1] scale of NewsItem.PriorityScore.
	MinPriorityScore float64 `gorm:"default:0" json:"min_priority_score"`

	CompanyAlerts  bool `gorm:"default:true" json:"company_alerts"`
	CategoryTrends bool `gorm:"default:true" json:"category_trends"`
	KeywordAlerts  bool `gorm:"default:true" json:"keyword_alerts"`
}

// TypeEnabled reports whether the given alert type is allowed by the
// per-type map. Absent entries and an unparseable map default to enabled.
func (s *NotificationSettings) TypeEnabled(t NotificationType) bool {
	if len(s.NotificationTypes) == 0 {
		return true
	}

	var flags map[string]bool
	if err := json.Unmarshal(s.NotificationTypes, &flags); err != nil {
		return true
	}

	enabled, present := flags[string(t)]
	if !present {
		return true
	}
	return enabled
}
