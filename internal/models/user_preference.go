package models

import (
	"gorm.io/datatypes"
)

// DigestFrequency controls how often a user receives digests.
type DigestFrequency string

const (
	DigestDaily  DigestFrequency = "daily"
	DigestWeekly DigestFrequency = "weekly"
	DigestCustom DigestFrequency = "custom"
)

// DigestFormat selects between compact and expanded digest rendering.
type DigestFormat string

const (
	FormatShort    DigestFormat = "short"
	FormatDetailed DigestFormat = "detailed"
)

// UserPreference holds one user's matching configuration: subscriptions,
// interests, keywords and digest delivery options.
type UserPreference struct {
	BaseModel

	UserID string `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`

	SubscribedCompanies  datatypes.JSONSlice[string]       `json:"subscribed_companies"`
	InterestedCategories datatypes.JSONSlice[NewsCategory] `json:"interested_categories"`
	Keywords             datatypes.JSONSlice[string]       `json:"keywords"`

	DigestEnabled          bool            `gorm:"default:false" json:"digest_enabled"`
	DigestFrequency        DigestFrequency `gorm:"type:varchar(16);default:'daily'" json:"digest_frequency"`
	DigestFormat           DigestFormat    `gorm:"type:varchar(16);default:'short'" json:"digest_format"`
	DigestCustomSchedule   datatypes.JSON  `json:"digest_custom_schedule,omitempty"`
	DigestIncludeSummaries bool            `gorm:"default:true" json:"digest_include_summaries"`

	TelegramChatID  string `gorm:"type:varchar(255)" json:"telegram_chat_id,omitempty"`
	TelegramEnabled bool   `gorm:"default:false" json:"telegram_enabled"`

	Email        string `gorm:"type:varchar(255)" json:"email,omitempty"`
	EmailEnabled bool   `gorm:"default:false" json:"email_enabled"`
}

// SubscribedTo reports whether the user follows the given company.
func (p *UserPreference) SubscribedTo(companyID string) bool {
	if companyID == "" {
		return false
	}
	for _, id := range p.SubscribedCompanies {
		if id == companyID {
			return true
		}
	}
	return false
}

// InterestedIn reports whether the user tracks the given category.
func (p *UserPreference) InterestedIn(category NewsCategory) bool {
	if category == "" {
		return false
	}
	for _, c := range p.InterestedCategories {
		if c == category {
			return true
		}
	}
	return false
}
