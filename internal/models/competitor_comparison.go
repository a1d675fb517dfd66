package models

import (
	"time"

	"gorm.io/datatypes"
)

// CompetitorComparison is a saved side-by-side analysis of several companies
// over a period, with the computed metrics kept as JSON.
type CompetitorComparison struct {
	BaseModel

	UserID     string                      `gorm:"type:uuid;not null;index" json:"user_id"`
	Name       string                      `gorm:"type:varchar(255)" json:"name,omitempty"`
	CompanyIDs datatypes.JSONSlice[string] `json:"company_ids"`
	DateFrom   time.Time                   `gorm:"not null" json:"date_from"`
	DateTo     time.Time                   `gorm:"not null" json:"date_to"`
	Metrics    datatypes.JSON              `json:"metrics,omitempty"`
}
