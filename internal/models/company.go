package models

// Company represents a tracked organization users can subscribe to.
type Company struct {
	BaseModel

	Name        string `gorm:"type:varchar(255);not null;uniqueIndex" json:"name"`
	Website     string `gorm:"type:varchar(500)" json:"website,omitempty"`
	Description string `gorm:"type:text" json:"description,omitempty"`
	LogoURL     string `gorm:"type:varchar(500)" json:"logo_url,omitempty"`
}
