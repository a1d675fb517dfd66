package models

import "time"

// TrendMarker records that a trend notification was already produced for a
// user within a discretised scan window. The composite unique index makes
// repeated scans over an overlapping window idempotent: the second insert
// fails the uniqueness constraint and the candidate is skipped.
type TrendMarker struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	UserID    string           `gorm:"type:uuid;not null;uniqueIndex:idx_trend_dedup" json:"user_id"`
	Type      NotificationType `gorm:"type:varchar(64);not null;uniqueIndex:idx_trend_dedup" json:"type"`
	Subject   string           `gorm:"type:varchar(255);not null;uniqueIndex:idx_trend_dedup" json:"subject"`
	Bucket    string           `gorm:"type:varchar(64);not null;uniqueIndex:idx_trend_dedup" json:"bucket"`
	CreatedAt time.Time        `gorm:"index" json:"created_at"`
}
