// Package analytics provides pure, deterministic statistics over sets of
// news items. Nothing here performs I/O; callers load the items and pass
// them in together with the window bounds.
package analytics

import (
	"math"
	"time"

	"github.com/insighthub/server/internal/models"
)

const (
	maxVolumeScore    = 40.0
	maxDiversityScore = 30.0
	maxRecencyScore   = 30.0
)

// Score computes a composite 0-100 activity score for a set of items over
// the window [from, to). An empty set always scores 0.
//
// volume contributes up to 40 points (2 per item), category diversity up to
// 30 (3 per distinct category), and recency up to 30 (share of items
// published in the second half of the window).
func Score(items []models.NewsItem, from, to time.Time) float64 {
	volume := len(items)
	if volume == 0 {
		return 0.0
	}

	volumeScore := math.Min(float64(volume)*2, maxVolumeScore)

	diversityScore := math.Min(float64(distinctCategories(items))*3, maxDiversityScore)

	half := to.Sub(from) / 2
	cutoff := to.Add(-half)
	recent := 0
	for _, item := range items {
		if !item.PublishedAt.Before(cutoff) {
			recent++
		}
	}
	recencyScore := math.Min(float64(recent)/float64(volume)*maxRecencyScore, maxRecencyScore)

	return round2(volumeScore + diversityScore + recencyScore)
}

// CategoryDistribution counts items per category. Uncategorised items are
// not included.
func CategoryDistribution(items []models.NewsItem) map[models.NewsCategory]int {
	distribution := make(map[models.NewsCategory]int)
	for _, item := range items {
		if item.Category == "" {
			continue
		}
		distribution[item.Category]++
	}
	return distribution
}

// DailyActivity counts items per UTC calendar day, keyed YYYY-MM-DD.
func DailyActivity(items []models.NewsItem) map[string]int {
	daily := make(map[string]int)
	for _, item := range items {
		day := item.PublishedAt.UTC().Format("2006-01-02")
		daily[day]++
	}
	return daily
}

func distinctCategories(items []models.NewsItem) int {
	seen := make(map[models.NewsCategory]struct{})
	for _, item := range items {
		if item.Category == "" {
			continue
		}
		seen[item.Category] = struct{}{}
	}
	return len(seen)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
