package services

import (
	"context"
	"strings"

	"github.com/insighthub/server/internal/models"
)

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func normaliseStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

// matchKeyword returns the first keyword that occurs as a case-insensitive
// substring of the item's title or content, or "" when none match. The scan
// stops at the first hit.
func matchKeyword(item *models.NewsItem, keywords []string) string {
	if item == nil || len(keywords) == 0 {
		return ""
	}

	title := strings.ToLower(item.Title)
	content := strings.ToLower(item.Content)

	for _, keyword := range keywords {
		needle := strings.ToLower(strings.TrimSpace(keyword))
		if needle == "" {
			continue
		}
		if strings.Contains(title, needle) || strings.Contains(content, needle) {
			return keyword
		}
	}
	return ""
}

// matchesPreference reports whether an item is relevant to the user at all:
// subscribed company, interesting category, or keyword hit. This is the
// digest selection predicate.
func matchesPreference(item *models.NewsItem, prefs *models.UserPreference) bool {
	if item == nil || prefs == nil {
		return false
	}
	if item.CompanyID != nil && prefs.SubscribedTo(*item.CompanyID) {
		return true
	}
	if prefs.InterestedIn(item.Category) {
		return true
	}
	return matchKeyword(item, prefs.Keywords) != ""
}
