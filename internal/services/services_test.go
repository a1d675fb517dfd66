package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/insighthub/server/internal/database/testutil"
	"github.com/insighthub/server/internal/models"
)

var testClock = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	db          *gorm.DB
	news        *NewsService
	preferences *PreferenceService
	notifier    *NotificationService
	trigger     *TriggerService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	news, err := NewNewsService(db)
	require.NoError(t, err)

	preferences, err := NewPreferenceService(db, nil, time.Minute)
	require.NoError(t, err)

	notifier, err := NewNotificationService(db, func() time.Time { return testClock })
	require.NoError(t, err)

	trigger, err := NewTriggerService(preferences, news, notifier)
	require.NoError(t, err)

	return &testEnv{db: db, news: news, preferences: preferences, notifier: notifier, trigger: trigger}
}

func (e *testEnv) createCompany(t *testing.T, name string) *models.Company {
	t.Helper()
	company := &models.Company{Name: name}
	require.NoError(t, e.db.Create(company).Error)
	return company
}

func (e *testEnv) createItem(t *testing.T, companyID *string, category models.NewsCategory, title string, score float64, publishedAt time.Time) *models.NewsItem {
	t.Helper()
	item := &models.NewsItem{
		Title:         title,
		Content:       "content for " + title,
		SourceURL:     "https://example.com/" + title,
		SourceType:    models.SourceBlog,
		CompanyID:     companyID,
		Category:      category,
		PriorityScore: score,
		PublishedAt:   publishedAt,
	}
	require.NoError(t, e.db.Create(item).Error)
	return item
}

func (e *testEnv) subscribeUser(t *testing.T, userID string, companyIDs []string, categories []models.NewsCategory, keywords []string) {
	t.Helper()
	_, err := e.preferences.UpdatePreferences(context.Background(), userID, UpdatePreferenceInput{
		SubscribedCompanies:  companyIDs,
		InterestedCategories: categories,
		Keywords:             keywords,
	})
	require.NoError(t, err)
}
