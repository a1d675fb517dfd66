package services

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/insighthub/server/internal/models"
)

func newTrendService(t *testing.T, env *testEnv, opts TrendOptions) *TrendService {
	t.Helper()
	trends, err := NewTrendService(env.db, env.news, env.preferences, env.notifier, opts, func() time.Time { return testClock })
	require.NoError(t, err)
	return trends
}

func TestScanCompanyBurst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	trends := newTrendService(t, env, TrendOptions{})

	company := env.createCompany(t, "Mistral")
	env.subscribeUser(t, "subscriber", []string{company.ID}, nil, nil)
	env.subscribeUser(t, "bystander", nil, nil, nil)

	for i := 0; i < 3; i++ {
		env.createItem(t, &company.ID, models.CategoryModelRelease,
			fmt.Sprintf("burst-%d", i), 0.5, testClock.Add(-time.Duration(i+1)*time.Hour))
	}

	created, err := trends.Scan(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, created)

	notifications, err := env.notifier.List(ctx, "subscriber", ListNotificationsInput{})
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	require.Equal(t, models.TypeCompanyActive, notifications[0].Type)
	require.Equal(t, models.PriorityMedium, notifications[0].Priority)
	require.Equal(t, "Mistral has published 3 items in the last 24h", notifications[0].Message)

	var payload NotificationPayload
	require.NoError(t, json.Unmarshal(notifications[0].Payload, &payload))
	require.Equal(t, company.ID, payload.CompanyID)
	require.Equal(t, 3, payload.ItemCount)
	require.Greater(t, payload.ActivityScore, 0.0)

	others, err := env.notifier.List(ctx, "bystander", ListNotificationsInput{})
	require.NoError(t, err)
	require.Empty(t, others)
}

func TestScanCompanyBelowThreshold(t *testing.T) {
	env := newTestEnv(t)
	trends := newTrendService(t, env, TrendOptions{})

	company := env.createCompany(t, "Mistral")
	env.subscribeUser(t, "subscriber", []string{company.ID}, nil, nil)

	env.createItem(t, &company.ID, models.CategoryModelRelease, "one", 0.5, testClock.Add(-time.Hour))
	env.createItem(t, &company.ID, models.CategoryModelRelease, "two", 0.5, testClock.Add(-2*time.Hour))

	created, err := trends.Scan(context.Background())
	require.NoError(t, err)
	require.Zero(t, created)
}

func TestScanCategoryTrend(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	trends := newTrendService(t, env, TrendOptions{})

	env.subscribeUser(t, "watcher", nil, []models.NewsCategory{models.CategoryFundingNews}, nil)

	for i := 0; i < 5; i++ {
		env.createItem(t, nil, models.CategoryFundingNews,
			fmt.Sprintf("round-%d", i), 0.5, testClock.Add(-time.Duration(i+1)*time.Hour))
	}

	created, err := trends.Scan(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, created)

	notifications, err := env.notifier.List(ctx, "watcher", ListNotificationsInput{})
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	require.Equal(t, models.TypeCategoryTrend, notifications[0].Type)
	require.Equal(t, models.PriorityLow, notifications[0].Priority)
	require.Equal(t, "5 items in funding_news in the last 24h", notifications[0].Message)
}

func TestScanIgnoresItemsOutsideWindow(t *testing.T) {
	env := newTestEnv(t)
	trends := newTrendService(t, env, TrendOptions{})

	company := env.createCompany(t, "Cohere")
	env.subscribeUser(t, "subscriber", []string{company.ID}, nil, nil)

	env.createItem(t, &company.ID, models.CategoryModelRelease, "recent-1", 0.5, testClock.Add(-time.Hour))
	env.createItem(t, &company.ID, models.CategoryModelRelease, "recent-2", 0.5, testClock.Add(-2*time.Hour))
	env.createItem(t, &company.ID, models.CategoryModelRelease, "ancient", 0.5, testClock.Add(-48*time.Hour))

	created, err := trends.Scan(context.Background())
	require.NoError(t, err)
	require.Zero(t, created)
}

func TestScanDeduplicatesAcrossRuns(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	trends := newTrendService(t, env, TrendOptions{})

	company := env.createCompany(t, "Mistral")
	env.subscribeUser(t, "subscriber", []string{company.ID}, nil, nil)
	for i := 0; i < 3; i++ {
		env.createItem(t, &company.ID, models.CategoryModelRelease,
			fmt.Sprintf("burst-%d", i), 0.5, testClock.Add(-time.Duration(i+1)*time.Hour))
	}

	created, err := trends.Scan(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, created)

	// A second scan inside the same window bucket is a no-op.
	created, err = trends.Scan(ctx)
	require.NoError(t, err)
	require.Zero(t, created)

	notifications, err := env.notifier.List(ctx, "subscriber", ListNotificationsInput{})
	require.NoError(t, err)
	require.Len(t, notifications, 1)
}

func TestScanRetriesAfterFailedPersist(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	trends := newTrendService(t, env, TrendOptions{})

	company := env.createCompany(t, "Mistral")
	env.subscribeUser(t, "subscriber", []string{company.ID}, nil, nil)
	for i := 0; i < 3; i++ {
		env.createItem(t, &company.ID, models.CategoryModelRelease,
			fmt.Sprintf("burst-%d", i), 0.5, testClock.Add(-time.Duration(i+1)*time.Hour))
	}

	// Make the notification insert fail while the scan itself still runs.
	require.NoError(t, env.db.Migrator().DropTable(&models.Notification{}))
	_, err := trends.Scan(ctx)
	require.Error(t, err)

	// The failed persist must not leave a claimed marker behind: once the
	// store recovers, a scan over the same bucket emits the alert.
	require.NoError(t, env.db.AutoMigrate(&models.Notification{}))
	created, err := trends.Scan(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, created)

	notifications, err := env.notifier.List(ctx, "subscriber", ListNotificationsInput{})
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	require.Equal(t, models.TypeCompanyActive, notifications[0].Type)
}

func TestScanRespectsGates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	trends := newTrendService(t, env, TrendOptions{})

	company := env.createCompany(t, "Mistral")
	env.subscribeUser(t, "subscriber", []string{company.ID}, []models.NewsCategory{models.CategoryModelRelease}, nil)

	off := false
	_, err := env.preferences.UpdateSettings(ctx, "subscriber", UpdateSettingsInput{
		CompanyAlerts:  &off,
		CategoryTrends: &off,
	})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		env.createItem(t, &company.ID, models.CategoryModelRelease,
			fmt.Sprintf("burst-%d", i), 0.5, testClock.Add(-time.Duration(i+1)*time.Hour))
	}

	created, err := trends.Scan(ctx)
	require.NoError(t, err)
	require.Zero(t, created)
}

func TestCleanupMarkers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	trends := newTrendService(t, env, TrendOptions{})

	old := models.TrendMarker{UserID: "u", Type: models.TypeCompanyActive, Subject: "c", Bucket: "b1"}
	require.NoError(t, env.db.Create(&old).Error)
	require.NoError(t, env.db.Model(&models.TrendMarker{}).
		Where("id = ?", old.ID).
		Update("created_at", testClock.Add(-14*24*time.Hour)).Error)

	fresh := models.TrendMarker{UserID: "u", Type: models.TypeCompanyActive, Subject: "c", Bucket: "b2"}
	require.NoError(t, env.db.Create(&fresh).Error)

	removed, err := trends.CleanupMarkers(ctx, 7*24*time.Hour)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	var count int64
	require.NoError(t, env.db.Model(&models.TrendMarker{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}
