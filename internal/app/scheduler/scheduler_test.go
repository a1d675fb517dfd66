package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/insighthub/server/internal/database/testutil"
	"github.com/insighthub/server/internal/models"
	"github.com/insighthub/server/internal/services"
)

var testClock = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

type stubDeliverer struct {
	destinations []string
}

func (d *stubDeliverer) Channel() string { return "telegram" }

func (d *stubDeliverer) Deliver(ctx context.Context, destination, text string) error {
	d.destinations = append(d.destinations, destination)
	return nil
}

type fixture struct {
	db       *gorm.DB
	news     *services.NewsService
	prefs    *services.PreferenceService
	notifier *services.NotificationService
	trends   *services.TrendService
	digests  *services.DigestService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := func() time.Time { return testClock }

	news, err := services.NewNewsService(db)
	require.NoError(t, err)
	prefs, err := services.NewPreferenceService(db, nil, time.Minute)
	require.NoError(t, err)
	notifier, err := services.NewNotificationService(db, now)
	require.NoError(t, err)
	trends, err := services.NewTrendService(db, news, prefs, notifier, services.TrendOptions{}, now)
	require.NoError(t, err)
	digests, err := services.NewDigestService(news, prefs)
	require.NoError(t, err)

	return &fixture{db: db, news: news, prefs: prefs, notifier: notifier, trends: trends, digests: digests}
}

func (f *fixture) seedBurst(t *testing.T) {
	t.Helper()

	company := &models.Company{Name: "Mistral"}
	require.NoError(t, f.db.Create(company).Error)

	enabled := true
	chatID := "chat-1"
	_, err := f.prefs.UpdatePreferences(context.Background(), "user-1", services.UpdatePreferenceInput{
		SubscribedCompanies: []string{company.ID},
		DigestEnabled:       &enabled,
		TelegramEnabled:     &enabled,
		TelegramChatID:      &chatID,
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		item := &models.NewsItem{
			Title:       fmt.Sprintf("burst-%d", i),
			SourceURL:   fmt.Sprintf("https://example.com/burst-%d", i),
			SourceType:  models.SourceBlog,
			CompanyID:   &company.ID,
			Category:    models.CategoryModelRelease,
			PublishedAt: testClock.Add(-time.Duration(i+1) * time.Hour),
		}
		require.NoError(t, f.db.Create(item).Error)
	}
}

func TestSchedulerRunOnce(t *testing.T) {
	f := newFixture(t)
	f.seedBurst(t)

	deliverer := &stubDeliverer{}
	s := New(f.trends, f.digests, f.notifier, deliverer, WithNow(func() time.Time { return testClock }))

	require.NoError(t, s.RunOnce(context.Background()))

	// The trend scan produced a burst alert for the subscribed user.
	alerts, err := f.notifier.List(context.Background(), "user-1", services.ListNotificationsInput{})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	require.Equal(t, models.TypeCompanyActive, alerts[0].Type)

	// The daily digest went out; the weekly dispatch had no weekly users.
	require.Equal(t, []string{"chat-1"}, deliverer.destinations)
}

func TestSchedulerRunOnceCleansRetention(t *testing.T) {
	f := newFixture(t)

	stored, err := f.notifier.GateAndPersist(context.Background(), &services.AlertCandidate{
		UserID:   "user-1",
		Type:     models.TypeNewNews,
		Priority: models.PriorityMedium,
		Title:    "t",
		Message:  "m",
	}, &models.NotificationSettings{UserID: "user-1", Enabled: true})
	require.NoError(t, err)
	require.NoError(t, f.notifier.MarkRead(context.Background(), "user-1", stored.ID))
	require.NoError(t, f.db.Model(&models.Notification{}).
		Where("id = ?", stored.ID).
		Update("created_at", testClock.Add(-60*24*time.Hour)).Error)

	marker := models.TrendMarker{UserID: "user-1", Type: models.TypeCompanyActive, Subject: "c", Bucket: "b"}
	require.NoError(t, f.db.Create(&marker).Error)
	require.NoError(t, f.db.Model(&models.TrendMarker{}).
		Where("id = ?", marker.ID).
		Update("created_at", testClock.Add(-30*24*time.Hour)).Error)

	s := New(f.trends, f.digests, f.notifier, &stubDeliverer{}, WithNow(func() time.Time { return testClock }))
	require.NoError(t, s.RunOnce(context.Background()))

	var notifications, markers int64
	require.NoError(t, f.db.Model(&models.Notification{}).Count(&notifications).Error)
	require.NoError(t, f.db.Model(&models.TrendMarker{}).Count(&markers).Error)
	require.Zero(t, notifications)
	require.Zero(t, markers)
}

func TestSchedulerStartRegistersJobs(t *testing.T) {
	f := newFixture(t)

	c := cron.New(cron.WithLogger(cron.DiscardLogger))
	s := New(f.trends, f.digests, f.notifier, &stubDeliverer{},
		WithCron(c),
		WithTrendSchedule("@every 1h"),
		WithDigestSchedules("0 9 * * *", "0 9 * * 1"),
		WithCleanupSchedule("@daily"),
	)

	require.NoError(t, s.Start())
	require.Len(t, c.Entries(), 4)

	<-s.Stop().Done()
}

func TestSchedulerStartRejectsBadSpec(t *testing.T) {
	f := newFixture(t)

	s := New(f.trends, nil, nil, nil, WithTrendSchedule("not a cron spec"))
	require.Error(t, s.Start())
}
