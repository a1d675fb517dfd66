package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/insighthub/server/internal/models"
	apperrors "github.com/insighthub/server/pkg/errors"
	"github.com/insighthub/server/pkg/logger"
	"github.com/insighthub/server/pkg/metrics"
)

// DigestPeriod bounds one digest's selection window as [From, To).
type DigestPeriod struct {
	Frequency models.DigestFrequency
	From      time.Time
	To        time.Time
}

// PeriodFor derives the window ending at the given instant for a frequency.
// Custom frequencies must supply their own bounds.
func PeriodFor(frequency models.DigestFrequency, end time.Time) (DigestPeriod, error) {
	end = end.UTC()
	switch frequency {
	case models.DigestDaily:
		return DigestPeriod{Frequency: frequency, From: end.Add(-24 * time.Hour), To: end}, nil
	case models.DigestWeekly:
		return DigestPeriod{Frequency: frequency, From: end.Add(-7 * 24 * time.Hour), To: end}, nil
	case models.DigestCustom:
		return DigestPeriod{}, apperrors.NewBadRequest("custom digests require explicit bounds")
	default:
		return DigestPeriod{}, apperrors.NewBadRequest(fmt.Sprintf("unknown digest frequency %q", frequency))
	}
}

// DigestGroup is one category's slice of a digest.
type DigestGroup struct {
	Category models.NewsCategory `json:"category"`
	Display  string              `json:"display"`
	Items    []models.NewsItem   `json:"items"`
}

// Digest is an assembled, not yet rendered digest for one user.
type Digest struct {
	UserID    string        `json:"user_id"`
	Period    DigestPeriod  `json:"period"`
	NewsCount int           `json:"news_count"`
	Groups    []DigestGroup `json:"groups"`
}

// Empty reports whether the digest selected no items.
func (d *Digest) Empty() bool {
	return d == nil || d.NewsCount == 0
}

// DigestService assembles per-user digests from the item window and renders
// them as Telegram-flavoured Markdown. Assembly is a pure read: running it
// twice over the same window yields the same digest.
type DigestService struct {
	news        *NewsService
	preferences *PreferenceService
	log         *zap.Logger
}

// NewDigestService constructs a DigestService.
func NewDigestService(news *NewsService, preferences *PreferenceService) (*DigestService, error) {
	if news == nil {
		return nil, errors.New("digest service: news service is required")
	}
	if preferences == nil {
		return nil, errors.New("digest service: preference service is required")
	}
	return &DigestService{news: news, preferences: preferences, log: logger.WithModule("digest")}, nil
}

// Assemble selects the user's relevant items within the period and groups
// them by category. Items without a category land in a trailing
// uncategorized bucket.
func (s *DigestService) Assemble(ctx context.Context, userID string, period DigestPeriod) (*Digest, error) {
	ctx = ensureContext(ctx)

	if !period.From.Before(period.To) {
		return nil, apperrors.NewBadRequest("digest period is empty")
	}

	prefs, err := s.preferences.GetPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}

	items, err := s.news.ListWindow(ctx, period.From, period.To)
	if err != nil {
		return nil, err
	}

	grouped := make(map[models.NewsCategory][]models.NewsItem)
	count := 0
	for i := range items {
		item := items[i]
		if !matchesPreference(&item, prefs) {
			continue
		}
		grouped[item.Category] = append(grouped[item.Category], item)
		count++
	}

	categories := make([]models.NewsCategory, 0, len(grouped))
	for category := range grouped {
		if category != "" {
			categories = append(categories, category)
		}
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })
	if _, ok := grouped[""]; ok {
		// Uncategorized items always close the digest.
		categories = append(categories, "")
	}

	groups := make([]DigestGroup, 0, len(categories))
	for _, category := range categories {
		groups = append(groups, DigestGroup{
			Category: category,
			Display:  category.Display(),
			Items:    grouped[category],
		})
	}

	metrics.DigestItems.Observe(float64(count))
	s.log.Debug("digest assembled",
		zap.String("user_id", userID),
		zap.Int("items", count),
		zap.Int("groups", len(groups)))

	return &Digest{
		UserID:    userID,
		Period:    period,
		NewsCount: count,
		Groups:    groups,
	}, nil
}

// Format renders a digest as Telegram Markdown. The short format lists title
// and link; the detailed format adds per-item summaries when both the format
// and the user's preference allow them.
func (s *DigestService) Format(digest *Digest, format models.DigestFormat, includeSummaries bool) string {
	if digest.Empty() {
		return "No news matched your preferences this period."
	}

	label := "digest"
	switch digest.Period.Frequency {
	case models.DigestDaily:
		label = "daily digest"
	case models.DigestWeekly:
		label = "weekly digest"
	case models.DigestCustom:
		label = "custom digest"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📰 *Your %s* — %d items\n", label, digest.NewsCount)

	for _, group := range digest.Groups {
		fmt.Fprintf(&b, "\n*%s* (%d)\n", group.Display, len(group.Items))
		for i := range group.Items {
			item := &group.Items[i]
			fmt.Fprintf(&b, "• [%s](%s)\n", escapeMarkdown(item.Title), item.SourceURL)
			if format == models.FormatDetailed && includeSummaries && item.Summary != "" {
				fmt.Fprintf(&b, "  _%s_\n", escapeMarkdown(item.Summary))
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// Deliverer sends one rendered text to a destination with its own retry
// policy. Channel names the transport ("telegram", "email") so Dispatch can
// pick the matching per-user destination. Satisfied by delivery.Coordinator.
type Deliverer interface {
	Channel() string
	Deliver(ctx context.Context, destination, text string) error
}

// digestDestination picks the user's address for the given channel. Empty
// means the user has not enabled that channel or left the address blank.
func digestDestination(prefs *models.UserPreference, channel string) string {
	switch channel {
	case "telegram":
		if prefs.TelegramEnabled {
			return prefs.TelegramChatID
		}
	case "email":
		if prefs.EmailEnabled {
			return prefs.Email
		}
	}
	return ""
}

// Dispatch assembles, renders and delivers digests for every user enabled at
// the given frequency. Empty digests are skipped silently. Per-user failures
// never block other users; the first error is returned after the sweep.
func (s *DigestService) Dispatch(ctx context.Context, frequency models.DigestFrequency, end time.Time, deliverer Deliverer) (int, error) {
	ctx = ensureContext(ctx)

	if deliverer == nil {
		return 0, errors.New("digest service: deliverer is required")
	}

	period, err := PeriodFor(frequency, end)
	if err != nil {
		return 0, err
	}

	users, err := s.preferences.ListDigestUsers(ctx, frequency)
	if err != nil {
		return 0, err
	}

	channel := deliverer.Channel()
	sent := 0
	var firstErr error
	for i := range users {
		prefs := &users[i]
		destination := digestDestination(prefs, channel)
		if destination == "" {
			continue
		}

		digest, err := s.Assemble(ctx, prefs.UserID, period)
		if err == nil && digest.Empty() {
			continue
		}
		if err == nil {
			text := s.Format(digest, prefs.DigestFormat, prefs.DigestIncludeSummaries)
			err = deliverer.Deliver(ctx, destination, text)
		}
		if err != nil {
			s.log.Error("digest dispatch failed",
				zap.String("user_id", prefs.UserID),
				zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		sent++
	}

	s.log.Info("digest dispatch complete",
		zap.String("frequency", string(frequency)),
		zap.Int("users", len(users)),
		zap.Int("sent", sent))
	return sent, firstErr
}

// escapeMarkdown neutralises the Telegram Markdown control characters that
// occur in free-form titles and summaries.
func escapeMarkdown(text string) string {
	replacer := strings.NewReplacer(
		"*", "\\*",
		"_", "\\_",
		"[", "\\[",
		"]", "\\]",
		"`", "\\`",
	)
	return replacer.Replace(text)
}
