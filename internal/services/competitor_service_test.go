package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/insighthub/server/internal/models"
	apperrors "github.com/insighthub/server/pkg/errors"
)

func newCompetitorService(t *testing.T, env *testEnv) *CompetitorService {
	t.Helper()
	competitors, err := NewCompetitorService(env.db, env.news)
	require.NoError(t, err)
	return competitors
}

func TestCompareOrdersByActivity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	competitors := newCompetitorService(t, env)

	busy := env.createCompany(t, "Busy Corp")
	quiet := env.createCompany(t, "Quiet Corp")

	for i := 0; i < 6; i++ {
		env.createItem(t, &busy.ID, models.CategoryModelRelease,
			fmt.Sprintf("busy-%d", i), 0.5, testClock.Add(-time.Duration(i+1)*time.Hour))
	}
	env.createItem(t, &quiet.ID, models.CategoryPartnership, "quiet-1", 0.9, testClock.Add(-time.Hour))

	comparison, err := competitors.Compare(ctx, "user-1", CompareInput{
		CompanyIDs: []string{quiet.ID, busy.ID},
		From:       testClock.Add(-24 * time.Hour),
		To:         testClock,
	})
	require.NoError(t, err)
	require.Len(t, comparison.Companies, 2)
	require.Equal(t, "Busy Corp", comparison.Companies[0].CompanyName)
	require.Equal(t, 6, comparison.Companies[0].NewsVolume)
	require.Greater(t, comparison.Companies[0].ActivityScore, comparison.Companies[1].ActivityScore)
	require.Empty(t, comparison.SavedID)
}

func TestCompareTopNewsByPriority(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	competitors := newCompetitorService(t, env)

	a := env.createCompany(t, "A")
	b := env.createCompany(t, "B")

	env.createItem(t, &a.ID, models.CategoryModelRelease, "low", 0.1, testClock.Add(-time.Hour))
	env.createItem(t, &a.ID, models.CategoryModelRelease, "high", 0.9, testClock.Add(-2*time.Hour))
	env.createItem(t, &a.ID, models.CategoryModelRelease, "mid", 0.5, testClock.Add(-3*time.Hour))

	comparison, err := competitors.Compare(ctx, "user-1", CompareInput{
		CompanyIDs: []string{a.ID, b.ID},
		From:       testClock.Add(-24 * time.Hour),
		To:         testClock,
		TopNews:    2,
	})
	require.NoError(t, err)

	var metricsA *CompanyMetrics
	for i := range comparison.Companies {
		if comparison.Companies[i].CompanyID == a.ID {
			metricsA = &comparison.Companies[i]
		}
	}
	require.NotNil(t, metricsA)
	require.Len(t, metricsA.TopNews, 2)
	require.Equal(t, "high", metricsA.TopNews[0].Title)
	require.Equal(t, "mid", metricsA.TopNews[1].Title)
}

func TestCompareValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	competitors := newCompetitorService(t, env)

	company := env.createCompany(t, "Solo")

	_, err := competitors.Compare(ctx, "user-1", CompareInput{
		CompanyIDs: []string{company.ID, company.ID},
		From:       testClock.Add(-time.Hour),
		To:         testClock,
	})
	require.ErrorIs(t, err, apperrors.ErrBadRequest)

	other := env.createCompany(t, "Other")
	_, err = competitors.Compare(ctx, "user-1", CompareInput{
		CompanyIDs: []string{company.ID, other.ID},
		From:       testClock,
		To:         testClock,
	})
	require.ErrorIs(t, err, apperrors.ErrBadRequest)

	_, err = competitors.Compare(ctx, "user-1", CompareInput{
		CompanyIDs: []string{company.ID, "00000000-0000-0000-0000-000000000000"},
		From:       testClock.Add(-time.Hour),
		To:         testClock,
	})
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCompareSaveAndList(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	competitors := newCompetitorService(t, env)

	a := env.createCompany(t, "A")
	b := env.createCompany(t, "B")
	env.createItem(t, &a.ID, models.CategoryModelRelease, "x", 0.5, testClock.Add(-time.Hour))

	comparison, err := competitors.Compare(ctx, "user-1", CompareInput{
		CompanyIDs: []string{a.ID, b.ID},
		From:       testClock.Add(-24 * time.Hour),
		To:         testClock,
		Name:       "quarterly",
		Save:       true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, comparison.SavedID)

	saved, err := competitors.ListSaved(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, saved, 1)
	require.Equal(t, "quarterly", saved[0].Name)
	require.NotEmpty(t, saved[0].Metrics)

	require.NoError(t, competitors.DeleteSaved(ctx, "user-1", comparison.SavedID))
	require.ErrorIs(t, competitors.DeleteSaved(ctx, "user-1", comparison.SavedID), apperrors.ErrNotFound)
}
