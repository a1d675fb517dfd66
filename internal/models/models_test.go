package models

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestCategoryDisplay(t *testing.T) {
	require.Equal(t, "Funding News", CategoryFundingNews.Display())
	require.Equal(t, "Pricing Change", CategoryPricingChange.Display())
	require.Equal(t, "News", NewsCategory("").Display())
}

func TestCategoryValid(t *testing.T) {
	require.True(t, CategoryProductUpdate.Valid())
	require.False(t, NewsCategory("gossip").Valid())
}

func TestNotificationTypeValid(t *testing.T) {
	require.True(t, TypeKeywordMatch.Valid())
	require.False(t, NotificationType("carrier_pigeon").Valid())
}

func TestSettingsTypeEnabledDefaults(t *testing.T) {
	s := &NotificationSettings{}
	require.True(t, s.TypeEnabled(TypeNewNews), "empty map allows everything")

	s.NotificationTypes = datatypes.JSON(`{"keyword_match": false, "new_news": true}`)
	require.False(t, s.TypeEnabled(TypeKeywordMatch))
	require.True(t, s.TypeEnabled(TypeNewNews))
	require.True(t, s.TypeEnabled(TypeCategoryTrend), "absent entry allows the type")

	s.NotificationTypes = datatypes.JSON(`not json`)
	require.True(t, s.TypeEnabled(TypeNewNews), "unparseable map fails open")
}

func TestPreferenceMembershipHelpers(t *testing.T) {
	p := &UserPreference{
		SubscribedCompanies:  datatypes.NewJSONSlice([]string{"c-1", "c-2"}),
		InterestedCategories: datatypes.NewJSONSlice([]NewsCategory{CategoryFundingNews}),
	}

	require.True(t, p.SubscribedTo("c-1"))
	require.False(t, p.SubscribedTo("c-3"))
	require.False(t, p.SubscribedTo(""))

	require.True(t, p.InterestedIn(CategoryFundingNews))
	require.False(t, p.InterestedIn(CategoryAcquisition))
	require.False(t, p.InterestedIn(""))
}
