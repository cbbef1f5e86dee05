package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"encar-telegram-bot/internal/types"
)

func setupDB(t *testing.T) {
	t.Helper()
	require.NoError(t, InitDB(filepath.Join(t.TempDir(), "bot.db")))
	t.Cleanup(func() { CloseDB() })
}

func TestTrackingRoundTrip(t *testing.T) {
	setupDB(t)

	year, err := types.ParseRange("2019-2021")
	require.NoError(t, err)
	mileage, err := types.ParseRange("80000")
	require.NoError(t, err)

	trackID, err := CreateTracking(100, types.FilterSpec{
		ConfigurationID: 7,
		ReleaseYear:     year,
		Mileage:         mileage,
	})
	require.NoError(t, err)

	track, err := GetTracking(trackID)
	require.NoError(t, err)

	assert.Equal(t, int64(100), track.UserID)
	assert.Equal(t, int64(7), track.Filter.ConfigurationID)
	assert.Equal(t, "2019-2021", track.Filter.ReleaseYear.String())
	assert.Equal(t, "80000", track.Filter.Mileage.String())
	assert.Nil(t, track.Filter.Price)
	assert.False(t, track.IsActive)
	assert.Empty(t, track.CarIDs)
}

func TestTrackingActivationFlow(t *testing.T) {
	setupDB(t)

	trackID, err := CreateTracking(100, types.FilterSpec{ConfigurationID: 7})
	require.NoError(t, err)

	require.NoError(t, UpdateCarIDs(trackID, []int64{11, 12, 13}))
	require.NoError(t, ActivateTracking(trackID))

	track, err := GetTracking(trackID)
	require.NoError(t, err)
	assert.True(t, track.IsActive)
	assert.Equal(t, []int64{11, 12, 13}, track.CarIDs)
	assert.Equal(t, map[int64]struct{}{11: {}, 12: {}, 13: {}}, track.KnownSet())
}

func TestTrackingsByUserPagination(t *testing.T) {
	setupDB(t)

	for i := 0; i < 12; i++ {
		_, err := CreateTracking(100, types.FilterSpec{ConfigurationID: int64(i)})
		require.NoError(t, err)
	}
	_, err := CreateTracking(200, types.FilterSpec{ConfigurationID: 1})
	require.NoError(t, err)

	count, err := TrackingCount(100)
	require.NoError(t, err)
	assert.Equal(t, int64(12), count)

	first, err := TrackingsByUser(100, 0)
	require.NoError(t, err)
	assert.Len(t, first, 10)

	second, err := TrackingsByUser(100, 1)
	require.NoError(t, err)
	assert.Len(t, second, 2)
}

func TestDeleteTracking(t *testing.T) {
	setupDB(t)

	trackID, err := CreateTracking(100, types.FilterSpec{ConfigurationID: 7})
	require.NoError(t, err)
	require.NoError(t, DeleteTracking(trackID))

	_, err = GetTracking(trackID)
	assert.Error(t, err)
}

func TestUpsertUser(t *testing.T) {
	setupDB(t)

	isNew, err := UpsertUser(types.User{ID: 100, Username: "alice", FirstName: "Alice"})
	require.NoError(t, err)
	assert.True(t, isNew)

	isNew, err = UpsertUser(types.User{ID: 100, Username: "alice2", FirstName: "Alice"})
	require.NoError(t, err)
	assert.False(t, isNew)

	user, err := GetUser(100)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "alice2", user.Username)
	assert.False(t, user.IsBlocked)

	unknown, err := GetUser(999)
	require.NoError(t, err)
	assert.Nil(t, unknown)

	blocked, err := IsBlocked(999)
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestStartStatisticsCountsRecentUsers(t *testing.T) {
	setupDB(t)

	for _, id := range []int64{1, 2, 3} {
		_, err := UpsertUser(types.User{ID: id})
		require.NoError(t, err)
	}

	stats, err := StartStatistics()
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Today)
	assert.Equal(t, int64(3), stats.Last7Days)
	assert.Len(t, stats.ByDay, 1)
}

func TestCarViewingHistory(t *testing.T) {
	setupDB(t)

	viewed, err := HasViewedCar(100, 555)
	require.NoError(t, err)
	assert.False(t, viewed)

	require.NoError(t, RecordCarView(100, 555))

	viewed, err = HasViewedCar(100, 555)
	require.NoError(t, err)
	assert.True(t, viewed)
}

func TestTaxonomyUpsertAndPath(t *testing.T) {
	setupDB(t)

	require.NoError(t, UpsertBrands([]types.TaxonomyNode{
		{Code: "101", Action: "(And.Manufacturer.현대.)", DisplayValue: "현대", EngName: "Hyundai"},
	}))
	brands, err := AllActions("brands")
	require.NoError(t, err)
	require.Len(t, brands, 1)

	require.NoError(t, UpsertModels([]types.TaxonomyNode{
		{Code: "1834", Action: "(And.ModelGroup.그랜저.)", DisplayValue: "그랜저", ParentID: brands[0].ID},
	}))
	models, err := AllActions("models")
	require.NoError(t, err)
	require.Len(t, models, 1)

	require.NoError(t, UpsertGenerations([]types.TaxonomyNode{
		{Code: "21047", Action: "(And.Model.GN7.)", DisplayValue: "그랜저(GN7)", ParentID: models[0].ID, StartYear: 2022},
	}))
	generations, err := AllActions("generations")
	require.NoError(t, err)
	require.Len(t, generations, 1)

	require.NoError(t, UpsertModifications([]types.TaxonomyNode{
		{Code: "31001", Action: "(And.BadgeGroup.가솔린.)", DisplayValue: "가솔린 3.5", ParentID: generations[0].ID},
	}))
	modifications, err := AllActions("modifications")
	require.NoError(t, err)
	require.Len(t, modifications, 1)

	require.NoError(t, UpsertConfigurations([]types.TaxonomyNode{
		{Code: "41001", Action: "(And.Badge.캘리그래피.)", DisplayValue: "캘리그래피", ParentID: modifications[0].ID, Count: 120},
	}))
	configurations, err := AllActions("configurations")
	require.NoError(t, err)
	require.Len(t, configurations, 1)

	action, err := ConfigurationAction(configurations[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "(And.Badge.캘리그래피.)", action)

	path, err := TaxonomyPath(configurations[0].ID)
	require.NoError(t, err)
	assert.Equal(t, [5]string{"현대", "그랜저", "그랜저(GN7)", "가솔린 3.5", "캘리그래피"}, path)
}

func TestUpsertBrandsIsIdempotent(t *testing.T) {
	setupDB(t)

	node := types.TaxonomyNode{Code: "101", Action: "old", DisplayValue: "현대"}
	require.NoError(t, UpsertBrands([]types.TaxonomyNode{node}))

	node.Action = "new"
	require.NoError(t, UpsertBrands([]types.TaxonomyNode{node}))

	brands, err := AllActions("brands")
	require.NoError(t, err)
	require.Len(t, brands, 1)
	assert.Equal(t, "new", brands[0].Action)
}

func TestUpsertModificationsIsIdempotent(t *testing.T) {
	setupDB(t)

	node := types.TaxonomyNode{Code: "31001", Action: "old", DisplayValue: "가솔린 3.5", ParentID: 1}
	require.NoError(t, UpsertModifications([]types.TaxonomyNode{node}))

	node.Action = "new"
	require.NoError(t, UpsertModifications([]types.TaxonomyNode{node}))

	modifications, err := AllActions("modifications")
	require.NoError(t, err)
	require.Len(t, modifications, 1)
	assert.Equal(t, "new", modifications[0].Action)
}

func TestAllActionsRejectsUnknownTable(t *testing.T) {
	setupDB(t)

	_, err := AllActions("users; DROP TABLE users")
	assert.Error(t, err)
}

func TestMetricsRoundTrip(t *testing.T) {
	setupDB(t)

	require.NoError(t, SaveMetric("commands_processed", "", "", 42))
	require.NoError(t, SaveMetric("commands_processed", "", "", 43))

	value, err := GetMetric("commands_processed")
	require.NoError(t, err)
	assert.Equal(t, float64(43), value)
}

func TestLabeledMetricsRoundTrip(t *testing.T) {
	setupDB(t)

	require.NoError(t, SaveMetric("commands_processed", "command", "start", 5))
	require.NoError(t, SaveMetric("commands_processed", "command", "quote", 2))
	require.NoError(t, SaveMetric("messages_handled", "", "", 9))

	labeled, err := GetMetricsWithLabels("commands_processed")
	require.NoError(t, err)
	assert.Equal(t, map[string]map[string]float64{
		"command": {"start": 5, "quote": 2},
	}, labeled)
}
