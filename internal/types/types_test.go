package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRange(t *testing.T) {
	r, err := ParseRange("2019-2021")
	require.NoError(t, err)
	assert.Equal(t, &Range{Low: 2019, High: 2021, Dual: true}, r)
	assert.Equal(t, "2019-2021", r.String())

	r, err = ParseRange("80000")
	require.NoError(t, err)
	assert.Equal(t, &Range{Low: 80000, High: 80000}, r)
	assert.Equal(t, "80000", r.String())

	r, err = ParseRange("  2020 ")
	require.NoError(t, err)
	assert.Equal(t, int64(2020), r.Low)
}

func TestParseRangeEmpty(t *testing.T) {
	r, err := ParseRange("")
	require.NoError(t, err)
	assert.Nil(t, r)
	assert.Equal(t, "", r.String())
}

func TestParseRangeInvalid(t *testing.T) {
	for _, input := range []string{"abc", "10-abc", "abc-10", "30-10", "1-2-3"} {
		_, err := ParseRange(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestTrackingKnownSet(t *testing.T) {
	track := Tracking{CarIDs: []int64{1, 2, 2, 3}}
	set := track.KnownSet()

	assert.Len(t, set, 3)
	_, ok := set[2]
	assert.True(t, ok)
}

func TestSearchResultNumericID(t *testing.T) {
	assert.Equal(t, int64(38637340), (&SearchResult{ID: "38637340"}).NumericID())
	assert.Zero(t, (&SearchResult{ID: "oops"}).NumericID())
	assert.Zero(t, (&SearchResult{}).NumericID())
}

func TestCarInfoRegistrationYearMonth(t *testing.T) {
	car := CarInfo{YearMonth: "202106"}
	year, month := car.RegistrationYearMonth()
	assert.Equal(t, 2021, year)
	assert.Equal(t, 6, month)

	car = CarInfo{YearMonth: "2021"}
	year, month = car.RegistrationYearMonth()
	assert.Zero(t, year)
	assert.Zero(t, month)
}
