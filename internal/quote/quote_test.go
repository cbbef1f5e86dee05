package quote

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"encar-telegram-bot/internal/rates"
	"encar-telegram-bot/internal/types"
)

func date(year int, month time.Month) time.Time {
	return time.Date(year, month, 15, 12, 0, 0, 0, time.UTC)
}

func TestCarAge(t *testing.T) {
	age := CarAge(2021, 6, date(2024, time.May))
	assert.Equal(t, Age{Years: 2, Months: 11}, age)

	age = CarAge(2021, 6, date(2024, time.June))
	assert.Equal(t, Age{Years: 3, Months: 0}, age)
}

func TestAgeAlmostOld(t *testing.T) {
	assert.True(t, Age{Years: 2, Months: 11}.AlmostOld())
	assert.True(t, Age{Years: 2, Months: 4}.AlmostOld())
	assert.False(t, Age{Years: 2, Months: 3}.AlmostOld())
	assert.False(t, Age{Years: 1, Months: 11}.AlmostOld())
}

func TestRecyclingFee(t *testing.T) {
	// Small engines pay the nominal coefficient.
	assert.Equal(t, int64(3_400), RecyclingFee(1, 1_998, false, false))
	assert.Equal(t, int64(5_200), RecyclingFee(4, 1_998, false, false))

	// Large engines pay the punitive coefficients.
	assert.Equal(t, int64(2_153_400), RecyclingFee(1, 3_300, false, false))
	assert.Equal(t, int64(2_742_200), RecyclingFee(1, 3_800, false, false))
	assert.Equal(t, int64(3_296_800), RecyclingFee(4, 3_300, false, false))
	assert.Equal(t, int64(3_604_800), RecyclingFee(4, 3_800, false, false))

	// Electric cars always use the nominal coefficient.
	assert.Equal(t, int64(3_400), RecyclingFee(1, 0, true, false))
	assert.Equal(t, int64(5_200), RecyclingFee(4, 0, true, false))

	// An almost-old car is billed as if it already crossed 3 years.
	assert.Equal(t, int64(5_200), RecyclingFee(2, 1_998, false, true))
}

func TestCustomDutyUnderThreeYears(t *testing.T) {
	const eur = 100.0

	// 10,000 EUR price: per-cm3 rate wins over the price share.
	// 2000 cm3 * 3.5 EUR = 700,000 RUB vs 1,000,000 * 0.48 = 480,000.
	assert.Equal(t, int64(700_000), CustomDuty(1, 1_000_000, 2_000, false, eur))

	// Cheap car bracket uses the 0.54 share: 500,000 * 0.54 = 270,000
	// vs 1000 cm3 * 2.5 EUR = 250,000 RUB.
	assert.Equal(t, int64(270_000), CustomDuty(1, 500_000, 1_000, false, eur))
}

func TestCustomDutyOlderBrackets(t *testing.T) {
	const eur = 100.0

	// 3-5 years: 2000 cm3 falls into the 1800-2300 bracket at 2.7 EUR.
	assert.Equal(t, int64(540_000), CustomDuty(3, 2_000_000, 2_000, false, eur))

	// Over 5 years: the same engine pays 4.8 EUR per cm3.
	assert.Equal(t, int64(960_000), CustomDuty(6, 2_000_000, 2_000, false, eur))

	// Almost-old shifts a 2-year-old car into the 3-5 bracket.
	assert.Equal(t, int64(540_000), CustomDuty(2, 2_000_000, 2_000, true, eur))
}

func TestCustomClearance(t *testing.T) {
	assert.Equal(t, int64(1_067), CustomClearance(150_000))
	assert.Equal(t, int64(2_134), CustomClearance(300_000))
	assert.Equal(t, int64(4_269), CustomClearance(1_000_000))
	assert.Equal(t, int64(11_746), CustomClearance(2_000_000))
	assert.Equal(t, int64(16_524), CustomClearance(3_000_000))
	assert.Equal(t, int64(21_344), CustomClearance(5_000_000))
	assert.Equal(t, int64(27_540), CustomClearance(6_000_000))
	assert.Equal(t, int64(30_000), CustomClearance(8_000_000))
}

func TestBuildSumsAllComponents(t *testing.T) {
	snap := rates.Snapshot{KRW: 0.06, EUR: 100}
	car := &types.CarInfo{
		CarID:        38_637_340,
		YearMonth:    "202006",
		Mileage:      45_000,
		FuelName:     "가솔린",
		Displacement: 1_998,
		PriceMan:     3_000, // 30,000,000 KRW
	}

	q := Build(car, snap, date(2026, time.August))

	require.True(t, q.HasEngineVolume)
	assert.Equal(t, Age{Years: 6, Months: 2}, q.Age)
	assert.False(t, q.AlmostOld)
	assert.Equal(t, int64(30_000_000), q.CarPriceWon)
	assert.Equal(t, int64(1_800_000), q.CarPriceRub)
	assert.Equal(t, int64(1_944_000), q.Delivery)
	assert.Equal(t, int64(11_746), q.Clearance)
	assert.Equal(t, int64(5_200), q.RecyclingFee)
	assert.Equal(t, int64(959_040), q.Duty)

	expected := q.Delivery + q.Clearance + BrokerFee + Commission + q.RecyclingFee + q.Duty
	assert.Equal(t, expected, q.Final)
}

func TestBuildWithoutDisplacementSkipsDutyComponents(t *testing.T) {
	snap := rates.Snapshot{KRW: 0.06, EUR: 100}
	car := &types.CarInfo{
		CarID:     1,
		YearMonth: "202306",
		PriceMan:  2_000,
	}

	q := Build(car, snap, date(2026, time.August))

	assert.False(t, q.HasEngineVolume)
	assert.Zero(t, q.Duty)
	assert.Zero(t, q.RecyclingFee)
	assert.Equal(t, q.Delivery+q.Clearance+BrokerFee+Commission, q.Final)
}

func TestRenderCarInfoContainsBreakdown(t *testing.T) {
	snap := rates.Snapshot{KRW: 0.06, EUR: 100}
	car := &types.CarInfo{
		CarID:        38_637_340,
		Manufacturer: "Hyundai",
		ModelName:    "Grandeur",
		GradeName:    "Exclusive",
		YearMonth:    "202006",
		Mileage:      45_000,
		FuelName:     "가솔린",
		Displacement: 1_998,
		PriceMan:     3_000,
	}

	text, disclaimer := RenderCarInfo(car, snap, date(2026, time.August))

	assert.Contains(t, text, "Hyundai")
	assert.Contains(t, text, "2020/06")
	assert.Contains(t, text, "45 000")
	assert.Contains(t, text, "fem.encar.com/cars/detail/38637340")
	assert.Contains(t, text, "Итого")
	assert.Contains(t, disclaimer, "предварительным")
}
