package quote

import (
	"fmt"
	"time"

	"encar-telegram-bot/internal/rates"
	"encar-telegram-bot/internal/types"
	"encar-telegram-bot/lib/helpers"
	"encar-telegram-bot/lib/translation"
)

// Fixed cost components of an import, in RUB.
const (
	BrokerFee  = 110_000
	Commission = 150_000
)

// deliverySurchargeWon is the flat Korea-to-Vladivostok shipping price.
const deliverySurchargeWon = 2_400_000

// electroFuelName is the marketplace's label for electric cars.
const electroFuelName = "전기"

// Age is a car's age relative to its Korean registration date.
type Age struct {
	Years  int
	Months int
}

// CarAge computes the age at the given local time. Customs brackets count
// whole months since the registration month.
func CarAge(regYear, regMonth int, now time.Time) Age {
	totalMonths := (now.Year()-regYear)*12 + int(now.Month()) - regMonth
	return Age{Years: totalMonths / 12, Months: totalMonths % 12}
}

// New reports whether the car falls in the under-3-years customs bracket.
func (a Age) New() bool {
	return a.Years < 3
}

// AlmostOld reports whether the car crosses into the cheaper 3-5 year
// bracket within 2 months, close enough to hold it in Korea until the date.
func (a Age) AlmostOld() bool {
	return a.Years == 2 && a.Months+8 >= 12
}

// RecyclingFee is the flat recycling levy, in RUB. Brackets follow the
// federal customs service table for personal-use passenger cars.
func RecyclingFee(ageYears int, engineVolume int64, isElectro, almostOld bool) int64 {
	if almostOld {
		ageYears++
	}

	var base float64
	if ageYears < 3 {
		switch {
		case isElectro, engineVolume < 3_000:
			base = 0.17
		case engineVolume < 3_500:
			base = 107.67
		default:
			base = 137.11
		}
	} else {
		switch {
		case isElectro, engineVolume < 3_000:
			base = 0.26
		case engineVolume < 3_500:
			base = 164.84
		default:
			base = 180.24
		}
	}

	return int64(20_000 * base)
}

// CustomDuty is the import duty in RUB. Under 3 years the duty is the greater
// of a price share and a per-cm3 rate in EUR; older cars pay per-cm3 only.
func CustomDuty(ageYears int, carPriceRub int64, engineVolume int64, almostOld bool, eurRate float64) int64 {
	if almostOld {
		ageYears++
	}

	volume := float64(engineVolume)
	price := float64(carPriceRub)

	if ageYears < 3 {
		euroPrice := price / eurRate
		multiplier := 0.48

		var duty float64
		switch {
		case euroPrice < 8_500:
			duty = volume * 2.5
			multiplier = 0.54
		case euroPrice < 16_700:
			duty = volume * 3.5
		case euroPrice < 42_300:
			duty = volume * 5.5
		case euroPrice < 84_500:
			duty = volume * 7.5
		case euroPrice < 169_000:
			duty = volume * 15
		default:
			duty = volume * 20
		}

		if price*multiplier > duty*eurRate {
			return int64(price * multiplier)
		}
		return int64(duty * eurRate)
	}

	var duty float64
	if ageYears < 5 {
		switch {
		case engineVolume < 1_000:
			duty = volume * 1.5
		case engineVolume < 1_500:
			duty = volume * 1.7
		case engineVolume < 1_800:
			duty = volume * 2.5
		case engineVolume < 2_300:
			duty = volume * 2.7
		case engineVolume < 3_000:
			duty = volume * 3
		default:
			duty = volume * 3.6
		}
	} else {
		switch {
		case engineVolume < 1_000:
			duty = volume * 3
		case engineVolume < 1_500:
			duty = volume * 3.2
		case engineVolume < 1_800:
			duty = volume * 3.5
		case engineVolume < 2_300:
			duty = volume * 4.8
		case engineVolume < 3_000:
			duty = volume * 5
		default:
			duty = volume * 5.7
		}
	}

	return int64(duty * eurRate)
}

// CustomClearance is the fixed clearance processing fee tier for the car's
// RUB price.
func CustomClearance(carPriceRub int64) int64 {
	switch {
	case carPriceRub <= 200_000:
		return 1_067
	case carPriceRub <= 450_000:
		return 2_134
	case carPriceRub <= 1_200_000:
		return 4_269
	case carPriceRub <= 2_700_000:
		return 11_746
	case carPriceRub <= 4_200_000:
		return 16_524
	case carPriceRub <= 5_500_000:
		return 21_344
	case carPriceRub <= 7_000_000:
		return 27_540
	default:
		return 30_000
	}
}

// Quote is a full landed-cost breakdown for one listing.
type Quote struct {
	Age          Age
	AlmostOld    bool
	CarPriceWon  int64
	CarPriceRub  int64
	Delivery     int64 // buyout + shipping to Vladivostok, RUB
	Duty         int64
	RecyclingFee int64
	Clearance    int64
	Final        int64

	// HasEngineVolume is false when the listing omits displacement; the
	// duty and recycling components are then unknown and left out of Final.
	HasEngineVolume bool
}

// Build computes the landed cost of a listing at the given rates and local
// time.
func Build(car *types.CarInfo, snap rates.Snapshot, now time.Time) Quote {
	regYear, regMonth := car.RegistrationYearMonth()
	age := CarAge(regYear, regMonth, now)

	q := Quote{
		Age:             age,
		AlmostOld:       age.New() && age.AlmostOld(),
		CarPriceWon:     car.PriceMan * 10_000,
		HasEngineVolume: car.Displacement > 0,
	}
	q.CarPriceRub = int64(float64(q.CarPriceWon) * snap.KRW)
	q.Delivery = int64(float64(q.CarPriceWon+deliverySurchargeWon) * snap.KRW)
	q.Clearance = CustomClearance(q.CarPriceRub)

	q.Final = q.Delivery + q.Clearance + BrokerFee + Commission
	if q.HasEngineVolume {
		q.RecyclingFee = RecyclingFee(age.Years, car.Displacement, car.FuelName == electroFuelName, q.AlmostOld)
		q.Duty = CustomDuty(age.Years, q.CarPriceRub, car.Displacement, q.AlmostOld, snap.EUR)
		q.Final += q.RecyclingFee + q.Duty
	}

	return q
}

// RenderCarInfo renders the quote message pair: the main HTML card and the
// trailing disclaimer, sent as the album caption and (on caption overflow) a
// separate message.
func RenderCarInfo(car *types.CarInfo, snap rates.Snapshot, now time.Time) (string, string) {
	q := Build(car, snap, now)
	regYear, regMonth := car.RegistrationYearMonth()

	var volumeText string
	dutyText, recyclingText := "-", "-"
	if q.HasEngineVolume {
		volumeText = fmt.Sprintf("<b>Объем двигателя (см3)</b>: %d\n", car.Displacement)
		dutyText = helpers.FormatNumberSpaces(q.Duty)
		recyclingText = helpers.FormatNumberSpaces(q.RecyclingFee)
	}

	var faqText string
	if q.Age.New() {
		if q.AlmostOld {
			faqText = "<i>" +
				"🔴 Данное авто посчитано по проходной таможенной ставке 3-5 лет.\n" +
				"После покупки, авто ставится на нашу подземную стоянку и как наступает дата - отправляется в Россию.\n" +
				"Для вас это бесплатно." +
				"</i>\n\n"
		} else {
			faqText = "<i>" +
				"🔴 В Ю.Корее указывается дата постановки на учет.\n" +
				"Дата производства может отличаться в среднем на 3-4 месяца." +
				"</i>\n\n"
		}
	}

	mainText := fmt.Sprintf(
		"<b>%s %s %s</b>\n"+
			"\n"+
			"<b>Дата выпуска (год/месяц)</b>: %d/%02d\n"+
			"<b>Пробег</b>: %s км.\n"+
			"<b>Топливо</b>: %s\n"+
			"%s"+
			"\n"+
			"<b>Итого: %s руб.* - стоимость автомобиля во Владивостоке со всеми расходами (под ключ)</b>\n"+
			"<blockquote>* не учтена комиссия на покупку валюты, для точного расчета обратитесь к менеджеру</blockquote>\n"+
			"\n"+
			"%s"+
			"<blockquote><i>"+
			"Этапы оплаты/включено в стоимость:\n"+
			"1. Выкуп авто в Ю.Корее (KRW) %s\n"+
			"+ доставка во Владивосток (KRW) 2.4 млн.\n"+
			"= %s (RUB)\n"+
			"Сроки доставки во Владивосток 8-14 дней\n"+
			"\n"+
			"2. Оплата Тамож. пошлина (RUB): %s\n"+
			"Утиль. сбор (RUB): %s\n"+
			"Тамож. оформление (RUB): %s\n"+
			"Услуги брокера (RUB): %s\n"+
			"Комиссия (RUB): %s\n"+
			"\n"+
			"3. Автовоз: рассчитывается отдельно\n"+
			"Сроки доставки от границы в ваш город 7-14 дней"+
			"</i></blockquote>\n"+
			"\n"+
			"<a href=\"https://fem.encar.com/cars/detail/%d\">Ссылка на авто</a>\n",
		translation.Translate(car.Manufacturer),
		translation.Translate(car.ModelName),
		translation.Translate(car.GradeName),
		regYear, regMonth,
		helpers.FormatNumberSpaces(car.Mileage),
		translation.Translate(car.FuelName),
		volumeText,
		helpers.FormatNumberSpaces(q.Final),
		faqText,
		helpers.FormatWonShort(q.CarPriceWon),
		helpers.FormatNumberSpaces(q.Delivery),
		dutyText,
		recyclingText,
		helpers.FormatNumberSpaces(q.Clearance),
		helpers.FormatNumberSpaces(BrokerFee),
		helpers.FormatNumberSpaces(Commission),
		car.CarID,
	)

	disclaimer := "<blockquote>" +
		"Расчет является предварительным.\n" +
		"Итоговая стоимость будет зависеть от курса валют на момент оплаты и может незначительно отличаться.\n" +
		"Так же возможны ошибки расчета, для более точной оценки оставьте заявку." +
		"</blockquote>"

	return mainText, disclaimer
}
