package features

import (
	"math"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

// temporalFeatures derives calendar and cyclical encodings. Batches
// with no usable timestamps skip the whole group.
func (e *Engineer) temporalFeatures(b *builder, records []domain.Transaction) {
	hasTime := false
	for i := range records {
		if records[i].HasTimestamp() {
			hasTime = true
			break
		}
	}
	if !hasTime {
		return
	}

	n := len(records)
	dayOfWeek := make([]float64, n)
	dayOfMonth := make([]float64, n)
	month := make([]float64, n)
	quarter := make([]float64, n)
	hour := make([]float64, n)

	isWeekend := make([]float64, n)
	isBusiness := make([]float64, n)
	isLunch := make([]float64, n)
	isMonthStart := make([]float64, n)
	isMonthEnd := make([]float64, n)
	isQuarterEnd := make([]float64, n)
	isFYEnd := make([]float64, n)
	isHoliday := make([]float64, n)

	dowSin := make([]float64, n)
	dowCos := make([]float64, n)
	hourSin := make([]float64, n)
	hourCos := make([]float64, n)
	monthSin := make([]float64, n)
	monthCos := make([]float64, n)

	for i := range records {
		ts := records[i].Timestamp
		if ts.IsZero() {
			continue
		}

		dow := float64(ts.Weekday()) // Sunday = 0
		dom := float64(ts.Day())
		m := float64(int(ts.Month()))
		h := float64(ts.Hour())

		dayOfWeek[i] = dow
		dayOfMonth[i] = dom
		month[i] = m
		quarter[i] = math.Ceil(m / 3)
		hour[i] = h

		if ts.Weekday() == time.Saturday || ts.Weekday() == time.Sunday {
			isWeekend[i] = 1
		}
		if h >= 9 && h < 17 {
			isBusiness[i] = 1
		}
		if h >= 12 && h < 14 {
			isLunch[i] = 1
		}
		if dom <= 3 {
			isMonthStart[i] = 1
		}
		if dom >= float64(lastDayOfMonth(ts)-2) {
			isMonthEnd[i] = 1
		}
		if m == 3 || m == 6 || m == 9 || m == 12 {
			isQuarterEnd[i] = 1
		}
		// Indian financial year closes in March.
		if m == 3 {
			isFYEnd[i] = 1
		}
		// Festive quarter: October through December.
		if m >= 10 {
			isHoliday[i] = 1
		}

		// Cyclical encodings avoid the false ordinal distance at
		// wrap-around (Sunday vs Saturday, 23:00 vs 00:00).
		dowSin[i] = math.Sin(2 * math.Pi * dow / 7)
		dowCos[i] = math.Cos(2 * math.Pi * dow / 7)
		hourSin[i] = math.Sin(2 * math.Pi * h / 24)
		hourCos[i] = math.Cos(2 * math.Pi * h / 24)
		monthSin[i] = math.Sin(2 * math.Pi * m / 12)
		monthCos[i] = math.Cos(2 * math.Pi * m / 12)
	}

	b.add("day_of_week", dayOfWeek)
	b.add("day_of_month", dayOfMonth)
	b.add("month", month)
	b.add("quarter", quarter)
	b.add("hour", hour)
	b.add(FeatIsWeekend, isWeekend)
	b.add("is_business_hours", isBusiness)
	b.add("is_lunch_hour", isLunch)
	b.add("is_month_start", isMonthStart)
	b.add("is_month_end", isMonthEnd)
	b.add("is_quarter_end", isQuarterEnd)
	b.add("is_fy_end", isFYEnd)
	b.add("is_holiday_season", isHoliday)
	b.add("dow_sin", dowSin)
	b.add("dow_cos", dowCos)
	b.add("hour_sin", hourSin)
	b.add("hour_cos", hourCos)
	b.add("month_sin", monthSin)
	b.add("month_cos", monthCos)
}

func lastDayOfMonth(ts time.Time) int {
	firstOfNext := time.Date(ts.Year(), ts.Month(), 1, 0, 0, 0, 0, ts.Location()).AddDate(0, 1, 0)
	return firstOfNext.AddDate(0, 0, -1).Day()
}
