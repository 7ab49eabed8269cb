package utils

import (
	"time"

	cal "github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/aa"
)

var (
	ngDemocracyDay = &cal.Holiday{
		Name:  "Democracy Day",
		Type:  cal.ObservancePublic,
		Month: time.June,
		Day:   12,
		Func:  cal.CalcDayOfMonth,
	}
	ngIndependenceDay = &cal.Holiday{
		Name:  "Independence Day",
		Type:  cal.ObservancePublic,
		Month: time.October,
		Day:   1,
		Func:  cal.CalcDayOfMonth,
	}
)

// create once at init
var ngBusiness = cal.NewBusinessCalendar()

func init() {
	ngBusiness.AddHoliday(
		aa.NewYear,
		aa.GoodFriday,
		aa.EasterMonday,
		aa.WorkersDay,
		ngDemocracyDay,
		ngIndependenceDay,
		aa.ChristmasDay,
		aa.ChristmasDay2,
	)
}

// IsNGHoliday reports whether t falls on a fixed Nigerian public holiday.
func IsNGHoliday(t time.Time) bool {
	ok, _, _ := ngBusiness.IsHoliday(t)
	return ok
}

// IsBusinessDay is false on weekends and public holidays.
func IsBusinessDay(t time.Time) bool {
	return ngBusiness.IsWorkday(t)
}

// NextBusinessDay returns t if it is a business day, otherwise the first
// business day after it.
func NextBusinessDay(t time.Time) time.Time {
	d := t
	for !ngBusiness.IsWorkday(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}
