package marketfeed

import "time"

const (
	openHour    = 9
	openMinute  = 15
	closeHour   = 15
	closeMinute = 30
)

// Hours models the exchange trading session: 09:15 to 15:30 local exchange
// time, inclusive on both ends, determined purely by wall-clock hour and
// minute. There is no holiday calendar.
type Hours struct {
	loc *time.Location
}

// NewHours pins the session to the exchange timezone. Falls back to UTC when
// the tz database is unavailable.
func NewHours() Hours {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		return Hours{loc: time.UTC}
	}
	return Hours{loc: loc}
}

// HoursIn builds session hours for an explicit location, used by tests.
func HoursIn(loc *time.Location) Hours {
	return Hours{loc: loc}
}

func (h Hours) IsOpen(at time.Time) bool {
	local := at.In(h.loc)
	minutes := local.Hour()*60 + local.Minute()
	return minutes >= openHour*60+openMinute && minutes <= closeHour*60+closeMinute
}

// StartOfTradingDay returns midnight of the current day in exchange local
// time, the boundary used for day P&L aggregation.
func (h Hours) StartOfTradingDay(at time.Time) time.Time {
	local := at.In(h.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, h.loc)
}
