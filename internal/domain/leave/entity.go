package leave

import "time"

type DayPart string

const (
	DayPartFull DayPart = "full"
	DayPartAM   DayPart = "am"
	DayPartPM   DayPart = "pm"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Record is an employee leave spanning StartDate..EndDate inclusive.
type Record struct {
	ID         string
	CompanyID  string
	EmployeeID string
	StartDate  time.Time
	EndDate    time.Time
	DayPart    DayPart
	Status     Status
}

// Covers reports whether the leave is approved and spans date.
func (r Record) Covers(date time.Time) bool {
	if r.Status != StatusApproved {
		return false
	}
	d := civil(date)
	return !d.Before(civil(r.StartDate)) && !d.After(civil(r.EndDate))
}

type Holiday struct {
	CompanyID string
	Date      time.Time
	Name      string
}

func (h Holiday) On(date time.Time) bool {
	return civil(h.Date).Equal(civil(date))
}

// civil drops the clock and location so dates compare by calendar day.
func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
