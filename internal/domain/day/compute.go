package day

import (
	"sort"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/leave"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/shift"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/clock"
)

// Inputs is everything ComputeDay reads. Date is midnight in Location.
type Inputs struct {
	CompanyID  string
	EmployeeID string
	Date       time.Time
	Location   *time.Location
	// Today is the tenant-local current date.
	Today time.Time

	// Records whose clock_in falls on Date.
	Records  []attendance.Record
	Shift    *shift.Resolved
	ShiftErr error
	Leaves   []leave.Record
	Holidays []leave.Holiday
}

// ComputeDay reduces the inputs of one employee-day to its status. It has no
// side effects and never reads the wall clock.
func ComputeDay(in Inputs) AttendanceDay {
	d := AttendanceDay{
		CompanyID:  in.CompanyID,
		EmployeeID: in.EmployeeID,
		Date:       in.Date,
	}
	if in.Shift != nil {
		id := in.Shift.Shift.ID
		d.ShiftID = &id
	}

	for _, l := range in.Leaves {
		if l.Covers(in.Date) {
			part := l.DayPart
			d.Status = StatusLeave
			d.LeaveDayPart = &part
			return d
		}
	}

	for _, h := range in.Holidays {
		if h.On(in.Date) {
			name := h.Name
			d.Status = StatusHoliday
			d.HolidayName = &name
			return d
		}
	}

	records := sortedByClockIn(in.Records)
	mergePunches(&d, records, in.Location)

	if in.Shift == nil {
		reason := shift.ErrNoShiftConfigured.Error()
		if in.ShiftErr != nil {
			reason = in.ShiftErr.Error()
		}
		d.Status = StatusUnresolved
		d.Reason = &reason
		return d
	}

	// Punches on a rest day keep their times but never make it a workday.
	if !in.Shift.IsWorkingDay(in.Date) {
		d.Status = StatusOff
		return d
	}

	if len(records) == 0 {
		if in.Date.Before(in.Today) {
			d.Status = StatusAbsent
		} else {
			d.Status = StatusPending
		}
		return d
	}

	d.Status = StatusPresent
	applyShift(&d, in.Shift.Shift, in.Date, in.Location)
	return d
}

func sortedByClockIn(records []attendance.Record) []attendance.Record {
	out := make([]attendance.Record, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ClockIn.Equal(out[j].ClockIn) {
			return out[i].ID < out[j].ID
		}
		return out[i].ClockIn.Before(out[j].ClockIn)
	})
	return out
}

// mergePunches takes the first clock-in, the last clock-out and the sum of
// closed pairs. Reported times are in loc.
func mergePunches(d *AttendanceDay, records []attendance.Record, loc *time.Location) {
	if len(records) == 0 {
		return
	}
	if loc == nil {
		loc = time.UTC
	}
	first := records[0].ClockIn.In(loc)
	d.InTime = &first

	for _, r := range records {
		if r.ClockOut == nil {
			d.Open = true
			continue
		}
		d.WorkedMinutes += attendance.DurationBetween(r.ClockIn, *r.ClockOut)
		if d.OutTime == nil || r.ClockOut.After(*d.OutTime) {
			out := r.ClockOut.In(loc)
			d.OutTime = &out
		}
	}
}

func applyShift(d *AttendanceDay, s shift.Shift, date time.Time, loc *time.Location) {
	start, end := s.Bounds(date, loc)

	lateAfter := start.Add(time.Duration(s.LateToleranceMinutes) * time.Minute)
	d.LateMinutes = minutesAfter(*d.InTime, lateAfter)

	// While a shift is still open the last clock-out is only a break.
	if d.OutTime != nil && !d.Open {
		earlyBefore := end.Add(-time.Duration(s.EarlyExitToleranceMinutes) * time.Minute)
		d.EarlyLeaveMinutes = minutesAfter(earlyBefore, *d.OutTime)
		d.OvertimeMinutes = minutesAfter(*d.OutTime, end)
	}

	if d.LateMinutes > 0 {
		d.Tags = append(d.Tags, TagLate)
	}
	if d.EarlyLeaveMinutes > 0 {
		d.Tags = append(d.Tags, TagEarlyLeave)
	}
	if d.OvertimeMinutes > 0 {
		d.Tags = append(d.Tags, TagOvertime)
	}
}

// minutesAfter returns whole minutes by which a is after b, or 0.
func minutesAfter(a, b time.Time) int {
	if !a.After(b) {
		return 0
	}
	return int(a.Sub(b) / time.Minute)
}

// LateMinutes applies only the clock-in side of the shift, for immediate
// feedback on a fresh punch.
func LateMinutes(s shift.Shift, clockIn time.Time, loc *time.Location) int {
	start, _ := s.Bounds(clock.Date(clockIn, loc), loc)
	return minutesAfter(clockIn, start.Add(time.Duration(s.LateToleranceMinutes)*time.Minute))
}

// EarlyLeaveMinutes measures a clock-out against the shift that began on the
// clock-in date.
func EarlyLeaveMinutes(s shift.Shift, clockIn, clockOut time.Time, loc *time.Location) int {
	_, end := s.Bounds(clock.Date(clockIn, loc), loc)
	return minutesAfter(end.Add(-time.Duration(s.EarlyExitToleranceMinutes)*time.Minute), clockOut)
}
