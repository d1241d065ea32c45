package day

import (
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/leave"
)

type Status string

const (
	StatusPresent Status = "Present"
	StatusAbsent  Status = "Absent"
	StatusLeave   Status = "Leave"
	StatusHoliday Status = "Holiday"
	StatusOff     Status = "Off"
	// StatusPending marks a working day with no punches that has not ended yet.
	StatusPending Status = "Pending"
	// StatusUnresolved flags a day whose shift could not be resolved.
	StatusUnresolved Status = "Unresolved"
)

// Tags qualify a Present day.
const (
	TagLate       = "Late"
	TagEarlyLeave = "Early Leave"
	TagOvertime   = "Overtime"
)

// AttendanceDay is the deterministic reduction of one employee-day.
type AttendanceDay struct {
	CompanyID         string
	EmployeeID        string
	Date              time.Time
	Status            Status
	Tags              []string
	InTime            *time.Time
	OutTime           *time.Time
	WorkedMinutes     int
	LateMinutes       int
	EarlyLeaveMinutes int
	OvertimeMinutes   int
	Open              bool
	ShiftID           *string
	LeaveDayPart      *leave.DayPart
	HolidayName       *string
	Reason            *string
}

// Key identifies one employee-day.
type Key struct {
	CompanyID  string
	EmployeeID string
	Date       string
}
