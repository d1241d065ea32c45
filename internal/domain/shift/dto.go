package shift

import (
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/clock"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
)

type SaveShiftRequest struct {
	ID                        string `json:"-"`
	Name                      string `json:"name" validate:"required,max=100"`
	StartTime                 string `json:"start_time" validate:"required"`
	EndTime                   string `json:"end_time" validate:"required"`
	LateToleranceMinutes      int    `json:"late_tolerance_minutes" validate:"gte=0,lte=720"`
	EarlyExitToleranceMinutes int    `json:"early_exit_tolerance_minutes" validate:"gte=0,lte=720"`
	BreakDurationMinutes      int    `json:"break_duration_minutes" validate:"gte=0,lte=720"`
	WorkingDays               string `json:"working_days"`
	IsDefault                 bool   `json:"is_default"`
	// EffectiveFrom limits cache invalidation to days on or after it.
	// Empty invalidates every cached day of the affected employees.
	EffectiveFrom string `json:"effective_from,omitempty"`

	parsed        Shift
	effectiveFrom time.Time
}

// Validate checks the request and parses times and working days once.
func (r *SaveShiftRequest) Validate() error {
	var errs validator.ValidationErrors
	if err := validator.Struct(r); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok {
			errs = append(errs, fieldErrs...)
		} else {
			return err
		}
	}

	start, err := clock.ParseTimeOfDay(r.StartTime)
	if err != nil && r.StartTime != "" {
		errs.Add("start_time", "start_time must be HH:MM")
	}
	end, err := clock.ParseTimeOfDay(r.EndTime)
	if err != nil && r.EndTime != "" {
		errs.Add("end_time", "end_time must be HH:MM")
	}

	days, err := ParseWeekdays(r.WorkingDays)
	if err != nil {
		errs.Add("working_days", "working_days must list weekdays such as mon,tue,wed")
	} else if days.IsEmpty() {
		errs.Add("working_days", "working_days must contain at least one weekday")
	}

	if r.EffectiveFrom != "" {
		d, ok := validator.IsValidDate(r.EffectiveFrom)
		if !ok {
			errs.Add("effective_from", "effective_from must be YYYY-MM-DD")
		}
		r.effectiveFrom = d
	}

	if len(errs) > 0 {
		return errs
	}

	r.parsed = Shift{
		ID:                        r.ID,
		Name:                      r.Name,
		StartTime:                 start,
		EndTime:                   end,
		LateToleranceMinutes:      r.LateToleranceMinutes,
		EarlyExitToleranceMinutes: r.EarlyExitToleranceMinutes,
		BreakDurationMinutes:      r.BreakDurationMinutes,
		WorkingDays:               days,
		IsDefault:                 r.IsDefault,
	}
	return nil
}

// Shift returns the parsed shift. Only meaningful after Validate succeeds.
func (r *SaveShiftRequest) Shift() Shift {
	return r.parsed
}

// EffectiveDate is zero when no effective_from was sent.
func (r *SaveShiftRequest) EffectiveDate() time.Time {
	return r.effectiveFrom
}

type AssignShiftRequest struct {
	ShiftID    string `json:"-"`
	EmployeeID string `json:"-"`
}

func (r *AssignShiftRequest) Validate() error {
	var errs validator.ValidationErrors
	if validator.IsEmpty(r.ShiftID) {
		errs.Add("shift_id", "shift_id is required")
	}
	if validator.IsEmpty(r.EmployeeID) {
		errs.Add("employee_id", "employee_id is required")
	}
	return errs.Err()
}

type ShiftResponse struct {
	ID                        string `json:"id"`
	Name                      string `json:"name"`
	StartTime                 string `json:"start_time"`
	EndTime                   string `json:"end_time"`
	LateToleranceMinutes      int    `json:"late_tolerance_minutes"`
	EarlyExitToleranceMinutes int    `json:"early_exit_tolerance_minutes"`
	BreakDurationMinutes      int    `json:"break_duration_minutes"`
	WorkingDays               string `json:"working_days"`
	IsDefault                 bool   `json:"is_default"`
	Overnight                 bool   `json:"overnight"`
}

func NewShiftResponse(s Shift) ShiftResponse {
	return ShiftResponse{
		ID:                        s.ID,
		Name:                      s.Name,
		StartTime:                 s.StartTime.String(),
		EndTime:                   s.EndTime.String(),
		LateToleranceMinutes:      s.LateToleranceMinutes,
		EarlyExitToleranceMinutes: s.EarlyExitToleranceMinutes,
		BreakDurationMinutes:      s.BreakDurationMinutes,
		WorkingDays:               s.WorkingDays.String(),
		IsDefault:                 s.IsDefault,
		Overnight:                 s.Overnight(),
	}
}
