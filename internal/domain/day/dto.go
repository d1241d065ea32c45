package day

import (
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/leave"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/clock"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
)

type ProcessRequest struct {
	StartDate   string   `json:"start_date" validate:"required"`
	EndDate     string   `json:"end_date" validate:"required"`
	EmployeeIDs []string `json:"employee_ids" validate:"omitempty,dive,required"`
}

func (r *ProcessRequest) Validate() error {
	var errs validator.ValidationErrors
	if err := validator.Struct(r); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok {
			errs = append(errs, fieldErrs...)
		} else {
			return err
		}
	}
	validateRange(&errs, r.StartDate, r.EndDate)
	return errs.Err()
}

type InvalidateRequest struct {
	StartDate   string   `json:"start_date" validate:"required"`
	EndDate     string   `json:"end_date" validate:"required"`
	EmployeeIDs []string `json:"employee_ids" validate:"omitempty,dive,required"`
}

func (r *InvalidateRequest) Validate() error {
	var errs validator.ValidationErrors
	if err := validator.Struct(r); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok {
			errs = append(errs, fieldErrs...)
		} else {
			return err
		}
	}
	validateRange(&errs, r.StartDate, r.EndDate)
	return errs.Err()
}

func validateRange(errs *validator.ValidationErrors, start, end string) {
	if _, ok := validator.IsValidDate(start); start != "" && !ok {
		errs.Add("start_date", "start_date must be YYYY-MM-DD")
	}
	if _, ok := validator.IsValidDate(end); end != "" && !ok {
		errs.Add("end_date", "end_date must be YYYY-MM-DD")
	}
	if len(*errs) == 0 && end < start {
		errs.Add("end_date", ErrInvalidRange.Error())
	}
}

type AttendanceDayResponse struct {
	EmployeeID        string         `json:"employee_id"`
	Date              string         `json:"date"`
	Status            Status         `json:"status"`
	Tags              []string       `json:"tags"`
	InTime            *string        `json:"in_time"`
	OutTime           *string        `json:"out_time"`
	WorkedMinutes     int            `json:"worked_minutes"`
	LateMinutes       int            `json:"late_minutes"`
	EarlyLeaveMinutes int            `json:"early_leave_minutes"`
	OvertimeMinutes   int            `json:"overtime_minutes"`
	Open              bool           `json:"open"`
	ShiftID           *string        `json:"shift_id"`
	LeaveDayPart      *leave.DayPart `json:"leave_day_part,omitempty"`
	HolidayName       *string        `json:"holiday_name,omitempty"`
	Reason            *string        `json:"reason,omitempty"`
}

func NewAttendanceDayResponse(d AttendanceDay) AttendanceDayResponse {
	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}
	return AttendanceDayResponse{
		EmployeeID:        d.EmployeeID,
		Date:              d.Date.Format(clock.DateLayout),
		Status:            d.Status,
		Tags:              tags,
		InTime:            formatTime(d.InTime),
		OutTime:           formatTime(d.OutTime),
		WorkedMinutes:     d.WorkedMinutes,
		LateMinutes:       d.LateMinutes,
		EarlyLeaveMinutes: d.EarlyLeaveMinutes,
		OvertimeMinutes:   d.OvertimeMinutes,
		Open:              d.Open,
		ShiftID:           d.ShiftID,
		LeaveDayPart:      d.LeaveDayPart,
		HolidayName:       d.HolidayName,
		Reason:            d.Reason,
	}
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
