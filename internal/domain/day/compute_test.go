package day

import (
	"errors"
	"testing"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/leave"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/shift"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var jakarta = clock.LoadLocation("Asia/Jakarta")

// 2025-03-05 is a Wednesday.
var wednesday = time.Date(2025, 3, 5, 0, 0, 0, 0, jakarta)

func ts(date time.Time, hour, minute int) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, jakarta)
}

func closed(id string, in, out time.Time) attendance.Record {
	return attendance.Record{ID: id, ClockIn: in, ClockOut: &out}
}

func dayShift() *shift.Resolved {
	return &shift.Resolved{
		Shift: shift.Shift{
			ID:                        "day",
			StartTime:                 clock.TimeOfDay(9 * 60),
			EndTime:                   clock.TimeOfDay(17 * 60),
			LateToleranceMinutes:      15,
			EarlyExitToleranceMinutes: 5,
		},
		WorkingDays: shift.NewWeekdaySet(time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday),
	}
}

func inputs(records ...attendance.Record) Inputs {
	return Inputs{
		CompanyID:  "co-1",
		EmployeeID: "emp-1",
		Date:       wednesday,
		Location:   jakarta,
		Today:      wednesday.AddDate(0, 0, 7),
		Records:    records,
		Shift:      dayShift(),
	}
}

func TestComputeDay_Status(t *testing.T) {
	punch := closed("r1", ts(wednesday, 9, 0), ts(wednesday, 17, 0))

	tests := []struct {
		name   string
		mutate func(*Inputs)
		want   Status
	}{
		{
			name: "approved leave outranks punches",
			mutate: func(in *Inputs) {
				in.Records = []attendance.Record{punch}
				in.Leaves = []leave.Record{{StartDate: wednesday.AddDate(0, 0, -1), EndDate: wednesday, DayPart: leave.DayPartFull, Status: leave.StatusApproved}}
			},
			want: StatusLeave,
		},
		{
			name: "pending leave is ignored",
			mutate: func(in *Inputs) {
				in.Records = []attendance.Record{punch}
				in.Leaves = []leave.Record{{StartDate: wednesday, EndDate: wednesday, DayPart: leave.DayPartFull, Status: leave.StatusPending}}
			},
			want: StatusPresent,
		},
		{
			name: "holiday without punches",
			mutate: func(in *Inputs) {
				in.Holidays = []leave.Holiday{{Date: wednesday, Name: "Nyepi"}}
			},
			want: StatusHoliday,
		},
		{
			name: "holiday outranks missing shift",
			mutate: func(in *Inputs) {
				in.Shift = nil
				in.Holidays = []leave.Holiday{{Date: wednesday, Name: "Nyepi"}}
			},
			want: StatusHoliday,
		},
		{
			name:   "missing shift is unresolved",
			mutate: func(in *Inputs) { in.Shift = nil },
			want:   StatusUnresolved,
		},
		{
			name: "non-working day without punches",
			mutate: func(in *Inputs) {
				in.Shift.WorkingDays = shift.NewWeekdaySet(time.Monday)
			},
			want: StatusOff,
		},
		{
			name: "non-working day with punches",
			mutate: func(in *Inputs) {
				in.Shift.WorkingDays = shift.NewWeekdaySet(time.Monday)
				in.Records = []attendance.Record{punch}
			},
			want: StatusOff,
		},
		{
			name: "past working day without punches",
			want: StatusAbsent,
		},
		{
			name:   "today without punches is pending",
			mutate: func(in *Inputs) { in.Today = wednesday },
			want:   StatusPending,
		},
		{
			name:   "punched working day",
			mutate: func(in *Inputs) { in.Records = []attendance.Record{punch} },
			want:   StatusPresent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := inputs()
			if tt.mutate != nil {
				tt.mutate(&in)
			}
			assert.Equal(t, tt.want, ComputeDay(in).Status)
		})
	}
}

func TestComputeDay_LeaveReportsDayPart(t *testing.T) {
	in := inputs()
	in.Leaves = []leave.Record{{StartDate: wednesday, EndDate: wednesday, DayPart: leave.DayPartAM, Status: leave.StatusApproved}}

	got := ComputeDay(in)
	require.NotNil(t, got.LeaveDayPart)
	assert.Equal(t, leave.DayPartAM, *got.LeaveDayPart)
	assert.Nil(t, got.InTime)
}

func TestComputeDay_UnresolvedCarriesReason(t *testing.T) {
	in := inputs()
	in.Shift = nil
	in.ShiftErr = shift.ErrWorkingDaysUnset

	got := ComputeDay(in)
	require.NotNil(t, got.Reason)
	assert.Equal(t, shift.ErrWorkingDaysUnset.Error(), *got.Reason)
	assert.Nil(t, got.ShiftID)
}

func TestComputeDay_Minutes(t *testing.T) {
	tests := []struct {
		name     string
		records  []attendance.Record
		wantIn   time.Time
		wantOut  *time.Time
		worked   int
		late     int
		early    int
		overtime int
		open     bool
		tags     []string
	}{
		{
			name:    "on time",
			records: []attendance.Record{closed("r1", ts(wednesday, 8, 55), ts(wednesday, 17, 0))},
			wantIn:  ts(wednesday, 8, 55),
			worked:  485,
		},
		{
			name:    "within tolerances",
			records: []attendance.Record{closed("r1", ts(wednesday, 9, 15), ts(wednesday, 16, 55))},
			wantIn:  ts(wednesday, 9, 15),
			worked:  460,
		},
		{
			name:    "late and early",
			records: []attendance.Record{closed("r1", ts(wednesday, 9, 20), ts(wednesday, 16, 50))},
			wantIn:  ts(wednesday, 9, 20),
			worked:  450,
			late:    5,
			early:   5,
			tags:    []string{TagLate, TagEarlyLeave},
		},
		{
			name: "split shift merges pairs",
			records: []attendance.Record{
				closed("r2", ts(wednesday, 13, 0), ts(wednesday, 17, 30)),
				closed("r1", ts(wednesday, 9, 0), ts(wednesday, 12, 0)),
			},
			wantIn:   ts(wednesday, 9, 0),
			worked:   450,
			overtime: 30,
			tags:     []string{TagOvertime},
		},
		{
			name:    "open record counts as present",
			records: []attendance.Record{{ID: "r1", ClockIn: ts(wednesday, 9, 0)}},
			wantIn:  ts(wednesday, 9, 0),
			open:    true,
		},
		{
			name: "closed pair then open record",
			records: []attendance.Record{
				closed("r1", ts(wednesday, 9, 0), ts(wednesday, 12, 0)),
				{ID: "r2", ClockIn: ts(wednesday, 13, 0)},
			},
			wantIn: ts(wednesday, 9, 0),
			worked: 180,
			open:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeDay(inputs(tt.records...))

			assert.Equal(t, StatusPresent, got.Status)
			require.NotNil(t, got.InTime)
			assert.True(t, tt.wantIn.Equal(*got.InTime))
			assert.Equal(t, tt.worked, got.WorkedMinutes)
			assert.Equal(t, tt.late, got.LateMinutes)
			assert.Equal(t, tt.early, got.EarlyLeaveMinutes)
			assert.Equal(t, tt.overtime, got.OvertimeMinutes)
			assert.Equal(t, tt.open, got.Open)
			assert.Equal(t, tt.tags, got.Tags)
		})
	}
}

func TestComputeDay_RestDayKeepsPunchTimes(t *testing.T) {
	in := inputs(closed("r1", ts(wednesday, 10, 0), ts(wednesday, 14, 0)))
	in.Shift.WorkingDays = shift.NewWeekdaySet(time.Monday)

	got := ComputeDay(in)
	assert.Equal(t, StatusOff, got.Status)
	require.NotNil(t, got.InTime)
	require.NotNil(t, got.OutTime)
	assert.True(t, ts(wednesday, 10, 0).Equal(*got.InTime))
	assert.True(t, ts(wednesday, 14, 0).Equal(*got.OutTime))
	assert.Equal(t, 240, got.WorkedMinutes)
	assert.Zero(t, got.LateMinutes)
	assert.Empty(t, got.Tags)
}

func TestComputeDay_OvernightShift(t *testing.T) {
	in := inputs(closed("r1", ts(wednesday, 22, 10), ts(wednesday.AddDate(0, 0, 1), 6, 30)))
	in.Shift.Shift.StartTime = clock.TimeOfDay(22 * 60)
	in.Shift.Shift.EndTime = clock.TimeOfDay(6 * 60)
	in.Shift.Shift.LateToleranceMinutes = 5

	got := ComputeDay(in)
	assert.Equal(t, StatusPresent, got.Status)
	assert.Equal(t, 500, got.WorkedMinutes)
	assert.Equal(t, 5, got.LateMinutes)
	assert.Equal(t, 0, got.EarlyLeaveMinutes)
	assert.Equal(t, 30, got.OvertimeMinutes)
}

func TestComputeDay_IsDeterministic(t *testing.T) {
	a := closed("r1", ts(wednesday, 9, 0), ts(wednesday, 12, 0))
	b := closed("r2", ts(wednesday, 13, 0), ts(wednesday, 17, 0))

	first := ComputeDay(inputs(a, b))
	second := ComputeDay(inputs(b, a))
	assert.Equal(t, first, second)
	assert.Equal(t, first, ComputeDay(inputs(a, b)))
}

func TestComputeDay_DoesNotMutateInputs(t *testing.T) {
	records := []attendance.Record{
		closed("r2", ts(wednesday, 13, 0), ts(wednesday, 17, 0)),
		closed("r1", ts(wednesday, 9, 0), ts(wednesday, 12, 0)),
	}
	ComputeDay(inputs(records...))
	assert.Equal(t, "r2", records[0].ID)
}

func TestLateAndEarlyLeaveMinutes(t *testing.T) {
	s := dayShift().Shift

	assert.Equal(t, 0, LateMinutes(s, ts(wednesday, 9, 15), jakarta))
	assert.Equal(t, 1, LateMinutes(s, ts(wednesday, 9, 16), jakarta))
	// UTC input is bucketed in the tenant zone: 02:30Z is 09:30 in Jakarta.
	assert.Equal(t, 15, LateMinutes(s, time.Date(2025, 3, 5, 2, 30, 0, 0, time.UTC), jakarta))

	assert.Equal(t, 0, EarlyLeaveMinutes(s, ts(wednesday, 9, 0), ts(wednesday, 16, 55), jakarta))
	assert.Equal(t, 25, EarlyLeaveMinutes(s, ts(wednesday, 9, 0), ts(wednesday, 16, 30), jakarta))
}

func TestComputeDay_ShiftErrorIsNotAnError(t *testing.T) {
	in := inputs()
	in.Shift = nil
	in.ShiftErr = errors.New("boom")
	assert.Equal(t, StatusUnresolved, ComputeDay(in).Status)
}
