package shift

import (
	"fmt"
	"strings"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/clock"
)

type Shift struct {
	ID                        string
	CompanyID                 string
	Name                      string
	StartTime                 clock.TimeOfDay
	EndTime                   clock.TimeOfDay
	LateToleranceMinutes      int
	EarlyExitToleranceMinutes int
	BreakDurationMinutes      int
	WorkingDays               WeekdaySet
	IsDefault                 bool
	CreatedAt                 time.Time
	UpdatedAt                 time.Time
}

// Overnight reports whether the shift ends on the day after it starts.
func (s Shift) Overnight() bool {
	return s.EndTime <= s.StartTime
}

// Bounds anchors the shift on date. Overnight shifts end the next day.
func (s Shift) Bounds(date time.Time, loc *time.Location) (start, end time.Time) {
	start = s.StartTime.On(date, loc)
	end = s.EndTime.On(date, loc)
	if s.Overnight() {
		end = end.AddDate(0, 0, 1)
	}
	return start, end
}

type Source string

const (
	SourceAssignment Source = "assignment"
	SourceDefault    Source = "default"
)

// Resolved is the effective shift of an employee on a date.
type Resolved struct {
	Shift       Shift
	WorkingDays WeekdaySet
	Source      Source
}

func (r Resolved) IsWorkingDay(date time.Time) bool {
	return r.WorkingDays.Has(date.Weekday())
}

// WeekdaySet is a bitmask indexed by time.Weekday.
type WeekdaySet uint8

func NewWeekdaySet(days ...time.Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		s |= 1 << uint(d)
	}
	return s
}

func (s WeekdaySet) Has(d time.Weekday) bool {
	return s&(1<<uint(d)) != 0
}

func (s WeekdaySet) IsEmpty() bool {
	return s&0x7f == 0
}

func (s WeekdaySet) String() string {
	var names []string
	for d := time.Sunday; d <= time.Saturday; d++ {
		if s.Has(d) {
			names = append(names, strings.ToLower(d.String()[:3]))
		}
	}
	return strings.Join(names, ",")
}

var weekdayNames = [...]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// parseWeekday accepts a case-insensitive prefix of a weekday name of at
// least three letters: "mon", "Mond" and "MONDAY" all name Monday.
func parseWeekday(tok string) (time.Weekday, bool) {
	tok = strings.ToLower(strings.TrimSpace(tok))
	if len(tok) < 3 {
		return 0, false
	}
	for d, name := range weekdayNames {
		if strings.HasPrefix(name, tok) {
			return time.Weekday(d), true
		}
	}
	return 0, false
}

// ParseWeekdays reads a comma or whitespace separated weekday list. A token
// is a weekday or an inclusive range such as "mon-fri"; ranges may wrap past
// Saturday ("fri-mon").
func ParseWeekdays(s string) (WeekdaySet, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n'
	})

	var set WeekdaySet
	for _, f := range fields {
		from, to, isRange := strings.Cut(f, "-")
		start, ok := parseWeekday(from)
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrInvalidWorkingDays, f)
		}
		if !isRange {
			set |= 1 << uint(start)
			continue
		}

		end, ok := parseWeekday(to)
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrInvalidWorkingDays, f)
		}
		for d := start; ; d = (d + 1) % 7 {
			set |= 1 << uint(d)
			if d == end {
				break
			}
		}
	}
	return set, nil
}
