package day

import (
	"context"
	"fmt"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/clock"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/events"
)

// HandleDayDirty recomputes a day announced on the dirty topic so the
// cache is warm for the next read. Days that have not ended are skipped
// since they are never cached.
func (s *AggregatorImpl) HandleDayDirty(ctx context.Context, e events.DayDirty) error {
	co, err := s.companies.GetByID(ctx, e.CompanyID)
	if err != nil {
		return fmt.Errorf("failed to get company: %w", err)
	}
	loc := co.Location()

	date, err := clock.ParseDate(e.Date, loc)
	if err != nil {
		return fmt.Errorf("failed to parse dirty date %q: %w", e.Date, err)
	}
	if !date.Before(clock.Date(s.now(), loc)) {
		return nil
	}

	_, err = s.Recompute(ctx, e.CompanyID, e.EmployeeID, date)
	return err
}
