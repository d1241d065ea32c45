package attendance

import (
	"context"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/auth"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
)

type TrackerImpl struct {
	attendance.RecordRepository
}

func NewTracker(recordRepo attendance.RecordRepository) attendance.Tracker {
	return &TrackerImpl{RecordRepository: recordRepo}
}

// OpenShift implements attendance.Tracker. It always reads persisted state.
func (t *TrackerImpl) OpenShift(ctx context.Context, p auth.Principal, employeeID string) (attendance.OpenShiftResponse, error) {
	scoped, err := p.ScopeEmployee(employeeID)
	if err != nil {
		return attendance.OpenShiftResponse{}, err
	}
	if scoped == "" {
		var errs validator.ValidationErrors
		errs.Add("employee_id", "employee_id is required")
		return attendance.OpenShiftResponse{}, errs
	}

	rec, err := t.RecordRepository.GetOpen(ctx, p.CompanyID, scoped)
	if err != nil {
		return attendance.OpenShiftResponse{}, err
	}
	return attendance.NewOpenShiftResponse(scoped, rec != nil, rec), nil
}
