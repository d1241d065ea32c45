package shift

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/auth"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/shift"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
)

type ShiftServiceImpl struct {
	shift.ShiftRepository
	cache    shift.DayCacheInvalidator
	txRunner database.TxRunner

	// fallback applies to shifts stored without working days. Empty means
	// such shifts fail to resolve.
	fallback shift.WeekdaySet
}

func NewShiftService(
	shiftRepo shift.ShiftRepository,
	cache shift.DayCacheInvalidator,
	txRunner database.TxRunner,
	fallback shift.WeekdaySet,
) shift.ShiftService {
	return &ShiftServiceImpl{
		ShiftRepository: shiftRepo,
		cache:           cache,
		txRunner:        txRunner,
		fallback:        fallback,
	}
}

// Resolve implements shift.Resolver. Assignments have no effective date, so
// the current mapping applies to every date.
func (s *ShiftServiceImpl) Resolve(ctx context.Context, companyID, employeeID string, date time.Time) (shift.Resolved, error) {
	source := shift.SourceAssignment
	sh, err := s.ShiftRepository.GetAssigned(ctx, companyID, employeeID)
	if err != nil {
		return shift.Resolved{}, fmt.Errorf("failed to get assigned shift: %w", err)
	}
	if sh == nil {
		source = shift.SourceDefault
		sh, err = s.ShiftRepository.GetDefault(ctx, companyID)
		if err != nil {
			return shift.Resolved{}, fmt.Errorf("failed to get default shift: %w", err)
		}
	}
	if sh == nil {
		return shift.Resolved{}, shift.ErrNoShiftConfigured
	}

	days := sh.WorkingDays
	if days.IsEmpty() {
		if s.fallback.IsEmpty() {
			return shift.Resolved{}, fmt.Errorf("%w: shift %q", shift.ErrWorkingDaysUnset, sh.Name)
		}
		days = s.fallback
	}

	return shift.Resolved{Shift: *sh, WorkingDays: days, Source: source}, nil
}

// Save implements shift.ShiftService. It creates the shift when req.ID is
// empty and drops cached days of every employee whose effective shift changes.
func (s *ShiftServiceImpl) Save(ctx context.Context, p auth.Principal, req shift.SaveShiftRequest) (shift.ShiftResponse, error) {
	if err := req.Validate(); err != nil {
		return shift.ShiftResponse{}, err
	}

	sh := req.Shift()
	sh.CompanyID = p.CompanyID

	var saved shift.Shift
	err := s.txRunner.Do(ctx, func(txCtx context.Context) error {
		affected := map[string]struct{}{}

		// Followers of the old default move with the flag.
		if sh.IsDefault {
			prev, err := s.ShiftRepository.GetDefault(txCtx, p.CompanyID)
			if err != nil {
				return fmt.Errorf("failed to get default shift: %w", err)
			}
			if prev != nil && prev.ID != sh.ID {
				if err := s.collectEmployees(txCtx, p.CompanyID, prev.ID, affected); err != nil {
					return err
				}
			}
		}

		var err error
		if sh.ID == "" {
			saved, err = s.ShiftRepository.Create(txCtx, sh)
		} else {
			if _, err = s.ShiftRepository.GetByID(txCtx, sh.ID, p.CompanyID); err != nil {
				return err
			}
			saved, err = s.ShiftRepository.Update(txCtx, sh)
		}
		if err != nil {
			return err
		}

		if err := s.collectEmployees(txCtx, p.CompanyID, saved.ID, affected); err != nil {
			return err
		}
		return s.invalidate(txCtx, p.CompanyID, affected, req.EffectiveDate())
	})
	if err != nil {
		return shift.ShiftResponse{}, err
	}

	slog.Info("Shift saved", "company_id", p.CompanyID, "shift_id", saved.ID, "default", saved.IsDefault)
	return shift.NewShiftResponse(saved), nil
}

// Assign implements shift.ShiftService.
func (s *ShiftServiceImpl) Assign(ctx context.Context, p auth.Principal, req shift.AssignShiftRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	return s.txRunner.Do(ctx, func(txCtx context.Context) error {
		if _, err := s.ShiftRepository.GetByID(txCtx, req.ShiftID, p.CompanyID); err != nil {
			return err
		}
		if err := s.ShiftRepository.Assign(txCtx, p.CompanyID, req.EmployeeID, req.ShiftID); err != nil {
			return err
		}
		return s.invalidate(txCtx, p.CompanyID, map[string]struct{}{req.EmployeeID: {}}, time.Time{})
	})
}

func (s *ShiftServiceImpl) collectEmployees(ctx context.Context, companyID, shiftID string, into map[string]struct{}) error {
	ids, err := s.ShiftRepository.EmployeesOnShift(ctx, companyID, shiftID)
	if err != nil {
		return fmt.Errorf("failed to list employees on shift: %w", err)
	}
	for _, id := range ids {
		into[id] = struct{}{}
	}
	return nil
}

func (s *ShiftServiceImpl) invalidate(ctx context.Context, companyID string, employees map[string]struct{}, from time.Time) error {
	if len(employees) == 0 {
		return nil
	}
	ids := make([]string, 0, len(employees))
	for id := range employees {
		ids = append(ids, id)
	}
	if err := s.cache.InvalidateFrom(ctx, companyID, ids, from); err != nil {
		return fmt.Errorf("failed to invalidate attendance days: %w", err)
	}
	return nil
}
