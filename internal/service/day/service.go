package day

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/auth"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/company"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/day"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/employee"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/leave"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/shift"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/clock"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

type Config struct {
	// Workers bounds how many employees are aggregated concurrently.
	Workers int
	// MaxRangeDays caps one Process request.
	MaxRangeDays int
}

type AggregatorImpl struct {
	day.CacheRepository
	records   attendance.RecordRepository
	leaves    leave.Repository
	shifts    shift.Resolver
	employees employee.EmployeeRepository
	companies company.CompanyRepository
	txRunner  database.TxRunner
	cfg       Config
	now       func() time.Time
}

func NewAggregator(
	cacheRepo day.CacheRepository,
	recordRepo attendance.RecordRepository,
	leaveRepo leave.Repository,
	shifts shift.Resolver,
	employeeRepo employee.EmployeeRepository,
	companyRepo company.CompanyRepository,
	txRunner database.TxRunner,
	cfg Config,
) *AggregatorImpl {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &AggregatorImpl{
		CacheRepository: cacheRepo,
		records:         recordRepo,
		leaves:          leaveRepo,
		shifts:          shifts,
		employees:       employeeRepo,
		companies:       companyRepo,
		txRunner:        txRunner,
		cfg:             cfg,
		now:             time.Now,
	}
}

var _ day.Aggregator = (*AggregatorImpl)(nil)

// span is a tenant-local inclusive date range.
type span struct {
	companyID string
	loc       *time.Location
	start     time.Time
	end       time.Time
	today     time.Time
	holidays  []leave.Holiday
}

// Process implements day.Aggregator.
func (s *AggregatorImpl) Process(ctx context.Context, p auth.Principal, req day.ProcessRequest) ([]day.AttendanceDayResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	employeeIDs, err := s.scopeEmployees(ctx, p, req.EmployeeIDs, true)
	if err != nil {
		return nil, err
	}

	sp, err := s.newSpan(ctx, p.CompanyID, req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	if n := len(clock.Days(sp.start, sp.end)); s.cfg.MaxRangeDays > 0 && n > s.cfg.MaxRangeDays {
		return nil, fmt.Errorf("%w: %d days requested, limit is %d", day.ErrRangeTooLarge, n, s.cfg.MaxRangeDays)
	}

	days, err := s.fanOut(ctx, sp, employeeIDs)
	if err != nil {
		return nil, err
	}

	out := make([]day.AttendanceDayResponse, 0, len(days))
	for _, d := range days {
		out = append(out, day.NewAttendanceDayResponse(d))
	}
	return out, nil
}

// Invalidate implements day.Aggregator.
func (s *AggregatorImpl) Invalidate(ctx context.Context, p auth.Principal, req day.InvalidateRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	// Managers default to the whole company, which a nil id list means.
	employeeIDs, err := s.scopeEmployees(ctx, p, req.EmployeeIDs, false)
	if err != nil {
		return err
	}

	from, _ := clock.ParseDate(req.StartDate, time.UTC)
	to, _ := clock.ParseDate(req.EndDate, time.UTC)
	if err := s.CacheRepository.InvalidateRange(ctx, p.CompanyID, employeeIDs, from, to); err != nil {
		return err
	}

	slog.Info("Attendance days invalidated",
		"company_id", p.CompanyID,
		"employees", len(employeeIDs),
		"start_date", req.StartDate,
		"end_date", req.EndDate)
	return nil
}

// Recompute implements day.Aggregator. It ignores any cached row and
// refreshes the cache when the date has ended.
func (s *AggregatorImpl) Recompute(ctx context.Context, companyID, employeeID string, date time.Time) (day.AttendanceDay, error) {
	key := date.Format(clock.DateLayout)
	sp, err := s.newSpan(ctx, companyID, key, key)
	if err != nil {
		return day.AttendanceDay{}, err
	}

	days, err := s.employeeDays(ctx, sp, employeeID, false)
	if err != nil {
		return day.AttendanceDay{}, err
	}
	return days[0], nil
}

// ProcessCompany implements day.Aggregator. It returns the number of days
// produced.
func (s *AggregatorImpl) ProcessCompany(ctx context.Context, companyID string, from, to time.Time) (int, error) {
	employeeIDs, err := s.employees.ListActiveIDs(ctx, companyID)
	if err != nil {
		return 0, fmt.Errorf("failed to list active employees: %w", err)
	}
	if len(employeeIDs) == 0 {
		return 0, nil
	}

	sp, err := s.newSpan(ctx, companyID, from.Format(clock.DateLayout), to.Format(clock.DateLayout))
	if err != nil {
		return 0, err
	}

	days, err := s.fanOut(ctx, sp, employeeIDs)
	if err != nil {
		return 0, err
	}
	return len(days), nil
}

// scopeEmployees resolves whom a request covers. Self-only roles always
// get their own employee. An empty list for other roles means every active
// employee when expand is set, and nil otherwise.
func (s *AggregatorImpl) scopeEmployees(ctx context.Context, p auth.Principal, requested []string, expand bool) ([]string, error) {
	if p.Role.IsSelfOnly() {
		own, err := p.ScopeEmployee("")
		if err != nil {
			return nil, err
		}
		for _, id := range requested {
			if _, err := p.ScopeEmployee(id); err != nil {
				return nil, err
			}
		}
		return []string{own}, nil
	}

	if len(requested) > 0 {
		return dedupe(requested), nil
	}
	if !expand {
		return nil, nil
	}

	ids, err := s.employees.ListActiveIDs(ctx, p.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active employees: %w", err)
	}
	return ids, nil
}

func (s *AggregatorImpl) newSpan(ctx context.Context, companyID, startDate, endDate string) (span, error) {
	co, err := s.companies.GetByID(ctx, companyID)
	if err != nil {
		return span{}, fmt.Errorf("failed to get company: %w", err)
	}
	loc := co.Location()

	start, err := clock.ParseDate(startDate, loc)
	if err != nil {
		return span{}, fmt.Errorf("failed to parse start date: %w", err)
	}
	end, err := clock.ParseDate(endDate, loc)
	if err != nil {
		return span{}, fmt.Errorf("failed to parse end date: %w", err)
	}
	if end.Before(start) {
		return span{}, day.ErrInvalidRange
	}

	holidays, err := s.leaves.ListHolidays(ctx, companyID, start, end)
	if err != nil {
		return span{}, fmt.Errorf("failed to list holidays: %w", err)
	}

	return span{
		companyID: companyID,
		loc:       loc,
		start:     start,
		end:       end,
		today:     clock.Date(s.now(), loc),
		holidays:  holidays,
	}, nil
}

// fanOut aggregates employees in parallel. The days of one employee are
// computed by a single goroutine, and results keep the input order.
func (s *AggregatorImpl) fanOut(ctx context.Context, sp span, employeeIDs []string) ([]day.AttendanceDay, error) {
	started := time.Now()
	defer func() {
		metrics.AggregationDuration.Observe(time.Since(started).Seconds())
	}()

	perEmployee := make([][]day.AttendanceDay, len(employeeIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i, id := range employeeIDs {
		i, id := i, id
		g.Go(func() error {
			days, err := s.employeeDays(gctx, sp, id, true)
			if err != nil {
				return fmt.Errorf("employee %s: %w", id, err)
			}
			perEmployee[i] = days
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []day.AttendanceDay
	for _, days := range perEmployee {
		out = append(out, days...)
	}
	return out, nil
}

// employeeDays produces one day per date of sp. Cached rows are used only
// for dates that have ended, and only those dates are written back.
func (s *AggregatorImpl) employeeDays(ctx context.Context, sp span, employeeID string, useCache bool) ([]day.AttendanceDay, error) {
	dates := clock.Days(sp.start, sp.end)
	out := make([]day.AttendanceDay, len(dates))

	var cached map[string]day.AttendanceDay
	if useCache && sp.start.Before(sp.today) {
		var err error
		cached, err = s.CacheRepository.List(ctx, sp.companyID, employeeID, sp.start, sp.end)
		if err != nil {
			return nil, err
		}
	}

	var pending []int
	for i, date := range dates {
		if !date.Before(sp.today) || !useCache {
			pending = append(pending, i)
			continue
		}
		if d, ok := cached[date.Format(clock.DateLayout)]; ok {
			metrics.DayCacheLookups.WithLabelValues("hit").Inc()
			out[i] = d
			continue
		}
		metrics.DayCacheLookups.WithLabelValues("miss").Inc()
		pending = append(pending, i)
	}
	if len(pending) == 0 {
		return out, nil
	}

	cacheable := false
	for _, i := range pending {
		if dates[i].Before(sp.today) {
			cacheable = true
			break
		}
	}
	if !cacheable {
		if err := s.computeDays(ctx, sp, employeeID, dates, pending, out); err != nil {
			return nil, err
		}
		return out, nil
	}

	// Inputs are read and the result cached under the employee's day lock,
	// so an ingest committing in between cannot be overwritten by a stale day.
	err := s.txRunner.Do(ctx, func(txCtx context.Context) error {
		if err := s.CacheRepository.LockEmployee(txCtx, sp.companyID, employeeID); err != nil {
			return err
		}
		if err := s.computeDays(txCtx, sp, employeeID, dates, pending, out); err != nil {
			return err
		}
		for _, i := range pending {
			d := out[i]
			// Unresolved days are never cached.
			if !d.Date.Before(sp.today) || d.Status == day.StatusUnresolved {
				continue
			}
			if err := s.CacheRepository.Upsert(txCtx, d); err != nil {
				return fmt.Errorf("%w: %w", errCacheWrite, err)
			}
		}
		return nil
	})
	if errors.Is(err, errCacheWrite) {
		slog.Warn("Failed to cache attendance days",
			"company_id", sp.companyID,
			"employee_id", employeeID,
			"error", err)
		err = nil
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

var errCacheWrite = errors.New("cache write failed")

// computeDays fills out[i] for every pending index.
func (s *AggregatorImpl) computeDays(ctx context.Context, sp span, employeeID string, dates []time.Time, pending []int, out []day.AttendanceDay) error {
	records, err := s.records.ListByClockIn(ctx, sp.companyID, employeeID, sp.start, sp.end.AddDate(0, 0, 1))
	if err != nil {
		return err
	}
	byDate := make(map[string][]attendance.Record)
	for _, r := range records {
		key := clock.Date(r.ClockIn, sp.loc).Format(clock.DateLayout)
		byDate[key] = append(byDate[key], r)
	}

	leaves, err := s.leaves.ListForEmployee(ctx, sp.companyID, employeeID, sp.start, sp.end)
	if err != nil {
		return fmt.Errorf("failed to list leaves: %w", err)
	}

	for _, i := range pending {
		date := dates[i]
		in := day.Inputs{
			CompanyID:  sp.companyID,
			EmployeeID: employeeID,
			Date:       date,
			Location:   sp.loc,
			Today:      sp.today,
			Records:    byDate[date.Format(clock.DateLayout)],
			Leaves:     leaves,
			Holidays:   sp.holidays,
		}

		resolved, err := s.shifts.Resolve(ctx, sp.companyID, employeeID, date)
		switch {
		case err == nil:
			in.Shift = &resolved
		case errors.Is(err, shift.ErrNoShiftConfigured), errors.Is(err, shift.ErrWorkingDaysUnset):
			in.ShiftErr = err
		default:
			return fmt.Errorf("failed to resolve shift for %s: %w", date.Format(clock.DateLayout), err)
		}

		d := day.ComputeDay(in)
		metrics.DaysComputed.WithLabelValues(string(d.Status)).Inc()
		out[i] = d
	}
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
