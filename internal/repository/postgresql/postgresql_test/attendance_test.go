//go:build integration

package postgresql_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/day"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/clock"
	"github.com/cmlabs-hris/attendance-engine/internal/repository/postgresql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type RepositorySuite struct {
	suite.Suite
	db *testDB
}

func TestRepositorySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed tests in short mode")
	}
	suite.Run(t, new(RepositorySuite))
}

func (s *RepositorySuite) SetupSuite() {
	s.db = newTestDB(s.T())
}

func (s *RepositorySuite) TestConcurrentClockInsKeepOneOpenRecord() {
	t := s.T()
	ctx := context.Background()
	companyID, employeeID := s.db.seedEmployee(t)
	repo := postgresql.NewAttendanceRepository(s.db.DB)

	const attempts = 8
	base := time.Date(2025, 3, 3, 1, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repo.Create(ctx, attendance.Record{
				CompanyID:     companyID,
				EmployeeID:    employeeID,
				ClockIn:       base.Add(time.Duration(i) * time.Second),
				ClockInMethod: attendance.MethodMachine,
			})
		}(i)
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		assert.True(t, errors.Is(err, attendance.ErrOpenShiftExists), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, created)

	open, err := repo.GetOpen(ctx, companyID, employeeID)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.True(t, open.IsOpen())
}

func (s *RepositorySuite) TestCloseRecord() {
	t := s.T()
	ctx := context.Background()
	companyID, employeeID := s.db.seedEmployee(t)
	repo := postgresql.NewAttendanceRepository(s.db.DB)

	in := time.Date(2025, 3, 3, 1, 0, 0, 0, time.UTC)
	rec, err := repo.Create(ctx, attendance.Record{
		CompanyID:     companyID,
		EmployeeID:    employeeID,
		ClockIn:       in,
		ClockInMethod: attendance.MethodFace,
	})
	require.NoError(t, err)

	out := in.Add(8*time.Hour + 30*time.Minute)
	method := attendance.MethodFace
	rec.ClockOut = &out
	rec.ClockOutMethod = &method
	rec.DurationMinutes = attendance.DurationBetween(in, out)
	_, err = repo.Close(ctx, rec)
	require.NoError(t, err)

	// A closed record cannot be closed twice.
	_, err = repo.Close(ctx, rec)
	assert.ErrorIs(t, err, attendance.ErrNoOpenShift)

	open, err := repo.GetOpen(ctx, companyID, employeeID)
	require.NoError(t, err)
	assert.Nil(t, open)

	got, err := repo.GetByID(ctx, rec.ID, companyID)
	require.NoError(t, err)
	assert.Equal(t, 510, got.DurationMinutes)

	// Other tenants never see the record.
	otherCompany, _ := s.db.seedEmployee(t)
	_, err = repo.GetByID(ctx, rec.ID, otherCompany)
	assert.ErrorIs(t, err, attendance.ErrRecordNotFound)

	list, err := repo.ListByClockIn(ctx, companyID, employeeID, in.Add(-time.Hour), in.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func (s *RepositorySuite) TestRawEventDedup() {
	t := s.T()
	ctx := context.Background()
	companyID, employeeID := s.db.seedEmployee(t)
	repo := postgresql.NewRawEventRepository(s.db.DB)

	at := time.Date(2025, 3, 3, 1, 0, 0, 0, time.UTC)
	event := attendance.RawEvent{
		CompanyID:  companyID,
		EmployeeID: employeeID,
		EventType:  attendance.EventClockIn,
		OccurredAt: at,
		SourceKey:  "device:terminal-1",
		Channel:    attendance.ChannelDevice,
	}

	inserted, first, err := repo.Insert(ctx, event)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, prior, err := repo.Insert(ctx, event)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, first.ID, prior.ID)
	assert.Nil(t, prior.RecordID)

	seen, err := repo.Seen(ctx, companyID, employeeID, "device:terminal-1", at)
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = repo.Seen(ctx, companyID, employeeID, "device:terminal-2", at)
	require.NoError(t, err)
	assert.False(t, seen)

	// Same instant in the other direction is a distinct event.
	event.EventType = attendance.EventClockOut
	inserted, _, err = repo.Insert(ctx, event)
	require.NoError(t, err)
	assert.True(t, inserted)
}

func (s *RepositorySuite) TestDayCacheInvalidatedByLeave() {
	t := s.T()
	ctx := context.Background()
	companyID, employeeID := s.db.seedEmployee(t)
	repo := postgresql.NewAttendanceDayRepository(s.db.DB)

	loc := clock.LoadLocation("Asia/Jakarta")
	date := time.Date(2025, 3, 3, 0, 0, 0, 0, loc)
	require.NoError(t, repo.Upsert(ctx, day.AttendanceDay{
		CompanyID:     companyID,
		EmployeeID:    employeeID,
		Date:          date,
		Status:        day.StatusPresent,
		WorkedMinutes: 480,
	}))

	cached, err := repo.List(ctx, companyID, employeeID, date, date)
	require.NoError(t, err)
	require.Contains(t, cached, "2025-03-03")
	assert.Equal(t, day.StatusPresent, cached["2025-03-03"].Status)

	_, err = s.db.DB.Exec(ctx, `
		INSERT INTO leave_records (id, company_id, employee_id, start_date, end_date, status)
		VALUES (gen_random_uuid(), $1, $2, '2025-03-03', '2025-03-04', 'approved')`,
		companyID, employeeID)
	require.NoError(t, err)

	cached, err = repo.List(ctx, companyID, employeeID, date, date)
	require.NoError(t, err)
	assert.Empty(t, cached)
}

func (s *RepositorySuite) TestDayCacheInvalidate() {
	t := s.T()
	ctx := context.Background()
	companyID, employeeID := s.db.seedEmployee(t)
	repo := postgresql.NewAttendanceDayRepository(s.db.DB)

	loc := clock.LoadLocation("Asia/Jakarta")
	first := time.Date(2025, 3, 3, 0, 0, 0, 0, loc)
	for _, d := range clock.Days(first, first.AddDate(0, 0, 2)) {
		require.NoError(t, repo.Upsert(ctx, day.AttendanceDay{
			CompanyID:  companyID,
			EmployeeID: employeeID,
			Date:       d,
			Status:     day.StatusAbsent,
		}))
	}

	require.NoError(t, repo.Invalidate(ctx, companyID, employeeID, first))
	cached, err := repo.List(ctx, companyID, employeeID, first, first.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.Len(t, cached, 2)
	assert.NotContains(t, cached, "2025-03-03")

	require.NoError(t, repo.InvalidateFrom(ctx, companyID, nil, first))
	cached, err = repo.List(ctx, companyID, employeeID, first, first.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.Empty(t, cached)
}

func (s *RepositorySuite) TestEmployeeDayLockSerializesWriters() {
	t := s.T()
	ctx := context.Background()
	companyID, employeeID := s.db.seedEmployee(t)
	repo := postgresql.NewAttendanceDayRepository(s.db.DB)
	tx := postgresql.NewTxManager(s.db.DB)

	holding := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = tx.Do(ctx, func(txCtx context.Context) error {
			if err := repo.LockEmployee(txCtx, companyID, employeeID); err != nil {
				return err
			}
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding

	// Other employees are not blocked.
	_, other := s.db.seedEmployee(t)
	require.NoError(t, tx.Do(ctx, func(txCtx context.Context) error {
		return repo.LockEmployee(txCtx, companyID, other)
	}))

	ingested := make(chan error, 1)
	go func() {
		ingested <- tx.Do(ctx, func(txCtx context.Context) error {
			return repo.LockEmployee(txCtx, companyID, employeeID)
		})
	}()

	leaveWritten := make(chan error, 1)
	go func() {
		_, err := s.db.DB.Exec(ctx, `
			INSERT INTO leave_records (id, company_id, employee_id, start_date, end_date, status)
			VALUES (gen_random_uuid(), $1, $2, '2025-03-03', '2025-03-03', 'approved')`,
			companyID, employeeID)
		leaveWritten <- err
	}()

	select {
	case <-ingested:
		t.Fatal("second lock holder did not wait")
	case <-leaveWritten:
		t.Fatal("leave write did not wait for the day lock")
	case <-time.After(300 * time.Millisecond):
	}

	close(release)
	assert.NoError(t, <-ingested)
	assert.NoError(t, <-leaveWritten)
}
