package attendance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/auth"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/device"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/employee"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/evidence"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/geofence"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/shift"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/user"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/clock"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	terminalID   = "0190a1b2-0000-7000-8000-000000000001"
	disabledID   = "0190a1b2-0000-7000-8000-000000000002"
	employeeID   = "0190a1b2-0000-7000-8000-0000000000e1"
	otherEmpID   = "0190a1b2-0000-7000-8000-0000000000e2"
	resignedID   = "0190a1b2-0000-7000-8000-0000000000e3"
	deviceSecret = "s3cret"
)

var dhaka = clock.LoadLocation("Asia/Dhaka")

// Monday 2025-03-03 in Dhaka.
func at(hour, minute int) time.Time {
	return time.Date(2025, 3, 3, hour, minute, 0, 0, dhaka)
}

func officeShift() *shift.Resolved {
	return &shift.Resolved{
		Shift: shift.Shift{
			ID:                        "shift-1",
			StartTime:                 clock.TimeOfDay(9 * 60),
			EndTime:                   clock.TimeOfDay(17 * 60),
			LateToleranceMinutes:      15,
			EarlyExitToleranceMinutes: 0,
		},
		WorkingDays: shift.NewWeekdaySet(time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday),
		Source:      shift.SourceDefault,
	}
}

type harness struct {
	svc         *IngestorImpl
	store       *memStore
	devices     *fakeDevices
	geofence    *fakeGeofence
	evidence    *fakeEvidence
	days        *fakeInvalidator
	notifier    *fakeNotifier
	broadcaster *fakeBroadcaster
}

func newHarness(t *testing.T, cfg Config, resolved *shift.Resolved) *harness {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(deviceSecret), bcrypt.MinCost)
	require.NoError(t, err)

	h := &harness{
		store: newMemStore(),
		devices: &fakeDevices{devices: map[string]device.Device{
			terminalID: {ID: terminalID, CompanyID: "co-1", Kind: device.KindTerminal, Status: device.StatusActive, SecretHash: string(hash)},
			disabledID: {ID: disabledID, CompanyID: "co-1", Kind: device.KindTerminal, Status: device.StatusDisabled, SecretHash: string(hash)},
		}},
		geofence:    &fakeGeofence{},
		evidence:    &fakeEvidence{},
		days:        &fakeInvalidator{},
		notifier:    &fakeNotifier{},
		broadcaster: &fakeBroadcaster{},
	}
	employees := &fakeEmployees{
		employees: map[string]employee.Employee{
			employeeID: {ID: employeeID, CompanyID: "co-1", EmployeeCode: "E001", EmploymentStatus: employee.EmploymentStatusActive},
			otherEmpID: {ID: otherEmpID, CompanyID: "co-1", EmployeeCode: "E002", EmploymentStatus: employee.EmploymentStatusActive},
			resignedID: {ID: resignedID, CompanyID: "co-1", EmployeeCode: "E003", EmploymentStatus: employee.EmploymentStatusResigned},
		},
		syncIDs: map[string]string{terminalID + "/77": otherEmpID},
	}

	h.svc = NewIngestor(h.store, h.store.rawEvents(), h.days, h.devices, employees, fakeCompanies{tz: "Asia/Dhaka"}, h.store,
		Collaborators{
			Geofences:   h.geofence,
			Shifts:      fakeResolver{resolved: resolved},
			Evidence:    h.evidence,
			Notifier:    h.notifier,
			Broadcaster: h.broadcaster,
		}, cfg)
	return h
}

func punch(event attendance.EventType, when time.Time, identifier string) attendance.DeviceEvent {
	e := attendance.DeviceEvent{
		DeviceID:    terminalID,
		Secret:      deviceSecret,
		EmployeeRef: employeeID,
		Type:        event,
		OccurredAt:  when,
	}
	if identifier != "" {
		e.Identifier = &identifier
	}
	return e
}

var exempt = Config{DeviceGeofenceExempt: true, Timeout: 5 * time.Second}

func TestIngestDevice_Credentials(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*attendance.DeviceEvent)
	}{
		{"unknown device", func(e *attendance.DeviceEvent) { e.DeviceID = "0190a1b2-0000-7000-8000-0000000000ff" }},
		{"malformed device id", func(e *attendance.DeviceEvent) { e.DeviceID = "terminal-1" }},
		{"wrong secret", func(e *attendance.DeviceEvent) { e.Secret = "guess" }},
		{"disabled device", func(e *attendance.DeviceEvent) { e.DeviceID = disabledID }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, exempt, officeShift())
			e := punch(attendance.EventClockIn, at(8, 55), "")
			tt.mutate(&e)

			_, err := h.svc.IngestDevice(context.Background(), e)
			assert.ErrorIs(t, err, attendance.ErrInvalidDeviceCredential)
			assert.Empty(t, h.store.records)
		})
	}
}

func TestIngestDevice_EmployeeResolution(t *testing.T) {
	tests := []struct {
		name    string
		ref     string
		want    string
		wantErr error
	}{
		{name: "employee id", ref: employeeID, want: employeeID},
		{name: "employee code", ref: "E001", want: employeeID},
		{name: "device sync id", ref: "77", want: otherEmpID},
		{name: "unknown", ref: "nobody", wantErr: attendance.ErrUnknownEmployee},
		{name: "inactive", ref: resignedID, wantErr: attendance.ErrUnknownEmployee},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, exempt, officeShift())
			e := punch(attendance.EventClockIn, at(8, 55), "")
			e.EmployeeRef = tt.ref

			res, err := h.svc.IngestDevice(context.Background(), e)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Record.EmployeeID)
			assert.Equal(t, []string{terminalID}, h.devices.touched)
		})
	}
}

func TestIngestDevice_Lifecycle(t *testing.T) {
	h := newHarness(t, exempt, officeShift())
	ctx := context.Background()

	in, err := h.svc.IngestDevice(ctx, punch(attendance.EventClockIn, at(8, 55), "p-1"))
	require.NoError(t, err)
	assert.False(t, in.Duplicate)
	assert.True(t, in.Record.IsOpen())
	assert.Equal(t, attendance.MethodMachine, in.Record.ClockInMethod)
	require.NotNil(t, in.LateMinutes)
	assert.Equal(t, 0, *in.LateMinutes)
	assert.Nil(t, in.EarlyLeaveMinutes)

	out, err := h.svc.IngestDevice(ctx, punch(attendance.EventClockOut, at(17, 20), "p-2"))
	require.NoError(t, err)
	assert.Equal(t, in.Record.ID, out.Record.ID)
	assert.False(t, out.Record.IsOpen())
	assert.Equal(t, 505, out.Record.DurationMinutes)
	require.NotNil(t, out.EarlyLeaveMinutes)
	assert.Equal(t, 0, *out.EarlyLeaveMinutes)

	assert.Zero(t, h.geofence.calls)
	assert.Equal(t, []string{employeeID + "@2025-03-03", employeeID + "@2025-03-03"}, h.days.dates)
	assert.Equal(t, 2, h.days.locks)
	assert.Len(t, h.notifier.dirty, 2)
	assert.Equal(t, []broadcast{{employeeID, true}, {employeeID, false}}, h.broadcaster.sent)
	assert.Equal(t, 0, h.store.openCount(employeeID))
}

func TestIngestDevice_ReplayIsIdempotent(t *testing.T) {
	h := newHarness(t, exempt, officeShift())
	ctx := context.Background()
	e := punch(attendance.EventClockIn, at(9, 20), "guid-1")

	first, err := h.svc.IngestDevice(ctx, e)
	require.NoError(t, err)

	second, err := h.svc.IngestDevice(ctx, e)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Record.ID, second.Record.ID)
	require.NotNil(t, second.LateMinutes)
	assert.Equal(t, 5, *second.LateMinutes)

	assert.Len(t, h.store.records, 1)
	assert.Len(t, h.notifier.dirty, 1)
	assert.Len(t, h.broadcaster.sent, 1)
}

func TestIngestDevice_StateErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("second clock-in while open", func(t *testing.T) {
		h := newHarness(t, exempt, officeShift())
		_, err := h.svc.IngestDevice(ctx, punch(attendance.EventClockIn, at(8, 0), "a"))
		require.NoError(t, err)
		_, err = h.svc.IngestDevice(ctx, punch(attendance.EventClockIn, at(8, 5), "b"))
		assert.ErrorIs(t, err, attendance.ErrOpenShiftExists)
	})

	t.Run("clock-out without open shift", func(t *testing.T) {
		h := newHarness(t, exempt, officeShift())
		_, err := h.svc.IngestDevice(ctx, punch(attendance.EventClockOut, at(17, 0), "a"))
		assert.ErrorIs(t, err, attendance.ErrNoOpenShift)
		assert.Empty(t, h.store.raw)
	})

	t.Run("clock-out before clock-in", func(t *testing.T) {
		h := newHarness(t, exempt, officeShift())
		_, err := h.svc.IngestDevice(ctx, punch(attendance.EventClockIn, at(9, 0), "a"))
		require.NoError(t, err)
		_, err = h.svc.IngestDevice(ctx, punch(attendance.EventClockOut, at(8, 0), "b"))
		assert.ErrorIs(t, err, attendance.ErrClockOutBeforeClockIn)
	})
}

func TestIngestDevice_FailedAttemptCanBeRetried(t *testing.T) {
	h := newHarness(t, Config{DeviceGeofenceExempt: false}, officeShift())
	ctx := context.Background()
	e := punch(attendance.EventClockIn, at(8, 55), "guid-9")

	h.geofence.err = geofence.ErrFenceRequired
	_, err := h.svc.IngestDevice(ctx, e)
	require.ErrorIs(t, err, geofence.ErrFenceRequired)
	assert.Empty(t, h.store.raw)

	h.geofence.err = nil
	res, err := h.svc.IngestDevice(ctx, e)
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.Equal(t, 2, h.geofence.calls)
}

func TestIngestDevice_ConcurrentClockIns(t *testing.T) {
	h := newHarness(t, exempt, officeShift())

	const attempts = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.svc.IngestDevice(context.Background(),
				punch(attendance.EventClockIn, at(8, 0).Add(time.Duration(i)*time.Second), ""))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, attendance.ErrOpenShiftExists):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, rejected)
	assert.Equal(t, 1, h.store.openCount(employeeID))
}

func TestClockUser(t *testing.T) {
	ctx := context.Background()
	own := employeeID

	t.Run("self-only role is pinned to its employee", func(t *testing.T) {
		h := newHarness(t, exempt, officeShift())
		h.svc.now = func() time.Time { return at(9, 16).UTC() }

		lat, lng := 23.81, 90.41
		res, err := h.svc.ClockUser(ctx, principal(user.RoleEmployee, &own), attendance.UserEvent{
			Type: attendance.EventClockIn,
			Geo:  &geofence.Reading{Latitude: lat, Longitude: lng},
		})
		require.NoError(t, err)
		assert.Equal(t, employeeID, res.Record.EmployeeID)
		assert.Equal(t, attendance.MethodUnknown, res.Record.ClockInMethod)
		require.NotNil(t, res.Record.ClockInGeo)
		assert.Equal(t, lat, res.Record.ClockInGeo.Latitude)
		require.NotNil(t, res.LateMinutes)
		assert.Equal(t, 1, *res.LateMinutes)
		assert.Equal(t, 1, h.geofence.calls, "user events are never exempt")
	})

	t.Run("self-only role cannot clock for others", func(t *testing.T) {
		h := newHarness(t, exempt, officeShift())
		_, err := h.svc.ClockUser(ctx, principal(user.RoleEmployee, &own), attendance.UserEvent{
			EmployeeID: otherEmpID, Type: attendance.EventClockIn,
		})
		assert.ErrorIs(t, err, auth.ErrForbidden)
	})

	t.Run("manager must name the employee", func(t *testing.T) {
		h := newHarness(t, exempt, officeShift())
		_, err := h.svc.ClockUser(ctx, principal(user.RoleManager, nil), attendance.UserEvent{Type: attendance.EventClockIn})
		var verrs validator.ValidationErrors
		assert.True(t, errors.As(err, &verrs))
	})

	t.Run("geofence rejection surfaces", func(t *testing.T) {
		h := newHarness(t, exempt, officeShift())
		h.geofence.err = &geofence.OutsideError{FenceID: "office"}
		_, err := h.svc.ClockUser(ctx, principal(user.RoleManager, nil), attendance.UserEvent{
			EmployeeID: otherEmpID, Type: attendance.EventClockIn,
		})
		assert.ErrorIs(t, err, geofence.ErrOutsideGeofence)
		assert.Equal(t, 0, h.store.openCount(otherEmpID))
	})

	t.Run("no shift leaves minutes empty", func(t *testing.T) {
		h := newHarness(t, exempt, nil)
		res, err := h.svc.ClockUser(ctx, principal(user.RoleEmployee, &own), attendance.UserEvent{Type: attendance.EventClockIn})
		require.NoError(t, err)
		assert.Nil(t, res.LateMinutes)
		assert.Nil(t, res.EarlyLeaveMinutes)
	})
}

func TestClockBiometric(t *testing.T) {
	ctx := context.Background()
	own := employeeID
	event := attendance.BiometricEvent{
		UserEvent: attendance.UserEvent{Type: attendance.EventClockIn},
		Modality:  evidence.ModalityFace,
		MIME:      "image/png",
		Image:     []byte("probe"),
	}

	t.Run("mismatch touches nothing", func(t *testing.T) {
		h := newHarness(t, exempt, officeShift())
		h.evidence.verifyErr = evidence.ErrBiometricMismatch
		_, err := h.svc.ClockBiometric(ctx, principal(user.RoleEmployee, &own), event)
		assert.ErrorIs(t, err, evidence.ErrBiometricMismatch)
		assert.Empty(t, h.store.raw)
		assert.Empty(t, h.evidence.recorded)
	})

	t.Run("match records face method and evidence", func(t *testing.T) {
		h := newHarness(t, exempt, officeShift())
		res, err := h.svc.ClockBiometric(ctx, principal(user.RoleEmployee, &own), event)
		require.NoError(t, err)
		assert.Equal(t, attendance.MethodFace, res.Record.ClockInMethod)
		assert.Equal(t, []string{res.Record.ID + ":clock_in"}, h.evidence.recorded)
	})
}

func TestTracker_OpenShift(t *testing.T) {
	h := newHarness(t, exempt, officeShift())
	tracker := NewTracker(h.store)
	ctx := context.Background()
	own := employeeID
	p := principal(user.RoleEmployee, &own)

	got, err := tracker.OpenShift(ctx, p, "")
	require.NoError(t, err)
	assert.False(t, got.Open)
	assert.Nil(t, got.Record)

	_, err = h.svc.IngestDevice(ctx, punch(attendance.EventClockIn, at(8, 55), ""))
	require.NoError(t, err)

	got, err = tracker.OpenShift(ctx, p, employeeID)
	require.NoError(t, err)
	assert.True(t, got.Open)
	require.NotNil(t, got.Record)
	assert.Equal(t, employeeID, got.EmployeeID)

	_, err = tracker.OpenShift(ctx, p, otherEmpID)
	assert.ErrorIs(t, err, auth.ErrForbidden)
}
