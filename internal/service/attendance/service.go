package attendance

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
	"github.com/cmlabs-hris/attendance-engine/internal/domain/device"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/employee"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/evidence"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/geofence"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/shift"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/clock"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/keylock"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/metrics"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	// DeviceGeofenceExempt lets trusted terminals skip the geofence gate.
	DeviceGeofenceExempt bool
	// Timeout bounds one device ingest call.
	Timeout time.Duration
}

type Collaborators struct {
	Geofences   geofence.GeofenceService
	Shifts      shift.Resolver
	Evidence    evidence.EvidenceService
	Notifier    attendance.DirtyNotifier
	Broadcaster attendance.OpenShiftBroadcaster
}

var _ attendance.Ingestor = (*IngestorImpl)(nil)

type IngestorImpl struct {
	attendance.RecordRepository
	rawEvents attendance.RawEventRepository
	days      attendance.DayInvalidator
	devices   device.DeviceRepository
	employees employee.EmployeeRepository
	companies company.CompanyRepository
	txRunner  database.TxRunner
	locks     *keylock.Locker
	deps      Collaborators
	cfg       Config
	now       func() time.Time
}

func NewIngestor(
	recordRepo attendance.RecordRepository,
	rawEventRepo attendance.RawEventRepository,
	days attendance.DayInvalidator,
	deviceRepo device.DeviceRepository,
	employeeRepo employee.EmployeeRepository,
	companyRepo company.CompanyRepository,
	txRunner database.TxRunner,
	deps Collaborators,
	cfg Config,
) *IngestorImpl {
	return &IngestorImpl{
		RecordRepository: recordRepo,
		rawEvents:        rawEventRepo,
		days:             days,
		devices:          deviceRepo,
		employees:        employeeRepo,
		companies:        companyRepo,
		txRunner:         txRunner,
		locks:            keylock.New(),
		deps:             deps,
		cfg:              cfg,
		now:              time.Now,
	}
}

// clockEvent is the channel-independent form every variant is reduced to.
type clockEvent struct {
	companyID  string
	employeeID string
	eventType  attendance.EventType
	at         time.Time
	sourceKey  string
	channel    attendance.Channel
	method     attendance.Method
	deviceID   *string
	geo        *geofence.Reading
	payload    []byte
	exempt     bool

	capture *evidence.Capture
	hash    string
}

// IngestDevice implements attendance.Ingestor.
func (s *IngestorImpl) IngestDevice(ctx context.Context, e attendance.DeviceEvent) (attendance.IngestResult, error) {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	dev, err := s.authenticateDevice(ctx, e.DeviceID, e.Secret)
	if err != nil {
		return attendance.IngestResult{}, s.rejected(attendance.ChannelDevice, err)
	}

	emp, err := s.resolveDeviceEmployee(ctx, dev, e.EmployeeRef)
	if err != nil {
		return attendance.IngestResult{}, s.rejected(attendance.ChannelDevice, err)
	}

	if err := s.devices.TouchLastSeen(ctx, dev.ID); err != nil {
		slog.Warn("Failed to update device last seen", "device_id", dev.ID, "error", err)
	}

	return s.ingest(ctx, clockEvent{
		companyID:  dev.CompanyID,
		employeeID: emp.ID,
		eventType:  e.Type,
		at:         e.OccurredAt,
		sourceKey:  e.SourceKey(),
		channel:    attendance.ChannelDevice,
		method:     attendance.MethodMachine,
		deviceID:   &dev.ID,
		payload:    e.Payload,
		exempt:     s.cfg.DeviceGeofenceExempt,
	})
}

// IngestCloudPunch replays a punch pulled from a vendor cloud for dev. The
// device is trusted through its stored configuration rather than a secret.
func (s *IngestorImpl) IngestCloudPunch(ctx context.Context, dev device.Device, e attendance.DeviceEvent) (attendance.IngestResult, error) {
	emp, err := s.resolveDeviceEmployee(ctx, dev, e.EmployeeRef)
	if err != nil {
		return attendance.IngestResult{}, s.rejected(attendance.ChannelDevice, err)
	}

	return s.ingest(ctx, clockEvent{
		companyID:  dev.CompanyID,
		employeeID: emp.ID,
		eventType:  e.Type,
		at:         e.OccurredAt,
		sourceKey:  e.SourceKey(),
		channel:    attendance.ChannelDevice,
		method:     attendance.MethodMachine,
		deviceID:   &dev.ID,
		payload:    e.Payload,
		exempt:     s.cfg.DeviceGeofenceExempt,
	})
}

// ClockUser implements attendance.Ingestor.
func (s *IngestorImpl) ClockUser(ctx context.Context, p auth.Principal, e attendance.UserEvent) (attendance.IngestResult, error) {
	ev, err := s.userEvent(ctx, p, e, attendance.ChannelUser, attendance.MethodUnknown)
	if err != nil {
		return attendance.IngestResult{}, s.rejected(attendance.ChannelUser, err)
	}
	return s.ingest(ctx, ev)
}

// ClockBiometric implements attendance.Ingestor. The capture is matched
// before any state is touched.
func (s *IngestorImpl) ClockBiometric(ctx context.Context, p auth.Principal, e attendance.BiometricEvent) (attendance.IngestResult, error) {
	ev, err := s.userEvent(ctx, p, e.UserEvent, attendance.ChannelBiometric, attendance.MethodFace)
	if err != nil {
		return attendance.IngestResult{}, s.rejected(attendance.ChannelBiometric, err)
	}

	capture := evidence.Capture{
		CompanyID:  ev.companyID,
		EmployeeID: ev.employeeID,
		Modality:   e.Modality,
		MIME:       e.MIME,
		Image:      e.Image,
	}
	if g := e.Geo; g != nil {
		lat, lng := g.Latitude, g.Longitude
		capture.Latitude, capture.Longitude, capture.AccuracyM = &lat, &lng, g.AccuracyM
	}

	hash, err := s.deps.Evidence.Verify(ctx, capture)
	if err != nil {
		return attendance.IngestResult{}, s.rejected(attendance.ChannelBiometric, err)
	}
	ev.capture, ev.hash = &capture, hash

	return s.ingest(ctx, ev)
}

func (s *IngestorImpl) authenticateDevice(ctx context.Context, deviceID, secret string) (device.Device, error) {
	if _, err := uuid.Parse(deviceID); err != nil {
		return device.Device{}, attendance.ErrInvalidDeviceCredential
	}
	dev, err := s.devices.GetByID(ctx, deviceID)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			return device.Device{}, attendance.ErrInvalidDeviceCredential
		}
		return device.Device{}, err
	}
	if !dev.IsActive() {
		return device.Device{}, attendance.ErrInvalidDeviceCredential
	}
	if err := bcrypt.CompareHashAndPassword([]byte(dev.SecretHash), []byte(secret)); err != nil {
		return device.Device{}, attendance.ErrInvalidDeviceCredential
	}
	return dev, nil
}

// resolveDeviceEmployee accepts an employee id or the terminal's own id for
// the employee.
func (s *IngestorImpl) resolveDeviceEmployee(ctx context.Context, dev device.Device, ref string) (employee.Employee, error) {
	var emp employee.Employee
	err := employee.ErrEmployeeNotFound
	if _, parseErr := uuid.Parse(ref); parseErr == nil {
		emp, err = s.employees.GetByID(ctx, ref, dev.CompanyID)
	}
	if errors.Is(err, employee.ErrEmployeeNotFound) {
		emp, err = s.employees.GetBySyncID(ctx, dev.CompanyID, dev.ID, ref)
	}
	return activeEmployee(emp, err)
}

func activeEmployee(emp employee.Employee, err error) (employee.Employee, error) {
	if err != nil {
		if errors.Is(err, employee.ErrEmployeeNotFound) {
			return employee.Employee{}, attendance.ErrUnknownEmployee
		}
		return employee.Employee{}, err
	}
	if !emp.IsActive() {
		return employee.Employee{}, attendance.ErrUnknownEmployee
	}
	return emp, nil
}

func (s *IngestorImpl) userEvent(ctx context.Context, p auth.Principal, e attendance.UserEvent, channel attendance.Channel, method attendance.Method) (clockEvent, error) {
	employeeID, err := p.ScopeEmployee(e.EmployeeID)
	if err != nil {
		return clockEvent{}, err
	}
	if employeeID == "" {
		var errs validator.ValidationErrors
		errs.Add("employee_id", "employee_id is required")
		return clockEvent{}, errs
	}
	if _, err := uuid.Parse(employeeID); err != nil {
		return clockEvent{}, attendance.ErrUnknownEmployee
	}

	emp, err := activeEmployee(s.employees.GetByID(ctx, employeeID, p.CompanyID))
	if err != nil {
		return clockEvent{}, err
	}

	return clockEvent{
		companyID:  p.CompanyID,
		employeeID: emp.ID,
		eventType:  e.Type,
		at:         s.now().UTC(),
		sourceKey:  string(channel),
		channel:    channel,
		method:     method,
		geo:        e.Geo,
		payload:    e.Payload,
	}, nil
}

// ingest runs the state transition for one event. Everything it writes
// shares one transaction, so a failure leaves no raw event behind and a
// retry is not mistaken for a replay.
func (s *IngestorImpl) ingest(ctx context.Context, ev clockEvent) (attendance.IngestResult, error) {
	started := time.Now()
	defer func() {
		metrics.IngestDuration.WithLabelValues(string(ev.channel)).Observe(time.Since(started).Seconds())
	}()

	co, err := s.companies.GetByID(ctx, ev.companyID)
	if err != nil {
		return attendance.IngestResult{}, fmt.Errorf("failed to get company: %w", err)
	}
	loc := co.Location()

	unlock := s.locks.Lock(ev.companyID + "/" + ev.employeeID)
	defer unlock()

	var res attendance.IngestResult
	err = s.txRunner.Do(ctx, func(txCtx context.Context) error {
		if err := s.days.LockEmployee(txCtx, ev.companyID, ev.employeeID); err != nil {
			return err
		}

		raw := attendance.RawEvent{
			ID:         uuid.Must(uuid.NewV7()).String(),
			CompanyID:  ev.companyID,
			EmployeeID: ev.employeeID,
			EventType:  ev.eventType,
			OccurredAt: ev.at,
			SourceKey:  ev.sourceKey,
			Channel:    ev.channel,
			DeviceID:   ev.deviceID,
			Payload:    ev.payload,
		}
		inserted, prior, err := s.rawEvents.Insert(txCtx, raw)
		if err != nil {
			return err
		}
		if !inserted {
			if prior.RecordID == nil {
				return fmt.Errorf("%w: prior event %s has no record", attendance.ErrDuplicateEvent, prior.ID)
			}
			rec, err := s.RecordRepository.GetByID(txCtx, *prior.RecordID, ev.companyID)
			if err != nil {
				return err
			}
			res = attendance.IngestResult{Record: rec, Duplicate: true}
			return nil
		}

		open, err := s.RecordRepository.GetOpen(txCtx, ev.companyID, ev.employeeID)
		if err != nil {
			return err
		}
		switch ev.eventType {
		case attendance.EventClockIn:
			if open != nil {
				return attendance.ErrOpenShiftExists
			}
		case attendance.EventClockOut:
			if open == nil {
				return attendance.ErrNoOpenShift
			}
			if ev.at.Before(open.ClockIn) {
				return attendance.ErrClockOutBeforeClockIn
			}
		}

		if !ev.exempt {
			if _, err := s.deps.Geofences.Authorize(txCtx, ev.companyID, ev.employeeID, ev.geo, ev.at); err != nil {
				return err
			}
		}

		var rec attendance.Record
		var evidenceEvent evidence.EventType
		if ev.eventType == attendance.EventClockIn {
			evidenceEvent = evidence.EventClockIn
			rec, err = s.RecordRepository.Create(txCtx, attendance.Record{
				CompanyID:       ev.companyID,
				EmployeeID:      ev.employeeID,
				ClockIn:         ev.at,
				ClockInMethod:   ev.method,
				ClockInDeviceID: ev.deviceID,
				ClockInGeo:      geoStamp(ev.geo),
			})
		} else {
			evidenceEvent = evidence.EventClockOut
			closed := *open
			method := ev.method
			closed.ClockOut = &ev.at
			closed.DurationMinutes = attendance.DurationBetween(closed.ClockIn, ev.at)
			closed.ClockOutMethod = &method
			closed.ClockOutDeviceID = ev.deviceID
			closed.ClockOutGeo = geoStamp(ev.geo)
			rec, err = s.RecordRepository.Close(txCtx, closed)
		}
		if err != nil {
			return err
		}

		if err := s.rawEvents.AttachRecord(txCtx, raw.ID, rec.ID); err != nil {
			return err
		}
		if err := s.days.Invalidate(txCtx, ev.companyID, ev.employeeID, clock.Date(rec.ClockIn, loc)); err != nil {
			return fmt.Errorf("failed to invalidate attendance day: %w", err)
		}
		if ev.capture != nil {
			if _, err := s.deps.Evidence.Record(txCtx, rec.ID, evidenceEvent, *ev.capture, ev.hash); err != nil {
				return err
			}
		}

		res = attendance.IngestResult{Record: rec}
		return nil
	})
	if err != nil {
		return attendance.IngestResult{}, s.rejected(ev.channel, err)
	}

	switch {
	case res.Duplicate:
		metrics.IngestTotal.WithLabelValues(string(ev.channel), "duplicate").Inc()
		slog.Info("Duplicate clock event ignored",
			"company_id", ev.companyID,
			"employee_id", ev.employeeID,
			"event", ev.eventType,
			"source_key", ev.sourceKey)
	default:
		outcome := "created"
		if ev.eventType == attendance.EventClockOut {
			outcome = "closed"
		}
		metrics.IngestTotal.WithLabelValues(string(ev.channel), outcome).Inc()

		s.deps.Notifier.NotifyDirty(ctx, ev.companyID, ev.employeeID, clock.Date(res.Record.ClockIn, loc))
		s.deps.Broadcaster.BroadcastOpenShift(ev.companyID, ev.employeeID, res.Record.IsOpen(), &res.Record)
	}

	s.shiftFeedback(ctx, &res, ev.eventType, loc)
	return res, nil
}

// shiftFeedback fills late or early minutes for the UI. Without a resolvable
// shift they stay nil.
func (s *IngestorImpl) shiftFeedback(ctx context.Context, res *attendance.IngestResult, eventType attendance.EventType, loc *time.Location) {
	rec := res.Record
	resolved, err := s.deps.Shifts.Resolve(ctx, rec.CompanyID, rec.EmployeeID, clock.Date(rec.ClockIn, loc))
	if err != nil {
		if !errors.Is(err, shift.ErrNoShiftConfigured) && !errors.Is(err, shift.ErrWorkingDaysUnset) {
			slog.Error("Failed to resolve shift for clock feedback", "employee_id", rec.EmployeeID, "error", err)
		}
		return
	}

	switch {
	case eventType == attendance.EventClockIn:
		late := day.LateMinutes(resolved.Shift, rec.ClockIn, loc)
		res.LateMinutes = &late
	case rec.ClockOut != nil:
		early := day.EarlyLeaveMinutes(resolved.Shift, rec.ClockIn, *rec.ClockOut, loc)
		res.EarlyLeaveMinutes = &early
	}
}

func (s *IngestorImpl) rejected(channel attendance.Channel, err error) error {
	metrics.IngestTotal.WithLabelValues(string(channel), "rejected").Inc()
	return err
}

func geoStamp(r *geofence.Reading) *attendance.GeoStamp {
	if r == nil {
		return nil
	}
	return &attendance.GeoStamp{Latitude: r.Latitude, Longitude: r.Longitude, AccuracyM: r.AccuracyM}
}
