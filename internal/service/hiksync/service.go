// Package hiksync replays punches from Hik-Connect cloud terminals through
// the device ingest pipeline.
package hiksync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/device"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/employee"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/geofence"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/hikcloud"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/metrics"
)

// CloudClient is the part of hikcloud.Client the syncer uses.
type CloudClient interface {
	Token(ctx context.Context) (hikcloud.Token, error)
	Records(ctx context.Context, tok hikcloud.Token, begin, end time.Time, fn func(hikcloud.Record) error) error
}

// PunchIngestor accepts punches from trusted cloud devices.
type PunchIngestor interface {
	IngestCloudPunch(ctx context.Context, dev device.Device, e attendance.DeviceEvent) (attendance.IngestResult, error)
}

// Result counts one sync run.
type Result struct {
	Added      int
	Duplicates int
	Skipped    int
}

func (r *Result) merge(o Result) {
	r.Added += o.Added
	r.Duplicates += o.Duplicates
	r.Skipped += o.Skipped
}

type Syncer struct {
	client    CloudClient
	devices   device.DeviceRepository
	employees employee.EmployeeRepository
	records   attendance.RecordRepository
	rawEvents attendance.RawEventRepository
	ingestor  PunchIngestor
	lookback  time.Duration
	now       func() time.Time
}

func NewSyncer(
	client CloudClient,
	deviceRepo device.DeviceRepository,
	employeeRepo employee.EmployeeRepository,
	recordRepo attendance.RecordRepository,
	rawEventRepo attendance.RawEventRepository,
	ingestor PunchIngestor,
	lookback time.Duration,
) *Syncer {
	if lookback <= 0 {
		lookback = 24 * time.Hour
	}
	return &Syncer{
		client:    client,
		devices:   deviceRepo,
		employees: employeeRepo,
		records:   recordRepo,
		rawEvents: rawEventRepo,
		ingestor:  ingestor,
		lookback:  lookback,
		now:       time.Now,
	}
}

// SyncAll implements cron.CloudSyncer. A failing device does not stop the
// others.
func (s *Syncer) SyncAll(ctx context.Context) error {
	devices, err := s.devices.ListActiveByKind(ctx, device.KindHikCloud)
	if err != nil {
		return fmt.Errorf("failed to list cloud devices: %w", err)
	}
	if len(devices) == 0 {
		return nil
	}

	tok, err := s.client.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to get hik cloud token: %w", err)
	}

	end := s.now()
	begin := end.Add(-s.lookback)

	var total Result
	var errs []error
	for _, dev := range devices {
		res, err := s.SyncDevice(ctx, tok, dev, begin, end)
		total.merge(res)
		if err != nil {
			slog.Error("Failed to sync cloud device", "device_id", dev.ID, "error", err)
			errs = append(errs, fmt.Errorf("device %s: %w", dev.ID, err))
		}
	}

	slog.Info("Hik cloud sync finished",
		"devices", len(devices),
		"added", total.Added,
		"duplicates", total.Duplicates,
		"skipped", total.Skipped)
	return errors.Join(errs...)
}

// SyncDevice replays the records of one device in [begin, end] in
// chronological order.
func (s *Syncer) SyncDevice(ctx context.Context, tok hikcloud.Token, dev device.Device, begin, end time.Time) (Result, error) {
	if dev.ExternalName == nil || strings.TrimSpace(*dev.ExternalName) == "" {
		slog.Warn("Cloud device has no external name, skipping", "device_id", dev.ID)
		return Result{}, nil
	}
	name := strings.TrimSpace(*dev.ExternalName)

	var punches []hikcloud.Record
	err := s.client.Records(ctx, tok, begin, end, func(r hikcloud.Record) error {
		if strings.EqualFold(strings.TrimSpace(r.DeviceName), name) {
			punches = append(punches, r)
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	sort.SliceStable(punches, func(i, j int) bool {
		if punches[i].RecordTime.Equal(punches[j].RecordTime) {
			return punches[i].GUID < punches[j].GUID
		}
		return punches[i].RecordTime.Before(punches[j].RecordTime)
	})

	var res Result
	for _, p := range punches {
		outcome, err := s.replay(ctx, dev, p)
		if err != nil {
			return res, err
		}
		metrics.HikSyncRecords.WithLabelValues(outcome).Inc()
		switch outcome {
		case "added":
			res.Added++
		case "duplicate":
			res.Duplicates++
		default:
			res.Skipped++
		}
	}
	return res, nil
}

// replay ingests one punch. Terminals report no direction, so a punch
// opens a shift when none is open and closes it otherwise.
func (s *Syncer) replay(ctx context.Context, dev device.Device, p hikcloud.Record) (string, error) {
	if p.GUID == "" || p.PersonCode == "" || p.RecordTime.IsZero() {
		return "skipped", nil
	}

	emp, err := s.employees.GetBySyncID(ctx, dev.CompanyID, dev.ID, p.PersonCode)
	if err != nil {
		if errors.Is(err, employee.ErrEmployeeNotFound) {
			slog.Debug("Cloud punch for unknown person", "device_id", dev.ID, "person_code", p.PersonCode)
			return "skipped", nil
		}
		return "", err
	}

	seen, err := s.rawEvents.Seen(ctx, dev.CompanyID, emp.ID, p.GUID, p.RecordTime)
	if err != nil {
		return "", err
	}
	if seen {
		return "duplicate", nil
	}

	open, err := s.records.GetOpen(ctx, dev.CompanyID, emp.ID)
	if err != nil {
		return "", err
	}
	eventType := attendance.EventClockIn
	if open != nil {
		eventType = attendance.EventClockOut
	}

	guid := p.GUID
	result, err := s.ingestor.IngestCloudPunch(ctx, dev, attendance.DeviceEvent{
		DeviceID:    dev.ID,
		EmployeeRef: emp.ID,
		Type:        eventType,
		OccurredAt:  p.RecordTime,
		Identifier:  &guid,
		Payload:     p.Raw,
	})
	switch {
	case err == nil && result.Duplicate:
		return "duplicate", nil
	case err == nil:
		return "added", nil
	case errors.Is(err, attendance.ErrUnknownEmployee),
		errors.Is(err, attendance.ErrOpenShiftExists),
		errors.Is(err, attendance.ErrNoOpenShift),
		errors.Is(err, attendance.ErrClockOutBeforeClockIn),
		errors.Is(err, geofence.ErrFenceRequired),
		errors.Is(err, geofence.ErrOutsideGeofence),
		errors.Is(err, geofence.ErrLocationRequired):
		slog.Warn("Cloud punch skipped",
			"device_id", dev.ID,
			"employee_id", emp.ID,
			"record_guid", p.GUID,
			"error", err)
		return "skipped", nil
	default:
		return "", err
	}
}
