package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/company"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/day"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/clock"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/metrics"
)

// CloudSyncer pulls punches from vendor clouds into the ingest pipeline.
type CloudSyncer interface {
	SyncAll(ctx context.Context) error
}

type JobsConfig struct {
	ProcessHour         int
	StaleOpenShiftAfter time.Duration
	CloudSyncInterval   time.Duration
}

type AttendanceJobs struct {
	aggregator  day.Aggregator
	companyRepo company.CompanyRepository
	recordRepo  attendance.RecordRepository
	cloudSync   CloudSyncer
	cfg         JobsConfig
	now         func() time.Time
}

// NewAttendanceJobs builds the attendance jobs. cloudSync may be nil.
func NewAttendanceJobs(
	aggregator day.Aggregator,
	companyRepo company.CompanyRepository,
	recordRepo attendance.RecordRepository,
	cloudSync CloudSyncer,
	cfg JobsConfig,
) *AttendanceJobs {
	return &AttendanceJobs{
		aggregator:  aggregator,
		companyRepo: companyRepo,
		recordRepo:  recordRepo,
		cloudSync:   cloudSync,
		cfg:         cfg,
		now:         time.Now,
	}
}

func (j *AttendanceJobs) RegisterJobs(scheduler *Scheduler) {
	scheduler.AddJob("process_previous_day", time.Hour, j.ProcessPreviousDay)
	scheduler.AddJob("stale_open_shifts", time.Hour, j.ReportStaleOpenShifts)
	if j.cloudSync != nil {
		scheduler.AddJob("hik_cloud_sync", j.cfg.CloudSyncInterval, j.cloudSync.SyncAll)
	}
}

// ProcessPreviousDay aggregates yesterday for every tenant whose local hour
// matches the configured process hour. Re-running it is harmless.
func (j *AttendanceJobs) ProcessPreviousDay(ctx context.Context) error {
	ids, err := j.companyRepo.ListIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list companies: %w", err)
	}

	processed := 0
	for _, id := range ids {
		co, err := j.companyRepo.GetByID(ctx, id)
		if err != nil {
			slog.Error("Cron: Failed to load company", "company_id", id, "error", err)
			continue
		}

		localNow := j.now().In(co.Location())
		if localNow.Hour() != j.cfg.ProcessHour {
			continue
		}

		yesterday := clock.Date(localNow, co.Location()).AddDate(0, 0, -1)
		n, err := j.aggregator.ProcessCompany(ctx, id, yesterday, yesterday)
		if err != nil {
			slog.Error("Cron: Failed to process attendance days",
				"company_id", id,
				"date", yesterday.Format(clock.DateLayout),
				"error", err)
			continue
		}
		processed += n
	}

	if processed > 0 {
		slog.Info("Cron: Processed previous day", "days", processed)
	}
	return nil
}

// ReportStaleOpenShifts surfaces shifts left open too long. They are not
// closed automatically.
func (j *AttendanceJobs) ReportStaleOpenShifts(ctx context.Context) error {
	cutoff := j.now().Add(-j.cfg.StaleOpenShiftAfter)
	stale, err := j.recordRepo.ListStaleOpen(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to list stale open shifts: %w", err)
	}

	metrics.StaleOpenShifts.Set(float64(len(stale)))
	for _, r := range stale {
		slog.Warn("Cron: Open shift exceeds stale threshold",
			"company_id", r.CompanyID,
			"employee_id", r.EmployeeID,
			"record_id", r.ID,
			"clock_in", r.ClockIn)
	}
	return nil
}
