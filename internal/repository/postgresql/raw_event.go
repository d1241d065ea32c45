package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/google/uuid"
)

type rawEventRepository struct {
	db *database.DB
}

func NewRawEventRepository(db *database.DB) attendance.RawEventRepository {
	return &rawEventRepository{db: db}
}

// Insert implements attendance.RawEventRepository.
func (r *rawEventRepository) Insert(ctx context.Context, e attendance.RawEvent) (bool, attendance.RawEvent, error) {
	q := GetQuerier(ctx, r.db)

	if e.ID == "" {
		e.ID = uuid.Must(uuid.NewV7()).String()
	}
	var payload []byte
	if len(e.Payload) > 0 {
		payload = e.Payload
	}

	query := `
		INSERT INTO raw_events (
			id, company_id, employee_id, event_type, occurred_at, source_key, channel, device_id, payload
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT ON CONSTRAINT raw_events_dedup DO NOTHING`

	tag, err := q.Exec(ctx, query,
		e.ID, e.CompanyID, e.EmployeeID, e.EventType, e.OccurredAt, e.SourceKey, e.Channel, e.DeviceID, payload,
	)
	if err != nil {
		return false, attendance.RawEvent{}, fmt.Errorf("failed to insert raw event: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, e, nil
	}

	var prior attendance.RawEvent
	err = q.QueryRow(ctx, `
		SELECT id, company_id, employee_id, event_type, occurred_at, source_key, channel,
			device_id, record_id, created_at
		FROM raw_events
		WHERE company_id = $1 AND employee_id = $2 AND event_type = $3 AND occurred_at = $4 AND source_key = $5`,
		e.CompanyID, e.EmployeeID, e.EventType, e.OccurredAt, e.SourceKey,
	).Scan(
		&prior.ID, &prior.CompanyID, &prior.EmployeeID, &prior.EventType, &prior.OccurredAt, &prior.SourceKey, &prior.Channel,
		&prior.DeviceID, &prior.RecordID, &prior.CreatedAt,
	)
	if err != nil {
		return false, attendance.RawEvent{}, fmt.Errorf("failed to load duplicate raw event: %w", err)
	}
	return false, prior, nil
}

// AttachRecord implements attendance.RawEventRepository.
func (r *rawEventRepository) AttachRecord(ctx context.Context, id, recordID string) error {
	q := GetQuerier(ctx, r.db)

	if _, err := q.Exec(ctx, `UPDATE raw_events SET record_id = $1 WHERE id = $2`, recordID, id); err != nil {
		return fmt.Errorf("failed to attach record to raw event %s: %w", id, err)
	}
	return nil
}

// Seen implements attendance.RawEventRepository.
func (r *rawEventRepository) Seen(ctx context.Context, companyID, employeeID, sourceKey string, occurredAt time.Time) (bool, error) {
	q := GetQuerier(ctx, r.db)

	var seen bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM raw_events
			WHERE company_id = $1 AND employee_id = $2 AND occurred_at = $3 AND source_key = $4
		)`,
		companyID, employeeID, occurredAt, sourceKey,
	).Scan(&seen)
	if err != nil {
		return false, fmt.Errorf("failed to look up raw event: %w", err)
	}
	return seen, nil
}
