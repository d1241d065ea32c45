package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/evidence"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type evidenceRepository struct {
	db *database.DB
}

func NewEvidenceRepository(db *database.DB) evidence.ItemRepository {
	return &evidenceRepository{db: db}
}

// Create implements evidence.ItemRepository. Items are never updated.
func (r *evidenceRepository) Create(ctx context.Context, item evidence.Item) (evidence.Item, error) {
	q := GetQuerier(ctx, r.db)

	if item.ID == "" {
		item.ID = uuid.Must(uuid.NewV7()).String()
	}

	err := q.QueryRow(ctx, `
		INSERT INTO evidence_items (
			id, company_id, attendance_record_id, employee_id, event_type, modality, matched, sha256,
			latitude, longitude, accuracy_m, mime, image_ref, thumbnail_ref
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at`,
		item.ID, item.CompanyID, item.AttendanceRecordID, item.EmployeeID, item.EventType, item.Modality, item.Matched, item.SHA256,
		item.Latitude, item.Longitude, item.AccuracyM, item.MIME, item.ImageRef, item.ThumbnailRef,
	).Scan(&item.CreatedAt)
	if err != nil {
		return evidence.Item{}, fmt.Errorf("failed to create evidence item: %w", err)
	}
	return item, nil
}

// ListByRecord implements evidence.ItemRepository.
func (r *evidenceRepository) ListByRecord(ctx context.Context, companyID, recordID string, limit int) ([]evidence.Item, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `
		SELECT id, company_id, attendance_record_id, employee_id, event_type, modality, matched, sha256,
			latitude, longitude, accuracy_m, mime, image_ref, thumbnail_ref, created_at
		FROM evidence_items
		WHERE company_id = $1 AND attendance_record_id = $2
		ORDER BY created_at, id
		LIMIT $3`, companyID, recordID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list evidence: %w", err)
	}
	defer rows.Close()

	var items []evidence.Item
	for rows.Next() {
		var it evidence.Item
		if err := rows.Scan(
			&it.ID, &it.CompanyID, &it.AttendanceRecordID, &it.EmployeeID, &it.EventType, &it.Modality, &it.Matched, &it.SHA256,
			&it.Latitude, &it.Longitude, &it.AccuracyM, &it.MIME, &it.ImageRef, &it.ThumbnailRef, &it.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan evidence item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate evidence: %w", err)
	}
	return items, nil
}

// GetByID implements evidence.ItemRepository.
func (r *evidenceRepository) GetByID(ctx context.Context, companyID, id string) (evidence.Item, error) {
	q := GetQuerier(ctx, r.db)

	var it evidence.Item
	err := q.QueryRow(ctx, `
		SELECT id, company_id, attendance_record_id, employee_id, event_type, modality, matched, sha256,
			latitude, longitude, accuracy_m, mime, image_ref, thumbnail_ref, created_at
		FROM evidence_items
		WHERE company_id = $1 AND id = $2`, companyID, id,
	).Scan(
		&it.ID, &it.CompanyID, &it.AttendanceRecordID, &it.EmployeeID, &it.EventType, &it.Modality, &it.Matched, &it.SHA256,
		&it.Latitude, &it.Longitude, &it.AccuracyM, &it.MIME, &it.ImageRef, &it.ThumbnailRef, &it.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return evidence.Item{}, evidence.ErrEvidenceNotFound
		}
		return evidence.Item{}, fmt.Errorf("failed to get evidence item %s: %w", id, err)
	}
	return it, nil
}

type biometricTemplateRepository struct {
	db *database.DB
}

func NewBiometricTemplateRepository(db *database.DB) evidence.TemplateRepository {
	return &biometricTemplateRepository{db: db}
}

// Get implements evidence.TemplateRepository.
func (r *biometricTemplateRepository) Get(ctx context.Context, companyID, employeeID, modality string) (*evidence.Template, error) {
	q := GetQuerier(ctx, r.db)

	t := evidence.Template{CompanyID: companyID, EmployeeID: employeeID, Modality: modality}
	err := q.QueryRow(ctx, `
		SELECT sha256, mime, image_ref, updated_at
		FROM biometric_templates
		WHERE company_id = $1 AND employee_id = $2 AND modality = $3`,
		companyID, employeeID, modality,
	).Scan(&t.SHA256, &t.MIME, &t.ImageRef, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get biometric template: %w", err)
	}
	return &t, nil
}

// Upsert implements evidence.TemplateRepository.
func (r *biometricTemplateRepository) Upsert(ctx context.Context, t evidence.Template) (evidence.Template, error) {
	q := GetQuerier(ctx, r.db)

	err := q.QueryRow(ctx, `
		INSERT INTO biometric_templates (company_id, employee_id, modality, sha256, mime, image_ref)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (company_id, employee_id, modality) DO UPDATE SET
			sha256 = EXCLUDED.sha256,
			mime = EXCLUDED.mime,
			image_ref = EXCLUDED.image_ref,
			updated_at = NOW()
		RETURNING updated_at`,
		t.CompanyID, t.EmployeeID, t.Modality, t.SHA256, t.MIME, t.ImageRef,
	).Scan(&t.UpdatedAt)
	if err != nil {
		return evidence.Template{}, fmt.Errorf("failed to save biometric template: %w", err)
	}
	return t, nil
}
