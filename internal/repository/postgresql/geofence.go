package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/geofence"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/clock"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/geo"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const fenceColumns = `
	f.id, f.company_id, f.name, f.type, f.active, f.is_default,
	f.center_lat, f.center_lng, f.radius_m, f.time_start, f.time_end, f.updated_at`

type geofenceRepository struct {
	db *database.DB
}

// NewGeofenceRepository reads fences fresh on every call so admin edits
// apply to the next clock attempt.
func NewGeofenceRepository(db *database.DB) geofence.FenceRepository {
	return &geofenceRepository{db: db}
}

func scanFence(row pgx.Row) (geofence.Fence, error) {
	var f geofence.Fence
	var start, end pgtype.Time

	err := row.Scan(
		&f.ID, &f.CompanyID, &f.Name, &f.Type, &f.Active, &f.IsDefault,
		&f.CenterLat, &f.CenterLng, &f.RadiusM, &start, &end, &f.UpdatedAt,
	)
	if err != nil {
		return geofence.Fence{}, err
	}
	if start.Valid && end.Valid {
		f.Window = &clock.Window{Start: toTimeOfDay(start), End: toTimeOfDay(end)}
	}
	return f, nil
}

func (r *geofenceRepository) loadFence(ctx context.Context, query string, args ...interface{}) (*geofence.Fence, error) {
	q := GetQuerier(ctx, r.db)

	f, err := scanFence(q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if f.Type == geofence.FencePolygon {
		rows, err := q.Query(ctx, `
			SELECT seq, lat, lng FROM geofence_vertices
			WHERE fence_id = $1
			ORDER BY seq`, f.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load vertices of fence %s: %w", f.ID, err)
		}
		defer rows.Close()

		for rows.Next() {
			var v geo.Vertex
			if err := rows.Scan(&v.Seq, &v.Lat, &v.Lng); err != nil {
				return nil, fmt.Errorf("failed to scan vertex: %w", err)
			}
			f.Vertices = append(f.Vertices, v)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to iterate vertices: %w", err)
		}
	}
	return &f, nil
}

// GetAssigned implements geofence.FenceRepository.
func (r *geofenceRepository) GetAssigned(ctx context.Context, companyID, employeeID string) (*geofence.Fence, error) {
	f, err := r.loadFence(ctx, `SELECT`+fenceColumns+`
		FROM geofence_assignments a
		JOIN geofences f ON f.id = a.fence_id AND f.company_id = a.company_id
		WHERE a.company_id = $1 AND a.employee_id = $2 AND f.active`, companyID, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get assigned fence: %w", err)
	}
	return f, nil
}

// GetDefault implements geofence.FenceRepository.
func (r *geofenceRepository) GetDefault(ctx context.Context, companyID string) (*geofence.Fence, error) {
	f, err := r.loadFence(ctx, `SELECT`+fenceColumns+`
		FROM geofences f
		WHERE f.company_id = $1 AND f.is_default AND f.active
		ORDER BY f.updated_at DESC
		LIMIT 1`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get default fence: %w", err)
	}
	return f, nil
}

type geofenceSettingsRepository struct {
	db *database.DB
}

func NewGeofenceSettingsRepository(db *database.DB) geofence.SettingsRepository {
	return &geofenceSettingsRepository{db: db}
}

// Get implements geofence.SettingsRepository.
func (r *geofenceSettingsRepository) Get(ctx context.Context, companyID string) (geofence.Settings, error) {
	q := GetQuerier(ctx, r.db)

	s := geofence.Settings{CompanyID: companyID}
	err := q.QueryRow(ctx, `
		SELECT enabled, update_interval_sec, min_accuracy_m, offline_after_sec, require_fence, updated_at
		FROM geofence_settings
		WHERE company_id = $1`, companyID,
	).Scan(&s.Enabled, &s.UpdateIntervalSec, &s.MinAccuracyM, &s.OfflineAfterSec, &s.RequireFence, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return geofence.DefaultSettings(companyID), nil
		}
		return geofence.Settings{}, fmt.Errorf("failed to get geofence settings: %w", err)
	}
	return s, nil
}

// Upsert implements geofence.SettingsRepository.
func (r *geofenceSettingsRepository) Upsert(ctx context.Context, s geofence.Settings) (geofence.Settings, error) {
	q := GetQuerier(ctx, r.db)

	err := q.QueryRow(ctx, `
		INSERT INTO geofence_settings (
			company_id, enabled, update_interval_sec, min_accuracy_m, offline_after_sec, require_fence
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (company_id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			update_interval_sec = EXCLUDED.update_interval_sec,
			min_accuracy_m = EXCLUDED.min_accuracy_m,
			offline_after_sec = EXCLUDED.offline_after_sec,
			require_fence = EXCLUDED.require_fence,
			updated_at = NOW()
		RETURNING updated_at`,
		s.CompanyID, s.Enabled, s.UpdateIntervalSec, s.MinAccuracyM, s.OfflineAfterSec, s.RequireFence,
	).Scan(&s.UpdatedAt)
	if err != nil {
		return geofence.Settings{}, fmt.Errorf("failed to save geofence settings: %w", err)
	}
	return s, nil
}
