package geofence

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/auth"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/company"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/geofence"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/metrics"
)

type GeofenceServiceImpl struct {
	geofence.FenceRepository
	geofence.SettingsRepository
	companyRepo company.CompanyRepository
}

func NewGeofenceService(
	fenceRepo geofence.FenceRepository,
	settingsRepo geofence.SettingsRepository,
	companyRepo company.CompanyRepository,
) geofence.GeofenceService {
	return &GeofenceServiceImpl{
		FenceRepository:    fenceRepo,
		SettingsRepository: settingsRepo,
		companyRepo:        companyRepo,
	}
}

// Authorize implements geofence.GeofenceService.
func (s *GeofenceServiceImpl) Authorize(ctx context.Context, companyID, employeeID string, reading *geofence.Reading, at time.Time) (geofence.Decision, error) {
	settings, err := s.SettingsRepository.Get(ctx, companyID)
	if err != nil {
		return geofence.Decision{}, fmt.Errorf("failed to get geofence settings: %w", err)
	}
	if !settings.Enabled {
		return geofence.Decision{}, nil
	}

	fence, err := s.FenceRepository.GetAssigned(ctx, companyID, employeeID)
	if err != nil {
		return geofence.Decision{}, fmt.Errorf("failed to get assigned geofence: %w", err)
	}
	if fence == nil {
		fence, err = s.FenceRepository.GetDefault(ctx, companyID)
		if err != nil {
			return geofence.Decision{}, fmt.Errorf("failed to get default geofence: %w", err)
		}
	}
	if fence == nil {
		if settings.RequireFence {
			return geofence.Decision{}, reject("fence_required", geofence.ErrFenceRequired)
		}
		return geofence.Decision{}, nil
	}

	co, err := s.companyRepo.GetByID(ctx, companyID)
	if err != nil {
		return geofence.Decision{}, fmt.Errorf("failed to get company: %w", err)
	}
	if !fence.AppliesAt(at.In(co.Location())) {
		return geofence.Decision{}, nil
	}

	fenceID := fence.ID
	if reading == nil {
		if settings.RequireFence {
			return geofence.Decision{}, reject("location_required", geofence.ErrLocationRequired)
		}
		return geofence.Decision{}, nil
	}

	if limit := settings.MinAccuracyM; limit != nil && reading.AccuracyM != nil && *reading.AccuracyM > float64(*limit) {
		return geofence.Decision{}, reject("imprecise", &geofence.ImpreciseError{
			AccuracyM:    *reading.AccuracyM,
			MinAccuracyM: *limit,
		})
	}

	// Fences without usable geometry cannot reject anyone.
	if !fence.Evaluable() {
		return geofence.Decision{Required: true, FenceID: &fenceID, Inside: true}, nil
	}

	res := fence.Shape().Contains(reading.Point())
	if !res.Inside {
		return geofence.Decision{}, reject("outside", &geofence.OutsideError{
			FenceID:          fenceID,
			DistanceOutsideM: res.DistanceOutsideM,
		})
	}
	return geofence.Decision{Required: true, FenceID: &fenceID, Inside: true}, nil
}

func reject(reason string, err error) error {
	metrics.GeofenceRejections.WithLabelValues(reason).Inc()
	return err
}

// GetSettings implements geofence.GeofenceService.
func (s *GeofenceServiceImpl) GetSettings(ctx context.Context, p auth.Principal) (geofence.SettingsResponse, error) {
	settings, err := s.SettingsRepository.Get(ctx, p.CompanyID)
	if err != nil {
		return geofence.SettingsResponse{}, fmt.Errorf("failed to get geofence settings: %w", err)
	}
	return geofence.NewSettingsResponse(settings), nil
}

// UpdateSettings implements geofence.GeofenceService.
func (s *GeofenceServiceImpl) UpdateSettings(ctx context.Context, p auth.Principal, req geofence.UpdateSettingsRequest) (geofence.SettingsResponse, error) {
	if err := req.Validate(); err != nil {
		return geofence.SettingsResponse{}, err
	}

	saved, err := s.SettingsRepository.Upsert(ctx, geofence.Settings{
		CompanyID:         p.CompanyID,
		Enabled:           req.Enabled,
		UpdateIntervalSec: req.UpdateIntervalSec,
		MinAccuracyM:      req.MinAccuracyM,
		OfflineAfterSec:   req.OfflineAfterSec,
		RequireFence:      req.RequireFence,
	})
	if err != nil {
		return geofence.SettingsResponse{}, fmt.Errorf("failed to save geofence settings: %w", err)
	}
	return geofence.NewSettingsResponse(saved), nil
}
