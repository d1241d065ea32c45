package geofence

import "github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"

type UpdateSettingsRequest struct {
	Enabled           bool `json:"enabled"`
	UpdateIntervalSec int  `json:"update_interval_sec" validate:"gte=10,lte=600"`
	MinAccuracyM      *int `json:"min_accuracy_m" validate:"omitempty,gte=5,lte=2000"`
	OfflineAfterSec   int  `json:"offline_after_sec" validate:"gte=30,lte=7200"`
	RequireFence      bool `json:"require_fence"`
}

func (r *UpdateSettingsRequest) Validate() error {
	return validator.Struct(r)
}

type SettingsResponse struct {
	Enabled           bool `json:"enabled"`
	UpdateIntervalSec int  `json:"update_interval_sec"`
	MinAccuracyM      *int `json:"min_accuracy_m"`
	OfflineAfterSec   int  `json:"offline_after_sec"`
	RequireFence      bool `json:"require_fence"`
}

func NewSettingsResponse(s Settings) SettingsResponse {
	return SettingsResponse{
		Enabled:           s.Enabled,
		UpdateIntervalSec: s.UpdateIntervalSec,
		MinAccuracyM:      s.MinAccuracyM,
		OfflineAfterSec:   s.OfflineAfterSec,
		RequireFence:      s.RequireFence,
	}
}
