package attendance

import (
	"encoding/json"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/evidence"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/geofence"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
)

// ========================================
// INGEST DTOs
// ========================================

type DeviceIngestRequest struct {
	DeviceID   string          `json:"device_id"`
	Secret     string          `json:"secret"`
	EmployeeID string          `json:"employee_id"`
	Event      string          `json:"event"`
	OccurredAt string          `json:"occurred_at"`
	Identifier *string         `json:"identifier,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Validate checks the request and converts it to a DeviceEvent.
func (r *DeviceIngestRequest) Validate() (DeviceEvent, error) {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.DeviceID) {
		errs.Add("device_id", "device_id is required")
	}
	if validator.IsEmpty(r.Secret) {
		errs.Add("secret", "secret is required")
	}
	if validator.IsEmpty(r.EmployeeID) {
		errs.Add("employee_id", "employee_id is required")
	}
	if !EventType(r.Event).IsValid() {
		errs.Add("event", "event must be clockin or clockout")
	}

	occurredAt, ok := validator.IsValidDateTime(r.OccurredAt)
	if !ok {
		errs.Add("occurred_at", "occurred_at must be an ISO-8601 timestamp with timezone")
	}

	if len(errs) > 0 {
		return DeviceEvent{}, errs
	}

	return DeviceEvent{
		DeviceID:    r.DeviceID,
		Secret:      r.Secret,
		EmployeeRef: r.EmployeeID,
		Type:        EventType(r.Event),
		OccurredAt:  occurredAt,
		Identifier:  r.Identifier,
		Payload:     r.Payload,
	}, nil
}

type GeoRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	AccuracyM *float64 `json:"accuracy_m"`
}

// Reading returns nil when the coordinates are missing.
func (g *GeoRequest) Reading() *geofence.Reading {
	if g == nil || g.Latitude == nil || g.Longitude == nil {
		return nil
	}
	return &geofence.Reading{Latitude: *g.Latitude, Longitude: *g.Longitude, AccuracyM: g.AccuracyM}
}

type ClockRequest struct {
	EmployeeID        string          `json:"employee_id"`
	BiometricModality *string         `json:"biometric_modality,omitempty"`
	BiometricImage    *string         `json:"biometric_image,omitempty"`
	Geo               *GeoRequest     `json:"geo,omitempty"`
	Payload           json.RawMessage `json:"payload,omitempty"`
}

// Validate checks the request and builds the event it describes. The
// biometric event is nil when no biometric sample was sent.
func (r *ClockRequest) Validate(eventType EventType) (UserEvent, *BiometricEvent, error) {
	var errs validator.ValidationErrors

	if g := r.Geo; g != nil {
		if g.Latitude != nil && !validator.IsValidLatitude(*g.Latitude) {
			errs.Add("geo.latitude", "latitude must be between -90 and 90")
		}
		if g.Longitude != nil && !validator.IsValidLongitude(*g.Longitude) {
			errs.Add("geo.longitude", "longitude must be between -180 and 180")
		}
		if (g.Latitude == nil) != (g.Longitude == nil) {
			errs.Add("geo", "latitude and longitude must be sent together")
		}
		if g.AccuracyM != nil && *g.AccuracyM < 0 {
			errs.Add("geo.accuracy_m", "accuracy_m must not be negative")
		}
	}

	user := UserEvent{
		EmployeeID: r.EmployeeID,
		Type:       eventType,
		Geo:        r.Geo.Reading(),
		Payload:    r.Payload,
	}

	hasModality := r.BiometricModality != nil && !validator.IsEmpty(*r.BiometricModality)
	hasImage := r.BiometricImage != nil && !validator.IsEmpty(*r.BiometricImage)
	if !hasModality && !hasImage {
		if len(errs) > 0 {
			return UserEvent{}, nil, errs
		}
		return user, nil, nil
	}

	var modality, mime string
	var image []byte
	if !hasModality {
		errs.Add("biometric_modality", "biometric_modality is required with biometric_image")
	} else if m, err := evidence.NormalizeModality(*r.BiometricModality); err != nil {
		errs.Add("biometric_modality", err.Error())
	} else {
		modality = m
	}
	if !hasImage {
		errs.Add("biometric_image", "biometric_image is required with biometric_modality")
	} else if m, b, err := evidence.DecodeImage(*r.BiometricImage); err != nil {
		errs.Add("biometric_image", err.Error())
	} else {
		mime, image = m, b
	}

	if len(errs) > 0 {
		return UserEvent{}, nil, errs
	}

	return user, &BiometricEvent{UserEvent: user, Modality: modality, Image: image, MIME: mime}, nil
}

// ========================================
// RESPONSE DTOs
// ========================================

type GeoResponse struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	AccuracyM *float64 `json:"accuracy_m,omitempty"`
}

type RecordResponse struct {
	ID                string       `json:"id"`
	EmployeeID        string       `json:"employee_id"`
	ClockIn           string       `json:"clock_in"`
	ClockOut          *string      `json:"clock_out"`
	DurationMinutes   int          `json:"duration_minutes"`
	ClockInMethod     Method       `json:"clock_in_method"`
	ClockOutMethod    *Method      `json:"clock_out_method,omitempty"`
	ClockInDeviceID   *string      `json:"clock_in_device_id,omitempty"`
	ClockOutDeviceID  *string      `json:"clock_out_device_id,omitempty"`
	ClockInGeo        *GeoResponse `json:"clock_in_geo,omitempty"`
	ClockOutGeo       *GeoResponse `json:"clock_out_geo,omitempty"`
	LateMinutes       *int         `json:"late_minutes,omitempty"`
	EarlyLeaveMinutes *int         `json:"early_leave_minutes,omitempty"`
}

type IngestResponse struct {
	Record    RecordResponse `json:"record"`
	Duplicate bool           `json:"duplicate"`
}

type OpenShiftResponse struct {
	EmployeeID string          `json:"employee_id"`
	Open       bool            `json:"open"`
	Record     *RecordResponse `json:"record,omitempty"`
}

// timePtrToString safely converts a *time.Time to a string.
func timePtrToString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	format := t.Format(time.RFC3339)
	return &format
}

func geoResponse(g *GeoStamp) *GeoResponse {
	if g == nil {
		return nil
	}
	return &GeoResponse{Latitude: g.Latitude, Longitude: g.Longitude, AccuracyM: g.AccuracyM}
}

func NewRecordResponse(r Record) RecordResponse {
	return RecordResponse{
		ID:               r.ID,
		EmployeeID:       r.EmployeeID,
		ClockIn:          r.ClockIn.Format(time.RFC3339),
		ClockOut:         timePtrToString(r.ClockOut),
		DurationMinutes:  r.DurationMinutes,
		ClockInMethod:    r.ClockInMethod,
		ClockOutMethod:   r.ClockOutMethod,
		ClockInDeviceID:  r.ClockInDeviceID,
		ClockOutDeviceID: r.ClockOutDeviceID,
		ClockInGeo:       geoResponse(r.ClockInGeo),
		ClockOutGeo:      geoResponse(r.ClockOutGeo),
	}
}

func NewIngestResponse(res IngestResult) IngestResponse {
	rec := NewRecordResponse(res.Record)
	rec.LateMinutes = res.LateMinutes
	rec.EarlyLeaveMinutes = res.EarlyLeaveMinutes
	return IngestResponse{Record: rec, Duplicate: res.Duplicate}
}

func NewOpenShiftResponse(employeeID string, open bool, r *Record) OpenShiftResponse {
	resp := OpenShiftResponse{EmployeeID: employeeID, Open: open}
	if r != nil {
		rec := NewRecordResponse(*r)
		resp.Record = &rec
	}
	return resp
}
