package geofence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/auth"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/company"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/geofence"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/user"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/clock"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFences struct {
	assigned map[string]*geofence.Fence
	def      *geofence.Fence
}

func (f *fakeFences) GetAssigned(ctx context.Context, companyID, employeeID string) (*geofence.Fence, error) {
	return f.assigned[employeeID], nil
}

func (f *fakeFences) GetDefault(ctx context.Context, companyID string) (*geofence.Fence, error) {
	return f.def, nil
}

type fakeSettings struct {
	settings geofence.Settings
	saved    *geofence.Settings
}

func (f *fakeSettings) Get(ctx context.Context, companyID string) (geofence.Settings, error) {
	return f.settings, nil
}

func (f *fakeSettings) Upsert(ctx context.Context, s geofence.Settings) (geofence.Settings, error) {
	f.saved = &s
	return s, nil
}

type fakeCompanies struct {
	tz string
}

func (f fakeCompanies) GetByID(ctx context.Context, id string) (company.Company, error) {
	return company.Company{ID: id, Timezone: f.tz}, nil
}

func (f fakeCompanies) ListIDs(ctx context.Context) ([]string, error) {
	return []string{"co-1"}, nil
}

func ptr[T any](v T) *T { return &v }

// Dhaka office circle from the reference scenario.
func officeCircle() *geofence.Fence {
	return &geofence.Fence{
		ID:        "office",
		Type:      geofence.FenceCircle,
		Active:    true,
		CenterLat: ptr(23.81),
		CenterLng: ptr(90.41),
		RadiusM:   ptr(100.0),
	}
}

func metersNorth(lat, lng, m float64) *geofence.Reading {
	return &geofence.Reading{Latitude: lat + m/111195.0, Longitude: lng}
}

func enabled() geofence.Settings {
	s := geofence.DefaultSettings("co-1")
	s.Enabled = true
	return s
}

func TestAuthorize(t *testing.T) {
	noon := time.Date(2025, 3, 3, 6, 0, 0, 0, time.UTC) // 12:00 in Asia/Dhaka

	tests := []struct {
		name     string
		settings geofence.Settings
		fences   *fakeFences
		reading  *geofence.Reading
		wantErr  error
		required bool
	}{
		{
			name:     "disabled tenant passes anything",
			settings: geofence.DefaultSettings("co-1"),
			fences:   &fakeFences{def: officeCircle()},
			reading:  metersNorth(23.81, 90.41, 5000),
		},
		{
			name:     "no fence and not required",
			settings: enabled(),
			fences:   &fakeFences{},
			reading:  metersNorth(23.81, 90.41, 5000),
		},
		{
			name: "no fence but required",
			settings: func() geofence.Settings {
				s := enabled()
				s.RequireFence = true
				return s
			}(),
			fences:  &fakeFences{},
			reading: metersNorth(23.81, 90.41, 0),
			wantErr: geofence.ErrFenceRequired,
		},
		{
			name:     "inside default circle",
			settings: enabled(),
			fences:   &fakeFences{def: officeCircle()},
			reading:  metersNorth(23.81, 90.41, 50),
			required: true,
		},
		{
			name:     "outside default circle",
			settings: enabled(),
			fences:   &fakeFences{def: officeCircle()},
			reading:  metersNorth(23.81, 90.41, 500),
			wantErr:  geofence.ErrOutsideGeofence,
		},
		{
			name:     "assignment overrides default",
			settings: enabled(),
			fences: &fakeFences{
				def: officeCircle(),
				assigned: map[string]*geofence.Fence{"emp-1": {
					ID:   "site",
					Type: geofence.FencePolygon,
					Vertices: []geo.Vertex{
						{Seq: 1, Point: geo.Point{Lat: 0, Lng: 0}},
						{Seq: 2, Point: geo.Point{Lat: 0, Lng: 10}},
						{Seq: 3, Point: geo.Point{Lat: 10, Lng: 10}},
						{Seq: 4, Point: geo.Point{Lat: 10, Lng: 0}},
					},
				}},
			},
			reading:  &geofence.Reading{Latitude: 5, Longitude: 5},
			required: true,
		},
		{
			name:     "missing location passes when fence not required",
			settings: enabled(),
			fences:   &fakeFences{def: officeCircle()},
		},
		{
			name: "missing location is retryable when fence required",
			settings: func() geofence.Settings {
				s := enabled()
				s.RequireFence = true
				return s
			}(),
			fences:  &fakeFences{def: officeCircle()},
			wantErr: geofence.ErrLocationRequired,
		},
		{
			name: "imprecise reading is rejected",
			settings: func() geofence.Settings {
				s := enabled()
				s.MinAccuracyM = ptr(50)
				return s
			}(),
			fences: &fakeFences{def: officeCircle()},
			reading: &geofence.Reading{
				Latitude: 23.81, Longitude: 90.41, AccuracyM: ptr(120.0),
			},
			wantErr: geofence.ErrLocationTooImprecise,
		},
		{
			name:     "outside the fence window the fence is not required",
			settings: enabled(),
			fences: &fakeFences{def: func() *geofence.Fence {
				f := officeCircle()
				f.Window = &clock.Window{Start: clock.TimeOfDay(7 * 60), End: clock.TimeOfDay(10 * 60)}
				return f
			}()},
			reading: metersNorth(23.81, 90.41, 5000),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewGeofenceService(tt.fences, &fakeSettings{settings: tt.settings}, fakeCompanies{tz: "Asia/Dhaka"})
			got, err := svc.Authorize(context.Background(), "co-1", "emp-1", tt.reading, noon)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.required, got.Required)
		})
	}
}

func TestAuthorize_OutsideCarriesDistance(t *testing.T) {
	svc := NewGeofenceService(&fakeFences{def: officeCircle()}, &fakeSettings{settings: enabled()}, fakeCompanies{})
	_, err := svc.Authorize(context.Background(), "co-1", "emp-1", metersNorth(23.81, 90.41, 500), time.Now())

	var outside *geofence.OutsideError
	require.True(t, errors.As(err, &outside))
	require.NotNil(t, outside.DistanceOutsideM)
	assert.InDelta(t, 400, *outside.DistanceOutsideM, 5)
	assert.Equal(t, "office", outside.FenceID)
}

func TestAuthorize_WindowUsesTenantTimezone(t *testing.T) {
	fence := officeCircle()
	fence.Window = &clock.Window{Start: clock.TimeOfDay(9 * 60), End: clock.TimeOfDay(17 * 60)}
	svc := NewGeofenceService(&fakeFences{def: fence}, &fakeSettings{settings: enabled()}, fakeCompanies{tz: "Asia/Dhaka"})

	// 04:00 UTC is 10:00 in Dhaka, inside the window, so the fence applies.
	_, err := svc.Authorize(context.Background(), "co-1", "emp-1", metersNorth(23.81, 90.41, 500),
		time.Date(2025, 3, 3, 4, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, geofence.ErrOutsideGeofence)
}

func TestUpdateSettings(t *testing.T) {
	store := &fakeSettings{settings: geofence.DefaultSettings("co-1")}
	svc := NewGeofenceService(&fakeFences{}, store, fakeCompanies{})
	owner := auth.Principal{CompanyID: "co-1", UserID: "u-1", Role: user.RoleOwner}

	_, err := svc.UpdateSettings(context.Background(), owner, geofence.UpdateSettingsRequest{
		Enabled: true, UpdateIntervalSec: 5, OfflineAfterSec: 180,
	})
	require.Error(t, err)
	assert.Nil(t, store.saved)

	resp, err := svc.UpdateSettings(context.Background(), owner, geofence.UpdateSettingsRequest{
		Enabled: true, UpdateIntervalSec: 30, MinAccuracyM: ptr(50), OfflineAfterSec: 180, RequireFence: true,
	})
	require.NoError(t, err)
	assert.True(t, resp.Enabled)
	assert.Equal(t, 50, *resp.MinAccuracyM)
	require.NotNil(t, store.saved)
	assert.Equal(t, "co-1", store.saved.CompanyID)
}
