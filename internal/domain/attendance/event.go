package attendance

import (
	"encoding/json"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/geofence"
)

type Channel string

const (
	ChannelDevice    Channel = "device"
	ChannelUser      Channel = "user"
	ChannelBiometric Channel = "biometric"
)

// DeviceEvent arrives from a terminal authenticated by its shared secret.
// EmployeeRef is either an employee id or the terminal's sync id for one.
type DeviceEvent struct {
	DeviceID    string
	Secret      string
	EmployeeRef string
	Type        EventType
	OccurredAt  time.Time
	Identifier  *string
	Payload     json.RawMessage
}

// SourceKey identifies the originating punch for dedup.
func (e DeviceEvent) SourceKey() string {
	if e.Identifier != nil && *e.Identifier != "" {
		return *e.Identifier
	}
	return e.DeviceID
}

// UserEvent is a clock action from an authenticated user.
type UserEvent struct {
	EmployeeID string
	Type       EventType
	Geo        *geofence.Reading
	Payload    json.RawMessage
}

// BiometricEvent is a UserEvent carrying a captured biometric sample.
type BiometricEvent struct {
	UserEvent
	Modality string
	Image    []byte
	MIME     string
}
