package evidence

import "time"

type EventType string

const (
	EventClockIn  EventType = "clock_in"
	EventClockOut EventType = "clock_out"
	EventEnroll   EventType = "enroll"
)

const ModalityFace = "face"

// Item is write-once audit evidence of a biometric capture.
type Item struct {
	ID                 string
	CompanyID          string
	AttendanceRecordID *string
	EmployeeID         string
	EventType          EventType
	Modality           string
	Matched            bool
	SHA256             string
	Latitude           *float64
	Longitude          *float64
	AccuracyM          *float64
	MIME               string
	ImageRef           string
	ThumbnailRef       *string
	CreatedAt          time.Time
}

// Template is the enrolled baseline an employee's captures are matched against.
type Template struct {
	CompanyID  string
	EmployeeID string
	Modality   string
	SHA256     string
	MIME       string
	ImageRef   string
	UpdatedAt  time.Time
}

// Capture is a biometric sample attached to a clock event.
type Capture struct {
	CompanyID  string
	EmployeeID string
	Modality   string
	MIME       string
	Image      []byte
	Latitude   *float64
	Longitude  *float64
	AccuracyM  *float64
}
