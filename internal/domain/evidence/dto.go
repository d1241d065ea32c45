package evidence

import (
	"fmt"
	"io"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
)

type EnrollRequest struct {
	EmployeeID        string `json:"employee_id"`
	BiometricModality string `json:"biometric_modality"`
	BiometricImage    string `json:"biometric_image"`

	modality string
	mime     string
	image    []byte
}

func (r *EnrollRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.EmployeeID) {
		errs.Add("employee_id", "employee_id is required")
	}
	if m, err := NormalizeModality(r.BiometricModality); err != nil {
		errs.Add("biometric_modality", err.Error())
	} else {
		r.modality = m
	}
	if mime, b, err := DecodeImage(r.BiometricImage); err != nil {
		errs.Add("biometric_image", err.Error())
	} else {
		r.mime, r.image = mime, b
	}

	return errs.Err()
}

// Capture returns the decoded sample. Only meaningful after Validate succeeds.
func (r *EnrollRequest) Capture(companyID string) Capture {
	return Capture{
		CompanyID:  companyID,
		EmployeeID: r.EmployeeID,
		Modality:   r.modality,
		MIME:       r.mime,
		Image:      r.image,
	}
}

type ItemResponse struct {
	ID                 string    `json:"id"`
	AttendanceRecordID *string   `json:"attendance_record_id"`
	EmployeeID         string    `json:"employee_id"`
	EventType          EventType `json:"event_type"`
	Modality           string    `json:"modality"`
	Matched            bool      `json:"matched"`
	SHA256             string    `json:"sha256"`
	Latitude           *float64  `json:"latitude,omitempty"`
	Longitude          *float64  `json:"longitude,omitempty"`
	AccuracyM          *float64  `json:"accuracy_m,omitempty"`
	MIME               string    `json:"mime"`
	ImageURL           string    `json:"image_url"`
	ThumbnailURL       *string   `json:"thumbnail_url,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

type ImageVariant string

const (
	ImageOriginal  ImageVariant = "original"
	ImageThumbnail ImageVariant = "thumbnail"
)

// ParseImageVariant maps the variant query parameter; empty means original.
func ParseImageVariant(s string) (ImageVariant, error) {
	switch ImageVariant(s) {
	case "", ImageOriginal:
		return ImageOriginal, nil
	case ImageThumbnail:
		return ImageThumbnail, nil
	}
	var errs validator.ValidationErrors
	errs.Add("variant", "variant must be original or thumbnail")
	return "", errs.Err()
}

// ImagePath is the authenticated route an evidence image is served from.
func ImagePath(id string, variant ImageVariant) string {
	if variant == ImageThumbnail {
		return fmt.Sprintf("/api/v1/evidence/%s/image?variant=%s", id, ImageThumbnail)
	}
	return fmt.Sprintf("/api/v1/evidence/%s/image", id)
}

type ImageObject struct {
	Body   io.ReadCloser
	MIME   string
	SHA256 string
}
